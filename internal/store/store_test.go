package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *ProfileStore {
	t.Helper()
	return NewProfileStore(filepath.Join(t.TempDir(), "profiles.json"))
}

func TestLoad_MissingFile(t *testing.T) {
	s := newTestStore(t)
	if err := s.Load(); err != nil {
		t.Fatalf("Load with missing file: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
}

func TestLoad_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	s := NewProfileStore(path)
	if err := s.Load(); err == nil {
		t.Error("Load with corrupt file should return the parse error")
	}
	// The table degrades to empty and stays usable.
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0 after corrupt load", s.Len())
	}
	s.Apply("1", func(p *UserProfile) { p.ChatXP = 10 })
	if err := s.Save(); err != nil {
		t.Fatalf("Save after corrupt load: %v", err)
	}
}

func TestApply_LazyCreation(t *testing.T) {
	s := newTestStore(t)

	p := s.Apply("42", func(p *UserProfile) {})
	if p.UserID != "42" || p.Level != 1 || p.ChatXP != 0 || p.VCXP != 0 {
		t.Errorf("fresh profile = %+v, want zero fields at level 1", p)
	}
	if !p.LastMessageAt.IsZero() {
		t.Errorf("fresh profile LastMessageAt = %v, want zero", p.LastMessageAt)
	}
}

func TestGetOrDefault_DoesNotInsert(t *testing.T) {
	s := newTestStore(t)

	p := s.GetOrDefault("7")
	if p.Level != 1 {
		t.Errorf("default level = %d, want 1", p.Level)
	}
	if s.Len() != 0 {
		t.Error("GetOrDefault must not insert into the table")
	}
	if _, ok := s.Get("7"); ok {
		t.Error("Get should not find a defaulted user")
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")
	s := NewProfileStore(path)

	last := time.Date(2024, 3, 10, 8, 30, 0, 0, time.UTC)
	s.Apply("100", func(p *UserProfile) {
		p.ChatXP = 120
		p.VCXP = 30
		p.TotalXP = 150
		p.Level = 2
		p.LastMessageAt = last
	})
	s.Apply("200", func(p *UserProfile) {
		p.VCXP = 50
		p.TotalXP = 50
		p.Level = 1
	})
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded := NewProfileStore(path)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	p, ok := reloaded.Get("100")
	if !ok {
		t.Fatal("user 100 missing after reload")
	}
	if p.ChatXP != 120 || p.VCXP != 30 || p.TotalXP != 150 || p.Level != 2 {
		t.Errorf("reloaded profile = %+v", p)
	}
	if !p.LastMessageAt.Equal(last) {
		t.Errorf("LastMessageAt = %v, want %v", p.LastMessageAt, last)
	}

	p2, ok := reloaded.Get("200")
	if !ok {
		t.Fatal("user 200 missing after reload")
	}
	if !p2.LastMessageAt.IsZero() {
		t.Errorf("user 200 LastMessageAt = %v, want zero", p2.LastMessageAt)
	}
}

func TestSaveLoad_PreservesInsertionOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")
	s := NewProfileStore(path)

	// Deliberately not in lexicographic order.
	ids := []string{"900", "100", "500", "300"}
	for _, id := range ids {
		s.Apply(id, func(p *UserProfile) { p.ChatXP = 1 })
	}
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded := NewProfileStore(path)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	snap := reloaded.Snapshot()
	if len(snap) != len(ids) {
		t.Fatalf("len(snapshot) = %d, want %d", len(snap), len(ids))
	}
	for i, id := range ids {
		if snap[i].UserID != id {
			t.Errorf("snapshot[%d] = %s, want %s", i, snap[i].UserID, id)
		}
	}
}

func TestSave_FileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")
	s := NewProfileStore(path)
	s.Apply("1", func(p *UserProfile) {
		p.ChatXP = 20
		p.TotalXP = 20
		p.Level = 1
		p.LastMessageAt = time.Unix(1700000000, 0)
	})
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{`"chat_xp":20`, `"vc_xp":0`, `"total_xp":20`, `"level":1`, `"last_message":1700000000`} {
		if !strings.Contains(string(data), field) {
			t.Errorf("file missing %s:\n%s", field, data)
		}
	}
}

func TestSave_NoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	s := NewProfileStore(filepath.Join(dir, "profiles.json"))
	s.Apply("1", func(p *UserProfile) { p.ChatXP = 5 })
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "profiles.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("data dir contents = %v, want only profiles.json", names)
	}
}

func TestApply_ExistingProfileMutates(t *testing.T) {
	s := newTestStore(t)
	s.Apply("1", func(p *UserProfile) { p.ChatXP = 10 })
	p := s.Apply("1", func(p *UserProfile) { p.ChatXP += 15 })
	if p.ChatXP != 25 {
		t.Errorf("ChatXP = %d, want 25", p.ChatXP)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}
