// Package store owns the durable profile table: one record per user, keyed
// by the platform's string user ID. The whole table is loaded at startup and
// rewritten in full after each mutation batch.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// UserProfile is the per-user accrual record. TotalXP and Level are derived
// fields; the engine recomputes them on every mutation.
type UserProfile struct {
	UserID        string
	ChatXP        int
	VCXP          int
	TotalXP       int
	Level         int
	LastMessageAt time.Time // zero means chat XP was never granted
}

// profileRecord is the on-disk shape of one profile. last_message is epoch
// seconds, 0 when no chat XP was ever granted.
type profileRecord struct {
	ChatXP      int   `json:"chat_xp"`
	VCXP        int   `json:"vc_xp"`
	TotalXP     int   `json:"total_xp"`
	Level       int   `json:"level"`
	LastMessage int64 `json:"last_message"`
}

// ProfileStore holds the profile table and its backing file. Insertion order
// of the table is tracked explicitly: it drives leaderboard tie-breaks and is
// preserved across save/load.
type ProfileStore struct {
	path string

	mu       sync.Mutex
	profiles map[string]*UserProfile
	order    []string
}

func NewProfileStore(path string) *ProfileStore {
	return &ProfileStore{
		path:     path,
		profiles: make(map[string]*UserProfile),
	}
}

// Load reads the full table from disk. A missing file leaves the table
// empty and is not an error; a corrupt file empties the table and returns
// the parse error so the caller can log it.
func (s *ProfileStore) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read profile table: %w", err)
	}

	profiles, order, err := decodeTable(data)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.profiles = make(map[string]*UserProfile)
		s.order = nil
		return fmt.Errorf("parse profile table: %w", err)
	}
	s.profiles = profiles
	s.order = order
	return nil
}

// Get returns a copy of a profile if one exists.
func (s *ProfileStore) Get(userID string) (UserProfile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return UserProfile{}, false
	}
	return *p, true
}

// GetOrDefault returns the stored profile, or a fresh zero profile at level 1
// for an unknown user. The default is not inserted into the table; a profile
// only becomes durable on its first real mutation.
func (s *ProfileStore) GetOrDefault(userID string) UserProfile {
	if p, ok := s.Get(userID); ok {
		return p
	}
	return UserProfile{UserID: userID, Level: 1}
}

// Apply runs fn against the live profile for userID, creating the profile
// with zero fields and level 1 if it does not exist yet. It mutates memory
// only; the caller decides when to Save. Returns a copy of the profile after
// the mutation.
func (s *ProfileStore) Apply(userID string, fn func(*UserProfile)) UserProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		p = &UserProfile{UserID: userID, Level: 1}
		s.profiles[userID] = p
		s.order = append(s.order, userID)
	}
	fn(p)
	return *p
}

// Len reports the number of known profiles.
func (s *ProfileStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.profiles)
}

// Snapshot copies out every profile in table insertion order.
func (s *ProfileStore) Snapshot() []UserProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]UserProfile, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.profiles[id])
	}
	return out
}

// Save rewrites the whole table. The write goes to a temp file in the same
// directory followed by a rename, so a reader never observes a truncated
// table. On failure the in-memory table remains authoritative.
func (s *ProfileStore) Save() error {
	s.mu.Lock()
	data := s.encodeLocked()
	s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".profiles-*.json")
	if err != nil {
		return fmt.Errorf("create temp table: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp table: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp table: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("swap profile table: %w", err)
	}
	return nil
}

// encodeLocked marshals the table as a single JSON object with keys written
// in insertion order. encoding/json sorts map keys, which would lose the
// ordering the leaderboard tie-break depends on, so the object is assembled
// by hand from per-record marshals.
func (s *ProfileStore) encodeLocked() []byte {
	var buf bytes.Buffer
	buf.WriteString("{\n")
	for i, id := range s.order {
		p := s.profiles[id]
		rec := profileRecord{
			ChatXP:  p.ChatXP,
			VCXP:    p.VCXP,
			TotalXP: p.TotalXP,
			Level:   p.Level,
		}
		if !p.LastMessageAt.IsZero() {
			rec.LastMessage = p.LastMessageAt.Unix()
		}
		key, _ := json.Marshal(id)
		val, _ := json.Marshal(rec)
		buf.WriteString("  ")
		buf.Write(key)
		buf.WriteString(": ")
		buf.Write(val)
		if i < len(s.order)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString("}\n")
	return buf.Bytes()
}

// decodeTable walks the JSON object token by token to recover the key order
// the file was written with.
func decodeTable(data []byte) (map[string]*UserProfile, []string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("profile table: expected object, got %v", tok)
	}

	profiles := make(map[string]*UserProfile)
	var order []string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		userID, ok := keyTok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("profile table: non-string key %v", keyTok)
		}
		var rec profileRecord
		if err := dec.Decode(&rec); err != nil {
			return nil, nil, fmt.Errorf("profile %s: %w", userID, err)
		}
		p := &UserProfile{
			UserID:  userID,
			ChatXP:  rec.ChatXP,
			VCXP:    rec.VCXP,
			TotalXP: rec.TotalXP,
			Level:   rec.Level,
		}
		if rec.LastMessage > 0 {
			p.LastMessageAt = time.Unix(rec.LastMessage, 0)
		}
		if _, dup := profiles[userID]; !dup {
			order = append(order, userID)
		}
		profiles[userID] = p
	}
	return profiles, order, nil
}
