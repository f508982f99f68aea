package voice

import (
	"testing"
	"time"
)

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestOnJoin_DuplicateKeepsWindow(t *testing.T) {
	tr := NewSessionTracker()

	if !tr.OnJoin("1", t0) {
		t.Fatal("first join should create a session")
	}
	// A duplicate join event must not reset the crediting window.
	if tr.OnJoin("1", t0.Add(30*time.Second)) {
		t.Error("duplicate join should be idempotent")
	}
	since, ok := tr.Since("1")
	if !ok || !since.Equal(t0) {
		t.Errorf("since = %v, want %v", since, t0)
	}
}

func TestOnLeave_ShortSessionCreditsNothing(t *testing.T) {
	tr := NewSessionTracker()
	tr.OnJoin("1", t0)

	minutes, present := tr.OnLeave("1", t0.Add(30*time.Second))
	if !present {
		t.Fatal("leave should find the session")
	}
	if minutes != 0 {
		t.Errorf("minutes = %d, want 0 for a 30s session", minutes)
	}
	if tr.Active() != 0 {
		t.Error("session should be closed after leave")
	}
}

func TestOnLeave_FloorsElapsedMinutes(t *testing.T) {
	tr := NewSessionTracker()
	tr.OnJoin("1", t0)

	minutes, _ := tr.OnLeave("1", t0.Add(90*time.Second))
	if minutes != 1 {
		t.Errorf("minutes = %d, want 1 for a 90s session", minutes)
	}
}

func TestOnLeave_Absent(t *testing.T) {
	tr := NewSessionTracker()
	if _, present := tr.OnLeave("ghost", t0); present {
		t.Error("leave without join should report no session")
	}
}

func TestTick_CreditsAndAdvancesWindow(t *testing.T) {
	tr := NewSessionTracker()
	tr.OnJoin("1", t0)

	credits := tr.Tick(t0.Add(60*time.Second), time.Minute)
	if len(credits) != 1 || credits[0].UserID != "1" || credits[0].Minutes != 1 {
		t.Fatalf("credits = %+v, want one 1-minute credit for user 1", credits)
	}

	// The window advanced, so a leave 30s later credits nothing more.
	minutes, _ := tr.OnLeave("1", t0.Add(90*time.Second))
	if minutes != 0 {
		t.Errorf("post-tick leave minutes = %d, want 0", minutes)
	}
}

func TestTick_BeforeIntervalYieldsNothing(t *testing.T) {
	tr := NewSessionTracker()
	tr.OnJoin("1", t0)

	if credits := tr.Tick(t0.Add(45*time.Second), time.Minute); len(credits) != 0 {
		t.Errorf("credits = %+v, want none before the interval elapses", credits)
	}
}

func TestTick_LatePassGrantsSingleInterval(t *testing.T) {
	tr := NewSessionTracker()
	tr.OnJoin("1", t0)

	// The ticker fired 150s late; still only one interval's worth.
	credits := tr.Tick(t0.Add(210*time.Second), time.Minute)
	if len(credits) != 1 || credits[0].Minutes != 1 {
		t.Fatalf("credits = %+v, want a single 1-minute credit", credits)
	}

	// And the remainder was forfeited, not banked: the window restarts at
	// the tick time.
	since, _ := tr.Since("1")
	if !since.Equal(t0.Add(210 * time.Second)) {
		t.Errorf("since = %v, want the tick time", since)
	}
}

func TestTick_OnlyDueSessions(t *testing.T) {
	tr := NewSessionTracker()
	tr.OnJoin("old", t0)
	tr.OnJoin("new", t0.Add(50*time.Second))

	credits := tr.Tick(t0.Add(60*time.Second), time.Minute)
	if len(credits) != 1 || credits[0].UserID != "old" {
		t.Errorf("credits = %+v, want only the due session", credits)
	}
	if tr.Active() != 2 {
		t.Error("tick must never destroy sessions")
	}
}
