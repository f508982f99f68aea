// Package voice tracks who is in a voice channel and since when. A user is
// either absent (no session) or present with a crediting-window start time.
package voice

import (
	"sync"
	"time"
)

// Credit is one pending grant yielded by a tick pass.
type Credit struct {
	UserID  string
	Minutes int
}

// SessionTracker owns the in-memory session map. All access goes through its
// methods; the map is never handed out.
type SessionTracker struct {
	mu       sync.Mutex
	sessions map[string]time.Time // userID -> start of current crediting window
}

func NewSessionTracker() *SessionTracker {
	return &SessionTracker{sessions: make(map[string]time.Time)}
}

// OnJoin opens a session at now. A duplicate join for an already-present user
// is idempotent: the existing window start is kept, so time accrued but not
// yet credited is not lost. Reports whether a new session was created.
func (t *SessionTracker) OnJoin(userID string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.sessions[userID]; ok {
		return false
	}
	t.sessions[userID] = now
	return true
}

// OnLeave closes the session and returns the full minutes elapsed since the
// current crediting window started. Sessions shorter than a minute credit
// zero. Reports whether a session existed.
func (t *SessionTracker) OnLeave(userID string, now time.Time) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	since, ok := t.sessions[userID]
	if !ok {
		return 0, false
	}
	delete(t.sessions, userID)
	elapsed := now.Sub(since)
	if elapsed < time.Minute {
		return 0, true
	}
	return int(elapsed / time.Minute), true
}

// Tick yields one credit for every session whose window has run at least
// interval, and advances that session's window start to now so a following
// OnLeave cannot re-credit the same minutes. Each pass grants at most one
// interval's worth per session no matter how late it fires.
func (t *SessionTracker) Tick(now time.Time, interval time.Duration) []Credit {
	minutes := int(interval / time.Minute)
	if minutes < 1 {
		minutes = 1
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	var credits []Credit
	for userID, since := range t.sessions {
		if now.Sub(since) < interval {
			continue
		}
		t.sessions[userID] = now
		credits = append(credits, Credit{UserID: userID, Minutes: minutes})
	}
	return credits
}

// Active reports the number of open sessions.
func (t *SessionTracker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// Since returns the current crediting-window start for a user, if present.
func (t *SessionTracker) Since(userID string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	since, ok := t.sessions[userID]
	return since, ok
}
