// Package engine orchestrates XP accrual: chat events, voice transitions and
// the periodic tick all funnel through one critical section.
package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/stellarlinkco/levelbot/internal/store"
	"github.com/stellarlinkco/levelbot/internal/voice"
	"github.com/stellarlinkco/levelbot/internal/xp"
)

// LevelUp reports that a mutation raised a user's level.
type LevelUp struct {
	UserID   string
	NewLevel int
}

// ChatResult is the outcome of one chat event.
type ChatResult struct {
	Granted bool // false when the cooldown swallowed the event
	XP      int
	LevelUp *LevelUp
}

// VoiceResult is the outcome of a voice leave.
type VoiceResult struct {
	Minutes int // full minutes credited by the final flush
	LevelUp *LevelUp
}

// TickResult aggregates one crediting pass. Per-user failures are collected
// and do not stop the batch; PersistErr is the single save at the end.
type TickResult struct {
	Credited   int
	LevelUps   []LevelUp
	Errors     []error
	PersistErr error
}

// Options tunes the engine; zero values fall back to the xp package policy.
type Options struct {
	RollChatXP    func() int
	Cooldown      time.Duration
	VCXPPerMinute int
	TickInterval  time.Duration
}

// Engine mutates profiles through the store and consumes session state from
// the tracker. mu serializes every accrual across the chat, voice and tick
// triggers, so no two of them ever interleave a load, mutate, persist window
// for the same user.
type Engine struct {
	mu       sync.Mutex
	store    *store.ProfileStore
	sessions *voice.SessionTracker

	rollChatXP    func() int
	cooldown      time.Duration
	vcXPPerMinute int
	tickInterval  time.Duration
}

func New(st *store.ProfileStore, tracker *voice.SessionTracker, opts Options) *Engine {
	e := &Engine{
		store:         st,
		sessions:      tracker,
		rollChatXP:    opts.RollChatXP,
		cooldown:      opts.Cooldown,
		vcXPPerMinute: opts.VCXPPerMinute,
		tickInterval:  opts.TickInterval,
	}
	if e.rollChatXP == nil {
		e.rollChatXP = xp.RollChatXP
	}
	if e.cooldown <= 0 {
		e.cooldown = xp.ChatCooldown
	}
	if e.vcXPPerMinute <= 0 {
		e.vcXPPerMinute = xp.VCXPPerMinute
	}
	if e.tickInterval <= 0 {
		e.tickInterval = time.Minute
	}
	return e
}

// TickInterval is the crediting interval the engine was configured with.
func (e *Engine) TickInterval() time.Duration {
	return e.tickInterval
}

// recalc re-derives TotalXP and Level after an additive mutation; neither is
// ever written directly.
func recalc(p *store.UserProfile) {
	p.TotalXP = p.ChatXP + p.VCXP
	p.Level = xp.LevelFromTotalXP(p.TotalXP)
}

// OnChat handles one chat message. If the per-user cooldown has elapsed it
// rolls XP, records the grant time and persists; otherwise the event is a
// no-op for XP. A returned error is a persistence failure only; the grant
// already took effect in memory.
func (e *Engine) OnChat(userID string, now time.Time) (ChatResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if p, ok := e.store.Get(userID); ok {
		if !xp.CooldownElapsed(p.LastMessageAt, now, e.cooldown) {
			return ChatResult{}, nil
		}
	}

	gain := e.rollChatXP()
	var prevLevel int
	p := e.store.Apply(userID, func(p *store.UserProfile) {
		prevLevel = p.Level
		p.ChatXP += gain
		p.LastMessageAt = now
		recalc(p)
	})

	res := ChatResult{Granted: true, XP: gain}
	if p.Level > prevLevel {
		res.LevelUp = &LevelUp{UserID: userID, NewLevel: p.Level}
	}
	return res, e.store.Save()
}

// OnVoiceJoin opens the user's crediting window. Duplicate joins are
// idempotent and keep the existing window.
func (e *Engine) OnVoiceJoin(userID string, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessions.OnJoin(userID, now)
}

// OnVoiceLeave flushes the remaining session time and closes the session.
// Sub-minute remainders credit nothing. A leave with no open session is a
// no-op (the tracker never saw the join, e.g. the bot started mid-call).
func (e *Engine) OnVoiceLeave(userID string, now time.Time) (VoiceResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	minutes, present := e.sessions.OnLeave(userID, now)
	if !present || minutes == 0 {
		return VoiceResult{}, nil
	}

	res := VoiceResult{Minutes: minutes}
	res.LevelUp = e.creditVoiceLocked(userID, minutes)
	return res, e.store.Save()
}

// Tick runs one crediting pass over all open sessions with a single save at
// the end. One user failing does not abort the batch.
func (e *Engine) Tick(now time.Time) TickResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	credits := e.sessions.Tick(now, e.tickInterval)
	var res TickResult
	if len(credits) == 0 {
		return res
	}

	for _, c := range credits {
		if c.UserID == "" || c.Minutes <= 0 {
			res.Errors = append(res.Errors, fmt.Errorf("tick: bad credit %+v", c))
			continue
		}
		if lu := e.creditVoiceLocked(c.UserID, c.Minutes); lu != nil {
			res.LevelUps = append(res.LevelUps, *lu)
		}
		res.Credited++
	}
	if res.Credited > 0 {
		res.PersistErr = e.store.Save()
	}
	return res
}

// creditVoiceLocked adds minutes of voice XP to a profile and re-derives its
// fields. Callers hold e.mu.
func (e *Engine) creditVoiceLocked(userID string, minutes int) *LevelUp {
	var prevLevel int
	p := e.store.Apply(userID, func(p *store.UserProfile) {
		prevLevel = p.Level
		p.VCXP += minutes * e.vcXPPerMinute
		recalc(p)
	})
	if p.Level > prevLevel {
		return &LevelUp{UserID: userID, NewLevel: p.Level}
	}
	return nil
}

// Profile returns the stored profile, or a zero-valued level-1 default for an
// unknown user. The default is not persisted until a real mutation happens.
func (e *Engine) Profile(userID string) store.UserProfile {
	return e.store.GetOrDefault(userID)
}

// Lookup reports whether a profile exists, for explicit lookup commands where
// an unknown user is reported to the caller rather than defaulted.
func (e *Engine) Lookup(userID string) (store.UserProfile, bool) {
	return e.store.Get(userID)
}
