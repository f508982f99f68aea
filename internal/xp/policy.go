// Package xp holds the experience-point policy: how chat and voice activity
// turn into XP, and how accumulated XP maps to a level. All functions are
// pure; the accrual engine owns every piece of state.
package xp

import (
	"math"
	"math/rand"
	"time"
)

const (
	// ChatXPMin and ChatXPMax bound the uniform roll granted per
	// non-cooldown chat message, inclusive on both ends.
	ChatXPMin = 15
	ChatXPMax = 25

	// ChatCooldown gates chat XP: a message grants XP only if this much
	// time has passed since the last grant for the same user.
	ChatCooldown = 60 * time.Second

	// VCXPPerMinute is the XP credited per full minute of voice presence.
	VCXPPerMinute = 10
)

// RollChatXP draws the XP for one chat message, uniform in
// [ChatXPMin, ChatXPMax].
func RollChatXP() int {
	return ChatXPMin + rand.Intn(ChatXPMax-ChatXPMin+1)
}

// LevelFromTotalXP derives the level tier for a total XP amount:
// floor(sqrt(totalXP/100)) + 1. Monotonic non-decreasing, always >= 1.
func LevelFromTotalXP(totalXP int) int {
	if totalXP <= 0 {
		return 1
	}
	return int(math.Sqrt(float64(totalXP)/100)) + 1
}

// ThresholdForLevel is the total XP at which a level is left behind
// (level^2 * 100). Used for progress display, never for gating.
func ThresholdForLevel(level int) int {
	return level * level * 100
}

// CooldownElapsed reports whether a chat XP grant is allowed at now, given
// the time of the previous grant and the cooldown in force. A zero lastGrant
// means no grant yet.
func CooldownElapsed(lastGrant, now time.Time, cooldown time.Duration) bool {
	if lastGrant.IsZero() {
		return true
	}
	return now.Sub(lastGrant) >= cooldown
}
