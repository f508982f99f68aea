package config

import (
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.XP.ChatXPMin != 15 || cfg.XP.ChatXPMax != 25 {
		t.Errorf("chat XP range = [%d, %d], want [15, 25]", cfg.XP.ChatXPMin, cfg.XP.ChatXPMax)
	}
	if cfg.XP.CooldownSeconds != 60 {
		t.Errorf("cooldown = %d, want 60", cfg.XP.CooldownSeconds)
	}
	if cfg.XP.VCXPPerMinute != 10 {
		t.Errorf("vc xp per minute = %d, want 10", cfg.XP.VCXPPerMinute)
	}
	if cfg.XP.TickSeconds != 60 {
		t.Errorf("tick seconds = %d, want 60", cfg.XP.TickSeconds)
	}
	if cfg.Leaderboard.Size != DefaultLeaderboardSize {
		t.Errorf("leaderboard size = %d, want %d", cfg.Leaderboard.Size, DefaultLeaderboardSize)
	}
	if cfg.Channels.Discord.Enabled || cfg.Channels.Telegram.Enabled {
		t.Error("no channel should be enabled by default")
	}
}

func TestApplyDefaults_BackfillsZeroValues(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	if cfg.XP.ChatXPMin != DefaultChatXPMin || cfg.XP.ChatXPMax != DefaultChatXPMax {
		t.Errorf("chat XP range = [%d, %d]", cfg.XP.ChatXPMin, cfg.XP.ChatXPMax)
	}
	if cfg.XP.CooldownSeconds != DefaultCooldownSeconds {
		t.Errorf("cooldown = %d", cfg.XP.CooldownSeconds)
	}
	if cfg.Filter.Reply == "" {
		t.Error("filter reply should be backfilled")
	}
	if cfg.Data.Dir == "" {
		t.Error("data dir should be backfilled")
	}
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{
		XP:          XPConfig{ChatXPMin: 5, ChatXPMax: 10, CooldownSeconds: 30, VCXPPerMinute: 3, TickSeconds: 120},
		Leaderboard: LeaderboardConfig{Size: 25},
	}
	cfg.applyDefaults()

	if cfg.XP.ChatXPMin != 5 || cfg.XP.ChatXPMax != 10 {
		t.Errorf("chat XP range = [%d, %d], want [5, 10]", cfg.XP.ChatXPMin, cfg.XP.ChatXPMax)
	}
	if cfg.XP.TickSeconds != 120 {
		t.Errorf("tick seconds = %d, want 120", cfg.XP.TickSeconds)
	}
	if cfg.Leaderboard.Size != 25 {
		t.Errorf("leaderboard size = %d, want 25", cfg.Leaderboard.Size)
	}
}

func TestProfilePath(t *testing.T) {
	cfg := &Config{Data: DataConfig{Dir: "/tmp/lvl"}}
	if got := cfg.ProfilePath(); got != "/tmp/lvl/profiles.json" {
		t.Errorf("ProfilePath = %q", got)
	}
}
