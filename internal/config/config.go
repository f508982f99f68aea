package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	DefaultChatXPMin       = 15
	DefaultChatXPMax       = 25
	DefaultCooldownSeconds = 60
	DefaultVCXPPerMinute   = 10
	DefaultTickSeconds     = 60
	DefaultLeaderboardSize = 10
	DefaultBufSize         = 100
	DefaultCommandPrefix   = "/"
	DefaultFilterReply     = "watch your language"
)

type Config struct {
	Channels    ChannelsConfig    `json:"channels"`
	XP          XPConfig          `json:"xp"`
	Leaderboard LeaderboardConfig `json:"leaderboard"`
	Filter      FilterConfig      `json:"filter"`
	Announce    AnnounceConfig    `json:"announce"`
	Data        DataConfig        `json:"data"`
}

type ChannelsConfig struct {
	Discord  DiscordConfig  `json:"discord"`
	Telegram TelegramConfig `json:"telegram"`
}

type DiscordConfig struct {
	Enabled     bool     `json:"enabled"`
	Token       string   `json:"token"`
	AllowFrom   []string `json:"allowFrom"`
	MovePrefix  string   `json:"movePrefix,omitempty"` // voice move command word, e.g. "move"
	GuildFilter []string `json:"guildFilter,omitempty"`
}

type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allowFrom"`
	Proxy     string   `json:"proxy,omitempty"`
}

// XPConfig tunes the accrual policy. Zero values take the canonical
// constants from the xp package.
type XPConfig struct {
	ChatXPMin       int `json:"chatXpMin"`
	ChatXPMax       int `json:"chatXpMax"`
	CooldownSeconds int `json:"cooldownSeconds"`
	VCXPPerMinute   int `json:"vcXpPerMinute"`
	TickSeconds     int `json:"tickSeconds"`
}

type LeaderboardConfig struct {
	Size int `json:"size"`
}

type FilterConfig struct {
	Words []string `json:"words"`
	Reply string   `json:"reply"`
}

// AnnounceConfig names the chat that receives level-up announcements with no
// originating message (voice and tick credits). Empty means log-only.
type AnnounceConfig struct {
	Channel string `json:"channel"`
	ChatID  string `json:"chatId"`
}

type DataConfig struct {
	Dir string `json:"dir"`
}

func DefaultConfig() *Config {
	return &Config{
		XP: XPConfig{
			ChatXPMin:       DefaultChatXPMin,
			ChatXPMax:       DefaultChatXPMax,
			CooldownSeconds: DefaultCooldownSeconds,
			VCXPPerMinute:   DefaultVCXPPerMinute,
			TickSeconds:     DefaultTickSeconds,
		},
		Leaderboard: LeaderboardConfig{Size: DefaultLeaderboardSize},
		Filter:      FilterConfig{Reply: DefaultFilterReply},
		Data:        DataConfig{Dir: filepath.Join(ConfigDir(), "data")},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".levelbot")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// ProfilePath is the profile table location under the configured data dir.
func (c *Config) ProfilePath() string {
	dir := c.Data.Dir
	if dir == "" {
		dir = filepath.Join(ConfigDir(), "data")
	}
	return filepath.Join(dir, "profiles.json")
}

// LoadConfig reads ConfigPath over the defaults. A missing file yields the
// defaults; a malformed file is an error.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults backfills zero values so a sparse config file still runs
// with the canonical policy.
func (c *Config) applyDefaults() {
	if c.XP.ChatXPMin <= 0 {
		c.XP.ChatXPMin = DefaultChatXPMin
	}
	if c.XP.ChatXPMax < c.XP.ChatXPMin {
		c.XP.ChatXPMax = DefaultChatXPMax
	}
	if c.XP.CooldownSeconds <= 0 {
		c.XP.CooldownSeconds = DefaultCooldownSeconds
	}
	if c.XP.VCXPPerMinute <= 0 {
		c.XP.VCXPPerMinute = DefaultVCXPPerMinute
	}
	if c.XP.TickSeconds <= 0 {
		c.XP.TickSeconds = DefaultTickSeconds
	}
	if c.Leaderboard.Size <= 0 {
		c.Leaderboard.Size = DefaultLeaderboardSize
	}
	if c.Filter.Reply == "" {
		c.Filter.Reply = DefaultFilterReply
	}
	if c.Data.Dir == "" {
		c.Data.Dir = filepath.Join(ConfigDir(), "data")
	}
}

// SaveConfig writes cfg to ConfigPath, creating the directory if needed.
func SaveConfig(cfg *Config) error {
	if err := os.MkdirAll(ConfigDir(), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(ConfigPath(), data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
