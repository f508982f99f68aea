package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/levelbot/internal/card"
	"github.com/stellarlinkco/levelbot/internal/config"
	"github.com/stellarlinkco/levelbot/internal/engine"
	"github.com/stellarlinkco/levelbot/internal/gateway"
	"github.com/stellarlinkco/levelbot/internal/store"
	"github.com/stellarlinkco/levelbot/internal/voice"
)

var rootCmd = &cobra.Command{
	Use:   "levelbot",
	Short: "levelbot - chat XP and leveling bot",
}

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Run the bot gateway (channels, accrual engine, tick)",
	RunE:  runGateway,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Write a default config file to edit",
	RunE:  runOnboard,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show config location and profile table stats",
	RunE:  runStatus,
}

var topCmd = &cobra.Command{
	Use:   "top [n]",
	Short: "Print the leaderboard from the local profile table",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTop,
}

var profileCmd = &cobra.Command{
	Use:   "profile <userID>",
	Short: "Print one user's XP profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfile,
}

func init() {
	rootCmd.AddCommand(gatewayCmd, onboardCmd, statusCmd, topCmd, profileCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if !cfg.Channels.Discord.Enabled && !cfg.Channels.Telegram.Enabled {
		return fmt.Errorf("no channel enabled. Edit %s (run 'levelbot onboard' to create it)", config.ConfigPath())
	}

	g, err := gateway.New(cfg)
	if err != nil {
		return err
	}
	return g.Run(context.Background())
}

func runOnboard(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(config.ConfigPath()); err == nil {
		fmt.Printf("Config already exists at %s\n", config.ConfigPath())
		return nil
	}
	if err := config.SaveConfig(config.DefaultConfig()); err != nil {
		return err
	}
	fmt.Printf("Wrote default config to %s\n", config.ConfigPath())
	fmt.Println("Set a channel token and enable it, then run 'levelbot gateway'.")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	st, err := loadStore(cfg)
	if err != nil {
		return err
	}
	fmt.Printf("Config:   %s\n", config.ConfigPath())
	fmt.Printf("Profiles: %s (%d users)\n", cfg.ProfilePath(), st.Len())
	fmt.Printf("Discord:  enabled=%v\n", cfg.Channels.Discord.Enabled)
	fmt.Printf("Telegram: enabled=%v\n", cfg.Channels.Telegram.Enabled)
	return nil
}

func runTop(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	n := cfg.Leaderboard.Size
	if len(args) == 1 {
		if _, err := fmt.Sscanf(args[0], "%d", &n); err != nil || n <= 0 {
			return fmt.Errorf("invalid count %q", args[0])
		}
	}

	eng, err := offlineEngine(cfg)
	if err != nil {
		return err
	}
	top := eng.TopN(n)
	if len(top) == 0 {
		fmt.Println("No XP recorded yet.")
		return nil
	}
	for i, p := range top {
		fmt.Printf("%2d. %-20s level %-3d %d XP\n", i+1, p.UserID, p.Level, p.TotalXP)
	}
	return nil
}

func runProfile(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	eng, err := offlineEngine(cfg)
	if err != nil {
		return err
	}
	p, ok := eng.Lookup(args[0])
	if !ok {
		return fmt.Errorf("no XP recorded for user %s", args[0])
	}
	fmt.Println(card.TextSummary(p, p.UserID))
	return nil
}

func loadStore(cfg *config.Config) (*store.ProfileStore, error) {
	st := store.NewProfileStore(cfg.ProfilePath())
	if err := st.Load(); err != nil {
		return nil, fmt.Errorf("load profile table: %w", err)
	}
	return st, nil
}

// offlineEngine builds a read-only engine over the local table for CLI
// queries; no channels, no tick.
func offlineEngine(cfg *config.Config) (*engine.Engine, error) {
	st, err := loadStore(cfg)
	if err != nil {
		return nil, err
	}
	return engine.New(st, voice.NewSessionTracker(), engine.Options{}), nil
}
