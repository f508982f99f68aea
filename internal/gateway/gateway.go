// Package gateway wires the accrual engine to the channel adapters, tick
// service and renderer, moving events and replies over the message bus.
package gateway

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/stellarlinkco/levelbot/internal/bus"
	"github.com/stellarlinkco/levelbot/internal/card"
	"github.com/stellarlinkco/levelbot/internal/channel"
	"github.com/stellarlinkco/levelbot/internal/config"
	"github.com/stellarlinkco/levelbot/internal/engine"
	"github.com/stellarlinkco/levelbot/internal/filter"
	"github.com/stellarlinkco/levelbot/internal/store"
	"github.com/stellarlinkco/levelbot/internal/tick"
	"github.com/stellarlinkco/levelbot/internal/voice"
	"github.com/stellarlinkco/levelbot/internal/xp"
)

// Options carries injectable collaborators for testing and embedding.
type Options struct {
	Renderer   card.Renderer  // nil means text summaries only
	SignalChan chan os.Signal // for testing signal handling
	HTTPClient *http.Client   // avatar fetches; nil uses http.DefaultClient
}

type Gateway struct {
	cfg        *config.Config
	bus        *bus.MessageBus
	store      *store.ProfileStore
	engine     *engine.Engine
	channels   *channel.ChannelManager
	ticker     *tick.Service
	renderer   card.Renderer
	filter     *filter.WordFilter
	httpClient *http.Client
	signalChan chan os.Signal
}

// New creates a Gateway with default options.
func New(cfg *config.Config) (*Gateway, error) {
	return NewWithOptions(cfg, Options{})
}

// NewWithOptions creates a Gateway with custom options for testing.
func NewWithOptions(cfg *config.Config, opts Options) (*Gateway, error) {
	g := &Gateway{
		cfg:        cfg,
		renderer:   opts.Renderer,
		httpClient: opts.HTTPClient,
		signalChan: opts.SignalChan,
	}
	if g.httpClient == nil {
		g.httpClient = http.DefaultClient
	}

	g.bus = bus.NewMessageBus(config.DefaultBufSize)

	g.store = store.NewProfileStore(cfg.ProfilePath())
	if err := g.store.Load(); err != nil {
		// Malformed on-disk state degrades to an empty table, never a
		// failed startup.
		log.Printf("[gateway] profile table load warning, starting empty: %v", err)
	}
	log.Printf("[gateway] loaded %d profiles from %s", g.store.Len(), cfg.ProfilePath())

	g.engine = engine.New(g.store, voice.NewSessionTracker(), engine.Options{
		RollChatXP:    rollFromConfig(cfg.XP),
		Cooldown:      time.Duration(cfg.XP.CooldownSeconds) * time.Second,
		VCXPPerMinute: cfg.XP.VCXPPerMinute,
		TickInterval:  time.Duration(cfg.XP.TickSeconds) * time.Second,
	})

	g.ticker = tick.NewService(g.engine)
	g.ticker.OnResult = func(res engine.TickResult) {
		for _, lu := range res.LevelUps {
			g.announceLevelUp(lu, "", "")
		}
	}

	g.filter = filter.New(cfg.Filter.Words, cfg.Filter.Reply)

	chMgr, err := channel.NewChannelManager(cfg.Channels, g.bus)
	if err != nil {
		return nil, fmt.Errorf("create channel manager: %w", err)
	}
	g.channels = chMgr

	return g, nil
}

// rollFromConfig builds the chat roll from configured bounds; nil defers to
// the canonical policy in the xp package.
func rollFromConfig(xpCfg config.XPConfig) func() int {
	if xpCfg.ChatXPMin <= 0 || xpCfg.ChatXPMax < xpCfg.ChatXPMin {
		return nil
	}
	if xpCfg.ChatXPMin == xp.ChatXPMin && xpCfg.ChatXPMax == xp.ChatXPMax {
		return nil
	}
	lo, hi := xpCfg.ChatXPMin, xpCfg.ChatXPMax
	return func() int { return lo + rand.Intn(hi-lo+1) }
}

func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go g.bus.DispatchOutbound(ctx)

	if err := g.channels.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}
	log.Printf("[gateway] channels started: %v", g.channels.EnabledChannels())

	if err := g.ticker.Start(ctx); err != nil {
		return fmt.Errorf("start tick service: %w", err)
	}

	go g.processLoop(ctx)

	sigCh := g.signalChan
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	}
	<-sigCh

	log.Printf("[gateway] shutting down...")
	return g.Shutdown()
}

func (g *Gateway) processLoop(ctx context.Context) {
	for {
		select {
		case ev := <-g.bus.Inbound:
			g.handleEvent(ctx, ev)
		case <-ctx.Done():
			return
		}
	}
}

func (g *Gateway) handleEvent(ctx context.Context, ev bus.InboundEvent) {
	now := ev.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	switch ev.Kind {
	case bus.EventVoiceJoin:
		g.engine.OnVoiceJoin(ev.SenderID, now)

	case bus.EventVoiceLeave:
		res, err := g.engine.OnVoiceLeave(ev.SenderID, now)
		if err != nil {
			log.Printf("[gateway] persist warning (memory stays authoritative): %v", err)
		}
		if res.LevelUp != nil {
			g.announceLevelUp(*res.LevelUp, "", "")
		}

	case bus.EventChatMessage:
		g.handleChat(ctx, ev, now)

	default:
		log.Printf("[gateway] unknown event kind %v from %s", ev.Kind, ev.Channel)
	}
}

func (g *Gateway) handleChat(ctx context.Context, ev bus.InboundEvent, now time.Time) {
	if reply, hit := g.filter.Check(ev.Content); hit {
		g.bus.Outbound <- bus.OutboundMessage{Channel: ev.Channel, ChatID: ev.ChatID, Content: reply}
		return
	}

	if cmd, arg, ok := parseCommand(ev.Content); ok {
		switch cmd {
		case "rank":
			g.handleRank(ctx, ev, arg)
			return
		case "top", "leaderboard":
			g.handleTop(ev, arg)
			return
		}
		// Unknown commands fall through and count as ordinary chat.
	}

	res, err := g.engine.OnChat(ev.SenderID, now)
	if err != nil {
		log.Printf("[gateway] persist warning (memory stays authoritative): %v", err)
	}
	if res.LevelUp != nil {
		g.announceLevelUp(*res.LevelUp, ev.Channel, ev.ChatID)
	}
}

// parseCommand splits "/rank @user" style input into command and argument.
func parseCommand(content string) (cmd, arg string, ok bool) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, config.DefaultCommandPrefix) {
		return "", "", false
	}
	fields := strings.Fields(strings.TrimPrefix(content, config.DefaultCommandPrefix))
	if len(fields) == 0 {
		return "", "", false
	}
	cmd = strings.ToLower(fields[0])
	if len(fields) > 1 {
		arg = fields[1]
	}
	return cmd, arg, true
}

// handleRank answers a rank query. Looking up another user with no profile is
// reported as not found; querying yourself always works (zero profile).
func (g *Gateway) handleRank(ctx context.Context, ev bus.InboundEvent, arg string) {
	userID := ev.SenderID
	displayName := ev.DisplayName()
	avatarURL := ev.AvatarURL()

	if arg != "" {
		target, ok := parseUserArg(arg)
		if !ok {
			g.reply(ev, fmt.Sprintf("❓ %q is not a user", arg))
			return
		}
		if target != ev.SenderID {
			p, found := g.engine.Lookup(target)
			if !found {
				g.reply(ev, fmt.Sprintf("❓ No XP recorded for user %s", target))
				return
			}
			g.sendRankCard(ctx, ev, p, mentionFor(ev.Channel, target), "")
			return
		}
	}

	g.sendRankCard(ctx, ev, g.engine.Profile(userID), displayName, avatarURL)
}

func (g *Gateway) sendRankCard(ctx context.Context, ev bus.InboundEvent, p store.UserProfile, displayName, avatarURL string) {
	if g.renderer != nil {
		var avatar []byte
		if avatarURL != "" {
			data, err := card.FetchAvatar(ctx, g.httpClient, avatarURL)
			if err != nil {
				log.Printf("[gateway] avatar fetch failed, rendering without: %v", err)
			} else {
				avatar = data
			}
		}
		img, err := g.renderer.Render(p, displayName, avatar)
		if err == nil {
			g.bus.Outbound <- bus.OutboundMessage{
				Channel:   ev.Channel,
				ChatID:    ev.ChatID,
				Image:     img,
				ImageName: "rank.png",
			}
			return
		}
		log.Printf("[gateway] rank card render failed, falling back to text: %v", err)
	}
	g.reply(ev, card.TextSummary(p, displayName))
}

func (g *Gateway) handleTop(ev bus.InboundEvent, arg string) {
	n := g.cfg.Leaderboard.Size
	if arg != "" {
		if v, err := strconv.Atoi(arg); err == nil && v > 0 {
			n = v
		}
	}

	top := g.engine.TopN(n)
	if len(top) == 0 {
		g.reply(ev, "No XP recorded yet.")
		return
	}

	var sb strings.Builder
	sb.WriteString("🏆 Leaderboard\n")
	for i, p := range top {
		fmt.Fprintf(&sb, "%d. %s — Level %d · %d XP\n", i+1, mentionFor(ev.Channel, p.UserID), p.Level, p.TotalXP)
	}
	g.reply(ev, strings.TrimRight(sb.String(), "\n"))
}

func (g *Gateway) reply(ev bus.InboundEvent, content string) {
	g.bus.Outbound <- bus.OutboundMessage{Channel: ev.Channel, ChatID: ev.ChatID, Content: content}
}

// announceLevelUp routes a level-up notification: chat-triggered ones go to
// the originating chat, voice and tick credits go to the configured announce
// target, or the log when none is set.
func (g *Gateway) announceLevelUp(lu engine.LevelUp, channelName, chatID string) {
	if channelName == "" || chatID == "" {
		channelName = g.cfg.Announce.Channel
		chatID = g.cfg.Announce.ChatID
	}
	if channelName == "" || chatID == "" {
		log.Printf("[gateway] level up: user %s reached level %d", lu.UserID, lu.NewLevel)
		return
	}
	g.bus.Outbound <- bus.OutboundMessage{
		Channel: channelName,
		ChatID:  chatID,
		Content: fmt.Sprintf("🎉 %s reached level %d!", mentionFor(channelName, lu.UserID), lu.NewLevel),
	}
}

// mentionFor formats a user reference for a channel; discord renders <@id>
// as a mention, everything else shows the raw ID.
func mentionFor(channelName, userID string) string {
	if channelName == "discord" {
		return "<@" + userID + ">"
	}
	return userID
}

// parseUserArg accepts <@id>, <@!id> mention forms or a bare numeric ID.
func parseUserArg(arg string) (string, bool) {
	if strings.HasPrefix(arg, "<@") && strings.HasSuffix(arg, ">") {
		arg = strings.TrimSuffix(strings.TrimPrefix(arg, "<@"), ">")
		arg = strings.TrimPrefix(arg, "!")
	}
	if arg == "" {
		return "", false
	}
	for _, r := range arg {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return arg, true
}

func (g *Gateway) Shutdown() error {
	g.ticker.Stop()
	_ = g.channels.StopAll()
	if err := g.store.Save(); err != nil {
		log.Printf("[gateway] final save warning: %v", err)
	}
	log.Printf("[gateway] shutdown complete")
	return nil
}
