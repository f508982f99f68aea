package channel

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/stellarlinkco/levelbot/internal/bus"
	"github.com/stellarlinkco/levelbot/internal/config"
)

const discordChannelName = "discord"

// defaultMovePrefix is the voice move command word when none is configured.
const defaultMovePrefix = "move"

type DiscordChannel struct {
	BaseChannel
	token       string
	movePrefix  string
	guildFilter map[string]struct{}
	session     *discordgo.Session
	cancel      context.CancelFunc
}

func NewDiscordChannel(cfg config.DiscordConfig, b *bus.MessageBus) (*DiscordChannel, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("discord token is required")
	}
	movePrefix := cfg.MovePrefix
	if movePrefix == "" {
		movePrefix = defaultMovePrefix
	}
	var guilds map[string]struct{}
	if len(cfg.GuildFilter) > 0 {
		guilds = make(map[string]struct{}, len(cfg.GuildFilter))
		for _, id := range cfg.GuildFilter {
			guilds[id] = struct{}{}
		}
	}
	return &DiscordChannel{
		BaseChannel: NewBaseChannel(discordChannelName, b, cfg.AllowFrom),
		token:       cfg.Token,
		movePrefix:  movePrefix,
		guildFilter: guilds,
	}, nil
}

func (d *DiscordChannel) Start(ctx context.Context) error {
	s, err := discordgo.New("Bot " + d.token)
	if err != nil {
		return fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentGuilds |
		discordgo.IntentGuildMembers |
		discordgo.IntentGuildMessages |
		discordgo.IntentGuildVoiceStates |
		discordgo.IntentMessageContent

	s.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		log.Printf("[discord] logged in as %s#%s", r.User.Username, r.User.Discriminator)
	})
	s.AddHandler(d.handleMessage)
	s.AddHandler(d.handleVoiceState)

	if err := s.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	d.session = s

	ctx, d.cancel = context.WithCancel(ctx)
	go func() {
		<-ctx.Done()
		_ = d.Stop()
	}()
	return nil
}

func (d *DiscordChannel) Stop() error {
	if d.cancel != nil {
		d.cancel()
	}
	if d.session != nil {
		return d.session.Close()
	}
	return nil
}

func (d *DiscordChannel) inGuildScope(guildID string) bool {
	if len(d.guildFilter) == 0 {
		return true
	}
	_, ok := d.guildFilter[guildID]
	return ok
}

func (d *DiscordChannel) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if !d.inGuildScope(m.GuildID) || !d.IsAllowed(m.Author.ID) {
		return
	}

	// The voice move command needs guild state and permissions, so it is
	// resolved here instead of in the gateway. The message still flows to
	// the bus afterwards like any other chat activity.
	if req, ok := parseMoveCommand(m.Content, d.movePrefix); ok {
		reply := d.executeMove(s, m, req)
		if reply != "" {
			if _, err := s.ChannelMessageSend(m.ChannelID, reply); err != nil {
				log.Printf("[discord] move reply failed: %v", err)
			}
		}
	}

	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	d.bus.Inbound <- bus.InboundEvent{
		Channel:   discordChannelName,
		Kind:      bus.EventChatMessage,
		SenderID:  m.Author.ID,
		ChatID:    m.ChannelID,
		Content:   m.Content,
		Timestamp: ts,
		Metadata: map[string]any{
			"display_name": displayName(m),
			"avatar_url":   m.Author.AvatarURL("256"),
			"guild_id":     m.GuildID,
		},
	}
}

func displayName(m *discordgo.MessageCreate) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	return m.Author.Username
}

// handleVoiceState turns raw voice-state updates into join/leave events.
// Channel-to-channel moves keep the crediting session open and emit nothing.
func (d *DiscordChannel) handleVoiceState(_ *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if v == nil || v.UserID == "" || !d.inGuildScope(v.GuildID) {
		return
	}
	var before string
	if v.BeforeUpdate != nil {
		before = v.BeforeUpdate.ChannelID
	}
	kind, ok := classifyVoiceTransition(before, v.ChannelID)
	if !ok {
		return
	}
	d.bus.Inbound <- bus.InboundEvent{
		Channel:   discordChannelName,
		Kind:      kind,
		SenderID:  v.UserID,
		Timestamp: time.Now(),
		Metadata:  map[string]any{"guild_id": v.GuildID},
	}
}

// classifyVoiceTransition maps (previous channel, new channel) onto the two
// session transitions the tracker understands.
func classifyVoiceTransition(beforeChannelID, afterChannelID string) (bus.EventKind, bool) {
	switch {
	case afterChannelID != "" && beforeChannelID == "":
		return bus.EventVoiceJoin, true
	case afterChannelID == "" && beforeChannelID != "":
		return bus.EventVoiceLeave, true
	default:
		return 0, false
	}
}

func (d *DiscordChannel) Send(msg bus.OutboundMessage) error {
	if d.session == nil {
		return fmt.Errorf("discord session not started")
	}
	if len(msg.Image) > 0 {
		name := msg.ImageName
		if name == "" {
			name = "rank.png"
		}
		_, err := d.session.ChannelMessageSendComplex(msg.ChatID, &discordgo.MessageSend{
			Content: msg.Content,
			Files: []*discordgo.File{{
				Name:        name,
				ContentType: "image/png",
				Reader:      bytes.NewReader(msg.Image),
			}},
		})
		return err
	}
	_, err := d.session.ChannelMessageSend(msg.ChatID, msg.Content)
	return err
}

// moveRequest is a parsed voice move command: move the target into either a
// second user's channel, a named channel, or (neither set) the author's.
type moveRequest struct {
	TargetID        string
	DestUserID      string
	DestChannelName string
}

// parseMoveCommand recognizes "<prefix> <user> [<user>|<channel name...>]".
// Users are given as mentions or raw numeric IDs.
func parseMoveCommand(content, prefix string) (moveRequest, bool) {
	fields := strings.Fields(content)
	if len(fields) < 2 || !strings.EqualFold(fields[0], prefix) {
		return moveRequest{}, false
	}
	target, ok := parseUserToken(fields[1])
	if !ok {
		return moveRequest{}, false
	}
	req := moveRequest{TargetID: target}
	if len(fields) >= 3 {
		if dest, ok := parseUserToken(fields[2]); ok && len(fields) == 3 {
			req.DestUserID = dest
		} else {
			req.DestChannelName = strings.Join(fields[2:], " ")
		}
	}
	return req, true
}

// parseUserToken accepts <@id>, <@!id> mention forms or a bare numeric ID.
func parseUserToken(tok string) (string, bool) {
	if strings.HasPrefix(tok, "<@") && strings.HasSuffix(tok, ">") {
		tok = strings.TrimSuffix(strings.TrimPrefix(tok, "<@"), ">")
		tok = strings.TrimPrefix(tok, "!")
	}
	if tok == "" {
		return "", false
	}
	for _, r := range tok {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return tok, true
}

// guildVoice is the slice of guild state the move command needs; the fake in
// tests implements it.
type guildVoice interface {
	memberVoiceChannel(guildID, userID string) (string, bool)
	voiceChannelByName(guildID, name string) (string, bool)
	canMoveMembers(userID, channelID string) (bool, error)
	move(guildID, userID, channelID string) error
}

func (d *DiscordChannel) executeMove(s *discordgo.Session, m *discordgo.MessageCreate, req moveRequest) string {
	return resolveMove(&sessionGuildVoice{s: s}, m.GuildID, m.Author.ID, m.ChannelID, req)
}

// resolveMove validates permissions and channel state for a move request and
// performs it, returning the chat reply. Every failure is a reply, never an
// error that escapes.
func resolveMove(gv guildVoice, guildID, authorID, messageChannelID string, req moveRequest) string {
	allowed, err := gv.canMoveMembers(authorID, messageChannelID)
	if err != nil {
		log.Printf("[discord] permission check failed: %v", err)
		return "❌ Could not verify permissions."
	}
	if !allowed {
		return "❌ You don't have permission to move members!"
	}

	if _, ok := gv.memberVoiceChannel(guildID, req.TargetID); !ok {
		return fmt.Sprintf("❌ <@%s> is not in a voice channel!", req.TargetID)
	}

	var destChannelID string
	switch {
	case req.DestUserID != "":
		id, ok := gv.memberVoiceChannel(guildID, req.DestUserID)
		if !ok {
			return fmt.Sprintf("❌ <@%s> is not in a voice channel!", req.DestUserID)
		}
		destChannelID = id
	case req.DestChannelName != "":
		id, ok := gv.voiceChannelByName(guildID, req.DestChannelName)
		if !ok {
			return fmt.Sprintf("❌ Voice channel %q not found!", req.DestChannelName)
		}
		destChannelID = id
	default:
		id, ok := gv.memberVoiceChannel(guildID, authorID)
		if !ok {
			return "❌ You must be in a voice channel!"
		}
		destChannelID = id
	}

	if err := gv.move(guildID, req.TargetID, destChannelID); err != nil {
		log.Printf("[discord] move failed: %v", err)
		return fmt.Sprintf("❌ Error: %v", err)
	}
	return fmt.Sprintf("✅ Moved <@%s> to <#%s>", req.TargetID, destChannelID)
}

// sessionGuildVoice backs guildVoice with live session and guild state.
type sessionGuildVoice struct {
	s *discordgo.Session
}

func (g *sessionGuildVoice) memberVoiceChannel(guildID, userID string) (string, bool) {
	guild, err := g.s.State.Guild(guildID)
	if err != nil {
		return "", false
	}
	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID && vs.ChannelID != "" {
			return vs.ChannelID, true
		}
	}
	return "", false
}

func (g *sessionGuildVoice) voiceChannelByName(guildID, name string) (string, bool) {
	guild, err := g.s.State.Guild(guildID)
	if err != nil {
		return "", false
	}
	for _, ch := range guild.Channels {
		if ch.Type == discordgo.ChannelTypeGuildVoice && strings.EqualFold(ch.Name, name) {
			return ch.ID, true
		}
	}
	return "", false
}

func (g *sessionGuildVoice) canMoveMembers(userID, channelID string) (bool, error) {
	perms, err := g.s.UserChannelPermissions(userID, channelID)
	if err != nil {
		return false, err
	}
	return perms&discordgo.PermissionVoiceMoveMembers != 0, nil
}

func (g *sessionGuildVoice) move(guildID, userID, channelID string) error {
	return g.s.GuildMemberMove(guildID, userID, &channelID)
}
