package bus

import "time"

// EventKind distinguishes the three inbound triggers the accrual engine
// consumes from a host platform.
type EventKind int

const (
	EventChatMessage EventKind = iota
	EventVoiceJoin
	EventVoiceLeave
)

func (k EventKind) String() string {
	switch k {
	case EventChatMessage:
		return "chat"
	case EventVoiceJoin:
		return "voice-join"
	case EventVoiceLeave:
		return "voice-leave"
	default:
		return "unknown"
	}
}

// InboundEvent is one platform event normalized by a channel adapter.
// Content is only set for chat messages.
type InboundEvent struct {
	Channel   string
	Kind      EventKind
	SenderID  string
	ChatID    string
	Content   string
	Timestamp time.Time
	Metadata  map[string]any // display_name, avatar_url, ... adapter-specific
}

// DisplayName pulls the adapter-provided display name, falling back to the
// sender ID.
func (e *InboundEvent) DisplayName() string {
	if name, ok := e.Metadata["display_name"].(string); ok && name != "" {
		return name
	}
	return e.SenderID
}

// AvatarURL pulls the adapter-provided avatar URL, if any.
func (e *InboundEvent) AvatarURL() string {
	url, _ := e.Metadata["avatar_url"].(string)
	return url
}

// OutboundMessage is a reply or announcement routed back to one channel.
// Image carries rendered rank-card bytes; adapters that cannot send images
// fall back to Content.
type OutboundMessage struct {
	Channel   string
	ChatID    string
	Content   string
	Image     []byte
	ImageName string
}
