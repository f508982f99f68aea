// Package channel adapts host chat platforms to the bus: each adapter
// normalizes platform events into inbound events and delivers outbound
// replies.
package channel

import (
	"context"

	"github.com/stellarlinkco/levelbot/internal/bus"
)

type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	Send(msg bus.OutboundMessage) error
}

// BaseChannel carries the pieces every adapter shares: its name, the bus and
// the optional sender allowlist.
type BaseChannel struct {
	name      string
	bus       *bus.MessageBus
	allowFrom map[string]struct{}
}

func NewBaseChannel(name string, b *bus.MessageBus, allowFrom []string) BaseChannel {
	var allow map[string]struct{}
	if len(allowFrom) > 0 {
		allow = make(map[string]struct{}, len(allowFrom))
		for _, id := range allowFrom {
			allow[id] = struct{}{}
		}
	}
	return BaseChannel{name: name, bus: b, allowFrom: allow}
}

func (b *BaseChannel) Name() string {
	return b.name
}

// IsAllowed reports whether a sender passes the allowlist. An empty list
// allows everyone.
func (b *BaseChannel) IsAllowed(senderID string) bool {
	if len(b.allowFrom) == 0 {
		return true
	}
	_, ok := b.allowFrom[senderID]
	return ok
}
