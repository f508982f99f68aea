package bus

import (
	"context"
	"testing"
	"time"
)

func TestDispatchOutbound_RoutesByChannel(t *testing.T) {
	b := NewMessageBus(10)

	got := make(chan OutboundMessage, 1)
	b.SubscribeOutbound("discord", func(msg OutboundMessage) {
		got <- msg
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.DispatchOutbound(ctx)

	b.Outbound <- OutboundMessage{Channel: "discord", ChatID: "c1", Content: "hi"}

	select {
	case msg := <-got:
		if msg.ChatID != "c1" || msg.Content != "hi" {
			t.Errorf("msg = %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}
}

func TestDispatchOutbound_DropsUnknownChannel(t *testing.T) {
	b := NewMessageBus(10)

	got := make(chan OutboundMessage, 1)
	b.SubscribeOutbound("telegram", func(msg OutboundMessage) {
		got <- msg
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.DispatchOutbound(ctx)

	b.Outbound <- OutboundMessage{Channel: "nowhere", Content: "lost"}
	b.Outbound <- OutboundMessage{Channel: "telegram", Content: "kept"}

	select {
	case msg := <-got:
		if msg.Content != "kept" {
			t.Errorf("content = %q, want kept", msg.Content)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch stalled on unknown channel")
	}
}

func TestInboundEvent_Accessors(t *testing.T) {
	ev := InboundEvent{
		SenderID: "42",
		Metadata: map[string]any{
			"display_name": "alice",
			"avatar_url":   "https://cdn.example/a.png",
		},
	}
	if ev.DisplayName() != "alice" {
		t.Errorf("DisplayName = %q", ev.DisplayName())
	}
	if ev.AvatarURL() != "https://cdn.example/a.png" {
		t.Errorf("AvatarURL = %q", ev.AvatarURL())
	}

	bare := InboundEvent{SenderID: "42"}
	if bare.DisplayName() != "42" {
		t.Errorf("DisplayName fallback = %q, want 42", bare.DisplayName())
	}
	if bare.AvatarURL() != "" {
		t.Errorf("AvatarURL = %q, want empty", bare.AvatarURL())
	}
}

func TestEventKind_String(t *testing.T) {
	tests := []struct {
		kind EventKind
		want string
	}{
		{EventChatMessage, "chat"},
		{EventVoiceJoin, "voice-join"},
		{EventVoiceLeave, "voice-leave"},
		{EventKind(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
