// Package signal carries membership announcements and opaque
// negotiation payloads between participants of a room.
package signal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Patellll34/RiversideClone/internal/core"
	"github.com/Patellll34/RiversideClone/internal/domain"
)

const (
	kindJoined  = "joined"
	kindLeft    = "left"
	kindPayload = "payload"
)

// wireSignal is the channel frame. To empty means broadcast.
type wireSignal struct {
	Kind    string          `json:"kind"`
	From    string          `json:"from"`
	To      string          `json:"to,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// RedisChannel implements core.SignalingChannel on redis pub/sub.
// A single subscription per room preserves per-peer delivery order.
type RedisChannel struct {
	client *redis.Client
}

func NewRedisChannel(client *redis.Client) *RedisChannel {
	return &RedisChannel{client: client}
}

func channelName(room domain.RoomID) string { return "signal:room:" + string(room) }

func (c *RedisChannel) Subscribe(ctx context.Context, room domain.RoomID, self domain.UserID) (<-chan core.SignalEvent, error) {
	sub := c.client.Subscribe(ctx, channelName(room))
	// Force the subscription before returning so no event is missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channelName(room), err)
	}

	out := make(chan core.SignalEvent, 32)
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				ev, deliver := decode(msg.Payload, self)
				if !deliver {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func decode(raw string, self domain.UserID) (core.SignalEvent, bool) {
	var ws wireSignal
	if err := json.Unmarshal([]byte(raw), &ws); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad wire signal")
		return core.SignalEvent{}, false
	}
	if ws.From == string(self) {
		return core.SignalEvent{}, false
	}
	if ws.To != "" && ws.To != string(self) {
		return core.SignalEvent{}, false
	}
	ev := core.SignalEvent{From: domain.UserID(ws.From), Payload: ws.Payload}
	switch ws.Kind {
	case kindJoined:
		ev.Kind = core.SignalPeerJoined
	case kindLeft:
		ev.Kind = core.SignalPeerLeft
	case kindPayload:
		ev.Kind = core.SignalPayload
	default:
		return core.SignalEvent{}, false
	}
	return ev, true
}

func (c *RedisChannel) Publish(ctx context.Context, room domain.RoomID, from, to domain.UserID, payload []byte) error {
	return c.publish(ctx, room, wireSignal{
		Kind:    kindPayload,
		From:    string(from),
		To:      string(to),
		Payload: payload,
	})
}

func (c *RedisChannel) Announce(ctx context.Context, room domain.RoomID, self domain.UserID, joined bool) error {
	kind := kindJoined
	if !joined {
		kind = kindLeft
	}
	return c.publish(ctx, room, wireSignal{Kind: kind, From: string(self)})
}

func (c *RedisChannel) publish(ctx context.Context, room domain.RoomID, ws wireSignal) error {
	data, err := json.Marshal(ws)
	if err != nil {
		return err
	}
	if err := c.client.Publish(ctx, channelName(room), data).Err(); err != nil {
		return fmt.Errorf("%w: publish: %w", domain.ErrSignalingError, err)
	}
	return nil
}
