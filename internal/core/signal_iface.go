// Package core defines the interfaces the session coordinator consumes.
// Implementations live in internal/adapters and internal/store.
package core

import (
	"context"

	"github.com/Patellll34/RiversideClone/internal/domain"
)

// SignalKind discriminates membership events from signaling payloads.
type SignalKind int

const (
	SignalPeerJoined SignalKind = iota
	SignalPeerLeft
	SignalPayload
)

// SignalEvent is one delivery from a room's signaling channel.
// Payload is an opaque offer/answer/candidate blob; the coordinator
// never interprets it beyond its own envelope.
type SignalEvent struct {
	Kind    SignalKind
	From    domain.UserID
	Payload []byte
}

// SignalingChannel is a per-room publish/subscribe side channel.
// Events from a given peer arrive in publish order; there is no
// ordering guarantee across peers.
type SignalingChannel interface {
	// Subscribe delivers the room's events addressed to self (or to
	// everyone) until ctx is canceled. Own events are filtered out.
	Subscribe(ctx context.Context, room domain.RoomID, self domain.UserID) (<-chan SignalEvent, error)

	// Publish sends an opaque payload to a single peer in the room.
	Publish(ctx context.Context, room domain.RoomID, from, to domain.UserID, payload []byte) error

	// Announce broadcasts own presence change to the room.
	Announce(ctx context.Context, room domain.RoomID, self domain.UserID, joined bool) error
}
