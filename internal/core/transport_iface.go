package core

import (
	"context"

	"github.com/Patellll34/RiversideClone/internal/domain"
)

// TransportState is the platform connection state as surfaced to the
// per-peer state machine.
type TransportState int

const (
	TransportConnecting TransportState = iota
	TransportConnected
	TransportDisconnected
	TransportFailed
	TransportClosed
)

func (s TransportState) String() string {
	switch s {
	case TransportConnecting:
		return "connecting"
	case TransportConnected:
		return "connected"
	case TransportDisconnected:
		return "disconnected"
	case TransportFailed:
		return "failed"
	case TransportClosed:
		return "closed"
	}
	return "unknown"
}

// RemoteTrack is a read-side handle to a peer's incoming media.
type RemoteTrack interface {
	ID() string
	Kind() TrackKind
}

// PeerTransport abstracts one point-to-point media session. Offers,
// answers and candidates are opaque blobs carried over the
// SignalingChannel. Callbacks must be registered before Start.
type PeerTransport interface {
	Start(ctx context.Context) error

	AttachTrack(t Track) error
	// ReplaceTrack swaps the outbound track of the given kind without a
	// full renegotiation.
	ReplaceTrack(kind TrackKind, t Track) error

	CreateOffer(ctx context.Context) ([]byte, error)
	// AcceptOffer applies a remote offer and returns the local answer.
	AcceptOffer(ctx context.Context, offer []byte) ([]byte, error)
	AcceptAnswer(answer []byte) error
	AddCandidate(candidate []byte) error

	OnCandidate(func(candidate []byte))
	OnStateChange(func(TransportState))
	OnRemoteTrack(func(RemoteTrack))

	Close()
}

// TransportFactory builds a fresh transport toward one remote peer.
type TransportFactory func(peer domain.UserID) (PeerTransport, error)
