package session

import (
	"encoding/json"
	"time"

	"github.com/Patellll34/RiversideClone/internal/core"
	"github.com/Patellll34/RiversideClone/internal/domain"
)

// PeerState is the per-peer connection state machine:
// New -> Negotiating -> Connected -> {Disconnected, Failed} -> Closed.
type PeerState int

const (
	PeerNew PeerState = iota
	PeerNegotiating
	PeerConnected
	PeerDisconnected
	PeerFailed
	PeerClosed
)

func (s PeerState) String() string {
	switch s {
	case PeerNew:
		return "new"
	case PeerNegotiating:
		return "negotiating"
	case PeerConnected:
		return "connected"
	case PeerDisconnected:
		return "disconnected"
	case PeerFailed:
		return "failed"
	case PeerClosed:
		return "closed"
	}
	return "unknown"
}

func (s PeerState) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

// live reports whether the session carries negotiated (or negotiating)
// media and should receive local track replacements.
func (s PeerState) live() bool {
	return s == PeerNegotiating || s == PeerConnected || s == PeerDisconnected
}

type peerSession struct {
	id        domain.UserID
	epoch     uint64
	state     PeerState
	transport core.PeerTransport
	remote    map[string]core.RemoteTrack
	grace     *time.Timer
}

// envelope frames signaling payloads between two coordinators. The
// inner blobs stay opaque to everything but the transport.
type envelope struct {
	Type string          `json:"type"` // offer | answer | candidate
	Data json.RawMessage `json:"data,omitempty"`
}

// reconcile diffs the present participant set against the peer-session
// set. Idempotent: replaying an identical snapshot changes nothing.
// Runs on the loop.
func (c *Coordinator) reconcile(present []domain.Participant) {
	want := make(map[domain.UserID]bool, len(present))
	for _, p := range present {
		if p.UserID != c.self.ID {
			want[p.UserID] = true
		}
	}
	for id := range want {
		if _, ok := c.peers[id]; !ok {
			c.createPeer(id)
		}
	}
	for id, ps := range c.peers {
		if !want[id] {
			c.closePeer(ps)
		}
	}
}

// initiates decides who sends the offer when both sides discover each
// other at once: the lexicographically smaller id initiates. Both ends
// compute the same answer, so no duplicate-offer race is possible.
func (c *Coordinator) initiates(peer domain.UserID) bool {
	return c.self.ID < peer
}

// createPeer builds a transport toward peer and, when this side
// initiates, starts negotiation. A stale session for the same id is
// fully closed first. Runs on the loop.
func (c *Coordinator) createPeer(peer domain.UserID) *peerSession {
	if old, ok := c.peers[peer]; ok {
		c.closePeer(old)
	}

	transport, err := c.deps.NewTransport(peer)
	if err != nil {
		c.logg.Error().Err(err).Str("peer", string(peer)).Msg("transport create")
		return nil
	}

	c.peerEpoch++
	ps := &peerSession{
		id:        peer,
		epoch:     c.peerEpoch,
		state:     PeerNew,
		transport: transport,
		remote:    make(map[string]core.RemoteTrack),
	}
	epoch := ps.epoch

	transport.OnStateChange(func(s core.TransportState) {
		c.post(func() { c.onTransportState(peer, epoch, s) })
	})
	transport.OnRemoteTrack(func(rt core.RemoteTrack) {
		c.post(func() { c.onRemoteTrack(peer, epoch, rt) })
	})
	transport.OnCandidate(func(cand []byte) {
		c.post(func() { c.sendEnvelope(peer, "candidate", cand) })
	})

	ctx := c.sigCtx
	if err := transport.Start(ctx); err != nil {
		c.logg.Error().Err(err).Str("peer", string(peer)).Msg("transport start")
		transport.Close()
		return nil
	}
	for _, t := range c.media.outbound() {
		if err := transport.AttachTrack(t); err != nil {
			c.logg.Error().Err(err).Str("peer", string(peer)).Msg("attach local track")
		}
	}
	c.peers[peer] = ps

	if c.initiates(peer) {
		offer, err := transport.CreateOffer(ctx)
		if err != nil {
			c.logg.Error().Err(err).Str("peer", string(peer)).Msg("create offer")
			c.closePeer(ps)
			return nil
		}
		ps.state = PeerNegotiating
		c.sendEnvelope(peer, "offer", offer)
	}
	c.logg.Info().Str("peer", string(peer)).Bool("initiator", c.initiates(peer)).Msg("peer session created")
	c.notify()
	return ps
}

// closePeer removes the session and discards its remote tracks. Safe
// to call on an already-closed session. Runs on the loop.
func (c *Coordinator) closePeer(ps *peerSession) {
	if ps.state == PeerClosed {
		return
	}
	if ps.grace != nil {
		ps.grace.Stop()
		ps.grace = nil
	}
	ps.state = PeerClosed
	ps.remote = make(map[string]core.RemoteTrack)
	ps.transport.Close()
	delete(c.peers, ps.id)
	c.logg.Info().Str("peer", string(ps.id)).Msg("peer session closed")
	c.notify()
}

// onPeerPayload handles one opaque signaling payload from a peer.
// Errors stay local: a broken exchange never becomes a caller-visible
// failure, the peer just fails to connect. Runs on the loop.
func (c *Coordinator) onPeerPayload(from domain.UserID, payload []byte) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		c.logg.Warn().Err(err).Str("peer", string(from)).Msg("bad signaling payload")
		return
	}

	switch env.Type {
	case "offer":
		ps, ok := c.peers[from]
		if !ok {
			// The peer saw us before our membership refresh did.
			ps = c.createPeer(from)
			if ps == nil {
				return
			}
		}
		answer, err := ps.transport.AcceptOffer(c.sigCtx, env.Data)
		if err != nil {
			c.logg.Error().Err(err).Str("peer", string(from)).Msg("accept offer")
			return
		}
		if ps.state == PeerNew {
			ps.state = PeerNegotiating
		}
		c.sendEnvelope(from, "answer", answer)
		c.notify()
	case "answer":
		ps, ok := c.peers[from]
		if !ok {
			c.logg.Warn().Str("peer", string(from)).Msg("answer for unknown peer")
			return
		}
		if err := ps.transport.AcceptAnswer(env.Data); err != nil {
			c.logg.Error().Err(err).Str("peer", string(from)).Msg("accept answer")
		}
	case "candidate":
		ps, ok := c.peers[from]
		if !ok {
			return
		}
		if err := ps.transport.AddCandidate(env.Data); err != nil {
			c.logg.Warn().Err(err).Str("peer", string(from)).Msg("add candidate")
		}
	default:
		c.logg.Warn().Str("type", env.Type).Str("peer", string(from)).Msg("unknown signaling envelope")
	}
}

func (c *Coordinator) sendEnvelope(peer domain.UserID, typ string, data []byte) {
	if c.room == nil {
		return
	}
	payload, err := json.Marshal(envelope{Type: typ, Data: data})
	if err != nil {
		c.logg.Error().Err(err).Msg("marshal envelope")
		return
	}
	if err := c.deps.Signals.Publish(c.sigCtx, c.room.ID, c.self.ID, peer, payload); err != nil {
		c.logg.Error().Err(err).Str("peer", string(peer)).Str("type", typ).Msg("publish signal")
	}
}

// onTransportState runs on the loop. Events from a replaced transport
// carry a stale epoch and are dropped.
func (c *Coordinator) onTransportState(peer domain.UserID, epoch uint64, s core.TransportState) {
	ps, ok := c.peers[peer]
	if !ok || ps.epoch != epoch {
		return
	}
	switch s {
	case core.TransportConnected:
		if ps.grace != nil {
			ps.grace.Stop()
			ps.grace = nil
		}
		if ps.state == PeerDisconnected {
			c.logg.Info().Str("peer", string(peer)).Msg("peer recovered within grace window")
		}
		ps.state = PeerConnected
		c.notify()
	case core.TransportDisconnected:
		if ps.state != PeerConnected {
			return
		}
		// Transient: hold the session open for the grace window.
		ps.state = PeerDisconnected
		ps.grace = time.AfterFunc(c.cfg.GracePeriod, func() {
			c.post(func() { c.onGraceExpired(peer, epoch) })
		})
		c.notify()
	case core.TransportFailed:
		// Never fatal to the caller; the peer just drops out of the
		// observable set.
		c.logg.Warn().Err(domain.ErrConnectionFailed).Str("peer", string(peer)).Msg("transport failed")
		ps.state = PeerFailed
		c.closePeer(ps)
	case core.TransportClosed:
		if ps.state != PeerClosed {
			c.closePeer(ps)
		}
	}
}

func (c *Coordinator) onGraceExpired(peer domain.UserID, epoch uint64) {
	ps, ok := c.peers[peer]
	if !ok || ps.epoch != epoch || ps.state != PeerDisconnected {
		return
	}
	c.logg.Info().Str("peer", string(peer)).Dur("grace", c.cfg.GracePeriod).Msg("grace window expired")
	c.closePeer(ps)
}

// onRemoteTrack merges an arriving remote track into the peer's set.
func (c *Coordinator) onRemoteTrack(peer domain.UserID, epoch uint64, rt core.RemoteTrack) {
	ps, ok := c.peers[peer]
	if !ok || ps.epoch != epoch || ps.state == PeerClosed {
		return
	}
	ps.remote[rt.ID()] = rt
	c.logg.Info().Str("peer", string(peer)).Str("track", rt.ID()).Str("kind", string(rt.Kind())).Msg("remote track")
	c.notify()
}

// replaceOutbound pushes a local track replacement to every session
// that already carries media. Same-kind swaps need no renegotiation;
// sessions still in New pick the track up in their next offer. Runs on
// the loop, called by the media controller.
func (c *Coordinator) replaceOutbound(kind core.TrackKind, t core.Track) {
	for _, ps := range c.peers {
		if !ps.state.live() {
			continue
		}
		if err := ps.transport.ReplaceTrack(kind, t); err != nil {
			c.logg.Error().Err(err).Str("peer", string(ps.id)).Str("kind", string(kind)).Msg("replace track")
		}
	}
}
