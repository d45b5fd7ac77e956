// Package rtc implements the peer transport and capture collaborators
// on pion/webrtc.
package rtc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/Patellll34/RiversideClone/internal/core"
	"github.com/Patellll34/RiversideClone/internal/domain"
)

// DefaultConfig builds a pion configuration from ICE server URLs.
func DefaultConfig(iceServers []string) webrtc.Configuration {
	if len(iceServers) == 0 {
		iceServers = []string{"stun:stun.l.google.com:19302"}
	}
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: iceServers}},
	}
}

// NewFactory returns a core.TransportFactory over pion peer
// connections.
func NewFactory(cfg webrtc.Configuration) core.TransportFactory {
	return func(peer domain.UserID) (core.PeerTransport, error) {
		pc, err := webrtc.NewPeerConnection(cfg)
		if err != nil {
			return nil, fmt.Errorf("new peer connection: %w", err)
		}
		return &Transport{
			pc:      pc,
			peer:    peer,
			senders: make(map[core.TrackKind]*webrtc.RTPSender),
		}, nil
	}
}

// Transport is one pion peer connection toward a single remote
// participant. Offer, answer and candidate blobs are pion's own JSON
// encodings; nothing outside this package inspects them.
type Transport struct {
	pc   *webrtc.PeerConnection
	peer domain.UserID

	mu      sync.Mutex
	senders map[core.TrackKind]*webrtc.RTPSender

	onCandidate func([]byte)
	onState     func(core.TransportState)
	onTrack     func(core.RemoteTrack)
}

func (t *Transport) Start(ctx context.Context) error {
	t.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("peer", string(t.peer)).Str("state", s.String()).Msg("peer state")
		if t.onState == nil {
			return
		}
		switch s {
		case webrtc.PeerConnectionStateConnecting:
			t.onState(core.TransportConnecting)
		case webrtc.PeerConnectionStateConnected:
			t.onState(core.TransportConnected)
		case webrtc.PeerConnectionStateDisconnected:
			t.onState(core.TransportDisconnected)
		case webrtc.PeerConnectionStateFailed:
			t.onState(core.TransportFailed)
		case webrtc.PeerConnectionStateClosed:
			t.onState(core.TransportClosed)
		}
	})

	t.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil || t.onCandidate == nil {
			return
		}
		data, err := json.Marshal(cand.ToJSON())
		if err != nil {
			log.Error().Err(err).Str("module", "rtc").Msg("marshal candidate")
			return
		}
		t.onCandidate(data)
	})

	t.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "rtc").
			Str("peer", string(t.peer)).
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Msg("remote track")
		if t.onTrack != nil {
			t.onTrack(remoteTrack{id: track.ID(), kind: core.TrackKind(track.Kind().String())})
		}
	})

	return nil
}

func (t *Transport) AttachTrack(tr core.Track) error {
	lt, ok := tr.(*localTrack)
	if !ok {
		return fmt.Errorf("attach: track %s is not an rtc track", tr.ID())
	}
	sender, err := t.pc.AddTrack(lt.rtp)
	if err != nil {
		return fmt.Errorf("add track: %w", err)
	}
	t.mu.Lock()
	t.senders[tr.Kind()] = sender
	t.mu.Unlock()
	return nil
}

func (t *Transport) ReplaceTrack(kind core.TrackKind, tr core.Track) error {
	lt, ok := tr.(*localTrack)
	if !ok {
		return fmt.Errorf("replace: track %s is not an rtc track", tr.ID())
	}
	t.mu.Lock()
	sender, ok := t.senders[kind]
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("replace: no %s sender", kind)
	}
	// Same-kind swap on the live sender; no renegotiation needed.
	if err := sender.ReplaceTrack(lt.rtp); err != nil {
		return fmt.Errorf("replace track: %w", err)
	}
	return nil
}

func (t *Transport) CreateOffer(ctx context.Context) ([]byte, error) {
	offer, err := t.pc.CreateOffer(nil)
	if err != nil {
		return nil, fmt.Errorf("create offer: %w", err)
	}
	if err := t.pc.SetLocalDescription(offer); err != nil {
		return nil, fmt.Errorf("set local description: %w", err)
	}
	return json.Marshal(offer)
}

func (t *Transport) AcceptOffer(ctx context.Context, raw []byte) ([]byte, error) {
	var offer webrtc.SessionDescription
	if err := json.Unmarshal(raw, &offer); err != nil {
		return nil, fmt.Errorf("decode offer: %w", err)
	}
	if err := t.pc.SetRemoteDescription(offer); err != nil {
		return nil, fmt.Errorf("set remote description: %w", err)
	}
	answer, err := t.pc.CreateAnswer(nil)
	if err != nil {
		return nil, fmt.Errorf("create answer: %w", err)
	}
	if err := t.pc.SetLocalDescription(answer); err != nil {
		return nil, fmt.Errorf("set local description: %w", err)
	}
	return json.Marshal(answer)
}

func (t *Transport) AcceptAnswer(raw []byte) error {
	var answer webrtc.SessionDescription
	if err := json.Unmarshal(raw, &answer); err != nil {
		return fmt.Errorf("decode answer: %w", err)
	}
	return t.pc.SetRemoteDescription(answer)
}

func (t *Transport) AddCandidate(raw []byte) error {
	var cand webrtc.ICECandidateInit
	if err := json.Unmarshal(raw, &cand); err != nil {
		return fmt.Errorf("decode candidate: %w", err)
	}
	return t.pc.AddICECandidate(cand)
}

func (t *Transport) OnCandidate(fn func([]byte))            { t.onCandidate = fn }
func (t *Transport) OnStateChange(fn func(core.TransportState)) { t.onState = fn }
func (t *Transport) OnRemoteTrack(fn func(core.RemoteTrack))    { t.onTrack = fn }

func (t *Transport) Close() {
	if err := t.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "rtc").Str("peer", string(t.peer)).Msg("close")
	}
}

type remoteTrack struct {
	id   string
	kind core.TrackKind
}

func (r remoteTrack) ID() string           { return r.id }
func (r remoteTrack) Kind() core.TrackKind { return r.kind }
