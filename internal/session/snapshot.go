package session

import (
	"context"

	"github.com/Patellll34/RiversideClone/internal/core"
	"github.com/Patellll34/RiversideClone/internal/domain"
)

// MediaState is the observable local capture state.
type MediaState struct {
	Video  bool `json:"video"`
	Audio  bool `json:"audio"`
	Screen bool `json:"screen"`
}

type RemoteTrackInfo struct {
	ID   string         `json:"id"`
	Kind core.TrackKind `json:"kind"`
}

type PeerInfo struct {
	ID     domain.UserID     `json:"id"`
	State  PeerState         `json:"state"`
	Tracks []RemoteTrackInfo `json:"tracks"`
}

type RecordingInfo struct {
	ID      domain.RecordingID     `json:"id"`
	Title   string                 `json:"title"`
	Status  domain.RecordingStatus `json:"status"`
	Elapsed int                    `json:"elapsed"`
}

// Snapshot is the read-only view consumers render. It carries copies;
// holding one never pins live session state.
type Snapshot struct {
	Room         *domain.Room         `json:"room,omitempty"`
	Participants []domain.Participant `json:"participants"`
	Peers        []PeerInfo           `json:"peers"`
	Media        MediaState           `json:"media"`
	Recording    *RecordingInfo       `json:"recording,omitempty"`
	Phase        RecordingPhase       `json:"recording_phase"`
}

// Snapshot returns the current observable state.
func (c *Coordinator) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := c.do(ctx, func() error {
		snap = c.snapshot()
		return nil
	})
	return snap, err
}

// snapshot runs on the loop.
func (c *Coordinator) snapshot() Snapshot {
	snap := Snapshot{
		Media: c.media.state(),
		Phase: c.recPhase,
	}
	if c.room != nil {
		room := *c.room
		snap.Room = &room
	}
	snap.Participants = append(snap.Participants, c.present...)
	for id, ps := range c.peers {
		info := PeerInfo{ID: id, State: ps.state}
		for _, rt := range ps.remote {
			info.Tracks = append(info.Tracks, RemoteTrackInfo{ID: rt.ID(), Kind: rt.Kind()})
		}
		snap.Peers = append(snap.Peers, info)
	}
	if c.rec != nil {
		snap.Recording = &RecordingInfo{
			ID:      c.rec.rec.ID,
			Title:   c.rec.rec.Title,
			Status:  c.rec.rec.Status,
			Elapsed: c.rec.elapsed,
		}
	}
	return snap
}

// Watch subscribes to state changes. Slow consumers miss intermediate
// snapshots instead of blocking the session.
func (c *Coordinator) Watch() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)
	c.watchMu.Lock()
	c.watchSeq++
	id := c.watchSeq
	c.watchers[id] = ch
	c.watchMu.Unlock()

	cancel := func() {
		c.watchMu.Lock()
		if w, ok := c.watchers[id]; ok {
			delete(c.watchers, id)
			close(w)
		}
		c.watchMu.Unlock()
	}
	return ch, cancel
}

// notify runs on the loop after a state change.
func (c *Coordinator) notify() {
	snap := c.snapshot()
	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	for _, ch := range c.watchers {
		select {
		case ch <- snap:
		default:
		}
	}
}
