package rtc

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/Patellll34/RiversideClone/internal/core"
)

// Devices implements core.MediaDevices with static sample tracks: the
// capture pump feeding them lives with the caller, this layer only
// owns track identity and the enabled flag.
type Devices struct{}

func NewDevices() *Devices { return &Devices{} }

func (d *Devices) AcquireUserMedia(video, audio bool) (core.Track, core.Track, error) {
	var vt, at core.Track
	if video {
		t, err := newLocalTrack(core.TrackKindVideo, webrtc.MimeTypeVP8, "camera")
		if err != nil {
			return nil, nil, err
		}
		vt = t
	}
	if audio {
		t, err := newLocalTrack(core.TrackKindAudio, webrtc.MimeTypeOpus, "microphone")
		if err != nil {
			return nil, nil, err
		}
		at = t
	}
	return vt, at, nil
}

func (d *Devices) AcquireDisplay() (core.Track, error) {
	return newLocalTrack(core.TrackKindVideo, webrtc.MimeTypeVP8, "screen")
}

// localTrack is the sole concrete core.Track of this adapter; the
// transport unwraps it to the underlying pion track.
type localTrack struct {
	id      string
	kind    core.TrackKind
	rtp     *webrtc.TrackLocalStaticSample
	enabled atomic.Bool

	mu      sync.Mutex
	onEnded func()
	closed  bool
}

func newLocalTrack(kind core.TrackKind, mimeType, label string) (*localTrack, error) {
	id := label + "-" + uuid.NewString()
	rtp, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: mimeType},
		id, label,
	)
	if err != nil {
		return nil, fmt.Errorf("new %s track: %w", kind, err)
	}
	t := &localTrack{id: id, kind: kind, rtp: rtp}
	t.enabled.Store(true)
	return t, nil
}

func (t *localTrack) ID() string           { return t.id }
func (t *localTrack) Kind() core.TrackKind { return t.kind }
func (t *localTrack) Enabled() bool        { return t.enabled.Load() }

// SetEnabled flips the live flag; the sample pump checks it and writes
// silence/blank frames while off, so remote sides stay attached.
func (t *localTrack) SetEnabled(on bool) { t.enabled.Store(on) }

func (t *localTrack) OnEnded(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onEnded = fn
}

func (t *localTrack) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// End signals source-side termination (the captured surface went
// away). Owner-initiated Close never fires the callback.
func (t *localTrack) End() {
	t.mu.Lock()
	fn := t.onEnded
	closed := t.closed
	t.mu.Unlock()
	if fn != nil && !closed {
		fn()
	}
}
