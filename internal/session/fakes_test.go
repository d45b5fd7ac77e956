package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Patellll34/RiversideClone/internal/adapters/signal"
	"github.com/Patellll34/RiversideClone/internal/core"
	"github.com/Patellll34/RiversideClone/internal/domain"
	"github.com/Patellll34/RiversideClone/internal/store"
)

const (
	waitFor  = 2 * time.Second
	pollTick = 5 * time.Millisecond
)

type fakeTrack struct {
	mu      sync.Mutex
	id      string
	kind    core.TrackKind
	enabled bool
	onEnded func()
	closed  bool
}

func newFakeTrack(id string, kind core.TrackKind) *fakeTrack {
	return &fakeTrack{id: id, kind: kind, enabled: true}
}

func (t *fakeTrack) ID() string          { return t.id }
func (t *fakeTrack) Kind() core.TrackKind { return t.kind }

func (t *fakeTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *fakeTrack) SetEnabled(on bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = on
}

func (t *fakeTrack) OnEnded(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onEnded = fn
}

func (t *fakeTrack) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *fakeTrack) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// End simulates the source terminating on its own.
func (t *fakeTrack) End() {
	t.mu.Lock()
	fn := t.onEnded
	closed := t.closed
	t.mu.Unlock()
	if fn != nil && !closed {
		fn()
	}
}

type fakeDevices struct {
	mu          sync.Mutex
	seq         int
	userErr     error
	displayErr  error
	cameras    []*fakeTrack
	mics       []*fakeTrack
	screens    []*fakeTrack
}

func (d *fakeDevices) AcquireUserMedia(video, audio bool) (core.Track, core.Track, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.userErr != nil {
		return nil, nil, d.userErr
	}
	var cam, mic core.Track
	if video {
		d.seq++
		t := newFakeTrack(fmt.Sprintf("camera-%d", d.seq), core.TrackKindVideo)
		d.cameras = append(d.cameras, t)
		cam = t
	}
	if audio {
		d.seq++
		t := newFakeTrack(fmt.Sprintf("mic-%d", d.seq), core.TrackKindAudio)
		d.mics = append(d.mics, t)
		mic = t
	}
	return cam, mic, nil
}

func (d *fakeDevices) AcquireDisplay() (core.Track, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.displayErr != nil {
		return nil, d.displayErr
	}
	d.seq++
	t := newFakeTrack(fmt.Sprintf("screen-%d", d.seq), core.TrackKindVideo)
	d.screens = append(d.screens, t)
	return t, nil
}

func (d *fakeDevices) lastCamera() *fakeTrack {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.cameras) == 0 {
		return nil
	}
	return d.cameras[len(d.cameras)-1]
}

func (d *fakeDevices) lastScreen() *fakeTrack {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.screens) == 0 {
		return nil
	}
	return d.screens[len(d.screens)-1]
}

type fakeTransport struct {
	mu       sync.Mutex
	peer     domain.UserID
	started  bool
	closed   bool
	attached []core.Track
	replaced map[core.TrackKind]core.Track

	offersMade int
	offers     [][]byte
	answers    [][]byte
	candidates [][]byte

	onCandidate func([]byte)
	onState     func(core.TransportState)
	onRemote    func(core.RemoteTrack)
}

func (t *fakeTransport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.started = true
	return nil
}

func (t *fakeTransport) AttachTrack(tr core.Track) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attached = append(t.attached, tr)
	return nil
}

func (t *fakeTransport) ReplaceTrack(kind core.TrackKind, tr core.Track) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.replaced[kind] = tr
	return nil
}

func (t *fakeTransport) CreateOffer(ctx context.Context) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.offersMade++
	return []byte(`"offer-` + string(t.peer) + `"`), nil
}

func (t *fakeTransport) AcceptOffer(ctx context.Context, offer []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.offers = append(t.offers, offer)
	return []byte(`"answer-` + string(t.peer) + `"`), nil
}

func (t *fakeTransport) AcceptAnswer(answer []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.answers = append(t.answers, answer)
	return nil
}

func (t *fakeTransport) AddCandidate(candidate []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.candidates = append(t.candidates, candidate)
	return nil
}

func (t *fakeTransport) OnCandidate(fn func([]byte)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onCandidate = fn
}

func (t *fakeTransport) OnStateChange(fn func(core.TransportState)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onState = fn
}

func (t *fakeTransport) OnRemoteTrack(fn func(core.RemoteTrack)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onRemote = fn
}

func (t *fakeTransport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
}

func (t *fakeTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *fakeTransport) replacedTrack(kind core.TrackKind) core.Track {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.replaced[kind]
}

func (t *fakeTransport) gotAnswer() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.answers) > 0
}

func (t *fakeTransport) gotOffer() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.offers) > 0
}

func (t *fakeTransport) madeOffers() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.offersMade
}

func (t *fakeTransport) candidateCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.candidates)
}

func (t *fakeTransport) fireCandidate(cand []byte) {
	t.mu.Lock()
	fn := t.onCandidate
	t.mu.Unlock()
	if fn != nil {
		fn(cand)
	}
}

// fireState simulates a platform connection state change. Call from the
// test goroutine only.
func (t *fakeTransport) fireState(s core.TransportState) {
	t.mu.Lock()
	fn := t.onState
	t.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

type fakeRemoteTrack struct {
	id   string
	kind core.TrackKind
}

func (r fakeRemoteTrack) ID() string           { return r.id }
func (r fakeRemoteTrack) Kind() core.TrackKind { return r.kind }

func (t *fakeTransport) fireRemoteTrack(id string, kind core.TrackKind) {
	t.mu.Lock()
	fn := t.onRemote
	t.mu.Unlock()
	if fn != nil {
		fn(fakeRemoteTrack{id: id, kind: kind})
	}
}

// fakeTransports is one coordinator's transport factory. It remembers
// every transport it handed out, keyed by the remote peer.
type fakeTransports struct {
	mu      sync.Mutex
	created int
	byPeer  map[domain.UserID][]*fakeTransport
	err     error
}

func newFakeTransports() *fakeTransports {
	return &fakeTransports{byPeer: make(map[domain.UserID][]*fakeTransport)}
}

func (f *fakeTransports) factory(peer domain.UserID) (core.PeerTransport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.created++
	t := &fakeTransport{peer: peer, replaced: make(map[core.TrackKind]core.Track)}
	f.byPeer[peer] = append(f.byPeer[peer], t)
	return t, nil
}

// toward returns the latest transport created for peer, or nil.
func (f *fakeTransports) toward(peer domain.UserID) *fakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	ts := f.byPeer[peer]
	if len(ts) == 0 {
		return nil
	}
	return ts[len(ts)-1]
}

func (f *fakeTransports) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

// testEnv bundles the shared collaborators of a multi-user test.
type testEnv struct {
	t       *testing.T
	cfg     Config
	mem     *store.Memory
	signals *signal.LocalChannel
}

func newTestEnv(t *testing.T) *testEnv {
	return &testEnv{
		t:       t,
		cfg:     Config{GracePeriod: 40 * time.Millisecond},
		mem:     store.NewMemory(),
		signals: signal.NewLocalChannel(),
	}
}

type testUser struct {
	coord      *Coordinator
	devices    *fakeDevices
	transports *fakeTransports
}

func (e *testEnv) user(id domain.UserID) *testUser {
	u := &testUser{
		devices:    &fakeDevices{},
		transports: newFakeTransports(),
	}
	u.coord = New(&domain.User{ID: id, Username: string(id)}, e.cfg, Deps{
		Signals:      e.signals,
		NewTransport: u.transports.factory,
		Devices:      u.devices,
		Rooms:        e.mem.Rooms(),
		Participants: e.mem.Participants(),
		Recordings:   e.mem.Recordings(),
	})
	e.t.Cleanup(u.coord.Close)
	return u
}

func (u *testUser) snapshot(t *testing.T) Snapshot {
	t.Helper()
	snap, err := u.coord.Snapshot(context.Background())
	require.NoError(t, err)
	return snap
}

// peerState polls until the peer reaches want, failing the test on
// timeout.
func (u *testUser) awaitPeerState(t *testing.T, peer domain.UserID, want PeerState) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, p := range u.snapshot(t).Peers {
			if p.ID == peer && p.State == want {
				return true
			}
		}
		return false
	}, waitFor, pollTick, "peer %s never reached %s", peer, want)
}

func (u *testUser) awaitPeerGone(t *testing.T, peer domain.UserID) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, p := range u.snapshot(t).Peers {
			if p.ID == peer {
				return false
			}
		}
		return true
	}, waitFor, pollTick, "peer %s still present", peer)
}

var errDeviceBusy = errors.New("device busy")
