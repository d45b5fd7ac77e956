// Package session hosts the real-time session coordinator: room
// membership, per-peer connections, local media and the recording
// lifecycle, all driven by one event loop.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Patellll34/RiversideClone/internal/core"
	"github.com/Patellll34/RiversideClone/internal/domain"
)

var ErrCoordinatorClosed = errors.New("session coordinator closed")

// Config carries the tunables of a coordinator.
type Config struct {
	// GracePeriod is how long a Disconnected peer may recover before
	// its session is torn down.
	GracePeriod time.Duration
	// CodeAttempts bounds room-code regeneration on collision.
	CodeAttempts int
}

func (c Config) withDefaults() Config {
	if c.GracePeriod <= 0 {
		c.GracePeriod = 10 * time.Second
	}
	if c.CodeAttempts <= 0 {
		c.CodeAttempts = 10
	}
	return c
}

// Deps are the external collaborators a coordinator drives.
type Deps struct {
	Signals      core.SignalingChannel
	NewTransport core.TransportFactory
	Devices      core.MediaDevices
	Rooms        core.RoomStore
	Participants core.ParticipantStore
	Recordings   core.RecordingStore
}

// Coordinator owns one participant's live session state. All mutations
// run on a single loop goroutine; public methods post commands and
// asynchronous sources post events, so every transition is atomic with
// respect to everything else in the session.
type Coordinator struct {
	cfg  Config
	deps Deps
	self *domain.User
	logg zerolog.Logger

	inbox chan func()
	quit  chan struct{}
	done  chan struct{}
	stop  sync.Once

	// loop-owned state below; never touched off the loop goroutine.
	room      *domain.Room
	present   []domain.Participant
	peers     map[domain.UserID]*peerSession
	peerEpoch uint64
	media     mediaController
	rec       *recordingSession
	recPhase  RecordingPhase
	tick      <-chan time.Time

	sigCtx    context.Context
	sigCancel context.CancelFunc

	watchMu  sync.Mutex
	watchSeq int
	watchers map[int]chan Snapshot
}

// New builds a coordinator for one authenticated user. Call Close when
// the session owner goes away; it performs an implicit leave.
func New(self *domain.User, cfg Config, deps Deps) *Coordinator {
	c := &Coordinator{
		cfg:      cfg.withDefaults(),
		deps:     deps,
		self:     self,
		logg:     log.With().Str("module", "session").Str("user", string(self.ID)).Logger(),
		inbox:    make(chan func(), 128),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		peers:    make(map[domain.UserID]*peerSession),
		watchers: make(map[int]chan Snapshot),
	}
	c.media = newMediaController(deps.Devices, c)
	go c.loop()
	return c
}

func (c *Coordinator) loop() {
	defer close(c.done)
	for {
		select {
		case <-c.quit:
			c.teardown()
			return
		case fn := <-c.inbox:
			fn()
		case <-c.tick:
			// The recording tick has its own case so signaling bursts
			// cannot starve it.
			c.onTick()
		}
	}
}

// post delivers an asynchronous event to the loop. Must not be called
// from the loop goroutine itself.
func (c *Coordinator) post(fn func()) {
	select {
	case c.inbox <- fn:
	case <-c.done:
	}
}

// do runs fn on the loop and waits for its result.
func (c *Coordinator) do(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	select {
	case c.inbox <- func() { errc <- fn() }:
	case <-c.done:
		return ErrCoordinatorClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-errc:
		return err
	case <-c.done:
		return ErrCoordinatorClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close tears the whole session down: in-flight recording stopped,
// every peer session closed, devices released. Idempotent.
func (c *Coordinator) Close() {
	c.stop.Do(func() { close(c.quit) })
	<-c.done
}

// teardown runs on the loop as its final act.
func (c *Coordinator) teardown() {
	if err := c.leave(context.Background()); err != nil {
		c.logg.Error().Err(err).Msg("teardown leave")
	}
	c.watchMu.Lock()
	for id, ch := range c.watchers {
		close(ch)
		delete(c.watchers, id)
	}
	c.watchMu.Unlock()
}
