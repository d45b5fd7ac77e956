package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Patellll34/RiversideClone/internal/core"
	"github.com/Patellll34/RiversideClone/internal/domain"
)

// CreateRoom makes the caller host of a fresh active room and enters
// it. A previous room, if any, is left first.
func (c *Coordinator) CreateRoom(ctx context.Context, name domain.RoomName, description string) (*domain.Room, error) {
	var room *domain.Room
	err := c.do(ctx, func() error {
		var err error
		room, err = c.createRoom(ctx, name, description)
		return err
	})
	return room, err
}

// JoinRoom enters an active room by its shareable code.
func (c *Coordinator) JoinRoom(ctx context.Context, code string) (*domain.Room, error) {
	var room *domain.Room
	err := c.do(ctx, func() error {
		var err error
		room, err = c.joinRoom(ctx, code)
		return err
	})
	return room, err
}

// Leave resolves the caller's presence and tears down every peer
// session. No-op when not in a room.
func (c *Coordinator) Leave(ctx context.Context) error {
	return c.do(ctx, func() error { return c.leave(ctx) })
}

// EndRoom deactivates the current room (host only) and leaves it.
// Rooms are deactivated, never deleted; the code dies with them.
func (c *Coordinator) EndRoom(ctx context.Context) error {
	return c.do(ctx, func() error { return c.endRoom(ctx) })
}

func (c *Coordinator) createRoom(ctx context.Context, name domain.RoomName, description string) (*domain.Room, error) {
	if c.self == nil {
		return nil, domain.ErrAuthRequired
	}
	if c.room != nil {
		if err := c.leave(ctx); err != nil {
			return nil, fmt.Errorf("implicit leave: %w", err)
		}
	}
	if err := c.media.acquire(true, true); err != nil {
		return nil, err
	}

	var room *domain.Room
	for attempt := 0; ; attempt++ {
		code, err := domain.GenerateRoomCode()
		if err != nil {
			c.media.release()
			return nil, err
		}
		room, err = domain.NewRoom(name, description, c.self.ID, code)
		if err != nil {
			c.media.release()
			return nil, err
		}
		if err = c.deps.Rooms.Create(ctx, room); err == nil {
			break
		}
		if errors.Is(err, domain.ErrRoomCodeTaken) && attempt+1 < c.cfg.CodeAttempts {
			c.logg.Warn().Str("code", code).Msg("room code collision, regenerating")
			continue
		}
		c.media.release()
		return nil, fmt.Errorf("create room: %w", err)
	}

	participant := domain.NewParticipant(room.ID, c.self.ID, true)
	if err := c.deps.Participants.Add(ctx, participant); err != nil {
		// No partial creation observable: the room goes inactive again.
		if derr := c.deps.Rooms.Deactivate(ctx, room.ID); derr != nil {
			c.logg.Error().Err(derr).Str("room", string(room.ID)).Msg("rollback deactivate")
		}
		c.media.release()
		return nil, fmt.Errorf("register host participant: %w", err)
	}

	if err := c.enterRoom(room); err != nil {
		c.media.release()
		return nil, err
	}
	c.logg.Info().Str("room", string(room.ID)).Str("code", room.Code).Msg("room created")
	return room, nil
}

func (c *Coordinator) joinRoom(ctx context.Context, code string) (*domain.Room, error) {
	if c.self == nil {
		return nil, domain.ErrAuthRequired
	}
	if !domain.ValidRoomCode(code) {
		return nil, domain.ErrRoomNotFound
	}

	room, err := c.deps.Rooms.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !room.Active {
		return nil, domain.ErrRoomInactive
	}
	if c.room != nil {
		if c.room.ID == room.ID {
			return nil, domain.ErrAlreadyPresent
		}
		if err := c.leave(ctx); err != nil {
			return nil, fmt.Errorf("implicit leave: %w", err)
		}
	}
	count, err := c.deps.Participants.PresentCount(ctx, room.ID)
	if err != nil {
		return nil, err
	}
	if count >= room.MaxParticipants {
		return nil, domain.ErrRoomFull
	}

	if err := c.media.acquire(true, true); err != nil {
		return nil, err
	}
	participant := domain.NewParticipant(room.ID, c.self.ID, room.HostID == c.self.ID)
	if err := c.deps.Participants.Add(ctx, participant); err != nil {
		c.media.release()
		return nil, err
	}
	if err := c.enterRoom(room); err != nil {
		c.media.release()
		return nil, err
	}
	c.logg.Info().Str("room", string(room.ID)).Str("code", code).Msg("room joined")
	return room, nil
}

// enterRoom installs the current room, subscribes to its signaling
// channel and announces presence. Runs on the loop.
func (c *Coordinator) enterRoom(room *domain.Room) error {
	sigCtx, cancel := context.WithCancel(context.Background())
	events, err := c.deps.Signals.Subscribe(sigCtx, room.ID, c.self.ID)
	if err != nil {
		cancel()
		return fmt.Errorf("%w: subscribe: %w", domain.ErrSignalingError, err)
	}
	c.room = room
	c.sigCtx = sigCtx
	c.sigCancel = cancel

	go func() {
		for ev := range events {
			ev := ev
			c.post(func() { c.onSignal(ev) })
		}
	}()

	if err := c.deps.Signals.Announce(sigCtx, room.ID, c.self.ID, true); err != nil {
		c.logg.Error().Err(err).Msg("announce join")
	}
	c.refreshPresence()
	c.notify()
	return nil
}

func (c *Coordinator) leave(ctx context.Context) error {
	if c.room == nil {
		return nil
	}
	room := c.room

	// A recording must never outlive the owner's presence.
	if c.rec != nil {
		if err := c.stopRecording(ctx, c.rec.rec.ID, c.rec.elapsed); err != nil {
			c.logg.Error().Err(err).Msg("auto-stop recording on leave")
		}
	}

	// Persist the departure before announcing it: peers refresh their
	// presence snapshot on the announcement, and a read landing before
	// the write would keep a session toward us alive forever.
	if err := c.deps.Participants.MarkLeft(ctx, room.ID, c.self.ID, time.Now().UTC()); err != nil {
		c.logg.Error().Err(err).Str("room", string(room.ID)).Msg("mark left")
	}
	if err := c.deps.Signals.Announce(ctx, room.ID, c.self.ID, false); err != nil {
		c.logg.Error().Err(err).Msg("announce leave")
	}
	if c.sigCancel != nil {
		c.sigCancel()
		c.sigCancel = nil
		c.sigCtx = nil
	}

	for _, ps := range c.peers {
		c.closePeer(ps)
	}
	c.media.release()
	c.room = nil
	c.present = nil
	c.notify()
	c.logg.Info().Str("room", string(room.ID)).Msg("room left")
	return nil
}

func (c *Coordinator) endRoom(ctx context.Context) error {
	if c.room == nil {
		return domain.ErrNoActiveRoom
	}
	if c.room.HostID != c.self.ID {
		return domain.ErrAuthRequired
	}
	if err := c.deps.Rooms.Deactivate(ctx, c.room.ID); err != nil {
		return fmt.Errorf("deactivate room: %w", err)
	}
	return c.leave(ctx)
}

// onSignal runs on the loop for every delivery from the channel.
func (c *Coordinator) onSignal(ev core.SignalEvent) {
	if c.room == nil {
		return
	}
	switch ev.Kind {
	case core.SignalPeerJoined, core.SignalPeerLeft:
		c.refreshPresence()
		c.notify()
	case core.SignalPayload:
		c.onPeerPayload(ev.From, ev.Payload)
	}
}

// refreshPresence re-reads the present set and reconciles peer
// sessions against it. Replaying the same snapshot is a no-op.
func (c *Coordinator) refreshPresence() {
	ctx := c.sigCtx
	if ctx == nil {
		return
	}
	present, err := c.deps.Participants.Present(ctx, c.room.ID)
	if err != nil {
		c.logg.Error().Err(err).Str("room", string(c.room.ID)).Msg("presence lookup")
		return
	}
	c.present = present
	c.reconcile(present)
}
