package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Patellll34/RiversideClone/internal/domain"
)

// RecordingPhase is the manager's own state machine:
// Idle -> Recording -> Processing (terminal success), Failed on an
// unrecoverable storage error.
type RecordingPhase int

const (
	RecordingIdle RecordingPhase = iota
	RecordingActive
	RecordingFailed
)

func (p RecordingPhase) String() string {
	switch p {
	case RecordingIdle:
		return "idle"
	case RecordingActive:
		return "recording"
	case RecordingFailed:
		return "failed"
	}
	return "unknown"
}

func (p RecordingPhase) MarshalJSON() ([]byte, error) { return json.Marshal(p.String()) }

type recordingSession struct {
	rec     *domain.Recording
	elapsed int
	ticker  *time.Ticker
}

// StartRecording persists a new recording for the current room and
// starts the 1 Hz elapsed counter.
func (c *Coordinator) StartRecording(ctx context.Context, title string) (*domain.Recording, error) {
	var rec *domain.Recording
	err := c.do(ctx, func() error {
		var err error
		rec, err = c.startRecording(ctx, title)
		return err
	})
	return rec, err
}

// StopRecording persists status processing with the supplied duration.
// The counter is advisory; the persisted duration is always elapsed as
// given by the caller.
func (c *Coordinator) StopRecording(ctx context.Context, id domain.RecordingID, elapsed int) error {
	return c.do(ctx, func() error { return c.stopRecording(ctx, id, elapsed) })
}

func (c *Coordinator) startRecording(ctx context.Context, title string) (*domain.Recording, error) {
	if c.room == nil {
		return nil, domain.ErrNoActiveRoom
	}
	if c.rec != nil {
		return nil, domain.ErrAlreadyRecording
	}

	rec := domain.NewRecording(c.room.ID, title)
	if err := c.deps.Recordings.Create(ctx, rec); err != nil {
		if errors.Is(err, domain.ErrAlreadyRecording) {
			return nil, domain.ErrAlreadyRecording
		}
		c.recPhase = RecordingFailed
		c.notify()
		return nil, fmt.Errorf("persist recording: %w", err)
	}

	c.rec = &recordingSession{rec: rec, ticker: time.NewTicker(time.Second)}
	c.tick = c.rec.ticker.C
	c.recPhase = RecordingActive
	c.notify()
	c.logg.Info().Str("recording", string(rec.ID)).Str("title", title).Msg("recording started")
	return rec, nil
}

func (c *Coordinator) stopRecording(ctx context.Context, id domain.RecordingID, elapsed int) error {
	if c.rec == nil || c.rec.rec.ID != id {
		return domain.ErrNoActiveRecording
	}

	err := c.deps.Recordings.SetStatus(ctx, id, domain.RecordingStatusProcessing, elapsed)
	c.rec.ticker.Stop()
	c.rec = nil
	c.tick = nil
	if err != nil {
		// Best effort: make the stored record reflect the failure too.
		if ferr := c.deps.Recordings.SetStatus(ctx, id, domain.RecordingStatusFailed, elapsed); ferr != nil {
			c.logg.Error().Err(ferr).Str("recording", string(id)).Msg("mark recording failed")
		}
		c.recPhase = RecordingFailed
		c.notify()
		return fmt.Errorf("persist recording stop: %w", err)
	}
	c.recPhase = RecordingIdle
	c.notify()
	c.logg.Info().Str("recording", string(id)).Int("duration", elapsed).Msg("recording stopped")
	return nil
}

// onTick runs on the loop once per second while a recording is live.
func (c *Coordinator) onTick() {
	if c.rec == nil {
		return
	}
	c.rec.elapsed++
	c.rec.rec.UpdatedAt = time.Now().UTC()
	c.notify()
}
