package core

import (
	"context"
	"time"

	"github.com/Patellll34/RiversideClone/internal/domain"
)

// RoomStore persists rooms. Lookups not found return
// domain.ErrRoomNotFound; inserting a code already held by an active
// room returns domain.ErrRoomCodeTaken so the caller can regenerate.
type RoomStore interface {
	Create(ctx context.Context, room *domain.Room) error
	FindByID(ctx context.Context, id domain.RoomID) (*domain.Room, error)
	FindByCode(ctx context.Context, code string) (*domain.Room, error)
	// Deactivate flips Active off; rooms are never deleted.
	Deactivate(ctx context.Context, id domain.RoomID) error
	ListByHost(ctx context.Context, host domain.UserID) ([]domain.Room, error)
}

// ParticipantStore persists presence intervals. Add rejects a second
// open record for the same (room, user) with domain.ErrAlreadyPresent.
type ParticipantStore interface {
	Add(ctx context.Context, p *domain.Participant) error
	MarkLeft(ctx context.Context, room domain.RoomID, user domain.UserID, at time.Time) error
	Present(ctx context.Context, room domain.RoomID) ([]domain.Participant, error)
	PresentCount(ctx context.Context, room domain.RoomID) (int, error)
}

// RecordingStore persists recording lifecycles. Create rejects a second
// in-flight recording for the room with domain.ErrAlreadyRecording.
type RecordingStore interface {
	Create(ctx context.Context, rec *domain.Recording) error
	SetStatus(ctx context.Context, id domain.RecordingID, status domain.RecordingStatus, duration int) error
	FindByID(ctx context.Context, id domain.RecordingID) (*domain.Recording, error)
	ListByHost(ctx context.Context, host domain.UserID) ([]domain.Recording, error)
}
