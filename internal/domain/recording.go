package domain

import (
	"time"

	"github.com/google/uuid"
)

type RecordingID string

// RecordingStatus transitions forward only: recording -> processing is
// the sole edge reachable from "recording"; failed is terminal.
type RecordingStatus string

const (
	RecordingStatusRecording  RecordingStatus = "recording"
	RecordingStatusProcessing RecordingStatus = "processing"
	RecordingStatusCompleted  RecordingStatus = "completed"
	RecordingStatusFailed     RecordingStatus = "failed"
)

type Recording struct {
	ID        RecordingID     `json:"id"`
	RoomID    RoomID          `json:"room_id"`
	Title     string          `json:"title"`
	Duration  int             `json:"duration"` // seconds, set on stop
	Status    RecordingStatus `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func NewRecording(room RoomID, title string) *Recording {
	now := time.Now().UTC()
	return &Recording{
		ID:        RecordingID(uuid.NewString()),
		RoomID:    room,
		Title:     title,
		Status:    RecordingStatusRecording,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
