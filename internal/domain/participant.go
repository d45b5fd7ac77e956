package domain

import (
	"time"

	"github.com/google/uuid"
)

type ParticipantID string

// Participant is one presence interval of a user in a room.
// LeftAt stays nil while the user is present; a user holds at most one
// such open record per room.
type Participant struct {
	ID       ParticipantID `json:"id"`
	RoomID   RoomID        `json:"room_id"`
	UserID   UserID        `json:"user_id"`
	JoinedAt time.Time     `json:"joined_at"`
	LeftAt   *time.Time    `json:"left_at,omitempty"`
	Host     bool          `json:"is_host"`
}

func NewParticipant(room RoomID, user UserID, host bool) *Participant {
	return &Participant{
		ID:       ParticipantID(uuid.NewString()),
		RoomID:   room,
		UserID:   user,
		JoinedAt: time.Now().UTC(),
		Host:     host,
	}
}

func (p *Participant) Present() bool { return p.LeftAt == nil }
