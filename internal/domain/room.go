package domain

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type (
	RoomID   string
	RoomName string
)

const (
	MaxRoomNameLen         = 64
	DefaultMaxParticipants = 8

	// RoomCodeLen is fixed; codes are meant to be read aloud or pasted
	// into a short link.
	RoomCodeLen     = 6
	roomCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

type Room struct {
	ID              RoomID    `json:"id"`
	Name            RoomName  `json:"name"`
	Description     string    `json:"description,omitempty"`
	HostID          UserID    `json:"host_id"`
	Code            string    `json:"code"`
	Active          bool      `json:"active"`
	MaxParticipants int       `json:"max_participants"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewRoom builds an active room owned by host. The code is assigned by
// the caller once uniqueness against other active rooms is checked.
func NewRoom(name RoomName, description string, host UserID, code string) (*Room, error) {
	if len(name) == 0 {
		return nil, ErrRoomNameEmpty
	}
	if len(name) > MaxRoomNameLen {
		name = name[:MaxRoomNameLen]
	}
	return &Room{
		ID:              RoomID(uuid.NewString()),
		Name:            name,
		Description:     description,
		HostID:          host,
		Code:            code,
		Active:          true,
		MaxParticipants: DefaultMaxParticipants,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

// GenerateRoomCode returns a fresh 6-char uppercase alphanumeric code.
// Uniqueness among active rooms is the store's concern.
func GenerateRoomCode() (string, error) {
	b := make([]byte, RoomCodeLen)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate room code: %w", err)
	}
	for i := range b {
		b[i] = roomCodeCharset[int(b[i])%len(roomCodeCharset)]
	}
	return string(b), nil
}

// ValidRoomCode reports whether s has the exact shareable-code shape.
func ValidRoomCode(s string) bool {
	if len(s) != RoomCodeLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}
