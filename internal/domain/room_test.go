package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRoomCodeShape(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code, err := GenerateRoomCode()
		require.NoError(t, err)
		require.Len(t, code, RoomCodeLen)
		for _, r := range code {
			assert.True(t, strings.ContainsRune(roomCodeCharset, r), "unexpected rune %q in %s", r, code)
		}
		assert.True(t, ValidRoomCode(code))
		seen[code] = true
	}
	// Not a uniqueness guarantee, but 200 straight collisions would
	// mean the generator is broken.
	assert.Greater(t, len(seen), 1)
}

func TestValidRoomCode(t *testing.T) {
	valid := []string{"ABCDEF", "A1B2C3", "000000", "ZZZZZZ"}
	for _, code := range valid {
		assert.True(t, ValidRoomCode(code), code)
	}
	invalid := []string{"", "ABC", "abcdef", "ABCDEFG", "ABC-EF", "ABC EF", "ÀBCDEF"}
	for _, code := range invalid {
		assert.False(t, ValidRoomCode(code), code)
	}
}

func TestNewRoomDefaults(t *testing.T) {
	room, err := NewRoom("planning", "weekly", "host-1", "ABC123")
	require.NoError(t, err)
	assert.NotEmpty(t, room.ID)
	assert.True(t, room.Active)
	assert.Equal(t, DefaultMaxParticipants, room.MaxParticipants)
	assert.Equal(t, UserID("host-1"), room.HostID)
}

func TestNewRoomEmptyName(t *testing.T) {
	_, err := NewRoom("", "", "host-1", "ABC123")
	require.ErrorIs(t, err, ErrRoomNameEmpty)
}

func TestNewRoomTruncatesLongName(t *testing.T) {
	long := RoomName(strings.Repeat("x", MaxRoomNameLen+20))
	room, err := NewRoom(long, "", "host-1", "ABC123")
	require.NoError(t, err)
	assert.Len(t, string(room.Name), MaxRoomNameLen)
}

func TestParticipantPresence(t *testing.T) {
	p := NewParticipant("room-1", "user-1", true)
	assert.True(t, p.Present())

	now := p.JoinedAt
	p.LeftAt = &now
	assert.False(t, p.Present())
}
