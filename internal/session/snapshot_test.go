package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Patellll34/RiversideClone/internal/domain"
)

func TestWatchDeliversChanges(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user("alice")

	updates, cancel := alice.coord.Watch()
	defer cancel()

	_, err := alice.coord.CreateRoom(context.Background(), "watched", "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		select {
		case snap, ok := <-updates:
			return ok && snap.Room != nil
		default:
			return false
		}
	}, waitFor, pollTick, "room creation never surfaced on the watch channel")
}

func TestWatchCancelIdempotent(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user("alice")

	_, cancel := alice.coord.Watch()
	cancel()
	cancel()
}

func TestWatchClosedOnCoordinatorClose(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user("alice")

	updates, cancel := alice.coord.Watch()
	defer cancel()

	alice.coord.Close()

	require.Eventually(t, func() bool {
		for {
			select {
			case _, ok := <-updates:
				if !ok {
					return true
				}
			default:
				return false
			}
		}
	}, waitFor, pollTick)
}

func TestClosedCoordinatorRejectsCommands(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user("alice")
	alice.coord.Close()

	_, err := alice.coord.CreateRoom(context.Background(), "late", "")
	require.ErrorIs(t, err, ErrCoordinatorClosed)
	_, err = alice.coord.Snapshot(context.Background())
	require.ErrorIs(t, err, ErrCoordinatorClosed)
}

func TestCloseLeavesRoom(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user("alice")
	bob := env.user("bob")

	room, err := alice.coord.CreateRoom(context.Background(), "closing", "")
	require.NoError(t, err)
	_, err = bob.coord.JoinRoom(context.Background(), room.Code)
	require.NoError(t, err)
	alice.awaitPeerState(t, "bob", PeerNegotiating)

	bob.coord.Close()

	alice.awaitPeerGone(t, "bob")
	require.Eventually(t, func() bool {
		return len(alice.snapshot(t).Participants) == 1
	}, waitFor, pollTick)
}

func TestHubOneCoordinatorPerUser(t *testing.T) {
	env := newTestEnv(t)
	hub := NewHub(env.cfg, func(u *domain.User) Deps {
		return Deps{
			Signals:      env.signals,
			NewTransport: newFakeTransports().factory,
			Devices:      &fakeDevices{},
			Rooms:        env.mem.Rooms(),
			Participants: env.mem.Participants(),
			Recordings:   env.mem.Recordings(),
		}
	})
	t.Cleanup(hub.Close)

	alice := &domain.User{ID: "alice", Username: "alice"}
	first := hub.GetOrCreate(alice)
	second := hub.GetOrCreate(alice)
	assert.Same(t, first, second)

	got, ok := hub.Get("alice")
	require.True(t, ok)
	assert.Same(t, first, got)

	hub.Drop("alice")
	_, ok = hub.Get("alice")
	assert.False(t, ok)

	// A fresh coordinator replaces the dropped one.
	third := hub.GetOrCreate(alice)
	assert.NotSame(t, first, third)
}
