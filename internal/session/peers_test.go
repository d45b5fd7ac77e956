package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Patellll34/RiversideClone/internal/core"
)

// connectPair puts alice and bob in one room, lets the offer/answer
// exchange settle and drives both transports to Connected.
func connectPair(t *testing.T, env *testEnv) (alice, bob *testUser) {
	t.Helper()
	alice = env.user("alice")
	bob = env.user("bob")

	room, err := alice.coord.CreateRoom(context.Background(), "pairing", "")
	require.NoError(t, err)
	_, err = bob.coord.JoinRoom(context.Background(), room.Code)
	require.NoError(t, err)

	alice.awaitPeerState(t, "bob", PeerNegotiating)
	bob.awaitPeerState(t, "alice", PeerNegotiating)

	alice.transports.toward("bob").fireState(core.TransportConnected)
	bob.transports.toward("alice").fireState(core.TransportConnected)

	alice.awaitPeerState(t, "bob", PeerConnected)
	bob.awaitPeerState(t, "alice", PeerConnected)
	return alice, bob
}

func TestNegotiationTieBreak(t *testing.T) {
	env := newTestEnv(t)
	alice, bob := connectPair(t, env)

	// "alice" < "bob": alice initiates, bob answers. Never both.
	aliceT := alice.transports.toward("bob")
	bobT := bob.transports.toward("alice")

	assert.Equal(t, 1, aliceT.madeOffers())
	assert.Zero(t, bobT.madeOffers())
	assert.True(t, bobT.gotOffer(), "responder received the offer")
	require.Eventually(t, aliceT.gotAnswer, waitFor, pollTick, "initiator received the answer")
}

func TestCandidateRelay(t *testing.T) {
	env := newTestEnv(t)
	alice, bob := connectPair(t, env)

	alice.transports.toward("bob").fireCandidate([]byte(`"cand-1"`))

	require.Eventually(t, func() bool {
		return bob.transports.toward("alice").candidateCount() == 1
	}, waitFor, pollTick, "candidate never reached the peer transport")
}

func TestRemoteTrackMerge(t *testing.T) {
	env := newTestEnv(t)
	alice, _ := connectPair(t, env)

	tr := alice.transports.toward("bob")
	tr.fireRemoteTrack("bob-video", core.TrackKindVideo)
	tr.fireRemoteTrack("bob-audio", core.TrackKindAudio)
	// Replaying a track is a merge, not a duplicate.
	tr.fireRemoteTrack("bob-video", core.TrackKindVideo)

	require.Eventually(t, func() bool {
		for _, p := range alice.snapshot(t).Peers {
			if p.ID == "bob" {
				return len(p.Tracks) == 2
			}
		}
		return false
	}, waitFor, pollTick)
}

func TestDisconnectRecoveryWithinGrace(t *testing.T) {
	env := newTestEnv(t)
	alice, _ := connectPair(t, env)

	tr := alice.transports.toward("bob")
	tr.fireState(core.TransportDisconnected)
	alice.awaitPeerState(t, "bob", PeerDisconnected)

	tr.fireState(core.TransportConnected)
	alice.awaitPeerState(t, "bob", PeerConnected)

	// Outlive the original grace window: the recovered session stays.
	time.Sleep(2 * env.cfg.GracePeriod)
	alice.awaitPeerState(t, "bob", PeerConnected)
	assert.False(t, tr.isClosed())
}

func TestDisconnectGraceExpiry(t *testing.T) {
	env := newTestEnv(t)
	alice, _ := connectPair(t, env)

	tr := alice.transports.toward("bob")
	tr.fireState(core.TransportDisconnected)

	alice.awaitPeerGone(t, "bob")
	assert.True(t, tr.isClosed())
}

func TestDisconnectBeforeConnectedIgnored(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user("alice")
	bob := env.user("bob")

	room, err := alice.coord.CreateRoom(context.Background(), "pairing", "")
	require.NoError(t, err)
	_, err = bob.coord.JoinRoom(context.Background(), room.Code)
	require.NoError(t, err)
	alice.awaitPeerState(t, "bob", PeerNegotiating)

	// Transient flaps during negotiation carry no meaning yet.
	alice.transports.toward("bob").fireState(core.TransportDisconnected)
	time.Sleep(2 * env.cfg.GracePeriod)
	alice.awaitPeerState(t, "bob", PeerNegotiating)
}

func TestTransportFailureClosesPeer(t *testing.T) {
	env := newTestEnv(t)
	alice, _ := connectPair(t, env)

	tr := alice.transports.toward("bob")
	tr.fireState(core.TransportFailed)

	alice.awaitPeerGone(t, "bob")
	assert.True(t, tr.isClosed())
}

func TestRejoinReplacesStaleSession(t *testing.T) {
	env := newTestEnv(t)
	alice, bob := connectPair(t, env)

	room := alice.snapshot(t).Room
	require.NotNil(t, room)
	first := alice.transports.toward("bob")

	require.NoError(t, bob.coord.Leave(context.Background()))
	alice.awaitPeerGone(t, "bob")
	assert.True(t, first.isClosed())

	_, err := bob.coord.JoinRoom(context.Background(), room.Code)
	require.NoError(t, err)
	alice.awaitPeerState(t, "bob", PeerNegotiating)

	second := alice.transports.toward("bob")
	require.NotNil(t, second)
	assert.NotSame(t, first, second, "rejoin builds a fresh transport")
	assert.Equal(t, 2, alice.transports.count())
}

func TestStaleTransportEventsDropped(t *testing.T) {
	env := newTestEnv(t)
	alice, bob := connectPair(t, env)

	room := alice.snapshot(t).Room
	require.NotNil(t, room)
	first := alice.transports.toward("bob")

	require.NoError(t, bob.coord.Leave(context.Background()))
	alice.awaitPeerGone(t, "bob")

	_, err := bob.coord.JoinRoom(context.Background(), room.Code)
	require.NoError(t, err)
	alice.awaitPeerState(t, "bob", PeerNegotiating)

	// A late failure from the replaced transport must not touch the
	// fresh session.
	first.fireState(core.TransportFailed)
	time.Sleep(20 * time.Millisecond)
	alice.awaitPeerState(t, "bob", PeerNegotiating)
	assert.False(t, alice.transports.toward("bob").isClosed())
}

func TestReconcileIdempotent(t *testing.T) {
	env := newTestEnv(t)
	alice, _ := connectPair(t, env)

	before := alice.transports.count()
	for i := 0; i < 3; i++ {
		alice.coord.post(func() { alice.coord.refreshPresence() })
	}
	require.NoError(t, alice.coord.Leave(context.Background())) // flushes the inbox
	assert.Equal(t, before, alice.transports.count(), "replayed presence built no new transports")
}

func TestLocalTracksAttachedToTransport(t *testing.T) {
	env := newTestEnv(t)
	alice, _ := connectPair(t, env)

	tr := alice.transports.toward("bob")
	tr.mu.Lock()
	kinds := make(map[core.TrackKind]int)
	for _, at := range tr.attached {
		kinds[at.Kind()]++
	}
	tr.mu.Unlock()
	assert.Equal(t, 1, kinds[core.TrackKindVideo])
	assert.Equal(t, 1, kinds[core.TrackKindAudio])
}

func TestThirdParticipantFullMesh(t *testing.T) {
	env := newTestEnv(t)
	alice, bob := connectPair(t, env)

	room := alice.snapshot(t).Room
	require.NotNil(t, room)

	carol := env.user("carol")
	_, err := carol.coord.JoinRoom(context.Background(), room.Code)
	require.NoError(t, err)

	// Everyone holds a session toward everyone else.
	alice.awaitPeerState(t, "carol", PeerNegotiating)
	bob.awaitPeerState(t, "carol", PeerNegotiating)
	carol.awaitPeerState(t, "alice", PeerNegotiating)
	carol.awaitPeerState(t, "bob", PeerNegotiating)

	assert.Len(t, carol.snapshot(t).Peers, 2)
}

func TestOfferBeforePresenceCreatesPeer(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user("alice")
	bob := env.user("bob")

	room, err := alice.coord.CreateRoom(context.Background(), "pairing", "")
	require.NoError(t, err)
	_, err = bob.coord.JoinRoom(context.Background(), room.Code)
	require.NoError(t, err)

	// Whichever of presence refresh or the initiator's offer lands
	// first, the responder ends up with exactly one negotiating session.
	bob.awaitPeerState(t, "alice", PeerNegotiating)
	assert.Equal(t, 1, len(bob.snapshot(t).Peers))
}
