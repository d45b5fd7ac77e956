package signal

import (
	"context"
	"sync"

	"github.com/Patellll34/RiversideClone/internal/core"
	"github.com/Patellll34/RiversideClone/internal/domain"
)

// LocalChannel implements core.SignalingChannel in process. It backs
// single-instance deployments where redis is not configured; every
// participant of a room must live in the same process.
type LocalChannel struct {
	mu    sync.Mutex
	rooms map[domain.RoomID]map[domain.UserID]*localSub
}

type localSub struct {
	out chan core.SignalEvent
}

func NewLocalChannel() *LocalChannel {
	return &LocalChannel{rooms: make(map[domain.RoomID]map[domain.UserID]*localSub)}
}

func (l *LocalChannel) Subscribe(ctx context.Context, room domain.RoomID, self domain.UserID) (<-chan core.SignalEvent, error) {
	sub := &localSub{out: make(chan core.SignalEvent, 32)}

	l.mu.Lock()
	subs, ok := l.rooms[room]
	if !ok {
		subs = make(map[domain.UserID]*localSub)
		l.rooms[room] = subs
	}
	subs[self] = sub
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		// Removal and close happen under the same mutex deliver sends
		// under, so no publish can race the close.
		l.mu.Lock()
		if cur, ok := l.rooms[room][self]; ok && cur == sub {
			delete(l.rooms[room], self)
			if len(l.rooms[room]) == 0 {
				delete(l.rooms, room)
			}
		}
		close(sub.out)
		l.mu.Unlock()
	}()

	return sub.out, nil
}

func (l *LocalChannel) Publish(_ context.Context, room domain.RoomID, from, to domain.UserID, payload []byte) error {
	l.deliver(room, to, core.SignalEvent{Kind: core.SignalPayload, From: from, Payload: payload})
	return nil
}

func (l *LocalChannel) Announce(_ context.Context, room domain.RoomID, self domain.UserID, joined bool) error {
	kind := core.SignalPeerJoined
	if !joined {
		kind = core.SignalPeerLeft
	}
	l.deliver(room, "", core.SignalEvent{Kind: kind, From: self})
	return nil
}

// deliver fans an event out to the addressee, or to everyone but the
// sender when to is empty. A full subscriber simply misses the event,
// matching the at-most-once pub/sub contract. Sends are non-blocking
// and stay under the mutex: a subscriber being removed concurrently is
// either still in the map (send lands before its channel closes) or
// already gone.
func (l *LocalChannel) deliver(room domain.RoomID, to domain.UserID, ev core.SignalEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, sub := range l.rooms[room] {
		if id == ev.From {
			continue
		}
		if to != "" && id != to {
			continue
		}
		select {
		case sub.out <- ev:
		default:
		}
	}
}
