// Package store provides the persistence collaborator: an in-memory
// implementation and a redis-backed one with the same semantics.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/Patellll34/RiversideClone/internal/core"
	"github.com/Patellll34/RiversideClone/internal/domain"
)

// Memory keeps everything in process. It backs tests and single-node
// deployments without redis. The per-resource stores are facets over
// the same data set.
type Memory struct {
	mu sync.RWMutex

	rooms       map[domain.RoomID]*domain.Room
	activeCodes map[string]domain.RoomID

	participants map[domain.RoomID][]*domain.Participant

	recordings map[domain.RecordingID]*domain.Recording
	inFlight   map[domain.RoomID]domain.RecordingID
}

func NewMemory() *Memory {
	return &Memory{
		rooms:        make(map[domain.RoomID]*domain.Room),
		activeCodes:  make(map[string]domain.RoomID),
		participants: make(map[domain.RoomID][]*domain.Participant),
		recordings:   make(map[domain.RecordingID]*domain.Recording),
		inFlight:     make(map[domain.RoomID]domain.RecordingID),
	}
}

func (m *Memory) Rooms() core.RoomStore               { return memRooms{m} }
func (m *Memory) Participants() core.ParticipantStore { return memParticipants{m} }
func (m *Memory) Recordings() core.RecordingStore     { return memRecordings{m} }

type memRooms struct{ m *Memory }

func (s memRooms) Create(ctx context.Context, room *domain.Room) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, taken := s.m.activeCodes[room.Code]; taken {
		return domain.ErrRoomCodeTaken
	}
	cp := *room
	s.m.rooms[room.ID] = &cp
	s.m.activeCodes[room.Code] = room.ID
	return nil
}

func (s memRooms) FindByID(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	room, ok := s.m.rooms[id]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	cp := *room
	return &cp, nil
}

func (s memRooms) FindByCode(ctx context.Context, code string) (*domain.Room, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	id, ok := s.m.activeCodes[code]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	cp := *s.m.rooms[id]
	return &cp, nil
}

func (s memRooms) Deactivate(ctx context.Context, id domain.RoomID) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	room, ok := s.m.rooms[id]
	if !ok {
		return domain.ErrRoomNotFound
	}
	if room.Active {
		room.Active = false
		// The code is only reserved among active rooms.
		delete(s.m.activeCodes, room.Code)
	}
	return nil
}

func (s memRooms) ListByHost(ctx context.Context, host domain.UserID) ([]domain.Room, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	var out []domain.Room
	for _, room := range s.m.rooms {
		if room.HostID == host {
			out = append(out, *room)
		}
	}
	return out, nil
}

type memParticipants struct{ m *Memory }

func (s memParticipants) Add(ctx context.Context, p *domain.Participant) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, existing := range s.m.participants[p.RoomID] {
		if existing.UserID == p.UserID && existing.Present() {
			return domain.ErrAlreadyPresent
		}
	}
	cp := *p
	s.m.participants[p.RoomID] = append(s.m.participants[p.RoomID], &cp)
	return nil
}

func (s memParticipants) MarkLeft(ctx context.Context, room domain.RoomID, user domain.UserID, at time.Time) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, p := range s.m.participants[room] {
		if p.UserID == user && p.Present() {
			left := at
			p.LeftAt = &left
			return nil
		}
	}
	return domain.ErrRoomNotFound
}

func (s memParticipants) Present(ctx context.Context, room domain.RoomID) ([]domain.Participant, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	var out []domain.Participant
	for _, p := range s.m.participants[room] {
		if p.Present() {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s memParticipants) PresentCount(ctx context.Context, room domain.RoomID) (int, error) {
	present, err := s.Present(ctx, room)
	return len(present), err
}

type memRecordings struct{ m *Memory }

func (s memRecordings) Create(ctx context.Context, rec *domain.Recording) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, busy := s.m.inFlight[rec.RoomID]; busy {
		return domain.ErrAlreadyRecording
	}
	cp := *rec
	s.m.recordings[rec.ID] = &cp
	if rec.Status == domain.RecordingStatusRecording {
		s.m.inFlight[rec.RoomID] = rec.ID
	}
	return nil
}

func (s memRecordings) SetStatus(ctx context.Context, id domain.RecordingID, status domain.RecordingStatus, duration int) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	rec, ok := s.m.recordings[id]
	if !ok {
		return domain.ErrNoActiveRecording
	}
	rec.Status = status
	rec.Duration = duration
	rec.UpdatedAt = time.Now().UTC()
	if status != domain.RecordingStatusRecording {
		delete(s.m.inFlight, rec.RoomID)
	}
	return nil
}

func (s memRecordings) FindByID(ctx context.Context, id domain.RecordingID) (*domain.Recording, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	rec, ok := s.m.recordings[id]
	if !ok {
		return nil, domain.ErrNoActiveRecording
	}
	cp := *rec
	return &cp, nil
}

func (s memRecordings) ListByHost(ctx context.Context, host domain.UserID) ([]domain.Recording, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	var out []domain.Recording
	for _, rec := range s.m.recordings {
		if room, ok := s.m.rooms[rec.RoomID]; ok && room.HostID == host {
			out = append(out, *rec)
		}
	}
	return out, nil
}
