package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Patellll34/RiversideClone/internal/core"
	"github.com/Patellll34/RiversideClone/internal/domain"
)

// Key layout:
//
//	room:<id>                room JSON
//	roomcode:<CODE>          active-room code claim -> room id
//	host:<user>:rooms        list of room ids
//	participants:<room>      hash participant id -> JSON
//	present:<room>           hash user id -> participant id
//	recording:<id>           recording JSON
//	recactive:<room>         in-flight recording claim -> recording id
//	room:<id>:recordings     list of recording ids
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Rooms() core.RoomStore               { return redisRooms{r.client} }
func (r *Redis) Participants() core.ParticipantStore { return redisParticipants{r.client} }
func (r *Redis) Recordings() core.RecordingStore     { return redisRecordings{r.client} }

// Ping verifies connectivity at startup.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

type redisRooms struct{ c *redis.Client }

func (s redisRooms) Create(ctx context.Context, room *domain.Room) error {
	// The code claim is what enforces active-code uniqueness; SetNX
	// makes two concurrent creates with the same code impossible.
	ok, err := s.c.SetNX(ctx, "roomcode:"+room.Code, string(room.ID), 0).Result()
	if err != nil {
		return fmt.Errorf("claim room code: %w", err)
	}
	if !ok {
		return domain.ErrRoomCodeTaken
	}
	data, err := json.Marshal(room)
	if err != nil {
		return err
	}
	if err := s.c.Set(ctx, "room:"+string(room.ID), data, 0).Err(); err != nil {
		s.c.Del(ctx, "roomcode:"+room.Code)
		return fmt.Errorf("store room: %w", err)
	}
	if err := s.c.RPush(ctx, "host:"+string(room.HostID)+":rooms", string(room.ID)).Err(); err != nil {
		log.Error().Err(err).Str("module", "store.redis").Str("room", string(room.ID)).Msg("index host room")
	}
	return nil
}

func (s redisRooms) FindByID(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	return s.getRoom(ctx, string(id))
}

func (s redisRooms) FindByCode(ctx context.Context, code string) (*domain.Room, error) {
	id, err := s.c.Get(ctx, "roomcode:"+code).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup room code: %w", err)
	}
	return s.getRoom(ctx, id)
}

func (s redisRooms) getRoom(ctx context.Context, id string) (*domain.Room, error) {
	data, err := s.c.Get(ctx, "room:"+id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch room: %w", err)
	}
	var room domain.Room
	if err := json.Unmarshal([]byte(data), &room); err != nil {
		return nil, fmt.Errorf("decode room: %w", err)
	}
	return &room, nil
}

func (s redisRooms) Deactivate(ctx context.Context, id domain.RoomID) error {
	room, err := s.getRoom(ctx, string(id))
	if err != nil {
		return err
	}
	if !room.Active {
		return nil
	}
	room.Active = false
	data, err := json.Marshal(room)
	if err != nil {
		return err
	}
	if err := s.c.Set(ctx, "room:"+string(id), data, 0).Err(); err != nil {
		return fmt.Errorf("store room: %w", err)
	}
	// Free the code for future active rooms.
	return s.c.Del(ctx, "roomcode:"+room.Code).Err()
}

func (s redisRooms) ListByHost(ctx context.Context, host domain.UserID) ([]domain.Room, error) {
	ids, err := s.c.LRange(ctx, "host:"+string(host)+":rooms", 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list host rooms: %w", err)
	}
	out := make([]domain.Room, 0, len(ids))
	for _, id := range ids {
		room, err := s.getRoom(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, *room)
	}
	return out, nil
}

type redisParticipants struct{ c *redis.Client }

func (s redisParticipants) Add(ctx context.Context, p *domain.Participant) error {
	// One open presence per (room, user): the present-hash claim wins
	// or loses atomically.
	ok, err := s.c.HSetNX(ctx, "present:"+string(p.RoomID), string(p.UserID), string(p.ID)).Result()
	if err != nil {
		return fmt.Errorf("claim presence: %w", err)
	}
	if !ok {
		return domain.ErrAlreadyPresent
	}
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := s.c.HSet(ctx, "participants:"+string(p.RoomID), string(p.ID), data).Err(); err != nil {
		s.c.HDel(ctx, "present:"+string(p.RoomID), string(p.UserID))
		return fmt.Errorf("store participant: %w", err)
	}
	return nil
}

func (s redisParticipants) MarkLeft(ctx context.Context, room domain.RoomID, user domain.UserID, at time.Time) error {
	pid, err := s.c.HGet(ctx, "present:"+string(room), string(user)).Result()
	if errors.Is(err, redis.Nil) {
		return domain.ErrRoomNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup presence: %w", err)
	}
	raw, err := s.c.HGet(ctx, "participants:"+string(room), pid).Result()
	if err != nil {
		return fmt.Errorf("fetch participant: %w", err)
	}
	var p domain.Participant
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return fmt.Errorf("decode participant: %w", err)
	}
	p.LeftAt = &at
	data, err := json.Marshal(&p)
	if err != nil {
		return err
	}
	if err := s.c.HSet(ctx, "participants:"+string(room), pid, data).Err(); err != nil {
		return fmt.Errorf("store participant: %w", err)
	}
	return s.c.HDel(ctx, "present:"+string(room), string(user)).Err()
}

func (s redisParticipants) Present(ctx context.Context, room domain.RoomID) ([]domain.Participant, error) {
	ids, err := s.c.HVals(ctx, "present:"+string(room)).Result()
	if err != nil {
		return nil, fmt.Errorf("list presence: %w", err)
	}
	out := make([]domain.Participant, 0, len(ids))
	for _, pid := range ids {
		raw, err := s.c.HGet(ctx, "participants:"+string(room), pid).Result()
		if err != nil {
			continue
		}
		var p domain.Participant
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s redisParticipants) PresentCount(ctx context.Context, room domain.RoomID) (int, error) {
	n, err := s.c.HLen(ctx, "present:"+string(room)).Result()
	if err != nil {
		return 0, fmt.Errorf("count presence: %w", err)
	}
	return int(n), nil
}

type redisRecordings struct{ c *redis.Client }

func (s redisRecordings) Create(ctx context.Context, rec *domain.Recording) error {
	ok, err := s.c.SetNX(ctx, "recactive:"+string(rec.RoomID), string(rec.ID), 0).Result()
	if err != nil {
		return fmt.Errorf("claim recording: %w", err)
	}
	if !ok {
		return domain.ErrAlreadyRecording
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := s.c.Set(ctx, "recording:"+string(rec.ID), data, 0).Err(); err != nil {
		s.c.Del(ctx, "recactive:"+string(rec.RoomID))
		return fmt.Errorf("store recording: %w", err)
	}
	if err := s.c.RPush(ctx, "room:"+string(rec.RoomID)+":recordings", string(rec.ID)).Err(); err != nil {
		log.Error().Err(err).Str("module", "store.redis").Str("recording", string(rec.ID)).Msg("index recording")
	}
	return nil
}

func (s redisRecordings) SetStatus(ctx context.Context, id domain.RecordingID, status domain.RecordingStatus, duration int) error {
	rec, err := s.FindByID(ctx, id)
	if err != nil {
		return err
	}
	rec.Status = status
	rec.Duration = duration
	rec.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := s.c.Set(ctx, "recording:"+string(id), data, 0).Err(); err != nil {
		return fmt.Errorf("store recording: %w", err)
	}
	if status != domain.RecordingStatusRecording {
		return s.c.Del(ctx, "recactive:"+string(rec.RoomID)).Err()
	}
	return nil
}

func (s redisRecordings) FindByID(ctx context.Context, id domain.RecordingID) (*domain.Recording, error) {
	data, err := s.c.Get(ctx, "recording:"+string(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNoActiveRecording
	}
	if err != nil {
		return nil, fmt.Errorf("fetch recording: %w", err)
	}
	var rec domain.Recording
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("decode recording: %w", err)
	}
	return &rec, nil
}

func (s redisRecordings) ListByHost(ctx context.Context, host domain.UserID) ([]domain.Recording, error) {
	roomIDs, err := s.c.LRange(ctx, "host:"+string(host)+":rooms", 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list host rooms: %w", err)
	}
	var out []domain.Recording
	for _, roomID := range roomIDs {
		recIDs, err := s.c.LRange(ctx, "room:"+roomID+":recordings", 0, -1).Result()
		if err != nil {
			continue
		}
		for _, id := range recIDs {
			rec, err := s.FindByID(ctx, domain.RecordingID(id))
			if err != nil {
				continue
			}
			out = append(out, *rec)
		}
	}
	return out, nil
}
