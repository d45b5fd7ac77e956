package session

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Patellll34/RiversideClone/internal/domain"
)

// Hub hands out one coordinator per authenticated user and owns their
// lifecycle up to process teardown.
type Hub struct {
	cfg  Config
	deps func(user *domain.User) Deps

	mu       sync.Mutex
	sessions map[domain.UserID]*Coordinator
}

// NewHub builds a hub. deps is called once per user so collaborators
// that are per-session (media devices) get fresh instances.
func NewHub(cfg Config, deps func(user *domain.User) Deps) *Hub {
	return &Hub{
		cfg:      cfg,
		deps:     deps,
		sessions: make(map[domain.UserID]*Coordinator),
	}
}

func (h *Hub) GetOrCreate(user *domain.User) *Coordinator {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.sessions[user.ID]; ok {
		return c
	}
	c := New(user, h.cfg, h.deps(user))
	h.sessions[user.ID] = c
	log.Info().Str("module", "session.hub").Str("user", string(user.ID)).Msg("coordinator created")
	return c
}

func (h *Hub) Get(id domain.UserID) (*Coordinator, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.sessions[id]
	return c, ok
}

// Drop closes and removes one user's coordinator.
func (h *Hub) Drop(id domain.UserID) {
	h.mu.Lock()
	c, ok := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()
	if ok {
		c.Close()
		log.Info().Str("module", "session.hub").Str("user", string(id)).Msg("coordinator dropped")
	}
}

// Close tears down every live coordinator.
func (h *Hub) Close() {
	h.mu.Lock()
	sessions := make([]*Coordinator, 0, len(h.sessions))
	for _, c := range h.sessions {
		sessions = append(sessions, c)
	}
	h.sessions = make(map[domain.UserID]*Coordinator)
	h.mu.Unlock()
	for _, c := range sessions {
		c.Close()
	}
}
