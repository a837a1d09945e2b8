// Package sessionregistry maps opaque session tokens to (room id, user id)
// pairs — the only cross-request identity a client carries. Grounded on
// _examples/original_source/session.hpp / session.cpp (session_list_t).
package sessionregistry

import (
	"sync"

	"github.com/traP-jp/ShoutWars-server/internal/v1/apperror"
	"github.com/traP-jp/ShoutWars-server/internal/v1/idgen"
	"github.com/traP-jp/ShoutWars-server/internal/v1/room"
)

// Session is immutable once created.
type Session struct {
	ID     string
	RoomID string
	UserID string
}

type Logger = room.Logger

// Registry holds every live session, keyed by id.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]Session
	logger   Logger
}

func New(logger Logger) *Registry {
	if logger == nil {
		logger = room.NopLogger{}
	}
	return &Registry{
		sessions: make(map[string]Session),
		logger:   logger,
	}
}

// Create mints a fresh session for (roomID, userID).
func (reg *Registry) Create(roomID, userID string) Session {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	s := Session{ID: idgen.New(), RoomID: roomID, UserID: userID}
	reg.sessions[s.ID] = s
	reg.logger.Info("session created", "session_id", s.ID, "room_id", roomID, "user_id", userID)
	return s
}

// Get fails UNAUTHORIZED if id is unknown — an unknown session is
// indistinguishable from an expired one (spec.md §7).
func (reg *Registry) Get(id string) (Session, *apperror.Error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	s, ok := reg.sessions[id]
	if !ok {
		return Session{}, apperror.Unauthorizedf("Session not found.")
	}
	return s, nil
}

func (reg *Registry) Exists(id string) bool {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	_, ok := reg.sessions[id]
	return ok
}

func (reg *Registry) Remove(id string) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, ok := reg.sessions[id]; !ok {
		return false
	}
	delete(reg.sessions, id)
	return true
}

// Clean removes every session for which predicate returns true. The
// sweeper supplies a predicate keyed off the room registry's current
// state, not a timeout of its own — sessions have no activity clock.
func (reg *Registry) Clean(predicate func(Session) bool) int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	removed := 0
	for id, s := range reg.sessions {
		if predicate(s) {
			delete(reg.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		reg.logger.Info("sessions purged", "count", removed)
	}
	return removed
}
