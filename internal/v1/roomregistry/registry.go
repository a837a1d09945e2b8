// Package roomregistry is the keyed container of live rooms: creation,
// lookup, removal, capacity enforcement, and the sweeper's entry point.
// Grounded on _examples/original_source/room_list.cpp (room_list_t) and
// room.hpp's room_list_t declaration.
package roomregistry

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/traP-jp/ShoutWars-server/internal/v1/apperror"
	"github.com/traP-jp/ShoutWars-server/internal/v1/bus"
	"github.com/traP-jp/ShoutWars-server/internal/v1/room"
)

// Logger mirrors room.Logger so the registry can be handed the same sink
// without importing anything transport-specific.
type Logger = room.Logger

// Registry holds every live room, keyed by id, with a secondary index by
// the human-friendly Name supplement (Design supplement #1).
type Registry struct {
	mu            sync.RWMutex
	rooms         map[string]*room.Room
	byName        map[string]string // name -> id
	limit         int
	lobbyLifetime time.Duration
	gameLifetime  time.Duration
	logger        Logger
	bus           *bus.Service // nil is a valid, fully functional value
}

// SetBus attaches the optional event bus: every room the registry already
// holds, and every room it creates afterward, publishes its lifecycle
// events (user.kicked from the room itself, room.closed from Remove) to
// it.
func (reg *Registry) SetBus(b *bus.Service) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.bus = b
	for _, r := range reg.rooms {
		r.SetBus(b)
	}
}

func New(limit int, lobbyLifetime, gameLifetime time.Duration, logger Logger) *Registry {
	if logger == nil {
		logger = room.NopLogger{}
	}
	return &Registry{
		rooms:         make(map[string]*room.Room),
		byName:        make(map[string]string),
		limit:         limit,
		lobbyLifetime: lobbyLifetime,
		gameLifetime:  gameLifetime,
		logger:        logger,
	}
}

// Create allocates a room for owner, failing FORBIDDEN once the registry
// is at capacity.
func (reg *Registry) Create(version string, owner *room.User, size int) (*room.Room, *apperror.Error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if len(reg.rooms) >= reg.limit {
		return nil, apperror.Forbiddenf("Room limit reached. Max room count is %d.", reg.limit)
	}

	name := reg.generateNameLocked()
	r := room.NewRoom(version, owner, size, name, reg.lobbyLifetime, reg.gameLifetime, reg.logger)
	r.SetBus(reg.bus)
	reg.rooms[r.ID] = r
	reg.byName[name] = r.ID
	reg.logger.Info("room registered", "room_id", r.ID, "name", name)
	return r, nil
}

// generateNameLocked produces a 6-digit, zero-padded, collision-checked
// room name the way room_list.cpp's name_to_id map does. Must be called
// with mu held for writing.
func (reg *Registry) generateNameLocked() string {
	for {
		n := rand.Intn(1_000_000)
		name := zeroPad(n)
		if _, exists := reg.byName[name]; !exists {
			return name
		}
	}
}

func zeroPad(n int) string {
	digits := [6]byte{}
	for i := 5; i >= 0; i-- {
		digits[i] = byte('0' + n%10)
		n /= 10
	}
	return string(digits[:])
}

// Get fails NOT_FOUND if id is unknown.
func (reg *Registry) Get(id string) (*room.Room, *apperror.Error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.rooms[id]
	if !ok {
		return nil, apperror.NotFoundf("Room not found.")
	}
	return r, nil
}

// GetByName looks a room up by its human-friendly name.
func (reg *Registry) GetByName(name string) (*room.Room, *apperror.Error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	id, ok := reg.byName[name]
	if !ok {
		return nil, apperror.NotFoundf("Room not found.")
	}
	return reg.rooms[id], nil
}

func (reg *Registry) Exists(id string) bool {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	_, ok := reg.rooms[id]
	return ok
}

// Remove deletes the room and its name index entry, if present.
func (reg *Registry) Remove(id string) bool {
	reg.mu.Lock()
	r, ok := reg.rooms[id]
	if !ok {
		reg.mu.Unlock()
		return false
	}
	delete(reg.rooms, id)
	delete(reg.byName, r.Name)
	reg.logger.Info("room removed", "room_id", id)
	b := reg.bus
	reg.mu.Unlock()

	b.Publish(context.Background(), id, bus.EventRoomClosed, nil)
	return true
}

func (reg *Registry) Count() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

// GetAll takes a point-in-time snapshot of every live room. Callers (the
// sweeper) must never hold the registry lock while doing per-room work —
// this is exactly why GetAll copies the slice instead of returning a live
// view.
func (reg *Registry) GetAll() []*room.Room {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]*room.Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		out = append(out, r)
	}
	return out
}

func (reg *Registry) GetLimit() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.limit
}

func (reg *Registry) SetLimit(newLimit int) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.limit = newLimit
}

// Clean snapshots the room set, then for each room either removes it (if
// no longer available) or trims its expired users and settled sync
// records. Registry lock is never held across per-room work (spec.md §5
// lock ordering: registry -> room -> record).
func (reg *Registry) Clean(userTimeout time.Duration) {
	for _, r := range reg.GetAll() {
		if !r.IsAvailable() {
			reg.Remove(r.ID)
			continue
		}
		r.KickExpired(userTimeout)
		r.CleanSyncRecords()
	}
}
