// Package room implements the room synchronization engine: the per-room
// sync-record barrier, user membership, and the accessors the registry and
// sweeper drive. This is "the core" per spec.md §1 — everything else in the
// repository is a collaborator wrapped around it.
package room

import (
	"sync"
	"time"

	"github.com/traP-jp/ShoutWars-server/internal/v1/apperror"
	"github.com/traP-jp/ShoutWars-server/internal/v1/bus"
	"github.com/traP-jp/ShoutWars-server/internal/v1/idgen"
	"github.com/traP-jp/ShoutWars-server/internal/v1/metrics"
)

// Default barrier deadlines (spec.md §4.3).
const (
	DefaultWaitTimeout = 200 * time.Millisecond
	DefaultSyncTimeout = 50 * time.Millisecond
)

// Room owns an ordered set of users (first is the owner), an ordered chain
// of sync records, and the barrier that coordinates concurrent sync calls.
// Grounded on _examples/original_source/room.hpp.
type Room struct {
	ID      string
	Name    string
	Version string
	Size    int

	lobbyLifetime time.Duration
	gameLifetime  time.Duration
	waitTimeout   time.Duration
	syncTimeout   time.Duration

	logger Logger
	bus    *bus.Service // nil is a valid, fully functional value

	mu         sync.Mutex
	waitCh     chan struct{}
	users      map[string]*User
	userOrder  []string
	inLobby    bool
	info       any
	expireTime time.Time

	syncRecords map[string]*SyncRecord
	syncOrder   []string // ascending by id, hence by creation time
}

// NewRoom constructs a room already containing owner as its first (and
// only, so far) user, with a single current-tail sync record.
func NewRoom(version string, owner *User, size int, name string, lobbyLifetime, gameLifetime time.Duration, logger Logger) *Room {
	if logger == nil {
		logger = NopLogger{}
	}
	r := &Room{
		ID:            idgen.New(),
		Name:          name,
		Version:       version,
		Size:          size,
		lobbyLifetime: lobbyLifetime,
		gameLifetime:  gameLifetime,
		waitTimeout:   DefaultWaitTimeout,
		syncTimeout:   DefaultSyncTimeout,
		logger:        logger,
		waitCh:        make(chan struct{}),
		users:         make(map[string]*User),
		inLobby:       true,
		syncRecords:   make(map[string]*SyncRecord),
	}
	r.expireTime = time.Now().Add(lobbyLifetime)
	owner.lastTime = time.Now()
	r.users[owner.ID] = owner
	r.userOrder = append(r.userOrder, owner.ID)

	first := NewSyncRecord()
	r.syncRecords[first.ID] = first
	r.syncOrder = append(r.syncOrder, first.ID)

	logger.Info("room created", "room_id", r.ID, "owner_id", owner.ID, "size", size)
	return r
}

// SetBus attaches the optional event bus the registry publishes lifecycle
// events through. Safe to leave unset; a nil *bus.Service is itself a
// valid no-op value.
func (r *Room) SetBus(b *bus.Service) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bus = b
}

// broadcastLocked wakes every goroutine currently parked in waitLocked.
// Must be called with mu held.
func (r *Room) broadcastLocked() {
	close(r.waitCh)
	r.waitCh = make(chan struct{})
}

// waitLocked blocks until cond() is true or timeout elapses, releasing mu
// while parked the way a condition variable would (Design Note: "Condition
// variable with a per-room lock"). On timeout it returns regardless of
// cond(), matching spec.md §5's "the barrier unconditionally advances...
// and proceeds" rule. Must be called with mu held; returns with mu held.
func (r *Room) waitLocked(timeout time.Duration, cond func() bool) {
	start := time.Now()
	defer func() {
		metrics.SyncBarrierWait.Observe(time.Since(start).Seconds())
	}()

	deadline := time.Now().Add(timeout)
	for !cond() {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}
		ch := r.waitCh
		r.mu.Unlock()
		timer := time.NewTimer(remaining)
		select {
		case <-ch:
			timer.Stop()
		case <-timer.C:
		}
		r.mu.Lock()
	}
}

func (r *Room) tailLocked() *SyncRecord {
	return r.syncRecords[r.syncOrder[len(r.syncOrder)-1]]
}

func (r *Room) prevLocked() *SyncRecord {
	if len(r.syncOrder) < 2 {
		return nil
	}
	return r.syncRecords[r.syncOrder[len(r.syncOrder)-2]]
}

func (r *Room) isOwnerLocked(userID string) bool {
	return len(r.userOrder) > 0 && r.userOrder[0] == userID
}
