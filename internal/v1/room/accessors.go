package room

import (
	"context"
	"time"

	"github.com/traP-jp/ShoutWars-server/internal/v1/apperror"
	"github.com/traP-jp/ShoutWars-server/internal/v1/bus"
	"github.com/traP-jp/ShoutWars-server/internal/v1/metrics"
)

// Join admits user into the room. Fails with BAD_REQUEST on a version
// mismatch, FORBIDDEN if the game has started, the room is full, or the
// user is already present.
func (r *Room) Join(version string, user *User) *apperror.Error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if version != r.Version {
		return apperror.BadRequestf("Invalid room version: %s. This roon version is %s.", version, r.Version)
	}
	if !r.inLobby {
		return apperror.Forbiddenf("Game already started.")
	}
	if len(r.userOrder) >= r.Size {
		return apperror.Forbiddenf("Room is full.")
	}
	if _, exists := r.users[user.ID]; exists {
		return apperror.Forbiddenf("User already in room.")
	}

	// The new user's cursor starts at the previous tail if one exists
	// beyond the current tail, else nil (Design Note: joiner cursor).
	if len(r.syncOrder) >= 2 {
		user.lastSyncID = r.syncOrder[len(r.syncOrder)-2]
	} else {
		user.lastSyncID = ""
	}
	user.lastTime = time.Now()
	r.users[user.ID] = user
	r.userOrder = append(r.userOrder, user.ID)

	r.logger.Info("user joined room", "room_id", r.ID, "user_id", user.ID)
	return nil
}

// GetUser returns a snapshot of the member with id.
func (r *Room) GetUser(id string) (*User, *apperror.Error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, apperror.NotFoundf("User not found.")
	}
	cp := *u
	return &cp, nil
}

func (r *Room) HasUser(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.users[id]
	return ok
}

// GetUsers returns member info in join order, owner first.
func (r *Room) GetUsers() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Info, 0, len(r.userOrder))
	for _, id := range r.userOrder {
		out = append(out, r.users[id].Info())
	}
	return out
}

func (r *Room) GetUserIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.userOrder))
	copy(out, r.userOrder)
	return out
}

// GetOwner returns the first-joined user. NOT_FOUND should not occur given
// the room invariants, but is returned defensively on an empty room.
func (r *Room) GetOwner() (*User, *apperror.Error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.userOrder) == 0 {
		return nil, apperror.NotFoundf("Room has no owner.")
	}
	cp := *r.users[r.userOrder[0]]
	return &cp, nil
}

func (r *Room) CountUsers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.userOrder)
}

// Kick removes id from the room, reporting whether it was present.
func (r *Room) Kick(id string) bool {
	r.mu.Lock()
	ok := r.kickLocked(id)
	b := r.bus
	r.mu.Unlock()

	if ok {
		b.Publish(context.Background(), r.ID, bus.EventUserKicked, map[string]string{"user_id": id})
	}
	return ok
}

func (r *Room) kickLocked(id string) bool {
	if _, ok := r.users[id]; !ok {
		return false
	}
	delete(r.users, id)
	for i, uid := range r.userOrder {
		if uid == id {
			r.userOrder = append(r.userOrder[:i], r.userOrder[i+1:]...)
			break
		}
	}
	r.logger.Info("user kicked", "room_id", r.ID, "user_id", id)
	return true
}

// KickExpired removes every user whose last activity predates timeout,
// returning the count kicked.
func (r *Room) KickExpired(timeout time.Duration) int {
	r.mu.Lock()

	cutoff := time.Now().Add(-timeout)
	var expired []string
	for _, id := range r.userOrder {
		if r.users[id].lastTime.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		r.kickLocked(id)
	}
	if len(expired) > 0 {
		r.logger.Info("kicked expired users", "room_id", r.ID, "count", len(expired))
	}
	b := r.bus
	r.mu.Unlock()

	for _, id := range expired {
		b.Publish(context.Background(), r.ID, bus.EventUserKicked, map[string]string{"user_id": id})
	}
	return len(expired)
}

// StartGame transitions the room out of the lobby. Fails FORBIDDEN if
// already started or fewer than two users are present.
func (r *Room) StartGame() *apperror.Error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.inLobby {
		return apperror.Forbiddenf("Game already started.")
	}
	if len(r.userOrder) < 2 {
		return apperror.Forbiddenf("Not enough users to start game.")
	}
	r.inLobby = false
	r.expireTime = time.Now().Add(r.gameLifetime)
	r.logger.Info("game started", "room_id", r.ID)
	return nil
}

func (r *Room) IsInLobby() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inLobby
}

// IsAvailable reports whether the sweeper should keep this room alive:
// false once past expireTime, otherwise a lobby needs >=1 user and a game
// needs >=2.
func (r *Room) IsAvailable() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if time.Now().After(r.expireTime) {
		return false
	}
	if r.inLobby {
		return len(r.userOrder) >= 1
	}
	return len(r.userOrder) >= 2
}

func (r *Room) GetInfo() any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.info
}

// UpdateInfo overwrites the room-level info blob. Callers (the sync
// barrier) are responsible for checking the caller is the owner; this
// method just performs the write under the room lock.
func (r *Room) UpdateInfo(newInfo any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.info = newInfo
}

// CleanSyncRecords removes every record other than the current tail whose
// phase is SYNCED for every current user. Called by the sweeper.
func (r *Room) CleanSyncRecords() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.syncOrder) <= 1 {
		return 0
	}

	kept := make([]string, 0, len(r.syncOrder))
	removed := 0
	last := len(r.syncOrder) - 1
	for i, id := range r.syncOrder {
		if i == last {
			kept = append(kept, id)
			continue
		}
		rec := r.syncRecords[id]
		settled := true
		for _, uid := range r.userOrder {
			if rec.GetPhase(uid) < SYNCED {
				settled = false
				break
			}
		}
		if settled {
			delete(r.syncRecords, id)
			removed++
		} else {
			kept = append(kept, id)
		}
	}
	r.syncOrder = kept
	metrics.SyncRecordsLive.WithLabelValues(r.ID).Set(float64(len(kept)))
	return removed
}
