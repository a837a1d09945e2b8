package room

import (
	"time"

	"github.com/traP-jp/ShoutWars-server/internal/v1/apperror"
)

// SyncRateLimit is the minimum spacing between two successful syncs from
// the same user (spec.md §6). Enforced by the core via User.lastTime
// rather than the transport's ratelimit package, since it depends on
// per-user state the transport has no business tracking.
const SyncRateLimit = 100 * time.Millisecond

// DeliveredEvent is an Event as it appears in a sync response. SyncID is
// set only when the event comes from a record other than the one returned
// as the response's top-level id (spec.md §6), letting clients tell
// catch-up history apart from the current tick.
type DeliveredEvent struct {
	ID     string `msgpack:"id"`
	From   string `msgpack:"from"`
	Type   string `msgpack:"type"`
	Data   any    `msgpack:"event"`
	SyncID string `msgpack:"sync_id,omitempty"`
}

// SyncResult is what Room.Sync hands back to the transport for the
// response body `{id, reports, actions, room_users}`.
type SyncResult struct {
	ID        string
	Reports   []DeliveredEvent
	Actions   []DeliveredEvent
	RoomUsers []Info
}

// Sync runs the barrier algorithm described in spec.md §4.3 for callerID,
// merging its reports/actions into the current tail, waiting (bounded) for
// stragglers and late fan-out, then returning every record the caller
// hasn't consumed yet. newInfo/updateInfo let the owner push a room_info
// update in the same call; non-owners silently have it ignored.
func (r *Room) Sync(callerID string, reportsIn, actionsIn []Event, newInfo any, updateInfo bool) (*SyncResult, *apperror.Error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[callerID]
	if !ok {
		return nil, apperror.Forbiddenf("User is not a member of this room.")
	}
	if user.lastSynced && time.Since(user.lastTime) < SyncRateLimit {
		return nil, apperror.TooManyRequestsf("Sync rate exceeded.")
	}

	tail := r.tailLocked()
	if tail.GetPhase(callerID) != CREATED {
		return nil, apperror.Forbiddenf("Already synced this tick.")
	}
	if tail.GetMaxPhase() >= SYNCED {
		return nil, apperror.Forbiddenf("Tick closed.")
	}

	for i := range reportsIn {
		reportsIn[i].From = callerID
	}
	for i := range actionsIn {
		actionsIn[i].From = callerID
	}

	// Step 1: submit this tick's events, advancing caller to WAITING.
	if err := tail.AddEvents(callerID, reportsIn, actionsIn); err != nil {
		return nil, err
	}

	// Step 2: give other users a bounded chance to move the tail past
	// WAITING before the caller proceeds. This wait only runs when nobody
	// has yet moved past WAITING on the tail and the caller has not reached
	// SYNCED on prev (for example, it skipped the previous tick); a caller
	// that completed prev goes straight on.
	prev := r.prevLocked()
	if tail.GetMaxPhase() <= WAITING && prev != nil && prev.GetPhase(callerID) != SYNCED {
		r.waitLocked(r.waitTimeout, func() bool { return tail.GetMaxPhase() > WAITING })
	}

	// Step 3: caller enters SYNCING, wake anyone parked on this room.
	tail.AdvancePhase(callerID, SYNCING)
	r.broadcastLocked()

	// Step 4: give any user still at CREATED a last chance to post before
	// the tail is observed as closed by a participant.
	if r.anyUserAtOrBelowCreatedLocked(tail) {
		r.waitLocked(r.syncTimeout, func() bool { return tail.GetMaxPhase() > SYNCING })
	}

	// Step 5: caller is done with this record.
	tail.AdvancePhase(callerID, SYNCED)
	r.broadcastLocked()

	// Step 6: collect every record newer than the caller's cursor, up to
	// and including tail, marking each as consumed by the caller.
	records := r.collectSinceLocked(user.lastSyncID, tail.ID)
	for _, rec := range records {
		rec.AdvancePhase(callerID, SYNCED)
	}

	// Step 7: spawn the next tail once every current user is either
	// untouched or already past this one — whoever crosses that line last
	// does the spawning; everyone else's concurrent call will see it
	// already exists.
	if r.allEligibleForNextTailLocked(tail) {
		next := NewSyncRecord()
		r.syncRecords[next.ID] = next
		r.syncOrder = append(r.syncOrder, next.ID)
		r.broadcastLocked()
	}

	// Step 8: advance caller's cursor.
	user.UpdateLast(tail.ID)

	// Owner may piggyback a room_info update on its sync call.
	if updateInfo && r.isOwnerLocked(callerID) {
		r.info = newInfo
	}

	return r.buildSyncResultLocked(callerID, tail.ID, records), nil
}

func (r *Room) anyUserAtOrBelowCreatedLocked(tail *SyncRecord) bool {
	for _, uid := range r.userOrder {
		if tail.GetPhase(uid) <= CREATED {
			return true
		}
	}
	return false
}

func (r *Room) allEligibleForNextTailLocked(tail *SyncRecord) bool {
	for _, uid := range r.userOrder {
		p := tail.GetPhase(uid)
		if p != CREATED && p < SYNCED {
			return false
		}
	}
	return true
}

// collectSinceLocked returns records with id strictly greater than
// lastSyncID, up to and including tailID, in ascending (creation) order.
// syncOrder is append-only and its ids are time-ordered, so the window is
// always a contiguous slice.
func (r *Room) collectSinceLocked(lastSyncID, tailID string) []*SyncRecord {
	var out []*SyncRecord
	for _, id := range r.syncOrder {
		if id <= lastSyncID {
			continue
		}
		out = append(out, r.syncRecords[id])
		if id == tailID {
			break
		}
	}
	return out
}

func (r *Room) buildSyncResultLocked(callerID, tailID string, records []*SyncRecord) *SyncResult {
	var reports, actions []DeliveredEvent
	for _, rec := range records {
		isTail := rec.ID == tailID
		for _, e := range rec.GetReports() {
			if e.From == callerID {
				continue // reports are never echoed back to their author
			}
			de := DeliveredEvent{ID: e.ID, From: e.From, Type: e.Type, Data: e.Data}
			if !isTail {
				de.SyncID = rec.ID
			}
			reports = append(reports, de)
		}
		for _, e := range rec.GetActions() {
			de := DeliveredEvent{ID: e.ID, From: e.From, Type: e.Type, Data: e.Data}
			if !isTail {
				de.SyncID = rec.ID
			}
			actions = append(actions, de)
		}
	}

	users := make([]Info, 0, len(r.userOrder))
	for _, id := range r.userOrder {
		users = append(users, r.users[id].Info())
	}

	return &SyncResult{
		ID:        tailID,
		Reports:   reports,
		Actions:   actions,
		RoomUsers: users,
	}
}
