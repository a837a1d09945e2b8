package room

import (
	"time"

	"github.com/traP-jp/ShoutWars-server/internal/v1/apperror"
	"github.com/traP-jp/ShoutWars-server/internal/v1/idgen"
)

// User is a room membership record. It is mutable but not itself
// thread-safe: mutation is serialized by the owning room's lock (spec.md
// §4.2), so there is no per-user mutex the way the C++ user_t had one for
// its name field.
type User struct {
	ID         string
	name       string
	lastSyncID string // empty means "no cursor yet"
	lastTime   time.Time
	lastSynced bool // true once UpdateLast has run at least once
}

// NewUser creates a room membership record for name, validating length.
func NewUser(name string) (*User, *apperror.Error) {
	u := &User{ID: idgen.New()}
	if err := u.SetName(name); err != nil {
		return nil, err
	}
	return u, nil
}

func (u *User) Name() string { return u.name }

// SetName validates the 1-32 char display name constraint.
func (u *User) SetName(name string) *apperror.Error {
	if len(name) < 1 || len(name) > 32 {
		return apperror.BadRequestf("Invalid user name: must be between 1 and 32 characters.")
	}
	u.name = name
	return nil
}

func (u *User) LastSyncID() string { return u.lastSyncID }

func (u *User) LastTime() time.Time { return u.lastTime }

// UpdateLast sets the user's cursor and refreshes its last-active instant.
func (u *User) UpdateLast(syncID string) {
	u.lastSyncID = syncID
	u.lastTime = time.Now()
	u.lastSynced = true
}

// Info is the wire-facing projection of a User (no internal cursor state).
type Info struct {
	ID   string `msgpack:"id"`
	Name string `msgpack:"name"`
}

func (u *User) Info() Info {
	return Info{ID: u.ID, Name: u.name}
}
