// Package idgen generates the time-ordered 128-bit ids used throughout the
// room engine (Design Note: "Id generation"). Every entity — room, user,
// event, sync record, session — gets one of these so that an ordered map
// keyed by id iterates in creation order without a separate timestamp field.
package idgen

import "github.com/google/uuid"

// New returns a fresh UUIDv7, rendered later as its canonical 36-char
// hyphenated string. uuid.NewV7 is monotonic within a process at
// millisecond+ resolution, which is what the barrier's "highest-id entry"
// and "strictly greater than" comparisons rely on.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails if the process entropy source is broken; a
		// random v4 id is still unique, just not time-ordered.
		return uuid.NewString()
	}
	return id.String()
}

// Valid reports whether s parses as a canonical UUID string. The transport
// uses this to turn a malformed room/session id into a 400 before it ever
// reaches the core.
func Valid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
