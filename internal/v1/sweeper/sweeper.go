// Package sweeper runs the single background worker that evicts expired
// rooms, kicks silent users, trims settled sync records, and purges
// orphaned sessions. Grounded on the cleaner thread in
// _examples/original_source/room_list.cpp/.hpp (room_list_t::start_cleaner
// / stop_cleaner), rewritten with a context.Context + a done channel the
// way the teacher's main.go shuts its own long-lived goroutines down.
package sweeper

import (
	"context"
	"time"

	"github.com/traP-jp/ShoutWars-server/internal/v1/metrics"
	"github.com/traP-jp/ShoutWars-server/internal/v1/room"
	"github.com/traP-jp/ShoutWars-server/internal/v1/roomregistry"
	"github.com/traP-jp/ShoutWars-server/internal/v1/sessionregistry"
)

type Logger = room.Logger

const (
	DefaultInterval    = 3 * time.Second
	DefaultUserTimeout = 10 * time.Second
)

// Sweeper is a single dedicated worker; it is never replicated per-room.
type Sweeper struct {
	rooms       *roomregistry.Registry
	sessions    *sessionregistry.Registry
	interval    time.Duration
	userTimeout time.Duration
	logger      Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func New(rooms *roomregistry.Registry, sessions *sessionregistry.Registry, interval, userTimeout time.Duration, logger Logger) *Sweeper {
	if logger == nil {
		logger = room.NopLogger{}
	}
	return &Sweeper{
		rooms:       rooms,
		sessions:    sessions,
		interval:    interval,
		userTimeout: userTimeout,
		logger:      logger,
	}
}

// Start launches the worker goroutine. It is safe to call Stop even if
// Start was never called.
func (s *Sweeper) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce()
			}
		}
	}()
}

// runOnce performs one sweep, catching and logging any fault so the loop
// never exits on its own (spec.md §5: "Exceptions are caught and logged;
// the loop never exits until a shutdown flag is set").
func (s *Sweeper) runOnce() {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("sweeper cycle panicked", "panic", rec)
		}
	}()

	s.rooms.Clean(s.userTimeout)
	s.sessions.Clean(func(sess sessionregistry.Session) bool {
		r, err := s.rooms.Get(sess.RoomID)
		if err != nil {
			return true // room is gone
		}
		return !r.HasUser(sess.UserID)
	})

	live := s.rooms.GetAll()
	users := 0
	for _, r := range live {
		users += r.CountUsers()
	}
	metrics.RoomsActive.Set(float64(len(live)))
	metrics.UsersActive.Set(float64(users))
}

// Stop signals the worker to exit and waits for it to finish, up to ctx's
// deadline.
func (s *Sweeper) Stop(ctx context.Context) error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
