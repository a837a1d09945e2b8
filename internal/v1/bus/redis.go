// Package bus is an optional, additive observability tap: it publishes
// room lifecycle events (room.created, room.closed, user.kicked,
// game.started) to Redis pub/sub so an external dashboard or log shipper
// can watch rooms across a fleet of server instances, without the core
// room/roomregistry packages depending on Redis at all. Nil-safe and a
// no-op whenever Redis is disabled.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"github.com/traP-jp/ShoutWars-server/internal/v1/metrics"
)

// Event is the envelope published for every room lifecycle occurrence.
type Event struct {
	RoomID  string          `json:"roomId"`
	Kind    string          `json:"kind"` // "room.created", "room.closed", "user.kicked", "game.started"
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	EventRoomCreated = "room.created"
	EventRoomClosed  = "room.closed"
	EventUserKicked  = "user.kicked"
	EventGameStarted = "game.started"
)

// channelPrefix namespaces every room's event channel.
const channelPrefix = "shoutwars:room:"

// Service handles interaction with the Redis pub/sub cluster.
type Service struct {
	client *redis.Client
	cb     *gobreaker.CircuitBreaker
}

// Client returns the underlying Redis client, for health checks.
func (s *Service) Client() *redis.Client {
	if s == nil {
		return nil
	}
	return s.client
}

// NewService creates a Redis connection wrapped in a circuit breaker.
func NewService(addr, password string) (*Service, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	st := gobreaker.Settings{
		Name:        "redis",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     15 * time.Second,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			var stateVal float64
			switch to {
			case gobreaker.StateClosed:
				stateVal = 0
			case gobreaker.StateOpen:
				stateVal = 1
			case gobreaker.StateHalfOpen:
				stateVal = 2
			}
			metrics.CircuitBreakerState.WithLabelValues("redis").Set(stateVal)
		},
	}

	slog.Info("connected to Redis event bus", "addr", addr)
	return &Service{
		client: rdb,
		cb:     gobreaker.NewCircuitBreaker(st),
	}, nil
}

// Publish broadcasts a room lifecycle event. A nil Service (Redis disabled)
// and an open circuit breaker both degrade to a silent no-op: the event
// bus is observability, never a dependency of game correctness.
func (s *Service) Publish(ctx context.Context, roomID, kind string, payload any) error {
	if s == nil || s.client == nil {
		return nil
	}

	start := time.Now()
	defer func() {
		metrics.RedisOperationDuration.WithLabelValues("publish").Observe(time.Since(start).Seconds())
	}()

	_, err := s.cb.Execute(func() (interface{}, error) {
		inner, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal event payload: %w", err)
		}
		evt := Event{RoomID: roomID, Kind: kind, Payload: inner}
		data, err := json.Marshal(evt)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal event envelope: %w", err)
		}
		return nil, s.client.Publish(ctx, channelPrefix+roomID, data).Err()
	})

	if err != nil {
		if err == gobreaker.ErrOpenState {
			metrics.CircuitBreakerFailures.WithLabelValues("redis").Inc()
			metrics.RedisOperationsTotal.WithLabelValues("publish", "circuit_open").Inc()
			slog.Warn("redis circuit breaker open: dropping event", "room_id", roomID, "kind", kind)
			return nil
		}
		metrics.RedisOperationsTotal.WithLabelValues("publish", "error").Inc()
		slog.Error("redis publish failed", "room_id", roomID, "kind", kind, "error", err)
		return err
	}
	metrics.RedisOperationsTotal.WithLabelValues("publish", "ok").Inc()
	return nil
}

// Subscribe starts a background goroutine delivering every event published
// for roomID to handler, until ctx is cancelled.
func (s *Service) Subscribe(ctx context.Context, roomID string, handler func(Event)) {
	if s == nil || s.client == nil {
		return
	}

	channel := channelPrefix + roomID
	pubsub := s.client.Subscribe(ctx, channel)

	go func() {
		defer pubsub.Close()
		slog.Info("subscribed to redis event channel", "channel", channel)

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var evt Event
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					slog.Error("failed to unmarshal redis event", "error", err, "raw", msg.Payload)
					continue
				}
				handler(evt)
			}
		}
	}()
}

// Ping checks Redis connectivity.
func (s *Service) Ping(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}

	start := time.Now()
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.Ping(ctx).Err()
	})
	metrics.RedisOperationDuration.WithLabelValues("ping").Observe(time.Since(start).Seconds())
	if err != nil {
		if err == gobreaker.ErrOpenState {
			metrics.CircuitBreakerFailures.WithLabelValues("redis").Inc()
			metrics.RedisOperationsTotal.WithLabelValues("ping", "circuit_open").Inc()
		} else {
			metrics.RedisOperationsTotal.WithLabelValues("ping", "error").Inc()
		}
		return err
	}
	metrics.RedisOperationsTotal.WithLabelValues("ping", "ok").Inc()
	return nil
}

// Close gracefully shuts down the Redis connection.
func (s *Service) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
