// Package ratelimit throttles POST /v1/room/create and POST /v1/room/join
// per source IP, using the teacher's ulule/limiter store/middleware
// construction pattern. The core sync barrier's own 100ms-per-user rate
// limit (spec.md §6) lives in the room package instead — this package
// only guards the two unauthenticated entry points an attacker could
// hammer to exhaust the room registry or brute-force room names.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/traP-jp/ShoutWars-server/internal/v1/config"
	"github.com/traP-jp/ShoutWars-server/internal/v1/logging"
	"github.com/traP-jp/ShoutWars-server/internal/v1/metrics"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// RateLimiter holds the per-IP limiter instances for the two
// unauthenticated entry points.
type RateLimiter struct {
	roomCreate *limiter.Limiter
	roomJoin   *limiter.Limiter
	store      limiter.Store
}

// NewRateLimiter builds a RateLimiter backed by Redis when redisClient is
// non-nil, or an in-process memory store otherwise (dev mode, or Redis
// disabled per REDIS_ENABLED=false).
func NewRateLimiter(cfg *config.Config, redisClient *redis.Client) (*RateLimiter, error) {
	createRate, err := limiter.NewRateFromFormatted(cfg.RateLimitRoomCreate)
	if err != nil {
		return nil, fmt.Errorf("invalid room create rate: %w", err)
	}
	joinRate, err := limiter.NewRateFromFormatted(cfg.RateLimitRoomJoin)
	if err != nil {
		return nil, fmt.Errorf("invalid room join rate: %w", err)
	}

	var store limiter.Store
	if redisClient != nil {
		s, err := sredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{
			Prefix: "limiter:v1:",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis store: %w", err)
		}
		store = s
		logging.Info(context.Background(), "rate limiter using Redis store")
	} else {
		store = memory.NewStore()
		logging.Warn(context.Background(), "rate limiter using memory store (Redis disabled)")
	}

	return &RateLimiter{
		roomCreate: limiter.New(store, createRate),
		roomJoin:   limiter.New(store, joinRate),
		store:      store,
	}, nil
}

// RoomCreate limits POST /v1/room/create by source IP.
func (rl *RateLimiter) RoomCreate() gin.HandlerFunc {
	return rl.middleware(rl.roomCreate, "room_create")
}

// RoomJoin limits POST /v1/room/join by source IP.
func (rl *RateLimiter) RoomJoin() gin.HandlerFunc {
	return rl.middleware(rl.roomJoin, "room_join")
}

func (rl *RateLimiter) middleware(lim *limiter.Limiter, endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := endpoint + ":" + c.ClientIP()

		limCtx, err := lim.Get(ctx, key)
		if err != nil {
			logging.Error(ctx, "rate limiter store failed", zap.Error(err))
			c.Next() // fail open: availability over strictness
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(limCtx.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(limCtx.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(limCtx.Reset, 10))

		if limCtx.Reached {
			metrics.RateLimitExceeded.WithLabelValues(endpoint, "ip").Inc()
			c.Header("Retry-After", strconv.FormatInt(limCtx.Reset, 10))
			data, err := msgpack.Marshal(map[string]string{"error": "Too many requests."})
			if err != nil {
				c.AbortWithStatus(http.StatusTooManyRequests)
				return
			}
			c.Data(http.StatusTooManyRequests, "application/msgpack", data)
			c.Abort()
			return
		}

		metrics.RateLimitRequests.WithLabelValues(endpoint).Inc()
		c.Next()
	}
}
