package transport

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/traP-jp/ShoutWars-server/internal/v1/middleware"
	"github.com/traP-jp/ShoutWars-server/internal/v1/ratelimit"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// NewRouter builds the gin engine for the server: CORS, correlation id,
// tracing, recovery, bearer auth, rate limiting on the two unauthenticated
// entry points, then the /v1 route group.
func NewRouter(srv *Server, rl *ratelimit.RateLimiter, bearerSecret string, allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CorrelationID())
	r.Use(otelgin.Middleware("shoutwars-server"))

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowOrigins = allowedOrigins
	r.Use(cors.New(corsCfg))

	r.Use(middleware.BearerAuth(bearerSecret))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	{
		v1.POST("/room/create", rl.RoomCreate(), srv.CreateRoom)
		v1.POST("/room/join", rl.RoomJoin(), srv.JoinRoom)
		v1.POST("/room/start", srv.StartRoom)
		v1.POST("/room/sync", srv.Sync)
		v1.GET("/status", srv.Status)
	}

	r.NoRoute(NotFound)
	return r
}
