package server

import (
	"github.com/gin-gonic/gin"

	"moodfood-backend/internal/shared/config"
	"moodfood-backend/internal/shared/metrics"
	"moodfood-backend/internal/shared/server/middleware"
)

// RouteRegistrar is implemented by every feature handler.
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// RouterDeps carries the handlers mounted under /api/v1. Nil entries are
// skipped.
type RouterDeps struct {
	Config         config.Config
	Health         RouteRegistrar
	Recommend      RouteRegistrar
	Users          RouteRegistrar
	Chats          RouteRegistrar
	GoogleAuth     RouteRegistrar
	PublicPrefixes []string
	Limiter        *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	public := deps.PublicPrefixes
	if len(public) == 0 {
		public = middleware.DefaultPublicPrefixes
	}

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
		middleware.Auth(cfg.Env, public...),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules: map[string]middleware.RateLimitRule{
				"DEFAULT": {Rate: cfg.RateLimitRPS, Burst: cfg.RateLimitBurst},
				"AI":      {Rate: cfg.AIRateLimitRPS, Burst: cfg.AIRateLimitBurst},
			},
			GroupFor: middleware.RecommendationGroups,
			Limiter:  deps.Limiter,
		}),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	for _, h := range []RouteRegistrar{deps.Health, deps.GoogleAuth, deps.Users, deps.Recommend, deps.Chats} {
		if h == nil {
			continue
		}
		h.RegisterRoutes(api)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
