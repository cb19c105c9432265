package health

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"moodfood-backend/internal/recommend"
	"moodfood-backend/internal/shared/server/respond"
	"moodfood-backend/internal/shared/storage/db"
	"moodfood-backend/internal/shared/telemetry"
)

const defaultTimeout = 2 * time.Second

// Pinger is satisfied by the kv stores.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker reports catalog, mood detection and AI provider state.
type HealthChecker interface {
	HealthCheck(ctx context.Context) recommend.HealthReport
}

// Service encapsulates health-related checks.
type Service struct {
	DB        *sql.DB
	Cache     Pinger
	Recommend HealthChecker
	Timeout   time.Duration
	Now       func() time.Time
}

// NewService constructs a new health service. Any dependency may be nil;
// unconfigured components are left out of the report.
func NewService(database *sql.DB, cache Pinger, rec HealthChecker) *Service {
	return &Service{DB: database, Cache: cache, Recommend: rec, Timeout: defaultTimeout, Now: time.Now}
}

// Report is the body of GET /health.
type Report struct {
	Status    string          `json:"status"`
	Checks    map[string]bool `json:"checks"`
	Timestamp time.Time       `json:"timestamp"`
}

// Status is unhealthy when the catalog is unavailable and degraded when any
// other component fails.
func (s *Service) Status(ctx context.Context) Report {
	var base recommend.HealthReport
	if s.Recommend != nil {
		base = s.Recommend.HealthCheck(ctx)
	} else {
		base = recommend.HealthReport{Status: recommend.StatusHealthy}
	}
	checks := make(map[string]bool, len(base.Checks)+2)
	for k, v := range base.Checks {
		checks[k] = v
	}

	var dbErr, cacheErr error
	g, gctx := errgroup.WithContext(ctx)
	if s.DB != nil {
		g.Go(func() error {
			dbErr = db.Ping(gctx, s.DB, s.timeout())
			return nil
		})
	}
	if s.Cache != nil {
		g.Go(func() error {
			pingCtx, cancel := context.WithTimeout(gctx, s.timeout())
			defer cancel()
			cacheErr = s.Cache.Ping(pingCtx)
			return nil
		})
	}
	_ = g.Wait()

	if s.DB != nil {
		checks["postgres"] = dbErr == nil
		logFailure("postgres", dbErr)
	}
	if s.Cache != nil {
		checks["cache"] = cacheErr == nil
		logFailure("cache", cacheErr)
	}

	status := base.Status
	if status == "" {
		status = recommend.StatusHealthy
	}
	if status == recommend.StatusHealthy && (dbErr != nil || cacheErr != nil) {
		status = recommend.StatusDegraded
	}
	return Report{Status: status, Checks: checks, Timestamp: s.now().UTC()}
}

// RegisterRoutes attaches GET /health.
func (s *Service) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", s.handle)
}

func (s *Service) handle(c *gin.Context) {
	report := s.Status(c.Request.Context())
	code := http.StatusOK
	if report.Status == recommend.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	respond.JSON(c, code, report)
}

func logFailure(component string, err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	telemetry.Warn("health.check_failed", map[string]any{
		"component": component,
		"error":     err.Error(),
	})
}

func (s *Service) timeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return defaultTimeout
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
