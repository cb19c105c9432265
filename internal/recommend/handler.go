package recommend

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"moodfood-backend/internal/catalog"
	"moodfood-backend/internal/shared/server/respond"
)

// Handler exposes the recommendation service over HTTP.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches recommendation and mood routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rec := rg.Group("/recommendations")
	rec.POST("", h.recommend)
	rec.POST("/batch", h.recommendBatch)
	rec.GET("/mood/:mood", h.byMood)
	rec.GET("/search", h.search)
	rec.GET("/food/:id", h.foodDetails)
	rec.GET("/options", h.options)
	rec.GET("/analytics", h.analytics)
	rec.POST("/reload", h.reload)
	rec.GET("/health", h.health)

	rg.POST("/moods/detect", h.detect)
	rg.POST("/moods/detect/batch", h.detectBatch)
}

type recommendRequest struct {
	Input   string  `json:"input"`
	Options Options `json:"options"`
}

type batchRequest struct {
	Inputs  []string `json:"inputs"`
	Options Options  `json:"options"`
}

type detectRequest struct {
	Input      string   `json:"input"`
	Strategies []string `json:"strategies"`
}

type detectBatchRequest struct {
	Inputs     []string `json:"inputs"`
	Strategies []string `json:"strategies"`
}

func (h *Handler) recommend(c *gin.Context) {
	var req recommendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	env, err := h.Svc.GetRecommendations(c.Request.Context(), req.Input, req.Options)
	if err != nil {
		writeError(c, err, "failed to build recommendations")
		return
	}
	c.Set("mood", string(env.Mood))
	c.Set("moodStrategy", string(env.MoodDetectionStrategy))
	respond.OK(c, env)
}

func (h *Handler) recommendBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	resp, err := h.Svc.GetBatchRecommendations(c.Request.Context(), req.Inputs, req.Options)
	if err != nil {
		writeError(c, err, "failed to build batch recommendations")
		return
	}
	respond.OK(c, resp)
}

func (h *Handler) byMood(c *gin.Context) {
	filters, err := filtersFromQuery(c)
	if err != nil {
		writeError(c, err, "")
		return
	}
	opts := Options{Limit: intQuery(c, "limit"), Filters: filters}
	env, err := h.Svc.GetRecommendationsByMood(c.Request.Context(), c.Param("mood"), opts)
	if err != nil {
		writeError(c, err, "failed to build recommendations")
		return
	}
	respond.OK(c, env)
}

func (h *Handler) search(c *gin.Context) {
	filters, err := filtersFromQuery(c)
	if err != nil {
		writeError(c, err, "")
		return
	}
	res, err := h.Svc.SearchFoods(c.Request.Context(), c.Query("q"), intQuery(c, "limit"), filters)
	if err != nil {
		writeError(c, err, "failed to search foods")
		return
	}
	respond.OK(c, res)
}

func (h *Handler) foodDetails(c *gin.Context) {
	item, err := h.Svc.GetFoodDetails(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, "failed to fetch food")
		return
	}
	respond.OK(c, item)
}

func (h *Handler) options(c *gin.Context) {
	opts, err := h.Svc.GetAvailableOptions(c.Request.Context())
	if err != nil {
		writeError(c, err, "failed to list options")
		return
	}
	respond.OK(c, opts)
}

func (h *Handler) analytics(c *gin.Context) {
	a, err := h.Svc.GetAnalytics(c.Request.Context())
	if err != nil {
		writeError(c, err, "failed to compute analytics")
		return
	}
	respond.OK(c, a)
}

func (h *Handler) reload(c *gin.Context) {
	summary, err := h.Svc.ReloadData(c.Request.Context())
	if err != nil {
		writeError(c, err, "failed to reload catalog")
		return
	}
	respond.OK(c, summary)
}

func (h *Handler) health(c *gin.Context) {
	report := h.Svc.HealthCheck(c.Request.Context())
	status := http.StatusOK
	if report.Status == StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	respond.JSON(c, status, report)
}

func (h *Handler) detect(c *gin.Context) {
	var req detectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	res, err := h.Svc.DetectMood(c.Request.Context(), req.Input, req.Strategies)
	if err != nil {
		writeError(c, err, "failed to detect mood")
		return
	}
	respond.OK(c, res)
}

func (h *Handler) detectBatch(c *gin.Context) {
	var req detectBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	res, err := h.Svc.DetectMoodBatch(c.Request.Context(), req.Inputs, req.Strategies)
	if err != nil {
		writeError(c, err, "failed to detect moods")
		return
	}
	respond.OK(c, res)
}

// filtersFromQuery reads snake_case parameters and the camelCase aliases
// older clients send.
func filtersFromQuery(c *gin.Context) (catalog.Filters, error) {
	f := catalog.Filters{
		Category:   c.Query("category"),
		Difficulty: c.Query("difficulty"),
		PriceRange: firstQuery(c, "price_range", "priceRange"),
	}
	if raw := firstQuery(c, "max_prep_time", "maxPrepTime"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return catalog.Filters{}, errInvalidQuery("max_prep_time must be a non-negative integer")
		}
		f.MaxPrepTime = n
	}
	for _, raw := range c.QueryArray("tags") {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				f.Tags = append(f.Tags, tag)
			}
		}
	}
	return f, nil
}

func errInvalidQuery(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

func firstQuery(c *gin.Context, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(c.Query(k)); v != "" {
			return v
		}
	}
	return ""
}

func intQuery(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func writeError(c *gin.Context, err error, fallback string) {
	var loadErr *catalog.LoadError
	switch {
	case errors.Is(err, ErrValidation):
		respond.Error(c, http.StatusBadRequest, "validation_error", validationMessage(err), nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, ErrNoCandidates):
		respond.Error(c, http.StatusNotFound, "no_candidates", err.Error(), nil)
	case errors.Is(err, catalog.ErrNotLoaded):
		respond.Error(c, http.StatusServiceUnavailable, "catalog_unavailable", "food catalog is not loaded", nil)
	case errors.As(err, &loadErr):
		respond.Error(c, http.StatusInternalServerError, "catalog_load_failed", loadErr.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}

// validationMessage drops the generic parent prefix.
func validationMessage(err error) string {
	msg := err.Error()
	msg = strings.TrimPrefix(msg, ErrValidation.Error()+": ")
	return msg
}
