package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"moodfood-backend/internal/catalog"
	"moodfood-backend/internal/mood"
	"moodfood-backend/internal/shared/metrics"
	"moodfood-backend/internal/shared/telemetry"
)

const (
	MinInputLength = 5
	MinQueryLength = 2
	MaxBatchInputs = 10
	MaxDetectBatch = 50
	DefaultLimit   = 5
	defaultWorkers = 4
)

var supportedFeatures = []string{
	"mood_detection",
	"ai_personalization",
	"food_filtering",
	"batch_processing",
}

// Options tune a recommendation request.
type Options struct {
	Limit              int             `json:"limit"`
	Filters            catalog.Filters `json:"filters"`
	PersonalizeReasons bool            `json:"personalize_reasons"`
	Strategies         []string        `json:"strategies"`
}

// AIMonitor reports the state of the external provider's circuit breaker.
type AIMonitor interface {
	State() string
}

// Service is the caller-facing recommendation API.
type Service struct {
	Detector     *mood.Detector
	Catalog      *catalog.Cache
	Builder      *Builder
	AI           AIMonitor
	DefaultLimit int
	BatchWorkers int
	Now          func() time.Time
}

// GetRecommendations detects the mood of input and returns matching foods.
func (s *Service) GetRecommendations(ctx context.Context, input string, opts Options) (Envelope, error) {
	input = strings.TrimSpace(input)
	if utf8.RuneCountInString(input) < MinInputLength {
		return Envelope{}, ErrInputTooShort
	}
	strategies, err := s.strategies(opts.Strategies)
	if err != nil {
		return Envelope{}, err
	}
	if err := s.ensureLoaded(ctx); err != nil {
		return Envelope{}, err
	}

	det, err := s.Detector.Detect(ctx, input, strategies...)
	if err != nil {
		return Envelope{}, s.validation(err)
	}
	env, err := s.build(ctx, input, det, opts)
	s.observe(err)
	if err != nil {
		return Envelope{}, err
	}
	telemetry.Info("recommend.served", map[string]any{
		"mood":         env.Mood,
		"strategy":     env.MoodDetectionStrategy,
		"confidence":   env.MoodConfidence,
		"count":        len(env.Recommendations),
		"personalized": env.Personalized,
	})
	return env, nil
}

// GetRecommendationsByMood skips detection and serves the named mood bucket.
func (s *Service) GetRecommendationsByMood(ctx context.Context, raw string, opts Options) (Envelope, error) {
	m, ok := mood.ParseLabel(raw)
	if !ok {
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownMood, raw)
	}
	if err := s.ensureLoaded(ctx); err != nil {
		return Envelope{}, err
	}
	opts.PersonalizeReasons = false
	env, err := s.build(ctx, "", mood.ManualResult(m), opts)
	s.observe(err)
	return env, err
}

func (s *Service) build(ctx context.Context, input string, det mood.Result, opts Options) (Envelope, error) {
	sel, err := s.Catalog.Select(det.Mood, s.limit(opts.Limit), opts.Filters)
	if err != nil {
		return Envelope{}, err
	}
	return s.Builder.Build(ctx, input, det, sel.Foods, BuildOptions{
		Personalize:    opts.PersonalizeReasons,
		Filters:        opts.Filters,
		TotalAvailable: sel.Total,
		DataVersion:    sel.Version,
	})
}

func (s *Service) observe(err error) {
	switch {
	case err == nil:
		metrics.Recommendations.WithLabelValues("ok").Inc()
	case errors.Is(err, ErrNoCandidates):
		metrics.Recommendations.WithLabelValues("no_candidates").Inc()
	default:
		metrics.Recommendations.WithLabelValues("error").Inc()
	}
}

// BatchEntry is one input of a batch; the envelope fields are inlined on success.
type BatchEntry struct {
	Input   string `json:"input"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	*Envelope
}

// BatchResponse keeps entries in input order.
type BatchResponse struct {
	Total      int          `json:"total"`
	Successful int          `json:"successful"`
	Failed     int          `json:"failed"`
	Results    []BatchEntry `json:"results"`
}

// GetBatchRecommendations runs GetRecommendations for up to MaxBatchInputs
// inputs concurrently. Individual failures are reported per entry.
func (s *Service) GetBatchRecommendations(ctx context.Context, inputs []string, opts Options) (BatchResponse, error) {
	if len(inputs) == 0 || len(inputs) > MaxBatchInputs {
		return BatchResponse{}, ErrBatchSize
	}
	if _, err := s.strategies(opts.Strategies); err != nil {
		return BatchResponse{}, err
	}

	entries := make([]BatchEntry, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers())
	for i, input := range inputs {
		g.Go(func() error {
			env, err := s.GetRecommendations(gctx, input, opts)
			if err != nil {
				entries[i] = BatchEntry{Input: input, Error: err.Error()}
				return nil
			}
			entries[i] = BatchEntry{Input: input, Success: true, Envelope: &env}
			return nil
		})
	}
	_ = g.Wait()

	resp := BatchResponse{Total: len(entries), Results: entries}
	for _, e := range entries {
		if e.Success {
			resp.Successful++
		} else {
			resp.Failed++
		}
	}
	return resp, nil
}

// DetectMood classifies input without touching the catalog.
func (s *Service) DetectMood(ctx context.Context, input string, strategyNames []string) (mood.Result, error) {
	strategies, err := s.strategies(strategyNames)
	if err != nil {
		return mood.Result{}, err
	}
	res, err := s.Detector.Detect(ctx, input, strategies...)
	if err != nil {
		return mood.Result{}, s.validation(err)
	}
	return res, nil
}

// DetectMoodBatch classifies every input independently and summarises the run.
func (s *Service) DetectMoodBatch(ctx context.Context, inputs []string, strategyNames []string) (mood.BatchResult, error) {
	if len(inputs) == 0 || len(inputs) > MaxDetectBatch {
		return mood.BatchResult{}, fmt.Errorf("%w: batch must contain between 1 and %d inputs", ErrValidation, MaxDetectBatch)
	}
	strategies, err := s.strategies(strategyNames)
	if err != nil {
		return mood.BatchResult{}, err
	}
	return s.Detector.DetectBatch(ctx, inputs, strategies...), nil
}

// SearchResult is returned by SearchFoods.
type SearchResult struct {
	Query        string             `json:"query"`
	TotalMatches int                `json:"total_matches"`
	Foods        []catalog.FoodItem `json:"foods"`
	Timestamp    time.Time          `json:"timestamp"`
}

// SearchFoods matches query against names, descriptions and tags.
func (s *Service) SearchFoods(ctx context.Context, query string, limit int, filters catalog.Filters) (SearchResult, error) {
	trimmed := strings.TrimSpace(query)
	if utf8.RuneCountInString(trimmed) < MinQueryLength {
		return SearchResult{}, ErrQueryTooShort
	}
	if err := s.ensureLoaded(ctx); err != nil {
		return SearchResult{}, err
	}
	foods, err := s.Catalog.Search(trimmed, filters, limit)
	if err != nil {
		return SearchResult{}, err
	}
	if foods == nil {
		foods = []catalog.FoodItem{}
	}
	return SearchResult{Query: query, TotalMatches: len(foods), Foods: foods, Timestamp: s.now().UTC()}, nil
}

// GetFoodDetails returns one catalog item.
func (s *Service) GetFoodDetails(ctx context.Context, id string) (catalog.FoodItem, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return catalog.FoodItem{}, err
	}
	item, ok := s.Catalog.GetByID(id)
	if !ok {
		return catalog.FoodItem{}, fmt.Errorf("%w: food %q", ErrNotFound, id)
	}
	return item, nil
}

// GetAvailableOptions lists the values callers can filter on.
func (s *Service) GetAvailableOptions(ctx context.Context) (catalog.Options, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return catalog.Options{}, err
	}
	return s.Catalog.Options()
}

// ReloadData re-reads the catalog source. The old snapshot survives a failure.
func (s *Service) ReloadData(ctx context.Context) (catalog.ReloadSummary, error) {
	return s.Catalog.Reload(ctx)
}

// ServiceInfo describes static service capabilities.
type ServiceInfo struct {
	Initialized       bool     `json:"initialized"`
	DefaultLimit      int      `json:"default_limit"`
	SupportedFeatures []string `json:"supported_features"`
}

// ServiceHealth is the component breakdown reported with analytics.
type ServiceHealth struct {
	Database      catalog.Status `json:"database"`
	MoodDetection MoodHealth     `json:"mood_detection"`
	AIService     AIHealth       `json:"ai_service"`
}

// MoodHealth reports the detector; keyword analysis is always available.
type MoodHealth struct {
	Status          string   `json:"status"`
	KeywordAnalyzer string   `json:"keyword_analyzer"`
	AIService       AIHealth `json:"ai_service"`
}

// AIHealth reports the external provider.
type AIHealth struct {
	Status  string `json:"status"`
	Breaker string `json:"breaker,omitempty"`
}

// Analytics is the catalog analytics plus service health.
type Analytics struct {
	catalog.Analytics
	ServiceHealth ServiceHealth `json:"service_health"`
	ServiceInfo   ServiceInfo   `json:"service_info"`
}

// GetAnalytics reports catalog distributions and component health.
func (s *Service) GetAnalytics(ctx context.Context) (Analytics, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return Analytics{}, err
	}
	base, err := s.Catalog.Analytics()
	if err != nil {
		return Analytics{}, err
	}
	ai := s.aiHealth()
	return Analytics{
		Analytics: base,
		ServiceHealth: ServiceHealth{
			Database:      s.Catalog.Status(),
			MoodDetection: s.moodHealth(ai),
			AIService:     ai,
		},
		ServiceInfo: ServiceInfo{
			Initialized:       s.Catalog.Loaded(),
			DefaultLimit:      s.limit(0),
			SupportedFeatures: append([]string(nil), supportedFeatures...),
		},
	}, nil
}

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// HealthReport is returned by HealthCheck.
type HealthReport struct {
	Status    string          `json:"status"`
	Checks    map[string]bool `json:"checks"`
	Timestamp time.Time       `json:"timestamp"`
}

// HealthCheck is healthy when every component is, unhealthy without a
// catalog, and degraded otherwise.
func (s *Service) HealthCheck(ctx context.Context) HealthReport {
	ai := s.aiHealth()
	checks := map[string]bool{
		"database":     s.Catalog.Loaded(),
		"mood_service": s.moodHealth(ai).Status == StatusHealthy,
		"ai_service":   ai.Status == StatusHealthy,
	}
	status := StatusHealthy
	switch {
	case !checks["database"]:
		status = StatusUnhealthy
	case !checks["mood_service"] || !checks["ai_service"]:
		status = StatusDegraded
	}
	if ctx.Err() != nil {
		status = StatusUnhealthy
	}
	return HealthReport{Status: status, Checks: checks, Timestamp: s.now().UTC()}
}

func (s *Service) aiHealth() AIHealth {
	if s.Detector.Classifier == nil {
		return AIHealth{Status: "unconfigured"}
	}
	if s.AI == nil {
		return AIHealth{Status: StatusHealthy}
	}
	state := s.AI.State()
	if state == "open" {
		return AIHealth{Status: StatusUnhealthy, Breaker: state}
	}
	return AIHealth{Status: StatusHealthy, Breaker: state}
}

func (s *Service) moodHealth(ai AIHealth) MoodHealth {
	status := StatusHealthy
	if ai.Status != StatusHealthy {
		status = StatusDegraded
	}
	return MoodHealth{Status: status, KeywordAnalyzer: StatusHealthy, AIService: ai}
}

// ensureLoaded performs the first load lazily when startup could not.
func (s *Service) ensureLoaded(ctx context.Context) error {
	if s.Catalog.Loaded() {
		return nil
	}
	if err := s.Catalog.Load(ctx); err != nil {
		return fmt.Errorf("%w: %v", catalog.ErrNotLoaded, err)
	}
	return nil
}

func (s *Service) strategies(names []string) ([]mood.Strategy, error) {
	strategies, err := s.Detector.ParseStrategies(names)
	if err != nil {
		return nil, s.validation(err)
	}
	return strategies, nil
}

// validation re-parents mood input errors under ErrValidation.
func (s *Service) validation(err error) error {
	if errors.Is(err, mood.ErrInvalidInput) {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return err
}

func (s *Service) limit(requested int) int {
	if requested > 0 {
		return requested
	}
	if s.DefaultLimit > 0 {
		return s.DefaultLimit
	}
	return DefaultLimit
}

func (s *Service) workers() int {
	if s.BatchWorkers > 0 {
		return s.BatchWorkers
	}
	return defaultWorkers
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
