package llm

import (
	"context"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"moodfood-backend/internal/shared/telemetry"
)

// BreakerSettings tunes the circuit breakers in Guarded.
type BreakerSettings struct {
	FailureThreshold uint32
	OpenTimeout      time.Duration
	Interval         time.Duration
}

// DefaultBreakerSettings opens after five consecutive failures for 30s.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{FailureThreshold: 5, OpenTimeout: 30 * time.Second, Interval: time.Minute}
}

// Guarded stops calling a failing provider for a while so requests degrade
// to keyword detection and default reasons without waiting on timeouts.
type Guarded struct {
	base        Provider
	classify    *gobreaker.CircuitBreaker[string]
	personalize *gobreaker.CircuitBreaker[[]string]
	reply       *gobreaker.CircuitBreaker[string]
}

// NewGuarded wraps base with one breaker per capability.
func NewGuarded(base Provider, s BreakerSettings) *Guarded {
	if s.FailureThreshold == 0 {
		s = DefaultBreakerSettings()
	}
	return &Guarded{
		base:        base,
		classify:    gobreaker.NewCircuitBreaker[string](breakerSettings("llm.classify", s)),
		personalize: gobreaker.NewCircuitBreaker[[]string](breakerSettings("llm.personalize", s)),
		reply:       gobreaker.NewCircuitBreaker[string](breakerSettings("llm.reply", s)),
	}
}

func breakerSettings(name string, s BreakerSettings) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    s.Interval,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			telemetry.Warn("llm.breaker_state", map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	}
}

func (g *Guarded) Classify(ctx context.Context, text string) (string, error) {
	return g.classify.Execute(func() (string, error) {
		return g.base.Classify(ctx, text)
	})
}

func (g *Guarded) Personalize(ctx context.Context, input PersonalizeInput) ([]string, error) {
	return g.personalize.Execute(func() ([]string, error) {
		return g.base.Personalize(ctx, input)
	})
}

func (g *Guarded) Reply(ctx context.Context, message string) (string, error) {
	return g.reply.Execute(func() (string, error) {
		return g.base.Reply(ctx, message)
	})
}

// State reports the classify breaker, which is what health checks care about.
func (g *Guarded) State() string {
	return g.classify.State().String()
}

var _ Provider = (*Guarded)(nil)
