package llm

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"moodfood-backend/internal/shared/telemetry"
)

const retryBaseDelay = 300 * time.Millisecond

// Retrying repeats a call once when the failure looks transient.
type Retrying struct {
	Base  Provider
	Delay time.Duration
}

// NewRetrying wraps base; a nil base stays nil.
func NewRetrying(base Provider) Provider {
	if base == nil {
		return nil
	}
	return &Retrying{Base: base, Delay: retryBaseDelay}
}

func (r *Retrying) Classify(ctx context.Context, text string) (string, error) {
	return retryOnce(ctx, r.Delay, "classify", func(ctx context.Context) (string, error) {
		return r.Base.Classify(ctx, text)
	})
}

func (r *Retrying) Personalize(ctx context.Context, input PersonalizeInput) ([]string, error) {
	return retryOnce(ctx, r.Delay, "personalize", func(ctx context.Context) ([]string, error) {
		return r.Base.Personalize(ctx, input)
	})
}

func (r *Retrying) Reply(ctx context.Context, message string) (string, error) {
	return retryOnce(ctx, r.Delay, "reply", func(ctx context.Context) (string, error) {
		return r.Base.Reply(ctx, message)
	})
}

func retryOnce[T any](ctx context.Context, delay time.Duration, capability string, call func(context.Context) (T, error)) (T, error) {
	resp, err := call(ctx)
	if err == nil || !ShouldRetry(err) {
		return resp, err
	}

	telemetry.Warn("llm.retry", map[string]any{
		"capability": capability,
		"attempt":    1,
		"error":      err.Error(),
	})
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
	return call(ctx)
}

// ShouldRetry reports whether err is worth a second attempt.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotImplemented) || errors.Is(err, ErrInvalidResponse) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "500 internal server error") ||
		strings.Contains(msg, "502 bad gateway") ||
		strings.Contains(msg, "503 service unavailable") ||
		strings.Contains(msg, "504 gateway timeout") ||
		strings.Contains(msg, "429 too many requests") ||
		strings.Contains(msg, "server_error") {
		return true
	}
	if strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection closed") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "tls handshake timeout") ||
		strings.Contains(msg, "eof") {
		return true
	}
	return false
}
