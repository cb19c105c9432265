package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"moodfood-backend/internal/llm"
	"moodfood-backend/internal/shared/metrics"
	"moodfood-backend/internal/shared/telemetry"
)

// Config for the Anthropic provider.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int64
	Timeout   time.Duration
}

// Client implements llm.Provider with the Messages API.
type Client struct {
	api sdk.Client
	cfg Config
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "claude-3-5-haiku-latest"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 500
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Client{api: sdk.NewClient(opts...), cfg: cfg}, nil
}

func (c *Client) Classify(ctx context.Context, text string) (string, error) {
	out, err := c.complete(ctx, "classify", llm.MoodPrompt(text), 10, 0.3)
	if err != nil {
		return "", err
	}
	return llm.NormalizeMood(out), nil
}

func (c *Client) Personalize(ctx context.Context, input llm.PersonalizeInput) ([]string, error) {
	out, err := c.complete(ctx, "personalize", llm.ReasonPrompt(input), c.cfg.MaxTokens, 0.7)
	if err != nil {
		return nil, err
	}
	return llm.ParseReasons(out)
}

func (c *Client) Reply(ctx context.Context, message string) (string, error) {
	out, err := c.complete(ctx, "reply", llm.CounselorPrompt(message), c.cfg.MaxTokens, 0.7)
	if errors.Is(err, llm.ErrEmptyResponse) {
		return llm.NoReply, nil
	}
	return out, err
}

func (c *Client) complete(ctx context.Context, capability string, messages []llm.Message, maxTokens int64, temperature float64) (text string, err error) {
	start := time.Now()
	defer func() { metrics.ObserveExternalCall(capability, start, err) }()

	params := sdk.MessageNewParams{
		Model:       sdk.Model(c.cfg.Model),
		MaxTokens:   maxTokens,
		Temperature: sdk.Float(temperature),
	}
	for _, m := range messages {
		switch m.Role {
		case llm.RoleSystem:
			params.System = append(params.System, sdk.TextBlockParam{Text: m.Content})
		case llm.RoleAssistant:
			params.Messages = append(params.Messages, sdk.NewAssistantMessage(sdk.NewTextBlock(m.Content)))
		default:
			params.Messages = append(params.Messages, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
		}
	}

	resp, err := c.api.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic %s: %w", capability, err)
	}
	telemetry.Debug("llm.response", map[string]any{
		"provider":      "anthropic",
		"capability":    capability,
		"model":         string(resp.Model),
		"input_tokens":  resp.Usage.InputTokens,
		"output_tokens": resp.Usage.OutputTokens,
		"duration_ms":   time.Since(start).Milliseconds(),
	})
	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	text = strings.TrimSpace(b.String())
	if text == "" {
		return "", llm.ErrEmptyResponse
	}
	return text, nil
}

var _ llm.Provider = (*Client)(nil)
