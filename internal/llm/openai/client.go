package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"moodfood-backend/internal/llm"
	"moodfood-backend/internal/shared/metrics"
	"moodfood-backend/internal/shared/telemetry"
)

// DashScopeBaseURL is the OpenAI-compatible endpoint of Alibaba Model Studio.
const DashScopeBaseURL = "https://dashscope-intl.aliyuncs.com/compatible-mode/v1"

// Config selects models and sampling for each capability.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	ChatModel   string
	MaxTokens   int64
	Temperature float64
	Timeout     time.Duration
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.BaseURL) == "" {
		c.BaseURL = DashScopeBaseURL
	}
	if strings.TrimSpace(c.Model) == "" {
		c.Model = "qwen-max"
	}
	if strings.TrimSpace(c.ChatModel) == "" {
		c.ChatModel = "qwen1.5-14b-chat"
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 500
	}
	if c.Temperature <= 0 {
		c.Temperature = 0.7
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return c
}

// Client implements llm.Provider over any OpenAI-compatible chat API.
type Client struct {
	api openai.Client
	cfg Config
}

// NewClient constructs a client. The API key is required.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("DASHSCOPE_API_KEY is required")
	}
	cfg = cfg.withDefaults()
	api := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(0),
	)
	return &Client{api: api, cfg: cfg}, nil
}

// Classify asks for a single mood word.
func (c *Client) Classify(ctx context.Context, text string) (string, error) {
	content, err := c.complete(ctx, "classify", openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(c.cfg.Model),
		Messages:    toParams(llm.MoodPrompt(text)),
		MaxTokens:   openai.Int(10),
		Temperature: openai.Float(0.3),
	})
	if err != nil {
		return "", err
	}
	return llm.NormalizeMood(content), nil
}

// Personalize asks for a JSON object with one reason per dish.
func (c *Client) Personalize(ctx context.Context, input llm.PersonalizeInput) ([]string, error) {
	content, err := c.complete(ctx, "personalize", openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(c.cfg.Model),
		Messages:    toParams(llm.ReasonPrompt(input)),
		MaxTokens:   openai.Int(c.cfg.MaxTokens),
		Temperature: openai.Float(c.cfg.Temperature),
	})
	if err != nil {
		return nil, err
	}
	return llm.ParseReasons(content)
}

// Reply runs the counselling conversation. An empty answer becomes llm.NoReply.
func (c *Client) Reply(ctx context.Context, message string) (string, error) {
	content, err := c.complete(ctx, "reply", openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(c.cfg.ChatModel),
		Messages:    toParams(llm.CounselorPrompt(message)),
		Temperature: openai.Float(0.7),
		TopP:        openai.Float(0.9),
	})
	if errors.Is(err, llm.ErrEmptyResponse) {
		return llm.NoReply, nil
	}
	return content, err
}

func (c *Client) complete(ctx context.Context, capability string, params openai.ChatCompletionNewParams) (content string, err error) {
	start := time.Now()
	defer func() { metrics.ObserveExternalCall(capability, start, err) }()

	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai %s: %w", capability, err)
	}
	telemetry.Debug("llm.response", map[string]any{
		"provider":          "openai",
		"capability":        capability,
		"model":             resp.Model,
		"prompt_tokens":     resp.Usage.PromptTokens,
		"completion_tokens": resp.Usage.CompletionTokens,
		"duration_ms":       time.Since(start).Milliseconds(),
	})
	if len(resp.Choices) == 0 {
		return "", llm.ErrEmptyResponse
	}
	content = strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", llm.ErrEmptyResponse
	}
	return content, nil
}

func toParams(messages []llm.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case llm.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case llm.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

var _ llm.Provider = (*Client)(nil)
