package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{"config.yaml", "config.yml"}

// Config holds application configuration. Keys are the lower-cased
// environment variable names, in YAML files too.
type Config struct {
	Port            string   `koanf:"port"`
	Env             string   `koanf:"env"`
	LogLevel        string   `koanf:"log_level"`
	CORSAllowOrigin []string `koanf:"cors_allow_origins"`
	AutoMigrate     bool     `koanf:"auto_migrate"`

	DatabaseURL string `koanf:"database_url"`
	RedisURL    string `koanf:"redis_url"`
	RedisPrefix string `koanf:"redis_prefix"`

	// Pool overrides; zero keeps the per-process default.
	DBMaxOpenConns    int           `koanf:"db_max_open_conns"`
	DBMaxIdleConns    int           `koanf:"db_max_idle_conns"`
	DBConnMaxLifetime time.Duration `koanf:"db_conn_max_lifetime"`
	DBConnMaxIdleTime time.Duration `koanf:"db_conn_max_idle_time"`
	DBPingTimeout     time.Duration `koanf:"db_ping_timeout"`

	// CatalogSource is postgres, local or s3.
	CatalogSource string `koanf:"catalog_source"`
	CatalogKey    string `koanf:"catalog_key"`
	LocalStoreDir string `koanf:"local_store_dir"`
	AWSRegion     string `koanf:"aws_region"`
	S3Bucket      string `koanf:"s3_bucket"`
	S3Prefix      string `koanf:"s3_prefix"`
	SSEKMSKeyID   string `koanf:"sse_kms_key_id"`

	// CatalogQueueURL is the SQS queue announcing published catalogs.
	CatalogQueueURL         string        `koanf:"catalog_queue_url"`
	WorkerConcurrency       int           `koanf:"worker_concurrency"`
	WorkerVisibilityTimeout time.Duration `koanf:"worker_visibility_timeout"`
	WorkerShutdownTimeout   time.Duration `koanf:"worker_shutdown_timeout"`

	// LLMProvider is dashscope, openai, anthropic or none.
	LLMProvider     string        `koanf:"llm_provider"`
	LLMModel        string        `koanf:"llm_model"`
	LLMChatModel    string        `koanf:"llm_chat_model"`
	LLMBaseURL      string        `koanf:"llm_base_url"`
	LLMMaxTokens    int           `koanf:"llm_max_tokens"`
	LLMTemperature  float64       `koanf:"llm_temperature"`
	LLMTimeout      time.Duration `koanf:"llm_timeout"`
	DashScopeAPIKey string        `koanf:"dashscope_api_key"`
	OpenAIAPIKey    string        `koanf:"openai_api_key"`
	AnthropicAPIKey string        `koanf:"anthropic_api_key"`

	BreakerFailureThreshold uint32        `koanf:"breaker_failure_threshold"`
	BreakerOpenTimeout      time.Duration `koanf:"breaker_open_timeout"`
	ClassificationCacheTTL  time.Duration `koanf:"classification_cache_ttl"`

	MoodClassifierTimeout time.Duration `koanf:"mood_classifier_timeout"`
	MoodTimezone          string        `koanf:"mood_timezone"`
	PersonalizeTimeout    time.Duration `koanf:"personalize_timeout"`
	RecommendationLimit   int           `koanf:"recommendation_limit"`
	BatchWorkers          int           `koanf:"batch_workers"`

	RateLimitRPS     float64 `koanf:"rate_limit_rps"`
	RateLimitBurst   int     `koanf:"rate_limit_burst"`
	AIRateLimitRPS   float64 `koanf:"ai_rate_limit_rps"`
	AIRateLimitBurst int     `koanf:"ai_rate_limit_burst"`

	JWTSecret          string        `koanf:"jwt_secret"`
	JWTTTL             time.Duration `koanf:"jwt_ttl"`
	GoogleClientID     string        `koanf:"google_client_id"`
	GoogleClientSecret string        `koanf:"google_client_secret"`
	GoogleRedirectURL  string        `koanf:"google_redirect_url"`
	UIRedirectURL      string        `koanf:"ui_redirect_url"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	return Config{
		Port:            "8080",
		Env:             "dev",
		LogLevel:        "info",
		CORSAllowOrigin: []string{"http://localhost:5173"},

		RedisPrefix: "moodfood:",

		CatalogSource: "local",
		CatalogKey:    "foods.json",
		LocalStoreDir: "./data",

		WorkerConcurrency:       2,
		WorkerVisibilityTimeout: 5 * time.Minute,
		WorkerShutdownTimeout:   30 * time.Second,

		LLMProvider:    "dashscope",
		LLMMaxTokens:   500,
		LLMTemperature: 0.7,
		LLMTimeout:     30 * time.Second,

		BreakerFailureThreshold: 5,
		BreakerOpenTimeout:      30 * time.Second,
		ClassificationCacheTTL:  6 * time.Hour,

		MoodClassifierTimeout: 8 * time.Second,
		PersonalizeTimeout:    15 * time.Second,
		RecommendationLimit:   5,
		BatchWorkers:          4,

		RateLimitRPS:     10,
		RateLimitBurst:   20,
		AIRateLimitRPS:   1,
		AIRateLimitBurst: 5,

		JWTTTL: 24 * time.Hour,
	}
}

var sliceKeys = []string{"cors_allow_origins"}

// Load layers defaults, an optional YAML file and the environment, in
// that order of precedence.
func Load() (Config, error) {
	if err := loadEnvFiles(DefaultEnvFiles...); err != nil {
		return Config{}, fmt.Errorf("load env files: %w", err)
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	known := knownKeys()
	transform := func(key string) string {
		key = strings.ToLower(key)
		if _, ok := known[key]; !ok {
			return ""
		}
		return key
	}
	if err := k.Load(env.Provider("", ".", transform), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}
	if err := splitSlices(k); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports settings that cannot work together.
func (c Config) Validate() error {
	var errs []error
	switch c.CatalogSource {
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("CATALOG_SOURCE=postgres requires DATABASE_URL"))
		}
	case "s3":
		if c.S3Bucket == "" {
			errs = append(errs, errors.New("CATALOG_SOURCE=s3 requires S3_BUCKET"))
		}
	case "local":
	default:
		errs = append(errs, fmt.Errorf("unknown CATALOG_SOURCE %q", c.CatalogSource))
	}
	switch c.LLMProvider {
	case "dashscope", "openai", "anthropic", "none":
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider))
	}
	if c.MoodTimezone != "" {
		if _, err := time.LoadLocation(c.MoodTimezone); err != nil {
			errs = append(errs, fmt.Errorf("MOOD_TIMEZONE: %w", err))
		}
	}
	if c.Env == "production" {
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required in production"))
		}
		if c.JWTSecret == "" {
			errs = append(errs, errors.New("JWT_SECRET is required in production"))
		}
	}
	return errors.Join(errs...)
}

// Location resolves MoodTimezone, defaulting to the process zone.
func (c Config) Location() *time.Location {
	if c.MoodTimezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.MoodTimezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// LLMAPIKey returns the key for the configured provider.
func (c Config) LLMAPIKey() string {
	switch c.LLMProvider {
	case "anthropic":
		return c.AnthropicAPIKey
	case "openai":
		return c.OpenAIAPIKey
	default:
		return c.DashScopeAPIKey
	}
}

func (c *Config) normalize() {
	c.Env = normalizeEnv(c.Env)
	c.CatalogSource = strings.ToLower(strings.TrimSpace(c.CatalogSource))
	c.LLMProvider = strings.ToLower(strings.TrimSpace(c.LLMProvider))
	if c.LLMProvider == "" {
		c.LLMProvider = "none"
	}
	c.CORSAllowOrigin = trimAll(c.CORSAllowOrigin)
}

func findConfigFile() string {
	if p := strings.TrimSpace(os.Getenv(ConfigPathEnvVar)); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func knownKeys() map[string]struct{} {
	t := reflect.TypeOf(Config{})
	out := make(map[string]struct{}, t.NumField())
	for i := range t.NumField() {
		if tag := t.Field(i).Tag.Get("koanf"); tag != "" {
			out[tag] = struct{}{}
		}
	}
	return out
}

func splitSlices(k *koanf.Koanf) error {
	for _, key := range sliceKeys {
		raw, ok := k.Get(key).(string)
		if !ok {
			continue
		}
		if err := k.Set(key, trimAll(strings.Split(raw, ","))); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	return nil
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}
