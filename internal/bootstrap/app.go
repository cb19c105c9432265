package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	googleauth "moodfood-backend/internal/auth"
	"moodfood-backend/internal/catalog"
	"moodfood-backend/internal/chats"
	"moodfood-backend/internal/llm"
	anthropicllm "moodfood-backend/internal/llm/anthropic"
	openaillm "moodfood-backend/internal/llm/openai"
	"moodfood-backend/internal/mood"
	"moodfood-backend/internal/queue"
	"moodfood-backend/internal/recommend"
	"moodfood-backend/internal/services/health"
	"moodfood-backend/internal/shared/auth"
	"moodfood-backend/internal/shared/config"
	"moodfood-backend/internal/shared/server"
	"moodfood-backend/internal/shared/storage/db"
	"moodfood-backend/internal/shared/storage/kv"
	"moodfood-backend/internal/shared/storage/object"
	localstore "moodfood-backend/internal/shared/storage/object/local"
	s3store "moodfood-backend/internal/shared/storage/object/s3"
	"moodfood-backend/internal/shared/telemetry"
	"moodfood-backend/internal/users"
	"moodfood-backend/internal/workerproc"
)

const openAIBaseURL = "https://api.openai.com/v1"

// App holds shared dependencies and the assembled router.
type App struct {
	Config  config.Config
	Router  *gin.Engine
	DB      *sql.DB
	Cache   kv.Store
	Objects object.Store
	Catalog *catalog.Cache

	// AI is nil when no provider is configured.
	AI       *llm.Guarded
	Detector *mood.Detector

	RecommendService *recommend.Service
	UsersService     *users.Service
	ChatsService     *chats.Service
	GoogleAuth       *googleauth.GoogleService
	Health           *health.Service
}

// Build prepares every dependency and wires the router. The catalog is
// loaded eagerly; a failure is logged and retried on first use.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	telemetry.SetLevel(cfg.LogLevel)
	auth.Configure(cfg.JWTSecret, cfg.Env, cfg.JWTTTL)

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	cache, err := buildCache(cfg)
	if err != nil {
		return nil, err
	}

	objects, err := buildObjects(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:  cfg,
		DB:      sqlDB,
		Cache:   cache,
		Objects: objects,
	}

	source, err := buildCatalogSource(cfg, sqlDB, objects)
	if err != nil {
		return nil, err
	}
	app.Catalog = catalog.NewCache(source)
	if err := app.Catalog.Load(ctx); err != nil {
		telemetry.Warn("bootstrap.catalog_load_failed", map[string]any{
			"source": source.Name(),
			"error":  err.Error(),
		})
	}

	if err := buildServices(app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:     cfg,
		Health:     app.Health,
		Recommend:  recommend.NewHandler(app.RecommendService),
		Users:      users.NewHandler(app.UsersService),
		Chats:      chats.NewHandler(app.ChatsService),
		GoogleAuth: app.GoogleAuth,
	})

	return app, nil
}

// Close releases pooled connections.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	if closer, ok := a.Cache.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}

// PoolOptions applies the DB_* pool settings from cfg onto base.
func PoolOptions(cfg config.Config, base db.Options) db.Options {
	return base.With(db.Options{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
		PingTimeout:     cfg.DBPingTimeout,
	})
}

// openDatabase shares one pool per Lambda execution environment and opens
// a regular pool elsewhere.
func openDatabase(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if db.IsLambdaRuntime() {
		return db.GetSingleton(ctx, cfg.DatabaseURL, PoolOptions(cfg, db.DefaultLambdaOptions()))
	}
	return db.Connect(ctx, cfg.DatabaseURL, PoolOptions(cfg, db.DefaultServerOptions()))
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		telemetry.Info("bootstrap.memory_repositories", map[string]any{"reason": "DATABASE_URL empty"})
		return nil, nil
	}

	sqlDB, err := openDatabase(ctx, cfg)
	if err != nil {
		if isDevLike(cfg.Env) && cfg.CatalogSource != "postgres" {
			telemetry.Warn("bootstrap.db_connect_failed", map[string]any{
				"fallback": "memory",
				"error":    err.Error(),
			})
			return nil, nil
		}
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return sqlDB, nil
}

func buildCache(cfg config.Config) (kv.Store, error) {
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return kv.NewMemoryStore(), nil
	}
	store, err := kv.NewRedisStore(cfg.RedisURL, cfg.RedisPrefix)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return store, nil
}

func buildObjects(ctx context.Context, cfg config.Config) (object.Store, error) {
	if cfg.CatalogSource == "s3" || strings.TrimSpace(cfg.S3Bucket) != "" {
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	}
	return localstore.New(cfg.LocalStoreDir), nil
}

func buildCatalogSource(cfg config.Config, sqlDB *sql.DB, objects object.Store) (catalog.Source, error) {
	switch cfg.CatalogSource {
	case "postgres":
		if sqlDB == nil {
			return nil, fmt.Errorf("CATALOG_SOURCE=postgres requires a database connection")
		}
		return &catalog.PGRepo{DB: sqlDB}, nil
	default:
		return &catalog.ObjectSource{Store: objects, Key: cfg.CatalogKey}, nil
	}
}

// NewProvider builds the configured LLM backend. It returns nil when
// LLM_PROVIDER is none.
func NewProvider(cfg config.Config) (llm.Provider, error) {
	switch cfg.LLMProvider {
	case "dashscope", "openai":
		base := cfg.LLMBaseURL
		if base == "" && cfg.LLMProvider == "openai" {
			base = openAIBaseURL
		}
		return openaillm.NewClient(openaillm.Config{
			APIKey:      cfg.LLMAPIKey(),
			BaseURL:     base,
			Model:       cfg.LLMModel,
			ChatModel:   cfg.LLMChatModel,
			MaxTokens:   int64(cfg.LLMMaxTokens),
			Temperature: cfg.LLMTemperature,
			Timeout:     cfg.LLMTimeout,
		})
	case "anthropic":
		return anthropicllm.NewClient(anthropicllm.Config{
			APIKey:    cfg.LLMAPIKey(),
			BaseURL:   cfg.LLMBaseURL,
			Model:     cfg.LLMModel,
			MaxTokens: int64(cfg.LLMMaxTokens),
			Timeout:   cfg.LLMTimeout,
		})
	default:
		return nil, nil
	}
}

func buildServices(app *App) error {
	cfg := app.Config

	provider, err := NewProvider(cfg)
	if err != nil {
		if cfg.Env == "production" {
			return err
		}
		telemetry.Warn("bootstrap.llm_disabled", map[string]any{
			"provider": cfg.LLMProvider,
			"error":    err.Error(),
		})
		provider = nil
	}

	var (
		classifier   mood.Classifier
		personalizer llm.Personalizer
		counselor    llm.Counselor
		aiMonitor    recommend.AIMonitor
	)
	if provider != nil {
		guarded := llm.NewGuarded(llm.NewRetrying(provider), llm.BreakerSettings{
			FailureThreshold: cfg.BreakerFailureThreshold,
			OpenTimeout:      cfg.BreakerOpenTimeout,
			Interval:         llm.DefaultBreakerSettings().Interval,
		})
		app.AI = guarded
		classifier = &llm.CachedClassifier{Base: guarded, Store: app.Cache, TTL: cfg.ClassificationCacheTTL}
		personalizer = guarded
		counselor = guarded
		aiMonitor = guarded
	}

	detector := mood.NewDetector(nil, classifier)
	detector.Location = cfg.Location()
	if cfg.MoodClassifierTimeout > 0 {
		detector.ExternalTimeout = cfg.MoodClassifierTimeout
	}
	if cfg.BatchWorkers > 0 {
		detector.BatchWorkers = cfg.BatchWorkers
	}
	app.Detector = detector

	app.RecommendService = &recommend.Service{
		Detector:     detector,
		Catalog:      app.Catalog,
		Builder:      &recommend.Builder{Personalizer: personalizer, Timeout: cfg.PersonalizeTimeout},
		AI:           aiMonitor,
		DefaultLimit: cfg.RecommendationLimit,
		BatchWorkers: cfg.BatchWorkers,
	}

	var (
		userRepo users.Repo
		chatRepo chats.Repo
	)
	if app.DB != nil {
		userRepo = &users.PGRepo{DB: app.DB}
		chatRepo = &chats.PGRepo{DB: app.DB}
	} else {
		userRepo = users.NewMemoryRepo()
		chatRepo = chats.NewMemoryRepo()
	}

	app.UsersService = users.NewService(userRepo)
	app.ChatsService = chats.NewService(chatRepo, counselor, detector)
	app.GoogleAuth = googleauth.NewGoogleService(googleauth.GoogleConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		UIRedirect:   cfg.UIRedirectURL,
	}, app.UsersService, app.Cache)

	var pinger health.Pinger
	if _, isRedis := app.Cache.(*kv.RedisStore); isRedis {
		pinger = app.Cache
	}
	app.Health = health.NewService(app.DB, pinger, app.RecommendService)
	return nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

// BuildCatalogSync wires the queue consumer that mirrors published catalogs
// into Postgres. The returned func closes the database.
func BuildCatalogSync(ctx context.Context, cfg config.Config) (*workerproc.Processor, func(), error) {
	telemetry.SetLevel(cfg.LogLevel)
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, nil, fmt.Errorf("catalog sync requires DATABASE_URL")
	}

	sqlDB, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	objects, err := buildObjects(ctx, cfg)
	if err != nil {
		sqlDB.Close()
		return nil, nil, err
	}

	proc := &workerproc.Processor{Objects: objects, Target: &catalog.PGRepo{DB: sqlDB}}
	return proc, func() { _ = sqlDB.Close() }, nil
}

// NewCatalogQueue returns the publisher for catalog sync messages, or nil
// when CATALOG_QUEUE_URL is unset.
func NewCatalogQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.CatalogQueueURL) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx, cfg.AWSRegion, cfg.CatalogQueueURL)
}
