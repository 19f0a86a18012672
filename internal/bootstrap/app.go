package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"portfolio-backend/internal/extract"
	"portfolio-backend/internal/llm"
	"portfolio-backend/internal/llm/azure"
	"portfolio-backend/internal/llm/mock"
	"portfolio-backend/internal/pipeline"
	"portfolio-backend/internal/queue"
	"portfolio-backend/internal/review"
	"portfolio-backend/internal/sessions"
	"portfolio-backend/internal/shared/config"
	"portfolio-backend/internal/shared/server"
	"portfolio-backend/internal/shared/storage/db"
	"portfolio-backend/internal/shared/storage/object"
	localstore "portfolio-backend/internal/shared/storage/object/local"
	s3store "portfolio-backend/internal/shared/storage/object/s3"
	"portfolio-backend/internal/shared/telemetry"
	"portfolio-backend/internal/uploads"
)

// App holds shared dependencies.
type App struct {
	Config       config.Config
	Router       *gin.Engine
	DB           *sql.DB
	Redis        *redis.Client
	Store        object.ObjectStore
	Sessions     sessions.Store
	LLM          llm.Client
	Queue        queue.Client
	Dispatcher   pipeline.Dispatcher
	Orchestrator *pipeline.Orchestrator
	Status       *sessions.StatusService
	Uploads      *uploads.Service
	Reaper       *pipeline.Reaper
}

// Build prepares shared dependencies and the HTTP router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	if strings.TrimSpace(cfg.SessionStore) == "" {
		cfg.SessionStore = "memory"
	}
	ctx := context.Background()

	app := &App{Config: cfg}

	if err := buildSessions(ctx, app); err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.Store = store

	llmClient, err := buildLLM(cfg)
	if err != nil {
		return nil, err
	}
	app.LLM = llmClient

	app.Orchestrator = &pipeline.Orchestrator{
		Sessions:                 app.Sessions,
		Storage:                  app.Store,
		Extractor:                extract.Extractor{},
		Interpreter:              app.LLM,
		RequirePhoneVerification: cfg.RequirePhoneVerification,
		MaxDocumentBytes:         uploads.MaxUploadBytes,
	}
	if err := buildDispatcher(ctx, app); err != nil {
		return nil, err
	}
	app.Orchestrator.Dispatcher = app.Dispatcher

	app.Status = &sessions.StatusService{Store: app.Sessions}
	app.Uploads = &uploads.Service{
		Store:        app.Store,
		Sessions:     app.Sessions,
		SignedURLTTL: cfg.SignedURLTTL,
	}
	if lister, ok := app.Sessions.(sessions.StaleLister); ok && cfg.SessionStaleAfter > 0 {
		app.Reaper = &pipeline.Reaper{
			Sessions:   app.Sessions,
			Lister:     lister,
			StaleAfter: cfg.SessionStaleAfter,
		}
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:        cfg,
		UploadHandler: uploads.NewHandler(app.Uploads),
		ReviewHandler: review.NewHandler(app.Orchestrator, app.Status),
		Ping:          app.ping,
	})

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":           cfg.Env,
		"session_store": cfg.SessionStore,
		"object_store":  cfg.ObjectStoreType,
		"llm_provider":  cfg.LLMProvider,
		"dispatcher":    cfg.Dispatcher,
		"reaper":        app.Reaper != nil,
	})
	return app, nil
}

// Shutdown drains the local dispatcher and closes connections.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if d, ok := a.Dispatcher.(*pipeline.LocalDispatcher); ok {
		if err := d.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain dispatcher: %w", err))
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if a.DB != nil && !db.IsLambdaRuntime() {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close db: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (a *App) ping(ctx context.Context) error {
	if a.DB != nil {
		if err := a.DB.PingContext(ctx); err != nil {
			return err
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			return err
		}
	}
	return nil
}

func buildSessions(ctx context.Context, app *App) error {
	cfg := app.Config
	switch cfg.SessionStore {
	case "postgres":
		sqlDB, err := buildDB(ctx, cfg)
		if err != nil {
			return err
		}
		if sqlDB == nil {
			app.Config.SessionStore = "memory"
			app.Sessions = sessions.NewMemoryStore()
			return nil
		}
		if isDevLike(cfg.Env) {
			if err := db.RunMigrations(ctx, sqlDB); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
		}
		app.DB = sqlDB
		app.Sessions = &sessions.PGStore{DB: sqlDB}
	case "redis":
		rdb, err := sessions.NewRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			if isDevLike(cfg.Env) {
				telemetry.Warn("bootstrap.redis_unavailable", map[string]any{"error": err.Error()})
				app.Config.SessionStore = "memory"
				app.Sessions = sessions.NewMemoryStore()
				return nil
			}
			return err
		}
		app.Redis = rdb
		app.Sessions = &sessions.RedisStore{Client: rdb, Prefix: cfg.RedisPrefix}
	default:
		app.Sessions = sessions.NewMemoryStore()
	}
	return nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.database_url_empty", map[string]any{"fallback": "memory"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		opts := db.OptionsFromEnv(db.DefaultLambdaOptions())
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, opts)
	} else {
		opts := db.OptionsFromEnv(db.DefaultServerOptions())
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, opts)
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.database_connect_failed", map[string]any{"error": err.Error(), "fallback": "memory"})
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildLLM(cfg config.Config) (llm.Client, error) {
	switch cfg.LLMProvider {
	case "azure":
		return azure.NewClient(azure.Config{
			Endpoint:   cfg.AzureOpenAIEndpoint,
			APIKey:     cfg.AzureOpenAIKey,
			Deployment: cfg.AzureOpenAIDeployment,
			APIVersion: cfg.AzureOpenAIAPIVersion,
			Timeout:    cfg.LLMTimeout,
		})
	default:
		return mock.Client{}, nil
	}
}

func buildDispatcher(ctx context.Context, app *App) error {
	cfg := app.Config
	if cfg.Dispatcher == "sqs" {
		client, err := queue.NewSQSClient(ctx, cfg.AWSRegion, cfg.SQSQueueURL)
		if err != nil {
			return err
		}
		app.Queue = client
		app.Dispatcher = &pipeline.QueueDispatcher{Client: client}
		return nil
	}
	app.Dispatcher = pipeline.NewLocalDispatcher(app.Orchestrator,
		pipeline.WithWorkers(cfg.WorkerConcurrency),
		pipeline.WithQueueSize(cfg.WorkerQueueSize),
	)
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
