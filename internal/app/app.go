package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/stepwise-app/stepwise/internal/ai"
	"github.com/stepwise-app/stepwise/internal/config"
	"github.com/stepwise-app/stepwise/internal/db"
	"github.com/stepwise-app/stepwise/internal/fallback"
	"github.com/stepwise-app/stepwise/internal/markdown"
	"github.com/stepwise-app/stepwise/internal/middleware"
	"github.com/stepwise-app/stepwise/internal/repository"
	"github.com/stepwise-app/stepwise/internal/service"
	"github.com/stepwise-app/stepwise/internal/service/payment"
	"github.com/stepwise-app/stepwise/internal/storage"
)

type App struct {
	Cfg                 *config.Config
	DB                  *sqlx.DB
	Store               *repository.Store
	AuthService         *service.AuthService
	UserService         *service.UserService
	EmailService        *service.EmailService
	FileService         *service.FileService
	SubscriptionService *service.SubscriptionService
	PaymentProvider     payment.Provider
	GoalService         *service.GoalService
	StepService         *service.StepService
	CheckInService      *service.CheckInService
	PublicService       *service.PublicService
	IdentityWebhook     *service.IdentityWebhook
	Reconciler          *service.Reconciler
	ReminderService     *service.ReminderService
	AILimiter           middleware.Limiter
	PublicLimiter       middleware.Limiter

	closers []func() error
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	err = db.RunMigrations(ctx, database.DB, cfg.DBDriver)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	a, err := newApp(ctx, cfg, database)
	if err != nil {
		_ = database.Close()
		return nil, err
	}
	return a, nil
}

func newApp(ctx context.Context, cfg *config.Config, database *sqlx.DB) (*App, error) {
	store := repository.NewStore(database)

	fileStorage, err := storage.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	aiService, err := newAIService(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ai: %w", err)
	}

	emailService := service.NewEmailService(
		cfg.ResendAPIKey,
		cfg.EmailFrom,
		cfg.AppURL,
		cfg.AppName,
		cfg.IsDevelopment(),
	)
	parser := markdown.NewParser()
	fallbackStore := fallback.NewStore(cfg.FallbackPath)
	slugs := service.NewSlugGenerator()
	fileService := service.NewFileService(store.Files, fileStorage)
	subscriptionService := service.NewSubscriptionService(store.Subscriptions)
	statsService := service.NewStatsService(store)

	paymentProvider, err := payment.NewProvider(cfg, subscriptionService)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize payment provider: %w", err)
	}

	authService := service.NewAuthService(cfg.JWTSecret, cfg.JWTExpiry, cfg.IsProduction())
	userService := service.NewUserService(store, statsService, subscriptionService, fileService, emailService, cfg.FreeGoalLimit)
	goalService := service.NewGoalService(
		store,
		aiService,
		slugs,
		fallbackStore,
		subscriptionService,
		fileService,
		cfg.FreeGoalLimit,
		cfg.GoalWriteRetry,
	)

	var identityWebhook *service.IdentityWebhook
	if cfg.IdentityWebhookSecret != "" {
		identityWebhook, err = service.NewIdentityWebhook(cfg.IdentityWebhookSecret, userService)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize identity webhook: %w", err)
		}
	} else {
		slog.Warn("identity webhook disabled, IDENTITY_WEBHOOK_SECRET not set")
	}

	a := &App{
		Cfg:                 cfg,
		DB:                  database,
		Store:               store,
		AuthService:         authService,
		UserService:         userService,
		EmailService:        emailService,
		FileService:         fileService,
		SubscriptionService: subscriptionService,
		PaymentProvider:     paymentProvider,
		GoalService:         goalService,
		StepService:         service.NewStepService(store, statsService, aiService, subscriptionService),
		CheckInService:      service.NewCheckInService(store, statsService, aiService, fileService, parser),
		PublicService:       service.NewPublicService(store, fileService, parser),
		IdentityWebhook:     identityWebhook,
		Reconciler:          service.NewReconciler(store, fallbackStore, slugs),
		ReminderService:     service.NewReminderService(store, emailService),
	}

	err = a.initLimiters()
	if err != nil {
		return nil, err
	}
	return a, nil
}

func newAIService(cfg *config.Config) (*ai.Service, error) {
	var gen ai.Generator = ai.StubGenerator{}
	if cfg.OpenAIAPIKey != "" {
		gen = ai.NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
		slog.Info("ai using openai", "model", cfg.OpenAIModel)
	} else {
		slog.Warn("ai using stub generator, OPENAI_API_KEY not set")
	}
	return ai.NewService(gen, cfg.AITimeout)
}

// initLimiters builds the AI and public page limiters.
func (a *App) initLimiters() error {
	var err error
	a.AILimiter, err = a.newLimiter("stepwise:ai", a.Cfg.AIRateLimit)
	if err != nil {
		return err
	}
	a.PublicLimiter, err = a.newLimiter("stepwise:public", a.Cfg.PublicRateLimit)
	return err
}

// newLimiter picks the shared Redis limiter when REDIS_URL is set and the
// per-process limiter otherwise.
func (a *App) newLimiter(prefix string, limit int) (middleware.Limiter, error) {
	if a.Cfg.RedisURL != "" {
		limiter, err := middleware.NewRedisLimiter(a.Cfg.RedisURL, prefix, limit, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize rate limiter: %w", err)
		}
		a.closers = append(a.closers, limiter.Close)
		return limiter, nil
	}

	limiter := middleware.NewRateLimiter(limit, time.Minute)
	a.closers = append(a.closers, func() error {
		limiter.Close()
		return nil
	})
	return limiter, nil
}

func (a *App) Close() error {
	for _, c := range a.closers {
		err := c()
		if err != nil {
			slog.Error("failed to close resource", "error", err)
		}
	}
	if a.DB != nil {
		return db.Close(a.DB)
	}
	return nil
}
