// internal/app.go
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	router "tenant-ledger/internal/api"
	"tenant-ledger/internal/api/handler"
	"tenant-ledger/internal/api/middleware"
	"tenant-ledger/internal/config"
	"tenant-ledger/internal/gateway"
	"tenant-ledger/internal/repository/postgres"
	"tenant-ledger/internal/service"
	"tenant-ledger/internal/util"
	"tenant-ledger/internal/worker"
	"tenant-ledger/pkg/db"
	"tenant-ledger/pkg/lock"
	"tenant-ledger/pkg/secret"
)

const lockPrefix = "tenant-ledger:lock:"

// Application holds all the initialized components of the application.
type Application struct {
	Config *config.AppConfig
	Logger *zerolog.Logger
	DB     *sqlx.DB
	Redis  *redis.Client

	// Services
	WalletService         service.WalletService
	CommissionService     service.CommissionService
	ProviderConfigService service.ProviderConfigService
	PaymentService        service.PaymentService
	AiTokenService        service.AiTokenService

	Tokens *middleware.TokenService

	// HTTP API
	HTTPHandler http.Handler
}

// NewApplication creates a new Application instance.
func NewApplication() *Application {
	return &Application{Logger: util.GetLogger()}
}

// Initialize loads configuration, connects to the database and wires every component.
func (app *Application) Initialize(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	return app.InitializeWith(ctx, cfg)
}

// InitializeWith wires the application from an explicit configuration.
func (app *Application) InitializeWith(ctx context.Context, cfg *config.AppConfig) error {
	app.Config = cfg

	util.InitLogger(util.LoggerConfig{Level: cfg.LogLevel, Environment: cfg.Env})
	app.Logger = util.GetLogger()
	app.Logger.Info().Str("env", cfg.Env).Msg("application configuration loaded")

	database, err := db.NewPostgresDB(cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = database
	app.Logger.Info().Msg("database connection established")

	var locker lock.Locker = lock.NoopLocker{}
	if cfg.RedisURL != "" {
		client, err := lock.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		app.Redis = client
		locker = lock.NewRedisLocker(client, lockPrefix)
		app.Logger.Info().Msg("redis job lock enabled")
	} else {
		app.Logger.Warn().Msg("REDIS_URL not set, batch jobs are not coordinated across instances")
	}

	box, err := secret.NewBox(cfg.EncryptionKey)
	if err != nil {
		return fmt.Errorf("failed to initialise credential encryption: %w", err)
	}

	// A nil interface, not a nil *PlatformStripe, marks platform payments as disabled.
	var platform service.PlatformGateway
	if cfg.Platform.SecretKey != "" {
		ps, err := gateway.NewPlatformStripe(cfg.Platform, &http.Client{Timeout: cfg.GatewayTimeout})
		if err != nil {
			return fmt.Errorf("failed to initialise platform stripe: %w", err)
		}
		platform = ps
	} else {
		app.Logger.Warn().Msg("STRIPE_SECRET_KEY not set, wallet top-ups are disabled")
	}

	walletRepo := postgres.NewWalletRepository()
	transactionRepo := postgres.NewTransactionRepository()
	commissionRepo := postgres.NewCommissionRepository()
	reversalRepo := postgres.NewReversalRepository()
	providerRepo := postgres.NewProviderConfigRepository()
	aiTokenRepo := postgres.NewAiTokenRepository()
	customerRepo := postgres.NewCustomerRepository()

	transactor := db.NewTransactor(app.DB)
	registry := gateway.NewRegistry(cfg.GatewayTimeout)

	app.WalletService = service.NewWalletService(transactor, app.DB, walletRepo, transactionRepo, cfg.Currency)
	app.CommissionService = service.NewCommissionService(
		transactor, app.DB, service.NewRateTable(cfg.Rates), app.WalletService, commissionRepo, reversalRepo, cfg.Currency,
	)
	app.ProviderConfigService = service.NewProviderConfigService(
		transactor, app.DB, providerRepo, app.WalletService, app.CommissionService,
		service.DefaultProviderCatalog().WithMonthlyFees(cfg.ProviderFees),
		box, registry, locker,
		service.ProviderConfigOptions{
			Currency:           cfg.Currency,
			RenewalWindow:      cfg.RenewalWindow,
			RenewalConcurrency: cfg.RenewalConcurrency,
			RenewalLockTTL:     cfg.RenewalLockTTL,
			ConnectionTimeout:  cfg.GatewayTimeout,
		},
	)
	app.PaymentService = service.NewPaymentService(
		app.DB, customerRepo, platform, app.ProviderConfigService, registry, app.CommissionService,
		nil, cfg.GatewayTimeout, cfg.Currency,
	)
	app.AiTokenService = service.NewAiTokenService(
		transactor, app.DB, aiTokenRepo, app.WalletService, app.CommissionService, cfg.AiTokens,
	)
	app.Logger.Info().Msg("services initialized")

	app.Tokens = middleware.NewTokenService(cfg.JWTSecret, cfg.JWTTTL)
	app.HTTPHandler = router.NewRouter(router.Handlers{
		Wallet:     handler.NewWalletHandler(app.WalletService, app.PaymentService),
		AiToken:    handler.NewAiTokenHandler(app.AiTokenService),
		Provider:   handler.NewProviderHandler(app.ProviderConfigService, app.PaymentService),
		Commission: handler.NewCommissionHandler(app.CommissionService),
		Webhook:    handler.NewWebhookHandler(app.PaymentService),
	}, router.RouterConfig{Tokens: app.Tokens, AllowedOrigins: cfg.AllowedOrigins})
	app.Logger.Info().Msg("HTTP router and handlers initialized")

	return nil
}

// Scheduler builds the background batch scheduler.
func (app *Application) Scheduler(runOnStart bool) *worker.Scheduler {
	return worker.NewScheduler(runOnStart, worker.LedgerJobs(
		app.ProviderConfigService, app.CommissionService, app.Config.RenewInterval, app.Config.SettleInterval,
	)...)
}

// Shutdown gracefully shuts down application resources.
func (app *Application) Shutdown(ctx context.Context) error {
	app.Logger.Info().Msg("shutting down application")
	if app.Redis != nil {
		if err := app.Redis.Close(); err != nil {
			app.Logger.Error().Err(err).Msg("failed to close redis client")
		}
	}
	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			app.Logger.Error().Err(err).Msg("failed to close database connection")
			return fmt.Errorf("failed to close database connection: %w", err)
		}
		app.Logger.Info().Msg("database connection closed")
	}
	app.Logger.Info().Msg("application shut down gracefully")
	return nil
}
