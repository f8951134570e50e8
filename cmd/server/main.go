package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	billinghttp "github.com/soralab/paywall/modules/billing"
	"github.com/soralab/paywall/pkg/billing"
	"github.com/soralab/paywall/pkg/config"
	"github.com/soralab/paywall/pkg/httpserver"
	"github.com/soralab/paywall/pkg/jwt"
	"github.com/soralab/paywall/pkg/logger"
)

type appConfig struct {
	AppEnv      string `env:"APP_ENV" envDefault:"production"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"paywall"`

	// Provider selects the payment provider implementation: stripe or paddle.
	Provider string `env:"BILLING_PROVIDER" envDefault:"stripe"`

	// StoreDriver selects the record store backend: memory, redis or mongo.
	// Memory is for local runs only; records do not survive a restart.
	StoreDriver string `env:"BILLING_STORE_DRIVER" envDefault:"memory"`

	// JWTSecret must match the signing key of the identity provider that
	// issues the access tokens this service verifies.
	JWTSecret string `env:"JWT_SECRET,required"`
}

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("server exited with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var appCfg appConfig
	config.MustLoad(&appCfg)

	log := logger.New(logger.WithEnvironment(appCfg.AppEnv, appCfg.ServiceName))
	logger.SetAsDefault(log)

	store, storeCheck, err := newStore(ctx, appCfg.StoreDriver)
	if err != nil {
		return fmt.Errorf("failed to init record store: %w", err)
	}

	provider, err := newProvider(appCfg.Provider)
	if err != nil {
		return fmt.Errorf("failed to init billing provider: %w", err)
	}

	jwtSvc, err := jwt.NewFromString(appCfg.JWTSecret)
	if err != nil {
		return fmt.Errorf("failed to init token verifier: %w", err)
	}

	svc := billing.NewService(store, provider, billing.WithLogger(log))

	var moduleCfg billinghttp.Config
	config.MustLoad(&moduleCfg)
	module := billinghttp.NewModule(moduleCfg, svc, provider, jwtSvc,
		billinghttp.WithLogger(log))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/health", httpserver.HealthCheckHandler(ctx, log, storeCheck...))
	r.Mount("/", module.Router())

	var httpCfg httpserver.Config
	config.MustLoad(&httpCfg)

	log.InfoContext(ctx, "starting server",
		slog.String("addr", httpCfg.Addr),
		slog.String("provider", appCfg.Provider),
		slog.String("store", appCfg.StoreDriver))

	return httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(log)).Run(ctx, r)
}

// newStore builds the configured record store along with its readiness
// checks. The memory driver has nothing to probe.
func newStore(ctx context.Context, driver string) (billing.Store, []func(context.Context) error, error) {
	switch driver {
	case "memory":
		return billing.NewMemoryStore(), nil, nil

	case "redis":
		var cfg billing.RedisConfig
		config.MustLoad(&cfg)

		client, err := billing.ConnectRedis(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		store := billing.NewRedisStore(client, cfg.KeyPrefix)
		return store, []func(context.Context) error{store.Ping}, nil

	case "mongo":
		var cfg billing.MongoConfig
		config.MustLoad(&cfg)

		client, err := billing.ConnectMongo(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		store := billing.NewMongoStore(client.Database(cfg.Database).Collection(cfg.Collection))
		return store, []func(context.Context) error{store.Ping}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver: %s", driver)
	}
}

func newProvider(name string) (billing.Provider, error) {
	switch name {
	case "stripe":
		var cfg billing.StripeConfig
		config.MustLoad(&cfg)
		return billing.NewStripeProvider(cfg)

	case "paddle":
		var cfg billing.PaddleConfig
		config.MustLoad(&cfg)
		return billing.NewPaddleProvider(cfg)

	default:
		return nil, fmt.Errorf("unknown billing provider: %s", name)
	}
}
