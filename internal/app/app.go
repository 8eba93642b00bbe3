package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/nortonjulian/chatforia-signal/internal/auth"
	"github.com/nortonjulian/chatforia-signal/internal/config"
	"github.com/nortonjulian/chatforia-signal/internal/core"
	chatlog "github.com/nortonjulian/chatforia-signal/internal/log"
	redisfanout "github.com/nortonjulian/chatforia-signal/internal/pubsub/redis"
	"github.com/nortonjulian/chatforia-signal/internal/sealer"
	"github.com/nortonjulian/chatforia-signal/internal/store"
	"github.com/nortonjulian/chatforia-signal/internal/store/sqlite"
	transporthttp "github.com/nortonjulian/chatforia-signal/internal/transport/http"
)

const redisDialTimeout = 5 * time.Second

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             core.Hub
	broker          *redisfanout.Broker
	redis           *goredis.Client
	sealer          *sealer.Service
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	a := &App{
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		log:             logger,
	}

	registry := core.NewRegistry()
	var publisher core.Publisher = registry
	if cfg.Redis.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
		client, err := redisfanout.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		cancel()
		if err != nil {
			a.cleanup()
			return nil, fmt.Errorf("init redis: %w", err)
		}
		a.redis = client
		a.broker = redisfanout.NewBroker(client, registry, cfg.Redis.ChannelPrefix, chatlog.Component(logger, "fanout"))
		publisher = a.broker
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("redis fan-out enabled")
	}

	relay := core.NewRelay(st, publisher,
		core.WithLogger(chatlog.Component(logger, "relay")),
		core.WithCandidateMembership(cfg.Calls.VerifyCandidateMembership),
	)
	a.hub = core.NewHub(relay, registry, chatlog.Component(logger, "hub"))

	a.sealer = sealer.NewService(cfg.Pool.Size, chatlog.Component(logger, "sealer"))
	logger.Info().Int("workers", a.sealer.Stats().Size).Msg("sealing pool started")

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      24 * time.Hour,
	}

	a.server = transporthttp.NewServer(transporthttp.Deps{
		Hub:    a.hub,
		Calls:  st,
		Sealer: a.sealer,
		JWT:    jwtConfig,
	}, cfg, logger)

	return a, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)
	brokerErr := make(chan error, 1)

	go a.hub.Run(ctx)

	if a.broker != nil {
		go func() {
			if err := a.broker.Run(ctx); err != nil {
				brokerErr <- err
			}
		}()
	}

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case err := <-brokerErr:
		a.log.Error().Err(err).Msg("redis fan-out stopped")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()
		if shutdownErr := a.server.Shutdown(shutdownCtx); shutdownErr != nil {
			a.log.Warn().Err(shutdownErr).Msg("http server shutdown failed")
		}
		a.cleanup()
		return fmt.Errorf("redis fan-out: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup drains the pool and closes redis and the database.
func (a *App) cleanup() {
	if a.sealer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		if err := a.sealer.Close(ctx); err != nil {
			a.log.Warn().Err(err).Msg("sealing pool did not drain")
		}
		cancel()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close redis")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
