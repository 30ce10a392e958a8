package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/target/tokenlab/config"
	"github.com/target/tokenlab/internal/adapters/authapi"
	"github.com/target/tokenlab/internal/adapters/memstore"
	redisadapter "github.com/target/tokenlab/internal/adapters/redis"
	"github.com/target/tokenlab/internal/ports"
	"github.com/target/tokenlab/internal/service"
)

// SessionOptions configures NewSession.
type SessionOptions struct {
	Config *config.AppConfig
	Logger *slog.Logger
	Clock  ports.Clock

	// Redis overrides the connection built from Config.Redis.
	Redis redis.UniversalClient
	// API overrides the HTTP client built from Config.AuthAPI.
	API ports.AuthAPI
}

// Session groups the client-side services: the token session, its inspector
// and the auth flows that feed it.
type Session struct {
	Store     *service.SessionStore
	Inspector *service.Inspector
	Auth      *service.AuthService

	closers []func(context.Context) error
}

// NewSession wires the configured key/value backend and loads the persisted token.
func NewSession(ctx context.Context, opts SessionOptions) (*Session, error) {
	if opts.Config == nil {
		return nil, errors.New("session config is required")
	}
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{}
	kv, err := s.buildStore(ctx, opts, logger)
	if err != nil {
		return nil, err
	}

	api := opts.API
	if api == nil {
		client, clientErr := authapi.NewClient(authapi.Config{
			BaseURL: cfg.AuthAPI.BaseURL,
			Timeout: cfg.AuthAPI.Timeout,
		})
		if clientErr != nil {
			return nil, errors.Join(fmt.Errorf("auth api client: %w", clientErr), s.Close(ctx))
		}
		api = client
	}

	s.Store = service.NewSessionStore(service.SessionStoreOptions{
		Store:          kv,
		Key:            cfg.Store.TokenKey,
		Logger:         logger,
		BaselineOnLoad: cfg.Session.BaselineOnLoad,
		PersistTimeout: cfg.Session.PersistTimeout,
	})
	// Flush pending writes before any backend connection closes.
	s.closers = append([]func(context.Context) error{s.Store.Close}, s.closers...)

	s.Inspector = service.NewInspector(service.InspectorOptions{
		Session:  s.Store,
		Clock:    opts.Clock,
		Interval: cfg.Session.TickInterval,
	})
	s.Auth = service.NewAuthService(service.AuthServiceOptions{
		API:     api,
		Session: s.Store,
		Logger:  logger,
	})

	if loadErr := s.Store.Load(ctx); loadErr != nil {
		// An unreadable store starts the session empty.
		logger.WarnContext(ctx, "failed to load persisted token", "error", loadErr)
	}
	return s, nil
}

func (s *Session) buildStore(ctx context.Context, opts SessionOptions, logger *slog.Logger) (ports.KeyValueStore, error) {
	cfg := opts.Config
	if cfg.Store.Backend == config.StoreBackendMemory {
		logger.DebugContext(ctx, "using in-memory token store")
		return memstore.New(), nil
	}

	client := opts.Redis
	if client == nil {
		connected, err := ConnectRedis(ctx, DatabaseConfig{RedisConfig: cfg.Redis, Logger: logger})
		if err != nil {
			return nil, err
		}
		client = connected
		s.closers = append(s.closers, func(context.Context) error { return client.Close() })
	}
	return redisadapter.NewKeyValueStoreWithOptions(client, redisadapter.KeyValueStoreOptions{
		Prefix: cfg.Store.KeyPrefix,
		TTL:    cfg.Store.TTL,
	}), nil
}

// Close stops the inspector, flushes pending token writes and releases owned connections.
func (s *Session) Close(ctx context.Context) error {
	if s.Inspector != nil {
		s.Inspector.Close()
	}
	var errs []error
	for _, c := range s.closers {
		if err := c(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
