package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/target/tokenlab/config"
	"github.com/target/tokenlab/internal/adapters/memstore"
	"github.com/target/tokenlab/internal/adapters/postgres"
	httpx "github.com/target/tokenlab/internal/http"
	"github.com/target/tokenlab/internal/ports"
	"github.com/target/tokenlab/internal/service"
	"golang.org/x/sync/errgroup"
)

const (
	readHeaderTimeout      = 5 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// StubOptions configures NewStubServer.
type StubOptions struct {
	Config *config.AppConfig
	Logger *slog.Logger
	Clock  ports.Clock

	// DB overrides the connection built from Config.Postgres when the postgres user store is selected.
	DB *sql.DB
}

// StubServer is the local auth service the CLI can be pointed at.
type StubServer struct {
	Accounts *service.AccountService

	handler         http.Handler
	logger          *slog.Logger
	shutdownTimeout time.Duration
	closers         []func() error
}

// NewStubServer wires the user store, token issuer and HTTP routes.
func NewStubServer(ctx context.Context, opts StubOptions) (*StubServer, error) {
	if opts.Config == nil {
		return nil, errors.New("stub config is required")
	}
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &StubServer{logger: logger, shutdownTimeout: cfg.Stub.ShutdownTimeout}
	if s.shutdownTimeout <= 0 {
		s.shutdownTimeout = defaultShutdownTimeout
	}

	users, err := s.buildUsers(ctx, opts, logger)
	if err != nil {
		return nil, err
	}

	issuer, err := service.NewTokenIssuer(service.TokenIssuerOptions{
		Secret: []byte(cfg.Stub.JWTSecret),
		TTL:    cfg.Stub.TokenTTL,
		Clock:  opts.Clock,
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("token issuer: %w", err), s.Close())
	}

	s.Accounts = service.NewAccountService(service.AccountServiceOptions{
		Users:  users,
		Issuer: issuer,
		Clock:  opts.Clock,
		Logger: logger,
	})
	s.handler = httpx.NewRouter(httpx.RouterServices{Accounts: s.Accounts, Logger: logger})
	return s, nil
}

func (s *StubServer) buildUsers(ctx context.Context, opts StubOptions, logger *slog.Logger) (ports.UserRepository, error) {
	cfg := opts.Config
	if cfg.Stub.UserStore != config.UserStorePostgres {
		return memstore.NewUserRepo(), nil
	}

	db := opts.DB
	if db == nil {
		connected, err := ConnectDB(ctx, DatabaseConfig{DBConfig: cfg.Postgres, Logger: logger})
		if err != nil {
			return nil, err
		}
		db = connected
		s.closers = append(s.closers, db.Close)
	}
	if cfg.Postgres.RunMigrationsOnStart {
		if err := RunMigrations(ctx, db, logger); err != nil {
			return nil, errors.Join(err, s.Close())
		}
	}
	return postgres.NewUserRepo(db), nil
}

// Handler exposes the routed handler, mostly for tests.
func (s *StubServer) Handler() http.Handler { return s.handler }

// Serve accepts connections on ln until ctx is cancelled, then shuts down gracefully.
func (s *StubServer) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.InfoContext(ctx, "auth stub listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
		defer cancel()
		s.logger.InfoContext(shutdownCtx, "shutting down auth stub")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// ListenAndServe listens on addr and serves until ctx is cancelled.
func (s *StubServer) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Close releases connections owned by the server.
func (s *StubServer) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
