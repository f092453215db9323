package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/iudanet/taskkeeper/internal/config"
	"github.com/iudanet/taskkeeper/internal/crypto"
	"github.com/iudanet/taskkeeper/internal/server/jwt"
	"github.com/iudanet/taskkeeper/internal/server/refresh"
	"github.com/iudanet/taskkeeper/internal/server/service"
	"github.com/iudanet/taskkeeper/internal/server/storage"
	"github.com/iudanet/taskkeeper/internal/server/storage/postgres"
	"github.com/iudanet/taskkeeper/internal/server/storage/sqlite"
)

// App owns every long-lived resource of a running server.
type App struct {
	logger  *slog.Logger
	server  *Server
	db      storage.Storage
	purger  refresh.Purger
	closers []func() error
	cfg     *config.Config
}

// tokenStoreProvider реализуют оба SQL backend'а.
type tokenStoreProvider interface {
	storage.Storage
	RefreshTokens() refresh.Store
}

// NewApp opens storage, selects the refresh token store and wires the
// services into an HTTP server.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, version string) (*App, error) {
	app := &App{logger: logger, cfg: cfg}

	db, err := openStorage(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	app.db = db
	app.closers = append(app.closers, db.Close)

	tokens, err := app.openRefreshStore(ctx, db)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	codec, err := jwt.NewCodec([]byte(cfg.Auth.SecretKey))
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("token codec: %w", err)
	}

	authService := service.NewAuthService(logger, db, tokens, codec,
		crypto.NewPasswordHasher(cfg.Auth.BcryptCost),
		service.AuthConfig{
			AccessTokenTTL:   cfg.Auth.AccessTokenTTL(),
			RefreshTokenTTL:  cfg.Auth.RefreshTokenTTL(),
			OperationTimeout: cfg.HTTP.RequestTimeout,
		})
	taskService := service.NewTaskService(logger, db, cfg.HTTP.RequestTimeout)

	app.server = New(logger, cfg.HTTP, Deps{
		Auth:    authService,
		Tasks:   taskService,
		DB:      db,
		Version: version,
	})

	return app, nil
}

func openStorage(ctx context.Context, cfg config.DatabaseConfig) (tokenStoreProvider, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		s, err := postgres.New(ctx, cfg.URL, postgres.Options{
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return postgresStorage{s}, nil
	case config.DriverSQLite:
		s, err := sqlite.New(ctx, cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return sqliteStorage{s}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Обертки приводят RefreshTokens() к интерфейсу refresh.Store.
type postgresStorage struct{ *postgres.Storage }

func (p postgresStorage) RefreshTokens() refresh.Store { return p.Storage.RefreshTokens() }

type sqliteStorage struct{ *sqlite.Storage }

func (s sqliteStorage) RefreshTokens() refresh.Store { return s.Storage.RefreshTokens() }

func (a *App) openRefreshStore(ctx context.Context, db tokenStoreProvider) (refresh.Store, error) {
	kind := a.cfg.EffectiveRefreshStore()

	switch kind {
	case config.RefreshStoreRedis:
		rdb, err := refresh.NewRedisClient(ctx, a.cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.closers = append(a.closers, rdb.Close)
		a.logger.Info("refresh token store: redis")
		return refresh.NewRedisStore(rdb, a.cfg.Redis.KeyPrefix), nil

	case config.RefreshStoreDatabase:
		store := db.RefreshTokens()
		if p, ok := store.(refresh.Purger); ok {
			a.purger = p
		}
		a.logger.Info("refresh token store: database")
		return store, nil

	case config.RefreshStoreMemory:
		store := refresh.NewMemoryStore()
		a.purger = store
		a.logger.Warn("refresh token store: memory, sessions are lost on restart")
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported refresh store %q", kind)
	}
}

// Server returns the wired HTTP server.
func (a *App) Server() *Server {
	return a.server
}

// Run serves HTTP and runs the expired-token janitor until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if a.purger != nil && a.cfg.Auth.JanitorInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			refresh.RunJanitor(ctx, a.purger, a.cfg.Auth.JanitorInterval, a.logger)
		}()
	}

	err := a.server.Run(ctx)
	cancel()
	wg.Wait()

	return err
}

// Close stops the server's background work and releases storage and
// Redis connections.
func (a *App) Close() error {
	if a.server != nil {
		a.server.Close()
	}

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
