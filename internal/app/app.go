// Package app wires the client components for one process: storage backend, session,
// guards, local stores and the remote API client.
package app

import (
	"context"
	"fmt"

	"github.com/and161185/gastroguide/internal/api"
	"github.com/and161185/gastroguide/internal/authattach"
	"github.com/and161185/gastroguide/internal/config"
	"github.com/and161185/gastroguide/internal/guard"
	"github.com/and161185/gastroguide/internal/migrate"
	"github.com/and161185/gastroguide/internal/session"
	"github.com/and161185/gastroguide/internal/storage"
	"github.com/and161185/gastroguide/internal/store"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// App holds the wired components. Build it once at startup and Close it on exit.
type App struct {
	Config    config.Config
	Log       *zap.Logger
	Storage   storage.Storage
	Scratch   *storage.Memory
	Session   *session.Session
	Guard     *guard.Guard
	API       *api.Client
	// GRPC is nil unless a gRPC endpoint is configured.
	GRPC      *api.GRPC
	Cart      *store.Cart
	Purchased *store.PurchasedCourses
	Reels     *store.Reels
	Users     *store.Users
	Stats     *store.Stats

	closers []func()
}

// Option customizes New.
type Option func(*options)

type options struct {
	st        storage.Storage
	onExpired func(redirect string)
	api       []api.Option
	grpc      []grpc.DialOption
}

// WithStorage bypasses the configured backend.
func WithStorage(st storage.Storage) Option { return func(o *options) { o.st = st } }

// OnSessionExpired is called with the login redirect after the API answers 401.
func OnSessionExpired(fn func(redirect string)) Option {
	return func(o *options) { o.onExpired = fn }
}

// WithAPIOptions passes extra options to the API client.
func WithAPIOptions(opts ...api.Option) Option {
	return func(o *options) { o.api = append(o.api, opts...) }
}

// WithGRPCDialOptions passes extra dial options to the gRPC connection.
func WithGRPCDialOptions(opts ...grpc.DialOption) Option {
	return func(o *options) { o.grpc = append(o.grpc, opts...) }
}

// New opens storage per cfg and builds every component on top of it.
func New(ctx context.Context, cfg config.Config, log *zap.Logger, opts ...Option) (*App, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	if log == nil {
		log = zap.NewNop()
	}
	a := &App{Config: cfg, Log: log, Scratch: storage.NewMemory()}

	st := o.st
	if st == nil {
		var err error
		if st, err = a.openStorage(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	if cfg.Passphrase != "" {
		sealed, err := storage.NewSealed(ctx, st, cfg.Passphrase)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("seal storage: %w", err)
		}
		st = sealed
	}
	a.Storage = st

	a.Session = session.New(ctx, st,
		session.WithLogger(log.Named("session")),
		session.WithScratch(a.Scratch),
	)
	a.Guard = guard.New(a.Session,
		guard.WithLoginPath(cfg.LoginPath),
		guard.WithHomePath(cfg.HomePath),
		guard.WithLogger(log.Named("guard")),
	)

	storeLog := log.Named("store")
	a.Cart = store.NewCart(ctx, st, storeLog)
	a.Purchased = store.NewPurchasedCourses(ctx, st, storeLog)
	var reelOpts []store.ReelsOption
	if cfg.DemoSeed {
		reelOpts = append(reelOpts, store.WithDemoSeed())
	}
	a.Reels = store.NewReels(ctx, st, storeLog, reelOpts...)
	a.Users = store.NewUsers(ctx, st, storeLog)
	a.Stats = store.NewStats(ctx, st, storeLog)

	attach := []authattach.Option{
		authattach.WithAuthPrefix(cfg.AuthPrefix),
		authattach.WithLoginPath(cfg.LoginPath),
	}
	if o.onExpired != nil {
		attach = append(attach, authattach.OnUnauthorized(o.onExpired))
	}
	apiOpts := append([]api.Option{
		api.WithTimeout(cfg.Timeout),
		api.WithUsers(a.Users),
		api.WithLogger(log.Named("api")),
		api.WithAttachOptions(attach...),
	}, o.api...)
	a.API = api.New(cfg.APIURL, a.Session, apiOpts...)

	if cfg.GRPCAddr != "" {
		g, err := api.DialGRPC(api.GRPCConfig{
			Addr:     cfg.GRPCAddr,
			Insecure: cfg.GRPCInsecure,
			Attach:   append(attach, authattach.WithLogger(log.Named("grpc"))),
			Dial:     o.grpc,
		}, a.Session)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.GRPC = g
		a.closers = append(a.closers, func() {
			if err := g.Close(); err != nil {
				a.Log.Warn("grpc close", zap.Error(err))
			}
		})
	}
	return a, nil
}

func (a *App) openStorage(ctx context.Context) (storage.Storage, error) {
	cfg := a.Config
	switch cfg.Backend {
	case config.BackendMemory:
		return storage.NewMemory(), nil
	case config.BackendPostgres:
		if err := migrate.Up(ctx, cfg.DSN, a.Log.Named("migrate")); err != nil {
			return nil, err
		}
		pg, err := storage.OpenPostgres(ctx, cfg.DSN, cfg.Namespace)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pg.Close)
		return pg, nil
	case config.BackendRedis:
		rd := storage.OpenRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.Namespace)
		a.closers = append(a.closers, func() {
			if err := rd.Close(); err != nil {
				a.Log.Warn("redis close", zap.Error(err))
			}
		})
		return rd, nil
	default:
		return storage.NewFile(cfg.Dir), nil
	}
}

// Close releases backend connections.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
