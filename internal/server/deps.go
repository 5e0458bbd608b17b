package server

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dawgsconnect/jobboard/config"
	"github.com/dawgsconnect/jobboard/internal/auth"
	"github.com/dawgsconnect/jobboard/internal/db"
	"github.com/dawgsconnect/jobboard/internal/mq"
	"github.com/dawgsconnect/jobboard/internal/services"
	"github.com/dawgsconnect/jobboard/internal/snapshot"
	"github.com/dawgsconnect/jobboard/internal/storage"
	"github.com/dawgsconnect/jobboard/internal/store"
)

// Deps holds the services built from configuration. It is shared by the
// HTTP server and the background worker.
type Deps struct {
	Store    store.Backend
	Events   *mq.MQ
	Jobs     *services.JobService
	Users    *services.UserService
	Provider auth.Provider
	Logger   logrus.FieldLogger
}

// OpenDeps connects every configured backend. Optional backends (events,
// snapshots) stay disabled when not configured.
func OpenDeps(ctx context.Context, cfg config.Config, logger logrus.FieldLogger) (*Deps, error) {
	backend, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open data backend: %w", err)
	}

	events, err := mq.NewFromConfig(ctx, cfg.MQ)
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("open event broker: %w", err)
	}

	objects, err := storage.NewFromConfig(ctx, cfg.Storage)
	if err != nil {
		_ = events.Close()
		_ = backend.Close()
		return nil, fmt.Errorf("open object storage: %w", err)
	}

	deps, err := NewDeps(backend, events, snapshot.New(objects, cfg.Storage.SnapshotKey), cfg, logger)
	if err != nil {
		_ = events.Close()
		_ = backend.Close()
		return nil, err
	}
	return deps, nil
}

// NewDeps wires services over already opened backends. events and snaps
// may be nil.
func NewDeps(backend store.Backend, events *mq.MQ, snaps *snapshot.Store, cfg config.Config, logger logrus.FieldLogger) (*Deps, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	// Typed nils must not reach the services as non-nil interfaces.
	var publisher services.EventPublisher
	var authEvents auth.EventPublisher
	if events != nil {
		publisher = events
		authEvents = events
	}
	var snapshots services.SnapshotStore
	if snaps != nil {
		snapshots = snaps
	}

	provider, err := newProvider(backend, authEvents, cfg, logger)
	if err != nil {
		return nil, err
	}

	return &Deps{
		Store:    backend,
		Events:   events,
		Jobs:     services.NewJobService(backend, publisher, snapshots, logger.WithField("component", "jobs")),
		Users:    services.NewUserService(backend, logger.WithField("component", "users")),
		Provider: provider,
		Logger:   logger,
	}, nil
}

func (d *Deps) Close() error {
	return errors.Join(d.Events.Close(), d.Store.Close())
}

func openStore(ctx context.Context, cfg config.Config) (store.Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.DataBackend)) {
	case config.BackendPostgres, "":
		conn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		return store.NewPostgresBackend(conn), nil
	case config.BackendSupabase:
		return store.NewSupabaseBackend(cfg.Supabase.URL, cfg.Supabase.Key)
	case config.BackendMemory:
		return store.NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown data backend %q", cfg.DataBackend)
	}
}

func newProvider(backend store.Backend, events auth.EventPublisher, cfg config.Config, logger logrus.FieldLogger) (auth.Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Auth.Provider)) {
	case config.AuthLocal, "":
		return auth.NewLocalProvider(backend, events, cfg.Auth, logger.WithField("component", "auth"))
	case config.AuthSupabase:
		return auth.NewSupabaseProvider(cfg.Supabase.URL, cfg.Supabase.Key)
	default:
		return nil, fmt.Errorf("unknown auth provider %q", cfg.Auth.Provider)
	}
}
