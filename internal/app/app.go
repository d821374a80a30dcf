package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tomahawk/internal/collection"
	"tomahawk/internal/config"
	"tomahawk/internal/entity"
	"tomahawk/internal/job"
	"tomahawk/internal/notify"
	"tomahawk/internal/resolver"
	"tomahawk/internal/source"
	"tomahawk/internal/source/local"
	"tomahawk/internal/source/musicbrainz"
	"tomahawk/internal/source/remote"
	"tomahawk/internal/store"
)

// Options tweak how an App is assembled.
type Options struct {
	// Sync runs every job on the calling goroutine instead of the pool.
	Sync bool
	// Only limits the app to the listed collection ids when non-empty.
	Only []string
}

// App owns every long-lived component of a running process.
type App struct {
	Store       *store.Store
	Jobs        *job.Manager
	Pool        *job.Pool
	Bus         *notify.Bus
	Collections *collection.Manager
	Registry    *entity.Registry
	Queries     *resolver.Index

	logger *slog.Logger
}

// New wires the response store, the job pool and one collection per
// configured resolver. Collections start their artist fetch immediately.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	st, err := store.Open(cfg.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open response store: %w", err)
	}

	a := &App{
		Store:       st,
		Jobs:        job.NewManager(cfg.JobRetention),
		Bus:         notify.NewBus(logger),
		Collections: collection.NewManager(),
		Registry:    entity.NewRegistry(),
		Queries:     resolver.NewIndex(),
		logger:      logger,
	}
	a.Jobs.StartCleanup(ctx)
	a.Pool = job.NewPool(ctx, a.Jobs, job.PoolConfig{
		Workers: cfg.ParallelJobs,
		Timeout: cfg.JobTimeout,
	}, logger)

	sources := make(map[string]job.Source)
	var mb *musicbrainz.Client
	var selected []config.CollectionConfig
	for _, cc := range cfg.Collections {
		if !wanted(cc.ID, opts.Only) {
			continue
		}
		src, err := newSource(cc, cfg, logger)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		if len(cc.Fallbacks) > 0 {
			chain := []job.Source{src}
			for i, fb := range cc.Fallbacks {
				if fb == config.SourceMusicBrainz {
					if mb == nil {
						mb = musicbrainz.New()
					}
					chain = append(chain, mb)
					continue
				}
				chain = append(chain, remote.New(remote.Options{
					Name:    fmt.Sprintf("%s-fallback-%d", cc.ID, i+1),
					BaseURL: fb,
					Timeout: cfg.JobTimeout,
				}))
			}
			src = source.NewChain(cc.ID, chain, logger)
		}
		cached := source.NewCached(src, st, logger)
		sources[cc.ID] = cached
		a.Pool.Register(cc.ID, cached)
		selected = append(selected, cc)
	}
	if len(selected) == 0 {
		_ = a.Close()
		return nil, errors.New("no collection matches the selection")
	}

	var dispatcher job.Dispatcher = a.Pool
	if opts.Sync {
		dispatcher = job.Inline{Sources: sources}
	}

	for _, cc := range selected {
		c, err := collection.New(collection.Options{
			ID:         cc.ID,
			Name:       cc.Name,
			IconPath:   cc.IconPath,
			OnlyLocal:  cc.OnlyLocal,
			Registry:   a.Registry,
			Queries:    a.Queries,
			Dispatcher: dispatcher,
			Publisher:  a.Bus,
			Logger:     logger,
		})
		if err == nil {
			err = a.Collections.Add(c)
		}
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("collection %q: %w", cc.ID, err)
		}
		logger.Info("collection ready", "collection", cc.ID, "source", cc.Source, "persistent_cache", st.Persistent())
	}

	return a, nil
}

// Close stops the pool, closes subscriber channels and the store.
func (a *App) Close() error {
	a.Pool.Close()
	a.Bus.Close()
	return a.Store.Close()
}

func newSource(cc config.CollectionConfig, cfg config.Config, logger *slog.Logger) (job.Source, error) {
	switch cc.Source {
	case config.SourceLocal:
		return local.New(cc.ID, cc.Path, logger), nil
	case config.SourceRemote:
		return remote.New(remote.Options{
			Name:              cc.ID,
			BaseURL:           cc.URL,
			RequestsPerSecond: cc.RequestsPerSecond,
			Burst:             cc.Burst,
			Timeout:           cfg.JobTimeout,
		}), nil
	}
	return nil, fmt.Errorf("collection %q: unknown source %q", cc.ID, cc.Source)
}

func wanted(id string, only []string) bool {
	if len(only) == 0 {
		return true
	}
	for _, o := range only {
		if o == id {
			return true
		}
	}
	return false
}
