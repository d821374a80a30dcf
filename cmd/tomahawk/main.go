package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"tomahawk/internal/app"
	"tomahawk/internal/collection"
	"tomahawk/internal/config"
	"tomahawk/internal/logger"
	"tomahawk/internal/notify"
	"tomahawk/internal/resolver"
	"tomahawk/internal/shutdown"
)

var errTimeout = errors.New("timed out waiting for the resolver")

func main() {
	cfg, opts, configPath, err := parseArgs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		os.Exit(1)
	}

	level := logger.ParseLevel(cfg.LogLevel)
	if cfg.Verbose {
		level = slog.LevelDebug
	} else if level < slog.LevelWarn {
		level = slog.LevelWarn
	}
	log, err := logger.New(logger.Config{
		Writer:   os.Stderr,
		Format:   cfg.LogFormat,
		Level:    level,
		FilePath: cfg.LogFile,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	if configPath != "" {
		log.Debug("loaded configuration", "path", configPath)
	}

	if err := cfg.Validate(); err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}

	sh := shutdown.New(log.Logger)
	sh.Listen()

	if err := run(sh, cfg, opts, log.Logger); err != nil {
		sh.Shutdown()
		log.Error("command failed", "error", err)
		os.Exit(1)
	}
	sh.Shutdown()
}

func run(sh *shutdown.Handler, cfg config.Config, opts cliOptions, log *slog.Logger) error {
	if _, ok := cfg.Collection(opts.collection); !ok {
		return fmt.Errorf("unknown collection: %s", opts.collection)
	}

	a, err := app.New(sh.Context(), cfg, log, app.Options{Sync: opts.sync, Only: []string{opts.collection}})
	if err != nil {
		return err
	}
	sh.AddCleanup("app", a.Close)

	c, _ := a.Collections.Get(opts.collection)
	sub := a.Bus.Subscribe()

	ctx, cancel := context.WithTimeout(sh.Context(), opts.wait)
	defer cancel()

	switch opts.command {
	case cmdArtists:
		if c.ArtistsPending() {
			if err := waitFor(ctx, sub, c, "", c.ArtistsPending); err != nil {
				return err
			}
		}
		for _, artist := range c.Artists(opts.sorted) {
			fmt.Println(artist.Name())
		}

	case cmdAlbums:
		artist := c.Registry().Artist(opts.artist)
		if artist == nil {
			return errors.New("artist name cannot be blank")
		}
		albums := c.GetArtistAlbums(artist, opts.sorted)
		if albums == nil {
			pending := func() bool { return c.Pending(artist.CacheKey()) }
			if err := waitFor(ctx, sub, c, artist.CacheKey(), pending); err != nil {
				return err
			}
			albums = c.GetArtistAlbums(artist, opts.sorted)
		}
		for _, album := range albums {
			fmt.Println(album.Name())
		}

	case cmdTracks:
		album := c.Registry().Album(opts.album, c.Registry().Artist(opts.artist))
		if album == nil {
			return errors.New("artist and album names cannot be blank")
		}
		tracks := c.GetAlbumTracks(album, opts.sorted)
		if tracks == nil {
			pending := func() bool { return c.Pending(album.CacheKey()) }
			if err := waitFor(ctx, sub, c, album.CacheKey(), pending); err != nil {
				return err
			}
			tracks = c.GetAlbumTracks(album, opts.sorted)
		}
		for _, q := range tracks {
			printTrack(q)
		}
	}
	return nil
}

// waitFor blocks until a notification names key (any key when empty) or
// the fetch behind it is no longer pending.
func waitFor(ctx context.Context, sub notify.Subscription, c *collection.Collection, key string, pending func() bool) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if !pending() {
			return nil
		}
		select {
		case ev, ok := <-sub.Events:
			if !ok {
				return context.Canceled
			}
			if ev.Collection == c.ID() && (key == "" || ev.Has(key)) {
				return nil
			}
		case <-ticker.C:
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return errTimeout
			}
			return ctx.Err()
		}
	}
}

func printTrack(q *resolver.Query) {
	best, ok := q.BestResult()
	if !ok {
		fmt.Printf("   %s\n", q.Title())
		return
	}
	r := best.Result
	pos := fmt.Sprintf("%2d", r.AlbumPos)
	if r.DiscNumber > 1 {
		pos = fmt.Sprintf("%d-%02d", r.DiscNumber, r.AlbumPos)
	}
	line := fmt.Sprintf("%s. %s", pos, q.Title())
	if r.Duration > 0 {
		line += fmt.Sprintf(" (%d:%02d)", r.Duration/60, r.Duration%60)
	}
	if !q.IsPlayable() {
		line += " [unplayable]"
	}
	fmt.Println(line)
}
