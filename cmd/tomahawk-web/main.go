package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"tomahawk/internal/app"
	"tomahawk/internal/config"
	"tomahawk/internal/logger"
	"tomahawk/internal/shutdown"
	"tomahawk/internal/web"
)

func main() {
	var (
		addr       string
		configPath string
	)

	flag.StringVar(&addr, "addr", "", "HTTP listen address (overrides listen_addr)")
	flag.StringVar(&configPath, "config", "", "Config file path")
	flag.Parse()

	cfg, err := config.LoadConfigFile(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if addr != "" {
		cfg.ListenAddr = addr
	}

	l, err := logger.New(logger.Config{
		Writer:   os.Stdout,
		Format:   cfg.LogFormat,
		Level:    logger.ParseLevel(cfg.LogLevel),
		FilePath: cfg.LogFile,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer l.Close()

	if err := cfg.Validate(); err != nil {
		l.Error("configuration error", "error", err)
		os.Exit(1)
	}

	sh := shutdown.New(l.Logger)
	sh.Listen()

	a, err := app.New(sh.Context(), cfg, l.Logger, app.Options{})
	if err != nil {
		l.Error("startup failed", "error", err)
		os.Exit(1)
	}
	sh.AddCleanup("app", a.Close)

	server := web.NewServer(sh.Context(), a.Collections, a.Jobs, a.Bus, l.Logger)
	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	sh.AddCleanup("http", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(ctx)
	})

	go func() {
		l.Info("starting web server", "addr", cfg.ListenAddr, "collections", len(a.Collections.All()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("server error", "error", err)
			sh.Shutdown()
		}
	}()

	<-sh.Done()
	l.Info("server stopped")
}
