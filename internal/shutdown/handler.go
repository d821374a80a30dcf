package shutdown

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Handler cancels a root context on SIGINT/SIGTERM and then runs the
// registered cleanups, last registered first.
type Handler struct {
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *slog.Logger
	mu       sync.Mutex
	cleanups []cleanup
	once     sync.Once
	done     chan struct{}
}

type cleanup struct {
	name string
	fn   func() error
}

// New creates a new shutdown handler
func New(logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Context returns the shutdown context
func (h *Handler) Context() context.Context {
	return h.ctx
}

// AddCleanup registers fn to run on shutdown. Errors are logged.
func (h *Handler) AddCleanup(name string, fn func() error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cleanups = append(h.cleanups, cleanup{name: name, fn: fn})
}

// Listen starts listening for shutdown signals
func (h *Handler) Listen() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			h.logger.Info("shutdown signal received", "signal", sig.String())
			h.Shutdown()
		case <-h.done:
		}
		signal.Stop(sigChan)
	}()
}

// Shutdown cancels the context and runs cleanups once.
func (h *Handler) Shutdown() {
	h.once.Do(func() {
		h.cancel()

		h.mu.Lock()
		fns := h.cleanups
		h.mu.Unlock()

		for i := len(fns) - 1; i >= 0; i-- {
			start := time.Now()
			if err := fns[i].fn(); err != nil {
				h.logger.Error("cleanup failed", "name", fns[i].name, "error", err)
				continue
			}
			h.logger.Debug("cleanup done", "name", fns[i].name, "duration", time.Since(start))
		}
		close(h.done)
	})
}

// Done is closed after Shutdown has run every cleanup.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}
