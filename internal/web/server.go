package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"tomahawk/internal/collection"
	"tomahawk/internal/job"
	"tomahawk/internal/notify"
)

type Server struct {
	ctx         context.Context
	collections *collection.Manager
	jobs        *job.Manager
	bus         *notify.Bus
	logger      *slog.Logger
}

func NewServer(ctx context.Context, collections *collection.Manager, jobs *job.Manager, bus *notify.Bus, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		ctx:         ctx,
		collections: collections,
		jobs:        jobs,
		bus:         bus,
		logger:      logger,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.loggingMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Route("/collections", func(r chi.Router) {
			r.Get("/", s.handleListCollections)
			r.Get("/{id}", s.handleGetCollection)
			r.Get("/{id}/artists", s.handleArtists)
			r.Get("/{id}/artists/{artist}/albums", s.handleAlbums)
			r.Get("/{id}/artists/{artist}/albums/{album}/tracks", s.handleTracks)
		})
		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", s.handleListJobs)
			r.Get("/{id}", s.handleGetJob)
			r.Post("/{id}/cancel", s.handleCancelJob)
		})
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
