package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/backyonatan-alt/petitionwatch/internal/cache"
	"github.com/backyonatan-alt/petitionwatch/internal/config"
	"github.com/backyonatan-alt/petitionwatch/internal/model"
	"github.com/backyonatan-alt/petitionwatch/internal/pipeline"
)

// Store is the read side of petition persistence the handlers need.
type Store interface {
	Petition(ctx context.Context, id int64) (model.Petition, error)
	Snapshots(ctx context.Context, petitionID int64, limit int) ([]model.Snapshot, error)
	LatestPartyTotals(ctx context.Context, petitionID int64) ([]model.PartyTotal, error)
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	cfg           config.ServerConfig
	snapshotLimit int
	store         Store
	reports       *cache.Value[pipeline.Report]
	now           func() time.Time
}

func New(cfg config.ServerConfig, snapshotLimit int, st Store, reports *cache.Value[pipeline.Report]) *Server {
	if snapshotLimit <= 0 {
		snapshotLimit = 48
	}
	return &Server{cfg: cfg, snapshotLimit: snapshotLimit, store: st, reports: reports, now: time.Now}
}

// Router returns the HTTP handler with all routes registered.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         86400,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/petitions/{id}", func(r chi.Router) {
		r.Get("/", s.handlePetition)
		r.Get("/parties", s.handleParties)
	})
	return r
}
