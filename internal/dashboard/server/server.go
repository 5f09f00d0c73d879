// Package server wires the dashboard API: a JSON-only reporting surface
// over the same database the web app writes to.
package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/larderhq/larder/internal/classify"
	"github.com/larderhq/larder/internal/dashboard/handler"
	dashmw "github.com/larderhq/larder/internal/dashboard/middleware"
	"github.com/larderhq/larder/internal/metrics"
	sharedmw "github.com/larderhq/larder/internal/middleware"
	"github.com/larderhq/larder/internal/store"
)

type Config struct {
	JWTSecret []byte
}

type Server struct {
	db          *sql.DB
	userStore   *store.UserStore
	itemStore   *store.ItemStore
	authH       *handler.AuthHandler
	itemH       *handler.ItemHandler
	insightH    *handler.InsightHandler
	secret      []byte
	rateLimiter *sharedmw.RateLimiter
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	userStore := store.NewUserStore(db)
	itemStore := store.NewItemStore(db)
	classifier := classify.New(classify.Default())

	return &Server{
		db:          db,
		userStore:   userStore,
		itemStore:   itemStore,
		authH:       handler.NewAuthHandler(userStore, cfg.JWTSecret, logger.With("component", "auth")),
		itemH:       handler.NewItemHandler(itemStore, classifier, logger.With("component", "items")),
		insightH:    handler.NewInsightHandler(itemStore, logger.With("component", "insights")),
		secret:      cfg.JWTSecret,
		rateLimiter: sharedmw.NewRateLimiter(),
		metrics:     metrics.New("dashboard"),
		logger:      logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *sharedmw.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("POST /api/v1/auth/login", s.rateLimitedHandler(s.authH.Login))

	// Everything else under /api/v1/ requires a bearer token
	protected := http.NewServeMux()
	protected.HandleFunc("POST /api/v1/auth/refresh", s.authH.Refresh)
	protected.HandleFunc("GET /api/v1/inventory", s.itemH.Inventory)
	protected.HandleFunc("POST /api/v1/items", s.itemH.Create)
	protected.HandleFunc("GET /api/v1/items/{id}", s.itemH.Get)
	protected.HandleFunc("PUT /api/v1/items/{id}", s.itemH.Update)
	protected.HandleFunc("DELETE /api/v1/items/{id}", s.itemH.Delete)
	protected.HandleFunc("GET /api/v1/recommendations", s.insightH.Recommendations)
	protected.HandleFunc("GET /api/v1/analysis", s.insightH.Analysis)
	protected.HandleFunc("GET /api/v1/alerts", s.insightH.Alerts)

	requireToken := dashmw.RequireToken(s.secret)
	mux.Handle("/api/v1/", requireToken(protected))

	logged := sharedmw.RequestLogger(s.logger.With("component", "http"))
	measured := sharedmw.Metrics(s.metrics)
	return logged(measured(mux))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return sharedmw.RealIP(r)
	}
	rl := sharedmw.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}
