package server

import (
	"database/sql"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/larderhq/larder/internal/backup"
	"github.com/larderhq/larder/internal/classify"
	"github.com/larderhq/larder/internal/email"
	"github.com/larderhq/larder/internal/handler"
	"github.com/larderhq/larder/internal/metrics"
	"github.com/larderhq/larder/internal/middleware"
	"github.com/larderhq/larder/internal/product"
	"github.com/larderhq/larder/internal/push"
	"github.com/larderhq/larder/internal/store"
	ws "github.com/larderhq/larder/internal/websocket"
)

// Config carries everything the server needs beyond the database handle.
type Config struct {
	TemplatesDir string
	StaticDir    string
	DigestHour   int
	Backup       backup.Config
	Push         push.Config
}

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	pantryH       *handler.PantryHandler
	authH         *handler.AuthHandler
	pushH         *handler.PushHandler
	backupH       *handler.BackupHandler
	sessionStore  *store.SessionStore
	userStore     *store.UserStore
	resetStore    *store.ResetCodeStore
	pushStore     *store.PushStore
	rateLimiter   *middleware.RateLimiter
	backupManager *backup.Manager
	pushService   *push.Service
	pushScheduler *push.Scheduler
	metrics       *metrics.Metrics
	staticDir     string
	logger        *slog.Logger
}

func New(db *sql.DB, emailClient *email.Client, cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))
	m := metrics.New("larder")

	itemStore := store.NewItemStore(db)
	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	resetStore := store.NewResetCodeStore(db)
	settingsStore := store.NewSettingsStore(db)
	backupStore := store.NewBackupStore(db)
	pushStore := store.NewPushStore(db)

	classifier := classify.New(classify.Default())
	products := product.NewService()

	tmplDir := cfg.TemplatesDir
	if tmplDir == "" {
		tmplDir = "web/templates"
	}
	templates := template.Must(template.ParseGlob(filepath.Join(tmplDir, "*.html")))

	staticDir := cfg.StaticDir
	if staticDir == "" {
		staticDir = "web/static"
	}

	// Backup state changes go to every connected client; runs land in the
	// run counters as they finish.
	backupMgr := backup.NewManager(cfg.Backup, db, backupStore, settingsStore, func(s backup.Status) {
		hub.BroadcastAll(ws.Message{
			Type:   "backup_status",
			Entity: "backup",
			Action: string(s.State),
			Extra: map[string]any{
				"in_progress": s.InProgress,
				"error":       s.Error,
			},
		})
		switch s.State {
		case backup.StateError:
			m.RecordBackupRun("failed")
		case backup.StateIdle:
			if s.LastBackup != nil {
				m.RecordBackupRun("completed")
			}
		}
	}, logger.With("component", "backup"))

	var pushSvc *push.Service
	var pushSched *push.Scheduler
	var pushH *handler.PushHandler
	if cfg.Push.VAPIDPublicKey != "" && cfg.Push.VAPIDPrivateKey != "" {
		pushSvc = push.NewService(cfg.Push.VAPIDPublicKey, cfg.Push.VAPIDPrivateKey)
		pushSched = push.NewScheduler(pushSvc, pushStore, itemStore, cfg.DigestHour, logger.With("component", "push"))
		pushSched.OnDigest = m.RecordDigestSent
		pushH = handler.NewPushHandler(pushStore, pushSvc, logger.With("component", "push_handler"))
	}

	return &Server{
		db:            db,
		hub:           hub,
		pantryH:       handler.NewPantryHandler(itemStore, classifier, products, hub, m, templates, logger.With("component", "pantry")),
		authH:         handler.NewAuthHandler(userStore, sessionStore, resetStore, emailClient, templates, logger.With("component", "auth")),
		pushH:         pushH,
		backupH:       handler.NewBackupHandler(backupMgr, backupStore, settingsStore, logger.With("component", "backup_handler")),
		sessionStore:  sessionStore,
		userStore:     userStore,
		resetStore:    resetStore,
		pushStore:     pushStore,
		rateLimiter:   middleware.NewRateLimiter(),
		backupManager: backupMgr,
		pushService:   pushSvc,
		pushScheduler: pushSched,
		metrics:       m,
		staticDir:     staticDir,
		logger:        logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// ResetCodeStore returns the reset code store for cleanup tasks.
func (s *Server) ResetCodeStore() *store.ResetCodeStore {
	return s.resetStore
}

// PushStore returns the push store for cleanup tasks.
func (s *Server) PushStore() *store.PushStore {
	return s.pushStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// BackupManager returns the backup manager.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

// PushScheduler returns the digest scheduler, nil when VAPID keys are unset.
func (s *Server) PushScheduler() *push.Scheduler {
	return s.pushScheduler
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /login", s.authH.LoginPage)
	outerMux.HandleFunc("POST /login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("GET /signup", s.authH.SignupPage)
	outerMux.HandleFunc("POST /signup", s.rateLimitedHandler(s.authH.Signup))
	outerMux.HandleFunc("GET /reset", s.authH.ResetPage)
	outerMux.HandleFunc("POST /reset", s.rateLimitedHandler(s.authH.ResetRequest))
	outerMux.HandleFunc("GET /reset/confirm", s.authH.ResetConfirmPage)
	outerMux.HandleFunc("POST /reset/confirm", s.rateLimitedHandler(s.authH.ResetConfirm))
	outerMux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(s.staticDir))))
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.Handle("GET /metrics", s.metrics.Handler())

	// Protected routes, wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.userStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	logged := middleware.RequestLogger(s.logger.With("component", "http"))
	measured := middleware.Metrics(s.metrics)
	return logged(measured(outerMux))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /logout", s.authH.Logout)

	// Pages
	mux.HandleFunc("GET /", s.pantryH.Inventory)
	mux.HandleFunc("GET /items/new", s.pantryH.NewItemForm)
	mux.HandleFunc("GET /items/{id}/edit", s.pantryH.EditItemForm)

	// Item mutations
	mux.HandleFunc("POST /items", s.pantryH.CreateItem)
	mux.HandleFunc("PUT /items/{id}", s.pantryH.UpdateItem)
	mux.HandleFunc("DELETE /items/{id}", s.pantryH.DeleteItem)

	// Partials (HTMX)
	mux.HandleFunc("GET /partials/items", s.pantryH.ItemRows)
	mux.HandleFunc("GET /partials/recommendations", s.pantryH.RecommendationsPartial)
	mux.HandleFunc("GET /partials/alerts", s.pantryH.AlertsPartial)
	mux.HandleFunc("GET /partials/classify", s.pantryH.ClassifyPreview)
	mux.HandleFunc("GET /partials/product-lookup", s.pantryH.ProductLookup)

	// Push notification API routes
	if s.pushH != nil {
		mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
		mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
		mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
		mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
		mux.HandleFunc("POST /api/push/test", s.pushH.TestNotification)
	}

	// Backup API routes
	mux.HandleFunc("GET /api/backups", s.backupH.List)
	mux.HandleFunc("GET /api/backups/status", s.backupH.Status)
	mux.HandleFunc("POST /api/backups/run", s.backupH.Run)
	mux.HandleFunc("PUT /api/backups/passphrase", s.backupH.SetPassphrase)
	mux.HandleFunc("GET /api/backups/settings", s.backupH.GetSettings)
	mux.HandleFunc("PUT /api/backups/settings", s.backupH.UpdateSettings)
	mux.HandleFunc("POST /api/backups/{id}/restore", s.backupH.Restore)
	mux.HandleFunc("GET /api/backups/{id}/download", s.backupH.Download)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))
}
