package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/nerloapp/nerlo/internal/elevation"
	"github.com/nerloapp/nerlo/internal/email"
	"github.com/nerloapp/nerlo/internal/handler"
	"github.com/nerloapp/nerlo/internal/middleware"
	"github.com/nerloapp/nerlo/internal/photo"
	"github.com/nerloapp/nerlo/internal/stats"
	"github.com/nerloapp/nerlo/internal/store"
	"github.com/nerloapp/nerlo/internal/task"
	ws "github.com/nerloapp/nerlo/internal/websocket"
)

const (
	publicStatsTTL       = 30 * time.Second
	publicStatsCallLimit = 10
)

type Config struct {
	MinPhotos     int
	SecureCookies bool
}

type Server struct {
	db           *sql.DB
	hub          *ws.Hub
	authH        *handler.AuthHandler
	familyH      *handler.FamilyHandler
	parentModeH  *handler.ParentModeHandler
	kidH         *handler.KidHandler
	taskH        *handler.TaskHandler
	goalH        *handler.GoalHandler
	statsH       *handler.StatsHandler
	photoH       *handler.PhotoHandler
	sessionStore *store.SessionStore
	familyStore  *store.FamilyStore
	rateLimiter  *middleware.RateLimiter
	logger       *slog.Logger
}

func New(db *sql.DB, emailClient *email.Client, uploader *photo.Uploader, cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	loginCodeStore := store.NewLoginCodeStore(db)
	familyStore := store.NewFamilyStore(db)
	kidStore := store.NewKidStore(db)
	parentSessionStore := store.NewParentSessionStore(db)
	taskStore := store.NewTaskStore(db)
	goalStore := store.NewGoalStore(db)

	guard := elevation.NewGuard(familyStore, parentSessionStore, logger.With("component", "elevation"))
	taskSvc := task.NewService(taskStore, kidStore, guard, cfg.MinPhotos, logger.With("component", "task"))

	statsCache := stats.NewCache(func() (stats.PublicStats, error) {
		families, err := familyStore.Count()
		if err != nil {
			return stats.PublicStats{}, err
		}
		completed, err := taskStore.CountApproved()
		if err != nil {
			return stats.PublicStats{}, err
		}
		earned, err := taskStore.SumApprovedRewards()
		if err != nil {
			return stats.PublicStats{}, err
		}
		return stats.PublicStats{
			Families:       families,
			TasksCompleted: completed,
			TotalEarned:    earned,
		}, nil
	}, publicStatsTTL, publicStatsCallLimit)

	return &Server{
		db:           db,
		hub:          hub,
		authH:        handler.NewAuthHandler(userStore, sessionStore, loginCodeStore, familyStore, guard, emailClient, cfg.SecureCookies, logger.With("component", "auth")),
		familyH:      handler.NewFamilyHandler(familyStore, kidStore, guard, hub, logger.With("component", "family")),
		parentModeH:  handler.NewParentModeHandler(guard, logger.With("component", "parent_mode")),
		kidH:         handler.NewKidHandler(kidStore, taskStore, goalStore, guard, hub, logger.With("component", "kid")),
		taskH:        handler.NewTaskHandler(taskStore, taskSvc, guard, hub, logger.With("component", "task_handler")),
		goalH:        handler.NewGoalHandler(goalStore, kidStore, guard, hub, logger.With("component", "goal")),
		statsH:       handler.NewStatsHandler(taskStore, kidStore, statsCache, logger.With("component", "stats")),
		photoH:       handler.NewPhotoHandler(uploader, logger.With("component", "photo")),
		sessionStore: sessionStore,
		familyStore:  familyStore,
		rateLimiter:  middleware.NewRateLimiter(),
		logger:       logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /api/auth/request-code", s.rateLimited(s.authH.RequestCode, middleware.LoginPolicy))
	outerMux.HandleFunc("POST /api/auth/verify", s.rateLimited(s.authH.Verify, middleware.LoginPolicy))
	outerMux.HandleFunc("GET /api/public/stats", s.statsH.Public)
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes — wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.familyStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimited(h http.HandlerFunc, p middleware.Policy) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, p)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/auth/me", s.authH.Me)
	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)

	mux.HandleFunc("POST /api/onboarding", s.familyH.Onboard)
	mux.HandleFunc("GET /api/family", s.familyH.Get)
	mux.HandleFunc("PUT /api/family/currency", s.familyH.UpdateCurrency)
	mux.HandleFunc("PUT /api/family/pin", s.familyH.ChangePIN)

	// PIN guesses get the tighter budget
	mux.HandleFunc("POST /api/parent-mode", s.rateLimited(s.parentModeH.Enter, middleware.PINPolicy))
	mux.HandleFunc("GET /api/parent-mode", s.parentModeH.Status)
	mux.HandleFunc("POST /api/parent-mode/extend", s.rateLimited(s.parentModeH.Extend, middleware.PINPolicy))
	mux.HandleFunc("DELETE /api/parent-mode", s.parentModeH.Exit)

	mux.HandleFunc("GET /api/kids", s.kidH.List)
	mux.HandleFunc("POST /api/kids", s.kidH.Create)
	mux.HandleFunc("GET /api/kids/{id}/dashboard", s.kidH.Dashboard)
	mux.HandleFunc("POST /api/kids/{id}/goals", s.goalH.Create)
	mux.HandleFunc("GET /api/kids/{id}/goals", s.goalH.List)
	mux.HandleFunc("PUT /api/goals/{id}", s.goalH.Update)
	mux.HandleFunc("DELETE /api/goals/{id}", s.goalH.Delete)

	mux.HandleFunc("POST /api/tasks", s.taskH.Create)
	mux.HandleFunc("GET /api/tasks", s.taskH.List)
	mux.HandleFunc("GET /api/tasks/{id}", s.taskH.Get)
	mux.HandleFunc("POST /api/tasks/{id}/start", s.taskH.Start)
	mux.HandleFunc("POST /api/tasks/{id}/pause", s.taskH.Pause)
	mux.HandleFunc("POST /api/tasks/{id}/resume", s.taskH.Resume)
	mux.HandleFunc("POST /api/tasks/{id}/complete", s.taskH.Complete)
	mux.HandleFunc("POST /api/tasks/{id}/approve", s.taskH.Approve)
	mux.HandleFunc("POST /api/tasks/{id}/reject", s.taskH.Reject)
	mux.HandleFunc("POST /api/tasks/{id}/work-time", s.taskH.SaveWorkTime)

	mux.HandleFunc("POST /api/photos", s.photoH.Upload)

	mux.HandleFunc("GET /api/stats", s.statsH.Get)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.Handle(s.hub, s.logger.With("component", "websocket")))
}
