package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/red-tetris-backend/internal/hub"
	"github.com/DoyleJ11/red-tetris-backend/internal/ws"
)

func SetupRoutes(h *hub.Hub, log *zap.Logger, opts ws.Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	// Public routes
	r.Get("/healthz", Healthz)
	r.Get("/rooms", ListRooms(h))
	r.Get("/leaderboard", Leaderboard(h))
	r.Get("/ws", ws.Handler(h, log, opts))
	return r
}
