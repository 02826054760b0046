package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/red-tetris-backend/internal/hub"
	"github.com/DoyleJ11/red-tetris-backend/internal/protocol"
)

type roomsResponse struct {
	Rooms []protocol.RoomInfo `json:"rooms"`
}

type leaderboardResponse struct {
	Entries []protocol.Entry `json:"entries"`
}

func ListRooms(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms, err := h.Rooms(r.Context())
		if err != nil {
			http.Error(w, "hub unavailable", http.StatusServiceUnavailable)
			return
		}
		out := make([]protocol.RoomInfo, 0, len(rooms))
		for _, s := range rooms {
			out = append(out, protocol.RoomInfo{Name: s.Name, Players: s.Players, Capacity: s.Capacity, Running: s.Running})
		}
		writeJSON(w, http.StatusOK, roomsResponse{Rooms: out})
	}
}

// Leaderboard serves the top winners; ?limit= is clamped by the store.
func Leaderboard(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				http.Error(w, "limit must be an integer", http.StatusBadRequest)
				return
			}
			limit = n
		}
		top, err := h.Leaderboard(r.Context(), limit)
		if err != nil {
			http.Error(w, "failed to read leaderboard", http.StatusInternalServerError)
			return
		}
		out := make([]protocol.Entry, 0, len(top))
		for _, e := range top {
			out = append(out, protocol.Entry{Name: e.Name, Score: e.Score})
		}
		writeJSON(w, http.StatusOK, leaderboardResponse{Entries: out})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
