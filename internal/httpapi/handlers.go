package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/ar-duel-backend/internal/engine"
	"github.com/DoyleJ11/ar-duel-backend/internal/store"
)

// RoomLister is satisfied by *hub.Hub.
type RoomLister interface {
	Rooms(ctx context.Context) ([]engine.RoomSummary, error)
}

type MatchHistory interface {
	Recent(ctx context.Context, limit int) ([]store.Match, error)
}

func Root(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("AR duel server is running"))
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

type roomsResponse struct {
	TotalRooms int                  `json:"totalRooms"`
	Rooms      []engine.RoomSummary `json:"rooms"`
}

func ListRooms(rooms RoomLister, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		list, err := rooms.Rooms(ctx)
		if err != nil {
			log.Warn("list rooms", zap.Error(err))
			http.Error(w, "rooms unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, roomsResponse{TotalRooms: len(list), Rooms: list})
	}
}

func RecentMatches(history MatchHistory, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if history == nil {
			http.Error(w, "match history disabled", http.StatusServiceUnavailable)
			return
		}
		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 || n > 100 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}
		matches, err := history.Recent(r.Context(), limit)
		if err != nil {
			log.Error("recent matches", zap.Error(err))
			http.Error(w, "failed to load matches", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Matches []store.Match `json:"matches"`
		}{Matches: matches})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
