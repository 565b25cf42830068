package hub

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/DoyleJ11/ar-duel-backend/internal/engine"
)

type Stats struct {
	Rooms             int
	Players           int
	PendingReconnects int
	ActiveRooms       int
}

func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	rooms, err := h.Rooms(ctx)
	if err != nil {
		return Stats{}, err
	}
	s := Stats{Rooms: len(rooms)}
	for _, rm := range rooms {
		s.Players += rm.PlayerCount
		s.PendingReconnects += rm.PendingReconnects
		if rm.State == engine.RoomActive {
			s.ActiveRooms++
		}
	}
	return s, nil
}

// StartStatsJob logs room totals on spec. The caller stops the returned cron.
func StartStatsJob(h *Hub, spec string, logger *zap.Logger) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s, err := h.Stats(ctx)
		if err != nil {
			logger.Warn("stats unavailable", zap.Error(err))
			return
		}
		logger.Info("room stats",
			zap.Int("rooms", s.Rooms),
			zap.Int("active_rooms", s.ActiveRooms),
			zap.Int("players", s.Players),
			zap.Int("pending_reconnects", s.PendingReconnects),
		)
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}
