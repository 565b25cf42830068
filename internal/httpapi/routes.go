package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/DoyleJ11/ar-duel-backend/internal/logging"
)

type Deps struct {
	Rooms          RoomLister
	Matches        MatchHistory // nil disables /matches
	WS             http.HandlerFunc
	Logger         *zap.Logger
	AllowedOrigins []string
}

func SetupRoutes(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logging.RequestLogger(d.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
	}))

	r.Get("/", Root)
	r.Get("/healthz", Healthz)
	r.Get("/rooms", ListRooms(d.Rooms, d.Logger))
	r.Get("/matches", RecentMatches(d.Matches, d.Logger))
	r.Get("/ws", d.WS)
	return r
}
