package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/planpoker/planning-poker-backend/internal/coord"
	"github.com/planpoker/planning-poker-backend/internal/gateway"
	"github.com/planpoker/planning-poker-backend/internal/hub"
	"github.com/planpoker/planning-poker-backend/internal/ws"
)

// SetupRoutes builds the router with every collaborator injected; there is
// no ambient registry to look things up in.
func SetupRoutes(h *hub.Hub, c *coord.Coordinator, gw *gateway.Gateway, origins []string, defaultMaxMembers int, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Post("/rooms", CreateRoom(h, defaultMaxMembers, log))
	r.Get("/rooms/{id}", GetRoom(h, log))
	r.Get("/rooms/{id}/stats", GetRoomStats(h, log))
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(h, c, gw, origins, log))
	return r
}
