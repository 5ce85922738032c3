package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/stickduel/backend/internal/hub"
	"github.com/stickduel/backend/internal/ws"
)

func SetupRoutes(h *hub.Hub, log *zap.SugaredLogger, originPatterns []string) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/rooms", ListRooms(h))
	r.Get("/ws", ws.Handler(h, log, originPatterns))
	return r
}
