package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/noughts/internal/api/apierr"
	"github.com/mcoot/noughts/internal/api/handler"
	"github.com/mcoot/noughts/internal/api/response"
	"github.com/mcoot/noughts/internal/middleware"
	"github.com/mcoot/noughts/internal/services/identity"
)

// ConnectionCounter reports live websocket connections
type ConnectionCounter interface {
	Count() int
}

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger      *slog.Logger
	Identities  identity.ServiceInterface
	Gateway     http.Handler
	Connections ConnectionCounter
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	playerHandler := handler.NewPlayerHandler(cfg.Identities)

	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger, apiPanicHandler)
	r.Use(recoveryMiddleware)
	r.Use(loggingMiddleware)

	// Game traffic
	r.Handle("/ws", cfg.Gateway).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/players/guest", playerHandler.CreateGuest).Methods(http.MethodPost)
	api.HandleFunc("/players/{id}", playerHandler.Get).Methods(http.MethodGet)

	api.HandleFunc("/health", healthHandler(cfg.Connections)).Methods(http.MethodGet)

	return r
}

func healthHandler(conns ConnectionCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := response.Health{Status: "ok"}
		if conns != nil {
			body.Connections = conns.Count()
		}
		response.JSON(w, http.StatusOK, body)
	}
}

// apiPanicHandler returns JSON error responses on panic
func apiPanicHandler(w http.ResponseWriter, _ *http.Request, _ any) {
	apierr.WriteError(w, apierr.NewInternalError())
}
