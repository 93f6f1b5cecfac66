// Package handler exposes the service's HTTP surface: the Twilio call
// webhook, the media-stream websocket, and small read-only endpoints
// for health and bookings.
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/parakeetlabs/voice-bridge/internal/agent"
	"github.com/parakeetlabs/voice-bridge/internal/config"
	"github.com/parakeetlabs/voice-bridge/internal/core/session"
	"github.com/parakeetlabs/voice-bridge/internal/core/tool"
	"github.com/parakeetlabs/voice-bridge/internal/relay"
	"github.com/parakeetlabs/voice-bridge/internal/repository"
)

// Handler wires the HTTP endpoints to the relay, tools, and store.
type Handler struct {
	cfg      *config.Config
	settings json.RawMessage
	tools    *tool.Registry
	repo     repository.BookingRepository
	calls    *session.Registry
	upgrader websocket.Upgrader
}

// New creates the handler set.
func New(cfg *config.Config, settings json.RawMessage, tools *tool.Registry, repo repository.BookingRepository, calls *session.Registry) *Handler {
	return &Handler{
		cfg:      cfg,
		settings: settings,
		tools:    tools,
		repo:     repo,
		calls:    calls,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			// Twilio media streams do not negotiate compression.
			EnableCompression: false,
			CheckOrigin: func(r *http.Request) bool {
				// Twilio connections carry no browser Origin header.
				return true
			},
		},
	}
}

// RegisterRoutes attaches all endpoints to the router.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.Use(LoggingMiddleware)
	r.HandleFunc("/incoming-call", h.HandleIncomingCall).Methods(http.MethodPost)
	r.HandleFunc("/media-stream", h.HandleMediaStream)
	r.HandleFunc("/health", h.HandleHealth).Methods(http.MethodGet)
	r.HandleFunc("/bookings", h.HandleListBookings).Methods(http.MethodGet)
	r.HandleFunc("/bookings/{id:[0-9]+}", h.HandleGetBooking).Methods(http.MethodGet)
}

// dialAgent builds the per-session agent dialer from static config.
func (h *Handler) dialAgent(ctx context.Context) (relay.AgentConn, error) {
	client, err := agent.Dial(ctx, h.cfg.AgentURL, h.cfg.DeepgramAPIKey)
	if err != nil {
		return nil, err
	}
	return client, nil
}
