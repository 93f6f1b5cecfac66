package handler

import (
	"context"
	"net/http"

	"github.com/parakeetlabs/voice-bridge/internal/relay"
	"github.com/parakeetlabs/voice-bridge/pkg/logger"
	"github.com/twilio/twilio-go/twiml"
	"go.uber.org/zap"
)

// HandleIncomingCall answers Twilio's call webhook with TwiML that
// connects the call's media stream to this host's relay endpoint.
func (h *Handler) HandleIncomingCall(w http.ResponseWriter, r *http.Request) {
	stream := &twiml.VoiceStream{
		Url: "wss://" + r.Host + "/media-stream",
	}
	connect := &twiml.VoiceConnect{
		InnerElements: []twiml.Element{stream},
	}

	doc, err := twiml.Voice([]twiml.Element{connect})
	if err != nil {
		logger.Base().Error("failed to render twiml", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write([]byte(doc))
}

// HandleMediaStream upgrades the Twilio media-stream connection and
// runs the relay session for the lifetime of the call.
func (h *Handler) HandleMediaStream(w http.ResponseWriter, r *http.Request) {
	if h.calls.Count() >= h.cfg.MaxSessions {
		logger.Base().Warn("rejecting call, session limit reached",
			zap.Int("max_sessions", h.cfg.MaxSessions))
		http.Error(w, "too many sessions", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Base().Error("media stream upgrade failed", zap.Error(err))
		return
	}

	sess := relay.NewSession(conn, h.dialAgent, h.settings, h.tools)
	logger.Base().Info("call connected", zap.String("session_id", sess.ID()))

	// Registry updates outlive the hijacked request context.
	h.calls.Add(context.Background(), sess.ID())
	defer h.calls.Remove(context.Background(), sess.ID())

	if err := sess.Run(r.Context()); err != nil {
		logger.Base().Warn("call ended with error",
			zap.String("session_id", sess.ID()), zap.Error(err))
		return
	}
	logger.Base().Info("call ended", zap.String("session_id", sess.ID()))
}
