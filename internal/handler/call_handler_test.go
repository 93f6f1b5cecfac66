package handler

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/parakeetlabs/voice-bridge/internal/config"
	"github.com/parakeetlabs/voice-bridge/internal/core/session"
	"github.com/parakeetlabs/voice-bridge/internal/core/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler() *Handler {
	cfg := &config.Config{
		Port:        "5000",
		AgentURL:    config.DefaultAgentURL,
		MaxSessions: 10,
	}
	calls := session.NewRegistry("", "", 0, "test-instance")
	return New(cfg, json.RawMessage(`{}`), tool.NewRegistry(), nil, calls)
}

func TestIncomingCallReturnsStreamTwiML(t *testing.T) {
	h := newTestHandler()
	router := mux.NewRouter()
	h.RegisterRoutes(router)

	req := httptest.NewRequest("POST", "http://bridge.example.com/incoming-call", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	assert.Equal(t, "application/xml", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	// The stream URL must point back at the host Twilio called.
	assert.Contains(t, body, "wss://bridge.example.com/media-stream")
	assert.Contains(t, body, "<Connect>")
	assert.Contains(t, body, "<Stream")
}

func TestIncomingCallRequiresPost(t *testing.T) {
	h := newTestHandler()
	router := mux.NewRouter()
	h.RegisterRoutes(router)

	req := httptest.NewRequest("GET", "http://bridge.example.com/incoming-call", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, 405, rec.Code)
}

func TestHealthReportsActiveCalls(t *testing.T) {
	h := newTestHandler()
	router := mux.NewRouter()
	h.RegisterRoutes(router)

	req := httptest.NewRequest("GET", "http://bridge.example.com/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(0), body["active_calls"])
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json"))
}
