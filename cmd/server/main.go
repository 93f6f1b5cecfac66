package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/parakeetlabs/voice-bridge/internal/config"
	"github.com/parakeetlabs/voice-bridge/internal/core/session"
	"github.com/parakeetlabs/voice-bridge/internal/core/tool"
	"github.com/parakeetlabs/voice-bridge/internal/handler"
	"github.com/parakeetlabs/voice-bridge/internal/repository"
	"github.com/parakeetlabs/voice-bridge/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	// .env is for local development; deployed environments set real
	// environment variables and the file is simply absent.
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg := config.Load()
	if _, err := logger.Init(cfg.LogEnv); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if cfg.DeepgramAPIKey == "" {
		// Sessions will be refused at dial time; flag it early.
		logger.Base().Warn("DEEPGRAM_API_KEY is not set, calls cannot connect to the agent")
	}

	settings, err := config.LoadAgentSettings(cfg.AgentSettingsPath)
	if err != nil {
		logger.Base().Fatal("failed to load agent settings", zap.Error(err))
	}

	db, err := repository.Open(cfg)
	if err != nil {
		logger.Base().Fatal("failed to open booking store", zap.Error(err))
	}
	repo := repository.NewGormBookingRepository(db)

	registry := tool.NewRegistry()
	tool.RegisterBookingTools(registry, repo)

	calls := session.NewRegistry(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, instanceID())
	defer calls.Close()

	router := mux.NewRouter()
	h := handler.New(cfg, settings, registry, repo, calls)
	h.RegisterRoutes(router)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
		// No read/write timeouts: they would sever long-lived media
		// stream websockets mid-call.
		IdleTimeout: 60 * time.Second,
	}

	logger.Base().Info("voice bridge listening",
		zap.String("addr", server.Addr),
		zap.String("agent_url", cfg.AgentURL))
	if err := server.ListenAndServe(); err != nil {
		logger.Base().Fatal("server failed", zap.Error(err))
	}
}

// instanceID identifies this process in the shared call registry. The
// hostname is the pod name under Kubernetes.
func instanceID() string {
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		return hostname
	}
	return fmt.Sprintf("voice-bridge-%d", time.Now().UnixNano())
}
