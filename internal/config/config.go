package config

import (
	"os"
	"strconv"
)

// Default agent endpoint. The Voice Agent API multiplexes audio and
// control messages over a single websocket.
const DefaultAgentURL = "wss://agent.deepgram.com/v1/agent/converse"

// Config holds the service configuration, read once at startup.
type Config struct {
	Port   string
	LogEnv string

	// Agent connection
	DeepgramAPIKey    string
	AgentURL          string
	AgentSettingsPath string

	// Booking store: Postgres when DatabaseURL is set, SQLite otherwise
	DatabaseURL string
	SQLitePath  string

	// Optional Redis mirror for the active-call registry
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MaxSessions int
}

// Load reads configuration from the environment. Note: .env is loaded
// in main via godotenv before this runs.
func Load() *Config {
	return &Config{
		Port:   getEnvOrDefault("PORT", "5000"),
		LogEnv: getEnvOrDefault("LOG_ENV", "development"),

		DeepgramAPIKey:    os.Getenv("DEEPGRAM_API_KEY"),
		AgentURL:          getEnvOrDefault("AGENT_URL", DefaultAgentURL),
		AgentSettingsPath: getEnvOrDefault("AGENT_SETTINGS_PATH", "config.json"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		SQLitePath:  getEnvOrDefault("SQLITE_PATH", "appointments.db"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvAsIntOrDefault("REDIS_DB", 0),

		MaxSessions: getEnvAsIntOrDefault("MAX_SESSIONS", 50),
	}
}

// getEnvOrDefault gets an environment variable or returns the default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets an environment variable as int or returns the default.
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
