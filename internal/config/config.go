package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the AutoStream agent service.
type Config struct {
	BindAddr                 string
	MetricsNamespace         string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	TurnTimeout              time.Duration
	HistoryWindow            int

	AllowAnyOrigin bool

	KnowledgeBasePath string
	ChunkSize         int
	ChunkOverlap      int
	RetrievalTopK     int

	CompletionMode   string
	CompletionURL    string
	CompletionAPIKey string
	CompletionModel  string

	EmbeddingMode  string
	EmbeddingURL   string
	EmbeddingModel string
	EmbeddingDim   int

	NotifierMode string
	ResendAPIKey string
	AdminEmails  string
	FromEmail    string

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:          envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:  envOrDefault("APP_METRICS_NAMESPACE", "autostream"),
		KnowledgeBasePath: envOrDefault("KNOWLEDGE_BASE_PATH", "knowledge_base"),
		CompletionMode:    envOrDefault("COMPLETION_MODE", "auto"),
		CompletionURL:     stringsTrimSpace("COMPLETION_HTTP_URL"),
		CompletionAPIKey:  stringsTrimSpace("COMPLETION_API_KEY"),
		CompletionModel:   envOrDefault("COMPLETION_MODEL", "gpt-4o-mini"),
		EmbeddingMode:     envOrDefault("EMBEDDING_MODE", "auto"),
		EmbeddingURL:      stringsTrimSpace("EMBEDDING_HTTP_URL"),
		EmbeddingModel:    envOrDefault("EMBEDDING_MODEL", "text-embedding-3-small"),
		NotifierMode:      envOrDefault("NOTIFIER_MODE", "auto"),
		ResendAPIKey:      stringsTrimSpace("RESEND_API_KEY"),
		AdminEmails:       stringsTrimSpace("ADMIN_EMAILS"),
		FromEmail:         envOrDefault("FROM_EMAIL", "AutoStream Agent <onboarding@resend.dev>"),
		DatabaseURL:       stringsTrimSpace("DATABASE_URL"),

		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 2 * time.Minute,
		TurnTimeout:              30 * time.Second,
		HistoryWindow:            12,
		ChunkSize:                1000,
		ChunkOverlap:             200,
		RetrievalTopK:            4,
		EmbeddingDim:             256,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.TurnTimeout, err = durationFromEnv("APP_TURN_TIMEOUT", cfg.TurnTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryWindow, err = intFromEnv("APP_HISTORY_WINDOW", cfg.HistoryWindow)
	if err != nil {
		return Config{}, err
	}
	cfg.ChunkSize, err = intFromEnv("KB_CHUNK_SIZE", cfg.ChunkSize)
	if err != nil {
		return Config{}, err
	}
	cfg.ChunkOverlap, err = intFromEnv("KB_CHUNK_OVERLAP", cfg.ChunkOverlap)
	if err != nil {
		return Config{}, err
	}
	cfg.RetrievalTopK, err = intFromEnv("RETRIEVAL_TOP_K", cfg.RetrievalTopK)
	if err != nil {
		return Config{}, err
	}
	cfg.EmbeddingDim, err = intFromEnv("EMBEDDING_DIM", cfg.EmbeddingDim)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.TurnTimeout < time.Second {
		return Config{}, fmt.Errorf("APP_TURN_TIMEOUT must be at least 1s")
	}
	if cfg.HistoryWindow < 2 {
		return Config{}, fmt.Errorf("APP_HISTORY_WINDOW must be at least 2")
	}
	if cfg.ChunkSize <= 0 {
		return Config{}, fmt.Errorf("KB_CHUNK_SIZE must be positive")
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return Config{}, fmt.Errorf("KB_CHUNK_OVERLAP must be in [0, KB_CHUNK_SIZE)")
	}
	if cfg.RetrievalTopK <= 0 {
		return Config{}, fmt.Errorf("RETRIEVAL_TOP_K must be positive")
	}
	if cfg.EmbeddingDim <= 0 {
		return Config{}, fmt.Errorf("EMBEDDING_DIM must be positive")
	}

	return cfg, nil
}

// AdminEmailList splits the comma-separated ADMIN_EMAILS value.
func (c Config) AdminEmailList() []string {
	var out []string
	for _, part := range strings.Split(c.AdminEmails, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
