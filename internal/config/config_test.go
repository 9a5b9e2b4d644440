package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":8080")
	}
	if cfg.HistoryWindow != 12 {
		t.Fatalf("HistoryWindow = %d, want 12", cfg.HistoryWindow)
	}
	if cfg.RetrievalTopK != 4 {
		t.Fatalf("RetrievalTopK = %d, want 4", cfg.RetrievalTopK)
	}
	if cfg.CompletionMode != "auto" {
		t.Fatalf("CompletionMode = %q, want %q", cfg.CompletionMode, "auto")
	}
	if cfg.TurnTimeout != 30*time.Second {
		t.Fatalf("TurnTimeout = %v, want 30s", cfg.TurnTimeout)
	}
}

func TestLoadExplicitValues(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_BIND_ADDR", ":9191")
	t.Setenv("APP_HISTORY_WINDOW", "6")
	t.Setenv("COMPLETION_HTTP_URL", "http://localhost:7777/v1/complete")
	t.Setenv("ADMIN_EMAILS", "a@example.com, b@example.com ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":9191" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":9191")
	}
	if cfg.HistoryWindow != 6 {
		t.Fatalf("HistoryWindow = %d, want 6", cfg.HistoryWindow)
	}
	if cfg.CompletionURL != "http://localhost:7777/v1/complete" {
		t.Fatalf("CompletionURL = %q, want explicit value", cfg.CompletionURL)
	}
	emails := cfg.AdminEmailList()
	if len(emails) != 2 || emails[0] != "a@example.com" || emails[1] != "b@example.com" {
		t.Fatalf("AdminEmailList() = %v, want two trimmed entries", emails)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"APP_HISTORY_WINDOW":   "1",
		"KB_CHUNK_OVERLAP":     "5000",
		"RETRIEVAL_TOP_K":      "0",
		"APP_TURN_TIMEOUT":     "10ms",
		"APP_ALLOW_ANY_ORIGIN": "maybe",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			setCoreEnvEmpty(t)
			t.Setenv(key, val)
			if _, err := Load(); err == nil {
				t.Fatalf("Load() with %s=%s expected error", key, val)
			}
		})
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_METRICS_NAMESPACE",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_SESSION_INACTIVITY_TIMEOUT",
		"APP_TURN_TIMEOUT",
		"APP_HISTORY_WINDOW",
		"APP_ALLOW_ANY_ORIGIN",
		"KNOWLEDGE_BASE_PATH",
		"KB_CHUNK_SIZE",
		"KB_CHUNK_OVERLAP",
		"RETRIEVAL_TOP_K",
		"COMPLETION_MODE",
		"COMPLETION_HTTP_URL",
		"COMPLETION_API_KEY",
		"COMPLETION_MODEL",
		"EMBEDDING_MODE",
		"EMBEDDING_HTTP_URL",
		"EMBEDDING_MODEL",
		"EMBEDDING_DIM",
		"NOTIFIER_MODE",
		"RESEND_API_KEY",
		"ADMIN_EMAILS",
		"FROM_EMAIL",
		"DATABASE_URL",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
