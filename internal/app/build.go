// Package app wires configuration into a runnable agent service.
package app

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/autostreamhq/agent/internal/agent"
	"github.com/autostreamhq/agent/internal/capture"
	"github.com/autostreamhq/agent/internal/config"
	"github.com/autostreamhq/agent/internal/corpus"
	"github.com/autostreamhq/agent/internal/httpapi"
	"github.com/autostreamhq/agent/internal/intent"
	"github.com/autostreamhq/agent/internal/llm"
	"github.com/autostreamhq/agent/internal/observability"
	"github.com/autostreamhq/agent/internal/retrieval"
	"github.com/autostreamhq/agent/internal/session"
	"github.com/autostreamhq/agent/internal/storage"
)

type BuildResult struct {
	Config       config.Config
	API          *httpapi.Server
	Sessions     *session.Manager
	Orchestrator *agent.Orchestrator
	Metrics      *observability.Metrics

	// Cleanup should be called on shutdown to release external resources.
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	store, err := storage.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}

	docs, err := corpus.LoadDir(cfg.KnowledgeBasePath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("load knowledge base: %w", err)
	}
	if len(docs) == 0 {
		log.Printf("knowledge base empty at %s; answers will be degraded", cfg.KnowledgeBasePath)
	}
	chunks := corpus.Load(docs, cfg.ChunkSize, cfg.ChunkOverlap)

	embedder := retrieval.NewEmbedder(retrieval.Config{
		Mode:   cfg.EmbeddingMode,
		URL:    cfg.EmbeddingURL,
		APIKey: cfg.CompletionAPIKey,
		Model:  cfg.EmbeddingModel,
		Dim:    cfg.EmbeddingDim,
	})
	retriever, err := retrieval.NewRetriever(ctx, chunks, embedder, cfg.RetrievalTopK)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("index knowledge base: %w", err)
	}

	completer, err := llm.NewAdapter(llm.Config{
		Mode:   cfg.CompletionMode,
		URL:    cfg.CompletionURL,
		APIKey: cfg.CompletionAPIKey,
		Model:  cfg.CompletionModel,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("completion adapter init failed: %w", err)
	}

	// The mock completer cannot classify, so mock deployments fall back to
	// the deterministic keyword classifier.
	var classifier intent.Classifier
	if mockCompletion(cfg) {
		classifier = intent.NewKeywordClassifier()
		log.Printf("completion provider: mock (keyword intent classifier)")
	} else {
		classifier = intent.NewLLMClassifier(completer)
		log.Printf("completion provider: %s", resolvedCompletionMode(cfg))
	}

	notifier, err := capture.NewNotifier(capture.Config{
		Mode:        cfg.NotifierMode,
		APIKey:      cfg.ResendAPIKey,
		FromEmail:   cfg.FromEmail,
		AdminEmails: cfg.AdminEmailList(),
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("notifier init failed: %w", err)
	}
	gate := capture.NewGate(notifier, store)

	sessions := session.NewManager(cfg.SessionInactivityTimeout)

	orchestrator := agent.NewOrchestrator(agent.Options{
		Classifier:    classifier,
		Retriever:     retriever,
		Completer:     completer,
		Gate:          gate,
		Store:         store,
		Sessions:      sessions,
		Metrics:       metrics,
		HistoryWindow: cfg.HistoryWindow,
		TurnTimeout:   cfg.TurnTimeout,
	})

	sessions.SetExpireHook(func(s *session.Session) {
		orchestrator.DropSession(s.ID)
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
	})

	api := httpapi.New(cfg, sessions, orchestrator, metrics)

	cleanup := func() error {
		return store.Close()
	}

	return &BuildResult{
		Config:       cfg,
		API:          api,
		Sessions:     sessions,
		Orchestrator: orchestrator,
		Metrics:      metrics,
		Cleanup:      cleanup,
	}, nil
}

func mockCompletion(cfg config.Config) bool {
	mode := strings.ToLower(strings.TrimSpace(cfg.CompletionMode))
	if mode == "mock" {
		return true
	}
	return (mode == "" || mode == "auto") && strings.TrimSpace(cfg.CompletionURL) == ""
}

func resolvedCompletionMode(cfg config.Config) string {
	mode := strings.ToLower(strings.TrimSpace(cfg.CompletionMode))
	if mode == "" || mode == "auto" {
		return "http with mock fallback"
	}
	return mode
}
