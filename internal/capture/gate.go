package capture

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/autostreamhq/agent/internal/llm"
	"github.com/autostreamhq/agent/internal/storage"
)

var (
	// ErrAlreadyCaptured reports that the session's lead was already
	// delivered. Callers treat it as a no-op, not a failure.
	ErrAlreadyCaptured = errors.New("lead already captured for session")

	// ErrIncompleteLead reports a capture attempt with missing fields.
	ErrIncompleteLead = errors.New("lead is incomplete")
)

// Gate delivers each session's lead at most once. A failed delivery
// leaves the session uncaptured so the next turn can retry; a successful
// delivery makes every later attempt an already-captured no-op.
type Gate struct {
	notifier Notifier
	store    storage.Store

	mu   sync.Mutex
	done map[string]bool
}

func NewGate(notifier Notifier, store storage.Store) *Gate {
	return &Gate{
		notifier: notifier,
		store:    store,
		done:     make(map[string]bool),
	}
}

// CaptureTool describes the lead delivery operation as a tool, so its
// arguments go through the same validation as provider tool calls.
func CaptureTool() llm.Tool {
	return llm.Tool{
		Name:        "capture_lead",
		Description: "Deliver a fully collected lead (name, email, platform) to the sales team.",
		Parameters: []llm.ToolParam{
			{Name: "name", Description: "Lead's full name", Required: true},
			{Name: "email", Description: "Lead's email address", Required: true},
			{Name: "platform", Description: "Content platform the lead creates on", Required: true},
		},
	}
}

// Capture validates and delivers the lead exactly once per session.
func (g *Gate) Capture(ctx context.Context, lead Lead) error {
	call := llm.ToolCall{
		Name: "capture_lead",
		Arguments: map[string]string{
			"name":     lead.Name,
			"email":    lead.Email,
			"platform": lead.Platform,
		},
	}
	if err := llm.ValidateToolCall(CaptureTool(), call); err != nil {
		return fmt.Errorf("%w: %v", ErrIncompleteLead, err)
	}

	g.mu.Lock()
	if g.done[lead.SessionID] {
		g.mu.Unlock()
		return ErrAlreadyCaptured
	}
	g.mu.Unlock()

	if err := g.notifier.Notify(ctx, lead); err != nil {
		return fmt.Errorf("notify lead: %w", err)
	}

	g.mu.Lock()
	g.done[lead.SessionID] = true
	g.mu.Unlock()

	if g.store != nil {
		// The notification already went out; a persistence failure must
		// not trigger a re-send.
		if err := g.store.SaveLead(ctx, storage.LeadRecord{
			SessionID: lead.SessionID,
			Name:      lead.Name,
			Email:     lead.Email,
			Platform:  lead.Platform,
		}); err != nil {
			log.Printf("capture: persist lead for session %s: %v", lead.SessionID, err)
		}
	}
	return nil
}

// Captured reports whether the session's lead was already delivered.
func (g *Gate) Captured(sessionID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.done[sessionID]
}

// Forget drops the per-session capture marker, used when a session ends.
func (g *Gate) Forget(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.done, sessionID)
}
