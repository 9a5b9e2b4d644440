// Package agent implements the per-turn dialogue orchestration: intent
// routing, retrieval-grounded answers, lead slot-filling, and the capture
// gate, with per-session serialization and atomic state commits.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/autostreamhq/agent/internal/capture"
	"github.com/autostreamhq/agent/internal/intent"
	"github.com/autostreamhq/agent/internal/lead"
	"github.com/autostreamhq/agent/internal/llm"
	"github.com/autostreamhq/agent/internal/observability"
	"github.com/autostreamhq/agent/internal/policy"
	"github.com/autostreamhq/agent/internal/prompts"
	"github.com/autostreamhq/agent/internal/retrieval"
	"github.com/autostreamhq/agent/internal/session"
	"github.com/autostreamhq/agent/internal/storage"
)

var ErrSessionEnded = errors.New("session has ended")

// Message is one conversational turn in a session's bounded history.
type Message struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Reply is the outcome of one processed turn.
type Reply struct {
	Text         string       `json:"text"`
	Intent       intent.Label `json:"intent"`
	LeadState    lead.State   `json:"lead_state"`
	LeadCaptured bool         `json:"lead_captured"`
}

// conversation is the mutable per-session state. Its mutex serializes
// turns: a session never processes two turns concurrently.
type conversation struct {
	mu         sync.Mutex
	history    []Message
	filler     lead.Filler
	lastIntent intent.Label
}

// Orchestrator routes each turn through classification, retrieval or
// slot-filling, and the capture gate, committing session state only after
// every external call for the turn has succeeded.
type Orchestrator struct {
	classifier intent.Classifier
	retriever  *retrieval.Retriever
	completer  llm.Adapter
	gate       *capture.Gate
	store      storage.Store
	sessions   *session.Manager
	metrics    *observability.Metrics

	historyWindow int
	turnTimeout   time.Duration

	mu    sync.Mutex
	convs map[string]*conversation
}

type Options struct {
	Classifier    intent.Classifier
	Retriever     *retrieval.Retriever
	Completer     llm.Adapter
	Gate          *capture.Gate
	Store         storage.Store
	Sessions      *session.Manager
	Metrics       *observability.Metrics
	HistoryWindow int
	TurnTimeout   time.Duration
}

func NewOrchestrator(opts Options) *Orchestrator {
	if opts.HistoryWindow < 2 {
		opts.HistoryWindow = 12
	}
	if opts.TurnTimeout <= 0 {
		opts.TurnTimeout = 30 * time.Second
	}
	return &Orchestrator{
		classifier:    opts.Classifier,
		retriever:     opts.Retriever,
		completer:     opts.Completer,
		gate:          opts.Gate,
		store:         opts.Store,
		sessions:      opts.Sessions,
		metrics:       opts.Metrics,
		historyWindow: opts.HistoryWindow,
		turnTimeout:   opts.TurnTimeout,
		convs:         make(map[string]*conversation),
	}
}

// HandleTurn processes one user message for a session and returns the
// outbound reply. Turns for the same session are strictly sequential.
func (o *Orchestrator) HandleTurn(ctx context.Context, sessionID, text string) (Reply, error) {
	s, err := o.sessions.Get(sessionID)
	if err != nil {
		return Reply{}, err
	}
	if s.Status != session.StatusActive {
		return Reply{}, ErrSessionEnded
	}

	conv := o.conversation(sessionID)
	conv.mu.Lock()
	defer conv.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, o.turnTimeout)
	defer cancel()

	start := time.Now()
	reply, staged, err := o.processTurn(ctx, sessionID, conv, text)
	if err != nil {
		// State is untouched on failure; the caller surfaces a generic
		// error and the user can retry the turn.
		if o.metrics != nil {
			o.metrics.TurnFailures.WithLabelValues(failureCause(err)).Inc()
		}
		return Reply{}, err
	}

	// Commit: all external calls succeeded, apply the staged state.
	conv.history = staged.history
	conv.filler = staged.filler
	conv.lastIntent = reply.Intent

	o.persistTurn(sessionID, text, reply)
	if err := o.sessions.RecordTurn(sessionID, string(reply.Intent), reply.LeadCaptured); err != nil {
		log.Printf("agent: record turn for session %s: %v", sessionID, err)
	}
	if o.metrics != nil {
		o.metrics.TurnsByIntent.WithLabelValues(string(reply.Intent)).Inc()
		o.metrics.ObserveTurnLatency(time.Since(start))
	}
	return reply, nil
}

// stagedState carries the pending mutations for a turn until commit.
type stagedState struct {
	history []Message
	filler  lead.Filler
}

func (o *Orchestrator) processTurn(ctx context.Context, sessionID string, conv *conversation, text string) (Reply, stagedState, error) {
	now := time.Now().UTC()
	staged := stagedState{
		history: appendBounded(conv.history, Message{Role: llm.RoleUser, Text: text, Timestamp: now}, o.historyWindow),
		filler:  conv.filler,
	}

	// Lead continuation takes precedence over re-classification: once
	// collection has started, a bare answer like "Sarah" must not be
	// routed to retrieval.
	leadInProgress := staged.filler.State == lead.StateCollecting || staged.filler.State == lead.StateComplete

	var label intent.Label
	if leadInProgress {
		label = intent.LabelHighIntentLead
	} else {
		label = o.classifier.Classify(ctx, text, historyLines(conv.history))
	}

	var reply Reply
	switch {
	case (label == intent.LabelHighIntentLead || leadInProgress) && staged.filler.State != lead.StateCaptured:
		r, filler, err := o.leadTurn(ctx, sessionID, staged.filler, text)
		if err != nil {
			return Reply{}, stagedState{}, err
		}
		reply = r
		staged.filler = filler

	case label == intent.LabelHighIntentLead && staged.filler.State == lead.StateCaptured:
		reply = Reply{Text: prompts.AlreadyCaptured, Intent: label}

	case label == intent.LabelGreeting:
		reply = Reply{Text: prompts.Greeting, Intent: label}

	default:
		answer, err := o.groundedAnswer(ctx, text, staged.history)
		if err != nil {
			return Reply{}, stagedState{}, err
		}
		reply = Reply{Text: answer, Intent: intent.LabelInquiry}
	}

	reply.LeadState = staged.filler.State
	reply.LeadCaptured = staged.filler.State == lead.StateCaptured
	staged.history = appendBounded(staged.history, Message{Role: llm.RoleAgent, Text: reply.Text, Timestamp: time.Now().UTC()}, o.historyWindow)
	return reply, staged, nil
}

// leadTurn absorbs lead fields from the message and either asks for the
// next missing field or fires the capture gate.
func (o *Orchestrator) leadTurn(ctx context.Context, sessionID string, filler lead.Filler, text string) (Reply, lead.Filler, error) {
	filler, _ = filler.Absorb(text)
	if filler.State != lead.StateComplete {
		ask := prompts.LeadAsk(filler.NextMissing())
		return Reply{Text: ask, Intent: intent.LabelHighIntentLead}, filler, nil
	}

	rec := filler.Record
	err := o.gate.Capture(ctx, capture.Lead{
		SessionID: sessionID,
		Name:      rec.Name,
		Email:     rec.Email,
		Platform:  rec.Platform,
	})
	switch {
	case err == nil, errors.Is(err, capture.ErrAlreadyCaptured):
		filler = filler.MarkCaptured()
		if o.metrics != nil {
			o.metrics.LeadCaptures.WithLabelValues("delivered").Inc()
		}
		return Reply{Text: prompts.LeadThanks(rec.Name, rec.Email), Intent: intent.LabelHighIntentLead}, filler, nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Reply{}, lead.Filler{}, fmt.Errorf("capture lead: %w", err)
	default:
		// Sink failure: delivery stays pending so the next turn retries.
		log.Printf("agent: lead capture failed: %v", err)
		if o.metrics != nil {
			o.metrics.LeadCaptures.WithLabelValues("failed").Inc()
		}
		return Reply{Text: prompts.LeadFallback(rec.Name), Intent: intent.LabelHighIntentLead}, filler, nil
	}
}

// groundedAnswer retrieves context for the question and composes a reply
// through the completion provider. Retrieval failures degrade to an empty
// context; completion failures fail the turn.
func (o *Orchestrator) groundedAnswer(ctx context.Context, question string, history []Message) (string, error) {
	retStart := time.Now()
	chunks, err := o.retriever.Retrieve(ctx, question, 0)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("retrieve context: %w", err)
		}
		log.Printf("agent: retrieval degraded: %v", err)
		if o.metrics != nil {
			o.metrics.ProviderErrors.WithLabelValues("embedding", "error").Inc()
		}
		chunks = nil
	}
	if o.metrics != nil {
		o.metrics.ObserveRetrievalLatency(time.Since(retStart))
	}

	var b strings.Builder
	for _, sc := range chunks {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(sc.Chunk.Text)
	}

	prompt, err := prompts.Render("grounded", prompts.Grounded, map[string]string{
		"context":  b.String(),
		"question": question,
	})
	if err != nil {
		return "", err
	}

	messages := make([]llm.Message, 0, len(history))
	// All but the incoming message, which is replaced by the grounded prompt.
	for _, m := range history[:len(history)-1] {
		messages = append(messages, llm.Message{Role: m.Role, Text: m.Text})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Text: prompt})

	compStart := time.Now()
	resp, err := o.completer.Complete(ctx, llm.Request{Messages: messages})
	if o.metrics != nil {
		o.metrics.ObserveStage("completion", time.Since(compStart))
	}
	if err != nil {
		if o.metrics != nil {
			o.metrics.ProviderErrors.WithLabelValues("completion", "error").Inc()
		}
		return "", fmt.Errorf("compose answer: %w", err)
	}
	return resp.Text, nil
}

// History returns a copy of the session's bounded history.
func (o *Orchestrator) History(sessionID string) []Message {
	conv := o.conversation(sessionID)
	conv.mu.Lock()
	defer conv.mu.Unlock()
	out := make([]Message, len(conv.history))
	copy(out, conv.history)
	return out
}

// LeadState returns the session's current slot-filling state.
func (o *Orchestrator) LeadState(sessionID string) lead.Filler {
	conv := o.conversation(sessionID)
	conv.mu.Lock()
	defer conv.mu.Unlock()
	return conv.filler
}

// DropSession discards a session's conversational state, used on session
// end and by the inactivity janitor.
func (o *Orchestrator) DropSession(sessionID string) {
	o.mu.Lock()
	delete(o.convs, sessionID)
	o.mu.Unlock()
	o.gate.Forget(sessionID)
}

func (o *Orchestrator) conversation(sessionID string) *conversation {
	o.mu.Lock()
	defer o.mu.Unlock()
	conv, ok := o.convs[sessionID]
	if !ok {
		conv = &conversation{filler: lead.NewFiller()}
		o.convs[sessionID] = conv
	}
	return conv
}

func (o *Orchestrator) persistTurn(sessionID, userText string, reply Reply) {
	if o.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, rec := range []storage.TurnRecord{
		redactedTurn(sessionID, llm.RoleUser, userText, string(reply.Intent)),
		redactedTurn(sessionID, llm.RoleAgent, reply.Text, string(reply.Intent)),
	} {
		if err := o.store.SaveTurn(ctx, rec); err != nil {
			log.Printf("agent: persist turn for session %s: %v", sessionID, err)
		}
	}
}

func redactedTurn(sessionID, role, text, label string) storage.TurnRecord {
	redacted, changed := policy.RedactPII(text)
	return storage.TurnRecord{
		SessionID:   sessionID,
		Role:        role,
		Content:     redacted,
		Intent:      label,
		PIIRedacted: changed,
	}
}

func appendBounded(history []Message, msg Message, window int) []Message {
	out := make([]Message, len(history), len(history)+1)
	copy(out, history)
	out = append(out, msg)
	if len(out) > window {
		out = out[len(out)-window:]
	}
	return out
}

func historyLines(history []Message) []string {
	lines := make([]string, 0, len(history))
	for _, m := range history {
		lines = append(lines, m.Role+": "+m.Text)
	}
	return lines
}

func failureCause(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "provider"
	}
}
