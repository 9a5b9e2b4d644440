package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/autostreamhq/agent/internal/capture"
	"github.com/autostreamhq/agent/internal/corpus"
	"github.com/autostreamhq/agent/internal/intent"
	"github.com/autostreamhq/agent/internal/lead"
	"github.com/autostreamhq/agent/internal/llm"
	"github.com/autostreamhq/agent/internal/retrieval"
	"github.com/autostreamhq/agent/internal/session"
	"github.com/autostreamhq/agent/internal/storage"
)

type flakyNotifier struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (n *flakyNotifier) Notify(_ context.Context, _ capture.Lead) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	if n.calls <= n.failures {
		return errors.New("sink unavailable")
	}
	return nil
}

func (n *flakyNotifier) callCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

type errorCompleter struct{}

func (errorCompleter) Complete(_ context.Context, _ llm.Request) (llm.Response, error) {
	return llm.Response{}, errors.New("provider down")
}

type testHarness struct {
	orch     *Orchestrator
	sessions *session.Manager
	notifier capture.Notifier
	store    *storage.InMemoryStore
}

func newHarness(t *testing.T, opts func(*Options)) *testHarness {
	t.Helper()

	docs := []corpus.Document{
		{SourceID: "pricing.md", Text: "AutoStream pricing. The Basic plan costs $29 per month. The Pro plan costs $79 per month with advanced AI editing."},
		{SourceID: "features.md", Text: "AutoStream features automatic cutting, captions, and highlight detection for video creators."},
	}
	store := corpus.Load(docs, 1000, 200)
	retriever, err := retrieval.NewRetriever(context.Background(), store, retrieval.NewHashEmbedder(256), 4)
	if err != nil {
		t.Fatalf("NewRetriever() error = %v", err)
	}

	mem := storage.NewInMemoryStore()
	mock := capture.NewMockNotifier()
	sessions := session.NewManager(time.Minute)

	o := Options{
		Classifier:    intent.NewKeywordClassifier(),
		Retriever:     retriever,
		Completer:     llm.NewMockAdapter(),
		Gate:          capture.NewGate(mock, mem),
		Store:         mem,
		Sessions:      sessions,
		HistoryWindow: 12,
		TurnTimeout:   5 * time.Second,
	}
	h := &testHarness{sessions: sessions, notifier: mock, store: mem}
	if opts != nil {
		opts(&o)
	}
	h.orch = NewOrchestrator(o)
	return h
}

func (h *testHarness) turn(t *testing.T, sessionID, text string) Reply {
	t.Helper()
	reply, err := h.orch.HandleTurn(context.Background(), sessionID, text)
	if err != nil {
		t.Fatalf("HandleTurn(%q) error = %v", text, err)
	}
	return reply
}

func TestGreetingTurnLeavesLeadEmpty(t *testing.T) {
	h := newHarness(t, nil)
	s := h.sessions.Create()

	reply := h.turn(t, s.ID, "Hi")
	if reply.Intent != intent.LabelGreeting {
		t.Fatalf("intent = %q, want greeting", reply.Intent)
	}
	if !strings.Contains(reply.Text, "Welcome to AutoStream") {
		t.Fatalf("greeting reply = %q", reply.Text)
	}
	if reply.LeadState != lead.StateEmpty {
		t.Fatalf("lead state = %q, want empty", reply.LeadState)
	}
}

func TestInquiryTurnCitesRetrievedPrices(t *testing.T) {
	h := newHarness(t, nil)
	s := h.sessions.Create()

	reply := h.turn(t, s.ID, "What are your pricing plans?")
	if reply.Intent != intent.LabelInquiry {
		t.Fatalf("intent = %q, want inquiry", reply.Intent)
	}
	if !strings.Contains(reply.Text, "$29") || !strings.Contains(reply.Text, "$79") {
		t.Fatalf("grounded reply missing prices: %q", reply.Text)
	}
}

func TestHighIntentTurnStartsCollection(t *testing.T) {
	h := newHarness(t, nil)
	s := h.sessions.Create()

	reply := h.turn(t, s.ID, "I want to try the Pro plan for my YouTube channel")
	if reply.Intent != intent.LabelHighIntentLead {
		t.Fatalf("intent = %q, want high_intent_lead", reply.Intent)
	}
	if reply.LeadState != lead.StateCollecting {
		t.Fatalf("lead state = %q, want collecting", reply.LeadState)
	}

	filler := h.orch.LeadState(s.ID)
	if filler.Record.Platform != "YouTube" {
		t.Fatalf("platform = %q, want YouTube", filler.Record.Platform)
	}
	if got := filler.NextMissing(); got != lead.FieldName {
		t.Fatalf("next missing = %q, want name", got)
	}
	if !strings.Contains(reply.Text, "name") {
		t.Fatalf("ask should request the name: %q", reply.Text)
	}
}

func TestSequentialCollectionCapturesOnce(t *testing.T) {
	h := newHarness(t, nil)
	s := h.sessions.Create()

	h.turn(t, s.ID, "I want to sign up")
	h.turn(t, s.ID, "John Doe")

	reply := h.turn(t, s.ID, "john@example.com")
	if !strings.Contains(reply.Text, "platform") {
		t.Fatalf("ask should request the platform: %q", reply.Text)
	}

	reply = h.turn(t, s.ID, "YouTube")
	if !reply.LeadCaptured || reply.LeadState != lead.StateCaptured {
		t.Fatalf("lead not captured after final field: %+v", reply)
	}
	if !strings.Contains(reply.Text, "Thank you, John Doe") {
		t.Fatalf("capture confirmation = %q", reply.Text)
	}

	mock := h.notifier.(*capture.MockNotifier)
	leads := mock.Notified()
	if len(leads) != 1 {
		t.Fatalf("notifications = %d, want 1", len(leads))
	}
	want := capture.Lead{SessionID: s.ID, Name: "John Doe", Email: "john@example.com", Platform: "YouTube"}
	if leads[0] != want {
		t.Fatalf("notified lead = %+v, want %+v", leads[0], want)
	}

	// A further sign-up request must not start a second collection.
	reply = h.turn(t, s.ID, "I want to sign up again")
	if !reply.LeadCaptured {
		t.Fatalf("captured marker lost on later turn")
	}
	if got := len(mock.Notified()); got != 1 {
		t.Fatalf("notifications after repeat sign-up = %d, want 1", got)
	}
}

func TestMidCollectionAnswerNotRoutedToRetrieval(t *testing.T) {
	h := newHarness(t, nil)
	s := h.sessions.Create()

	h.turn(t, s.ID, "I want to get started")

	// A bare name would classify as greeting or inquiry on its own; the
	// in-progress collection must absorb it instead.
	reply := h.turn(t, s.ID, "Sarah Connor")
	if reply.Intent != intent.LabelHighIntentLead {
		t.Fatalf("intent = %q, want high_intent_lead continuation", reply.Intent)
	}
	if got := h.orch.LeadState(s.ID).Record.Name; got != "Sarah Connor" {
		t.Fatalf("name = %q, want Sarah Connor", got)
	}
	if !strings.Contains(reply.Text, "email") {
		t.Fatalf("ask should request the email: %q", reply.Text)
	}
}

func TestInvalidEmailReAsked(t *testing.T) {
	h := newHarness(t, nil)
	s := h.sessions.Create()

	h.turn(t, s.ID, "I want to sign up")
	h.turn(t, s.ID, "John Doe")

	reply := h.turn(t, s.ID, "john@example")
	if got := h.orch.LeadState(s.ID).Record.Email; got != "" {
		t.Fatalf("invalid email accepted: %q", got)
	}
	if !strings.Contains(reply.Text, "email") {
		t.Fatalf("ask should re-request the email: %q", reply.Text)
	}
}

func TestSinkFailureRetriesNextTurn(t *testing.T) {
	sink := &flakyNotifier{failures: 1}
	h := newHarness(t, func(o *Options) {
		o.Gate = capture.NewGate(sink, nil)
	})
	s := h.sessions.Create()

	h.turn(t, s.ID, "I want to sign up")
	h.turn(t, s.ID, "John Doe")
	h.turn(t, s.ID, "john@example.com")

	reply := h.turn(t, s.ID, "YouTube")
	if reply.LeadCaptured {
		t.Fatalf("lead marked captured despite sink failure")
	}
	if !strings.Contains(reply.Text, "in touch soon") {
		t.Fatalf("fallback reply = %q", reply.Text)
	}

	// The record is complete, so the next turn retries delivery.
	reply = h.turn(t, s.ID, "did it work?")
	if !reply.LeadCaptured {
		t.Fatalf("retry did not capture the lead")
	}
	if sink.callCount() != 2 {
		t.Fatalf("sink calls = %d, want 2", sink.callCount())
	}
}

func TestHistoryBoundedFIFO(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.HistoryWindow = 6
	})
	s := h.sessions.Create()

	for i := 0; i < 10; i++ {
		h.turn(t, s.ID, fmt.Sprintf("question %d about features", i))
	}

	history := h.orch.History(s.ID)
	if len(history) != 6 {
		t.Fatalf("history length = %d, want 6", len(history))
	}
	// The newest user message sits just before its reply at the tail.
	if got := history[len(history)-2].Text; got != "question 9 about features" {
		t.Fatalf("tail user message = %q", got)
	}
	for _, m := range history {
		if strings.Contains(m.Text, "question 0 ") {
			t.Fatalf("oldest message not evicted: %q", m.Text)
		}
	}
}

func TestCompletionFailureLeavesStateUntouched(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.Completer = errorCompleter{}
	})
	s := h.sessions.Create()

	_, err := h.orch.HandleTurn(context.Background(), s.ID, "What are your pricing plans?")
	if err == nil {
		t.Fatalf("HandleTurn() should fail when the completion provider is down")
	}
	if got := len(h.orch.History(s.ID)); got != 0 {
		t.Fatalf("history mutated on failed turn: %d messages", got)
	}

	meta, err := h.sessions.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if meta.TurnCount != 0 {
		t.Fatalf("turn recorded despite failure: %d", meta.TurnCount)
	}
}

func TestEndedSessionRejectsTurns(t *testing.T) {
	h := newHarness(t, nil)
	s := h.sessions.Create()
	if _, err := h.sessions.End(s.ID); err != nil {
		t.Fatalf("End() error = %v", err)
	}

	_, err := h.orch.HandleTurn(context.Background(), s.ID, "hello")
	if !errors.Is(err, ErrSessionEnded) {
		t.Fatalf("HandleTurn() error = %v, want ErrSessionEnded", err)
	}
}

func TestUnknownSessionRejected(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.orch.HandleTurn(context.Background(), "nope", "hello")
	if !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("HandleTurn() error = %v, want ErrNotFound", err)
	}
}

func TestTranscriptPersistedWithRedaction(t *testing.T) {
	h := newHarness(t, nil)
	s := h.sessions.Create()

	h.turn(t, s.ID, "I want to sign up")
	h.turn(t, s.ID, "John Doe")
	h.turn(t, s.ID, "john@example.com")

	turns, err := h.store.RecentTurns(context.Background(), s.ID, 50)
	if err != nil {
		t.Fatalf("RecentTurns() error = %v", err)
	}
	if len(turns) != 6 {
		t.Fatalf("persisted turns = %d, want 6", len(turns))
	}

	var sawRedacted bool
	for _, rec := range turns {
		if strings.Contains(rec.Content, "john@example.com") {
			t.Fatalf("raw email persisted in transcript: %q", rec.Content)
		}
		if rec.PIIRedacted {
			sawRedacted = true
		}
	}
	if !sawRedacted {
		t.Fatalf("no turn flagged as redacted")
	}
}

func TestConcurrentSessionsIndependent(t *testing.T) {
	h := newHarness(t, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		s := h.sessions.Create()
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for _, msg := range []string{"I want to sign up", "John Doe", "john@example.com", "YouTube"} {
				if _, err := h.orch.HandleTurn(context.Background(), id, msg); err != nil {
					errs <- err
					return
				}
			}
		}(s.ID)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("HandleTurn() error = %v", err)
	}

	mock := h.notifier.(*capture.MockNotifier)
	if got := len(mock.Notified()); got != 8 {
		t.Fatalf("notifications = %d, want 8 (one per session)", got)
	}
}
