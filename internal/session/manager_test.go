package session

import (
	"context"
	"testing"
	"time"
)

func TestManagerCreateGetEnd(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create()
	if s.ID == "" {
		t.Fatalf("session ID should not be empty")
	}

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusActive || got.TurnCount != 0 {
		t.Fatalf("unexpected session state: %+v", got)
	}

	ended, err := m.End(s.ID)
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if ended.Status != StatusEnded {
		t.Fatalf("ended status = %q, want %q", ended.Status, StatusEnded)
	}
}

func TestManagerRecordTurn(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create()

	if err := m.RecordTurn(s.ID, "inquiry", false); err != nil {
		t.Fatalf("RecordTurn() error = %v", err)
	}
	if err := m.RecordTurn(s.ID, "high_intent_lead", true); err != nil {
		t.Fatalf("RecordTurn() error = %v", err)
	}
	// A later turn must not clear the captured marker.
	if err := m.RecordTurn(s.ID, "inquiry", false); err != nil {
		t.Fatalf("RecordTurn() error = %v", err)
	}

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.TurnCount != 3 || got.LastIntent != "inquiry" || !got.LeadCaptured {
		t.Fatalf("unexpected session state: %+v", got)
	}
}

func TestManagerGetUnknown(t *testing.T) {
	m := NewManager(time.Minute)
	if _, err := m.Get("nope"); err != ErrNotFound {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestManagerJanitorExpiresInactive(t *testing.T) {
	m := NewManager(30 * time.Millisecond)
	s := m.Create()

	expired := make(chan string, 1)
	m.SetExpireHook(func(s *Session) { expired <- s.ID })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartJanitor(ctx, 10*time.Millisecond)

	select {
	case id := <-expired:
		if id != s.ID {
			t.Fatalf("expired session = %q, want %q", id, s.ID)
		}
	case <-time.After(time.Second):
		t.Fatalf("janitor did not expire inactive session")
	}

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusEnded {
		t.Fatalf("Status = %q, want %q", got.Status, StatusEnded)
	}
}
