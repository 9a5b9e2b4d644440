package storage

import (
	"context"
	"time"
)

// TurnRecord stores a single user or agent conversational turn.
type TurnRecord struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	Intent      string    `json:"intent,omitempty"`
	PIIRedacted bool      `json:"pii_redacted"`
	CreatedAt   time.Time `json:"created_at"`
}

// LeadRecord stores a captured lead.
type LeadRecord struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Platform  string    `json:"platform"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists conversation transcripts and captured leads.
type Store interface {
	SaveTurn(ctx context.Context, record TurnRecord) error
	RecentTurns(ctx context.Context, sessionID string, limit int) ([]TurnRecord, error)
	SaveLead(ctx context.Context, record LeadRecord) error
	Close() error
}
