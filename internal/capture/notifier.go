package capture

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Notifier delivers a captured lead to the sales team.
type Notifier interface {
	Notify(ctx context.Context, lead Lead) error
}

// Lead is the payload delivered to a notifier. All fields are filled
// and validated before a notifier ever sees them.
type Lead struct {
	SessionID string
	Name      string
	Email     string
	Platform  string
}

// Config selects and configures the outbound notifier.
type Config struct {
	Mode        string // "resend", "mock", or "auto"
	APIKey      string
	FromEmail   string
	AdminEmails []string
}

// NewNotifier builds a notifier per config. Mode "auto" picks resend when
// an API key is present, otherwise the mock.
func NewNotifier(cfg Config) (Notifier, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	switch mode {
	case "", "auto":
		if strings.TrimSpace(cfg.APIKey) != "" {
			return NewResendNotifier(cfg.APIKey, cfg.FromEmail, cfg.AdminEmails), nil
		}
		return NewMockNotifier(), nil
	case "resend":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, fmt.Errorf("notifier mode %q requires RESEND_API_KEY", mode)
		}
		return NewResendNotifier(cfg.APIKey, cfg.FromEmail, cfg.AdminEmails), nil
	case "mock":
		return NewMockNotifier(), nil
	default:
		return nil, fmt.Errorf("unsupported notifier mode %q", mode)
	}
}

// MockNotifier records notified leads in memory for local/dev use and tests.
type MockNotifier struct {
	mu    sync.Mutex
	leads []Lead
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (n *MockNotifier) Notify(_ context.Context, lead Lead) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.leads = append(n.leads, lead)
	return nil
}

// Notified returns the leads delivered so far, in order.
func (n *MockNotifier) Notified() []Lead {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Lead, len(n.leads))
	copy(out, n.leads)
	return out
}
