package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/autostreamhq/agent/internal/reliability"
)

const resendEndpoint = "https://api.resend.com/emails"

// ResendNotifier emails captured leads to the admin list through the
// Resend HTTP API.
type ResendNotifier struct {
	apiKey string
	from   string
	to     []string
	url    string
	client *http.Client
}

func NewResendNotifier(apiKey, from string, to []string) *ResendNotifier {
	return &ResendNotifier{
		apiKey: apiKey,
		from:   from,
		to:     to,
		url:    resendEndpoint,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

func (n *ResendNotifier) Notify(ctx context.Context, lead Lead) error {
	payload, err := json.Marshal(resendRequest{
		From:    n.from,
		To:      n.to,
		Subject: fmt.Sprintf("New Lead: %s from %s", lead.Name, lead.Platform),
		HTML:    leadEmailBody(lead),
	})
	if err != nil {
		return fmt.Errorf("marshal lead email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create lead email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.apiKey)

	res, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send lead email: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		if reliability.IsRetryableHTTPStatus(res.StatusCode) {
			return fmt.Errorf("resend status %d (retryable): %s", res.StatusCode, string(body))
		}
		return fmt.Errorf("resend status %d: %s", res.StatusCode, string(body))
	}
	return nil
}

func leadEmailBody(lead Lead) string {
	return fmt.Sprintf(`<html><body>
<h2>New Lead Captured from AutoStream Agent</h2>
<p><strong>Name:</strong> %s</p>
<p><strong>Email:</strong> %s</p>
<p><strong>Platform:</strong> %s</p>
<hr>
<p>This lead was captured automatically by the AutoStream agent.</p>
</body></html>`, lead.Name, lead.Email, lead.Platform)
}
