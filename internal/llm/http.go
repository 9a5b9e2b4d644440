package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/autostreamhq/agent/internal/reliability"
)

const httpMaxAttempts = 2

// HTTPAdapter forwards completion requests to a JSON HTTP endpoint.
type HTTPAdapter struct {
	url    string
	apiKey string
	model  string
	client *http.Client
}

func NewHTTPAdapter(url, apiKey, model string) *HTTPAdapter {
	return &HTTPAdapter{
		url:    strings.TrimSpace(url),
		apiKey: strings.TrimSpace(apiKey),
		model:  model,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

type httpCompletionRequest struct {
	Model    string    `json:"model,omitempty"`
	Messages []Message `json:"messages"`
	Tools    []Tool    `json:"tools,omitempty"`
}

type httpCompletionResponse struct {
	Text     string    `json:"text"`
	Output   string    `json:"output"`
	Message  string    `json:"message"`
	ToolCall *ToolCall `json:"tool_call"`
}

func (a *HTTPAdapter) Complete(ctx context.Context, req Request) (Response, error) {
	payload, err := json.Marshal(httpCompletionRequest{
		Model:    a.model,
		Messages: req.Messages,
		Tools:    req.Tools,
	})
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < httpMaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := reliability.ExponentialBackoff(attempt, 200*time.Millisecond, 2*time.Second)
			select {
			case <-ctx.Done():
				return Response{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		res, retryable, err := a.post(ctx, payload)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return Response{}, lastErr
}

func (a *HTTPAdapter) post(ctx context.Context, payload []byte) (Response, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(payload))
	if err != nil {
		return Response{}, false, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	res, err := a.client.Do(httpReq)
	if err != nil {
		return Response{}, false, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		err := fmt.Errorf("completion http status %d: %s", res.StatusCode, string(body))
		return Response{}, reliability.IsRetryableHTTPStatus(res.StatusCode), err
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return Response{}, false, fmt.Errorf("read response: %w", err)
	}

	var parsed httpCompletionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		// Some providers return plain text; accept it as the completion.
		text := strings.TrimSpace(string(body))
		if text == "" {
			return Response{}, false, fmt.Errorf("empty completion response")
		}
		return Response{Text: text}, false, nil
	}

	if parsed.ToolCall != nil {
		return Response{ToolCall: parsed.ToolCall}, false, nil
	}
	text := firstNonEmpty(parsed.Text, parsed.Output, parsed.Message)
	if strings.TrimSpace(text) == "" {
		return Response{}, false, fmt.Errorf("completion response contained no text or tool call")
	}
	return Response{Text: text}, false, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
