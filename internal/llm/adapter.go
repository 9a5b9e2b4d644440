package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Message is one entry of the prompt sequence sent to the completion provider.
type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

const (
	RoleSystem = "system"
	RoleUser   = "user"
	RoleAgent  = "agent"
)

// Tool describes a callable function the completion provider may select.
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Parameters  []ToolParam `json:"parameters,omitempty"`
}

// ToolParam declares one named string argument of a tool.
type ToolParam struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

// ToolCall is a structured request from the provider to invoke one tool.
// Arguments must be validated against the tool's parameters before use.
type ToolCall struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments"`
}

// Request is the normalized completion request.
type Request struct {
	Messages []Message `json:"messages"`
	Tools    []Tool    `json:"tools,omitempty"`
}

// Response carries either natural-language text or a tool call.
type Response struct {
	Text     string    `json:"text"`
	ToolCall *ToolCall `json:"tool_call,omitempty"`
}

// Adapter bridges the agent runtime with a text-completion provider.
type Adapter interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Config controls adapter construction.
type Config struct {
	Mode   string
	URL    string
	APIKey string
	Model  string
}

// NewAdapter builds the completion adapter for the configured mode. "auto"
// prefers the HTTP provider when a URL is configured, chained with the mock
// as fallback so a flaky provider degrades instead of failing every turn.
func NewAdapter(cfg Config) (Adapter, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.URL) != "" {
			return NewFallbackAdapter(NewHTTPAdapter(cfg.URL, cfg.APIKey, cfg.Model), NewMockAdapter()), nil
		}
		return NewMockAdapter(), nil
	case "http":
		if strings.TrimSpace(cfg.URL) == "" {
			return nil, errors.New("completion HTTP url is required for http mode")
		}
		return NewHTTPAdapter(cfg.URL, cfg.APIKey, cfg.Model), nil
	case "mock":
		return NewMockAdapter(), nil
	default:
		return nil, fmt.Errorf("unsupported completion mode %q", cfg.Mode)
	}
}

// ValidateToolCall checks a provider tool call against the declared tool:
// the name must match, every required parameter must be present and
// non-empty, and no undeclared argument is accepted.
func ValidateToolCall(tool Tool, call ToolCall) error {
	if call.Name != tool.Name {
		return fmt.Errorf("tool call %q does not match tool %q", call.Name, tool.Name)
	}
	declared := make(map[string]ToolParam, len(tool.Parameters))
	for _, p := range tool.Parameters {
		declared[p.Name] = p
	}
	for name := range call.Arguments {
		if _, ok := declared[name]; !ok {
			return fmt.Errorf("tool call %q has undeclared argument %q", call.Name, name)
		}
	}
	for _, p := range tool.Parameters {
		if !p.Required {
			continue
		}
		if strings.TrimSpace(call.Arguments[p.Name]) == "" {
			return fmt.Errorf("tool call %q missing required argument %q", call.Name, p.Name)
		}
	}
	return nil
}
