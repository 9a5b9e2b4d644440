package llm

import (
	"context"
	"strings"
)

// MockAdapter provides deterministic local replies when no completion
// provider is configured. Grounded prompts carry their retrieved context
// between "Context:" and "Question:" markers; the mock answers by replaying
// that context so responses stay factual in dev and test runs.
type MockAdapter struct{}

func NewMockAdapter() *MockAdapter { return &MockAdapter{} }

func (a *MockAdapter) Complete(ctx context.Context, req Request) (Response, error) {
	select {
	case <-ctx.Done():
		return Response{}, ctx.Err()
	default:
	}
	return Response{Text: buildMockReply(req)}, nil
}

func buildMockReply(req Request) string {
	last := lastUserText(req.Messages)
	if last == "" {
		return "I'm here to help with AutoStream."
	}

	if grounding, question, ok := splitGroundedPrompt(last); ok {
		if strings.TrimSpace(grounding) == "" {
			return "I don't have that information right now."
		}
		return "Here is what I found:\n" + strings.TrimSpace(grounding) + "\nThat should answer: " + strings.TrimSpace(question)
	}

	return "I heard you: " + last
}

func lastUserText(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return strings.TrimSpace(messages[i].Text)
		}
	}
	return ""
}

func splitGroundedPrompt(prompt string) (grounding, question string, ok bool) {
	ctxIdx := strings.Index(prompt, "Context:")
	qIdx := strings.LastIndex(prompt, "Question:")
	if ctxIdx < 0 || qIdx < 0 || qIdx <= ctxIdx {
		return "", "", false
	}
	grounding = prompt[ctxIdx+len("Context:") : qIdx]
	question = prompt[qIdx+len("Question:"):]
	return grounding, question, true
}
