package intent

import (
	"context"
	"strings"

	"github.com/autostreamhq/agent/internal/llm"
	"github.com/autostreamhq/agent/internal/prompts"
)

// Label is one of the closed set of conversation intents.
type Label string

const (
	LabelGreeting       Label = "greeting"
	LabelInquiry        Label = "inquiry"
	LabelHighIntentLead Label = "high_intent_lead"
)

// ParseLabel maps raw classifier output onto the closed label set. Anything
// unrecognized is rejected so the caller can apply the inquiry default.
func ParseLabel(raw string) (Label, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.Trim(normalized, `."'`)
	switch Label(normalized) {
	case LabelGreeting, LabelInquiry, LabelHighIntentLead:
		return Label(normalized), true
	default:
		return "", false
	}
}

// Classifier labels a user message with a conversation intent. Exactly one
// label from the closed set is returned; implementations never mutate
// session state.
type Classifier interface {
	Classify(ctx context.Context, message string, recentHistory []string) Label
}

// LLMClassifier asks the completion provider for a one-word classification.
// A provider error or any output outside the label set maps to inquiry, the
// safest default.
type LLMClassifier struct {
	adapter llm.Adapter
}

func NewLLMClassifier(adapter llm.Adapter) *LLMClassifier {
	return &LLMClassifier{adapter: adapter}
}

func (c *LLMClassifier) Classify(ctx context.Context, message string, recentHistory []string) Label {
	prompt, err := prompts.Render("intent", prompts.Intent, map[string]string{
		"history": strings.Join(recentHistory, "\n"),
		"message": message,
	})
	if err != nil {
		return LabelInquiry
	}

	resp, err := c.adapter.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Text: "You classify user intent. Respond with exactly one label."},
			{Role: llm.RoleUser, Text: prompt},
		},
	})
	if err != nil {
		return LabelInquiry
	}

	if label, ok := ParseLabel(resp.Text); ok {
		return label
	}
	return LabelInquiry
}

// KeywordClassifier is a deterministic classifier for deployments without a
// completion provider. Greeting wins only for short salutations; purchase
// phrasing wins high intent; everything else is an inquiry.
type KeywordClassifier struct{}

func NewKeywordClassifier() *KeywordClassifier { return &KeywordClassifier{} }

var greetingWords = map[string]bool{
	"hi": true, "hello": true, "hey": true, "yo": true, "howdy": true,
	"greetings": true,
}

var highIntentPhrases = []string{
	"sign up", "sign me up", "signup",
	"buy", "purchase", "subscribe",
	"get started", "start my",
	"i want", "i'd like", "i would like",
	"interested in", "try the", "free trial",
	"upgrade to",
}

func (KeywordClassifier) Classify(_ context.Context, message string, _ []string) Label {
	normalized := strings.ToLower(strings.TrimSpace(message))
	normalized = strings.Trim(normalized, "!?., ")

	for _, phrase := range highIntentPhrases {
		if strings.Contains(normalized, phrase) {
			return LabelHighIntentLead
		}
	}

	words := strings.Fields(normalized)
	if len(words) > 0 && len(words) <= 3 {
		first := strings.Trim(words[0], "!?.,")
		if greetingWords[first] || strings.HasPrefix(normalized, "good morning") ||
			strings.HasPrefix(normalized, "good afternoon") || strings.HasPrefix(normalized, "good evening") {
			return LabelGreeting
		}
	}

	return LabelInquiry
}
