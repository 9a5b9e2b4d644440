// Package prompts holds the prompt templates used by the agent. Keeping
// them as code constants makes prompt changes reviewable alongside the
// logic that depends on their structure.
package prompts

import (
	"fmt"
	"strings"
	"text/template"
)

const Intent = `You are an expert at classifying user intent for a product sales assistant.

Classify the user's latest message into exactly one of these labels:
- greeting: a salutation or small talk with no question
- inquiry: a question about the product, pricing, features, or support
- high_intent_lead: clear purchase or sign-up interest

Recent conversation:
{{.history}}

User message: "{{.message}}"

Respond with ONLY the label, nothing else.`

const Grounded = `You are a helpful assistant for AutoStream, an AI-powered video editing platform.
Answer the user's question using only the context below. If the context does
not contain the answer, say you don't have that information right now.

Context:
{{.context}}

Question: {{.question}}`

// LeadAsk returns the outbound question for the next missing lead field.
// Exactly one field is requested per turn, and the wording is fixed so
// collection behaves the same regardless of the completion provider.
func LeadAsk(field string) string {
	switch field {
	case "name":
		return "Great! I'd love to get you set up. May I have your full name?"
	case "email":
		return "Thanks! What's the best email address to reach you at?"
	case "platform":
		return "Perfect. Which platform do you create content for? (YouTube, Instagram, TikTok, Facebook, Twitter, Twitch, or LinkedIn)"
	default:
		return ""
	}
}

// Greeting is the canned response for greeting turns; no retrieval or
// completion call is involved.
const Greeting = "Hi there! Welcome to AutoStream. I'm here to help you learn about our " +
	"AI-powered video editing platform. Whether you create for YouTube, Instagram, " +
	"TikTok, or other platforms, we can help you save time and make great videos. " +
	"What would you like to know?"

// LeadThanks confirms a delivered lead.
func LeadThanks(name, email string) string {
	return fmt.Sprintf("Thank you, %s! Your information has been received. "+
		"Our team will reach out to you at %s shortly to help you get started with AutoStream!", name, email)
}

// LeadFallback is used when the notification sink is unavailable; the
// lead stays pending so a later turn can retry delivery.
func LeadFallback(name string) string {
	return fmt.Sprintf("Thank you for your interest, %s! We've noted your details and will be in touch soon.", name)
}

// AlreadyCaptured answers a repeat sign-up request after the session's
// lead has been delivered.
const AlreadyCaptured = "You're all set! We already have your details and our team will be in touch soon. " +
	"Is there anything else I can help you with?"

// Render executes a template constant with the given data.
func Render(name, text string, data map[string]string) (string, error) {
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", name, err)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render template %s: %w", name, err)
	}
	return b.String(), nil
}
