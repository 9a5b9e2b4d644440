package lead

import (
	"strings"
	"unicode"
)

// canonicalPlatforms maps lowercase mentions to their canonical casing.
var canonicalPlatforms = map[string]string{
	"youtube":   "YouTube",
	"instagram": "Instagram",
	"tiktok":    "TikTok",
	"facebook":  "Facebook",
	"twitter":   "Twitter",
	"twitch":    "Twitch",
	"linkedin":  "LinkedIn",
}

// commonShortPhrases are short replies that look name-shaped but aren't.
var commonShortPhrases = map[string]bool{
	"yes": true, "no": true, "sure": true, "ok": true, "okay": true,
	"yeah": true, "yep": true, "nope": true, "thanks": true, "thank you": true,
	"please": true, "maybe": true, "hi": true, "hello": true, "hey": true,
}

// nameParticles are lowercase words allowed inside a capitalized name.
var nameParticles = map[string]bool{
	"van": true, "de": true, "von": true, "da": true, "di": true, "la": true,
}

var namePrefixes = []string{
	"my name is ",
	"my name's ",
	"i am ",
	"i'm ",
	"call me ",
	"it's ",
	"this is ",
}

func extractEmail(message string) (string, bool) {
	match := emailPattern.FindString(message)
	if match == "" {
		return "", false
	}
	return match, true
}

func extractPlatform(message string) (string, bool) {
	lower := strings.ToLower(message)
	for key, canonical := range canonicalPlatforms {
		if strings.Contains(lower, key) {
			return canonical, true
		}
	}
	return "", false
}

// extractName finds a name either after an explicit prefix ("my name is …")
// or, for messages that are nothing but a plausible name, from the whole
// message. An email address or a bare platform mention never becomes a name.
func extractName(message string, current Record) (string, bool) {
	trimmed := strings.TrimSpace(message)
	lower := strings.ToLower(trimmed)

	for _, prefix := range namePrefixes {
		if strings.HasPrefix(lower, prefix) {
			candidate := cutClause(strings.TrimSpace(trimmed[len(prefix):]))
			if looksLikeName(candidate) {
				return candidate, true
			}
		}
	}

	// Bare-name heuristic only applies while the name is still missing.
	if current.Name != "" {
		return "", false
	}
	candidate := strings.Trim(trimmed, ".!,")
	if strings.ContainsAny(candidate, "@0123456789?") {
		return "", false
	}
	if _, isPlatform := canonicalPlatforms[strings.ToLower(candidate)]; isPlatform {
		return "", false
	}
	if commonShortPhrases[strings.ToLower(candidate)] {
		return "", false
	}
	if !looksLikeName(candidate) {
		return "", false
	}
	return candidate, true
}

// cutClause truncates a prefixed name candidate at the first clause
// boundary so "John Doe and I post on TikTok" yields "John Doe".
func cutClause(candidate string) string {
	for _, delim := range []string{",", ".", "!", "?", ";", " and ", " but ", " on ", " from "} {
		if idx := strings.Index(strings.ToLower(candidate), delim); idx >= 0 {
			candidate = candidate[:idx]
		}
	}
	return strings.TrimSpace(candidate)
}

// looksLikeName accepts 1-4 words that are capitalized or known particles.
func looksLikeName(candidate string) bool {
	words := strings.Fields(candidate)
	if len(words) < 1 || len(words) > 4 {
		return false
	}
	for _, word := range words {
		runes := []rune(word)
		if unicode.IsUpper(runes[0]) {
			continue
		}
		if nameParticles[strings.ToLower(word)] {
			continue
		}
		return false
	}
	return true
}
