package lead

import (
	"regexp"
)

// State tracks the slot-filling lifecycle of a session's lead.
type State string

const (
	StateEmpty      State = "empty"
	StateCollecting State = "collecting"
	StateComplete   State = "complete"
	StateCaptured   State = "captured"
)

// Field names, in the fixed priority order used for prompting.
const (
	FieldName     = "name"
	FieldEmail    = "email"
	FieldPlatform = "platform"
)

// Record is the lead being collected. Fields, once set, are only
// overwritten by an explicit user correction, never silently cleared.
type Record struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Platform string `json:"platform,omitempty"`
}

// Complete reports whether all three fields are set. Email validity is
// enforced at extraction time, so a set email is always syntactically valid.
func (r Record) Complete() bool {
	return r.Name != "" && r.Email != "" && r.Platform != ""
}

// Missing returns the unset fields in priority order name → email → platform.
func (r Record) Missing() []string {
	var missing []string
	if r.Name == "" {
		missing = append(missing, FieldName)
	}
	if r.Email == "" {
		missing = append(missing, FieldEmail)
	}
	if r.Platform == "" {
		missing = append(missing, FieldPlatform)
	}
	return missing
}

var emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)

// ValidEmail reports whether s is a syntactically plausible address.
func ValidEmail(s string) bool {
	return emailPattern.FindString(s) == s
}

// Filler is the slot-filling state machine. It has value semantics so the
// orchestrator can stage a turn's changes and commit them atomically.
type Filler struct {
	State  State  `json:"state"`
	Record Record `json:"record"`
}

func NewFiller() Filler {
	return Filler{State: StateEmpty}
}

// Absorb extracts any lead fields present in the user's message, merges
// them into the record, and advances the state. A message may supply several
// fields at once. Returns the updated filler and the fields accepted from
// this message.
func (f Filler) Absorb(message string) (Filler, []string) {
	if f.State == StateCaptured {
		// At most one lead per session; a captured lead never restarts collection.
		return f, nil
	}

	var accepted []string

	// Supplying a different value for an already-set field is treated as an
	// explicit correction; matching values are not re-accepted.
	if email, ok := extractEmail(message); ok && email != f.Record.Email {
		f.Record.Email = email
		accepted = append(accepted, FieldEmail)
	}
	if platform, ok := extractPlatform(message); ok && platform != f.Record.Platform {
		f.Record.Platform = platform
		accepted = append(accepted, FieldPlatform)
	}
	if name, ok := extractName(message, f.Record); ok && name != f.Record.Name {
		f.Record.Name = name
		accepted = append(accepted, FieldName)
	}

	if f.Record.Complete() {
		f.State = StateComplete
	} else {
		f.State = StateCollecting
	}
	return f, accepted
}

// MarkCaptured transitions COMPLETE → CAPTURED after a successful capture.
func (f Filler) MarkCaptured() Filler {
	f.State = StateCaptured
	return f
}

// NextMissing returns the single field to request next, or "" when none.
func (f Filler) NextMissing() string {
	missing := f.Record.Missing()
	if len(missing) == 0 {
		return ""
	}
	return missing[0]
}

// Collecting reports whether the filler is mid-collection, which gives
// lead continuation priority over intent re-classification.
func (f Filler) Collecting() bool {
	return f.State == StateCollecting
}
