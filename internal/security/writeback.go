package security

import (
	"fmt"
	"strings"
	"time"
)

// Field and array caps from the continuity contract (mirrors
// internal/persona.StateHeader's own caps so the guard can validate a
// writeback payload before it is ever decoded into a StateHeader).
const (
	maxStateObjectiveLen       = 280
	maxStateSummaryLen         = 1200
	maxStateItemLen            = 240
	maxOpenLoops               = 7
	maxNextActions             = 3
	maxCommitments             = 5
	maxMemoryAppend            = 8
	maxMemoryAppendLen         = 240
	maxSelfTasks               = 5
	maxSelfTaskTitleLen        = 120
	maxSelfTaskInstructionsLen = 240
	maxSelfTaskExpiryHorizon   = 72 * time.Hour
)

// poisonPatterns are case-insensitive substrings that indicate a writeback
// payload is attempting prompt injection rather than recording genuine
// persona state.
var poisonPatterns = []string{
	"ignore previous instructions",
	"ignore all previous",
	"disregard the above",
	"system prompt",
	"developer message",
	"exfiltrate",
	"you are now",
	"new instructions:",
}

// rejectedUnsafeContent is the sanitized reason returned for any poison-match
// rejection. It never echoes the matched field or the attacker's text, per
// the requirement that rejection reasons carry a sanitized summary only.
const rejectedUnsafeContent = "rejected: unsafe content pattern detected in writeback payload"

// WritebackStateHeader mirrors the nine documented persona state header
// fields as they appear inside a writeback payload.
type WritebackStateHeader struct {
	SchemaVersion          int       `json:"schema_version"`
	IdentityPrinciplesHash string    `json:"identity_principles_hash"`
	SafetyPosture          string    `json:"safety_posture"`
	CurrentObjective       string    `json:"current_objective"`
	OpenLoops              []string  `json:"open_loops"`
	NextActions            []string  `json:"next_actions"`
	Commitments            []string  `json:"commitments"`
	RecentContextSummary   string    `json:"recent_context_summary"`
	LastUpdatedAt          time.Time `json:"last_updated_at"`
}

// SelfTask is one entry of a writeback's self_tasks array.
type SelfTask struct {
	Title        string    `json:"title"`
	Instructions string    `json:"instructions"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// StyleProfile is a writeback's optional style_profile object.
type StyleProfile struct {
	Formality   float64 `json:"formality"`
	Verbosity   float64 `json:"verbosity"`
	Temperature float64 `json:"temperature"`
}

// WritebackPayload is the exact top-level shape a persona writeback may
// take. Only these four fields are recognized; anything else present in the
// decoded JSON must be rejected by the caller before it reaches this type
// (e.g. via a json.Decoder with DisallowUnknownFields).
type WritebackPayload struct {
	StateHeader  *WritebackStateHeader `json:"state_header,omitempty"`
	MemoryAppend []string              `json:"memory_append,omitempty"`
	SelfTasks    []SelfTask            `json:"self_tasks,omitempty"`
	StyleProfile *StyleProfile         `json:"style_profile,omitempty"`
}

// ImmutableSnapshot is the guard's held copy of the persona's immutable
// triple (schema_version, identity_principles_hash, safety_posture),
// captured from the canonical state at the time the guard is invoked.
type ImmutableSnapshot struct {
	SchemaVersion          int
	IdentityPrinciplesHash string
	SafetyPosture          string
}

// WritebackVerdict is the outcome of validating a persona writeback payload.
type WritebackVerdict struct {
	Allowed bool
	Payload *WritebackPayload
	Reason  string
}

// ValidateWriteback checks a proposed persona writeback payload against the
// exact top-level field set, the immutable-triple invariant, every length
// and count cap, and the poison-pattern blocklist. Any violation rejects the
// entire payload, not just the offending field, since a partially-applied
// writeback can itself be an injection vector. A rejected verdict's Payload
// is always nil: rejected writebacks must not be persisted in any partial
// form.
func ValidateWriteback(payload WritebackPayload, snapshot ImmutableSnapshot) WritebackVerdict {
	if payload.StateHeader == nil && payload.MemoryAppend == nil && payload.SelfTasks == nil && payload.StyleProfile == nil {
		return WritebackVerdict{Allowed: false, Reason: "writeback payload has no recognized fields"}
	}

	if containsPoisonPattern(payloadStrings(payload)) {
		return WritebackVerdict{Allowed: false, Reason: rejectedUnsafeContent}
	}

	if sh := payload.StateHeader; sh != nil {
		if sh.SchemaVersion != snapshot.SchemaVersion ||
			sh.IdentityPrinciplesHash != snapshot.IdentityPrinciplesHash ||
			sh.SafetyPosture != snapshot.SafetyPosture {
			return WritebackVerdict{Allowed: false, Reason: "state_header immutable fields do not match snapshot"}
		}
		if len(sh.CurrentObjective) > maxStateObjectiveLen {
			return WritebackVerdict{Allowed: false, Reason: "state_header.current_objective exceeds max length"}
		}
		if len(sh.RecentContextSummary) > maxStateSummaryLen {
			return WritebackVerdict{Allowed: false, Reason: "state_header.recent_context_summary exceeds max length"}
		}
		if err := validateCappedItems("state_header.open_loops", sh.OpenLoops, maxOpenLoops, maxStateItemLen); err != nil {
			return WritebackVerdict{Allowed: false, Reason: err.Error()}
		}
		if err := validateCappedItems("state_header.next_actions", sh.NextActions, maxNextActions, maxStateItemLen); err != nil {
			return WritebackVerdict{Allowed: false, Reason: err.Error()}
		}
		if err := validateCappedItems("state_header.commitments", sh.Commitments, maxCommitments, maxStateItemLen); err != nil {
			return WritebackVerdict{Allowed: false, Reason: err.Error()}
		}
	}

	if len(payload.MemoryAppend) > maxMemoryAppend {
		return WritebackVerdict{Allowed: false, Reason: "memory_append exceeds max item count"}
	}
	for _, item := range payload.MemoryAppend {
		if len(item) > maxMemoryAppendLen {
			return WritebackVerdict{Allowed: false, Reason: "memory_append item exceeds max length"}
		}
	}

	if len(payload.SelfTasks) > maxSelfTasks {
		return WritebackVerdict{Allowed: false, Reason: "self_tasks exceeds max item count"}
	}
	horizon := time.Now().Add(maxSelfTaskExpiryHorizon)
	for _, task := range payload.SelfTasks {
		if len(task.Title) > maxSelfTaskTitleLen {
			return WritebackVerdict{Allowed: false, Reason: "self_tasks title exceeds max length"}
		}
		if len(task.Instructions) > maxSelfTaskInstructionsLen {
			return WritebackVerdict{Allowed: false, Reason: "self_tasks instructions exceeds max length"}
		}
		if !task.ExpiresAt.IsZero() && task.ExpiresAt.After(horizon) {
			return WritebackVerdict{Allowed: false, Reason: "self_tasks expires_at exceeds 72h horizon"}
		}
	}

	if sp := payload.StyleProfile; sp != nil {
		if sp.Formality < 0 || sp.Formality > 100 {
			return WritebackVerdict{Allowed: false, Reason: "style_profile.formality out of range [0,100]"}
		}
		if sp.Verbosity < 0 || sp.Verbosity > 100 {
			return WritebackVerdict{Allowed: false, Reason: "style_profile.verbosity out of range [0,100]"}
		}
		if sp.Temperature < 0 || sp.Temperature > 1 {
			return WritebackVerdict{Allowed: false, Reason: "style_profile.temperature out of range [0.0,1.0]"}
		}
	}

	return WritebackVerdict{Allowed: true, Payload: &payload}
}

func validateCappedItems(field string, items []string, maxCount, maxItemLen int) error {
	if len(items) > maxCount {
		return fmt.Errorf("%s exceeds max item count", field)
	}
	for _, item := range items {
		if len(item) > maxItemLen {
			return fmt.Errorf("%s item exceeds max length", field)
		}
	}
	return nil
}

// payloadStrings flattens every string a writeback payload carries, for a
// single poison-pattern scan over the whole payload.
func payloadStrings(payload WritebackPayload) []string {
	var out []string
	if sh := payload.StateHeader; sh != nil {
		out = append(out, sh.CurrentObjective, sh.RecentContextSummary)
		out = append(out, sh.OpenLoops...)
		out = append(out, sh.NextActions...)
		out = append(out, sh.Commitments...)
	}
	out = append(out, payload.MemoryAppend...)
	for _, task := range payload.SelfTasks {
		out = append(out, task.Title, task.Instructions)
	}
	return out
}

func containsPoisonPattern(values []string) bool {
	for _, s := range values {
		lower := strings.ToLower(s)
		for _, p := range poisonPatterns {
			if strings.Contains(lower, p) {
				return true
			}
		}
	}
	return false
}
