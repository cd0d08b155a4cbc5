// Package action defines the action intent surface: the seam external side
// effects (sending a message, making an HTTP call on the agent's behalf)
// must pass through so they can be policy-checked and audited uniformly,
// regardless of which tool or channel originated them.
package action

import "context"

// Intent describes one requested external side effect.
type Intent struct {
	Kind   string         // e.g. "send_message", "http_request"
	Target string         // destination identifier (channel, URL, etc.)
	Params map[string]any // operator-specific arguments
}

// PolicyVerdict attaches an authorization decision to an Intent. Any
// operator other than Noop must have a verdict attached before Execute is
// called; an absent verdict is a configuration error, not a silent deny.
type PolicyVerdict struct {
	Allowed bool
	Reason  string
}

// Result reports what happened to an Intent.
type Result struct {
	Executed bool
	Detail   string
}

// Operator funnels Intents through policy and, for operators that actually
// perform side effects, through execution.
type Operator interface {
	// Execute carries out (or records) intent. verdict is nil only for the
	// Noop operator; any other operator must receive a non-nil verdict.
	Execute(ctx context.Context, intent Intent, verdict *PolicyVerdict) (*Result, error)
}
