package action

import "fmt"

// RequireVerdict is a guard clause any real (non-Noop) Operator calls first
// in its Execute method: it is a configuration error, not a policy denial,
// for a verdict to be absent entirely.
func RequireVerdict(verdict *PolicyVerdict) error {
	if verdict == nil {
		return fmt.Errorf("action: no policy verdict attached to intent")
	}
	if !verdict.Allowed {
		reason := verdict.Reason
		if reason == "" {
			reason = "denied by policy"
		}
		return fmt.Errorf("action: intent denied: %s", reason)
	}
	return nil
}
