package events

import "fmt"

// BackendKind names one of the concrete Store implementations a Manager can
// be configured with.
type BackendKind string

const (
	BackendSQLite   BackendKind = "sqlite"
	BackendMarkdown BackendKind = "markdown"
	BackendLanceDB  BackendKind = "lancedb"
)

// Manager is a capability-aware facade over one active Store. It exists so
// callers (tool handlers, commands) don't need to know which backend is
// configured to reason about whether a requested forget mode will be
// honored exactly or only approximated.
type Manager struct {
	kind  BackendKind
	store Store
}

// NewManager wraps store, tagged with the backend kind it was constructed
// from (for diagnostics and degradation warnings).
func NewManager(kind BackendKind, store Store) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	return &Manager{kind: kind, store: store}, nil
}

// Kind reports which backend this manager is wrapping.
func (m *Manager) Kind() BackendKind { return m.kind }

// Store returns the underlying Store for callers that need the full interface.
func (m *Manager) Store() Store { return m.store }

// DescribeForgetSupport reports, before a forget call is made, whether mode
// will be honored exactly by the active backend.
func (m *Manager) DescribeForgetSupport(mode ForgetMode) (supported bool, detail string) {
	cap := m.store.Capability()
	switch mode {
	case ForgetHard:
		return cap.SupportsHardForget, fmt.Sprintf("%s backend %s hard forget", cap.Name, supportWord(cap.SupportsHardForget))
	case ForgetSoft:
		return cap.SupportsSoftForget, fmt.Sprintf("%s backend %s soft forget", cap.Name, supportWord(cap.SupportsSoftForget))
	case ForgetTombstone:
		return cap.SupportsTombstone, fmt.Sprintf("%s backend %s tombstone forget", cap.Name, supportWord(cap.SupportsTombstone))
	default:
		return false, fmt.Sprintf("unknown forget mode %q", mode)
	}
}

func supportWord(supported bool) string {
	if supported {
		return "supports"
	}
	return "does not support"
}

// WarnIfDegraded turns a ForgetOutcome into a user-facing warning string
// when the backend could only approximate what was requested, or an empty
// string when the outcome matched the request exactly.
func WarnIfDegraded(outcome *ForgetOutcome) string {
	if outcome == nil {
		return ""
	}
	if outcome.Unsupported {
		return fmt.Sprintf("forget mode %q is not supported by this memory backend; no change was made", outcome.RequestedMode)
	}
	if outcome.Degraded {
		return fmt.Sprintf("requested %q forget but this backend could only approximate it (applied %q); some trace of the original value may remain recoverable", outcome.RequestedMode, outcome.AppliedMode)
	}
	return ""
}
