package events

import (
	"context"
	"testing"
)

type stubStore struct{ cap Capability }

func (s *stubStore) Capability() Capability { return s.cap }
func (s *stubStore) AppendEvent(ctx context.Context, input EventInput) (*Event, error) {
	return nil, nil
}
func (s *stubStore) GetSlot(ctx context.Context, entityID, slotKey string) (*Slot, error) {
	return nil, nil
}
func (s *stubStore) ListSlots(ctx context.Context, entityID string) ([]Slot, error) { return nil, nil }
func (s *stubStore) RecallScoped(ctx context.Context, entityID, query string, limit int) ([]RecallItem, error) {
	return nil, nil
}
func (s *stubStore) ForgetSlot(ctx context.Context, entityID, slotKey string, mode ForgetMode) (*ForgetOutcome, error) {
	return nil, nil
}
func (s *stubStore) Associations(ctx context.Context, entityID string) ([]Association, error) {
	return nil, nil
}
func (s *stubStore) Close() error { return nil }

func TestManager_DescribeForgetSupport(t *testing.T) {
	store := &stubStore{cap: Capability{Name: "stub", SupportsHardForget: false, SupportsSoftForget: true, SupportsTombstone: true}}
	m, err := NewManager(BackendMarkdown, store)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	if supported, _ := m.DescribeForgetSupport(ForgetHard); supported {
		t.Fatalf("expected hard forget to be reported unsupported")
	}
	if supported, _ := m.DescribeForgetSupport(ForgetSoft); !supported {
		t.Fatalf("expected soft forget to be reported supported")
	}
}

func TestWarnIfDegraded(t *testing.T) {
	if w := WarnIfDegraded(nil); w != "" {
		t.Fatalf("expected empty warning for nil outcome, got %q", w)
	}
	if w := WarnIfDegraded(&ForgetOutcome{Unsupported: true, RequestedMode: ForgetHard}); w == "" {
		t.Fatalf("expected a warning for an unsupported mode")
	}
	if w := WarnIfDegraded(&ForgetOutcome{Degraded: true, RequestedMode: ForgetHard, AppliedMode: ForgetSoft}); w == "" {
		t.Fatalf("expected a warning for a degraded mode")
	}
	if w := WarnIfDegraded(&ForgetOutcome{}); w != "" {
		t.Fatalf("expected empty warning for a clean outcome, got %q", w)
	}
}
