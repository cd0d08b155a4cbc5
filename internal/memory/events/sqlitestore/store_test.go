package sqlitestore

import (
	"context"
	"testing"

	"github.com/haasonsaas/nexus/internal/memory/events"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendEvent_ProjectsSlot(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.AppendEvent(ctx, events.EventInput{
		EntityID: "user-1", SlotKey: "favorite_color", Value: "blue", Source: events.SourceExplicitUser,
	})
	if err != nil {
		t.Fatalf("append event: %v", err)
	}

	slot, err := s.GetSlot(ctx, "user-1", "favorite_color")
	if err != nil {
		t.Fatalf("get slot: %v", err)
	}
	if slot == nil || slot.Value != "blue" {
		t.Fatalf("unexpected slot: %+v", slot)
	}
}

func TestAppendEvent_InferredNeverOverridesExplicit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.AppendEvent(ctx, events.EventInput{
		EntityID: "user-1", SlotKey: "favorite_color", Value: "blue", Source: events.SourceExplicitUser,
	})
	if err != nil {
		t.Fatalf("append event: %v", err)
	}
	_, err = s.AppendEvent(ctx, events.EventInput{
		EntityID: "user-1", SlotKey: "favorite_color", Value: "red", Source: events.SourceInferred,
	})
	if err != nil {
		t.Fatalf("append event: %v", err)
	}

	slot, err := s.GetSlot(ctx, "user-1", "favorite_color")
	if err != nil {
		t.Fatalf("get slot: %v", err)
	}
	if slot.Value != "blue" {
		t.Fatalf("expected explicit value to survive, got %q", slot.Value)
	}
}

func TestForgetSlot_Hard_RemovesProjectionAndEvents(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.AppendEvent(ctx, events.EventInput{
		EntityID: "user-1", SlotKey: "secret", Value: "xyz", Source: events.SourceExplicitUser,
	})
	if err != nil {
		t.Fatalf("append event: %v", err)
	}

	outcome, err := s.ForgetSlot(ctx, "user-1", "secret", events.ForgetHard)
	if err != nil {
		t.Fatalf("forget slot: %v", err)
	}
	if !outcome.AllChecksPassed() {
		t.Fatalf("expected all checks to pass: %+v", outcome.ArtifactChecks)
	}

	slot, err := s.GetSlot(ctx, "user-1", "secret")
	if err != nil {
		t.Fatalf("get slot: %v", err)
	}
	if slot != nil {
		t.Fatalf("expected nil slot after hard forget, got %+v", slot)
	}
}

func TestForgetSlot_Tombstone_ReplacesValue(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.AppendEvent(ctx, events.EventInput{
		EntityID: "user-1", SlotKey: "note", Value: "visible", Source: events.SourceExplicitUser,
	})
	if err != nil {
		t.Fatalf("append event: %v", err)
	}

	if _, err := s.ForgetSlot(ctx, "user-1", "note", events.ForgetTombstone); err != nil {
		t.Fatalf("forget slot: %v", err)
	}

	slot, err := s.GetSlot(ctx, "user-1", "note")
	if err != nil {
		t.Fatalf("get slot: %v", err)
	}
	if slot == nil || slot.Value != "[forgotten]" {
		t.Fatalf("expected tombstone marker, got %+v", slot)
	}
}

func TestRecallScoped_KeywordMatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.AppendEvent(ctx, events.EventInput{
		EntityID: "user-1", SlotKey: "bio", Value: "loves hiking in the mountains", Source: events.SourceExplicitUser,
	})
	if err != nil {
		t.Fatalf("append event: %v", err)
	}

	results, err := s.RecallScoped(ctx, "user-1", "hiking", 10)
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Score < 0 || results[0].Score >= 1 {
		t.Fatalf("expected score in [0,1), got %f", results[0].Score)
	}
}

func TestCapability_SupportsAllForgetModes(t *testing.T) {
	s := newTestStore(t)
	cap := s.Capability()
	if !cap.SupportsHardForget || !cap.SupportsSoftForget || !cap.SupportsTombstone {
		t.Fatalf("expected canonical backend to support all forget modes: %+v", cap)
	}
}
