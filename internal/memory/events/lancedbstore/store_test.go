package lancedbstore

import (
	"context"
	"testing"

	"github.com/haasonsaas/nexus/internal/memory/events"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendEvent_ProjectsSlot(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.AppendEvent(ctx, events.EventInput{
		EntityID: "user-1", SlotKey: "favorite_color", Value: "blue", Source: events.SourceExplicitUser,
	}); err != nil {
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

	if _, err := s.AppendEvent(ctx, events.EventInput{
		EntityID: "user-1", SlotKey: "favorite_color", Value: "blue", Source: events.SourceExplicitUser,
	}); err != nil {
		t.Fatalf("append event: %v", err)
	}
	if _, err := s.AppendEvent(ctx, events.EventInput{
		EntityID: "user-1", SlotKey: "favorite_color", Value: "red", Source: events.SourceInferred,
	}); err != nil {
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

func TestForgetSlot_Hard_RemovesProjection(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.AppendEvent(ctx, events.EventInput{
		EntityID: "user-1", SlotKey: "secret", Value: "xyz", Source: events.SourceExplicitUser,
	}); err != nil {
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

func TestForgetSlot_Soft_DegradesAndExcludes(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.AppendEvent(ctx, events.EventInput{
		EntityID: "user-1", SlotKey: "note", Value: "visible", Source: events.SourceExplicitUser,
	}); err != nil {
		t.Fatalf("append event: %v", err)
	}

	outcome, err := s.ForgetSlot(ctx, "user-1", "note", events.ForgetSoft)
	if err != nil {
		t.Fatalf("forget slot: %v", err)
	}
	if !outcome.Degraded {
		t.Fatalf("expected soft forget to be degraded on a vector backend")
	}

	slot, err := s.GetSlot(ctx, "user-1", "note")
	if err != nil {
		t.Fatalf("get slot: %v", err)
	}
	if slot != nil {
		t.Fatalf("expected nil slot after soft forget, got %+v", slot)
	}
}

func TestRecallScoped_RanksBySimilarity(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.AppendEvent(ctx, events.EventInput{
		EntityID: "user-1", SlotKey: "bio", Value: "loves hiking in the mountains", Source: events.SourceExplicitUser,
	}); err != nil {
		t.Fatalf("append event: %v", err)
	}
	if _, err := s.AppendEvent(ctx, events.EventInput{
		EntityID: "user-1", SlotKey: "food", Value: "prefers spicy noodle soup", Source: events.SourceExplicitUser,
	}); err != nil {
		t.Fatalf("append event: %v", err)
	}

	results, err := s.RecallScoped(ctx, "user-1", "hiking mountains", 5)
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].SlotKey != "bio" {
		t.Fatalf("expected the hiking entry to rank first, got %+v", results[0])
	}
}

func TestCapability_SupportsAllForgetModes(t *testing.T) {
	s := newTestStore(t)
	cap := s.Capability()
	if !cap.SupportsHardForget || !cap.SupportsSoftForget || !cap.SupportsTombstone {
		t.Fatalf("expected lancedb backend to support all forget modes: %+v", cap)
	}
	if !cap.SupportsVectorRecall || cap.SupportsKeywordRecall {
		t.Fatalf("expected vector-only recall capability: %+v", cap)
	}
}
