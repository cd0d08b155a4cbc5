package persona

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/haasonsaas/nexus/internal/memory/events"
	"github.com/haasonsaas/nexus/internal/security"
)

// personaEntityID is the fixed entity under which the single persona state
// header lives in the event store; the persona layer has exactly one
// continuity state per deployment, not one per conversation.
const personaEntityID = "persona"

// Store is the canonical persona state store, backed by a memory
// events.Store under a dedicated (entity, slot) pair. It never touches the
// disk mirror; Reconciler composes a Store with a Mirror.
type Store struct {
	events events.Store
}

// NewStore wraps an events.Store for persona state persistence.
func NewStore(store events.Store) *Store {
	return &Store{events: store}
}

// Get returns the canonical state header, or nil if none has been written yet.
func (s *Store) Get(ctx context.Context) (*StateHeader, error) {
	slot, err := s.events.GetSlot(ctx, personaEntityID, slotKeyStateHead)
	if err != nil {
		return nil, fmt.Errorf("get persona slot: %w", err)
	}
	if slot == nil {
		return nil, nil
	}
	var header StateHeader
	if err := json.Unmarshal([]byte(slot.Value), &header); err != nil {
		return nil, fmt.Errorf("decode persona state: %w", err)
	}
	return &header, nil
}

// Put validates and appends a new state header event, so the canonical
// store always reflects the backend-authoritative write-first order
// required by the reconcile rules.
func (s *Store) Put(ctx context.Context, header StateHeader) error {
	if err := header.Validate(); err != nil {
		return fmt.Errorf("invalid persona state: %w", err)
	}
	encoded, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("encode persona state: %w", err)
	}
	_, err = s.events.AppendEvent(ctx, events.EventInput{
		EntityID:   personaEntityID,
		SlotKey:    slotKeyStateHead,
		Value:      string(encoded),
		Source:     events.SourceExplicitUser,
		Confidence: 1,
		Importance: 1,
	})
	if err != nil {
		return fmt.Errorf("append persona state event: %w", err)
	}
	return nil
}

// AppendMemoryNote records one accepted memory_append entry from a guarded
// writeback under its own slot, so each note survives independently rather
// than being projected down to the latest value like the state header is.
func (s *Store) AppendMemoryNote(ctx context.Context, note string) error {
	slotKey := "persona:memory_append:" + uuid.NewString()
	_, err := s.events.AppendEvent(ctx, events.EventInput{
		EntityID:   personaEntityID,
		SlotKey:    slotKey,
		Value:      note,
		Source:     events.SourceExplicitUser,
		Confidence: 1,
		Importance: 0.5,
	})
	if err != nil {
		return fmt.Errorf("append persona memory note: %w", err)
	}
	return nil
}

// PutSelfTask records one accepted self_tasks entry from a guarded
// writeback under its own slot.
func (s *Store) PutSelfTask(ctx context.Context, task security.SelfTask) error {
	encoded, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode persona self task: %w", err)
	}
	slotKey := "persona:self_task:" + uuid.NewString()
	_, err = s.events.AppendEvent(ctx, events.EventInput{
		EntityID:   personaEntityID,
		SlotKey:    slotKey,
		Value:      string(encoded),
		Source:     events.SourceExplicitUser,
		Confidence: 1,
		Importance: 0.5,
	})
	if err != nil {
		return fmt.Errorf("append persona self task: %w", err)
	}
	return nil
}

// PutStyleProfile records the current style_profile from a guarded
// writeback. Unlike memory notes and self tasks, a style profile is a
// single canonical value: each accepted writeback replaces the projection.
func (s *Store) PutStyleProfile(ctx context.Context, profile security.StyleProfile) error {
	encoded, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode persona style profile: %w", err)
	}
	_, err = s.events.AppendEvent(ctx, events.EventInput{
		EntityID:   personaEntityID,
		SlotKey:    "persona:style_profile",
		Value:      string(encoded),
		Source:     events.SourceExplicitUser,
		Confidence: 1,
		Importance: 1,
	})
	if err != nil {
		return fmt.Errorf("append persona style profile: %w", err)
	}
	return nil
}
