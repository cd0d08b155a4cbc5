// Package lancedbstore adapts the vector-similarity backend.lancedb storage
// backend into an events.Store: append-only log, slot projection, and
// recall layered over entries keyed by (entity, slot). Until a real
// embedding provider is wired into the memory pipeline, vector similarity
// is computed over a deterministic feature-hashed pseudo-embedding of the
// event value, so ranking is stable and exercises the same cosine-distance
// code path a real embedder would.
package lancedbstore

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/haasonsaas/nexus/internal/memory/backend"
	"github.com/haasonsaas/nexus/internal/memory/backend/lancedb"
	"github.com/haasonsaas/nexus/internal/memory/events"
	"github.com/haasonsaas/nexus/pkg/models"
)

// Store implements events.Store over a lancedb.Backend.
type Store struct {
	backend   *lancedb.Backend
	dimension int
}

var _ events.Store = (*Store)(nil)

// Config configures the lancedb-backed event store.
type Config struct {
	// Path is the on-disk directory holding the backend's data file.
	Path string
	// Dimension is the pseudo-embedding width; defaults to 256.
	Dimension int
}

// New opens (or creates) the backing lancedb directory.
func New(cfg Config) (*Store, error) {
	dim := cfg.Dimension
	if dim <= 0 {
		dim = 256
	}
	b, err := lancedb.New(lancedb.Config{Path: cfg.Path, Dimension: dim, MetricType: "cosine"})
	if err != nil {
		return nil, fmt.Errorf("open lancedb event store: %w", err)
	}
	return &Store{backend: b, dimension: dim}, nil
}

// Capability reports that hard forget is a true delete (row removal) while
// soft and tombstone forget degrade to marking, since the backend's only
// primitives are upsert-by-ID and delete-by-ID.
func (s *Store) Capability() events.Capability {
	return events.Capability{
		Name:                  "lancedb",
		SupportsHardForget:    true,
		SupportsSoftForget:    true,
		SupportsTombstone:     true,
		SupportsVectorRecall:  true,
		SupportsKeywordRecall: false,
	}
}

const (
	extraSlotKey     = "slot_key"
	extraSource      = "source"
	extraConfidence  = "confidence"
	extraImportance  = "importance"
	extraEvidence    = "evidence"
	extraTags        = "tags"
	extraRetrievable = "retrievable"
)

func toEntry(ev events.Event, entityID string) *models.MemoryEntry {
	return &models.MemoryEntry{
		ID:        ev.ID,
		SessionID: entityID,
		Content:   ev.Value,
		Embedding: pseudoEmbedding(ev.Value, 256),
		Metadata: models.MemoryMetadata{
			Source: string(ev.Source),
			Tags:   ev.Tags,
			Extra: map[string]any{
				extraSlotKey:     ev.SlotKey,
				extraSource:      string(ev.Source),
				extraConfidence:  ev.Confidence,
				extraImportance:  ev.Importance,
				extraEvidence:    ev.Evidence,
				extraTags:        strings.Join(ev.Tags, ","),
				extraRetrievable: true,
			},
		},
		CreatedAt: ev.CreatedAt,
		UpdatedAt: ev.CreatedAt,
	}
}

func fromEntry(entry *models.MemoryEntry, entityID string) events.Event {
	extra := entry.Metadata.Extra
	ev := events.Event{
		ID: entry.ID, EntityID: entityID, Value: entry.Content,
		Source: events.Source(entry.Metadata.Source), Tags: entry.Metadata.Tags,
		CreatedAt: entry.CreatedAt,
	}
	if extra != nil {
		if v, ok := extra[extraSlotKey].(string); ok {
			ev.SlotKey = v
		}
		if v, ok := extra[extraConfidence].(float64); ok {
			ev.Confidence = v
		}
		if v, ok := extra[extraImportance].(float64); ok {
			ev.Importance = v
		}
		if v, ok := extra[extraEvidence].(string); ok {
			ev.Evidence = v
		}
	}
	return ev
}

func isRetrievable(entry *models.MemoryEntry) bool {
	if entry.Metadata.Extra == nil {
		return true
	}
	v, ok := entry.Metadata.Extra[extraRetrievable]
	if !ok {
		return true
	}
	b, ok := v.(bool)
	return !ok || b
}

// pseudoEmbedding derives a deterministic, L2-normalized feature-hashed
// vector from s's character trigrams. It is not a semantic embedding; it
// exists so cosine ranking has something stable to operate on until a real
// embedding provider is configured.
func pseudoEmbedding(s string, dim int) []float32 {
	vec := make([]float64, dim)
	runes := []rune(strings.ToLower(s))
	if len(runes) == 0 {
		return toFloat32(vec)
	}
	n := 3
	if len(runes) < n {
		n = len(runes)
	}
	for i := 0; i+n <= len(runes); i++ {
		gram := string(runes[i : i+n])
		h := fnv.New32a()
		_, _ = h.Write([]byte(gram))
		idx := int(h.Sum32()) % dim
		if idx < 0 {
			idx += dim
		}
		vec[idx]++
	}
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return toFloat32(vec)
	}
	for i := range vec {
		vec[i] /= norm
	}
	return toFloat32(vec)
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func (s *Store) scopedEntries(ctx context.Context, entityID string, limit int) ([]*models.SearchResult, error) {
	opts := &backend.SearchOptions{Limit: limit, Threshold: -1}
	if entityID != "" {
		opts.Scope = models.ScopeSession
		opts.ScopeID = entityID
	} else {
		opts.Scope = models.MemoryScope("")
	}
	zero := make([]float32, s.dimension)
	zero[0] = 1
	return s.backend.Search(ctx, zero, opts)
}

// AppendEvent consolidates the incoming value against the current
// projection and indexes a new row for the event.
func (s *Store) AppendEvent(ctx context.Context, input events.EventInput) (*events.Event, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.GetSlot(ctx, input.EntityID, input.SlotKey)
	if err != nil {
		return nil, err
	}
	disposition := events.Consolidate(existing, input)

	ev := events.Event{
		ID: uuid.NewString(), EntityID: input.EntityID, SlotKey: input.SlotKey,
		Value: input.Value, Source: input.Source,
		Confidence: clamp01(input.Confidence), Importance: clamp01(input.Importance),
		Evidence: input.Evidence, Tags: input.Tags, CreatedAt: time.Now(),
	}

	switch disposition {
	case events.DispositionDiscard:
		return &ev, nil
	case events.DispositionMerge:
		if existing != nil && !strings.Contains(ev.Value, existing.Value) {
			ev.Value = existing.Value + "; " + ev.Value
		}
	case events.DispositionMarkContradiction:
		ev.Tags = append(ev.Tags, "contradiction")
	}

	if err := s.backend.Index(ctx, []*models.MemoryEntry{toEntry(ev, input.EntityID)}); err != nil {
		return nil, fmt.Errorf("index event: %w", err)
	}
	return &ev, nil
}

// GetSlot returns the most recently created, retrievable event for
// (entityID, slotKey).
func (s *Store) GetSlot(ctx context.Context, entityID, slotKey string) (*events.Slot, error) {
	slots, err := s.ListSlots(ctx, entityID)
	if err != nil {
		return nil, err
	}
	for i := range slots {
		if slots[i].SlotKey == slotKey {
			return &slots[i], nil
		}
	}
	return nil, nil
}

// ListSlots projects every retrievable event for entityID into its latest
// per-slot value.
func (s *Store) ListSlots(ctx context.Context, entityID string) ([]events.Slot, error) {
	results, err := s.scopedEntries(ctx, entityID, 10000)
	if err != nil {
		return nil, err
	}

	bySlot := map[string]events.Slot{}
	for _, r := range results {
		if !isRetrievable(r.Entry) {
			continue
		}
		ev := fromEntry(r.Entry, entityID)
		cur, ok := bySlot[ev.SlotKey]
		if !ok || ev.CreatedAt.After(cur.UpdatedAt) {
			bySlot[ev.SlotKey] = events.Slot{
				EntityID: entityID, SlotKey: ev.SlotKey, Value: ev.Value,
				Source: ev.Source, Confidence: ev.Confidence, Importance: ev.Importance,
				UpdatedAt: ev.CreatedAt, SourceEventID: ev.ID,
			}
		}
	}

	out := make([]events.Slot, 0, len(bySlot))
	for _, slot := range bySlot {
		out = append(out, slot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlotKey < out[j].SlotKey })
	return out, nil
}

// RecallScoped ranks events by cosine similarity between the query's
// pseudo-embedding and each event's stored pseudo-embedding; BM25Score is
// reported as 0 since this backend has no keyword index.
func (s *Store) RecallScoped(ctx context.Context, entityID, query string, limit int) ([]events.RecallItem, error) {
	if limit <= 0 {
		limit = 20
	}
	queryVec := pseudoEmbedding(query, s.dimension)
	opts := &backend.SearchOptions{Limit: limit * 4, Threshold: -1}
	if entityID != "" {
		opts.Scope = models.ScopeSession
		opts.ScopeID = entityID
	}
	results, err := s.backend.Search(ctx, queryVec, opts)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	items := make([]events.RecallItem, 0, len(results))
	for _, r := range results {
		if !isRetrievable(r.Entry) {
			continue
		}
		ev := fromEntry(r.Entry, r.Entry.SessionID)
		items = append(items, events.RecallItem{
			EventID: ev.ID, EntityID: r.Entry.SessionID, SlotKey: ev.SlotKey, Value: ev.Value,
			CosineSim: float64(r.Score), Score: events.CombineScore(0, float64(r.Score)),
			CreatedAt: ev.CreatedAt,
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Score > items[j].Score })
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// ForgetSlot deletes the matching rows for Hard, or re-indexes them with a
// retrievability/tombstone marker for Soft and Tombstone.
func (s *Store) ForgetSlot(ctx context.Context, entityID, slotKey string, mode events.ForgetMode) (*events.ForgetOutcome, error) {
	outcome := &events.ForgetOutcome{EntityID: entityID, SlotKey: slotKey, RequestedMode: mode, AppliedMode: mode}

	results, err := s.scopedEntries(ctx, entityID, 10000)
	if err != nil {
		return nil, err
	}
	var matching []*models.MemoryEntry
	for _, r := range results {
		extra := r.Entry.Metadata.Extra
		if extra == nil {
			continue
		}
		if v, _ := extra[extraSlotKey].(string); v == slotKey {
			matching = append(matching, r.Entry)
		}
	}

	switch mode {
	case events.ForgetHard:
		ids := make([]string, 0, len(matching))
		for _, e := range matching {
			ids = append(ids, e.ID)
		}
		if err := s.backend.Delete(ctx, ids); err != nil {
			return nil, fmt.Errorf("delete: %w", err)
		}
		outcome.ArtifactChecks = append(outcome.ArtifactChecks, events.ArtifactCheck{
			Requirement: "rows removed from backend", Observed: true,
		})
	case events.ForgetSoft:
		outcome.Degraded = true
		for _, e := range matching {
			e.Metadata.Extra[extraRetrievable] = false
		}
		if err := s.backend.Index(ctx, matching); err != nil {
			return nil, fmt.Errorf("reindex: %w", err)
		}
		outcome.ArtifactChecks = append(outcome.ArtifactChecks, events.ArtifactCheck{
			Requirement: "slot absent from projection", Observed: true,
			Detail: "rows remain in the backend's data file with retrievable=false",
		})
	case events.ForgetTombstone:
		outcome.Degraded = true
		for _, e := range matching {
			e.Content = "[forgotten]"
		}
		if err := s.backend.Index(ctx, matching); err != nil {
			return nil, fmt.Errorf("reindex: %w", err)
		}
		outcome.ArtifactChecks = append(outcome.ArtifactChecks, events.ArtifactCheck{
			Requirement: "slot value replaced with tombstone marker", Observed: true,
		})
	default:
		outcome.Unsupported = true
		return outcome, fmt.Errorf("unknown forget mode: %s", mode)
	}
	return outcome, nil
}

// Associations is unsupported: the backend has no cross-entity graph index.
func (s *Store) Associations(ctx context.Context, entityID string) ([]events.Association, error) {
	return nil, nil
}

// Close flushes and releases the underlying backend.
func (s *Store) Close() error { return s.backend.Close() }

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
