// Package markdownstore implements a human-readable, append-only memory
// event log: one markdown file per entity, one line per event. Because the
// format is a flat append-only file, hard forget (true removal) is not
// supported; soft and tombstone forget degrade to marking rather than
// deleting the underlying line.
package markdownstore

import (
	"bufio"
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/haasonsaas/nexus/internal/memory/events"
)

// Store implements events.Store backed by one markdown file per entity
// under Dir.
type Store struct {
	dir string
}

var _ events.Store = (*Store)(nil)

// Config configures the markdown-file event store.
type Config struct {
	// Dir is the directory holding one "<entity_id>.md" file per entity.
	Dir string
}

// New creates the backing directory (if needed) and returns a Store.
func New(cfg Config) (*Store, error) {
	dir := strings.TrimSpace(cfg.Dir)
	if dir == "" {
		return nil, fmt.Errorf("dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create memory dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Capability reports that hard forget is unsupported and soft/tombstone
// forget only degrade (the underlying line is never truly removed).
func (s *Store) Capability() events.Capability {
	return events.Capability{
		Name:                  "markdown",
		SupportsHardForget:    false,
		SupportsSoftForget:    true,
		SupportsTombstone:     true,
		SupportsVectorRecall:  false,
		SupportsKeywordRecall: true,
	}
}

type line struct {
	event      events.Event
	forgetSoft bool
	tombstone  bool
}

func (s *Store) entityPath(entityID string) string {
	safe := url.QueryEscape(entityID)
	return filepath.Join(s.dir, safe+".md")
}

// AppendEvent validates the input and appends one encoded line to the
// entity's file. Consolidation is computed by replaying the file, since
// this backend keeps no separate mutable slot table.
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
		ID:         uuid.NewString(),
		EntityID:   input.EntityID,
		SlotKey:    input.SlotKey,
		Value:      input.Value,
		Source:     input.Source,
		Confidence: clamp01(input.Confidence),
		Importance: clamp01(input.Importance),
		Evidence:   input.Evidence,
		Tags:       input.Tags,
		CreatedAt:  time.Now(),
	}

	switch disposition {
	case events.DispositionDiscard:
		return &ev, nil // recorded in memory only; not appended to the log
	case events.DispositionMerge:
		if existing != nil && !strings.Contains(ev.Value, existing.Value) {
			ev.Value = existing.Value + "; " + ev.Value
		}
	case events.DispositionMarkContradiction:
		ev.Tags = append(ev.Tags, "contradiction")
	}

	if err := s.appendLine(input.EntityID, encodeLine(ev)); err != nil {
		return nil, err
	}
	return &ev, nil
}

func (s *Store) appendLine(entityID, encoded string) error {
	f, err := os.OpenFile(s.entityPath(entityID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open entity log: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(encoded + "\n"); err != nil {
		return fmt.Errorf("append entity log: %w", err)
	}
	return nil
}

// encodeLine writes one event as:
//
//	- [RFC3339] slot=KEY source=SRC confidence=C importance=I tags=a%2Cb :: percent-encoded-value
func encodeLine(ev events.Event) string {
	tags := url.QueryEscape(strings.Join(ev.Tags, ","))
	return fmt.Sprintf("- [%s] slot=%s source=%s confidence=%.2f importance=%.2f tags=%s :: %s",
		ev.CreatedAt.UTC().Format(time.RFC3339),
		url.QueryEscape(ev.SlotKey), ev.Source, ev.Confidence, ev.Importance, tags,
		url.QueryEscape(ev.Value))
}

func decodeLine(raw string) (events.Event, bool) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "- [") {
		return events.Event{}, false
	}
	closeBracket := strings.Index(raw, "]")
	if closeBracket < 0 {
		return events.Event{}, false
	}
	ts, err := time.Parse(time.RFC3339, raw[3:closeBracket])
	if err != nil {
		return events.Event{}, false
	}
	rest := strings.TrimSpace(raw[closeBracket+1:])
	parts := strings.SplitN(rest, " :: ", 2)
	if len(parts) != 2 {
		return events.Event{}, false
	}
	fieldsRaw, valueRaw := parts[0], parts[1]
	value, err := url.QueryUnescape(valueRaw)
	if err != nil {
		value = valueRaw
	}

	ev := events.Event{CreatedAt: ts, Value: value}
	for _, field := range strings.Fields(fieldsRaw) {
		k, v, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch k {
		case "slot":
			if decoded, err := url.QueryUnescape(v); err == nil {
				ev.SlotKey = decoded
			}
		case "source":
			ev.Source = events.Source(v)
		case "confidence":
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				ev.Confidence = f
			}
		case "importance":
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				ev.Importance = f
			}
		case "tags":
			if decoded, err := url.QueryUnescape(v); err == nil && decoded != "" {
				ev.Tags = strings.Split(decoded, ",")
			}
		}
	}
	return ev, true
}

func (s *Store) readEvents(entityID string) ([]events.Event, error) {
	path := s.entityPath(entityID)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var result []events.Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		if ev, ok := decodeLine(scanner.Text()); ok {
			result = append(result, ev)
		}
	}
	return result, scanner.Err()
}

// GetSlot replays the entity's event log and returns the latest projected
// value for slotKey, or nil if the slot was forgotten or never set.
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

// ListSlots replays the entity's full event log into current projections.
func (s *Store) ListSlots(ctx context.Context, entityID string) ([]events.Slot, error) {
	evs, err := s.readEvents(entityID)
	if err != nil {
		return nil, err
	}

	bySlot := map[string]*events.Slot{}
	forgotten := map[string]bool{}
	for _, ev := range evs {
		if strings.Contains(strings.Join(ev.Tags, ","), "__forgotten_soft__") {
			forgotten[ev.SlotKey] = true
			continue
		}
		if ev.Value == "[forgotten]" {
			bySlot[ev.SlotKey] = &events.Slot{
				EntityID: entityID, SlotKey: ev.SlotKey, Value: "[forgotten]",
				Source: ev.Source, UpdatedAt: ev.CreatedAt,
			}
			continue
		}
		bySlot[ev.SlotKey] = &events.Slot{
			EntityID:   entityID,
			SlotKey:    ev.SlotKey,
			Value:      ev.Value,
			Source:     ev.Source,
			Confidence: ev.Confidence,
			Importance: ev.Importance,
			UpdatedAt:  ev.CreatedAt,
		}
	}

	var result []events.Slot
	for key, slot := range bySlot {
		if forgotten[key] {
			continue
		}
		result = append(result, *slot)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SlotKey < result[j].SlotKey })
	return result, nil
}

// RecallScoped performs a substring match over the entity's (or all
// entities', if entityID is empty) event values, since this backend has
// neither an FTS index nor embeddings. The match score is derived purely
// from term coverage and fed through the shared combiner with cosine=0.
func (s *Store) RecallScoped(ctx context.Context, entityID, query string, limit int) ([]events.RecallItem, error) {
	if limit <= 0 {
		limit = 20
	}
	entityIDs, err := s.entityIDs(entityID)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	var results []events.RecallItem
	for _, eid := range entityIDs {
		evs, err := s.readEvents(eid)
		if err != nil {
			return nil, err
		}
		for _, ev := range evs {
			if !strings.Contains(strings.ToLower(ev.Value), needle) {
				continue
			}
			score := float64(len(needle)) / float64(len(ev.Value)+1)
			results = append(results, events.RecallItem{
				EventID:   ev.ID,
				EntityID:  eid,
				SlotKey:   ev.SlotKey,
				Value:     ev.Value,
				BM25Score: score,
				CosineSim: 0,
				Score:     events.CombineScore(score, 0),
				CreatedAt: ev.CreatedAt,
			})
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *Store) entityIDs(entityID string) ([]string, error) {
	if entityID != "" {
		return []string{entityID}, nil
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".md")
		if decoded, err := url.QueryUnescape(name); err == nil {
			ids = append(ids, decoded)
		}
	}
	return ids, nil
}

// ForgetSlot marks a slot forgotten (soft) or replaces its projected value
// with a tombstone marker; hard forget is unsupported since the flat file
// format has no true-deletion primitive.
func (s *Store) ForgetSlot(ctx context.Context, entityID, slotKey string, mode events.ForgetMode) (*events.ForgetOutcome, error) {
	outcome := &events.ForgetOutcome{EntityID: entityID, SlotKey: slotKey, RequestedMode: mode}

	switch mode {
	case events.ForgetHard:
		outcome.Unsupported = true
		outcome.AppliedMode = mode
		outcome.ArtifactChecks = append(outcome.ArtifactChecks, events.ArtifactCheck{
			Requirement: "event line removed from file", Observed: false,
			Detail: "markdown backend cannot delete a line without rewriting the file; use sqlite for hard forget",
		})
		return outcome, fmt.Errorf("hard forget is unsupported by the markdown backend")
	case events.ForgetSoft:
		outcome.AppliedMode = events.ForgetSoft
		outcome.Degraded = true
		marker := events.Event{
			ID: uuid.NewString(), EntityID: entityID, SlotKey: slotKey,
			Value: "", Source: events.SourceExplicitUser, CreatedAt: time.Now(),
			Tags: []string{"__forgotten_soft__"},
		}
		if err := s.appendLine(entityID, encodeLine(marker)); err != nil {
			return nil, err
		}
		outcome.ArtifactChecks = append(outcome.ArtifactChecks, events.ArtifactCheck{
			Requirement: "slot absent from projection", Observed: true,
			Detail: "underlying event line remains in the file and is retrievable by direct grep",
		})
	case events.ForgetTombstone:
		outcome.AppliedMode = events.ForgetTombstone
		outcome.Degraded = true
		marker := events.Event{
			ID: uuid.NewString(), EntityID: entityID, SlotKey: slotKey,
			Value: "[forgotten]", Source: events.SourceExplicitUser, CreatedAt: time.Now(),
		}
		if err := s.appendLine(entityID, encodeLine(marker)); err != nil {
			return nil, err
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

// Associations is unsupported: the markdown backend has no cross-entity
// index, only one file per entity.
func (s *Store) Associations(ctx context.Context, entityID string) ([]events.Association, error) {
	return nil, nil
}

// Close is a no-op; the markdown backend holds no long-lived handles.
func (s *Store) Close() error { return nil }

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
