// Package sqlitestore is the canonical memory event store: an append-only
// table plus a slot projection and an FTS5 index for keyword recall.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/haasonsaas/nexus/internal/memory/events"
	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// Store implements events.Store against a SQLite database.
type Store struct {
	db *sql.DB
}

// Config configures the canonical SQLite event store.
type Config struct {
	// Path is the SQLite database file path, or ":memory:" for an
	// in-process store with no persistence.
	Path string
}

var _ events.Store = (*Store)(nil)

// New opens (creating if necessary) a SQLite event store at cfg.Path.
func New(cfg Config) (*Store, error) {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS memory_events (
			id TEXT PRIMARY KEY,
			entity_id TEXT NOT NULL,
			slot_key TEXT NOT NULL,
			value TEXT NOT NULL,
			source TEXT NOT NULL,
			confidence REAL NOT NULL,
			importance REAL NOT NULL,
			evidence TEXT,
			tags TEXT,
			created_at DATETIME NOT NULL,
			forgotten INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_events_entity_slot ON memory_events(entity_id, slot_key)`,
		`CREATE TABLE IF NOT EXISTS slots (
			entity_id TEXT NOT NULL,
			slot_key TEXT NOT NULL,
			value TEXT NOT NULL,
			source TEXT NOT NULL,
			confidence REAL NOT NULL,
			importance REAL NOT NULL,
			updated_at DATETIME NOT NULL,
			contradicted INTEGER NOT NULL DEFAULT 0,
			source_event_id TEXT,
			PRIMARY KEY (entity_id, slot_key)
		)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS memory_events_fts USING fts5(
			value, entity_id UNINDEXED, event_id UNINDEXED
		)`,
		`CREATE TABLE IF NOT EXISTS associations (
			from_entity_id TEXT NOT NULL,
			to_entity_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			weight REAL NOT NULL,
			created_at DATETIME NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// Capability reports the canonical backend's support: hard, soft, and
// tombstone forget are all supported since the underlying tables permit
// real deletion and value replacement.
func (s *Store) Capability() events.Capability {
	return events.Capability{
		Name:                  "sqlite",
		SupportsHardForget:    true,
		SupportsSoftForget:    true,
		SupportsTombstone:     true,
		SupportsVectorRecall:  false,
		SupportsKeywordRecall: true,
	}
}

// AppendEvent validates and inserts a new event row, updates the FTS
// index, and re-runs consolidation against the slot's current value.
func (s *Store) AppendEvent(ctx context.Context, input events.EventInput) (*events.Event, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	confidence := clamp01(input.Confidence)
	importance := clamp01(input.Importance)

	ev := &events.Event{
		ID:         uuid.NewString(),
		EntityID:   input.EntityID,
		SlotKey:    input.SlotKey,
		Value:      input.Value,
		Source:     input.Source,
		Confidence: confidence,
		Importance: importance,
		Evidence:   input.Evidence,
		Tags:       input.Tags,
		CreatedAt:  time.Now(),
	}

	tagsJSON, err := json.Marshal(ev.Tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO memory_events (id, entity_id, slot_key, value, source, confidence, importance, evidence, tags, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.EntityID, ev.SlotKey, ev.Value, string(ev.Source), ev.Confidence, ev.Importance, ev.Evidence, string(tagsJSON), ev.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO memory_events_fts (value, entity_id, event_id) VALUES (?, ?, ?)`,
		ev.Value, ev.EntityID, ev.ID,
	); err != nil {
		return nil, fmt.Errorf("index event: %w", err)
	}

	existing, err := s.getSlotTx(ctx, tx, input.EntityID, input.SlotKey)
	if err != nil {
		return nil, err
	}

	disposition := events.Consolidate(existing, input)
	if err := s.applyDisposition(ctx, tx, existing, ev, disposition); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ev, nil
}

func (s *Store) applyDisposition(ctx context.Context, tx *sql.Tx, existing *events.Slot, ev *events.Event, disposition events.Disposition) error {
	switch disposition {
	case events.DispositionDiscard:
		return nil
	case events.DispositionMarkContradiction:
		_, err := tx.ExecContext(ctx,
			`UPDATE slots SET contradicted = 1, updated_at = ? WHERE entity_id = ? AND slot_key = ?`,
			time.Now(), ev.EntityID, ev.SlotKey,
		)
		return err
	case events.DispositionMerge:
		merged := ev.Value
		if existing != nil && !strings.Contains(ev.Value, existing.Value) {
			merged = existing.Value + "; " + ev.Value
		}
		return s.upsertSlot(ctx, tx, ev.EntityID, ev.SlotKey, merged, ev.Source, ev.Confidence, ev.Importance, ev.ID)
	default: // DispositionKeepLatest
		return s.upsertSlot(ctx, tx, ev.EntityID, ev.SlotKey, ev.Value, ev.Source, ev.Confidence, ev.Importance, ev.ID)
	}
}

func (s *Store) upsertSlot(ctx context.Context, tx *sql.Tx, entityID, slotKey, value string, source events.Source, confidence, importance float64, sourceEventID string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO slots (entity_id, slot_key, value, source, confidence, importance, updated_at, contradicted, source_event_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)
		 ON CONFLICT(entity_id, slot_key) DO UPDATE SET
			value = excluded.value,
			source = excluded.source,
			confidence = excluded.confidence,
			importance = excluded.importance,
			updated_at = excluded.updated_at,
			contradicted = 0,
			source_event_id = excluded.source_event_id`,
		entityID, slotKey, value, string(source), confidence, importance, time.Now(), sourceEventID,
	)
	return err
}

// GetSlot returns the current projection for (entityID, slotKey).
func (s *Store) GetSlot(ctx context.Context, entityID, slotKey string) (*events.Slot, error) {
	return s.getSlotTx(ctx, nil, entityID, slotKey)
}

func (s *Store) getSlotTx(ctx context.Context, tx *sql.Tx, entityID, slotKey string) (*events.Slot, error) {
	query := `SELECT entity_id, slot_key, value, source, confidence, importance, updated_at, contradicted, source_event_id
		FROM slots WHERE entity_id = ? AND slot_key = ?`
	var row *sql.Row
	if tx != nil {
		row = tx.QueryRowContext(ctx, query, entityID, slotKey)
	} else {
		row = s.db.QueryRowContext(ctx, query, entityID, slotKey)
	}

	var slot events.Slot
	var source string
	var contradicted int
	var sourceEventID sql.NullString
	if err := row.Scan(&slot.EntityID, &slot.SlotKey, &slot.Value, &source, &slot.Confidence, &slot.Importance, &slot.UpdatedAt, &contradicted, &sourceEventID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	slot.Source = events.Source(source)
	slot.Contradicted = contradicted != 0
	slot.SourceEventID = sourceEventID.String
	return &slot, nil
}

// ListSlots returns every current slot for entityID.
func (s *Store) ListSlots(ctx context.Context, entityID string) ([]events.Slot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entity_id, slot_key, value, source, confidence, importance, updated_at, contradicted, source_event_id
		 FROM slots WHERE entity_id = ? ORDER BY slot_key`, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []events.Slot
	for rows.Next() {
		var slot events.Slot
		var source string
		var contradicted int
		var sourceEventID sql.NullString
		if err := rows.Scan(&slot.EntityID, &slot.SlotKey, &slot.Value, &source, &slot.Confidence, &slot.Importance, &slot.UpdatedAt, &contradicted, &sourceEventID); err != nil {
			return nil, err
		}
		slot.Source = events.Source(source)
		slot.Contradicted = contradicted != 0
		slot.SourceEventID = sourceEventID.String
		result = append(result, slot)
	}
	return result, rows.Err()
}

// RecallScoped runs an FTS5 BM25 keyword search, optionally scoped to an
// entity, and maps bm25(row) into the shared combined score with cosine
// fixed at 0 since this backend has no embeddings of its own.
func (s *Store) RecallScoped(ctx context.Context, entityID, query string, limit int) ([]events.RecallItem, error) {
	if limit <= 0 {
		limit = 20
	}
	sqlQuery := `SELECT me.id, me.entity_id, me.slot_key, me.value, me.created_at, bm25(memory_events_fts) AS rank
		FROM memory_events_fts
		JOIN memory_events me ON me.id = memory_events_fts.event_id
		WHERE memory_events_fts MATCH ? AND me.forgotten = 0`
	args := []any{query}
	if entityID != "" {
		sqlQuery += " AND me.entity_id = ?"
		args = append(args, entityID)
	}
	sqlQuery += " ORDER BY rank LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []events.RecallItem
	for rows.Next() {
		var item events.RecallItem
		var rank float64
		if err := rows.Scan(&item.EventID, &item.EntityID, &item.SlotKey, &item.Value, &item.CreatedAt, &rank); err != nil {
			return nil, err
		}
		// bm25() in SQLite FTS5 returns a negative-is-better score; flip
		// sign so larger is better before feeding the shared combiner.
		item.BM25Score = -rank
		item.CosineSim = 0
		item.Score = events.CombineScore(item.BM25Score, item.CosineSim)
		results = append(results, item)
	}
	return results, rows.Err()
}

// ForgetSlot applies the requested forget mode. Soft forget marks matching
// events forgotten without deleting them; hard forget deletes the rows and
// their FTS entries; tombstone replaces the slot value with a marker.
func (s *Store) ForgetSlot(ctx context.Context, entityID, slotKey string, mode events.ForgetMode) (*events.ForgetOutcome, error) {
	outcome := &events.ForgetOutcome{
		EntityID:      entityID,
		SlotKey:       slotKey,
		RequestedMode: mode,
		AppliedMode:   mode,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	switch mode {
	case events.ForgetHard:
		ids, err := s.eventIDsForSlot(ctx, tx, entityID, slotKey)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx, `DELETE FROM memory_events_fts WHERE event_id = ?`, id); err != nil {
				return nil, err
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM memory_events WHERE entity_id = ? AND slot_key = ?`, entityID, slotKey); err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM slots WHERE entity_id = ? AND slot_key = ?`, entityID, slotKey); err != nil {
			return nil, err
		}
		outcome.ArtifactChecks = append(outcome.ArtifactChecks, events.ArtifactCheck{
			Requirement: "slot absent from projection", Observed: true,
		})
	case events.ForgetSoft:
		if _, err := tx.ExecContext(ctx, `UPDATE memory_events SET forgotten = 1 WHERE entity_id = ? AND slot_key = ?`, entityID, slotKey); err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM slots WHERE entity_id = ? AND slot_key = ?`, entityID, slotKey); err != nil {
			return nil, err
		}
		outcome.ArtifactChecks = append(outcome.ArtifactChecks, events.ArtifactCheck{
			Requirement: "slot absent from projection", Observed: true,
		})
	case events.ForgetTombstone:
		if err := s.upsertSlot(ctx, tx, entityID, slotKey, "[forgotten]", events.SourceExplicitUser, 1, 0, ""); err != nil {
			return nil, err
		}
		outcome.ArtifactChecks = append(outcome.ArtifactChecks, events.ArtifactCheck{
			Requirement: "slot value replaced with tombstone marker", Observed: true,
		})
	default:
		outcome.Unsupported = true
		return outcome, fmt.Errorf("unknown forget mode: %s", mode)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return outcome, nil
}

func (s *Store) eventIDsForSlot(ctx context.Context, tx *sql.Tx, entityID, slotKey string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM memory_events WHERE entity_id = ? AND slot_key = ?`, entityID, slotKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Associations returns entities linked to entityID through recorded co-occurrence.
func (s *Store) Associations(ctx context.Context, entityID string) ([]events.Association, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT from_entity_id, to_entity_id, kind, weight, created_at FROM associations
		 WHERE from_entity_id = ? OR to_entity_id = ? ORDER BY weight DESC`, entityID, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []events.Association
	for rows.Next() {
		var a events.Association
		if err := rows.Scan(&a.FromEntityID, &a.ToEntityID, &a.Kind, &a.Weight, &a.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
