package persona

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/haasonsaas/nexus/internal/security"
)

// ReconcileOutcome names which branch of the startup reconciliation matrix
// was taken, for logging.
type ReconcileOutcome string

const (
	// ReconcileSeeded means neither backend nor mirror had a state; a
	// minimal header was seeded into both.
	ReconcileSeeded ReconcileOutcome = "seeded"
	// ReconcileBackendAuthoritative means the backend had a state; the
	// mirror was overwritten from it regardless of its own content.
	ReconcileBackendAuthoritative ReconcileOutcome = "backend_authoritative"
	// ReconcileIngestedFromMirror means only the mirror had a state; it was
	// ingested into the backend and the mirror rewritten canonically.
	ReconcileIngestedFromMirror ReconcileOutcome = "ingested_from_mirror"
)

// Reconciler composes the canonical Store with its disk Mirror and applies
// the startup reconciliation rules: the backend is always authoritative
// once it holds a state, and every writeback writes the backend before the
// mirror.
type Reconciler struct {
	store  *Store
	mirror *Mirror

	mu      sync.Mutex
	current *StateHeader // cached snapshot for the writeback guard's immutable-triple check
}

// NewReconciler builds a Reconciler over an already-constructed Store and
// Mirror pair.
func NewReconciler(store *Store, mirror *Mirror) *Reconciler {
	return &Reconciler{store: store, mirror: mirror}
}

// Reconcile runs once at startup and returns the resulting canonical state
// header plus which branch was taken.
func (r *Reconciler) Reconcile(ctx context.Context, identityDoc, safetyPosture string) (*StateHeader, ReconcileOutcome, error) {
	backendState, err := r.store.Get(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("read backend state: %w", err)
	}
	mirrorState, err := r.mirror.Read()
	if err != nil {
		return nil, "", fmt.Errorf("read mirror state: %w", err)
	}

	switch {
	case backendState == nil && mirrorState == nil:
		seed := SeedStateHeader(identityDoc, safetyPosture)
		if err := r.store.Put(ctx, seed); err != nil {
			return nil, "", fmt.Errorf("seed backend state: %w", err)
		}
		if err := r.mirror.Write(seed); err != nil {
			return nil, "", fmt.Errorf("seed mirror state: %w", err)
		}
		r.setCurrent(seed)
		return &seed, ReconcileSeeded, nil

	case backendState != nil:
		if err := r.mirror.Write(*backendState); err != nil {
			return nil, "", fmt.Errorf("overwrite mirror from backend: %w", err)
		}
		r.setCurrent(*backendState)
		return backendState, ReconcileBackendAuthoritative, nil

	default: // only the mirror has a state
		if err := r.store.Put(ctx, *mirrorState); err != nil {
			return nil, "", fmt.Errorf("ingest mirror into backend: %w", err)
		}
		if err := r.mirror.Write(*mirrorState); err != nil {
			return nil, "", fmt.Errorf("rewrite mirror canonically: %w", err)
		}
		r.setCurrent(*mirrorState)
		return mirrorState, ReconcileIngestedFromMirror, nil
	}
}

func (r *Reconciler) setCurrent(header StateHeader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = &header
}

func (r *Reconciler) snapshot() (StateHeader, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return StateHeader{}, false
	}
	return *r.current, true
}

// Writeback applies a state header mutation that has already been
// validated: backend first, then mirror, per the continuity contract. It is
// used internally by Reconcile and by ApplyWriteback once a payload has
// cleared the guard; untrusted payloads must go through ApplyWriteback
// instead of calling Writeback directly.
func (r *Reconciler) Writeback(ctx context.Context, header StateHeader) error {
	if err := r.store.Put(ctx, header); err != nil {
		return fmt.Errorf("write backend state: %w", err)
	}
	if err := r.mirror.Write(header); err != nil {
		return fmt.Errorf("write mirror state: %w", err)
	}
	r.setCurrent(header)
	return nil
}

// ApplyWriteback is the guarded entry point for an untrusted persona
// writeback payload (e.g. one a tool call produced from model output). It
// validates the payload against the guard's current immutable snapshot
// before touching any store, and returns the rejection verdict unapplied if
// validation fails. Reconcile (or an earlier ApplyWriteback) must have run
// first so a snapshot is available.
func (r *Reconciler) ApplyWriteback(ctx context.Context, payload security.WritebackPayload) (security.WritebackVerdict, error) {
	current, ok := r.snapshot()
	if !ok {
		return security.WritebackVerdict{}, fmt.Errorf("persona: no current state snapshot; call Reconcile before ApplyWriteback")
	}

	verdict := security.ValidateWriteback(payload, security.ImmutableSnapshot{
		SchemaVersion:          current.SchemaVersion,
		IdentityPrinciplesHash: current.IdentityPrinciplesHash,
		SafetyPosture:          current.SafetyPosture,
	})
	if !verdict.Allowed {
		return verdict, nil
	}

	if sh := payload.StateHeader; sh != nil {
		updated := current
		updated.CurrentObjective = sh.CurrentObjective
		updated.OpenLoops = sh.OpenLoops
		updated.NextActions = sh.NextActions
		updated.Commitments = sh.Commitments
		updated.RecentContextSummary = sh.RecentContextSummary
		updated.LastUpdatedAt = time.Now()
		if err := r.Writeback(ctx, updated); err != nil {
			return security.WritebackVerdict{}, fmt.Errorf("apply state_header writeback: %w", err)
		}
	}

	for _, note := range payload.MemoryAppend {
		if err := r.store.AppendMemoryNote(ctx, note); err != nil {
			return security.WritebackVerdict{}, fmt.Errorf("apply memory_append writeback: %w", err)
		}
	}

	for _, task := range payload.SelfTasks {
		if err := r.store.PutSelfTask(ctx, task); err != nil {
			return security.WritebackVerdict{}, fmt.Errorf("apply self_tasks writeback: %w", err)
		}
	}

	if payload.StyleProfile != nil {
		if err := r.store.PutStyleProfile(ctx, *payload.StyleProfile); err != nil {
			return security.WritebackVerdict{}, fmt.Errorf("apply style_profile writeback: %w", err)
		}
	}

	return verdict, nil
}
