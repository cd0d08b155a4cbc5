package action

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// auditSubdir is relative to the workspace root, matching the other
// dotfile-prefixed directories the agent keeps alongside its bootstrap
// markdown files.
const auditSubdir = ".asteroniris/action_intents"

// Noop is the default Operator: it never performs a side effect, only
// records that one was requested, so a deployment with no operator wired
// in still leaves an audit trail instead of silently dropping intents.
type Noop struct {
	workspaceDir string
}

var _ Operator = (*Noop)(nil)

// NewNoop roots the audit record directory under workspaceDir.
func NewNoop(workspaceDir string) *Noop {
	return &Noop{workspaceDir: workspaceDir}
}

type auditRecord struct {
	ID         string         `json:"id"`
	Kind       string         `json:"kind"`
	Target     string         `json:"target"`
	Params     map[string]any `json:"params,omitempty"`
	Executed   bool           `json:"executed"`
	RecordedAt time.Time      `json:"recorded_at"`
}

// Execute ignores any verdict (the Noop operator never executes anything)
// and writes one JSON audit record per intent.
func (n *Noop) Execute(ctx context.Context, intent Intent, verdict *PolicyVerdict) (*Result, error) {
	dir := filepath.Join(n.workspaceDir, auditSubdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create action intent audit dir: %w", err)
	}

	record := auditRecord{
		ID: uuid.NewString(), Kind: intent.Kind, Target: intent.Target,
		Params: intent.Params, Executed: false, RecordedAt: time.Now(),
	}
	encoded, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode action intent record: %w", err)
	}

	path := filepath.Join(dir, record.ID+".json")
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return nil, fmt.Errorf("write action intent record: %w", err)
	}

	return &Result{Executed: false, Detail: "recorded intent; no operator configured to execute it"}, nil
}
