package action

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestNoop_RecordsAuditAndReportsNotExecuted(t *testing.T) {
	dir := t.TempDir()
	op := NewNoop(dir)

	result, err := op.Execute(context.Background(), Intent{Kind: "send_message", Target: "#general"}, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Executed {
		t.Fatalf("expected Noop to never report executed=true")
	}

	entries, err := os.ReadDir(filepath.Join(dir, auditSubdir))
	if err != nil {
		t.Fatalf("read audit dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly 1 audit record, got %d", len(entries))
	}
}

func TestRequireVerdict_NilIsError(t *testing.T) {
	if err := RequireVerdict(nil); err == nil {
		t.Fatalf("expected an error for a nil verdict")
	}
}

func TestRequireVerdict_DeniedIsError(t *testing.T) {
	if err := RequireVerdict(&PolicyVerdict{Allowed: false, Reason: "tenant scope mismatch"}); err == nil {
		t.Fatalf("expected an error for a denied verdict")
	}
}

func TestRequireVerdict_AllowedPasses(t *testing.T) {
	if err := RequireVerdict(&PolicyVerdict{Allowed: true}); err != nil {
		t.Fatalf("expected no error for an allowed verdict, got %v", err)
	}
}
