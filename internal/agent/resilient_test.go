package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/haasonsaas/nexus/internal/agent/providers"
)

type flakyProvider struct {
	name    string
	calls   int
	failFor int
	err     error
}

func (f *flakyProvider) Name() string    { return f.name }
func (f *flakyProvider) Models() []Model { return nil }
func (f *flakyProvider) SupportsTools() bool { return false }
func (f *flakyProvider) Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	f.calls++
	if f.calls <= f.failFor {
		return nil, f.err
	}
	ch := make(chan *CompletionChunk, 1)
	ch <- &CompletionChunk{Done: true}
	close(ch)
	return ch, nil
}

func TestResilientProvider_RetriesTransientError(t *testing.T) {
	inner := &flakyProvider{name: "flaky", failFor: 1, err: &providers.ProviderError{Reason: providers.FailoverServerError}}
	rp := NewResilientProvider(inner, nil, ResilientConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond})

	ch, err := rp.Complete(context.Background(), &CompletionRequest{Model: "m"})
	if err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", inner.calls)
	}
	<-ch
}

func TestResilientProvider_NonRetryableFailsFast(t *testing.T) {
	inner := &flakyProvider{name: "flaky", failFor: 5, err: &providers.ProviderError{Reason: providers.FailoverAuth}}
	rp := NewResilientProvider(inner, nil, ResilientConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond})

	_, err := rp.Complete(context.Background(), &CompletionRequest{Model: "m"})
	if err == nil {
		t.Fatal("expected error")
	}
	if inner.calls != 1 {
		t.Fatalf("expected exactly 1 call for non-retryable error, got %d", inner.calls)
	}
}

func TestResilientProvider_Cooldown(t *testing.T) {
	inner := &flakyProvider{name: "flaky", failFor: 10, err: &providers.ProviderError{Reason: providers.FailoverRateLimit}}
	rp := NewResilientProvider(inner, nil, ResilientConfig{MaxRetries: 0, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond})

	_, err := rp.Complete(context.Background(), &CompletionRequest{Model: "m"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !rp.InCooldown() {
		t.Fatal("expected provider to be in cooldown after rate limit")
	}

	_, err = rp.Complete(context.Background(), &CompletionRequest{Model: "m"})
	if !errors.Is(err, err) {
		t.Fatal("sanity check")
	}
	if inner.calls != 1 {
		t.Fatalf("expected second call to be short-circuited by cooldown, got %d calls", inner.calls)
	}
}
