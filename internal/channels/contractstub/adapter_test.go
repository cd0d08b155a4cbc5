package contractstub

import (
	"context"
	"testing"

	"github.com/haasonsaas/nexus/pkg/models"
)

func TestNewAdapterRequiresChannelType(t *testing.T) {
	t.Parallel()

	if _, err := NewAdapter(Config{}); err == nil {
		t.Fatal("expected error for empty channel type")
	}
}

func TestAdapterLifecycleAndSend(t *testing.T) {
	t.Parallel()

	a, err := NewAdapter(Config{ChannelType: models.ChannelDiscord, Label: "discord"})
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	ctx := context.Background()

	if err := a.Send(ctx, &models.Message{}); err == nil {
		t.Fatal("expected send before start to fail")
	}

	if err := a.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !a.Status().Connected {
		t.Fatal("expected connected status after start")
	}
	if err := a.Send(ctx, &models.Message{}); err != nil {
		t.Fatalf("send after start: %v", err)
	}

	health := a.HealthCheck(ctx)
	if !health.Healthy {
		t.Fatalf("expected healthy after start, got %+v", health)
	}

	if err := a.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if a.Status().Connected {
		t.Fatal("expected disconnected status after stop")
	}
	if _, ok := <-a.Messages(); ok {
		t.Fatal("expected inbound channel closed after stop")
	}
}

func TestAdapterTypeMatchesConfig(t *testing.T) {
	t.Parallel()

	a, err := NewAdapter(Config{ChannelType: models.ChannelSlack})
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	if a.Type() != models.ChannelSlack {
		t.Fatalf("Type() = %s, want %s", a.Type(), models.ChannelSlack)
	}
}
