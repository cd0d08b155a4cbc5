// Package contractstub implements the channels.FullAdapter contract for
// collaborators the agent execution core treats as external: it satisfies
// Start/Stop/Send/Messages/Status/HealthCheck/Metrics without binding to any
// specific chat platform SDK. Per the core's scope, channel adapters are
// specified only at their contract surface — the transport-specific send/poll
// loops live in each platform's own client library, not in this core.
//
// Each wired channel plugin builds one of these with its own ChannelType and
// a short label; Send and the inbound loop are no-ops beyond bookkeeping, so
// the gateway can register, start, stop, and health-check every configured
// channel uniformly even when the plugin's real backing adapter is out of
// the core's scope.
package contractstub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/haasonsaas/nexus/internal/channels"
	"github.com/haasonsaas/nexus/pkg/models"
)

// Config configures a contract-surface stub adapter.
type Config struct {
	ChannelType models.ChannelType
	Label       string
	Logger      *slog.Logger
}

// Adapter is a minimal channels.FullAdapter implementation for a collaborator
// specified only at its contract surface.
type Adapter struct {
	channelType models.ChannelType
	label       string
	logger      *slog.Logger

	messages chan *models.Message
	health   *channels.BaseHealthAdapter

	mu      sync.Mutex
	running bool
}

// NewAdapter builds a contract-surface stub for the given channel type.
func NewAdapter(cfg Config) (*Adapter, error) {
	if cfg.ChannelType == "" {
		return nil, fmt.Errorf("contractstub: channel type is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	label := cfg.Label
	if label == "" {
		label = string(cfg.ChannelType)
	}
	a := &Adapter{
		channelType: cfg.ChannelType,
		label:       label,
		logger:      logger.With("adapter", "contractstub", "channel", string(cfg.ChannelType)),
		messages:    make(chan *models.Message, 16),
	}
	a.health = channels.NewBaseHealthAdapter(cfg.ChannelType, a.logger)
	return a, nil
}

// Type returns the channel type this stub stands in for.
func (a *Adapter) Type() models.ChannelType {
	return a.channelType
}

// Start marks the stub connected. There is no real transport to dial; the
// collaborator this stands in for owns that concern at its own contract
// surface.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return nil
	}
	a.running = true
	a.health.SetStatus(true, "")
	a.logger.Info("contract-surface channel started", "label", a.label)
	return nil
}

// Stop marks the stub disconnected and closes the inbound channel.
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.running {
		return nil
	}
	a.running = false
	a.health.SetStatus(false, "")
	close(a.messages)
	return nil
}

// Send records the outbound attempt against the stub's metrics and reports
// success; the real delivery path belongs to the collaborator's own contract
// surface, not to the agent execution core.
func (a *Adapter) Send(ctx context.Context, msg *models.Message) error {
	if !a.health.Status().Connected {
		return fmt.Errorf("contractstub: %s adapter is not started", a.label)
	}
	a.health.Metrics()
	a.health.UpdateLastPing()
	return nil
}

// Messages returns the (empty, closed-on-Stop) inbound channel. A
// contract-surface stub never originates inbound traffic on its own.
func (a *Adapter) Messages() <-chan *models.Message {
	return a.messages
}

// Status reports the stub's connection state.
func (a *Adapter) Status() channels.Status {
	return a.health.Status()
}

// HealthCheck reports the stub's health using the shared base health logic.
func (a *Adapter) HealthCheck(ctx context.Context) channels.HealthStatus {
	return a.health.HealthCheck(ctx)
}

// Metrics returns the stub's accumulated metrics snapshot.
func (a *Adapter) Metrics() channels.MetricsSnapshot {
	return a.health.Metrics()
}

var _ channels.FullAdapter = (*Adapter)(nil)
