package agent

import (
	"context"
	"math/rand"
	"time"

	"github.com/haasonsaas/nexus/internal/agent/providers"
)

// ResilientConfig tunes the retry/cooldown behavior wrapped around a raw
// LLMProvider.
type ResilientConfig struct {
	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int

	// BaseDelay is the initial backoff delay before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the exponential backoff.
	MaxDelay time.Duration
}

// DefaultResilientConfig returns sane defaults for provider retry/cooldown.
func DefaultResilientConfig() ResilientConfig {
	return ResilientConfig{
		MaxRetries: 2,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   8 * time.Second,
	}
}

// ResilientProvider wraps an LLMProvider with a shared cooldown tracker and
// retry-with-backoff for transient failures, so every backend gets the same
// failure handling without duplicating it per implementation.
type ResilientProvider struct {
	inner    LLMProvider
	cooldown *providers.CooldownTracker
	config   ResilientConfig
}

var _ LLMProvider = (*ResilientProvider)(nil)

// NewResilientProvider wraps inner with shared cooldown tracking and retry.
// cooldown may be shared across multiple providers so a single tracker can
// gate an entire fallback chain.
func NewResilientProvider(inner LLMProvider, cooldown *providers.CooldownTracker, config ResilientConfig) *ResilientProvider {
	if cooldown == nil {
		cooldown = providers.NewCooldownTracker()
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = DefaultResilientConfig().BaseDelay
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = DefaultResilientConfig().MaxDelay
	}
	return &ResilientProvider{inner: inner, cooldown: cooldown, config: config}
}

// Name returns the wrapped provider's name.
func (p *ResilientProvider) Name() string { return p.inner.Name() }

// Models returns the wrapped provider's models.
func (p *ResilientProvider) Models() []Model { return p.inner.Models() }

// SupportsTools returns the wrapped provider's tool-call support.
func (p *ResilientProvider) SupportsTools() bool { return p.inner.SupportsTools() }

// InCooldown reports whether this provider is currently skipped due to a
// recent rate-limit or server-error response.
func (p *ResilientProvider) InCooldown() bool {
	return p.cooldown.InCooldown(p.inner.Name())
}

// Complete retries transient failures with exponential backoff and
// consults/updates the shared cooldown tracker around each attempt.
func (p *ResilientProvider) Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	if p.cooldown.InCooldown(p.inner.Name()) {
		return nil, &providers.ProviderError{
			Reason:   providers.FailoverRateLimit,
			Provider: p.inner.Name(),
			Model:    req.Model,
			Message:  "provider is in cooldown",
		}
	}

	var lastErr error
	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(p.config.BaseDelay, p.config.MaxDelay, attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		chunks, err := p.inner.Complete(ctx, req)
		if err == nil {
			p.cooldown.Clear(p.inner.Name())
			return chunks, nil
		}

		lastErr = err
		reason := providers.ClassifyError(err)
		if providerErr, ok := providers.GetProviderError(err); ok {
			reason = providerErr.Reason
		}
		if cd := providers.CooldownForReason(reason); cd > 0 {
			p.cooldown.Set(p.inner.Name(), cd)
		}
		if !reason.IsRetryable() {
			return nil, err
		}
	}

	return nil, lastErr
}

func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d > max {
			d = max
			break
		}
	}
	jitter := time.Duration(rand.Int63n(int64(d)/4 + 1))
	d += jitter
	if d > max {
		d = max
	}
	return d
}
