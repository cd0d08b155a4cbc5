package providers

import (
	"sync"
	"time"
)

// CooldownTracker records a cool-down window per provider after a rate-limit
// or server error response, so callers can skip a provider known to be
// failing instead of paying for another round trip.
type CooldownTracker struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

// NewCooldownTracker creates an empty tracker.
func NewCooldownTracker() *CooldownTracker {
	return &CooldownTracker{entries: make(map[string]time.Time)}
}

// Set puts the named provider into cooldown for the given duration. A
// non-positive duration clears any existing cooldown.
func (c *CooldownTracker) Set(provider string, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d <= 0 {
		delete(c.entries, provider)
		return
	}
	c.entries[provider] = time.Now().Add(d)
}

// InCooldown reports whether the provider is currently on cooldown. Expired
// entries are reaped lazily on read.
func (c *CooldownTracker) InCooldown(provider string) bool {
	return c.Remaining(provider) > 0
}

// Remaining returns how much cooldown time is left for the provider, or zero
// if it is not on cooldown.
func (c *CooldownTracker) Remaining(provider string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	expiresAt, ok := c.entries[provider]
	if !ok {
		return 0
	}
	remaining := time.Until(expiresAt)
	if remaining <= 0 {
		delete(c.entries, provider)
		return 0
	}
	return remaining
}

// Clear removes any cooldown for the provider.
func (c *CooldownTracker) Clear(provider string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, provider)
}

// CooldownForReason returns the cooldown duration to apply for a given
// failover reason. Non-retryable reasons get no cooldown since retrying
// inside the window would never help.
func CooldownForReason(reason FailoverReason) time.Duration {
	switch reason {
	case FailoverRateLimit:
		return 30 * time.Second
	case FailoverServerError:
		return 10 * time.Second
	case FailoverTimeout:
		return 5 * time.Second
	default:
		return 0
	}
}
