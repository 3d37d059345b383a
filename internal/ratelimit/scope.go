package ratelimit

import (
	"fmt"
	"time"
)

// Scope categorizes a request for rate limiting purposes.
// Different scopes can have different rate limits applied.
type Scope string

const (
	// ScopeGlobal applies to every rate limited operation.
	ScopeGlobal Scope = "global"
	// ScopeNonce applies to nonce issuance.
	ScopeNonce Scope = "nonce"
	// ScopeAccount applies to account creation.
	ScopeAccount Scope = "account"
	// ScopeFinalize applies to order finalization.
	ScopeFinalize Scope = "finalize"
)

// LimitConfig is one window and the number of requests allowed within it.
type LimitConfig struct {
	Window time.Duration
	Max    uint32
}

// Policy maps scopes to the limits enforced for them.
type Policy struct {
	Limits map[Scope][]LimitConfig
}

// DefaultPolicy returns the limits used when none are configured.
func DefaultPolicy() *Policy {
	return &Policy{
		Limits: map[Scope][]LimitConfig{
			ScopeGlobal: {
				{Window: time.Minute, Max: 300},
			},
			ScopeNonce: {
				{Window: time.Minute, Max: 120},
			},
			ScopeAccount: {
				{Window: time.Hour, Max: 10},
				{Window: 3 * time.Hour, Max: 20},
			},
			ScopeFinalize: {
				{Window: time.Hour, Max: 50},
			},
		},
	}
}

// MaxWindow returns the longest window in the policy.
func (p *Policy) MaxWindow() time.Duration {
	var longest time.Duration

	for _, limits := range p.Limits {
		for _, limit := range limits {
			if limit.Window > longest {
				longest = limit.Window
			}
		}
	}

	return longest
}

// Validate checks that every limit is usable with a repository accepting windows up to maxWindow.
func (p *Policy) Validate(maxWindow time.Duration) error {
	for scope, limits := range p.Limits {
		for _, limit := range limits {
			if limit.Window <= 0 {
				return fmt.Errorf("ratelimit: scope %s: window must be positive", scope)
			}

			if limit.Window > maxWindow {
				return fmt.Errorf("ratelimit: scope %s: %w", scope,
					&WindowTooLargeError{Window: limit.Window, Max: maxWindow})
			}
		}
	}

	return nil
}
