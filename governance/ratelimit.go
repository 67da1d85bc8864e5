package governance

import (
	"fmt"
	"time"

	"stroma/identity"
)

// DecayWindow is the quiescence period after which a (actor, action)
// counter resets to zero.
const DecayWindow = 24 * time.Hour

// rateLimitKey identifies one (actor, action_kind) counter.
type rateLimitKey struct {
	actor  identity.MemberHash
	action string
}

type rateLimitState struct {
	count   int
	lastUse time.Time
}

// RateLimiter enforces the progressive per-actor cooldown of spec §4.8:
// the k-th consecutive use of an action by an actor requires the clock to
// be past lastUse + baseCooldown * 2^min(k-1, 6).
type RateLimiter struct {
	baseCooldown time.Duration
	states       map[rateLimitKey]*rateLimitState
}

// NewRateLimiter constructs a limiter with the given base cooldown.
func NewRateLimiter(baseCooldown time.Duration) *RateLimiter {
	return &RateLimiter{
		baseCooldown: baseCooldown,
		states:       map[rateLimitKey]*rateLimitState{},
	}
}

// ErrRateLimited is returned when an action is attempted before its
// cooldown has elapsed; Remaining reports how much longer to wait.
type ErrRateLimited struct {
	Remaining time.Duration
}

func (e *ErrRateLimited) Error() string {
	return fmt.Sprintf("governance: try again in %s", FormatDuration(e.Remaining))
}

// Allow checks and, if permitted, records a use of (actor, action) at now.
func (r *RateLimiter) Allow(actor identity.MemberHash, action string, now time.Time) error {
	key := rateLimitKey{actor: actor, action: action}
	state, ok := r.states[key]
	if !ok {
		r.states[key] = &rateLimitState{count: 1, lastUse: now}
		return nil
	}

	if now.Sub(state.lastUse) >= DecayWindow {
		state.count = 1
		state.lastUse = now
		return nil
	}

	// state.count already holds the number of completed uses, so the use
	// now being attempted is the (count+1)-th; per spec §4.8 that use's
	// cooldown exponent is (count+1)-1 = count.
	exponent := state.count
	if exponent > 6 {
		exponent = 6
	}
	cooldown := r.baseCooldown * time.Duration(1<<uint(exponent))
	readyAt := state.lastUse.Add(cooldown)
	if now.Before(readyAt) {
		return &ErrRateLimited{Remaining: readyAt.Sub(now)}
	}

	state.count++
	state.lastUse = now
	return nil
}

// Decay resets any counter whose last use predates now-DecayWindow. Called
// by the runtime's periodic health check.
func (r *RateLimiter) Decay(now time.Time) {
	for key, state := range r.states {
		if now.Sub(state.lastUse) >= DecayWindow {
			delete(r.states, key)
		}
	}
}
