package provider

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
)

// ResolveState tracks a locator through its expiry lifecycle.
type ResolveState int

const (
	StateResolved ResolveState = iota
	StateExpired
	StateRefreshing
	StateFailed
)

func (s ResolveState) String() string {
	switch s {
	case StateResolved:
		return "resolved"
	case StateExpired:
		return "expired"
	case StateRefreshing:
		return "refreshing"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RefreshPolicy bounds how often an expired locator is re-derived from
// its canonical URL before giving up.
type RefreshPolicy struct {
	MaxAttempts int
	Backoff     time.Duration

	// OnTransition, when set, observes every state change.
	OnTransition func(from, to ResolveState)
}

// DefaultRefreshPolicy matches the retry budget used by the playback
// driver.
func DefaultRefreshPolicy() RefreshPolicy {
	return RefreshPolicy{MaxAttempts: 3, Backoff: 2 * time.Second}
}

type refresher struct {
	policy RefreshPolicy
	state  ResolveState
	logger *log.Logger
}

func (r *refresher) transition(to ResolveState) {
	from := r.state
	r.state = to
	if r.policy.OnTransition != nil {
		r.policy.OnTransition(from, to)
	}
	r.logger.Debug("locator state change", "from", from.String(), "to", to.String())
}

// ResolveWithRefresh resolves a fresh locator for the canonical URL and
// hands it to fetch. When fetch fails with an expiry signal the locator
// is re-derived and fetch retried, with backoff, up to the policy's
// attempt budget. Exhausting the budget returns ErrSourceUnavailable;
// the caller keeps its queue entry either way. Non-expiry fetch errors
// are returned as-is on the first occurrence.
func ResolveWithRefresh(ctx context.Context, p Provider, canonicalURL string, policy RefreshPolicy, fetch func(*Locator) error) error {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	r := &refresher{
		policy: policy,
		state:  StateRefreshing,
		logger: log.Default().With("provider", p.Name(), "canonical_url", canonicalURL),
	}

	for attempt := 1; ; attempt++ {
		locator, err := p.ResolveLocator(ctx, canonicalURL)
		if err != nil {
			r.transition(StateFailed)
			return errors.Wrapf(ErrSourceUnavailable, "resolve locator: %v", err)
		}
		r.transition(StateResolved)

		err = fetch(locator)
		if err == nil {
			return nil
		}
		if !IsExpirySignal(err) {
			r.transition(StateFailed)
			return err
		}

		r.transition(StateExpired)
		if attempt >= policy.MaxAttempts {
			r.transition(StateFailed)
			r.logger.Warn("locator refresh budget exhausted", "attempts", attempt)
			return errors.Wrapf(ErrSourceUnavailable, "after %d attempts: %v", attempt, err)
		}

		r.logger.Info("locator expired, refreshing", "attempt", attempt, "max_attempts", policy.MaxAttempts)
		r.transition(StateRefreshing)

		select {
		case <-ctx.Done():
			r.transition(StateFailed)
			return ctx.Err()
		case <-time.After(policy.Backoff):
		}
	}
}
