package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy(transitions *[]ResolveState) RefreshPolicy {
	return RefreshPolicy{
		MaxAttempts: 3,
		Backoff:     time.Millisecond,
		OnTransition: func(_, to ResolveState) {
			if transitions != nil {
				*transitions = append(*transitions, to)
			}
		},
	}
}

func TestResolveWithRefreshFirstTry(t *testing.T) {
	p := &fakeProvider{name: "yt", prefix: "youtube.com"}

	var fetched []string
	err := ResolveWithRefresh(context.Background(), p, "https://youtube.com/watch?v=abc", testPolicy(nil), func(l *Locator) error {
		fetched = append(fetched, l.URL)
		return nil
	})

	require.NoError(t, err)
	assert.Len(t, fetched, 1)
	assert.Equal(t, 1, p.resolutions)
}

// An expired locator triggers one re-resolution; the retried fetch sees
// a different locator and succeeds. The entry is never dropped: the
// caller gets nil back.
func TestResolveWithRefreshOnExpiry(t *testing.T) {
	p := &fakeProvider{name: "yt", prefix: "youtube.com"}

	var transitions []ResolveState
	var fetched []string
	calls := 0
	err := ResolveWithRefresh(context.Background(), p, "https://youtube.com/watch?v=abc", testPolicy(&transitions), func(l *Locator) error {
		fetched = append(fetched, l.URL)
		calls++
		if calls == 1 {
			return &StatusError{Code: 403, URL: l.URL}
		}
		return nil
	})

	require.NoError(t, err)
	require.Len(t, fetched, 2)
	assert.NotEqual(t, fetched[0], fetched[1])
	assert.Equal(t, []ResolveState{StateResolved, StateExpired, StateRefreshing, StateResolved}, transitions)
}

func TestResolveWithRefreshBudgetExhausted(t *testing.T) {
	p := &fakeProvider{name: "yt", prefix: "youtube.com"}

	calls := 0
	err := ResolveWithRefresh(context.Background(), p, "https://youtube.com/watch?v=abc", testPolicy(nil), func(l *Locator) error {
		calls++
		return ErrLocatorExpired
	})

	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.Equal(t, 3, calls)
}

func TestResolveWithRefreshNonExpiryError(t *testing.T) {
	p := &fakeProvider{name: "yt", prefix: "youtube.com"}

	boom := errors.New("connection reset")
	calls := 0
	err := ResolveWithRefresh(context.Background(), p, "https://youtube.com/watch?v=abc", testPolicy(nil), func(l *Locator) error {
		calls++
		return boom
	})

	// Not an expiry signal: no retry, error passed through untouched.
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestResolveWithRefreshContextCancelled(t *testing.T) {
	p := &fakeProvider{name: "yt", prefix: "youtube.com"}

	ctx, cancel := context.WithCancel(context.Background())
	policy := RefreshPolicy{MaxAttempts: 5, Backoff: time.Minute}
	err := ResolveWithRefresh(ctx, p, "https://youtube.com/watch?v=abc", policy, func(l *Locator) error {
		cancel()
		return ErrLocatorExpired
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsExpirySignal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"expired sentinel", ErrLocatorExpired, true},
		{"wrapped sentinel", errors.Join(errors.New("fetch"), ErrLocatorExpired), true},
		{"status 403", &StatusError{Code: 403}, true},
		{"status 410", &StatusError{Code: 410}, true},
		{"status 404", &StatusError{Code: 404}, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsExpirySignal(tt.err))
		})
	}
}

func TestLocatorExpired(t *testing.T) {
	fresh := &Locator{URL: "u", ExpiresAt: time.Now().Add(time.Hour)}
	stale := &Locator{URL: "u", ExpiresAt: time.Now().Add(-time.Hour)}
	unbounded := &Locator{URL: "u"}

	assert.False(t, fresh.Expired())
	assert.True(t, stale.Expired())
	assert.False(t, unbounded.Expired())
}

func TestResolveStateString(t *testing.T) {
	assert.Equal(t, "resolved", StateResolved.String())
	assert.Equal(t, "expired", StateExpired.String())
	assert.Equal(t, "refreshing", StateRefreshing.String())
	assert.Equal(t, "failed", StateFailed.String())
}
