// Package provider maps arbitrary media URLs onto a uniform
// extraction, resolution and download contract, one implementation per
// external source.
//
// Identity and locator are deliberately separate: Extract yields a
// stable canonical URL that embeds the content ID, while ResolveLocator
// turns that identity into a short-lived fetchable address immediately
// before each playback or download attempt. Several sources sign their
// stream addresses with an expiry, so a locator is used once and never
// persisted.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/latoulicious/Kitasan/pkg/queue"
)

var (
	// ErrSourceUnsupported means no registered provider claims the URL.
	ErrSourceUnsupported = errors.New("no provider supports this URL")
	// ErrExtractionFailed is a soft failure: the caller may retry.
	ErrExtractionFailed = errors.New("failed to extract media metadata")
	// ErrLocatorExpired signals that a fetch failed because its locator
	// aged out; the resolver reacts by deriving a fresh one.
	ErrLocatorExpired = errors.New("locator expired")
	// ErrSourceUnavailable is terminal: the retry budget is exhausted.
	// The queue entry is preserved so the user can see what failed.
	ErrSourceUnavailable = errors.New("source unavailable")
)

// Locator is a short-lived fetchable address resolved from a canonical
// URL. Obtained fresh per attempt and never written to a snapshot.
type Locator struct {
	URL       string
	Format    string
	ExpiresAt time.Time
}

// Expired reports whether the locator's advertised deadline (if any)
// has passed.
func (l *Locator) Expired() bool {
	return !l.ExpiresAt.IsZero() && time.Now().After(l.ExpiresAt)
}

// Artifact is the result of a completed download.
type Artifact struct {
	Path   string
	Size   int64
	Format string
}

// ProgressFunc receives download progress. Total is zero when the
// source did not report a length.
type ProgressFunc func(written, total int64)

// Provider is the capability bundle one external media source
// implements. Implementations must be safe for concurrent use.
type Provider interface {
	// Name is the short source tag recorded on descriptors.
	Name() string

	// Supports reports whether this provider claims the URL. Patterns
	// across providers are expected to be disjoint.
	Supports(url string) bool

	// Extract derives a descriptor with a stable canonical URL from an
	// arbitrary supported URL. Network and parse failures come back as
	// errors, never panics; callers treat them as soft.
	Extract(ctx context.Context, url string) (*queue.AudioDescriptor, error)

	// ResolveLocator turns a canonical URL into a fresh fetchable
	// address. Called immediately before each playback or download
	// attempt; results must never be cached beyond one attempt.
	ResolveLocator(ctx context.Context, canonicalURL string) (*Locator, error)

	// Download fetches the locator into a local artifact, reporting
	// progress along the way.
	Download(ctx context.Context, locator *Locator, progress ProgressFunc) (*Artifact, error)
}

// StatusError carries an HTTP status from a failed fetch so expiry
// signals (403/410 on signed URLs) can be told apart from other
// failures.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d fetching %s", e.Code, e.URL)
}

// IsExpirySignal reports whether an error indicates the locator aged
// out rather than the content being gone.
func IsExpirySignal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrLocatorExpired) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == 403 || statusErr.Code == 410
	}
	return false
}
