package provider

import (
	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
)

// Registry holds every provider in registration order and routes a URL
// to the first one that claims it. It does not arbitrate overlapping
// claims; provider URL patterns are assumed disjoint.
type Registry struct {
	providers []Provider
	logger    *log.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	return &Registry{logger: logger}
}

// Register appends a provider. Registration order determines match
// precedence.
func (r *Registry) Register(p Provider) {
	r.providers = append(r.providers, p)
	r.logger.Debug("registered provider", "provider", p.Name())
}

// Match returns the first provider whose Supports reports true, or
// ErrSourceUnsupported when none claims the URL. An unmatched URL is
// never routed to a best-effort guess.
func (r *Registry) Match(url string) (Provider, error) {
	for _, p := range r.providers {
		if p.Supports(url) {
			return p, nil
		}
	}
	return nil, errors.Wrap(ErrSourceUnsupported, url)
}

// Validate reports whether any registered provider claims the URL.
// Used when restoring persisted entries.
func (r *Registry) Validate(url string) bool {
	_, err := r.Match(url)
	return err == nil
}

// ByName returns the provider registered under the given source tag,
// or nil.
func (r *Registry) ByName(name string) Provider {
	for _, p := range r.providers {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// Names returns the registered provider names in precedence order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.providers))
	for i, p := range r.providers {
		names[i] = p.Name()
	}
	return names
}
