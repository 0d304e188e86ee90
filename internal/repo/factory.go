package repo

import (
	"fmt"
	"sync"

	"govhub/api/internal/tenant"
)

// Builder constructs the repository for one tenant. The factory decides
// nothing about live versus archive; the composition root passes a builder
// that knows which backend each tenant uses.
type Builder func(cfg tenant.Config) (Repository, error)

// Factory hands out tenant repositories, building each at most once.
// Construction is cheap but builders may ping backends, so concurrent
// first requests for the same tenant are collapsed under the write lock.
type Factory struct {
	mu    sync.RWMutex
	repos map[string]Repository
	build Builder
}

func NewFactory(build Builder) *Factory {
	return &Factory{
		repos: make(map[string]Repository),
		build: build,
	}
}

// ForTenant returns the repository for a tenant slug, constructing and
// memoizing it on first use. Unknown slugs fail with ErrUnsupportedTenant.
func (f *Factory) ForTenant(slug string) (Repository, error) {
	cfg, err := tenant.Lookup(slug)
	if err != nil {
		return nil, err
	}

	f.mu.RLock()
	r, ok := f.repos[cfg.Slug]
	f.mu.RUnlock()
	if ok {
		return r, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.repos[cfg.Slug]; ok {
		return r, nil
	}
	r, err = f.build(cfg)
	if err != nil {
		return nil, fmt.Errorf("build repository for %s: %w", cfg.Slug, err)
	}
	f.repos[cfg.Slug] = r
	return r, nil
}

// ClearCache drops all memoized repositories. The next request per tenant
// rebuilds.
func (f *Factory) ClearCache() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repos = make(map[string]Repository)
}
