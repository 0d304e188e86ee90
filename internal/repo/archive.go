package repo

import (
	"context"
	"fmt"
	"log"

	"govhub/api/internal/proposal"
	"govhub/api/internal/tenant"
)

// Snapshot is the slice of the archive client this repository needs.
type Snapshot interface {
	FetchProposals(ctx context.Context, prefix string) ([]proposal.Payload, error)
}

// SnapshotCache memoizes fetched archive objects. Archive data is
// immutable, so the cache only trades memory against object-store round
// trips.
type SnapshotCache interface {
	Get(ctx context.Context, key string, out any) error
	Set(ctx context.Context, key string, value any) error
}

// ArchiveRepository serves a retired tenant's proposals from the archived
// export. All filtering happens in memory: archives are small and frozen.
type ArchiveRepository struct {
	snapshot Snapshot
	cache    SnapshotCache
	factory  *proposal.Factory
	cfg      tenant.Config
}

func NewArchiveRepository(snapshot Snapshot, cache SnapshotCache, factory *proposal.Factory, cfg tenant.Config) *ArchiveRepository {
	return &ArchiveRepository{snapshot: snapshot, cache: cache, factory: factory, cfg: cfg}
}

func (r *ArchiveRepository) cacheKey() string {
	return r.cfg.Slug + "/proposals"
}

// loadAll fetches the tenant's archived payloads, consulting the cache
// first. Cache failures degrade to a direct fetch.
func (r *ArchiveRepository) loadAll(ctx context.Context) ([]proposal.Payload, error) {
	if r.cache != nil {
		var cached []proposal.Payload
		if err := r.cache.Get(ctx, r.cacheKey(), &cached); err == nil {
			return cached, nil
		}
	}

	payloads, err := r.snapshot.FetchProposals(ctx, r.cfg.ArchivePrefix)
	if err != nil {
		return nil, fmt.Errorf("archive proposals for %s: %w: %w", r.cfg.Slug, ErrDataSource, err)
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, r.cacheKey(), payloads); err != nil {
			log.Printf("archive repo: cache set for %s failed: %v", r.cfg.Slug, err)
		}
	}
	return payloads, nil
}

func (r *ArchiveRepository) loadProposals(ctx context.Context) ([]*proposal.Proposal, error) {
	payloads, err := r.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range payloads {
		payloads[i] = attachTenant(payloads[i], r.cfg)
	}
	// Corrupt rows are dropped; the rest of the archive stays readable.
	ps, err := r.factory.CreateMany(payloads)
	if err != nil {
		log.Printf("archive repo: %s has unreadable rows: %v", r.cfg.Slug, err)
	}
	return ps, nil
}

func (r *ArchiveRepository) FindByID(ctx context.Context, id proposal.ID) (*proposal.Proposal, error) {
	ps, err := r.loadProposals(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range ps {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
}

func (r *ArchiveRepository) FindByIDs(ctx context.Context, ids []proposal.ID) ([]*proposal.Proposal, error) {
	ps, err := r.loadProposals(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[proposal.ID]*proposal.Proposal, len(ps))
	for _, p := range ps {
		byID[p.ID] = p
	}
	out := make([]*proposal.Proposal, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *ArchiveRepository) FindMany(ctx context.Context, q Query) ([]*proposal.Proposal, error) {
	ps, err := r.matching(ctx, q)
	if err != nil {
		return nil, err
	}
	return proposal.Paginate(ps, q.Page).Data, nil
}

func (r *ArchiveRepository) Count(ctx context.Context, q Query) (int, error) {
	ps, err := r.matching(ctx, q)
	if err != nil {
		return 0, err
	}
	return len(ps), nil
}

func (r *ArchiveRepository) matching(ctx context.Context, q Query) ([]*proposal.Proposal, error) {
	ps, err := r.loadProposals(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*proposal.Proposal, 0, len(ps))
	for _, p := range ps {
		if q.Type != "" && p.Type != q.Type {
			continue
		}
		if q.Proposer != "" && !equalAddress(p, q.Proposer) {
			continue
		}
		out = append(out, p)
	}

	sortProposals(out, q.OrderBy, q.OrderDirection)

	if q.Status != "" {
		out = filterByStatus(out, q.Status, q.AtBlock)
	}
	return out, nil
}

func (r *ArchiveRepository) Exists(ctx context.Context, id proposal.ID) (bool, error) {
	_, err := r.FindByID(ctx, id)
	if err == nil {
		return true, nil
	}
	if errorsIsNotFound(err) {
		return false, nil
	}
	return false, err
}

// Save always fails: the archive is a frozen export.
func (r *ArchiveRepository) Save(ctx context.Context, p *proposal.Proposal) error {
	return fmt.Errorf("archived tenant %s is read-only: %w", r.cfg.Slug, ErrUnsupportedOperation)
}

func (r *ArchiveRepository) SaveMany(ctx context.Context, ps []*proposal.Proposal) error {
	return fmt.Errorf("archived tenant %s is read-only: %w", r.cfg.Slug, ErrUnsupportedOperation)
}
