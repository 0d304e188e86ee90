package repo

import (
	"context"
	"errors"
	"fmt"

	"govhub/api/internal/proposal"
	"govhub/api/internal/store"
	"govhub/api/internal/tenant"
)

// LiveStore is the slice of the Postgres store the live repository needs.
type LiveStore interface {
	GetProposal(ctx context.Context, tenantSlug string, id proposal.ID) (proposal.Payload, error)
	GetProposalsByIDs(ctx context.Context, tenantSlug string, ids []proposal.ID) ([]proposal.Payload, error)
	ListProposals(ctx context.Context, tenantSlug string, filter store.ProposalFilter) ([]proposal.Payload, error)
	CountProposals(ctx context.Context, tenantSlug string, filter store.ProposalFilter) (int, error)
	ProposalExists(ctx context.Context, tenantSlug string, id proposal.ID) (bool, error)
}

// LiveRepository serves a tenant's proposals from the indexed Postgres
// rows.
type LiveRepository struct {
	store   LiveStore
	factory *proposal.Factory
	cfg     tenant.Config
}

func NewLiveRepository(s LiveStore, factory *proposal.Factory, cfg tenant.Config) *LiveRepository {
	return &LiveRepository{store: s, factory: factory, cfg: cfg}
}

// statusScanLimit caps how many rows a status-filtered listing will
// materialize. Status is derived, so the filter cannot be pushed into SQL.
const statusScanLimit = 5000

// attachTenant stamps the tenant calculation context onto a raw payload,
// keeping per-row overrides (calculation options) the row already carries.
func attachTenant(p proposal.Payload, cfg tenant.Config) proposal.Payload {
	calcOptions := p.Context.CalculationOptions
	p.Context = cfg.ProposalContext()
	p.Context.CalculationOptions = calcOptions
	p.QuorumBps = cfg.QuorumBps
	return p
}

func (r *LiveRepository) build(payload proposal.Payload) (*proposal.Proposal, error) {
	return r.factory.CreateProposal(attachTenant(payload, r.cfg))
}

func (r *LiveRepository) FindByID(ctx context.Context, id proposal.ID) (*proposal.Proposal, error) {
	payload, err := r.store.GetProposal(ctx, r.cfg.Slug, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, wrapSource("get proposal", err)
	}
	return r.build(payload)
}

// FindByIDs resolves a batch in one store round trip, returning results in
// request order. Missing ids are skipped.
func (r *LiveRepository) FindByIDs(ctx context.Context, ids []proposal.ID) ([]*proposal.Proposal, error) {
	payloads, err := r.store.GetProposalsByIDs(ctx, r.cfg.Slug, ids)
	if err != nil {
		return nil, wrapSource("get proposals", err)
	}

	byID := make(map[proposal.ID]*proposal.Proposal, len(payloads))
	for _, payload := range payloads {
		p, err := r.build(payload)
		if err != nil {
			return nil, err
		}
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

func (r *LiveRepository) FindMany(ctx context.Context, q Query) ([]*proposal.Proposal, error) {
	filter := store.ProposalFilter{
		Type:           q.Type,
		Proposer:       q.Proposer,
		OrderBy:        q.OrderBy,
		OrderDirection: q.OrderDirection,
	}

	page := q.Page.Normalize()
	if q.Status == "" {
		filter.Offset = page.Offset
		filter.Limit = page.Limit
		payloads, err := r.store.ListProposals(ctx, r.cfg.Slug, filter)
		if err != nil {
			return nil, wrapSource("list proposals", err)
		}
		return r.buildMany(payloads)
	}

	// Status filtering: fetch the matching superset, derive, then window.
	filter.Limit = statusScanLimit
	payloads, err := r.store.ListProposals(ctx, r.cfg.Slug, filter)
	if err != nil {
		return nil, wrapSource("list proposals", err)
	}
	ps, err := r.buildMany(payloads)
	if err != nil {
		return nil, err
	}
	return proposal.Paginate(filterByStatus(ps, q.Status, q.AtBlock), page).Data, nil
}

func (r *LiveRepository) buildMany(payloads []proposal.Payload) ([]*proposal.Proposal, error) {
	out := make([]*proposal.Proposal, 0, len(payloads))
	for _, payload := range payloads {
		p, err := r.build(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *LiveRepository) Count(ctx context.Context, q Query) (int, error) {
	filter := store.ProposalFilter{Type: q.Type, Proposer: q.Proposer}
	if q.Status == "" {
		n, err := r.store.CountProposals(ctx, r.cfg.Slug, filter)
		if err != nil {
			return 0, wrapSource("count proposals", err)
		}
		return n, nil
	}

	filter.Limit = statusScanLimit
	payloads, err := r.store.ListProposals(ctx, r.cfg.Slug, filter)
	if err != nil {
		return 0, wrapSource("list proposals", err)
	}
	ps, err := r.buildMany(payloads)
	if err != nil {
		return 0, err
	}
	return len(filterByStatus(ps, q.Status, q.AtBlock)), nil
}

func (r *LiveRepository) Exists(ctx context.Context, id proposal.ID) (bool, error) {
	ok, err := r.store.ProposalExists(ctx, r.cfg.Slug, id)
	if err != nil {
		return false, wrapSource("proposal exists", err)
	}
	return ok, nil
}

func (r *LiveRepository) Save(ctx context.Context, p *proposal.Proposal) error {
	return ErrUnsupportedOperation
}

func (r *LiveRepository) SaveMany(ctx context.Context, ps []*proposal.Proposal) error {
	return ErrUnsupportedOperation
}
