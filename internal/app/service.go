// Package app wires the governance domain into the HTTP API: request
// validation, view rendering, and error mapping live here, domain rules do
// not.
package app

import (
	"context"
	"math/big"
	"net/http"

	"govhub/api/internal/proposal"
	"govhub/api/internal/repo"
	"govhub/api/internal/search"
	"govhub/api/internal/store"
	"govhub/api/internal/tenant"
	"govhub/api/internal/votes"
)

// NonVoterSource reads live non-voter projections.
type NonVoterSource interface {
	NonVoters(ctx context.Context, tenantSlug string, id proposal.ID, offset, limit int) ([]store.VotingPowerRow, error)
}

// ArchiveNonVoters reads archived non-voter snapshots.
type ArchiveNonVoters interface {
	FetchNonVoters(ctx context.Context, prefix string, id proposal.ID) ([]proposal.NonVoter, error)
}

// Pinger reports backend liveness for the readiness probe.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Service is the application facade behind the HTTP layer.
type Service struct {
	repos            *repo.Factory
	votes            *votes.Reconciler
	nonVoters        NonVoterSource
	archiveNonVoters ArchiveNonVoters
	search           *search.Service
	db               Pinger
	adminToken       string
}

type ServiceDeps struct {
	Repos            *repo.Factory
	Votes            *votes.Reconciler
	NonVoters        NonVoterSource
	ArchiveNonVoters ArchiveNonVoters
	Search           *search.Service
	DB               Pinger
	AdminToken       string
}

func NewService(deps ServiceDeps) *Service {
	return &Service{
		repos:            deps.Repos,
		votes:            deps.Votes,
		nonVoters:        deps.NonVoters,
		archiveNonVoters: deps.ArchiveNonVoters,
		search:           deps.Search,
		db:               deps.DB,
		adminToken:       deps.AdminToken,
	}
}

// Ping checks primary storage for the readiness probe.
func (s *Service) Ping(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.PingContext(ctx)
}

// AdminToken guards the internal maintenance routes.
func (s *Service) AdminToken() string {
	return s.adminToken
}

// ClearRepositoryCache drops memoized tenant repositories.
func (s *Service) ClearRepositoryCache() {
	s.repos.ClearCache()
}

// Tenants lists the hosted deployments.
func (s *Service) Tenants() []map[string]any {
	out := make([]map[string]any, 0)
	for _, cfg := range tenant.All() {
		out = append(out, map[string]any{
			"slug":        cfg.Slug,
			"displayName": cfg.DisplayName,
			"archived":    cfg.Archived,
		})
	}
	return out
}

// GetProposal returns one proposal rendered at the given block height.
func (s *Service) GetProposal(ctx context.Context, tenantSlug string, id proposal.ID, atBlock *big.Int) (ProposalView, error) {
	repository, err := s.repos.ForTenant(tenantSlug)
	if err != nil {
		return ProposalView{}, err
	}
	p, err := repository.FindByID(ctx, id)
	if err != nil {
		return ProposalView{}, err
	}
	return proposalView(p, atBlock, true), nil
}

// ListParams narrows a proposal listing.
type ListParams struct {
	Type           proposal.Variant
	Proposer       string
	Status         proposal.Status
	OrderBy        string
	OrderDirection string
	AtBlock        *big.Int
	Page           proposal.Pagination
}

// ListResponse is one page of proposals plus the tenant-wide count for the
// same filters.
type ListResponse struct {
	Meta  proposal.PageMeta `json:"meta"`
	Total int               `json:"total"`
	Data  []ProposalView    `json:"data"`
}

func (s *Service) ListProposals(ctx context.Context, tenantSlug string, params ListParams) (ListResponse, error) {
	if params.Status != "" && !validStatus(params.Status) {
		return ListResponse{}, domainError(http.StatusUnprocessableEntity, "INVALID_STATUS", "Unknown status filter", string(params.Status))
	}

	repository, err := s.repos.ForTenant(tenantSlug)
	if err != nil {
		return ListResponse{}, err
	}

	q := repo.Query{
		Type:           params.Type,
		Proposer:       params.Proposer,
		Status:         params.Status,
		AtBlock:        params.AtBlock,
		OrderBy:        params.OrderBy,
		OrderDirection: params.OrderDirection,
		Page:           params.Page.Normalize(),
	}
	ps, err := repository.FindMany(ctx, q)
	if err != nil {
		return ListResponse{}, err
	}
	total, err := repository.Count(ctx, q)
	if err != nil {
		return ListResponse{}, err
	}

	views := make([]ProposalView, 0, len(ps))
	for _, p := range ps {
		views = append(views, proposalView(p, params.AtBlock, false))
	}

	end := q.Page.Offset + len(views)
	return ListResponse{
		Meta: proposal.PageMeta{
			HasNext:       end < total,
			TotalReturned: len(views),
			NextOffset:    end,
		},
		Total: total,
		Data:  views,
	}, nil
}

func validStatus(st proposal.Status) bool {
	switch st {
	case proposal.StatusPending, proposal.StatusActive, proposal.StatusCancelled,
		proposal.StatusQueued, proposal.StatusExecuted,
		proposal.StatusSucceeded, proposal.StatusDefeated:
		return true
	}
	return false
}

// DelegateVotes returns one page of a delegate's vote history.
func (s *Service) DelegateVotes(ctx context.Context, tenantSlug, delegate string, page proposal.Pagination, atBlock *big.Int) (proposal.Paginated[VoteView], error) {
	result, err := s.votes.VotesForDelegate(ctx, tenantSlug, delegate, page, atBlock)
	if err != nil {
		return proposal.Paginated[VoteView]{}, err
	}

	views := make([]VoteView, 0, len(result.Data))
	for _, v := range result.Data {
		views = append(views, voteView(v, atBlock))
	}
	return proposal.Paginated[VoteView]{Meta: result.Meta, Data: views}, nil
}

// NonVoters lists delegates with power who skipped the proposal. Archived
// tenants read the frozen snapshot; live tenants derive from current rows.
func (s *Service) NonVoters(ctx context.Context, tenantSlug string, id proposal.ID, page proposal.Pagination) (proposal.Paginated[NonVoterView], error) {
	var empty proposal.Paginated[NonVoterView]

	cfg, err := tenant.Lookup(tenantSlug)
	if err != nil {
		return empty, err
	}

	repository, err := s.repos.ForTenant(tenantSlug)
	if err != nil {
		return empty, err
	}
	exists, err := repository.Exists(ctx, id)
	if err != nil {
		return empty, err
	}
	if !exists {
		return empty, repo.ErrNotFound
	}

	page = page.Normalize()
	if cfg.Archived {
		all, err := s.archiveNonVoters.FetchNonVoters(ctx, cfg.ArchivePrefix, id)
		if err != nil {
			return empty, err
		}
		views := make([]NonVoterView, 0, len(all))
		for _, nv := range all {
			views = append(views, NonVoterView{Delegate: nv.Delegate.Hex(), VotingPower: bigStr(nv.VotingPower)})
		}
		return proposal.Paginate(views, page), nil
	}

	// Fetch one extra row so HasNext is exact.
	rows, err := s.nonVoters.NonVoters(ctx, cfg.Slug, id, page.Offset, page.Limit+1)
	if err != nil {
		return empty, err
	}
	hasNext := len(rows) > page.Limit
	if hasNext {
		rows = rows[:page.Limit]
	}
	views := make([]NonVoterView, 0, len(rows))
	for _, row := range rows {
		views = append(views, NonVoterView{Delegate: row.Delegate, VotingPower: bigStr(row.VotingPower)})
	}
	return proposal.Paginated[NonVoterView]{
		Meta: proposal.PageMeta{
			HasNext:       hasNext,
			TotalReturned: len(views),
			NextOffset:    page.Offset + len(views),
		},
		Data: views,
	}, nil
}

// SearchProposals runs a tenant-scoped text search.
func (s *Service) SearchProposals(ctx context.Context, tenantSlug, term string, page proposal.Pagination) (search.Response, error) {
	if _, err := tenant.Lookup(tenantSlug); err != nil {
		return search.Response{}, err
	}
	page = page.Normalize()
	return s.search.Search(search.Query{
		Tenant: tenantSlug,
		Text:   term,
		Limit:  page.Limit,
		Offset: page.Offset,
	}), nil
}
