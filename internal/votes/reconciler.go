// Package votes assembles delegate voting history. Vote events outlive the
// proposals they reference: a tenant's old proposals may only exist in the
// archive, so every history page reconciles live vote rows against whatever
// proposal metadata the tenant's repository can still produce.
package votes

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"

	"govhub/api/internal/proposal"
	"govhub/api/internal/repo"
	"govhub/api/internal/store"
	"govhub/api/internal/tenant"
)

// VoteSource reads vote rows and participation counters from the live
// store.
type VoteSource interface {
	DelegateVotes(ctx context.Context, tenantSlug, voter string, offset, limit int) ([]store.VoteRow, error)
	CountVotedProposals(ctx context.Context, tenantSlug, voter string) (int, error)
	CountEndedProposals(ctx context.Context, tenantSlug string, currentBlock string) (int, error)
}

// ArchiveVotes reads a delegate's archived vote export.
type ArchiveVotes interface {
	FetchDelegateVotes(ctx context.Context, prefix, delegate string) ([]proposal.Vote, error)
}

// Reconciler joins vote history with proposal metadata across the live
// store and the archive.
type Reconciler struct {
	source  VoteSource
	archive ArchiveVotes
	repos   *repo.Factory
	factory *proposal.Factory
}

func NewReconciler(source VoteSource, archive ArchiveVotes, repos *repo.Factory, factory *proposal.Factory) *Reconciler {
	return &Reconciler{source: source, archive: archive, repos: repos, factory: factory}
}

// VotesForDelegate returns one page of a delegate's voting history, newest
// first, each vote carrying its proposal summary. AtBlock feeds the
// participation rate; nil skips it.
func (r *Reconciler) VotesForDelegate(ctx context.Context, tenantSlug, delegate string, page proposal.Pagination, atBlock *big.Int) (proposal.Paginated[proposal.VoteWithProposal], error) {
	var empty proposal.Paginated[proposal.VoteWithProposal]

	cfg, err := tenant.Lookup(tenantSlug)
	if err != nil {
		return empty, err
	}

	page = page.Normalize()
	merged, err := r.collectVotes(ctx, cfg, delegate, page)
	if err != nil {
		return empty, err
	}
	// No votes at all: skip the proposal fetch entirely.
	if len(merged) == 0 {
		return proposal.Paginate([]proposal.VoteWithProposal(nil), page), nil
	}

	joined, err := r.joinProposals(ctx, cfg, merged)
	if err != nil {
		return empty, err
	}

	result := proposal.Paginate(joined, page)
	if cfg.ShowParticipationRate && atBlock != nil {
		if rate, err := r.participationRate(ctx, cfg.Slug, delegate, atBlock); err != nil {
			log.Printf("votes: participation rate for %s/%s: %v", cfg.Slug, delegate, err)
		} else {
			result.Meta.ParticipationRate = rate
		}
	}
	return result, nil
}

// collectVotes fetches the superset window covering the requested page:
// live votes first, then archived votes once the live history is
// exhausted. One extra row is fetched so HasNext stays exact.
func (r *Reconciler) collectVotes(ctx context.Context, cfg tenant.Config, delegate string, page proposal.Pagination) ([]proposal.Vote, error) {
	want := page.Offset + page.Limit + 1

	rows, err := r.source.DelegateVotes(ctx, cfg.Slug, delegate, 0, want)
	if err != nil {
		return nil, fmt.Errorf("live votes for %s: %w", delegate, err)
	}
	live := lo.Map(rows, func(row store.VoteRow, _ int) proposal.Vote {
		return fromRow(row)
	})
	if len(live) >= want || r.archive == nil {
		return live, nil
	}

	archived, err := r.archive.FetchDelegateVotes(ctx, cfg.ArchivePrefix, delegate)
	if err != nil {
		return nil, fmt.Errorf("archived votes for %s: %w", delegate, err)
	}

	// Live rows win when the indexer and the export overlap.
	seen := lo.SliceToMap(live, func(v proposal.Vote) (proposal.ID, struct{}) {
		return v.ProposalID, struct{}{}
	})
	for _, v := range archived {
		if _, dup := seen[v.ProposalID]; dup {
			continue
		}
		live = append(live, v)
	}
	return live, nil
}

func fromRow(row store.VoteRow) proposal.Vote {
	return proposal.Vote{
		ProposalID:  proposal.ID(row.ProposalID),
		Voter:       common.HexToAddress(row.Voter),
		Support:     proposal.Support(row.Support),
		Weight:      row.Weight,
		BlockNumber: row.BlockNumber,
		Reason:      row.Reason,
		Params:      parseParams(row.Params),
	}
}

func parseParams(raw []byte) []int {
	if len(raw) == 0 {
		return nil
	}
	var out []int
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// joinProposals resolves proposal summaries in one bulk lookup and pairs
// each vote with its proposal, synthesizing a placeholder when the
// proposal is gone from both the live store and the archive.
func (r *Reconciler) joinProposals(ctx context.Context, cfg tenant.Config, vs []proposal.Vote) ([]proposal.VoteWithProposal, error) {
	repository, err := r.repos.ForTenant(cfg.Slug)
	if err != nil {
		return nil, err
	}

	ids := lo.Uniq(lo.Map(vs, func(v proposal.Vote, _ int) proposal.ID {
		return v.ProposalID
	}))
	found, err := repository.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("proposals for vote history: %w", err)
	}
	byID := lo.SliceToMap(found, func(p *proposal.Proposal) (proposal.ID, *proposal.Proposal) {
		return p.ID, p
	})

	out := make([]proposal.VoteWithProposal, 0, len(vs))
	for _, v := range vs {
		p, ok := byID[v.ProposalID]
		if !ok {
			p = r.unknownProposal(cfg, v.ProposalID)
		}
		out = append(out, proposal.VoteWithProposal{Vote: v, Proposal: p})
	}
	return out, nil
}

// unknownProposal is the placeholder for votes whose proposal metadata no
// longer exists anywhere.
func (r *Reconciler) unknownProposal(cfg tenant.Config, id proposal.ID) *proposal.Proposal {
	p, err := r.factory.CreateProposal(proposal.Payload{
		ID:      string(id),
		Type:    proposal.VariantStandard,
		Title:   fmt.Sprintf("Unknown proposal #%s", id),
		Context: cfg.ProposalContext(),
	})
	if err != nil {
		// An empty standard payload always parses; reaching here means the
		// registry is misconfigured.
		log.Printf("votes: synthesize placeholder for %s: %v", id, err)
		return &proposal.Proposal{
			ID:    id,
			Type:  proposal.VariantStandard,
			Title: fmt.Sprintf("Unknown proposal #%s", id),
		}
	}
	return p
}

// participationRate is the percentage of ended proposals the delegate
// voted on, clamped to 100. Tenants without the flag never reach here.
func (r *Reconciler) participationRate(ctx context.Context, tenantSlug, delegate string, atBlock *big.Int) (*float64, error) {
	voted, err := r.source.CountVotedProposals(ctx, tenantSlug, delegate)
	if err != nil {
		return nil, err
	}
	ended, err := r.source.CountEndedProposals(ctx, tenantSlug, atBlock.String())
	if err != nil {
		return nil, err
	}
	if ended == 0 {
		return nil, nil
	}
	rate := float64(voted) / float64(ended) * 100
	if rate > 100 {
		rate = 100
	}
	return &rate, nil
}
