package votes

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"govhub/api/internal/proposal"
	"govhub/api/internal/repo"
	"govhub/api/internal/store"
	"govhub/api/internal/tenant"
)

type fakeVoteSource struct {
	delegateVotesFn func(ctx context.Context, tenantSlug, voter string, offset, limit int) ([]store.VoteRow, error)
	countVotedFn    func(ctx context.Context, tenantSlug, voter string) (int, error)
	countEndedFn    func(ctx context.Context, tenantSlug, currentBlock string) (int, error)
}

func (f *fakeVoteSource) DelegateVotes(ctx context.Context, tenantSlug, voter string, offset, limit int) ([]store.VoteRow, error) {
	if f.delegateVotesFn != nil {
		return f.delegateVotesFn(ctx, tenantSlug, voter, offset, limit)
	}
	return nil, nil
}

func (f *fakeVoteSource) CountVotedProposals(ctx context.Context, tenantSlug, voter string) (int, error) {
	if f.countVotedFn != nil {
		return f.countVotedFn(ctx, tenantSlug, voter)
	}
	return 0, nil
}

func (f *fakeVoteSource) CountEndedProposals(ctx context.Context, tenantSlug, currentBlock string) (int, error) {
	if f.countEndedFn != nil {
		return f.countEndedFn(ctx, tenantSlug, currentBlock)
	}
	return 0, nil
}

type fakeArchiveVotes struct {
	fetchFn func(ctx context.Context, prefix, delegate string) ([]proposal.Vote, error)
}

func (f *fakeArchiveVotes) FetchDelegateVotes(ctx context.Context, prefix, delegate string) ([]proposal.Vote, error) {
	if f.fetchFn != nil {
		return f.fetchFn(ctx, prefix, delegate)
	}
	return nil, nil
}

type fakeSnapshot struct {
	payloads []proposal.Payload
}

func (f *fakeSnapshot) FetchProposals(context.Context, string) ([]proposal.Payload, error) {
	return f.payloads, nil
}

const testDelegate = "0x00000000000000000000000000000000000000cc"

func voteRow(proposalID string, block int64) store.VoteRow {
	return store.VoteRow{
		ProposalID:  proposalID,
		Voter:       testDelegate,
		Support:     1,
		Weight:      big.NewInt(100),
		BlockNumber: big.NewInt(block),
	}
}

func archivePayload(id string) proposal.Payload {
	return proposal.Payload{
		ID:            id,
		Type:          proposal.VariantStandard,
		Title:         "Proposal " + id,
		StartBlock:    big.NewInt(100),
		EndBlock:      big.NewInt(200),
		VotableSupply: big.NewInt(10000),
		QuorumVotes:   big.NewInt(1),
	}
}

func newReconciler(t *testing.T, source *fakeVoteSource, av ArchiveVotes, snap *fakeSnapshot) *Reconciler {
	t.Helper()
	factory := proposal.NewFactory(proposal.DefaultRegistry())
	repos := repo.NewFactory(func(cfg tenant.Config) (repo.Repository, error) {
		return repo.NewArchiveRepository(snap, nil, factory, cfg), nil
	})
	return NewReconciler(source, av, repos, factory)
}

func TestVotesForDelegateEmptyShortCircuit(t *testing.T) {
	snap := &fakeSnapshot{}
	source := &fakeVoteSource{}
	archiveCalled := false
	av := &fakeArchiveVotes{
		fetchFn: func(context.Context, string, string) ([]proposal.Vote, error) {
			archiveCalled = true
			return nil, nil
		},
	}
	r := newReconciler(t, source, av, snap)

	page, err := r.VotesForDelegate(context.Background(), "optimism", testDelegate, proposal.Pagination{Limit: 10}, nil)
	if err != nil {
		t.Fatalf("votes: %v", err)
	}
	if len(page.Data) != 0 || page.Meta.HasNext {
		t.Fatalf("expected empty page, got %+v", page.Meta)
	}
	if !archiveCalled {
		t.Fatal("archived votes must still be consulted when live history is empty")
	}
}

func TestVotesForDelegateJoinsProposals(t *testing.T) {
	snap := &fakeSnapshot{payloads: []proposal.Payload{archivePayload("1"), archivePayload("2")}}
	source := &fakeVoteSource{
		delegateVotesFn: func(_ context.Context, _, _ string, offset, limit int) ([]store.VoteRow, error) {
			if offset != 0 {
				t.Errorf("superset fetch must start at 0, got offset %d", offset)
			}
			return []store.VoteRow{voteRow("2", 250), voteRow("1", 150)}, nil
		},
	}
	r := newReconciler(t, source, nil, snap)

	page, err := r.VotesForDelegate(context.Background(), "optimism", testDelegate, proposal.Pagination{Limit: 10}, nil)
	if err != nil {
		t.Fatalf("votes: %v", err)
	}
	if len(page.Data) != 2 {
		t.Fatalf("expected 2 votes, got %d", len(page.Data))
	}
	if page.Data[0].Proposal.Title != "Proposal 2" {
		t.Errorf("first vote proposal = %q", page.Data[0].Proposal.Title)
	}
	if page.Meta.HasNext {
		t.Error("no further history expected")
	}
}

func TestVotesForDelegateUnknownProposalFallback(t *testing.T) {
	snap := &fakeSnapshot{payloads: []proposal.Payload{archivePayload("1")}}
	source := &fakeVoteSource{
		delegateVotesFn: func(context.Context, string, string, int, int) ([]store.VoteRow, error) {
			return []store.VoteRow{voteRow("1", 250), voteRow("gone", 150)}, nil
		},
	}
	r := newReconciler(t, source, nil, snap)

	page, err := r.VotesForDelegate(context.Background(), "optimism", testDelegate, proposal.Pagination{Limit: 10}, nil)
	if err != nil {
		t.Fatalf("votes: %v", err)
	}
	if len(page.Data) != 2 {
		t.Fatalf("expected 2 votes, got %d", len(page.Data))
	}
	placeholder := page.Data[1].Proposal
	if placeholder.Title != "Unknown proposal #gone" {
		t.Errorf("placeholder title = %q", placeholder.Title)
	}
	if placeholder.Proposer != (common.Address{}) {
		t.Errorf("placeholder proposer must be the zero address, got %s", placeholder.Proposer)
	}
}

func TestVotesForDelegatePagination(t *testing.T) {
	rows := make([]store.VoteRow, 0, 25)
	payloads := make([]proposal.Payload, 0, 25)
	for i := 0; i < 25; i++ {
		id := fmt.Sprintf("%d", i)
		rows = append(rows, voteRow(id, int64(1000-i)))
		payloads = append(payloads, archivePayload(id))
	}
	source := &fakeVoteSource{
		delegateVotesFn: func(_ context.Context, _, _ string, offset, limit int) ([]store.VoteRow, error) {
			if limit > len(rows) {
				limit = len(rows)
			}
			return rows[:limit], nil
		},
	}
	r := newReconciler(t, source, nil, &fakeSnapshot{payloads: payloads})
	ctx := context.Background()

	page, err := r.VotesForDelegate(ctx, "optimism", testDelegate, proposal.Pagination{Offset: 0, Limit: 10}, nil)
	if err != nil {
		t.Fatalf("votes: %v", err)
	}
	if len(page.Data) != 10 || !page.Meta.HasNext || page.Meta.NextOffset != 10 {
		t.Fatalf("first page meta: %+v", page.Meta)
	}

	page, err = r.VotesForDelegate(ctx, "optimism", testDelegate, proposal.Pagination{Offset: 20, Limit: 10}, nil)
	if err != nil {
		t.Fatalf("votes: %v", err)
	}
	if len(page.Data) != 5 || page.Meta.HasNext {
		t.Fatalf("last page meta: %+v", page.Meta)
	}

	page, err = r.VotesForDelegate(ctx, "optimism", testDelegate, proposal.Pagination{Offset: 100, Limit: 10}, nil)
	if err != nil {
		t.Fatalf("votes: %v", err)
	}
	if len(page.Data) != 0 || page.Meta.HasNext {
		t.Fatalf("past-the-end page meta: %+v", page.Meta)
	}
}

func TestVotesForDelegateMergesArchiveHistory(t *testing.T) {
	snap := &fakeSnapshot{payloads: []proposal.Payload{archivePayload("live"), archivePayload("old")}}
	source := &fakeVoteSource{
		delegateVotesFn: func(context.Context, string, string, int, int) ([]store.VoteRow, error) {
			return []store.VoteRow{voteRow("live", 500)}, nil
		},
	}
	av := &fakeArchiveVotes{
		fetchFn: func(_ context.Context, prefix, delegate string) ([]proposal.Vote, error) {
			if prefix != "optimism" {
				t.Errorf("archive prefix = %q", prefix)
			}
			if delegate != testDelegate {
				t.Errorf("archive delegate = %q", delegate)
			}
			return []proposal.Vote{
				{ProposalID: "live", Support: proposal.SupportFor},
				{ProposalID: "old", Support: proposal.SupportAgainst},
			}, nil
		},
	}
	r := newReconciler(t, source, av, snap)

	page, err := r.VotesForDelegate(context.Background(), "optimism", testDelegate, proposal.Pagination{Limit: 10}, nil)
	if err != nil {
		t.Fatalf("votes: %v", err)
	}
	if len(page.Data) != 2 {
		t.Fatalf("expected live + archived vote, got %d", len(page.Data))
	}
	// The overlapping archived row must not duplicate the live one.
	if page.Data[0].Vote.ProposalID != "live" || page.Data[1].Vote.ProposalID != "old" {
		t.Fatalf("unexpected order: %s, %s", page.Data[0].Vote.ProposalID, page.Data[1].Vote.ProposalID)
	}
}

func TestVotesForDelegateParticipationRate(t *testing.T) {
	snap := &fakeSnapshot{payloads: []proposal.Payload{archivePayload("1")}}
	source := &fakeVoteSource{
		delegateVotesFn: func(context.Context, string, string, int, int) ([]store.VoteRow, error) {
			return []store.VoteRow{voteRow("1", 150)}, nil
		},
		countVotedFn: func(context.Context, string, string) (int, error) { return 3, nil },
		countEndedFn: func(_ context.Context, _ string, currentBlock string) (int, error) {
			if currentBlock != "500" {
				t.Errorf("ended count used block %s", currentBlock)
			}
			return 4, nil
		},
	}
	r := newReconciler(t, source, nil, snap)

	// Optimism has the flag on.
	page, err := r.VotesForDelegate(context.Background(), "optimism", testDelegate, proposal.Pagination{Limit: 10}, big.NewInt(500))
	if err != nil {
		t.Fatalf("votes: %v", err)
	}
	if page.Meta.ParticipationRate == nil || *page.Meta.ParticipationRate != 75 {
		t.Fatalf("participation rate = %v, want 75", page.Meta.ParticipationRate)
	}

	// Uniswap has it off: same inputs, no rate.
	page, err = r.VotesForDelegate(context.Background(), "uniswap", testDelegate, proposal.Pagination{Limit: 10}, big.NewInt(500))
	if err != nil {
		t.Fatalf("votes: %v", err)
	}
	if page.Meta.ParticipationRate != nil {
		t.Fatal("participation rate must be flag-gated per tenant")
	}
}

// A delegate who voted on proposals still open at the count block can
// exceed the ended denominator; the rate caps at 100.
func TestVotesForDelegateParticipationRateClamped(t *testing.T) {
	snap := &fakeSnapshot{payloads: []proposal.Payload{archivePayload("1")}}
	source := &fakeVoteSource{
		delegateVotesFn: func(context.Context, string, string, int, int) ([]store.VoteRow, error) {
			return []store.VoteRow{voteRow("1", 150)}, nil
		},
		countVotedFn: func(context.Context, string, string) (int, error) { return 5, nil },
		countEndedFn: func(context.Context, string, string) (int, error) { return 4, nil },
	}
	r := newReconciler(t, source, nil, snap)

	page, err := r.VotesForDelegate(context.Background(), "optimism", testDelegate, proposal.Pagination{Limit: 10}, big.NewInt(500))
	if err != nil {
		t.Fatalf("votes: %v", err)
	}
	if page.Meta.ParticipationRate == nil || *page.Meta.ParticipationRate != 100 {
		t.Fatalf("participation rate = %v, want 100", page.Meta.ParticipationRate)
	}
}

func TestVotesForDelegateUnsupportedTenant(t *testing.T) {
	r := newReconciler(t, &fakeVoteSource{}, nil, &fakeSnapshot{})
	_, err := r.VotesForDelegate(context.Background(), "nouns", testDelegate, proposal.Pagination{}, nil)
	if err == nil || !strings.Contains(err.Error(), "unsupported tenant") {
		t.Fatalf("expected unsupported tenant error, got %v", err)
	}
}
