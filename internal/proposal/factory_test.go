package proposal

import (
	"encoding/json"
	"errors"
	"math/big"
	"strings"
	"testing"
)

func testFactory() *Factory {
	return NewFactory(DefaultRegistry())
}

func standardPayload() Payload {
	return Payload{
		ID:            "42",
		Number:        42,
		Type:          VariantStandard,
		Description:   "# Fund the grants program\n\nDetails follow.",
		Proposer:      "0x00000000000000000000000000000000000000aa",
		Data:          json.RawMessage(`{"targets":["0x00000000000000000000000000000000000000bb"],"values":["0"],"signatures":[""],"calldatas":["0x"]}`),
		Results:       json.RawMessage(`{"forVotes":"600","againstVotes":"300","abstainVotes":"100"}`),
		StartBlock:    big.NewInt(100),
		EndBlock:      big.NewInt(200),
		VotableSupply: big.NewInt(100000),
		QuorumBps:     300,
	}
}

func TestCreateProposalStandard(t *testing.T) {
	p, err := testFactory().CreateProposal(standardPayload())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Title != "Fund the grants program" {
		t.Errorf("title = %q", p.Title)
	}
	if p.Results.ForVotes.Int64() != 600 || p.Results.TotalVotes.Int64() != 1000 {
		t.Errorf("results not parsed: %+v", p.Results)
	}
	data, ok := p.Data.(StandardData)
	if !ok {
		t.Fatalf("data is %T", p.Data)
	}
	if len(data.Targets) != 1 {
		t.Errorf("expected 1 target, got %d", len(data.Targets))
	}
	if p.Rules().Tally == nil {
		t.Error("rules not attached")
	}
	if p.TimelineAnomaly {
		t.Error("well-ordered timeline flagged anomalous")
	}
}

func TestCreateProposalUnknownVariant(t *testing.T) {
	payload := standardPayload()
	payload.Type = Variant("SNAPSHOT")
	if _, err := testFactory().CreateProposal(payload); !errors.Is(err, ErrUnknownVariant) {
		t.Fatalf("expected ErrUnknownVariant, got %v", err)
	}
}

func TestCreateProposalQuorumDefault(t *testing.T) {
	payload := standardPayload()
	payload.QuorumVotes = nil
	p, err := testFactory().CreateProposal(payload)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// 3% of 100000.
	if p.QuorumVotes.Int64() != 3000 {
		t.Fatalf("derived quorum = %s, want 3000", p.QuorumVotes)
	}

	payload.QuorumVotes = big.NewInt(777)
	p, err = testFactory().CreateProposal(payload)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.QuorumVotes.Int64() != 777 {
		t.Fatalf("explicit quorum = %s, want 777", p.QuorumVotes)
	}
}

func TestCreateProposalOptimisticZeroQuorum(t *testing.T) {
	payload := standardPayload()
	payload.Type = VariantOptimistic
	payload.QuorumVotes = nil
	p, err := testFactory().CreateProposal(payload)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.QuorumVotes.Sign() != 0 {
		t.Fatalf("optimistic quorum = %s, want 0", p.QuorumVotes)
	}
}

func TestCreateProposalEmptyResults(t *testing.T) {
	payload := standardPayload()
	payload.Results = nil
	p, err := testFactory().CreateProposal(payload)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Results.TotalVotes.Sign() != 0 {
		t.Fatalf("empty results must be zero, got %+v", p.Results)
	}
}

func TestCreateProposalThresholdOutOfRange(t *testing.T) {
	payload := standardPayload()
	payload.ApprovalThreshold = big.NewInt(10001)
	if _, err := testFactory().CreateProposal(payload); !errors.Is(err, ErrInvalidData) {
		t.Fatalf("expected ErrInvalidData, got %v", err)
	}
}

func TestCreateProposalTimelineAnomaly(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Payload)
	}{
		{"executed without queued", func(p *Payload) { p.ExecutedBlock = big.NewInt(300) }},
		{"end before start", func(p *Payload) { p.StartBlock, p.EndBlock = big.NewInt(200), big.NewInt(100) }},
		{"end without start", func(p *Payload) { p.StartBlock = nil }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			payload := standardPayload()
			tc.mutate(&payload)
			p, err := testFactory().CreateProposal(payload)
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if !p.TimelineAnomaly {
				t.Fatal("expected TimelineAnomaly")
			}
		})
	}
}

func TestCreateManyCollectsErrors(t *testing.T) {
	good := standardPayload()
	bad := standardPayload()
	bad.ID = "43"
	bad.Type = Variant("SNAPSHOT")

	got, err := testFactory().CreateMany([]Payload{good, bad})
	if len(got) != 1 || got[0].ID != "42" {
		t.Fatalf("expected the good proposal to survive, got %d", len(got))
	}
	if !errors.Is(err, ErrUnknownVariant) {
		t.Fatalf("expected joined ErrUnknownVariant, got %v", err)
	}
}

func TestDeriveTitle(t *testing.T) {
	long := strings.Repeat("x", 150)
	tests := []struct {
		name        string
		title, desc string
		want        string
	}{
		{"explicit title wins", "My Title", "# Other", "My Title"},
		{"heading stripped", "", "## Upgrade treasury\nbody", "Upgrade treasury"},
		{"first line only", "", "Line one\nLine two", "Line one"},
		{"empty description", "", "", "Untitled Proposal"},
		{"heading only line", "", "###\nbody", "Untitled Proposal"},
		{"long line truncated", "", long, strings.Repeat("x", 97) + "..."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeriveTitle(tc.title, tc.desc); got != tc.want {
				t.Fatalf("DeriveTitle = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	tests := []struct {
		name     string
		p        Pagination
		wantData []int
		wantNext bool
		wantOff  int
	}{
		{"first page", Pagination{0, 2}, []int{1, 2}, true, 2},
		{"middle page", Pagination{2, 2}, []int{3, 4}, true, 4},
		{"last partial page", Pagination{4, 2}, []int{5}, false, 5},
		{"offset past end", Pagination{10, 2}, nil, false, 5},
		{"negative offset clamps", Pagination{-3, 2}, []int{1, 2}, true, 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Paginate(items, tc.p)
			if len(got.Data) != len(tc.wantData) {
				t.Fatalf("data = %v, want %v", got.Data, tc.wantData)
			}
			for i := range tc.wantData {
				if got.Data[i] != tc.wantData[i] {
					t.Fatalf("data = %v, want %v", got.Data, tc.wantData)
				}
			}
			if got.Meta.HasNext != tc.wantNext {
				t.Errorf("HasNext = %v, want %v", got.Meta.HasNext, tc.wantNext)
			}
			if got.Meta.NextOffset != tc.wantOff {
				t.Errorf("NextOffset = %d, want %d", got.Meta.NextOffset, tc.wantOff)
			}
			if got.Meta.TotalReturned != len(got.Data) {
				t.Errorf("TotalReturned = %d, want %d", got.Meta.TotalReturned, len(got.Data))
			}
		})
	}
}
