package app

import (
	"math/big"

	"govhub/api/internal/proposal"
)

// View models keep big.Int weights as decimal strings: JavaScript numbers
// cannot carry token amounts.

type ResultsView struct {
	For     string `json:"for"`
	Against string `json:"against"`
	Abstain string `json:"abstain"`
	Total   string `json:"total"`
}

type TimelineView struct {
	CreatedBlock   *string `json:"createdBlock"`
	StartBlock     *string `json:"startBlock"`
	EndBlock       *string `json:"endBlock"`
	QueuedBlock    *string `json:"queuedBlock"`
	ExecutedBlock  *string `json:"executedBlock"`
	CancelledBlock *string `json:"cancelledBlock"`
}

type OutcomeView struct {
	QuorumMet            bool    `json:"quorumMet"`
	Approved             bool    `json:"approved"`
	ApprovalRatePct      float64 `json:"approvalRatePct"`
	ParticipationRatePct float64 `json:"participationRatePct"`

	ApprovedOptions []int `json:"approvedOptions,omitempty"`
	BudgetExceeded  bool  `json:"budgetExceeded,omitempty"`

	Vetoed        bool   `json:"vetoed,omitempty"`
	VetoVotes     string `json:"vetoVotes,omitempty"`
	VetoThreshold string `json:"vetoThreshold,omitempty"`
}

type OptionView struct {
	Title             string `json:"title"`
	Votes             string `json:"votes"`
	BudgetTokensSpent string `json:"budgetTokensSpent"`
	Approved          bool   `json:"approved"`
}

type ProposalView struct {
	ID                string       `json:"id"`
	Number            uint64       `json:"number,omitempty"`
	Type              string       `json:"type"`
	Title             string       `json:"title"`
	Description       string       `json:"description,omitempty"`
	Proposer          string       `json:"proposer"`
	Status            string       `json:"status"`
	Timeline          TimelineView `json:"timeline"`
	Results           ResultsView  `json:"results"`
	QuorumVotes       string       `json:"quorumVotes"`
	ApprovalThreshold string       `json:"approvalThreshold,omitempty"`
	VotableSupply     string       `json:"votableSupply"`
	Outcome           *OutcomeView `json:"outcome,omitempty"`
	Options           []OptionView `json:"options,omitempty"`
	TimelineAnomaly   bool         `json:"timelineAnomaly,omitempty"`
}

type VoteView struct {
	ProposalID    string        `json:"proposalId"`
	ProposalTitle string        `json:"proposalTitle"`
	Proposal      *ProposalView `json:"proposal,omitempty"`
	Voter         string        `json:"voter"`
	Support       int           `json:"support"`
	Weight        string        `json:"weight"`
	BlockNumber   *string       `json:"blockNumber"`
	Reason        string        `json:"reason,omitempty"`
	Params        []int         `json:"params,omitempty"`
}

type NonVoterView struct {
	Delegate    string `json:"delegate"`
	VotingPower string `json:"votingPower"`
}

func bigStr(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func bigPtr(v *big.Int) *string {
	if v == nil {
		return nil
	}
	s := v.String()
	return &s
}

// proposalView renders a proposal at the given block height. Tally errors
// surface as an absent outcome rather than failing the whole response.
func proposalView(p *proposal.Proposal, atBlock *big.Int, includeDescription bool) ProposalView {
	view := ProposalView{
		ID:       string(p.ID),
		Number:   p.Number,
		Type:     string(p.Type),
		Title:    p.Title,
		Proposer: p.Proposer.Hex(),
		Timeline: TimelineView{
			CreatedBlock:   bigPtr(p.Timeline.CreatedBlock),
			StartBlock:     bigPtr(p.Timeline.StartBlock),
			EndBlock:       bigPtr(p.Timeline.EndBlock),
			QueuedBlock:    bigPtr(p.Timeline.QueuedBlock),
			ExecutedBlock:  bigPtr(p.Timeline.ExecutedBlock),
			CancelledBlock: bigPtr(p.Timeline.CancelledBlock),
		},
		Results: ResultsView{
			For:     bigStr(p.Results.ForVotes),
			Against: bigStr(p.Results.AgainstVotes),
			Abstain: bigStr(p.Results.AbstainVotes),
			Total:   bigStr(p.Results.TotalVotes),
		},
		QuorumVotes:     bigStr(p.QuorumVotes),
		VotableSupply:   bigStr(p.VotableSupply),
		TimelineAnomaly: p.TimelineAnomaly,
	}
	if includeDescription {
		view.Description = p.Description
	}
	if p.ApprovalThreshold != nil {
		view.ApprovalThreshold = p.ApprovalThreshold.String()
	}

	if status, err := p.StatusAt(atBlock); err == nil {
		view.Status = string(status)
	} else {
		view.Status = string(proposal.StatusPending)
	}

	out, err := p.Tally()
	if err == nil {
		view.Outcome = outcomeView(out)
		view.Options = optionViews(p, out)
	}
	return view
}

func outcomeView(out proposal.Outcome) *OutcomeView {
	v := &OutcomeView{
		QuorumMet:            out.QuorumMet,
		Approved:             out.Approved,
		ApprovalRatePct:      proposal.PercentFromBps(out.ApprovalRateBps),
		ParticipationRatePct: proposal.PercentFromBps(out.ParticipationRateBps),
		ApprovedOptions:      out.ApprovedOptions,
		BudgetExceeded:       out.BudgetExceeded,
		Vetoed:               out.Vetoed,
	}
	if out.VetoVotes != nil {
		v.VetoVotes = out.VetoVotes.String()
	}
	if out.VetoThreshold != nil {
		v.VetoThreshold = out.VetoThreshold.String()
	}
	return v
}

func optionViews(p *proposal.Proposal, out proposal.Outcome) []OptionView {
	data, ok := p.Data.(proposal.ApprovalData)
	if !ok {
		return nil
	}
	approved := make(map[int]bool, len(out.ApprovedOptions))
	for _, idx := range out.ApprovedOptions {
		approved[idx] = true
	}
	views := make([]OptionView, 0, len(data.Options))
	for i, opt := range data.Options {
		views = append(views, OptionView{
			Title:             opt.Title,
			Votes:             bigStr(opt.Votes),
			BudgetTokensSpent: bigStr(opt.BudgetTokensSpent),
			Approved:          approved[i],
		})
	}
	return views
}

func voteView(v proposal.VoteWithProposal, atBlock *big.Int) VoteView {
	view := VoteView{
		ProposalID:  string(v.Vote.ProposalID),
		Voter:       v.Vote.Voter.Hex(),
		Support:     int(v.Vote.Support),
		Weight:      bigStr(v.Vote.Weight),
		BlockNumber: bigPtr(v.Vote.BlockNumber),
		Reason:      v.Vote.Reason,
		Params:      v.Vote.Params,
	}
	if v.Proposal != nil {
		view.ProposalTitle = v.Proposal.Title
		pv := proposalView(v.Proposal, atBlock, false)
		view.Proposal = &pv
	}
	return view
}
