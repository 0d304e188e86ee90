package archive

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"govhub/api/internal/proposal"
)

// Object key layout inside the archive bucket, one tree per tenant prefix.
func proposalsKey(prefix string) string {
	return prefix + "/proposals.ndjson.gz"
}

func votesKey(prefix, delegate string) string {
	return prefix + "/votes/" + strings.ToLower(delegate) + ".ndjson.gz"
}

func nonVotersKey(prefix string, id proposal.ID) string {
	return prefix + "/non-voters/" + string(id) + ".ndjson.gz"
}

type proposalRow struct {
	ID                 string          `json:"id"`
	ProposalNumber     flexBig         `json:"proposalNumber"`
	ProposalType       string          `json:"proposalType"`
	Title              string          `json:"title"`
	Description        string          `json:"description"`
	Proposer           string          `json:"proposer"`
	ProposalData       json.RawMessage `json:"proposalData"`
	ProposalResults    json.RawMessage `json:"proposalResults"`
	CreatedBlock       flexBig         `json:"createdBlock"`
	StartBlock         flexBig         `json:"startBlock"`
	EndBlock           flexBig         `json:"endBlock"`
	QueuedBlock        flexBig         `json:"queuedBlock"`
	ExecutedBlock      flexBig         `json:"executedBlock"`
	CancelledBlock     flexBig         `json:"cancelledBlock"`
	CreatedTime        string          `json:"createdTime"`
	QuorumVotes        flexBig         `json:"quorumVotes"`
	ApprovalThreshold  flexBig         `json:"approvalThreshold"`
	VotableSupply      flexBig         `json:"votableSupply"`
	CalculationOptions int             `json:"calculationOptions"`
}

// FetchProposals returns every archived proposal payload under the tenant
// prefix. A tenant with no archive yields an empty slice, not an error.
func (c *Client) FetchProposals(ctx context.Context, prefix string) ([]proposal.Payload, error) {
	key := proposalsKey(prefix)
	blob, found, err := c.fetchObject(ctx, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	lines, err := decodeLines[json.RawMessage](key, blob)
	if err != nil {
		return nil, err
	}

	out := make([]proposal.Payload, 0, len(lines))
	skipped := 0
	for _, line := range lines {
		var row proposalRow
		if err := json.Unmarshal(line, &row); err != nil || row.ID == "" {
			skipped++
			continue
		}
		out = append(out, normalizeProposal(row, line))
	}
	if skipped > 0 {
		log.Printf("archive: skipped %d unreadable proposal rows in %s", skipped, key)
	}
	return out, nil
}

func normalizeProposal(row proposalRow, raw json.RawMessage) proposal.Payload {
	p := proposal.Payload{
		ID:                row.ID,
		Type:              proposal.Variant(row.ProposalType),
		Title:             row.Title,
		Description:       row.Description,
		Proposer:          row.Proposer,
		Data:              row.ProposalData,
		Results:           row.ProposalResults,
		CreatedBlock:      row.CreatedBlock.Big(),
		StartBlock:        row.StartBlock.Big(),
		EndBlock:          row.EndBlock.Big(),
		QueuedBlock:       row.QueuedBlock.Big(),
		ExecutedBlock:     row.ExecutedBlock.Big(),
		CancelledBlock:    row.CancelledBlock.Big(),
		QuorumVotes:       row.QuorumVotes.Big(),
		ApprovalThreshold: row.ApprovalThreshold.Big(),
		VotableSupply:     row.VotableSupply.Big(),
		Raw:               raw,
	}
	if row.ProposalType == "" {
		p.Type = proposal.VariantStandard
	}
	if n := row.ProposalNumber.Big(); n != nil {
		p.Number = n.Uint64()
	}
	if row.CreatedTime != "" {
		if t, err := time.Parse(time.RFC3339, row.CreatedTime); err == nil {
			p.CreatedAt = t
		}
	}
	p.Context.CalculationOptions = row.CalculationOptions
	return p
}

type voteRow struct {
	ProposalID  string  `json:"proposalId"`
	Voter       string  `json:"voter"`
	Support     int     `json:"support"`
	Weight      flexBig `json:"weight"`
	BlockNumber flexBig `json:"blockNumber"`
	Reason      string  `json:"reason"`
	Params      []int   `json:"params"`
}

// FetchDelegateVotes returns every archived vote a delegate cast under the
// tenant prefix, newest first as exported.
func (c *Client) FetchDelegateVotes(ctx context.Context, prefix, delegate string) ([]proposal.Vote, error) {
	key := votesKey(prefix, delegate)
	blob, found, err := c.fetchObject(ctx, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	rows, err := decodeLines[voteRow](key, blob)
	if err != nil {
		return nil, err
	}

	out := make([]proposal.Vote, 0, len(rows))
	for _, row := range rows {
		voter := row.Voter
		if voter == "" {
			voter = delegate
		}
		out = append(out, proposal.Vote{
			ProposalID:  proposal.ID(row.ProposalID),
			Voter:       common.HexToAddress(voter),
			Support:     proposal.Support(row.Support),
			Weight:      row.Weight.Big(),
			BlockNumber: row.BlockNumber.Big(),
			Reason:      row.Reason,
			Params:      row.Params,
		})
	}
	return out, nil
}

type nonVoterRow struct {
	Delegate    string  `json:"delegate"`
	VotingPower flexBig `json:"votingPower"`
}

// FetchNonVoters returns the archived non-voter snapshot for one proposal.
func (c *Client) FetchNonVoters(ctx context.Context, prefix string, id proposal.ID) ([]proposal.NonVoter, error) {
	key := nonVotersKey(prefix, id)
	blob, found, err := c.fetchObject(ctx, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	rows, err := decodeLines[nonVoterRow](key, blob)
	if err != nil {
		return nil, err
	}

	out := make([]proposal.NonVoter, 0, len(rows))
	for _, row := range rows {
		out = append(out, proposal.NonVoter{
			Delegate:    common.HexToAddress(row.Delegate),
			VotingPower: row.VotingPower.Big(),
		})
	}
	return out, nil
}
