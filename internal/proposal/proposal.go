// Package proposal holds the governance domain model: proposals, votes,
// variant payloads, the type registry, the factory, and the pure tally and
// status computations shared by every tenant.
package proposal

import (
	"encoding/json"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ID is an opaque, tenant-scoped proposal identifier. On-chain governors
// emit uint256 ids, off-chain sources emit attestation hashes; both are
// carried verbatim as strings and compared by value.
type ID string

func (id ID) String() string { return string(id) }

// Variant tags the voting module a proposal was created under.
type Variant string

const (
	VariantStandard   Variant = "STANDARD"
	VariantApproval   Variant = "APPROVAL"
	VariantOptimistic Variant = "OPTIMISTIC"
)

// Support encodes a standard vote direction. The numeric values match the
// governor contract's VoteCast event (0=against, 1=for, 2=abstain).
type Support int

const (
	SupportAgainst Support = 0
	SupportFor     Support = 1
	SupportAbstain Support = 2
)

// QuorumPolicy selects which vote buckets count toward the quorum
// numerator. Governors disagree on this: some count only FOR, some count
// FOR+ABSTAIN, some count everything, so it is tenant configuration rather
// than a universal rule.
type QuorumPolicy int

const (
	// QuorumForAbstain counts FOR + ABSTAIN votes (the common default).
	QuorumForAbstain QuorumPolicy = iota
	// QuorumForOnly counts only FOR votes.
	QuorumForOnly
	// QuorumAllVotes counts FOR + AGAINST + ABSTAIN.
	QuorumAllVotes
)

// Context carries the tenant-specific override fields that alter
// calculation rules. Not every tenant uses every field; they are passed
// through opaquely so variant rules can consult them.
type Context struct {
	Tenant string

	QuorumPolicy QuorumPolicy
	// CalculationOptions is a per-proposal override recorded by some
	// governors; a value of 1 switches the quorum numerator to FOR-only
	// regardless of the tenant policy.
	CalculationOptions int

	// DelegateQuorum is a separate delegate-only quorum some tenants track.
	DelegateQuorum *big.Int
	// UpgradeBlock marks a governor implementation cutover; proposals
	// created before it may carry legacy payload shapes.
	UpgradeBlock *big.Int
	// DisapprovalThresholdPct overrides the display veto threshold for
	// optimistic proposals (percent of votable supply).
	DisapprovalThresholdPct int
	// BudgetChangeTime is the cutover after which approval option budgets
	// are recorded in raw token units instead of whole tokens.
	BudgetChangeTime time.Time
	// TokenDecimals scales legacy approval budgets recorded before
	// BudgetChangeTime.
	TokenDecimals int
}

// Timeline holds the lifecycle block markers. A nil field means the event
// has not been observed. Status is always derived from these plus the
// current block height, never stored.
type Timeline struct {
	CreatedBlock   *big.Int
	StartBlock     *big.Int
	EndBlock       *big.Int
	QueuedBlock    *big.Int
	ExecutedBlock  *big.Int
	CancelledBlock *big.Int
}

// Results are the aggregate tallies for standard-shaped voting. Approval
// proposals additionally carry per-option weights in their Data payload.
type Results struct {
	ForVotes     *big.Int
	AgainstVotes *big.Int
	AbstainVotes *big.Int
	TotalVotes   *big.Int
}

// ZeroResults returns an all-zero tally, used when a row has no recorded
// results yet.
func ZeroResults() Results {
	return Results{
		ForVotes:     new(big.Int),
		AgainstVotes: new(big.Int),
		AbstainVotes: new(big.Int),
		TotalVotes:   new(big.Int),
	}
}

// Data is the variant-specific settings payload. The concrete types form a
// closed set; repositories never hand untyped maps past the factory.
type Data interface {
	isProposalData()
}

// StandardData carries the executable transaction batch of a standard (or
// optimistic, which shares the shape) proposal.
type StandardData struct {
	Targets    []common.Address
	Values     []*big.Int
	Signatures []string
	Calldatas  []string
}

func (StandardData) isProposalData() {}

// Criteria selects how approval options win.
type Criteria string

const (
	CriteriaTopChoices Criteria = "TOP_CHOICES"
	CriteriaThreshold  Criteria = "THRESHOLD"
)

// ApprovalOption is one choice on a multi-option approval proposal.
type ApprovalOption struct {
	Title string
	// Votes is the aggregate weight cast for this option.
	Votes *big.Int
	// BudgetTokensSpent is the spend this option commits if approved.
	BudgetTokensSpent *big.Int
}

// ApprovalData carries the settings of an approval (multi-choice) proposal.
type ApprovalData struct {
	Options       []ApprovalOption
	MaxApprovals  int
	Criteria      Criteria
	CriteriaValue *big.Int
	BudgetToken   common.Address
	BudgetAmount  *big.Int
}

func (ApprovalData) isProposalData() {}

// Proposal is the normalized domain entity produced by the Factory from a
// live-store or archive row.
type Proposal struct {
	ID       ID
	Number   uint64
	Type     Variant
	Title    string
	Description string
	Proposer common.Address

	Data    Data
	Results Results

	Timeline Timeline
	// CreatedAt is the wall-clock creation time when the source records one
	// (archive rows do); zero otherwise.
	CreatedAt time.Time

	// QuorumVotes is the absolute participation weight required.
	QuorumVotes *big.Int
	// ApprovalThreshold is in basis points of non-abstain votes.
	ApprovalThreshold *big.Int
	// VotableSupply is the quorum denominator at snapshot.
	VotableSupply *big.Int

	Context Context

	// TimelineAnomaly flags rows whose lifecycle markers are out of order
	// (archive data is sometimes partial). The proposal stays usable.
	TimelineAnomaly bool

	// Raw preserves the source row for audit views that need fields outside
	// the normalized shape.
	Raw json.RawMessage

	rules Rules
}

// Rules returns the variant rules attached at construction.
func (p *Proposal) Rules() Rules { return p.rules }

// Vote is one recorded vote-cast event (or off-chain attestation).
type Vote struct {
	ProposalID  ID
	Voter       common.Address
	Support     Support
	Weight      *big.Int
	BlockNumber *big.Int
	Reason      string
	// Params carries approval option indexes for multi-choice votes.
	Params []int
}

// VoteWithProposal pairs a vote with the (possibly synthesized) summary of
// the proposal it was cast on, for delegate history views.
type VoteWithProposal struct {
	Vote     Vote
	Proposal *Proposal
}

// NonVoter is a delegate holding voting power who cast no vote on a given
// proposal. Derived, never stored.
type NonVoter struct {
	Delegate    common.Address
	VotingPower *big.Int
}
