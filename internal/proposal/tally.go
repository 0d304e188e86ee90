package proposal

import (
	"fmt"
	"math"
	"math/big"
	"sort"
)

const (
	// BpsDenominator is the basis-point scale used for thresholds.
	BpsDenominator = 10000
	// DefaultApprovalThresholdBps applies when a row carries no threshold.
	DefaultApprovalThresholdBps = 5000

	// displayVetoPct is the veto fraction shown on optimistic progress bars.
	displayVetoPct = 12
	// statusVetoPct is the veto fraction that actually defeats an
	// optimistic proposal.
	statusVetoPct = 50
)

// Outcome is the variant-aware tally evaluation of one proposal. Token
// weights stay big.Int end to end; only the *RateBps fields are scaled down
// for display.
type Outcome struct {
	QuorumMet bool
	Approved  bool

	// ApprovalRateBps is FOR over FOR+AGAINST in basis points.
	ApprovalRateBps int64
	// ParticipationRateBps is the quorum numerator over votable supply in
	// basis points.
	ParticipationRateBps int64

	// ApprovedOptions holds the winning option indexes of an approval
	// proposal, in the options' declared order positions.
	ApprovedOptions []int
	// BudgetExceeded reports that the threshold walk stopped because the
	// running budget could not cover the next option.
	BudgetExceeded bool

	// Optimistic fields. VetoThreshold/Vetoed use the display fraction,
	// StatusVetoThreshold/VetoedForStatus the status fraction that decides
	// pass/fail.
	VetoVotes           *big.Int
	VetoThreshold       *big.Int
	Vetoed              bool
	StatusVetoThreshold *big.Int
	VetoedForStatus     bool
}

// ParticipationVotes returns the quorum numerator under the proposal's
// tenant policy. A per-proposal calculation option of 1 forces FOR-only
// counting regardless of policy.
func ParticipationVotes(p *Proposal) *big.Int {
	r := p.Results
	if p.Context.CalculationOptions == 1 {
		return nz(r.ForVotes)
	}
	switch p.Context.QuorumPolicy {
	case QuorumForOnly:
		return nz(r.ForVotes)
	case QuorumAllVotes:
		sum := new(big.Int).Add(nz(r.ForVotes), nz(r.AgainstVotes))
		return sum.Add(sum, nz(r.AbstainVotes))
	default:
		return new(big.Int).Add(nz(r.ForVotes), nz(r.AbstainVotes))
	}
}

// TallyStandard evaluates FOR/AGAINST/ABSTAIN voting: quorum on the tenant
// participation numerator, approval on the FOR share of non-abstain votes.
func TallyStandard(p *Proposal) (Outcome, error) {
	participation := ParticipationVotes(p)
	quorumMet := participation.Cmp(nz(p.QuorumVotes)) >= 0

	opinion := new(big.Int).Add(nz(p.Results.ForVotes), nz(p.Results.AgainstVotes))
	approvalRate := ratioBps(nz(p.Results.ForVotes), opinion)

	threshold := approvalThresholdBps(p)
	// Zero opinion votes can never be approved, whatever the threshold.
	approved := quorumMet && opinion.Sign() > 0 && approvalRate >= threshold

	return Outcome{
		QuorumMet:            quorumMet,
		Approved:             approved,
		ApprovalRateBps:      approvalRate,
		ParticipationRateBps: ratioBps(participation, nz(p.VotableSupply)),
	}, nil
}

// TallyApproval evaluates multi-choice voting. TOP_CHOICES approves the
// best maxApprovals options by weight; THRESHOLD walks options in
// descending weight (ties keep declared order) approving while each meets
// its absolute vote threshold and the running budget covers its spend —
// the first failure stops all later approvals.
func TallyApproval(p *Proposal) (Outcome, error) {
	data, ok := p.Data.(ApprovalData)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: approval tally on %T payload", ErrInvalidData, p.Data)
	}

	participation := ParticipationVotes(p)
	quorumMet := participation.Cmp(nz(p.QuorumVotes)) >= 0

	order := make([]int, len(data.Options))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return nz(data.Options[order[a]].Votes).Cmp(nz(data.Options[order[b]].Votes)) > 0
	})

	var approvedIdx []int
	budgetExceeded := false

	switch data.Criteria {
	case CriteriaTopChoices:
		n := data.MaxApprovals
		if n > len(order) {
			n = len(order)
		}
		approvedIdx = append(approvedIdx, order[:n]...)

	default: // CriteriaThreshold
		available := new(big.Int).Set(nz(data.BudgetAmount))
		exceeded := false
		for _, idx := range order {
			opt := data.Options[idx]
			spend := optionSpend(p, opt)
			ok := !exceeded &&
				nz(opt.Votes).Cmp(nz(data.CriteriaValue)) >= 0 &&
				available.Cmp(spend) >= 0
			if ok {
				available.Sub(available, spend)
				approvedIdx = append(approvedIdx, idx)
			} else {
				exceeded = true
			}
		}
		budgetExceeded = exceeded && len(approvedIdx) < len(order)
	}

	totalOptionVotes := new(big.Int)
	for _, opt := range data.Options {
		totalOptionVotes.Add(totalOptionVotes, nz(opt.Votes))
	}

	return Outcome{
		QuorumMet:            quorumMet,
		Approved:             quorumMet && len(approvedIdx) > 0,
		ApprovedOptions:      approvedIdx,
		BudgetExceeded:       budgetExceeded,
		ParticipationRateBps: ratioBps(totalOptionVotes, nz(p.VotableSupply)),
	}, nil
}

// optionSpend returns an option's budget draw. Proposals created before the
// tenant's budget cutover recorded spends in whole tokens and are scaled by
// the token decimals; later proposals record raw base units.
func optionSpend(p *Proposal, opt ApprovalOption) *big.Int {
	spend := nz(opt.BudgetTokensSpent)
	cutover := p.Context.BudgetChangeTime
	if cutover.IsZero() || p.CreatedAt.After(cutover) {
		return spend
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(p.Context.TokenDecimals)), nil)
	return new(big.Int).Mul(spend, scale)
}

// TallyOptimistic evaluates veto-only proposals: approved by default,
// defeated only when AGAINST weight reaches the status veto fraction of
// votable supply. The lower display fraction feeds progress bars without
// affecting the result.
func TallyOptimistic(p *Proposal) (Outcome, error) {
	supply := nz(p.VotableSupply)
	veto := nz(p.Results.AgainstVotes)

	displayPct := p.Context.DisapprovalThresholdPct
	if displayPct <= 0 {
		displayPct = displayVetoPct
	}

	vetoThreshold := pctOf(supply, displayPct)
	statusThreshold := pctOf(supply, statusVetoPct)

	// A zero supply cannot be vetoed against; the proposal stands.
	vetoed := supply.Sign() > 0 && veto.Cmp(vetoThreshold) >= 0
	vetoedForStatus := supply.Sign() > 0 && veto.Cmp(statusThreshold) >= 0

	return Outcome{
		QuorumMet:            true,
		Approved:             !vetoedForStatus,
		ParticipationRateBps: ratioBps(veto, supply),
		VetoVotes:            veto,
		VetoThreshold:        vetoThreshold,
		Vetoed:               vetoed,
		StatusVetoThreshold:  statusThreshold,
		VetoedForStatus:      vetoedForStatus,
	}, nil
}

// ComputeQuorum derives the absolute quorum from votable supply and basis
// points using exact integer arithmetic.
func ComputeQuorum(votableSupply *big.Int, quorumBps int64) *big.Int {
	q := new(big.Int).Mul(nz(votableSupply), big.NewInt(quorumBps))
	return q.Div(q, big.NewInt(BpsDenominator))
}

func approvalThresholdBps(p *Proposal) int64 {
	if p.ApprovalThreshold == nil {
		return DefaultApprovalThresholdBps
	}
	return p.ApprovalThreshold.Int64()
}

// ratioBps returns num/den in basis points, clamped to int64 and zero when
// the denominator is zero (zero supply and zero votes are real states, not
// errors).
func ratioBps(num, den *big.Int) int64 {
	if den == nil || den.Sign() == 0 {
		return 0
	}
	r := new(big.Int).Mul(nz(num), big.NewInt(BpsDenominator))
	r.Div(r, den)
	if !r.IsInt64() {
		return math.MaxInt64
	}
	return r.Int64()
}

// PercentFromBps converts a basis-point rate to a display percentage. This
// is the only place tallies touch floating point.
func PercentFromBps(bps int64) float64 {
	return float64(bps) / 100
}

func pctOf(v *big.Int, pct int) *big.Int {
	r := new(big.Int).Mul(nz(v), big.NewInt(int64(pct)))
	return r.Div(r, big.NewInt(100))
}

func nz(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
