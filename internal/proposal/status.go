package proposal

import (
	"fmt"
	"math/big"
)

// Status is the derived lifecycle state of a proposal. It is never stored:
// every read computes it from the timeline, the current block height, and
// the variant tally.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusActive    Status = "ACTIVE"
	StatusCancelled Status = "CANCELLED"
	StatusQueued    Status = "QUEUED"
	StatusExecuted  Status = "EXECUTED"
	StatusSucceeded Status = "SUCCEEDED"
	StatusDefeated  Status = "DEFEATED"
)

// Tally runs the variant rules attached at construction.
func (p *Proposal) Tally() (Outcome, error) {
	if p.rules.Tally == nil {
		return Outcome{}, fmt.Errorf("proposal %s has no tally rules attached", p.ID)
	}
	return p.rules.Tally(p)
}

// StatusAt derives the lifecycle status at the given block height. Terminal
// markers win over the voting window: a cancelled proposal is CANCELLED
// even if its window is still open, an executed one is EXECUTED even if
// the tally would now fail.
func (p *Proposal) StatusAt(current *big.Int) (Status, error) {
	t := p.Timeline
	switch {
	case t.CancelledBlock != nil:
		return StatusCancelled, nil
	case t.ExecutedBlock != nil:
		return StatusExecuted, nil
	case t.QueuedBlock != nil:
		return StatusQueued, nil
	}

	if t.StartBlock == nil || current == nil || current.Cmp(t.StartBlock) < 0 {
		return StatusPending, nil
	}
	if t.EndBlock == nil || current.Cmp(t.EndBlock) < 0 {
		return StatusActive, nil
	}

	out, err := p.Tally()
	if err != nil {
		return "", err
	}
	if out.Approved {
		return StatusSucceeded, nil
	}
	return StatusDefeated, nil
}
