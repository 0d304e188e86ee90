package proposal

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Payload is a raw proposal row as read from the live store or the
// archive, before variant rules have been applied.
type Payload struct {
	ID          string
	Number      uint64
	Type        Variant
	Title       string
	Description string
	Proposer    string

	Data    json.RawMessage
	Results json.RawMessage

	CreatedBlock   *big.Int
	StartBlock     *big.Int
	EndBlock       *big.Int
	QueuedBlock    *big.Int
	ExecutedBlock  *big.Int
	CancelledBlock *big.Int
	CreatedAt      time.Time

	QuorumVotes       *big.Int
	ApprovalThreshold *big.Int
	VotableSupply     *big.Int
	// QuorumBps is the tenant default used to derive QuorumVotes when the
	// row carries none.
	QuorumBps int64

	Context Context
	Raw     json.RawMessage
}

// Factory turns raw rows into Proposal entities using a frozen registry.
// All normalization lives here so live and archive repositories produce
// identical shapes.
type Factory struct {
	registry *Registry
}

func NewFactory(registry *Registry) *Factory {
	return &Factory{registry: registry}
}

// CreateProposal builds one proposal. Rows naming an unregistered variant
// fail with ErrUnknownVariant rather than degrading to standard rules.
func (f *Factory) CreateProposal(payload Payload) (*Proposal, error) {
	rules, err := f.registry.Resolve(payload.Type)
	if err != nil {
		return nil, fmt.Errorf("proposal %s: %w", payload.ID, err)
	}

	data, err := rules.ParseData(payload.Data)
	if err != nil {
		return nil, fmt.Errorf("proposal %s: %w", payload.ID, err)
	}

	results := ZeroResults()
	if len(payload.Results) > 0 {
		results, err = rules.ParseResults(payload.Results)
		if err != nil {
			return nil, fmt.Errorf("proposal %s: %w", payload.ID, err)
		}
	}

	threshold := payload.ApprovalThreshold
	if threshold != nil && (threshold.Sign() < 0 || threshold.Cmp(big.NewInt(BpsDenominator)) > 0) {
		return nil, fmt.Errorf("proposal %s: %w: approval threshold %s out of range", payload.ID, ErrInvalidData, threshold)
	}

	quorum := payload.QuorumVotes
	if quorum == nil {
		bps := payload.QuorumBps
		if rules.QuorumBps != nil {
			bps = *rules.QuorumBps
		}
		quorum = ComputeQuorum(payload.VotableSupply, bps)
	}

	timeline := Timeline{
		CreatedBlock:   payload.CreatedBlock,
		StartBlock:     payload.StartBlock,
		EndBlock:       payload.EndBlock,
		QueuedBlock:    payload.QueuedBlock,
		ExecutedBlock:  payload.ExecutedBlock,
		CancelledBlock: payload.CancelledBlock,
	}

	return &Proposal{
		ID:                ID(payload.ID),
		Number:            payload.Number,
		Type:              payload.Type,
		Title:             DeriveTitle(payload.Title, payload.Description),
		Description:       payload.Description,
		Proposer:          common.HexToAddress(payload.Proposer),
		Data:              data,
		Results:           results,
		Timeline:          timeline,
		CreatedAt:         payload.CreatedAt,
		QuorumVotes:       quorum,
		ApprovalThreshold: threshold,
		VotableSupply:     payload.VotableSupply,
		Context:           payload.Context,
		TimelineAnomaly:   timelineAnomalous(timeline),
		Raw:               payload.Raw,
		rules:             rules,
	}, nil
}

// CreateMany builds every payload it can, collecting per-row failures into
// a joined error. Callers get the good proposals either way: one corrupt
// archive row must not blank a whole listing.
func (f *Factory) CreateMany(payloads []Payload) ([]*Proposal, error) {
	out := make([]*Proposal, 0, len(payloads))
	var errs []error
	for _, payload := range payloads {
		p, err := f.CreateProposal(payload)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, p)
	}
	return out, errors.Join(errs...)
}

const (
	untitledProposal = "Untitled Proposal"
	maxTitleLen      = 100
)

// DeriveTitle prefers an explicit title and otherwise takes the first
// description line, stripped of markdown heading markers and truncated to
// a display length.
func DeriveTitle(title, description string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	desc := strings.TrimSpace(description)
	if desc == "" {
		return untitledProposal
	}

	line := desc
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(strings.TrimLeft(line, "#"))
	if line == "" {
		return untitledProposal
	}

	runes := []rune(line)
	if len(runes) > maxTitleLen {
		return string(runes[:maxTitleLen-3]) + "..."
	}
	return line
}

// timelineAnomalous flags lifecycle markers that cannot have happened in
// order. Anomalous rows stay readable; the flag lets callers annotate them.
func timelineAnomalous(t Timeline) bool {
	switch {
	case t.ExecutedBlock != nil && t.QueuedBlock == nil:
		return true
	case t.QueuedBlock != nil && t.EndBlock == nil:
		return true
	case t.EndBlock != nil && t.StartBlock == nil:
		return true
	case t.EndBlock != nil && t.StartBlock != nil && t.EndBlock.Cmp(t.StartBlock) < 0:
		return true
	case t.StartBlock != nil && t.CreatedBlock != nil && t.StartBlock.Cmp(t.CreatedBlock) < 0:
		return true
	}
	return false
}
