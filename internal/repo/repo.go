// Package repo exposes tenant-scoped proposal repositories over the live
// store and the archive, behind one read interface. Repositories are
// read-optimized projections of indexer output; writes are rejected.
package repo

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"govhub/api/internal/proposal"
)

var (
	// ErrNotFound is returned when no proposal exists for the id.
	ErrNotFound = errors.New("proposal not found")
	// ErrUnsupportedOperation is returned for writes: proposals enter the
	// system through the indexer and the archive exporter, never the API.
	ErrUnsupportedOperation = errors.New("unsupported repository operation")
	// ErrDataSource wraps failures of the backing store or archive fetch.
	// The core propagates these without retrying.
	ErrDataSource = errors.New("data source failure")
)

func wrapSource(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrDataSource, err)
}

// Query narrows FindMany and Count. Zero values mean "any".
type Query struct {
	Type     proposal.Variant
	Proposer string

	// Status filters on the derived lifecycle state at AtBlock. Status is
	// computed, never stored, so this filter is applied after fetching.
	Status  proposal.Status
	AtBlock *big.Int

	// OrderBy is one of createdAt, createdBlock, startBlock, endBlock;
	// empty means the store's insertion order.
	OrderBy string
	// OrderDirection is asc or desc; anything else falls back to desc.
	OrderDirection string

	Page proposal.Pagination
}

// Repository reads one tenant's proposals.
type Repository interface {
	FindByID(ctx context.Context, id proposal.ID) (*proposal.Proposal, error)
	FindByIDs(ctx context.Context, ids []proposal.ID) ([]*proposal.Proposal, error)
	FindMany(ctx context.Context, q Query) ([]*proposal.Proposal, error)
	Count(ctx context.Context, q Query) (int, error)
	Exists(ctx context.Context, id proposal.ID) (bool, error)

	Save(ctx context.Context, p *proposal.Proposal) error
	SaveMany(ctx context.Context, ps []*proposal.Proposal) error
}

func errorsIsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func equalAddress(p *proposal.Proposal, proposer string) bool {
	return p.Proposer == common.HexToAddress(proposer)
}

// sortProposals orders by the requested allow-listed column, descending
// unless direction is asc. Rows missing the sort value go last either way;
// anything outside the allow-list falls back to proposal number order.
func sortProposals(ps []*proposal.Proposal, orderBy, direction string) {
	asc := strings.EqualFold(direction, "asc")
	byNumber := func(i, j int) bool {
		if asc {
			return ps[i].Number < ps[j].Number
		}
		return ps[i].Number > ps[j].Number
	}

	if orderBy == "createdAt" {
		sort.SliceStable(ps, func(i, j int) bool {
			a, b := ps[i].CreatedAt, ps[j].CreatedAt
			switch {
			case a.IsZero() && b.IsZero():
				return byNumber(i, j)
			case a.IsZero():
				return false
			case b.IsZero():
				return true
			case asc:
				return a.Before(b)
			default:
				return a.After(b)
			}
		})
		return
	}

	key := func(p *proposal.Proposal) *big.Int {
		switch orderBy {
		case "createdBlock":
			return p.Timeline.CreatedBlock
		case "startBlock":
			return p.Timeline.StartBlock
		case "endBlock":
			return p.Timeline.EndBlock
		default:
			return nil
		}
	}
	sort.SliceStable(ps, func(i, j int) bool {
		a, b := key(ps[i]), key(ps[j])
		switch {
		case a == nil && b == nil:
			return byNumber(i, j)
		case a == nil:
			return false
		case b == nil:
			return true
		case asc:
			return a.Cmp(b) < 0
		default:
			return a.Cmp(b) > 0
		}
	})
}

// filterByStatus keeps proposals whose derived status at the given block
// matches want. Proposals whose tally errors are dropped rather than
// failing the listing.
func filterByStatus(ps []*proposal.Proposal, want proposal.Status, at *big.Int) []*proposal.Proposal {
	out := make([]*proposal.Proposal, 0, len(ps))
	for _, p := range ps {
		status, err := p.StatusAt(at)
		if err != nil {
			continue
		}
		if status == want {
			out = append(out, p)
		}
	}
	return out
}
