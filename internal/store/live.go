package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"govhub/api/internal/proposal"
)

// LiveStore reads indexed governance rows from Postgres. Every query is
// tenant-scoped; rows never leak across deployments. The store returns raw
// payloads: variant parsing and status derivation happen in the factory.
type LiveStore struct {
	db *sql.DB
}

func NewLiveStore(db *sql.DB) *LiveStore {
	return &LiveStore{db: db}
}

const proposalColumns = `
	id, proposal_number, proposal_type, title, description, proposer,
	data, results,
	created_block, start_block, end_block, queued_block, executed_block, cancelled_block,
	created_at,
	quorum_votes, approval_threshold, votable_supply, calculation_options
`

// ProposalFilter narrows a listing. Zero values mean "any".
type ProposalFilter struct {
	Type     proposal.Variant
	Proposer string
	// OrderBy is one of createdAt, createdBlock, startBlock, endBlock;
	// anything else (including empty) falls back to ordinal order.
	OrderBy string
	// OrderDirection is asc or desc; anything else falls back to desc.
	OrderDirection string
	Offset         int
	Limit          int
}

// Column allow-list: OrderBy values arrive from query strings and must
// never reach SQL verbatim.
var orderColumns = map[string]string{
	"createdAt":    "created_at",
	"createdBlock": "created_block",
	"startBlock":   "start_block",
	"endBlock":     "end_block",
}

const defaultListLimit = 50

// orderClause builds the ORDER BY for a listing from allow-listed values
// only; the filter strings never reach SQL verbatim.
func orderClause(filter ProposalFilter) string {
	dir := "DESC"
	if strings.EqualFold(filter.OrderDirection, "asc") {
		dir = "ASC"
	}
	if col, ok := orderColumns[filter.OrderBy]; ok {
		return " ORDER BY " + col + " " + dir + " NULLS LAST, ordinal " + dir
	}
	return " ORDER BY ordinal " + dir
}

func (s *LiveStore) GetProposal(ctx context.Context, tenantSlug string, id proposal.ID) (proposal.Payload, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE tenant = $1 AND id = $2`
	row := s.db.QueryRowContext(ctx, query, tenantSlug, string(id))
	payload, err := scanProposal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return proposal.Payload{}, fmt.Errorf("proposal %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return proposal.Payload{}, fmt.Errorf("get proposal %s: %w", id, err)
	}
	return payload, nil
}

// GetProposalsByIDs fetches a batch in one round trip. Missing ids are
// silently absent from the result; callers needing strictness compare
// lengths.
func (s *LiveStore) GetProposalsByIDs(ctx context.Context, tenantSlug string, ids []proposal.ID) ([]proposal.Payload, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = string(id)
	}
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE tenant = $1 AND id = ANY($2)`
	rows, err := s.db.QueryContext(ctx, query, tenantSlug, raw)
	if err != nil {
		return nil, fmt.Errorf("get proposals by ids: %w", err)
	}
	defer rows.Close()
	return scanProposals(rows)
}

func (s *LiveStore) ListProposals(ctx context.Context, tenantSlug string, filter ProposalFilter) ([]proposal.Payload, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE tenant = $1`
	args := []any{tenantSlug}

	if filter.Type != "" {
		args = append(args, string(filter.Type))
		query += fmt.Sprintf(" AND proposal_type = $%d", len(args))
	}
	if filter.Proposer != "" {
		args = append(args, filter.Proposer)
		query += fmt.Sprintf(" AND LOWER(proposer) = LOWER($%d)", len(args))
	}

	query += orderClause(filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	args = append(args, offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	defer rows.Close()
	return scanProposals(rows)
}

func (s *LiveStore) CountProposals(ctx context.Context, tenantSlug string, filter ProposalFilter) (int, error) {
	query := `SELECT COUNT(*) FROM proposals WHERE tenant = $1`
	args := []any{tenantSlug}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		query += fmt.Sprintf(" AND proposal_type = $%d", len(args))
	}
	if filter.Proposer != "" {
		args = append(args, filter.Proposer)
		query += fmt.Sprintf(" AND LOWER(proposer) = LOWER($%d)", len(args))
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count proposals: %w", err)
	}
	return n, nil
}

func (s *LiveStore) ProposalExists(ctx context.Context, tenantSlug string, id proposal.ID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM proposals WHERE tenant = $1 AND id = $2)`,
		tenantSlug, string(id)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("proposal exists: %w", err)
	}
	return exists, nil
}

// DelegateVotes returns a delegate's votes newest-first.
func (s *LiveStore) DelegateVotes(ctx context.Context, tenantSlug, voter string, offset, limit int) ([]VoteRow, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT proposal_id, voter, support, weight, block_number, reason, params
		FROM votes
		WHERE tenant = $1 AND LOWER(voter) = LOWER($2)
		ORDER BY block_number DESC, proposal_id DESC
		LIMIT $3 OFFSET $4
	`, tenantSlug, voter, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("delegate votes: %w", err)
	}
	defer rows.Close()

	votes := make([]VoteRow, 0)
	for rows.Next() {
		var (
			v              VoteRow
			weight, block  sql.NullString
			reason, params sql.NullString
		)
		if err := rows.Scan(&v.ProposalID, &v.Voter, &v.Support, &weight, &block, &reason, &params); err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		if v.Weight, err = nullBig(weight); err != nil {
			return nil, fmt.Errorf("vote weight: %w", err)
		}
		if v.BlockNumber, err = nullBig(block); err != nil {
			return nil, fmt.Errorf("vote block: %w", err)
		}
		v.Reason = reason.String
		if params.Valid {
			v.Params = []byte(params.String)
		}
		votes = append(votes, v)
	}
	return votes, rows.Err()
}

// CountVotedProposals counts distinct proposals the delegate voted on, the
// participation-rate numerator.
func (s *LiveStore) CountVotedProposals(ctx context.Context, tenantSlug, voter string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT proposal_id) FROM votes
		WHERE tenant = $1 AND LOWER(voter) = LOWER($2)
	`, tenantSlug, voter).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count voted proposals: %w", err)
	}
	return n, nil
}

// CountEndedProposals counts proposals whose window closed before the given
// block, the participation-rate denominator.
func (s *LiveStore) CountEndedProposals(ctx context.Context, tenantSlug string, currentBlock string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM proposals
		WHERE tenant = $1 AND cancelled_block IS NULL AND end_block <= $2::numeric
	`, tenantSlug, currentBlock).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count ended proposals: %w", err)
	}
	return n, nil
}

// NonVoters lists delegates holding voting power who cast no vote on the
// proposal, heaviest first.
func (s *LiveStore) NonVoters(ctx context.Context, tenantSlug string, id proposal.ID, offset, limit int) ([]VotingPowerRow, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT vp.delegate, vp.voting_power
		FROM voting_power vp
		LEFT JOIN votes v
			ON v.tenant = vp.tenant
			AND v.proposal_id = $2
			AND LOWER(v.voter) = LOWER(vp.delegate)
		WHERE vp.tenant = $1 AND vp.voting_power > 0 AND v.voter IS NULL
		ORDER BY vp.voting_power DESC, vp.delegate ASC
		LIMIT $3 OFFSET $4
	`, tenantSlug, string(id), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("non-voters: %w", err)
	}
	defer rows.Close()

	out := make([]VotingPowerRow, 0)
	for rows.Next() {
		var (
			r     VotingPowerRow
			power sql.NullString
		)
		if err := rows.Scan(&r.Delegate, &power); err != nil {
			return nil, fmt.Errorf("scan non-voter: %w", err)
		}
		if r.VotingPower, err = nullBig(power); err != nil {
			return nil, fmt.Errorf("voting power: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SearchProposals is the Postgres fallback used when the search index is
// unavailable: case-insensitive substring match over title and description.
func (s *LiveStore) SearchProposals(ctx context.Context, tenantSlug, term string, limit int) ([]proposal.Payload, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	query := `SELECT ` + proposalColumns + ` FROM proposals
		WHERE tenant = $1 AND (title ILIKE '%' || $2 || '%' OR description ILIKE '%' || $2 || '%')
		ORDER BY ordinal DESC
		LIMIT $3`
	rows, err := s.db.QueryContext(ctx, query, tenantSlug, term, limit)
	if err != nil {
		return nil, fmt.Errorf("search proposals: %w", err)
	}
	defer rows.Close()
	return scanProposals(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProposal(row rowScanner) (proposal.Payload, error) {
	var (
		p             proposal.Payload
		number        sql.NullInt64
		variant       string
		data, results []byte
		blocks        [6]sql.NullString
		createdAt     sql.NullTime
		quorum        sql.NullString
		threshold     sql.NullString
		supply        sql.NullString
		calcOptions   sql.NullInt64
	)
	err := row.Scan(
		&p.ID, &number, &variant, &p.Title, &p.Description, &p.Proposer,
		&data, &results,
		&blocks[0], &blocks[1], &blocks[2], &blocks[3], &blocks[4], &blocks[5],
		&createdAt,
		&quorum, &threshold, &supply, &calcOptions,
	)
	if err != nil {
		return proposal.Payload{}, err
	}

	p.Number = uint64(number.Int64)
	p.Type = proposal.Variant(variant)
	p.Data = data
	p.Results = results
	if createdAt.Valid {
		p.CreatedAt = createdAt.Time
	}
	p.Context.CalculationOptions = int(calcOptions.Int64)

	if p.CreatedBlock, err = nullBig(blocks[0]); err != nil {
		return proposal.Payload{}, fmt.Errorf("created_block: %w", err)
	}
	if p.StartBlock, err = nullBig(blocks[1]); err != nil {
		return proposal.Payload{}, fmt.Errorf("start_block: %w", err)
	}
	if p.EndBlock, err = nullBig(blocks[2]); err != nil {
		return proposal.Payload{}, fmt.Errorf("end_block: %w", err)
	}
	if p.QueuedBlock, err = nullBig(blocks[3]); err != nil {
		return proposal.Payload{}, fmt.Errorf("queued_block: %w", err)
	}
	if p.ExecutedBlock, err = nullBig(blocks[4]); err != nil {
		return proposal.Payload{}, fmt.Errorf("executed_block: %w", err)
	}
	if p.CancelledBlock, err = nullBig(blocks[5]); err != nil {
		return proposal.Payload{}, fmt.Errorf("cancelled_block: %w", err)
	}
	if p.QuorumVotes, err = nullBig(quorum); err != nil {
		return proposal.Payload{}, fmt.Errorf("quorum_votes: %w", err)
	}
	if p.ApprovalThreshold, err = nullBig(threshold); err != nil {
		return proposal.Payload{}, fmt.Errorf("approval_threshold: %w", err)
	}
	if p.VotableSupply, err = nullBig(supply); err != nil {
		return proposal.Payload{}, fmt.Errorf("votable_supply: %w", err)
	}
	return p, nil
}

func scanProposals(rows *sql.Rows) ([]proposal.Payload, error) {
	out := make([]proposal.Payload, 0)
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
