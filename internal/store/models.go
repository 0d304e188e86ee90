package store

import (
	"database/sql"
	"errors"
	"fmt"
	"math/big"
)

// ErrNotFound is returned when a row does not exist for the tenant.
var ErrNotFound = errors.New("not found")

// VoteRow is one vote-cast row as stored.
type VoteRow struct {
	ProposalID  string
	Voter       string
	Support     int
	Weight      *big.Int
	BlockNumber *big.Int
	Reason      string
	Params      []byte
}

// VotingPowerRow is one delegate's current voting power.
type VotingPowerRow struct {
	Delegate    string
	VotingPower *big.Int
}

// nullBig parses a NUMERIC column scanned as text. NULL and empty map to
// nil so callers can distinguish "absent" from zero.
func nullBig(v sql.NullString) (*big.Int, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	n, ok := new(big.Int).SetString(v.String, 10)
	if !ok {
		return nil, fmt.Errorf("parse numeric %q", v.String)
	}
	return n, nil
}
