package proposal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
)

// Raw rows store variant payloads as JSON whose numeric fields arrive as
// strings, numbers, or nulls depending on the indexer that wrote them. The
// helpers below normalize that mess once, so the rest of the domain only
// sees big.Int.

func decodeObject(raw []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

func pick(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// bigFromAny parses a token weight or block number from whatever JSON type
// the source used. Missing and empty values are zero, not errors.
func bigFromAny(v any) (*big.Int, error) {
	switch t := v.(type) {
	case nil:
		return new(big.Int), nil
	case string:
		return bigFromString(t)
	case json.Number:
		return bigFromString(t.String())
	case float64:
		f, _ := big.NewFloat(t).Int(nil)
		return f, nil
	case int:
		return big.NewInt(int64(t)), nil
	case int64:
		return big.NewInt(t), nil
	default:
		return nil, fmt.Errorf("unsupported numeric type %T", v)
	}
}

func bigFromString(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), nil
	}
	// Archive tallies occasionally arrive in scientific or decimal
	// notation; integers are the common case.
	if n, ok := new(big.Int).SetString(s, 10); ok {
		return n, nil
	}
	if f, ok := new(big.Float).SetString(s); ok {
		n, _ := f.Int(nil)
		return n, nil
	}
	return nil, fmt.Errorf("parse %q as integer", s)
}

func intFromAny(v any) int {
	n, err := bigFromAny(v)
	if err != nil {
		return 0
	}
	return int(n.Int64())
}

// stringSlice accepts a JSON array or a comma-separated string, both of
// which appear in historic rows.
func stringSlice(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []any:
		return lo.Map(t, func(item any, _ int) string {
			return fmt.Sprint(item)
		}), nil
	case string:
		if strings.TrimSpace(t) == "" {
			return nil, nil
		}
		parts := strings.Split(t, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported array type %T", v)
	}
}

func bigSlice(v any) ([]*big.Int, error) {
	raw, err := stringSlice(v)
	if err != nil {
		return nil, err
	}
	out := make([]*big.Int, 0, len(raw))
	for _, s := range raw {
		n, err := bigFromString(s)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func parseStandardData(raw []byte) (Data, error) {
	m, err := decodeObject(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	targets, err := stringSlice(pick(m, "targets"))
	if err != nil {
		return nil, fmt.Errorf("%w: targets: %v", ErrInvalidData, err)
	}
	values, err := bigSlice(pick(m, "values"))
	if err != nil {
		return nil, fmt.Errorf("%w: values: %v", ErrInvalidData, err)
	}
	signatures, err := stringSlice(pick(m, "signatures"))
	if err != nil {
		return nil, fmt.Errorf("%w: signatures: %v", ErrInvalidData, err)
	}
	calldatas, err := stringSlice(pick(m, "calldatas"))
	if err != nil {
		return nil, fmt.Errorf("%w: calldatas: %v", ErrInvalidData, err)
	}

	// Off-chain and signalling proposals legitimately carry no transactions.
	if len(targets) == 0 && len(values) == 0 && len(signatures) == 0 && len(calldatas) == 0 {
		return StandardData{}, nil
	}
	if len(targets) != len(values) || len(targets) != len(signatures) || len(targets) != len(calldatas) {
		return nil, fmt.Errorf("%w: transaction array lengths do not match", ErrInvalidData)
	}

	return StandardData{
		Targets: lo.Map(targets, func(t string, _ int) common.Address {
			return common.HexToAddress(t)
		}),
		Values:     values,
		Signatures: signatures,
		Calldatas:  calldatas,
	}, nil
}

func parseApprovalData(raw []byte) (Data, error) {
	m, err := decodeObject(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	rawOptions, ok := pick(m, "options").([]any)
	if !ok || len(rawOptions) == 0 {
		return nil, fmt.Errorf("%w: missing or invalid options array", ErrInvalidData)
	}

	options := make([]ApprovalOption, 0, len(rawOptions))
	for i, item := range rawOptions {
		om, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: option at index %d is not an object", ErrInvalidData, i)
		}
		title, _ := pick(om, "title", "option", "description").(string)
		if strings.TrimSpace(title) == "" {
			return nil, fmt.Errorf("%w: option at index %d missing title", ErrInvalidData, i)
		}
		votes, err := bigFromAny(pick(om, "votes"))
		if err != nil {
			return nil, fmt.Errorf("%w: option %d votes: %v", ErrInvalidData, i, err)
		}
		spent, err := bigFromAny(pick(om, "budgetTokensSpent", "budget_tokens_spent"))
		if err != nil {
			return nil, fmt.Errorf("%w: option %d budget: %v", ErrInvalidData, i, err)
		}
		options = append(options, ApprovalOption{Title: title, Votes: votes, BudgetTokensSpent: spent})
	}

	maxApprovals := intFromAny(pick(m, "maxApprovals", "max_approvals"))
	if maxApprovals < 1 {
		maxApprovals = 1
	}
	criteria := CriteriaThreshold
	if c, _ := pick(m, "criteria").(string); c == string(CriteriaTopChoices) {
		criteria = CriteriaTopChoices
	}
	criteriaValue, err := bigFromAny(pick(m, "criteriaValue", "criteria_value"))
	if err != nil {
		return nil, fmt.Errorf("%w: criteriaValue: %v", ErrInvalidData, err)
	}
	budgetAmount, err := bigFromAny(pick(m, "budgetAmount", "budget_amount"))
	if err != nil {
		return nil, fmt.Errorf("%w: budgetAmount: %v", ErrInvalidData, err)
	}

	var budgetToken common.Address
	if t, _ := pick(m, "budgetToken", "budget_token").(string); t != "" {
		budgetToken = common.HexToAddress(t)
	}

	return ApprovalData{
		Options:       options,
		MaxApprovals:  maxApprovals,
		Criteria:      criteria,
		CriteriaValue: criteriaValue,
		BudgetToken:   budgetToken,
		BudgetAmount:  budgetAmount,
	}, nil
}

// parseStandardResults reads aggregate tallies, accepting both camelCase
// and snake_case keys since live and archive rows disagree.
func parseStandardResults(raw []byte) (Results, error) {
	m, err := decodeObject(raw)
	if err != nil {
		return Results{}, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	forVotes, err := bigFromAny(pick(m, "forVotes", "for_votes", "for"))
	if err != nil {
		return Results{}, fmt.Errorf("%w: forVotes: %v", ErrInvalidData, err)
	}
	against, err := bigFromAny(pick(m, "againstVotes", "against_votes", "against"))
	if err != nil {
		return Results{}, fmt.Errorf("%w: againstVotes: %v", ErrInvalidData, err)
	}
	abstain, err := bigFromAny(pick(m, "abstainVotes", "abstain_votes", "abstain"))
	if err != nil {
		return Results{}, fmt.Errorf("%w: abstainVotes: %v", ErrInvalidData, err)
	}
	total, err := bigFromAny(pick(m, "totalVotes", "total_votes", "total"))
	if err != nil {
		return Results{}, fmt.Errorf("%w: totalVotes: %v", ErrInvalidData, err)
	}
	if total.Sign() == 0 {
		total = new(big.Int).Add(new(big.Int).Add(forVotes, against), abstain)
	}

	return Results{ForVotes: forVotes, AgainstVotes: against, AbstainVotes: abstain, TotalVotes: total}, nil
}
