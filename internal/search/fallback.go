package search

import (
	"context"
	"fmt"
	"strings"

	"govhub/api/internal/proposal"
)

// FallbackStore is the slice of the live store the Postgres fallback
// needs.
type FallbackStore interface {
	SearchProposals(ctx context.Context, tenantSlug, term string, limit int) ([]proposal.Payload, error)
}

// PgSearch implements Searcher over the live store's ILIKE query. It is
// the degraded path when Meilisearch is down; ranking is insertion order.
type PgSearch struct {
	store FallbackStore
}

func NewPgSearch(store FallbackStore) *PgSearch {
	return &PgSearch{store: store}
}

// Healthy always returns true: if Postgres is down the whole API is down.
func (p *PgSearch) Healthy() bool {
	return true
}

func (p *PgSearch) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	// The fallback cannot offset efficiently; over-fetch and slice.
	payloads, err := p.store.SearchProposals(context.Background(), q.Tenant, q.Text, q.Offset+limit)
	if err != nil {
		return nil, 0, fmt.Errorf("pg search: %w", err)
	}

	total := len(payloads)
	if q.Offset > 0 {
		if q.Offset >= len(payloads) {
			payloads = nil
		} else {
			payloads = payloads[q.Offset:]
		}
	}

	results := make([]Result, 0, len(payloads))
	for _, payload := range payloads {
		results = append(results, Result{
			ID:      payload.ID,
			Tenant:  q.Tenant,
			Type:    string(payload.Type),
			Title:   proposal.DeriveTitle(payload.Title, payload.Description),
			Snippet: snippetOf(payload.Description),
		})
	}
	return results, total, nil
}
