package search

import (
	"context"
	"errors"
	"testing"

	"govhub/api/internal/proposal"
)

type fakeFallbackStore struct {
	searchFn func(ctx context.Context, tenantSlug, term string, limit int) ([]proposal.Payload, error)
}

func (f *fakeFallbackStore) SearchProposals(ctx context.Context, tenantSlug, term string, limit int) ([]proposal.Payload, error) {
	if f.searchFn != nil {
		return f.searchFn(ctx, tenantSlug, term, limit)
	}
	return nil, nil
}

func TestServiceFallsBackWithoutMeili(t *testing.T) {
	fb := NewPgSearch(&fakeFallbackStore{
		searchFn: func(_ context.Context, tenantSlug, term string, _ int) ([]proposal.Payload, error) {
			if tenantSlug != "optimism" || term != "treasury" {
				t.Errorf("fallback got %q/%q", tenantSlug, term)
			}
			return []proposal.Payload{
				{ID: "1", Type: proposal.VariantStandard, Description: "# Treasury upgrade\nbody"},
			}, nil
		},
	})
	s := NewService(nil, fb)

	resp := s.Search(Query{Tenant: "optimism", Text: "treasury"})
	if resp.Total != 1 || len(resp.Results) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Results[0].Title != "Treasury upgrade" {
		t.Errorf("fallback must derive titles, got %q", resp.Results[0].Title)
	}
}

func TestServiceFallbackError(t *testing.T) {
	fb := NewPgSearch(&fakeFallbackStore{
		searchFn: func(context.Context, string, string, int) ([]proposal.Payload, error) {
			return nil, errors.New("db down")
		},
	})
	s := NewService(nil, fb)

	resp := s.Search(Query{Tenant: "optimism", Text: "treasury"})
	if resp.Results == nil || len(resp.Results) != 0 {
		t.Fatalf("errors must degrade to an empty result set, got %+v", resp)
	}
}

func TestPgSearchEmptyQuery(t *testing.T) {
	fb := NewPgSearch(&fakeFallbackStore{
		searchFn: func(context.Context, string, string, int) ([]proposal.Payload, error) {
			t.Fatal("store must not be queried for a blank term")
			return nil, nil
		},
	})
	results, total, err := fb.Search(Query{Tenant: "optimism", Text: "   "})
	if err != nil || total != 0 || len(results) != 0 {
		t.Fatalf("blank query: %v %d %v", results, total, err)
	}
}

func TestPgSearchOffset(t *testing.T) {
	fb := NewPgSearch(&fakeFallbackStore{
		searchFn: func(_ context.Context, _, _ string, limit int) ([]proposal.Payload, error) {
			if limit != 12 {
				t.Errorf("over-fetch limit = %d, want offset+limit", limit)
			}
			return []proposal.Payload{{ID: "1"}, {ID: "2"}, {ID: "3"}}, nil
		},
	})
	results, _, err := fb.Search(Query{Tenant: "ens", Text: "x", Offset: 2, Limit: 10})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "3" {
		t.Fatalf("offset slicing wrong: %+v", results)
	}
}

func TestRecordKey(t *testing.T) {
	if got := RecordKey("optimism", "42"); got != "optimism-42" {
		t.Fatalf("key = %q", got)
	}
}

func TestSnippetOf(t *testing.T) {
	long := make([]rune, 300)
	for i := range long {
		long[i] = 'a'
	}
	if got := snippetOf(string(long)); len([]rune(got)) != snippetRunes {
		t.Fatalf("snippet length = %d", len([]rune(got)))
	}
	if got := snippetOf(" short "); got != "short" {
		t.Fatalf("snippet = %q", got)
	}
}
