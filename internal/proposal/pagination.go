package proposal

// Pagination is an offset/limit window over an ordered result set.
type Pagination struct {
	Offset int
	Limit  int
}

// DefaultPageSize applies when a caller passes no limit.
const DefaultPageSize = 50

// Normalize clamps a window to sane values.
func (p Pagination) Normalize() Pagination {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	return p
}

// PageMeta describes the window a page covers. HasNext is computed against
// the materialized superset, so it is exact even when the underlying store
// over-fetched.
type PageMeta struct {
	HasNext       bool `json:"has_next"`
	TotalReturned int  `json:"total_returned"`
	NextOffset    int  `json:"next_offset"`
	// ParticipationRate is only populated on delegate vote pages when the
	// tenant enables it; nil means not computed.
	ParticipationRate *float64 `json:"participation_rate,omitempty"`
}

// Paginated is one page of results with its window metadata.
type Paginated[T any] struct {
	Meta PageMeta `json:"meta"`
	Data []T      `json:"data"`
}

// Paginate slices a fully materialized result set. An offset at or past the
// end yields an empty page with HasNext false, not an error.
func Paginate[T any](items []T, p Pagination) Paginated[T] {
	p = p.Normalize()
	start := p.Offset
	if start > len(items) {
		start = len(items)
	}
	end := start + p.Limit
	if end > len(items) {
		end = len(items)
	}
	page := items[start:end]
	return Paginated[T]{
		Meta: PageMeta{
			HasNext:       end < len(items),
			TotalReturned: len(page),
			NextOffset:    end,
		},
		Data: page,
	}
}
