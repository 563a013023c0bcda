package query

// Result is the paginated list envelope returned by collection endpoints.
type Result[T any] struct {
	Docs          []T  `json:"docs"`
	TotalDocs     int  `json:"totalDocs"`
	Limit         int  `json:"limit"`
	Page          int  `json:"page"`
	TotalPages    int  `json:"totalPages"`
	PagingCounter int  `json:"pagingCounter"`
	HasPrevPage   bool `json:"hasPrevPage"`
	HasNextPage   bool `json:"hasNextPage"`
	PrevPage      *int `json:"prevPage"`
	NextPage      *int `json:"nextPage"`
}

// NewResult builds the envelope for one page of docs out of total matches.
func NewResult[T any](docs []T, total int, q *Query) Result[T] {
	if docs == nil {
		docs = []T{}
	}

	totalPages := 0
	if q.Limit > 0 {
		totalPages = (total + q.Limit - 1) / q.Limit
	}

	r := Result[T]{
		Docs:          docs,
		TotalDocs:     total,
		Limit:         q.Limit,
		Page:          q.Page,
		TotalPages:    totalPages,
		PagingCounter: q.Offset() + 1,
		HasPrevPage:   q.Page > 1,
		HasNextPage:   q.Page < totalPages,
	}
	if r.HasPrevPage {
		prev := q.Page - 1
		r.PrevPage = &prev
	}
	if r.HasNextPage {
		next := q.Page + 1
		r.NextPage = &next
	}
	return r
}
