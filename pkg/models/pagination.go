package models

// DefaultPageSize is used when a request gives no positive limit
const DefaultPageSize = 50

// Paging holds the offsets of the neighbouring pages, nil when there is none
type Paging struct {
	Next     *int `json:"next"`
	Previous *int `json:"previous"`
}

// PaginatedResponse is one page of scenario history
type PaginatedResponse[T any] struct {
	Results    []T    `json:"results"`
	TotalCount int    `json:"total_count"`
	Paging     Paging `json:"paging,omitempty"`
}

// PageRequest is a normalized offset/limit pair
type PageRequest struct {
	Offset int
	Limit  int
}

// NewPageRequest clamps optional query values: a missing or negative offset
// is 0 and a missing or non-positive limit is DefaultPageSize
func NewPageRequest(offset, limit *int) PageRequest {
	p := PageRequest{Limit: DefaultPageSize}
	if offset != nil && *offset > 0 {
		p.Offset = *offset
	}
	if limit != nil && *limit > 0 {
		p.Limit = *limit
	}
	return p
}

// Paging derives neighbour offsets from how many results the page held.
// A full page is assumed to have a successor.
func (p PageRequest) Paging(n int) Paging {
	var paging Paging
	if n >= p.Limit {
		next := p.Offset + p.Limit
		paging.Next = &next
	}
	if p.Offset > 0 {
		prev := max(p.Offset-p.Limit, 0)
		paging.Previous = &prev
	}
	return paging
}

// NewPaginatedResponse wraps results, never encoding a null slice
func NewPaginatedResponse[T any](results []T, next *int, previous *int) PaginatedResponse[T] {
	if results == nil {
		results = []T{}
	}
	return PaginatedResponse[T]{
		Results:    results,
		TotalCount: len(results),
		Paging:     Paging{Next: next, Previous: previous},
	}
}

// Page builds the response for req from the results it returned
func Page[T any](req PageRequest, results []T) PaginatedResponse[T] {
	paging := req.Paging(len(results))
	return NewPaginatedResponse(results, paging.Next, paging.Previous)
}
