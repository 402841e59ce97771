package models

const (
	DefaultPage  = 1
	DefaultLimit = 100
)

// PageOptions selects one page of results. Zero values fall back to the
// defaults.
type PageOptions struct {
	Page  int64 `query:"page" json:"page"`
	Limit int64 `query:"limit" json:"limit"`
}

// Normalize returns opts with defaults applied.
func (o PageOptions) Normalize() PageOptions {
	if o.Page < 1 {
		o.Page = DefaultPage
	}
	if o.Limit < 1 {
		o.Limit = DefaultLimit
	}
	return o
}

// Skip is the number of documents before the page.
func (o PageOptions) Skip() int64 {
	return (o.Page - 1) * o.Limit
}

// Page is one page of entities plus the paging metadata.
type Page[T any] struct {
	Items       []T   `json:"items"`
	Page        int64 `json:"page"`
	Limit       int64 `json:"limit"`
	TotalCount  int64 `json:"totalCount"`
	TotalPages  int64 `json:"totalPages"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

// NewPage computes paging metadata for items out of total matches.
func NewPage[T any](items []T, opts PageOptions, total int64) Page[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := int64(0)
	if opts.Limit > 0 {
		totalPages = (total + opts.Limit - 1) / opts.Limit
	}
	return Page[T]{
		Items:       items,
		Page:        opts.Page,
		Limit:       opts.Limit,
		TotalCount:  total,
		TotalPages:  totalPages,
		HasNextPage: opts.Page < totalPages,
		HasPrevPage: opts.Page > 1,
	}
}
