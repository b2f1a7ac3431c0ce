package sql

import "context"

// Page is one page of a counted pagination.
type Page struct {
	Data        []Row
	Total       int64
	PerPage     int
	CurrentPage int
	LastPage    int
}

// SimplePage is one page of an uncounted pagination. HasMore reports
// whether at least one further page exists.
type SimplePage struct {
	Data        []Row
	PerPage     int
	CurrentPage int
	HasMore     bool
}

// Paginate runs a COUNT over the query's predicates and then fetches the
// requested page. Pages are 1-based; page values below 1 resolve to the
// first page.
func (b *Builder) Paginate(ctx context.Context, page, perPage int) (*Page, error) {
	if err := b.ready("Paginate"); err != nil {
		return nil, err
	}
	if perPage < 1 {
		return nil, &InvalidPredicateError{Reason: "Paginate requires a positive page size"}
	}
	if page < 1 {
		page = 1
	}
	total, err := b.Clone().Count(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := b.Clone().Limit(perPage).Offset((page - 1) * perPage).Get(ctx)
	if err != nil {
		return nil, err
	}
	last := int((total + int64(perPage) - 1) / int64(perPage))
	if last < 1 {
		last = 1
	}
	return &Page{
		Data:        rows,
		Total:       total,
		PerPage:     perPage,
		CurrentPage: page,
		LastPage:    last,
	}, nil
}

// SimplePaginate fetches one row beyond the page size instead of issuing
// a COUNT, trading the total for one cheaper query.
func (b *Builder) SimplePaginate(ctx context.Context, page, perPage int) (*SimplePage, error) {
	if err := b.ready("SimplePaginate"); err != nil {
		return nil, err
	}
	if perPage < 1 {
		return nil, &InvalidPredicateError{Reason: "SimplePaginate requires a positive page size"}
	}
	if page < 1 {
		page = 1
	}
	rows, err := b.Clone().Limit(perPage + 1).Offset((page - 1) * perPage).Get(ctx)
	if err != nil {
		return nil, err
	}
	more := len(rows) > perPage
	if more {
		rows = rows[:perPage]
	}
	return &SimplePage{
		Data:        rows,
		PerPage:     perPage,
		CurrentPage: page,
		HasMore:     more,
	}, nil
}
