package sql

import (
	"context"
	"errors"
	"iter"
)

// Chunk pages through the result set with LIMIT/OFFSET, invoking fn with
// each batch and its 1-based page number. The query must carry at least
// one order term so pages are stable. Returning ErrStopIteration from fn
// ends the loop without error.
//
// Rows written while chunking runs shift later offsets, so rows may be
// skipped or seen twice when the predicate column itself is updated; use
// ChunkByID for that case.
func (b *Builder) Chunk(ctx context.Context, size int, fn func(rows []Row, page int) error) error {
	if err := b.chunkable("Chunk", size); err != nil {
		return err
	}
	if len(b.state.Orders) == 0 {
		return &InvalidPredicateError{Reason: "Chunk requires at least one order term"}
	}
	for page := 1; ; page++ {
		rows, err := b.Clone().Limit(size).Offset((page - 1) * size).Get(ctx)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		if err := fn(rows, page); err != nil {
			if errors.Is(err, ErrStopIteration) {
				return nil
			}
			return err
		}
		if len(rows) < size {
			return nil
		}
	}
}

// ChunkByID pages through the result set keyed on a monotonic column,
// usually the primary key. Any order terms on the query are replaced with
// an ascending order on the key, and each page resumes after the largest
// key seen so far. Unlike Chunk this is stable under concurrent writes to
// the filtered columns.
func (b *Builder) ChunkByID(ctx context.Context, size int, column string, fn func(rows []Row, page int) error) error {
	if err := b.chunkable("ChunkByID", size); err != nil {
		return err
	}
	base := b.Clone()
	base.dirty()
	base.state.Orders = nil
	base.OrderBy(column).Limit(size)
	name := unqualify(column)
	var last any
	for page := 1; ; page++ {
		q := base.Clone()
		if last != nil {
			q.Where(column, ">", last)
		}
		rows, err := q.Get(ctx)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		if err := fn(rows, page); err != nil {
			if errors.Is(err, ErrStopIteration) {
				return nil
			}
			return err
		}
		last = rows[len(rows)-1][name]
		if last == nil {
			return &InvalidPredicateError{Reason: "ChunkByID key column " + name + " is missing from the result set"}
		}
		if len(rows) < size {
			return nil
		}
	}
}

func (b *Builder) chunkable(op string, size int) error {
	if err := b.ready(op); err != nil {
		return err
	}
	if size < 1 {
		return &InvalidPredicateError{Reason: op + " requires a positive chunk size"}
	}
	return nil
}

// Lazy returns a single-row iterator over the query, fetched in
// LIMIT/OFFSET pages of the given size so only one page is resident at a
// time. The query must carry at least one order term. Iteration stops at
// the first error, which is yielded with a nil row.
func (b *Builder) Lazy(ctx context.Context, size int) iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		err := b.Chunk(ctx, size, func(rows []Row, _ int) error {
			for _, row := range rows {
				if !yield(row, nil) {
					return ErrStopIteration
				}
			}
			return nil
		})
		if err != nil {
			yield(nil, err)
		}
	}
}

// LazyByID is the keyed variant of Lazy, paging on the given column the
// way ChunkByID does.
func (b *Builder) LazyByID(ctx context.Context, size int, column string) iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		err := b.ChunkByID(ctx, size, column, func(rows []Row, _ int) error {
			for _, row := range rows {
				if !yield(row, nil) {
					return ErrStopIteration
				}
			}
			return nil
		})
		if err != nil {
			yield(nil, err)
		}
	}
}
