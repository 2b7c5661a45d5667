package eval

import (
	"context"
	"fmt"

	queryspec "github.com/arcadia-data/queryspec"
)

// SoftDeletable is implemented by entities that are marked instead of
// removed during bulk deletion.
type SoftDeletable interface {
	MarkDeleted()
}

// PagedResult is the envelope returned by GetPaged.
type PagedResult struct {
	Items []any
	// TotalCount counts entities matching the filter alone, before
	// search and pagination.
	TotalCount int
	Page       int
	PageSize   int
}

// DeleteResult reports the outcome of DeleteBulk.
type DeleteResult struct {
	// SoftDeleted counts entities marked via MarkDeleted.
	SoftDeleted int
	// Remaining holds matched entities that do not soft-delete; the
	// caller removes them physically.
	Remaining []any
}

// GetSingle runs the pipeline and expects at most one match. No match
// returns (nil, false, nil); two or more return ErrMultipleMatches.
func GetSingle(ctx context.Context, q Queryable, s *queryspec.QuerySpecification) (any, bool, error) {
	applied, err := Apply(q, s)
	if err != nil {
		return nil, false, err
	}
	// Take 2 to detect ambiguity without materializing the full match set.
	items, err := applied.Take(2).List(ctx)
	if err != nil {
		return nil, false, err
	}
	switch len(items) {
	case 0:
		return nil, false, nil
	case 1:
		return items[0], true, nil
	default:
		return nil, false, queryspec.ErrMultipleMatches
	}
}

// GetPaged runs the pipeline and wraps the result in a paged envelope.
// The specification must carry both skip and take.
func GetPaged(ctx context.Context, q Queryable, s *queryspec.QuerySpecification) (*PagedResult, error) {
	skip, hasSkip := s.Skip()
	take, hasTake := s.Take()
	if !hasSkip || !hasTake {
		return nil, fmt.Errorf("%w: paged retrieval needs both skip and take", queryspec.ErrInvalidPagination)
	}
	applied, err := Apply(q, s)
	if err != nil {
		return nil, err
	}
	items, err := applied.List(ctx)
	if err != nil {
		return nil, err
	}
	// Total reflects the filter alone so page math stays stable across
	// search refinements. Hints still apply so both chains see the same
	// engine-level filters.
	filtered, err := applyWhere(q, s)
	if err != nil {
		return nil, err
	}
	filtered, err = applyHints(filtered, s)
	if err != nil {
		return nil, err
	}
	total, err := filtered.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &PagedResult{
		Items:      items,
		TotalCount: total,
		Page:       skip/take + 1,
		PageSize:   take,
	}, nil
}

// DeleteBulk runs the pipeline, visits every match once, and marks
// soft-deletable entities. Everything else is handed back for physical
// removal.
func DeleteBulk(ctx context.Context, q Queryable, s *queryspec.QuerySpecification) (*DeleteResult, error) {
	applied, err := Apply(q, s)
	if err != nil {
		return nil, err
	}
	items, err := applied.List(ctx)
	if err != nil {
		return nil, err
	}
	res := &DeleteResult{}
	for _, item := range items {
		if sd, ok := item.(SoftDeletable); ok {
			sd.MarkDeleted()
			res.SoftDeleted++
			continue
		}
		res.Remaining = append(res.Remaining, item)
	}
	return res, nil
}
