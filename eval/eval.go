// Package eval translates query specifications into operations on a
// lazily evaluated data source. The pipeline applies sub-specifications
// in a fixed order; engines decide how each operation executes.
package eval

import (
	"context"
	"fmt"
	"reflect"

	queryspec "github.com/arcadia-data/queryspec"
	"github.com/arcadia-data/queryspec/expr"
	"github.com/arcadia-data/queryspec/navigation"
)

// Hints are the pass-through execution options a specification carries
// for the engine.
type Hints struct {
	NoTracking         bool
	SplitQuery         bool
	IgnoreQueryFilters bool
}

// Queryable is a lazily evaluated data source. Builder operations
// describe the query and must not touch the store; only List and Count
// execute. Implementations return a derived Queryable from every
// builder call and leave the receiver usable.
type Queryable interface {
	ElementType() reflect.Type
	Where(pred *expr.Lambda) Queryable
	Order(criteria []queryspec.SortCriterion) Queryable
	Search(criteria []queryspec.SearchCriterion) Queryable
	Skip(n int) Queryable
	Take(n int) Queryable
	Include(directives []*queryspec.IncludeDirective) Queryable
	WithHints(h Hints) Queryable

	List(ctx context.Context) ([]any, error)
	Count(ctx context.Context) (int, error)
}

// stage applies one sub-specification. Every stage is a no-op on an
// empty sub-spec and returns the source otherwise derived.
type stage struct {
	name  string
	apply func(q Queryable, s *queryspec.QuerySpecification) (Queryable, error)
}

// pipeline is the fixed stage order. Reordering entries changes result
// semantics (pagination before ordering, search after filtering).
var pipeline = []stage{
	{"where", applyWhere},
	{"order", applyOrder},
	{"search", applySearch},
	{"pagination", applyPagination},
	{"include", applyInclude},
	{"hints", applyHints},
}

// Apply runs the full pipeline over q.
func Apply(q Queryable, s *queryspec.QuerySpecification) (Queryable, error) {
	for _, st := range pipeline {
		var err error
		q, err = st.apply(q, s)
		if err != nil {
			return nil, fmt.Errorf("%s stage: %w", st.name, err)
		}
	}
	return q, nil
}

// elementType prefers the specification's binding and falls back to the
// source's element type for wire-decoded, unbound specifications.
func elementType(q Queryable, s *queryspec.QuerySpecification) reflect.Type {
	if t := s.ElementType(); t != nil {
		return t
	}
	return q.ElementType()
}

func applyWhere(q Queryable, s *queryspec.QuerySpecification) (Queryable, error) {
	pred, err := s.Filter().Predicate(elementType(q, s))
	if err != nil {
		return nil, err
	}
	if pred == nil {
		return q, nil
	}
	return q.Where(pred), nil
}

func applyOrder(q Queryable, s *queryspec.QuerySpecification) (Queryable, error) {
	criteria := s.SortCriteria()
	if len(criteria) == 0 {
		return q, nil
	}
	return q.Order(criteria), nil
}

func applySearch(q Queryable, s *queryspec.QuerySpecification) (Queryable, error) {
	criteria := s.SearchCriteria()
	if len(criteria) == 0 {
		return q, nil
	}
	return q.Search(criteria), nil
}

func applyPagination(q Queryable, s *queryspec.QuerySpecification) (Queryable, error) {
	if skip, ok := s.Skip(); ok {
		q = q.Skip(skip)
	}
	if take, ok := s.Take(); ok {
		q = q.Take(take)
	}
	return q, nil
}

// applyInclude sends the explicit include forest, extended with
// auto-discovered navigations when the specification asks for them.
// Explicit directives win over auto-discovered ones for the same root
// member.
func applyInclude(q Queryable, s *queryspec.QuerySpecification) (Queryable, error) {
	directives := s.Includes()
	flags := s.Flags()
	if flags.AutoInclude && !flags.IgnoreAutoIncludes {
		if elem := elementType(q, s); elem != nil {
			auto := navigation.Directives(elem, navigation.DefaultConvention)
			directives = mergeIncludes(directives, auto)
		}
	}
	if len(directives) == 0 {
		return q, nil
	}
	return q.Include(directives), nil
}

// mergeIncludes keeps every auto directive whose root member has no
// explicit directive, then appends the explicit forest.
func mergeIncludes(explicit, auto []*queryspec.IncludeDirective) []*queryspec.IncludeDirective {
	if len(auto) == 0 {
		return explicit
	}
	taken := make(map[string]bool, len(explicit))
	for _, d := range explicit {
		taken[d.Path] = true
	}
	var merged []*queryspec.IncludeDirective
	for _, d := range auto {
		if !taken[d.Path] {
			merged = append(merged, d)
		}
	}
	return append(merged, explicit...)
}

func applyHints(q Queryable, s *queryspec.QuerySpecification) (Queryable, error) {
	flags := s.Flags()
	h := Hints{
		NoTracking:         flags.NoTracking,
		SplitQuery:         flags.SplitQuery,
		IgnoreQueryFilters: flags.IgnoreQueryFilters,
	}
	if h == (Hints{}) {
		return q, nil
	}
	return q.WithHints(h), nil
}
