// Package memquery is an in-memory query engine. A Collection holds
// entities in a slice and serves eval.Queryable queries over them:
// predicates run through the expr interpreter, ordering and search are
// reflective, includes are recorded as shaping hints since in-memory
// entities already carry their navigations.
package memquery

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	queryspec "github.com/arcadia-data/queryspec"
	"github.com/arcadia-data/queryspec/eval"
	"github.com/arcadia-data/queryspec/expr"
)

// Collection is a concurrency-safe in-memory entity store. Queries
// snapshot the backing slice, so a running List never observes a
// concurrent Add.
type Collection[T any] struct {
	mu    sync.RWMutex
	items []T
	// filter is the collection-level query filter, applied to every
	// query unless the IgnoreQueryFilters hint is set.
	filter *expr.Lambda
}

// NewCollection builds a collection seeded with items.
func NewCollection[T any](items ...T) *Collection[T] {
	c := &Collection[T]{}
	c.items = append(c.items, items...)
	return c
}

// Add appends entities to the collection.
func (c *Collection[T]) Add(items ...T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, items...)
}

// Len returns the current entity count, query filter ignored.
func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// WithFilter installs a collection-level filter, typically a
// soft-deletion guard. Queries bypass it with the IgnoreQueryFilters
// hint.
func (c *Collection[T]) WithFilter(pred *expr.Lambda) *Collection[T] {
	c.filter = pred
	return c
}

func (c *Collection[T]) snapshot() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Query starts a lazily evaluated query over the collection.
func (c *Collection[T]) Query() eval.Queryable {
	return &query[T]{col: c}
}

// query carries accumulated builder state. Builder calls derive a new
// query value; nothing executes before List or Count.
type query[T any] struct {
	col *Collection[T]

	preds    []*expr.Lambda
	sorts    []queryspec.SortCriterion
	searches []queryspec.SearchCriterion
	skip     *int
	take     *int
	includes []*queryspec.IncludeDirective
	hints    eval.Hints
}

func (q *query[T]) clone() *query[T] {
	c := *q
	c.preds = append([]*expr.Lambda(nil), q.preds...)
	c.sorts = append([]queryspec.SortCriterion(nil), q.sorts...)
	c.searches = append([]queryspec.SearchCriterion(nil), q.searches...)
	c.includes = append([]*queryspec.IncludeDirective(nil), q.includes...)
	return &c
}

func (q *query[T]) ElementType() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func (q *query[T]) Where(pred *expr.Lambda) eval.Queryable {
	c := q.clone()
	c.preds = append(c.preds, pred)
	return c
}

func (q *query[T]) Order(criteria []queryspec.SortCriterion) eval.Queryable {
	c := q.clone()
	c.sorts = append([]queryspec.SortCriterion(nil), criteria...)
	return c
}

func (q *query[T]) Search(criteria []queryspec.SearchCriterion) eval.Queryable {
	c := q.clone()
	c.searches = append(c.searches, criteria...)
	return c
}

func (q *query[T]) Skip(n int) eval.Queryable {
	c := q.clone()
	c.skip = &n
	return c
}

func (q *query[T]) Take(n int) eval.Queryable {
	c := q.clone()
	if q.take != nil && *q.take < n {
		// A tighter limit already applies.
		return c
	}
	c.take = &n
	return c
}

func (q *query[T]) Include(directives []*queryspec.IncludeDirective) eval.Queryable {
	c := q.clone()
	c.includes = append(c.includes, directives...)
	return c
}

func (q *query[T]) WithHints(h eval.Hints) eval.Queryable {
	c := q.clone()
	c.hints = h
	return c
}

// IncludeChains exposes the recorded include forest as path chains.
// In-memory entities carry their navigations already; the chains let
// response shaping decide what to serialize.
func (q *query[T]) IncludeChains() [][]string {
	var out [][]string
	for _, d := range q.includes {
		out = append(out, d.Chains()...)
	}
	return out
}

func (q *query[T]) List(ctx context.Context) ([]any, error) {
	matched, err := q.matched(ctx)
	if err != nil {
		return nil, err
	}
	if len(q.sorts) > 0 {
		if err := q.sortItems(matched); err != nil {
			return nil, err
		}
	}
	if q.skip != nil {
		if *q.skip >= len(matched) {
			matched = nil
		} else {
			matched = matched[*q.skip:]
		}
	}
	if q.take != nil && *q.take < len(matched) {
		matched = matched[:*q.take]
	}
	out := make([]any, len(matched))
	for i, item := range matched {
		out[i] = item
	}
	return out, nil
}

func (q *query[T]) Count(ctx context.Context) (int, error) {
	matched, err := q.matched(ctx)
	if err != nil {
		return 0, err
	}
	return len(matched), nil
}

// matched applies the collection filter, predicates, and search to a
// snapshot. Pagination and ordering do not apply here: Count counts the
// whole match set.
func (q *query[T]) matched(ctx context.Context) ([]T, error) {
	preds := q.preds
	if q.col.filter != nil && !q.hints.IgnoreQueryFilters {
		preds = append([]*expr.Lambda{q.col.filter}, preds...)
	}
	var out []T
	for _, item := range q.col.snapshot() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ok, err := q.matchItem(item, preds)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func (q *query[T]) matchItem(item T, preds []*expr.Lambda) (bool, error) {
	for _, p := range preds {
		ok, err := expr.Evaluate(p, item)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	if len(q.searches) == 0 {
		return true, nil
	}
	return q.matchSearch(item)
}

// matchSearch ORs the search criteria: any hit admits the entity.
func (q *query[T]) matchSearch(item T) (bool, error) {
	for _, c := range q.searches {
		value, err := pathValue(item, c.Path)
		if err != nil {
			return false, err
		}
		text, ok := value.(string)
		if !ok {
			continue
		}
		term := c.Term
		if !c.CaseSensitive {
			text = strings.ToLower(text)
			term = strings.ToLower(term)
		}
		var hit bool
		switch c.Mode {
		case queryspec.SearchPrefix:
			hit = strings.HasPrefix(text, term)
		case queryspec.SearchSuffix:
			hit = strings.HasSuffix(text, term)
		default:
			hit = strings.Contains(text, term)
		}
		if hit {
			return true, nil
		}
	}
	return false, nil
}

// sortItems orders matched entities by every sort criterion in turn,
// stably, so equal keys preserve insertion order.
func (q *query[T]) sortItems(items []T) error {
	var sortErr error
	sort.SliceStable(items, func(i, j int) bool {
		for _, c := range q.sorts {
			vi, err := pathValue(items[i], c.Path)
			if err != nil {
				sortErr = err
				return false
			}
			vj, err := pathValue(items[j], c.Path)
			if err != nil {
				sortErr = err
				return false
			}
			cmp, err := expr.Compare(vi, vj)
			if err != nil {
				sortErr = err
				return false
			}
			if cmp == 0 {
				continue
			}
			if c.Direction == queryspec.SortDescending {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
	return sortErr
}

// pathValue reads a dotted member path off a live entity, nil when any
// segment is nil.
func pathValue(item any, path string) (any, error) {
	p := &expr.Parameter{Name: "x"}
	var body expr.Node = p
	for _, seg := range strings.Split(path, ".") {
		body = &expr.Member{Target: body, Name: seg}
	}
	v, err := expr.EvaluateValue(expr.NewPredicate(p, body), item)
	if err != nil {
		return nil, fmt.Errorf("path %q: %w", path, err)
	}
	return v, nil
}
