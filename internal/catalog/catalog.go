// Package catalog is the demo domain served over HTTP: an in-memory
// product catalog queried through wire-decoded specifications.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	queryspec "github.com/arcadia-data/queryspec"
	"github.com/arcadia-data/queryspec/eval"
	"github.com/arcadia-data/queryspec/memquery"
)

// ErrUnknownCollection reports a query against a collection the
// service does not hold.
var ErrUnknownCollection = errors.New("catalog: unknown collection")

// Category groups products.
type Category struct {
	ID   int
	Name string
}

// Supplier provides products.
type Supplier struct {
	ID      int
	Name    string
	Country string
}

// Product is the main catalog entity. Products soft-delete.
type Product struct {
	ID       int
	Name     string
	Price    float64
	Stock    int
	Deleted  bool
	Category *Category
	Supplier *Supplier
}

// MarkDeleted flags the product as deleted without removing it.
func (p *Product) MarkDeleted() { p.Deleted = true }

type entry struct {
	elem  reflect.Type
	query func() eval.Queryable
}

// Service executes wire-decoded specifications against named
// collections, applying the configured pagination limits.
type Service struct {
	collections     map[string]entry
	defaultPageSize int
	maxPageSize     int
}

// NewService creates an empty catalog service.
func NewService(defaultPageSize, maxPageSize int) *Service {
	return &Service{
		collections:     map[string]entry{},
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
	}
}

// Register exposes a collection under the given name.
func Register[T any](s *Service, name string, col *memquery.Collection[T]) {
	s.collections[name] = entry{
		elem:  reflect.TypeOf((*T)(nil)).Elem(),
		query: func() eval.Queryable { return col.Query() },
	}
}

// Collections lists the registered collection names.
func (s *Service) Collections() []string {
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	return names
}

// Query decodes a specification document and returns a page of
// matching entities. Unpaginated specifications get the default page;
// oversized pages are clamped to the configured maximum.
func (s *Service) Query(ctx context.Context, collection string, doc json.RawMessage) (*eval.PagedResult, error) {
	e, spec, err := s.decode(collection, doc)
	if err != nil {
		return nil, err
	}
	s.boundPagination(spec)
	return eval.GetPaged(ctx, e.query(), spec)
}

// Single decodes a specification document and returns the at most one
// matching entity.
func (s *Service) Single(ctx context.Context, collection string, doc json.RawMessage) (any, bool, error) {
	e, spec, err := s.decode(collection, doc)
	if err != nil {
		return nil, false, err
	}
	return eval.GetSingle(ctx, e.query(), spec)
}

// Delete decodes a specification document and soft-deletes every
// matching entity.
func (s *Service) Delete(ctx context.Context, collection string, doc json.RawMessage) (*eval.DeleteResult, error) {
	e, spec, err := s.decode(collection, doc)
	if err != nil {
		return nil, err
	}
	return eval.DeleteBulk(ctx, e.query(), spec)
}

func (s *Service) decode(collection string, doc json.RawMessage) (entry, *queryspec.QuerySpecification, error) {
	e, ok := s.collections[collection]
	if !ok {
		return entry{}, nil, fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}
	spec, err := queryspec.DecodeFor(e.elem, doc)
	if err != nil {
		return entry{}, nil, err
	}
	return e, spec, nil
}

// boundPagination fills in the default page and clamps the page size.
func (s *Service) boundPagination(spec *queryspec.QuerySpecification) {
	skip, hasSkip := spec.Skip()
	take, hasTake := spec.Take()
	switch {
	case !hasSkip && !hasTake:
		spec.SetPage(1, s.defaultPageSize)
	case take > s.maxPageSize:
		spec.SetSkipTake(skip, s.maxPageSize)
	}
}
