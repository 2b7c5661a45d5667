package queryspec

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/arcadia-data/queryspec/expr"
)

// Wire document types. Field names are part of the wire contract; do
// not rename them. Expression predicates travel as expr wire nodes,
// never as source text.

type wireDocument struct {
	Filter   *wireFilter     `json:"filter,omitempty"`
	Sort     []SortCriterion `json:"sort,omitempty"`
	Search   []wireSearch    `json:"search,omitempty"`
	Include  []wireInclude   `json:"include,omitempty"`
	Skip     *int            `json:"skip,omitempty"`
	Take     *int            `json:"take,omitempty"`
	Flags    *wireFlags      `json:"flags,omitempty"`
}

type wireFilter struct {
	Criteria   []wireCriterion  `json:"criteria,omitempty"`
	Predicates []*expr.WireNode `json:"predicates,omitempty"`
}

type wireCriterion struct {
	Path  string   `json:"path"`
	Op    FilterOp `json:"op"`
	Value any      `json:"value"`
}

type wireSearch struct {
	Path          string     `json:"path"`
	Term          string     `json:"term"`
	Mode          SearchMode `json:"mode"`
	CaseSensitive bool       `json:"case_sensitive,omitempty"`
}

type wireInclude struct {
	Path     string        `json:"path"`
	Children []wireInclude `json:"children,omitempty"`
}

type wireFlags struct {
	NoTracking         bool `json:"no_tracking,omitempty"`
	SplitQuery         bool `json:"split_query,omitempty"`
	IgnoreAutoIncludes bool `json:"ignore_auto_includes,omitempty"`
	IgnoreQueryFilters bool `json:"ignore_query_filters,omitempty"`
	AutoInclude        bool `json:"auto_include,omitempty"`
}

// MarshalJSON encodes the specification as its wire document.
func (s *QuerySpecification) MarshalJSON() ([]byte, error) {
	doc := wireDocument{
		Sort: s.SortCriteria(),
		Skip: s.skip,
		Take: s.take,
	}
	if !s.filter.Empty() {
		wf := &wireFilter{}
		for _, c := range s.filter.criteria {
			wf.Criteria = append(wf.Criteria, wireCriterion{Path: c.Path, Op: c.Op, Value: c.Value})
		}
		for _, p := range s.filter.predicates {
			w, err := expr.ToWire(p)
			if err != nil {
				return nil, fmt.Errorf("encode predicate: %w", err)
			}
			wf.Predicates = append(wf.Predicates, w)
		}
		doc.Filter = wf
	}
	for _, c := range s.search {
		doc.Search = append(doc.Search, wireSearch(c))
	}
	for _, d := range s.includes {
		doc.Include = append(doc.Include, includeToWire(d))
	}
	if s.flags != (Flags{}) {
		doc.Flags = &wireFlags{
			NoTracking:         s.flags.NoTracking,
			SplitQuery:         s.flags.SplitQuery,
			IgnoreAutoIncludes: s.flags.IgnoreAutoIncludes,
			IgnoreQueryFilters: s.flags.IgnoreQueryFilters,
			AutoInclude:        s.flags.AutoInclude,
		}
	}
	return json.Marshal(doc)
}

func includeToWire(d *IncludeDirective) wireInclude {
	w := wireInclude{Path: d.Path}
	for _, c := range d.Children {
		w.Children = append(w.Children, includeToWire(c))
	}
	return w
}

func includeFromWire(w wireInclude) *IncludeDirective {
	d := &IncludeDirective{Path: w.Path}
	for _, c := range w.Children {
		d.Children = append(d.Children, includeFromWire(c))
	}
	return d
}

// Decode reconstructs a specification bound to T from its wire document.
func Decode[T any](data []byte) (*QuerySpecification, error) {
	return DecodeFor(reflect.TypeOf((*T)(nil)).Elem(), data)
}

// DecodeFor reconstructs a specification from its wire document and
// binds it to elem. A nil elem leaves the specification unbound and
// skips path validation.
func DecodeFor(elem reflect.Type, data []byte) (*QuerySpecification, error) {
	var doc wireDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	s := NewFor(elem)
	if doc.Filter != nil {
		for _, c := range doc.Filter.Criteria {
			s.WhereField(c.Path, c.Op, c.Value)
		}
		for _, w := range doc.Filter.Predicates {
			l, err := expr.LambdaFromWire(w)
			if err != nil {
				return nil, fmt.Errorf("%w: predicate: %v", ErrValidation, err)
			}
			s.Where(l)
		}
	}
	for i, c := range doc.Sort {
		if c.Direction != SortAscending && c.Direction != SortDescending {
			return nil, fmt.Errorf("%w: sort direction %q", ErrValidation, c.Direction)
		}
		if i == 0 {
			s.primarySort(c.Path, c.Direction)
		} else {
			s.secondarySort(c.Path, c.Direction)
		}
	}
	for _, c := range doc.Search {
		s.addSearch(SearchCriterion(c))
	}
	for _, w := range doc.Include {
		d := includeFromWire(w)
		if err := s.validateIncludeTree(d); err != nil {
			return nil, err
		}
		s.includes = append(s.includes, d)
	}
	if doc.Skip != nil || doc.Take != nil {
		if doc.Skip == nil || doc.Take == nil {
			return nil, fmt.Errorf("%w: skip and take travel together", ErrInvalidPagination)
		}
		s.SetSkipTake(*doc.Skip, *doc.Take)
	}
	if doc.Flags != nil {
		s.flags = Flags{
			NoTracking:         doc.Flags.NoTracking,
			SplitQuery:         doc.Flags.SplitQuery,
			IgnoreAutoIncludes: doc.Flags.IgnoreAutoIncludes,
			IgnoreQueryFilters: doc.Flags.IgnoreQueryFilters,
			AutoInclude:        doc.Flags.AutoInclude,
		}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *QuerySpecification) validateIncludeTree(d *IncludeDirective) error {
	if d.Path == "" {
		return fmt.Errorf("%w: include directive without path", ErrValidation)
	}
	for _, c := range d.Children {
		if err := s.validateIncludeTree(c); err != nil {
			return err
		}
	}
	return nil
}
