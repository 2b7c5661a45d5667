// Package queryspec builds serializable query specifications: filter,
// sort, search, and include criteria assembled through a fluent builder
// and handed to an evaluator for execution against a lazily evaluated
// data source. Specifications describe what to fetch; they never touch
// a store themselves.
package queryspec

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/arcadia-data/queryspec/expr"
)

// Flags are the execution hints carried by a specification. They never
// change which entities match; they steer how the engine materializes
// the result.
type Flags struct {
	NoTracking         bool
	SplitQuery         bool
	IgnoreAutoIncludes bool
	IgnoreQueryFilters bool
	AutoInclude        bool
}

// QuerySpecification aggregates filter, sort, search, and include
// criteria with pagination and execution flags. Build it fluently, then
// hand it to a retrieval call; it is consumed read-only from that point.
//
// Builder methods record validation failures instead of panicking;
// Validate surfaces everything collected so far.
type QuerySpecification struct {
	elem reflect.Type

	filter   FilterSpecification
	sort     []SortCriterion
	search   []SearchCriterion
	includes []*IncludeDirective
	// lastInclude is the chain target for ThenInclude.
	lastInclude *IncludeDirective

	skip *int
	take *int

	flags Flags

	errs []error
}

// New creates a specification bound to the element type T. Member paths
// in builder calls are validated against T.
func New[T any]() *QuerySpecification {
	return NewFor(reflect.TypeOf((*T)(nil)).Elem())
}

// NewFor creates a specification for a runtime element type. A nil type
// skips path validation; wire-decoded specifications start out this way
// until the caller re-binds them.
func NewFor(elem reflect.Type) *QuerySpecification {
	return &QuerySpecification{elem: elem}
}

// ElementType returns the bound element type, or nil when unbound.
func (s *QuerySpecification) ElementType() reflect.Type { return s.elem }

// Bind attaches an element type to an unbound specification and
// re-validates every recorded member path against it.
func (s *QuerySpecification) Bind(elem reflect.Type) *QuerySpecification {
	s.elem = elem
	if elem == nil {
		return s
	}
	for _, c := range s.filter.criteria {
		if _, err := expr.ResolvePath(elem, c.Path); err != nil {
			s.fail(fmt.Errorf("%w: filter %v", ErrValidation, err))
		}
	}
	for _, c := range s.sort {
		if _, err := expr.ResolvePath(elem, c.Path); err != nil {
			s.fail(fmt.Errorf("%w: sort %v", ErrValidation, err))
		}
	}
	for _, c := range s.search {
		if _, err := expr.ResolvePath(elem, c.Path); err != nil {
			s.fail(fmt.Errorf("%w: search %v", ErrValidation, err))
		}
	}
	return s
}

func (s *QuerySpecification) fail(err error) {
	s.errs = append(s.errs, err)
}

// Validate returns every validation failure recorded by the builder
// calls, or nil when the specification is well formed.
func (s *QuerySpecification) Validate() error {
	if len(s.errs) == 0 {
		return nil
	}
	msgs := make([]string, len(s.errs))
	for i, e := range s.errs {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
}

// Where adds an explicit predicate lambda to the filter.
func (s *QuerySpecification) Where(pred *expr.Lambda) *QuerySpecification {
	if pred == nil {
		s.fail(fmt.Errorf("%w: nil predicate", ErrValidation))
		return s
	}
	if s.filter.count() >= MaxFilterCriteria {
		s.fail(fmt.Errorf("%w: too many filter criteria (max %d)", ErrValidation, MaxFilterCriteria))
		return s
	}
	s.filter.predicates = append(s.filter.predicates, pred)
	return s
}

// WhereField adds a field criterion. The path is validated against the
// element type when one is bound.
func (s *QuerySpecification) WhereField(path string, op FilterOp, value any) *QuerySpecification {
	if s.filter.count() >= MaxFilterCriteria {
		s.fail(fmt.Errorf("%w: too many filter criteria (max %d)", ErrValidation, MaxFilterCriteria))
		return s
	}
	c := FilterCriterion{Path: path, Op: op, Value: value}
	if !op.valid() {
		s.fail(fmt.Errorf("%w: unknown filter operator %q", ErrValidation, op))
		return s
	}
	if path == "" {
		s.fail(fmt.Errorf("%w: filter criterion without path", ErrValidation))
		return s
	}
	if s.elem != nil {
		if _, err := expr.ResolvePath(s.elem, path); err != nil {
			s.fail(fmt.Errorf("%w: filter %v", ErrValidation, err))
			return s
		}
	}
	s.filter.criteria = append(s.filter.criteria, c)
	return s
}

// Filter exposes the filter sub-specification.
func (s *QuerySpecification) Filter() *FilterSpecification { return &s.filter }

// Predicate folds the filter into one predicate lambda, nil when the
// filter is empty.
func (s *QuerySpecification) Predicate() (*expr.Lambda, error) {
	return s.filter.Predicate(s.elem)
}

// OrderBy sets the primary ascending sort, replacing any existing
// ordering.
func (s *QuerySpecification) OrderBy(path string) *QuerySpecification {
	return s.primarySort(path, SortAscending)
}

// OrderByDescending sets the primary descending sort, replacing any
// existing ordering.
func (s *QuerySpecification) OrderByDescending(path string) *QuerySpecification {
	return s.primarySort(path, SortDescending)
}

// ThenBy appends an ascending tie-breaker after the primary sort.
func (s *QuerySpecification) ThenBy(path string) *QuerySpecification {
	return s.secondarySort(path, SortAscending)
}

// ThenByDescending appends a descending tie-breaker.
func (s *QuerySpecification) ThenByDescending(path string) *QuerySpecification {
	return s.secondarySort(path, SortDescending)
}

func (s *QuerySpecification) primarySort(path string, dir SortDirection) *QuerySpecification {
	if !s.checkPath("sort", path) {
		return s
	}
	s.sort = []SortCriterion{{Path: path, Direction: dir}}
	return s
}

func (s *QuerySpecification) secondarySort(path string, dir SortDirection) *QuerySpecification {
	if len(s.sort) == 0 {
		s.fail(fmt.Errorf("%w: ThenBy without a primary OrderBy", ErrValidation))
		return s
	}
	if !s.checkPath("sort", path) {
		return s
	}
	s.sort = append(s.sort, SortCriterion{Path: path, Direction: dir})
	return s
}

// SortCriteria returns a copy of the ordering keys, primary first.
func (s *QuerySpecification) SortCriteria() []SortCriterion {
	out := make([]SortCriterion, len(s.sort))
	copy(out, s.sort)
	return out
}

// SearchFor adds a case-insensitive search criterion.
func (s *QuerySpecification) SearchFor(path, term string, mode SearchMode) *QuerySpecification {
	return s.addSearch(SearchCriterion{Path: path, Term: term, Mode: mode})
}

// SearchCase adds a case-sensitive search criterion.
func (s *QuerySpecification) SearchCase(path, term string, mode SearchMode) *QuerySpecification {
	return s.addSearch(SearchCriterion{Path: path, Term: term, Mode: mode, CaseSensitive: true})
}

func (s *QuerySpecification) addSearch(c SearchCriterion) *QuerySpecification {
	if !c.Mode.valid() {
		s.fail(fmt.Errorf("%w: unknown search mode %q", ErrValidation, c.Mode))
		return s
	}
	if c.Term == "" {
		s.fail(fmt.Errorf("%w: empty search term", ErrValidation))
		return s
	}
	if !s.checkPath("search", c.Path) {
		return s
	}
	s.search = append(s.search, c)
	return s
}

// SearchCriteria returns a copy of the search criteria.
func (s *QuerySpecification) SearchCriteria() []SearchCriterion {
	out := make([]SearchCriterion, len(s.search))
	copy(out, s.search)
	return out
}

// Include adds a root include directive and makes it the chain target
// for subsequent ThenInclude calls.
func (s *QuerySpecification) Include(path string) *QuerySpecification {
	if !s.checkPath("include", path) {
		return s
	}
	d := &IncludeDirective{Path: path}
	s.includes = append(s.includes, d)
	s.lastInclude = d
	return s
}

// ThenInclude chains a continuation off the most recent Include or
// ThenInclude. Calling it with no preceding Include records
// ErrInvalidIncludeChain.
func (s *QuerySpecification) ThenInclude(path string) *QuerySpecification {
	if s.lastInclude == nil {
		s.fail(fmt.Errorf("%w: ThenInclude(%q)", ErrInvalidIncludeChain, path))
		return s
	}
	if path == "" {
		s.fail(fmt.Errorf("%w: include directive without path", ErrValidation))
		return s
	}
	d := &IncludeDirective{Path: path}
	s.lastInclude.Children = append(s.lastInclude.Children, d)
	s.lastInclude = d
	return s
}

// Includes returns a deep copy of the include forest.
func (s *QuerySpecification) Includes() []*IncludeDirective {
	return cloneIncludes(s.includes)
}

// checkPath validates a member path against the bound element type.
// Include paths may traverse collections, which ResolvePath handles by
// following element types.
func (s *QuerySpecification) checkPath(kind, path string) bool {
	if path == "" {
		s.fail(fmt.Errorf("%w: %s criterion without path", ErrValidation, kind))
		return false
	}
	if s.elem == nil {
		return true
	}
	if _, err := expr.ResolvePath(s.elem, path); err != nil {
		s.fail(fmt.Errorf("%w: %s %v", ErrValidation, kind, err))
		return false
	}
	return true
}

// SetPage derives skip and take from a 1-based page number and size.
func (s *QuerySpecification) SetPage(page, pageSize int) *QuerySpecification {
	if page < 1 || pageSize < 1 {
		s.fail(fmt.Errorf("%w: page=%d pageSize=%d", ErrInvalidPagination, page, pageSize))
		return s
	}
	skip := (page - 1) * pageSize
	take := pageSize
	s.skip, s.take = &skip, &take
	return s
}

// SetSkipTake sets the pagination window directly.
func (s *QuerySpecification) SetSkipTake(skip, take int) *QuerySpecification {
	if skip < 0 || take < 1 {
		s.fail(fmt.Errorf("%w: skip=%d take=%d", ErrInvalidPagination, skip, take))
		return s
	}
	s.skip, s.take = &skip, &take
	return s
}

// Skip returns the pagination offset, if set.
func (s *QuerySpecification) Skip() (int, bool) {
	if s.skip == nil {
		return 0, false
	}
	return *s.skip, true
}

// Take returns the pagination limit, if set.
func (s *QuerySpecification) Take() (int, bool) {
	if s.take == nil {
		return 0, false
	}
	return *s.take, true
}

// WithNoTracking marks the result as read-only for the engine.
func (s *QuerySpecification) WithNoTracking() *QuerySpecification {
	s.flags.NoTracking = true
	return s
}

// WithSplitQuery asks the engine to load includes with separate queries.
func (s *QuerySpecification) WithSplitQuery() *QuerySpecification {
	s.flags.SplitQuery = true
	return s
}

// WithIgnoreAutoIncludes suppresses engine-level automatic includes.
func (s *QuerySpecification) WithIgnoreAutoIncludes() *QuerySpecification {
	s.flags.IgnoreAutoIncludes = true
	return s
}

// WithIgnoreQueryFilters bypasses engine-level global filters.
func (s *QuerySpecification) WithIgnoreQueryFilters() *QuerySpecification {
	s.flags.IgnoreQueryFilters = true
	return s
}

// WithAutoInclude turns on navigation auto-discovery for this query.
func (s *QuerySpecification) WithAutoInclude() *QuerySpecification {
	s.flags.AutoInclude = true
	return s
}

// Flags returns the execution hints.
func (s *QuerySpecification) Flags() Flags { return s.flags }

// Clear resets every criterion, the pagination window, the flags, and
// the recorded errors, keeping only the element binding.
func (s *QuerySpecification) Clear() *QuerySpecification {
	s.filter = FilterSpecification{}
	s.sort = nil
	s.search = nil
	s.includes = nil
	s.lastInclude = nil
	s.skip, s.take = nil, nil
	s.flags = Flags{}
	s.errs = nil
	return s
}

// Summary renders a one-line diagnostic description.
func (s *QuerySpecification) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "filter=%d sort=%d search=%d include=%d",
		s.filter.count(), len(s.sort), len(s.search), len(s.includes))
	if s.skip != nil && s.take != nil {
		fmt.Fprintf(&b, " page=%d size=%d", *s.skip / *s.take+1, *s.take)
	} else {
		b.WriteString(" unpaged")
	}
	if set := s.flagNames(); len(set) > 0 {
		fmt.Fprintf(&b, " flags=%s", strings.Join(set, ","))
	}
	return b.String()
}

func (s *QuerySpecification) flagNames() []string {
	var out []string
	if s.flags.NoTracking {
		out = append(out, "no_tracking")
	}
	if s.flags.SplitQuery {
		out = append(out, "split_query")
	}
	if s.flags.IgnoreAutoIncludes {
		out = append(out, "ignore_auto_includes")
	}
	if s.flags.IgnoreQueryFilters {
		out = append(out, "ignore_query_filters")
	}
	if s.flags.AutoInclude {
		out = append(out, "auto_include")
	}
	return out
}
