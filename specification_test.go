package queryspec

import (
	"errors"
	"strings"
	"testing"

	"github.com/arcadia-data/queryspec/expr"
)

type specCategory struct {
	ID   int
	Name string
}

type specProduct struct {
	ID       int
	Name     string
	Price    float64
	Stock    int
	Category *specCategory
}

func TestWhereField_ValidatesPath(t *testing.T) {
	s := New[specProduct]().WhereField("Price", FilterLess, 100)
	if err := s.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(s.Filter().Criteria()); got != 1 {
		t.Errorf("expected 1 criterion, got %d", got)
	}

	s = New[specProduct]().WhereField("Nope", FilterEqual, 1)
	if err := s.Validate(); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for unknown member, got %v", err)
	}
}

func TestWhereField_UnknownOperator(t *testing.T) {
	s := New[specProduct]().WhereField("Price", FilterOp("between"), 1)
	if err := s.Validate(); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestPredicate_FoldsWithAnd(t *testing.T) {
	s := New[specProduct]().
		WhereField("Price", FilterLess, 100).
		WhereField("Stock", FilterGreater, 0)
	pred, err := s.Predicate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	match, err := expr.Evaluate(pred, specProduct{Price: 50, Stock: 3})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !match {
		t.Error("both criteria satisfied must match")
	}
	match, err = expr.Evaluate(pred, specProduct{Price: 50, Stock: 0})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if match {
		t.Error("failing criterion must reject")
	}
}

func TestPredicate_EmptyFilterIsNil(t *testing.T) {
	pred, err := New[specProduct]().Predicate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pred != nil {
		t.Error("empty filter must fold to nil")
	}
}

func TestPredicate_NestedPath(t *testing.T) {
	s := New[specProduct]().WhereField("Category.Name", FilterStartsWith, "Gar")
	pred, err := s.Predicate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	match, err := expr.Evaluate(pred, specProduct{Category: &specCategory{Name: "Garden"}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !match {
		t.Error("nested path must match")
	}
	// Nil navigation fails the predicate without erroring.
	match, err = expr.Evaluate(pred, specProduct{})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if match {
		t.Error("nil navigation must not match")
	}
}

func TestOrderBy_ReplacesExistingOrdering(t *testing.T) {
	s := New[specProduct]().
		OrderBy("Name").
		ThenByDescending("Price").
		OrderByDescending("Stock")
	got := s.SortCriteria()
	if len(got) != 1 {
		t.Fatalf("expected OrderBy to replace the ordering, got %d criteria", len(got))
	}
	if got[0].Path != "Stock" || got[0].Direction != SortDescending {
		t.Errorf("unexpected primary sort: %+v", got[0])
	}
}

func TestThenBy_AppendsInOrder(t *testing.T) {
	s := New[specProduct]().OrderBy("Name").ThenByDescending("Price").ThenBy("ID")
	got := s.SortCriteria()
	if len(got) != 3 {
		t.Fatalf("expected 3 criteria, got %d", len(got))
	}
	if got[1].Path != "Price" || got[1].Direction != SortDescending {
		t.Errorf("unexpected tie-breaker: %+v", got[1])
	}
}

func TestThenBy_WithoutPrimary(t *testing.T) {
	s := New[specProduct]().ThenBy("Name")
	if err := s.Validate(); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestThenInclude_RequiresRoot(t *testing.T) {
	s := New[specProduct]().ThenInclude("Category")
	if err := s.Validate(); !errors.Is(err, ErrInvalidIncludeChain) {
		t.Errorf("expected ErrInvalidIncludeChain, got %v", err)
	}
}

func TestInclude_BuildsForest(t *testing.T) {
	s := New[specProduct]().Include("Category")
	if err := s.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	dirs := s.Includes()
	if len(dirs) != 1 || dirs[0].Path != "Category" {
		t.Fatalf("unexpected forest: %+v", dirs)
	}
	chains := dirs[0].Chains()
	if len(chains) != 1 || strings.Join(chains[0], ".") != "Category" {
		t.Errorf("unexpected chains: %v", chains)
	}
}

func TestSetPage_DerivesSkipTake(t *testing.T) {
	s := New[specProduct]().SetPage(3, 10)
	if err := s.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	skip, ok := s.Skip()
	if !ok || skip != 20 {
		t.Errorf("expected skip=20, got %d (set=%v)", skip, ok)
	}
	take, ok := s.Take()
	if !ok || take != 10 {
		t.Errorf("expected take=10, got %d (set=%v)", take, ok)
	}
}

func TestSetPage_RejectsNonPositive(t *testing.T) {
	tests := []struct{ page, size int }{{0, 10}, {1, 0}, {-1, 5}}
	for _, tc := range tests {
		s := New[specProduct]().SetPage(tc.page, tc.size)
		if err := s.Validate(); !errors.Is(err, ErrInvalidPagination) {
			t.Errorf("page=%d size=%d: expected ErrInvalidPagination, got %v", tc.page, tc.size, err)
		}
	}
}

func TestClear_ResetsEverything(t *testing.T) {
	s := New[specProduct]().
		WhereField("Price", FilterLess, 100).
		OrderBy("Name").
		SearchFor("Name", "usa", SearchContains).
		Include("Category").
		SetPage(2, 10).
		WithNoTracking()
	s.Clear()
	if !s.Filter().Empty() {
		t.Error("filter must be empty after Clear")
	}
	if len(s.SortCriteria()) != 0 || len(s.SearchCriteria()) != 0 || len(s.Includes()) != 0 {
		t.Error("criteria must be empty after Clear")
	}
	if _, ok := s.Skip(); ok {
		t.Error("pagination must be unset after Clear")
	}
	if s.Flags() != (Flags{}) {
		t.Error("flags must be reset after Clear")
	}
	if s.ElementType() == nil {
		t.Error("element binding must survive Clear")
	}
}

func TestSummary(t *testing.T) {
	s := New[specProduct]().
		WhereField("Price", FilterLess, 100).
		WhereField("Stock", FilterGreater, 0).
		OrderBy("Name").
		Include("Category").
		SetPage(2, 10).
		WithNoTracking()
	got := s.Summary()
	for _, want := range []string{"filter=2", "sort=1", "include=1", "page=2", "size=10", "no_tracking"} {
		if !strings.Contains(got, want) {
			t.Errorf("summary %q missing %q", got, want)
		}
	}
	unpaged := New[specProduct]().Summary()
	if !strings.Contains(unpaged, "unpaged") {
		t.Errorf("expected unpaged marker, got %q", unpaged)
	}
}

func TestMaxFilterCriteria(t *testing.T) {
	s := New[specProduct]()
	for i := 0; i <= MaxFilterCriteria; i++ {
		s.WhereField("Price", FilterGreater, i)
	}
	if err := s.Validate(); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation past the cap, got %v", err)
	}
}
