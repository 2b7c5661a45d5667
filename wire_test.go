package queryspec

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/arcadia-data/queryspec/expr"
)

func buildFullSpec(t *testing.T) *QuerySpecification {
	t.Helper()
	param := &expr.Parameter{Name: "x", Type: reflect.TypeOf(specProduct{})}
	pred := expr.NewPredicate(param, &expr.Binary{
		Op:    expr.OpGreater,
		Left:  &expr.Member{Target: param, Name: "Stock"},
		Right: &expr.Constant{Value: 0},
	})
	s := New[specProduct]().
		WhereField("Price", FilterLess, 100).
		Where(pred).
		OrderBy("Name").
		ThenByDescending("Price").
		SearchFor("Name", "lamp", SearchContains).
		SearchCase("Category.Name", "Gar", SearchPrefix).
		Include("Category").
		SetPage(2, 10).
		WithNoTracking().
		WithSplitQuery()
	if err := s.Validate(); err != nil {
		t.Fatalf("build: %v", err)
	}
	return s
}

func TestWire_RoundTrip(t *testing.T) {
	original := buildFullSpec(t)
	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := Decode[specProduct](data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if !reflect.DeepEqual(got.SortCriteria(), original.SortCriteria()) {
		t.Errorf("sort order lost: %+v vs %+v", got.SortCriteria(), original.SortCriteria())
	}
	if !reflect.DeepEqual(got.SearchCriteria(), original.SearchCriteria()) {
		t.Errorf("search criteria lost: %+v vs %+v", got.SearchCriteria(), original.SearchCriteria())
	}
	if !reflect.DeepEqual(got.Includes(), original.Includes()) {
		t.Errorf("include forest lost: %+v vs %+v", got.Includes(), original.Includes())
	}
	gotSkip, _ := got.Skip()
	gotTake, _ := got.Take()
	if gotSkip != 10 || gotTake != 10 {
		t.Errorf("pagination lost: skip=%d take=%d", gotSkip, gotTake)
	}
	if got.Flags() != original.Flags() {
		t.Errorf("flags lost: %+v vs %+v", got.Flags(), original.Flags())
	}

	// Predicate semantics survive the trip even though the numeric
	// constants decode as float64.
	origPred, err := original.Predicate()
	if err != nil {
		t.Fatalf("original predicate: %v", err)
	}
	gotPred, err := got.Predicate()
	if err != nil {
		t.Fatalf("decoded predicate: %v", err)
	}
	var cmp expr.Comparer
	if !cmp.Equal(origPred, gotPred) {
		t.Error("predicate semantics lost in round trip")
	}
}

func TestWire_RoundTripNestedIncludes(t *testing.T) {
	type node struct {
		ID     int
		Parent *node
	}
	s := NewFor(reflect.TypeOf(node{})).
		Include("Parent").
		ThenInclude("Parent")
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := DecodeFor(reflect.TypeOf(node{}), data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	dirs := got.Includes()
	if len(dirs) != 1 {
		t.Fatalf("expected 1 root directive, got %d", len(dirs))
	}
	chains := dirs[0].Chains()
	if len(chains) != 1 || len(chains[0]) != 2 {
		t.Fatalf("chain topology lost: %v", chains)
	}
}

func TestDecode_RejectsUnknownMember(t *testing.T) {
	doc := []byte(`{"filter":{"criteria":[{"path":"Nope","op":"eq","value":1}]}}`)
	if _, err := Decode[specProduct](doc); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestDecode_RejectsLonePagination(t *testing.T) {
	doc := []byte(`{"skip":10}`)
	if _, err := Decode[specProduct](doc); !errors.Is(err, ErrInvalidPagination) {
		t.Errorf("expected ErrInvalidPagination, got %v", err)
	}
}

func TestDecode_UnboundSkipsValidation(t *testing.T) {
	doc := []byte(`{"filter":{"criteria":[{"path":"Anything","op":"eq","value":1}]}}`)
	s, err := DecodeFor(nil, doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ElementType() != nil {
		t.Error("expected unbound specification")
	}
	// Binding afterwards surfaces the bad path.
	s.Bind(reflect.TypeOf(specProduct{}))
	if err := s.Validate(); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation after Bind, got %v", err)
	}
}
