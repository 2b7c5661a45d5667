package eval

import (
	"context"
	"errors"
	"reflect"
	"testing"

	queryspec "github.com/arcadia-data/queryspec"
	"github.com/arcadia-data/queryspec/expr"
)

type evalProduct struct {
	ID    int
	Name  string
	Price float64
}

// fakeQueryable records builder calls in order and serves canned data.
type opLog struct {
	ops []string
}

type fakeQueryable struct {
	log      *opLog
	elem     reflect.Type
	items    []any
	count    int
	skip     *int
	take     *int
	listErr  error
	countErr error
}

func newFake(items ...any) *fakeQueryable {
	return &fakeQueryable{
		log:   &opLog{},
		elem:  reflect.TypeOf(evalProduct{}),
		items: items,
		count: len(items),
	}
}

func (f *fakeQueryable) clone() *fakeQueryable {
	c := *f
	return &c
}

func (f *fakeQueryable) record(op string) *fakeQueryable {
	f.log.ops = append(f.log.ops, op)
	return f.clone()
}

func (f *fakeQueryable) ElementType() reflect.Type { return f.elem }

func (f *fakeQueryable) Where(*expr.Lambda) Queryable { return f.record("where") }

func (f *fakeQueryable) Order([]queryspec.SortCriterion) Queryable { return f.record("order") }

func (f *fakeQueryable) Search([]queryspec.SearchCriterion) Queryable { return f.record("search") }

func (f *fakeQueryable) Skip(n int) Queryable {
	c := f.record("skip")
	c.skip = &n
	return c
}

func (f *fakeQueryable) Take(n int) Queryable {
	c := f.record("take")
	c.take = &n
	return c
}

func (f *fakeQueryable) Include([]*queryspec.IncludeDirective) Queryable { return f.record("include") }

func (f *fakeQueryable) WithHints(Hints) Queryable { return f.record("hints") }

func (f *fakeQueryable) List(ctx context.Context) ([]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.listErr != nil {
		return nil, f.listErr
	}
	items := f.items
	if f.skip != nil && *f.skip < len(items) {
		items = items[*f.skip:]
	} else if f.skip != nil {
		items = nil
	}
	if f.take != nil && *f.take < len(items) {
		items = items[:*f.take]
	}
	return items, nil
}

func (f *fakeQueryable) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.count, nil
}

func fullSpec(t *testing.T) *queryspec.QuerySpecification {
	t.Helper()
	s := queryspec.New[evalProduct]().
		WhereField("Price", queryspec.FilterLess, 100).
		OrderBy("Name").
		SearchFor("Name", "lamp", queryspec.SearchContains).
		Include("ID"). // any resolvable member works for ordering checks
		SetPage(3, 10).
		WithNoTracking()
	if err := s.Validate(); err != nil {
		t.Fatalf("build: %v", err)
	}
	return s
}

func TestApply_FixedStageOrder(t *testing.T) {
	f := newFake()
	if _, err := Apply(f, fullSpec(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"where", "order", "search", "skip", "take", "include", "hints"}
	if !reflect.DeepEqual(f.log.ops, want) {
		t.Errorf("stage order\n got %v\nwant %v", f.log.ops, want)
	}
}

func TestApply_EmptySpecTouchesNothing(t *testing.T) {
	f := newFake()
	q, err := Apply(f, queryspec.New[evalProduct]())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.log.ops) != 0 {
		t.Errorf("empty spec must be all no-ops, got %v", f.log.ops)
	}
	if q != Queryable(f) {
		t.Error("empty spec must return the source unchanged")
	}
}

func TestApply_AutoIncludeMerge(t *testing.T) {
	type widget struct {
		ID    int
		Owner *evalProduct
	}
	f := newFake()
	f.elem = reflect.TypeOf(widget{})
	s := queryspec.NewFor(f.elem).WithAutoInclude()
	if _, err := Apply(f, s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"include"}
	if !reflect.DeepEqual(f.log.ops, want) {
		t.Errorf("expected auto-include to reach the source, got %v", f.log.ops)
	}

	// IgnoreAutoIncludes suppresses discovery again.
	f2 := newFake()
	f2.elem = reflect.TypeOf(widget{})
	s2 := queryspec.NewFor(f2.elem).WithAutoInclude().WithIgnoreAutoIncludes()
	if _, err := Apply(f2, s2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, op := range f2.log.ops {
		if op == "include" {
			t.Error("ignored auto-includes must not reach the source")
		}
	}
}

func TestGetSingle(t *testing.T) {
	ctx := context.Background()
	spec := queryspec.New[evalProduct]()

	t.Run("no match", func(t *testing.T) {
		item, found, err := GetSingle(ctx, newFake(), spec)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if found || item != nil {
			t.Errorf("expected miss, got %v (found=%v)", item, found)
		}
	})

	t.Run("one match", func(t *testing.T) {
		want := evalProduct{ID: 1, Name: "lamp"}
		item, found, err := GetSingle(ctx, newFake(want), spec)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !found || item != any(want) {
			t.Errorf("expected %v, got %v (found=%v)", want, item, found)
		}
	})

	t.Run("multiple matches", func(t *testing.T) {
		f := newFake(evalProduct{ID: 1}, evalProduct{ID: 2}, evalProduct{ID: 3})
		_, _, err := GetSingle(ctx, f, spec)
		if !errors.Is(err, queryspec.ErrMultipleMatches) {
			t.Errorf("expected ErrMultipleMatches, got %v", err)
		}
	})
}

func TestGetPaged_RequiresWindow(t *testing.T) {
	_, err := GetPaged(context.Background(), newFake(), queryspec.New[evalProduct]())
	if !errors.Is(err, queryspec.ErrInvalidPagination) {
		t.Errorf("expected ErrInvalidPagination, got %v", err)
	}
}

func TestGetPaged_Envelope(t *testing.T) {
	items := make([]any, 25)
	for i := range items {
		items[i] = evalProduct{ID: i}
	}
	f := newFake(items...)
	s := queryspec.New[evalProduct]().SetPage(3, 10)
	res, err := GetPaged(context.Background(), f, s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Items) != 5 {
		t.Errorf("expected 5 items on the last page, got %d", len(res.Items))
	}
	if res.TotalCount != 25 {
		t.Errorf("expected TotalCount=25, got %d", res.TotalCount)
	}
	if res.Page != 3 || res.PageSize != 10 {
		t.Errorf("expected page 3 size 10, got page %d size %d", res.Page, res.PageSize)
	}
}

type deletableItem struct {
	ID      int
	deleted bool
}

func (d *deletableItem) MarkDeleted() { d.deleted = true }

func TestDeleteBulk(t *testing.T) {
	soft1 := &deletableItem{ID: 1}
	soft2 := &deletableItem{ID: 2}
	hard := evalProduct{ID: 3}
	f := newFake(soft1, soft2, hard)

	res, err := DeleteBulk(context.Background(), f, queryspec.New[evalProduct]())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.SoftDeleted != 2 {
		t.Errorf("expected 2 soft deletions, got %d", res.SoftDeleted)
	}
	if !soft1.deleted || !soft2.deleted {
		t.Error("soft deletable items must be marked")
	}
	if len(res.Remaining) != 1 || res.Remaining[0] != any(hard) {
		t.Errorf("expected the plain item back, got %v", res.Remaining)
	}
}

func TestEngineErrorsPropagateUnwrapped(t *testing.T) {
	storeErr := errors.New("store offline")
	f := newFake(evalProduct{ID: 1})
	f.listErr = storeErr
	_, _, err := GetSingle(context.Background(), f, queryspec.New[evalProduct]())
	if !errors.Is(err, storeErr) {
		t.Errorf("expected the engine error unwrapped, got %v", err)
	}
}

func TestCancellationPassesThrough(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := GetSingle(ctx, newFake(evalProduct{ID: 1}), queryspec.New[evalProduct]())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
