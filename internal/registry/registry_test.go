package registry

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/arcadia-data/queryspec/internal/db"
)

// fakeStore is an in-memory stand-in for the registry store.
type fakeStore struct {
	data    map[string][]byte
	failGet error
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string][]byte{}}
}

func (f *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	if f.failGet != nil {
		return nil, f.failGet
	}
	v, ok := f.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (f *fakeStore) Set(_ context.Context, key string, value []byte) error {
	f.data[key] = value
	return nil
}

func (f *fakeStore) Del(_ context.Context, key string) error {
	delete(f.data, key)
	return nil
}

func (f *fakeStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := f.data[key]
	return ok, nil
}

func (f *fakeStore) Scan(_ context.Context, pattern string) ([]string, error) {
	var keys []string
	for k := range f.data {
		if ok, _ := path.Match(pattern, k); ok {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

var validDoc = json.RawMessage(`{
	"filter": {"criteria": [{"path": "Name", "op": "eq", "value": "Lamp"}]},
	"sort": [{"path": "ID", "direction": "asc"}],
	"skip": 0,
	"take": 10
}`)

func TestSave_AndGet(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newFakeStore(), "queryspec:")

	saved, err := svc.Save(ctx, "cheap-lamps", "lamps under budget", validDoc)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.ID == uuid.Nil {
		t.Error("expected a generated ID")
	}
	if saved.CreatedAt.IsZero() || !saved.CreatedAt.Equal(saved.UpdatedAt) {
		t.Errorf("unexpected timestamps: %v / %v", saved.CreatedAt, saved.UpdatedAt)
	}

	got, err := svc.Get(ctx, saved.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "cheap-lamps" || got.Description != "lamps under budget" {
		t.Errorf("unexpected spec: %+v", got)
	}
}

func TestSave_RejectsInvalidDocument(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newFakeStore(), "queryspec:")

	tests := []struct {
		name string
		doc  json.RawMessage
	}{
		{"empty", nil},
		{"not json", json.RawMessage(`{broken`)},
		{"lone skip", json.RawMessage(`{"skip": 5}`)},
		{"bad sort direction", json.RawMessage(`{"sort": [{"path": "ID", "direction": "up"}]}`)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Save(ctx, "bad", "", tc.doc)
			if err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestSave_RequiresName(t *testing.T) {
	svc := NewService(newFakeStore(), "queryspec:")
	_, err := svc.Save(context.Background(), "", "", validDoc)
	if !errors.Is(err, ErrInvalidSpec) {
		t.Errorf("expected ErrInvalidSpec, got %v", err)
	}
}

func TestUpdate_PreservesCreatedAt(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := NewService(store, "queryspec:")

	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }
	saved, err := svc.Save(ctx, "original", "", validDoc)
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	svc.now = func() time.Time { return base.Add(time.Hour) }
	updated, err := svc.Update(ctx, saved.ID, "renamed", "with notes", validDoc)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "renamed" || updated.Description != "with notes" {
		t.Errorf("unexpected spec: %+v", updated)
	}
	if !updated.CreatedAt.Equal(base) {
		t.Errorf("CreatedAt changed: %v", updated.CreatedAt)
	}
	if !updated.UpdatedAt.Equal(base.Add(time.Hour)) {
		t.Errorf("UpdatedAt not advanced: %v", updated.UpdatedAt)
	}
}

func TestUpdate_MissingSpec(t *testing.T) {
	svc := NewService(newFakeStore(), "queryspec:")
	_, err := svc.Update(context.Background(), uuid.New(), "x", "", validDoc)
	if !errors.Is(err, ErrSpecNotFound) {
		t.Errorf("expected ErrSpecNotFound, got %v", err)
	}
}

func TestList_SortedByCreation(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newFakeStore(), "queryspec:")

	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"first", "second", "third"} {
		offset := time.Duration(i) * time.Minute
		svc.now = func() time.Time { return base.Add(offset) }
		if _, err := svc.Save(ctx, name, "", validDoc); err != nil {
			t.Fatalf("save %s: %v", name, err)
		}
	}

	specs, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(specs) != 3 {
		t.Fatalf("expected 3 specs, got %d", len(specs))
	}
	var names []string
	for _, s := range specs {
		names = append(names, s.Name)
	}
	if strings.Join(names, ",") != "first,second,third" {
		t.Errorf("unexpected order: %v", names)
	}
}

func TestList_Empty(t *testing.T) {
	svc := NewService(newFakeStore(), "queryspec:")
	specs, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(specs) != 0 {
		t.Errorf("expected no specs, got %d", len(specs))
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newFakeStore(), "queryspec:")

	saved, err := svc.Save(ctx, "doomed", "", validDoc)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := svc.Delete(ctx, saved.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, saved.ID); !errors.Is(err, ErrSpecNotFound) {
		t.Errorf("expected ErrSpecNotFound after delete, got %v", err)
	}

	if err := svc.Delete(ctx, saved.ID); !errors.Is(err, ErrSpecNotFound) {
		t.Errorf("expected ErrSpecNotFound on repeat delete, got %v", err)
	}
}

func TestGet_StoreError(t *testing.T) {
	store := newFakeStore()
	store.failGet = errors.New("connection reset")
	svc := NewService(store, "queryspec:")

	_, err := svc.Get(context.Background(), uuid.New())
	if err == nil || errors.Is(err, ErrSpecNotFound) {
		t.Errorf("expected a store error, got %v", err)
	}
}
