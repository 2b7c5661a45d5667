// Package registry persists named query specifications in a key-value
// store so clients can save a specification once and run it by ID.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	queryspec "github.com/arcadia-data/queryspec"
	"github.com/arcadia-data/queryspec/internal/db"
)

// Sentinel errors for registry operations.
var (
	ErrSpecNotFound = errors.New("registry: specification not found")
	ErrInvalidSpec  = errors.New("registry: invalid specification document")
)

// SavedSpecification is a named, persisted query specification document.
type SavedSpecification struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Document    json.RawMessage `json:"document"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// store is the consumer interface for the registry (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Service stores and retrieves saved specifications.
type Service struct {
	store  store
	prefix string
	now    func() time.Time
}

// NewService creates a registry service. Keys are written under prefix,
// e.g. "queryspec:spec:{id}".
func NewService(s store, prefix string) *Service {
	return &Service{store: s, prefix: prefix, now: time.Now}
}

// Save validates and persists a new specification document.
func (s *Service) Save(ctx context.Context, name, description string, doc json.RawMessage) (*SavedSpecification, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidSpec)
	}
	if err := validateDocument(doc); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	spec := &SavedSpecification{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		Document:    doc,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.put(ctx, spec); err != nil {
		return nil, err
	}
	return spec, nil
}

// Update replaces the name, description, and document of an existing
// specification, preserving its creation time.
func (s *Service) Update(ctx context.Context, id uuid.UUID, name, description string, doc json.RawMessage) (*SavedSpecification, error) {
	if err := validateDocument(doc); err != nil {
		return nil, err
	}

	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	existing.Name = name
	existing.Description = description
	existing.Document = doc
	existing.UpdatedAt = s.now().UTC()

	if err := s.put(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// Get retrieves a saved specification by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*SavedSpecification, error) {
	data, err := s.store.Get(ctx, s.key(id))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, ErrSpecNotFound
		}
		return nil, fmt.Errorf("get spec %s: %w", id, err)
	}

	var spec SavedSpecification
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse spec %s: %w", id, err)
	}
	return &spec, nil
}

// List returns all saved specifications sorted by creation time.
func (s *Service) List(ctx context.Context) ([]*SavedSpecification, error) {
	keys, err := s.store.Scan(ctx, s.prefix+"spec:*")
	if err != nil {
		return nil, fmt.Errorf("scan specs: %w", err)
	}

	specs := make([]*SavedSpecification, 0, len(keys))
	for _, key := range keys {
		data, err := s.store.Get(ctx, key)
		if err != nil {
			if errors.Is(err, db.ErrKeyNotFound) {
				// Deleted between SCAN and GET.
				continue
			}
			return nil, fmt.Errorf("get spec %s: %w", key, err)
		}
		var spec SavedSpecification
		if err := json.Unmarshal(data, &spec); err != nil {
			return nil, fmt.Errorf("parse spec %s: %w", key, err)
		}
		specs = append(specs, &spec)
	}

	sort.Slice(specs, func(i, j int) bool {
		return specs[i].CreatedAt.Before(specs[j].CreatedAt)
	})

	return specs, nil
}

// Delete removes a saved specification by ID.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	exists, err := s.store.Exists(ctx, s.key(id))
	if err != nil {
		return fmt.Errorf("check spec %s: %w", id, err)
	}
	if !exists {
		return ErrSpecNotFound
	}
	if err := s.store.Del(ctx, s.key(id)); err != nil {
		return fmt.Errorf("del spec %s: %w", id, err)
	}
	return nil
}

func (s *Service) put(ctx context.Context, spec *SavedSpecification) error {
	data, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("marshal spec %s: %w", spec.ID, err)
	}
	if err := s.store.Set(ctx, s.key(spec.ID), data); err != nil {
		return fmt.Errorf("set spec %s: %w", spec.ID, err)
	}
	return nil
}

func (s *Service) key(id uuid.UUID) string {
	return fmt.Sprintf("%sspec:%s", s.prefix, id)
}

// validateDocument decodes the document unbound to reject malformed
// wire payloads before they are stored.
func validateDocument(doc json.RawMessage) error {
	if len(doc) == 0 {
		return fmt.Errorf("%w: document is required", ErrInvalidSpec)
	}
	if _, err := queryspec.DecodeFor(nil, doc); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidSpec, err)
	}
	return nil
}
