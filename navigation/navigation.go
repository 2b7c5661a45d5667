// Package navigation discovers the navigation members of an entity type
// so evaluators can auto-include related data without explicit
// directives. Discovery is reflection-based, one level deep, and cached
// per type for the life of the process.
package navigation

import (
	"reflect"
	"sync"
	"time"
)

// Kind distinguishes reference navigations from collection navigations.
type Kind string

const (
	// KindReference is a single related entity: a struct or pointer to
	// struct member whose type carries the identity member.
	KindReference Kind = "reference"
	// KindCollection is a slice or array of related entities.
	KindCollection Kind = "collection"
)

// Member is one discovered navigation member.
type Member struct {
	Name string
	Kind Kind
	// Target is the related entity type with pointers stripped; the
	// element type for collections.
	Target reflect.Type
}

// Convention decides what counts as an entity during discovery.
type Convention struct {
	// IdentityMember is the member name whose presence marks a type as
	// an entity. Empty means the default, "ID".
	IdentityMember string
}

// DefaultConvention matches types carrying an exported ID member.
var DefaultConvention = Convention{IdentityMember: "ID"}

func (c Convention) identity() string {
	if c.IdentityMember == "" {
		return "ID"
	}
	return c.IdentityMember
}

// cache maps cacheKey to []Member. Discovery is deterministic, so
// concurrent first-time discovery of the same type stores equal values
// and either winning entry is correct.
var cache sync.Map

type cacheKey struct {
	typ      reflect.Type
	identity string
}

// ResetCache drops every cached discovery. Intended for tests.
func ResetCache() {
	cache.Range(func(k, _ any) bool {
		cache.Delete(k)
		return true
	})
}

// Discover returns the navigation members of t under the convention,
// in field-declaration order. Results are cached per type; discovered
// members are never expanded further, so self-referencing and mutually
// referencing types terminate.
func Discover(t reflect.Type, conv Convention) []Member {
	base := deref(t)
	if base == nil || base.Kind() != reflect.Struct {
		return nil
	}
	key := cacheKey{typ: base, identity: conv.identity()}
	if cached, ok := cache.Load(key); ok {
		return cached.([]Member)
	}
	members := discover(base, conv)
	actual, _ := cache.LoadOrStore(key, members)
	return actual.([]Member)
}

func discover(base reflect.Type, conv Convention) []Member {
	members := []Member{}
	for i := 0; i < base.NumField(); i++ {
		f := base.Field(i)
		if !f.IsExported() {
			continue
		}
		ft := f.Type
		switch ft.Kind() {
		case reflect.Slice, reflect.Array:
			if elem := entityType(ft.Elem(), conv); elem != nil {
				members = append(members, Member{Name: f.Name, Kind: KindCollection, Target: elem})
			}
		default:
			if target := entityType(ft, conv); target != nil {
				members = append(members, Member{Name: f.Name, Kind: KindReference, Target: target})
			}
		}
	}
	return members
}

// entityType returns the entity struct type behind t, or nil when t is
// not a navigation target. time.Time and other scalar-like structs
// without the identity member never qualify.
func entityType(t reflect.Type, conv Convention) reflect.Type {
	base := deref(t)
	if base == nil || base.Kind() != reflect.Struct {
		return nil
	}
	if base == reflect.TypeOf(time.Time{}) {
		return nil
	}
	if !hasIdentity(base, conv.identity()) {
		return nil
	}
	return base
}

func hasIdentity(base reflect.Type, name string) bool {
	if f, ok := base.FieldByName(name); ok && f.IsExported() {
		return true
	}
	for _, t := range []reflect.Type{base, reflect.PointerTo(base)} {
		if m, ok := t.MethodByName(name); ok && m.IsExported() &&
			m.Type.NumIn() == 1 && m.Type.NumOut() == 1 {
			return true
		}
	}
	return false
}

func deref(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
