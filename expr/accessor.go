package expr

import (
	"fmt"
	"reflect"
	"sync"
)

// resolved describes one member found on a subject type.
type resolved struct {
	name     string
	declared reflect.Type
	static   bool
}

// computedMember is a registered computed member: an instance-scoped
// func(T) R or a static func() R.
type computedMember struct {
	fn       reflect.Value
	declared reflect.Type
	static   bool
}

var (
	computedMu sync.RWMutex
	computed   = map[reflect.Type]map[string]computedMember{}
	// ownerIndex maps owner type names back to subject types so static
	// members reconstructed from the wire can still be evaluated.
	ownerIndex = map[string]reflect.Type{}
)

// RegisterComputed registers a computed member for a subject type.
// fn must be func(T) R (instance member) or func() R (static member).
// Resolution prefers getter methods, then fields; computed members fill
// the gaps for values derived outside the struct itself.
func RegisterComputed(subject reflect.Type, name string, fn any) error {
	fv := reflect.ValueOf(fn)
	ft := fv.Type()
	if ft.Kind() != reflect.Func || ft.NumOut() != 1 {
		return fmt.Errorf("computed member %s.%s: fn must return exactly one value", subject, name)
	}
	var static bool
	switch ft.NumIn() {
	case 0:
		static = true
	case 1:
		if ft.In(0) != subject {
			return fmt.Errorf("computed member %s.%s: fn parameter must be %s, got %s",
				subject, name, subject, ft.In(0))
		}
	default:
		return fmt.Errorf("computed member %s.%s: fn must take zero or one parameter", subject, name)
	}
	computedMu.Lock()
	defer computedMu.Unlock()
	members, ok := computed[subject]
	if !ok {
		members = map[string]computedMember{}
		computed[subject] = members
	}
	members[name] = computedMember{fn: fv, declared: ft.Out(0), static: static}
	ownerIndex[typeName(subject)] = subject
	return nil
}

// lookupOwner resolves an owner type name recorded in a static member.
func lookupOwner(owner string) (reflect.Type, bool) {
	computedMu.RLock()
	defer computedMu.RUnlock()
	t, ok := ownerIndex[owner]
	return t, ok
}

// lookupComputed returns the registered computed member, if any.
func lookupComputed(subject reflect.Type, name string) (computedMember, bool) {
	computedMu.RLock()
	defer computedMu.RUnlock()
	m, ok := computed[subject][name]
	return m, ok
}

// resolveMember resolves name on subject: getter method first, then
// exported field (promoted fields included), then computed members.
func resolveMember(subject reflect.Type, name string) (resolved, bool) {
	base := subject
	if base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	// Getter methods live on both the value and pointer method sets.
	for _, t := range []reflect.Type{base, reflect.PointerTo(base)} {
		if m, ok := t.MethodByName(name); ok && m.IsExported() {
			// Method set includes the receiver as the first input.
			if m.Type.NumIn() == 1 && m.Type.NumOut() == 1 {
				return resolved{name: name, declared: m.Type.Out(0)}, true
			}
		}
	}
	if base.Kind() == reflect.Struct {
		if f, ok := base.FieldByName(name); ok && f.IsExported() {
			return resolved{name: name, declared: f.Type}, true
		}
	}
	if cm, ok := lookupComputed(base, name); ok {
		return resolved{name: name, declared: cm.declared, static: cm.static}, true
	}
	return resolved{}, false
}

// Accessor builds an accessor lambda for a member of subject. Static
// members yield a zero-parameter lambda anchored to the owner type;
// instance members yield a one-parameter lambda.
func Accessor(subject reflect.Type, name string) (*Lambda, error) {
	r, ok := resolveMember(subject, name)
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrMemberNotFound, name, subject)
	}
	if r.static {
		return &Lambda{Body: &Member{Name: name, Static: true, Owner: typeName(subject)}}, nil
	}
	p := &Parameter{Name: "x", Type: subject}
	return NewPredicate(p, &Member{Target: p, Name: name}), nil
}

// TypedAccessor builds an instance accessor whose declared member type
// must be assignable to result.
func TypedAccessor(subject reflect.Type, name string, result reflect.Type) (*Lambda, error) {
	r, ok := resolveMember(subject, name)
	if !ok || r.static {
		return nil, fmt.Errorf("%w: instance member %s on %s", ErrMemberNotFound, name, subject)
	}
	if !r.declared.AssignableTo(result) {
		return nil, fmt.Errorf("%w: %s.%s is %s, want %s",
			ErrTypeMismatch, subject, name, r.declared, result)
	}
	p := &Parameter{Name: "x", Type: subject}
	return NewPredicate(p, &Member{Target: p, Name: name}), nil
}

// StaticAccessor builds a zero-parameter accessor for a static member
// whose declared type must be assignable to result.
func StaticAccessor(subject reflect.Type, name string, result reflect.Type) (*Lambda, error) {
	r, ok := resolveMember(subject, name)
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrMemberNotFound, name, subject)
	}
	if !r.static {
		return nil, fmt.Errorf("%w: %s.%s", ErrNotStatic, subject, name)
	}
	if !r.declared.AssignableTo(result) {
		return nil, fmt.Errorf("%w: %s.%s is %s, want %s",
			ErrTypeMismatch, subject, name, r.declared, result)
	}
	return &Lambda{Body: &Member{Name: name, Static: true, Owner: typeName(subject)}}, nil
}

// ResolvePath checks a dotted member path against subject, following the
// declared type of each segment. Returns the declared type of the final
// segment.
func ResolvePath(subject reflect.Type, path string) (reflect.Type, error) {
	cur := subject
	for _, seg := range splitPath(path) {
		// Collection segments apply to the element type.
		for cur.Kind() == reflect.Pointer || cur.Kind() == reflect.Slice || cur.Kind() == reflect.Array {
			cur = cur.Elem()
		}
		r, ok := resolveMember(cur, seg)
		if !ok || r.static {
			return nil, fmt.Errorf("%w: %s on %s (path %q)", ErrMemberNotFound, seg, cur, path)
		}
		cur = r.declared
	}
	return cur, nil
}

// PathAccessor builds a one-parameter accessor lambda for a dotted
// member path, validating every segment.
func PathAccessor(subject reflect.Type, path string) (*Lambda, error) {
	if _, err := ResolvePath(subject, path); err != nil {
		return nil, err
	}
	p := &Parameter{Name: "x", Type: subject}
	var body Node = p
	for _, seg := range splitPath(path) {
		body = &Member{Target: body, Name: seg}
	}
	return NewPredicate(p, body), nil
}

func splitPath(path string) []string {
	var segs []string
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '.' {
			if i > start {
				segs = append(segs, path[start:i])
			}
			start = i + 1
		}
	}
	return segs
}

func typeName(t reflect.Type) string {
	if t == nil {
		return ""
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}
