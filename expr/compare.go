package expr

import "reflect"

// Comparer decides semantic equality of expression trees: trees that
// differ only by boolean simplification or commutative operand order
// compare equal. Reference and textual comparison both fail under those
// rewrites, which is exactly what this type exists to absorb.
type Comparer struct{}

// Equal reports whether a and b are semantically equal.
func (Comparer) Equal(a, b Node) bool {
	return equalNodes(Normalize(a), Normalize(b))
}

// Hash returns a hash that is identical for trees equal under Equal.
// Derived from the canonical rendering of the normalized tree; collisions
// between unequal trees are possible but acceptable for dedup and cache
// keying.
func (Comparer) Hash(n Node) string {
	return hashRender(Render(Normalize(n)))
}

func equalNodes(a, b Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case *Parameter:
		bv := b.(*Parameter)
		if av.Name != bv.Name {
			return false
		}
		// Types may be nil on trees rebuilt from the wire.
		return av.Type == nil || bv.Type == nil || av.Type == bv.Type
	case *Constant:
		return constantsEqual(av.Value, b.(*Constant).Value)
	case *Member:
		bv := b.(*Member)
		if av.Name != bv.Name || av.Static != bv.Static {
			return false
		}
		if av.Static {
			return av.Owner == bv.Owner
		}
		return equalNodes(av.Target, bv.Target)
	case *Binary:
		bv := b.(*Binary)
		if av.Op != bv.Op {
			return false
		}
		if equalNodes(av.Left, bv.Left) && equalNodes(av.Right, bv.Right) {
			return true
		}
		// Commutative nodes also match with operands crossed.
		if av.Op.Commutative() {
			return equalNodes(av.Left, bv.Right) && equalNodes(av.Right, bv.Left)
		}
		return false
	case *Unary:
		bv := b.(*Unary)
		return av.Op == bv.Op && equalNodes(av.Operand, bv.Operand)
	case *Call:
		bv := b.(*Call)
		if av.Method != bv.Method || len(av.Args) != len(bv.Args) {
			return false
		}
		if !equalNodes(av.Target, bv.Target) {
			return false
		}
		for i := range av.Args {
			if !equalNodes(av.Args[i], bv.Args[i]) {
				return false
			}
		}
		return true
	case *Lambda:
		bv := b.(*Lambda)
		if len(av.Params) != len(bv.Params) {
			return false
		}
		for i := range av.Params {
			if !equalNodes(av.Params[i], bv.Params[i]) {
				return false
			}
		}
		return equalNodes(av.Body, bv.Body)
	default:
		return false
	}
}

// constantsEqual compares constant values, treating all numeric kinds
// uniformly so trees decoded from JSON (where numbers arrive as float64)
// still compare equal to their in-process originals.
func constantsEqual(a, b any) bool {
	if af, aok := asFloat(a); aok {
		bf, bok := asFloat(b)
		return bok && af == bf
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
