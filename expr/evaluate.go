package expr

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Evaluate applies a one-parameter predicate to a subject and returns
// the boolean outcome. Member access through a nil pointer propagates
// nil instead of panicking, and nil never satisfies an ordering
// comparison.
func Evaluate(l *Lambda, subject any) (bool, error) {
	v, err := EvaluateValue(l, subject)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: predicate yields %T, not bool", ErrTypeMismatch, v)
	}
	return b, nil
}

// EvaluateValue applies an accessor or predicate lambda to a subject and
// returns the raw result. Zero-parameter lambdas (static accessors)
// ignore the subject.
func EvaluateValue(l *Lambda, subject any) (any, error) {
	if l == nil || l.Body == nil {
		return nil, fmt.Errorf("%w: empty lambda", ErrUnsupportedExpression)
	}
	env := map[string]any{}
	if len(l.Params) == 1 {
		env[l.Params[0].Name] = subject
	} else if len(l.Params) > 1 {
		return nil, fmt.Errorf("%w: %d-parameter lambda", ErrUnsupportedExpression, len(l.Params))
	}
	return eval(l.Body, env)
}

func eval(n Node, env map[string]any) (any, error) {
	switch v := n.(type) {
	case *Parameter:
		val, ok := env[v.Name]
		if !ok {
			return nil, fmt.Errorf("%w: unbound parameter %s", ErrUnsupportedExpression, v.Name)
		}
		return val, nil
	case *Constant:
		return v.Value, nil
	case *Member:
		return evalMember(v, env)
	case *Binary:
		return evalBinary(v, env)
	case *Unary:
		return evalUnary(v, env)
	case *Call:
		return evalCall(v, env)
	default:
		return nil, fmt.Errorf("%w: cannot evaluate %s node", ErrUnsupportedExpression, n.Kind())
	}
}

func evalMember(m *Member, env map[string]any) (any, error) {
	if m.Static {
		owner, ok := lookupOwner(m.Owner)
		if !ok {
			return nil, fmt.Errorf("%w: static owner %s not registered", ErrMemberNotFound, m.Owner)
		}
		cm, ok := lookupComputed(owner, m.Name)
		if !ok || !cm.static {
			return nil, fmt.Errorf("%w: static %s on %s", ErrMemberNotFound, m.Name, m.Owner)
		}
		return cm.fn.Call(nil)[0].Interface(), nil
	}
	target, err := eval(m.Target, env)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, nil
	}
	return memberValue(target, m.Name)
}

// memberValue reads a member off a live value: getter method, field,
// then computed member, mirroring resolveMember.
func memberValue(target any, name string) (any, error) {
	rv := reflect.ValueOf(target)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}
	addr := rv
	if rv.CanAddr() {
		addr = rv.Addr()
	} else if rv.Kind() == reflect.Struct {
		// Methods with pointer receivers need an addressable copy.
		p := reflect.New(rv.Type())
		p.Elem().Set(rv)
		addr = p
	}
	if m := addr.MethodByName(name); m.IsValid() && m.Type().NumIn() == 0 && m.Type().NumOut() == 1 {
		return m.Call(nil)[0].Interface(), nil
	}
	if m := rv.MethodByName(name); m.IsValid() && m.Type().NumIn() == 0 && m.Type().NumOut() == 1 {
		return m.Call(nil)[0].Interface(), nil
	}
	if rv.Kind() == reflect.Struct {
		if f := rv.FieldByName(name); f.IsValid() {
			return f.Interface(), nil
		}
	}
	if cm, ok := lookupComputed(rv.Type(), name); ok && !cm.static {
		return cm.fn.Call([]reflect.Value{rv})[0].Interface(), nil
	}
	return nil, fmt.Errorf("%w: %s on %T", ErrMemberNotFound, name, target)
}

func evalBinary(b *Binary, env map[string]any) (any, error) {
	if b.Op == OpAnd || b.Op == OpOr {
		return evalLogical(b, env)
	}
	left, err := eval(b.Left, env)
	if err != nil {
		return nil, err
	}
	right, err := eval(b.Right, env)
	if err != nil {
		return nil, err
	}
	switch b.Op {
	case OpEqual:
		return valuesEqual(left, right), nil
	case OpNotEqual:
		return !valuesEqual(left, right), nil
	case OpGreater, OpGreaterOrEqual, OpLess, OpLessOrEqual:
		if left == nil || right == nil {
			return false, nil
		}
		c, err := Compare(left, right)
		if err != nil {
			return nil, err
		}
		switch b.Op {
		case OpGreater:
			return c > 0, nil
		case OpGreaterOrEqual:
			return c >= 0, nil
		case OpLess:
			return c < 0, nil
		default:
			return c <= 0, nil
		}
	case OpAdd:
		if ls, ok := left.(string); ok {
			rs, ok := right.(string)
			if !ok {
				return nil, fmt.Errorf("%w: add %T to string", ErrTypeMismatch, right)
			}
			return ls + rs, nil
		}
		return arith(left, right, func(a, b float64) float64 { return a + b })
	case OpMultiply:
		return arith(left, right, func(a, b float64) float64 { return a * b })
	default:
		return nil, fmt.Errorf("%w: binary op %s", ErrUnsupportedExpression, b.Op)
	}
}

// evalLogical short-circuits: the right operand of a decided and/or is
// never evaluated.
func evalLogical(b *Binary, env map[string]any) (any, error) {
	left, err := evalBool(b.Left, env)
	if err != nil {
		return nil, err
	}
	if b.Op == OpAnd && !left {
		return false, nil
	}
	if b.Op == OpOr && left {
		return true, nil
	}
	return evalBool(b.Right, env)
}

func evalBool(n Node, env map[string]any) (bool, error) {
	v, err := eval(n, env)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %T where bool expected", ErrTypeMismatch, v)
	}
	return b, nil
}

func evalUnary(u *Unary, env map[string]any) (any, error) {
	v, err := eval(u.Operand, env)
	if err != nil {
		return nil, err
	}
	switch u.Op {
	case UnaryNot:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: not on %T", ErrTypeMismatch, v)
		}
		return !b, nil
	case UnaryConvert, UnaryNullForgiving:
		return v, nil
	default:
		return nil, fmt.Errorf("%w: unary op %s", ErrUnsupportedExpression, u.Op)
	}
}

func evalCall(c *Call, env map[string]any) (any, error) {
	target, err := eval(c.Target, env)
	if err != nil {
		return nil, err
	}
	if c.Method == MethodValueOrDefault {
		if target != nil {
			return derefValue(target), nil
		}
		if len(c.Args) == 1 {
			return eval(c.Args[0], env)
		}
		return nil, nil
	}
	if target == nil {
		// Nil targets fail string predicates instead of erroring.
		switch c.Method {
		case MethodContains, MethodStartsWith, MethodEndsWith:
			return false, nil
		case MethodToLower:
			return nil, nil
		}
	}
	ts, ok := derefValue(target).(string)
	if !ok {
		return nil, fmt.Errorf("%w: %s on %T", ErrTypeMismatch, c.Method, target)
	}
	switch c.Method {
	case MethodToLower:
		return strings.ToLower(ts), nil
	case MethodContains, MethodStartsWith, MethodEndsWith:
		if len(c.Args) != 1 {
			return nil, fmt.Errorf("%w: %s wants one argument", ErrUnsupportedExpression, c.Method)
		}
		arg, err := eval(c.Args[0], env)
		if err != nil {
			return nil, err
		}
		as, ok := derefValue(arg).(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s argument is %T", ErrTypeMismatch, c.Method, arg)
		}
		switch c.Method {
		case MethodContains:
			return strings.Contains(ts, as), nil
		case MethodStartsWith:
			return strings.HasPrefix(ts, as), nil
		default:
			return strings.HasSuffix(ts, as), nil
		}
	default:
		return nil, fmt.Errorf("%w: method %s", ErrUnsupportedExpression, c.Method)
	}
}

// derefValue unwraps pointer values, returning nil for nil pointers.
func derefValue(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	return rv.Interface()
}

func valuesEqual(a, b any) bool {
	a, b = derefValue(a), derefValue(b)
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		return ok && at.Equal(bt)
	}
	return constantsEqual(a, b)
}

// Compare orders two values: nil first, then numbers, strings, booleans,
// and times by their natural order. Mixed incomparable types error.
func Compare(a, b any) (int, error) {
	a, b = derefValue(a), derefValue(b)
	switch {
	case a == nil && b == nil:
		return 0, nil
	case a == nil:
		return -1, nil
	case b == nil:
		return 1, nil
	}
	if af, ok := asFloat(a); ok {
		bf, ok := asFloat(b)
		if !ok {
			return 0, fmt.Errorf("%w: compare %T with %T", ErrTypeMismatch, a, b)
		}
		switch {
		case af < bf:
			return -1, nil
		case af > bf:
			return 1, nil
		default:
			return 0, nil
		}
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, fmt.Errorf("%w: compare string with %T", ErrTypeMismatch, b)
		}
		return strings.Compare(av, bv), nil
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, fmt.Errorf("%w: compare bool with %T", ErrTypeMismatch, b)
		}
		switch {
		case av == bv:
			return 0, nil
		case !av:
			return -1, nil
		default:
			return 1, nil
		}
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, fmt.Errorf("%w: compare time with %T", ErrTypeMismatch, b)
		}
		return av.Compare(bv), nil
	default:
		return 0, fmt.Errorf("%w: unordered type %T", ErrTypeMismatch, a)
	}
}

func arith(a, b any, f func(float64, float64) float64) (any, error) {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if !aok || !bok {
		return nil, fmt.Errorf("%w: arithmetic on %T and %T", ErrTypeMismatch, a, b)
	}
	r := f(af, bf)
	// Integer inputs keep integer results when exact.
	if isInt(a) && isInt(b) && r == float64(int64(r)) {
		return int64(r), nil
	}
	return r, nil
}

func isInt(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	default:
		return false
	}
}
