package expr

import (
	"fmt"
	"reflect"
)

// And combines two one-parameter predicates over the same subject type
// into one predicate evaluating both against a shared fresh parameter.
func And(p, q *Lambda) (*Lambda, error) {
	return combine(OpAnd, p, q)
}

// Or is the disjunctive counterpart of And.
func Or(p, q *Lambda) (*Lambda, error) {
	return combine(OpOr, p, q)
}

func combine(op Op, p, q *Lambda) (*Lambda, error) {
	if err := checkPredicate(p); err != nil {
		return nil, err
	}
	if err := checkPredicate(q); err != nil {
		return nil, err
	}
	pt, qt := p.Params[0].Type, q.Params[0].Type
	if pt != nil && qt != nil && pt != qt {
		return nil, fmt.Errorf("%w: predicate subject types differ (%s vs %s)",
			ErrUnsupportedExpression, pt, qt)
	}
	subject := pt
	if subject == nil {
		subject = qt
	}
	fresh := &Parameter{Name: "x", Type: subject}
	left := substituteParameter(p.Body, p.Params[0].Name, fresh)
	right := substituteParameter(q.Body, q.Params[0].Name, fresh)
	return NewPredicate(fresh, &Binary{Op: op, Left: left, Right: right}), nil
}

func checkPredicate(l *Lambda) error {
	if l == nil || len(l.Params) != 1 || l.Body == nil {
		return fmt.Errorf("%w: combinators need one-parameter predicates", ErrUnsupportedExpression)
	}
	return nil
}

// substituteParameter rewrites every reference to the named parameter,
// sharing untouched subtrees.
func substituteParameter(n Node, name string, replacement *Parameter) Node {
	switch v := n.(type) {
	case *Parameter:
		if v.Name == name {
			return replacement
		}
		return v
	case *Member:
		if v.Target == nil {
			return v
		}
		return Rebuild(v, substituteParameter(v.Target, name, replacement))
	case *Binary:
		return Rebuild(v,
			substituteParameter(v.Left, name, replacement),
			substituteParameter(v.Right, name, replacement))
	case *Unary:
		return Rebuild(v, substituteParameter(v.Operand, name, replacement))
	case *Call:
		children := make([]Node, 0, len(v.Args)+1)
		children = append(children, substituteParameter(v.Target, name, replacement))
		for _, a := range v.Args {
			children = append(children, substituteParameter(a, name, replacement))
		}
		return Rebuild(v, children...)
	case *Lambda:
		// Nested lambdas shadowing the name keep their own binding.
		for _, p := range v.Params {
			if p.Name == name {
				return v
			}
		}
		return Rebuild(v, substituteParameter(v.Body, name, replacement))
	default:
		return n
	}
}

// subjectTypeOf returns the declared subject type of a one-parameter
// predicate, or nil when unknown.
func subjectTypeOf(l *Lambda) reflect.Type {
	if l == nil || len(l.Params) == 0 {
		return nil
	}
	return l.Params[0].Type
}
