package expr

import (
	"encoding/json"
	"fmt"
)

// WireNode is the kind-discriminated JSON form of a Node. Only the
// fields relevant to the kind are populated; everything else is omitted
// from the encoding. Parameter subject types do not travel: decoded
// parameters carry a nil Type and are re-bound at evaluation time.
type WireNode struct {
	Kind    Kind            `json:"kind"`
	Name    string          `json:"name,omitempty"`
	Static  bool            `json:"static,omitempty"`
	Owner   string          `json:"owner,omitempty"`
	Op      string          `json:"op,omitempty"`
	Method  string          `json:"method,omitempty"`
	Value   json.RawMessage `json:"value,omitempty"`
	Target  *WireNode       `json:"target,omitempty"`
	Left    *WireNode       `json:"left,omitempty"`
	Right   *WireNode       `json:"right,omitempty"`
	Operand *WireNode       `json:"operand,omitempty"`
	Args    []*WireNode     `json:"args,omitempty"`
	Params  []string        `json:"params,omitempty"`
	Body    *WireNode       `json:"body,omitempty"`
}

// ToWire converts a tree to its wire form.
func ToWire(n Node) (*WireNode, error) {
	switch v := n.(type) {
	case nil:
		return nil, nil
	case *Parameter:
		return &WireNode{Kind: KindParameter, Name: v.Name}, nil
	case *Constant:
		raw, err := json.Marshal(v.Value)
		if err != nil {
			return nil, fmt.Errorf("encode constant: %w", err)
		}
		return &WireNode{Kind: KindConstant, Value: raw}, nil
	case *Member:
		w := &WireNode{Kind: KindMember, Name: v.Name, Static: v.Static, Owner: v.Owner}
		if v.Target != nil {
			t, err := ToWire(v.Target)
			if err != nil {
				return nil, err
			}
			w.Target = t
		}
		return w, nil
	case *Binary:
		left, err := ToWire(v.Left)
		if err != nil {
			return nil, err
		}
		right, err := ToWire(v.Right)
		if err != nil {
			return nil, err
		}
		return &WireNode{Kind: KindBinary, Op: string(v.Op), Left: left, Right: right}, nil
	case *Unary:
		op, err := ToWire(v.Operand)
		if err != nil {
			return nil, err
		}
		return &WireNode{Kind: KindUnary, Op: string(v.Op), Operand: op}, nil
	case *Call:
		w := &WireNode{Kind: KindCall, Method: v.Method}
		t, err := ToWire(v.Target)
		if err != nil {
			return nil, err
		}
		w.Target = t
		for _, a := range v.Args {
			aw, err := ToWire(a)
			if err != nil {
				return nil, err
			}
			w.Args = append(w.Args, aw)
		}
		return w, nil
	case *Lambda:
		body, err := ToWire(v.Body)
		if err != nil {
			return nil, err
		}
		w := &WireNode{Kind: KindLambda, Body: body}
		for _, p := range v.Params {
			w.Params = append(w.Params, p.Name)
		}
		return w, nil
	default:
		return nil, fmt.Errorf("%w: cannot encode %s node", ErrUnsupportedExpression, n.Kind())
	}
}

// FromWire reconstructs a tree from its wire form.
func FromWire(w *WireNode) (Node, error) {
	if w == nil {
		return nil, nil
	}
	switch w.Kind {
	case KindParameter:
		if w.Name == "" {
			return nil, fmt.Errorf("%w: parameter without name", ErrUnsupportedExpression)
		}
		return &Parameter{Name: w.Name}, nil
	case KindConstant:
		var v any
		if len(w.Value) > 0 {
			if err := json.Unmarshal(w.Value, &v); err != nil {
				return nil, fmt.Errorf("decode constant: %w", err)
			}
		}
		return &Constant{Value: v}, nil
	case KindMember:
		if w.Name == "" {
			return nil, fmt.Errorf("%w: member without name", ErrUnsupportedExpression)
		}
		target, err := FromWire(w.Target)
		if err != nil {
			return nil, err
		}
		if !w.Static && target == nil {
			return nil, fmt.Errorf("%w: instance member %s without target", ErrUnsupportedExpression, w.Name)
		}
		return &Member{Target: target, Name: w.Name, Static: w.Static, Owner: w.Owner}, nil
	case KindBinary:
		left, err := FromWire(w.Left)
		if err != nil {
			return nil, err
		}
		right, err := FromWire(w.Right)
		if err != nil {
			return nil, err
		}
		if left == nil || right == nil {
			return nil, fmt.Errorf("%w: binary %s missing operand", ErrUnsupportedExpression, w.Op)
		}
		return &Binary{Op: Op(w.Op), Left: left, Right: right}, nil
	case KindUnary:
		op, err := FromWire(w.Operand)
		if err != nil {
			return nil, err
		}
		if op == nil {
			return nil, fmt.Errorf("%w: unary %s missing operand", ErrUnsupportedExpression, w.Op)
		}
		return &Unary{Op: UnaryOp(w.Op), Operand: op}, nil
	case KindCall:
		target, err := FromWire(w.Target)
		if err != nil {
			return nil, err
		}
		c := &Call{Method: w.Method, Target: target}
		for _, a := range w.Args {
			an, err := FromWire(a)
			if err != nil {
				return nil, err
			}
			c.Args = append(c.Args, an)
		}
		return c, nil
	case KindLambda:
		body, err := FromWire(w.Body)
		if err != nil {
			return nil, err
		}
		l := &Lambda{Body: body}
		for _, name := range w.Params {
			l.Params = append(l.Params, &Parameter{Name: name})
		}
		return l, nil
	default:
		return nil, fmt.Errorf("%w: unknown node kind %q", ErrUnsupportedExpression, w.Kind)
	}
}

// LambdaFromWire decodes a wire node that must be a lambda.
func LambdaFromWire(w *WireNode) (*Lambda, error) {
	n, err := FromWire(w)
	if err != nil {
		return nil, err
	}
	l, ok := n.(*Lambda)
	if !ok {
		return nil, fmt.Errorf("%w: expected lambda, got %s", ErrUnsupportedExpression, n.Kind())
	}
	return l, nil
}
