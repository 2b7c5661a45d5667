package expr

// Normalize rewrites a tree into a canonical form:
//
//   - x == true  ->  x       (either operand order)
//   - x == false ->  not(x)
//   - x != false ->  x
//   - x != true  ->  not(x)
//   - commutative operands reordered by canonical rendering
//
// The rewrite is idempotent and shares untouched subtrees. Lambdas
// normalize their body in place of the lambda.
func Normalize(n Node) Node {
	switch v := n.(type) {
	case *Binary:
		left := Normalize(v.Left)
		right := Normalize(v.Right)

		if v.Op == OpEqual || v.Op == OpNotEqual {
			if simplified, ok := simplifyBoolComparison(v.Op, left, right); ok {
				return simplified
			}
		}
		if v.Op.Commutative() && Render(left) > Render(right) {
			left, right = right, left
		}
		return Rebuild(v, left, right)
	case *Unary:
		return Rebuild(v, Normalize(v.Operand))
	case *Member:
		if v.Target == nil {
			return v
		}
		return Rebuild(v, Normalize(v.Target))
	case *Call:
		children := make([]Node, 0, len(v.Args)+1)
		children = append(children, Normalize(v.Target))
		for _, a := range v.Args {
			children = append(children, Normalize(a))
		}
		return Rebuild(v, children...)
	case *Lambda:
		return Rebuild(v, Normalize(v.Body))
	default:
		return n
	}
}

// simplifyBoolComparison folds comparisons against boolean literals.
// Both operand orders are handled identically.
func simplifyBoolComparison(op Op, left, right Node) (Node, bool) {
	operand, literal, ok := boolLiteralOperand(left, right)
	if !ok {
		return nil, false
	}
	switch {
	case op == OpEqual && literal:
		return operand, true
	case op == OpEqual && !literal:
		return &Unary{Op: UnaryNot, Operand: operand}, true
	case op == OpNotEqual && !literal:
		return operand, true
	case op == OpNotEqual && literal:
		return &Unary{Op: UnaryNot, Operand: operand}, true
	}
	return nil, false
}

func boolLiteralOperand(left, right Node) (Node, bool, bool) {
	if c, ok := left.(*Constant); ok {
		if b, ok := c.Value.(bool); ok {
			return right, b, true
		}
	}
	if c, ok := right.(*Constant); ok {
		if b, ok := c.Value.(bool); ok {
			return left, b, true
		}
	}
	return nil, false, false
}
