// Package expr builds, rewrites, and compares predicate expression trees.
//
// Trees are immutable tagged-variant nodes. Rewrites (normalization,
// parameter substitution) return new nodes but share every untouched
// subtree with the input.
package expr

import (
	"reflect"
)

// Kind identifies the variant of a Node.
type Kind string

const (
	KindParameter Kind = "parameter"
	KindConstant  Kind = "constant"
	KindMember    Kind = "member"
	KindBinary    Kind = "binary"
	KindUnary     Kind = "unary"
	KindCall      Kind = "call"
	KindLambda    Kind = "lambda"
)

// Op is a binary operator.
type Op string

const (
	OpEqual          Op = "eq"
	OpNotEqual       Op = "ne"
	OpGreater        Op = "gt"
	OpGreaterOrEqual Op = "gte"
	OpLess           Op = "lt"
	OpLessOrEqual    Op = "lte"
	OpAnd            Op = "and"
	OpOr             Op = "or"
	OpAdd            Op = "add"
	OpMultiply       Op = "mul"
)

// Commutative reports whether operand order is semantically irrelevant.
func (o Op) Commutative() bool {
	switch o {
	case OpEqual, OpNotEqual, OpAnd, OpOr, OpAdd, OpMultiply:
		return true
	default:
		return false
	}
}

// UnaryOp is a unary operator.
type UnaryOp string

const (
	UnaryNot UnaryOp = "not"
	// UnaryConvert is a widening/narrowing conversion marker. It never
	// changes an extracted property path.
	UnaryConvert UnaryOp = "convert"
	// UnaryNullForgiving is the null-forgiving marker. Transparent for
	// path extraction and evaluation.
	UnaryNullForgiving UnaryOp = "null_forgiving"
)

// Call method names understood by the evaluator.
const (
	MethodContains       = "contains"
	MethodStartsWith     = "starts_with"
	MethodEndsWith       = "ends_with"
	MethodToLower        = "to_lower"
	MethodValueOrDefault = "value_or_default"
)

// Node is one immutable expression tree fragment.
type Node interface {
	Kind() Kind
}

// Parameter is a named lambda parameter. Parameters compare by name and
// subject type; the type may be nil for trees reconstructed from the wire.
type Parameter struct {
	Name string
	Type reflect.Type
}

func (*Parameter) Kind() Kind { return KindParameter }

// Constant is a literal value.
type Constant struct {
	Value any
}

func (*Constant) Kind() Kind { return KindConstant }

// Member is a member access. Target is nil for static members, which are
// anchored to their owner type instead of an instance chain.
type Member struct {
	Target Node
	Name   string
	Static bool
	// Owner names the declaring type for static members; informational
	// for instance members.
	Owner string
}

func (*Member) Kind() Kind { return KindMember }

// Binary combines two operands with an operator.
type Binary struct {
	Op    Op
	Left  Node
	Right Node
}

func (*Binary) Kind() Kind { return KindBinary }

// Unary wraps one operand with an operator.
type Unary struct {
	Op      UnaryOp
	Operand Node
}

func (*Unary) Kind() Kind { return KindUnary }

// Call invokes a named method against a target with arguments.
type Call struct {
	Method string
	Target Node
	Args   []Node
}

func (*Call) Kind() Kind { return KindCall }

// Lambda binds parameters over a body. Predicates are one-parameter
// lambdas with a boolean-valued body; static accessors have no parameters.
type Lambda struct {
	Params []*Parameter
	Body   Node
}

func (*Lambda) Kind() Kind { return KindLambda }

// NewPredicate wraps a body in a single-parameter lambda.
func NewPredicate(param *Parameter, body Node) *Lambda {
	return &Lambda{Params: []*Parameter{param}, Body: body}
}

// Rebuild returns a node of the same variant with the given children,
// reusing the original when nothing changed. Children order follows the
// node's field order (binary: left, right; call: target then args;
// lambda: body only).
func Rebuild(n Node, children ...Node) Node {
	switch v := n.(type) {
	case *Binary:
		if len(children) == 2 {
			if children[0] == v.Left && children[1] == v.Right {
				return v
			}
			return &Binary{Op: v.Op, Left: children[0], Right: children[1]}
		}
	case *Unary:
		if len(children) == 1 {
			if children[0] == v.Operand {
				return v
			}
			return &Unary{Op: v.Op, Operand: children[0]}
		}
	case *Member:
		if len(children) == 1 {
			if children[0] == v.Target {
				return v
			}
			return &Member{Target: children[0], Name: v.Name, Static: v.Static, Owner: v.Owner}
		}
	case *Call:
		if len(children) == len(v.Args)+1 {
			same := children[0] == v.Target
			for i, a := range v.Args {
				same = same && children[i+1] == a
			}
			if same {
				return v
			}
			args := make([]Node, len(v.Args))
			copy(args, children[1:])
			return &Call{Method: v.Method, Target: children[0], Args: args}
		}
	case *Lambda:
		if len(children) == 1 {
			if children[0] == v.Body {
				return v
			}
			return &Lambda{Params: v.Params, Body: children[0]}
		}
	}
	return n
}
