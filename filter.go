package queryspec

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/arcadia-data/queryspec/expr"
)

// MaxFilterCriteria caps the number of field criteria per specification.
const MaxFilterCriteria = 32

// FilterOp is a field-level filter operator.
type FilterOp string

const (
	FilterEqual          FilterOp = "eq"
	FilterNotEqual       FilterOp = "ne"
	FilterGreater        FilterOp = "gt"
	FilterGreaterOrEqual FilterOp = "gte"
	FilterLess           FilterOp = "lt"
	FilterLessOrEqual    FilterOp = "lte"
	FilterContains       FilterOp = "contains"
	FilterStartsWith     FilterOp = "starts_with"
	FilterEndsWith       FilterOp = "ends_with"
)

func (op FilterOp) valid() bool {
	switch op {
	case FilterEqual, FilterNotEqual, FilterGreater, FilterGreaterOrEqual,
		FilterLess, FilterLessOrEqual, FilterContains, FilterStartsWith, FilterEndsWith:
		return true
	default:
		return false
	}
}

// FilterCriterion is one field comparison: a dotted member path, an
// operator, and the comparison value.
type FilterCriterion struct {
	Path  string
	Op    FilterOp
	Value any
}

// FilterSpecification holds the ordered filter criteria and any extra
// predicate lambdas added through Where. It folds to one AND-chained
// predicate.
type FilterSpecification struct {
	criteria   []FilterCriterion
	predicates []*expr.Lambda
}

// Criteria returns a copy of the field criteria in insertion order.
func (f *FilterSpecification) Criteria() []FilterCriterion {
	out := make([]FilterCriterion, len(f.criteria))
	copy(out, f.criteria)
	return out
}

// Empty reports whether the specification constrains nothing.
func (f *FilterSpecification) Empty() bool {
	return len(f.criteria) == 0 && len(f.predicates) == 0
}

func (f *FilterSpecification) count() int {
	return len(f.criteria) + len(f.predicates)
}

// Predicate folds all criteria and lambdas into a single AND-chained
// predicate over subject, or nil when the specification is empty.
// Paths are validated against subject when it is known.
func (f *FilterSpecification) Predicate(subject reflect.Type) (*expr.Lambda, error) {
	var combined *expr.Lambda
	for _, c := range f.criteria {
		p, err := criterionPredicate(subject, c)
		if err != nil {
			return nil, err
		}
		combined, err = andChain(combined, p)
		if err != nil {
			return nil, err
		}
	}
	for _, p := range f.predicates {
		var err error
		combined, err = andChain(combined, p)
		if err != nil {
			return nil, err
		}
	}
	return combined, nil
}

func andChain(acc, next *expr.Lambda) (*expr.Lambda, error) {
	if acc == nil {
		return next, nil
	}
	return expr.And(acc, next)
}

// criterionPredicate lowers one criterion to a predicate lambda.
// String operators compare through to_lower on neither side; callers
// wanting case-insensitive matching use search criteria instead.
func criterionPredicate(subject reflect.Type, c FilterCriterion) (*expr.Lambda, error) {
	if !c.Op.valid() {
		return nil, fmt.Errorf("%w: unknown filter operator %q", ErrValidation, c.Op)
	}
	if c.Path == "" {
		return nil, fmt.Errorf("%w: filter criterion without path", ErrValidation)
	}
	if subject != nil {
		if _, err := expr.ResolvePath(subject, c.Path); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}
	param := &expr.Parameter{Name: "x", Type: subject}
	var access expr.Node = param
	for _, seg := range strings.Split(c.Path, ".") {
		access = &expr.Member{Target: access, Name: seg}
	}
	var body expr.Node
	switch c.Op {
	case FilterContains:
		body = &expr.Call{Method: expr.MethodContains, Target: access, Args: []expr.Node{&expr.Constant{Value: c.Value}}}
	case FilterStartsWith:
		body = &expr.Call{Method: expr.MethodStartsWith, Target: access, Args: []expr.Node{&expr.Constant{Value: c.Value}}}
	case FilterEndsWith:
		body = &expr.Call{Method: expr.MethodEndsWith, Target: access, Args: []expr.Node{&expr.Constant{Value: c.Value}}}
	default:
		body = &expr.Binary{Op: binaryOpFor(c.Op), Left: access, Right: &expr.Constant{Value: c.Value}}
	}
	return expr.NewPredicate(param, body), nil
}

func binaryOpFor(op FilterOp) expr.Op {
	switch op {
	case FilterEqual:
		return expr.OpEqual
	case FilterNotEqual:
		return expr.OpNotEqual
	case FilterGreater:
		return expr.OpGreater
	case FilterGreaterOrEqual:
		return expr.OpGreaterOrEqual
	case FilterLess:
		return expr.OpLess
	default:
		return expr.OpLessOrEqual
	}
}
