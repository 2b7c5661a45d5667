package expr

import (
	"fmt"
	"strings"
)

// FullPath extracts the dot-separated property path of a member-access
// lambda, e.g. x => x.Location.Name yields "Location.Name". Conversion
// and null-handling wrappers are transparent: the null-forgiving marker
// and value_or_default calls never change the extracted path.
func FullPath(l *Lambda) (string, error) {
	names, err := memberChain(l)
	if err != nil {
		return "", err
	}
	// Collected bottom-up; reverse into declaration order.
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return strings.Join(names, "."), nil
}

// FinalName returns only the last segment of the member chain.
func FinalName(l *Lambda) (string, error) {
	names, err := memberChain(l)
	if err != nil {
		return "", err
	}
	return names[0], nil
}

// memberChain walks the access chain from the outermost member to the
// root, returning names in bottom-up order.
func memberChain(l *Lambda) ([]string, error) {
	if l == nil || l.Body == nil {
		return nil, fmt.Errorf("%w: empty lambda", ErrUnsupportedExpression)
	}
	var names []string
	cur := l.Body
	for {
		switch n := cur.(type) {
		case *Member:
			names = append(names, n.Name)
			if n.Static {
				// Static members anchor the chain to their owner type.
				return names, nil
			}
			cur = n.Target
		case *Unary:
			if n.Op != UnaryConvert && n.Op != UnaryNullForgiving {
				return nil, fmt.Errorf("%w: unary %s in member chain", ErrUnsupportedExpression, n.Op)
			}
			cur = n.Operand
		case *Call:
			if n.Method != MethodValueOrDefault {
				return nil, fmt.Errorf("%w: call %s in member chain", ErrUnsupportedExpression, n.Method)
			}
			cur = n.Target
		case *Parameter:
			if len(names) == 0 {
				return nil, fmt.Errorf("%w: no member access", ErrUnsupportedExpression)
			}
			return names, nil
		default:
			return nil, fmt.Errorf("%w: member chain terminates in %s", ErrUnsupportedExpression, cur.Kind())
		}
	}
}
