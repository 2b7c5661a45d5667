package expr

import "errors"

var (
	// ErrMemberNotFound signals a member name that resolves to nothing
	// on the subject type.
	ErrMemberNotFound = errors.New("member not found")
	// ErrTypeMismatch signals a member whose declared type is not
	// assignable to the requested result type.
	ErrTypeMismatch = errors.New("member type mismatch")
	// ErrNotStatic signals a static accessor request for an
	// instance-scoped member.
	ErrNotStatic = errors.New("member is not static")
	// ErrUnsupportedExpression signals a tree shape the toolkit cannot
	// walk (for example a member chain not rooted at a parameter).
	ErrUnsupportedExpression = errors.New("unsupported expression")
)
