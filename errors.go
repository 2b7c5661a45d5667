package queryspec

import "errors"

// Sentinel errors surfaced while building or executing specifications.
// Expression-level sentinels live in the expr package; these cover the
// specification aggregate and the retrieval contracts.
var (
	// ErrValidation wraps every builder-time validation failure.
	ErrValidation = errors.New("invalid specification")

	// ErrInvalidIncludeChain is returned when ThenInclude has no
	// preceding Include to chain from.
	ErrInvalidIncludeChain = errors.New("include chain has no root include")

	// ErrInvalidPagination is returned for non-positive page inputs and
	// for paged retrieval without both skip and take.
	ErrInvalidPagination = errors.New("invalid pagination")

	// ErrMultipleMatches is returned when a single-result retrieval
	// matches more than one entity.
	ErrMultipleMatches = errors.New("multiple entities match a single-result query")
)
