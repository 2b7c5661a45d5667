package queryspec

// SearchMode selects how a search term matches the target member.
type SearchMode string

const (
	SearchContains SearchMode = "contains"
	SearchPrefix   SearchMode = "prefix"
	SearchSuffix   SearchMode = "suffix"
)

func (m SearchMode) valid() bool {
	switch m {
	case SearchContains, SearchPrefix, SearchSuffix:
		return true
	default:
		return false
	}
}

// SearchCriterion is one text-match condition. Criteria in a
// specification combine with OR: an entity matches the search when any
// criterion matches. Case sensitivity is decided per criterion.
type SearchCriterion struct {
	Path          string
	Term          string
	Mode          SearchMode
	CaseSensitive bool
}
