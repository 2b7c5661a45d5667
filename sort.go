package queryspec

// SortDirection orders a sort criterion.
type SortDirection string

const (
	SortAscending  SortDirection = "asc"
	SortDescending SortDirection = "desc"
)

// SortCriterion is one ordering key. The first criterion in a
// specification is the primary sort; the rest are tie-breakers in
// insertion order.
type SortCriterion struct {
	Path      string
	Direction SortDirection
}
