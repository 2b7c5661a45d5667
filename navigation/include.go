package navigation

import (
	"reflect"

	queryspec "github.com/arcadia-data/queryspec"
)

// Directives returns one root include directive per discovered
// navigation member of t, the same shape an explicit Include produces.
// Evaluators merge these with explicit directives, which win for any
// member path both name.
func Directives(t reflect.Type, conv Convention) []*queryspec.IncludeDirective {
	members := Discover(t, conv)
	if len(members) == 0 {
		return nil
	}
	out := make([]*queryspec.IncludeDirective, len(members))
	for i, m := range members {
		out[i] = &queryspec.IncludeDirective{Path: m.Name}
	}
	return out
}

// IncludeFor returns the include directive for one discovered member,
// or false when the member is not a navigation under the convention.
func IncludeFor(t reflect.Type, conv Convention, member string) (*queryspec.IncludeDirective, bool) {
	for _, m := range Discover(t, conv) {
		if m.Name == member {
			return &queryspec.IncludeDirective{Path: m.Name}, true
		}
	}
	return nil, false
}
