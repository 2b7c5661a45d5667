package queryspec

// IncludeDirective is one node of the include forest: a member path
// relative to its parent (the root entity for top-level directives),
// with chained continuations as children.
type IncludeDirective struct {
	Path     string
	Children []*IncludeDirective
}

// Chains flattens the subtree into root-to-leaf path chains. A leaf
// directive contributes one chain; a directive with children
// contributes one chain per leaf below it.
func (d *IncludeDirective) Chains() [][]string {
	if len(d.Children) == 0 {
		return [][]string{{d.Path}}
	}
	var out [][]string
	for _, c := range d.Children {
		for _, tail := range c.Chains() {
			chain := append([]string{d.Path}, tail...)
			out = append(out, chain)
		}
	}
	return out
}

func cloneIncludes(dirs []*IncludeDirective) []*IncludeDirective {
	if dirs == nil {
		return nil
	}
	out := make([]*IncludeDirective, len(dirs))
	for i, d := range dirs {
		out[i] = &IncludeDirective{Path: d.Path, Children: cloneIncludes(d.Children)}
	}
	return out
}
