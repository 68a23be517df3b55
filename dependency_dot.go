package weave

import (
	"fmt"
	"io"
	"sort"
)

// DependencyDOT writes the current registry's dependency graph in
// Graphviz DOT format to w, generalizing the teacher's standalone
// graph/visualizer.go diagnostic into a direct rendering over weave's
// own Descriptor/Key types instead of a parallel node/edge model — the
// registry already holds everything a DOT export needs, so there is no
// separate graph to build and keep in sync with the planner's own
// cycle/topology walk (internal/planner's detectCycles/topoOrder).
func (c *Container) DependencyDOT(w io.Writer) error {
	all := c.reg.readSnapshot()
	sort.Slice(all, func(i, j int) bool { return all[i].Slot < all[j].Slot })

	fmt.Fprintln(w, "digraph dependencies {")
	fmt.Fprintln(w, "  rankdir=LR;")
	fmt.Fprintln(w, "  node [shape=box, style=filled];")

	nodeID := func(d *Descriptor) string { return fmt.Sprintf("n%d", d.Slot) }

	for _, d := range all {
		fmt.Fprintf(w, "  %s [label=%q, fillcolor=%q];\n", nodeID(d), dotLabel(d), dotColor(d))
	}

	byIdentity := make(map[string]*Descriptor, len(all))
	for _, d := range all {
		byIdentity[d.Key.identity()] = d
	}

	for _, d := range all {
		for _, dep := range d.Dependencies {
			target := dep.Key
			optional := dep.Optional
			if wk, ok := asWrapper(dep.Key); ok {
				target = wk.Inner()
				optional = optional || wk.wrapperKind() == wrapperMaybe
			}
			dd, ok := byIdentity[target.identity()]
			if !ok {
				continue // FromContext/unregistered dependency: nothing to draw an edge to
			}
			style := ""
			if optional {
				style = " [style=dashed]"
			}
			fmt.Fprintf(w, "  %s -> %s%s;\n", nodeID(d), nodeID(dd), style)
		}
	}

	fmt.Fprintln(w, "}")
	return nil
}

func dotLabel(d *Descriptor) string {
	return fmt.Sprintf("%s\\n%s/%s", d.Key.String(), d.Lifetime.String(), d.Kind.String())
}

func dotColor(d *Descriptor) string {
	switch d.Lifetime {
	case Transient:
		return "#fde2e2"
	case Scoped:
		return "#e2f0fd"
	default:
		return "#f0f0f0"
	}
}
