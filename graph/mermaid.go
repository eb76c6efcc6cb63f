package graph

import (
	"fmt"
	"strings"
)

// Mermaid renders the graph as a Mermaid flowchart. Plain edges are solid,
// conditional edges are dotted and labelled with their route key. Output is
// deterministic.
func (g *Graph[S]) Mermaid() string {
	var b strings.Builder

	fmt.Fprintf(&b, "---\ntitle: %s\n---\nflowchart TD\n", g.name)
	fmt.Fprintf(&b, "\t%s([%s])\n", Start, Start)
	for _, n := range g.order {
		fmt.Fprintf(&b, "\t%s[%s]\n", n, n)
	}
	fmt.Fprintf(&b, "\t%s([%s])\n", End, End)

	fmt.Fprintf(&b, "\t%s --> %s\n", Start, g.entry)
	for _, n := range g.order {
		if br, ok := g.branches[n]; ok {
			// Routers without a mapping may target any node.
			for _, key := range sortedKeys(br.mapping) {
				fmt.Fprintf(&b, "\t%s -. %s .-> %s\n", n, key, br.mapping[key])
			}
			continue
		}
		to, ok := g.edges[n]
		if !ok {
			to = End
		}
		fmt.Fprintf(&b, "\t%s --> %s\n", n, to)
	}

	return b.String()
}
