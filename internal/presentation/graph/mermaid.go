package graph

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/aretw0/xplanning/pkg/explicit"
)

// GraphOverlay marks states to emphasize on the graph.
type GraphOverlay struct {
	// Highlighted states, typically where an alternative departs from the solution.
	Highlighted []int
}

// GenerateMermaid produces a Mermaid flowchart of an explicit chain.
// It applies semantic styling:
// - Initial: ((Circle))
// - Goal: (((Double circle)))
// - Default: [Rectangle]
// Branches of the same action are merged into one edge per destination,
// labelled with the action and its probability.
func GenerateMermaid(m *explicit.Model, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	goals := make(map[int]bool, len(m.Goals))
	for _, g := range m.Goals {
		goals[g] = true
	}

	for _, row := range m.States.Rows() {
		state, _ := m.States.State(row.Index)
		opener, closer := "[", "]"
		switch {
		case row.Index == m.Initial:
			opener, closer = "((", "))"
		case goals[row.Index]:
			opener, closer = "(((", ")))"
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", nodeID(row.Index), opener, escape(state.String()), closer))
	}

	type edge struct {
		from, to int
		action   string
	}
	probs := make(map[edge]float64)
	var order []edge
	for _, tr := range m.Transitions {
		e := edge{from: tr.From, to: tr.To, action: tr.Action}
		if _, seen := probs[e]; !seen {
			order = append(order, e)
		}
		probs[e] += tr.Probability
	}
	for _, e := range order {
		label := escape(e.action)
		if p := probs[e]; p < 1 {
			label += " " + strconv.FormatFloat(p, 'g', 4, 64)
		}
		sb.WriteString(fmt.Sprintf("    %s -- \"%s\" --> %s\n", nodeID(e.from), label, nodeID(e.to)))
	}

	if overlay != nil && len(overlay.Highlighted) > 0 {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for contrast on both themes
		sb.WriteString("    classDef highlighted fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		ids := append([]int(nil), overlay.Highlighted...)
		sort.Ints(ids)
		last := -1
		for _, id := range ids {
			if id == last || id < 0 || id >= m.States.Len() {
				continue
			}
			last = id
			sb.WriteString(fmt.Sprintf("    class %s highlighted;\n", nodeID(id)))
		}
	}

	return sb.String()
}

func nodeID(i int) string { return "s" + strconv.Itoa(i) }

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
