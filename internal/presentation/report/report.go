package report

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/aretw0/xplanning/pkg/analysis"
	"github.com/aretw0/xplanning/pkg/policy"
)

// Markdown renders an explanation as a markdown document: the solution's
// evaluation, one section per alternative with its gains and losses, and the
// outcome of every search.
func Markdown(e *analysis.Explanation) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Explanation `%s`\n\n", e.ID)

	sb.WriteString("## Solution\n\n")
	writeInfo(&sb, e.Solution)

	sb.WriteString("## Alternatives\n\n")
	if len(e.Alternatives) == 0 {
		sb.WriteString("No alternative policy improves any quality attribute.\n\n")
	}
	for _, alt := range e.Alternatives {
		fmt.Fprintf(&sb, "### Improving %s\n\n", alt.Target)
		writeInfo(&sb, alt.Tradeoff.Alternative)
		writeDiffs(&sb, "Gains", alt.Tradeoff.GainNames(), alt.Tradeoff.Gains)
		writeDiffs(&sb, "Losses", alt.Tradeoff.LossNames(), alt.Tradeoff.Losses)
	}

	sb.WriteString("## Searches\n\n")
	sb.WriteString("| QFunction | Objective | Bound | Result |\n|---|---|---|---|\n")
	for _, o := range e.Outcomes {
		fmt.Fprintf(&sb, "| %s | %s | %s | %s |\n", o.QFunction, dash(o.Objective), num(o.Bound), result(o))
	}
	return sb.String()
}

func writeInfo(sb *strings.Builder, info *policy.Info) {
	fmt.Fprintf(sb, "Policy `%s`, objective cost **%s**.\n\n", short(info.PolicyKey), num(info.ObjectiveCost))
	sb.WriteString("| QFunction | Value | Scaled cost |\n|---|---|---|\n")
	for _, name := range info.QANames() {
		fmt.Fprintf(sb, "| %s | %s | %s |\n", name, num(info.QAValues[name]), num(info.ScaledCosts[name]))
	}
	sb.WriteString("\n")

	if len(info.EventCounts) == 0 {
		return
	}
	sb.WriteString("Expected events:\n\n")
	qs := make([]string, 0, len(info.EventCounts))
	for q := range info.EventCounts {
		qs = append(qs, q)
	}
	sort.Strings(qs)
	for _, q := range qs {
		counts := info.EventCounts[q]
		events := make([]string, 0, len(counts))
		for ev := range counts {
			events = append(events, ev)
		}
		sort.Strings(events)
		for _, ev := range events {
			fmt.Fprintf(sb, "- %s / %s: %s\n", q, ev, num(counts[ev]))
		}
	}
	sb.WriteString("\n")
}

func writeDiffs(sb *strings.Builder, title string, names []string, diffs map[string]analysis.Diff) {
	if len(names) == 0 {
		return
	}
	fmt.Fprintf(sb, "**%s**\n\n", title)
	sb.WriteString("| QFunction | Δ value | Δ scaled cost |\n|---|---|---|\n")
	for _, name := range names {
		d := diffs[name]
		fmt.Fprintf(sb, "| %s | %s | %s |\n", name, signed(d.Value), signed(d.ScaledCost))
	}
	sb.WriteString("\n")
}

func result(o analysis.Outcome) string {
	switch {
	case o.Found && o.Duplicate:
		return "duplicate"
	case o.Found:
		return "found"
	default:
		return string(o.Reason)
	}
}

func num(v float64) string { return strconv.FormatFloat(v, 'g', 6, 64) }

func signed(v float64) string {
	if v > 0 {
		return "+" + num(v)
	}
	return num(v)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func short(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
