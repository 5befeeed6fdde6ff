/*
report.go - Plain-text reconciliation report for operator tooling

PURPOSE:
  Renders one date's match results as a readable report: category
  summary, alert sections, and per-result detail. Operator CLIs and the
  HTTP surface serve this verbatim; nothing here feeds back into the
  decision logic.
*/
package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const reportRule = "================================================================================"

// RenderMatchReport formats one date's reconciliation for operators.
func RenderMatchReport(day Date, toleranceMinutes int, matches []MatchResult) string {
	var b strings.Builder

	counts := make(map[MatchType]int)
	for _, m := range matches {
		counts[m.Type]++
	}

	fmt.Fprintln(&b, reportRule)
	fmt.Fprintln(&b, "IRRIGATION SCHEDULE vs ACTUAL MATCHING REPORT")
	fmt.Fprintf(&b, "Date: %s\n", day.Time().Format("Monday, January 2, 2006"))
	fmt.Fprintf(&b, "Time tolerance: +/- %d minutes\n", toleranceMinutes)
	fmt.Fprintln(&b, reportRule)
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "MATCH SUMMARY:")
	fmt.Fprintf(&b, "  Perfect matches:  %d\n", counts[PerfectMatch])
	fmt.Fprintf(&b, "  Time variances:   %d\n", counts[TimeVariance])
	fmt.Fprintf(&b, "  Missing runs:     %d\n", counts[MissingRun])
	fmt.Fprintf(&b, "  Unexpected runs:  %d\n", counts[UnexpectedRun])
	fmt.Fprintf(&b, "  Rain cancelled:   %d\n", counts[RainCancelled])
	fmt.Fprintf(&b, "  Future scheduled: %d\n", counts[FutureScheduled])
	fmt.Fprintf(&b, "  Total processed:  %d\n", len(matches))
	fmt.Fprintln(&b)

	writeAlertSection(&b, matches)
	writeDetailSection(&b, matches)

	fmt.Fprintln(&b, reportRule)
	return b.String()
}

func writeAlertSection(b *strings.Builder, matches []MatchResult) {
	var alerts []MatchResult
	for _, m := range matches {
		if m.Priority == PriorityHigh || m.Priority == PriorityMedium {
			alerts = append(alerts, m)
		}
	}
	if len(alerts) == 0 {
		fmt.Fprintln(b, "NO HIGH/MEDIUM PRIORITY ALERTS")
		fmt.Fprintln(b)
		return
	}

	// HIGH first, then MEDIUM.
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Priority == PriorityHigh && alerts[j].Priority != PriorityHigh
	})

	fmt.Fprintln(b, "ALERTS REQUIRING ATTENTION:")
	for _, m := range alerts {
		fmt.Fprintf(b, "  %s: %s\n", m.Priority, m.ZoneName)
		fmt.Fprintf(b, "    %s\n", m.Notes)
		if m.ScheduledTime != nil {
			fmt.Fprintf(b, "    scheduled: %s\n", m.ScheduledTime.Format("3:04 PM"))
		}
	}
	fmt.Fprintln(b)
}

func writeDetailSection(b *strings.Builder, matches []MatchResult) {
	if len(matches) == 0 {
		return
	}

	sorted := make([]MatchResult, len(matches))
	copy(sorted, matches)
	sort.SliceStable(sorted, func(i, j int) bool {
		return reportSortKey(sorted[i]).Before(reportSortKey(sorted[j]))
	})

	fmt.Fprintln(b, "DETAILED MATCH RESULTS:")
	for _, m := range sorted {
		fmt.Fprintf(b, "  %s [%s]\n", m.ZoneName, m.Type)
		fmt.Fprintf(b, "    scheduled: %s | actual: %s | diff: %s\n",
			formatClock(m.ScheduledTime), formatClock(m.ActualTime), formatDiff(m))
		fmt.Fprintf(b, "    confidence: %.2f | priority: %s\n", m.Confidence, m.Priority)
	}
}

func reportSortKey(m MatchResult) time.Time {
	if m.ScheduledTime != nil {
		return *m.ScheduledTime
	}
	if m.ActualTime != nil {
		return *m.ActualTime
	}
	return time.Time{}
}

func formatClock(t *time.Time) string {
	if t == nil {
		return "n/a"
	}
	return t.Format("3:04 PM")
}

func formatDiff(m MatchResult) string {
	if m.ActualRunID == "" || m.ScheduledRunID == "" {
		return "n/a"
	}
	return fmt.Sprintf("%dmin", m.TimeDiffMins)
}
