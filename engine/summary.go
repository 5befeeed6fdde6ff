/*
summary.go - Alert synthesis for the notification collaborator

PURPOSE:
  Combines one invocation's match results, status changes, and anomalies
  into a single severity-tagged, deduplicated summary. The notification
  collaborator renders subject/body from this structure without
  re-deriving any classification logic; the engine never formats or
  sends messages itself.
*/
package engine

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// INVOCATION SUMMARY
// =============================================================================

// InvocationSummary is the structured digest handed to the notification
// collaborator after one reconciliation pass.
type InvocationSummary struct {
	Date Date

	MatchCounts    map[MatchType]int
	PriorityCounts map[AlertPriority]int
	ChangeCounts   map[ChangeType]int
	AnomalyCounts  map[AnomalyType]int
	SeverityCounts map[Severity]int

	// AffectedZones lists, sorted and deduplicated, every zone with an
	// alerting match, a status change, or an anomaly.
	AffectedZones []string

	// GallonsLost totals the expected volume of prevented or missing
	// irrigation: status changes that stopped watering plus the expected
	// volume of every missing run.
	GallonsLost decimal.Decimal
}

// AlertCount is the number of outcomes an operator should look at.
func (s InvocationSummary) AlertCount() int {
	return s.PriorityCounts[PriorityHigh] +
		s.PriorityCounts[PriorityMedium] +
		s.PriorityCounts[PriorityLow]
}

// BuildSummary synthesizes the per-invocation digest. Pure aggregation; the
// inputs keep their own semantics.
func BuildSummary(day Date, matches []MatchResult, changes []StatusChange, anomalies []UsageAnomaly, scheduled []ScheduledRun) InvocationSummary {
	summary := InvocationSummary{
		Date:           day,
		MatchCounts:    make(map[MatchType]int),
		PriorityCounts: make(map[AlertPriority]int),
		ChangeCounts:   make(map[ChangeType]int),
		AnomalyCounts:  make(map[AnomalyType]int),
		SeverityCounts: make(map[Severity]int),
		GallonsLost:    decimal.Zero,
	}

	expectedByRun := make(map[string]decimal.Decimal, len(scheduled))
	for _, run := range scheduled {
		expectedByRun[run.ID] = run.ExpectedGallons
	}

	zones := make(map[string]bool)

	for _, m := range matches {
		summary.MatchCounts[m.Type]++
		summary.PriorityCounts[m.Priority]++
		if m.Priority != PriorityNone {
			zones[m.ZoneName] = true
		}
		if m.Type == MissingRun {
			summary.GallonsLost = summary.GallonsLost.Add(expectedByRun[m.ScheduledRunID])
		}
	}

	for _, c := range changes {
		summary.ChangeCounts[c.ChangeType]++
		zones[c.ZoneName] = true
		if c.Prevented {
			summary.GallonsLost = summary.GallonsLost.Add(c.GallonsLost)
		}
	}

	for _, a := range anomalies {
		summary.AnomalyCounts[a.Type]++
		summary.SeverityCounts[a.Severity]++
		zones[a.ZoneName] = true
	}

	summary.AffectedZones = make([]string, 0, len(zones))
	for zone := range zones {
		summary.AffectedZones = append(summary.AffectedZones, zone)
	}
	sort.Strings(summary.AffectedZones)

	return summary
}
