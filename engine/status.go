/*
status.go - Raw status text classification

PURPOSE:
  Turns the free-form popup text scraped from the controller into a
  canonical StatusVariant. This is the boundary between noisy collector
  output and the structured decision logic in the rest of the engine.

CLASSIFICATION ORDER:
  Rules are evaluated top to bottom and the first match wins. Order
  matters: every popup kind carries generic "Time:" / "Duration:" fields,
  so the explicit abort/suspend phrases must be tested before the
  schedule-text fallback or they would be misread as normal cycles.

TOTALITY:
  Classify never fails. Unmatched text yields StatusUnknown, not an error.

SEE ALSO:
  - detector.go: Uses classification pairs to derive change types
  - matcher.go: Uses zone name normalization and keyword priorities
*/
package engine

import "strings"

// =============================================================================
// STATUS CLASSIFIER
// =============================================================================

// statusRule is one (predicate, variant) entry in the ordered rule list.
type statusRule struct {
	matches func(string) bool
	variant StatusVariant
}

func contains(substr string) func(string) bool {
	return func(s string) bool { return strings.Contains(s, substr) }
}

func containsAny(subs ...string) func(string) bool {
	return func(s string) bool {
		for _, sub := range subs {
			if strings.Contains(s, sub) {
				return true
			}
		}
		return false
	}
}

// classifyRules is evaluated top to bottom; first match wins.
var classifyRules = []statusRule{
	// Explicit abort/suspension phrases, most specific first.
	{contains("aborted due to high daily rainfall"), StatusRainfallAbort},
	{contains("aborted due to sensor input"), StatusSensorAbort},
	{contains("water cycle suspended"), StatusUserSuspended},
	{contains("not scheduled to run"), StatusNotScheduled},

	// Explicit normal operation indicator.
	{contains("normal watering cycle"), StatusNormal},

	// Generic abort/suspend wording not covered above.
	{containsAny("aborted", "cancelled"), StatusOtherAbort},
	{containsAny("suspended", "paused"), StatusOtherSuspended},

	// Schedule text with no anomaly keyword implies normal operation.
	{func(s string) bool {
		return strings.Contains(s, "time:") && strings.Contains(s, "duration:")
	}, StatusNormal},
}

// Classify maps raw status text to a canonical variant. Pure and total:
// empty or unmatched text yields StatusUnknown.
func Classify(raw string) StatusVariant {
	text := strings.ToLower(strings.TrimSpace(raw))
	if text == "" {
		return StatusUnknown
	}
	for _, rule := range classifyRules {
		if rule.matches(text) {
			return rule.variant
		}
	}
	return StatusUnknown
}

// PreventsIrrigation reports whether a variant stops water delivery.
func PreventsIrrigation(v StatusVariant) bool {
	switch v {
	case StatusRainfallAbort, StatusSensorAbort, StatusUserSuspended,
		StatusNotScheduled, StatusOtherAbort, StatusOtherSuspended:
		return true
	}
	return false
}

// DeriveFailureReason extracts a short failure reason from a reported run's
// status text, or "" when the run looks clean.
func DeriveFailureReason(status string) string {
	switch v := Classify(status); v {
	case StatusNormal, StatusUnknown:
		return ""
	default:
		return string(v)
	}
}

// =============================================================================
// ZONE NAME NORMALIZATION
// =============================================================================

// zoneReplacements canonicalizes punctuation and ampersand variants that
// drift between the schedule view and the reported-runs view.
var zoneReplacements = [][2]string{
	{"pots, baskets & planters", "pots, baskets and planters"},
	{"bed/planters", "bed and planters"},
	{"&", "and"},
}

// NormalizeZoneName case-folds and canonicalizes a zone name so the same
// physical zone compares equal across both capture paths.
func NormalizeZoneName(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for _, r := range zoneReplacements {
		normalized = strings.ReplaceAll(normalized, r[0], r[1])
	}
	return normalized
}

// =============================================================================
// ZONE TYPE PRIORITY
// =============================================================================

// ZonePriority infers an alert priority from the zone's name. Container
// plantings dry out fastest, turf is the most resilient.
func ZonePriority(zoneName string) AlertPriority {
	name := strings.ToLower(zoneName)

	for _, kw := range []string{"planter", "bed", "pot", "basket"} {
		if strings.Contains(name, kw) {
			return PriorityHigh
		}
	}
	if strings.Contains(name, "pool") {
		return PriorityMedium
	}
	if strings.Contains(name, "turf") || strings.Contains(name, "lawn") {
		return PriorityLow
	}
	return PriorityMedium
}
