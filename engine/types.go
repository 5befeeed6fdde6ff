/*
Package engine provides the core irrigation reconciliation engine.

PURPOSE:
  This package contains the decision logic for judging whether irrigation
  behaved as expected: matching scheduled runs against reported runs,
  detecting status transitions per zone, and flagging abnormal water
  consumption against a rolling statistical baseline.

KEY CONCEPTS IN THIS FILE (types.go):
  - ScheduledRun / ActualRun: Immutable captured records for one zone
  - MatchResult: Outcome of pairing a scheduled run with a reported run
  - StatusChange: A detected transition in a zone's popup status
  - UsageBaseline / UsageAnomaly: Per-zone statistics and deviations
  - AlertPriority / Severity: Operator-facing severity levels

DESIGN PRINCIPLES:
  1. Immutability: Captured runs are never modified after collection
  2. Precision: Uses decimal.Decimal for water volumes
  3. Idempotency: Re-running any detection on the same snapshot must not
     duplicate stored changes or anomalies
  4. Expected absence is data: no-match, no-baseline, and unknown status
     are ordinary result values, never errors

USAGE:
  matcher := engine.NewMatcher(engine.DefaultMatcherConfig())
  results := matcher.MatchDay(scheduled, actual)

SEE ALSO:
  - status.go: Raw status text classification
  - matcher.go: Scheduled vs actual reconciliation
  - detector.go: Status change detection
  - baseline.go: Usage baselines and anomaly checks
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// ZoneID identifies an irrigation valve/segment on the controller.
type ZoneID string

// =============================================================================
// STATUS VARIANTS - Canonical classification of raw status text
// =============================================================================

// StatusVariant is the closed set of canonical zone statuses.
type StatusVariant string

const (
	StatusNormal         StatusVariant = "normal_cycle"
	StatusRainfallAbort  StatusVariant = "rainfall_abort"
	StatusSensorAbort    StatusVariant = "sensor_abort"
	StatusUserSuspended  StatusVariant = "user_suspended"
	StatusNotScheduled   StatusVariant = "not_scheduled"
	StatusOtherAbort     StatusVariant = "other_abort"
	StatusOtherSuspended StatusVariant = "other_suspended"
	StatusUnknown        StatusVariant = "unknown"
)

// AllStatusVariants lists every member of the closed enum.
var AllStatusVariants = []StatusVariant{
	StatusNormal, StatusRainfallAbort, StatusSensorAbort, StatusUserSuspended,
	StatusNotScheduled, StatusOtherAbort, StatusOtherSuspended, StatusUnknown,
}

// =============================================================================
// PRIORITIES AND SEVERITIES
// =============================================================================

// AlertPriority is the operator-facing priority of a match outcome.
type AlertPriority string

const (
	PriorityHigh   AlertPriority = "HIGH"
	PriorityMedium AlertPriority = "MEDIUM"
	PriorityLow    AlertPriority = "LOW"
	PriorityNone   AlertPriority = "NONE"
)

// Severity grades a detected anomaly.
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
)

// =============================================================================
// CAPTURED RECORDS - Produced by the collector collaborator
// =============================================================================

// ScheduledRun is an expected irrigation event captured from the controller's
// schedule view. One record per zone per scrape; successive scrapes may
// produce multiple records per zone/day (that history drives change
// detection).
type ScheduledRun struct {
	ID              string
	ZoneID          ZoneID
	ZoneName        string
	Date            Date
	StartTime       time.Time
	DurationMinutes int
	ExpectedGallons decimal.Decimal
	RawStatus       string // unparsed popup text; Classify turns it into a variant
	RainCancelled   bool   // explicit rain flag reported by the controller
	ScrapedAt       time.Time
}

// ActualRun is an observed execution event reported by the controller.
type ActualRun struct {
	ID              string
	ZoneID          ZoneID
	ZoneName        string
	Date            Date
	StartTime       time.Time
	DurationMinutes int
	ActualGallons   *decimal.Decimal // nil when the flow meter reported nothing
	Status          string
	FailureReason   string   // derived from Status, see DeriveFailureReason
	EfficiencyPct   *float64 // observed water efficiency percent, nil if unavailable
}

// GallonsPerMinute returns the observed flow rate, or 0 when undefined.
func (r ActualRun) GallonsPerMinute() float64 {
	if r.ActualGallons == nil || r.DurationMinutes <= 0 {
		return 0
	}
	return r.ActualGallons.InexactFloat64() / float64(r.DurationMinutes)
}

// =============================================================================
// MATCH RESULTS - Produced fresh per reconciliation invocation
// =============================================================================

// MatchType categorizes the outcome of pairing a scheduled run with the
// day's reported runs.
type MatchType string

const (
	PerfectMatch    MatchType = "perfect_match"    // same zone, near-exact time
	TimeVariance    MatchType = "time_variance"    // same zone, tolerable offset
	MissingRun      MatchType = "missing_run"      // scheduled but never reported
	UnexpectedRun   MatchType = "unexpected_run"   // reported with no schedule
	RainCancelled   MatchType = "rain_cancelled"   // legitimately cancelled
	FutureScheduled MatchType = "future_scheduled" // not yet due
)

// MatchResult pairs at most one ScheduledRun with at most one ActualRun.
// Results are recomputed from scratch each invocation and never persisted
// as mutable state.
type MatchResult struct {
	ScheduledRunID string // empty for UnexpectedRun
	ActualRunID    string // empty when no reported run matched
	ZoneName       string
	ScheduledTime  *time.Time
	ActualTime     *time.Time
	Type           MatchType
	TimeDiffMins   int
	Confidence     float64 // 0.0 to 1.0
	Notes          string
	Priority       AlertPriority
}

// =============================================================================
// STATUS CHANGES - Append-only transition log
// =============================================================================

// ChangeType names the kind of transition a StatusChange records.
type ChangeType string

const (
	ChangeRainfallAbort       ChangeType = "rainfall_abort"
	ChangeSensorAbort         ChangeType = "sensor_abort"
	ChangeUserSuspended       ChangeType = "user_suspended"
	ChangeIrrigationPrevented ChangeType = "irrigation_prevented"
	ChangeNormalRestored      ChangeType = "normal_restored"
	ChangeOther               ChangeType = "other_change"
)

// StatusChange records one detected transition for a zone.
//
// Uniqueness invariant: no two stored changes for the same zone/day may
// share an identical (CurrentText, PreviousText) pair.
type StatusChange struct {
	ZoneID            ZoneID
	ZoneName          string
	DetectedDate      Date
	CurrentRunDate    Date
	CurrentStartTime  time.Time
	CurrentVariant    StatusVariant
	CurrentText       string
	PreviousRunDate   Date
	PreviousStartTime time.Time
	PreviousVariant   StatusVariant
	PreviousText      string
	ChangeType        ChangeType
	Prevented         bool // current variant stops irrigation
	GallonsLost       decimal.Decimal
	DetectedAt        time.Time
	HoursSinceRecord  *float64 // time since the previous capture, if known
}

// =============================================================================
// USAGE BASELINES AND ANOMALIES
// =============================================================================

// UsageBaseline summarizes a zone's historical consumption over a trailing
// window. One current baseline per zone; superseded wholesale on recompute.
// Undefined (absent) until the minimum sample count is reached.
type UsageBaseline struct {
	ZoneID          ZoneID
	ZoneName        string
	AvgGallons      float64
	AvgDurationMins float64
	AvgGPM          float64
	StdDevGallons   float64
	StdDevDuration  float64
	SampleCount     int
	WindowStart     Date
	WindowEnd       Date
	UpdatedAt       time.Time
}

// AnomalyType names the kind of deviation a UsageAnomaly records.
type AnomalyType string

const (
	AnomalyZeroUsage       AnomalyType = "zero_usage"
	AnomalyHighUsage       AnomalyType = "high_usage"
	AnomalyLowUsage        AnomalyType = "low_usage"
	AnomalyRuntimeIncrease AnomalyType = "runtime_increase"
	AnomalyRuntimeDecrease AnomalyType = "runtime_decrease"
	AnomalyEfficiencySpike AnomalyType = "efficiency_spike"
	AnomalyEfficiencyDrop  AnomalyType = "efficiency_drop"
)

// UsageAnomaly records one deviation for a zone/day.
//
// Uniqueness invariant: no duplicate (ZoneID, RunDate, Type).
type UsageAnomaly struct {
	ZoneID        ZoneID
	ZoneName      string
	RunDate       Date
	Type          AnomalyType
	Severity      Severity
	ActualValue   float64
	ExpectedValue float64
	DeviationPct  float64
	Description   string
	DetectedAt    time.Time
}
