/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Runs:
    ScheduledRunDTO, ActualRunDTO, IngestScheduledRequest, IngestActualRequest

  Reconciliation:
    MatchResultDTO, ReconciliationDTO, SummaryDTO

  Changes / Anomalies:
    StatusChangeDTO, AnomalyDTO

  Baselines:
    BaselineDTO, RecomputeBaselinesRequest

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - engine/types.go: The domain types these mirror
*/
package api

import (
	"time"

	"github.com/verdantworks/irrigation-engine/engine"
)

// =============================================================================
// RUN TYPES
// =============================================================================

// ScheduledRunDTO represents a captured schedule entry in API responses.
type ScheduledRunDTO struct {
	ID              string `json:"id"`
	ZoneID          string `json:"zone_id"`
	ZoneName        string `json:"zone_name"`
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes"`
	ExpectedGallons string `json:"expected_gallons"`
	RawStatus       string `json:"raw_status"`
	RainCancelled   bool   `json:"rain_cancelled"`
	ScrapedAt       string `json:"scraped_at"`
}

// IngestScheduledRequest is the request to record a captured schedule entry.
type IngestScheduledRequest struct {
	ID              string `json:"id"`
	ZoneID          string `json:"zone_id"`
	ZoneName        string `json:"zone_name"`
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes"`
	ExpectedGallons string `json:"expected_gallons"`
	RawStatus       string `json:"raw_status"`
	RainCancelled   bool   `json:"rain_cancelled"`
	ScrapedAt       string `json:"scraped_at,omitempty"`
}

// ActualRunDTO represents a reported run in API responses.
type ActualRunDTO struct {
	ID              string   `json:"id"`
	ZoneID          string   `json:"zone_id"`
	ZoneName        string   `json:"zone_name"`
	Date            string   `json:"date"`
	StartTime       string   `json:"start_time"`
	DurationMinutes int      `json:"duration_minutes"`
	ActualGallons   *string  `json:"actual_gallons,omitempty"`
	Status          string   `json:"status"`
	FailureReason   string   `json:"failure_reason,omitempty"`
	EfficiencyPct   *float64 `json:"efficiency_pct,omitempty"`
}

// IngestActualRequest is the request to record a reported run.
type IngestActualRequest struct {
	ID              string   `json:"id"`
	ZoneID          string   `json:"zone_id"`
	ZoneName        string   `json:"zone_name"`
	Date            string   `json:"date"`
	StartTime       string   `json:"start_time"`
	DurationMinutes int      `json:"duration_minutes"`
	ActualGallons   *string  `json:"actual_gallons,omitempty"`
	Status          string   `json:"status,omitempty"`
	EfficiencyPct   *float64 `json:"efficiency_pct,omitempty"`
}

// =============================================================================
// RECONCILIATION TYPES
// =============================================================================

// MatchResultDTO represents one match outcome.
type MatchResultDTO struct {
	ScheduledRunID string  `json:"scheduled_run_id,omitempty"`
	ActualRunID    string  `json:"actual_run_id,omitempty"`
	ZoneName       string  `json:"zone_name"`
	ScheduledTime  *string `json:"scheduled_time,omitempty"`
	ActualTime     *string `json:"actual_time,omitempty"`
	Type           string  `json:"type"`
	TimeDiffMins   int     `json:"time_diff_mins"`
	Confidence     float64 `json:"confidence"`
	Notes          string  `json:"notes"`
	Priority       string  `json:"priority"`
}

// StatusChangeDTO represents a detected status transition.
type StatusChangeDTO struct {
	ZoneID           string   `json:"zone_id"`
	ZoneName         string   `json:"zone_name"`
	DetectedDate     string   `json:"detected_date"`
	ChangeType       string   `json:"change_type"`
	CurrentVariant   string   `json:"current_variant"`
	CurrentText      string   `json:"current_text"`
	PreviousVariant  string   `json:"previous_variant"`
	PreviousText     string   `json:"previous_text"`
	Prevented        bool     `json:"prevented"`
	GallonsLost      string   `json:"gallons_lost"`
	DetectedAt       string   `json:"detected_at"`
	HoursSinceRecord *float64 `json:"hours_since_record,omitempty"`
}

// AnomalyDTO represents a detected usage deviation.
type AnomalyDTO struct {
	ZoneID        string  `json:"zone_id"`
	ZoneName      string  `json:"zone_name"`
	RunDate       string  `json:"run_date"`
	Type          string  `json:"type"`
	Severity      string  `json:"severity"`
	ActualValue   float64 `json:"actual_value"`
	ExpectedValue float64 `json:"expected_value"`
	DeviationPct  float64 `json:"deviation_pct"`
	Description   string  `json:"description"`
	DetectedAt    string  `json:"detected_at"`
}

// SummaryDTO is the per-invocation digest for the notification collaborator.
type SummaryDTO struct {
	Date           string         `json:"date"`
	AlertCount     int            `json:"alert_count"`
	MatchCounts    map[string]int `json:"match_counts"`
	PriorityCounts map[string]int `json:"priority_counts"`
	ChangeCounts   map[string]int `json:"change_counts"`
	AnomalyCounts  map[string]int `json:"anomaly_counts"`
	SeverityCounts map[string]int `json:"severity_counts"`
	AffectedZones  []string       `json:"affected_zones"`
	GallonsLost    string         `json:"gallons_lost"`
}

// ReconciliationDTO is the full result of one pass over a date.
type ReconciliationDTO struct {
	Date      string            `json:"date"`
	Matches   []MatchResultDTO  `json:"matches"`
	Changes   []StatusChangeDTO `json:"changes"`
	Anomalies []AnomalyDTO      `json:"anomalies"`
	Summary   SummaryDTO        `json:"summary"`
}

// =============================================================================
// BASELINE TYPES
// =============================================================================

// BaselineDTO represents a zone's current usage baseline.
type BaselineDTO struct {
	ZoneID          string  `json:"zone_id"`
	ZoneName        string  `json:"zone_name"`
	AvgGallons      float64 `json:"avg_gallons"`
	AvgDurationMins float64 `json:"avg_duration_minutes"`
	AvgGPM          float64 `json:"avg_gpm"`
	StdDevGallons   float64 `json:"std_dev_gallons"`
	StdDevDuration  float64 `json:"std_dev_duration"`
	SampleCount     int     `json:"sample_count"`
	WindowStart     string  `json:"window_start"`
	WindowEnd       string  `json:"window_end"`
	UpdatedAt       string  `json:"updated_at"`
}

// RecomputeBaselinesRequest triggers a baseline sweep ending at the given date.
type RecomputeBaselinesRequest struct {
	EndDate string `json:"end_date,omitempty"` // defaults to today
}

// RecomputeBaselinesResponse reports how many zones got a fresh baseline.
type RecomputeBaselinesResponse struct {
	ZonesChecked int `json:"zones_checked"`
	Updated      int `json:"updated"`
}

// ReconcileRequest triggers a full reconciliation pass for one date.
type ReconcileRequest struct {
	Date string `json:"date"` // YYYY-MM-DD
}

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toScheduledDTO(run engine.ScheduledRun) ScheduledRunDTO {
	return ScheduledRunDTO{
		ID:              run.ID,
		ZoneID:          string(run.ZoneID),
		ZoneName:        run.ZoneName,
		Date:            run.Date.String(),
		StartTime:       run.StartTime.Format(time.RFC3339),
		DurationMinutes: run.DurationMinutes,
		ExpectedGallons: run.ExpectedGallons.String(),
		RawStatus:       run.RawStatus,
		RainCancelled:   run.RainCancelled,
		ScrapedAt:       run.ScrapedAt.Format(time.RFC3339),
	}
}

func toActualDTO(run engine.ActualRun) ActualRunDTO {
	dto := ActualRunDTO{
		ID:              run.ID,
		ZoneID:          string(run.ZoneID),
		ZoneName:        run.ZoneName,
		Date:            run.Date.String(),
		StartTime:       run.StartTime.Format(time.RFC3339),
		DurationMinutes: run.DurationMinutes,
		Status:          run.Status,
		FailureReason:   run.FailureReason,
		EfficiencyPct:   run.EfficiencyPct,
	}
	if run.ActualGallons != nil {
		g := run.ActualGallons.String()
		dto.ActualGallons = &g
	}
	return dto
}

func toMatchDTO(m engine.MatchResult) MatchResultDTO {
	dto := MatchResultDTO{
		ScheduledRunID: m.ScheduledRunID,
		ActualRunID:    m.ActualRunID,
		ZoneName:       m.ZoneName,
		Type:           string(m.Type),
		TimeDiffMins:   m.TimeDiffMins,
		Confidence:     m.Confidence,
		Notes:          m.Notes,
		Priority:       string(m.Priority),
	}
	if m.ScheduledTime != nil {
		s := m.ScheduledTime.Format(time.RFC3339)
		dto.ScheduledTime = &s
	}
	if m.ActualTime != nil {
		s := m.ActualTime.Format(time.RFC3339)
		dto.ActualTime = &s
	}
	return dto
}

func toChangeDTO(c engine.StatusChange) StatusChangeDTO {
	return StatusChangeDTO{
		ZoneID:           string(c.ZoneID),
		ZoneName:         c.ZoneName,
		DetectedDate:     c.DetectedDate.String(),
		ChangeType:       string(c.ChangeType),
		CurrentVariant:   string(c.CurrentVariant),
		CurrentText:      c.CurrentText,
		PreviousVariant:  string(c.PreviousVariant),
		PreviousText:     c.PreviousText,
		Prevented:        c.Prevented,
		GallonsLost:      c.GallonsLost.String(),
		DetectedAt:       c.DetectedAt.Format(time.RFC3339),
		HoursSinceRecord: c.HoursSinceRecord,
	}
}

func toAnomalyDTO(a engine.UsageAnomaly) AnomalyDTO {
	return AnomalyDTO{
		ZoneID:        string(a.ZoneID),
		ZoneName:      a.ZoneName,
		RunDate:       a.RunDate.String(),
		Type:          string(a.Type),
		Severity:      string(a.Severity),
		ActualValue:   a.ActualValue,
		ExpectedValue: a.ExpectedValue,
		DeviationPct:  a.DeviationPct,
		Description:   a.Description,
		DetectedAt:    a.DetectedAt.Format(time.RFC3339),
	}
}

func toBaselineDTO(b engine.UsageBaseline) BaselineDTO {
	return BaselineDTO{
		ZoneID:          string(b.ZoneID),
		ZoneName:        b.ZoneName,
		AvgGallons:      b.AvgGallons,
		AvgDurationMins: b.AvgDurationMins,
		AvgGPM:          b.AvgGPM,
		StdDevGallons:   b.StdDevGallons,
		StdDevDuration:  b.StdDevDuration,
		SampleCount:     b.SampleCount,
		WindowStart:     b.WindowStart.String(),
		WindowEnd:       b.WindowEnd.String(),
		UpdatedAt:       b.UpdatedAt.Format(time.RFC3339),
	}
}

func toSummaryDTO(s engine.InvocationSummary) SummaryDTO {
	return SummaryDTO{
		Date:           s.Date.String(),
		AlertCount:     s.AlertCount(),
		MatchCounts:    stringKeys(s.MatchCounts),
		PriorityCounts: stringKeys(s.PriorityCounts),
		ChangeCounts:   stringKeys(s.ChangeCounts),
		AnomalyCounts:  stringKeys(s.AnomalyCounts),
		SeverityCounts: stringKeys(s.SeverityCounts),
		AffectedZones:  s.AffectedZones,
		GallonsLost:    s.GallonsLost.String(),
	}
}

func stringKeys[K ~string](counts map[K]int) map[string]int {
	out := make(map[string]int, len(counts))
	for k, v := range counts {
		out[string(k)] = v
	}
	return out
}

func toReconciliationDTO(r *engine.DayReconciliation) ReconciliationDTO {
	dto := ReconciliationDTO{
		Date:      r.Date.String(),
		Matches:   make([]MatchResultDTO, len(r.Matches)),
		Changes:   make([]StatusChangeDTO, len(r.Changes)),
		Anomalies: make([]AnomalyDTO, len(r.Anomalies)),
		Summary:   toSummaryDTO(r.Summary),
	}
	for i, m := range r.Matches {
		dto.Matches[i] = toMatchDTO(m)
	}
	for i, c := range r.Changes {
		dto.Changes[i] = toChangeDTO(c)
	}
	for i, a := range r.Anomalies {
		dto.Anomalies[i] = toAnomalyDTO(a)
	}
	return dto
}
