/*
matcher.go - Scheduled vs actual run reconciliation

PURPOSE:
  Reconciles one calendar date's scheduled runs against the reported runs,
  producing a MatchResult per scheduled run plus an UnexpectedRun result
  for every reported run no schedule claims.

ALGORITHM:
  For each scheduled run, in input order:
  1. Rain-cancelled runs are closed out immediately (no matching).
  2. Runs not yet past their 10-minute buffer window are FutureScheduled.
  3. Otherwise, pick the best unused reported run in the same normalized
     zone within the time tolerance, scored by time proximity, duration
     similarity, and water efficiency.

  Matching is greedy and winner-take-all: once a reported run is claimed
  it is unavailable to later scheduled runs, and the first scheduled run
  processed wins ties. This is NOT a globally optimal assignment; the
  order dependence is intentional and relied on for deterministic output.
  A min-cost bipartite assignment might produce different alerts - do not
  switch without confirming intended behavior.

CONFIDENCE SCORE:
  confidence = time_factor * duration_factor * efficiency_factor
  - time_factor decays linearly from 1.0 at zero offset to 0.5 at the
    tolerance boundary
  - duration_factor = 0.8 + 0.2 * min/max of the two durations
  - efficiency_factor = 1.0 / 0.9 / 0.8 by efficiency band

SEE ALSO:
  - status.go: Zone normalization and zone-type priorities
  - summary.go: Aggregates match results for notification
*/
package engine

import (
	"fmt"
	"log"
	"math"
	"time"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// MatcherConfig holds every matching threshold explicitly. No hidden
// globals: operator tooling constructs this and hands it to NewMatcher.
type MatcherConfig struct {
	// TimeToleranceMinutes is the maximum scheduled-vs-actual start offset
	// for a valid pairing.
	TimeToleranceMinutes int

	// FutureBufferMinutes is how long past the scheduled start a run may be
	// before its absence counts as missing.
	FutureBufferMinutes int

	// Now supplies the current time. Injected so reconciliation of a fixed
	// snapshot is deterministic under test.
	Now func() time.Time
}

// DefaultMatcherConfig returns the production defaults.
func DefaultMatcherConfig() MatcherConfig {
	return MatcherConfig{
		TimeToleranceMinutes: 30,
		FutureBufferMinutes:  10,
		Now:                  time.Now,
	}
}

// Matcher reconciles scheduled runs against reported runs for one date.
type Matcher struct {
	cfg MatcherConfig
}

func NewMatcher(cfg MatcherConfig) *Matcher {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.TimeToleranceMinutes <= 0 {
		cfg.TimeToleranceMinutes = 30
	}
	if cfg.FutureBufferMinutes <= 0 {
		cfg.FutureBufferMinutes = 10
	}
	return &Matcher{cfg: cfg}
}

// TimeTolerance reports the configured pairing tolerance in minutes.
func (m *Matcher) TimeTolerance() int { return m.cfg.TimeToleranceMinutes }

// =============================================================================
// MATCHING
// =============================================================================

// MatchDay reconciles one date's snapshot. Runs with a missing start time
// are skipped with a diagnostic rather than failing the whole date.
func (m *Matcher) MatchDay(scheduled []ScheduledRun, actual []ActualRun) []MatchResult {
	results := make([]MatchResult, 0, len(scheduled)+len(actual))
	used := make(map[string]bool, len(actual))
	now := m.cfg.Now()

	for _, sched := range scheduled {
		sched := sched
		if sched.StartTime.IsZero() {
			log.Printf("[Matcher] skipping scheduled run %s (%s): missing start time", sched.ID, sched.ZoneName)
			continue
		}

		// Legitimately cancelled runs need no pairing and no alert.
		if sched.RainCancelled || Classify(sched.RawStatus) == StatusRainfallAbort {
			results = append(results, MatchResult{
				ScheduledRunID: sched.ID,
				ZoneName:       sched.ZoneName,
				ScheduledTime:  &sched.StartTime,
				Type:           RainCancelled,
				Confidence:     1.0,
				Notes:          "legitimately cancelled due to rain",
				Priority:       PriorityNone,
			})
			continue
		}

		// Not yet due: the run gets a buffer window before it can be missing.
		buffer := time.Duration(m.cfg.FutureBufferMinutes) * time.Minute
		if sched.StartTime.Add(buffer).After(now) {
			results = append(results, MatchResult{
				ScheduledRunID: sched.ID,
				ZoneName:       sched.ZoneName,
				ScheduledTime:  &sched.StartTime,
				Type:           FutureScheduled,
				Confidence:     1.0,
				Notes:          "scheduled for future, not yet due",
				Priority:       PriorityNone,
			})
			continue
		}

		best, confidence, timeDiff := m.findBestMatch(sched, actual, used)
		if best == nil {
			result := MatchResult{
				ScheduledRunID: sched.ID,
				ZoneName:       sched.ZoneName,
				ScheduledTime:  &sched.StartTime,
				Type:           MissingRun,
				Confidence:     0.0,
				Notes:          "no matching reported run within time tolerance",
			}
			result.Priority = m.alertPriority(result)
			results = append(results, result)
			continue
		}

		used[best.ID] = true
		result := MatchResult{
			ScheduledRunID: sched.ID,
			ActualRunID:    best.ID,
			ZoneName:       sched.ZoneName,
			ScheduledTime:  &sched.StartTime,
			ActualTime:     &best.StartTime,
			TimeDiffMins:   timeDiff,
			Confidence:     confidence,
		}
		switch {
		case confidence >= 0.9 && timeDiff <= 5:
			result.Type = PerfectMatch
			result.Notes = fmt.Sprintf("excellent match (confidence %.2f)", confidence)
		case confidence >= 0.7:
			result.Type = TimeVariance
			result.Notes = fmt.Sprintf("good match with %dmin offset (confidence %.2f)", timeDiff, confidence)
		default:
			result.Type = TimeVariance
			result.Notes = fmt.Sprintf("marginal match with %dmin offset (confidence %.2f)", timeDiff, confidence)
		}
		result.Priority = m.alertPriority(result)
		results = append(results, result)
	}

	// Every reported run nothing claimed is unexpected and warrants a look.
	for _, run := range actual {
		run := run
		if used[run.ID] {
			continue
		}
		results = append(results, MatchResult{
			ActualRunID: run.ID,
			ZoneName:    run.ZoneName,
			ActualTime:  &run.StartTime,
			Type:        UnexpectedRun,
			Confidence:  0.0,
			Notes:       "reported run with no corresponding scheduled run",
			Priority:    PriorityMedium,
		})
	}

	return results
}

// findBestMatch scans unused reported runs in the same normalized zone
// within tolerance and returns the highest-confidence candidate. Ties on
// confidence go to the smaller time offset.
func (m *Matcher) findBestMatch(sched ScheduledRun, actual []ActualRun, used map[string]bool) (*ActualRun, float64, int) {
	var (
		best       *ActualRun
		bestConf   float64
		bestOffset = math.Inf(1)
	)

	schedZone := NormalizeZoneName(sched.ZoneName)

	for i := range actual {
		run := &actual[i]
		if used[run.ID] {
			continue
		}
		if run.StartTime.IsZero() {
			log.Printf("[Matcher] skipping reported run %s (%s): missing start time", run.ID, run.ZoneName)
			continue
		}
		if NormalizeZoneName(run.ZoneName) != schedZone {
			continue
		}

		offset := math.Abs(run.StartTime.Sub(sched.StartTime).Minutes())
		if offset > float64(m.cfg.TimeToleranceMinutes) {
			continue
		}

		conf := m.ConfidenceScore(sched, *run, offset)
		if conf > bestConf || (conf == bestConf && offset < bestOffset) {
			best = run
			bestConf = conf
			bestOffset = offset
		}
	}

	if best == nil {
		return nil, 0, 0
	}
	return best, bestConf, int(bestOffset)
}

// ConfidenceScore expresses how strongly a scheduled and reported run are
// believed to correspond, in [0,1]. Non-increasing in the time offset for
// fixed duration/efficiency inputs.
func (m *Matcher) ConfidenceScore(sched ScheduledRun, run ActualRun, offsetMinutes float64) float64 {
	confidence := 1.0

	// Zero offset scores 1.0, the tolerance boundary scores 0.5.
	timeFactor := math.Max(0.5, 1.0-(offsetMinutes/float64(m.cfg.TimeToleranceMinutes))*0.5)
	confidence *= timeFactor

	if sched.DurationMinutes > 0 {
		lo := math.Min(float64(run.DurationMinutes), float64(sched.DurationMinutes))
		hi := math.Max(float64(run.DurationMinutes), float64(sched.DurationMinutes))
		if hi > 0 {
			confidence *= 0.8 + (lo/hi)*0.2
		}
	}

	if run.EfficiencyPct != nil {
		confidence *= efficiencyFactor(*run.EfficiencyPct)
	}

	return math.Min(1.0, confidence)
}

// efficiencyFactor bands the observed water efficiency: 70-120% is normal,
// 50-70% and 120-150% are moderate, anything else is degraded.
func efficiencyFactor(pct float64) float64 {
	switch {
	case pct >= 70 && pct <= 120:
		return 1.0
	case (pct >= 50 && pct < 70) || (pct > 120 && pct <= 150):
		return 0.9
	default:
		return 0.8
	}
}

// alertPriority assigns the operator-facing priority for a match outcome.
// PerfectMatch, RainCancelled and FutureScheduled never alert; a confident
// time variance is a minor timing issue; everything else is graded by the
// zone's plant type.
func (m *Matcher) alertPriority(result MatchResult) AlertPriority {
	switch result.Type {
	case RainCancelled, PerfectMatch, FutureScheduled:
		return PriorityNone
	}
	if result.Type == TimeVariance && result.Confidence >= 0.8 {
		return PriorityLow
	}
	return ZonePriority(result.ZoneName)
}
