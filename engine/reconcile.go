/*
reconcile.go - The per-date reconciliation coordinator

PURPOSE:
  Drives one full pass over a date's snapshot: match scheduled vs
  reported runs, detect status changes, check usage anomalies, and
  synthesize the notification summary. This is the thin coordinator on
  top of the decision components; it owns no thresholds of its own.

EXECUTION MODEL:
  Single-threaded, batch, invocation-scoped. The pass operates on an
  immutable snapshot of one date and produces a deterministic result.
  The only cross-call state is the event store, and every write path is
  idempotent, so re-invoking a pass on the same snapshot neither
  duplicates stored rows nor alters already-computed matches.

ERROR CONTRACT:
  A store read or write failure fails the whole date; the caller retries
  the date rather than trusting partial results, since matches are
  recomputed from scratch each invocation.
*/
package engine

import (
	"context"
	"fmt"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine bundles the decision components over one event store.
type Engine struct {
	store    EventStore
	matcher  *Matcher
	detector *ChangeDetector
	analyzer *Analyzer
}

// Config carries every component's thresholds explicitly.
type Config struct {
	Matcher   MatcherConfig
	Baseline  BaselineConfig
	Anomalies AnomalyThresholds
}

func DefaultConfig() Config {
	return Config{
		Matcher:   DefaultMatcherConfig(),
		Baseline:  DefaultBaselineConfig(),
		Anomalies: DefaultAnomalyThresholds(),
	}
}

func New(store EventStore, cfg Config) *Engine {
	return &Engine{
		store:    store,
		matcher:  NewMatcher(cfg.Matcher),
		detector: NewChangeDetector(),
		analyzer: NewAnalyzer(cfg.Baseline, cfg.Anomalies),
	}
}

// Matcher exposes the configured matcher (for report rendering).
func (e *Engine) Matcher() *Matcher { return e.matcher }

// Analyzer exposes the configured analyzer (for baseline recomputes).
func (e *Engine) Analyzer() *Analyzer { return e.analyzer }

// =============================================================================
// RECONCILIATION PASS
// =============================================================================

// DayReconciliation is the result of one full pass over a date.
type DayReconciliation struct {
	Date      Date
	Matches   []MatchResult
	Changes   []StatusChange
	Anomalies []UsageAnomaly
	Summary   InvocationSummary
}

// ReconcileDate runs the full pass for one date: matching, change
// detection, anomaly detection, summary. Store failures abort the date.
func (e *Engine) ReconcileDate(ctx context.Context, day Date) (*DayReconciliation, error) {
	scheduled, err := e.store.ScheduledRuns(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("load scheduled runs for %s: %w", day, err)
	}
	actual, err := e.store.ActualRuns(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("load reported runs for %s: %w", day, err)
	}

	matches := e.matcher.MatchDay(scheduled, actual)

	changes, err := e.detector.DetectAndRecord(ctx, e.store, scheduled, day)
	if err != nil {
		return nil, err
	}

	anomalies, err := e.analyzer.DetectAndRecord(ctx, e.store, day)
	if err != nil {
		return nil, err
	}

	return &DayReconciliation{
		Date:      day,
		Matches:   matches,
		Changes:   changes,
		Anomalies: anomalies,
		Summary:   BuildSummary(day, matches, changes, anomalies, scheduled),
	}, nil
}

// MatchOnly reconciles without touching the change or anomaly logs.
// Useful for rendering reports against historical dates.
func (e *Engine) MatchOnly(ctx context.Context, day Date) ([]MatchResult, error) {
	scheduled, err := e.store.ScheduledRuns(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("load scheduled runs for %s: %w", day, err)
	}
	actual, err := e.store.ActualRuns(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("load reported runs for %s: %w", day, err)
	}
	return e.matcher.MatchDay(scheduled, actual), nil
}

// RefreshBaselines recomputes the baseline for every zone that reported
// runs in the trailing window ending at endDate. Zones below the minimum
// sample count keep their baseline undefined and are skipped silently.
func (e *Engine) RefreshBaselines(ctx context.Context, zones []ZoneID, endDate Date) (int, error) {
	updated := 0
	for _, zone := range zones {
		baseline, err := e.analyzer.RefreshBaseline(ctx, e.store, zone, endDate)
		if err != nil {
			return updated, err
		}
		if baseline != nil {
			updated++
		}
	}
	return updated, nil
}
