/*
store.go - Persistence interface for captured runs and derived records

PURPOSE:
  Defines the interface between the decision logic and the event store.
  The engine only reads snapshots and writes derived StatusChange /
  UsageAnomaly / UsageBaseline records back; it never mutates captured
  runs. Different implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  RunStore:      Captured run log (append + per-date snapshot reads)
  ChangeStore:   Status change log with per-day text-pair dedup
  AnomalyStore:  Anomaly log with (zone, date, type) dedup
  BaselineStore: Current baseline per zone (upsert, superseded wholesale)
  EventStore:    All of the above

APPEND-ONLY CONTRACT:
  Captured runs, status changes, and anomalies are append-only logs.
  No Update or Delete methods exist for them; baselines are the one
  exception and are replaced (never merged) on recompute.

IDEMPOTENCY:
  InsertStatusChange and InsertAnomaly reject duplicates with the
  ErrDuplicate* sentinels. Callers still check HasStatusChange /
  HasAnomaly first; the store-level guard is the backstop that makes
  re-running detection on the same snapshot safe.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite
  - engine/store: In-memory for testing

SEE ALSO:
  - reconcile.go: The coordinator driving these interfaces
*/
package engine

import "context"

// =============================================================================
// RUN STORE - Captured run log
// =============================================================================

// RunStore persists the captured schedule/report snapshots.
type RunStore interface {
	// RecordScheduledRun appends one captured scheduled run.
	// Returns ErrDuplicateRun if the ID already exists.
	RecordScheduledRun(ctx context.Context, run ScheduledRun) error

	// RecordActualRun appends one captured reported run.
	RecordActualRun(ctx context.Context, run ActualRun) error

	// ScheduledRuns returns all scheduled runs captured for a date,
	// ordered by start time.
	ScheduledRuns(ctx context.Context, date Date) ([]ScheduledRun, error)

	// ActualRuns returns all reported runs for a date, ordered by start time.
	ActualRuns(ctx context.Context, date Date) ([]ActualRun, error)

	// ActualRunsInRange returns a zone's reported runs in [from, to].
	// Used for baseline computation.
	ActualRunsInRange(ctx context.Context, zone ZoneID, from, to Date) ([]ActualRun, error)

	// MostRecentScheduledRun returns the newest captured scheduled run for
	// a zone, ordered by capture time descending, excluding the record
	// identified by excludeID. Returns (nil, nil) when the zone has no
	// prior history.
	MostRecentScheduledRun(ctx context.Context, zone ZoneID, excludeID string) (*ScheduledRun, error)
}

// =============================================================================
// DERIVED RECORD STORES
// =============================================================================

// ChangeStore persists detected status changes.
type ChangeStore interface {
	// HasStatusChange reports whether a change with the identical
	// (current_text, previous_text) pair is already stored for zone/day.
	HasStatusChange(ctx context.Context, zone ZoneID, day Date, currentText, previousText string) (bool, error)

	// InsertStatusChange appends a change. Returns ErrDuplicateStatusChange
	// when the zone/day text-pair invariant would be violated.
	InsertStatusChange(ctx context.Context, change StatusChange) error

	// StatusChanges returns all changes detected on a day.
	StatusChanges(ctx context.Context, day Date) ([]StatusChange, error)
}

// AnomalyStore persists detected usage anomalies.
type AnomalyStore interface {
	// HasAnomaly reports whether (zone, runDate, type) is already stored.
	HasAnomaly(ctx context.Context, zone ZoneID, runDate Date, typ AnomalyType) (bool, error)

	// InsertAnomaly appends an anomaly. Returns ErrDuplicateAnomaly when
	// the (zone, run_date, anomaly_type) invariant would be violated.
	InsertAnomaly(ctx context.Context, anomaly UsageAnomaly) error

	// Anomalies returns all anomalies recorded for a run date.
	Anomalies(ctx context.Context, runDate Date) ([]UsageAnomaly, error)
}

// BaselineStore holds the one current baseline per zone.
type BaselineStore interface {
	// UpsertBaseline replaces the zone's baseline wholesale.
	UpsertBaseline(ctx context.Context, zone ZoneID, baseline UsageBaseline) error

	// Baseline returns the zone's current baseline, or (nil, nil) when the
	// baseline is undefined for that zone.
	Baseline(ctx context.Context, zone ZoneID) (*UsageBaseline, error)

	// Baselines returns every stored baseline.
	Baselines(ctx context.Context) ([]UsageBaseline, error)
}

// =============================================================================
// EVENT STORE - Full persistence surface the engine depends on
// =============================================================================

// EventStore is the complete persistence contract consumed by the engine.
type EventStore interface {
	RunStore
	ChangeStore
	AnomalyStore
	BaselineStore
}
