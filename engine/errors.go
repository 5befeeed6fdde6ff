/*
errors.go - Centralized error types for the reconciliation engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Store implementations should wrap these errors with additional context.

ERROR CATEGORIES:
  1. Duplicate errors - Idempotency guards tripped on insert
  2. Not-found errors - Referenced zones or records missing
  3. Store errors - Persistence-level failures (wrapped by implementations)

NOTE:
  Expected absences (no match for a scheduled run, no baseline for a zone,
  unclassifiable status text) are represented as ordinary result values
  (MissingRun, nil baseline, StatusUnknown) and never pass through here.

USAGE:
  if engine.IsDuplicate(err) {
      // Already recorded, safe to ignore on re-runs
  }
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDuplicateStatusChange is returned when a status change with the same
	// (zone, day, current_text, previous_text) already exists. Expected on
	// re-runs over an unchanged snapshot.
	ErrDuplicateStatusChange = errors.New("duplicate status change")

	// ErrDuplicateAnomaly is returned when an anomaly with the same
	// (zone, run_date, anomaly_type) already exists.
	ErrDuplicateAnomaly = errors.New("duplicate anomaly")

	// ErrDuplicateRun is returned when a captured run with the same ID
	// already exists in the event store.
	ErrDuplicateRun = errors.New("duplicate run record")

	// ErrZoneNotFound is returned when a referenced zone has no records.
	ErrZoneNotFound = errors.New("zone not found")

	// ErrStoreFailure marks a persistence-level read or write failure.
	// Callers must retry the whole date; matches are recomputed from
	// scratch each invocation, never patched incrementally.
	ErrStoreFailure = errors.New("event store failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// DuplicateChangeError reports which stored change blocked an insert.
type DuplicateChangeError struct {
	ZoneID ZoneID
	Date   Date
}

func (e *DuplicateChangeError) Error() string {
	return fmt.Sprintf("status change already recorded for zone %s on %s", e.ZoneID, e.Date)
}

func (e *DuplicateChangeError) Unwrap() error { return ErrDuplicateStatusChange }

// DuplicateAnomalyError reports which stored anomaly blocked an insert.
type DuplicateAnomalyError struct {
	ZoneID ZoneID
	Date   Date
	Type   AnomalyType
}

func (e *DuplicateAnomalyError) Error() string {
	return fmt.Sprintf("anomaly %s already recorded for zone %s on %s", e.Type, e.ZoneID, e.Date)
}

func (e *DuplicateAnomalyError) Unwrap() error { return ErrDuplicateAnomaly }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsDuplicate returns true if the error is an idempotency guard, meaning the
// write was already applied by an earlier invocation.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicateStatusChange) ||
		errors.Is(err, ErrDuplicateAnomaly) ||
		errors.Is(err, ErrDuplicateRun)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrZoneNotFound)
}
