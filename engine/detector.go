/*
detector.go - Zone status change detection

PURPOSE:
  Compares each newly captured scheduled run against the most recently
  persisted record for its zone and emits a StatusChange only on a
  genuine classification transition. Detection is idempotent: re-running
  over the same snapshot never duplicates stored changes.

FALSE-POSITIVE GUARDS (in order):
  1. Verbatim-identical popup text means no change, full stop. This
     blocks flicker where the same text would classify differently only
     because of incidental wording elsewhere in the popup.
  2. Equal classifications mean no change even when the text differs
     (timing fields move around between scrapes).
  3. Before persisting, the zone/day (current_text, previous_text) pair
     is checked against the stored log; an existing pair is discarded.

SEE ALSO:
  - status.go: Classification used on both sides of the comparison
  - store.go: HasStatusChange / InsertStatusChange contract
*/
package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CHANGE DETECTOR
// =============================================================================

// ChangeDetector detects status transitions per zone.
type ChangeDetector struct {
	// Now supplies the detection timestamp; injected for deterministic tests.
	Now func() time.Time
}

func NewChangeDetector() *ChangeDetector {
	return &ChangeDetector{Now: time.Now}
}

// Detect compares the current capture against the most recent persisted
// capture for the zone. Returns nil when no genuine transition occurred.
func (d *ChangeDetector) Detect(previous, current ScheduledRun) *StatusChange {
	prevText := strings.TrimSpace(previous.RawStatus)
	currText := strings.TrimSpace(current.RawStatus)

	// Identical popup text cannot be a change.
	if prevText == currText {
		return nil
	}

	prevVariant := Classify(prevText)
	currVariant := Classify(currText)
	if prevVariant == currVariant {
		return nil
	}

	prevented := PreventsIrrigation(currVariant)
	gallonsLost := decimal.Zero
	if prevented {
		gallonsLost = current.ExpectedGallons
	}

	change := &StatusChange{
		ZoneID:            current.ZoneID,
		ZoneName:          current.ZoneName,
		CurrentRunDate:    current.Date,
		CurrentStartTime:  current.StartTime,
		CurrentVariant:    currVariant,
		CurrentText:       current.RawStatus,
		PreviousRunDate:   previous.Date,
		PreviousStartTime: previous.StartTime,
		PreviousVariant:   prevVariant,
		PreviousText:      previous.RawStatus,
		ChangeType:        classifyTransition(prevVariant, currVariant),
		Prevented:         prevented,
		GallonsLost:       gallonsLost,
		DetectedAt:        d.now(),
	}
	change.DetectedDate = DateOf(change.DetectedAt)

	if !previous.ScrapedAt.IsZero() {
		hours := change.DetectedAt.Sub(previous.ScrapedAt).Hours()
		change.HoursSinceRecord = &hours
	}

	return change
}

// classifyTransition derives the change type from a (previous, current)
// variant pair. Transitions into the three named abort/suspend states keep
// their names; other prevented states collapse to irrigation_prevented;
// recovery to a normal cycle is normal_restored.
func classifyTransition(prev, curr StatusVariant) ChangeType {
	switch curr {
	case StatusRainfallAbort:
		return ChangeRainfallAbort
	case StatusSensorAbort:
		return ChangeSensorAbort
	case StatusUserSuspended:
		return ChangeUserSuspended
	case StatusNotScheduled, StatusOtherAbort, StatusOtherSuspended:
		return ChangeIrrigationPrevented
	case StatusNormal:
		if PreventsIrrigation(prev) {
			return ChangeNormalRestored
		}
	}
	return ChangeOther
}

// =============================================================================
// COLLECTION-LEVEL DETECTION
// =============================================================================

// DetectAndRecord runs change detection for a whole captured collection and
// persists the surviving changes. Each zone/start-time is processed at most
// once per collection, and the stored zone/day text-pair check makes the
// whole pass safe to re-run.
//
// Store failures abort the pass; per-run detection problems only skip that
// run.
func (d *ChangeDetector) DetectAndRecord(ctx context.Context, store EventStore, runs []ScheduledRun, day Date) ([]StatusChange, error) {
	var changes []StatusChange
	processed := make(map[string]bool, len(runs))

	for _, current := range runs {
		key := fmt.Sprintf("%s|%s", current.ZoneID, current.StartTime.Format(time.RFC3339))
		if processed[key] {
			continue
		}
		processed[key] = true

		previous, err := store.MostRecentScheduledRun(ctx, current.ZoneID, current.ID)
		if err != nil {
			return changes, fmt.Errorf("most recent run for zone %s: %w", current.ZoneID, err)
		}
		if previous == nil {
			// First capture for this zone; nothing to compare against.
			log.Printf("[Detector] first scheduled run recorded for zone %s", current.ZoneName)
			continue
		}

		exists, err := store.HasStatusChange(ctx, current.ZoneID, day, current.RawStatus, previous.RawStatus)
		if err != nil {
			return changes, fmt.Errorf("duplicate check for zone %s: %w", current.ZoneID, err)
		}
		if exists {
			continue
		}

		change := d.Detect(*previous, current)
		if change == nil {
			continue
		}
		change.DetectedDate = day

		if err := store.InsertStatusChange(ctx, *change); err != nil {
			if IsDuplicate(err) {
				continue
			}
			return changes, fmt.Errorf("store status change for zone %s: %w", current.ZoneID, err)
		}
		log.Printf("[Detector] status change for %s: %s -> %s", current.ZoneName, change.PreviousVariant, change.CurrentVariant)
		changes = append(changes, *change)
	}

	return changes, nil
}

func (d *ChangeDetector) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}
