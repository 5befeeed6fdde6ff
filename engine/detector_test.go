package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verdantworks/irrigation-engine/engine"
	"github.com/verdantworks/irrigation-engine/engine/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestDetector() *engine.ChangeDetector {
	d := engine.NewChangeDetector()
	d.Now = func() time.Time { return fixedNow }
	return d
}

func capture(id string, status string, scrapedAt time.Time) engine.ScheduledRun {
	return engine.ScheduledRun{
		ID:              id,
		ZoneID:          "z-planters",
		ZoneName:        "Front Planters",
		Date:            testDay,
		StartTime:       at(6, 0),
		DurationMinutes: 15,
		ExpectedGallons: decimal.NewFromInt(25),
		RawStatus:       status,
		ScrapedAt:       scrapedAt,
	}
}

// =============================================================================
// PAIRWISE DETECTION
// =============================================================================

func TestDetect_IdenticalText_NoChange(t *testing.T) {
	// GIVEN: Two captures with verbatim-identical popup text
	// WHEN: Detecting
	// THEN: No change, whatever the text would classify as

	d := newTestDetector()
	prev := capture("c1", "Aborted due to sensor input", fixedNow.Add(-24*time.Hour))
	curr := capture("c2", "Aborted due to sensor input", fixedNow)

	if change := d.Detect(prev, curr); change != nil {
		t.Errorf("identical text must not produce a change, got %+v", change)
	}
}

func TestDetect_IdenticalAfterTrim_NoChange(t *testing.T) {
	d := newTestDetector()
	prev := capture("c1", "  Normal watering cycle ", fixedNow.Add(-24*time.Hour))
	curr := capture("c2", "Normal watering cycle", fixedNow)

	if change := d.Detect(prev, curr); change != nil {
		t.Errorf("whitespace-only difference must not produce a change, got %+v", change)
	}
}

func TestDetect_SameVariantDifferentText_NoChange(t *testing.T) {
	// Timing fields move around between scrapes; same classification means
	// no transition.
	d := newTestDetector()
	prev := capture("c1", "Normal watering cycle. Time: 6:00 AM Duration: 15 minutes", fixedNow.Add(-24*time.Hour))
	curr := capture("c2", "Normal watering cycle. Time: 6:05 AM Duration: 15 minutes", fixedNow)

	if change := d.Detect(prev, curr); change != nil {
		t.Errorf("same variant must not produce a change, got %+v", change)
	}
}

func TestDetect_NormalToRainfallAbort(t *testing.T) {
	// GIVEN: Yesterday's capture was a normal cycle, today's says rainfall
	//        abort
	// WHEN: Detecting
	// THEN: A rainfall_abort change that prevented irrigation, charged the
	//       run's expected gallons

	d := newTestDetector()
	prev := capture("c1", "Normal watering cycle. Time: 6:00 AM", fixedNow.Add(-24*time.Hour))
	curr := capture("c2", "Aborted due to high daily rainfall. Time: 6:00 AM", fixedNow)

	change := d.Detect(prev, curr)
	require.NotNil(t, change)

	assert.Equal(t, engine.ChangeRainfallAbort, change.ChangeType)
	assert.Equal(t, engine.StatusNormal, change.PreviousVariant)
	assert.Equal(t, engine.StatusRainfallAbort, change.CurrentVariant)
	assert.True(t, change.Prevented)
	assert.True(t, change.GallonsLost.Equal(decimal.NewFromInt(25)),
		"prevented change should charge expected gallons, got %s", change.GallonsLost)

	require.NotNil(t, change.HoursSinceRecord)
	assert.InDelta(t, 24.0, *change.HoursSinceRecord, 0.01)
}

func TestDetect_AbortToNormal_IsRestoration(t *testing.T) {
	d := newTestDetector()
	prev := capture("c1", "Aborted due to sensor input", fixedNow.Add(-24*time.Hour))
	curr := capture("c2", "Normal watering cycle. Time: 6:00 AM", fixedNow)

	change := d.Detect(prev, curr)
	require.NotNil(t, change)

	assert.Equal(t, engine.ChangeNormalRestored, change.ChangeType)
	assert.False(t, change.Prevented)
	assert.True(t, change.GallonsLost.IsZero(), "restoration loses no water")
}

func TestDetect_TransitionTypes(t *testing.T) {
	d := newTestDetector()
	cases := []struct {
		name     string
		prevText string
		currText string
		want     engine.ChangeType
	}{
		{"to sensor abort", "Normal watering cycle", "Aborted due to sensor input", engine.ChangeSensorAbort},
		{"to user suspension", "Normal watering cycle", "Water cycle suspended", engine.ChangeUserSuspended},
		{"to not scheduled", "Normal watering cycle", "Not scheduled to run", engine.ChangeIrrigationPrevented},
		{"to generic abort", "Normal watering cycle", "Run aborted by controller", engine.ChangeIrrigationPrevented},
		{"unknown to unknown-ish", "controller offline", "Normal watering cycle", engine.ChangeOther},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			prev := capture("c1", tc.prevText, fixedNow.Add(-24*time.Hour))
			curr := capture("c2", tc.currText, fixedNow)
			change := d.Detect(prev, curr)
			require.NotNil(t, change)
			assert.Equal(t, tc.want, change.ChangeType)
		})
	}
}

// =============================================================================
// COLLECTION-LEVEL DETECTION AND IDEMPOTENCY
// =============================================================================

func TestDetectAndRecord_FirstCapture_NoChange(t *testing.T) {
	// A zone with no prior history has nothing to transition from.
	d := newTestDetector()
	mem := store.NewMemory()
	ctx := context.Background()

	first := capture("c1", "Normal watering cycle", fixedNow)
	require.NoError(t, mem.RecordScheduledRun(ctx, first))

	changes, err := d.DetectAndRecord(ctx, mem, []engine.ScheduledRun{first}, testDay)
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestDetectAndRecord_TransitionStoredOnce(t *testing.T) {
	// GIVEN: A stored normal capture and a fresh rainfall-abort capture
	// WHEN: Running detection twice over the same snapshot
	// THEN: The change is stored exactly once; the second pass is a no-op

	d := newTestDetector()
	mem := store.NewMemory()
	ctx := context.Background()

	prev := capture("c1", "Normal watering cycle. Time: 6:00 AM", fixedNow.Add(-24*time.Hour))
	curr := capture("c2", "Aborted due to high daily rainfall. Time: 6:00 AM", fixedNow)
	require.NoError(t, mem.RecordScheduledRun(ctx, prev))
	require.NoError(t, mem.RecordScheduledRun(ctx, curr))

	changes, err := d.DetectAndRecord(ctx, mem, []engine.ScheduledRun{curr}, testDay)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, engine.ChangeRainfallAbort, changes[0].ChangeType)

	// Second pass over the identical snapshot.
	changes, err = d.DetectAndRecord(ctx, mem, []engine.ScheduledRun{curr}, testDay)
	require.NoError(t, err)
	assert.Empty(t, changes, "re-running detection must not report the change again")

	stored, err := mem.StatusChanges(ctx, testDay)
	require.NoError(t, err)
	assert.Len(t, stored, 1, "the log must hold exactly one change")
}

func TestDetectAndRecord_DuplicateStartTimes_ProcessedOnce(t *testing.T) {
	// The collector sometimes scrapes the same zone/start twice in one
	// collection; only the first occurrence is considered.
	d := newTestDetector()
	mem := store.NewMemory()
	ctx := context.Background()

	prev := capture("c1", "Normal watering cycle. Time: 6:00 AM", fixedNow.Add(-24*time.Hour))
	curr := capture("c2", "Aborted due to sensor input. Time: 6:00 AM", fixedNow)
	dupe := capture("c3", "Aborted due to sensor input. Time: 6:00 AM", fixedNow)
	require.NoError(t, mem.RecordScheduledRun(ctx, prev))
	require.NoError(t, mem.RecordScheduledRun(ctx, curr))

	changes, err := d.DetectAndRecord(ctx, mem, []engine.ScheduledRun{curr, dupe}, testDay)
	require.NoError(t, err)
	assert.Len(t, changes, 1)
}
