package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verdantworks/irrigation-engine/engine"
	"github.com/verdantworks/irrigation-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var testDay = engine.NewDate(2025, time.June, 15)

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func scheduled(id string, zone engine.ZoneID, scrapedAt time.Time) engine.ScheduledRun {
	return engine.ScheduledRun{
		ID:              id,
		ZoneID:          zone,
		ZoneName:        "Front Planters",
		Date:            testDay,
		StartTime:       time.Date(2025, time.June, 15, 6, 0, 0, 0, time.UTC),
		DurationMinutes: 15,
		ExpectedGallons: decimal.RequireFromString("25.5"),
		RawStatus:       "Normal watering cycle",
		ScrapedAt:       scrapedAt,
	}
}

func reported(id string, zone engine.ZoneID, day engine.Date, gallons float64) engine.ActualRun {
	g := decimal.NewFromFloat(gallons)
	eff := 95.0
	return engine.ActualRun{
		ID:              id,
		ZoneID:          zone,
		ZoneName:        "Front Planters",
		Date:            day,
		StartTime:       day.Time().Add(6 * time.Hour),
		DurationMinutes: 15,
		ActualGallons:   &g,
		Status:          "Normal watering cycle",
		EfficiencyPct:   &eff,
	}
}

func change(zone engine.ZoneID, currText, prevText string) engine.StatusChange {
	hours := 24.0
	return engine.StatusChange{
		ZoneID:            zone,
		ZoneName:          "Front Planters",
		DetectedDate:      testDay,
		CurrentRunDate:    testDay,
		CurrentStartTime:  time.Date(2025, time.June, 15, 6, 0, 0, 0, time.UTC),
		CurrentVariant:    engine.StatusRainfallAbort,
		CurrentText:       currText,
		PreviousRunDate:   testDay.AddDays(-1),
		PreviousStartTime: time.Date(2025, time.June, 14, 6, 0, 0, 0, time.UTC),
		PreviousVariant:   engine.StatusNormal,
		PreviousText:      prevText,
		ChangeType:        engine.ChangeRainfallAbort,
		Prevented:         true,
		GallonsLost:       decimal.RequireFromString("25.5"),
		DetectedAt:        time.Date(2025, time.June, 15, 9, 0, 0, 0, time.UTC),
		HoursSinceRecord:  &hours,
	}
}

func anomaly(zone engine.ZoneID, typ engine.AnomalyType) engine.UsageAnomaly {
	return engine.UsageAnomaly{
		ZoneID:        zone,
		ZoneName:      "Front Planters",
		RunDate:       testDay,
		Type:          typ,
		Severity:      engine.SeverityHigh,
		ActualValue:   0,
		ExpectedValue: 25.5,
		DeviationPct:  100,
		Description:   "zone ran for 15 minutes but used 0 gallons",
		DetectedAt:    time.Date(2025, time.June, 15, 9, 0, 0, 0, time.UTC),
	}
}

// =============================================================================
// RUN ROUND TRIPS
// =============================================================================

func TestScheduledRun_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := scheduled("s1", "z1", time.Date(2025, time.June, 14, 21, 0, 0, 0, time.UTC))
	run.RainCancelled = true
	require.NoError(t, store.RecordScheduledRun(ctx, run))

	runs, err := store.ScheduledRuns(ctx, testDay)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	got := runs[0]
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, run.ZoneID, got.ZoneID)
	assert.Equal(t, run.Date, got.Date)
	assert.True(t, got.StartTime.Equal(run.StartTime))
	assert.True(t, got.ExpectedGallons.Equal(run.ExpectedGallons), "got %s", got.ExpectedGallons)
	assert.True(t, got.RainCancelled)
	assert.True(t, got.ScrapedAt.Equal(run.ScrapedAt))
}

func TestScheduledRun_DuplicateID_Rejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := scheduled("s1", "z1", time.Now().UTC())
	require.NoError(t, store.RecordScheduledRun(ctx, run))

	err := store.RecordScheduledRun(ctx, run)
	assert.ErrorIs(t, err, engine.ErrDuplicateRun)
}

func TestActualRun_RoundTrip_NullableFields(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	withMeter := reported("a1", "z1", testDay, 25.5)
	noMeter := reported("a2", "z1", testDay, 0)
	noMeter.StartTime = noMeter.StartTime.Add(time.Hour)
	noMeter.ActualGallons = nil
	noMeter.EfficiencyPct = nil
	require.NoError(t, store.RecordActualRun(ctx, withMeter))
	require.NoError(t, store.RecordActualRun(ctx, noMeter))

	runs, err := store.ActualRuns(ctx, testDay)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	byID := map[string]engine.ActualRun{runs[0].ID: runs[0], runs[1].ID: runs[1]}
	require.NotNil(t, byID["a1"].ActualGallons)
	assert.True(t, byID["a1"].ActualGallons.Equal(decimal.RequireFromString("25.5")))
	require.NotNil(t, byID["a1"].EfficiencyPct)
	assert.Nil(t, byID["a2"].ActualGallons, "missing meter reading must stay nil")
	assert.Nil(t, byID["a2"].EfficiencyPct)
}

func TestActualRunsInRange_FiltersZoneAndWindow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordActualRun(ctx, reported("in1", "z1", testDay.AddDays(-5), 20)))
	require.NoError(t, store.RecordActualRun(ctx, reported("in2", "z1", testDay, 22)))
	require.NoError(t, store.RecordActualRun(ctx, reported("out-window", "z1", testDay.AddDays(-40), 20)))
	require.NoError(t, store.RecordActualRun(ctx, reported("out-zone", "z2", testDay, 20)))

	runs, err := store.ActualRunsInRange(ctx, "z1", testDay.AddDays(-30), testDay)
	require.NoError(t, err)

	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.ID
	}
	assert.ElementsMatch(t, []string{"in1", "in2"}, ids)
}

func TestMostRecentScheduledRun_ExcludesCurrent(t *testing.T) {
	// GIVEN: Three captures for a zone at different scrape times
	// WHEN: Looking up the most recent record excluding the newest capture
	// THEN: The middle capture is returned

	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, time.June, 13, 21, 0, 0, 0, time.UTC)
	require.NoError(t, store.RecordScheduledRun(ctx, scheduled("old", "z1", base)))
	require.NoError(t, store.RecordScheduledRun(ctx, scheduled("mid", "z1", base.Add(24*time.Hour))))
	require.NoError(t, store.RecordScheduledRun(ctx, scheduled("new", "z1", base.Add(48*time.Hour))))

	got, err := store.MostRecentScheduledRun(ctx, "z1", "new")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "mid", got.ID)
}

func TestMostRecentScheduledRun_NoHistory_NilNil(t *testing.T) {
	store := newTestStore(t)

	got, err := store.MostRecentScheduledRun(context.Background(), "z-unknown", "x")
	require.NoError(t, err)
	assert.Nil(t, got, "no history is an ordinary value, not an error")
}

// =============================================================================
// CHANGE LOG UNIQUENESS
// =============================================================================

func TestStatusChange_UniquePerTextPair(t *testing.T) {
	// GIVEN: A stored change for a zone/day text pair
	// WHEN: Inserting the same pair again, then a different pair
	// THEN: The duplicate is rejected as such, the new pair is accepted

	store := newTestStore(t)
	ctx := context.Background()

	first := change("z1", "Aborted due to high daily rainfall", "Normal watering cycle")
	require.NoError(t, store.InsertStatusChange(ctx, first))

	err := store.InsertStatusChange(ctx, first)
	require.Error(t, err)
	assert.True(t, engine.IsDuplicate(err), "expected a duplicate error, got %v", err)
	var dup *engine.DuplicateChangeError
	assert.ErrorAs(t, err, &dup)

	other := change("z1", "Aborted due to sensor input", "Normal watering cycle")
	assert.NoError(t, store.InsertStatusChange(ctx, other))

	exists, err := store.HasStatusChange(ctx, "z1", testDay, first.CurrentText, first.PreviousText)
	require.NoError(t, err)
	assert.True(t, exists)

	changes, err := store.StatusChanges(ctx, testDay)
	require.NoError(t, err)
	assert.Len(t, changes, 2)
}

func TestStatusChange_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	want := change("z1", "Aborted due to high daily rainfall", "Normal watering cycle")
	require.NoError(t, store.InsertStatusChange(ctx, want))

	changes, err := store.StatusChanges(ctx, testDay)
	require.NoError(t, err)
	require.Len(t, changes, 1)

	got := changes[0]
	assert.Equal(t, want.ChangeType, got.ChangeType)
	assert.Equal(t, want.CurrentVariant, got.CurrentVariant)
	assert.Equal(t, want.PreviousVariant, got.PreviousVariant)
	assert.True(t, got.Prevented)
	assert.True(t, got.GallonsLost.Equal(want.GallonsLost))
	require.NotNil(t, got.HoursSinceRecord)
	assert.InDelta(t, 24.0, *got.HoursSinceRecord, 0.001)
}

// =============================================================================
// ANOMALY LOG UNIQUENESS
// =============================================================================

func TestAnomaly_UniquePerZoneDateType(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := anomaly("z1", engine.AnomalyZeroUsage)
	require.NoError(t, store.InsertAnomaly(ctx, first))

	err := store.InsertAnomaly(ctx, first)
	require.Error(t, err)
	assert.True(t, engine.IsDuplicate(err))
	var dup *engine.DuplicateAnomalyError
	assert.ErrorAs(t, err, &dup)

	// Same zone/date, different type: fine.
	assert.NoError(t, store.InsertAnomaly(ctx, anomaly("z1", engine.AnomalyHighUsage)))
	// Same type, different zone: fine.
	assert.NoError(t, store.InsertAnomaly(ctx, anomaly("z2", engine.AnomalyZeroUsage)))

	exists, err := store.HasAnomaly(ctx, "z1", testDay, engine.AnomalyZeroUsage)
	require.NoError(t, err)
	assert.True(t, exists)
}

// =============================================================================
// BASELINES
// =============================================================================

func TestBaseline_UpsertReplacesWholesale(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := engine.UsageBaseline{
		ZoneID: "z1", ZoneName: "Front Planters",
		AvgGallons: 20, AvgDurationMins: 10, AvgGPM: 2,
		StdDevGallons: 3, StdDevDuration: 1, SampleCount: 8,
		WindowStart: testDay.AddDays(-40), WindowEnd: testDay.AddDays(-10),
		UpdatedAt: time.Date(2025, time.June, 5, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.UpsertBaseline(ctx, "z1", old))

	fresh := old
	fresh.AvgGallons = 25
	fresh.SampleCount = 12
	fresh.WindowStart = testDay.AddDays(-30)
	fresh.WindowEnd = testDay
	require.NoError(t, store.UpsertBaseline(ctx, "z1", fresh))

	got, err := store.Baseline(ctx, "z1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.InDelta(t, 25.0, got.AvgGallons, 0.001)
	assert.Equal(t, 12, got.SampleCount)
	assert.Equal(t, testDay, got.WindowEnd)

	all, err := store.Baselines(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1, "upsert must replace, not accumulate")
}

func TestBaseline_Undefined_NilNil(t *testing.T) {
	store := newTestStore(t)

	got, err := store.Baseline(context.Background(), "z-unknown")
	require.NoError(t, err)
	assert.Nil(t, got)
}

// =============================================================================
// ZONES
// =============================================================================

func TestZones_UnionOfBothTables(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordScheduledRun(ctx, scheduled("s1", "z-sched", time.Now().UTC())))
	require.NoError(t, store.RecordActualRun(ctx, reported("a1", "z-actual", testDay, 20)))

	zones, err := store.Zones(ctx)
	require.NoError(t, err)
	assert.Equal(t, []engine.ZoneID{"z-actual", "z-sched"}, zones)
}
