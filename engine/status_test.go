package engine_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/verdantworks/irrigation-engine/engine"
)

// =============================================================================
// CLASSIFICATION TESTS
// =============================================================================

func TestClassify_ExplicitPhrases(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want engine.StatusVariant
	}{
		{"rainfall abort", "Aborted due to high daily rainfall. Time: 6:00 AM Duration: 15 minutes", engine.StatusRainfallAbort},
		{"sensor abort", "Aborted due to sensor input. Time: 6:00 AM", engine.StatusSensorAbort},
		{"user suspended", "Water cycle suspended until May 1", engine.StatusUserSuspended},
		{"not scheduled", "Not scheduled to run today", engine.StatusNotScheduled},
		{"explicit normal", "Normal watering cycle. Time: 6:00 AM Duration: 15 minutes", engine.StatusNormal},
		{"generic abort", "Run aborted by controller", engine.StatusOtherAbort},
		{"generic cancel", "Cancelled by master valve fault", engine.StatusOtherAbort},
		{"generic suspend", "Zone paused for maintenance", engine.StatusOtherSuspended},
		{"schedule text fallback", "Time: 6:00 AM Duration: 15 minutes", engine.StatusNormal},
		{"empty", "", engine.StatusUnknown},
		{"whitespace only", "   \t ", engine.StatusUnknown},
		{"gibberish", "controller offline", engine.StatusUnknown},
		{"case insensitive", "ABORTED DUE TO HIGH DAILY RAINFALL", engine.StatusRainfallAbort},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := engine.Classify(tc.raw); got != tc.want {
				t.Errorf("Classify(%q) = %s, want %s", tc.raw, got, tc.want)
			}
		})
	}
}

func TestClassify_OrderMatters(t *testing.T) {
	// GIVEN: Popup text carrying both an abort phrase and the generic
	//        Time:/Duration: schedule fields
	// WHEN: Classifying
	// THEN: The abort phrase wins; the schedule-text fallback must not
	//       shadow it

	raw := "Aborted due to sensor input. Time: 6:00 AM Duration: 20 minutes"
	if got := engine.Classify(raw); got != engine.StatusSensorAbort {
		t.Errorf("abort phrase shadowed by schedule text: got %s", got)
	}

	// The specific rainfall phrase must beat the generic "aborted" rule.
	raw = "Aborted due to high daily rainfall"
	if got := engine.Classify(raw); got != engine.StatusRainfallAbort {
		t.Errorf("specific rainfall phrase lost to generic abort: got %s", got)
	}
}

func TestClassify_TotalOverArbitraryText(t *testing.T) {
	// Classification never fails and always lands in the closed enum,
	// whatever the collector scrapes.
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	members := make(map[engine.StatusVariant]bool, len(engine.AllStatusVariants))
	for _, v := range engine.AllStatusVariants {
		members[v] = true
	}

	properties.Property("result is always an enum member", prop.ForAll(
		func(raw string) bool {
			return members[engine.Classify(raw)]
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func TestPreventsIrrigation(t *testing.T) {
	prevented := []engine.StatusVariant{
		engine.StatusRainfallAbort, engine.StatusSensorAbort,
		engine.StatusUserSuspended, engine.StatusNotScheduled,
		engine.StatusOtherAbort, engine.StatusOtherSuspended,
	}
	for _, v := range prevented {
		if !engine.PreventsIrrigation(v) {
			t.Errorf("%s should prevent irrigation", v)
		}
	}
	for _, v := range []engine.StatusVariant{engine.StatusNormal, engine.StatusUnknown} {
		if engine.PreventsIrrigation(v) {
			t.Errorf("%s should not prevent irrigation", v)
		}
	}
}

func TestDeriveFailureReason(t *testing.T) {
	if got := engine.DeriveFailureReason("Normal watering cycle"); got != "" {
		t.Errorf("normal run should have no failure reason, got %q", got)
	}
	if got := engine.DeriveFailureReason(""); got != "" {
		t.Errorf("unknown status should have no failure reason, got %q", got)
	}
	if got := engine.DeriveFailureReason("Aborted due to sensor input"); got != "sensor_abort" {
		t.Errorf("expected sensor_abort, got %q", got)
	}
}

// =============================================================================
// ZONE NAME NORMALIZATION TESTS
// =============================================================================

func TestNormalizeZoneName(t *testing.T) {
	cases := []struct {
		a, b string
	}{
		{"Pots, Baskets & Planters", "pots, baskets and planters"},
		{"Front Bed/Planters", "front bed and planters"},
		{"  Back Turf  ", "back turf"},
		{"Pool & Spa Surround", "pool and spa surround"},
	}
	for _, tc := range cases {
		if got := engine.NormalizeZoneName(tc.a); got != engine.NormalizeZoneName(tc.b) {
			t.Errorf("NormalizeZoneName(%q) = %q, want to equal NormalizeZoneName(%q)", tc.a, got, tc.b)
		}
	}
}

func TestZonePriority(t *testing.T) {
	cases := []struct {
		zone string
		want engine.AlertPriority
	}{
		{"Front Planters", engine.PriorityHigh},
		{"Rose Bed", engine.PriorityHigh},
		{"Hanging Baskets", engine.PriorityHigh},
		{"Patio Pots", engine.PriorityHigh},
		{"Pool Surround", engine.PriorityMedium},
		{"Back Turf", engine.PriorityLow},
		{"Front Lawn", engine.PriorityLow},
		{"Zone 7", engine.PriorityMedium},
	}
	for _, tc := range cases {
		if got := engine.ZonePriority(tc.zone); got != tc.want {
			t.Errorf("ZonePriority(%q) = %s, want %s", tc.zone, got, tc.want)
		}
	}
}
