/*
baseline.go - Per-zone usage baselines and anomaly detection

PURPOSE:
  Maintains rolling per-zone consumption statistics (mean/stddev of
  gallons and duration, derived flow rate) over a trailing window, and
  checks each reported run against them to flag abnormal usage.

BASELINE RULES:
  - Only runs with gallons > 0 and duration > 0 feed the baseline.
  - A zone's baseline is undefined (nil) below the minimum sample count;
    anomaly checks other than zero-usage are then skipped, not errored.
  - Recompute replaces the stored baseline wholesale. Never merged.

ANOMALY CHECKS (in order):
  1. Zero usage: ran but used no water. HIGH, unconditional, and it
     short-circuits the remaining checks for that run.
  2. Usage z-score vs baseline gallons.
  3. Duration z-score vs baseline runtime.
  4. Relative flow-rate change vs baseline GPM.

SEE ALSO:
  - store.go: ActualRunsInRange / UpsertBaseline / InsertAnomaly
  - summary.go: Aggregates anomalies for notification
*/
package engine

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// BaselineConfig controls the trailing statistics window.
type BaselineConfig struct {
	// WindowDays is the trailing window length for baseline computation.
	WindowDays int

	// MinSamples is the minimum qualifying run count before a baseline is
	// defined. Intended to be at least 7; callers may relax it.
	MinSamples int
}

func DefaultBaselineConfig() BaselineConfig {
	return BaselineConfig{WindowDays: 30, MinSamples: 7}
}

// AnomalyThresholds holds every detection cutoff explicitly.
type AnomalyThresholds struct {
	// UsageZScore is the gallons z-score cutoff (severity steps up past 3).
	UsageZScore float64

	// DurationZScore is the runtime z-score cutoff (severity steps up past 2).
	DurationZScore float64

	// EfficiencyDelta is the relative GPM change cutoff (severity steps up
	// past 0.5).
	EfficiencyDelta float64
}

func DefaultAnomalyThresholds() AnomalyThresholds {
	return AnomalyThresholds{
		UsageZScore:     2.0,
		DurationZScore:  1.5,
		EfficiencyDelta: 0.3,
	}
}

// Analyzer computes baselines and detects usage anomalies.
type Analyzer struct {
	cfg        BaselineConfig
	thresholds AnomalyThresholds

	// Now supplies the detection timestamp; injected for deterministic tests.
	Now func() time.Time
}

func NewAnalyzer(cfg BaselineConfig, thresholds AnomalyThresholds) *Analyzer {
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 30
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = 7
	}
	return &Analyzer{cfg: cfg, thresholds: thresholds, Now: time.Now}
}

// =============================================================================
// BASELINE COMPUTATION
// =============================================================================

// ComputeBaseline derives a baseline from a zone's qualifying runs. Pure:
// filtering and statistics only. Returns nil when fewer than minSamples
// runs qualify (baseline undefined, not an error).
func ComputeBaseline(zone ZoneID, zoneName string, runs []ActualRun, windowStart, windowEnd Date, minSamples int) *UsageBaseline {
	var gallons, durations, rates []float64
	for _, run := range runs {
		if run.ActualGallons == nil || run.DurationMinutes <= 0 {
			continue
		}
		g := run.ActualGallons.InexactFloat64()
		if g <= 0 {
			continue
		}
		gallons = append(gallons, g)
		durations = append(durations, float64(run.DurationMinutes))
		rates = append(rates, g/float64(run.DurationMinutes))
	}

	if len(gallons) < minSamples {
		return nil
	}

	return &UsageBaseline{
		ZoneID:          zone,
		ZoneName:        zoneName,
		AvgGallons:      mean(gallons),
		AvgDurationMins: mean(durations),
		AvgGPM:          mean(rates),
		StdDevGallons:   sampleStdDev(gallons),
		StdDevDuration:  sampleStdDev(durations),
		SampleCount:     len(gallons),
		WindowStart:     windowStart,
		WindowEnd:       windowEnd,
	}
}

// RefreshBaseline recomputes and stores a zone's baseline over the trailing
// window ending at endDate. Returns (nil, nil) when the baseline stays
// undefined.
func (a *Analyzer) RefreshBaseline(ctx context.Context, store EventStore, zone ZoneID, endDate Date) (*UsageBaseline, error) {
	startDate := endDate.AddDays(-a.cfg.WindowDays)

	runs, err := store.ActualRunsInRange(ctx, zone, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("load runs for zone %s: %w", zone, err)
	}

	zoneName := string(zone)
	if len(runs) > 0 {
		zoneName = runs[0].ZoneName
	}

	baseline := ComputeBaseline(zone, zoneName, runs, startDate, endDate, a.cfg.MinSamples)
	if baseline == nil {
		return nil, nil
	}
	baseline.UpdatedAt = a.now()

	if err := store.UpsertBaseline(ctx, zone, *baseline); err != nil {
		return nil, fmt.Errorf("store baseline for zone %s: %w", zone, err)
	}
	return baseline, nil
}

// =============================================================================
// ANOMALY CHECKS
// =============================================================================

// CheckRun evaluates one reported run against a baseline. Pure. The
// baseline may be nil: zero-usage detection still applies, everything else
// is skipped.
func (a *Analyzer) CheckRun(baseline *UsageBaseline, run ActualRun) []UsageAnomaly {
	var anomalies []UsageAnomaly
	detectedAt := a.now()

	gallons := 0.0
	if run.ActualGallons != nil {
		gallons = run.ActualGallons.InexactFloat64()
	}
	duration := float64(run.DurationMinutes)

	// Zone ran but moved no water. Flagged regardless of baseline state,
	// and the remaining checks are meaningless for this run.
	if gallons == 0 && duration > 0 {
		expected := 0.0
		if baseline != nil {
			expected = baseline.AvgGallons
		}
		return append(anomalies, UsageAnomaly{
			ZoneID:        run.ZoneID,
			ZoneName:      run.ZoneName,
			RunDate:       run.Date,
			Type:          AnomalyZeroUsage,
			Severity:      SeverityHigh,
			ActualValue:   0,
			ExpectedValue: expected,
			DeviationPct:  100,
			Description:   fmt.Sprintf("zone ran for %d minutes but used 0 gallons", run.DurationMinutes),
			DetectedAt:    detectedAt,
		})
	}

	if baseline == nil || gallons <= 0 || duration <= 0 {
		return anomalies
	}

	// Usage deviation.
	if baseline.StdDevGallons > 0 {
		z := math.Abs(gallons-baseline.AvgGallons) / baseline.StdDevGallons
		if z > a.thresholds.UsageZScore {
			typ := AnomalyLowUsage
			if gallons > baseline.AvgGallons {
				typ = AnomalyHighUsage
			}
			severity := SeverityMedium
			if z > 3 {
				severity = SeverityHigh
			}
			deviation := (gallons - baseline.AvgGallons) / baseline.AvgGallons * 100
			anomalies = append(anomalies, UsageAnomaly{
				ZoneID:        run.ZoneID,
				ZoneName:      run.ZoneName,
				RunDate:       run.Date,
				Type:          typ,
				Severity:      severity,
				ActualValue:   gallons,
				ExpectedValue: baseline.AvgGallons,
				DeviationPct:  math.Abs(deviation),
				Description:   fmt.Sprintf("water usage %+.1f%% from baseline (%.1f vs %.1f gal)", deviation, gallons, baseline.AvgGallons),
				DetectedAt:    detectedAt,
			})
		}
	}

	// Runtime deviation.
	if baseline.StdDevDuration > 0 {
		z := math.Abs(duration-baseline.AvgDurationMins) / baseline.StdDevDuration
		if z > a.thresholds.DurationZScore {
			typ := AnomalyRuntimeDecrease
			if duration > baseline.AvgDurationMins {
				typ = AnomalyRuntimeIncrease
			}
			severity := SeverityLow
			if z > 2 {
				severity = SeverityMedium
			}
			deviation := (duration - baseline.AvgDurationMins) / baseline.AvgDurationMins * 100
			anomalies = append(anomalies, UsageAnomaly{
				ZoneID:        run.ZoneID,
				ZoneName:      run.ZoneName,
				RunDate:       run.Date,
				Type:          typ,
				Severity:      severity,
				ActualValue:   duration,
				ExpectedValue: baseline.AvgDurationMins,
				DeviationPct:  math.Abs(deviation),
				Description:   fmt.Sprintf("runtime %+.1f%% from baseline (%.0f vs %.0f min)", deviation, duration, baseline.AvgDurationMins),
				DetectedAt:    detectedAt,
			})
		}
	}

	// Flow-rate deviation.
	if baseline.AvgGPM > 0 {
		actualGPM := gallons / duration
		change := (actualGPM - baseline.AvgGPM) / baseline.AvgGPM
		if math.Abs(change) > a.thresholds.EfficiencyDelta {
			typ := AnomalyEfficiencyDrop
			if change > 0 {
				typ = AnomalyEfficiencySpike
			}
			severity := SeverityMedium
			if math.Abs(change) > 0.5 {
				severity = SeverityHigh
			}
			anomalies = append(anomalies, UsageAnomaly{
				ZoneID:        run.ZoneID,
				ZoneName:      run.ZoneName,
				RunDate:       run.Date,
				Type:          typ,
				Severity:      severity,
				ActualValue:   actualGPM,
				ExpectedValue: baseline.AvgGPM,
				DeviationPct:  math.Abs(change) * 100,
				Description:   fmt.Sprintf("efficiency %+.0f%% from baseline (%.2f vs %.2f GPM)", change*100, actualGPM, baseline.AvgGPM),
				DetectedAt:    detectedAt,
			})
		}
	}

	return anomalies
}

// DetectAndRecord checks every reported run on a date against its zone's
// stored baseline and persists new anomalies. The (zone, run_date, type)
// check before each insert makes the pass safe to re-run.
func (a *Analyzer) DetectAndRecord(ctx context.Context, store EventStore, day Date) ([]UsageAnomaly, error) {
	runs, err := store.ActualRuns(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("load reported runs for %s: %w", day, err)
	}

	var recorded []UsageAnomaly
	baselines := make(map[ZoneID]*UsageBaseline)

	for _, run := range runs {
		baseline, ok := baselines[run.ZoneID]
		if !ok {
			baseline, err = store.Baseline(ctx, run.ZoneID)
			if err != nil {
				return recorded, fmt.Errorf("load baseline for zone %s: %w", run.ZoneID, err)
			}
			baselines[run.ZoneID] = baseline
		}

		for _, anomaly := range a.CheckRun(baseline, run) {
			exists, err := store.HasAnomaly(ctx, anomaly.ZoneID, anomaly.RunDate, anomaly.Type)
			if err != nil {
				return recorded, fmt.Errorf("duplicate check for zone %s: %w", anomaly.ZoneID, err)
			}
			if exists {
				continue
			}
			if err := store.InsertAnomaly(ctx, anomaly); err != nil {
				if IsDuplicate(err) {
					continue
				}
				return recorded, fmt.Errorf("store anomaly for zone %s: %w", anomaly.ZoneID, err)
			}
			log.Printf("[Analyzer] %s anomaly for %s on %s: %s", anomaly.Severity, anomaly.ZoneName, anomaly.RunDate, anomaly.Description)
			recorded = append(recorded, anomaly)
		}
	}

	return recorded, nil
}

func (a *Analyzer) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// =============================================================================
// STATISTICS
// =============================================================================

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStdDev returns the sample standard deviation (n-1 denominator),
// or 0 for fewer than two samples.
func sampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}
