// Package store provides EventStore implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/verdantworks/irrigation-engine/engine"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	scheduled map[engine.Date][]engine.ScheduledRun
	actual    map[engine.Date][]engine.ActualRun
	runIDs    map[string]bool

	// zoneLog is the per-zone capture log, newest first, backing the
	// most-recent-record lookup.
	zoneLog map[engine.ZoneID][]engine.ScheduledRun

	changes    []engine.StatusChange
	changeKeys map[changeKey]bool

	anomalies   []engine.UsageAnomaly
	anomalyKeys map[anomalyKey]bool

	baselines map[engine.ZoneID]engine.UsageBaseline
}

type changeKey struct {
	Zone         engine.ZoneID
	Day          engine.Date
	CurrentText  string
	PreviousText string
}

type anomalyKey struct {
	Zone engine.ZoneID
	Day  engine.Date
	Type engine.AnomalyType
}

func NewMemory() *Memory {
	return &Memory{
		scheduled:   make(map[engine.Date][]engine.ScheduledRun),
		actual:      make(map[engine.Date][]engine.ActualRun),
		runIDs:      make(map[string]bool),
		zoneLog:     make(map[engine.ZoneID][]engine.ScheduledRun),
		changeKeys:  make(map[changeKey]bool),
		anomalyKeys: make(map[anomalyKey]bool),
		baselines:   make(map[engine.ZoneID]engine.UsageBaseline),
	}
}

// =============================================================================
// RUN STORE
// =============================================================================

func (m *Memory) RecordScheduledRun(_ context.Context, run engine.ScheduledRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if run.ID != "" && m.runIDs[run.ID] {
		return engine.ErrDuplicateRun
	}
	m.runIDs[run.ID] = true

	day := run.Date
	runs := m.scheduled[day]
	i := sort.Search(len(runs), func(i int) bool {
		return runs[i].StartTime.After(run.StartTime)
	})
	runs = append(runs, engine.ScheduledRun{})
	copy(runs[i+1:], runs[i:])
	runs[i] = run
	m.scheduled[day] = runs

	// Keep the zone log newest-capture-first.
	log := m.zoneLog[run.ZoneID]
	j := sort.Search(len(log), func(i int) bool {
		return log[i].ScrapedAt.Before(run.ScrapedAt)
	})
	log = append(log, engine.ScheduledRun{})
	copy(log[j+1:], log[j:])
	log[j] = run
	m.zoneLog[run.ZoneID] = log

	return nil
}

func (m *Memory) RecordActualRun(_ context.Context, run engine.ActualRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if run.ID != "" && m.runIDs[run.ID] {
		return engine.ErrDuplicateRun
	}
	m.runIDs[run.ID] = true

	day := run.Date
	runs := m.actual[day]
	i := sort.Search(len(runs), func(i int) bool {
		return runs[i].StartTime.After(run.StartTime)
	})
	runs = append(runs, engine.ActualRun{})
	copy(runs[i+1:], runs[i:])
	runs[i] = run
	m.actual[day] = runs

	return nil
}

func (m *Memory) ScheduledRuns(_ context.Context, date engine.Date) ([]engine.ScheduledRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]engine.ScheduledRun, len(m.scheduled[date]))
	copy(result, m.scheduled[date])
	return result, nil
}

func (m *Memory) ActualRuns(_ context.Context, date engine.Date) ([]engine.ActualRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]engine.ActualRun, len(m.actual[date]))
	copy(result, m.actual[date])
	return result, nil
}

func (m *Memory) ActualRunsInRange(_ context.Context, zone engine.ZoneID, from, to engine.Date) ([]engine.ActualRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []engine.ActualRun
	for day, runs := range m.actual {
		if !day.Within(from, to) {
			continue
		}
		for _, run := range runs {
			if run.ZoneID == zone {
				result = append(result, run)
			}
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartTime.Before(result[j].StartTime)
	})
	return result, nil
}

func (m *Memory) MostRecentScheduledRun(_ context.Context, zone engine.ZoneID, excludeID string) (*engine.ScheduledRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, run := range m.zoneLog[zone] {
		if run.ID == excludeID {
			continue
		}
		found := run
		return &found, nil
	}
	return nil, nil
}

// =============================================================================
// CHANGE STORE
// =============================================================================

func (m *Memory) HasStatusChange(_ context.Context, zone engine.ZoneID, day engine.Date, currentText, previousText string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.changeKeys[changeKey{zone, day, currentText, previousText}], nil
}

func (m *Memory) InsertStatusChange(_ context.Context, change engine.StatusChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := changeKey{change.ZoneID, change.DetectedDate, change.CurrentText, change.PreviousText}
	if m.changeKeys[key] {
		return &engine.DuplicateChangeError{ZoneID: change.ZoneID, Date: change.DetectedDate}
	}
	m.changeKeys[key] = true
	m.changes = append(m.changes, change)
	return nil
}

func (m *Memory) StatusChanges(_ context.Context, day engine.Date) ([]engine.StatusChange, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []engine.StatusChange
	for _, change := range m.changes {
		if change.DetectedDate == day {
			result = append(result, change)
		}
	}
	return result, nil
}

// =============================================================================
// ANOMALY STORE
// =============================================================================

func (m *Memory) HasAnomaly(_ context.Context, zone engine.ZoneID, runDate engine.Date, typ engine.AnomalyType) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.anomalyKeys[anomalyKey{zone, runDate, typ}], nil
}

func (m *Memory) InsertAnomaly(_ context.Context, anomaly engine.UsageAnomaly) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := anomalyKey{anomaly.ZoneID, anomaly.RunDate, anomaly.Type}
	if m.anomalyKeys[key] {
		return &engine.DuplicateAnomalyError{ZoneID: anomaly.ZoneID, Date: anomaly.RunDate, Type: anomaly.Type}
	}
	m.anomalyKeys[key] = true
	m.anomalies = append(m.anomalies, anomaly)
	return nil
}

func (m *Memory) Anomalies(_ context.Context, runDate engine.Date) ([]engine.UsageAnomaly, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []engine.UsageAnomaly
	for _, anomaly := range m.anomalies {
		if anomaly.RunDate == runDate {
			result = append(result, anomaly)
		}
	}
	return result, nil
}

// Zones returns every zone id with captured runs, for baseline sweeps.
func (m *Memory) Zones(_ context.Context) ([]engine.ZoneID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[engine.ZoneID]bool)
	for _, runs := range m.actual {
		for _, run := range runs {
			seen[run.ZoneID] = true
		}
	}
	for zone := range m.zoneLog {
		seen[zone] = true
	}

	zones := make([]engine.ZoneID, 0, len(seen))
	for zone := range seen {
		zones = append(zones, zone)
	}
	sort.Slice(zones, func(i, j int) bool { return zones[i] < zones[j] })
	return zones, nil
}

// =============================================================================
// BASELINE STORE
// =============================================================================

func (m *Memory) UpsertBaseline(_ context.Context, zone engine.ZoneID, baseline engine.UsageBaseline) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baselines[zone] = baseline
	return nil
}

func (m *Memory) Baseline(_ context.Context, zone engine.ZoneID) (*engine.UsageBaseline, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	baseline, ok := m.baselines[zone]
	if !ok {
		return nil, nil
	}
	return &baseline, nil
}

func (m *Memory) Baselines(_ context.Context) ([]engine.UsageBaseline, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]engine.UsageBaseline, 0, len(m.baselines))
	for _, baseline := range m.baselines {
		result = append(result, baseline)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ZoneID < result[j].ZoneID })
	return result, nil
}
