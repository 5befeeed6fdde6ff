/*
Package sqlite provides a SQLite-backed implementation of the event store.

PURPOSE:
  Implements engine.EventStore using SQLite. In production the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  scheduled_runs:  Captured schedule snapshots (append-only)
  actual_runs:     Captured reported runs (append-only)
  status_changes:  Detected transitions (append-only)
  usage_anomalies: Detected deviations (append-only)
  usage_baselines: One current row per zone, replaced on recompute

APPEND-ONLY ENFORCEMENT:
  No UPDATE or DELETE statements touch the run, change, or anomaly
  tables. usage_baselines is the single upsert table.

IDEMPOTENCY:
  Two unique indexes back the engine's dedup invariants:
  - idx_unique_change:  (zone_id, detected_date, current_text, previous_text)
  - idx_unique_anomaly: (zone_id, run_date, anomaly_type)
  Violations surface as the engine's duplicate errors, so re-running a
  detection pass over the same snapshot is safe even if a caller skips
  the existence pre-check.

INDEXES:
  - idx_scheduled_zone_scraped: most-recent-record lookup (hot path)
  - idx_scheduled_date / idx_actual_date: per-date snapshot loads
  - idx_actual_zone_date: baseline window queries

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/irrigation.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - engine/store.go: Interface definitions
  - engine/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/verdantworks/irrigation-engine/engine"
)

// Store implements engine.EventStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Captured schedule snapshots (append-only)
	CREATE TABLE IF NOT EXISTS scheduled_runs (
		id TEXT PRIMARY KEY,
		zone_id TEXT NOT NULL,
		zone_name TEXT NOT NULL,
		schedule_date TEXT NOT NULL,
		start_time TEXT NOT NULL,
		duration_minutes INTEGER NOT NULL,
		expected_gallons TEXT NOT NULL,
		raw_status TEXT NOT NULL,
		rain_cancelled INTEGER NOT NULL DEFAULT 0,
		scraped_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_scheduled_date
		ON scheduled_runs(schedule_date, start_time);

	-- Most-recent-record lookup (hot path for change detection)
	CREATE INDEX IF NOT EXISTS idx_scheduled_zone_scraped
		ON scheduled_runs(zone_id, scraped_at DESC, start_time DESC);

	-- Captured reported runs (append-only)
	CREATE TABLE IF NOT EXISTS actual_runs (
		id TEXT PRIMARY KEY,
		zone_id TEXT NOT NULL,
		zone_name TEXT NOT NULL,
		run_date TEXT NOT NULL,
		start_time TEXT NOT NULL,
		duration_minutes INTEGER NOT NULL,
		actual_gallons TEXT,
		status TEXT NOT NULL DEFAULT '',
		failure_reason TEXT NOT NULL DEFAULT '',
		efficiency_pct REAL
	);

	CREATE INDEX IF NOT EXISTS idx_actual_date
		ON actual_runs(run_date, start_time);
	CREATE INDEX IF NOT EXISTS idx_actual_zone_date
		ON actual_runs(zone_id, run_date);

	-- Detected status transitions (append-only)
	CREATE TABLE IF NOT EXISTS status_changes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		zone_id TEXT NOT NULL,
		zone_name TEXT NOT NULL,
		detected_date TEXT NOT NULL,
		current_run_date TEXT NOT NULL,
		current_start_time TEXT NOT NULL,
		current_variant TEXT NOT NULL,
		current_text TEXT NOT NULL,
		previous_run_date TEXT NOT NULL,
		previous_start_time TEXT NOT NULL,
		previous_variant TEXT NOT NULL,
		previous_text TEXT NOT NULL,
		change_type TEXT NOT NULL,
		prevented INTEGER NOT NULL,
		gallons_lost TEXT NOT NULL,
		detected_at TEXT NOT NULL,
		hours_since_record REAL
	);

	-- CRITICAL: one stored change per (zone, day, text pair)
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_change
		ON status_changes(zone_id, detected_date, current_text, previous_text);

	CREATE INDEX IF NOT EXISTS idx_changes_date
		ON status_changes(detected_date);

	-- Detected usage deviations (append-only)
	CREATE TABLE IF NOT EXISTS usage_anomalies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		zone_id TEXT NOT NULL,
		zone_name TEXT NOT NULL,
		run_date TEXT NOT NULL,
		anomaly_type TEXT NOT NULL,
		severity TEXT NOT NULL,
		actual_value REAL NOT NULL,
		expected_value REAL NOT NULL,
		deviation_pct REAL NOT NULL,
		description TEXT NOT NULL,
		detected_at TEXT NOT NULL
	);

	-- CRITICAL: one stored anomaly per (zone, run date, type)
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_anomaly
		ON usage_anomalies(zone_id, run_date, anomaly_type);

	CREATE INDEX IF NOT EXISTS idx_anomalies_date
		ON usage_anomalies(run_date);

	-- One current baseline per zone, replaced wholesale on recompute
	CREATE TABLE IF NOT EXISTS usage_baselines (
		zone_id TEXT PRIMARY KEY,
		zone_name TEXT NOT NULL,
		avg_gallons REAL NOT NULL,
		avg_duration_minutes REAL NOT NULL,
		avg_gpm REAL NOT NULL,
		std_dev_gallons REAL NOT NULL,
		std_dev_duration REAL NOT NULL,
		sample_count INTEGER NOT NULL,
		window_start TEXT NOT NULL,
		window_end TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RUN STORE
// =============================================================================

func (s *Store) RecordScheduledRun(ctx context.Context, run engine.ScheduledRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scheduled_runs
			(id, zone_id, zone_name, schedule_date, start_time, duration_minutes,
			 expected_gallons, raw_status, rain_cancelled, scraped_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ZoneID, run.ZoneName, run.Date.String(),
		run.StartTime.UTC().Format(time.RFC3339), run.DurationMinutes,
		run.ExpectedGallons.String(), run.RawStatus, boolInt(run.RainCancelled),
		run.ScrapedAt.UTC().Format(time.RFC3339),
	)
	if isUniqueViolation(err) {
		return engine.ErrDuplicateRun
	}
	if err != nil {
		return fmt.Errorf("insert scheduled run: %w", err)
	}
	return nil
}

func (s *Store) RecordActualRun(ctx context.Context, run engine.ActualRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var gallons any
	if run.ActualGallons != nil {
		gallons = run.ActualGallons.String()
	}
	var efficiency any
	if run.EfficiencyPct != nil {
		efficiency = *run.EfficiencyPct
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO actual_runs
			(id, zone_id, zone_name, run_date, start_time, duration_minutes,
			 actual_gallons, status, failure_reason, efficiency_pct)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ZoneID, run.ZoneName, run.Date.String(),
		run.StartTime.UTC().Format(time.RFC3339), run.DurationMinutes,
		gallons, run.Status, run.FailureReason, efficiency,
	)
	if isUniqueViolation(err) {
		return engine.ErrDuplicateRun
	}
	if err != nil {
		return fmt.Errorf("insert actual run: %w", err)
	}
	return nil
}

func (s *Store) ScheduledRuns(ctx context.Context, date engine.Date) ([]engine.ScheduledRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryScheduled(ctx, `
		SELECT id, zone_id, zone_name, schedule_date, start_time, duration_minutes,
		       expected_gallons, raw_status, rain_cancelled, scraped_at
		FROM scheduled_runs
		WHERE schedule_date = ?
		ORDER BY start_time`, date.String())
}

func (s *Store) ActualRuns(ctx context.Context, date engine.Date) ([]engine.ActualRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryActual(ctx, `
		SELECT id, zone_id, zone_name, run_date, start_time, duration_minutes,
		       actual_gallons, status, failure_reason, efficiency_pct
		FROM actual_runs
		WHERE run_date = ?
		ORDER BY start_time`, date.String())
}

func (s *Store) ActualRunsInRange(ctx context.Context, zone engine.ZoneID, from, to engine.Date) ([]engine.ActualRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryActual(ctx, `
		SELECT id, zone_id, zone_name, run_date, start_time, duration_minutes,
		       actual_gallons, status, failure_reason, efficiency_pct
		FROM actual_runs
		WHERE zone_id = ? AND run_date BETWEEN ? AND ?
		ORDER BY start_time`, zone, from.String(), to.String())
}

func (s *Store) MostRecentScheduledRun(ctx context.Context, zone engine.ZoneID, excludeID string) (*engine.ScheduledRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs, err := s.queryScheduled(ctx, `
		SELECT id, zone_id, zone_name, schedule_date, start_time, duration_minutes,
		       expected_gallons, raw_status, rain_cancelled, scraped_at
		FROM scheduled_runs
		WHERE zone_id = ? AND id != ?
		ORDER BY scraped_at DESC, start_time DESC
		LIMIT 1`, zone, excludeID)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

func (s *Store) queryScheduled(ctx context.Context, query string, args ...any) ([]engine.ScheduledRun, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query scheduled runs: %w", err)
	}
	defer rows.Close()

	var runs []engine.ScheduledRun
	for rows.Next() {
		var (
			run           engine.ScheduledRun
			scheduleDate  string
			startTime     string
			gallons       string
			rainCancelled int
			scrapedAt     string
		)
		if err := rows.Scan(&run.ID, &run.ZoneID, &run.ZoneName, &scheduleDate,
			&startTime, &run.DurationMinutes, &gallons, &run.RawStatus,
			&rainCancelled, &scrapedAt); err != nil {
			return nil, fmt.Errorf("scan scheduled run: %w", err)
		}
		run.Date, _ = engine.ParseDate(scheduleDate)
		run.StartTime, _ = time.Parse(time.RFC3339, startTime)
		run.ExpectedGallons = parseDecimal(gallons)
		run.RainCancelled = rainCancelled != 0
		run.ScrapedAt, _ = time.Parse(time.RFC3339, scrapedAt)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *Store) queryActual(ctx context.Context, query string, args ...any) ([]engine.ActualRun, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query actual runs: %w", err)
	}
	defer rows.Close()

	var runs []engine.ActualRun
	for rows.Next() {
		var (
			run        engine.ActualRun
			runDate    string
			startTime  string
			gallons    sql.NullString
			efficiency sql.NullFloat64
		)
		if err := rows.Scan(&run.ID, &run.ZoneID, &run.ZoneName, &runDate,
			&startTime, &run.DurationMinutes, &gallons, &run.Status,
			&run.FailureReason, &efficiency); err != nil {
			return nil, fmt.Errorf("scan actual run: %w", err)
		}
		run.Date, _ = engine.ParseDate(runDate)
		run.StartTime, _ = time.Parse(time.RFC3339, startTime)
		if gallons.Valid {
			d := parseDecimal(gallons.String)
			run.ActualGallons = &d
		}
		if efficiency.Valid {
			v := efficiency.Float64
			run.EfficiencyPct = &v
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// =============================================================================
// CHANGE STORE
// =============================================================================

func (s *Store) HasStatusChange(ctx context.Context, zone engine.ZoneID, day engine.Date, currentText, previousText string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM status_changes
		WHERE zone_id = ? AND detected_date = ? AND current_text = ? AND previous_text = ?`,
		zone, day.String(), currentText, previousText,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check status change: %w", err)
	}
	return count > 0, nil
}

func (s *Store) InsertStatusChange(ctx context.Context, change engine.StatusChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var hours any
	if change.HoursSinceRecord != nil {
		hours = *change.HoursSinceRecord
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO status_changes
			(zone_id, zone_name, detected_date, current_run_date, current_start_time,
			 current_variant, current_text, previous_run_date, previous_start_time,
			 previous_variant, previous_text, change_type, prevented, gallons_lost,
			 detected_at, hours_since_record)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		change.ZoneID, change.ZoneName, change.DetectedDate.String(),
		change.CurrentRunDate.String(), change.CurrentStartTime.UTC().Format(time.RFC3339),
		change.CurrentVariant, change.CurrentText,
		change.PreviousRunDate.String(), change.PreviousStartTime.UTC().Format(time.RFC3339),
		change.PreviousVariant, change.PreviousText,
		change.ChangeType, boolInt(change.Prevented), change.GallonsLost.String(),
		change.DetectedAt.UTC().Format(time.RFC3339), hours,
	)
	if isUniqueViolation(err) {
		return &engine.DuplicateChangeError{ZoneID: change.ZoneID, Date: change.DetectedDate}
	}
	if err != nil {
		return fmt.Errorf("insert status change: %w", err)
	}
	return nil
}

func (s *Store) StatusChanges(ctx context.Context, day engine.Date) ([]engine.StatusChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT zone_id, zone_name, detected_date, current_run_date, current_start_time,
		       current_variant, current_text, previous_run_date, previous_start_time,
		       previous_variant, previous_text, change_type, prevented, gallons_lost,
		       detected_at, hours_since_record
		FROM status_changes
		WHERE detected_date = ?
		ORDER BY detected_at, id`, day.String())
	if err != nil {
		return nil, fmt.Errorf("query status changes: %w", err)
	}
	defer rows.Close()

	var changes []engine.StatusChange
	for rows.Next() {
		var (
			change                                 engine.StatusChange
			detectedDate, currRunDate, prevRunDate string
			currStart, prevStart                   string
			detectedAt, gallons                    string
			prevented                              int
			hours                                  sql.NullFloat64
		)
		if err := rows.Scan(&change.ZoneID, &change.ZoneName, &detectedDate,
			&currRunDate, &currStart, &change.CurrentVariant, &change.CurrentText,
			&prevRunDate, &prevStart, &change.PreviousVariant, &change.PreviousText,
			&change.ChangeType, &prevented, &gallons, &detectedAt, &hours); err != nil {
			return nil, fmt.Errorf("scan status change: %w", err)
		}
		change.DetectedDate, _ = engine.ParseDate(detectedDate)
		change.CurrentRunDate, _ = engine.ParseDate(currRunDate)
		change.PreviousRunDate, _ = engine.ParseDate(prevRunDate)
		change.CurrentStartTime, _ = time.Parse(time.RFC3339, currStart)
		change.PreviousStartTime, _ = time.Parse(time.RFC3339, prevStart)
		change.DetectedAt, _ = time.Parse(time.RFC3339, detectedAt)
		change.Prevented = prevented != 0
		change.GallonsLost = parseDecimal(gallons)
		if hours.Valid {
			v := hours.Float64
			change.HoursSinceRecord = &v
		}
		changes = append(changes, change)
	}
	return changes, rows.Err()
}

// =============================================================================
// ANOMALY STORE
// =============================================================================

func (s *Store) HasAnomaly(ctx context.Context, zone engine.ZoneID, runDate engine.Date, typ engine.AnomalyType) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM usage_anomalies
		WHERE zone_id = ? AND run_date = ? AND anomaly_type = ?`,
		zone, runDate.String(), typ,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check anomaly: %w", err)
	}
	return count > 0, nil
}

func (s *Store) InsertAnomaly(ctx context.Context, anomaly engine.UsageAnomaly) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_anomalies
			(zone_id, zone_name, run_date, anomaly_type, severity, actual_value,
			 expected_value, deviation_pct, description, detected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		anomaly.ZoneID, anomaly.ZoneName, anomaly.RunDate.String(), anomaly.Type,
		anomaly.Severity, anomaly.ActualValue, anomaly.ExpectedValue,
		anomaly.DeviationPct, anomaly.Description,
		anomaly.DetectedAt.UTC().Format(time.RFC3339),
	)
	if isUniqueViolation(err) {
		return &engine.DuplicateAnomalyError{ZoneID: anomaly.ZoneID, Date: anomaly.RunDate, Type: anomaly.Type}
	}
	if err != nil {
		return fmt.Errorf("insert anomaly: %w", err)
	}
	return nil
}

func (s *Store) Anomalies(ctx context.Context, runDate engine.Date) ([]engine.UsageAnomaly, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT zone_id, zone_name, run_date, anomaly_type, severity, actual_value,
		       expected_value, deviation_pct, description, detected_at
		FROM usage_anomalies
		WHERE run_date = ?
		ORDER BY detected_at, id`, runDate.String())
	if err != nil {
		return nil, fmt.Errorf("query anomalies: %w", err)
	}
	defer rows.Close()

	var anomalies []engine.UsageAnomaly
	for rows.Next() {
		var (
			anomaly          engine.UsageAnomaly
			date, detectedAt string
		)
		if err := rows.Scan(&anomaly.ZoneID, &anomaly.ZoneName, &date, &anomaly.Type,
			&anomaly.Severity, &anomaly.ActualValue, &anomaly.ExpectedValue,
			&anomaly.DeviationPct, &anomaly.Description, &detectedAt); err != nil {
			return nil, fmt.Errorf("scan anomaly: %w", err)
		}
		anomaly.RunDate, _ = engine.ParseDate(date)
		anomaly.DetectedAt, _ = time.Parse(time.RFC3339, detectedAt)
		anomalies = append(anomalies, anomaly)
	}
	return anomalies, rows.Err()
}

// =============================================================================
// BASELINE STORE
// =============================================================================

func (s *Store) UpsertBaseline(ctx context.Context, zone engine.ZoneID, baseline engine.UsageBaseline) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_baselines
			(zone_id, zone_name, avg_gallons, avg_duration_minutes, avg_gpm,
			 std_dev_gallons, std_dev_duration, sample_count, window_start,
			 window_end, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(zone_id) DO UPDATE SET
			zone_name = excluded.zone_name,
			avg_gallons = excluded.avg_gallons,
			avg_duration_minutes = excluded.avg_duration_minutes,
			avg_gpm = excluded.avg_gpm,
			std_dev_gallons = excluded.std_dev_gallons,
			std_dev_duration = excluded.std_dev_duration,
			sample_count = excluded.sample_count,
			window_start = excluded.window_start,
			window_end = excluded.window_end,
			updated_at = excluded.updated_at`,
		zone, baseline.ZoneName, baseline.AvgGallons, baseline.AvgDurationMins,
		baseline.AvgGPM, baseline.StdDevGallons, baseline.StdDevDuration,
		baseline.SampleCount, baseline.WindowStart.String(), baseline.WindowEnd.String(),
		baseline.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upsert baseline: %w", err)
	}
	return nil
}

func (s *Store) Baseline(ctx context.Context, zone engine.ZoneID) (*engine.UsageBaseline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	baselines, err := s.queryBaselines(ctx, `
		SELECT zone_id, zone_name, avg_gallons, avg_duration_minutes, avg_gpm,
		       std_dev_gallons, std_dev_duration, sample_count, window_start,
		       window_end, updated_at
		FROM usage_baselines WHERE zone_id = ?`, zone)
	if err != nil {
		return nil, err
	}
	if len(baselines) == 0 {
		return nil, nil
	}
	return &baselines[0], nil
}

func (s *Store) Baselines(ctx context.Context) ([]engine.UsageBaseline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryBaselines(ctx, `
		SELECT zone_id, zone_name, avg_gallons, avg_duration_minutes, avg_gpm,
		       std_dev_gallons, std_dev_duration, sample_count, window_start,
		       window_end, updated_at
		FROM usage_baselines ORDER BY zone_id`)
}

func (s *Store) queryBaselines(ctx context.Context, query string, args ...any) ([]engine.UsageBaseline, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query baselines: %w", err)
	}
	defer rows.Close()

	var baselines []engine.UsageBaseline
	for rows.Next() {
		var (
			baseline              engine.UsageBaseline
			start, end, updatedAt string
		)
		if err := rows.Scan(&baseline.ZoneID, &baseline.ZoneName, &baseline.AvgGallons,
			&baseline.AvgDurationMins, &baseline.AvgGPM, &baseline.StdDevGallons,
			&baseline.StdDevDuration, &baseline.SampleCount, &start, &end, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan baseline: %w", err)
		}
		baseline.WindowStart, _ = engine.ParseDate(start)
		baseline.WindowEnd, _ = engine.ParseDate(end)
		baseline.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		baselines = append(baselines, baseline)
	}
	return baselines, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

// Zones returns every zone id with captured runs, for baseline sweeps.
func (s *Store) Zones(ctx context.Context) ([]engine.ZoneID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT zone_id FROM actual_runs
		UNION
		SELECT DISTINCT zone_id FROM scheduled_runs
		ORDER BY zone_id`)
	if err != nil {
		return nil, fmt.Errorf("query zones: %w", err)
	}
	defer rows.Close()

	var zones []engine.ZoneID
	for rows.Next() {
		var zone engine.ZoneID
		if err := rows.Scan(&zone); err != nil {
			return nil, fmt.Errorf("scan zone: %w", err)
		}
		zones = append(zones, zone)
	}
	return zones, rows.Err()
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
