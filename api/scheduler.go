/*
scheduler.go - Automated reconciliation scheduler

PURPOSE:
  Periodically re-runs the reconciliation pass for today and yesterday so
  late-arriving controller data still gets matched, and refreshes every
  zone's usage baseline once per sweep.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Re-reconciling is safe: detection writes are idempotent, so a sweep
    over an unchanged snapshot stores nothing new
  - Covers yesterday as well as today because the controller reports
    overnight runs after midnight

CONFIGURATION:
  - CheckInterval: How often to sweep (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewReconciliationScheduler(store, eng)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: Reconcile endpoint (manual pass)
  - engine/reconcile.go: The pass itself
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/verdantworks/irrigation-engine/engine"
)

// ReconciliationScheduler re-runs the daily pass in the background.
type ReconciliationScheduler struct {
	Store         Store
	Engine        *engine.Engine
	CheckInterval time.Duration
	Enabled       bool

	// Now supplies the current time, injected for deterministic tests.
	Now func() time.Time

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewReconciliationScheduler creates a new scheduler.
func NewReconciliationScheduler(store Store, eng *engine.Engine) *ReconciliationScheduler {
	return &ReconciliationScheduler{
		Store:         store,
		Engine:        eng,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		Now:           time.Now,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (rs *ReconciliationScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.wg.Add(1)

	go rs.run()

	log.Printf("[Scheduler] Started with check interval: %v", rs.CheckInterval)
}

// Stop stops the scheduler.
func (rs *ReconciliationScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (rs *ReconciliationScheduler) run() {
	defer rs.wg.Done()

	// Run immediately on start
	rs.sweep()

	for {
		select {
		case <-rs.ticker.C:
			rs.sweep()
		case <-rs.stop:
			return
		}
	}
}

func (rs *ReconciliationScheduler) sweep() {
	ctx := context.Background()
	today := engine.DateOf(rs.Now())

	log.Printf("[Scheduler] Sweeping at %v", rs.Now().Format(time.RFC3339))

	// Yesterday first so overnight runs reported after midnight get matched
	// before today's pass reads the baseline they may have refreshed.
	for _, day := range []engine.Date{today.AddDays(-1), today} {
		result, err := rs.Engine.ReconcileDate(ctx, day)
		if err != nil {
			log.Printf("[Scheduler] Error reconciling %s: %v", day, err)
			continue
		}
		if result.Summary.AlertCount() > 0 || len(result.Changes) > 0 || len(result.Anomalies) > 0 {
			log.Printf("[Scheduler] %s: %d alerts, %d new changes, %d new anomalies",
				day, result.Summary.AlertCount(), len(result.Changes), len(result.Anomalies))
		}
	}

	zones, err := rs.Store.Zones(ctx)
	if err != nil {
		log.Printf("[Scheduler] Error listing zones: %v", err)
		return
	}

	updated, err := rs.Engine.RefreshBaselines(ctx, zones, today)
	if err != nil {
		log.Printf("[Scheduler] Error refreshing baselines: %v", err)
		return
	}
	if updated > 0 {
		log.Printf("[Scheduler] Refreshed %d of %d zone baselines", updated, len(zones))
	}
}

// RunNow triggers an immediate sweep (for testing/admin).
func (rs *ReconciliationScheduler) RunNow() {
	rs.sweep()
}

// GetNextRunTime returns when the next scheduled sweep will occur.
func (rs *ReconciliationScheduler) GetNextRunTime() time.Time {
	return rs.Now().Add(rs.CheckInterval)
}
