/*
handlers.go - HTTP API handlers for the irrigation reconciliation engine

PURPOSE:
  Exposes the reconciliation engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Ingest:
    POST   /api/runs/scheduled         Record a captured schedule entry
    POST   /api/runs/actual            Record a reported run
    GET    /api/runs/scheduled?date=   List one date's schedule snapshot
    GET    /api/runs/actual?date=      List one date's reported runs

  Reconciliation:
    POST   /api/reconcile              Run a full pass for one date
    GET    /api/reconciliation?date=   Match results without writing logs
    GET    /api/reconciliation/report  Plain-text operator report
    GET    /api/summary?date=          Per-invocation digest

  Detection logs:
    GET    /api/changes?date=          Stored status changes
    GET    /api/anomalies?date=        Stored usage anomalies

  Baselines:
    GET    /api/baselines              All current baselines
    GET    /api/baselines/{zone}       One zone's baseline
    POST   /api/baselines/recompute    Sweep every zone's trailing window

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (engine, store)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (idempotency, duplicate)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - engine/reconcile.go: The pass this surface drives
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/verdantworks/irrigation-engine/engine"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is the persistence surface the API needs: the engine's event store
// plus zone enumeration for baseline sweeps.
type Store interface {
	engine.EventStore
	Zones(ctx context.Context) ([]engine.ZoneID, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  Store
	Engine *engine.Engine

	// Now supplies the current time, injected for deterministic tests.
	Now func() time.Time
}

// NewHandler creates a new handler over the given store and engine.
func NewHandler(store Store, eng *engine.Engine) *Handler {
	return &Handler{
		Store:  store,
		Engine: eng,
		Now:    time.Now,
	}
}

// =============================================================================
// INGEST HANDLERS
// =============================================================================

// IngestScheduledRun records a captured schedule entry.
// POST /api/runs/scheduled
func (h *Handler) IngestScheduledRun(w http.ResponseWriter, r *http.Request) {
	var req IngestScheduledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.ZoneID == "" {
		writeError(w, http.StatusBadRequest, "id and zone_id are required", nil)
		return
	}

	date, err := engine.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD", err)
		return
	}
	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_time, expected RFC3339", err)
		return
	}
	gallons, err := decimal.NewFromString(req.ExpectedGallons)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid expected_gallons", err)
		return
	}

	scrapedAt := h.Now()
	if req.ScrapedAt != "" {
		scrapedAt, err = time.Parse(time.RFC3339, req.ScrapedAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid scraped_at, expected RFC3339", err)
			return
		}
	}

	run := engine.ScheduledRun{
		ID:              req.ID,
		ZoneID:          engine.ZoneID(req.ZoneID),
		ZoneName:        req.ZoneName,
		Date:            date,
		StartTime:       startTime,
		DurationMinutes: req.DurationMinutes,
		ExpectedGallons: gallons,
		RawStatus:       req.RawStatus,
		RainCancelled:   req.RainCancelled,
		ScrapedAt:       scrapedAt,
	}

	if err := h.Store.RecordScheduledRun(r.Context(), run); err != nil {
		if engine.IsDuplicate(err) {
			writeError(w, http.StatusConflict, "Run already recorded", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to record run", err)
		return
	}

	writeJSON(w, http.StatusCreated, toScheduledDTO(run))
}

// IngestActualRun records a reported run. The failure reason is derived from
// the status text at ingest so downstream readers never re-parse it.
// POST /api/runs/actual
func (h *Handler) IngestActualRun(w http.ResponseWriter, r *http.Request) {
	var req IngestActualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.ZoneID == "" {
		writeError(w, http.StatusBadRequest, "id and zone_id are required", nil)
		return
	}

	date, err := engine.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD", err)
		return
	}
	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_time, expected RFC3339", err)
		return
	}

	run := engine.ActualRun{
		ID:              req.ID,
		ZoneID:          engine.ZoneID(req.ZoneID),
		ZoneName:        req.ZoneName,
		Date:            date,
		StartTime:       startTime,
		DurationMinutes: req.DurationMinutes,
		Status:          req.Status,
		FailureReason:   engine.DeriveFailureReason(req.Status),
		EfficiencyPct:   req.EfficiencyPct,
	}
	if req.ActualGallons != nil {
		gallons, err := decimal.NewFromString(*req.ActualGallons)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid actual_gallons", err)
			return
		}
		run.ActualGallons = &gallons
	}

	if err := h.Store.RecordActualRun(r.Context(), run); err != nil {
		if engine.IsDuplicate(err) {
			writeError(w, http.StatusConflict, "Run already recorded", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to record run", err)
		return
	}

	writeJSON(w, http.StatusCreated, toActualDTO(run))
}

// ListScheduledRuns returns one date's schedule snapshot.
// GET /api/runs/scheduled?date=YYYY-MM-DD
func (h *Handler) ListScheduledRuns(w http.ResponseWriter, r *http.Request) {
	date, ok := h.dateParam(w, r)
	if !ok {
		return
	}

	runs, err := h.Store.ScheduledRuns(r.Context(), date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list scheduled runs", err)
		return
	}

	dtos := make([]ScheduledRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toScheduledDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListActualRuns returns one date's reported runs.
// GET /api/runs/actual?date=YYYY-MM-DD
func (h *Handler) ListActualRuns(w http.ResponseWriter, r *http.Request) {
	date, ok := h.dateParam(w, r)
	if !ok {
		return
	}

	runs, err := h.Store.ActualRuns(r.Context(), date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list actual runs", err)
		return
	}

	dtos := make([]ActualRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toActualDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// RECONCILIATION HANDLERS
// =============================================================================

// Reconcile runs the full pass for one date: matching, change detection,
// anomaly detection, summary. Detection writes are idempotent, so clients
// may retry freely.
// POST /api/reconcile
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req ReconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := engine.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD", err)
		return
	}

	result, err := h.Engine.ReconcileDate(r.Context(), date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Reconciliation failed", err)
		return
	}

	writeJSON(w, http.StatusOK, toReconciliationDTO(result))
}

// GetReconciliation recomputes match results for a date without touching
// the change or anomaly logs.
// GET /api/reconciliation?date=YYYY-MM-DD
func (h *Handler) GetReconciliation(w http.ResponseWriter, r *http.Request) {
	date, ok := h.dateParam(w, r)
	if !ok {
		return
	}

	matches, err := h.Engine.MatchOnly(r.Context(), date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Matching failed", err)
		return
	}

	dtos := make([]MatchResultDTO, len(matches))
	for i, m := range matches {
		dtos[i] = toMatchDTO(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetReconciliationReport renders the plain-text operator report for a date.
// GET /api/reconciliation/report?date=YYYY-MM-DD
func (h *Handler) GetReconciliationReport(w http.ResponseWriter, r *http.Request) {
	date, ok := h.dateParam(w, r)
	if !ok {
		return
	}

	matches, err := h.Engine.MatchOnly(r.Context(), date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Matching failed", err)
		return
	}

	report := engine.RenderMatchReport(date, h.Engine.Matcher().TimeTolerance(), matches)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(report))
}

// GetSummary rebuilds the per-invocation digest for a date from stored
// detection logs and freshly recomputed matches.
// GET /api/summary?date=YYYY-MM-DD
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	date, ok := h.dateParam(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	scheduled, err := h.Store.ScheduledRuns(ctx, date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scheduled runs", err)
		return
	}
	matches, err := h.Engine.MatchOnly(ctx, date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Matching failed", err)
		return
	}
	changes, err := h.Store.StatusChanges(ctx, date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load status changes", err)
		return
	}
	anomalies, err := h.Store.Anomalies(ctx, date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load anomalies", err)
		return
	}

	summary := engine.BuildSummary(date, matches, changes, anomalies, scheduled)
	writeJSON(w, http.StatusOK, toSummaryDTO(summary))
}

// =============================================================================
// DETECTION LOG HANDLERS
// =============================================================================

// ListStatusChanges returns the stored transitions detected on a date.
// GET /api/changes?date=YYYY-MM-DD
func (h *Handler) ListStatusChanges(w http.ResponseWriter, r *http.Request) {
	date, ok := h.dateParam(w, r)
	if !ok {
		return
	}

	changes, err := h.Store.StatusChanges(r.Context(), date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list status changes", err)
		return
	}

	dtos := make([]StatusChangeDTO, len(changes))
	for i, c := range changes {
		dtos[i] = toChangeDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListAnomalies returns the stored deviations for runs on a date.
// GET /api/anomalies?date=YYYY-MM-DD
func (h *Handler) ListAnomalies(w http.ResponseWriter, r *http.Request) {
	date, ok := h.dateParam(w, r)
	if !ok {
		return
	}

	anomalies, err := h.Store.Anomalies(r.Context(), date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list anomalies", err)
		return
	}

	dtos := make([]AnomalyDTO, len(anomalies))
	for i, a := range anomalies {
		dtos[i] = toAnomalyDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// BASELINE HANDLERS
// =============================================================================

// ListBaselines returns every zone's current baseline.
// GET /api/baselines
func (h *Handler) ListBaselines(w http.ResponseWriter, r *http.Request) {
	baselines, err := h.Store.Baselines(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list baselines", err)
		return
	}

	dtos := make([]BaselineDTO, len(baselines))
	for i, b := range baselines {
		dtos[i] = toBaselineDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetBaseline returns one zone's current baseline, 404 when undefined.
// GET /api/baselines/{zone}
func (h *Handler) GetBaseline(w http.ResponseWriter, r *http.Request) {
	zone := engine.ZoneID(chi.URLParam(r, "zone"))

	baseline, err := h.Store.Baseline(r.Context(), zone)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load baseline", err)
		return
	}
	if baseline == nil {
		writeError(w, http.StatusNotFound, "No baseline for zone", nil)
		return
	}

	writeJSON(w, http.StatusOK, toBaselineDTO(*baseline))
}

// RecomputeBaselines sweeps every known zone's trailing window and upserts
// fresh baselines. Zones below the minimum sample count are skipped.
// POST /api/baselines/recompute
func (h *Handler) RecomputeBaselines(w http.ResponseWriter, r *http.Request) {
	var req RecomputeBaselinesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	endDate := engine.DateOf(h.Now())
	if req.EndDate != "" {
		var err error
		endDate, err = engine.ParseDate(req.EndDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid end_date, expected YYYY-MM-DD", err)
			return
		}
	}

	zones, err := h.Store.Zones(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list zones", err)
		return
	}

	updated, err := h.Engine.RefreshBaselines(r.Context(), zones, endDate)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Baseline recompute failed", err)
		return
	}

	writeJSON(w, http.StatusOK, RecomputeBaselinesResponse{
		ZonesChecked: len(zones),
		Updated:      updated,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) dateParam(w http.ResponseWriter, r *http.Request) (engine.Date, bool) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return engine.DateOf(h.Now()), true
	}
	date, err := engine.ParseDate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD", err)
		return engine.Date{}, false
	}
	return date, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
