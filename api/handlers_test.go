package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verdantworks/irrigation-engine/api"
	"github.com/verdantworks/irrigation-engine/engine"
	"github.com/verdantworks/irrigation-engine/engine/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// fixedNow is the evening of the test day, so morning runs are past due.
var fixedNow = time.Date(2025, time.June, 15, 20, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*httptest.Server, *store.Memory) {
	t.Helper()

	mem := store.NewMemory()
	cfg := engine.DefaultConfig()
	cfg.Matcher.Now = func() time.Time { return fixedNow }
	eng := engine.New(mem, cfg)

	handler := api.NewHandler(mem, eng)
	handler.Now = func() time.Time { return fixedNow }

	srv := httptest.NewServer(api.NewRouter(handler))
	t.Cleanup(srv.Close)
	return srv, mem
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeInto(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func scheduledBody(id, zone string, hour int, status string) map[string]any {
	return map[string]any{
		"id":               id,
		"zone_id":          "z-" + strings.ToLower(zone),
		"zone_name":        zone,
		"date":             "2025-06-15",
		"start_time":       fmt.Sprintf("2025-06-15T%02d:00:00Z", hour),
		"duration_minutes": 15,
		"expected_gallons": "25.5",
		"raw_status":       status,
		"scraped_at":       "2025-06-15T05:00:00Z",
	}
}

func actualBody(id, zone string, hour int, gal string) map[string]any {
	return map[string]any{
		"id":               id,
		"zone_id":          "z-" + strings.ToLower(zone),
		"zone_name":        zone,
		"date":             "2025-06-15",
		"start_time":       fmt.Sprintf("2025-06-15T%02d:00:00Z", hour),
		"duration_minutes": 15,
		"actual_gallons":   gal,
		"status":           "Normal watering cycle",
	}
}

func gallons(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// =============================================================================
// INGEST
// =============================================================================

func TestIngestScheduledRun(t *testing.T) {
	srv, mem := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/runs/scheduled", scheduledBody("s1", "Front Planters", 6, "Normal watering cycle"))
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	runs, err := mem.ScheduledRuns(context.Background(), engine.NewDate(2025, time.June, 15))
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "s1", runs[0].ID)
	assert.Equal(t, "25.5", runs[0].ExpectedGallons.String())
}

func TestIngestScheduledRun_DuplicateID_Conflict(t *testing.T) {
	srv, _ := newTestServer(t)
	body := scheduledBody("s1", "Front Planters", 6, "Normal watering cycle")

	resp := postJSON(t, srv.URL+"/api/runs/scheduled", body)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/api/runs/scheduled", body)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestIngestScheduledRun_BadDate(t *testing.T) {
	srv, _ := newTestServer(t)
	body := scheduledBody("s1", "Front Planters", 6, "Normal watering cycle")
	body["date"] = "June 15th"

	resp := postJSON(t, srv.URL+"/api/runs/scheduled", body)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIngestActualRun_DerivesFailureReason(t *testing.T) {
	srv, mem := newTestServer(t)

	body := actualBody("a1", "Front Planters", 6, "0")
	body["status"] = "Aborted due to sensor input"
	resp := postJSON(t, srv.URL+"/api/runs/actual", body)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	runs, err := mem.ActualRuns(context.Background(), engine.NewDate(2025, time.June, 15))
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "sensor_abort", runs[0].FailureReason)
}

// =============================================================================
// RECONCILIATION
// =============================================================================

func TestReconcile_EndToEnd(t *testing.T) {
	// GIVEN: An executed turf run and an unexecuted planter run, ingested
	//        over HTTP
	// WHEN: POSTing a reconcile request for the date
	// THEN: The response carries the match results and summary

	srv, _ := newTestServer(t)

	for _, body := range []map[string]any{
		scheduledBody("s-turf", "Back Turf", 6, "Normal watering cycle"),
		scheduledBody("s-planter", "Front Planters", 7, "Normal watering cycle"),
	} {
		resp := postJSON(t, srv.URL+"/api/runs/scheduled", body)
		resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}
	resp := postJSON(t, srv.URL+"/api/runs/actual", actualBody("a-turf", "Back Turf", 6, "25.5"))
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/api/reconcile", map[string]any{"date": "2025-06-15"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Date    string `json:"date"`
		Matches []struct {
			ZoneName string `json:"zone_name"`
			Type     string `json:"type"`
			Priority string `json:"priority"`
		} `json:"matches"`
		Summary struct {
			AlertCount  int    `json:"alert_count"`
			GallonsLost string `json:"gallons_lost"`
		} `json:"summary"`
	}
	decodeInto(t, resp, &result)

	assert.Equal(t, "2025-06-15", result.Date)
	require.Len(t, result.Matches, 2)

	byZone := map[string]string{}
	for _, m := range result.Matches {
		byZone[m.ZoneName] = m.Type
	}
	assert.Equal(t, "perfect_match", byZone["Back Turf"])
	assert.Equal(t, "missing_run", byZone["Front Planters"])
	assert.Equal(t, 1, result.Summary.AlertCount)
	assert.Equal(t, "25.5", result.Summary.GallonsLost)
}

func TestGetReconciliationReport_PlainText(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/runs/scheduled", scheduledBody("s1", "Front Planters", 6, "Normal watering cycle"))
	resp.Body.Close()

	r, err := http.Get(srv.URL + "/api/reconciliation/report?date=2025-06-15")
	require.NoError(t, err)
	defer r.Body.Close()

	assert.Equal(t, http.StatusOK, r.StatusCode)
	assert.Contains(t, r.Header.Get("Content-Type"), "text/plain")

	buf := new(bytes.Buffer)
	_, err = buf.ReadFrom(r.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "MATCH SUMMARY:")
	assert.Contains(t, buf.String(), "Missing runs:     1")
}

func TestGetReconciliation_BadDate(t *testing.T) {
	srv, _ := newTestServer(t)

	r, err := http.Get(srv.URL + "/api/reconciliation?date=not-a-date")
	require.NoError(t, err)
	defer r.Body.Close()
	assert.Equal(t, http.StatusBadRequest, r.StatusCode)
}

// =============================================================================
// BASELINES
// =============================================================================

func TestGetBaseline_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	r, err := http.Get(srv.URL + "/api/baselines/z-unknown")
	require.NoError(t, err)
	defer r.Body.Close()
	assert.Equal(t, http.StatusNotFound, r.StatusCode)
}

func TestRecomputeBaselines(t *testing.T) {
	// GIVEN: Ten days of reported runs for one zone, two for another
	// WHEN: POSTing a recompute ending at the test day
	// THEN: Only the well-sampled zone gets a baseline

	srv, mem := newTestServer(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		day := engine.NewDate(2025, time.June, 15).AddDays(-i - 1)
		require.NoError(t, mem.RecordActualRun(ctx, engine.ActualRun{
			ID: fmt.Sprintf("turf-%d", i), ZoneID: "z-turf", ZoneName: "Back Turf",
			Date: day, StartTime: day.Time().Add(6 * time.Hour),
			DurationMinutes: 15, ActualGallons: gallons("40"),
		}))
	}
	sparse := engine.NewDate(2025, time.June, 14)
	require.NoError(t, mem.RecordActualRun(ctx, engine.ActualRun{
		ID: "sparse-1", ZoneID: "z-sparse", ZoneName: "Side Strip",
		Date: sparse, StartTime: sparse.Time().Add(6 * time.Hour),
		DurationMinutes: 15, ActualGallons: gallons("20"),
	}))

	resp := postJSON(t, srv.URL+"/api/baselines/recompute", map[string]any{"end_date": "2025-06-15"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		ZonesChecked int `json:"zones_checked"`
		Updated      int `json:"updated"`
	}
	decodeInto(t, resp, &result)
	assert.Equal(t, 2, result.ZonesChecked)
	assert.Equal(t, 1, result.Updated)

	r, err := http.Get(srv.URL + "/api/baselines/z-turf")
	require.NoError(t, err)
	defer r.Body.Close()
	assert.Equal(t, http.StatusOK, r.StatusCode)
}
