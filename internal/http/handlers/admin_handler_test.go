package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/scanline/go-qc-backend/internal/domain"
	"github.com/scanline/go-qc-backend/internal/services"
)

func TestDiagnostics_AllChecksReportInBand(t *testing.T) {
	f := &fakeSync{}
	r := testRouter(f)

	for _, path := range []string{
		"/api/v1/diagnostics/connection",
		"/api/v1/diagnostics/master-data",
		"/api/v1/diagnostics/qc-logs",
	} {
		w := doJSON(r, http.MethodGet, path, "", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", path, w.Code)
		}
		var resp DiagnosticsResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if !resp.Ok || resp.Error != "" {
			t.Fatalf("%s: resp = %+v", path, resp)
		}
	}
}

func TestDiagnostics_FailureStays200WithError(t *testing.T) {
	f := &fakeSync{probeErr: errors.New("endpoint unreachable")}
	r := testRouter(f)

	w := doJSON(r, http.MethodGet, "/api/v1/diagnostics/connection", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp DiagnosticsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Ok || !strings.Contains(resp.Error, "unreachable") {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestCacheStatsAndClear(t *testing.T) {
	at := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	f := &fakeSync{
		masterStats: services.CacheStats{Entries: 42, FetchedAt: &at},
		qcStats:     services.CacheStats{},
	}
	r := testRouter(f)

	w := doJSON(r, http.MethodGet, "/api/v1/cache", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp CacheStatsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Master.Entries != 42 || resp.Master.FetchedAt == nil {
		t.Fatalf("master = %+v", resp.Master)
	}
	if resp.QCLogs.Entries != 0 || resp.QCLogs.FetchedAt != nil {
		t.Fatalf("qc = %+v", resp.QCLogs)
	}

	if w := doJSON(r, http.MethodDelete, "/api/v1/cache", "", nil); w.Code != http.StatusNoContent {
		t.Fatalf("clear status = %d", w.Code)
	}
	if f.cleared != 1 {
		t.Fatalf("cleared = %d", f.cleared)
	}
}

func TestEndpointSettings_RoundTrip(t *testing.T) {
	f := &fakeSync{apiURL: "https://script.google.com/macros/s/default/exec"}
	r := testRouter(f)

	w := doJSON(r, http.MethodGet, "/api/v1/settings/endpoint", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "default/exec") {
		t.Fatalf("get: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(r, http.MethodPut, "/api/v1/settings/endpoint",
		`{"url":"https://script.google.com/macros/s/override/exec"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("put status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "override/exec") {
		t.Fatalf("put body = %s", w.Body.String())
	}
}

func TestEndpointSettings_InvalidURLIs400(t *testing.T) {
	f := &fakeSync{setURLErr: services.ErrInvalidURL}
	r := testRouter(f)

	w := doJSON(r, http.MethodPut, "/api/v1/settings/endpoint", `{"url":"nonsense"}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), ErrCodeBadRequest) {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestInspectors_RoundTrip(t *testing.T) {
	f := &fakeSync{inspectors: []domain.Inspector{{ID: "insp-1", Name: "Alex"}}}
	r := testRouter(f)

	w := doJSON(r, http.MethodGet, "/api/v1/inspectors", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Alex") {
		t.Fatalf("get: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(r, http.MethodPut, "/api/v1/inspectors",
		`{"inspectors":[{"id":"insp-2","name":"Sam"}]}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("put status = %d", w.Code)
	}
	if len(f.inspectors) != 1 || f.inspectors[0].ID != "insp-2" {
		t.Fatalf("roster = %+v", f.inspectors)
	}
}

func TestEditHistory(t *testing.T) {
	f := &fakeSync{history: []domain.EditHistoryEntry{
		{Action: "save", Barcode: "A1", Actor: "insp-1"},
	}}
	r := testRouter(f)

	w := doJSON(r, http.MethodGet, "/api/v1/history", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var entries []domain.EditHistoryEntry
	if err := json.Unmarshal(w.Body.Bytes(), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Barcode != "A1" {
		t.Fatalf("entries = %+v", entries)
	}
}
