package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/config"
	"github.com/clinicdesk/clinicdesk/internal/domain/analytics"
	"github.com/clinicdesk/clinicdesk/internal/domain/registry"
	"github.com/clinicdesk/clinicdesk/internal/platform/auth"
	"github.com/clinicdesk/clinicdesk/internal/platform/db"
)

func memoryApp(t *testing.T) *app {
	t.Helper()
	cfg := &config.Config{
		Env:          "development",
		StoreBackend: "memory",
		StoreTimeout: time.Second,
		CORSOrigins:  []string{"http://localhost:3000"},
	}
	a, err := newApp(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(a.Close)
	return a
}

func serve(e *echo.Echo, method, target, body string, roles ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if len(roles) > 0 {
		req.Header.Set(auth.DevRolesHeader, strings.Join(roles, ","))
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRouter_CreateThenHealth(t *testing.T) {
	a := memoryApp(t)
	e := a.router()

	rec := serve(e, http.MethodPost, "/api/v1/patients", `{"id":"P1","name":"Asha","source":"Google"}`, auth.RoleFrontOffice)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request id header")
	}

	rec = serve(e, http.MethodGet, "/health", "")
	var health struct {
		Patients int                 `json:"patients"`
		Sync     registry.SyncStatus `json:"sync"`
	}
	json.Unmarshal(rec.Body.Bytes(), &health)
	if health.Patients != 1 || health.Sync.State != registry.SyncSaved {
		t.Errorf("unexpected health %s", rec.Body.String())
	}

	rec = serve(e, http.MethodGet, "/api/v1/analytics/summary", "", auth.RoleAnalytics)
	var s analytics.Summary
	json.Unmarshal(rec.Body.Bytes(), &s)
	if rec.Code != http.StatusOK || s.Total != 1 || s.Online != 1 {
		t.Errorf("unexpected summary %d %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_RoleGates(t *testing.T) {
	e := memoryApp(t).router()

	tests := []struct {
		name   string
		method string
		target string
		role   string
		want   int
	}{
		{"doctor cannot register patients", http.MethodPost, "/api/v1/patients", auth.RoleDoctor, http.StatusForbidden},
		{"front office cannot read analytics", http.MethodGet, "/api/v1/analytics/summary", auth.RoleFrontOffice, http.StatusForbidden},
		{"counseling cannot export doctor report", http.MethodGet, "/api/v1/exports/doctor", auth.RoleCounseling, http.StatusForbidden},
		{"every role reads the patient list", http.MethodGet, "/api/v1/patients", auth.RoleDoctor, http.StatusOK},
		{"staff registration is admin only", http.MethodPost, "/api/v1/staff", auth.RoleFrontOffice, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(e, tt.method, tt.target, `{}`, tt.role)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRouter_CounselingFallsBackWithoutEndpoint(t *testing.T) {
	a := memoryApp(t)
	e := a.router()
	serve(e, http.MethodPost, "/api/v1/patients", `{"id":"P1","name":"Asha"}`)

	rec := serve(e, http.MethodPost, "/api/v1/patients/P1/counseling-suggestion", "", auth.RoleCounseling)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Fallback bool `json:"fallback"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if !body.Fallback {
		t.Errorf("expected fallback text with no genai endpoint, got %s", rec.Body.String())
	}
}

func flowFixture() []registry.Patient {
	return []registry.Patient{
		{ID: "a", Status: registry.StatusArrived, EntryDate: "2024-05-02", Source: "Google"},
		{ID: "b", Status: registry.StatusArrived, EntryDate: "2024-04-03", Source: "Walk-in"},
	}
}

func TestWriteFlow(t *testing.T) {
	var buf bytes.Buffer
	may := analytics.Range{From: "2024-05-01", To: "2024-05-31"}
	if err := writeFlow(&buf, flowFixture(), may, analytics.Range{}); err != nil {
		t.Fatal(err)
	}
	var s analytics.Summary
	if err := json.Unmarshal(buf.Bytes(), &s); err != nil || s.Total != 1 {
		t.Errorf("unexpected summary output %s", buf.String())
	}

	buf.Reset()
	april := analytics.Range{From: "2024-04-01", To: "2024-04-30"}
	if err := writeFlow(&buf, flowFixture(), may, april); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"growth"`) {
		t.Errorf("expected comparison output, got %s", buf.String())
	}

	if err := writeFlow(&buf, nil, analytics.Range{From: "May 1"}, analytics.Range{}); err == nil {
		t.Error("expected invalid date error")
	}
}

func TestWriteExport(t *testing.T) {
	out := filepath.Join(t.TempDir(), "fo.csv")
	path, err := writeExport(flowFixture(), "front-office", "csv", out, analytics.Range{})
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if lines := strings.Count(string(data), "\r\n"); lines != 3 {
		t.Errorf("expected header + 2 rows, got %d lines", lines)
	}

	if _, err := writeExport(nil, "janitor", "csv", out, analytics.Range{}); err == nil {
		t.Error("expected unknown role error")
	}
	if _, err := writeExport(nil, "doctor", "pdf", out, analytics.Range{}); err == nil {
		t.Error("expected unknown format error")
	}
}

func TestPrintMigrationStatus(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	printMigrationStatus(&buf, []db.MigrationStatus{
		{Version: 1, Name: "001_init.sql", Applied: true, AppliedAt: &at},
		{Version: 2, Name: "002_next.sql"},
	})
	out := buf.String()
	if !strings.Contains(out, "2024-05-01 09:00:00") || !strings.Contains(out, "pending") {
		t.Errorf("unexpected status table:\n%s", out)
	}
}
