package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinicdesk/frontdesk/internal/config"
	"github.com/clinicdesk/frontdesk/internal/domain/acting"
	"github.com/clinicdesk/frontdesk/internal/domain/reservation"
	"github.com/clinicdesk/frontdesk/internal/domain/staff"
	"github.com/clinicdesk/frontdesk/internal/domain/treatment"
	"github.com/clinicdesk/frontdesk/internal/domain/waitlist"
	"github.com/clinicdesk/frontdesk/internal/platform/db"
	"github.com/clinicdesk/frontdesk/internal/platform/metrics"
	"github.com/clinicdesk/frontdesk/internal/platform/middleware"
	"github.com/clinicdesk/frontdesk/migrations"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func testConfig() *config.Config {
	return &config.Config{
		Env:            "test",
		CORSOrigins:    []string{"http://localhost:5173"},
		TerminalID:     "desk-1",
		BodyLimit:      "64K",
		RequestTimeout: 5 * time.Second,
		RateLimitRPS:   100,
		RateLimitBurst: 100,
	}
}

func serve(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Health(t *testing.T) {
	e := newRouter(routerDeps{cfg: testConfig(), logger: zerolog.Nop(), pinger: fakePinger{}})
	if rec := serve(e, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	e = newRouter(routerDeps{cfg: testConfig(), logger: zerolog.Nop(), pinger: fakePinger{err: errors.New("down")}})
	if rec := serve(e, http.MethodGet, "/health", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestRouter_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewBoardMetrics(reg)
	m.SetRunningItems(2)

	e := newRouter(routerDeps{cfg: testConfig(), logger: zerolog.Nop(), pinger: fakePinger{}, gatherer: reg})
	rec := serve(e, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "frontdesk_board_running_items 2") {
		t.Errorf("expected running items gauge in output, got:\n%s", rec.Body.String())
	}
}

func TestRouter_APIRoutesAndHeaders(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO waiting_list").
		WithArgs(int64(3)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectQuery("FROM waiting_list").
		WillReturnRows(pgxmock.NewRows([]string{"patient_id", "name", "chart_number", "added_at"}).
			AddRow(int64(3), "Kim", "C-003", time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)))

	waiting := waitlist.NewService(waitlist.NewRepo(mock), zerolog.Nop())
	e := newRouter(routerDeps{
		cfg:    testConfig(),
		logger: zerolog.Nop(),
		pinger: fakePinger{},
		routes: []routeRegistrar{waitlist.NewHandler(waiting)},
	})

	rec := serve(e, http.MethodPost, "/api/v1/waitlist", `{"patient_id":3}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request id header")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers")
	}
	if got := rec.Header().Get(middleware.HeaderTerminal); got != "desk-1" {
		t.Errorf("expected terminal header desk-1, got %q", got)
	}
}

func TestRouter_FrontDeskRoutes(t *testing.T) {
	e := newRouter(routerDeps{
		cfg:    testConfig(),
		logger: zerolog.Nop(),
		pinger: fakePinger{},
		routes: []routeRegistrar{
			acting.NewHandler(acting.NewService(nil, zerolog.Nop())),
			reservation.NewHandler(reservation.NewService(nil, zerolog.Nop())),
			staff.NewHandler(staff.NewService(nil, nil, zerolog.Nop())),
		},
	})
	have := map[string]bool{}
	for _, r := range e.Routes() {
		have[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"PUT /api/v1/doctors/:doctor/actings/order",
		"PATCH /api/v1/reservations/:id/status",
		"DELETE /api/v1/reservations/:id/treatments",
		"GET /api/v1/medical-staff/on-duty",
		"DELETE /api/v1/staff/:id",
	} {
		if !have[want] {
			t.Errorf("missing route %s", want)
		}
	}
}

func TestMigrationSource(t *testing.T) {
	cfg := testConfig()
	if migrationSource(cfg) != migrations.FS {
		t.Error("expected embedded migrations by default")
	}
	cfg.MigrationsDir = t.TempDir()
	if migrationSource(cfg) == migrations.FS {
		t.Error("expected directory migrations when MIGRATIONS_DIR is set")
	}
}

func TestPrintMigrationStatus(t *testing.T) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	printMigrationStatus(cmd, []db.MigrationStatus{
		{Version: 1, Name: "001_patients.sql", Applied: true, AppliedAt: &at},
		{Version: 2, Name: "002_treatment_rooms.sql"},
	})
	out := buf.String()
	if !strings.Contains(out, "2026-03-02 09:00:00") || !strings.Contains(out, "pending") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestPrintRooms(t *testing.T) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	printRooms(cmd, []treatment.RoomSnapshot{
		{ID: 1, Name: "Bed 1", Status: treatment.RoomInUse,
			Occupancy: &treatment.Occupancy{PatientName: "Kim"},
			Items: []treatment.SessionItem{
				{ID: "a", Status: treatment.ItemCompleted},
				{ID: "b", Status: treatment.ItemPending},
			}},
		{ID: 2, Name: "Bed 2", Status: treatment.RoomAvailable},
	})
	out := buf.String()
	if !strings.Contains(out, "Kim") || !strings.Contains(out, "1/2") || !strings.Contains(out, "0/0") {
		t.Errorf("unexpected output:\n%s", out)
	}
}
