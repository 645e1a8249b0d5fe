package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/contentpilot/contentpilot/internal/store"
	"github.com/contentpilot/contentpilot/models"
)

func TestUpdateScheduleRecomputesNextRun(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	handler := &ScheduleHandler{Store: &store.Store{DB: db}}

	stale := time.Now().Add(48 * time.Hour)
	mock.ExpectQuery(`SELECT cadence, publish_hour, timezone, next_run_at, selected_topic_id FROM schedules WHERE user_id=\$1`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"cadence", "publish_hour", "timezone", "next_run_at", "selected_topic_id"}).
			AddRow("weekly", 9, "UTC", stale, nil))

	mock.ExpectExec(`INSERT INTO schedules`).
		WithArgs("user-1", "daily", 9, "UTC", sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	req := httptest.NewRequest(http.MethodPut, "/api/schedule", strings.NewReader(`{"cadence":"daily"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.Set("user_id", "user-1")

	if err := handler.put(ctx); err != nil {
		t.Fatalf("put: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}

	var resp models.Schedule
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Cadence != models.CadenceDaily {
		t.Fatalf("expected daily cadence, got %s", resp.Cadence)
	}
	if resp.NextRunAt == nil || !resp.NextRunAt.After(time.Now()) {
		t.Fatalf("next_run_at not recomputed: %v", resp.NextRunAt)
	}
	// cadence change must not reuse the stale slot
	if resp.NextRunAt.Equal(stale) {
		t.Fatalf("next_run_at kept the stale value")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateScheduleRejectsBadHour(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	handler := &ScheduleHandler{Store: &store.Store{DB: db}}

	mock.ExpectQuery(`SELECT cadence, publish_hour, timezone, next_run_at, selected_topic_id FROM schedules WHERE user_id=\$1`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"cadence", "publish_hour", "timezone", "next_run_at", "selected_topic_id"}).
			AddRow("weekly", 9, "UTC", nil, nil))

	req := httptest.NewRequest(http.MethodPut, "/api/schedule", strings.NewReader(`{"publish_hour":24}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.Set("user_id", "user-1")

	err = handler.put(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
