package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/contentpilot/contentpilot/internal/agent"
	"github.com/contentpilot/contentpilot/internal/store"
	"github.com/contentpilot/contentpilot/models"
)

func TestTriggerNoTopicSelected(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	handler := &RunsHandler{Store: &store.Store{DB: db}}

	mock.ExpectQuery(`SELECT t.id, t.title, t.angle, t.audience, t.keywords, t.score`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "angle", "audience", "keywords", "score"}))

	req := httptest.NewRequest(http.MethodPost, "/api/runs/trigger", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.Set("user_id", "user-1")

	err = handler.trigger(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusPreconditionFailed {
		t.Fatalf("expected 412, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestTriggerLedgerWriteFailure(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	st := &store.Store{DB: db}

	handler := &RunsHandler{
		Store: st,
		Orch:  agent.NewOrchestrator(st, &stubProvider{}, &stubDispatcher{}, nil, 30, time.Hour),
	}

	expectSelectedTopicRow(mock, "user-1")
	expectNoChannel(mock, "user-1")
	mock.ExpectExec(`INSERT INTO runs`).WillReturnError(errors.New("pq: connection reset"))
	mock.ExpectQuery(`SELECT cadence, publish_hour, timezone, next_run_at, selected_topic_id FROM schedules WHERE user_id`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"cadence", "publish_hour", "timezone", "next_run_at", "selected_topic_id"}))

	req := httptest.NewRequest(http.MethodPost, "/api/runs/trigger", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.Set("user_id", "user-1")

	// the run record never made it into the ledger, so there is no
	// failed run to report; the caller still must not see 202
	err = handler.trigger(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListRunsClampsLimit(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	handler := &RunsHandler{Store: &store.Store{DB: db}, HistoryLimit: 30}

	started := time.Now().Add(-time.Hour)
	mock.ExpectQuery(`SELECT id, topic_id, topic_title, status, started_at, finished_at, summary, destination, error FROM runs`).
		WithArgs("user-1", 30).
		WillReturnRows(sqlmock.NewRows([]string{"id", "topic_id", "topic_title", "status", "started_at", "finished_at", "summary", "destination", "error"}).
			AddRow("run-1", "topic-1", "Why onboarding matters", models.RunStatusPosted, started, time.Now(), "A summary", "https://blog.example.com", nil))

	req := httptest.NewRequest(http.MethodGet, "/api/runs?limit=500", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.Set("user_id", "user-1")

	if err := handler.list(ctx); err != nil {
		t.Fatalf("list: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	var runs []models.Run
	if err := json.Unmarshal(rec.Body.Bytes(), &runs); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != models.RunStatusPosted {
		t.Fatalf("unexpected runs: %+v", runs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPreviewReturnsStoredArticle(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	article := models.Article{Title: "Why onboarding matters", BodyMarkdown: "# body", Summary: "short"}
	payload, _ := json.Marshal(article)
	if err := rdb.Set(context.Background(), agent.PreviewKey("run-9"), payload, time.Hour).Err(); err != nil {
		t.Fatalf("seed preview: %v", err)
	}

	mock.ExpectQuery(`SELECT 1 FROM runs WHERE id=\$1 AND user_id=\$2`).
		WithArgs("run-9", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	handler := &RunsHandler{Store: &store.Store{DB: db}, Rdb: rdb}

	req := httptest.NewRequest(http.MethodGet, "/api/runs/run-9/preview", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.Set("user_id", "user-1")
	ctx.SetParamNames("id")
	ctx.SetParamValues("run-9")

	if err := handler.preview(ctx); err != nil {
		t.Fatalf("preview: %v", err)
	}
	var resp PreviewResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.RunID != "run-9" || resp.BodyMarkdown != "# body" || resp.Title != "Why onboarding matters" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPreviewMissing(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	mock.ExpectQuery(`SELECT 1 FROM runs WHERE id=\$1 AND user_id=\$2`).
		WithArgs("run-404", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	handler := &RunsHandler{Store: &store.Store{DB: db}, Rdb: rdb}

	req := httptest.NewRequest(http.MethodGet, "/api/runs/run-404/preview", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.Set("user_id", "user-1")
	ctx.SetParamNames("id")
	ctx.SetParamValues("run-404")

	err = handler.preview(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestPreviewHiddenForOtherUsersRun(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	// the preview exists, but the run belongs to someone else
	article := models.Article{Title: "Draft", BodyMarkdown: "# secret", Summary: "s"}
	payload, _ := json.Marshal(article)
	if err := rdb.Set(context.Background(), agent.PreviewKey("run-9"), payload, time.Hour).Err(); err != nil {
		t.Fatalf("seed preview: %v", err)
	}

	mock.ExpectQuery(`SELECT 1 FROM runs WHERE id=\$1 AND user_id=\$2`).
		WithArgs("run-9", "user-2").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	handler := &RunsHandler{Store: &store.Store{DB: db}, Rdb: rdb}

	req := httptest.NewRequest(http.MethodGet, "/api/runs/run-9/preview", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.Set("user_id", "user-2")
	ctx.SetParamNames("id")
	ctx.SetParamValues("run-9")

	err = handler.preview(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
