package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"sprintboard/domain"
)

type nopStore struct{}

func (nopStore) Save(context.Context, domain.Snapshot) error { return nil }
func (nopStore) Load(context.Context) (domain.Snapshot, bool, error) {
	return domain.Snapshot{}, false, nil
}

func newTestServer(t *testing.T, deduper Deduper) (*echo.Echo, *domain.Service) {
	t.Helper()
	logger := log.New()
	logger.SetOutput(io.Discard)

	svc := domain.NewService(nopStore{}, logger, domain.ServiceOptions{})
	t.Cleanup(svc.Close)

	e := echo.New()
	Register(e, svc, deduper, logger)
	return e, svc
}

func doJSON(e *echo.Echo, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestPostTaskCreates(t *testing.T) {
	e, _ := newTestServer(t, nil)

	rec := doJSON(e, http.MethodPost, "/api/tasks", `{"title":"Fix bug","points":3,"stage":"backlog"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var task domain.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &task); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if task.ID != 1 || task.Stage != domain.StageBacklog || task.Points != 3 {
		t.Fatalf("unexpected task: %+v", task)
	}
	if task.Description != "No description" || task.Priority != domain.PriorityMedium {
		t.Fatalf("defaults not applied: %+v", task)
	}
}

func TestPostTaskValidation(t *testing.T) {
	e, _ := newTestServer(t, nil)

	rec := doJSON(e, http.MethodPost, "/api/tasks", `{"title":"  "}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty title, got %d", rec.Code)
	}

	rec = doJSON(e, http.MethodPost, "/api/tasks", `{"title":"x","bogus":true}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestMoveTaskEndpoint(t *testing.T) {
	e, svc := newTestServer(t, nil)
	task, err := svc.AddTask(domain.TaskDraft{Title: "Fix bug"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := doJSON(e, http.MethodPost, "/api/tasks/1/move", `{"stage":"done"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var moved domain.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &moved); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if moved.ID != task.ID || moved.Stage != domain.StageDone {
		t.Fatalf("unexpected moved task: %+v", moved)
	}

	rec = doJSON(e, http.MethodPost, "/api/tasks/99/move", `{"stage":"done"}`, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown task, got %d", rec.Code)
	}

	rec = doJSON(e, http.MethodPost, "/api/tasks/1/move", `{"stage":"limbo"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown stage, got %d", rec.Code)
	}
}

func TestGetStageTasksFiltered(t *testing.T) {
	e, svc := newTestServer(t, nil)
	if _, err := svc.AddTask(domain.TaskDraft{Title: "Fix login bug", Sprint: "Sprint 3"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := svc.AddTask(domain.TaskDraft{Title: "Invoice export", Sprint: "Sprint 4"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := doJSON(e, http.MethodGet, "/api/board/backlog?search=bug&sprint=Sprint+3", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var tasks []domain.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &tasks); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "Fix login bug" {
		t.Fatalf("unexpected filtered tasks: %+v", tasks)
	}

	rec = doJSON(e, http.MethodGet, "/api/board/limbo", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown stage, got %d", rec.Code)
	}
}

func TestDeleteTaskEndpoint(t *testing.T) {
	e, svc := newTestServer(t, nil)
	if _, err := svc.AddTask(domain.TaskDraft{Title: "x"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := doJSON(e, http.MethodDelete, "/api/tasks/1", "", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	rec = doJSON(e, http.MethodGet, "/api/tasks/1", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestSprintStartEndpoint(t *testing.T) {
	e, svc := newTestServer(t, nil)

	rec := doJSON(e, http.MethodPost, "/api/sprint/start?sprint=Sprint+3", "", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for empty backlog, got %d", rec.Code)
	}

	if _, err := svc.AddTask(domain.TaskDraft{Title: "x", Sprint: "Sprint 3"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	rec = doJSON(e, http.MethodPost, "/api/sprint/start?sprint=Sprint+3", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp sprintStartResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Moved != 1 {
		t.Fatalf("expected 1 moved, got %d", resp.Moved)
	}
}

func TestReportEndpoint(t *testing.T) {
	e, svc := newTestServer(t, nil)
	task, _ := svc.AddTask(domain.TaskDraft{Title: "Fix bug", Points: 3})
	if _, err := svc.MoveTask(task.ID, domain.StageDone); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := doJSON(e, http.MethodGet, "/api/report", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var stats domain.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if stats.TotalTasks != 1 || stats.CompletedTasks != 1 || stats.CompletionRate != 100 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.TotalPoints != 3 || stats.CompletedPoints != 3 {
		t.Fatalf("unexpected points: %+v", stats)
	}
}

func TestCommentEndpoints(t *testing.T) {
	e, svc := newTestServer(t, nil)
	if _, err := svc.AddTask(domain.TaskDraft{Title: "x"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := doJSON(e, http.MethodPost, "/api/tasks/1/comments", `{"text":"looks good","author":"JS"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var comment domain.Comment
	if err := json.Unmarshal(rec.Body.Bytes(), &comment); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	rec = doJSON(e, http.MethodDelete, "/api/tasks/1/comments/999", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown comment, got %d", rec.Code)
	}
}

func TestMemberEndpoints(t *testing.T) {
	e, _ := newTestServer(t, nil)

	rec := doJSON(e, http.MethodPost, "/api/members", `{"name":"Jane Smith","role":"Engineer"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var member domain.Member
	if err := json.Unmarshal(rec.Body.Bytes(), &member); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if member.Initials != "JS" || member.ID == "" {
		t.Fatalf("unexpected member: %+v", member)
	}

	rec = doJSON(e, http.MethodDelete, "/api/members/"+member.ID, "", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	rec = doJSON(e, http.MethodDelete, "/api/members/"+member.ID, "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on double delete, got %d", rec.Code)
	}
}

func TestIdempotencyDedupe(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	e, _ := newTestServer(t, NewRedisDeduper(client, time.Minute))
	header := map[string]string{"Idempotency-Key": "abc-123"}

	rec := doJSON(e, http.MethodPost, "/api/tasks", `{"title":"once"}`, header)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(e, http.MethodPost, "/api/tasks", `{"title":"once"}`, header)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate key, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestIdempotencyKeyReleasedOnFailure(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	e, _ := newTestServer(t, NewRedisDeduper(client, time.Minute))
	header := map[string]string{"Idempotency-Key": "retry-me"}

	rec := doJSON(e, http.MethodPost, "/api/tasks", `{"title":"  "}`, header)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid task, got %d", rec.Code)
	}

	// the key was rolled back, so a corrected retry goes through
	rec = doJSON(e, http.MethodPost, "/api/tasks", `{"title":"fixed"}`, header)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected retry to pass after rollback, got %d: %s", rec.Code, rec.Body.String())
	}
}
