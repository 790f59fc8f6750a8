package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
)

type mockService struct {
	tasks   []domain.Task
	task    domain.Task
	err     error
	deleted []string

	lastDraft    domain.Draft
	lastPatch    domain.Patch
	lastMove     [2]int
	lastMoveID   string
	lastOwner    string
	updateCalled bool
}

func (m *mockService) List(ctx context.Context, owner string) ([]domain.Task, error) {
	m.lastOwner = owner
	return m.tasks, m.err
}

func (m *mockService) Create(ctx context.Context, owner string, draft domain.Draft) (domain.Task, error) {
	m.lastOwner = owner
	m.lastDraft = draft
	return m.task, m.err
}

func (m *mockService) Get(ctx context.Context, owner, id string) (domain.Task, error) {
	m.lastOwner = owner
	return m.task, m.err
}

func (m *mockService) Update(ctx context.Context, owner, id string, patch domain.Patch) (domain.Task, error) {
	m.lastOwner = owner
	m.lastPatch = patch
	m.updateCalled = true
	return m.task, m.err
}

func (m *mockService) Delete(ctx context.Context, owner, id string) error {
	m.lastOwner = owner
	m.deleted = append(m.deleted, id)
	return m.err
}

func (m *mockService) Move(ctx context.Context, owner, id string, statusID, position int) (domain.Task, error) {
	m.lastOwner = owner
	m.lastMoveID = id
	m.lastMove = [2]int{statusID, position}
	return m.task, m.err
}

type mockAuth struct{ userID string }

func (a mockAuth) UserIDFromAuthHeader(string) (string, error) {
	if a.userID == "" {
		return "", errors.New("bad token")
	}
	return a.userID, nil
}

func newTestServer(svc TaskService, auth Authenticator) *echo.Echo {
	e := echo.New()
	logger := log.New()
	Register(e, svc, auth, logger)
	return e
}

func doJSON(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(echo.HeaderAuthorization, "Bearer h.p.s")
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestGetTasksRequiresUserID(t *testing.T) {
	e := newTestServer(&mockService{}, mockAuth{userID: "u1"})
	rec := doJSON(e, http.MethodGet, "/tasks", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetTasksOwnerMismatchForbidden(t *testing.T) {
	e := newTestServer(&mockService{}, mockAuth{userID: "u1"})
	rec := doJSON(e, http.MethodGet, "/tasks?user_id=other", "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestGetTasksReturnsOrderedList(t *testing.T) {
	svc := &mockService{tasks: []domain.Task{
		{ID: "1", Title: "first", StatusID: 1, Position: 0},
		{ID: "2", Title: "second", StatusID: 1, Position: 1},
	}}
	e := newTestServer(svc, mockAuth{userID: "u1"})
	rec := doJSON(e, http.MethodGet, "/tasks?user_id=u1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got []domain.Task
	if err := sonic.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[0].ID != "1" || got[1].Position != 1 {
		t.Fatalf("unexpected body: %+v", got)
	}
	if svc.lastOwner != "u1" {
		t.Fatalf("expected owner scope u1, got %q", svc.lastOwner)
	}
}

func TestGetTasksUnauthorized(t *testing.T) {
	e := newTestServer(&mockService{}, mockAuth{})
	rec := doJSON(e, http.MethodGet, "/tasks?user_id=u1", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestPostTaskCreates(t *testing.T) {
	svc := &mockService{task: domain.Task{ID: "t1", Title: "Fix bug", StatusID: 1, PriorityID: 7}}
	e := newTestServer(svc, mockAuth{userID: "u1"})
	rec := doJSON(e, http.MethodPost, "/tasks", `{"title":"Fix bug","user_id":"u1"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.lastDraft.Title != "Fix bug" {
		t.Fatalf("unexpected draft: %+v", svc.lastDraft)
	}
}

func TestPostTaskMissingUserID(t *testing.T) {
	e := newTestServer(&mockService{}, mockAuth{userID: "u1"})
	rec := doJSON(e, http.MethodPost, "/tasks", `{"title":"Fix bug"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestPostTaskForeignUserForbidden(t *testing.T) {
	e := newTestServer(&mockService{}, mockAuth{userID: "u1"})
	rec := doJSON(e, http.MethodPost, "/tasks", `{"title":"x","user_id":"other"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestPostTaskValidationError(t *testing.T) {
	svc := &mockService{err: &domain.ValidationError{Field: "title", Reason: "must not be empty"}}
	e := newTestServer(svc, mockAuth{userID: "u1"})
	rec := doJSON(e, http.MethodPost, "/tasks", `{"title":"","user_id":"u1"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetTaskNotFound(t *testing.T) {
	svc := &mockService{err: domain.ErrNotFound}
	e := newTestServer(svc, mockAuth{userID: "u1"})
	rec := doJSON(e, http.MethodGet, "/tasks/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestPutTaskRequiresTitleAndStatus(t *testing.T) {
	e := newTestServer(&mockService{}, mockAuth{userID: "u1"})
	rec := doJSON(e, http.MethodPut, "/tasks/t1", `{"description":"only"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestPutTaskUpdates(t *testing.T) {
	svc := &mockService{}
	e := newTestServer(svc, mockAuth{userID: "u1"})
	rec := doJSON(e, http.MethodPut, "/tasks/t1", `{"title":"new","status_id":2,"priority_id":3,"description":"d"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !svc.updateCalled || svc.lastPatch.Title == nil || *svc.lastPatch.StatusID != 2 {
		t.Fatalf("unexpected patch: %+v", svc.lastPatch)
	}
	if !strings.Contains(rec.Body.String(), "Task updated successfully") {
		t.Fatalf("expected message body, got %s", rec.Body.String())
	}
}

func TestDeleteTask(t *testing.T) {
	svc := &mockService{}
	e := newTestServer(svc, mockAuth{userID: "u1"})
	rec := doJSON(e, http.MethodDelete, "/tasks/t1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(svc.deleted) != 1 || svc.deleted[0] != "t1" {
		t.Fatalf("unexpected deletes: %v", svc.deleted)
	}

	svc.err = domain.ErrNotFound
	rec = doJSON(e, http.MethodDelete, "/tasks/t1", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestMoveTask(t *testing.T) {
	svc := &mockService{task: domain.Task{ID: "t1", StatusID: 2, Position: 1}}
	e := newTestServer(svc, mockAuth{userID: "u1"})
	rec := doJSON(e, http.MethodPost, "/tasks/t1/move", `{"status_id":2,"position":1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.lastMoveID != "t1" || svc.lastMove != [2]int{2, 1} {
		t.Fatalf("unexpected move args: id=%s args=%v", svc.lastMoveID, svc.lastMove)
	}
}

func TestMoveTaskTransientFailure(t *testing.T) {
	svc := &mockService{err: &domain.TransientError{Op: "merge task", Err: errors.New("down")}}
	e := newTestServer(svc, mockAuth{userID: "u1"})
	rec := doJSON(e, http.MethodPost, "/tasks/t1/move", `{"status_id":2,"position":0}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestMoveTaskRejectsUnknownFields(t *testing.T) {
	e := newTestServer(&mockService{}, mockAuth{userID: "u1"})
	rec := doJSON(e, http.MethodPost, "/tasks/t1/move", `{"status_id":2,"bogus":true}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	e := newTestServer(&mockService{}, mockAuth{userID: "u1"})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}
