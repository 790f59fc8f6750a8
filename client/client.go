// Package client is the REST consumer of the task API. It implements
// board.Mover, so a board.Engine can commit drag gestures through it, and
// maps HTTP statuses back onto the domain error taxonomy so the engine's
// rollback logic sees the same errors the service raised.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/bytedance/sonic"

	"taskboard-api/domain"
)

const defaultTimeout = 30 * time.Second

// Client calls the task API on behalf of one authenticated user.
type Client struct {
	base   string
	token  string
	userID string
	http   *http.Client
}

// New creates a Client for the given API base URL, bearer token and owner.
func New(base, token, userID string) *Client {
	return &Client{
		base:   base,
		token:  token,
		userID: userID,
		http:   &http.Client{Timeout: defaultTimeout},
	}
}

// ListTasks fetches the owner's ordered task list.
func (c *Client) ListTasks(ctx context.Context) ([]domain.Task, error) {
	target := c.base + "/tasks?user_id=" + url.QueryEscape(c.userID)
	var tasks []domain.Task
	if err := c.do(ctx, http.MethodGet, target, nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// GetTask fetches a single task.
func (c *Client) GetTask(ctx context.Context, id string) (domain.Task, error) {
	var task domain.Task
	err := c.do(ctx, http.MethodGet, c.base+"/tasks/"+url.PathEscape(id), nil, &task)
	return task, err
}

// CreateTask creates a task for the owner.
func (c *Client) CreateTask(ctx context.Context, draft domain.Draft) (domain.Task, error) {
	body := struct {
		domain.Draft
		UserID string `json:"user_id"`
	}{Draft: draft, UserID: c.userID}
	var task domain.Task
	err := c.do(ctx, http.MethodPost, c.base+"/tasks", body, &task)
	return task, err
}

// UpdateTask replaces the task's editable fields.
func (c *Client) UpdateTask(ctx context.Context, id string, patch domain.Patch) error {
	return c.do(ctx, http.MethodPut, c.base+"/tasks/"+url.PathEscape(id), patch, nil)
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, c.base+"/tasks/"+url.PathEscape(id), nil, nil)
}

// Move persists a status+position change. Satisfies board.Mover.
func (c *Client) Move(ctx context.Context, id string, statusID, position int) (domain.Task, error) {
	body := struct {
		StatusID int `json:"status_id"`
		Position int `json:"position"`
	}{StatusID: statusID, Position: position}
	var task domain.Task
	err := c.do(ctx, http.MethodPost, c.base+"/tasks/"+url.PathEscape(id)+"/move", body, &task)
	return task, err
}

func (c *Client) do(ctx context.Context, method, target string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := sonic.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &domain.TransientError{Op: method + " " + target, Err: err}
	}
	defer resp.Body.Close()

	if err := errFromStatus(resp); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.TransientError{Op: "read response", Err: err}
	}
	return sonic.Unmarshal(data, out)
}

// errFromStatus translates the API's status codes back into the domain
// taxonomy the board engine reacts to.
func errFromStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusBadRequest:
		return &domain.ValidationError{Field: "request", Reason: apiErrorMessage(resp)}
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	case resp.StatusCode == http.StatusForbidden:
		return domain.ErrForbidden
	case resp.StatusCode == http.StatusUnauthorized:
		return errors.New("unauthorized")
	default:
		return &domain.TransientError{
			Op:  "task api",
			Err: fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}
}

func apiErrorMessage(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
	if err != nil {
		return resp.Status
	}
	var body struct {
		Error string `json:"error"`
	}
	if err := sonic.Unmarshal(data, &body); err != nil || body.Error == "" {
		return resp.Status
	}
	return body.Error
}
