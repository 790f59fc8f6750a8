package api

import (
	"context"

	"taskboard-api/domain"
)

// TaskService abstracts the task repository for handlers.
type TaskService interface {
	List(ctx context.Context, owner string) ([]domain.Task, error)
	Create(ctx context.Context, owner string, draft domain.Draft) (domain.Task, error)
	Get(ctx context.Context, owner, id string) (domain.Task, error)
	Update(ctx context.Context, owner, id string, patch domain.Patch) (domain.Task, error)
	Delete(ctx context.Context, owner, id string) error
	Move(ctx context.Context, owner, id string, statusID, position int) (domain.Task, error)
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

type createTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	StatusID    int    `json:"status_id"`
	PriorityID  int    `json:"priority_id"`
	UserID      string `json:"user_id"`
}

type updateTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	StatusID    int    `json:"status_id"`
	PriorityID  int    `json:"priority_id"`
}

type moveTaskRequest struct {
	StatusID int `json:"status_id"`
	Position int `json:"position"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}
