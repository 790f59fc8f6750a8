package domain

import "encoding/json"

const (
	TaskCreated = "task-created"
	TaskUpdated = "task-updated"
	TaskMoved   = "task-moved"
	TaskDeleted = "task-deleted"
)

// Event records a board change for downstream consumers (activity feed,
// stream fan-out). Events are advisory: emitting one never blocks or fails
// the mutation that produced it.
type Event struct {
	ID         string          `json:"Id"`
	EntityID   string          `json:"EntityId"`
	EntityType string          `json:"EntityType"`
	Type       string          `json:"Type"`
	Data       json.RawMessage `json:"Data"`
	Time       int64           `json:"Time"`
	UserID     string          `json:"UserId"`
}

// TaskMovedEventData is the payload of a task-moved event.
type TaskMovedEventData struct {
	StatusID int `json:"statusId"`
	Position int `json:"position"`
}
