package domain

// Task represents a single board item owned by one user.
//
// Position is the task's index within its status column, derived from the
// persisted Rank when a list is read. Rank is the stored ordering key and is
// never exposed over the API.
type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	StatusID    int    `json:"status_id"`
	PriorityID  int    `json:"priority_id"`
	UserID      string `json:"user_id"`
	Position    int    `json:"position"`
	Rank        int64  `json:"-"`
}

// Draft carries the user-supplied fields for task creation. Zero values for
// StatusID and PriorityID select the workflow defaults.
type Draft struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	StatusID    int    `json:"status_id"`
	PriorityID  int    `json:"priority_id"`
}

// Patch carries partial updates for a task. Nil fields are left untouched.
type Patch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	StatusID    *int    `json:"status_id"`
	PriorityID  *int    `json:"priority_id"`
}

// Empty reports whether the patch would change nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.StatusID == nil && p.PriorityID == nil
}

// TaskUpdate carries a partial field set for a single stored task. All set
// fields are written in one merge operation, so a status change and its rank
// change are never observable separately.
type TaskUpdate struct {
	UserID      string
	ID          string
	Title       *string
	Description *string
	StatusID    *int
	PriorityID  *int
	Rank        *int64
}
