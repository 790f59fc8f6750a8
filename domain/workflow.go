package domain

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Status is one workflow state. Rank controls column order on the board.
type Status struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Rank int    `json:"rank"`
}

// Priority is one severity level. Icon is the slug the frontend maps to an
// asset.
type Priority struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// Workflow holds the fixed status and priority tables. It is built once at
// process start and never mutated afterwards.
type Workflow struct {
	statuses   []Status
	priorities []Priority
	statusIdx  map[int]Status
	prioIdx    map[int]Priority
}

// DefaultWorkflow returns the deployment's built-in tables: three workflow
// states and the eight Jira-style severity levels.
func DefaultWorkflow() *Workflow {
	w, err := NewWorkflow(
		[]Status{
			{ID: 1, Name: "To Do", Rank: 1},
			{ID: 2, Name: "In Progress", Rank: 2},
			{ID: 3, Name: "Done", Rank: 3},
		},
		[]Priority{
			{ID: 1, Name: "Blocker", Icon: "blocker"},
			{ID: 2, Name: "Critical", Icon: "critical"},
			{ID: 3, Name: "Major", Icon: "major"},
			{ID: 4, Name: "Highest", Icon: "highest"},
			{ID: 5, Name: "High", Icon: "high"},
			{ID: 6, Name: "Medium", Icon: "medium"},
			{ID: 7, Name: "Low", Icon: "low"},
			{ID: 8, Name: "Lowest", Icon: "lowest"},
		},
	)
	if err != nil {
		panic(err)
	}
	return w
}

// NewWorkflow validates and builds a workflow from explicit tables.
func NewWorkflow(statuses []Status, priorities []Priority) (*Workflow, error) {
	if len(statuses) == 0 {
		return nil, fmt.Errorf("workflow: at least one status required")
	}
	if len(priorities) == 0 {
		return nil, fmt.Errorf("workflow: at least one priority required")
	}
	w := &Workflow{
		statuses:   append([]Status(nil), statuses...),
		priorities: append([]Priority(nil), priorities...),
		statusIdx:  make(map[int]Status, len(statuses)),
		prioIdx:    make(map[int]Priority, len(priorities)),
	}
	sort.SliceStable(w.statuses, func(i, j int) bool { return w.statuses[i].Rank < w.statuses[j].Rank })
	for _, s := range w.statuses {
		if _, dup := w.statusIdx[s.ID]; dup {
			return nil, fmt.Errorf("workflow: duplicate status id %d", s.ID)
		}
		w.statusIdx[s.ID] = s
	}
	for _, p := range w.priorities {
		if _, dup := w.prioIdx[p.ID]; dup {
			return nil, fmt.Errorf("workflow: duplicate priority id %d", p.ID)
		}
		w.prioIdx[p.ID] = p
	}
	return w, nil
}

// LoadWorkflow reads status/priority tables from a JSON file. Used when a
// deployment overrides the defaults.
func LoadWorkflow(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg struct {
		Statuses   []Status   `json:"statuses"`
		Priorities []Priority `json:"priorities"`
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("workflow config %s: %w", path, err)
	}
	return NewWorkflow(cfg.Statuses, cfg.Priorities)
}

// Statuses returns the status table in display order.
func (w *Workflow) Statuses() []Status {
	return append([]Status(nil), w.statuses...)
}

// Priorities returns the priority table.
func (w *Workflow) Priorities() []Priority {
	return append([]Priority(nil), w.priorities...)
}

// StatusByID looks up a status by its stable identifier.
func (w *Workflow) StatusByID(id int) (Status, bool) {
	s, ok := w.statusIdx[id]
	return s, ok
}

// PriorityByID looks up a priority by its stable identifier.
func (w *Workflow) PriorityByID(id int) (Priority, bool) {
	p, ok := w.prioIdx[id]
	return p, ok
}

// FirstStatus is the default state for new tasks.
func (w *Workflow) FirstStatus() Status {
	return w.statuses[0]
}

// DefaultPriority is the priority assigned when a draft does not set one.
// The built-in table uses "Low" (id 7); a custom table falls back to its
// last entry.
func (w *Workflow) DefaultPriority() Priority {
	if p, ok := w.prioIdx[7]; ok {
		return p
	}
	return w.priorities[len(w.priorities)-1]
}
