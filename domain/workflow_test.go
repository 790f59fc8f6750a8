package domain

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultWorkflowTables(t *testing.T) {
	w := DefaultWorkflow()

	statuses := w.Statuses()
	if len(statuses) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(statuses))
	}
	if statuses[0].Name != "To Do" || statuses[2].Name != "Done" {
		t.Fatalf("unexpected status order: %+v", statuses)
	}
	if len(w.Priorities()) != 8 {
		t.Fatalf("expected 8 priorities, got %d", len(w.Priorities()))
	}
	if w.FirstStatus().ID != 1 {
		t.Fatalf("expected first status id 1, got %d", w.FirstStatus().ID)
	}
	if p := w.DefaultPriority(); p.ID != 7 || p.Name != "Low" {
		t.Fatalf("expected default priority Low(7), got %+v", p)
	}
}

func TestWorkflowLookups(t *testing.T) {
	w := DefaultWorkflow()
	if _, ok := w.StatusByID(2); !ok {
		t.Fatal("status 2 should exist")
	}
	if _, ok := w.StatusByID(99); ok {
		t.Fatal("status 99 should not exist")
	}
	if p, ok := w.PriorityByID(1); !ok || p.Name != "Blocker" {
		t.Fatalf("expected Blocker for priority 1, got %+v ok=%v", p, ok)
	}
}

func TestNewWorkflowRejectsDuplicates(t *testing.T) {
	_, err := NewWorkflow(
		[]Status{{ID: 1, Name: "a", Rank: 1}, {ID: 1, Name: "b", Rank: 2}},
		[]Priority{{ID: 1, Name: "p"}},
	)
	if err == nil {
		t.Fatal("expected duplicate status id error")
	}
}

func TestLoadWorkflowFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workflow.json")
	cfg := `{
		"statuses": [
			{"id": 10, "name": "Backlog", "rank": 1},
			{"id": 20, "name": "Active", "rank": 2}
		],
		"priorities": [
			{"id": 1, "name": "Urgent", "icon": "urgent"},
			{"id": 2, "name": "Normal", "icon": "normal"}
		]
	}`
	if err := os.WriteFile(path, []byte(cfg), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	w, err := LoadWorkflow(path)
	if err != nil {
		t.Fatalf("load workflow: %v", err)
	}
	if w.FirstStatus().Name != "Backlog" {
		t.Fatalf("expected Backlog first, got %s", w.FirstStatus().Name)
	}
	if p := w.DefaultPriority(); p.Name != "Normal" {
		t.Fatalf("expected fallback default priority Normal, got %+v", p)
	}
}
