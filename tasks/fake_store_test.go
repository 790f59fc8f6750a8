package tasks

import (
	"context"
	"sort"
	"sync"

	"taskboard-api/domain"
)

// fakeStore is an in-memory Store with injectable failures, mirroring the
// single-entity merge semantics of the table store.
type fakeStore struct {
	mu     sync.Mutex
	tasks  map[string]map[string]domain.Task
	merges []domain.TaskUpdate
	events []domain.Event

	failList   error
	failMerge  error
	failInsert error
}

func newFakeStore() *fakeStore {
	return &fakeStore{tasks: make(map[string]map[string]domain.Task)}
}

func (f *fakeStore) ListTasks(ctx context.Context, userID string) ([]domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failList != nil {
		return nil, f.failList
	}
	var out []domain.Task
	for _, t := range f.tasks[userID] {
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank < out[j].Rank
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (f *fakeStore) GetTask(ctx context.Context, userID, id string) (*domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[userID][id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (f *fakeStore) InsertTask(ctx context.Context, t domain.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInsert != nil {
		return f.failInsert
	}
	if f.tasks[t.UserID] == nil {
		f.tasks[t.UserID] = make(map[string]domain.Task)
	}
	f.tasks[t.UserID][t.ID] = t
	return nil
}

func (f *fakeStore) MergeTask(ctx context.Context, upd domain.TaskUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failMerge != nil {
		return f.failMerge
	}
	t, ok := f.tasks[upd.UserID][upd.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if upd.Title != nil {
		t.Title = *upd.Title
	}
	if upd.Description != nil {
		t.Description = *upd.Description
	}
	if upd.StatusID != nil {
		t.StatusID = *upd.StatusID
	}
	if upd.PriorityID != nil {
		t.PriorityID = *upd.PriorityID
	}
	if upd.Rank != nil {
		t.Rank = *upd.Rank
	}
	f.tasks[upd.UserID][upd.ID] = t
	f.merges = append(f.merges, upd)
	return nil
}

func (f *fakeStore) DeleteTask(ctx context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tasks[userID][id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.tasks[userID], id)
	return nil
}

func (f *fakeStore) EnqueueEvents(ctx context.Context, events []domain.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, events...)
	return nil
}

func (f *fakeStore) mergeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.merges)
}

func (f *fakeStore) lastMerge() domain.TaskUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.merges[len(f.merges)-1]
}
