package tasks

import (
	"context"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
)

// rankStep is the gap left between neighbouring ranks so later insertions
// can take a midpoint without rewriting the column.
const rankStep = 1024

// Store abstracts the persistence operations the service needs.
type Store interface {
	ListTasks(ctx context.Context, userID string) ([]domain.Task, error)
	GetTask(ctx context.Context, userID, id string) (*domain.Task, error)
	InsertTask(ctx context.Context, t domain.Task) error
	MergeTask(ctx context.Context, upd domain.TaskUpdate) error
	DeleteTask(ctx context.Context, userID, id string) error
	EnqueueEvents(ctx context.Context, events []domain.Event) error
}

// Notifier announces board changes to interested listeners.
type Notifier interface {
	NotifyBoardChanged(ctx context.Context, userID string) error
}

// Service is the task repository: CRUD plus Move, with validation, owner
// scoping and the column-ordering rules enforced before anything reaches the
// store.
type Service struct {
	store    Store
	workflow *domain.Workflow
	notifier Notifier
	logger   *log.Logger
}

// NewService creates a Service. notifier may be nil when no change feed is
// wired.
func NewService(store Store, workflow *domain.Workflow, notifier Notifier, logger *log.Logger) *Service {
	if store == nil {
		panic("tasks.NewService: store is nil")
	}
	if workflow == nil {
		workflow = domain.DefaultWorkflow()
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Service{store: store, workflow: workflow, notifier: notifier, logger: logger}
}

// Workflow exposes the fixed status/priority tables.
func (s *Service) Workflow() *domain.Workflow { return s.workflow }

// List returns the owner's tasks in rank order with column positions filled.
func (s *Service) List(ctx context.Context, owner string) ([]domain.Task, error) {
	list, err := s.store.ListTasks(ctx, owner)
	if err != nil {
		return nil, err
	}
	return withPositions(list), nil
}

// Create validates the draft, applies workflow defaults and appends the task
// to the end of its column.
func (s *Service) Create(ctx context.Context, owner string, draft domain.Draft) (domain.Task, error) {
	title := strings.TrimSpace(draft.Title)
	if title == "" {
		return domain.Task{}, &domain.ValidationError{Field: "title", Reason: "must not be empty"}
	}

	statusID := draft.StatusID
	if statusID == 0 {
		statusID = s.workflow.FirstStatus().ID
	}
	if _, ok := s.workflow.StatusByID(statusID); !ok {
		return domain.Task{}, &domain.ValidationError{Field: "status_id", Reason: "unknown status"}
	}
	priorityID := draft.PriorityID
	if priorityID == 0 {
		priorityID = s.workflow.DefaultPriority().ID
	}
	if _, ok := s.workflow.PriorityByID(priorityID); !ok {
		return domain.Task{}, &domain.ValidationError{Field: "priority_id", Reason: "unknown priority"}
	}

	list, err := s.store.ListTasks(ctx, owner)
	if err != nil {
		return domain.Task{}, err
	}
	column := columnOf(list, statusID, "")

	t := domain.Task{
		ID:          uuid.NewString(),
		Title:       title,
		Description: draft.Description,
		StatusID:    statusID,
		PriorityID:  priorityID,
		UserID:      owner,
		Rank:        appendRank(column),
		Position:    len(column),
	}
	if err := s.store.InsertTask(ctx, t); err != nil {
		return domain.Task{}, err
	}
	s.emit(ctx, domain.TaskCreated, owner, t.ID, taskEventData{
		Title: t.Title, StatusID: t.StatusID, PriorityID: t.PriorityID, Position: t.Position,
	})
	return t, nil
}

// Get returns a single task with its column position. Tasks of other owners
// are indistinguishable from absent ones.
func (s *Service) Get(ctx context.Context, owner, id string) (domain.Task, error) {
	list, err := s.store.ListTasks(ctx, owner)
	if err != nil {
		return domain.Task{}, err
	}
	for _, t := range withPositions(list) {
		if t.ID == id {
			return t, nil
		}
	}
	return domain.Task{}, domain.ErrNotFound
}

// Update applies a partial patch. A status change through Update re-appends
// the task to the end of the new column; use Move for positional changes.
func (s *Service) Update(ctx context.Context, owner, id string, patch domain.Patch) (domain.Task, error) {
	if patch.Empty() {
		return domain.Task{}, &domain.ValidationError{Field: "patch", Reason: "no fields set"}
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return domain.Task{}, &domain.ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if patch.StatusID != nil {
		if _, ok := s.workflow.StatusByID(*patch.StatusID); !ok {
			return domain.Task{}, &domain.ValidationError{Field: "status_id", Reason: "unknown status"}
		}
	}
	if patch.PriorityID != nil {
		if _, ok := s.workflow.PriorityByID(*patch.PriorityID); !ok {
			return domain.Task{}, &domain.ValidationError{Field: "priority_id", Reason: "unknown priority"}
		}
	}

	current, err := s.store.GetTask(ctx, owner, id)
	if err != nil {
		return domain.Task{}, err
	}
	if current == nil {
		return domain.Task{}, domain.ErrNotFound
	}

	upd := domain.TaskUpdate{
		UserID:      owner,
		ID:          id,
		Title:       patch.Title,
		Description: patch.Description,
		StatusID:    patch.StatusID,
		PriorityID:  patch.PriorityID,
	}
	if patch.StatusID != nil && *patch.StatusID != current.StatusID {
		list, err := s.store.ListTasks(ctx, owner)
		if err != nil {
			return domain.Task{}, err
		}
		rank := appendRank(columnOf(list, *patch.StatusID, id))
		upd.Rank = &rank
	}
	if err := s.store.MergeTask(ctx, upd); err != nil {
		return domain.Task{}, err
	}
	s.emit(ctx, domain.TaskUpdated, owner, id, patch)
	return s.Get(ctx, owner, id)
}

// Delete removes the owner's task.
func (s *Service) Delete(ctx context.Context, owner, id string) error {
	current, err := s.store.GetTask(ctx, owner, id)
	if err != nil {
		return err
	}
	if current == nil {
		return domain.ErrNotFound
	}
	if err := s.store.DeleteTask(ctx, owner, id); err != nil {
		return err
	}
	s.emit(ctx, domain.TaskDeleted, owner, id, nil)
	return nil
}

// Move sets the task's status and column position in one atomic write. A
// move that lands the task exactly where it already is skips the store
// entirely.
func (s *Service) Move(ctx context.Context, owner, id string, statusID, position int) (domain.Task, error) {
	if _, ok := s.workflow.StatusByID(statusID); !ok {
		return domain.Task{}, &domain.ValidationError{Field: "status_id", Reason: "unknown status"}
	}
	if position < 0 {
		return domain.Task{}, &domain.ValidationError{Field: "position", Reason: "must not be negative"}
	}

	list, err := s.store.ListTasks(ctx, owner)
	if err != nil {
		return domain.Task{}, err
	}
	var moved *domain.Task
	for i := range list {
		if list[i].ID == id {
			moved = &list[i]
			break
		}
	}
	if moved == nil {
		return domain.Task{}, domain.ErrNotFound
	}

	column := columnOf(list, statusID, id)
	if position > len(column) {
		position = len(column)
	}
	if moved.StatusID == statusID && columnIndex(list, id) == position {
		out := *moved
		out.Position = position
		return out, nil
	}

	rank, ok := rankBetween(column, position)
	if !ok {
		// No gap left at the insertion point: renumber the target column,
		// keeping the moved task's own status+rank write last and atomic.
		rank, err = s.renumberColumn(ctx, owner, column, id, position)
		if err != nil {
			return domain.Task{}, err
		}
	}

	upd := domain.TaskUpdate{UserID: owner, ID: id, StatusID: &statusID, Rank: &rank}
	if err := s.store.MergeTask(ctx, upd); err != nil {
		return domain.Task{}, err
	}

	out := *moved
	out.StatusID = statusID
	out.Rank = rank
	out.Position = position
	s.emit(ctx, domain.TaskMoved, owner, id, domain.TaskMovedEventData{StatusID: statusID, Position: position})
	return out, nil
}

// renumberColumn rewrites the ranks of every task in the column so the moved
// task can take slot position. Returns the rank reserved for the moved task;
// the caller writes it together with the status change.
func (s *Service) renumberColumn(ctx context.Context, owner string, column []domain.Task, movedID string, position int) (int64, error) {
	reserved := int64(0)
	slot := 0
	for i := range column {
		if slot == position {
			reserved = int64(slot+1) * rankStep
			slot++
		}
		newRank := int64(slot+1) * rankStep
		if column[i].Rank != newRank {
			r := newRank
			upd := domain.TaskUpdate{UserID: owner, ID: column[i].ID, Rank: &r}
			if err := s.store.MergeTask(ctx, upd); err != nil {
				return 0, err
			}
		}
		slot++
	}
	if reserved == 0 {
		reserved = int64(slot+1) * rankStep
	}
	s.logger.WithFields(log.Fields{"owner": owner, "task": movedID, "column_size": len(column)}).
		Debug("column ranks renumbered")
	return reserved, nil
}

type taskEventData struct {
	Title      string `json:"title"`
	StatusID   int    `json:"statusId"`
	PriorityID int    `json:"priorityId"`
	Position   int    `json:"position"`
}

// emit records a board event and pings the change feed. Failures are logged
// and swallowed: the mutation has already committed.
func (s *Service) emit(ctx context.Context, evType, owner, taskID string, data any) {
	ev, err := newEvent(evType, owner, taskID, data)
	if err != nil {
		s.logger.WithError(err).Warn("encode board event")
		return
	}
	if err := s.store.EnqueueEvents(ctx, []domain.Event{ev}); err != nil {
		s.logger.WithError(err).WithField("type", evType).Warn("enqueue board event")
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyBoardChanged(ctx, owner); err != nil {
			s.logger.WithError(err).Warn("notify board change")
		}
	}
}
