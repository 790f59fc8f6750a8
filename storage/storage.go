package storage

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"taskboard-api/domain"
)

const edmInt64 = "Edm.Int64"

// Storage persists tasks in an Azure table partitioned by owner and publishes
// board events to a queue. Writes against a single entity are atomic, which
// is what makes the status+rank merge in MergeTask safe for moves.
type Storage struct {
	taskTable  *aztables.Client
	eventQueue *azqueue.QueueClient
	tracer     trace.Tracer
}

// New creates a Storage instance from the given connection string.
func New(connStr, tasksTable, eventQueue string) (*Storage, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	qc, err := azqueue.NewQueueClientFromConnectionString(connStr, eventQueue, nil)
	if err != nil {
		return nil, err
	}
	return &Storage{
		taskTable:  svc.NewClient(tasksTable),
		eventQueue: qc,
		tracer:     otel.Tracer("taskboard-api/storage"),
	}, nil
}

// taskEntity is the table representation of a task. Rank carries an explicit
// Edm.Int64 annotation so the table service preserves 64-bit precision.
type taskEntity struct {
	aztables.Entity
	Title       string `json:"Title"`
	Description string `json:"Description"`
	StatusID    int    `json:"StatusId"`
	PriorityID  int    `json:"PriorityId"`
	Rank        int64  `json:"Rank,string"`
	RankType    string `json:"Rank@odata.type"`
}

// taskMergeEntity carries the partial field set for a merge update.
type taskMergeEntity struct {
	aztables.Entity
	Title       *string `json:"Title,omitempty"`
	Description *string `json:"Description,omitempty"`
	StatusID    *int    `json:"StatusId,omitempty"`
	PriorityID  *int    `json:"PriorityId,omitempty"`
	Rank        *int64  `json:"Rank,omitempty,string"`
	RankType    *string `json:"Rank@odata.type,omitempty"`
}

func fromEntity(ent taskEntity) domain.Task {
	return domain.Task{
		ID:          ent.RowKey,
		Title:       ent.Title,
		Description: ent.Description,
		StatusID:    ent.StatusID,
		PriorityID:  ent.PriorityID,
		UserID:      ent.PartitionKey,
		Rank:        ent.Rank,
	}
}

// ListTasks retrieves all tasks for the provided owner, ordered by rank.
func (s *Storage) ListTasks(ctx context.Context, userID string) (tasks []domain.Task, err error) {
	ctx, span := s.tracer.Start(ctx, "storage.ListTasks")
	defer func() { endSpan(span, err) }()

	filter := partitionFilter(userID)
	pager := s.taskTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks = []domain.Task{}
	for pager.More() {
		resp, pageErr := pager.NextPage(ctx)
		if pageErr != nil {
			return nil, mapErr("list tasks", pageErr)
		}
		for _, raw := range resp.Entities {
			var ent taskEntity
			if err := json.Unmarshal(raw, &ent); err != nil {
				return nil, mapErr("decode task", err)
			}
			tasks = append(tasks, fromEntity(ent))
		}
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Rank != tasks[j].Rank {
			return tasks[i].Rank < tasks[j].Rank
		}
		return tasks[i].ID < tasks[j].ID
	})
	return tasks, nil
}

// GetTask retrieves a single task if present. A missing entity yields
// (nil, nil) so callers decide how absence propagates.
func (s *Storage) GetTask(ctx context.Context, userID, id string) (task *domain.Task, err error) {
	ctx, span := s.tracer.Start(ctx, "storage.GetTask")
	defer func() { endSpan(span, err) }()

	resp, getErr := s.taskTable.GetEntity(ctx, userID, id, nil)
	if getErr != nil {
		if isNotFound(getErr) {
			return nil, nil
		}
		return nil, mapErr("get task", getErr)
	}
	var ent taskEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return nil, mapErr("decode task", err)
	}
	t := fromEntity(ent)
	return &t, nil
}

// InsertTask adds a new task entity. The task id must not already exist.
func (s *Storage) InsertTask(ctx context.Context, t domain.Task) (err error) {
	ctx, span := s.tracer.Start(ctx, "storage.InsertTask")
	defer func() { endSpan(span, err) }()

	ent := taskEntity{
		Entity:      aztables.Entity{PartitionKey: t.UserID, RowKey: t.ID},
		Title:       t.Title,
		Description: t.Description,
		StatusID:    t.StatusID,
		PriorityID:  t.PriorityID,
		Rank:        t.Rank,
		RankType:    edmInt64,
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return mapErr("encode task", err)
	}
	if _, err := s.taskTable.AddEntity(ctx, payload, nil); err != nil {
		return mapErr("insert task", err)
	}
	return nil
}

// MergeTask writes the set fields of upd into the stored entity in a single
// merge operation. Returns domain.ErrNotFound when the entity is absent.
func (s *Storage) MergeTask(ctx context.Context, upd domain.TaskUpdate) (err error) {
	ctx, span := s.tracer.Start(ctx, "storage.MergeTask")
	defer func() { endSpan(span, err) }()

	ent := taskMergeEntity{
		Entity:      aztables.Entity{PartitionKey: upd.UserID, RowKey: upd.ID},
		Title:       upd.Title,
		Description: upd.Description,
		StatusID:    upd.StatusID,
		PriorityID:  upd.PriorityID,
		Rank:        upd.Rank,
	}
	if upd.Rank != nil {
		rt := edmInt64
		ent.RankType = &rt
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return mapErr("encode task update", err)
	}
	et := azcore.ETagAny
	_, mergeErr := s.taskTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{
		IfMatch:    &et,
		UpdateMode: aztables.UpdateModeMerge,
	})
	if mergeErr != nil {
		if isNotFound(mergeErr) {
			return domain.ErrNotFound
		}
		return mapErr("merge task", mergeErr)
	}
	return nil
}

// DeleteTask removes a task entity. Returns domain.ErrNotFound when absent.
func (s *Storage) DeleteTask(ctx context.Context, userID, id string) (err error) {
	ctx, span := s.tracer.Start(ctx, "storage.DeleteTask")
	defer func() { endSpan(span, err) }()

	if _, delErr := s.taskTable.DeleteEntity(ctx, userID, id, nil); delErr != nil {
		if isNotFound(delErr) {
			return domain.ErrNotFound
		}
		return mapErr("delete task", delErr)
	}
	return nil
}

// EnqueueEvents sends board events to the event queue.
func (s *Storage) EnqueueEvents(ctx context.Context, events []domain.Event) (err error) {
	ctx, span := s.tracer.Start(ctx, "storage.EnqueueEvents")
	defer func() { endSpan(span, err) }()

	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			return mapErr("encode event", err)
		}
		if _, err := s.eventQueue.EnqueueMessage(ctx, string(data), nil); err != nil {
			return mapErr("enqueue event", err)
		}
	}
	return nil
}

// partitionFilter builds the owner filter. Single quotes double per the OData
// string-literal rules, so an odd subject claim cannot break out of it.
func partitionFilter(userID string) string {
	return "PartitionKey eq '" + strings.ReplaceAll(userID, "'", "''") + "'"
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}

func mapErr(op string, err error) error {
	return &domain.TransientError{Op: op, Err: err}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}
