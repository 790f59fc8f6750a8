// Package board implements the drag-and-drop reconciliation engine: a
// confirmed task snapshot owned by the server, a tentative overlay mutated
// while a gesture is live, and an explicit commit/rollback step on release.
package board

import (
	"context"
	"errors"
	"math"
	"sync"

	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
)

// DragThreshold is the pointer travel, in pointer units, below which a
// release is a click (row-open) rather than a drag.
const DragThreshold = 10.0

// Phase is the engine's gesture state.
type Phase int

const (
	// Idle means no gesture is active.
	Idle Phase = iota
	// Dragging means a task is lifted and hover updates mutate the overlay.
	Dragging
	// Committing means a move call is in flight; new gestures are rejected
	// until it resolves.
	Committing
)

// ReleaseResult describes how a gesture ended.
type ReleaseResult int

const (
	// ReleaseClick: the pointer never travelled past the drag threshold.
	ReleaseClick ReleaseResult = iota
	// ReleaseNoop: the tentative placement equals the original; nothing
	// was persisted.
	ReleaseNoop
	// ReleaseCommitted: the move persisted and the confirmed snapshot now
	// includes it.
	ReleaseCommitted
	// ReleaseReverted: the move failed and the view rolled back to the
	// last confirmed snapshot.
	ReleaseReverted
)

var (
	ErrMoveInFlight  = errors.New("board: move already in flight")
	ErrGestureActive = errors.New("board: gesture already active")
	ErrNoGesture     = errors.New("board: no active gesture")
	ErrUnknownTask   = errors.New("board: unknown task")
)

// Mover persists a status+position change. Implemented by the REST client
// and, server-side, by tasks.Service.
type Mover interface {
	Move(ctx context.Context, id string, statusID, position int) (domain.Task, error)
}

type gesture struct {
	taskID       string
	originX      float64
	originY      float64
	active       bool
	origStatusID int
	origIndex    int
}

// Engine reconciles optimistic drag state against the authoritative store.
// Task order is the slice order; column position is the index among tasks
// sharing a status.
type Engine struct {
	mu        sync.Mutex
	mover     Mover
	logger    *log.Logger
	threshold float64

	phase     Phase
	confirmed []domain.Task
	overlay   []domain.Task
	gesture   *gesture
}

// NewEngine creates an Engine around the given mover.
func NewEngine(mover Mover, logger *log.Logger) *Engine {
	if mover == nil {
		panic("board.NewEngine: mover is nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Engine{mover: mover, logger: logger, threshold: DragThreshold}
}

// Load replaces the confirmed snapshot, e.g. after a list fetch or a stream
// update. A live gesture keeps its overlay; the fresh snapshot takes over
// once the gesture resolves.
func (e *Engine) Load(tasks []domain.Task) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.confirmed = snapshot(tasks)
	if e.gesture == nil && e.phase != Committing {
		e.overlay = nil
	}
}

// Phase returns the current gesture phase.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// Tasks returns the current view: the tentative overlay while a gesture or
// commit is active, the confirmed snapshot otherwise.
func (e *Engine) Tasks() []domain.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return withPositions(e.view())
}

// Columns groups the current view by status for board rendering.
func (e *Engine) Columns() map[int][]domain.Task {
	cols := make(map[int][]domain.Task)
	for _, t := range e.Tasks() {
		cols[t.StatusID] = append(cols[t.StatusID], t)
	}
	return cols
}

// PointerDown arms a gesture on the given task. It is rejected while a move
// is in flight: one in-flight move per session.
func (e *Engine) PointerDown(id string, x, y float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase == Committing {
		return ErrMoveInFlight
	}
	if e.gesture != nil {
		return ErrGestureActive
	}
	idx := indexOf(e.confirmed, id)
	if idx < 0 {
		return ErrUnknownTask
	}
	e.gesture = &gesture{
		taskID:       id,
		originX:      x,
		originY:      y,
		origStatusID: e.confirmed[idx].StatusID,
		origIndex:    columnIndex(e.confirmed, id),
	}
	e.overlay = snapshot(e.confirmed)
	return nil
}

// PointerMove reports whether the gesture has activated as a drag. The
// gesture activates once pointer travel reaches the threshold and stays
// active from then on.
func (e *Engine) PointerMove(x, y float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gesture == nil {
		return false
	}
	if !e.gesture.active {
		dx := x - e.gesture.originX
		dy := y - e.gesture.originY
		if math.Hypot(dx, dy) >= e.threshold {
			e.gesture.active = true
			e.phase = Dragging
		}
	}
	return e.gesture.active
}

// DragOver applies the hover placement to the overlay only. Hovering a task
// in another column adopts that column's status and inserts the source at
// the hovered index; hovering within the same column is a pure index move.
func (e *Engine) DragOver(overID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gesture == nil || !e.gesture.active {
		return ErrNoGesture
	}
	if overID == e.gesture.taskID {
		return nil
	}
	srcIdx := indexOf(e.overlay, e.gesture.taskID)
	overIdx := indexOf(e.overlay, overID)
	if srcIdx < 0 || overIdx < 0 {
		return ErrUnknownTask
	}
	target := overIdx
	if e.overlay[srcIdx].StatusID != e.overlay[overIdx].StatusID {
		e.overlay[srcIdx].StatusID = e.overlay[overIdx].StatusID
		// Removing the source shifts everything after it left by one, so a
		// downward cross-column insert must land before the hovered task to
		// take its column index.
		if srcIdx < overIdx {
			target = overIdx - 1
		}
	}
	e.overlay = arrayMove(e.overlay, srcIdx, target)
	return nil
}

// Release ends the gesture. A sub-threshold gesture is a click; a placement
// equal to the original short-circuits without a persistence call; anything
// else commits through the mover, rolling the view back on failure.
func (e *Engine) Release(ctx context.Context) (ReleaseResult, error) {
	e.mu.Lock()
	if e.gesture == nil {
		e.mu.Unlock()
		return 0, ErrNoGesture
	}
	g := e.gesture
	e.gesture = nil

	if !g.active {
		e.overlay = nil
		e.phase = Idle
		e.mu.Unlock()
		return ReleaseClick, nil
	}

	newStatusID, newIndex := placement(e.overlay, g.taskID)
	if newIndex < 0 || (newStatusID == g.origStatusID && newIndex == g.origIndex) {
		e.overlay = nil
		e.phase = Idle
		e.mu.Unlock()
		return ReleaseNoop, nil
	}

	// Overlay stays visible while the call is in flight; PointerDown is
	// rejected until it resolves.
	e.phase = Committing
	e.mu.Unlock()

	confirmed, err := e.mover.Move(ctx, g.taskID, newStatusID, newIndex)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.phase = Idle
	if err != nil {
		e.overlay = nil
		e.logger.WithError(err).WithFields(log.Fields{
			"task":     g.taskID,
			"status":   newStatusID,
			"position": newIndex,
		}).Warn("move rejected, reverting to confirmed state")
		return ReleaseReverted, err
	}

	e.confirmed = snapshot(e.overlay)
	if idx := indexOf(e.confirmed, confirmed.ID); idx >= 0 {
		e.confirmed[idx] = confirmed
	}
	e.overlay = nil
	return ReleaseCommitted, nil
}

func (e *Engine) view() []domain.Task {
	if e.overlay != nil && (e.gesture != nil || e.phase == Committing) {
		return e.overlay
	}
	return e.confirmed
}

func snapshot(tasks []domain.Task) []domain.Task {
	return append([]domain.Task(nil), tasks...)
}

func indexOf(list []domain.Task, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

func columnIndex(list []domain.Task, id string) int {
	counts := make(map[int]int)
	for _, t := range list {
		if t.ID == id {
			return counts[t.StatusID]
		}
		counts[t.StatusID]++
	}
	return -1
}

func placement(list []domain.Task, id string) (statusID, index int) {
	idx := indexOf(list, id)
	if idx < 0 {
		return 0, -1
	}
	return list[idx].StatusID, columnIndex(list, id)
}

func withPositions(list []domain.Task) []domain.Task {
	out := snapshot(list)
	counts := make(map[int]int)
	for i := range out {
		out[i].Position = counts[out[i].StatusID]
		counts[out[i].StatusID]++
	}
	return out
}

// arrayMove shifts the element at from to index to, preserving the relative
// order of everything else.
func arrayMove(list []domain.Task, from, to int) []domain.Task {
	out := snapshot(list)
	item := out[from]
	out = append(out[:from], out[from+1:]...)
	out = append(out[:to], append([]domain.Task{item}, out[to:]...)...)
	return out
}
