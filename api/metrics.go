package api

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// taskRequestMetrics accumulates per-stage timings for one /tasks request and
// emits them as a single structured log line when the request finishes.
type taskRequestMetrics struct {
	logger        *log.Logger
	start         time.Time
	stages        map[string]time.Duration
	tasksReturned int
	errorStage    string
}

func newTaskRequestMetrics(logger *log.Logger) *taskRequestMetrics {
	return &taskRequestMetrics{
		logger: logger,
		start:  time.Now(),
		stages: make(map[string]time.Duration, 3),
	}
}

// Observe records how long a named stage took. Zero and negative durations
// are dropped.
func (m *taskRequestMetrics) Observe(stage string, d time.Duration) {
	if stage == "" || d <= 0 {
		return
	}
	m.stages[stage] += d
}

func (m *taskRequestMetrics) SetTasksReturned(count int) {
	if count < 0 {
		count = 0
	}
	m.tasksReturned = count
}

func (m *taskRequestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

func (m *taskRequestMetrics) Log(status int, err error) {
	if m == nil || m.logger == nil {
		return
	}

	fields := log.Fields{
		"route":          "/tasks",
		"status":         status,
		"total_ms":       durationToMillis(time.Since(m.start)),
		"tasks_returned": m.tasksReturned,
	}
	for stage, d := range m.stages {
		fields[stage+"_ms"] = durationToMillis(d)
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
	}
	if err != nil {
		fields["error"] = err.Error()
	}

	m.logger.WithFields(fields).Info("tasks.request.metrics")
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
