package tasks

import "taskboard-api/domain"

// withPositions fills Position for every task as its index within its status
// column. The input must already be in rank order.
func withPositions(list []domain.Task) []domain.Task {
	out := append([]domain.Task(nil), list...)
	counts := make(map[int]int)
	for i := range out {
		out[i].Position = counts[out[i].StatusID]
		counts[out[i].StatusID]++
	}
	return out
}

// columnOf returns the tasks of one status column in rank order, skipping
// excludeID (the task being moved).
func columnOf(list []domain.Task, statusID int, excludeID string) []domain.Task {
	var column []domain.Task
	for _, t := range list {
		if t.StatusID == statusID && t.ID != excludeID {
			column = append(column, t)
		}
	}
	return column
}

// columnIndex returns the task's current index within its own column, or -1
// when absent.
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

// appendRank is the rank for a task appended to the end of a column.
func appendRank(column []domain.Task) int64 {
	if len(column) == 0 {
		return rankStep
	}
	return column[len(column)-1].Rank + rankStep
}

// rankBetween finds a rank that slots a task into the column at idx. The
// second result is false when the neighbouring ranks leave no integer gap
// and the column needs renumbering.
func rankBetween(column []domain.Task, idx int) (int64, bool) {
	switch {
	case len(column) == 0:
		return rankStep, true
	case idx <= 0:
		first := column[0].Rank
		if first >= 2 {
			return first / 2, true
		}
		return 0, false
	case idx >= len(column):
		return column[len(column)-1].Rank + rankStep, true
	default:
		prev, next := column[idx-1].Rank, column[idx].Rank
		if next-prev >= 2 {
			return prev + (next-prev)/2, true
		}
		return 0, false
	}
}
