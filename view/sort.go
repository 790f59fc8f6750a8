// Package view holds read-only projections over an already-fetched task
// snapshot. Nothing here touches the repository.
package view

import (
	"sort"

	"taskboard-api/domain"
)

// Direction is a sort direction that flips on each toggle.
type Direction int

const (
	Asc Direction = iota
	Desc
)

// Toggle returns the opposite direction.
func (d Direction) Toggle() Direction {
	if d == Asc {
		return Desc
	}
	return Asc
}

// SortByPriority returns a copy of tasks ordered by priority id. Equal keys
// keep their snapshot order.
func SortByPriority(tasks []domain.Task, dir Direction) []domain.Task {
	return sortBy(tasks, dir, func(t domain.Task) int { return t.PriorityID })
}

// SortByStatus returns a copy of tasks ordered by status id. Equal keys keep
// their snapshot order.
func SortByStatus(tasks []domain.Task, dir Direction) []domain.Task {
	return sortBy(tasks, dir, func(t domain.Task) int { return t.StatusID })
}

func sortBy(tasks []domain.Task, dir Direction, key func(domain.Task) int) []domain.Task {
	out := append([]domain.Task(nil), tasks...)
	sort.SliceStable(out, func(i, j int) bool {
		if dir == Asc {
			return key(out[i]) < key(out[j])
		}
		return key(out[i]) > key(out[j])
	})
	return out
}
