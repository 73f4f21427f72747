// Package tasks holds the ordering, filtering and overdue rules for a task list.
// Every function returns a fresh slice; callers' slices are never modified.
package tasks

import (
	"slices"
	"time"

	"tasks/internal/storage"
)

const (
	// AllCategories disables category filtering.
	AllCategories   = "All"
	DefaultCategory = "General"
)

// DefaultCategories is the built-in selector set. Configured categories are appended.
var DefaultCategories = []string{"General", "Work", "Personal", "Urgent"}

// Categories merges extra labels into the default set, dropping blanks and duplicates.
func Categories(extra []string) []string {
	out := slices.Clone(DefaultCategories)
	for _, c := range extra {
		if c == "" || c == AllCategories || slices.Contains(out, c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Entry is a task as displayed, with its overdue flag computed.
type Entry struct {
	storage.Task
	Overdue bool
}

// Sort orders by due date ascending with undated tasks last. Equal keys keep their order.
func Sort(list []storage.Task) []storage.Task {
	out := slices.Clone(list)
	slices.SortStableFunc(out, compareDue)
	return out
}

func compareDue(a, b storage.Task) int {
	switch {
	case a.DueDate == nil && b.DueDate == nil:
		return 0
	case a.DueDate == nil:
		return 1
	case b.DueDate == nil:
		return -1
	}
	return a.DueDate.Compare(*b.DueDate)
}

// Merge appends t, replacing any entry with the same ID, and re-sorts.
func Merge(list []storage.Task, t storage.Task) []storage.Task {
	out := make([]storage.Task, 0, len(list)+1)
	for _, existing := range list {
		if existing.ID != t.ID {
			out = append(out, existing)
		}
	}
	out = append(out, t)
	slices.SortStableFunc(out, compareDue)
	return out
}

// SetDone sets the done flag on the task with id. Order is unchanged.
func SetDone(list []storage.Task, id int64, done bool) []storage.Task {
	out := slices.Clone(list)
	for i := range out {
		if out[i].ID == id {
			out[i].Done = done
		}
	}
	return out
}

func Remove(list []storage.Task, id int64) []storage.Task {
	out := make([]storage.Task, 0, len(list))
	for _, t := range list {
		if t.ID != id {
			out = append(out, t)
		}
	}
	return out
}

func Find(list []storage.Task, id int64) (storage.Task, bool) {
	for _, t := range list {
		if t.ID == id {
			return t, true
		}
	}
	return storage.Task{}, false
}

// Filter keeps tasks whose category equals category exactly. AllCategories keeps everything.
func Filter(list []storage.Task, category string) []storage.Task {
	if category == AllCategories {
		return slices.Clone(list)
	}
	out := make([]storage.Task, 0, len(list))
	for _, t := range list {
		if t.Category != nil && *t.Category == category {
			out = append(out, t)
		}
	}
	return out
}

// Overdue reports whether t is unfinished and due before now's calendar day.
func Overdue(t storage.Task, now time.Time) bool {
	if t.DueDate == nil || t.Done {
		return false
	}
	return storage.Day(*t.DueDate).Before(storage.Day(now))
}

// View is the filtered list as displayed.
func View(list []storage.Task, category string, now time.Time) []Entry {
	filtered := Filter(list, category)
	out := make([]Entry, 0, len(filtered))
	for _, t := range filtered {
		out = append(out, Entry{Task: t, Overdue: Overdue(t, now)})
	}
	return out
}
