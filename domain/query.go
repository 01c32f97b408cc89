package domain

import "strings"

// Filter is an explicit, immutable query parameter object. Read projections
// take it as an argument instead of the board holding ambient view state.
// Zero values and the All* sentinels disable the corresponding predicate;
// active predicates combine with AND semantics.
type Filter struct {
	// Search keeps tasks whose title or description contains the term
	// case-insensitively. Surrounding whitespace is ignored.
	Search string
	// Sprint keeps tasks whose sprint tag equals it exactly, unless it is
	// empty or AllSprints.
	Sprint string
	// Assignee keeps tasks whose assignee equals it exactly, unless it is
	// empty or AllAssignees.
	Assignee string
}

func (f Filter) searchActive() bool {
	return strings.TrimSpace(f.Search) != ""
}

func (f Filter) sprintActive() bool {
	return f.Sprint != "" && f.Sprint != AllSprints
}

func (f Filter) assigneeActive() bool {
	return f.Assignee != "" && f.Assignee != AllAssignees
}

func (f Filter) matches(t *Task) bool {
	if f.searchActive() {
		term := strings.ToLower(strings.TrimSpace(f.Search))
		if !strings.Contains(strings.ToLower(t.Title), term) &&
			!strings.Contains(strings.ToLower(t.Description), term) {
			return false
		}
	}
	if f.sprintActive() && t.Sprint != f.Sprint {
		return false
	}
	if f.assigneeActive() && t.Assignee != f.Assignee {
		return false
	}
	return true
}

// FilteredTasks returns a fresh derived view of one stage bucket with every
// active filter applied. It never mutates the board.
func (b *Board) FilteredTasks(stage Stage, f Filter) []Task {
	out := make([]Task, 0, len(b.buckets[stage]))
	for _, t := range b.buckets[stage] {
		if f.matches(t) {
			out = append(out, cloneTask(t))
		}
	}
	return out
}

// candidates collects task refs across all stages in board order, with the
// sprint and assignee filters applied. Search is a view concern and is not
// part of report candidate selection.
func (b *Board) candidates(f Filter) []*Task {
	scoped := Filter{Sprint: f.Sprint, Assignee: f.Assignee}
	var out []*Task
	for _, stage := range Stages {
		for _, t := range b.buckets[stage] {
			if scoped.matches(t) {
				out = append(out, t)
			}
		}
	}
	return out
}
