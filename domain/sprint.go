package domain

// StartSprint moves every backlog task matching the sprint and assignee
// filters into the todo stage and returns the number moved. When no backlog
// task matches, it reports ErrEmptyBacklog and leaves every bucket
// unchanged.
func (b *Board) StartSprint(f Filter) (int, error) {
	scoped := Filter{Sprint: f.Sprint, Assignee: f.Assignee}
	var ids []int64
	for _, t := range b.buckets[StageBacklog] {
		if scoped.matches(t) {
			ids = append(ids, t.ID)
		}
	}
	if len(ids) == 0 {
		return 0, ErrEmptyBacklog
	}
	for _, id := range ids {
		if _, err := b.MoveTask(id, StageTodo); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}
