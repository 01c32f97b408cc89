package domain

// Snapshot is the serializable image of the whole board: one ordered task
// array per stage plus the member set. It is the unit the persistence layer
// saves and loads.
type Snapshot struct {
	Tasks   map[Stage][]Task `json:"tasks"`
	Members []Member         `json:"members"`
}

// Snapshot captures a deep copy of the current board state.
func (b *Board) Snapshot() Snapshot {
	snap := Snapshot{
		Tasks:   make(map[Stage][]Task, len(Stages)),
		Members: append([]Member(nil), b.members...),
	}
	for _, stage := range Stages {
		snap.Tasks[stage] = b.StageTasks(stage)
	}
	return snap
}

// Restore replaces the board state with the snapshot contents. Stored
// documents are treated leniently: stage keys outside the known pipeline are
// dropped, a missing stage key behaves as an empty bucket, duplicate task
// ids keep their first occurrence, and each task's stage field is forced to
// the bucket it was stored under. Id counters resume past the highest ids
// seen so restored sessions stay collision-free.
func (b *Board) Restore(snap Snapshot) {
	for _, stage := range Stages {
		b.buckets[stage] = nil
	}
	b.members = append([]Member(nil), snap.Members...)
	b.nextTaskID = 1
	b.nextEntryID = 1

	seen := make(map[int64]bool)
	for _, stage := range Stages {
		for _, stored := range snap.Tasks[stage] {
			if seen[stored.ID] {
				continue
			}
			seen[stored.ID] = true
			t := cloneTask(&stored)
			t.Stage = stage
			if t.ID >= b.nextTaskID {
				b.nextTaskID = t.ID + 1
			}
			for _, c := range t.Comments {
				if c.ID >= b.nextEntryID {
					b.nextEntryID = c.ID + 1
				}
			}
			for _, a := range t.ActivityLog {
				if a.ID >= b.nextEntryID {
					b.nextEntryID = a.ID + 1
				}
			}
			keep := t
			b.buckets[stage] = append(b.buckets[stage], &keep)
		}
	}
}
