package domain

import (
	"strings"
	"time"
)

// Config tunes board-wide policy for task creation.
type Config struct {
	// RequireAssignee rejects task creation without an assignee. Team-aware
	// deployments turn this on.
	RequireAssignee bool
	// DefaultSprint tags new tasks created without an explicit sprint.
	DefaultSprint string
}

// Board is the canonical in-memory registry: one ordered task bucket per
// stage plus the team member set. A task id lives in exactly one bucket at
// any time and its Stage field always equals that bucket. Board performs no
// I/O; Service layers persistence on top.
type Board struct {
	cfg     Config
	buckets map[Stage][]*Task
	members []Member

	nextTaskID  int64
	nextEntryID int64

	now func() time.Time
}

// NewBoard creates an empty board.
func NewBoard(cfg Config) *Board {
	if cfg.DefaultSprint == "" || cfg.DefaultSprint == AllSprints {
		cfg.DefaultSprint = "Sprint 1"
	}
	b := &Board{
		cfg:         cfg,
		buckets:     make(map[Stage][]*Task, len(Stages)),
		nextTaskID:  1,
		nextEntryID: 1,
		now:         time.Now,
	}
	for _, s := range Stages {
		b.buckets[s] = nil
	}
	return b
}

// StageTasks returns a copy of the bucket for the given stage.
func (b *Board) StageTasks(stage Stage) []Task {
	bucket := b.buckets[stage]
	out := make([]Task, 0, len(bucket))
	for _, t := range bucket {
		out = append(out, cloneTask(t))
	}
	return out
}

// FindTask locates a task by id across every bucket.
func (b *Board) FindTask(id int64) (Task, Stage, error) {
	t, stage, _ := b.findRef(id)
	if t == nil {
		return Task{}, "", ErrTaskNotFound
	}
	return cloneTask(t), stage, nil
}

func (b *Board) findRef(id int64) (*Task, Stage, int) {
	for _, stage := range Stages {
		for i, t := range b.buckets[stage] {
			if t.ID == id {
				return t, stage, i
			}
		}
	}
	return nil, "", -1
}

// TaskDraft carries caller-supplied fields for task creation. Zero values
// fall back to board policy defaults.
type TaskDraft struct {
	Title       string
	Description string
	Priority    Priority
	Assignee    string
	Label       Label
	Points      int
	Stage       Stage
	Sprint      string
	DueDate     *time.Time
}

// AddTask validates the draft, assigns a fresh id, applies field defaults,
// appends the task to the target bucket tail and records the creation in the
// activity ledger.
func (b *Board) AddTask(d TaskDraft) (Task, error) {
	if strings.TrimSpace(d.Title) == "" {
		return Task{}, validationErr("title", "must not be empty")
	}
	if b.cfg.RequireAssignee && strings.TrimSpace(d.Assignee) == "" {
		return Task{}, validationErr("assignee", "must not be empty")
	}
	if d.Stage == "" {
		d.Stage = StageBacklog
	}
	if !d.Stage.Valid() {
		return Task{}, validationErr("stage", "unknown stage "+string(d.Stage))
	}
	if d.Description == "" {
		d.Description = "No description"
	}
	if d.Priority == "" {
		d.Priority = PriorityMedium
	}
	if d.Label == "" {
		d.Label = LabelAccounts
	}
	if d.Points == 0 {
		d.Points = 2
	}
	if d.Points < 0 {
		return Task{}, validationErr("points", "must not be negative")
	}
	if d.Sprint == "" || d.Sprint == AllSprints {
		d.Sprint = b.cfg.DefaultSprint
	}

	now := b.now()
	t := &Task{
		ID:          b.nextTask(),
		Title:       d.Title,
		Description: d.Description,
		Priority:    d.Priority,
		Assignee:    d.Assignee,
		Label:       d.Label,
		Points:      d.Points,
		Stage:       d.Stage,
		Sprint:      d.Sprint,
		DueDate:     d.DueDate,
		CreatedAt:   now,
	}
	b.appendActivity(t, "Task created", "Task created by "+displayAssignee(t.Assignee))
	b.buckets[d.Stage] = append(b.buckets[d.Stage], t)
	return cloneTask(t), nil
}

// MoveTask moves a task to the target stage: remove from the current bucket,
// update the stage field, append to the target bucket tail. Moving a task to
// the stage it already occupies is a no-op. This is the only code path that
// changes a task's stage.
func (b *Board) MoveTask(id int64, target Stage) (Task, error) {
	if !target.Valid() {
		return Task{}, validationErr("stage", "unknown stage "+string(target))
	}
	t, current, idx := b.findRef(id)
	if t == nil {
		return Task{}, ErrTaskNotFound
	}
	if current == target {
		return cloneTask(t), nil
	}
	b.buckets[current] = append(b.buckets[current][:idx], b.buckets[current][idx+1:]...)
	t.Stage = target
	b.appendActivity(t, "Stage changed", "Stage changed to "+string(target))
	b.buckets[target] = append(b.buckets[target], t)
	return cloneTask(t), nil
}

// TaskPatch carries optional field updates. Nil fields are left untouched.
// Stage is deliberately absent; stage only changes through MoveTask.
type TaskPatch struct {
	Title       *string
	Description *string
	Priority    *Priority
	Assignee    *string
	Points      *int
	Label       *Label
	Sprint      *string
	DueDate     *time.Time
}

// UpdateTask applies a field-level patch to the task with the given id. The
// task is located by scanning the buckets; its stage never changes here.
func (b *Board) UpdateTask(id int64, p TaskPatch) (Task, error) {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return Task{}, validationErr("title", "must not be empty")
	}
	if p.Priority != nil {
		if _, ok := ParsePriority(string(*p.Priority)); !ok {
			return Task{}, validationErr("priority", "unknown priority "+string(*p.Priority))
		}
	}
	if p.Label != nil {
		if _, ok := ParseLabel(string(*p.Label)); !ok {
			return Task{}, validationErr("label", "unknown label "+string(*p.Label))
		}
	}
	if p.Points != nil && *p.Points < 0 {
		return Task{}, validationErr("points", "must not be negative")
	}
	t, _, _ := b.findRef(id)
	if t == nil {
		return Task{}, ErrTaskNotFound
	}
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Assignee != nil {
		t.Assignee = *p.Assignee
	}
	if p.Points != nil {
		t.Points = *p.Points
	}
	if p.Label != nil {
		t.Label = *p.Label
	}
	if p.Sprint != nil {
		t.Sprint = *p.Sprint
	}
	if p.DueDate != nil {
		due := *p.DueDate
		t.DueDate = &due
	}
	return cloneTask(t), nil
}

// DeleteTask removes the task from its bucket. Comments and activity go with
// it; there is no tombstone.
func (b *Board) DeleteTask(id int64) error {
	t, stage, idx := b.findRef(id)
	if t == nil {
		return ErrTaskNotFound
	}
	b.buckets[stage] = append(b.buckets[stage][:idx], b.buckets[stage][idx+1:]...)
	return nil
}

// LikeTask increments the like counter and records the event.
func (b *Board) LikeTask(id int64) (Task, error) {
	t, _, _ := b.findRef(id)
	if t == nil {
		return Task{}, ErrTaskNotFound
	}
	t.Likes++
	b.appendActivity(t, "Task liked", "Task received a like")
	return cloneTask(t), nil
}

// AddComment appends a comment to the task and records a matching activity
// entry.
func (b *Board) AddComment(taskID int64, text, author string) (Comment, error) {
	if strings.TrimSpace(text) == "" {
		return Comment{}, validationErr("text", "must not be empty")
	}
	if strings.TrimSpace(author) == "" {
		return Comment{}, validationErr("author", "must not be empty")
	}
	t, _, _ := b.findRef(taskID)
	if t == nil {
		return Comment{}, ErrTaskNotFound
	}
	c := Comment{
		ID:        b.nextEntry(),
		Author:    author,
		Text:      text,
		CreatedAt: b.now(),
	}
	t.Comments = append(t.Comments, c)
	b.appendActivity(t, "Comment added", author+" added a comment")
	return c, nil
}

// DeleteComment removes the comment with the given id from the task and
// records the removal in the activity ledger.
func (b *Board) DeleteComment(taskID, commentID int64) error {
	t, _, _ := b.findRef(taskID)
	if t == nil {
		return ErrTaskNotFound
	}
	for i, c := range t.Comments {
		if c.ID == commentID {
			t.Comments = append(t.Comments[:i], t.Comments[i+1:]...)
			b.appendActivity(t, "Comment removed", c.Author+"'s comment was removed")
			return nil
		}
	}
	return ErrCommentNotFound
}

func (b *Board) nextTask() int64 {
	id := b.nextTaskID
	b.nextTaskID++
	return id
}

func (b *Board) nextEntry() int64 {
	id := b.nextEntryID
	b.nextEntryID++
	return id
}

func (b *Board) appendActivity(t *Task, message, details string) {
	t.ActivityLog = append(t.ActivityLog, Activity{
		ID:        b.nextEntry(),
		Message:   message,
		Details:   details,
		Timestamp: b.now(),
	})
}

func displayAssignee(assignee string) string {
	if strings.TrimSpace(assignee) == "" {
		return "unassigned"
	}
	return assignee
}

func cloneTask(t *Task) Task {
	out := *t
	if t.Comments != nil {
		out.Comments = append([]Comment(nil), t.Comments...)
	}
	if t.ActivityLog != nil {
		out.ActivityLog = append([]Activity(nil), t.ActivityLog...)
	}
	if t.DueDate != nil {
		due := *t.DueDate
		out.DueDate = &due
	}
	return out
}
