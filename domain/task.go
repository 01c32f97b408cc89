package domain

import "time"

// Stage is one discrete pipeline position a task occupies. The wire values
// match the stored board document keys.
type Stage string

const (
	StageBacklog    Stage = "backlog"
	StageTodo       Stage = "todo"
	StageInProgress Stage = "inProgress"
	StageReview     Stage = "review"
	StageDone       Stage = "done"
)

// Stages lists every pipeline stage in board order. Scans over the whole
// board iterate in this order so derived views stay deterministic.
var Stages = []Stage{StageBacklog, StageTodo, StageInProgress, StageReview, StageDone}

// ParseStage validates a raw stage value.
func ParseStage(s string) (Stage, bool) {
	for _, st := range Stages {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Valid reports whether the stage is one of the known pipeline positions.
func (s Stage) Valid() bool {
	_, ok := ParseStage(string(s))
	return ok
}

// Priority is a task urgency level.
type Priority string

const (
	PriorityCritical Priority = "Critical"
	PriorityHigh     Priority = "High"
	PriorityMedium   Priority = "Medium"
	PriorityLow      Priority = "Low"
)

// ParsePriority validates a raw priority value.
func ParsePriority(s string) (Priority, bool) {
	switch Priority(s) {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return Priority(s), true
	}
	return "", false
}

// Label is a task category tag.
type Label string

const (
	LabelBilling  Label = "BILLING"
	LabelAccounts Label = "ACCOUNTS"
	LabelForms    Label = "FORMS"
	LabelFeedback Label = "FEEDBACK"
)

// ParseLabel validates a raw label value.
func ParseLabel(s string) (Label, bool) {
	switch Label(s) {
	case LabelBilling, LabelAccounts, LabelForms, LabelFeedback:
		return Label(s), true
	}
	return "", false
}

// AllSprints is the sentinel sprint filter matching every sprint tag.
const AllSprints = "All Sprints"

// AllAssignees is the sentinel assignee filter matching every assignee.
const AllAssignees = "all"

// Task is a single board item. Stage always mirrors the bucket the task
// physically resides in; only Board.MoveTask changes it.
type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    Priority   `json:"priority"`
	Assignee    string     `json:"assignee"`
	Label       Label      `json:"label"`
	Points      int        `json:"points"`
	Stage       Stage      `json:"stage"`
	Sprint      string     `json:"sprint,omitempty"`
	Likes       int        `json:"likes,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	Comments    []Comment  `json:"comments,omitempty"`
	ActivityLog []Activity `json:"activityLog,omitempty"`
}

// Comment is a note attached to a task. Immutable once created, except for
// deletion.
type Comment struct {
	ID        int64     `json:"id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Activity is one append-only ledger entry on a task.
type Activity struct {
	ID        int64     `json:"id"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Member is a team member. Tasks reference members through the assignee
// field by initials or name; the reference is non-owning and may dangle
// after the member is removed.
type Member struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Initials string `json:"initials"`
	Role     string `json:"role,omitempty"`
	Email    string `json:"email,omitempty"`
	Color    string `json:"color"`
}
