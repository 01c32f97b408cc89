package api

import (
	"context"

	"sprintboard/domain"
)

// Engine is the board state engine consumed by the HTTP surface.
type Engine interface {
	Tasks(stage domain.Stage, f domain.Filter) []domain.Task
	BoardView(f domain.Filter) map[domain.Stage][]domain.Task
	FindTask(id int64) (domain.Task, domain.Stage, error)
	AddTask(d domain.TaskDraft) (domain.Task, error)
	MoveTask(id int64, target domain.Stage) (domain.Task, error)
	UpdateTask(id int64, p domain.TaskPatch) (domain.Task, error)
	DeleteTask(id int64) error
	LikeTask(id int64) (domain.Task, error)
	AddComment(taskID int64, text, author string) (domain.Comment, error)
	DeleteComment(taskID, commentID int64) error
	Members() []domain.Member
	UpsertMember(m domain.Member) (domain.Member, error)
	RemoveMember(id string) error
	ReportStats(f domain.Filter) domain.Stats
	StartSprint(f domain.Filter) (int, error)
}

// Deduper prevents reprocessing of duplicate unsafe requests.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, key string) (bool, error)
	// Remove deletes a previously added key, used when processing fails so
	// the client may retry.
	Remove(ctx context.Context, key string) error
}

const requestBodyMaxSize = 64 * 1024 // 64 KiB

type errorResponse struct {
	Error string `json:"error"`
}

type sprintStartResponse struct {
	Moved int `json:"moved"`
}
