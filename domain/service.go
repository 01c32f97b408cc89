package domain

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// BoardStore persists board snapshots in a durable key-value slot.
type BoardStore interface {
	// Save writes the full snapshot, replacing any previous one.
	Save(ctx context.Context, snap Snapshot) error
	// Load reads the stored snapshot. ok is false when nothing is stored.
	Load(ctx context.Context) (snap Snapshot, ok bool, err error)
}

// ServiceOptions tunes the engine.
type ServiceOptions struct {
	Board       Config
	SaveTimeout time.Duration
}

// Service is the task board engine: a single-writer wrapper around Board
// that persists a snapshot after every mutation. Persistence is
// fire-and-forget: saves run on a background goroutine, failures are logged
// and never propagated, and the in-memory board stays authoritative.
type Service struct {
	mu     sync.Mutex
	board  *Board
	store  BoardStore
	logger *log.Logger

	saveTimeout time.Duration
	saves       chan Snapshot
	saverWG     sync.WaitGroup
	closeOnce   sync.Once
	closed      bool
}

// NewService builds the engine, restores any stored snapshot and starts the
// background saver. A missing or unreadable snapshot starts an empty board;
// load problems are logged, never fatal.
func NewService(store BoardStore, logger *log.Logger, opts ServiceOptions) *Service {
	if store == nil {
		panic("domain.NewService: store is required")
	}
	if logger == nil {
		panic("domain.NewService: logger is required")
	}
	if opts.SaveTimeout <= 0 {
		opts.SaveTimeout = 10 * time.Second
	}
	s := &Service{
		board:       NewBoard(opts.Board),
		store:       store,
		logger:      logger,
		saveTimeout: opts.SaveTimeout,
		saves:       make(chan Snapshot, 1),
	}

	loadCtx, cancel := context.WithTimeout(context.Background(), opts.SaveTimeout)
	snap, ok, err := store.Load(loadCtx)
	cancel()
	switch {
	case err != nil:
		logger.WithError(err).Error("board load failed, starting empty")
	case !ok:
		logger.Info("no stored board, starting empty")
	default:
		s.board.Restore(snap)
		logger.WithFields(log.Fields{"tasks": countTasks(snap), "members": len(snap.Members)}).Info("board restored")
	}

	s.saverWG.Add(1)
	go s.saver()
	return s
}

func countTasks(snap Snapshot) int {
	n := 0
	for _, bucket := range snap.Tasks {
		n += len(bucket)
	}
	return n
}

// saver drains queued snapshots and writes them with a per-save timeout.
// Save failures are logged and dropped.
func (s *Service) saver() {
	defer s.saverWG.Done()
	for snap := range s.saves {
		ctx, cancel := context.WithTimeout(context.Background(), s.saveTimeout)
		err := s.store.Save(ctx, snap)
		cancel()
		if err != nil {
			s.logger.WithError(err).Error("board save failed")
		}
	}
}

// persist queues the current snapshot for background saving. Pending
// snapshots are coalesced: only the newest state matters, so a queued stale
// snapshot is replaced rather than blocking the caller.
func (s *Service) persist() {
	if s.closed {
		return
	}
	snap := s.board.Snapshot()
	for {
		select {
		case s.saves <- snap:
			return
		default:
		}
		select {
		case <-s.saves:
		default:
		}
	}
}

// Flush synchronously writes the current snapshot. Used by the periodic
// sweep and at shutdown; an error is returned for logging but the board
// state is unaffected.
func (s *Service) Flush(ctx context.Context) error {
	s.mu.Lock()
	snap := s.board.Snapshot()
	s.mu.Unlock()
	return s.store.Save(ctx, snap)
}

// Close stops the background saver after draining queued snapshots.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.saves)
		s.mu.Unlock()
		s.saverWG.Wait()
	})
}

// Tasks returns the filtered view of one stage bucket.
func (s *Service) Tasks(stage Stage, f Filter) []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.FilteredTasks(stage, f)
}

// BoardView returns the filtered view of every stage bucket.
func (s *Service) BoardView(f Filter) map[Stage][]Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Stage][]Task, len(Stages))
	for _, stage := range Stages {
		out[stage] = s.board.FilteredTasks(stage, f)
	}
	return out
}

// FindTask returns the task with the given id and the stage holding it.
func (s *Service) FindTask(id int64) (Task, Stage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.FindTask(id)
}

// AddTask creates a task and persists the board.
func (s *Service) AddTask(d TaskDraft) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.board.AddTask(d)
	if err != nil {
		return Task{}, err
	}
	s.persist()
	return t, nil
}

// MoveTask transitions a task to the target stage and persists the board.
// Same-stage moves are no-ops and skip persistence.
func (s *Service) MoveTask(id int64, target Stage) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	before, _, err := s.board.FindTask(id)
	if err != nil {
		return Task{}, err
	}
	t, err := s.board.MoveTask(id, target)
	if err != nil {
		return Task{}, err
	}
	if before.Stage != target {
		s.persist()
	}
	return t, nil
}

// UpdateTask applies a field patch and persists the board.
func (s *Service) UpdateTask(id int64, p TaskPatch) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.board.UpdateTask(id, p)
	if err != nil {
		return Task{}, err
	}
	s.persist()
	return t, nil
}

// DeleteTask removes a task and persists the board.
func (s *Service) DeleteTask(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.board.DeleteTask(id); err != nil {
		return err
	}
	s.persist()
	return nil
}

// LikeTask records a like and persists the board.
func (s *Service) LikeTask(id int64) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.board.LikeTask(id)
	if err != nil {
		return Task{}, err
	}
	s.persist()
	return t, nil
}

// AddComment appends a comment and persists the board.
func (s *Service) AddComment(taskID int64, text, author string) (Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.board.AddComment(taskID, text, author)
	if err != nil {
		return Comment{}, err
	}
	s.persist()
	return c, nil
}

// DeleteComment removes a comment and persists the board.
func (s *Service) DeleteComment(taskID, commentID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.board.DeleteComment(taskID, commentID); err != nil {
		return err
	}
	s.persist()
	return nil
}

// Members returns the current member set.
func (s *Service) Members() []Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.Members()
}

// UpsertMember adds or updates a member and persists the board.
func (s *Service) UpsertMember(m Member) (Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, err := s.board.UpsertMember(m)
	if err != nil {
		return Member{}, err
	}
	s.persist()
	return out, nil
}

// RemoveMember deletes a member and persists the board. Tasks assigned to
// the member are left untouched.
func (s *Service) RemoveMember(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.board.RemoveMember(id); err != nil {
		return err
	}
	s.persist()
	return nil
}

// ReportStats computes the aggregate report for the filtered candidate set.
func (s *Service) ReportStats(f Filter) Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.ReportStats(f)
}

// StartSprint moves the filtered backlog into todo and persists the board.
func (s *Service) StartSprint(f Filter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.board.StartSprint(f)
	if err != nil {
		return 0, err
	}
	s.persist()
	return n, nil
}
