package domain

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
)

type stubStore struct {
	mu     sync.Mutex
	saved  []Snapshot
	saveCh chan Snapshot

	loadSnap Snapshot
	loadOK   bool
	loadErr  error
	saveErr  error
}

func newStubStore() *stubStore {
	return &stubStore{saveCh: make(chan Snapshot, 16)}
}

func (s *stubStore) Save(_ context.Context, snap Snapshot) error {
	s.mu.Lock()
	s.saved = append(s.saved, snap)
	s.mu.Unlock()
	select {
	case s.saveCh <- snap:
	default:
	}
	return s.saveErr
}

func (s *stubStore) Load(context.Context) (Snapshot, bool, error) {
	return s.loadSnap, s.loadOK, s.loadErr
}

func quietLogger() *log.Logger {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger
}

func waitForSave(t *testing.T, st *stubStore) Snapshot {
	t.Helper()
	select {
	case snap := <-st.saveCh:
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for background save")
		return Snapshot{}
	}
}

func TestServicePersistsAfterMutation(t *testing.T) {
	st := newStubStore()
	svc := NewService(st, quietLogger(), ServiceOptions{})
	defer svc.Close()

	task, err := svc.AddTask(TaskDraft{Title: "Fix bug"})
	if err != nil {
		t.Fatalf("add task: %v", err)
	}

	snap := waitForSave(t, st)
	backlog := snap.Tasks[StageBacklog]
	if len(backlog) != 1 || backlog[0].ID != task.ID {
		t.Fatalf("saved snapshot missing task: %+v", snap.Tasks)
	}
}

func TestServiceRestoresStoredSnapshot(t *testing.T) {
	st := newStubStore()
	st.loadOK = true
	st.loadSnap = Snapshot{Tasks: map[Stage][]Task{
		StageDone: {{ID: 9, Title: "shipped", Stage: StageDone, Points: 3}},
	}}

	svc := NewService(st, quietLogger(), ServiceOptions{})
	defer svc.Close()

	task, stage, err := svc.FindTask(9)
	if err != nil {
		t.Fatalf("find restored task: %v", err)
	}
	if stage != StageDone || task.Points != 3 {
		t.Fatalf("unexpected restored task: %+v in %s", task, stage)
	}
}

func TestServiceToleratesLoadFailure(t *testing.T) {
	st := newStubStore()
	st.loadErr = errors.New("corrupt document")

	svc := NewService(st, quietLogger(), ServiceOptions{})
	defer svc.Close()

	if _, err := svc.AddTask(TaskDraft{Title: "still works"}); err != nil {
		t.Fatalf("engine must start empty after load failure: %v", err)
	}
}

func TestServiceSaveFailureDoesNotAffectState(t *testing.T) {
	st := newStubStore()
	st.saveErr = errors.New("slot unavailable")

	svc := NewService(st, quietLogger(), ServiceOptions{})
	defer svc.Close()

	task, err := svc.AddTask(TaskDraft{Title: "Fix bug"})
	if err != nil {
		t.Fatalf("mutation must succeed despite save failure: %v", err)
	}
	waitForSave(t, st)

	// in-memory board remains authoritative
	if _, _, err := svc.FindTask(task.ID); err != nil {
		t.Fatalf("task lost after failed save: %v", err)
	}
}

func TestServiceSameStageMoveSkipsPersist(t *testing.T) {
	st := newStubStore()
	svc := NewService(st, quietLogger(), ServiceOptions{})
	defer svc.Close()

	task, _ := svc.AddTask(TaskDraft{Title: "x", Stage: StageTodo})
	waitForSave(t, st)

	if _, err := svc.MoveTask(task.ID, StageTodo); err != nil {
		t.Fatalf("same-stage move: %v", err)
	}
	select {
	case snap := <-st.saveCh:
		t.Fatalf("no-op move must not persist, got %+v", snap.Tasks)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestServiceFlushWritesSynchronously(t *testing.T) {
	st := newStubStore()
	svc := NewService(st, quietLogger(), ServiceOptions{})
	defer svc.Close()

	if _, err := svc.AddTask(TaskDraft{Title: "x"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := svc.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	st.mu.Lock()
	n := len(st.saved)
	st.mu.Unlock()
	if n == 0 {
		t.Fatal("flush did not reach the store")
	}
}

func TestServiceCloseDrainsQueuedSaves(t *testing.T) {
	st := newStubStore()
	svc := NewService(st, quietLogger(), ServiceOptions{})

	if _, err := svc.AddTask(TaskDraft{Title: "x"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	svc.Close()

	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.saved) == 0 {
		t.Fatal("queued save dropped at close")
	}
}
