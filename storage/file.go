package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"

	"sprintboard/domain"
)

const (
	tasksFile   = "tasks.json"
	membersFile = "members.json"
)

// FileStore keeps the board snapshot as JSON files in a directory. Writes
// go through a temp file and rename so a crash mid-save never leaves a
// truncated document behind.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage.NewFileStore: dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

// Save replaces both snapshot documents.
func (s *FileStore) Save(_ context.Context, snap domain.Snapshot) error {
	tasks, err := sonic.Marshal(snap.Tasks)
	if err != nil {
		return fmt.Errorf("encode tasks: %w", err)
	}
	members, err := sonic.Marshal(snap.Members)
	if err != nil {
		return fmt.Errorf("encode members: %w", err)
	}
	if err := writeAtomic(filepath.Join(s.dir, tasksFile), tasks); err != nil {
		return err
	}
	return writeAtomic(filepath.Join(s.dir, membersFile), members)
}

// Load reads both snapshot documents. Missing files behave as empty
// documents; ok is false only when neither file exists.
func (s *FileStore) Load(_ context.Context) (domain.Snapshot, bool, error) {
	snap := domain.Snapshot{Tasks: make(map[domain.Stage][]domain.Task)}

	tasksRaw, tasksErr := os.ReadFile(filepath.Join(s.dir, tasksFile))
	if tasksErr != nil && !os.IsNotExist(tasksErr) {
		return domain.Snapshot{}, false, tasksErr
	}
	membersRaw, membersErr := os.ReadFile(filepath.Join(s.dir, membersFile))
	if membersErr != nil && !os.IsNotExist(membersErr) {
		return domain.Snapshot{}, false, membersErr
	}
	if os.IsNotExist(tasksErr) && os.IsNotExist(membersErr) {
		return domain.Snapshot{}, false, nil
	}

	if tasksErr == nil {
		if err := sonic.Unmarshal(tasksRaw, &snap.Tasks); err != nil {
			return domain.Snapshot{}, false, fmt.Errorf("decode tasks: %w", err)
		}
	}
	if membersErr == nil {
		if err := sonic.Unmarshal(membersRaw, &snap.Members); err != nil {
			return domain.Snapshot{}, false, fmt.Errorf("decode members: %w", err)
		}
	}
	return snap, true, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
