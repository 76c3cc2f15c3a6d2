package audit

import (
	"errors"
	"io/fs"
	"sync"
)

func isNotExistError(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// projectLocks serializes audit runs per project root.
type projectLocks struct {
	mutex   sync.Mutex
	entries map[string]*sync.Mutex
}

func newProjectLocks() *projectLocks {
	return &projectLocks{entries: make(map[string]*sync.Mutex)}
}

func (locks *projectLocks) lock(projectRoot string) func() {
	locks.mutex.Lock()
	entry, exists := locks.entries[projectRoot]
	if !exists {
		entry = &sync.Mutex{}
		locks.entries[projectRoot] = entry
	}
	locks.mutex.Unlock()

	entry.Lock()
	return entry.Unlock
}

type noopProgressReporter struct{}

func (noopProgressReporter) BeginTask(string, int) {}

func (noopProgressReporter) Worked(int) {}

func (noopProgressReporter) Done() {}
