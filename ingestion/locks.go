package ingestion

import (
	"sync"

	"github.com/poiesic/docket/core"
)

// lockTable hands out one exclusive lock per document ID so that state
// transitions for a single document are serialized while different documents
// process in parallel. Entries are reference-counted and removed when the
// last holder releases.
type lockTable struct {
	mu    sync.Mutex
	locks map[core.ID]*docLock
}

type docLock struct {
	mu   sync.Mutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[core.ID]*docLock)}
}

// lock blocks until the caller holds the exclusive lock for id.
func (t *lockTable) lock(id core.ID) {
	t.mu.Lock()
	l, ok := t.locks[id]
	if !ok {
		l = &docLock{}
		t.locks[id] = l
	}
	l.refs++
	t.mu.Unlock()

	l.mu.Lock()
}

// unlock releases the lock for id, dropping the table entry when no other
// goroutine is waiting on it.
func (t *lockTable) unlock(id core.ID) {
	t.mu.Lock()
	l, ok := t.locks[id]
	if ok {
		l.refs--
		if l.refs == 0 {
			delete(t.locks, id)
		}
	}
	t.mu.Unlock()

	if ok {
		l.mu.Unlock()
	}
}
