// Package memory implements the ability to save and load the ledger
// snapshot in memory.
package memory

import (
	"sync"

	"github.com/ardanlabs/powchain/foundation/blockchain/storage"
)

// Memory represents the storage implementation for keeping the snapshot in
// memory. This implements the storage.Storage interface.
type Memory struct {
	mu    sync.RWMutex
	snap  storage.Snapshot
	saved bool
}

// New constructs an Memory value for use.
func New() *Memory {
	return &Memory{}
}

// Close in this implementation has nothing to do since everything
// is in memory.
func (m *Memory) Close() error {
	return nil
}

// Save keeps a copy of the snapshot.
func (m *Memory) Save(snap storage.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snap = snap.Clone()
	m.saved = true

	return nil
}

// Load returns a copy of the last saved snapshot. The boolean is false when
// nothing has been saved yet.
func (m *Memory) Load() (storage.Snapshot, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.saved {
		return storage.Snapshot{}, false, nil
	}

	return m.snap.Clone(), true, nil
}
