// Package storage defines the snapshot of the ledger that is persisted
// between runs of the node and the behavior required to store it.
package storage

import (
	"errors"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/difficulty"
)

// ErrCorrupt is returned when a stored snapshot exists but can't be read
// back. The node must not start from an empty ledger in that case.
var ErrCorrupt = errors.New("corrupt snapshot")

// Snapshot represents the ledger and the pending transactions at a point
// in time.
type Snapshot struct {
	Chain      database.Blockchain
	Store      database.TxStore
	Difficulty difficulty.Target
	Mempool    []database.Tx
}

// Storage interface represents the behavior required to be implemented by any
// package providing support for saving and loading the ledger snapshot.
type Storage interface {
	Save(snap Snapshot) error
	Load() (Snapshot, bool, error)
	Close() error
}

// Clone returns a copy of the snapshot that shares no mutable state.
func (s Snapshot) Clone() Snapshot {
	mempool := make([]database.Tx, len(s.Mempool))
	copy(mempool, s.Mempool)

	store := database.NewTxStore()
	if s.Store != nil {
		store = s.Store.Clone()
	}

	return Snapshot{
		Chain:      s.Chain.Clone(),
		Store:      store,
		Difficulty: s.Difficulty,
		Mempool:    mempool,
	}
}
