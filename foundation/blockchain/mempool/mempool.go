// Package mempool maintains the mempool for the blockchain.
package mempool

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ardanlabs/powchain/foundation/blockchain/consensus"
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/mempool/selector"
)

// Set of errors returned when a transaction is refused.
var (
	ErrDuplicate = errors.New("transaction already in mempool")
	ErrCoinbase  = errors.New("coinbase transactions can't be submitted")
)

// Mempool represents a cache of verified transactions keyed by transaction
// hash. It keeps a shadow view of the ledger: the ledger's UTXO set plus the
// outputs the pending transactions already spend.
type Mempool struct {
	mu       sync.RWMutex
	pool     map[database.Hash]selector.Candidate
	store    database.TxStore
	spent    map[database.OutPoint]struct{}
	seq      uint64
	selectFn selector.Func
}

// New constructs a new mempool using the default select strategy.
func New() (*Mempool, error) {
	return NewWithStrategy(selector.StrategyFee)
}

// NewWithStrategy constructs a new mempool with specified select strategy.
func NewWithStrategy(strategy string) (*Mempool, error) {
	selectFn, err := selector.Retrieve(strategy)
	if err != nil {
		return nil, err
	}

	mp := Mempool{
		pool:     make(map[database.Hash]selector.Candidate),
		store:    database.NewTxStore(),
		spent:    make(map[database.OutPoint]struct{}),
		selectFn: selectFn,
	}

	return &mp, nil
}

// Count returns the current number of transaction in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Contains reports whether the transaction is in the pool.
func (mp *Mempool) Contains(hash database.Hash) bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	_, exists := mp.pool[hash]
	return exists
}

// Add verifies the transaction against the shadow view and inserts it. The
// fee paid by the transaction is returned.
func (mp *Mempool) Add(tx database.Tx) (uint64, error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	return mp.add(tx)
}

// Revalidate removes the mined transactions, replaces the ledger view with
// the specified UTXO set and then verifies every remaining transaction again
// in the order it was admitted. Transactions that no longer verify are
// dropped and returned.
func (mp *Mempool) Revalidate(store database.TxStore, mined []database.Tx) []database.Tx {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	for _, tx := range mined {
		delete(mp.pool, tx.Hash())
	}

	pending := mp.ordered()

	mp.pool = make(map[database.Hash]selector.Candidate, len(pending))
	mp.spent = make(map[database.OutPoint]struct{})
	mp.store = store

	var dropped []database.Tx
	for _, c := range pending {
		fee, err := consensus.VerifyTx(c.Tx, mp.store, mp.spent)
		if err != nil {
			dropped = append(dropped, c.Tx)
			continue
		}

		c.Fee = fee
		mp.pool[c.Tx.Hash()] = c
	}

	return dropped
}

// Copy returns the transactions in the order they were admitted.
func (mp *Mempool) Copy() []database.Tx {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	pending := mp.ordered()

	txs := make([]database.Tx, len(pending))
	for i, c := range pending {
		txs[i] = c.Tx
	}

	return txs
}

// PickBest uses the configured select strategy to return the next set of
// transactions for the next block. Pass -1 for all the transactions.
func (mp *Mempool) PickBest(howMany int) []selector.Candidate {
	mp.mu.RLock()
	candidates := make([]selector.Candidate, 0, len(mp.pool))
	for _, c := range mp.pool {
		candidates = append(candidates, c)
	}
	mp.mu.RUnlock()

	return mp.selectFn(candidates, howMany)
}

// =============================================================================

// add performs the insert. The caller must hold the write lock.
func (mp *Mempool) add(tx database.Tx) (uint64, error) {
	if tx.IsCoinbase() {
		return 0, ErrCoinbase
	}

	hash := tx.Hash()
	if _, exists := mp.pool[hash]; exists {
		return 0, ErrDuplicate
	}

	fee, err := consensus.VerifyTx(tx, mp.store, mp.spent)
	if err != nil {
		return 0, fmt.Errorf("tx[%s]: %w", hash, err)
	}

	mp.seq++
	mp.pool[hash] = selector.Candidate{Tx: tx, Fee: fee, Seq: mp.seq}

	return fee, nil
}

// ordered returns the candidates by admission order. The caller must hold
// a lock.
func (mp *Mempool) ordered() []selector.Candidate {
	pending := make([]selector.Candidate, 0, len(mp.pool))
	for _, c := range mp.pool {
		pending = append(pending, c)
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].Seq < pending[j].Seq
	})

	return pending
}
