package state

import (
	"errors"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/mempool"
	"github.com/ardanlabs/powchain/foundation/blockchain/metrics"
	"github.com/jellydator/ttlcache/v3"
)

// ErrRecentlySeen is returned when the same transaction was admitted to the
// mempool within the seen window.
var ErrRecentlySeen = errors.New("transaction was recently admitted")

// SubmitTransaction queues a transaction from a wallet or a peer. Coinbase
// transactions, transactions already pending and transactions admitted
// within the seen window are refused. Everything else is verified on the
// next call to ProcessTransactions.
func (s *State) SubmitTransaction(tx database.Tx) error {
	if tx.IsCoinbase() {
		return mempool.ErrCoinbase
	}

	hash := tx.Hash()
	if s.mempool.Contains(hash) {
		return mempool.ErrDuplicate
	}
	if s.seen.Has(hash) {
		return ErrRecentlySeen
	}

	s.inMu.Lock()
	defer s.inMu.Unlock()

	s.inTxs = append(s.inTxs, tx)

	return nil
}

// ProcessTransactions admits every queued transaction that verifies against
// the mempool's view of the ledger. Admitted transactions are shared with
// the known peers. It returns the number admitted.
func (s *State) ProcessTransactions() int {
	s.inMu.Lock()
	incoming := s.inTxs
	s.inTxs = nil
	s.inMu.Unlock()

	if len(incoming) == 0 {
		return 0
	}

	var accepted int
	for _, tx := range incoming {
		fee, err := s.mempool.Add(tx)
		if err != nil {
			s.evHandler("state: ProcessTransactions: tx[%s]: rejected: %s", tx.Hash(), err)
			metrics.TxRejected()
			continue
		}

		s.seen.Set(tx.Hash(), struct{}{}, ttlcache.DefaultTTL)

		s.evHandler("state: ProcessTransactions: tx[%s]: accepted: fee[%d]", tx.Hash(), fee)
		metrics.TxAccepted()
		accepted++

		if s.Worker != nil {
			s.Worker.SignalShareTx(tx)
		}
	}

	metrics.MempoolSize(s.mempool.Count())

	return accepted
}
