// Package selector provides different transaction selecting algorithms.
package selector

import (
	"fmt"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
)

// List of different select strategies.
const (
	StrategyFee  = "fee"
	StrategyFIFO = "fifo"
)

// Map of different select strategies with functions.
var strategies = map[string]Func{
	StrategyFee:  feeSelect,
	StrategyFIFO: fifoSelect,
}

// Candidate is a mempool transaction with the fee it pays and the order in
// which it was admitted.
type Candidate struct {
	Tx  database.Tx
	Fee uint64
	Seq uint64
}

// Func defines a function that takes the mempool transactions and selects
// howMany of them in an order based on the functions strategy. Receiving -1
// for howMany must return all the transactions in the strategies ordering.
// The input slice may be reordered.
type Func func(candidates []Candidate, howMany int) []Candidate

// Retrieve returns the specified select strategy function.
func Retrieve(strategy string) (Func, error) {
	fn, exists := strategies[strategy]
	if !exists {
		return nil, fmt.Errorf("strategy %q does not exist", strategy)
	}
	return fn, nil
}

// =============================================================================

// take returns the first howMany candidates.
func take(candidates []Candidate, howMany int) []Candidate {
	if howMany < 0 || howMany > len(candidates) {
		howMany = len(candidates)
	}

	final := make([]Candidate, howMany)
	copy(final, candidates[:howMany])

	return final
}

// =============================================================================

// bySeq provides sorting support by the admission order.
type bySeq []Candidate

// Len returns the number of transactions in the list.
func (bs bySeq) Len() int {
	return len(bs)
}

// Less helps to sort the list by admission order, oldest first.
func (bs bySeq) Less(i, j int) bool {
	return bs[i].Seq < bs[j].Seq
}

// Swap moves transactions in the order of admission.
func (bs bySeq) Swap(i, j int) {
	bs[i], bs[j] = bs[j], bs[i]
}

// =============================================================================

// byFee provides sorting support by the transaction fee value.
type byFee []Candidate

// Len returns the number of transactions in the list.
func (bf byFee) Len() int {
	return len(bf)
}

// Less helps to sort the list by fee in decending order to pick the
// transactions that provide the best reward. Equal fees keep the
// admission order.
func (bf byFee) Less(i, j int) bool {
	if bf[i].Fee != bf[j].Fee {
		return bf[i].Fee > bf[j].Fee
	}
	return bf[i].Seq < bf[j].Seq
}

// Swap moves transactions in the order of the fee value.
func (bf byFee) Swap(i, j int) {
	bf[i], bf[j] = bf[j], bf[i]
}
