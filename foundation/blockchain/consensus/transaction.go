package consensus

import (
	"fmt"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/genesis"
	"github.com/ardanlabs/powchain/foundation/blockchain/script"
	"github.com/ardanlabs/powchain/foundation/blockchain/signature"
)

// VerifyTx checks the transaction spends existing outputs it is authorized
// to spend, that none of them is in the spent set and that the inputs cover
// the outputs. On success the consumed outputs are added to spent and the fee
// is returned. Inputs only resolve against the store, so an output created
// earlier in the same block can't be spent.
func VerifyTx(tx database.Tx, store database.TxStore, spent map[database.OutPoint]struct{}) (uint64, error) {
	consumed := make([]database.OutPoint, 0, len(tx.Vin))
	var inputs uint64

	for _, in := range tx.Vin {
		op := in.OutPoint()

		utxo, exists := store.Get(op)
		if !exists {
			return 0, fmt.Errorf("%w: %s", ErrMissingUTXO, op)
		}

		if _, exists := spent[op]; exists {
			return 0, fmt.Errorf("%w: %s", ErrDoubleSpend, op)
		}

		// The same output listed twice in one transaction.
		for _, prior := range consumed {
			if prior == op {
				return 0, fmt.Errorf("%w: %s", ErrDoubleSpend, op)
			}
		}

		if !script.Authorize(in.Solution, signature.SpendDigest(op.TxHash, op.Index), utxo.Lock) {
			return 0, fmt.Errorf("%w: %s", ErrScript, op)
		}

		var err error
		if inputs, err = database.AddValues(inputs, utxo.Value); err != nil {
			return 0, err
		}

		consumed = append(consumed, op)
	}

	outputs, err := tx.OutputTotal()
	if err != nil {
		return 0, err
	}

	if inputs < outputs {
		return 0, fmt.Errorf("%w: inputs %d, outputs %d", ErrInsufficientInputs, inputs, outputs)
	}

	for _, op := range consumed {
		spent[op] = struct{}{}
	}

	return inputs - outputs, nil
}

// MiningReward returns the value a block at the specified height may mint.
// The reward halves every halving interval and reaches zero once it has been
// shifted out entirely.
func MiningReward(height uint64, g genesis.Genesis) uint64 {
	if g.HalvingInterval == 0 {
		return g.StartReward
	}

	halvings := height / g.HalvingInterval
	if halvings >= 64 {
		return 0
	}

	return g.StartReward >> halvings
}
