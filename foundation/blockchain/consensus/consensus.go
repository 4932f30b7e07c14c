// Package consensus implements the rules every node applies to decide if a
// block is the valid next block of a chain and if a whole chain is valid.
package consensus

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/difficulty"
	"github.com/ardanlabs/powchain/foundation/blockchain/genesis"
)

// Set of errors returned when a block or transaction breaks a rule.
var (
	ErrTimestamp          = errors.New("block timestamp is before the previous block")
	ErrLinkage            = errors.New("previous hash doesn't match the chain tip")
	ErrHeight             = errors.New("block height is not the next height")
	ErrDifficulty         = errors.New("block difficulty doesn't match the expected target")
	ErrProofOfWork        = errors.New("block hash doesn't satisfy the target")
	ErrMultipleCoinbase   = errors.New("block has more than one coinbase transaction")
	ErrCoinbaseReward     = errors.New("coinbase pays more than the reward plus fees")
	ErrCoinbaseNonce      = errors.New("coinbase nonce doesn't match the block height")
	ErrMissingUTXO        = errors.New("input refers to an unknown output")
	ErrDoubleSpend        = errors.New("input is already spent in this block")
	ErrScript             = errors.New("solution doesn't unlock the output")
	ErrInsufficientInputs = errors.New("inputs are less than outputs")
	ErrOverflow           = database.ErrOverflow
)

// EventHandler defines a function that is called when events occur in the
// processing of blocks.
type EventHandler func(v string, args ...any)

// =============================================================================

// ValidateNext checks the block is the valid next block for the chain given
// the chain's UTXO set and the target the block must meet. The checks run in
// order and the first failure is returned.
func ValidateNext(chain database.Blockchain, b database.Block, store database.TxStore, target difficulty.Target, g genesis.Genesis, ev EventHandler) error {
	tip, hasTip := chain.Tip()

	if hasTip {
		ev("consensus: ValidateNext: blk[%d]: check: timestamp is not before the previous block", b.Height)

		if b.Timestamp < tip.Timestamp {
			return fmt.Errorf("%w: parent %d, block %d", ErrTimestamp, tip.Timestamp, b.Timestamp)
		}
	}

	ev("consensus: ValidateNext: blk[%d]: check: block links to the chain tip", b.Height)

	previous := database.ZeroHash
	if hasTip {
		previous = tip.Hash()
	}

	if b.Previous != previous {
		return fmt.Errorf("%w: got %s, exp %s", ErrLinkage, b.Previous, previous)
	}

	if b.Height != chain.Height() {
		return fmt.Errorf("%w: got %d, exp %d", ErrHeight, b.Height, chain.Height())
	}

	ev("consensus: ValidateNext: blk[%d]: check: block hash has been solved", b.Height)

	if b.Difficulty != target {
		return fmt.Errorf("%w: got %s, exp %s", ErrDifficulty, b.Difficulty, target)
	}

	hash := b.Hash()
	if !difficulty.Satisfies(target, hash) {
		return fmt.Errorf("%w: %s", ErrProofOfWork, hash)
	}

	ev("consensus: ValidateNext: blk[%d]: check: transactions are valid", b.Height)

	var coinbase *database.Tx
	var fees uint64
	spent := make(map[database.OutPoint]struct{})

	for i := range b.Txs {
		tx := b.Txs[i]

		if tx.IsCoinbase() {
			if coinbase != nil {
				return ErrMultipleCoinbase
			}
			coinbase = &tx
			continue
		}

		fee, err := VerifyTx(tx, store, spent)
		if err != nil {
			return fmt.Errorf("tx[%s]: %w", tx.Hash(), err)
		}

		if fees, err = database.AddValues(fees, fee); err != nil {
			return err
		}
	}

	if coinbase == nil {
		return nil
	}

	paid, err := coinbase.OutputTotal()
	if err != nil {
		return err
	}

	allowed, err := database.AddValues(MiningReward(b.Height, g), fees)
	if err != nil {
		return err
	}

	if paid > allowed {
		return fmt.Errorf("%w: paid %d, allowed %d", ErrCoinbaseReward, paid, allowed)
	}

	ev("consensus: ValidateNext: blk[%d]: check: coinbase nonce is the block height", b.Height)

	if coinbase.Nonce != b.Height {
		return fmt.Errorf("%w: got %d, exp %d", ErrCoinbaseNonce, coinbase.Nonce, b.Height)
	}

	return nil
}

// ValidNext reports whether ValidateNext accepts the block.
func ValidNext(chain database.Blockchain, b database.Block, store database.TxStore, target difficulty.Target, g genesis.Genesis) bool {
	return ValidateNext(chain, b, store, target, g, func(string, ...any) {}) == nil
}

// VerifyChain replays the chain from an empty ledger. The target of every
// block is derived from the rebuilt prefix and never taken from the block.
// It returns the resulting UTXO set and the target for the next block.
func VerifyChain(chain database.Blockchain, g genesis.Genesis, ev EventHandler) (database.TxStore, difficulty.Target, error) {
	rebuilt := make(database.Blockchain, 0, len(chain))
	store := database.NewTxStore()
	target := g.StartTarget()

	for _, b := range chain {
		target = difficulty.Retarget(rebuilt, target, g.Params())

		if err := ValidateNext(rebuilt, b, store, target, g, ev); err != nil {
			return nil, difficulty.Target{}, fmt.Errorf("block %d: %w", b.Height, err)
		}

		var err error
		if rebuilt, err = Apply(rebuilt, store, b); err != nil {
			return nil, difficulty.Target{}, err
		}
	}

	return store, difficulty.Retarget(rebuilt, target, g.Params()), nil
}

// Apply appends the block to the chain and applies its transactions to the
// store. Nothing is validated: the block must already be accepted by
// ValidateNext against this exact chain and store. The store is modified in
// place so callers pass clones of shared state. An error means the ledger is
// inconsistent.
func Apply(chain database.Blockchain, store database.TxStore, b database.Block) (database.Blockchain, error) {
	for _, tx := range b.Txs {
		if err := store.ApplyTx(tx); err != nil {
			return nil, fmt.Errorf("apply block %d: %w", b.Height, err)
		}
	}

	return append(chain, b), nil
}

// NextTarget returns the target the block after the chain's tip must meet,
// given the target the tip was mined against.
func NextTarget(chain database.Blockchain, current difficulty.Target, g genesis.Genesis) difficulty.Target {
	return difficulty.Retarget(chain, current, g.Params())
}
