package database

import (
	"context"
	"crypto/rand"
	"math"
	"math/big"

	"github.com/ardanlabs/powchain/foundation/blockchain/difficulty"
	"github.com/ardanlabs/powchain/foundation/blockchain/merkle"
	"github.com/ardanlabs/powchain/foundation/blockchain/signature"
)

// pollInterval is the number of nonces tried between checks of the context.
const pollInterval = 1_024

// Block represents a group of transactions batched together.
type Block struct {
	Timestamp  uint64            `json:"timestamp"`  // Time the block was mined, in unix seconds.
	Previous   Hash              `json:"previous"`   // Hash of the previous block in the chain.
	Difficulty difficulty.Target `json:"difficulty"` // Target the block hash must satisfy.
	Height     uint64            `json:"height"`     // Position of the block in the chain.
	Nonce      uint64            `json:"nonce"`      // Value identified to solve the hash solution.
	Txs        []Tx              `json:"txs"`        // Coinbase first, then the mined transactions.
}

// blockHeader is the form of a block that is hashed. The transactions are
// committed through the merkle root of their hashes.
type blockHeader struct {
	Timestamp  uint64
	Previous   Hash
	Difficulty difficulty.Target
	Height     uint64
	Nonce      uint64
	TxRoot     Hash
}

// TxRoot returns the merkle root committing to the ordered transaction
// list. A block without transactions has the zero root.
func (b Block) TxRoot() Hash {
	tree, err := b.txTree()
	if err != nil {
		return ZeroHash
	}
	return Hash(tree.Root())
}

// TxProof returns the merkle proof that the transaction with the specified
// hash is part of the block.
func (b Block) TxProof(txHash Hash) (merkle.Proof, error) {
	tree, err := b.txTree()
	if err != nil {
		return merkle.Proof{}, err
	}
	return tree.Proof(txLeaf(txHash))
}

// VerifyTxProof checks the proof ties the transaction hash to the root.
func VerifyTxProof(root Hash, txHash Hash, proof merkle.Proof) error {
	return merkle.VerifyProof(root[:], txHash[:], proof, nil)
}

func (b Block) txTree() (*merkle.Tree[txLeaf], error) {
	leafs := make([]txLeaf, len(b.Txs))
	for i, tx := range b.Txs {
		leafs[i] = txLeaf(tx.Hash())
	}
	return merkle.NewTree(leafs)
}

// txLeaf is a transaction hash as a merkle tree leaf.
type txLeaf Hash

func (l txLeaf) Hash() ([]byte, error) {
	return l[:], nil
}

func (l txLeaf) Equals(other txLeaf) bool {
	return l == other
}

// Hash returns the unique hash for the block.
func (b Block) Hash() Hash {
	return b.HashWithNonce(b.Nonce)
}

// HashWithNonce returns the hash the block would have with the specified
// nonce, leaving the block untouched.
func (b Block) HashWithNonce(nonce uint64) Hash {
	return newHasher(b).hash(nonce)
}

// Coinbase returns the minting transaction of the block if it has one.
func (b Block) Coinbase() (Tx, bool) {
	for _, tx := range b.Txs {
		if tx.IsCoinbase() {
			return tx, true
		}
	}
	return Tx{}, false
}

// =============================================================================

// POW performs the work of finding a nonce for the block that makes its hash
// satisfy the block's difficulty. The search starts at a random nonce and
// stops when the context is cancelled.
func POW(ctx context.Context, b Block, ev func(v string, args ...any)) (Block, error) {
	ev("database: POW: MINING: started: blk[%d]: txs[%d]", b.Height, len(b.Txs))
	defer ev("database: POW: MINING: completed")

	// Choose a random starting point for the nonce. After this, the nonce
	// will be incremented by 1 until a solution is found by us or another node.
	nBig, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return Block{}, err
	}
	nonce := nBig.Uint64()

	h := newHasher(b)

	var attempts uint64
	for {
		attempts++
		if attempts%pollInterval == 0 {
			if ctx.Err() != nil {
				ev("database: POW: MINING: CANCELLED: attempts[%d]", attempts)
				return Block{}, ctx.Err()
			}
		}

		if attempts%1_000_000 == 0 {
			ev("database: POW: MINING: attempts[%d]", attempts)
		}

		hash := h.hash(nonce)
		if !difficulty.Satisfies(b.Difficulty, hash) {
			nonce++
			continue
		}

		// Did another node find the solution while we were finishing up.
		if ctx.Err() != nil {
			ev("database: POW: MINING: CANCELLED: attempts[%d]", attempts)
			return Block{}, ctx.Err()
		}

		ev("database: POW: MINING: SOLVED: prevBlk[%s]: newBlk[%s]: attempts[%d]", b.Previous, hash, attempts)

		b.Nonce = nonce
		return b, nil
	}
}

// =============================================================================

// hasher holds the parts of a block that don't change while the nonce is
// searched.
type hasher struct {
	header blockHeader
}

func newHasher(b Block) *hasher {
	return &hasher{
		header: blockHeader{
			Timestamp:  b.Timestamp,
			Previous:   b.Previous,
			Difficulty: b.Difficulty,
			Height:     b.Height,
			TxRoot:     b.TxRoot(),
		},
	}
}

func (h *hasher) hash(nonce uint64) Hash {
	h.header.Nonce = nonce
	return Hash(signature.Hash(h.header))
}
