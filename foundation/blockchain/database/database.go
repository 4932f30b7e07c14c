// Package database defines the ledger data model: transactions, the set of
// unspent outputs, blocks and the chain of blocks.
package database

import (
	"errors"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrOverflow is returned when a sum of values does not fit in 64 bits.
var ErrOverflow = errors.New("value overflow")

// Hash represents a 32 byte sha256 digest used to identify transactions
// and blocks.
type Hash [32]byte

// ZeroHash is the previous hash carried by the genesis block.
var ZeroHash Hash

// String returns the 0x prefixed hex representation of the hash.
func (h Hash) String() string {
	return hexutil.Encode(h[:])
}

// IsZero reports whether every byte of the hash is zero.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// MarshalText implements the encoding.TextMarshaler interface.
func (h Hash) MarshalText() ([]byte, error) {
	return hexutil.Bytes(h[:]).MarshalText()
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (h *Hash) UnmarshalText(data []byte) error {
	var b hexutil.Bytes
	if err := b.UnmarshalText(data); err != nil {
		return err
	}

	if len(b) != len(h) {
		return errors.New("hash must be 32 bytes")
	}

	copy(h[:], b)
	return nil
}

// ToHash converts a 0x prefixed hex string into a hash.
func ToHash(s string) (Hash, error) {
	var h Hash
	if err := h.UnmarshalText([]byte(s)); err != nil {
		return Hash{}, err
	}
	return h, nil
}

// =============================================================================

// Blockchain is the ordered sequence of accepted blocks. The height of the
// chain is the number of blocks it holds.
type Blockchain []Block

// Height returns the number of blocks in the chain, which is also the height
// the next block must carry.
func (bc Blockchain) Height() uint64 {
	return uint64(len(bc))
}

// Timestamp returns the timestamp of the block at the specified height.
func (bc Blockchain) Timestamp(height uint64) uint64 {
	return bc[height].Timestamp
}

// Tip returns the last block of the chain.
func (bc Blockchain) Tip() (Block, bool) {
	if len(bc) == 0 {
		return Block{}, false
	}
	return bc[len(bc)-1], true
}

// TipHash returns the hash of the last block or the zero hash for an
// empty chain.
func (bc Blockchain) TipHash() Hash {
	tip, ok := bc.Tip()
	if !ok {
		return ZeroHash
	}
	return tip.Hash()
}

// Clone returns a copy of the chain that can be appended to without
// affecting the original. Blocks are shared since they are never mutated.
func (bc Blockchain) Clone() Blockchain {
	cp := make(Blockchain, len(bc), len(bc)+1)
	copy(cp, bc)
	return cp
}

// Range returns the blocks in the half open range [start, stop), clamped to
// the chain.
func (bc Blockchain) Range(start uint64, stop uint64) []Block {
	height := bc.Height()
	if stop > height {
		stop = height
	}
	if start >= stop {
		return []Block{}
	}

	blocks := make([]Block, stop-start)
	copy(blocks, bc[start:stop])

	return blocks
}

// FindTx returns the block holding the transaction with the specified hash,
// searching from the tip.
func (bc Blockchain) FindTx(txHash Hash) (Block, bool) {
	for i := len(bc) - 1; i >= 0; i-- {
		for _, tx := range bc[i].Txs {
			if tx.Hash() == txHash {
				return bc[i], true
			}
		}
	}
	return Block{}, false
}
