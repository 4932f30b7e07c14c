package database

import (
	"fmt"
	"math/bits"

	"github.com/ardanlabs/powchain/foundation/blockchain/signature"
)

// UTXO represents an unspent output: a value and the program that must be
// satisfied to spend it.
type UTXO struct {
	Value uint64 `json:"value"`
	Lock  string `json:"lock"`
}

// UTXOU represents the spend of a previous output. It names the output and
// supplies the program that unlocks it.
type UTXOU struct {
	TxHash   Hash   `json:"tx_hash"`
	Index    uint32 `json:"index"`
	Solution string `json:"solution"`
}

// OutPoint returns the output being spent.
func (in UTXOU) OutPoint() OutPoint {
	return OutPoint{TxHash: in.TxHash, Index: in.Index}
}

// OutPoint identifies a single output of a transaction.
type OutPoint struct {
	TxHash Hash   `json:"tx_hash"`
	Index  uint32 `json:"index"`
}

// String implements the fmt.Stringer interface.
func (op OutPoint) String() string {
	return fmt.Sprintf("%s:%d", op.TxHash, op.Index)
}

// =============================================================================

// Tx represents a transfer of value. A transaction without inputs is a
// coinbase and mints new value. The nonce separates otherwise identical
// coinbase transactions and carries the block height for them.
type Tx struct {
	Nonce uint64  `json:"nonce"`
	Vin   []UTXOU `json:"vin"`
	Vout  []UTXO  `json:"vout"`
}

// NewCoinbase constructs the transaction minting value for the block at the
// specified height.
func NewCoinbase(height uint64, value uint64, lock string) Tx {
	return Tx{
		Nonce: height,
		Vout:  []UTXO{{Value: value, Lock: lock}},
	}
}

// Hash returns the identity of the transaction, the sha256 of its canonical
// encoding. The same value is used when the transaction is created and when
// its outputs are looked up.
func (tx Tx) Hash() Hash {
	return Hash(signature.Hash(tx))
}

// IsCoinbase reports whether the transaction has no inputs.
func (tx Tx) IsCoinbase() bool {
	return len(tx.Vin) == 0
}

// OutputTotal returns the sum of the output values.
func (tx Tx) OutputTotal() (uint64, error) {
	var total uint64
	for _, out := range tx.Vout {
		var carry uint64
		total, carry = bits.Add64(total, out.Value, 0)
		if carry != 0 {
			return 0, ErrOverflow
		}
	}
	return total, nil
}

// String implements the fmt.Stringer interface for logging.
func (tx Tx) String() string {
	return fmt.Sprintf("%s:vin[%d]:vout[%d]", tx.Hash(), len(tx.Vin), len(tx.Vout))
}

// AddValues returns a + b or ErrOverflow.
func AddValues(a uint64, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return sum, nil
}
