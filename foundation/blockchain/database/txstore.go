package database

import (
	"bytes"
	"fmt"
	"sort"
)

// TxStore is the set of spendable outputs, keyed by the hash of the
// transaction that created them and then by output index.
type TxStore map[Hash]map[uint32]UTXO

// Output pairs an unspent output with its location. It is the flat form of
// the store used for persistence and queries.
type Output struct {
	OutPoint OutPoint `json:"outpoint"`
	UTXO     UTXO     `json:"utxo"`
}

// NewTxStore constructs an empty store.
func NewTxStore() TxStore {
	return make(TxStore)
}

// FromOutputs rebuilds a store from its flat form.
func FromOutputs(outputs []Output) TxStore {
	s := NewTxStore()
	for _, out := range outputs {
		s.put(out.OutPoint, out.UTXO)
	}
	return s
}

// Get returns the unspent output at the specified location.
func (s TxStore) Get(op OutPoint) (UTXO, bool) {
	outs, exists := s[op.TxHash]
	if !exists {
		return UTXO{}, false
	}

	utxo, exists := outs[op.Index]
	return utxo, exists
}

// Clone returns a deep copy of the store.
func (s TxStore) Clone() TxStore {
	cp := make(TxStore, len(s))
	for hash, outs := range s {
		inner := make(map[uint32]UTXO, len(outs))
		for idx, utxo := range outs {
			inner[idx] = utxo
		}
		cp[hash] = inner
	}
	return cp
}

// ApplyTx removes the outputs consumed by the transaction and inserts the
// outputs it creates. No spend authorization is checked. A missing input is
// an inconsistency between the store and the transaction.
func (s TxStore) ApplyTx(tx Tx) error {
	for _, in := range tx.Vin {
		op := in.OutPoint()
		if _, exists := s.Get(op); !exists {
			return fmt.Errorf("apply tx: input %s not found", op)
		}
		s.remove(op)
	}

	hash := tx.Hash()
	if _, exists := s[hash]; exists {
		return fmt.Errorf("apply tx: outputs for %s already exist", hash)
	}

	for i, out := range tx.Vout {
		s.put(OutPoint{TxHash: hash, Index: uint32(i)}, out)
	}

	return nil
}

// Len returns the number of unspent outputs.
func (s TxStore) Len() int {
	var n int
	for _, outs := range s {
		n += len(outs)
	}
	return n
}

// Outputs returns every unspent output ordered by transaction hash and
// then index.
func (s TxStore) Outputs() []Output {
	outputs := make([]Output, 0, s.Len())
	for hash, outs := range s {
		for idx, utxo := range outs {
			outputs = append(outputs, Output{
				OutPoint: OutPoint{TxHash: hash, Index: idx},
				UTXO:     utxo,
			})
		}
	}

	sort.Slice(outputs, func(i, j int) bool {
		a, b := outputs[i].OutPoint, outputs[j].OutPoint
		if c := bytes.Compare(a.TxHash[:], b.TxHash[:]); c != 0 {
			return c < 0
		}
		return a.Index < b.Index
	})

	return outputs
}

// Total returns the sum of every unspent value.
func (s TxStore) Total() (uint64, error) {
	var total uint64
	for _, outs := range s {
		for _, utxo := range outs {
			var err error
			if total, err = AddValues(total, utxo.Value); err != nil {
				return 0, err
			}
		}
	}
	return total, nil
}

// =============================================================================

func (s TxStore) put(op OutPoint, utxo UTXO) {
	outs, exists := s[op.TxHash]
	if !exists {
		outs = make(map[uint32]UTXO)
		s[op.TxHash] = outs
	}
	outs[op.Index] = utxo
}

// remove deletes the output and prunes the transaction entry once all of
// its outputs are spent.
func (s TxStore) remove(op OutPoint) {
	outs, exists := s[op.TxHash]
	if !exists {
		return
	}

	delete(outs, op.Index)
	if len(outs) == 0 {
		delete(s, op.TxHash)
	}
}
