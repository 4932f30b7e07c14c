// Package commands contains the functionality for the admin tool.
package commands

import (
	"fmt"
	"strconv"

	"github.com/ardanlabs/powchain/foundation/blockchain/consensus"
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/genesis"
	"github.com/ardanlabs/powchain/foundation/blockchain/script"
	"github.com/ardanlabs/powchain/foundation/blockchain/storage"
)

// Snapshot is the stored ledger the commands operate on.
type Snapshot = storage.Snapshot

// Chain prints the blocks of the stored chain, optionally limited to the
// range [start, stop).
func Chain(args []string, snap Snapshot) error {
	start, stop := uint64(0), snap.Chain.Height()

	if len(args) > 2 {
		v, err := strconv.ParseUint(args[2], 10, 64)
		if err != nil {
			return fmt.Errorf("start: %w", err)
		}
		start = v
	}
	if len(args) > 3 {
		v, err := strconv.ParseUint(args[3], 10, 64)
		if err != nil {
			return fmt.Errorf("stop: %w", err)
		}
		stop = v
	}

	fmt.Printf("Height: %d  Tip: %s\n\n", snap.Chain.Height(), snap.Chain.TipHash())

	for _, b := range snap.Chain.Range(start, stop) {
		fmt.Printf("Block: %d  Hash: %s  Prev: %s  Time: %d  Nonce: %d  Txs: %d\n",
			b.Height, b.Hash(), b.Previous, b.Timestamp, b.Nonce, len(b.Txs))

		for _, tx := range b.Txs {
			total, _ := tx.OutputTotal()
			fmt.Printf("    Tx: %s  Vin: %d  Vout: %d  Value: %d\n", tx.Hash(), len(tx.Vin), len(tx.Vout), total)
		}
	}

	return nil
}

// UTXOs prints the stored unspent outputs, optionally only those locked to
// the specified address.
func UTXOs(args []string, snap Snapshot) error {
	var only string
	if len(args) > 2 {
		only = args[2]
	}

	var total uint64
	for _, out := range snap.Store.Outputs() {
		owner, _ := script.AddressFromLock(out.UTXO.Lock)
		if only != "" && owner != only {
			continue
		}

		fmt.Printf("Outpoint: %s  Value: %d  Owner: %s\n", out.OutPoint, out.UTXO.Value, owner)

		var err error
		if total, err = database.AddValues(total, out.UTXO.Value); err != nil {
			return err
		}
	}

	fmt.Printf("\nTotal: %d\n", total)
	return nil
}

// Verify replays the stored chain from the first block and compares the
// result with the stored utxo set and difficulty.
func Verify(snap Snapshot, gen genesis.Genesis) error {
	store, target, err := consensus.VerifyChain(snap.Chain, gen, func(v string, args ...any) {})
	if err != nil {
		return err
	}

	if target != snap.Difficulty {
		return fmt.Errorf("difficulty got %s, exp %s", snap.Difficulty, target)
	}

	if snap.Store.Len() != store.Len() {
		return fmt.Errorf("utxo count got %d, exp %d", snap.Store.Len(), store.Len())
	}

	for _, out := range store.Outputs() {
		got, exists := snap.Store.Get(out.OutPoint)
		if !exists || got != out.UTXO {
			return fmt.Errorf("utxo %s doesn't match the replayed chain", out.OutPoint)
		}
	}

	fmt.Printf("Verified: height[%d] utxos[%d] mempool[%d] target[%s]\n", snap.Chain.Height(), store.Len(), len(snap.Mempool), target)
	return nil
}
