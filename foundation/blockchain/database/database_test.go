package database_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/difficulty"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func noop(v string, args ...any) {}

// =============================================================================

func Test_TxStore(t *testing.T) {
	t.Log("Given the need to maintain the set of unspent outputs.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen applying a coinbase and a spend of it.", testID)
		{
			store := database.NewTxStore()

			coinbase := database.NewCoinbase(0, 100, "lock-a")
			if err := store.ApplyTx(coinbase); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to apply the coinbase: %s", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to apply the coinbase.", success, testID)

			spend := database.Tx{
				Vin: []database.UTXOU{{TxHash: coinbase.Hash(), Index: 0}},
				Vout: []database.UTXO{
					{Value: 60, Lock: "lock-b"},
					{Value: 40, Lock: "lock-a"},
				},
			}

			before := store.Clone()
			if err := store.ApplyTx(spend); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to apply the spend: %s", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to apply the spend.", success, testID)

			if _, exists := store[coinbase.Hash()]; exists {
				t.Fatalf("\t%s\tTest %d:\tShould prune the fully spent coinbase entry.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould prune the fully spent coinbase entry.", success, testID)

			if _, exists := before.Get(database.OutPoint{TxHash: coinbase.Hash()}); !exists {
				t.Fatalf("\t%s\tTest %d:\tShould leave the clone untouched.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould leave the clone untouched.", success, testID)

			if store.Len() != 2 {
				t.Fatalf("\t%s\tTest %d:\tShould hold 2 outputs, got %d.", failed, testID, store.Len())
			}
			t.Logf("\t%s\tTest %d:\tShould hold 2 outputs.", success, testID)

			total, err := store.Total()
			if err != nil || total != 100 {
				t.Fatalf("\t%s\tTest %d:\tShould conserve a total of 100, got %d: %v", failed, testID, total, err)
			}
			t.Logf("\t%s\tTest %d:\tShould conserve a total of 100.", success, testID)

			outputs := store.Outputs()
			if outputs[0].OutPoint.Index != 0 || outputs[1].OutPoint.Index != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould order outputs by index.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould order outputs by index.", success, testID)

			rebuilt := database.FromOutputs(outputs)
			if rebuilt.Len() != store.Len() {
				t.Fatalf("\t%s\tTest %d:\tShould rebuild the store from its outputs.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould rebuild the store from its outputs.", success, testID)

			if err := store.ApplyTx(spend); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould fail to apply the spend twice.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould fail to apply the spend twice.", success, testID)
		}
	}
}

func Test_OutputTotal(t *testing.T) {
	t.Log("Given the need to sum output values safely.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the outputs overflow 64 bits.", testID)
		{
			tx := database.Tx{Vout: []database.UTXO{{Value: math.MaxUint64}, {Value: 1}}}

			if _, err := tx.OutputTotal(); !errors.Is(err, database.ErrOverflow) {
				t.Fatalf("\t%s\tTest %d:\tShould get an overflow error, got %v.", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould get an overflow error.", success, testID)
		}
	}
}

func Test_Blockchain(t *testing.T) {
	var chain database.Blockchain
	for i := range uint64(5) {
		chain = append(chain, database.Block{Height: i, Timestamp: 100 + i})
	}

	type table struct {
		name  string
		start uint64
		stop  uint64
		exp   int
	}

	tt := []table{
		{name: "all", start: 0, stop: 5, exp: 5},
		{name: "middle", start: 1, stop: 3, exp: 2},
		{name: "clamped", start: 3, stop: 50, exp: 2},
		{name: "empty", start: 4, stop: 4, exp: 0},
		{name: "inverted", start: 4, stop: 1, exp: 0},
	}

	t.Log("Given the need to read ranges of the chain.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen reading the %s range [%d, %d).", testID, tst.name, tst.start, tst.stop)
			{
				f := func(t *testing.T) {
					blocks := chain.Range(tst.start, tst.stop)
					if len(blocks) != tst.exp {
						t.Fatalf("\t%s\tTest %d:\tShould get %d blocks, got %d.", failed, testID, tst.exp, len(blocks))
					}
					t.Logf("\t%s\tTest %d:\tShould get %d blocks.", success, testID, tst.exp)

					if tst.exp > 0 && blocks[0].Height != tst.start {
						t.Fatalf("\t%s\tTest %d:\tShould start at height %d, got %d.", failed, testID, tst.start, blocks[0].Height)
					}
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func Test_BlockHash(t *testing.T) {
	t.Log("Given the need to hash blocks.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen hashing with a nonce override.", testID)
		{
			b := database.Block{
				Timestamp: 1_700_000_000,
				Height:    3,
				Nonce:     7,
				Txs:       []database.Tx{database.NewCoinbase(3, 10, "lock")},
			}

			if b.HashWithNonce(7) != b.Hash() {
				t.Fatalf("\t%s\tTest %d:\tShould match the block hash for its own nonce.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould match the block hash for its own nonce.", success, testID)

			if b.HashWithNonce(8) == b.Hash() || b.Nonce != 7 {
				t.Fatalf("\t%s\tTest %d:\tShould change the hash without touching the block.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould change the hash without touching the block.", success, testID)

			mutated := b
			mutated.Txs = []database.Tx{database.NewCoinbase(3, 11, "lock")}
			if mutated.Hash() == b.Hash() {
				t.Fatalf("\t%s\tTest %d:\tShould commit to the transactions.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould commit to the transactions.", success, testID)

			data, err := json.Marshal(b)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to marshal the block: %s", failed, testID, err)
			}

			var decoded database.Block
			if err := json.Unmarshal(data, &decoded); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to unmarshal the block: %s", failed, testID, err)
			}

			if decoded.Hash() != b.Hash() {
				t.Fatalf("\t%s\tTest %d:\tShould keep the hash across JSON.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould keep the hash across JSON.", success, testID)
		}
	}
}

func Test_TxProof(t *testing.T) {
	t.Log("Given the need to prove a transaction is part of a block.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the block holds three transactions.", testID)
		{
			spend := database.Tx{
				Nonce: 1,
				Vin:   []database.UTXOU{{TxHash: database.Hash{1}, Index: 0, Solution: "sol"}},
				Vout:  []database.UTXO{{Value: 5, Lock: "lock"}},
			}
			other := spend
			other.Nonce = 2

			b := database.Block{
				Height: 1,
				Txs:    []database.Tx{database.NewCoinbase(1, 10, "lock"), spend, other},
			}
			chain := database.Blockchain{{Height: 0, Txs: []database.Tx{database.NewCoinbase(0, 10, "lock")}}, b}

			found, ok := chain.FindTx(spend.Hash())
			if !ok || found.Height != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould find the block holding the transaction.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould find the block holding the transaction.", success, testID)

			proof, err := found.TxProof(spend.Hash())
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to build a proof: %s", failed, testID, err)
			}

			if err := database.VerifyTxProof(b.TxRoot(), spend.Hash(), proof); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould verify against the tx root: %s", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould verify against the tx root.", success, testID)

			if err := database.VerifyTxProof(b.TxRoot(), other.Hash(), proof); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould not verify another transaction.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould not verify another transaction.", success, testID)

			reordered := b
			reordered.Txs = []database.Tx{b.Txs[0], other, spend}
			if reordered.TxRoot() == b.TxRoot() {
				t.Fatalf("\t%s\tTest %d:\tShould commit to the transaction order.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould commit to the transaction order.", success, testID)

			if _, ok := chain.FindTx(database.Hash{9}); ok {
				t.Fatalf("\t%s\tTest %d:\tShould not find an unknown transaction.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould not find an unknown transaction.", success, testID)
		}
	}
}

func Test_POW(t *testing.T) {
	t.Log("Given the need to mine blocks.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen mining against an easy target.", testID)
		{
			target, _ := difficulty.FromLeadingZeroBytes(1)
			b := database.Block{
				Timestamp:  1_700_000_000,
				Difficulty: target,
				Txs:        []database.Tx{database.NewCoinbase(0, 10, "lock")},
			}

			mined, err := database.POW(context.Background(), b, noop)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to mine the block: %s", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to mine the block.", success, testID)

			if !difficulty.Satisfies(target, mined.Hash()) {
				t.Fatalf("\t%s\tTest %d:\tShould satisfy the target.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould satisfy the target.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen mining is cancelled.", testID)
		{
			target, _ := difficulty.FromLeadingZeroBytes(32)
			b := database.Block{Difficulty: target}

			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			if _, err := database.POW(ctx, b, noop); !errors.Is(err, context.DeadlineExceeded) {
				t.Fatalf("\t%s\tTest %d:\tShould stop with the context error, got %v.", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould stop with the context error.", success, testID)
		}
	}
}
