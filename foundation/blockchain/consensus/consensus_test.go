package consensus_test

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"testing"

	"github.com/ardanlabs/powchain/foundation/blockchain/consensus"
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/difficulty"
	"github.com/ardanlabs/powchain/foundation/blockchain/genesis"
	"github.com/ardanlabs/powchain/foundation/blockchain/script"
	"github.com/ardanlabs/powchain/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const (
	keyA = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	keyB = "aed31b6b5a1b7bd1a5a4d6ff0b0e0d6b8b5cc3f5ab1f4a9d2b7b1f6d0e3a9c11"
)

func noop(v string, args ...any) {}

func testGenesis() genesis.Genesis {
	g := genesis.Default()
	g.StartReward = 100
	g.HalvingInterval = 10
	return g
}

func loadKey(t *testing.T, hexKey string) (*ecdsa.PrivateKey, string) {
	pk, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		t.Fatalf("Should be able to load private key: %s", err)
	}
	return pk, signature.PublicKeyToAddress(pk.PublicKey)
}

// ledger tracks a chain being built in a test.
type ledger struct {
	t      *testing.T
	g      genesis.Genesis
	chain  database.Blockchain
	store  database.TxStore
	target difficulty.Target
}

func newLedger(t *testing.T, g genesis.Genesis) *ledger {
	return &ledger{
		t:      t,
		g:      g,
		store:  database.NewTxStore(),
		target: g.StartTarget(),
	}
}

// mine builds and solves the next block paying the coinbase to the address.
func (l *ledger) mine(coinbaseTo string, coinbaseValue uint64, txs ...database.Tx) database.Block {
	b := database.Block{
		Timestamp:  1_700_000_000 + l.chain.Height()*2,
		Previous:   l.chain.TipHash(),
		Difficulty: l.target,
		Height:     l.chain.Height(),
		Txs:        append([]database.Tx{database.NewCoinbase(l.chain.Height(), coinbaseValue, script.Lock(coinbaseTo))}, txs...),
	}

	mined, err := database.POW(context.Background(), b, noop)
	if err != nil {
		l.t.Fatalf("Should be able to mine block %d: %s", b.Height, err)
	}

	return mined
}

// accept validates and applies the block.
func (l *ledger) accept(b database.Block) error {
	if err := consensus.ValidateNext(l.chain, b, l.store, l.target, l.g, noop); err != nil {
		return err
	}

	chain, err := consensus.Apply(l.chain.Clone(), l.store, b)
	if err != nil {
		l.t.Fatalf("Should be able to apply block %d: %s", b.Height, err)
	}

	l.chain = chain
	l.target = consensus.NextTarget(l.chain, l.target, l.g)

	return nil
}

func spend(t *testing.T, pk *ecdsa.PrivateKey, op database.OutPoint, outs ...database.UTXO) database.Tx {
	solution, err := script.SignSpend(op.TxHash, op.Index, pk)
	if err != nil {
		t.Fatalf("Should be able to sign the spend: %s", err)
	}

	return database.Tx{
		Nonce: 1,
		Vin:   []database.UTXOU{{TxHash: op.TxHash, Index: op.Index, Solution: solution}},
		Vout:  outs,
	}
}

// =============================================================================

func Test_EndToEnd(t *testing.T) {
	g := testGenesis()
	pkA, addrA := loadKey(t, keyA)
	_, addrB := loadKey(t, keyB)
	reward := g.StartReward

	t.Log("Given the need to mint and spend value.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen mining a coinbase to A and then paying half to B.", testID)
		{
			l := newLedger(t, g)

			b0 := l.mine(addrA, reward)
			if err := l.accept(b0); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould accept the genesis block: %s", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould accept the genesis block.", success, testID)

			if l.store.Len() != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould hold one output, got %d.", failed, testID, l.store.Len())
			}

			coinbaseOut := database.OutPoint{TxHash: b0.Txs[0].Hash(), Index: 0}
			utxo, _ := l.store.Get(coinbaseOut)
			if utxo.Value != reward || utxo.Lock != script.Lock(addrA) {
				t.Fatalf("\t%s\tTest %d:\tShould lock the reward to A, got %+v.", failed, testID, utxo)
			}
			t.Logf("\t%s\tTest %d:\tShould hold one output of %d locked to A.", success, testID, reward)

			tx := spend(t, pkA, coinbaseOut,
				database.UTXO{Value: reward / 2, Lock: script.Lock(addrB)},
				database.UTXO{Value: reward - reward/2, Lock: script.Lock(addrA)},
			)

			b1 := l.mine(addrA, consensus.MiningReward(1, g), tx)
			if err := l.accept(b1); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould accept the spending block: %s", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould accept the spending block.", success, testID)

			if _, exists := l.store.Get(coinbaseOut); exists {
				t.Fatalf("\t%s\tTest %d:\tShould remove the spent coinbase output.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould remove the spent coinbase output.", success, testID)

			toB, _ := l.store.Get(database.OutPoint{TxHash: tx.Hash(), Index: 0})
			change, _ := l.store.Get(database.OutPoint{TxHash: tx.Hash(), Index: 1})
			if toB.Value != reward/2 || change.Value != reward-reward/2 {
				t.Fatalf("\t%s\tTest %d:\tShould split the value between B and A, got %d and %d.", failed, testID, toB.Value, change.Value)
			}
			if len(l.store[tx.Hash()]) != 2 {
				t.Fatalf("\t%s\tTest %d:\tShould hold exactly two outputs for the spend.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould split the value between B and A.", success, testID)

			changeOut := database.OutPoint{TxHash: tx.Hash(), Index: 1}
			replay := database.Tx{
				Nonce: 2,
				Vin:   []database.UTXOU{{TxHash: changeOut.TxHash, Index: changeOut.Index, Solution: tx.Vin[0].Solution}},
				Vout:  []database.UTXO{{Value: change.Value, Lock: script.Lock(addrB)}},
			}
			if _, err := consensus.VerifyTx(replay, l.store, map[database.OutPoint]struct{}{}); !errors.Is(err, consensus.ErrScript) {
				t.Fatalf("\t%s\tTest %d:\tShould refuse A's published solution on A's change output, got %v.", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould refuse A's published solution on A's change output.", success, testID)

			own := spend(t, pkA, changeOut, database.UTXO{Value: change.Value, Lock: script.Lock(addrB)})
			if _, err := consensus.VerifyTx(own, l.store, map[database.OutPoint]struct{}{}); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould let A spend the change with a fresh signature: %s", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould let A spend the change with a fresh signature.", success, testID)

			store, _, err := consensus.VerifyChain(l.chain, g, noop)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould verify the chain: %s", failed, testID, err)
			}

			if len(store.Outputs()) != len(l.store.Outputs()) {
				t.Fatalf("\t%s\tTest %d:\tShould rebuild the same UTXO set.", failed, testID)
			}
			for i, out := range store.Outputs() {
				if out != l.store.Outputs()[i] {
					t.Fatalf("\t%s\tTest %d:\tShould rebuild the same UTXO set.", failed, testID)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould rebuild the same UTXO set.", success, testID)
		}
	}
}

func Test_ValidateNext(t *testing.T) {
	g := testGenesis()
	pkA, addrA := loadKey(t, keyA)
	_, addrB := loadKey(t, keyB)

	base := newLedger(t, g)
	if err := base.accept(base.mine(addrA, g.StartReward)); err != nil {
		t.Fatalf("Should accept the genesis block: %s", err)
	}
	coinbaseOut := database.OutPoint{TxHash: base.chain[0].Txs[0].Hash(), Index: 0}

	resolve := func(l *ledger, b database.Block) database.Block {
		mined, err := database.POW(context.Background(), b, noop)
		if err != nil {
			t.Fatalf("Should be able to mine: %s", err)
		}
		return mined
	}

	type table struct {
		name  string
		block func(l *ledger) database.Block
		err   error
	}

	tt := []table{
		{
			name: "double-spend",
			block: func(l *ledger) database.Block {
				tx1 := spend(t, pkA, coinbaseOut, database.UTXO{Value: 50, Lock: script.Lock(addrB)})
				tx2 := spend(t, pkA, coinbaseOut, database.UTXO{Value: 40, Lock: script.Lock(addrB)})
				return l.mine(addrA, 10, tx1, tx2)
			},
			err: consensus.ErrDoubleSpend,
		},
		{
			name: "overspend",
			block: func(l *ledger) database.Block {
				tx := spend(t, pkA, coinbaseOut, database.UTXO{Value: g.StartReward + 1, Lock: script.Lock(addrB)})
				return l.mine(addrA, 0, tx)
			},
			err: consensus.ErrInsufficientInputs,
		},
		{
			name: "wrong-owner",
			block: func(l *ledger) database.Block {
				pkB, _ := loadKey(t, keyB)
				tx := spend(t, pkB, coinbaseOut, database.UTXO{Value: 1, Lock: script.Lock(addrB)})
				return l.mine(addrA, 0, tx)
			},
			err: consensus.ErrScript,
		},
		{
			name: "missing-utxo",
			block: func(l *ledger) database.Block {
				tx := spend(t, pkA, database.OutPoint{TxHash: database.Hash{1}}, database.UTXO{Value: 1, Lock: script.Lock(addrB)})
				return l.mine(addrA, 0, tx)
			},
			err: consensus.ErrMissingUTXO,
		},
		{
			name: "coinbase-reward",
			block: func(l *ledger) database.Block {
				tx := spend(t, pkA, coinbaseOut, database.UTXO{Value: 90, Lock: script.Lock(addrB)})
				return l.mine(addrA, consensus.MiningReward(1, g)+11, tx)
			},
			err: consensus.ErrCoinbaseReward,
		},
		{
			name: "coinbase-fees",
			block: func(l *ledger) database.Block {
				tx := spend(t, pkA, coinbaseOut, database.UTXO{Value: 90, Lock: script.Lock(addrB)})
				return l.mine(addrA, consensus.MiningReward(1, g)+10, tx)
			},
			err: nil,
		},
		{
			name: "two-coinbases",
			block: func(l *ledger) database.Block {
				return l.mine(addrA, 1, database.NewCoinbase(1, 1, script.Lock(addrB)))
			},
			err: consensus.ErrMultipleCoinbase,
		},
		{
			name: "coinbase-nonce",
			block: func(l *ledger) database.Block {
				b := l.mine(addrA, 1)
				b.Txs[0].Nonce = 7
				return resolve(l, b)
			},
			err: consensus.ErrCoinbaseNonce,
		},
		{
			name: "timestamp",
			block: func(l *ledger) database.Block {
				b := l.mine(addrA, 1)
				b.Timestamp = l.chain[0].Timestamp - 1
				return resolve(l, b)
			},
			err: consensus.ErrTimestamp,
		},
		{
			name: "linkage",
			block: func(l *ledger) database.Block {
				b := l.mine(addrA, 1)
				b.Previous = database.Hash{9}
				return resolve(l, b)
			},
			err: consensus.ErrLinkage,
		},
		{
			name: "height",
			block: func(l *ledger) database.Block {
				b := l.mine(addrA, 1)
				b.Height = 5
				b.Txs[0].Nonce = 5
				return resolve(l, b)
			},
			err: consensus.ErrHeight,
		},
		{
			name: "difficulty",
			block: func(l *ledger) database.Block {
				b := l.mine(addrA, 1)
				b.Difficulty, _ = difficulty.FromLeadingZeroBytes(0)
				return b
			},
			err: consensus.ErrDifficulty,
		},
		{
			name: "unsolved",
			block: func(l *ledger) database.Block {
				b := l.mine(addrA, 1)
				for nonce := b.Nonce + 1; ; nonce++ {
					if !difficulty.Satisfies(b.Difficulty, b.HashWithNonce(nonce)) {
						b.Nonce = nonce
						return b
					}
				}
			},
			err: consensus.ErrProofOfWork,
		},
	}

	t.Log("Given the need to validate the next block.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen handling a %s block.", testID, tst.name)
			{
				f := func(t *testing.T) {
					l := &ledger{t: t, g: g, chain: base.chain.Clone(), store: base.store.Clone(), target: base.target}
					b := tst.block(l)

					err := consensus.ValidateNext(l.chain, b, l.store, l.target, g, noop)

					switch {
					case tst.err == nil && err != nil:
						t.Fatalf("\t%s\tTest %d:\tShould accept the block: %s", failed, testID, err)
					case tst.err != nil && !errors.Is(err, tst.err):
						t.Fatalf("\t%s\tTest %d:\tShould get %q, got %v.", failed, testID, tst.err, err)
					}
					t.Logf("\t%s\tTest %d:\tShould get the expected result: %v.", success, testID, tst.err)

					if consensus.ValidNext(l.chain, b, l.store, l.target, g) != (tst.err == nil) {
						t.Fatalf("\t%s\tTest %d:\tShould agree with ValidNext.", failed, testID)
					}
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func Test_VerifyChain(t *testing.T) {
	g := testGenesis()
	_, addrA := loadKey(t, keyA)

	l := newLedger(t, g)
	for range 4 {
		if err := l.accept(l.mine(addrA, consensus.MiningReward(l.chain.Height(), g))); err != nil {
			t.Fatalf("Should be able to build the chain: %s", err)
		}
	}

	type table struct {
		name   string
		mutate func(chain database.Blockchain)
	}

	tt := []table{
		{name: "middle-timestamp", mutate: func(c database.Blockchain) { c[1].Timestamp++ }},
		{name: "first-previous", mutate: func(c database.Blockchain) { c[0].Previous[31] = 1 }},
		{name: "last-coinbase-value", mutate: func(c database.Blockchain) {
			c[3].Txs = []database.Tx{database.NewCoinbase(3, c[3].Txs[0].Vout[0].Value+1, c[3].Txs[0].Vout[0].Lock)}
		}},
		{name: "middle-difficulty", mutate: func(c database.Blockchain) { c[2].Difficulty[31] ^= 0x01 }},
	}

	t.Log("Given the need to verify a whole chain.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the chain is untouched.", testID)
		{
			store, target, err := consensus.VerifyChain(l.chain, g, noop)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould verify the chain: %s", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould verify the chain.", success, testID)

			if store.Len() != l.store.Len() || target != l.target {
				t.Fatalf("\t%s\tTest %d:\tShould match the incrementally built ledger.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould match the incrementally built ledger.", success, testID)
		}

		for _, tst := range tt {
			testID++
			t.Logf("\tTest %d:\tWhen the chain has a mutated %s.", testID, tst.name)
			{
				f := func(t *testing.T) {
					chain := l.chain.Clone()
					tst.mutate(chain)

					if _, _, err := consensus.VerifyChain(chain, g, noop); err == nil {
						t.Fatalf("\t%s\tTest %d:\tShould reject the chain.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould reject the chain.", success, testID)
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func Test_MiningReward(t *testing.T) {
	g := testGenesis()

	type table struct {
		height uint64
		reward uint64
	}

	tt := []table{
		{height: 0, reward: 100},
		{height: g.HalvingInterval - 1, reward: 100},
		{height: g.HalvingInterval, reward: 50},
		{height: 2 * g.HalvingInterval, reward: 25},
		{height: 7 * g.HalvingInterval, reward: 0},
		{height: 1_000 * g.HalvingInterval, reward: 0},
	}

	t.Log("Given the need to halve the mining reward.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen mining at height %d.", testID, tst.height)
			{
				if got := consensus.MiningReward(tst.height, g); got != tst.reward {
					t.Fatalf("\t%s\tTest %d:\tShould get a reward of %d, got %d.", failed, testID, tst.reward, got)
				}
				t.Logf("\t%s\tTest %d:\tShould get a reward of %d.", success, testID, tst.reward)
			}
		}
	}
}
