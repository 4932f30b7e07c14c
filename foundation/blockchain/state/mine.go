package state

import (
	"context"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/consensus"
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/metrics"
	"github.com/ardanlabs/powchain/foundation/blockchain/script"
)

// PrepareCandidate builds the next block for this node to mine on top of
// the current tip. Mempool transactions are taken by the select strategy up
// to the block limit, skipping any that doesn't verify against the ledger
// together with the ones already taken. The coinbase pays the reward plus
// the fees to the beneficiary.
func (s *State) PrepareCandidate() (database.Block, error) {
	s.mu.RLock()
	chain := s.chain
	store := s.store
	target := s.difficulty
	s.mu.RUnlock()

	height := chain.Height()

	var txs []database.Tx
	var fees uint64
	spent := make(map[database.OutPoint]struct{})

	for _, c := range s.mempool.PickBest(-1) {
		if s.genesis.BlockTxLimit > 0 && len(txs) == s.genesis.BlockTxLimit {
			break
		}

		fee, err := consensus.VerifyTx(c.Tx, store, spent)
		if err != nil {
			s.evHandler("state: PrepareCandidate: skipping tx[%s]: %s", c.Tx.Hash(), err)
			continue
		}

		total, err := database.AddValues(fees, fee)
		if err != nil {
			s.evHandler("state: PrepareCandidate: skipping tx[%s]: %s", c.Tx.Hash(), err)
			continue
		}

		fees = total
		txs = append(txs, c.Tx)
	}

	value, err := database.AddValues(consensus.MiningReward(height, s.genesis), fees)
	if err != nil {
		return database.Block{}, err
	}

	coinbase := database.NewCoinbase(height, value, script.Lock(s.beneficiary))

	timestamp := uint64(time.Now().UTC().Unix())
	if tip, exists := chain.Tip(); exists && timestamp < tip.Timestamp {
		timestamp = tip.Timestamp
	}

	block := database.Block{
		Timestamp:  timestamp,
		Previous:   chain.TipHash(),
		Difficulty: target,
		Height:     height,
		Txs:        append([]database.Tx{coinbase}, txs...),
	}

	s.evHandler("state: PrepareCandidate: blk[%d]: txs[%d]: fees[%d]: reward[%d]", height, len(txs), fees, value-fees)

	return block, nil
}

// MineNewBlock prepares a candidate and searches for a nonce that solves it.
// The search stops when the context is cancelled.
func (s *State) MineNewBlock(ctx context.Context) (database.Block, error) {
	s.evHandler("state: MineNewBlock: MINING: prepare candidate")

	candidate, err := s.PrepareCandidate()
	if err != nil {
		return database.Block{}, err
	}

	s.status.transition(eventMine)
	defer s.status.transition(eventIdle)

	s.evHandler("state: MineNewBlock: MINING: perform POW")

	start := time.Now()
	block, err := database.POW(ctx, candidate, s.evHandler)
	metrics.Mined(err == nil, time.Since(start))

	if err != nil {
		return database.Block{}, err
	}

	return block, nil
}
