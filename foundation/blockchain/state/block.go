package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ardanlabs/powchain/foundation/blockchain/consensus"
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/difficulty"
	"github.com/ardanlabs/powchain/foundation/blockchain/metrics"
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
)

// incomingBlock is a block waiting to be reconciled with the ledger along
// with the node that sent it and the chain height it claims. A nil block is
// a height announced by a peer without the block itself.
type incomingBlock struct {
	origin string
	height uint64
	block  *database.Block
}

// SubmitBlock queues a block received from the origin node. The claimed
// height is the height of the origin's chain with this block at its tip.
// Nothing is validated until the next call to ProcessBlocks.
func (s *State) SubmitBlock(origin string, claimedHeight uint64, block database.Block) {
	s.inMu.Lock()
	defer s.inMu.Unlock()

	s.inBlocks = append(s.inBlocks, incomingBlock{
		origin: origin,
		height: claimedHeight,
		block:  &block,
	})
}

// SubmitPeerHeight queues the chain height a peer reported. When it is
// longer than the local chain the next call to ProcessBlocks fetches the
// peer's chain.
func (s *State) SubmitPeerHeight(origin string, height uint64) {
	s.inMu.Lock()
	defer s.inMu.Unlock()

	s.inBlocks = append(s.inBlocks, incomingBlock{
		origin: origin,
		height: height,
	})
}

// ProcessBlocks reconciles every queued block with a working copy of the
// ledger and swaps the result in when anything changed. A block claiming the
// next height is validated and applied. Any other block newer than the
// working copy makes the node fetch the origin's full chain, which is
// adopted when it is valid and strictly longer. It reports whether the
// ledger changed.
func (s *State) ProcessBlocks(ctx context.Context) bool {
	s.inMu.Lock()
	incoming := s.inBlocks
	s.inBlocks = nil
	s.inMu.Unlock()

	if len(incoming) == 0 {
		return false
	}

	s.evHandler("state: ProcessBlocks: started: blocks[%d]", len(incoming))
	defer s.evHandler("state: ProcessBlocks: completed")

	// This goroutine is the only writer, so the working copy can be built
	// without holding the lock.
	s.mu.RLock()
	chain := s.chain.Clone()
	store := s.store.Clone()
	target := s.difficulty
	s.mu.RUnlock()

	var mined []database.Tx
	var modified bool

	for _, in := range incoming {
		if ctx.Err() != nil {
			s.evHandler("state: ProcessBlocks: cancelled: %s", ctx.Err())
			break
		}

		if in.height <= chain.Height() {
			s.evHandler("state: ProcessBlocks: stale: origin[%s]: claimed[%d]: height[%d]", in.origin, in.height, chain.Height())
			metrics.BlockRejected()
			continue
		}

		if in.block != nil && in.height == chain.Height()+1 {
			block := *in.block

			err := consensus.ValidateNext(chain, block, store, target, s.genesis, consensus.EventHandler(s.evHandler))
			if err == nil {
				if chain, err = consensus.Apply(chain, store, block); err != nil {
					panic(fmt.Sprintf("applying validated block %d: %s", block.Height, err))
				}
				target = consensus.NextTarget(chain, target, s.genesis)
				mined = append(mined, block.Txs...)
				modified = true

				metrics.BlockAccepted(chain.Height())
				s.blockEvent(block)
				continue
			}

			s.evHandler("state: ProcessBlocks: origin[%s]: blk[%d]: not the next block: %s", in.origin, block.Height, err)
		}

		newChain, newStore, newTarget, err := s.catchUp(ctx, in.origin, chain.Height())
		if err != nil {
			s.evHandler("state: ProcessBlocks: origin[%s]: WARNING: %s", in.origin, err)
			metrics.BlockRejected()
			continue
		}

		chain, store, target = newChain, newStore, newTarget
		modified = true

		// Every pending transaction is checked again below, so there is no
		// need to track what the replacement chain mined.
		mined = nil

		metrics.ChainReplaced(chain.Height())
		if tip, ok := chain.Tip(); ok {
			s.blockEvent(tip)
		}
	}

	if !modified {
		return false
	}

	s.mu.Lock()
	s.chain = chain
	s.store = store
	s.difficulty = target
	s.mu.Unlock()

	dropped := s.mempool.Revalidate(store, mined)
	for _, tx := range dropped {
		s.evHandler("state: ProcessBlocks: dropped from mempool: tx[%s]", tx.Hash())
	}
	metrics.TxsDropped(len(dropped))
	metrics.MempoolSize(s.mempool.Count())

	s.evHandler("state: ProcessBlocks: ledger updated: height[%d]: tip[%s]", chain.Height(), chain.TipHash())

	return true
}

// =============================================================================

// catchUp fetches the full chain of the origin node and verifies it from the
// first block. The chain is returned only when it is strictly longer than
// the specified height.
func (s *State) catchUp(ctx context.Context, origin string, height uint64) (database.Blockchain, database.TxStore, difficulty.Target, error) {
	if origin == "" || origin == s.host {
		return nil, nil, difficulty.Target{}, fmt.Errorf("block from this node doesn't extend the chain")
	}

	s.status.transition(eventCatchUp)
	defer s.status.transition(eventCaughtUp)

	pr := peer.New(origin)

	chain, err := s.NetFetchChain(ctx, pr)
	if err != nil {
		return nil, nil, difficulty.Target{}, fmt.Errorf("fetching chain: %w", err)
	}

	if chain.Height() <= height {
		return nil, nil, difficulty.Target{}, fmt.Errorf("peer chain height[%d] is not longer than height[%d]", chain.Height(), height)
	}

	store, target, err := consensus.VerifyChain(chain, s.genesis, func(string, ...any) {})
	if err != nil {
		return nil, nil, difficulty.Target{}, fmt.Errorf("verifying chain: %w", err)
	}

	// A peer serving a valid chain is worth remembering.
	s.AddKnownPeer(pr)

	s.evHandler("state: catchUp: adopting chain: origin[%s]: height[%d]", origin, chain.Height())

	return chain.Clone(), store, target, nil
}

// blockEvent provides a specific event about a new block in the chain for
// application specific support.
func (s *State) blockEvent(block database.Block) {
	blockJSON, err := json.Marshal(block)
	if err != nil {
		blockJSON = []byte(fmt.Sprintf("%q", err.Error()))
	}

	s.evHandler(`viewer: block: {"hash":%q,"block":%s}`, block.Hash(), string(blockJSON))
}
