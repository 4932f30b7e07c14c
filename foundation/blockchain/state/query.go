package state

import (
	"fmt"
	"math"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/difficulty"
	"github.com/ardanlabs/powchain/foundation/blockchain/genesis"
	"github.com/ardanlabs/powchain/foundation/blockchain/merkle"
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
	"github.com/ardanlabs/powchain/foundation/blockchain/script"
)

// QueryHeight returns the number of blocks in the chain.
func (s *State) QueryHeight() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.chain.Height()
}

// QueryBlocks returns a copy of the blocks in the half-open range
// [start, stop). The range is clamped to the chain.
func (s *State) QueryBlocks(start uint64, stop uint64) []database.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()

	blocks := s.chain.Range(start, stop)

	out := make([]database.Block, len(blocks))
	copy(out, blocks)

	return out
}

// QueryChain returns a copy of the full chain.
func (s *State) QueryChain() database.Blockchain {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.chain.Clone()
}

// TxInclusion ties a mined transaction to the block holding it.
type TxInclusion struct {
	TxHash    database.Hash `json:"tx_hash"`
	BlockHash database.Hash `json:"block_hash"`
	Height    uint64        `json:"height"`
	TxRoot    database.Hash `json:"tx_root"`
	Proof     merkle.Proof  `json:"proof"`
}

// QueryTxProof returns the merkle proof that the transaction was mined in
// a block of the chain.
func (s *State) QueryTxProof(txHash database.Hash) (TxInclusion, error) {
	s.mu.RLock()
	block, found := s.chain.FindTx(txHash)
	s.mu.RUnlock()

	if !found {
		return TxInclusion{}, fmt.Errorf("tx %s: %w", txHash, merkle.ErrNotFound)
	}

	proof, err := block.TxProof(txHash)
	if err != nil {
		return TxInclusion{}, err
	}

	inc := TxInclusion{
		TxHash:    txHash,
		BlockHash: block.Hash(),
		Height:    block.Height,
		TxRoot:    block.TxRoot(),
		Proof:     proof,
	}

	return inc, nil
}

// QueryUTXOs returns every unspent output in canonical order.
func (s *State) QueryUTXOs() []database.Output {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.store.Outputs()
}

// QueryUTXOsByAddress returns the unspent outputs locked to the address
// and their total value.
func (s *State) QueryUTXOsByAddress(address string) ([]database.Output, uint64) {
	var outs []database.Output
	var balance uint64

	for _, out := range s.QueryUTXOs() {
		owner, ok := script.AddressFromLock(out.UTXO.Lock)
		if !ok || owner != address {
			continue
		}

		outs = append(outs, out)

		// A total past the uint64 range saturates.
		total, err := database.AddValues(balance, out.UTXO.Value)
		if err != nil {
			total = math.MaxUint64
		}
		balance = total
	}

	return outs, balance
}

// QueryDifficulty returns the target the next block must meet.
func (s *State) QueryDifficulty() difficulty.Target {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.difficulty
}

// QueryMempool returns the pending transactions in the order they were
// admitted.
func (s *State) QueryMempool() []database.Tx {
	return s.mempool.Copy()
}

// QueryMempoolLength returns the current length of the mempool.
func (s *State) QueryMempoolLength() int {
	return s.mempool.Count()
}

// QueryStatus returns the status this node reports to its peers.
func (s *State) QueryStatus() peer.PeerStatus {
	s.mu.RLock()
	height := s.chain.Height()
	tip := s.chain.TipHash()
	s.mu.RUnlock()

	return peer.PeerStatus{
		State:      s.status.current(),
		Height:     height,
		TipHash:    tip,
		KnownPeers: s.RetrieveKnownPeers(),
	}
}

// =============================================================================

// RetrieveHost returns a copy of host information.
func (s *State) RetrieveHost() string {
	return s.host
}

// RetrieveBeneficiary returns the address mining rewards are paid to.
func (s *State) RetrieveBeneficiary() string {
	return s.beneficiary
}

// RetrieveGenesis returns a copy of the genesis information.
func (s *State) RetrieveGenesis() genesis.Genesis {
	return s.genesis
}

// RetrieveKnownPeers retrieves a copy of the known peer list.
func (s *State) RetrieveKnownPeers() []peer.Peer {
	return s.knownPeers.Copy(s.host)
}

// AddKnownPeer provides the ability to add a new peer to
// the known peer list.
func (s *State) AddKnownPeer(peer peer.Peer) bool {
	if peer.Match(s.host) {
		return false
	}

	return s.knownPeers.Add(peer)
}

// RemoveKnownPeer provides the ability to remove a peer from
// the known peer list.
func (s *State) RemoveKnownPeer(peer peer.Peer) {
	s.knownPeers.Remove(peer)
}
