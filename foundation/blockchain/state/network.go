package state

import (
	"context"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
)

// NetSendBlockToPeers takes the new mined block and sends it to all known
// peers along with the height of the chain it extends.
func (s *State) NetSendBlockToPeers(ctx context.Context, block database.Block) error {
	s.evHandler("state: NetSendBlockToPeers: started")
	defer s.evHandler("state: NetSendBlockToPeers: completed")

	peers := s.RetrieveKnownPeers()
	if len(peers) == 0 {
		return nil
	}

	return s.network.BroadcastBlock(ctx, peers, block.Height+1, block)
}

// NetSendTxToPeers shares a new transaction with the known peers.
func (s *State) NetSendTxToPeers(ctx context.Context, tx database.Tx) {
	s.evHandler("state: NetSendTxToPeers: started")
	defer s.evHandler("state: NetSendTxToPeers: completed")

	peers := s.RetrieveKnownPeers()
	if len(peers) == 0 {
		return
	}

	// Peers that already have the transaction refuse it, which is fine.
	if err := s.network.BroadcastTx(ctx, peers, tx); err != nil {
		s.evHandler("state: NetSendTxToPeers: WARNING: %s", err)
	}
}

// NetRequestPeerStatus looks for new nodes on the blockchain by asking
// known nodes for their peer list. New nodes are added to the list.
func (s *State) NetRequestPeerStatus(ctx context.Context, pr peer.Peer) (peer.PeerStatus, error) {
	s.evHandler("state: NetRequestPeerStatus: started: %s", pr)
	defer s.evHandler("state: NetRequestPeerStatus: completed: %s", pr)

	ps, err := s.network.Status(ctx, pr)
	if err != nil {
		return peer.PeerStatus{}, err
	}

	s.evHandler("state: NetRequestPeerStatus: peer-node[%s]: height[%d]: peer-list[%s]", pr, ps.Height, ps.KnownPeers)

	return ps, nil
}

// NetFetchChain retrieves the full chain of the specified peer.
func (s *State) NetFetchChain(ctx context.Context, pr peer.Peer) (database.Blockchain, error) {
	s.evHandler("state: NetFetchChain: started: %s", pr)
	defer s.evHandler("state: NetFetchChain: completed: %s", pr)

	chain, err := s.network.FetchChain(ctx, pr)
	if err != nil {
		return nil, err
	}

	s.evHandler("state: NetFetchChain: peer-node[%s]: height[%d]", pr, chain.Height())

	return chain, nil
}
