// Package state is the core API for the blockchain and implements all the
// business rules and processing.
package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/consensus"
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/difficulty"
	"github.com/ardanlabs/powchain/foundation/blockchain/genesis"
	"github.com/ardanlabs/powchain/foundation/blockchain/mempool"
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
	"github.com/ardanlabs/powchain/foundation/blockchain/signature"
	"github.com/ardanlabs/powchain/foundation/blockchain/storage"
	"github.com/jellydator/ttlcache/v3"
)

// ErrSnapshot is returned by New when the stored ledger can't be trusted.
var ErrSnapshot = errors.New("stored ledger failed verification")

// =============================================================================

// EventHandler defines a function that is called when events
// occur in the processing of blocks and transactions.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for mining, peer updates, and transaction sharing.
type Worker interface {
	Shutdown()
	SignalStartMining()
	SignalCancelMining() (done func())
	SignalShareTx(tx database.Tx)
}

// Network interface represents the behavior required to talk to other
// nodes. It is implemented by peer.Client.
type Network interface {
	Status(ctx context.Context, pr peer.Peer) (peer.PeerStatus, error)
	FetchChain(ctx context.Context, pr peer.Peer) (database.Blockchain, error)
	BroadcastBlock(ctx context.Context, peers []peer.Peer, height uint64, block database.Block) error
	BroadcastTx(ctx context.Context, peers []peer.Peer, tx database.Tx) error
}

// =============================================================================

// Config represents the configuration required to start
// the blockchain node.
type Config struct {
	Beneficiary    string
	Host           string
	Storage        storage.Storage
	Genesis        genesis.Genesis
	SelectStrategy string
	KnownPeers     *peer.PeerSet
	Network        Network
	SeenTxTTL      time.Duration
	EvHandler      EventHandler
}

// State manages the blockchain ledger.
type State struct {
	beneficiary string
	host        string
	evHandler   EventHandler

	mu         sync.RWMutex
	chain      database.Blockchain
	store      database.TxStore
	difficulty difficulty.Target

	inMu     sync.Mutex
	inBlocks []incomingBlock
	inTxs    []database.Tx

	knownPeers *peer.PeerSet
	network    Network
	genesis    genesis.Genesis
	mempool    *mempool.Mempool
	storage    storage.Storage
	seen       *ttlcache.Cache[database.Hash, struct{}]
	status     *status

	Worker Worker
}

// New constructs the state for the node. A stored ledger is replayed and
// verified from the first block. Failing to read or verify it is an error
// the node must not start with.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	if err := signature.ValidateAddress(cfg.Beneficiary); err != nil {
		return nil, fmt.Errorf("beneficiary: %w", err)
	}

	if cfg.Network == nil {
		cfg.Network = peer.NewClient(cfg.Host, 0)
	}

	if cfg.KnownPeers == nil {
		cfg.KnownPeers = peer.NewPeerSet()
	}

	if cfg.SeenTxTTL <= 0 {
		cfg.SeenTxTTL = time.Minute
	}

	// Construct a mempool with the specified select strategy.
	mempool, err := mempool.NewWithStrategy(cfg.SelectStrategy)
	if err != nil {
		return nil, err
	}

	// Load the snapshot from the last run, if any.
	snap, found, err := cfg.Storage.Load()
	if err != nil {
		return nil, fmt.Errorf("loading ledger: %w", err)
	}

	chain := database.Blockchain{}
	store := database.NewTxStore()
	target := cfg.Genesis.StartTarget()

	if found {
		ev("state: New: verifying stored chain: height[%d]", snap.Chain.Height())

		chain = snap.Chain
		store, target, err = consensus.VerifyChain(snap.Chain, cfg.Genesis, func(string, ...any) {})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSnapshot, err)
		}

		if target != snap.Difficulty {
			return nil, fmt.Errorf("%w: difficulty got %s, exp %s", ErrSnapshot, snap.Difficulty, target)
		}

		if snap.Store != nil && store.Len() != snap.Store.Len() {
			return nil, fmt.Errorf("%w: utxo count got %d, exp %d", ErrSnapshot, snap.Store.Len(), store.Len())
		}
	}

	mempool.Revalidate(store, nil)

	seen := ttlcache.New(
		ttlcache.WithTTL[database.Hash, struct{}](cfg.SeenTxTTL),
		ttlcache.WithDisableTouchOnHit[database.Hash, struct{}](),
	)
	go seen.Start()

	state := State{
		beneficiary: cfg.Beneficiary,
		host:        cfg.Host,
		evHandler:   ev,

		chain:      chain,
		store:      store,
		difficulty: target,

		// Pending transactions from the last run go through admission again.
		inTxs: snap.Mempool,

		knownPeers: cfg.KnownPeers,
		network:    cfg.Network,
		genesis:    cfg.Genesis,
		mempool:    mempool,
		storage:    cfg.Storage,
		seen:       seen,
		status:     newStatus(ev),
	}

	// The Worker is not set here. The call to worker.Run will assign itself
	// and start everything up and running for the node.

	return &state, nil
}

// Start marks the node as running.
func (s *State) Start() {
	s.status.transition(eventStart)
}

// Shutdown cleanly brings the node down. Background work is stopped first,
// then the ledger and the mempool are persisted.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	// Make sure the database file is properly closed.
	defer func() {
		s.storage.Close()
	}()

	// Stop all blockchain writing activity.
	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	s.seen.Stop()
	s.status.transition(eventStop)

	s.evHandler("state: shutdown: persisting ledger: height[%d]", s.QueryHeight())

	return s.persist()
}

// persist writes the current ledger and mempool to storage.
func (s *State) persist() error {
	s.mu.RLock()
	snap := storage.Snapshot{
		Chain:      s.chain,
		Store:      s.store,
		Difficulty: s.difficulty,
		Mempool:    s.mempool.Copy(),
	}
	s.mu.RUnlock()

	if err := s.storage.Save(snap); err != nil {
		return fmt.Errorf("saving ledger: %w", err)
	}

	return nil
}
