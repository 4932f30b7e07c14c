// Package bolt implements the ability to save and load the ledger snapshot
// in a bolt database file.
package bolt

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/difficulty"
	"github.com/ardanlabs/powchain/foundation/blockchain/storage"
	"github.com/ethereum/go-ethereum/rlp"
	bolt "go.etcd.io/bbolt"
)

// Set of buckets making up a snapshot.
var (
	bucketBlocks  = []byte("blocks")
	bucketUTXOs   = []byte("utxos")
	bucketMeta    = []byte("meta")
	bucketMempool = []byte("mempool")
)

// Set of keys in the meta bucket.
var (
	keyDifficulty = []byte("difficulty")
	keyHeight     = []byte("height")
)

// output is the stored form of one unspent output of a transaction.
type output struct {
	Index uint32
	UTXO  database.UTXO
}

// =============================================================================

// Bolt represents the storage implementation for keeping the snapshot in a
// bolt database. This implements the storage.Storage interface.
type Bolt struct {
	db *bolt.DB
}

// New opens or creates the bolt database at the specified path.
func New(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	return &Bolt{db: db}, nil
}

// Close cleanly releases the database file.
func (b *Bolt) Close() error {
	return b.db.Close()
}

// Save replaces the stored snapshot in a single transaction.
func (b *Bolt) Save(snap storage.Snapshot) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketBlocks, bucketUTXOs, bucketMeta, bucketMempool} {
			if err := tx.DeleteBucket(name); err != nil && err != bolt.ErrBucketNotFound {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}

		blocks := tx.Bucket(bucketBlocks)
		for _, block := range snap.Chain {
			data, err := rlp.EncodeToBytes(block)
			if err != nil {
				return fmt.Errorf("encoding block %d: %w", block.Height, err)
			}
			if err := blocks.Put(uint64Key(block.Height), data); err != nil {
				return err
			}
		}

		utxos := tx.Bucket(bucketUTXOs)
		for hash, outs := range groupOutputs(snap.Store) {
			data, err := rlp.EncodeToBytes(outs)
			if err != nil {
				return fmt.Errorf("encoding outputs of %s: %w", hash, err)
			}
			if err := utxos.Put(hash[:], data); err != nil {
				return err
			}
		}

		mempool := tx.Bucket(bucketMempool)
		for i, mtx := range snap.Mempool {
			data, err := rlp.EncodeToBytes(mtx)
			if err != nil {
				return fmt.Errorf("encoding mempool tx %d: %w", i, err)
			}
			if err := mempool.Put(uint64Key(uint64(i)), data); err != nil {
				return err
			}
		}

		meta := tx.Bucket(bucketMeta)
		if err := meta.Put(keyHeight, uint64Key(snap.Chain.Height())); err != nil {
			return err
		}

		return meta.Put(keyDifficulty, snap.Difficulty[:])
	})
}

// Load reads the stored snapshot. The boolean is false when nothing has been
// saved yet. A snapshot that can't be decoded returns storage.ErrCorrupt.
func (b *Bolt) Load() (storage.Snapshot, bool, error) {
	var snap storage.Snapshot
	var found bool

	err := b.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		if meta == nil {
			return nil
		}

		diff := meta.Get(keyDifficulty)
		height := meta.Get(keyHeight)
		if len(diff) != len(snap.Difficulty) || len(height) != 8 {
			return fmt.Errorf("%w: invalid meta data", storage.ErrCorrupt)
		}
		found = true
		snap.Difficulty = difficulty.Target(diff)

		var err error
		if snap.Chain, err = loadChain(tx, binary.BigEndian.Uint64(height)); err != nil {
			return err
		}

		if snap.Store, err = loadStore(tx); err != nil {
			return err
		}

		snap.Mempool, err = loadMempool(tx)
		return err
	})

	if err != nil {
		return storage.Snapshot{}, false, err
	}

	return snap, found, nil
}

// =============================================================================

func loadChain(tx *bolt.Tx, height uint64) (database.Blockchain, error) {
	bucket := tx.Bucket(bucketBlocks)
	if bucket == nil {
		return nil, fmt.Errorf("%w: missing blocks", storage.ErrCorrupt)
	}

	chain := make(database.Blockchain, 0, height)

	err := bucket.ForEach(func(k, v []byte) error {
		var block database.Block
		if err := rlp.DecodeBytes(v, &block); err != nil {
			return fmt.Errorf("%w: block %x: %s", storage.ErrCorrupt, k, err)
		}

		if len(k) != 8 || binary.BigEndian.Uint64(k) != chain.Height() {
			return fmt.Errorf("%w: block %x out of order", storage.ErrCorrupt, k)
		}

		chain = append(chain, block)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if chain.Height() != height {
		return nil, fmt.Errorf("%w: got %d blocks, exp %d", storage.ErrCorrupt, chain.Height(), height)
	}

	return chain, nil
}

func loadStore(tx *bolt.Tx) (database.TxStore, error) {
	bucket := tx.Bucket(bucketUTXOs)
	if bucket == nil {
		return nil, fmt.Errorf("%w: missing utxos", storage.ErrCorrupt)
	}

	var outputs []database.Output

	err := bucket.ForEach(func(k, v []byte) error {
		if len(k) != len(database.Hash{}) {
			return fmt.Errorf("%w: utxo key %x", storage.ErrCorrupt, k)
		}

		var outs []output
		if err := rlp.DecodeBytes(v, &outs); err != nil {
			return fmt.Errorf("%w: utxos %x: %s", storage.ErrCorrupt, k, err)
		}

		hash := database.Hash(k)
		for _, out := range outs {
			outputs = append(outputs, database.Output{
				OutPoint: database.OutPoint{TxHash: hash, Index: out.Index},
				UTXO:     out.UTXO,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return database.FromOutputs(outputs), nil
}

func loadMempool(tx *bolt.Tx) ([]database.Tx, error) {
	bucket := tx.Bucket(bucketMempool)
	if bucket == nil {
		return nil, nil
	}

	var txs []database.Tx

	err := bucket.ForEach(func(k, v []byte) error {
		var mtx database.Tx
		if err := rlp.DecodeBytes(v, &mtx); err != nil {
			return fmt.Errorf("%w: mempool tx %x: %s", storage.ErrCorrupt, k, err)
		}
		txs = append(txs, mtx)
		return nil
	})

	return txs, err
}

// groupOutputs arranges the store's outputs by transaction, ordered by index.
func groupOutputs(store database.TxStore) map[database.Hash][]output {
	grouped := make(map[database.Hash][]output, len(store))
	for _, out := range store.Outputs() {
		grouped[out.OutPoint.TxHash] = append(grouped[out.OutPoint.TxHash], output{
			Index: out.OutPoint.Index,
			UTXO:  out.UTXO,
		})
	}
	return grouped
}

func uint64Key(v uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], v)
	return k[:]
}
