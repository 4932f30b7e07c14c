// Package merkle provides a merkle tree over the transactions of a block so
// a block header can commit to them and inclusion can be proven.
package merkle

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"hash"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrNotFound is returned when the data isn't a leaf of the tree.
var ErrNotFound = errors.New("unable to find data in tree")

// Hashable represents the behavior concrete data must exhibit to be used in
// the merkle tree.
type Hashable[T any] interface {
	Hash() ([]byte, error)
	Equals(other T) bool
}

// Set of positions for a proof hash.
const (
	Left  = 0 // Proof hash is concatenated first.
	Right = 1 // Proof hash is concatenated second.
)

// Proof is the set of sibling hashes on the path from a leaf to the root
// and the side each sibling sits on.
type Proof struct {
	Hashes []hexutil.Bytes `json:"hashes"`
	Order  []int           `json:"order"`
}

// =============================================================================

// Tree represents a merkle tree that uses data of some type T that exhibits
// the behavior defined by the Hashable constraint. A level with an odd
// number of nodes pairs the last node with itself.
type Tree[T Hashable[T]] struct {
	values       []T
	levels       [][][]byte
	hashStrategy func() hash.Hash
}

// WithHashStrategy is used to change the default hash strategy of using
// sha256 when constructing a new tree.
func WithHashStrategy[T Hashable[T]](hashStrategy func() hash.Hash) func(t *Tree[T]) {
	return func(t *Tree[T]) {
		t.hashStrategy = hashStrategy
	}
}

// NewTree constructs a new merkle tree from the specified values.
func NewTree[T Hashable[T]](values []T, options ...func(t *Tree[T])) (*Tree[T], error) {
	if len(values) == 0 {
		return nil, errors.New("cannot construct tree with no content")
	}

	t := Tree[T]{
		values:       values,
		hashStrategy: sha256.New,
	}

	for _, option := range options {
		option(&t)
	}

	leafs := make([][]byte, len(values))
	for i, value := range values {
		h, err := value.Hash()
		if err != nil {
			return nil, err
		}
		leafs[i] = h
	}

	t.levels = append(t.levels, leafs)
	for level := leafs; len(level) > 1; {
		level = t.parents(level)
		t.levels = append(t.levels, level)
	}

	return &t, nil
}

// Root returns the hash at the top of the tree.
func (t *Tree[T]) Root() []byte {
	return t.levels[len(t.levels)-1][0]
}

// RootHex converts the merkle root byte hash to a hex encoded string.
func (t *Tree[T]) RootHex() string {
	return hexutil.Encode(t.Root())
}

// Values returns the values the tree was built from.
func (t *Tree[T]) Values() []T {
	return t.values
}

// Proof returns the sibling hashes proving the data is part of the tree.
// Hash the data, then for each proof hash concatenate it on the side named
// by the order and hash again. The final hash must equal the root.
func (t *Tree[T]) Proof(data T) (Proof, error) {
	idx := -1
	for i, value := range t.values {
		if value.Equals(data) {
			idx = i
			break
		}
	}
	if idx == -1 {
		return Proof{}, ErrNotFound
	}

	var proof Proof
	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := idx ^ 1
		if sibling >= len(level) {
			sibling = idx
		}

		order := Right
		if sibling < idx {
			order = Left
		}

		proof.Hashes = append(proof.Hashes, level[sibling])
		proof.Order = append(proof.Order, order)
		idx /= 2
	}

	return proof, nil
}

// VerifyData reports whether the data is part of the tree.
func (t *Tree[T]) VerifyData(data T) error {
	proof, err := t.Proof(data)
	if err != nil {
		return err
	}

	leaf, err := data.Hash()
	if err != nil {
		return err
	}

	return VerifyProof(t.Root(), leaf, proof, t.hashStrategy)
}

func (t *Tree[T]) parents(level [][]byte) [][]byte {
	parents := make([][]byte, 0, (len(level)+1)/2)
	for i := 0; i < len(level); i += 2 {
		right := i + 1
		if right == len(level) {
			right = i
		}
		parents = append(parents, combine(t.hashStrategy, level[i], level[right]))
	}
	return parents
}

// =============================================================================

// VerifyProof recomputes the root from the leaf hash and the proof. A nil
// hash strategy means sha256.
func VerifyProof(root []byte, leaf []byte, proof Proof, hashStrategy func() hash.Hash) error {
	if len(proof.Hashes) != len(proof.Order) {
		return errors.New("proof hashes and order don't match")
	}

	if hashStrategy == nil {
		hashStrategy = sha256.New
	}

	sum := leaf
	for i, sibling := range proof.Hashes {
		switch proof.Order[i] {
		case Left:
			sum = combine(hashStrategy, sibling, sum)
		case Right:
			sum = combine(hashStrategy, sum, sibling)
		default:
			return errors.New("invalid proof order")
		}
	}

	if !bytes.Equal(sum, root) {
		return errors.New("merkle root is not equivalent to the merkle root calculated on the proof path")
	}

	return nil
}

func combine(hashStrategy func() hash.Hash, left []byte, right []byte) []byte {
	h := hashStrategy()
	h.Write(left)
	h.Write(right)
	return h.Sum(nil)
}
