// Package merkle builds the epoch's reward commitment as a standard merkle
// tree over ABI-encoded (address, amount) pairs, matching the OpenZeppelin
// StandardMerkleTree construction byte for byte: leaves are double keccak
// hashed, internal nodes hash their children as a lexicographically sorted
// pair, and leaves are placed in hash order so the root is independent of
// input ordering.
package merkle

import (
	"bytes"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// LeafHash returns keccak256(keccak256(abi.encode(address, uint256))). The
// double hash prevents second-preimage attacks against internal nodes.
func LeafHash(addr common.Address, amount *big.Int) [32]byte {
	var encoded [64]byte
	copy(encoded[12:32], addr.Bytes())
	amount.FillBytes(encoded[32:64])
	var out [32]byte
	copy(out[:], crypto.Keccak256(crypto.Keccak256(encoded[:])))
	return out
}

// Tree is a complete binary merkle tree stored as a flat array of 2n-1 nodes,
// leaves at the tail in reverse hash order.
type Tree struct {
	nodes     [][32]byte
	leafIndex map[[32]byte]int
	leafCount int
}

// NewTree builds the tree over the given leaf hashes. Duplicate leaves are
// rejected; callers deduplicate recipients before hashing.
func NewTree(leaves [][32]byte) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, errors.New("cannot build a merkle tree with no leaves")
	}
	sorted := make([][32]byte, len(leaves))
	copy(sorted, leaves)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i][:], sorted[j][:]) < 0
	})

	n := len(sorted)
	nodes := make([][32]byte, 2*n-1)
	leafIndex := make(map[[32]byte]int, n)
	for i, leaf := range sorted {
		idx := len(nodes) - 1 - i
		nodes[idx] = leaf
		if _, dup := leafIndex[leaf]; dup {
			return nil, errors.Errorf("duplicate merkle leaf %x", leaf)
		}
		leafIndex[leaf] = idx
	}
	for i := len(nodes) - 1 - n; i >= 0; i-- {
		nodes[i] = hashPair(nodes[2*i+1], nodes[2*i+2])
	}
	return &Tree{nodes: nodes, leafIndex: leafIndex, leafCount: n}, nil
}

// Root returns the 32-byte commitment.
func (t *Tree) Root() [32]byte {
	return t.nodes[0]
}

// Proof returns the ordered sibling hashes for the given leaf.
func (t *Tree) Proof(leaf [32]byte) ([][32]byte, error) {
	idx, ok := t.leafIndex[leaf]
	if !ok {
		return nil, errors.Errorf("leaf %x is not in the tree", leaf)
	}
	proof := make([][32]byte, 0)
	for idx > 0 {
		proof = append(proof, t.nodes[siblingIndex(idx)])
		idx = (idx - 1) / 2
	}
	return proof, nil
}

// Verify checks a proof against a root independently of any Tree instance.
// The sorted-pair construction makes the path position-independent.
func Verify(root, leaf [32]byte, proof [][32]byte) bool {
	computed := leaf
	for _, sibling := range proof {
		computed = hashPair(computed, sibling)
	}
	return computed == root
}

func hashPair(a, b [32]byte) [32]byte {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	var out [32]byte
	copy(out[:], crypto.Keccak256(a[:], b[:]))
	return out
}

func siblingIndex(i int) int {
	if i%2 == 1 {
		return i + 1
	}
	return i - 1
}
