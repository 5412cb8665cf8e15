package merkle

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/usdp-protocol/erde/testing/assert"
	"github.com/usdp-protocol/erde/testing/require"
)

func testLeaves(n int) [][32]byte {
	leaves := make([][32]byte, n)
	for i := 0; i < n; i++ {
		addr := common.BigToAddress(big.NewInt(int64(i + 1)))
		leaves[i] = LeafHash(addr, big.NewInt(int64(100*(i+1))))
	}
	return leaves
}

func TestLeafHash_Deterministic(t *testing.T) {
	addr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	a := LeafHash(addr, big.NewInt(500))
	b := LeafHash(addr, big.NewInt(500))
	assert.Equal(t, a, b)

	assert.NotEqual(t, a, LeafHash(addr, big.NewInt(501)), "amount must change the leaf")
	other := common.HexToAddress("0x2222222222222222222222222222222222222222")
	assert.NotEqual(t, a, LeafHash(other, big.NewInt(500)), "address must change the leaf")
}

func TestNewTree_RejectsEmpty(t *testing.T) {
	_, err := NewTree(nil)
	require.ErrorContains(t, "no leaves", err)
}

func TestNewTree_RejectsDuplicateLeaves(t *testing.T) {
	leaf := LeafHash(common.BigToAddress(big.NewInt(1)), big.NewInt(100))
	_, err := NewTree([][32]byte{leaf, leaf})
	require.ErrorContains(t, "duplicate merkle leaf", err)
}

func TestTree_SingleLeaf(t *testing.T) {
	leaf := LeafHash(common.BigToAddress(big.NewInt(1)), big.NewInt(100))
	tree, err := NewTree([][32]byte{leaf})
	require.NoError(t, err)

	assert.Equal(t, leaf, tree.Root(), "single leaf tree root is the leaf")
	proof, err := tree.Proof(leaf)
	require.NoError(t, err)
	assert.Equal(t, 0, len(proof))
	assert.Equal(t, true, Verify(tree.Root(), leaf, proof))
}

func TestTree_ProofRoundTripAllSizes(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5, 8, 33} {
		leaves := testLeaves(n)
		tree, err := NewTree(leaves)
		require.NoError(t, err, "size %d", n)
		root := tree.Root()
		for i, leaf := range leaves {
			proof, err := tree.Proof(leaf)
			require.NoError(t, err, "size %d leaf %d", n, i)
			assert.Equal(t, true, Verify(root, leaf, proof), "size %d leaf %d", n, i)
		}
	}
}

func TestTree_RootIndependentOfLeafOrder(t *testing.T) {
	leaves := testLeaves(7)
	tree, err := NewTree(leaves)
	require.NoError(t, err)

	reversed := make([][32]byte, len(leaves))
	for i, leaf := range leaves {
		reversed[len(leaves)-1-i] = leaf
	}
	reordered, err := NewTree(reversed)
	require.NoError(t, err)

	assert.Equal(t, tree.Root(), reordered.Root())
}

func TestTree_ProofForUnknownLeaf(t *testing.T) {
	tree, err := NewTree(testLeaves(4))
	require.NoError(t, err)

	_, err = tree.Proof(LeafHash(common.BigToAddress(big.NewInt(99)), big.NewInt(1)))
	require.ErrorContains(t, "not in the tree", err)
}

func TestVerify_RejectsTamperedLeaf(t *testing.T) {
	leaves := testLeaves(5)
	tree, err := NewTree(leaves)
	require.NoError(t, err)

	proof, err := tree.Proof(leaves[0])
	require.NoError(t, err)

	tampered := LeafHash(common.BigToAddress(big.NewInt(1)), big.NewInt(101))
	assert.Equal(t, false, Verify(tree.Root(), tampered, proof))
}

func TestVerify_RejectsTamperedProof(t *testing.T) {
	leaves := testLeaves(5)
	tree, err := NewTree(leaves)
	require.NoError(t, err)

	proof, err := tree.Proof(leaves[2])
	require.NoError(t, err)
	require.NotEqual(t, 0, len(proof))

	proof[0][31] ^= 0xff
	assert.Equal(t, false, Verify(tree.Root(), leaves[2], proof))
}
