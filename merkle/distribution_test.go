package merkle

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/usdp-protocol/erde/allocation"
	"github.com/usdp-protocol/erde/testing/assert"
	"github.com/usdp-protocol/erde/testing/require"
)

func reward(addr common.Address, total int64) *allocation.UserReward {
	return &allocation.UserReward{
		Address:     addr,
		TotalReward: big.NewInt(total),
		DebtReward:  big.NewInt(total),
		SPReward:    new(big.Int),
		EcoReward:   new(big.Int),
		LPRewards:   map[common.Address]*big.Int{},
	}
}

func testRewards(n int) []*allocation.UserReward {
	out := make([]*allocation.UserReward, n)
	for i := 0; i < n; i++ {
		out[i] = reward(common.BigToAddress(big.NewInt(int64(i+1))), int64(10*(i+1)))
	}
	return out
}

func TestBuildDistribution_AttachesVerifiableProofs(t *testing.T) {
	rewards := testRewards(5)
	dist, err := BuildDistribution(3, rewards, big.NewInt(1000), time.Now().UTC())
	require.NoError(t, err)

	assert.Equal(t, uint64(3), dist.Epoch)
	assert.Equal(t, "150", dist.TotalRewards.String())
	require.NotEqual(t, [32]byte{}, dist.MerkleRoot)

	for _, r := range dist.Recipients {
		require.NotEqual(t, 0, len(r.Proof), "recipient %s", r.Address.Hex())
		leaf := LeafHash(r.Address, r.TotalReward)
		assert.Equal(t, true, Verify(dist.MerkleRoot, leaf, r.Proof))
	}
}

func TestBuildDistribution_RootIndependentOfRecipientOrder(t *testing.T) {
	forward, err := BuildDistribution(1, testRewards(6), big.NewInt(1000), time.Now().UTC())
	require.NoError(t, err)

	shuffled := testRewards(6)
	for i, j := 0, len(shuffled)-1; i < j; i, j = i+1, j-1 {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	backward, err := BuildDistribution(1, shuffled, big.NewInt(1000), time.Now().UTC())
	require.NoError(t, err)

	assert.Equal(t, forward.MerkleRoot, backward.MerkleRoot)
}

func TestBuildDistribution_RejectsEmpty(t *testing.T) {
	_, err := BuildDistribution(1, nil, big.NewInt(100), time.Now().UTC())
	require.ErrorContains(t, "no recipients", err)
	if _, ok := err.(*PolicyError); !ok {
		t.Fatalf("want *PolicyError, got %T", err)
	}
}

func TestBuildDistribution_RejectsZeroAddress(t *testing.T) {
	rewards := testRewards(2)
	rewards[1].Address = common.Address{}
	_, err := BuildDistribution(1, rewards, big.NewInt(100), time.Now().UTC())
	require.ErrorContains(t, "zero address", err)
}

func TestBuildDistribution_RejectsDuplicateRecipient(t *testing.T) {
	rewards := testRewards(3)
	rewards[2].Address = rewards[0].Address
	_, err := BuildDistribution(1, rewards, big.NewInt(100), time.Now().UTC())
	require.ErrorContains(t, "duplicate recipient", err)
}

func TestBuildDistribution_RejectsNegativeReward(t *testing.T) {
	rewards := testRewards(2)
	rewards[0].TotalReward = big.NewInt(-1)
	_, err := BuildDistribution(1, rewards, big.NewInt(100), time.Now().UTC())
	require.ErrorContains(t, "negative reward", err)
}

func TestBuildDistribution_RejectsCapacityOverflow(t *testing.T) {
	// The count check fires before any hashing, so an oversized input stays
	// cheap to reject.
	r := reward(common.BigToAddress(big.NewInt(1)), 1)
	rewards := make([]*allocation.UserReward, MaxRecipients+1)
	for i := range rewards {
		rewards[i] = r
	}
	_, err := BuildDistribution(1, rewards, big.NewInt(1), time.Now().UTC())
	require.ErrorContains(t, "exceeds", err)
	if _, ok := err.(*PolicyError); !ok {
		t.Fatalf("want *PolicyError, got %T", err)
	}
}

func TestBuildDistribution_RejectsBudgetOverrun(t *testing.T) {
	_, err := BuildDistribution(1, testRewards(3), big.NewInt(59), time.Now().UTC())
	require.ErrorContains(t, "exceed weekly budget", err)
}
