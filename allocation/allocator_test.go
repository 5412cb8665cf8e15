package allocation

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/usdp-protocol/erde/snapshot"
	"github.com/usdp-protocol/erde/testing/assert"
	"github.com/usdp-protocol/erde/testing/require"
	"github.com/usdp-protocol/erde/weights"
)

var (
	userA    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	userB    = common.HexToAddress("0x2222222222222222222222222222222222222222")
	poolX    = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	treasury = common.HexToAddress("0x9999999999999999999999999999999999999999")
)

func weight(addr common.Address, debt, sp *big.Rat, lp map[common.Address]*big.Rat) *weights.UserWeight {
	if lp == nil {
		lp = map[common.Address]*big.Rat{}
	}
	return &weights.UserWeight{Address: addr, DebtWeight: debt, SPWeight: sp, LPWeights: lp}
}

func snapWithPools(pools ...common.Address) *snapshot.EpochSnapshot {
	return &snapshot.EpochSnapshot{Pools: pools}
}

func TestAllocate_ExactSplitWithoutResidual(t *testing.T) {
	a, err := NewAllocator(DefaultPolicy, treasury)
	require.NoError(t, err)

	ws := []*weights.UserWeight{
		weight(userA, big.NewRat(3, 4), big.NewRat(1, 2), map[common.Address]*big.Rat{poolX: big.NewRat(1, 2)}),
		weight(userB, big.NewRat(1, 4), big.NewRat(1, 2), map[common.Address]*big.Rat{poolX: big.NewRat(1, 2)}),
	}
	rewards, split, err := a.Allocate(ws, big.NewInt(100), snapWithPools(poolX))
	require.NoError(t, err)
	// Every slice divides evenly, so no treasury entry appears.
	require.Equal(t, 2, len(rewards))

	assert.Equal(t, "30", rewards[0].DebtReward.String())
	assert.Equal(t, "15", rewards[0].SPReward.String())
	assert.Equal(t, "15", rewards[0].LPRewards[poolX].String())
	assert.Equal(t, "60", rewards[0].TotalReward.String())

	assert.Equal(t, "10", rewards[1].DebtReward.String())
	assert.Equal(t, "40", rewards[1].TotalReward.String())

	assert.Equal(t, "40", split.Debt.String())
	assert.Equal(t, "30", split.StabilityPool.String())
	assert.Equal(t, "30", split.LPPairs.String())
	assert.Equal(t, "0", split.Eco.String())
	assert.Equal(t, "100", split.Total().String())
}

func TestAllocate_RoundingRemaindersGoToTreasury(t *testing.T) {
	a, err := NewAllocator(DefaultPolicy, treasury)
	require.NoError(t, err)

	// Debt channel only: floor(40*2/3)=26 and floor(40*1/3)=13 leave 1 behind,
	// and the idle SP and LP slices (30 each) are pure residual.
	ws := []*weights.UserWeight{
		weight(userA, big.NewRat(2, 3), new(big.Rat), nil),
		weight(userB, big.NewRat(1, 3), new(big.Rat), nil),
	}
	rewards, split, err := a.Allocate(ws, big.NewInt(100), snapWithPools())
	require.NoError(t, err)
	require.Equal(t, 3, len(rewards))

	assert.Equal(t, "26", rewards[0].TotalReward.String())
	assert.Equal(t, "13", rewards[1].TotalReward.String())

	res := rewards[2]
	assert.Equal(t, treasury, res.Address)
	assert.Equal(t, "61", res.EcoReward.String())
	assert.Equal(t, "61", res.TotalReward.String())
	assert.Equal(t, "61", split.Eco.String())

	sum := new(big.Int)
	for _, r := range rewards {
		sum.Add(sum, r.TotalReward)
	}
	assert.Equal(t, "100", sum.String(), "distribution must cover the full budget")
}

func TestAllocate_ResidualMergesIntoTreasuryPosition(t *testing.T) {
	// The treasury itself holds debt; the residual folds into its entry
	// instead of creating a duplicate recipient.
	a, err := NewAllocator(DefaultPolicy, userA)
	require.NoError(t, err)

	ws := []*weights.UserWeight{
		weight(userA, big.NewRat(2, 3), new(big.Rat), nil),
		weight(userB, big.NewRat(1, 3), new(big.Rat), nil),
	}
	rewards, _, err := a.Allocate(ws, big.NewInt(100), snapWithPools())
	require.NoError(t, err)
	require.Equal(t, 2, len(rewards))

	assert.Equal(t, "26", rewards[0].DebtReward.String())
	assert.Equal(t, "61", rewards[0].EcoReward.String())
	assert.Equal(t, "87", rewards[0].TotalReward.String())
}

func TestAllocate_BreakdownIdentityHolds(t *testing.T) {
	a, err := NewAllocator(DefaultPolicy, treasury)
	require.NoError(t, err)

	ws := []*weights.UserWeight{
		weight(userA, big.NewRat(5, 7), big.NewRat(1, 3), map[common.Address]*big.Rat{poolX: big.NewRat(9, 11)}),
		weight(userB, big.NewRat(2, 7), big.NewRat(2, 3), map[common.Address]*big.Rat{poolX: big.NewRat(2, 11)}),
	}
	rewards, _, err := a.Allocate(ws, big.NewInt(1000003), snapWithPools(poolX))
	require.NoError(t, err)

	for _, r := range rewards {
		breakdown := new(big.Int).Add(r.DebtReward, r.SPReward)
		breakdown.Add(breakdown, r.EcoReward)
		for _, amount := range r.LPRewards {
			breakdown.Add(breakdown, amount)
		}
		assert.Equal(t, 0, breakdown.Cmp(r.TotalReward), "breakdown for %s", r.Address.Hex())
	}
}

func TestAllocate_LargerWeightNeverEarnsLess(t *testing.T) {
	a, err := NewAllocator(DefaultPolicy, treasury)
	require.NoError(t, err)

	ws := []*weights.UserWeight{
		weight(userA, big.NewRat(99, 100), new(big.Rat), nil),
		weight(userB, big.NewRat(1, 100), new(big.Rat), nil),
	}
	rewards, _, err := a.Allocate(ws, big.NewInt(777), snapWithPools())
	require.NoError(t, err)

	if rewards[0].DebtReward.Cmp(rewards[1].DebtReward) < 0 {
		t.Fatalf("larger debt weight earned less: %s < %s", rewards[0].DebtReward, rewards[1].DebtReward)
	}
}

func TestAllocate_NoUsersYieldsNoRewards(t *testing.T) {
	a, err := NewAllocator(DefaultPolicy, treasury)
	require.NoError(t, err)

	rewards, _, err := a.Allocate(nil, big.NewInt(100), snapWithPools())
	require.NoError(t, err)
	assert.Equal(t, 0, len(rewards))
}

func TestAllocate_RejectsBadBudget(t *testing.T) {
	a, err := NewAllocator(DefaultPolicy, treasury)
	require.NoError(t, err)

	_, _, err = a.Allocate(nil, nil, snapWithPools())
	require.ErrorContains(t, "weekly budget", err)
	_, _, err = a.Allocate(nil, big.NewInt(-1), snapWithPools())
	require.ErrorContains(t, "weekly budget", err)
}

func TestNewAllocator_RejectsBadInputs(t *testing.T) {
	_, err := NewAllocator(Policy{DebtBps: 5000, SPBps: 3000, LPBps: 3000}, treasury)
	require.ErrorContains(t, "policy fractions", err)

	_, err = NewAllocator(DefaultPolicy, common.Address{})
	require.ErrorContains(t, "treasury address", err)
}

func TestPolicyValidate(t *testing.T) {
	require.NoError(t, DefaultPolicy.Validate())
	require.ErrorContains(t, "policy fractions", Policy{DebtBps: 10000, SPBps: 1, LPBps: 0}.Validate())
}
