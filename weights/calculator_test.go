package weights

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/usdp-protocol/erde/chain"
	"github.com/usdp-protocol/erde/snapshot"
	"github.com/usdp-protocol/erde/testing/assert"
	"github.com/usdp-protocol/erde/testing/require"
)

var (
	userA = common.HexToAddress("0x1111111111111111111111111111111111111111")
	userB = common.HexToAddress("0x2222222222222222222222222222222222222222")
	userC = common.HexToAddress("0x3333333333333333333333333333333333333333")
	poolX = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	poolY = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

// buildSnapshot assembles an epoch snapshot with totals derived from the user
// positions, the same way the aggregator does.
func buildSnapshot(pools []common.Address, users ...*chain.UserSnapshot) *snapshot.EpochSnapshot {
	snap := &snapshot.EpochSnapshot{
		Epoch:         1,
		Users:         users,
		Pools:         pools,
		TotalDebt:     new(big.Int),
		TotalLPShares: make(map[common.Address]*big.Int, len(pools)),
		TotalSPShares: new(big.Int),
	}
	for _, pool := range pools {
		snap.TotalLPShares[pool] = new(big.Int)
	}
	for _, u := range users {
		snap.TotalDebt.Add(snap.TotalDebt, u.Debt)
		snap.TotalSPShares.Add(snap.TotalSPShares, u.SPShares)
		for _, pool := range pools {
			if shares := u.LPShares[pool]; shares != nil {
				snap.TotalLPShares[pool].Add(snap.TotalLPShares[pool], shares)
			}
		}
	}
	return snap
}

func position(addr common.Address, debt, sp int64, lp map[common.Address]*big.Int) *chain.UserSnapshot {
	if lp == nil {
		lp = map[common.Address]*big.Int{}
	}
	return &chain.UserSnapshot{
		Address:  addr,
		Debt:     big.NewInt(debt),
		SPShares: big.NewInt(sp),
		LPShares: lp,
	}
}

func TestCompute_ProportionalToPositions(t *testing.T) {
	snap := buildSnapshot(nil,
		position(userA, 600, 0, nil),
		position(userB, 400, 0, nil),
	)
	ws, err := Compute(snap)
	require.NoError(t, err)
	require.Equal(t, 2, len(ws))

	assert.Equal(t, 0, ws[0].DebtWeight.Cmp(big.NewRat(3, 5)), "user A debt weight")
	assert.Equal(t, 0, ws[1].DebtWeight.Cmp(big.NewRat(2, 5)), "user B debt weight")
}

func TestCompute_SingleUserTakesWholeChannel(t *testing.T) {
	snap := buildSnapshot(
		[]common.Address{poolX},
		position(userA, 123, 456, map[common.Address]*big.Int{poolX: big.NewInt(789)}),
	)
	ws, err := Compute(snap)
	require.NoError(t, err)
	require.Equal(t, 1, len(ws))

	one := big.NewRat(1, 1)
	assert.Equal(t, 0, ws[0].DebtWeight.Cmp(one))
	assert.Equal(t, 0, ws[0].SPWeight.Cmp(one))
	assert.Equal(t, 0, ws[0].LPWeights[poolX].Cmp(one))
}

func TestCompute_ZeroChannelYieldsZeroWeights(t *testing.T) {
	// Nobody holds stability pool shares, so every SP weight is zero rather
	// than a division by the zero total.
	snap := buildSnapshot(nil,
		position(userA, 100, 0, nil),
		position(userB, 300, 0, nil),
	)
	ws, err := Compute(snap)
	require.NoError(t, err)

	for _, w := range ws {
		assert.Equal(t, 0, w.SPWeight.Sign(), "sp weight for %s", w.Address.Hex())
	}
	assert.Equal(t, 0, ws[0].DebtWeight.Cmp(big.NewRat(1, 4)))
	assert.Equal(t, 0, ws[1].DebtWeight.Cmp(big.NewRat(3, 4)))
}

func TestCompute_SumsToExactlyOnePerActiveChannel(t *testing.T) {
	snap := buildSnapshot(
		[]common.Address{poolX, poolY},
		position(userA, 1, 7, map[common.Address]*big.Int{poolX: big.NewInt(13)}),
		position(userB, 2, 11, map[common.Address]*big.Int{poolX: big.NewInt(17), poolY: big.NewInt(23)}),
		position(userC, 4, 0, map[common.Address]*big.Int{poolY: big.NewInt(29)}),
	)
	ws, err := Compute(snap)
	require.NoError(t, err)

	one := big.NewRat(1, 1)
	debtSum := new(big.Rat)
	spSum := new(big.Rat)
	lpSums := map[common.Address]*big.Rat{poolX: new(big.Rat), poolY: new(big.Rat)}
	for _, w := range ws {
		debtSum.Add(debtSum, w.DebtWeight)
		spSum.Add(spSum, w.SPWeight)
		for _, pool := range snap.Pools {
			lpSums[pool].Add(lpSums[pool], w.LPWeights[pool])
		}
	}
	assert.Equal(t, 0, debtSum.Cmp(one), "debt weights")
	assert.Equal(t, 0, spSum.Cmp(one), "sp weights")
	assert.Equal(t, 0, lpSums[poolX].Cmp(one), "pool X weights")
	assert.Equal(t, 0, lpSums[poolY].Cmp(one), "pool Y weights")
}

func TestCompute_MissingPoolBalanceIsZeroWeight(t *testing.T) {
	snap := buildSnapshot(
		[]common.Address{poolX},
		position(userA, 0, 0, map[common.Address]*big.Int{poolX: big.NewInt(50)}),
		position(userB, 0, 0, nil),
	)
	ws, err := Compute(snap)
	require.NoError(t, err)

	assert.Equal(t, 0, ws[0].LPWeights[poolX].Cmp(big.NewRat(1, 1)))
	assert.Equal(t, 0, ws[1].LPWeights[poolX].Sign())
}
