package snapshot

import (
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/usdp-protocol/erde/chain"
	"github.com/usdp-protocol/erde/testing/assert"
	"github.com/usdp-protocol/erde/testing/require"
)

var (
	userA = common.HexToAddress("0x1111111111111111111111111111111111111111")
	userB = common.HexToAddress("0x2222222222222222222222222222222222222222")
	userC = common.HexToAddress("0x3333333333333333333333333333333333333333")
	poolX = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
)

type fakeReader struct {
	mu        sync.Mutex
	positions map[common.Address]*chain.UserSnapshot
	failOn    map[common.Address]error
	blockTags []*big.Int
}

func (f *fakeReader) FetchUserSnapshot(_ context.Context, user common.Address, blockTag *big.Int) (*chain.UserSnapshot, error) {
	f.mu.Lock()
	f.blockTags = append(f.blockTags, blockTag)
	f.mu.Unlock()
	if err := f.failOn[user]; err != nil {
		return nil, err
	}
	snap, ok := f.positions[user]
	if !ok {
		return nil, errors.Errorf("unexpected user %s", user.Hex())
	}
	return snap, nil
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		positions: map[common.Address]*chain.UserSnapshot{
			userA: {Address: userA, Debt: big.NewInt(100), SPShares: big.NewInt(10),
				LPShares: map[common.Address]*big.Int{poolX: big.NewInt(5)}},
			userB: {Address: userB, Debt: big.NewInt(300), SPShares: big.NewInt(0),
				LPShares: map[common.Address]*big.Int{poolX: big.NewInt(15)}},
			userC: {Address: userC, Debt: big.NewInt(0), SPShares: big.NewInt(90),
				LPShares: map[common.Address]*big.Int{}},
		},
		failOn: map[common.Address]error{},
	}
}

func TestAggregate_TotalsMatchUserPositions(t *testing.T) {
	reader := newFakeReader()
	a := NewAggregator(reader, []common.Address{poolX}, 2)

	snap, err := a.Aggregate(context.Background(), 7, 1000, 2000, []common.Address{userA, userB, userC})
	require.NoError(t, err)

	assert.Equal(t, uint64(7), snap.Epoch)
	assert.Equal(t, uint64(1000), snap.StartBlock)
	assert.Equal(t, uint64(2000), snap.EndBlock)
	require.Equal(t, 3, len(snap.Users))

	// Result order follows the input order regardless of fetch completion.
	assert.Equal(t, userA, snap.Users[0].Address)
	assert.Equal(t, userB, snap.Users[1].Address)
	assert.Equal(t, userC, snap.Users[2].Address)

	assert.Equal(t, "400", snap.TotalDebt.String())
	assert.Equal(t, "100", snap.TotalSPShares.String())
	assert.Equal(t, "20", snap.TotalLPShares[poolX].String())
}

func TestAggregate_PinsEveryReadToEndBlock(t *testing.T) {
	reader := newFakeReader()
	a := NewAggregator(reader, []common.Address{poolX}, 1)

	_, err := a.Aggregate(context.Background(), 1, 0, 555, []common.Address{userA, userB})
	require.NoError(t, err)

	require.Equal(t, 2, len(reader.blockTags))
	for _, tag := range reader.blockTags {
		assert.Equal(t, uint64(555), tag.Uint64())
	}
}

func TestAggregate_FailingUserAbortsEpoch(t *testing.T) {
	reader := newFakeReader()
	reader.failOn[userB] = errors.New("rpc timeout")
	a := NewAggregator(reader, []common.Address{poolX}, 2)

	_, err := a.Aggregate(context.Background(), 1, 0, 100, []common.Address{userA, userB, userC})
	require.ErrorContains(t, "could not snapshot user", err)
	require.ErrorContains(t, userB.Hex(), err)
}

func TestAggregate_RejectsInvalidBlockRange(t *testing.T) {
	a := NewAggregator(newFakeReader(), nil, 2)
	_, err := a.Aggregate(context.Background(), 1, 200, 100, []common.Address{userA})
	require.ErrorContains(t, "invalid block range", err)
}

func TestAggregate_NoUsers(t *testing.T) {
	a := NewAggregator(newFakeReader(), []common.Address{poolX}, 4)
	snap, err := a.Aggregate(context.Background(), 1, 0, 100, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, len(snap.Users))
	assert.Equal(t, 0, snap.TotalDebt.Sign())
	assert.Equal(t, 0, snap.TotalLPShares[poolX].Sign())
}

func TestAggregate_NegativeAmountFailsIntegrity(t *testing.T) {
	reader := newFakeReader()
	reader.positions[userA].Debt = big.NewInt(-5)
	a := NewAggregator(reader, []common.Address{poolX}, 2)

	_, err := a.Aggregate(context.Background(), 1, 0, 100, []common.Address{userA})
	require.ErrorContains(t, "negative amount", err)
	if _, ok := err.(*IntegrityError); !ok {
		t.Fatalf("want *IntegrityError, got %T", err)
	}
}
