// Package allocation splits the weekly budget across the reward channels and
// computes every user's integer payout. Each per-user amount is the floor of
// slice x weight; the per-channel rounding remainders are folded into a
// treasury residual so the distribution sums to the full budget whenever any
// channel has activity.
package allocation

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/usdp-protocol/erde/snapshot"
	"github.com/usdp-protocol/erde/weights"
)

// ChannelSplit is the per-epoch budget partition. Eco carries the residual.
type ChannelSplit struct {
	Debt          *big.Int
	LPPairs       *big.Int
	StabilityPool *big.Int
	Eco           *big.Int
}

// Total returns the sum over all channels.
func (s *ChannelSplit) Total() *big.Int {
	out := new(big.Int).Add(s.Debt, s.LPPairs)
	out.Add(out, s.StabilityPool)
	return out.Add(out, s.Eco)
}

// UserReward is one recipient's payout with its per-channel breakdown. The
// identity TotalReward == DebtReward + SPReward + EcoReward + sum(LPRewards)
// holds exactly in integers. Proof is populated by the merkle engine.
type UserReward struct {
	Address     common.Address
	TotalReward *big.Int
	DebtReward  *big.Int
	LPRewards   map[common.Address]*big.Int
	SPReward    *big.Int
	EcoReward   *big.Int
	Proof       [][32]byte
}

// Allocator applies a policy to one epoch's weights.
type Allocator struct {
	policy   Policy
	treasury common.Address
}

// NewAllocator validates the policy up front; the allocator is immutable
// afterwards.
func NewAllocator(policy Policy, treasury common.Address) (*Allocator, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if treasury == (common.Address{}) {
		return nil, errors.New("treasury address is required for the residual")
	}
	return &Allocator{policy: policy, treasury: treasury}, nil
}

// Allocate computes every user's payout for the epoch. The result preserves
// the weight slice order, with the treasury residual recipient appended (or
// merged, when the treasury itself holds positions).
func (a *Allocator) Allocate(userWeights []*weights.UserWeight, budget *big.Int, snap *snapshot.EpochSnapshot) ([]*UserReward, *ChannelSplit, error) {
	if budget == nil || budget.Sign() < 0 {
		return nil, nil, errors.New("weekly budget must be a non-negative integer")
	}

	split := &ChannelSplit{
		Debt:          slice(budget, a.policy.DebtBps),
		StabilityPool: slice(budget, a.policy.SPBps),
		LPPairs:       slice(budget, a.policy.LPBps),
		Eco:           new(big.Int),
	}
	// Flooring the three slices can leave dust; it joins the residual so the
	// split covers the budget exactly.
	splitDust := new(big.Int).Sub(budget, split.Debt)
	splitDust.Sub(splitDust, split.StabilityPool)
	splitDust.Sub(splitDust, split.LPPairs)
	residual := new(big.Int).Set(splitDust)

	// LP slice divides evenly across pools; the division remainder joins the
	// residual. No pools means the whole LP slice is residual.
	poolSlice := new(big.Int)
	if len(snap.Pools) > 0 {
		poolSlice.Div(split.LPPairs, big.NewInt(int64(len(snap.Pools))))
		lpDust := new(big.Int).Mul(poolSlice, big.NewInt(int64(len(snap.Pools))))
		residual.Add(residual, new(big.Int).Sub(split.LPPairs, lpDust))
	} else {
		residual.Add(residual, split.LPPairs)
	}

	rewards := make([]*UserReward, 0, len(userWeights)+1)
	debtAllocated := new(big.Int)
	spAllocated := new(big.Int)
	lpAllocated := make(map[common.Address]*big.Int, len(snap.Pools))
	for _, pool := range snap.Pools {
		lpAllocated[pool] = new(big.Int)
	}

	for _, w := range userWeights {
		r := &UserReward{
			Address:    w.Address,
			DebtReward: floorProduct(split.Debt, w.DebtWeight),
			SPReward:   floorProduct(split.StabilityPool, w.SPWeight),
			LPRewards:  make(map[common.Address]*big.Int, len(snap.Pools)),
			EcoReward:  new(big.Int),
		}
		debtAllocated.Add(debtAllocated, r.DebtReward)
		spAllocated.Add(spAllocated, r.SPReward)
		total := new(big.Int).Add(r.DebtReward, r.SPReward)
		for _, pool := range snap.Pools {
			amount := floorProduct(poolSlice, w.LPWeights[pool])
			r.LPRewards[pool] = amount
			lpAllocated[pool].Add(lpAllocated[pool], amount)
			total.Add(total, amount)
		}
		r.TotalReward = total
		rewards = append(rewards, r)
	}

	// Per-channel remainders: slice minus what the floors handed out.
	residual.Add(residual, new(big.Int).Sub(split.Debt, debtAllocated))
	residual.Add(residual, new(big.Int).Sub(split.StabilityPool, spAllocated))
	for _, pool := range snap.Pools {
		residual.Add(residual, new(big.Int).Sub(poolSlice, lpAllocated[pool]))
	}

	if residual.Sign() > 0 && len(rewards) > 0 {
		rewards = a.foldResidual(rewards, residual, snap.Pools)
		split.Eco.Set(residual)
	}

	allocated := new(big.Int)
	for _, r := range rewards {
		allocated.Add(allocated, r.TotalReward)
	}
	if allocated.Cmp(budget) > 0 {
		return nil, nil, errors.Errorf("allocated %s exceeds weekly budget %s", allocated.String(), budget.String())
	}
	return rewards, split, nil
}

// foldResidual routes the accumulated remainder to the treasury recipient,
// merging with an existing entry when the treasury holds positions itself.
func (a *Allocator) foldResidual(rewards []*UserReward, residual *big.Int, pools []common.Address) []*UserReward {
	for _, r := range rewards {
		if r.Address == a.treasury {
			r.EcoReward.Add(r.EcoReward, residual)
			r.TotalReward.Add(r.TotalReward, residual)
			return rewards
		}
	}
	treasury := &UserReward{
		Address:     a.treasury,
		TotalReward: new(big.Int).Set(residual),
		DebtReward:  new(big.Int),
		SPReward:    new(big.Int),
		EcoReward:   new(big.Int).Set(residual),
		LPRewards:   make(map[common.Address]*big.Int, len(pools)),
	}
	for _, pool := range pools {
		treasury.LPRewards[pool] = new(big.Int)
	}
	return append(rewards, treasury)
}

// floorProduct returns floor(amount * weight) for a rational weight.
func floorProduct(amount *big.Int, weight *big.Rat) *big.Int {
	if weight == nil || weight.Sign() == 0 || amount.Sign() == 0 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(amount, weight.Num())
	return out.Div(out, weight.Denom())
}
