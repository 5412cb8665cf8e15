// Package validation is the gate between the computed distribution and the
// on-chain submitter. Errors block submission; warnings are surfaced for
// operators but do not.
package validation

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/usdp-protocol/erde/merkle"
)

// Summary carries the aggregate figures operations dashboards consume.
// Utilization is diagnostic only and never feeds the root path.
type Summary struct {
	TotalRewards   *big.Int
	WeeklyBudget   *big.Int
	RecipientCount int
	Utilization    float64
}

// Result is the structured outcome of validating one distribution.
type Result struct {
	Valid    bool
	Errors   []string
	Warnings []string
	Summary  Summary
}

// Validator enforces the distribution invariants.
type Validator struct {
	maxRewardDeviation float64
	// utilizationFloor is 1 - maxRewardDeviation derived in rationals, so the
	// "at exactly the threshold, no warning" boundary holds for every
	// deviation, not just ones whose complement rounds down in binary.
	utilizationFloor *big.Rat
}

// NewValidator configures the utilization warning threshold.
func NewValidator(maxRewardDeviation float64) *Validator {
	deviation := new(big.Rat).SetFloat64(maxRewardDeviation)
	if deviation == nil {
		deviation = new(big.Rat)
	}
	return &Validator{
		maxRewardDeviation: maxRewardDeviation,
		utilizationFloor:   new(big.Rat).Sub(big.NewRat(1, 1), deviation),
	}
}

// Validate runs every invariant check on the finished distribution.
func (v *Validator) Validate(dist *merkle.RewardDistribution) *Result {
	res := &Result{}

	if dist.TotalRewards.Cmp(dist.WeeklyBudget) > 0 {
		res.addError("total rewards %s exceed weekly budget %s", dist.TotalRewards.String(), dist.WeeklyBudget.String())
	}

	sum := new(big.Int)
	seen := make(map[common.Address]bool, len(dist.Recipients))
	zeroRewardCount := 0
	for _, r := range dist.Recipients {
		sum.Add(sum, r.TotalReward)
		if seen[r.Address] {
			res.addError("duplicate recipient address %s", r.Address.Hex())
		}
		seen[r.Address] = true
		if len(r.Proof) == 0 {
			res.addError("recipient %s has an empty merkle proof", r.Address.Hex())
		}
		breakdown := new(big.Int).Add(r.DebtReward, r.SPReward)
		breakdown.Add(breakdown, r.EcoReward)
		for _, amount := range r.LPRewards {
			breakdown.Add(breakdown, amount)
		}
		if breakdown.Cmp(r.TotalReward) != 0 {
			res.addError("recipient %s breakdown %s does not equal total %s", r.Address.Hex(), breakdown.String(), r.TotalReward.String())
		}
		if r.TotalReward.Sign() == 0 {
			zeroRewardCount++
		}
	}
	if sum.Cmp(dist.TotalRewards) != 0 {
		res.addError("recipient sum %s does not equal total rewards %s", sum.String(), dist.TotalRewards.String())
	}

	if dist.MerkleRoot == ([32]byte{}) {
		res.addError("merkle root is zero")
	}
	if len(dist.Recipients) < 1 || len(dist.Recipients) > merkle.MaxRecipients {
		res.addError("recipient count %d outside [1, %d]", len(dist.Recipients), merkle.MaxRecipients)
	}

	// Utilization strictly below (1 - maxRewardDeviation) x budget warns; at
	// exactly the threshold it does not.
	bound := new(big.Rat).Mul(v.utilizationFloor, new(big.Rat).SetInt(dist.WeeklyBudget))
	if new(big.Rat).SetInt(dist.TotalRewards).Cmp(bound) < 0 {
		res.addWarning("utilization %s of budget %s is below the %.2f%% floor",
			dist.TotalRewards.String(), dist.WeeklyBudget.String(), (1-v.maxRewardDeviation)*100)
	}
	if zeroRewardCount > 0 {
		res.addWarning("%d recipients with zero total reward", zeroRewardCount)
	}

	res.Valid = len(res.Errors) == 0
	res.Summary = Summary{
		TotalRewards:   new(big.Int).Set(dist.TotalRewards),
		WeeklyBudget:   new(big.Int).Set(dist.WeeklyBudget),
		RecipientCount: len(dist.Recipients),
		Utilization:    utilization(dist.TotalRewards, dist.WeeklyBudget),
	}
	return res
}

func (r *Result) addError(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Result) addWarning(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func utilization(total, budget *big.Int) float64 {
	if budget.Sign() == 0 {
		return 0
	}
	ratio, _ := new(big.Rat).SetFrac(new(big.Int).Set(total), new(big.Int).Set(budget)).Float64()
	return ratio
}
