package allocation

import (
	"math/big"

	"github.com/pkg/errors"
)

// bpsDenominator is the basis point scale for channel fractions.
const bpsDenominator = 10000

// Policy fixes the per-channel budget fractions in basis points. The policy
// is a deployment-time input; the allocator never mutates it. The LP slice is
// split evenly across the configured pools until gauge-driven weighting is
// wired in.
type Policy struct {
	DebtBps uint64
	SPBps   uint64
	LPBps   uint64
}

// DefaultPolicy is the current protocol split: 40% debt, 30% stability pool,
// 30% LP pairs.
var DefaultPolicy = Policy{DebtBps: 4000, SPBps: 3000, LPBps: 3000}

// Validate rejects a policy whose fractions do not cover the whole budget.
func (p Policy) Validate() error {
	if p.DebtBps+p.SPBps+p.LPBps != bpsDenominator {
		return errors.Errorf("policy fractions sum to %d bps, want %d", p.DebtBps+p.SPBps+p.LPBps, bpsDenominator)
	}
	return nil
}

// slice returns floor(budget * bps / 10000).
func slice(budget *big.Int, bps uint64) *big.Int {
	out := new(big.Int).Mul(budget, new(big.Int).SetUint64(bps))
	return out.Div(out, big.NewInt(bpsDenominator))
}
