// Package weights derives each user's fractional share per reward channel
// from an epoch snapshot. All arithmetic is exact big.Rat; binary floats never
// touch this path.
package weights

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/usdp-protocol/erde/snapshot"
)

// sumTolerance bounds the allowed deviation of a channel's weight sum from
// unity. Rational arithmetic makes the sum exact; the tolerance is the API
// contract shared with decimal implementations of the same pipeline.
var sumTolerance = new(big.Rat).SetFrac64(1, 1e10)

// UserWeight holds one user's share of each channel, each in [0,1].
type UserWeight struct {
	Address    common.Address
	DebtWeight *big.Rat
	LPWeights  map[common.Address]*big.Rat
	SPWeight   *big.Rat
}

// IntegrityError reports a violated weight invariant. Always a logic bug.
type IntegrityError struct {
	Check string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("weight integrity check failed: %s", e.Check)
}

// Compute produces one UserWeight per snapshot user. A channel with zero
// total yields zero weights for every user; otherwise weights sum to exactly
// one across users.
func Compute(snap *snapshot.EpochSnapshot) ([]*UserWeight, error) {
	out := make([]*UserWeight, len(snap.Users))
	for i, u := range snap.Users {
		w := &UserWeight{
			Address:    u.Address,
			DebtWeight: share(u.Debt, snap.TotalDebt),
			SPWeight:   share(u.SPShares, snap.TotalSPShares),
			LPWeights:  make(map[common.Address]*big.Rat, len(snap.Pools)),
		}
		for _, pool := range snap.Pools {
			amount := u.LPShares[pool]
			if amount == nil {
				amount = new(big.Int)
			}
			w.LPWeights[pool] = share(amount, snap.TotalLPShares[pool])
		}
		if err := w.verifyBounds(snap.Pools); err != nil {
			return nil, err
		}
		out[i] = w
	}
	if err := verifySums(snap, out); err != nil {
		return nil, err
	}
	return out, nil
}

// share returns amount/total, or zero when the channel total is zero.
func share(amount, total *big.Int) *big.Rat {
	if total.Sign() == 0 {
		return new(big.Rat)
	}
	return new(big.Rat).SetFrac(new(big.Int).Set(amount), new(big.Int).Set(total))
}

func (w *UserWeight) verifyBounds(pools []common.Address) error {
	one := big.NewRat(1, 1)
	check := func(name string, r *big.Rat) error {
		if r.Sign() < 0 || r.Cmp(one) > 0 {
			return &IntegrityError{Check: fmt.Sprintf("%s weight %s for %s outside [0,1]", name, r.RatString(), w.Address.Hex())}
		}
		return nil
	}
	if err := check("debt", w.DebtWeight); err != nil {
		return err
	}
	if err := check("stability pool", w.SPWeight); err != nil {
		return err
	}
	for _, pool := range pools {
		if err := check("lp", w.LPWeights[pool]); err != nil {
			return err
		}
	}
	return nil
}

// verifySums asserts sum-to-unity per active channel.
func verifySums(snap *snapshot.EpochSnapshot, ws []*UserWeight) error {
	checkSum := func(name string, total *big.Int, pick func(*UserWeight) *big.Rat) error {
		if total.Sign() == 0 {
			return nil
		}
		sum := new(big.Rat)
		for _, w := range ws {
			sum.Add(sum, pick(w))
		}
		diff := new(big.Rat).Sub(sum, big.NewRat(1, 1))
		if diff.Abs(diff).Cmp(sumTolerance) >= 0 {
			return &IntegrityError{Check: fmt.Sprintf("%s weights sum to %s, want 1", name, sum.RatString())}
		}
		return nil
	}
	if err := checkSum("debt", snap.TotalDebt, func(w *UserWeight) *big.Rat { return w.DebtWeight }); err != nil {
		return err
	}
	if err := checkSum("stability pool", snap.TotalSPShares, func(w *UserWeight) *big.Rat { return w.SPWeight }); err != nil {
		return err
	}
	for _, pool := range snap.Pools {
		pool := pool
		if err := checkSum("lp", snap.TotalLPShares[pool], func(w *UserWeight) *big.Rat { return w.LPWeights[pool] }); err != nil {
			return err
		}
	}
	return nil
}
