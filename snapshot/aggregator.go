// Package snapshot builds the per-epoch aggregate of user positions. The
// aggregator fans out one fetch per user with bounded concurrency, then
// accumulates channel totals and cross-checks them before the snapshot is
// handed downstream. An epoch is all-or-nothing: one failing user after
// retries fails the stage, there is no skip mode.
package snapshot

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/usdp-protocol/erde/chain"
)

// Reader fetches a single user's positions pinned at a block tag.
type Reader interface {
	FetchUserSnapshot(ctx context.Context, user common.Address, blockTag *big.Int) (*chain.UserSnapshot, error)
}

// EpochSnapshot aggregates every user snapshot for one epoch, pinned at the
// epoch's end block.
type EpochSnapshot struct {
	Epoch      uint64
	StartBlock uint64
	EndBlock   uint64
	Users      []*chain.UserSnapshot
	// Pools preserves the configured LP pool ordering; all map iteration
	// downstream derives from this slice.
	Pools         []common.Address
	TotalDebt     *big.Int
	TotalLPShares map[common.Address]*big.Int
	TotalSPShares *big.Int
	Timestamp     time.Time
}

// IntegrityError indicates the aggregate failed a cross-check. It is a logic
// bug, never an input error, and halts the pipeline.
type IntegrityError struct {
	Check string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("snapshot integrity check failed: %s", e.Check)
}

// Aggregator drives the per-user fan-out.
type Aggregator struct {
	reader      Reader
	pools       []common.Address
	concurrency int
}

// NewAggregator wires a reader with the configured pool list and fan-out bound.
func NewAggregator(reader Reader, pools []common.Address, concurrency int) *Aggregator {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Aggregator{reader: reader, pools: pools, concurrency: concurrency}
}

// Aggregate fetches every user's positions at endBlock and builds the epoch
// snapshot. The user slice in the result preserves the input order; ordering
// never leaks into anything hashed downstream.
func (a *Aggregator) Aggregate(ctx context.Context, epoch, startBlock, endBlock uint64, users []common.Address) (*EpochSnapshot, error) {
	if endBlock < startBlock {
		return nil, errors.Errorf("invalid block range: end %d < start %d", endBlock, startBlock)
	}
	log.WithFields(map[string]interface{}{
		"epoch":    epoch,
		"endBlock": endBlock,
		"users":    len(users),
	}).Info("Building epoch snapshot")

	blockTag := new(big.Int).SetUint64(endBlock)
	results := make([]*chain.UserSnapshot, len(users))
	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, a.concurrency)
	for i, user := range users {
		i, user := i, user
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()
			snap, err := a.reader.FetchUserSnapshot(gctx, user, blockTag)
			if err != nil {
				return errors.Wrapf(err, "could not snapshot user %s", user.Hex())
			}
			results[i] = snap
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := &EpochSnapshot{
		Epoch:         epoch,
		StartBlock:    startBlock,
		EndBlock:      endBlock,
		Users:         results,
		Pools:         a.pools,
		TotalDebt:     new(big.Int),
		TotalLPShares: make(map[common.Address]*big.Int, len(a.pools)),
		TotalSPShares: new(big.Int),
		Timestamp:     time.Now().UTC(),
	}
	for _, pool := range a.pools {
		snap.TotalLPShares[pool] = new(big.Int)
	}
	for _, u := range results {
		snap.TotalDebt.Add(snap.TotalDebt, u.Debt)
		snap.TotalSPShares.Add(snap.TotalSPShares, u.SPShares)
		for _, pool := range a.pools {
			shares := u.LPShares[pool]
			if shares == nil {
				shares = new(big.Int)
			}
			snap.TotalLPShares[pool].Add(snap.TotalLPShares[pool], shares)
		}
	}

	if err := snap.verify(); err != nil {
		return nil, err
	}
	log.WithFields(map[string]interface{}{
		"totalDebt":     snap.TotalDebt.String(),
		"totalSpShares": snap.TotalSPShares.String(),
	}).Info("Epoch snapshot complete")
	return snap, nil
}

// verify re-asserts non-negativity and recomputes every channel total in an
// independent pass. big.Int accumulation cannot overflow, the sum comparison
// still guards against accumulation bugs.
func (s *EpochSnapshot) verify() error {
	debtSum := new(big.Int)
	spSum := new(big.Int)
	lpSums := make(map[common.Address]*big.Int, len(s.Pools))
	for _, pool := range s.Pools {
		lpSums[pool] = new(big.Int)
	}
	for _, u := range s.Users {
		if u.Debt.Sign() < 0 || u.SPShares.Sign() < 0 {
			return &IntegrityError{Check: fmt.Sprintf("negative amount for user %s", u.Address.Hex())}
		}
		debtSum.Add(debtSum, u.Debt)
		spSum.Add(spSum, u.SPShares)
		for _, pool := range s.Pools {
			shares := u.LPShares[pool]
			if shares == nil {
				continue
			}
			if shares.Sign() < 0 {
				return &IntegrityError{Check: fmt.Sprintf("negative lp shares for user %s pool %s", u.Address.Hex(), pool.Hex())}
			}
			lpSums[pool].Add(lpSums[pool], shares)
		}
	}
	if debtSum.Cmp(s.TotalDebt) != 0 {
		return &IntegrityError{Check: "debt total does not match user sum"}
	}
	if spSum.Cmp(s.TotalSPShares) != 0 {
		return &IntegrityError{Check: "stability pool total does not match user sum"}
	}
	for _, pool := range s.Pools {
		if lpSums[pool].Cmp(s.TotalLPShares[pool]) != 0 {
			return &IntegrityError{Check: fmt.Sprintf("lp total for pool %s does not match user sum", pool.Hex())}
		}
	}
	return nil
}
