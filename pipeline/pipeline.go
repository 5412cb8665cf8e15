// Package pipeline sequences the epoch reward stages: snapshot, weights,
// budget, allocation, merkle, validation, submission. Stages run strictly in
// order; each persists its artifact before the next starts, so a failed epoch
// leaves everything needed for a post-mortem on disk. Cancellation is honored
// at stage boundaries only, never mid-write-to-chain.
package pipeline

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/usdp-protocol/erde/allocation"
	"github.com/usdp-protocol/erde/artifacts"
	"github.com/usdp-protocol/erde/chain"
	"github.com/usdp-protocol/erde/config"
	"github.com/usdp-protocol/erde/merkle"
	"github.com/usdp-protocol/erde/snapshot"
	"github.com/usdp-protocol/erde/submit"
	"github.com/usdp-protocol/erde/validation"
	"github.com/usdp-protocol/erde/weights"
)

// ChainReader is the read surface the pipeline consumes.
type ChainReader interface {
	FetchCurrentBlock(ctx context.Context) (uint64, error)
	FetchUserSnapshot(ctx context.Context, user common.Address, blockTag *big.Int) (*chain.UserSnapshot, error)
	FetchWeeklyBudget(ctx context.Context, epoch uint64) (*big.Int, error)
	ReadOnChainRoot(ctx context.Context, epoch uint64) ([32]byte, error)
}

// RootSubmitter commits a validated distribution on chain.
type RootSubmitter interface {
	Submit(ctx context.Context, dist *merkle.RewardDistribution) (*submit.Receipt, error)
}

// Result collects everything one epoch run produced.
type Result struct {
	Distribution *merkle.RewardDistribution
	Validation   *validation.Result
	Receipt      *submit.Receipt
}

// Pipeline owns one epoch run end to end.
type Pipeline struct {
	cfg       config.Config
	reader    ChainReader
	submitter RootSubmitter
	writer    *artifacts.Writer
	allocator *allocation.Allocator
	validator *validation.Validator
}

// New wires the pipeline. A nil submitter disables the submission stage; the
// run then stops after validation (dry runs, or no signing key configured).
func New(cfg config.Config, reader ChainReader, submitter RootSubmitter) (*Pipeline, error) {
	allocator, err := allocation.NewAllocator(allocation.DefaultPolicy, cfg.TreasuryAddress)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		cfg:       cfg,
		reader:    reader,
		submitter: submitter,
		writer:    artifacts.NewWriter(cfg),
		allocator: allocator,
		validator: validation.NewValidator(cfg.MaxRewardDeviation),
	}, nil
}

// Run executes every stage for one epoch over the given user set.
func (p *Pipeline) Run(ctx context.Context, epoch uint64, users []common.Address) (*Result, error) {
	log.WithFields(map[string]interface{}{
		"epoch": epoch,
		"users": len(users),
	}).Info("Starting epoch reward pipeline")

	var endBlock uint64
	if err := p.stage(ctx, "current_block", func() error {
		var err error
		endBlock, err = p.reader.FetchCurrentBlock(ctx)
		return err
	}); err != nil {
		return nil, err
	}
	if endBlock < p.cfg.SnapshotBlockRange {
		return nil, errors.Errorf("head block %d is below the snapshot range %d", endBlock, p.cfg.SnapshotBlockRange)
	}
	startBlock := endBlock - p.cfg.SnapshotBlockRange

	var snap *snapshot.EpochSnapshot
	if err := p.stage(ctx, "snapshot", func() error {
		aggregator := snapshot.NewAggregator(p.reader, p.cfg.LPTokenAddresses, p.cfg.SnapshotConcurrency)
		var err error
		snap, err = aggregator.Aggregate(ctx, epoch, startBlock, endBlock, users)
		if err != nil {
			return err
		}
		_, err = p.writer.WriteSnapshot(snap)
		return err
	}); err != nil {
		return nil, err
	}

	var userWeights []*weights.UserWeight
	if err := p.stage(ctx, "weights", func() error {
		var err error
		userWeights, err = weights.Compute(snap)
		if err != nil {
			return err
		}
		_, err = p.writer.WriteWeights(snap, userWeights)
		return err
	}); err != nil {
		return nil, err
	}

	var budget *big.Int
	if err := p.stage(ctx, "budget", func() error {
		var err error
		budget, err = p.reader.FetchWeeklyBudget(ctx, epoch)
		return err
	}); err != nil {
		return nil, err
	}
	log.WithField("budget", budget.String()).Info("Weekly budget read from emission manager")

	var rewards []*allocation.UserReward
	if err := p.stage(ctx, "allocate", func() error {
		var err error
		rewards, _, err = p.allocator.Allocate(userWeights, budget, snap)
		return err
	}); err != nil {
		return nil, err
	}

	var dist *merkle.RewardDistribution
	if err := p.stage(ctx, "merkle", func() error {
		var err error
		dist, err = merkle.BuildDistribution(epoch, rewards, budget, time.Now().UTC())
		if err != nil {
			return err
		}
		if _, err := p.writer.WriteRewards(dist.Recipients, snap.Pools); err != nil {
			return err
		}
		_, err = p.writer.WriteMerkle(dist)
		return err
	}); err != nil {
		return nil, err
	}

	result := &Result{Distribution: dist}
	if err := p.stage(ctx, "validate", func() error {
		result.Validation = p.validator.Validate(dist)
		if _, err := p.writer.WriteSummary(dist, result.Validation); err != nil {
			return err
		}
		for _, warning := range result.Validation.Warnings {
			log.Warn(warning)
		}
		if !result.Validation.Valid {
			return errors.Errorf("distribution failed validation: %v", result.Validation.Errors)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if p.submitter == nil || p.cfg.DryRun {
		// Still compare against chain so a dry run reports whether the epoch
		// has a root and whether recomputation reproduced it.
		existing, err := p.reader.ReadOnChainRoot(ctx, epoch)
		switch {
		case err != nil:
			log.WithError(err).Warn("Could not read existing on-chain root")
		case existing == dist.MerkleRoot:
			log.WithField("epoch", epoch).Info("Computed root matches the root already on chain")
		case existing != [32]byte{}:
			log.WithFields(map[string]interface{}{
				"epoch":    epoch,
				"existing": fmt.Sprintf("%#x", existing),
				"computed": fmt.Sprintf("%#x", dist.MerkleRoot),
			}).Warn("Computed root differs from the root on chain")
		}
		log.Info("Submission disabled, pipeline complete after validation")
		return result, nil
	}
	if err := p.stage(ctx, "submit", func() error {
		var err error
		result.Receipt, err = p.submitter.Submit(ctx, dist)
		return err
	}); err != nil {
		return nil, err
	}

	log.WithField("epoch", epoch).Info("Epoch reward pipeline complete")
	return result, nil
}

// stage runs one pipeline stage with timing, failure accounting, and a
// cancellation check at the boundary.
func (p *Pipeline) stage(ctx context.Context, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrapf(err, "pipeline cancelled before stage %s", name)
	}
	start := time.Now()
	err := fn()
	stageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		stageFailures.WithLabelValues(name).Inc()
		return errors.Wrapf(err, "stage %s failed", name)
	}
	log.WithFields(map[string]interface{}{
		"stage":    name,
		"duration": time.Since(start).Round(time.Millisecond).String(),
	}).Debug("Stage complete")
	return nil
}
