// Package config defines the immutable configuration value consumed by the
// reward pipeline. The configuration is constructed once at startup, validated,
// and passed by value into the pipeline constructor; no package-level state.
package config

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Default values for optional settings.
const (
	// DefaultSnapshotBlockRange is one reward epoch on a 3 second chain.
	DefaultSnapshotBlockRange = 7200
	// DefaultSnapshotConcurrency bounds the per-user fan-out in the
	// snapshot aggregator.
	DefaultSnapshotConcurrency = 8
	// DefaultMaxRewardDeviation is the utilization warning threshold.
	DefaultMaxRewardDeviation = 0.01
)

// Default artifact file names under the output directory.
const (
	DefaultSnapshotFileName = "snapshot.csv"
	DefaultWeightsFileName  = "weights.csv"
	DefaultRewardsFileName  = "rewards.csv"
	DefaultMerkleFileName   = "merkle.json"
	DefaultSummaryFileName  = "summary.txt"
)

// Config holds every setting the reward pipeline needs for one epoch run.
type Config struct {
	// RPCURL is the execution layer endpoint used for all reads and the
	// single setMerkleRoot write.
	RPCURL string

	// Contract addresses.
	VaultAddress             common.Address
	StabilityPoolAddress     common.Address
	RewardDistributorAddress common.Address
	EmissionManagerAddress   common.Address
	// LPTokenAddresses lists the configured LP share tokens. The order of
	// this slice is the canonical pool iteration order everywhere: CSV
	// columns, per-user breakdowns, and the LP sub-allocation all follow it.
	LPTokenAddresses []common.Address
	// TreasuryAddress receives the integer rounding residual.
	TreasuryAddress common.Address

	// SnapshotBlockRange is endBlock - startBlock for the epoch window.
	SnapshotBlockRange uint64
	// SnapshotConcurrency bounds parallel per-user fetches.
	SnapshotConcurrency int

	// OutputDir and the artifact file names written under it.
	OutputDir        string
	SnapshotFileName string
	WeightsFileName  string
	RewardsFileName  string
	MerkleFileName   string
	SummaryFileName  string

	// MaxRewardDeviation is the fraction of the weekly budget that may go
	// unallocated before the validator raises an under-utilization warning.
	MaxRewardDeviation float64

	// AdminPrivateKey signs the setMerkleRoot transaction. Empty disables
	// submission (the pipeline stops after validation).
	AdminPrivateKey string
	// ForceUpdate allows overwriting a differing non-zero on-chain root.
	ForceUpdate bool
	// DryRun stops the pipeline after validation without submitting.
	DryRun bool
}

// Validate checks the configuration for internal consistency. It is called
// once before the pipeline is constructed; a validated config is immutable
// from then on.
func (c *Config) Validate() error {
	if c.RPCURL == "" {
		return errors.New("rpc url is required")
	}
	for _, f := range []struct {
		name string
		addr common.Address
	}{
		{"vault", c.VaultAddress},
		{"stability pool", c.StabilityPoolAddress},
		{"reward distributor", c.RewardDistributorAddress},
		{"emission manager", c.EmissionManagerAddress},
		{"treasury", c.TreasuryAddress},
	} {
		if f.addr == (common.Address{}) {
			return errors.Errorf("%s address is required", f.name)
		}
	}
	seen := make(map[common.Address]bool, len(c.LPTokenAddresses))
	for _, p := range c.LPTokenAddresses {
		if p == (common.Address{}) {
			return errors.New("lp token list contains the zero address")
		}
		if seen[p] {
			return errors.Errorf("lp token %s listed twice", p.Hex())
		}
		seen[p] = true
	}
	if c.SnapshotBlockRange == 0 {
		return errors.New("snapshot block range must be positive")
	}
	if c.SnapshotConcurrency <= 0 {
		return errors.New("snapshot concurrency must be positive")
	}
	if c.MaxRewardDeviation < 0 || c.MaxRewardDeviation >= 1 {
		return errors.Errorf("max reward deviation %f outside [0,1)", c.MaxRewardDeviation)
	}
	if c.OutputDir == "" {
		return errors.New("output directory is required")
	}
	return nil
}

// ParseAddress parses a hex address and enforces EIP-55: an all-lowercase or
// all-uppercase input is accepted as unchecksummed, a mixed-case input must
// match its checksummed form exactly.
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, errors.Errorf("malformed address %q", s)
	}
	addr := common.HexToAddress(s)
	hexPart := strings.TrimPrefix(s, "0x")
	hexPart = strings.TrimPrefix(hexPart, "0X")
	if hexPart == strings.ToLower(hexPart) || hexPart == strings.ToUpper(hexPart) {
		return addr, nil
	}
	if "0x"+hexPart != addr.Hex() {
		return common.Address{}, errors.Errorf("address %q fails EIP-55 checksum", s)
	}
	return addr, nil
}

// ParseAddressList parses a comma separated address list, preserving order.
func ParseAddressList(s string) ([]common.Address, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	addrs := make([]common.Address, 0, len(parts))
	for _, p := range parts {
		addr, err := ParseAddress(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}
