// Package flags defines every command line flag for the erde binary. Each
// flag mirrors an environment variable so the binary can be configured from
// either surface.
package flags

import (
	"github.com/urfave/cli/v2"

	"github.com/usdp-protocol/erde/config"
)

var (
	// RPCURLFlag is the execution layer endpoint.
	RPCURLFlag = &cli.StringFlag{
		Name:    "rpc-url",
		Usage:   "Execution client RPC endpoint for reads and the root submission",
		EnvVars: []string{"RPC_URL"},
	}
	// VaultFlag is the vault contract address.
	VaultFlag = &cli.StringFlag{
		Name:    "vault",
		Usage:   "Address of the USDP vault contract",
		EnvVars: []string{"USDP_VAULT"},
	}
	// StabilityPoolFlag is the stability pool share token address.
	StabilityPoolFlag = &cli.StringFlag{
		Name:    "stability-pool",
		Usage:   "Address of the stability pool share token",
		EnvVars: []string{"STABILITY_POOL"},
	}
	// RewardDistributorFlag is the distributor contract address.
	RewardDistributorFlag = &cli.StringFlag{
		Name:    "reward-distributor",
		Usage:   "Address of the reward distributor contract",
		EnvVars: []string{"REWARD_DISTRIBUTOR"},
	}
	// EmissionManagerFlag is the emission manager contract address.
	EmissionManagerFlag = &cli.StringFlag{
		Name:    "emission-manager",
		Usage:   "Address of the emission manager contract",
		EnvVars: []string{"EMISSION_MANAGER"},
	}
	// LPTokensFlag lists the LP share tokens; the list order is the canonical
	// pool ordering everywhere downstream.
	LPTokensFlag = &cli.StringFlag{
		Name:    "lp-tokens",
		Usage:   "Comma separated list of LP share token addresses",
		EnvVars: []string{"LP_TOKENS"},
	}
	// TreasuryFlag receives the rounding residual.
	TreasuryFlag = &cli.StringFlag{
		Name:    "treasury",
		Usage:   "Protocol treasury address receiving the rounding residual",
		EnvVars: []string{"TREASURY_ADDRESS"},
	}
	// EpochFlag selects the reward epoch to process.
	EpochFlag = &cli.Uint64Flag{
		Name:  "epoch",
		Usage: "Reward epoch index to process",
	}
	// UsersFileFlag points at the recipient candidate list.
	UsersFileFlag = &cli.StringFlag{
		Name:    "users-file",
		Usage:   "File with one user address per line; # starts a comment",
		EnvVars: []string{"USERS_FILE"},
	}
	// SnapshotBlockRangeFlag sets the epoch window length in blocks.
	SnapshotBlockRangeFlag = &cli.Uint64Flag{
		Name:    "snapshot-block-range",
		Usage:   "Blocks between epoch start and end",
		EnvVars: []string{"SNAPSHOT_BLOCK_RANGE"},
		Value:   config.DefaultSnapshotBlockRange,
	}
	// SnapshotConcurrencyFlag bounds the per-user fan-out.
	SnapshotConcurrencyFlag = &cli.IntFlag{
		Name:    "snapshot-concurrency",
		Usage:   "Maximum parallel per-user snapshot fetches",
		EnvVars: []string{"SNAPSHOT_CONCURRENCY"},
		Value:   config.DefaultSnapshotConcurrency,
	}
	// OutputDirFlag is the artifact destination.
	OutputDirFlag = &cli.StringFlag{
		Name:    "output-dir",
		Usage:   "Directory receiving the epoch artifacts",
		EnvVars: []string{"OUTPUT_DIR"},
		Value:   "./output",
	}
	// MaxRewardDeviationFlag sets the utilization warning threshold.
	MaxRewardDeviationFlag = &cli.Float64Flag{
		Name:    "max-reward-deviation",
		Usage:   "Budget fraction that may go unallocated before a warning",
		EnvVars: []string{"MAX_REWARD_DEVIATION"},
		Value:   config.DefaultMaxRewardDeviation,
	}
	// AdminPrivateKeyFlag signs the root submission.
	AdminPrivateKeyFlag = &cli.StringFlag{
		Name:    "admin-private-key",
		Usage:   "Hex private key of the distributor owner; empty disables submission",
		EnvVars: []string{"ADMIN_PRIVATE_KEY"},
	}
	// ForceUpdateFlag allows overwriting a differing on-chain root.
	ForceUpdateFlag = &cli.BoolFlag{
		Name:    "force-update",
		Usage:   "Allow submitting over an existing non-zero root for the epoch",
		EnvVars: []string{"FORCE_UPDATE"},
	}
	// DryRunFlag stops after validation.
	DryRunFlag = &cli.BoolFlag{
		Name:  "dry-run",
		Usage: "Compute, validate and persist artifacts without submitting",
	}
	// VerbosityFlag sets the log level.
	VerbosityFlag = &cli.StringFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity (trace, debug, info, warn, error, fatal, panic)",
		Value: "info",
	}
	// LogFormatFlag selects the log output format.
	LogFormatFlag = &cli.StringFlag{
		Name:  "log-format",
		Usage: "Specify log formatting. Supports: text, json, fluentd",
		Value: "text",
	}
	// ConfigFileFlag loads flag values from a yaml file.
	ConfigFileFlag = &cli.StringFlag{
		Name:  "config-file",
		Usage: "Path to a yaml file with flag values",
	}
	// MonitoringHostFlag is the metrics listen host; empty disables metrics.
	MonitoringHostFlag = &cli.StringFlag{
		Name:  "monitoring-host",
		Usage: "Host for the prometheus metrics endpoint; empty disables it",
	}
	// MonitoringPortFlag is the metrics listen port.
	MonitoringPortFlag = &cli.IntFlag{
		Name:  "monitoring-port",
		Usage: "Port for the prometheus metrics endpoint",
		Value: 8080,
	}
)
