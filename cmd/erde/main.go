// Package main implements erde, the epoch reward distribution engine for the
// USDP protocol. Each run snapshots on-chain positions at a pinned block,
// computes per-user reward weights, allocates the weekly budget across the
// debt, stability pool and LP channels, commits the result in a merkle tree,
// and submits the root to the reward distributor contract.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	joonix "github.com/joonix/log"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"github.com/urfave/cli/v2/altsrc"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"

	"github.com/usdp-protocol/erde/chain"
	"github.com/usdp-protocol/erde/cmd/erde/flags"
	"github.com/usdp-protocol/erde/config"
	"github.com/usdp-protocol/erde/monitoring/prometheus"
	"github.com/usdp-protocol/erde/pipeline"
	"github.com/usdp-protocol/erde/submit"
)

var log = logrus.WithField("prefix", "main")

var appFlags = []cli.Flag{
	flags.RPCURLFlag,
	flags.VaultFlag,
	flags.StabilityPoolFlag,
	flags.RewardDistributorFlag,
	flags.EmissionManagerFlag,
	flags.LPTokensFlag,
	flags.TreasuryFlag,
	flags.EpochFlag,
	flags.UsersFileFlag,
	flags.SnapshotBlockRangeFlag,
	flags.SnapshotConcurrencyFlag,
	flags.OutputDirFlag,
	flags.MaxRewardDeviationFlag,
	flags.AdminPrivateKeyFlag,
	flags.ForceUpdateFlag,
	flags.DryRunFlag,
	flags.VerbosityFlag,
	flags.LogFormatFlag,
	flags.ConfigFileFlag,
	flags.MonitoringHostFlag,
	flags.MonitoringPortFlag,
}

func init() {
	appFlags = flags.WrapFlags(appFlags)
}

func main() {
	app := cli.App{}
	app.Name = "erde"
	app.Usage = "computes the weekly USDP reward distribution and commits its merkle root on chain"
	app.Flags = appFlags
	app.Action = run
	app.Before = func(ctx *cli.Context) error {
		// Load any flags from file, if specified.
		if ctx.IsSet(flags.ConfigFileFlag.Name) {
			if err := altsrc.InitInputSourceWithContext(
				appFlags,
				altsrc.NewYamlSourceFromFlagFunc(
					flags.ConfigFileFlag.Name))(ctx); err != nil {
				return err
			}
		}

		format := ctx.String(flags.LogFormatFlag.Name)
		switch format {
		case "text":
			formatter := new(prefixed.TextFormatter)
			formatter.TimestampFormat = "2006-01-02 15:04:05"
			formatter.FullTimestamp = true
			logrus.SetFormatter(formatter)
		case "fluentd":
			logrus.SetFormatter(joonix.NewFormatter())
		case "json":
			logrus.SetFormatter(&logrus.JSONFormatter{})
		default:
			return fmt.Errorf("unknown log format %s", format)
		}

		level, err := logrus.ParseLevel(ctx.String(flags.VerbosityFlag.Name))
		if err != nil {
			return err
		}
		logrus.SetLevel(level)

		runtime.GOMAXPROCS(runtime.NumCPU())
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

func run(cliCtx *cli.Context) error {
	cfg, err := buildConfig(cliCtx)
	if err != nil {
		return err
	}
	if !cliCtx.IsSet(flags.EpochFlag.Name) {
		return errors.New("--epoch is required")
	}
	epoch := cliCtx.Uint64(flags.EpochFlag.Name)

	usersFile := cliCtx.String(flags.UsersFileFlag.Name)
	if usersFile == "" {
		return errors.New("--users-file is required")
	}
	users, err := loadUsers(usersFile)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logrus.AddHook(prometheus.NewLogrusCollector())
	if host := cliCtx.String(flags.MonitoringHostFlag.Name); host != "" {
		svc := prometheus.NewService(host, cliCtx.Int(flags.MonitoringPortFlag.Name))
		svc.Start()
		defer func() {
			if err := svc.Stop(context.Background()); err != nil {
				log.WithError(err).Debug("Could not stop metrics endpoint")
			}
		}()
	}

	client, err := chain.NewClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	var submitter pipeline.RootSubmitter
	if cfg.AdminPrivateKey != "" && !cfg.DryRun {
		chainID, err := client.Eth().ChainID(ctx)
		if err != nil {
			return errors.Wrap(err, "could not read chain id")
		}
		distributor := chain.NewDistributor(client.Eth(), cfg.RewardDistributorAddress)
		s, err := submit.NewSubmitter(distributor, cfg.AdminPrivateKey, chainID, cfg.ForceUpdate)
		if err != nil {
			return err
		}
		submitter = s
	} else {
		log.Info("No admin key configured or dry run requested, submission disabled")
	}

	p, err := pipeline.New(cfg, client, submitter)
	if err != nil {
		return err
	}
	result, err := p.Run(ctx, epoch, users)
	if err != nil {
		return err
	}
	if result.Receipt != nil && result.Receipt.Submitted {
		log.WithField("txHash", result.Receipt.TxHash.Hex()).Info("Merkle root submitted")
	}
	return nil
}

// buildConfig assembles and validates the pipeline configuration from flags.
func buildConfig(cliCtx *cli.Context) (config.Config, error) {
	cfg := config.Config{
		RPCURL:              cliCtx.String(flags.RPCURLFlag.Name),
		SnapshotBlockRange:  cliCtx.Uint64(flags.SnapshotBlockRangeFlag.Name),
		SnapshotConcurrency: cliCtx.Int(flags.SnapshotConcurrencyFlag.Name),
		OutputDir:           cliCtx.String(flags.OutputDirFlag.Name),
		SnapshotFileName:    config.DefaultSnapshotFileName,
		WeightsFileName:     config.DefaultWeightsFileName,
		RewardsFileName:     config.DefaultRewardsFileName,
		MerkleFileName:      config.DefaultMerkleFileName,
		SummaryFileName:     config.DefaultSummaryFileName,
		MaxRewardDeviation:  cliCtx.Float64(flags.MaxRewardDeviationFlag.Name),
		AdminPrivateKey:     strings.TrimPrefix(cliCtx.String(flags.AdminPrivateKeyFlag.Name), "0x"),
		ForceUpdate:         cliCtx.Bool(flags.ForceUpdateFlag.Name),
		DryRun:              cliCtx.Bool(flags.DryRunFlag.Name),
	}
	var err error
	for _, f := range []struct {
		flag *cli.StringFlag
		dst  *common.Address
	}{
		{flags.VaultFlag, &cfg.VaultAddress},
		{flags.StabilityPoolFlag, &cfg.StabilityPoolAddress},
		{flags.RewardDistributorFlag, &cfg.RewardDistributorAddress},
		{flags.EmissionManagerFlag, &cfg.EmissionManagerAddress},
		{flags.TreasuryFlag, &cfg.TreasuryAddress},
	} {
		raw := cliCtx.String(f.flag.Name)
		if raw == "" {
			return config.Config{}, errors.Errorf("--%s is required", f.flag.Name)
		}
		*f.dst, err = config.ParseAddress(raw)
		if err != nil {
			return config.Config{}, errors.Wrapf(err, "invalid --%s", f.flag.Name)
		}
	}
	cfg.LPTokenAddresses, err = config.ParseAddressList(cliCtx.String(flags.LPTokensFlag.Name))
	if err != nil {
		return config.Config{}, errors.Wrap(err, "invalid --lp-tokens")
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// loadUsers reads the candidate recipient list, one address per line. Blank
// lines and lines starting with # are skipped; duplicates are rejected so the
// snapshot never double counts a position.
func loadUsers(path string) ([]common.Address, error) {
	f, err := os.Open(path) // #nosec G304 -- operator supplied path
	if err != nil {
		return nil, errors.Wrap(err, "could not open users file")
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.WithError(err).Debug("Could not close users file")
		}
	}()

	var users []common.Address
	seen := make(map[common.Address]bool)
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		addr, err := config.ParseAddress(text)
		if err != nil {
			return nil, errors.Wrapf(err, "users file line %d", line)
		}
		if seen[addr] {
			return nil, errors.Errorf("users file line %d: duplicate address %s", line, addr.Hex())
		}
		seen[addr] = true
		users = append(users, addr)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "could not read users file")
	}
	if len(users) == 0 {
		return nil, errors.Errorf("users file %s contains no addresses", path)
	}
	return users, nil
}
