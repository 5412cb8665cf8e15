// This code was adapted from https://github.com/ethereum/go-ethereum/blob/master/cmd/geth/usage.go
package main

import (
	"io"
	"sort"

	"github.com/urfave/cli/v2"

	"github.com/usdp-protocol/erde/cmd/erde/flags"
)

var appHelpTemplate = `NAME:
   {{.App.Name}} - {{.App.Usage}}
USAGE:
   {{.App.HelpName}} [options]{{if .App.Commands}} command [command options]{{end}} {{if .App.ArgsUsage}}{{.App.ArgsUsage}}{{else}}[arguments...]{{end}}
   {{if .App.Version}}
AUTHOR:
   {{range .App.Authors}}{{ . }}{{end}}
   {{end}}{{if .App.Commands}}
GLOBAL OPTIONS:
   {{range .App.Commands}}{{join .Names ", "}}{{ "\t" }}{{.Usage}}
   {{end}}{{end}}{{if .FlagGroups}}
{{range .FlagGroups}}{{.Name}} OPTIONS:
   {{range .Flags}}{{.}}
   {{end}}
{{end}}{{end}}{{if .App.Copyright }}
COPYRIGHT:
   {{.App.Copyright}}
VERSION:
   {{.App.Version}}
   {{end}}{{if len .App.Authors}}
   {{end}}
`

type flagGroup struct {
	Name  string
	Flags []cli.Flag
}

var appHelpFlagGroups = []flagGroup{
	{
		Name: "chain",
		Flags: []cli.Flag{
			flags.RPCURLFlag,
			flags.VaultFlag,
			flags.StabilityPoolFlag,
			flags.RewardDistributorFlag,
			flags.EmissionManagerFlag,
			flags.LPTokensFlag,
			flags.TreasuryFlag,
		},
	},
	{
		Name: "epoch",
		Flags: []cli.Flag{
			flags.EpochFlag,
			flags.UsersFileFlag,
			flags.SnapshotBlockRangeFlag,
			flags.SnapshotConcurrencyFlag,
			flags.MaxRewardDeviationFlag,
		},
	},
	{
		Name: "submission",
		Flags: []cli.Flag{
			flags.AdminPrivateKeyFlag,
			flags.ForceUpdateFlag,
			flags.DryRunFlag,
		},
	},
	{
		Name: "output",
		Flags: []cli.Flag{
			flags.OutputDirFlag,
		},
	},
	{
		Name: "cmd",
		Flags: []cli.Flag{
			flags.VerbosityFlag,
			flags.LogFormatFlag,
			flags.ConfigFileFlag,
			flags.MonitoringHostFlag,
			flags.MonitoringPortFlag,
		},
	},
}

func init() {
	cli.AppHelpTemplate = appHelpTemplate

	type helpData struct {
		App        interface{}
		FlagGroups []flagGroup
	}

	originalHelpPrinter := cli.HelpPrinter
	cli.HelpPrinter = func(w io.Writer, tmpl string, data interface{}) {
		if tmpl == appHelpTemplate {
			for _, group := range appHelpFlagGroups {
				sort.Sort(cli.FlagsByName(group.Flags))
			}
			originalHelpPrinter(w, tmpl, helpData{data, appHelpFlagGroups})
		} else {
			originalHelpPrinter(w, tmpl, data)
		}
	}
}
