// Command svcli is a thin operator CLI over the Action API (spec.md §4.F),
// grounded on cmd/dcrlncli's command-per-file layout. Unlike dcrlncli it
// never dials an RPC server: the engine has no network listener of its
// own (spec.md §1 Non-goals), so svcli embeds the full stack in-process —
// Local Store, Wallet Manager, Relay Clients, Chain Client, Action API —
// exactly as a desktop app or language binding would.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "svcli"
	app.Usage = "command line tool for interacting with a Smart Vaults engine instance"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "basedir",
			Value: defaultBaseDir(),
			Usage: "base directory holding base/<network>/{db,config.json,logs}",
		},
		cli.StringFlag{
			Name:  "network",
			Value: "testnet",
			Usage: "mainnet, testnet, signet, or regtest",
		},
		cli.StringFlag{
			Name:   "passphrase",
			EnvVar: "SVENGINE_PASSPHRASE",
			Usage:  "passphrase protecting the local mnemonic; also read from SVENGINE_PASSPHRASE",
		},
		cli.StringSliceFlag{
			Name:  "relay",
			Usage: "relay URL to publish/subscribe against, may be repeated",
		},
		cli.IntFlag{
			Name:  "account",
			Value: 0,
			Usage: "BIP-86 account index the Bitcoin signing key is derived at",
		},
	}
	app.Commands = []cli.Command{
		initCommand,
		createVaultCommand,
		deleteVaultCommand,
		listVaultsCommand,
		showVaultCommand,
		syncVaultCommand,
		balanceCommand,
		utxosCommand,
		spendCommand,
		selfTransferCommand,
		deleteProposalCommand,
		approveCommand,
		revokeApprovalCommand,
		finalizeCommand,
		deleteCompletionCommand,
		proofOfReserveCommand,
		verifyProofCommand,
		registerSignerCommand,
		deleteSignerCommand,
		shareSignerCommand,
		listSignersCommand,
		listSharedSignersCommand,
		labelCommand,
		acceptConnectCommand,
		connectRequestsCommand,
		approveConnectCommand,
		rejectConnectCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "[svcli] %v\n", err)
		os.Exit(1)
	}
}

func defaultBaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".svengine"
	}
	return home + "/.svengine"
}

// actionDecorator wraps a command's body so an error it returns becomes a
// cli exit error with status 1. Panics are not recovered.
func actionDecorator(f func(*cli.Context) error) func(*cli.Context) error {
	return func(c *cli.Context) error {
		if err := f(c); err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		return nil
	}
}

// printRespJSON pretty-prints resp the way every command reports its
// result, so svcli's output is always machine-parseable.
func printRespJSON(resp interface{}) {
	out, err := json.MarshalIndent(resp, "", "    ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "[svcli] failed to marshal response: %v\n", err)
		return
	}
	fmt.Println(string(out))
}
