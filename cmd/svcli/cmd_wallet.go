package main

import (
	"fmt"

	"github.com/urfave/cli"

	"github.com/smartvaults/svengine/ids"
)

// loadWallet loads id's vault into app.wallets, the prerequisite every
// walletmgr operation has (spec.md §4.B `load_vault`).
func loadWallet(app *app, id ids.VaultID) error {
	v, ok, err := app.store.GetVault(id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("svcli: vault %s not found", id)
	}
	return app.wallets.LoadVault(id, v)
}

var syncVaultCommand = cli.Command{
	Name:      "syncvault",
	Category:  "Wallet",
	Usage:     "Sync a vault's UTXO set against the chain client.",
	ArgsUsage: "vault-id",
	Action:    actionDecorator(syncVault),
}

func syncVault(c *cli.Context) error {
	args := c.Args()
	if len(args) != 1 {
		return cli.ShowCommandHelp(c, "syncvault")
	}
	vaultID, err := ids.EventIDFromHex(args.Get(0))
	if err != nil {
		return err
	}

	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.close()

	if err := loadWallet(app, vaultID); err != nil {
		return err
	}
	if err := app.wallets.Sync(vaultID); err != nil {
		return err
	}
	printRespJSON(map[string]string{"synced": vaultID.String()})
	return nil
}

var balanceCommand = cli.Command{
	Name:      "balance",
	Category:  "Wallet",
	Usage:     "Report a vault's cached balance.",
	ArgsUsage: "vault-id",
	Action:    actionDecorator(balance),
}

func balance(c *cli.Context) error {
	args := c.Args()
	if len(args) != 1 {
		return cli.ShowCommandHelp(c, "balance")
	}
	vaultID, err := ids.EventIDFromHex(args.Get(0))
	if err != nil {
		return err
	}

	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.close()

	if err := loadWallet(app, vaultID); err != nil {
		return err
	}
	amt, err := app.wallets.GetBalance(vaultID)
	if err != nil {
		return err
	}
	printRespJSON(map[string]string{"balance_sats": amt.String()})
	return nil
}

var utxosCommand = cli.Command{
	Name:      "utxos",
	Category:  "Wallet",
	Usage:     "List a vault's cached UTXOs.",
	ArgsUsage: "vault-id",
	Action:    actionDecorator(utxos),
}

func utxos(c *cli.Context) error {
	args := c.Args()
	if len(args) != 1 {
		return cli.ShowCommandHelp(c, "utxos")
	}
	vaultID, err := ids.EventIDFromHex(args.Get(0))
	if err != nil {
		return err
	}

	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.close()

	if err := loadWallet(app, vaultID); err != nil {
		return err
	}
	coins, err := app.wallets.GetUTXOs(vaultID)
	if err != nil {
		return err
	}
	printRespJSON(coins)
	return nil
}
