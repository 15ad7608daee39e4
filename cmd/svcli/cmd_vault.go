package main

import (
	"fmt"
	"strings"

	"github.com/urfave/cli"

	"github.com/smartvaults/svengine/ids"
)

var createVaultCommand = cli.Command{
	Name:      "createvault",
	Category:  "Vault",
	Usage:     "Create a new vault.",
	ArgsUsage: "name description descriptor participant-pubkey[,participant-pubkey...]",
	Action:    actionDecorator(createVault),
}

func createVault(c *cli.Context) error {
	args := c.Args()
	if len(args) != 4 {
		return cli.ShowCommandHelp(c, "createvault")
	}

	network, err := parseNetwork(c.GlobalString("network"))
	if err != nil {
		return err
	}

	var participants []ids.PubKey
	for _, hex := range strings.Split(args.Get(3), ",") {
		pk, err := ids.PubKeyFromHex(strings.TrimSpace(hex))
		if err != nil {
			return fmt.Errorf("invalid participant pubkey %q: %w", hex, err)
		}
		participants = append(participants, pk)
	}

	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.close()

	vaultID, err := app.action.CreateVault(args.Get(0), args.Get(1), args.Get(2), participants, network)
	if err != nil {
		return err
	}
	printRespJSON(map[string]string{"vault_id": vaultID.String()})
	return nil
}

var deleteVaultCommand = cli.Command{
	Name:      "deletevault",
	Category:  "Vault",
	Usage:     "Delete a vault this participant owns.",
	ArgsUsage: "vault-id",
	Action:    actionDecorator(deleteVault),
}

func deleteVault(c *cli.Context) error {
	args := c.Args()
	if len(args) != 1 {
		return cli.ShowCommandHelp(c, "deletevault")
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

	if err := app.action.DeleteVault(vaultID); err != nil {
		return err
	}
	printRespJSON(map[string]string{"deleted": vaultID.String()})
	return nil
}

var listVaultsCommand = cli.Command{
	Name:     "listvaults",
	Category: "Vault",
	Usage:    "List every locally known vault id.",
	Action:   actionDecorator(listVaults),
}

func listVaults(c *cli.Context) error {
	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.close()

	vaultIDs, err := app.store.ListVaultIDs()
	if err != nil {
		return err
	}
	out := make([]string, len(vaultIDs))
	for i, id := range vaultIDs {
		out[i] = id.String()
	}
	printRespJSON(out)
	return nil
}

var showVaultCommand = cli.Command{
	Name:      "showvault",
	Category:  "Vault",
	Usage:     "Show a vault's stored metadata.",
	ArgsUsage: "vault-id",
	Action:    actionDecorator(showVault),
}

func showVault(c *cli.Context) error {
	args := c.Args()
	if len(args) != 1 {
		return cli.ShowCommandHelp(c, "showvault")
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

	v, ok, err := app.store.GetVault(vaultID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("svcli: vault %s not found", vaultID)
	}
	printRespJSON(v)
	return nil
}
