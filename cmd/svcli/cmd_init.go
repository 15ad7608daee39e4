package main

import (
	"fmt"

	"github.com/urfave/cli"

	"github.com/smartvaults/svengine/config"
	"github.com/smartvaults/svengine/keystore"
)

var initCommand = cli.Command{
	Name:      "init",
	Category:  "Setup",
	Usage:     "Generate a new mnemonic and encrypt it under --passphrase.",
	ArgsUsage: "",
	Action:    actionDecorator(initEngine),
}

func initEngine(c *cli.Context) error {
	network, err := parseNetwork(c.GlobalString("network"))
	if err != nil {
		return err
	}
	passphrase := c.GlobalString("passphrase")
	if passphrase == "" {
		return fmt.Errorf("svcli: --passphrase (or SVENGINE_PASSPHRASE) is required")
	}
	base := c.GlobalString("basedir")

	if _, err := config.Load(base, network); err != nil {
		return err
	}
	if err := config.Save(base, network, config.Default(network)); err != nil {
		return err
	}

	mnemonic, err := keystore.NewMnemonic()
	if err != nil {
		return err
	}
	ks := keystore.NewFileKeystore(config.Dir(base, network) + "/" + seedFileName)
	if err := ks.SaveMnemonic(mnemonic, passphrase); err != nil {
		return err
	}

	printRespJSON(map[string]string{
		"mnemonic": mnemonic,
		"basedir":  config.Dir(base, network),
		"warning":  "record this mnemonic offline; it is the only copy outside the encrypted seed file",
	})
	return nil
}
