package main

import (
	"fmt"

	"github.com/urfave/cli"

	"github.com/smartvaults/svengine/ids"
	"github.com/smartvaults/svengine/label"
	"github.com/smartvaults/svengine/signer"
)

var registerSignerCommand = cli.Command{
	Name:      "registersigner",
	Category:  "Signer",
	Usage:     "Register a local signer description.",
	ArgsUsage: "name description fingerprint descriptor type(seed|hardware|air-gap)",
	Action:    actionDecorator(registerSigner),
}

func registerSigner(c *cli.Context) error {
	args := c.Args()
	if len(args) != 5 {
		return cli.ShowCommandHelp(c, "registersigner")
	}
	t, err := parseSignerType(args.Get(4))
	if err != nil {
		return err
	}

	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.close()

	signerID, err := app.action.RegisterSigner(args.Get(0), args.Get(1), args.Get(2), args.Get(3), t)
	if err != nil {
		return err
	}
	printRespJSON(map[string]string{"signer_id": signerID.String()})
	return nil
}

func parseSignerType(s string) (signer.Type, error) {
	switch s {
	case "seed":
		return signer.TypeSeed, nil
	case "hardware":
		return signer.TypeHardware, nil
	case "air-gap":
		return signer.TypeAirGap, nil
	default:
		return 0, fmt.Errorf("svcli: unknown signer type %q (want seed, hardware, or air-gap)", s)
	}
}

var deleteSignerCommand = cli.Command{
	Name:      "deletesigner",
	Category:  "Signer",
	Usage:     "Delete a signer this participant registered.",
	ArgsUsage: "signer-id",
	Action:    actionDecorator(deleteSigner),
}

func deleteSigner(c *cli.Context) error {
	args := c.Args()
	if len(args) != 1 {
		return cli.ShowCommandHelp(c, "deletesigner")
	}
	signerID, err := ids.EventIDFromHex(args.Get(0))
	if err != nil {
		return err
	}

	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.close()

	if err := app.action.DeleteSigner(signerID); err != nil {
		return err
	}
	printRespJSON(map[string]string{"deleted": signerID.String()})
	return nil
}

var shareSignerCommand = cli.Command{
	Name:      "sharesigner",
	Category:  "Signer",
	Usage:     "Share one of this participant's signers with another participant.",
	ArgsUsage: "signer-id recipient-pubkey",
	Action:    actionDecorator(shareSigner),
}

func shareSigner(c *cli.Context) error {
	args := c.Args()
	if len(args) != 2 {
		return cli.ShowCommandHelp(c, "sharesigner")
	}
	signerID, err := ids.EventIDFromHex(args.Get(0))
	if err != nil {
		return err
	}
	recipient, err := ids.PubKeyFromHex(args.Get(1))
	if err != nil {
		return err
	}

	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.close()

	sharedID, err := app.action.ShareSigner(signerID, recipient)
	if err != nil {
		return err
	}
	printRespJSON(map[string]string{"shared_signer_id": sharedID.String()})
	return nil
}

var listSignersCommand = cli.Command{
	Name:     "listsigners",
	Category: "Signer",
	Usage:    "List every locally registered signer.",
	Action:   actionDecorator(listSigners),
}

func listSigners(c *cli.Context) error {
	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.close()

	signers, err := app.store.ListSigners()
	if err != nil {
		return err
	}
	printRespJSON(signers)
	return nil
}

var listSharedSignersCommand = cli.Command{
	Name:      "listsharedsigners",
	Category:  "Signer",
	Usage:     "List every signer the given author has shared with this participant.",
	ArgsUsage: "author-pubkey",
	Action:    actionDecorator(listSharedSigners),
}

func listSharedSigners(c *cli.Context) error {
	args := c.Args()
	if len(args) != 1 {
		return cli.ShowCommandHelp(c, "listsharedsigners")
	}
	author, err := ids.PubKeyFromHex(args.Get(0))
	if err != nil {
		return err
	}

	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.close()

	shared, err := app.store.ListSharedSigners(author)
	if err != nil {
		return err
	}
	printRespJSON(shared)
	return nil
}

var labelCommand = cli.Command{
	Name:      "label",
	Category:  "Signer",
	Usage:     "Attach a label to an address, UTXO, or txid within a vault.",
	ArgsUsage: "vault-id kind(address|utxo|txid) value text",
	Action:    actionDecorator(labelCmd),
}

func labelCmd(c *cli.Context) error {
	args := c.Args()
	if len(args) != 4 {
		return cli.ShowCommandHelp(c, "label")
	}
	vaultID, err := ids.EventIDFromHex(args.Get(0))
	if err != nil {
		return err
	}
	kind, err := parseLabelKind(args.Get(1))
	if err != nil {
		return err
	}

	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.close()

	identifier, err := app.action.Label(vaultID, label.Data{Kind: kind, Value: args.Get(2)}, args.Get(3))
	if err != nil {
		return err
	}
	printRespJSON(map[string]string{"identifier": identifier})
	return nil
}

func parseLabelKind(s string) (label.Kind, error) {
	switch s {
	case "address":
		return label.KindAddress, nil
	case "utxo":
		return label.KindUTXO, nil
	case "txid":
		return label.KindTxID, nil
	default:
		return 0, fmt.Errorf("svcli: unknown label kind %q (want address, utxo, or txid)", s)
	}
}
