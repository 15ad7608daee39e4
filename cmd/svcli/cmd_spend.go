package main

import (
	"strconv"

	"github.com/urfave/cli"

	"github.com/smartvaults/svengine/action"
	"github.com/smartvaults/svengine/ids"
)

var spendCommand = cli.Command{
	Name:      "spend",
	Category:  "Spend",
	Usage:     "Build a spending proposal from a vault.",
	ArgsUsage: "vault-id to-address amount-sats fee-rate-sat-per-vbyte description",
	Flags: []cli.Flag{
		cli.BoolFlag{Name: "max", Usage: "drain every available UTXO to to-address, ignoring amount-sats"},
		cli.BoolFlag{Name: "rbf", Usage: "mark the transaction replaceable"},
	},
	Action: actionDecorator(spend),
}

func spend(c *cli.Context) error {
	args := c.Args()
	if len(args) != 5 {
		return cli.ShowCommandHelp(c, "spend")
	}

	vaultID, err := ids.EventIDFromHex(args.Get(0))
	if err != nil {
		return err
	}
	amountSats := int64(-1)
	if !c.Bool("max") {
		amountSats, err = strconv.ParseInt(args.Get(2), 10, 64)
		if err != nil {
			return err
		}
	}
	feeRate, err := strconv.ParseFloat(args.Get(3), 64)
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
	result, err := app.action.Spend(vaultID, action.SpendParams{
		ToAddress:          args.Get(1),
		AmountSats:         amountSats,
		Description:        args.Get(4),
		FeeRateSatPerVByte: feeRate,
		EnableRBF:          c.Bool("rbf"),
	})
	if err != nil {
		return err
	}
	printRespJSON(result)
	return nil
}

var selfTransferCommand = cli.Command{
	Name:      "selftransfer",
	Category:  "Spend",
	Usage:     "Move funds from one locally known vault to another.",
	ArgsUsage: "from-vault-id to-vault-id amount-sats fee-rate-sat-per-vbyte",
	Action:    actionDecorator(selfTransfer),
}

func selfTransfer(c *cli.Context) error {
	args := c.Args()
	if len(args) != 4 {
		return cli.ShowCommandHelp(c, "selftransfer")
	}
	from, err := ids.EventIDFromHex(args.Get(0))
	if err != nil {
		return err
	}
	to, err := ids.EventIDFromHex(args.Get(1))
	if err != nil {
		return err
	}
	amountSats, err := strconv.ParseInt(args.Get(2), 10, 64)
	if err != nil {
		return err
	}
	feeRate, err := strconv.ParseFloat(args.Get(3), 64)
	if err != nil {
		return err
	}

	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.close()

	if err := loadWallet(app, from); err != nil {
		return err
	}
	if err := loadWallet(app, to); err != nil {
		return err
	}
	result, err := app.action.SelfTransfer(from, to, amountSats, feeRate, nil, nil)
	if err != nil {
		return err
	}
	printRespJSON(result)
	return nil
}

var deleteProposalCommand = cli.Command{
	Name:      "deleteproposal",
	Category:  "Spend",
	Usage:     "Delete a proposal this vault's shared key authored.",
	ArgsUsage: "proposal-id",
	Action:    actionDecorator(deleteProposal),
}

func deleteProposal(c *cli.Context) error {
	args := c.Args()
	if len(args) != 1 {
		return cli.ShowCommandHelp(c, "deleteproposal")
	}
	proposalID, err := ids.EventIDFromHex(args.Get(0))
	if err != nil {
		return err
	}

	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.close()

	if err := app.action.DeleteProposal(proposalID); err != nil {
		return err
	}
	printRespJSON(map[string]string{"deleted": proposalID.String()})
	return nil
}

var proofOfReserveCommand = cli.Command{
	Name:      "proofofreserve",
	Category:  "Spend",
	Usage:     "Build a proof-of-reserve proposal for a vault.",
	ArgsUsage: "vault-id message",
	Action:    actionDecorator(proofOfReserve),
}

func proofOfReserve(c *cli.Context) error {
	args := c.Args()
	if len(args) != 2 {
		return cli.ShowCommandHelp(c, "proofofreserve")
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
	result, err := app.action.NewProofProposal(vaultID, args.Get(1))
	if err != nil {
		return err
	}
	printRespJSON(result)
	return nil
}

var verifyProofCommand = cli.Command{
	Name:      "verifyproof",
	Category:  "Spend",
	Usage:     "Verify a finalized proof-of-reserve completion.",
	ArgsUsage: "completion-id",
	Action:    actionDecorator(verifyProof),
}

func verifyProof(c *cli.Context) error {
	args := c.Args()
	if len(args) != 1 {
		return cli.ShowCommandHelp(c, "verifyproof")
	}
	completionID, err := ids.EventIDFromHex(args.Get(0))
	if err != nil {
		return err
	}

	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.close()

	satisfied, err := app.action.VerifyProofByID(completionID)
	if err != nil {
		return err
	}
	printRespJSON(map[string]string{"satisfied_sats": satisfied.String()})
	return nil
}
