package main

import (
	"github.com/urfave/cli"

	"github.com/smartvaults/svengine/ids"
)

var approveCommand = cli.Command{
	Name:      "approve",
	Category:  "Approve",
	Usage:     "Approve a proposal using this participant's own signing key.",
	ArgsUsage: "proposal-id",
	Action:    actionDecorator(approve),
}

func approve(c *cli.Context) error {
	args := c.Args()
	if len(args) != 1 {
		return cli.ShowCommandHelp(c, "approve")
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

	if err := app.action.Approve(proposalID); err != nil {
		return err
	}
	printRespJSON(map[string]string{"approved": proposalID.String()})
	return nil
}

var revokeApprovalCommand = cli.Command{
	Name:      "revokeapproval",
	Category:  "Approve",
	Usage:     "Revoke this participant's own approval.",
	ArgsUsage: "approval-id",
	Action:    actionDecorator(revokeApproval),
}

func revokeApproval(c *cli.Context) error {
	args := c.Args()
	if len(args) != 1 {
		return cli.ShowCommandHelp(c, "revokeapproval")
	}
	approvalID, err := ids.EventIDFromHex(args.Get(0))
	if err != nil {
		return err
	}

	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.close()

	if err := app.action.RevokeApproval(approvalID); err != nil {
		return err
	}
	printRespJSON(map[string]string{"revoked": approvalID.String()})
	return nil
}

var finalizeCommand = cli.Command{
	Name:      "finalize",
	Category:  "Approve",
	Usage:     "Combine recorded approvals and finalize a proposal.",
	ArgsUsage: "proposal-id",
	Action:    actionDecorator(finalize),
}

func finalize(c *cli.Context) error {
	args := c.Args()
	if len(args) != 1 {
		return cli.ShowCommandHelp(c, "finalize")
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

	completion, err := app.action.Finalize(proposalID)
	if err != nil {
		return err
	}
	printRespJSON(completion)
	return nil
}

var deleteCompletionCommand = cli.Command{
	Name:      "deletecompletion",
	Category:  "Approve",
	Usage:     "Delete a completion this vault's shared key authored.",
	ArgsUsage: "completion-id",
	Action:    actionDecorator(deleteCompletion),
}

func deleteCompletion(c *cli.Context) error {
	args := c.Args()
	if len(args) != 1 {
		return cli.ShowCommandHelp(c, "deletecompletion")
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

	if err := app.action.DeleteCompletion(completionID); err != nil {
		return err
	}
	printRespJSON(map[string]string{"deleted": completionID.String()})
	return nil
}
