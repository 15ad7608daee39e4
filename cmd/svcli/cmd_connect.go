package main

import (
	"time"

	"github.com/urfave/cli"

	"github.com/smartvaults/svengine/ids"
)

var acceptConnectCommand = cli.Command{
	Name:      "acceptconnect",
	Category:  "Connect",
	Usage:     "Accept a nostr-connect session from an app.",
	ArgsUsage: "app-pubkey relay-url",
	Flags: []cli.Flag{
		cli.DurationFlag{Name: "preauthorize", Usage: "pre-authorize every request from this app for the given duration"},
	},
	Action: actionDecorator(acceptConnect),
}

func acceptConnect(c *cli.Context) error {
	args := c.Args()
	if len(args) != 2 {
		return cli.ShowCommandHelp(c, "acceptconnect")
	}
	appPubKey, err := ids.PubKeyFromHex(args.Get(0))
	if err != nil {
		return err
	}

	var preauthorizedUntil time.Time
	if d := c.Duration("preauthorize"); d > 0 {
		preauthorizedUntil = time.Now().Add(d)
	}

	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.close()

	if err := app.action.AcceptConnectURI(appPubKey, args.Get(1), preauthorizedUntil); err != nil {
		return err
	}
	printRespJSON(map[string]string{"accepted": args.Get(0)})
	return nil
}

var connectRequestsCommand = cli.Command{
	Name:     "connectrequests",
	Category: "Connect",
	Usage:    "List pending or approved nostr-connect requests.",
	Flags: []cli.Flag{
		cli.BoolFlag{Name: "approved", Usage: "list already-approved requests instead of pending ones"},
	},
	Action: actionDecorator(connectRequests),
}

func connectRequests(c *cli.Context) error {
	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.close()

	requests, err := app.action.GetConnectRequests(c.Bool("approved"))
	if err != nil {
		return err
	}
	printRespJSON(requests)
	return nil
}

var approveConnectCommand = cli.Command{
	Name:      "approveconnect",
	Category:  "Connect",
	Usage:     "Approve a pending nostr-connect request.",
	ArgsUsage: "request-id",
	Action:    actionDecorator(approveConnect),
}

func approveConnect(c *cli.Context) error {
	args := c.Args()
	if len(args) != 1 {
		return cli.ShowCommandHelp(c, "approveconnect")
	}
	requestID, err := ids.EventIDFromHex(args.Get(0))
	if err != nil {
		return err
	}

	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.close()

	if err := app.action.ApproveConnectRequest(requestID); err != nil {
		return err
	}
	printRespJSON(map[string]string{"approved": requestID.String()})
	return nil
}

var rejectConnectCommand = cli.Command{
	Name:      "rejectconnect",
	Category:  "Connect",
	Usage:     "Reject a pending nostr-connect request.",
	ArgsUsage: "request-id",
	Action:    actionDecorator(rejectConnect),
}

func rejectConnect(c *cli.Context) error {
	args := c.Args()
	if len(args) != 1 {
		return cli.ShowCommandHelp(c, "rejectconnect")
	}
	requestID, err := ids.EventIDFromHex(args.Get(0))
	if err != nil {
		return err
	}

	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.close()

	if err := app.action.RejectConnectRequest(requestID); err != nil {
		return err
	}
	printRespJSON(map[string]string{"rejected": requestID.String()})
	return nil
}
