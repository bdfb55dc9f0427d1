package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/urfave/cli/v2"
)

var (
	eventFlag = &cli.StringFlag{
		Name: "event",
		Usage: "the target event, one of TRANSACTION_CREATED, TRANSACTION_CONFIRMED, " +
			"TRANSACTION_COMPLETED, TRANSACTION_DISPUTED, TRANSACTION_CANCELLED, " +
			"TRANSACTION_REFUNDED or * for any",
	}

	webhook = cli.Command{
		Name:  "webhook",
		Usage: "add or remove webhooks",
		Subcommands: []*cli.Command{
			webhookAddCmd, webhookRemoveCmd,
		},
	}
	listwebhooks = cli.Command{
		Name:   "webhooks",
		Usage:  "list all webhooks, optionally filtered by target event",
		Flags:  []cli.Flag{eventFlag},
		Action: listWebhooksAction,
	}

	webhookAddCmd = &cli.Command{
		Name:  "add",
		Usage: "add a (secured) webhook endpoint called whenever a target event occurs",
		Flags: []cli.Flag{
			eventFlag,
			&cli.StringFlag{
				Name:  "endpoint",
				Usage: "the webhook endpoint to be called whenever the target event occurs",
			},
			&cli.StringFlag{
				Name: "secret",
				Usage: "the eventual secret to use to generate a token for " +
					"authenticating requests to the webhook endpoint",
			},
			&cli.BoolFlag{
				Name:  "generate_secret",
				Usage: "let the daemon generate the secret if none is given",
			},
		},
		Action: addWebhookAction,
	}

	webhookRemoveCmd = &cli.Command{
		Name:  "remove",
		Usage: "remove a webhook",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "id",
				Usage:    "the id of the webhook to remove",
				Required: true,
			},
		},
		Action: removeWebhookAction,
	}
)

func addWebhookAction(ctx *cli.Context) error {
	if ctx.String("event") == "" {
		return fmt.Errorf("missing event")
	}

	return doAction(ctx, http.MethodPost, "/v1/webhooks", map[string]interface{}{
		"event":           ctx.String("event"),
		"endpoint":        ctx.String("endpoint"),
		"secret":          ctx.String("secret"),
		"generate_secret": ctx.Bool("generate_secret"),
	})
}

func removeWebhookAction(ctx *cli.Context) error {
	client, err := getClient(ctx)
	if err != nil {
		return err
	}

	hookID := ctx.String("id")
	if _, err := client.do(
		context.Background(), http.MethodDelete,
		"/v1/webhooks/"+url.PathEscape(hookID), nil,
	); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("removed webhook with id:", hookID)
	return nil
}

func listWebhooksAction(ctx *cli.Context) error {
	path := "/v1/webhooks"
	if event := ctx.String("event"); event != "" {
		path += "?event=" + url.QueryEscape(event)
	}
	return doAction(ctx, http.MethodGet, path, nil)
}
