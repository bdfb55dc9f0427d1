package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
)

var (
	actorFlag = &cli.StringFlag{
		Name:     "actor",
		Usage:    "the party performing the operation",
		Required: true,
	}
	reasonFlag = &cli.StringFlag{
		Name:  "reason",
		Usage: "the reason of the operation",
	}
)

var (
	create = cli.Command{
		Name:  "create",
		Usage: "open a new escrow transaction between a buyer and a seller",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "buyer",
				Usage:    "the buyer party id",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "seller",
				Usage:    "the seller party id",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "amount",
				Usage:    "the agreed amount, fee excluded",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "description",
				Usage: "the description of the traded item",
			},
		},
		Action: createAction,
	}
	confirm = cli.Command{
		Name:      "confirm",
		Usage:     "confirm a pending transaction as buyer or seller",
		ArgsUsage: "<transaction id>",
		Flags: []cli.Flag{
			actorFlag,
			&cli.StringFlag{
				Name:     "role",
				Usage:    "the role of the actor, either buyer or seller",
				Required: true,
			},
		},
		Action: confirmAction,
	}
	complete = cli.Command{
		Name:      "complete",
		Usage:     "complete a confirmed transaction and release funds to the seller",
		ArgsUsage: "<transaction id>",
		Flags:     []cli.Flag{actorFlag},
		Action:    completeAction,
	}
	dispute = cli.Command{
		Name:      "dispute",
		Usage:     "raise a dispute on a pending or confirmed transaction",
		ArgsUsage: "<transaction id>",
		Flags:     []cli.Flag{actorFlag, reasonFlag},
		Action:    disputeAction,
	}
	cancel = cli.Command{
		Name:      "cancel",
		Usage:     "cancel a pending transaction",
		ArgsUsage: "<transaction id>",
		Flags:     []cli.Flag{actorFlag, reasonFlag},
		Action:    cancelAction,
	}
	resolve = cli.Command{
		Name:      "resolve",
		Usage:     "resolve a disputed transaction by refunding the buyer",
		ArgsUsage: "<transaction id>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "arbiter",
				Usage:    "the arbiter settling the dispute",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "note",
				Usage: "the resolution note",
			},
		},
		Action: resolveAction,
	}
	reconcile = cli.Command{
		Name:      "reconcile",
		Usage:     "re-issue the ledger operation for the current status of a transaction",
		ArgsUsage: "<transaction id>",
		Action:    reconcileAction,
	}
	get = cli.Command{
		Name:      "get",
		Usage:     "get the details of a transaction",
		ArgsUsage: "<transaction id>",
		Action:    getAction,
	}
	list = cli.Command{
		Name:      "list",
		Usage:     "list the transactions of a party, most recent first",
		ArgsUsage: "<party id>",
		Action:    listAction,
	}
	statistics = cli.Command{
		Name:   "stats",
		Usage:  "get the statistics of all escrow transactions",
		Action: statisticsAction,
	}
)

func createAction(ctx *cli.Context) error {
	amount, err := decimal.NewFromString(ctx.String("amount"))
	if err != nil {
		return fmt.Errorf("invalid amount: %s", err)
	}

	return doAction(ctx, http.MethodPost, "/v1/transactions", map[string]interface{}{
		"buyer":       ctx.String("buyer"),
		"seller":      ctx.String("seller"),
		"amount":      amount.String(),
		"description": ctx.String("description"),
	})
}

func confirmAction(ctx *cli.Context) error {
	return transactionAction(ctx, "confirm", map[string]string{
		"actor": ctx.String("actor"),
		"role":  ctx.String("role"),
	})
}

func completeAction(ctx *cli.Context) error {
	return transactionAction(ctx, "complete", map[string]string{
		"actor": ctx.String("actor"),
	})
}

func disputeAction(ctx *cli.Context) error {
	return transactionAction(ctx, "dispute", map[string]string{
		"actor":  ctx.String("actor"),
		"reason": ctx.String("reason"),
	})
}

func cancelAction(ctx *cli.Context) error {
	return transactionAction(ctx, "cancel", map[string]string{
		"actor":  ctx.String("actor"),
		"reason": ctx.String("reason"),
	})
}

func resolveAction(ctx *cli.Context) error {
	return transactionAction(ctx, "resolve", map[string]string{
		"arbiter": ctx.String("arbiter"),
		"note":    ctx.String("note"),
	})
}

func reconcileAction(ctx *cli.Context) error {
	return transactionAction(ctx, "reconcile", nil)
}

func getAction(ctx *cli.Context) error {
	id, err := firstArg(ctx, "get")
	if err != nil {
		return err
	}
	return doAction(ctx, http.MethodGet, "/v1/transactions/"+url.PathEscape(id), nil)
}

func listAction(ctx *cli.Context) error {
	party, err := firstArg(ctx, "list")
	if err != nil {
		return err
	}
	path := fmt.Sprintf("/v1/parties/%s/transactions", url.PathEscape(party))
	return doAction(ctx, http.MethodGet, path, nil)
}

func statisticsAction(ctx *cli.Context) error {
	return doAction(ctx, http.MethodGet, "/v1/statistics", nil)
}

func transactionAction(
	ctx *cli.Context, op string, body map[string]string,
) error {
	id, err := firstArg(ctx, op)
	if err != nil {
		return err
	}
	path := fmt.Sprintf("/v1/transactions/%s/%s", url.PathEscape(id), op)
	return doAction(ctx, http.MethodPost, path, body)
}

func doAction(
	ctx *cli.Context, method, path string, body interface{},
) error {
	client, err := getClient(ctx)
	if err != nil {
		return err
	}

	resp, err := client.do(context.Background(), method, path, body)
	if err != nil {
		return err
	}

	printRespJSON(resp)
	return nil
}

func firstArg(ctx *cli.Context, command string) (string, error) {
	if ctx.NArg() < 1 || ctx.Args().First() == "" {
		return "", &invalidUsageError{ctx, command}
	}
	return ctx.Args().First(), nil
}
