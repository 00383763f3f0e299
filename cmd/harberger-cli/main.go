// Command harberger-cli inspects a Harberger asset database offline.
//
// It opens the LevelDB store read-side only: no settlement operation runs
// here, so a live engine writing to a copy of the database is never raced.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/openlots/harberger/asset"
	"github.com/openlots/harberger/id"
	"github.com/openlots/harberger/store/leveldb"
	"github.com/openlots/harberger/tax"
)

func main() {
	app := &cli.App{
		Name:  "harberger-cli",
		Usage: "inspect a Harberger asset database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "db",
				Usage:    "path to the LevelDB asset database",
				Required: true,
			},
			&cli.Int64Flag{
				Name:  "rate",
				Usage: "annual tax rate in basis points, for tax computations",
				Value: 700,
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "show",
				Usage:     "print one asset record and its accrued tax",
				ArgsUsage: "<asset-id>",
				Action:    runShow,
			},
			{
				Name:  "list",
				Usage: "list asset records",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "status", Usage: "filter by status (active|defaulted)"},
					&cli.IntFlag{Name: "limit", Usage: "maximum records to print"},
					&cli.IntFlag{Name: "offset", Usage: "records to skip"},
				},
				Action: runList,
			},
			{
				Name:  "due",
				Usage: "list active assets past the foreclosure boundary",
				Flags: []cli.Flag{
					&cli.DurationFlag{Name: "cliff", Usage: "foreclosure grace period", Value: 720 * time.Hour},
					&cli.DurationFlag{Name: "margin", Usage: "settlement margin", Value: 25 * time.Second},
				},
				Action: runDue,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("harberger-cli failed", "error", err)
		os.Exit(1)
	}
}

func openStore(c *cli.Context) (*leveldb.Store, error) {
	return leveldb.New(c.String("db"))
}

func runShow(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: show <asset-id>", 2)
	}

	assetID, err := id.ParseAssetID(c.Args().First())
	if err != nil {
		return err
	}

	s, err := openStore(c)
	if err != nil {
		return err
	}
	defer s.Close()

	a, err := s.GetAsset(c.Context, assetID)
	if err != nil {
		return err
	}

	fmt.Printf("id:              %s\n", a.ID)
	fmt.Printf("status:          %s\n", a.Status())
	fmt.Printf("price:           %s\n", a.Price)
	fmt.Printf("last settlement: %s\n", a.LastSettlement.Format(time.RFC3339))
	fmt.Printf("created:         %s\n", a.CreatedAt.Format(time.RFC3339))

	if !a.Defaulted {
		due, err := taxDueNow(a, c.Int64("rate"))
		if err != nil {
			return err
		}
		fmt.Printf("tax due:         %s\n", due)
	}

	return nil
}

func runList(c *cli.Context) error {
	s, err := openStore(c)
	if err != nil {
		return err
	}
	defer s.Close()

	assets, err := s.ListAssets(c.Context, asset.ListOpts{
		Status: asset.Status(c.String("status")),
		Limit:  c.Int("limit"),
		Offset: c.Int("offset"),
	})
	if err != nil {
		return err
	}

	for _, line := range lo.Map(assets, func(a *asset.Asset, _ int) string {
		return fmt.Sprintf("%s\t%s\t%s\t%s",
			a.ID, a.Status(), a.Price, a.LastSettlement.Format(time.RFC3339))
	}) {
		fmt.Println(line)
	}

	slog.Info("listed assets", "count", len(assets))
	return nil
}

func runDue(c *cli.Context) error {
	s, err := openStore(c)
	if err != nil {
		return err
	}
	defer s.Close()

	assets, err := s.ListAssets(c.Context, asset.ListOpts{Status: asset.StatusActive})
	if err != nil {
		return err
	}

	boundary := c.Duration("cliff") + c.Duration("margin")
	now := time.Now().UTC()

	lapsed := lo.Filter(assets, func(a *asset.Asset, _ int) bool {
		return now.Sub(a.LastSettlement) >= boundary
	})

	for _, a := range lapsed {
		due, err := taxDueNow(a, c.Int64("rate"))
		if err != nil {
			return err
		}
		fmt.Printf("%s\tprice=%s\tunpaid=%s\tlapsed=%s\n",
			a.ID, a.Price, due, now.Sub(a.LastSettlement).Truncate(time.Second))
	}

	slog.Info("foreclosure-eligible assets", "count", len(lapsed), "of", len(assets))
	return nil
}

func taxDueNow(a *asset.Asset, rateBps int64) (decimal.Decimal, error) {
	elapsed, err := tax.Elapsed(a.LastSettlement, time.Now().UTC())
	if err != nil {
		return decimal.Zero, err
	}
	return tax.Due(a.Price, rateBps, elapsed)
}
