package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"tradeledger/cmd/account"
	"tradeledger/cmd/backtest"
	"tradeledger/cmd/brokersync"
	"tradeledger/cmd/export"
	"tradeledger/src/database"
	"tradeledger/src/server"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "tradeledger"
	app.Usage = "The tradeledger command line interface"

	app.Commands = []cli.Command{
		backtestCMD,
		brokerSyncCMD,
		serveCMD,
		exportCMD,
		accountCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	backtestCMD = cli.Command{
		Name:        "backtest",
		Usage:       "process a backtest fill log",
		Action:      backtestAction,
		ArgsUsage:   "<fills.csv>",
		Flags:       []cli.Flag{},
		Description: `Replay a strategy fill log through the reconstruction pipeline against a local sqlite store and write CSV reports`,
	}
	brokerSyncCMD = cli.Command{
		Name:        "brokersync",
		Usage:       "run the broker statement sync loop",
		Action:      brokerSyncAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Pull IBKR Flex statements for every active account on a fixed period and reconstruct trades incrementally`,
	}
	serveCMD = cli.Command{
		Name:        "serve",
		Usage:       "run the report server",
		Action:      serveAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Serve reconstructed trades and period summaries over HTTP`,
	}
	exportCMD = cli.Command{
		Name:        "export",
		Usage:       "export the store to CSV files",
		Action:      exportAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Write the trade and execution tables out as CSV report artifacts`,
	}
	accountCMD = cli.Command{
		Name:  "account",
		Usage: "manage flex accounts",
		Subcommands: []cli.Command{
			{
				Name:   "set",
				Usage:  "create or update a flex account",
				Action: accountSetAction,
				Flags: []cli.Flag{
					cli.StringFlag{Name: "name", Usage: "account alias, e.g. paper"},
					cli.StringFlag{Name: "account-id", Usage: "broker account id"},
					cli.StringFlag{Name: "token", Usage: "flex web service token"},
					cli.StringFlag{Name: "query-id", Usage: "flex query id"},
				},
			},
			{
				Name:      "enable",
				Usage:     "include an account in the sync loop",
				Action:    accountEnableAction,
				ArgsUsage: "<name>",
			},
			{
				Name:      "disable",
				Usage:     "exclude an account from the sync loop",
				Action:    accountDisableAction,
				ArgsUsage: "<name>",
			},
			{
				Name:   "list",
				Usage:  "list active flex accounts",
				Action: accountListAction,
			},
		},
	}
)

func backtestAction(c *cli.Context) error {

	logrus.Info("Starting backtest CMD")

	inputPath := c.Args().First()
	if inputPath == "" {
		return errors.New("missing fill log path, usage: tradeledger backtest <fills.csv>")
	}

	b := &backtest.Backtest{Log: logrus.WithField("cmd", "backtest")}
	if err := b.Start(context.Background(), inputPath); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}

func brokerSyncAction(_ *cli.Context) error {

	logrus.Info("Starting broker sync CMD")

	sync := &brokersync.BrokerSync{}
	if err := sync.Start(); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}

func serveAction(_ *cli.Context) error {

	logrus.Info("Starting report server CMD")

	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	server.StartServer(server.GetConfig().Port)
	return nil
}

func exportAction(_ *cli.Context) error {

	logrus.Info("Starting export CMD")

	e := &export.Export{Log: logrus.WithField("cmd", "export")}
	if err := e.Start(context.Background()); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}

func accountSetAction(c *cli.Context) error {
	name := c.String("name")
	token := c.String("token")
	queryID := c.String("query-id")
	if name == "" || token == "" || queryID == "" {
		return errors.New("account set requires --name, --token and --query-id")
	}

	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	m := &account.Manager{Log: logrus.WithField("cmd", "account")}
	return m.Set(context.Background(), name, c.String("account-id"), token, queryID)
}

func accountEnableAction(c *cli.Context) error {
	return setAccountActive(c, true)
}

func accountDisableAction(c *cli.Context) error {
	return setAccountActive(c, false)
}

func setAccountActive(c *cli.Context, active bool) error {
	name := c.Args().First()
	if name == "" {
		return errors.New("missing account name")
	}

	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	m := &account.Manager{Log: logrus.WithField("cmd", "account")}
	return m.SetActive(context.Background(), name, active)
}

func accountListAction(_ *cli.Context) error {
	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	m := &account.Manager{Log: logrus.WithField("cmd", "account")}
	return m.List(context.Background())
}
