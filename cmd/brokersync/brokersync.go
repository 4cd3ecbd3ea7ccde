package brokersync

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"tradeledger/src/database"
	"tradeledger/src/executors"
)

type BrokerSync struct{}

func (b *BrokerSync) Start() error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)

	defer stop()

	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to main database")
		return err
	}

	if err := executors.StartLoop(ctx); err != nil {
		logrus.WithError(err).Error("Broker sync loop failed")
		return err
	}

	return nil
}
