package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/stationhq/stationstats/app/observer"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	defer cancel()

	app, err := observer.Initialize(ctx)
	if err != nil {
		// the scheduler spec is the only thing that can fail here
		panic(err)
	}

	app.Logger.Info("Observer initialized", zap.String("cronSpec", app.CronSpec))

	app.Start(ctx)
}
