package query

import (
	"context"

	"github.com/stationhq/stationstats/app/query/types"
	"github.com/stationhq/stationstats/pkg/db"
	"github.com/stationhq/stationstats/pkg/logging"
	"go.uber.org/zap"
)

// Initialize initializes the application.
func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	store, storeErr := db.New(ctx, logger)
	if storeErr != nil {
		logger.Fatal("Unable to initialize stats store", zap.Error(storeErr))
	}

	if err := store.InitializeDB(ctx); err != nil {
		logger.Fatal("Unable to initialize stats store tables", zap.Error(err))
	}

	return &types.App{
		DB:       store,
		DBCloser: store,
		Logger:   logger,
	}
}
