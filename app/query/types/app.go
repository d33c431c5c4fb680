package types

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/stationhq/stationstats/pkg/db"
	"go.uber.org/zap"
)

type App struct {
	// DB is the stats store behind every read endpoint.
	DB db.StatsStore
	// DBCloser releases the live store connection on shutdown; nil when DB is
	// a test fake.
	DBCloser io.Closer
	// Logger is the shared zap logger.
	Logger *zap.Logger
	// Server represents the HTTP server instance used to handle incoming client requests and manage HTTP routes.
	Server *http.Server
}

// Start starts the application.
func (a *App) Start(ctx context.Context) {
	go func() { _ = a.Server.ListenAndServe() }()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.DBCloser != nil {
		if err := a.DBCloser.Close(); err != nil {
			a.Logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	_ = a.Server.Shutdown(shutdownCtx)
	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("Query API stopped")
}
