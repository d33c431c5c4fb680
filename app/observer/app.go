// Package observer wires the reward-transfer observer: a cron-scheduled
// observe cycle over the ledger, guarded by a best-effort Redis run lock.
package observer

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/gorilla/mux"
	"github.com/stationhq/stationstats/pkg/db"
	"github.com/stationhq/stationstats/pkg/ledger"
	"github.com/stationhq/stationstats/pkg/logging"
	obs "github.com/stationhq/stationstats/pkg/observer"
	"github.com/stationhq/stationstats/pkg/redis"
	"github.com/stationhq/stationstats/pkg/utils"
)

const runLockKey = "stationstats:observer:run"

// App schedules observation runs and exposes health probes.
type App struct {
	Store    *db.Store
	Redis    *redis.Client
	Ledger   *ledger.Client
	Observer *obs.Observer

	// Cron is the scheduler that triggers observation runs, according to CronSpec.
	Cron     *cron.Cron
	CronSpec string

	Logger *zap.Logger
	Server *http.Server
}

// Initialize initializes the App.
func Initialize(ctx context.Context) (*App, error) {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	store, err := db.New(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to initialize aggregate store", zap.Error(err))
	}
	if err := store.InitializeDB(ctx); err != nil {
		logger.Fatal("Unable to initialize aggregate store tables", zap.Error(err))
	}

	// The run lock is optional: without Redis, runs rely on the monotonic
	// checkpoint guard and a single-instance deployment.
	var redisClient *redis.Client
	if utils.Env("REDIS_ENABLED", "false") == "true" {
		redisClient, err = redis.NewClient(ctx, logger)
		if err != nil {
			logger.Warn("Failed to initialize Redis client - observer runs will not be single-flight",
				zap.Error(err))
			redisClient = nil
		}
	} else {
		logger.Info("Redis disabled - observer runs will not be single-flight")
	}

	ledgerClient, err := ledger.New(ctx, logger, ledger.Opts{
		Endpoints:   strings.Split(utils.Env("LEDGER_RPC_ADDRS", "http://localhost:8545"), ","),
		Token:       utils.Env("TOKEN_ADDRESS", ""),
		Decimals:    utils.EnvInt("TOKEN_DECIMALS", 18),
		MaxLookback: utils.EnvUint64("LEDGER_MAX_LOOKBACK", 2880),
	})
	if err != nil {
		logger.Fatal("Unable to initialize ledger client", zap.Error(err))
	}

	app := &App{
		Store:  store,
		Redis:  redisClient,
		Ledger: ledgerClient,
		Observer: &obs.Observer{
			Checkpoints: store,
			Aggregates:  store,
			Ledger:      ledgerClient,
			Logger:      logger,
		},
		CronSpec: utils.Env("OBSERVER_CRON", "0 */10 * * * *"),
		Logger:   logger,
	}

	if err := app.SetupScheduler(ctx, cron.DefaultLogger); err != nil {
		return nil, err
	}
	app.SetupServer()

	return app, nil
}

// SetupScheduler sets up the cron scheduler.
func (a *App) SetupScheduler(ctx context.Context, logger cron.Logger) error {
	a.Cron = cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(logger)))

	_, err := a.Cron.AddFunc(a.CronSpec, func() {
		a.RunOnce(ctx)
	})
	return err
}

// RunOnce performs one bounded observation run, holding the advisory lock
// when Redis is available. A contended lock skips the run; the skipped range
// is picked up by whichever run owns the lock, or by the next tick.
func (a *App) RunOnce(ctx context.Context) {
	rctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	if a.Redis != nil {
		ok, err := a.Redis.AcquireRunLock(rctx, runLockKey, 10*time.Minute)
		if err != nil {
			a.Logger.Warn("Run lock unavailable, proceeding unguarded", zap.Error(err))
		} else if !ok {
			a.Logger.Info("Observation run already in flight, skipping")
			return
		} else {
			defer a.Redis.ReleaseRunLock(rctx, runLockKey)
		}
	}

	res, err := a.Observer.Observe(rctx)
	if err != nil {
		// No checkpoint was advanced; the next tick re-observes the range.
		a.Logger.Error("Observation run failed", zap.Error(err))
		return
	}

	a.Logger.Info("Observation run succeeded",
		zap.Int("events_applied", res.EventsApplied),
		zap.Uint64("checkpoint", res.NewCheckpoint))
}

// SetupServer sets up the HTTP health server.
func (a *App) SetupServer() {
	// use <ip>:<port> to bind to a specific interface or :<port> to bind to all interfaces
	addr := utils.Env("ADDR", ":3002")

	r := mux.NewRouter()
	r.Handle("/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(200) })).Methods("GET")
	r.Handle("/readyz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := a.Store.Ping(r.Context()); err != nil {
			w.WriteHeader(503)
			return
		}
		w.WriteHeader(200)
	})).Methods("GET")

	a.Server = &http.Server{Addr: addr, Handler: r}
}

// StartCron starts the cron scheduler.
func (a *App) StartCron() {
	a.Cron.Start()
	a.Logger.Info("Observer cron started", zap.String("cronSpec", a.CronSpec))
}

// StopCron stops the cron scheduler and waits for an in-flight run.
func (a *App) StopCron() {
	if a.Cron != nil {
		<-a.Cron.Stop().Done()
	}
}

// Start starts the application.
func (a *App) Start(ctx context.Context) {
	a.StartCron()
	go func() { _ = a.Server.ListenAndServe() }()
	<-ctx.Done()
	_ = a.Server.Close()
	a.Logger.Info("Observer shutting down")
	a.StopCron()
	a.Ledger.Close()
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	_ = a.Store.Close()
}
