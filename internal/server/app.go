// Package server initializes and runs the catalog daemon. It opens and
// migrates the database, wires the service layer, and runs the gRPC health
// endpoint, the dependency probes and the Prometheus endpoint until a
// termination signal arrives.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/objcatalog/internal/logging"
	"github.com/dmitrijs2005/objcatalog/internal/server/config"
	"github.com/dmitrijs2005/objcatalog/internal/server/metrics"
	"github.com/dmitrijs2005/objcatalog/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/objcatalog/internal/server/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	gs "github.com/dmitrijs2005/objcatalog/internal/server/grpc"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	services *Services
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	metrics.Register()

	db, err := repomanager.Open(ctx, c.DatabaseDSN, c.DBMaxOpenConns)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	m := repomanager.NewPostgresRepositoryManager()
	if err := m.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	s := NewServices(db, m, c, storage.AWSClientFactory{}, logger)

	return &App{config: c, logger: logger, db: db, services: s}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) probes() []gs.Probe {
	return []gs.Probe{
		{Name: "database", Check: app.db.PingContext},
		{Name: "storage", Check: func(ctx context.Context) error {
			return app.services.Store.HeadBucket(ctx, "")
		}},
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc, wg *sync.WaitGroup) {
	s := gs.NewGRPCServer(app.config.HealthAddr, app.logger, app.services.Users)

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Watch(ctx, app.config.HealthCheckInterval, app.probes()...)
	}()

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startMetricsServer(ctx context.Context, cancelFunc context.CancelFunc) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: app.config.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	app.logger.Info(ctx, "Starting metrics server", "address", app.config.MetricsAddr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc, &wg)
	}()
	go func() {
		defer wg.Done()
		app.startMetricsServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(context.Background(), "db close error", "error", err)
	}
	app.logger.Info(context.Background(), "App stopped")
}
