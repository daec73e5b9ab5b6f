// Package server initializes and runs the signing server: it opens the
// database, applies migrations, wires storage and services, and runs the
// HTTP and gRPC endpoints until the process is asked to stop.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dmitrijs2005/pdfsigner/internal/logging"
	"github.com/dmitrijs2005/pdfsigner/internal/server/config"
	"github.com/dmitrijs2005/pdfsigner/internal/server/finalizer"
	"github.com/dmitrijs2005/pdfsigner/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/pdfsigner/internal/server/rest"
	"github.com/dmitrijs2005/pdfsigner/internal/server/services"
	"github.com/dmitrijs2005/pdfsigner/internal/server/storage"

	gs "github.com/dmitrijs2005/pdfsigner/internal/server/grpc"
)

const (
	auditBuffer    = 1024
	migrateTimeout = time.Minute
	dbMaxOpenConns = 20
	dbConnLifetime = 30 * time.Minute
	dbPingTimeout  = 5 * time.Second
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	audit   *services.AuditService
	handler *rest.Handler
}

func NewApp(c *config.Config) (*App, error) {

	logger, err := logging.New(c.LogBackend, c.LogFormat, c.LogLevel, os.Stdout)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	db.SetMaxOpenConns(dbMaxOpenConns)
	db.SetConnMaxLifetime(dbConnLifetime)

	app, err := newApp(c, logger, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return app, nil
}

func newApp(c *config.Config, logger logging.Logger, db *sql.DB) (*App, error) {
	ctx := context.Background()

	pingCtx, cancel := context.WithTimeout(ctx, dbPingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	rm, err := repomanager.NewPostgresRepositoryManager(db)
	if err != nil {
		return nil, fmt.Errorf("repository init error: %w", err)
	}

	migrateCtx, cancelMigrate := context.WithTimeout(ctx, migrateTimeout)
	defer cancelMigrate()
	if err := rm.RunMigrations(migrateCtx, db); err != nil {
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	st, err := storage.New(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	audit := services.NewAuditService(db, rm, logger, auditBuffer)
	docs := services.NewDocumentService(db, rm, st, audit, logger, c)
	sigs := services.NewSignatureService(db, rm, audit, logger)
	fin := services.NewFinalizeService(db, rm, st, finalizer.NewEngine(logger), audit, logger, c)
	users := services.NewUserService(db, rm, c)

	h := rest.NewHandler(rest.Services{
		Documents:  docs,
		Signatures: sigs,
		Finalize:   fin,
		Users:      users,
		Audit:      audit,
	}, st, logger, c)

	return &App{config: c, logger: logger, db: db, audit: audit, handler: h}, nil
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

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	gin.SetMode(gin.ReleaseMode)
	router := rest.NewRouter(app.handler, app.logger, app.config)
	s := rest.NewServer(app.config.EndpointAddrHTTP, router, app.logger)

	if err := s.Run(ctx); err != nil {
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

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.audit.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
