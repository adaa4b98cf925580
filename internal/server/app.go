// Package server wires configuration, storage, token services and the HTTP
// and gRPC transports into a runnable application.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dmitrijs2005/buildingkeeper/internal/logging"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/auth"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/config"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/repositories/memory"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/services"

	gs "github.com/dmitrijs2005/buildingkeeper/internal/server/grpc"
)

// MemoryDSN selects the in-process store instead of PostgreSQL.
const MemoryDSN = "memory"

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB

	httpServer *httpapi.Server
	grpcServer *gs.GRPCServer
}

// openRepositories returns the repository manager selected by the DSN. db is
// nil for the in-memory store.
func openRepositories(ctx context.Context, c *config.Config) (rm repomanager.RepositoryManager, db *sql.DB, err error) {
	if c.DatabaseDSN == MemoryDSN {
		return repomanager.NewMemoryRepositoryManager(memory.NewStore()), nil, nil
	}

	db, err = sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("db open error: %w", err)
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	if err = db.PingContext(ctx); err != nil {
		return nil, nil, fmt.Errorf("db ping error: %w", err)
	}

	rm, err = repomanager.NewPostgresRepositoryManager(db)
	if err != nil {
		return nil, nil, fmt.Errorf("repository manager error: %w", err)
	}

	if err = rm.RunMigrations(ctx, db); err != nil {
		return nil, nil, fmt.Errorf("migration error: %w", err)
	}

	return rm, db, nil
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger, err := logging.NewJSONLogger(os.Stdout, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	rm, db, err := openRepositories(ctx, c)
	if err != nil {
		return nil, err
	}

	private, public, err := c.KeyMaterial()
	if err != nil {
		closeDB(db)
		return nil, err
	}

	codec, err := auth.NewCodec(auth.CodecConfig{
		Algorithm:     c.JWTAlgorithm,
		PrivateKeyPEM: private,
		PublicKeyPEM:  public,
		Secret:        []byte(c.SecretKey),
	}, logger)
	if err != nil {
		closeDB(db)
		return nil, fmt.Errorf("token codec error: %w", err)
	}

	tokens := services.NewTokenService(rm, codec, c.AccessTokenTTL, c.RefreshTokenTTL, logger)
	users := services.NewUserService(rm, tokens, logger)
	buildings := services.NewBuildingService(rm, c, logger)
	gate := services.NewAccessGate(rm, codec, logger)

	httpServer := httpapi.NewServer(c.HTTPAddr, c.ShutdownTimeout, httpapi.Deps{
		Tokens:    tokens,
		Gate:      gate,
		Users:     users,
		Buildings: buildings,
	}, httpapi.CookieConfig{
		Name:     c.RefreshCookieName,
		Path:     c.RefreshCookiePath,
		Secure:   c.RefreshCookieSecure,
		SameSite: httpapi.ParseSameSite(c.RefreshCookieSameSite),
		MaxAge:   c.RefreshTokenTTL,
	}, logger)

	grpcServer := gs.NewGRPCServer(c.GRPCAddr, logger, tokens, users, gate)

	return &App{
		config:     c,
		logger:     logger,
		db:         db,
		httpServer: httpServer,
		grpcServer: grpcServer,
	}, nil
}

func closeDB(db *sql.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
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

// runServer runs one transport; a failure stops the whole app.
func (app *App) runServer(ctx context.Context, cancelFunc context.CancelFunc, name string, run func(context.Context) error) {
	if err := run(ctx); err != nil {
		app.logger.Error(ctx, "server failed", "server", name, "error", err)
		cancelFunc()
	}
}

// Run serves HTTP and gRPC until ctx is canceled, a signal arrives or one of
// the servers fails.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.runServer(ctx, cancelFunc, "http", app.httpServer.Run)
	}()
	go func() {
		defer wg.Done()
		app.runServer(ctx, cancelFunc, "grpc", app.grpcServer.Run)
	}()

	wg.Wait()

	if err := closeDB(app.db); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}

	app.logger.Info(ctx, "App stopped")
}
