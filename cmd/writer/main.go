// Command writer commits operation records and replicates them to every
// read service. Records whose publish failed are retried by the relay.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/abhissng/conduit/adapters/events/nats"
	"github.com/abhissng/conduit/adapters/log"
	"github.com/abhissng/conduit/adapters/postgres"
	"github.com/abhissng/conduit/config"
	"github.com/abhissng/conduit/gateway"
	"github.com/abhissng/conduit/oplog"
	"github.com/abhissng/conduit/rpc"
	"github.com/abhissng/conduit/utils/constant"
	"github.com/abhissng/conduit/utils/graceful"
	"github.com/abhissng/conduit/utils/helpers"
)

func main() {
	configPath := flag.String("config", "", "path to a configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		helpers.Println(constant.ERROR, "writer: ", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	mc := cfg.NewMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg.Oplog, logger)
	if err != nil {
		return err
	}
	services := []graceful.Shutdowner{closeStore}

	transport := cfg.NewTransport(logger, nats.WithOnDisconnect(func(err error) {
		logger.Error(constant.TransportDisconnected, log.Err(err))
		cancel()
	}))
	if err := transport.Connect(ctx); err != nil {
		_ = graceful.Shutdown(constant.ServiceDefaultGracefulTime, services...)
		return err
	}
	services = append(services, graceful.ShutdownFunc(func(context.Context) error { return transport.Close() }))

	oplogs := oplog.NewLog(store, transport, cfg.Oplog.Targets,
		oplog.WithLogger(logger),
		oplog.WithMetrics(mc),
	)
	if err := oplogs.Start(ctx); err != nil {
		_ = graceful.Shutdown(constant.ServiceDefaultGracefulTime, services...)
		return err
	}

	relay := oplog.NewRelay(oplogs,
		oplog.WithInterval(cfg.Oplog.RelayInterval),
		oplog.WithBatch(cfg.Oplog.RelayBatch),
	)
	relayCtx, stopRelay := context.WithCancel(ctx)
	services = append(services, graceful.ShutdownFunc(func(context.Context) error { stopRelay(); return nil }))
	go func() {
		defer func() { helpers.RecoverException(recover()) }()
		_ = relay.Run(relayCtx)
	}()

	server := rpc.NewServer(transport, rpc.WithServerLogger(logger), rpc.WithServerMetrics(mc))
	services = append(services, graceful.ShutdownFunc(func(context.Context) error { return server.Close() }))

	surface, err := oplog.NewCommandSurface(cfg.Oplog.Service, oplogs, logger)
	if err != nil {
		_ = graceful.Shutdown(constant.ServiceDefaultGracefulTime, services...)
		return err
	}
	if err := surface.Serve(ctx, server, cfg.Oplog.CommandQueue); err != nil {
		_ = graceful.Shutdown(constant.ServiceDefaultGracefulTime, services...)
		return err
	}

	ops := gateway.New(nil,
		gateway.WithLogger(logger),
		gateway.WithAddr(cfg.Metrics.Addr),
		gateway.WithMetrics(mc),
		gateway.WithHealthCheck("broker", transport.Ping),
	)
	services = append(services, ops)
	go func() {
		if err := ops.Run(ctx); err != nil {
			logger.Error(constant.ServerStopped, log.String("server", "ops"), log.Err(err))
		}
	}()

	graceful.GracefulShutdown(ctx, constant.ServiceDefaultGracefulTime, services...)
	return nil
}

// openStore keeps the log in PostgreSQL when a DSN is configured.
func openStore(ctx context.Context, cfg config.OplogConfig, logger *log.Log) (oplog.Store, graceful.Shutdowner, error) {
	if cfg.PostgresDSN == "" {
		logger.Warn(constant.OplogInMemory, log.String("reason", "oplog.postgres_dsn is empty"))
		return oplog.NewMemoryStore(), graceful.ShutdownFunc(func(context.Context) error { return nil }), nil
	}

	db := postgres.NewPostgresDB(postgres.WithDSN(cfg.PostgresDSN), postgres.WithLogger(logger))
	if err := db.Connect(ctx); err != nil {
		return nil, nil, err
	}
	store := oplog.NewPostgresStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return store, graceful.ShutdownFunc(func(context.Context) error { return db.Close() }), nil
}
