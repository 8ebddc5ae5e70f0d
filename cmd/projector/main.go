// Command projector applies replicated records to a projection store and
// serves the projected collections to the gateway.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/abhissng/conduit/adapters/events/nats"
	"github.com/abhissng/conduit/adapters/log"
	"github.com/abhissng/conduit/adapters/mongo"
	"github.com/abhissng/conduit/config"
	"github.com/abhissng/conduit/gateway"
	"github.com/abhissng/conduit/projection"
	"github.com/abhissng/conduit/rpc"
	"github.com/abhissng/conduit/utils/constant"
	"github.com/abhissng/conduit/utils/graceful"
	"github.com/abhissng/conduit/utils/helpers"
)

func main() {
	configPath := flag.String("config", "", "path to a configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		helpers.Println(constant.ERROR, "projector: ", err)
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

	store, closeStore, err := openStore(ctx, cfg.Projector)
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

	applier := projection.NewApplier(store, projection.WithLogger(logger), projection.WithMetrics(mc))
	services = append(services, graceful.ShutdownFunc(func(context.Context) error { applier.Close(); return nil }))

	// stopped before the applier, so no delivery is handled after Close
	server := rpc.NewServer(transport, rpc.WithServerLogger(logger), rpc.WithServerMetrics(mc))
	services = append(services, graceful.ShutdownFunc(func(context.Context) error { return server.Close() }))
	if err := applier.Bind(ctx, server, cfg.Projector.ReplicationQueue); err != nil {
		_ = graceful.Shutdown(constant.ServiceDefaultGracefulTime, services...)
		return err
	}

	surface, err := projection.NewSurface(cfg.Projector.Service, store, logger, cfg.Projector.Schemas...)
	if err != nil {
		_ = graceful.Shutdown(constant.ServiceDefaultGracefulTime, services...)
		return err
	}
	if err := surface.Serve(ctx, server, cfg.Projector.QueryQueue); err != nil {
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

func openStore(ctx context.Context, cfg config.ProjectorConfig) (projection.Store, graceful.Shutdowner, error) {
	noop := graceful.ShutdownFunc(func(context.Context) error { return nil })
	switch cfg.Store {
	case constant.ProjectionSQLite:
		store, err := projection.OpenSQLite(ctx, cfg.SQLiteDSN)
		if err != nil {
			return nil, nil, err
		}
		return store, graceful.ShutdownFunc(func(context.Context) error { return store.Close() }), nil
	case constant.ProjectionMongo:
		m, err := mongo.NewMongoManager(mongo.WithURI(cfg.MongoURI, cfg.MongoDatabase))
		if err != nil {
			return nil, nil, err
		}
		store, err := projection.NewMongoStore(ctx, m, cfg.MongoCollection)
		if err != nil {
			_ = m.Disconnect(ctx)
			return nil, nil, err
		}
		return store, graceful.ShutdownFunc(m.Disconnect), nil
	}
	return projection.NewMemoryStore(), noop, nil
}
