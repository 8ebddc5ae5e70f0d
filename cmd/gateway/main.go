// Command gateway serves the stitched schema of every configured backend
// over HTTP.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/abhissng/conduit/adapters/events/nats"
	"github.com/abhissng/conduit/adapters/gin/middleware"
	"github.com/abhissng/conduit/adapters/log"
	"github.com/abhissng/conduit/adapters/prometheus"
	"github.com/abhissng/conduit/adapters/redis"
	"github.com/abhissng/conduit/config"
	"github.com/abhissng/conduit/gateway"
	"github.com/abhissng/conduit/respcache"
	"github.com/abhissng/conduit/rpc"
	"github.com/abhissng/conduit/stitch"
	"github.com/abhissng/conduit/utils/constant"
	"github.com/abhissng/conduit/utils/graceful"
	"github.com/abhissng/conduit/utils/helpers"
)

func main() {
	configPath := flag.String("config", "", "path to a configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		helpers.Println(constant.ERROR, "gateway: ", err)
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

	transport := cfg.NewTransport(logger, nats.WithOnDisconnect(func(err error) {
		logger.Error(constant.TransportDisconnected, log.Err(err))
		cancel()
	}))
	if err := transport.Connect(ctx); err != nil {
		return err
	}
	services := []graceful.Shutdowner{closer(transport.Close)}

	client := rpc.NewClient(transport,
		rpc.WithClientLogger(logger),
		rpc.WithClientMetrics(mc),
		rpc.WithCallTimeout(cfg.Broker.CallTimeout),
	)
	if err := client.Start(ctx); err != nil {
		_ = graceful.Shutdown(constant.ServiceDefaultGracefulTime, services...)
		return err
	}
	services = append(services, closer(client.Close))

	stitchOpts := []stitch.Option{
		stitch.WithLogger(logger),
		stitch.WithMetrics(mc),
		stitch.WithDebug(cfg.Gateway.Debug),
	}
	store, closeStore, err := newCacheStore(ctx, cfg)
	if err != nil {
		_ = graceful.Shutdown(constant.ServiceDefaultGracefulTime, services...)
		return err
	}
	if store != nil {
		services = append(services, closeStore)
		cache := respcache.New(store,
			respcache.WithTTL(cfg.Cache.TTL),
			respcache.WithLogger(logger),
			respcache.WithMetrics(mc),
		)
		stitchOpts = append(stitchOpts, stitch.WithMiddleware(cache.Wrap))
	}

	stitcher, err := stitch.Build(ctx, client, cfg.Gateway.Backends, stitchOpts...)
	if err != nil {
		_ = graceful.Shutdown(constant.ServiceDefaultGracefulTime, services...)
		return err
	}

	srv := gateway.New(stitcher, gatewayOptions(cfg, logger, mc, transport)...)
	services = append(services, srv)
	go func() {
		if err := srv.Run(ctx); err != nil {
			logger.Error(constant.ServerStopped, log.String("server", "gateway"), log.Err(err))
			cancel()
		}
	}()

	graceful.GracefulShutdown(ctx, constant.ServerDefaultGracefulTime, services...)
	return nil
}

func gatewayOptions(cfg *config.Config, logger *log.Log, mc *prometheus.MetricsCollector, transport *nats.Transport) []gateway.Option {
	opts := []gateway.Option{
		gateway.WithLogger(logger),
		gateway.WithAddr(cfg.Gateway.Addr),
		gateway.WithBodyLogging(cfg.Gateway.LogBodies),
		gateway.WithHealthCheck("broker", transport.Ping),
	}
	if mc != nil {
		opts = append(opts, gateway.WithMetrics(mc))
	}
	if jwt := cfg.Gateway.JWT; jwt.Secret != "" {
		opts = append(opts, gateway.WithJWT(middleware.JWTConfig{
			Secret:   jwt.Secret,
			Issuer:   jwt.Issuer,
			Roles:    jwt.Roles,
			Required: jwt.Required,
		}))
	}
	return opts
}

// newCacheStore returns a nil store when caching is disabled.
func newCacheStore(ctx context.Context, cfg *config.Config) (respcache.Store, graceful.Shutdowner, error) {
	switch cfg.Cache.Backend {
	case constant.CacheBackendLRU:
		store := respcache.NewLRUStore(cfg.Cache.Size)
		return store, closer(func() error { store.Close(); return nil }), nil
	case constant.CacheBackendRedis:
		rm, err := redis.NewRedisManager(ctx, cfg.Cache.Redis)
		if err != nil {
			return nil, nil, err
		}
		return respcache.NewRedisStore(rm), closer(rm.Close), nil
	}
	return nil, nil, nil
}

func closer(fn func() error) graceful.ShutdownFunc {
	return func(context.Context) error {
		return fn()
	}
}
