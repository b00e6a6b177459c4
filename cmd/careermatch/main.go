package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	appcfg "github.com/rosejohnson3923/pathfinity-app-sub007/internal/config"
	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/events"
	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/gateway"
	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/identity"
	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/msgcat"
	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/obslog"
	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/registry"
	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/results"
	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/session"
	"go.uber.org/zap"
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	cfg, err := appcfg.Load()
	if err != nil {
		logger.Fatal("config_error", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := events.NewHub(
		events.WithBuffer(cfg.EventBuffer),
		events.WithOrigin(cfg.NodeID),
		events.WithLogger(logger.Named("events")),
	)

	// Room seats live in Redis when configured so several nodes share one
	// registry. Each room is hosted by the node that created it; events are
	// mirrored to the other nodes over Pub/Sub.
	var store registry.Store = registry.NewMemoryStore()
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		dctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		rdb, err = registry.DialRedis(dctx, cfg.RedisURL)
		cancel()
		if err != nil {
			logger.Fatal("redis_init_error", zap.Error(err))
		}
		store = registry.NewRedisStore(rdb)

		relay := events.NewRedisRelay(rdb, hub.Origin(), 0, logger.Named("relay"))
		hub.SetForwarder(relay)
		go func() {
			if err := relay.Run(ctx, hub); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("relay_stopped", zap.Error(err))
			}
		}()
	}

	archive, err := openArchive(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("results_init_error", zap.Error(err))
	}

	reg := registry.New(store, cfg.Registry(), logger.Named("registry"))
	mgr := session.New(reg, hub, archive, cfg.Session(), logger.Named("session"))
	go mgr.Run(ctx)

	catalog, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		logger.Fatal("messages_init_error", zap.Error(err))
	}

	opts := []gateway.Option{
		gateway.WithNotices(catalog),
		gateway.WithHistory(archive),
		gateway.WithOrigins(cfg.AllowedOrigins...),
		gateway.WithNode(cfg.NodeID),
		gateway.WithLogger(logger),
	}
	if cfg.IdentityURL != "" {
		opts = append(opts, gateway.WithResolver(identity.NewHTTPResolver(cfg.IdentityURL)))
	}
	if cfg.AllowGuests {
		opts = append(opts, gateway.WithGuests(identity.GuestResolver{}))
	}

	gw := gateway.New(mgr, opts...)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           gw.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("http_listen", zap.String("addr", cfg.HTTPAddr), zap.String("node", cfg.NodeID))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_serve_error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown", zap.Int("connections", gw.Connections()), zap.Int("rooms", mgr.ActiveRooms()))

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(sctx)
	mgr.Close()
	_ = archive.Close()
	if rdb != nil {
		_ = rdb.Close()
	}
}

func openArchive(ctx context.Context, databaseURL string) (results.Store, error) {
	if databaseURL == "" {
		return results.NewMemoryStore(), nil
	}
	pg, err := results.NewPostgresStore(databaseURL)
	if err != nil {
		return nil, err
	}
	mctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pg.Migrate(mctx); err != nil {
		_ = pg.Close()
		return nil, err
	}
	return pg, nil
}
