// Command gateway runs the relay gateway's HTTP server: it loads the
// config snapshot, wires the rate/budget gate, client pool, and usage
// sink, and serves the ingress route table from §6 until signaled to
// shut down. Grounded on main.go's initialization sequence in the
// teacher (logger setup, alerting, gin server, graceful Run), narrowed
// to this gateway's collaborators.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
	"github.com/go-redis/redis/v8"

	"github.com/laisky/relay-gateway/internal/env"
	"github.com/laisky/relay-gateway/internal/gwconfig"
	"github.com/laisky/relay-gateway/internal/logger"
	"github.com/laisky/relay-gateway/internal/ratelimit"
	"github.com/laisky/relay-gateway/internal/server"
	"github.com/laisky/relay-gateway/internal/store"
	"github.com/laisky/relay-gateway/internal/upstreamclient"
	"github.com/laisky/relay-gateway/internal/usage"
)

func main() {
	ctx := context.Background()
	logger.SetupAlerting(ctx)
	logger.Logger.Info("relay gateway starting")

	if os.Getenv("GIN_MODE") != gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	configStore := buildConfigStore()
	if _, err := configStore.Reload(); err != nil {
		logger.Logger.Fatal("failed to load initial config snapshot", zap.Error(err))
	}

	gate := ratelimit.New(
		gwconfig.RPM,
		gwconfig.MaxConcurrent,
		gwconfig.MaxConcurrentPerSession,
		gwconfig.BudgetDailyUSD,
		gwconfig.BudgetWeeklyUSD,
		gwconfig.BudgetMonthlyUSD,
	)
	if store := buildBudgetStore(); store != nil {
		gate = gate.WithStore(store)
	}

	pool := upstreamclient.NewPool(upstreamclient.RetryPolicy{
		MaxAttempts: gwconfig.RetryMaxAttempts,
		InitialMs:   gwconfig.RetryInitialMs,
		MaxMs:       gwconfig.RetryMaxMs,
	})

	sink := buildUsageSink()

	engine := server.New(configStore, gate, pool, sink)

	addr := gwconfig.ListenAddr
	httpServer := &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	go func() {
		logger.Logger.Info("listening", zap.String("address", addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger.Fatal("server exited unexpectedly", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// buildConfigStore picks a static JSON file store when CONFIG_FILE is set,
// falling back to a database-backed store via DATABASE_DSN.
func buildConfigStore() gwconfig.Store {
	if path := env.String("CONFIG_FILE", ""); path != "" {
		return gwconfig.NewStaticFileStore(path)
	}

	dsn := env.String("DATABASE_DSN", "gateway.sqlite3")
	cs, err := store.NewConfigStore(dsn)
	if err != nil {
		logger.Logger.Fatal("failed to open config database", zap.Error(err))
	}
	return gwconfig.NewStore(cs.Loader())
}

// buildBudgetStore wires a RedisStore for the budget gate's cross-replica
// spend mirror when REDIS_URL is set; a single process deployment needs
// nothing here, per spec.md's "single process is the common case" framing.
func buildBudgetStore() ratelimit.Store {
	url := env.String("REDIS_URL", "")
	if url == "" {
		return nil
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		logger.Logger.Error("invalid REDIS_URL, budget gate stays process-local", zap.Error(err))
		return nil
	}
	rdb := redis.NewClient(opt)
	return ratelimit.NewRedisStore(rdb, "relay-gateway")
}

// buildUsageSink wires the bounded usage queue to a database-backed writer
// when USAGE_DATABASE_DSN is set, otherwise discards usage records. Per §6:
// "the sink must not be able to stall the request path."
func buildUsageSink() usage.Sink {
	dsn := env.String("USAGE_DATABASE_DSN", "")
	if dsn == "" {
		return usage.NopSink{}
	}
	us, err := store.NewUsageStore(dsn)
	if err != nil {
		logger.Logger.Error("failed to open usage database, falling back to no-op sink", zap.Error(err))
		return usage.NopSink{}
	}
	return usage.NewQueueSink(1024, us)
}
