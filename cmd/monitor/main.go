package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"github.com/quangtd04/autodeliver/internal/adapter/console"
	"github.com/quangtd04/autodeliver/internal/adapter/gateway"
	"github.com/quangtd04/autodeliver/internal/adapter/storage"
	"github.com/quangtd04/autodeliver/internal/adapter/telegram"
	"github.com/quangtd04/autodeliver/internal/config"
	"github.com/quangtd04/autodeliver/internal/core/service"
	"github.com/quangtd04/autodeliver/internal/metrics"
	"github.com/quangtd04/autodeliver/internal/obs"
	"github.com/quangtd04/autodeliver/internal/port"
)

func main() {
	logger := obs.NewLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("configuration invalid", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		logger.Error("mysql open failed", "err", err)
		os.Exit(1)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		logger.Error("mysql ping failed", "err", err)
		os.Exit(1)
	}
	logger.Info("connected to mysql")

	// Redis
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, PoolSize: 100})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("redis ping failed", "err", err)
		os.Exit(1)
	}
	logger.Info("connected to redis")

	// Operator channel
	var (
		notifier port.Notifier
		listener port.Listener
	)
	if cfg.ChannelEnabled() {
		bot := telegram.New(cfg.TelegramToken, cfg.TelegramChatID, logger)
		notifier, listener = bot, bot
		logger.Info("telegram channel enabled")
	} else {
		notifier, listener = telegram.Disabled{}, telegram.Disabled{}
		logger.Info("telegram channel disabled")
	}

	// Wiring
	reg := metrics.NewRegistry()
	inventory := storage.NewRedisInventory(rdb)
	ledger := storage.NewMySQLLedger(db)
	client := gateway.NewClient(cfg.APIBaseURL, gateway.NewSigner(cfg.APIKey, cfg.APISecret))

	allocator := service.NewAllocator(inventory)
	driver := service.NewDriver(allocator, client, ledger, notifier, reg, logger)
	conversations := service.NewConversationManager(client, notifier, driver, logger)
	conversations.SetIdleTimeout(cfg.ConversationIdleTimeout)
	router := service.NewRouter(conversations, inventory, notifier, logger)
	poller := service.NewPoller(client, driver, conversations, console.New(), reg, logger, cfg.PollInterval)

	// Metrics endpoint
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", reg.Handler())
	metricsMux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}
	go func() {
		logger.Info("metrics listening", "addr", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", "err", err)
		}
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		poller.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		router.Run(ctx, listener.Listen(ctx))
	}()
	logger.Info("monitor started", "poll_interval", cfg.PollInterval)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancel()
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsServer.Shutdown(shutdownCtx)

	rdb.Close()
	db.Close()
	logger.Info("connections closed")
}
