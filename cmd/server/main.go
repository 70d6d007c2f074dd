package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"

	"github.com/rl1809/storefront-checkout/internal/adapter/commerce"
	"github.com/rl1809/storefront-checkout/internal/adapter/handler"
	"github.com/rl1809/storefront-checkout/internal/adapter/messaging"
	"github.com/rl1809/storefront-checkout/internal/adapter/storage"
	"github.com/rl1809/storefront-checkout/internal/config"
	"github.com/rl1809/storefront-checkout/internal/core/checkout"
	"github.com/rl1809/storefront-checkout/internal/core/service"
	"github.com/rl1809/storefront-checkout/internal/metrics"
	"github.com/rl1809/storefront-checkout/internal/port"
)

var (
	configPath string
	verbose    bool
	logger     *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "checkout-server",
	Short: "Storefront checkout service",
	Long: `checkout-server runs the storefront checkout wizard over HTTP and gRPC.

Sessions and cart snapshots live in Redis, placed orders are recorded in MySQL
and announced on Kafka.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		return run(cmd.Context(), cfg)
	},
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "checkout.yaml", "Path to the YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		return fmt.Errorf("failed to open mysql: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	mysqlAdapter := storage.NewMySQLAdapter(db)
	if err := mysqlAdapter.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping mysql: %w", err)
	}
	if err := mysqlAdapter.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to prepare schema: %w", err)
	}
	logger.Info("connected to mysql")

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		PoolSize: cfg.Redis.PoolSize,
	})
	defer rdb.Close()

	redisAdapter := storage.NewRedisAdapter(rdb, cfg.SessionTTL(), cfg.CartTTL())
	if err := redisAdapter.Ping(ctx); err != nil {
		return fmt.Errorf("failed to connect redis: %w", err)
	}
	logger.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))

	commerceClient, err := commerce.New(commerce.Config{
		Endpoint: cfg.Commerce.Endpoint,
		ShopID:   cfg.Commerce.ShopID,
		Timeout:  cfg.CommerceTimeout(),
	})
	if err != nil {
		return err
	}

	var publisher port.OrderPublisher
	if brokers := messaging.ParseBrokers(cfg.Kafka.Brokers); len(brokers) > 0 {
		kp := messaging.NewKafkaPublisher(brokers, cfg.Kafka.Topic, logger)
		defer kp.Close()
		publisher = kp
		logger.Info("publishing order events", zap.Strings("brokers", brokers), zap.String("topic", cfg.Kafka.Topic))
	} else {
		publisher = messaging.NewLogPublisher(logger)
		logger.Warn("no kafka brokers configured, order events are only logged")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	checkoutMetrics := metrics.NewCheckoutMetrics(reg)

	// Initialize services
	cartService := service.NewCartService(commerceClient, redisAdapter, cfg.Commerce.DummyCartID, cfg.Commerce.DefaultCurrency, logger)
	checkoutService := service.NewCheckoutService(
		commerceClient,
		cartService,
		redisAdapter,
		redisAdapter,
		checkout.Config{Country: cfg.Checkout.Country, PaymentMethods: cfg.PaymentMethods},
		cfg.Checkout.QueueSize,
		checkoutMetrics,
		logger,
	)

	// Start worker pool
	worker := service.NewOrderWorker(mysqlAdapter, publisher, checkoutMetrics, logger)
	waitWorkers := worker.Start(cfg.Checkout.Workers, checkoutService.GetOrderQueue())
	logger.Info("started order workers", zap.Int("count", cfg.Checkout.Workers))

	// Initialize gRPC server
	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	handler.RegisterCheckoutServer(grpcServer, handler.NewGRPCHandler(checkoutService))

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.Server.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", zap.Error(err))
		}
	}()

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(cartService, checkoutService, cfg.PaymentMethods, cfg.RequestTimeout(), logger)
	router := handler.NewRouter(httpHandler, metrics.NewServerMetrics(reg, "checkout"), metrics.Handler(reg), logger)
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           otelhttp.NewHandler(router, "checkout-http"),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.Server.HTTPAddr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown", zap.Error(err))
	}
	logger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	// Close order queue and wait for workers
	checkoutService.Close()
	waitWorkers()
	logger.Info("workers stopped")
	return nil
}
