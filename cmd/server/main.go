package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"

	"github.com/rl1809/wms-approval/internal/adapter/audit"
	"github.com/rl1809/wms-approval/internal/adapter/catalog"
	"github.com/rl1809/wms-approval/internal/adapter/handler"
	"github.com/rl1809/wms-approval/internal/adapter/messaging"
	"github.com/rl1809/wms-approval/internal/adapter/storage"
	"github.com/rl1809/wms-approval/internal/config"
	"github.com/rl1809/wms-approval/internal/core/service"
	"github.com/rl1809/wms-approval/internal/platform/observability"
	"github.com/rl1809/wms-approval/internal/port"
)

const (
	auditWorkers   = 4
	auditQueueSize = 1024
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "wms-approval",
		Short: "Approval-gated warehouse inventory and procurement service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configPath, logLevel)
		},
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and gRPC servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configPath, logLevel)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create the MySQL schema and seed the configured catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate(cmd.Context(), configPath, logLevel)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s\n", config.ServiceName, config.ServiceVersion)
		},
	})

	return cmd
}

func serve(ctx context.Context, configPath, logLevel string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	level, err := zapcore.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	shutdownLogs, err := observability.SetupLoggingSDK(ctx, cfg.Otel)
	if err != nil {
		return err
	}
	logger := observability.NewLogger(level, cfg.Otel.Endpoint != "")
	defer logger.Sync()

	tp, shutdownTraces, err := observability.SetupTracingSDK(ctx, cfg.Otel)
	if tp == nil {
		return err
	}
	if err != nil {
		logger.Warn("trace export disabled", zap.Error(err))
	}
	metrics := observability.NewMetrics()

	backend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	// Initialize audit pipeline
	sinks := audit.Fanout{audit.NewZapSink(logger)}
	opts := []service.Option{
		service.WithLogger(logger),
		service.WithTracer(tp.Tracer(config.ServiceName)),
		service.WithMetrics(metrics),
		service.WithCatalog(backend.catalog),
	}

	var (
		rdb         *redis.Client
		auditReader port.AuditReader
	)
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: 100,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect redis: %w", err)
		}
		logger.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))

		redisAdapter := storage.NewRedisAdapter(rdb)
		opts = append(opts, service.WithIdempotencyGuard(redisAdapter))
		sinks = append(sinks, redisAdapter)
		auditReader = redisAdapter
	}

	var kafkaSink *messaging.KafkaAuditSink
	if cfg.Kafka.Broker != "" {
		kafkaSink = messaging.NewKafkaAuditSink(messaging.NewAuditWriter(cfg.Kafka.Broker, cfg.Kafka.AuditTopic))
		sinks = append(sinks, kafkaSink)
		logger.Info("publishing audit records to kafka",
			zap.String("broker", cfg.Kafka.Broker),
			zap.String("topic", cfg.Kafka.AuditTopic),
		)
	}

	dispatcher := audit.NewDispatcher(sinks, logger, auditWorkers, auditQueueSize)
	opts = append(opts, service.WithAuditSink(dispatcher))

	// Initialize services
	ceiling, err := cfg.Approval.Ceiling()
	if err != nil {
		return err
	}
	approver := catalog.Approver(cfg.Approval.DefaultApprover)
	workflow := service.NewWorkflowService(backend.store, opts...)
	inventory := service.NewInventoryService(
		backend.store,
		service.NewStockLedger(cfg.Approval.SafetyStock),
		workflow,
		service.NewInventoryValidator(backend.locations),
		approver,
		opts...,
	)
	procurement := service.NewProcurementService(
		backend.store,
		workflow,
		service.NewProcurementValidator(backend.catalog, ceiling),
		approver,
		opts...,
	)

	// Initialize gRPC server
	var grpcServer *grpc.Server
	if cfg.Server.GRPCAddr != "" {
		grpcServer = grpc.NewServer()
		handler.RegisterApprovalServiceServer(grpcServer, handler.NewGRPCHandler(inventory, procurement, logger))

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
	}

	// Initialize HTTP server
	var httpServer *http.Server
	if cfg.Server.HTTPAddr != "" {
		mux := http.NewServeMux()
		httpHandler := handler.NewHTTPHandler(inventory, procurement, workflow, logger)
		if auditReader != nil {
			httpHandler.WithAuditReader(auditReader)
		}
		httpHandler.Register(mux)
		mux.Handle("GET /metrics", metrics.Handler())

		httpServer = &http.Server{
			Addr:              cfg.Server.HTTPAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("HTTP server listening", zap.String("addr", cfg.Server.HTTPAddr))
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", zap.Error(err))
			}
		}()
	}

	// Graceful shutdown
	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP shutdown", zap.Error(err))
		}
		logger.Info("HTTP server stopped")
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")
	}

	// Drain pending audit records before closing their sinks
	dispatcher.Close()
	logger.Info("audit dispatcher stopped")

	if kafkaSink != nil {
		if err := kafkaSink.Close(); err != nil {
			logger.Warn("kafka writer close", zap.Error(err))
		}
	}
	if rdb != nil {
		rdb.Close()
	}
	if err := shutdownTraces(shutdownCtx); err != nil {
		logger.Warn("tracer shutdown", zap.Error(err))
	}
	if err := shutdownLogs(shutdownCtx); err != nil {
		logger.Warn("logger provider shutdown", zap.Error(err))
	}
	logger.Info("connections closed")
	return nil
}

func migrate(ctx context.Context, configPath, logLevel string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Storage.Driver != config.DriverMySQL {
		return fmt.Errorf("migrate needs storage.driver %q, got %q", config.DriverMySQL, cfg.Storage.Driver)
	}
	level, err := zapcore.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logger := observability.NewLogger(level, false)
	defer logger.Sync()

	backend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	logger.Info("schema migrated and catalog seeded",
		zap.Int("products", len(cfg.Catalog.Products)),
		zap.Int("locations", len(cfg.Catalog.Locations)),
	)
	return nil
}
