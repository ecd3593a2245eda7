package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mpadronm90/simple-chatbot-platform/internal/adapter/backend"
	"github.com/mpadronm90/simple-chatbot-platform/internal/auth"
	"github.com/mpadronm90/simple-chatbot-platform/internal/config"
	"github.com/mpadronm90/simple-chatbot-platform/internal/facade"
	"github.com/mpadronm90/simple-chatbot-platform/internal/logging"
	"github.com/mpadronm90/simple-chatbot-platform/internal/policy"
	"github.com/mpadronm90/simple-chatbot-platform/internal/repository"
	"github.com/mpadronm90/simple-chatbot-platform/internal/service"
	"github.com/mpadronm90/simple-chatbot-platform/internal/threadsync"
	handler "github.com/mpadronm90/simple-chatbot-platform/internal/transport/http"
	"github.com/mpadronm90/simple-chatbot-platform/internal/transport/rpc"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting chatbot platform",
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("rpc_port", cfg.RPCPort),
		zap.String("store_driver", cfg.StoreDriver),
		zap.String("backend_mode", cfg.BackendMode),
		zap.String("run_mode", string(cfg.RunMode)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize store
	store, err := repository.Open(ctx, cfg.StoreDriver, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("failed to initialize store", zap.Error(err))
	}
	defer store.Close()

	// Initialize completion backend
	completions := backend.New(cfg.BackendMode, backend.Config{
		APIKey:        cfg.OpenAIAPIKey,
		BaseURL:       cfg.OpenAIBaseURL,
		RatePerSecond: cfg.BackendRatePerSec,
		Timeout:       cfg.BackendTimeout,
	}, logger)

	// Initialize policy engine
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		logger.Fatal("failed to initialize policy engine", zap.Error(err))
	}

	tokens := auth.NewTokenService(cfg.JWTSecret)
	if !tokens.Enabled() {
		logger.Warn("JWT_SECRET is not set, every request is anonymous")
	}

	// Initialize service and facade
	svc := service.New(store, completions, cfg, logger)
	dispatcher := facade.NewDispatcher(svc, policyEngine, logger)

	// Thread synchronization
	hub := threadsync.NewHub(store, logger)
	go hub.Run(ctx)
	selector := threadsync.NewSelector(svc, logger)

	// HTTP server
	h := handler.NewHandler(svc, dispatcher, selector, hub, logger)
	httpServer := handler.NewServer(h, tokens, cfg.FrameAncestors, logger)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start http server", zap.Error(err))
		}
	}()

	// RPC server
	rpcServer, err := rpc.NewServer(dispatcher, tokens, logger)
	if err != nil {
		logger.Fatal("failed to initialize rpc server", zap.Error(err))
	}
	go func() {
		addr := fmt.Sprintf(":%d", cfg.RPCPort)
		if err := rpcServer.Start(addr); err != nil {
			logger.Fatal("failed to start rpc server", zap.Error(err))
		}
	}()

	logger.Info("servers started", zap.Int("http_port", cfg.HTTPPort), zap.Int("rpc_port", cfg.RPCPort))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("failed to shutdown http server gracefully", zap.Error(err))
	}
	if err := rpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("failed to shutdown rpc server gracefully", zap.Error(err))
	}
	cancel()

	logger.Info("stopped")
}
