package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/openclear/settled/internal/api"
	"github.com/openclear/settled/internal/config"
	"github.com/openclear/settled/internal/exchange"
	"github.com/openclear/settled/internal/storage"
	"github.com/openclear/settled/pkg/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	// Create logger
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	zapLogger, err := logger.NewLogger(logLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		zapLogger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Open state store
	store, err := storage.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		zapLogger.Fatal("Failed to open state store", zap.Error(err))
	}

	// Token adapter for custody transfers
	custodyKey, err := crypto.HexToECDSA(cfg.Chain.CustodyKey)
	if err != nil {
		zapLogger.Fatal("Failed to parse custody key", zap.Error(err))
	}
	tokens, err := exchange.NewEVMTokenAdapter(cfg.Chain.RPCURL, cfg.Chain.ChainID, custodyKey)
	if err != nil {
		zapLogger.Fatal("Failed to create token adapter", zap.Error(err))
	}

	// Settlement engine bound to this deployment's domain
	hasher := exchange.NewOrderHasher(cfg.Chain.ChainID, cfg.ExchangeAddress())
	engine := exchange.NewService(zapLogger, store, tokens, hasher, cfg.OwnerAddress(), cfg.OperatorAddress())

	zapLogger.Info("settlement engine ready",
		zap.Uint64("chain_id", cfg.Chain.ChainID),
		zap.String("exchange", cfg.ExchangeAddress().Hex()),
		zap.String("domain_separator", engine.DomainSeparator().Hex()))

	// API server
	server := api.NewServer(zapLogger, engine)
	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.Router(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		zapLogger.Info("Starting API server", zap.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("API server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		zapLogger.Error("Forced shutdown", zap.Error(err))
	}
	zapLogger.Info("Server stopped")
}
