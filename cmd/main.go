package main

import (
	"context"
	"fmt"
	"log"

	"farm-sync/internal/api"
	"farm-sync/internal/chain"
	"farm-sync/internal/config"
	"farm-sync/internal/db"
	"farm-sync/internal/items"
	"farm-sync/internal/lock"
	"farm-sync/internal/logger"
	"farm-sync/internal/middleware"
	"farm-sync/internal/service"
	"farm-sync/internal/signer"
	"farm-sync/pkg"

	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger := logger.NewLogger()
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(zapLogger)
	appLog := pkg.NewZapLogger(zapLogger)

	dbConn, err := db.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer dbConn.Close()

	if err := db.Migrate(dbConn, cfg.MigrationsDir); err != nil {
		log.Fatalf("Failed to migrate: %v", err)
	}

	chainClient, closeChain, err := chain.Dial(context.Background(), cfg.RPCURL, chain.Contracts{
		Inventory: common.HexToAddress(cfg.InventoryContract),
		Token:     common.HexToAddress(cfg.TokenContract),
		Farm:      common.HexToAddress(cfg.FarmContract),
	})
	if err != nil {
		log.Fatalf("Failed to connect to chain: %v", err)
	}
	defer closeChain()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	// ключ читается при первой подписи
	settlementSigner := signer.New(items.Catalogue(), signer.HexKey(cfg.SignerPrivateKey))

	farmDB := db.NewFarmDB(dbConn)
	reconciler := service.NewReconciler(farmDB, chainClient, chainClient, settlementSigner, appLog)
	authService := service.NewAuthService(appLog, cfg.JWTSecret, cfg.TokenTTL)

	e := echo.New()
	e.Use(logger.RequestLogger(appLog))
	e.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret, appLog, api.AuthPath))

	handlers := &api.Handlers{
		Reconciler:     reconciler,
		AuthService:    authService,
		Locker:         lock.NewFarmLocker(rdb, cfg.FarmLockTTL, appLog),
		Logger:         appLog,
		RequestTimeout: cfg.RequestTimeout,
	}

	api.RegisterHandlers(e, handlers)

	port := fmt.Sprintf(":%s", cfg.ServerPort)
	appLog.Info("Starting server", zap.String("port", cfg.ServerPort))
	if err := e.Start(port); err != nil {
		appLog.Error("Failed to run server", zap.Error(err))
	}
}
