package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auction-ledger/internal/api/handlers"
	apimiddleware "auction-ledger/internal/api/middleware"
	"auction-ledger/internal/config"
	"auction-ledger/internal/domain"
	"auction-ledger/internal/infrastructure/leader"
	"auction-ledger/internal/infrastructure/mysql"
	"auction-ledger/internal/infrastructure/redis"
	"auction-ledger/internal/ledger"
	"auction-ledger/internal/services"
	"auction-ledger/pkg/logger"
	"auction-ledger/pkg/utils"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New().Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.New().Error("Invalid config", "error", err)
		os.Exit(1)
	}

	log := logger.NewWithLevel(cfg.Log.Level)
	log.Info("Starting auction ledger", "config", cfg.GetConfigString())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rdb, err := utils.InitializeRedis(ctx, cfg.Redis, log)
	if err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	db, err := utils.InitializeMysql(ctx, cfg.MySQL, log)
	if err != nil {
		log.Error("Failed to connect to MySQL", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close MySQL connection", "error", err)
		}
	}()

	if err := mysql.Migrate(ctx, db); err != nil {
		log.Error("Failed to migrate schema", "error", err)
		os.Exit(1)
	}

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()

	lock := leader.NewRedisInstanceLock(rdb, cfg.Auction.Owner, cfg.Instance.LockTTL, log)
	acquired, lost, err := lock.Acquire(runCtx, cfg.Instance.ID)
	if err != nil {
		log.Error("Failed to acquire ledger lock", "error", err)
		os.Exit(1)
	}
	if !acquired {
		holder, _ := lock.Holder(ctx)
		log.Error("Another instance owns this auction", "owner", cfg.Auction.Owner, "holder", holder)
		os.Exit(1)
	}

	rules := ledger.Rules{
		MinIncrementPct: cfg.Auction.MinIncrementPct,
		FeePct:          cfg.Auction.FeePct,
		ExtensionWindow: cfg.Auction.ExtensionWindow,
		InitialDuration: cfg.Auction.InitialDuration,
	}

	clock := services.NewMonotonicClock()
	journal := mysql.NewTransferJournal(db, log)
	eventPublisher := redis.NewEventPublisher(rdb, cfg.Redis.Channel)

	auctionLedger, err := ledger.New(domain.Bidder(cfg.Auction.Owner), clock.Now(), rules, journal, eventPublisher, log)
	if err != nil {
		log.Error("Failed to create ledger", "error", err)
		os.Exit(1)
	}
	log.Info("Auction opened", "owner", cfg.Auction.Owner, "deadline", auctionLedger.Deadline())

	ledgerService := services.NewLedgerService(auctionLedger, clock, log)

	var closer *services.AuctionCloser
	if cfg.Closer.Enabled {
		closer = services.NewAuctionCloser(ledgerService, cfg.Closer.Schedule, cfg.Closer.AutoSettle, log)
		if err := closer.Start(runCtx); err != nil {
			log.Error("Failed to start auction closer", "error", err)
			os.Exit(1)
		}
	}

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestID())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: `{"time":"${time_rfc3339}","id":"${id}","remote_ip":"${remote_ip}","method":"${method}","uri":"${uri}","status":${status},"error":"${error}","latency_human":"${latency_human}"}` + "\n",
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{echo.GET, echo.POST, echo.OPTIONS},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
		},
		MaxAge: 86400,
	}))

	ledgerHandler := handlers.NewLedgerHandler(ledgerService, log)

	api := e.Group("/api/v1", apimiddleware.Identity(cfg.Auth.JWTSecret, log))
	ledgerHandler.Register(api)

	e.GET("/health", func(c echo.Context) error {
		snap := ledgerService.Snapshot()
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"service":   "auction-ledger",
			"auction":   snap.Status.String(),
			"deadline":  snap.Deadline,
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		log.Info("Starting ledger API", "address", serverAddr)
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case <-lost:
		log.Error("Ledger lock lost, shutting down")
	}

	log.Info("Shutting down auction ledger...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if closer != nil {
		if err := closer.Stop(); err != nil {
			log.Error("Failed to stop auction closer", "error", err)
		}
	}

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	stop()
	if err := lock.Release(shutdownCtx, cfg.Instance.ID); err != nil {
		log.Error("Failed to release ledger lock", "error", err)
	}

	winner, ok, amount := ledgerService.ShowWinner()
	log.Info("Auction ledger stopped", "has_offers", ok, "winner", winner, "amount", amount)
}
