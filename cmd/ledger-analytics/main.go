package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"auction-ledger/internal/config"
	"auction-ledger/internal/domain"
	"auction-ledger/internal/infrastructure/mysql"
	"auction-ledger/internal/infrastructure/redis"
	"auction-ledger/pkg/logger"
	"auction-ledger/pkg/utils"

	"github.com/gorilla/mux"
)

const defaultHistoryLimit = 100

type AnalyticsService struct {
	subscriber domain.EventSubscriber
	eventRepo  domain.EventRepository
	log        logger.Logger
}

func NewAnalyticsService(subscriber domain.EventSubscriber, eventRepo domain.EventRepository, log logger.Logger) *AnalyticsService {
	return &AnalyticsService{
		subscriber: subscriber,
		eventRepo:  eventRepo,
		log:        log,
	}
}

func (as *AnalyticsService) Start(ctx context.Context) error {
	as.log.Info("Starting analytics service")

	return as.subscriber.SubscribeToLedgerEvents(ctx, func(event *domain.LedgerEvent) error {
		as.log.Debug("Storing ledger event", "type", event.Type, "bidder", event.Bidder, "amount", event.Amount)
		return as.eventRepo.SaveEvent(ctx, event)
	})
}

func (as *AnalyticsService) HandleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	events, err := as.eventRepo.GetEventHistory(r.Context(), limit)
	if err != nil {
		as.log.Error("Failed to load event history", "error", err)
		http.Error(w, "failed to load event history", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"events": events})
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New().Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.NewWithLevel(cfg.Log.Level)

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
	defer db.Close()

	if err := mysql.Migrate(ctx, db); err != nil {
		log.Error("Failed to migrate schema", "error", err)
		os.Exit(1)
	}

	eventSubscriber := redis.NewRedisEventSubscriber(rdb, cfg.Redis.Channel, log)
	eventRepo := mysql.NewMySQLEventRepository(db)

	analyticsService := NewAnalyticsService(eventSubscriber, eventRepo, log)

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()

	go func() {
		if err := analyticsService.Start(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Analytics service failed", "error", err)
			os.Exit(1)
		}
	}()

	router := mux.NewRouter()
	router.HandleFunc("/api/v1/events", analyticsService.HandleHistory).Methods("GET")

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Analytics.Host, cfg.Analytics.Port),
		Handler: router,
	}

	go func() {
		log.Info("Starting analytics API", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down analytics service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Analytics service stopped")
}
