package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/honeynil/UsersLedgerService/internal/api"
	"github.com/honeynil/UsersLedgerService/internal/config"
	"github.com/honeynil/UsersLedgerService/internal/handler"
	"github.com/honeynil/UsersLedgerService/internal/infrastructure/kafka"
	"github.com/honeynil/UsersLedgerService/internal/infrastructure/redis"
	"github.com/honeynil/UsersLedgerService/internal/observability"
	"github.com/honeynil/UsersLedgerService/internal/repository"
	"github.com/honeynil/UsersLedgerService/internal/repository/memory"
	"github.com/honeynil/UsersLedgerService/internal/repository/postgres"
	service "github.com/honeynil/UsersLedgerService/internal/services"
)

type storage struct {
	store        repository.Store
	accounts     repository.AccountRepository
	transactions repository.TransactionRepository
	db           *sql.DB
}

func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		slog.Warn("using in-memory storage, data is lost on restart")
		store := memory.NewStore()
		return &storage{store: store, accounts: store, transactions: store.Transactions()}, nil
	}

	db, err := postgres.Open(ctx, cfg.PostgresDSN, cfg.DBConnectAttempts, cfg.DBConnectDelay)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &storage{
		store:        postgres.NewPostgresStore(db),
		accounts:     postgres.NewPostgresAccountRepository(db),
		transactions: postgres.NewPostgresTransactionRepository(db),
		db:           db,
	}, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Инициализируем логи, метрики, трейсы
	shutdownTracing, err := observability.Setup(ctx, cfg)
	if err != nil {
		slog.Error("failed to set up observability", "error", err)
		os.Exit(1)
	}
	defer shutdownTracing(context.Background())

	st, err := openStorage(ctx, cfg)
	if err != nil {
		slog.Error("failed to open storage", "driver", cfg.StorageDriver, "error", err)
		os.Exit(1)
	}
	if st.db != nil {
		defer st.db.Close()
	}

	var cache service.TopCache
	if cfg.RedisAddr != "" {
		redisClient, err := redis.NewClient(ctx, cfg.RedisAddr)
		if err != nil {
			slog.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		cache = redis.NewLeaderboardCache(redisClient, cfg.TopCacheTTL)
	}

	var publisher service.EventPublisher
	var producer *kafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = kafka.NewProducer(cfg.KafkaBrokers)
		defer producer.Close()
		publisher = kafka.NewEventPublisher(producer, cfg.KafkaEventsTopic)
	}

	// Инициализируем сервис
	processor := service.NewTransactionProcessor(st.store, service.NewAuthorizationPolicy(), service.FarmConfig{
		Reward:   cfg.FarmReward,
		Cooldown: cfg.FarmCooldown,
	})
	svc := service.NewLedgerService(st.store, st.accounts, st.transactions, processor, cache, publisher)

	// Настраиваем Kafka-консьюмер запросов транзакций
	if len(cfg.KafkaBrokers) > 0 {
		consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaRequestsTopic, cfg.KafkaGroupID, svc)
		defer consumer.Close()
		go consumer.Consume(ctx)
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.SetupRouter(handler.NewHandler(svc), cfg.JWTSecret),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("starting server", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	slog.Info("server stopped")
}
