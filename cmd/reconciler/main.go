package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nimasrn/vtu-gateway/internal/billpay"
	"github.com/nimasrn/vtu-gateway/internal/config"
	"github.com/nimasrn/vtu-gateway/internal/queue"
	"github.com/nimasrn/vtu-gateway/internal/refunds"
	"github.com/nimasrn/vtu-gateway/internal/repository"
	"github.com/nimasrn/vtu-gateway/pkg/logger"
	"github.com/nimasrn/vtu-gateway/pkg/pg"
	"github.com/nimasrn/vtu-gateway/pkg/prom"
	"github.com/nimasrn/vtu-gateway/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := false
	if config.Get().AppEnv == "dev" {
		pgDebug = true
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "default",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	walletRepo := repository.NewWalletRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	providerRepo := repository.NewProviderRepository(db)

	registry := billpay.NewRegistry(providerRepo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := registry.Reload(ctx); err != nil {
		logger.Warn("initial provider registry load failed", "error", err)
	}
	go registry.Run(ctx, config.Get().RegistryReloadInterval)

	idempotencyConfig := refunds.DefaultIdempotencyConfig()
	idempotencyService := refunds.NewIdempotencyService(redisAdap, idempotencyConfig)

	service, err := refunds.NewService(redisAdap)
	if err != nil {
		logger.Error("failed to create the reconciler", "error", err)
		return
	}
	service.RegisterProcessor(refunds.NewRefundProcessor(walletRepo, transactionRepo, idempotencyService))

	// The sweeper publishes into the same stream the consumers drain.
	refundQueue, err := queue.NewQueue(redisAdap, queue.QueueConfig{
		Name:              config.Get().QueueName,
		ConsumerGroup:     config.Get().QueueConsumerGroup,
		ConsumerName:      config.Get().QueueConsumerName + "-sweeper",
		MaxRetries:        config.Get().QueueMaxRetries,
		VisibilityTimeout: config.Get().QueueVisibilityTimeout,
		PollInterval:      config.Get().QueuePollInterval,
		BatchSize:         config.Get().QueueBatchSize,
		MaxLen:            config.Get().QueueMaxLen,
		EnableDLQ:         config.Get().QueueEnableDLQ,
	})
	if err != nil {
		logger.Error("failed creating refund queue", "error", err)
		return
	}
	sweeper := refunds.NewSweeper(transactionRepo, refundQueue, registry, config.Get().ReconcilerStaleAfter)
	go sweeper.Run(ctx, config.Get().ReconcilerSweepInterval)

	var hostname string
	hostname, err = os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	err = prom.Create(hostname, config.Get().AppEnv, config.Get().PromNamespace)
	if err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}

	go func() {
		prom.ListenAndServer(":9100", "/metrics")
	}()

	go func() {
		err := service.Start()
		if err != nil {
			logger.Error("failed to start the reconciler", "error", err)
		}
	}()

	select {
	case <-c:
		cancel()
		service.Stop()
	}
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
