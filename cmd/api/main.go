package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nimasrn/vtu-gateway/internal/billpay"
	"github.com/nimasrn/vtu-gateway/internal/config"
	"github.com/nimasrn/vtu-gateway/internal/handlers"
	"github.com/nimasrn/vtu-gateway/internal/model"
	"github.com/nimasrn/vtu-gateway/internal/queue"
	"github.com/nimasrn/vtu-gateway/internal/repository"
	"github.com/nimasrn/vtu-gateway/internal/services"
	xhttp "github.com/nimasrn/vtu-gateway/pkg/http"
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

	// transport (tcp for now)
	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(time.Second * 35))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

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

	refundQueue, err := queue.NewQueue(redisAdap, queue.QueueConfig{
		Name:              config.Get().QueueName,
		ConsumerGroup:     config.Get().QueueConsumerGroup,
		ConsumerName:      config.Get().QueueConsumerName,
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

	walletRepo := repository.NewWalletRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	planRepo := repository.NewPlanRepository(db)
	userRepo := repository.NewUserRepository(db)
	providerRepo := repository.NewProviderRepository(db)

	registryOpts := []billpay.RegistryOption{}
	if config.Get().ProviderDefaultURL != "" {
		fallback := billpay.NewRESTClient(&model.Provider{
			Code:    config.Get().ProviderDefaultCode,
			BaseURL: config.Get().ProviderDefaultURL,
			APIKey:  config.Get().ProviderDefaultKey,
		}, billpay.WithTimeout(config.Get().PurchaseCallTimeout))
		registryOpts = append(registryOpts, billpay.WithFallback(fallback))
	}
	registry := billpay.NewRegistry(providerRepo, registryOpts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := registry.Reload(ctx); err != nil {
		logger.Warn("initial provider registry load failed", "error", err)
	}
	go registry.Run(ctx, config.Get().RegistryReloadInterval)

	// services
	purchaseService := services.NewPurchaseService(
		walletRepo,
		transactionRepo,
		planRepo,
		userRepo,
		registry,
		refundQueue,
		services.PurchaseOptions{
			CallTimeout:     config.Get().PurchaseCallTimeout,
			AllowDefaultPin: config.Get().AllowDefaultPin,
			ElectricityFee:  config.Get().ElectricityFee,
		},
	)
	catalogService := services.NewCatalogService(registry, planRepo, redisAdap, config.Get().CatalogCacheTTL)
	healthService := services.NewHealthService(db)

	// v1 handlers
	billPaymentHandler := handlers.NewBillPaymentHandler(purchaseService)
	catalogHandler := handlers.NewCatalogHandler(catalogService)
	accountHandler := handlers.NewAccountHandler(purchaseService, registry)
	healthHandler := handlers.NewHealthHandler(healthService)

	g := s.Router.Group("/api/v1")
	handlers.RegisterBillPaymentRoutes(g, billPaymentHandler)
	handlers.RegisterCatalogRoutes(g, catalogHandler)
	handlers.RegisterAccountRoutes(g, accountHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)

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
	if config.Get().AppDebugMetricsAddr != "" {
		go func() {
			prom.ListenAndServer(config.Get().AppDebugMetricsAddr, config.Get().AppDebugMetricsURI)
		}()
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		var err = s.ListenAndServe(config.Get().HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	select {
	case <-c:
		cancel()
		s.Shutdown()
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
