package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/aniladanir/sms-campaign-service/internal/cache"
	redisCache "github.com/aniladanir/sms-campaign-service/internal/cache/redis"
	"github.com/aniladanir/sms-campaign-service/internal/domain"
	"github.com/aniladanir/sms-campaign-service/internal/events"
	"github.com/aniladanir/sms-campaign-service/internal/gateway"
	httpHandler "github.com/aniladanir/sms-campaign-service/internal/handler/http"
	"github.com/aniladanir/sms-campaign-service/internal/metrics"
	"github.com/aniladanir/sms-campaign-service/internal/persistant/postgresql"
	campaignRepo "github.com/aniladanir/sms-campaign-service/internal/repository/campaign"
	"github.com/aniladanir/sms-campaign-service/internal/service"
	"github.com/aniladanir/sms-campaign-service/internal/tracing"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

var (
	configFile = flag.String("config", "config.json", "config file path")
)

func main() {
	// create root context
	appCtx, appCtxCancel := context.WithCancel(context.Background())
	defer appCtxCancel()

	// listen for terminate signal
	notifyCtx, stop := signal.NotifyContext(appCtx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// parse flags
	flag.Parse()

	// optional .env with secrets
	_ = godotenv.Load()

	// parse config
	config, err := ReadConfigJson(*configFile)
	if err != nil {
		log.Fatalf("failed to read config file: %v", err)
	}

	// setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// tracing is enabled only when a collector is configured
	shutdownTracer := func(context.Context) error { return nil }
	if config.OtlpEndpoint != "" {
		shutdownTracer, err = tracing.InitTracer(notifyCtx, config.ServiceName, config.OtlpEndpoint)
		if err != nil {
			log.Fatalf("failed to initialize tracer: %v", err)
		}
	}

	metrics.Register()

	// initialize external dependencies
	db, rCache, err := initExternalDependencies(notifyCtx, config, logger)
	if err != nil {
		log.Fatalf("failed to initialize external dependencies: %v", err)
	}

	publisher := events.NewNopPublisher()
	if config.AmqpUrl != "" {
		publisher, err = events.NewRabbitPublisher(config.AmqpUrl, config.AmqpQueue, logger.With(slog.String("component", "events")))
		if err != nil {
			log.Fatalf("failed to initialize event publisher: %v", err)
		}
	}

	// init campaign ledger, a nil cache keeps reference lookups on the database
	var refCache cache.Cache
	if rCache != nil {
		refCache = rCache
	}
	ledger := campaignRepo.NewCampaignRepository(db, refCache)

	// init sms gateway client
	smsGateway, err := gateway.NewClient(config.Gateway(), logger.With(slog.String("component", "smsGateway")))
	if err != nil {
		log.Fatalf("failed to initiate sms gateway client: %v", err)
	}

	dispatcher := service.NewDispatcher(
		ledger,
		smsGateway,
		publisher,
		service.DispatcherConfig{
			Concurrency:  config.DispatchConcurrency,
			SendInterval: config.DispatchSendInterval,
		},
		logger.With(slog.String("component", "dispatcher")),
	)

	messaging := service.NewMessagingService(
		ledger,
		dispatcher,
		service.NewStatusAggregator(ledger),
		logger.With(slog.String("component", "messaging")),
	)

	reconciler := service.NewReconciler(
		ledger,
		publisher,
		service.ReconcilerConfig{
			Interval:   config.ReconcileInterval,
			StaleAfter: config.ReconcileStaleAfter,
			BatchSize:  config.ReconcileBatchSize,
		},
		logger.With(slog.String("component", "reconciler")),
	)

	// init http handler
	httpHandler := httpHandler.NewHttpHandler(httpHandler.Options{
		Addr:            fmt.Sprintf(":%d", config.HttpPort),
		DispatchTimeout: config.DispatchTimeout,
		WebhookToken:    config.WebhookToken,
		RequestRate:     rate.Limit(config.RequestRate),
		RequestBurst:    config.RequestBurst,
	}, messaging, logger.With(slog.String("component", "http")))

	reconciler.Start()

	wg := sync.WaitGroup{}
	// run http handler
	wg.Go(func() {
		if err := httpHandler.Run(); err != nil {
			logger.Error("http server encountered with an error and closed", "error", err.Error())
		}
		// cancel app context if http handler fails
		appCtxCancel()
	})

	// graceful shutdown
	wg.Go(func() {
		<-notifyCtx.Done()
		logger.Info("application shutting down...")

		// in-flight dispatches get the full dispatch timeout to settle their recipients
		shutDownCtx, cancel := context.WithTimeout(context.Background(), config.DispatchTimeout+5*time.Second)
		defer cancel()

		reconciler.Stop()
		if err := httpHandler.Shutdown(shutDownCtx); err != nil {
			logger.Error("failed to shutdown http server", "error", err.Error())
		}
		if err := publisher.Close(); err != nil {
			logger.Error("failed to close event publisher", "error", err.Error())
		}
		if rCache != nil {
			rCache.Close()
		}
		if err := shutdownTracer(shutDownCtx); err != nil {
			logger.Error("failed to flush traces", "error", err.Error())
		}
		postgresql.Close(db)
	})

	wg.Wait()
	os.Exit(0)
}

func initExternalDependencies(ctx context.Context, config *Config, logger *slog.Logger) (db *gorm.DB, rCache *redisCache.RedisCache, err error) {
	// initialize database
	db, err = postgresql.Initialize(ctx, config.DbConnString, postgresql.PoolOptions{
		MaxOpenConns:    config.DbMaxOpenConns,
		MaxIdleConns:    config.DbMaxIdleConns,
		ConnMaxLifetime: config.DbConnMaxLifetime,
	}, []any{&domain.Campaign{}, &domain.Recipient{}})
	if err != nil {
		return
	}

	// initialize cache
	if config.RedisAddr == "" {
		logger.Info("redis_addr not set, gateway references resolve from the database")
		return
	}
	rCache, err = redisCache.NewRedisCache(ctx, redisCache.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})

	return
}
