package main

import (
	"context"
	"time"

	"adspace/internal/availability/cache"
	availabilityhandler "adspace/internal/availability/handler"
	availabilityservice "adspace/internal/availability/service"
	checkouthandler "adspace/internal/checkout/handler"
	checkoutservice "adspace/internal/checkout/service"
	checkoutvalidator "adspace/internal/checkout/validator"
	escrowhandler "adspace/internal/escrow/handler"
	escrowservice "adspace/internal/escrow/service"
	"adspace/internal/escrow/worker"
	"adspace/internal/events"
	"adspace/internal/locking"
	"adspace/internal/pricing"
	pricinghandler "adspace/internal/pricing/handler"
	"adspace/internal/reservations/repository"
	"adspace/internal/webhook/dedup"
	webhookhandler "adspace/internal/webhook/handler"
	webhookservice "adspace/internal/webhook/service"
	"adspace/pkg/app"
	"adspace/pkg/config"
	"adspace/pkg/contracts"
	"adspace/pkg/gateway"
	"adspace/pkg/kafka"
	kafka_config "adspace/pkg/kafka/config"
	kafka_middleware "adspace/pkg/kafka/middleware"

	"github.com/prometheus/client_golang/prometheus"
)

const ServiceName = "reservations"

const lockWait = 2 * time.Second

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.SetRedis()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Reservations service")
	reg := prometheus.DefaultRegisterer

	publisher, closePublisher := initPublisher(cfg, reg)
	handlers, stopSweep := initHandlers(cfg, reg, publisher)

	serverApp := app.NewApplication()
	serverApp.SetApp(cfg, reg, handlers...)
	serverApp.OnShutdown(stopSweep)
	serverApp.OnShutdown(closePublisher)
	serverApp.Run()
}

// initPublisher returns the Kafka backed publisher, or a no-op one when Kafka
// is disabled.
func initPublisher(cfg *config.Config, reg prometheus.Registerer) (events.Publisher, func()) {
	kcfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kcfg.LogConfiguration(cfg.Log.Info)
	if !kcfg.Enabled {
		cfg.Log.Warn("Kafka disabled, domain events will not be published")
		return events.Noop(), func() {}
	}

	producer, err := kafka.NewProducer(kcfg, kcfg.EventsTopic, kcfg.DLQTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	producer.Use(kafka_middleware.NewMetrics(reg).Producer())

	return events.NewKafkaPublisher(producer, cfg.Log), func() {
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka producer", "error", err)
		}
	}
}

func initGateway(cfg *config.Config, reg prometheus.Registerer) gateway.Gateway {
	stripeGateway, err := gateway.NewStripe(gateway.StripeConfig{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
	})
	if err != nil {
		cfg.Log.Fatal("Failed to configure payment gateway", "error", err)
	}
	return gateway.WithBreaker(stripeGateway, gateway.BreakerConfig{
		MaxFailures: cfg.GatewayBreakerMaxFailures,
		Timeout:     cfg.GatewayBreakerTimeout,
		CallTimeout: cfg.GatewayTimeout,
	}, reg, cfg.Log)
}

func feeSchedules(cfg *config.Config) (single, campaign pricing.FeeSchedule) {
	single, err := pricing.NewFeeSchedule("single", cfg.SingleFeeBps)
	if err != nil {
		cfg.Log.Fatal("Invalid fee schedule", "error", err)
	}
	campaign, err = pricing.NewFeeSchedule("campaign", cfg.CampaignFeeBps)
	if err != nil {
		cfg.Log.Fatal("Invalid fee schedule", "error", err)
	}
	return single, campaign
}

func initHandlers(cfg *config.Config, reg prometheus.Registerer, publisher events.Publisher) ([]contracts.Handler, func()) {
	repos := repository.NewMongoRepositories(cfg)
	locker := locking.NewLocker(repos.Locks, locking.Config{TTL: cfg.LockTTL, Wait: lockWait}, cfg.Log)
	gw := initGateway(cfg, reg)
	singleFee, campaignFee := feeSchedules(cfg)

	availability := availabilityservice.NewAvailabilityService(
		repos.Reservations,
		cache.NewRedisCache(cfg.Client.Redis, cfg.OccupiedDatesCacheTTL),
		cfg.Log,
	)

	checkout := checkoutservice.NewCheckoutService(
		repos,
		locker,
		gw,
		checkoutvalidator.NewCheckoutValidator(cfg.Log),
		checkoutservice.Config{
			Currency:           cfg.Currency,
			SuccessURL:         cfg.CheckoutSuccessURL,
			CancelURL:          cfg.CheckoutCancelURL,
			SingleFee:          singleFee,
			CampaignFee:        campaignFee,
			ResolveConcurrency: cfg.CampaignResolveConcurrency,
		},
		cfg.Log,
	)

	webhook := webhookservice.NewWebhookService(
		repos,
		locker,
		gw,
		dedup.NewRedisStore(cfg.Client.Redis, cfg.WebhookDedupTTL),
		availability,
		publisher,
		webhookservice.Config{CancelOnPaymentFailure: cfg.CancelOnPaymentFailure},
		cfg.Log,
	)

	escrow := escrowservice.NewEscrowService(
		repos,
		locker,
		gw,
		publisher,
		availability,
		escrowservice.Config{Currency: cfg.Currency},
		reg,
		cfg.Log,
	)

	stopSweep := func() {}
	if cfg.ReleaseSweepEnabled {
		stopSweep = startInProcessSweep(cfg, repos, escrow)
	}

	cfg.Log.Info("Reservation services initialized", "database", cfg.MongoDatabaseName)

	return []contracts.Handler{
		availabilityhandler.NewAvailabilityHandler(availability, cfg.Log),
		pricinghandler.NewQuoteHandler(repos.Media, singleFee, cfg.Log),
		checkouthandler.NewCheckoutHandler(checkout, cfg.Log),
		webhookhandler.NewWebhookHandler(webhook, cfg.Log),
		escrowhandler.NewReleaseHandler(escrow, cfg.Log),
	}, stopSweep
}

// startInProcessSweep runs the release sweep inside the API process for
// deployments without the escrow worker. Releases execute synchronously.
func startInProcessSweep(cfg *config.Config, repos *repository.Repositories, escrow escrowservice.EscrowService) func() {
	executor := worker.NewExecutor(escrow, cfg.Log)
	sweeper := worker.NewSweeper(repos.Reservations, worker.NewLocalPublisher(executor, cfg.Log), worker.SweeperConfig{
		Interval: cfg.ReleaseSweepInterval,
		Batch:    cfg.ReleaseSweepBatch,
	}, cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := sweeper.Run(ctx); err != nil {
			cfg.Log.Error("Release sweep stopped", "error", err)
		}
	}()
	cfg.Log.Info("In-process release sweep enabled", "interval", cfg.ReleaseSweepInterval)
	return cancel
}
