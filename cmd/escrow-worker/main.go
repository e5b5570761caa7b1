package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"adspace/internal/availability/cache"
	availabilityservice "adspace/internal/availability/service"
	escrowservice "adspace/internal/escrow/service"
	"adspace/internal/escrow/worker"
	"adspace/internal/events"
	"adspace/internal/locking"
	"adspace/internal/reservations/repository"
	"adspace/pkg/config"
	"adspace/pkg/gateway"
	"adspace/pkg/kafka"
	kafka_config "adspace/pkg/kafka/config"
	kafka_middleware "adspace/pkg/kafka/middleware"
	"adspace/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const ServiceName = "escrow-worker"

// The worker finds reservations whose rental has ended and releases them.
// With Kafka enabled the sweep publishes release requests and a consumer group
// executes them; otherwise releases run in-process.
func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.SetRedis()
	defer cfg.GracefulShutdown()

	kcfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kcfg.LogConfiguration(cfg.Log.Info)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.DefaultRegisterer
	repos := repository.NewMongoRepositories(cfg)
	locker := locking.NewLocker(repos.Locks, locking.Config{TTL: cfg.LockTTL}, cfg.Log)
	gw := initGateway(cfg, reg)
	availability := availabilityservice.NewAvailabilityService(
		repos.Reservations,
		cache.NewRedisCache(cfg.Client.Redis, cfg.OccupiedDatesCacheTTL),
		cfg.Log,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return serveMetrics(ctx, cfg) })

	sweepCfg := worker.SweeperConfig{Interval: cfg.ReleaseSweepInterval, Batch: cfg.ReleaseSweepBatch}

	if !kcfg.Enabled {
		cfg.Log.Warn("Kafka disabled, releases run in-process")
		escrow := escrowservice.NewEscrowService(repos, locker, gw, events.Noop(), availability, escrowservice.Config{Currency: cfg.Currency}, reg, cfg.Log)
		local := worker.NewLocalPublisher(worker.NewExecutor(escrow, cfg.Log), cfg.Log)
		sweeper := worker.NewSweeper(repos.Reservations, local, sweepCfg, cfg.Log)
		g.Go(func() error { return sweeper.Run(ctx) })
		wait(g, cfg.Log)
		return
	}

	metrics := kafka_middleware.NewMetrics(reg)

	eventsProducer := newProducer(cfg, kcfg, kcfg.EventsTopic, metrics)
	defer closeQuietly(cfg.Log, "events producer", eventsProducer.Close)
	releaseProducer := newProducer(cfg, kcfg, kcfg.ReleaseTopic, metrics)
	defer closeQuietly(cfg.Log, "release producer", releaseProducer.Close)

	escrow := escrowservice.NewEscrowService(
		repos,
		locker,
		gw,
		events.NewKafkaPublisher(eventsProducer, cfg.Log),
		availability,
		escrowservice.Config{Currency: cfg.Currency},
		reg,
		cfg.Log,
	)
	executor := worker.NewExecutor(escrow, cfg.Log)

	consumer, err := kafka.NewConsumer(kcfg, kcfg.ReleaseTopic, kcfg.ReleaseConsumerGroup, kcfg.DLQTopic, executor.Handle, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}
	consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
	consumer.Use(metrics.Consumer())
	defer closeQuietly(cfg.Log, "release consumer", consumer.Close)

	g.Go(func() error {
		err := consumer.Start(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	sweeper := worker.NewSweeper(repos.Reservations, events.NewKafkaPublisher(releaseProducer, cfg.Log), sweepCfg, cfg.Log)
	g.Go(func() error { return sweeper.Run(ctx) })

	wait(g, cfg.Log)
}

func initGateway(cfg *config.Config, reg prometheus.Registerer) gateway.Gateway {
	stripeGateway, err := gateway.NewStripe(gateway.StripeConfig{SecretKey: cfg.StripeSecretKey})
	if err != nil {
		cfg.Log.Fatal("Failed to configure payment gateway", "error", err)
	}
	return gateway.WithBreaker(stripeGateway, gateway.BreakerConfig{
		MaxFailures: cfg.GatewayBreakerMaxFailures,
		Timeout:     cfg.GatewayBreakerTimeout,
		CallTimeout: cfg.GatewayTimeout,
	}, reg, cfg.Log)
}

func newProducer(cfg *config.Config, kcfg *kafka_config.Config, topic string, metrics *kafka_middleware.Metrics) *kafka.Producer {
	producer, err := kafka.NewProducer(kcfg, topic, kcfg.DLQTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "topic", topic, "error", err)
	}
	producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	producer.Use(metrics.Producer())
	return producer
}

// serveMetrics exposes /metrics until ctx is done.
func serveMetrics(ctx context.Context, cfg *config.Config) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: mux, ReadTimeout: cfg.ReadTimeout}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	cfg.Log.Info("Metrics server listening", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func wait(g *errgroup.Group, log *logger.Logger) {
	if err := g.Wait(); err != nil {
		log.Error("Escrow worker stopped with error", "error", err)
		return
	}
	log.Info("Escrow worker stopped")
}

func closeQuietly(log *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		log.Error("Failed to close "+name, "error", err)
	}
}
