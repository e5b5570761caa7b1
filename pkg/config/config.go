package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"adspace/pkg/client"
	"adspace/pkg/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration
	MongoOpTimeout    time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Port     string
	LogLevel string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	StripeSecretKey     string
	StripeWebhookSecret string
	CheckoutSuccessURL  string
	CheckoutCancelURL   string
	Currency            string

	SingleFeeBps   int
	CampaignFeeBps int

	CancelOnPaymentFailure     bool
	CampaignResolveConcurrency int

	OccupiedDatesCacheTTL time.Duration
	WebhookDedupTTL       time.Duration
	LockTTL               time.Duration

	GatewayTimeout            time.Duration
	GatewayBreakerMaxFailures int
	GatewayBreakerTimeout     time.Duration

	ReleaseSweepEnabled  bool
	ReleaseSweepInterval time.Duration
	ReleaseSweepBatch    int

	Log    *logger.Logger
	Client *client.Client
}

// Load reads an optional .env file and the process environment, validates the
// result and exits the process on invalid configuration.
func Load(serviceName string) *Config {
	_ = godotenv.Load()

	cfg := FromEnv()
	cfg.Log = logger.New(logger.Config{
		Level:     cfg.LogLevel,
		Format:    logger.JSON,
		AddSource: true,
		Service:   serviceName,
	})
	cfg.Client = client.NewClient()

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

// FromEnv builds a Config from environment variables only.
func FromEnv() *Config {
	return &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),
		MongoOpTimeout:    getEnvDuration(EnvMongoOpTimeout, DefaultMongoOpTimeout),

		RedisAddr:     getEnvStr(EnvRedisAddr, DefaultRedisAddr),
		RedisPassword: getEnvStr(EnvRedisPassword, ""),
		RedisDB:       getEnvNum(EnvRedisDB, 0),

		Port:     getEnvStr(EnvPort, DefaultPort),
		LogLevel: getEnvStr(EnvLogLevel, DefaultLogLevel),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		StripeSecretKey:     getEnvStr(EnvStripeSecretKey, ""),
		StripeWebhookSecret: getEnvStr(EnvStripeWebhookSecret, ""),
		CheckoutSuccessURL:  getEnvStr(EnvCheckoutSuccessURL, DefaultCheckoutSuccessURL),
		CheckoutCancelURL:   getEnvStr(EnvCheckoutCancelURL, DefaultCheckoutCancelURL),
		Currency:            strings.ToLower(getEnvStr(EnvCurrency, DefaultCurrency)),

		SingleFeeBps:   getEnvNum(EnvSingleFeeBps, DefaultSingleFeeBps),
		CampaignFeeBps: getEnvNum(EnvCampaignFeeBps, DefaultCampaignFeeBps),

		CancelOnPaymentFailure:     getEnvBool(EnvCancelOnPaymentFailure, false),
		CampaignResolveConcurrency: getEnvNum(EnvCampaignResolveConcurrency, DefaultCampaignResolveConcurrency),

		OccupiedDatesCacheTTL: getEnvDuration(EnvOccupiedDatesCacheTTL, DefaultOccupiedDatesCacheTTL),
		WebhookDedupTTL:       getEnvDuration(EnvWebhookDedupTTL, DefaultWebhookDedupTTL),
		LockTTL:               getEnvDuration(EnvLockTTL, DefaultLockTTL),

		GatewayTimeout:            getEnvDuration(EnvGatewayTimeout, DefaultGatewayTimeout),
		GatewayBreakerMaxFailures: getEnvNum(EnvGatewayBreakerMaxFailures, DefaultGatewayBreakerMaxFailures),
		GatewayBreakerTimeout:     getEnvDuration(EnvGatewayBreakerTimeout, DefaultGatewayBreakerTimeout),

		ReleaseSweepEnabled:  getEnvBool(EnvReleaseSweepEnabled, false),
		ReleaseSweepInterval: getEnvDuration(EnvReleaseSweepInterval, DefaultReleaseSweepInterval),
		ReleaseSweepBatch:    getEnvNum(EnvReleaseSweepBatch, DefaultReleaseSweepBatch),
	}
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) SetRedis() {
	cfg.Client.SetRedis(cfg.Log, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.MongoConnTimeout)
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		errors = append(errors, "MongoURI cannot be empty")
	} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
		errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
	}
	if cfg.MongoDatabaseName == "" {
		errors = append(errors, "MongoDatabaseName cannot be empty")
	}
	if cfg.RedisAddr == "" {
		errors = append(errors, "RedisAddr cannot be empty")
	}

	positive := []struct {
		name string
		d    time.Duration
	}{
		{"MongoConnTimeout", cfg.MongoConnTimeout},
		{"MongoOpTimeout", cfg.MongoOpTimeout},
		{"RateLimitWindow", cfg.RateLimitWindow},
		{"RequestTimeout", cfg.RequestTimeout},
		{"IdempotencyTTL", cfg.IdempotencyTTL},
		{"ReadTimeout", cfg.ReadTimeout},
		{"WriteTimeout", cfg.WriteTimeout},
		{"IdleTimeout", cfg.IdleTimeout},
		{"ShutdownTimeout", cfg.ShutdownTimeout},
		{"OccupiedDatesCacheTTL", cfg.OccupiedDatesCacheTTL},
		{"WebhookDedupTTL", cfg.WebhookDedupTTL},
		{"LockTTL", cfg.LockTTL},
		{"GatewayTimeout", cfg.GatewayTimeout},
		{"GatewayBreakerTimeout", cfg.GatewayBreakerTimeout},
		{"ReleaseSweepInterval", cfg.ReleaseSweepInterval},
	}
	for _, p := range positive {
		if p.d <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive, got: %s", p.name, p.d))
		}
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}
	if cfg.SingleFeeBps < 0 || cfg.SingleFeeBps > 10000 {
		errors = append(errors, fmt.Sprintf("SingleFeeBps must be between 0 and 10000, got: %d", cfg.SingleFeeBps))
	}
	if cfg.CampaignFeeBps < 0 || cfg.CampaignFeeBps > 10000 {
		errors = append(errors, fmt.Sprintf("CampaignFeeBps must be between 0 and 10000, got: %d", cfg.CampaignFeeBps))
	}
	if cfg.CampaignResolveConcurrency <= 0 {
		errors = append(errors, fmt.Sprintf("CampaignResolveConcurrency must be positive, got: %d", cfg.CampaignResolveConcurrency))
	}
	if cfg.GatewayBreakerMaxFailures <= 0 {
		errors = append(errors, fmt.Sprintf("GatewayBreakerMaxFailures must be positive, got: %d", cfg.GatewayBreakerMaxFailures))
	}
	if cfg.ReleaseSweepBatch <= 0 {
		errors = append(errors, fmt.Sprintf("ReleaseSweepBatch must be positive, got: %d", cfg.ReleaseSweepBatch))
	}
	if len(cfg.Currency) != 3 {
		errors = append(errors, fmt.Sprintf("Currency must be a 3-letter ISO code, got: %q", cfg.Currency))
	}

	for name, raw := range map[string]string{"CheckoutSuccessURL": cfg.CheckoutSuccessURL, "CheckoutCancelURL": cfg.CheckoutCancelURL} {
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, fmt.Sprintf("%s must be an absolute URL, got: %q", name, raw))
		}
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"redis_addr", cfg.RedisAddr,
		"port", cfg.Port,
		"stripe_secret_set", cfg.StripeSecretKey != "",
		"stripe_webhook_secret_set", cfg.StripeWebhookSecret != "",
		"currency", cfg.Currency,
		"single_fee_bps", cfg.SingleFeeBps,
		"campaign_fee_bps", cfg.CampaignFeeBps,
		"cancel_on_payment_failure", cfg.CancelOnPaymentFailure,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"lock_ttl", cfg.LockTTL,
		"gateway_timeout", cfg.GatewayTimeout,
		"release_sweep_enabled", cfg.ReleaseSweepEnabled,
		"release_sweep_interval", cfg.ReleaseSweepInterval,
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log)
}
