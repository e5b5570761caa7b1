package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "adspace"
	DefaultMongoConnTimeout  = 10 * time.Second
	DefaultMongoOpTimeout    = 5 * time.Second

	DefaultRedisAddr = "localhost:6379"

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 30
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 35 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultCheckoutSuccessURL = "http://localhost:3000/checkout/success?session_id={CHECKOUT_SESSION_ID}"
	DefaultCheckoutCancelURL  = "http://localhost:3000/checkout/cancel"
	DefaultCurrency           = "brl"

	// basis points: 1500 = 15%, 700 = 7%
	DefaultSingleFeeBps   = 1500
	DefaultCampaignFeeBps = 700

	DefaultCampaignResolveConcurrency = 8

	DefaultOccupiedDatesCacheTTL = 5 * time.Minute
	DefaultWebhookDedupTTL       = 72 * time.Hour
	DefaultLockTTL               = 30 * time.Second

	DefaultGatewayTimeout            = 20 * time.Second
	DefaultGatewayBreakerMaxFailures = 5
	DefaultGatewayBreakerTimeout     = 30 * time.Second

	DefaultReleaseSweepInterval = 1 * time.Hour
	DefaultReleaseSweepBatch    = 100
)
