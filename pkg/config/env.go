package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"
	EnvMongoOpTimeout    = "MONGO_OPERATION_TIMEOUT"

	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvRedisDB       = "REDIS_DB"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvStripeSecretKey     = "STRIPE_SECRET_KEY"
	EnvStripeWebhookSecret = "STRIPE_WEBHOOK_SECRET"
	EnvCheckoutSuccessURL  = "CHECKOUT_SUCCESS_URL"
	EnvCheckoutCancelURL   = "CHECKOUT_CANCEL_URL"
	EnvCurrency            = "CURRENCY"

	EnvSingleFeeBps   = "SINGLE_FEE_BPS"
	EnvCampaignFeeBps = "CAMPAIGN_FEE_BPS"

	EnvCancelOnPaymentFailure     = "CANCEL_ON_PAYMENT_FAILURE"
	EnvCampaignResolveConcurrency = "CAMPAIGN_RESOLVE_CONCURRENCY"

	EnvOccupiedDatesCacheTTL = "OCCUPIED_DATES_CACHE_TTL"
	EnvWebhookDedupTTL       = "WEBHOOK_DEDUP_TTL"
	EnvLockTTL               = "LOCK_TTL"

	EnvGatewayTimeout            = "GATEWAY_TIMEOUT"
	EnvGatewayBreakerMaxFailures = "GATEWAY_BREAKER_MAX_FAILURES"
	EnvGatewayBreakerTimeout     = "GATEWAY_BREAKER_TIMEOUT"

	EnvReleaseSweepEnabled  = "RELEASE_SWEEP_ENABLED"
	EnvReleaseSweepInterval = "RELEASE_SWEEP_INTERVAL"
	EnvReleaseSweepBatch    = "RELEASE_SWEEP_BATCH"
)
