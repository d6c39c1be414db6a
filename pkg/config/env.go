package config

const (
	EnvPrefix = "BRANDPAY"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "BRANDPAY_APP_ENV"
	EnvPort     = "BRANDPAY_APP_PORT"
	EnvLogLevel = "BRANDPAY_LOG_LEVEL"

	EnvDBDSN  = "BRANDPAY_DB_DSN"
	EnvDBHost = "BRANDPAY_DB_HOST"
	EnvDBUser = "BRANDPAY_DB_USER"
	EnvDBName = "BRANDPAY_DB_NAME"

	EnvStoreDriver   = "BRANDPAY_STORE_DRIVER"
	EnvMongoURI      = "BRANDPAY_MONGO_URI"
	EnvMongoDatabase = "BRANDPAY_MONGO_DATABASE"

	EnvRedisURL = "BRANDPAY_REDIS_URL"

	EnvJWTSecret  = "BRANDPAY_JWT_SECRET"
	EnvJWTIssuer  = "BRANDPAY_JWT_ISSUER"
	EnvJWTExpMins = "BRANDPAY_JWT_EXPIRATION_MINUTES"

	EnvGCPProjectID      = "BRANDPAY_GCP_PROJECT_ID"
	EnvPubSubCronTopic   = "BRANDPAY_PUBSUB_CRON_TOPIC"
	EnvPubSubCronSub     = "BRANDPAY_PUBSUB_CRON_SUBSCRIPTION"
	EnvPaystackSecret    = "BRANDPAY_PAYSTACK_SECRET_KEY"
	EnvFlutterwaveSecret = "BRANDPAY_FLUTTERWAVE_SECRET_KEY"
	EnvRatesAPIKey       = "BRANDPAY_RATES_API_KEY"
	EnvSettlementDelay   = "BRANDPAY_SETTLEMENT_DELAY"
	EnvPayoutGateway     = "BRANDPAY_SETTLEMENT_PAYOUT_GATEWAY"
)

const (
	StoreDriverSQL   = "sql"
	StoreDriverMongo = "mongo"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
