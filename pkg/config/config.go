package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Store        StoreConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Paystack     PaystackConfig
	Flutterwave  FlutterwaveConfig
	Rates        RatesConfig
	Settlement   SettlementConfig
	Partner      PartnerConfig
	Cron         CronConfig
	RateLimit    RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Store.validate(); err != nil {
		return nil, err
	}
	if cfg.Store.Driver == StoreDriverSQL {
		if err := cfg.DB.ensureDSN(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BRANDPAY_APP_ENV" required:"true"`
	Port         string `envconfig:"BRANDPAY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BRANDPAY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BRANDPAY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"BRANDPAY_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"BRANDPAY_DB_DSN"`
	Driver string `envconfig:"BRANDPAY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BRANDPAY_DB_HOST"`
	LegacyPort     int    `envconfig:"BRANDPAY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BRANDPAY_DB_USER"`
	LegacyPassword string `envconfig:"BRANDPAY_DB_PASSWORD"`
	LegacyName     string `envconfig:"BRANDPAY_DB_NAME"`
	LegacySSLMode  string `envconfig:"BRANDPAY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BRANDPAY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BRANDPAY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BRANDPAY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BRANDPAY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// StoreConfig selects the document store backend.
type StoreConfig struct {
	Driver        string        `envconfig:"BRANDPAY_STORE_DRIVER" default:"sql"`
	MongoURI      string        `envconfig:"BRANDPAY_MONGO_URI"`
	MongoDatabase string        `envconfig:"BRANDPAY_MONGO_DATABASE" default:"brandpay"`
	LockTTL       time.Duration `envconfig:"BRANDPAY_STORE_LOCK_TTL" default:"10m"`
	QueryTimeout  time.Duration `envconfig:"BRANDPAY_STORE_QUERY_TIMEOUT" default:"10s"`
}

func (s StoreConfig) validate() error {
	switch s.Driver {
	case StoreDriverSQL:
		return nil
	case StoreDriverMongo:
		if s.MongoURI == "" {
			return fmt.Errorf("%s is required when %s=%s", EnvMongoURI, EnvStoreDriver, StoreDriverMongo)
		}
		return nil
	}
	return fmt.Errorf("unsupported %s %q", EnvStoreDriver, s.Driver)
}

type RedisConfig struct {
	URL          string        `envconfig:"BRANDPAY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BRANDPAY_REDIS_ADDR"`
	Password     string        `envconfig:"BRANDPAY_REDIS_PASSWORD"`
	DB           int           `envconfig:"BRANDPAY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BRANDPAY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BRANDPAY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BRANDPAY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BRANDPAY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BRANDPAY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"BRANDPAY_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"BRANDPAY_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"BRANDPAY_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"BRANDPAY_AUTO_MIGRATE" default:"false"`
	// LocalCronTrigger runs triggered sweeps in-process instead of publishing them.
	LocalCronTrigger bool `envconfig:"BRANDPAY_LOCAL_CRON_TRIGGER" default:"false"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"BRANDPAY_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	CronTopic        string `envconfig:"BRANDPAY_PUBSUB_CRON_TOPIC" default:"brandpay-cron-triggers"`
	CronSubscription string `envconfig:"BRANDPAY_PUBSUB_CRON_SUBSCRIPTION" default:"brandpay-cron-triggers-sub"`
}

type PaystackConfig struct {
	SecretKey string        `envconfig:"BRANDPAY_PAYSTACK_SECRET_KEY"`
	BaseURL   string        `envconfig:"BRANDPAY_PAYSTACK_BASE_URL" default:"https://api.paystack.co"`
	Timeout   time.Duration `envconfig:"BRANDPAY_PAYSTACK_TIMEOUT" default:"30s"`
}

type FlutterwaveConfig struct {
	SecretKey string        `envconfig:"BRANDPAY_FLUTTERWAVE_SECRET_KEY"`
	BaseURL   string        `envconfig:"BRANDPAY_FLUTTERWAVE_BASE_URL" default:"https://api.flutterwave.com/v3"`
	Timeout   time.Duration `envconfig:"BRANDPAY_FLUTTERWAVE_TIMEOUT" default:"30s"`
}

type RatesConfig struct {
	APIKey        string        `envconfig:"BRANDPAY_RATES_API_KEY"`
	FXBaseURL     string        `envconfig:"BRANDPAY_RATES_FX_BASE_URL" default:"https://api.exchangeratesapi.io/v1"`
	CryptoBaseURL string        `envconfig:"BRANDPAY_RATES_CRYPTO_BASE_URL" default:"https://api.coinbase.com/v2"`
	CryptoSymbols []string      `envconfig:"BRANDPAY_RATES_CRYPTO_SYMBOLS" default:"BTC,ETH,USDT"`
	CacheTTL      time.Duration `envconfig:"BRANDPAY_RATES_CACHE_TTL" default:"10m"`
}

// SettlementConfig tunes commission settlement and the payout batch.
type SettlementConfig struct {
	Delay            time.Duration `envconfig:"BRANDPAY_SETTLEMENT_DELAY" default:"24h"`
	WalletThreshold  string        `envconfig:"BRANDPAY_SETTLEMENT_WALLET_THRESHOLD_NGN" default:"1000"`
	PayoutGateway    string        `envconfig:"BRANDPAY_SETTLEMENT_PAYOUT_GATEWAY" default:"paystack"`
	BatchSize        int           `envconfig:"BRANDPAY_SETTLEMENT_BATCH_SIZE" default:"10"`
	DefaultMilleRate string        `envconfig:"BRANDPAY_SETTLEMENT_DEFAULT_MILLE_RATE" default:"1"`
}

// Threshold returns the NGN amount below which commissions settle to wallets.
func (s SettlementConfig) Threshold() decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s.WalletThreshold))
	if err != nil {
		return decimal.NewFromInt(1000)
	}
	return d
}

// MilleRate returns the default reward rate in points per thousand.
func (s SettlementConfig) MilleRate() decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s.DefaultMilleRate))
	if err != nil {
		return decimal.Zero
	}
	return d
}

type PartnerConfig struct {
	BaseURL string        `envconfig:"BRANDPAY_PARTNER_BASE_URL"`
	APIKey  string        `envconfig:"BRANDPAY_PARTNER_API_KEY"`
	Timeout time.Duration `envconfig:"BRANDPAY_PARTNER_TIMEOUT" default:"45s"`
}

// RateLimitConfig throttles money-moving endpoints per user.
type RateLimitConfig struct {
	WithdrawalWindow time.Duration `envconfig:"BRANDPAY_RATE_LIMIT_WITHDRAWAL_WINDOW" default:"1m"`
	WithdrawalLimit  int           `envconfig:"BRANDPAY_RATE_LIMIT_WITHDRAWAL_LIMIT" default:"5"`
	CheckoutWindow   time.Duration `envconfig:"BRANDPAY_RATE_LIMIT_CHECKOUT_WINDOW" default:"1m"`
	CheckoutLimit    int           `envconfig:"BRANDPAY_RATE_LIMIT_CHECKOUT_LIMIT" default:"30"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"BRANDPAY_CRON_INTERVAL" default:"5m"`
	LockTTL  time.Duration `envconfig:"BRANDPAY_CRON_LOCK_TTL" default:"30m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
