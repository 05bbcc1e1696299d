package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix namespaces every environment variable the service reads.
	EnvPrefix = "PAYWALLET"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	APIKey        APIKeyConfig
	Paystack      PaystackConfig
	Webhook       WebhookConfig
	FeatureFlags  FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PAYWALLET_APP_ENV" required:"true"`
	Port         string `envconfig:"PAYWALLET_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"PAYWALLET_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PAYWALLET_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"PAYWALLET_DB_DSN"`
	Driver string `envconfig:"PAYWALLET_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"PAYWALLET_DB_HOST"`
	Port     int    `envconfig:"PAYWALLET_DB_PORT" default:"5432"`
	User     string `envconfig:"PAYWALLET_DB_USER"`
	Password string `envconfig:"PAYWALLET_DB_PASSWORD"`
	Name     string `envconfig:"PAYWALLET_DB_NAME"`
	SSLMode  string `envconfig:"PAYWALLET_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PAYWALLET_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PAYWALLET_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PAYWALLET_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PAYWALLET_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PAYWALLET_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PAYWALLET_REDIS_ADDR"`
	Password     string        `envconfig:"PAYWALLET_REDIS_PASSWORD"`
	DB           int           `envconfig:"PAYWALLET_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PAYWALLET_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PAYWALLET_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PAYWALLET_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PAYWALLET_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PAYWALLET_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"PAYWALLET_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"PAYWALLET_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"PAYWALLET_JWT_EXPIRATION_MINUTES" default:"30"`
	RefreshTokenTTLMinutes int    `envconfig:"PAYWALLET_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"PAYWALLET_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"PAYWALLET_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"PAYWALLET_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"PAYWALLET_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"PAYWALLET_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"PAYWALLET_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"PAYWALLET_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"PAYWALLET_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"PAYWALLET_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"PAYWALLET_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"PAYWALLET_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type APIKeyConfig struct {
	MaxLiveKeys   int           `envconfig:"PAYWALLET_API_KEY_MAX_LIVE" default:"5"`
	CacheTTL      time.Duration `envconfig:"PAYWALLET_API_KEY_CACHE_TTL" default:"5m"`
	DefaultExpiry string        `envconfig:"PAYWALLET_API_KEY_DEFAULT_EXPIRY" default:"1Y"`
}

type PaystackConfig struct {
	SecretKey string        `envconfig:"PAYWALLET_PAYSTACK_SECRET_KEY" required:"true"`
	BaseURL   string        `envconfig:"PAYWALLET_PAYSTACK_BASE_URL" default:"https://api.paystack.co"`
	Timeout   time.Duration `envconfig:"PAYWALLET_PAYSTACK_TIMEOUT" default:"30s"`
}

type WebhookConfig struct {
	IdempotencyTTL time.Duration `envconfig:"PAYWALLET_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"PAYWALLET_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	required := map[string]string{
		"PAYWALLET_DB_HOST": db.Host,
		"PAYWALLET_DB_USER": db.User,
		"PAYWALLET_DB_NAME": db.Name,
	}
	for _, env := range []string{"PAYWALLET_DB_HOST", "PAYWALLET_DB_USER", "PAYWALLET_DB_NAME"} {
		if required[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either PAYWALLET_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
