package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	FeatureFlags FeatureFlagsConfig
	Razorpay     RazorpayConfig
	Sendgrid     SendgridConfig
	Webhook      WebhookConfig
	CORS         CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Razorpay.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ROBOJUST_APP_ENV" required:"true"`
	Port         string `envconfig:"ROBOJUST_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ROBOJUST_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ROBOJUST_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"ROBOJUST_DB_DSN"`
	Driver string `envconfig:"ROBOJUST_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ROBOJUST_DB_HOST"`
	LegacyPort     int    `envconfig:"ROBOJUST_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ROBOJUST_DB_USER"`
	LegacyPassword string `envconfig:"ROBOJUST_DB_PASSWORD"`
	LegacyName     string `envconfig:"ROBOJUST_DB_NAME"`
	LegacySSLMode  string `envconfig:"ROBOJUST_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ROBOJUST_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ROBOJUST_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ROBOJUST_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ROBOJUST_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ROBOJUST_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ROBOJUST_REDIS_ADDR"`
	Password     string        `envconfig:"ROBOJUST_REDIS_PASSWORD"`
	DB           int           `envconfig:"ROBOJUST_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ROBOJUST_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ROBOJUST_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ROBOJUST_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ROBOJUST_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ROBOJUST_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"ROBOJUST_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"ROBOJUST_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"ROBOJUST_JWT_EXPIRATION_MINUTES" default:"60"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"ROBOJUST_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"ROBOJUST_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"ROBOJUST_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"ROBOJUST_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"ROBOJUST_ARGON_KEY_LEN" default:"32"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"ROBOJUST_AUTO_MIGRATE" default:"false"`
}

// RazorpayConfig carries the gateway credentials. All three values are
// injected; none of them is ever logged.
type RazorpayConfig struct {
	KeyID          string        `envconfig:"ROBOJUST_RAZORPAY_KEY_ID"`
	KeySecret      string        `envconfig:"ROBOJUST_RAZORPAY_KEY_SECRET"`
	WebhookSecret  string        `envconfig:"ROBOJUST_RAZORPAY_WEBHOOK_SECRET"`
	RequestTimeout time.Duration `envconfig:"ROBOJUST_RAZORPAY_REQUEST_TIMEOUT" default:"10s"`
}

func (r RazorpayConfig) validate() error {
	missing := []string{}
	if strings.TrimSpace(r.KeyID) == "" {
		missing = append(missing, "ROBOJUST_RAZORPAY_KEY_ID")
	}
	if strings.TrimSpace(r.KeySecret) == "" {
		missing = append(missing, "ROBOJUST_RAZORPAY_KEY_SECRET")
	}
	if strings.TrimSpace(r.WebhookSecret) == "" {
		missing = append(missing, "ROBOJUST_RAZORPAY_WEBHOOK_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s are required", strings.Join(missing, ", "))
	}
	return nil
}

type SendgridConfig struct {
	APIKey      string `envconfig:"ROBOJUST_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"ROBOJUST_SENDGRID_FROM_EMAIL"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"ROBOJUST_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

// WebhookConfig tunes webhook idempotency. The TTL must outlast the gateway's
// maximum retry window so a late redelivery still hits the processed-keys set.
type WebhookConfig struct {
	IdempotencyTTL time.Duration `envconfig:"ROBOJUST_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
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
