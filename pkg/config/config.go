package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Proxy         ProxyConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Cron          CronConfig
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
	Env          string `envconfig:"ACCESSHUB_APP_ENV" required:"true"`
	Port         string `envconfig:"ACCESSHUB_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ACCESSHUB_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ACCESSHUB_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ACCESSHUB_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"ACCESSHUB_DB_DSN"`
	Driver string `envconfig:"ACCESSHUB_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ACCESSHUB_DB_HOST"`
	LegacyPort     int    `envconfig:"ACCESSHUB_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ACCESSHUB_DB_USER"`
	LegacyPassword string `envconfig:"ACCESSHUB_DB_PASSWORD"`
	LegacyName     string `envconfig:"ACCESSHUB_DB_NAME"`
	LegacySSLMode  string `envconfig:"ACCESSHUB_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ACCESSHUB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ACCESSHUB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ACCESSHUB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ACCESSHUB_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ACCESSHUB_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ACCESSHUB_REDIS_ADDR"`
	Password     string        `envconfig:"ACCESSHUB_REDIS_PASSWORD"`
	DB           int           `envconfig:"ACCESSHUB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ACCESSHUB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ACCESSHUB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ACCESSHUB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ACCESSHUB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ACCESSHUB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"ACCESSHUB_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"ACCESSHUB_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"ACCESSHUB_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"ACCESSHUB_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"ACCESSHUB_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"ACCESSHUB_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"ACCESSHUB_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"ACCESSHUB_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"ACCESSHUB_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"ACCESSHUB_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"ACCESSHUB_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"ACCESSHUB_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"ACCESSHUB_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"ACCESSHUB_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"ACCESSHUB_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"ACCESSHUB_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"ACCESSHUB_AUTO_MIGRATE" default:"false"`
}

// ProxyConfig configures the EZProxy ticket issuer.
type ProxyConfig struct {
	BaseURL string `envconfig:"ACCESSHUB_PROXY_BASE_URL" required:"true"`
	Secret  string `envconfig:"ACCESSHUB_PROXY_SECRET" required:"true"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"ACCESSHUB_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"ACCESSHUB_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"ACCESSHUB_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	RequestsTopic        string `envconfig:"ACCESSHUB_PUBSUB_REQUESTS_TOPIC" required:"true"`
	RequestsSubscription string `envconfig:"ACCESSHUB_PUBSUB_REQUESTS_SUBSCRIPTION" required:"true"`
	GrantsTopic          string `envconfig:"ACCESSHUB_PUBSUB_GRANTS_TOPIC" required:"true"`
	GrantsSubscription   string `envconfig:"ACCESSHUB_PUBSUB_GRANTS_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"ACCESSHUB_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"ACCESSHUB_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"ACCESSHUB_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval         time.Duration `envconfig:"ACCESSHUB_CRON_INTERVAL" default:"1m"`
	LockTTL          time.Duration `envconfig:"ACCESSHUB_CRON_LOCK_TTL" default:"5m"`
	ReminderLeadDays int           `envconfig:"ACCESSHUB_CRON_REMINDER_LEAD_DAYS" default:"14"`
	OutboxRetention  time.Duration `envconfig:"ACCESSHUB_CRON_OUTBOX_RETENTION" default:"720h"`
	MetricsPort      string        `envconfig:"ACCESSHUB_CRON_METRICS_PORT" default:"9091"`
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
