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
	FeatureFlags  FeatureFlagsConfig
	Credits       CreditsConfig
	Reclaim       ReclaimConfig
	RateLimit     RateLimitConfig
	Cron          CronConfig
	Notifications NotificationsConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Credits.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TALENTLOOP_APP_ENV" required:"true"`
	Port         string `envconfig:"TALENTLOOP_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TALENTLOOP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TALENTLOOP_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"TALENTLOOP_LOG_FORMAT" default:"json"`

	CORSAllowedOrigins []string `envconfig:"TALENTLOOP_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"TALENTLOOP_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"TALENTLOOP_DB_DSN"`
	Driver string `envconfig:"TALENTLOOP_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TALENTLOOP_DB_HOST"`
	LegacyPort     int    `envconfig:"TALENTLOOP_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TALENTLOOP_DB_USER"`
	LegacyPassword string `envconfig:"TALENTLOOP_DB_PASSWORD"`
	LegacyName     string `envconfig:"TALENTLOOP_DB_NAME"`
	LegacySSLMode  string `envconfig:"TALENTLOOP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TALENTLOOP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TALENTLOOP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TALENTLOOP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TALENTLOOP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TALENTLOOP_REDIS_URL"`
	Address      string        `envconfig:"TALENTLOOP_REDIS_ADDR"`
	Password     string        `envconfig:"TALENTLOOP_REDIS_PASSWORD"`
	DB           int           `envconfig:"TALENTLOOP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TALENTLOOP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TALENTLOOP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TALENTLOOP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TALENTLOOP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TALENTLOOP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"TALENTLOOP_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"TALENTLOOP_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"TALENTLOOP_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"TALENTLOOP_AUTO_MIGRATE" default:"false"`
}

// CreditsConfig tunes invitation pricing and balance alerts.
type CreditsConfig struct {
	InviteCost          int `envconfig:"TALENTLOOP_CREDITS_INVITE_COST" default:"1"`
	DefaultInviteDays   int `envconfig:"TALENTLOOP_CREDITS_DEFAULT_INVITE_DAYS" default:"7"`
	MaxInviteDays       int `envconfig:"TALENTLOOP_CREDITS_MAX_INVITE_DAYS" default:"90"`
	LowBalanceThreshold int `envconfig:"TALENTLOOP_CREDITS_LOW_BALANCE_THRESHOLD" default:"0"`
}

func (c CreditsConfig) validate() error {
	if c.InviteCost <= 0 {
		return fmt.Errorf("%s must be positive", EnvCreditsInviteCost)
	}
	if c.DefaultInviteDays <= 0 || c.DefaultInviteDays > c.MaxInviteDays {
		return fmt.Errorf("%s must be between 1 and %s", EnvCreditsDefaultInviteDays, EnvCreditsMaxInviteDays)
	}
	return nil
}

// ReclaimConfig configures the uncompleted-invite refund run and its scheduler trigger.
type ReclaimConfig struct {
	BatchSize          int    `envconfig:"TALENTLOOP_RECLAIM_BATCH_SIZE" default:"100"`
	Concurrency        int    `envconfig:"TALENTLOOP_RECLAIM_CONCURRENCY" default:"1"`
	CronSecret         string `envconfig:"TALENTLOOP_CRON_SECRET"`
	TrustedHeader      string `envconfig:"TALENTLOOP_CRON_TRUSTED_HEADER"`
	TrustedHeaderValue string `envconfig:"TALENTLOOP_CRON_TRUSTED_HEADER_VALUE"`
}

// RateLimitConfig throttles the candidate submission and scheduler surfaces.
type RateLimitConfig struct {
	Window         time.Duration `envconfig:"TALENTLOOP_RATE_LIMIT_WINDOW" default:"1m"`
	CandidateLimit int           `envconfig:"TALENTLOOP_RATE_LIMIT_CANDIDATE" default:"30"`
	CronIPLimit    int           `envconfig:"TALENTLOOP_RATE_LIMIT_CRON_IP" default:"10"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"TALENTLOOP_CRON_INTERVAL" default:"24h"`
	LockTTL  time.Duration `envconfig:"TALENTLOOP_CRON_LOCK_TTL" default:"25h"`
	// JobTimeout caps a single job; zero disables the cap.
	JobTimeout time.Duration `envconfig:"TALENTLOOP_CRON_JOB_TIMEOUT" default:"30m"`
}

type NotificationsConfig struct {
	RetentionDays int `envconfig:"TALENTLOOP_NOTIFICATIONS_RETENTION_DAYS" default:"30"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"TALENTLOOP_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	EventsTopic string `envconfig:"TALENTLOOP_PUBSUB_EVENTS_TOPIC" default:"talentloop-domain-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"TALENTLOOP_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"TALENTLOOP_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"TALENTLOOP_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"TALENTLOOP_OUTBOX_RETENTION_DAYS" default:"30"`
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
