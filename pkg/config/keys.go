package config

// EnvPrefix is handed to envconfig; every field carries its full key explicitly.
const EnvPrefix = "TALENTLOOP"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv      = "TALENTLOOP_APP_ENV"
	EnvPort        = "TALENTLOOP_APP_PORT"
	EnvDBDSN       = "TALENTLOOP_DB_DSN"
	EnvDBHost      = "TALENTLOOP_DB_HOST"
	EnvDBUser      = "TALENTLOOP_DB_USER"
	EnvDBName      = "TALENTLOOP_DB_NAME"
	EnvDBPassword  = "TALENTLOOP_DB_PASSWORD"
	EnvRedisURL    = "TALENTLOOP_REDIS_URL"
	EnvJWTSecret   = "TALENTLOOP_JWT_SECRET"
	EnvJWTIssuer   = "TALENTLOOP_JWT_ISSUER"
	EnvCronSecret  = "TALENTLOOP_CRON_SECRET"
	EnvReclaimSize = "TALENTLOOP_RECLAIM_BATCH_SIZE"

	EnvCreditsInviteCost        = "TALENTLOOP_CREDITS_INVITE_COST"
	EnvCreditsDefaultInviteDays = "TALENTLOOP_CREDITS_DEFAULT_INVITE_DAYS"
	EnvCreditsMaxInviteDays     = "TALENTLOOP_CREDITS_MAX_INVITE_DAYS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
