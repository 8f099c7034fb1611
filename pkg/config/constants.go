package config

// EnvPrefix is empty because every envconfig tag carries the full
// ACCESSHUB_-prefixed variable name.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Environment variable names referenced outside struct tags.
const (
	EnvAppEnv                 = "ACCESSHUB_APP_ENV"
	EnvPort                   = "ACCESSHUB_APP_PORT"
	EnvDBDSN                  = "ACCESSHUB_DB_DSN"
	EnvDBHost                 = "ACCESSHUB_DB_HOST"
	EnvDBUser                 = "ACCESSHUB_DB_USER"
	EnvDBName                 = "ACCESSHUB_DB_NAME"
	EnvRedisURL               = "ACCESSHUB_REDIS_URL"
	EnvJWTSecret              = "ACCESSHUB_JWT_SECRET"
	EnvJWTIssuer              = "ACCESSHUB_JWT_ISSUER"
	EnvJWTExpMins             = "ACCESSHUB_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "ACCESSHUB_REFRESH_TOKEN_TTL_MINUTES"
	EnvProxyBaseURL           = "ACCESSHUB_PROXY_BASE_URL"
	EnvProxySecret            = "ACCESSHUB_PROXY_SECRET"
	EnvGCPProjectID           = "ACCESSHUB_GCP_PROJECT_ID"
	EnvPubSubRequestsTopic    = "ACCESSHUB_PUBSUB_REQUESTS_TOPIC"
	EnvPubSubRequestsSub      = "ACCESSHUB_PUBSUB_REQUESTS_SUBSCRIPTION"
	EnvPubSubGrantsTopic      = "ACCESSHUB_PUBSUB_GRANTS_TOPIC"
	EnvPubSubGrantsSub        = "ACCESSHUB_PUBSUB_GRANTS_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
