package config

// EnvPrefix namespaces every environment variable consumed by the platform.
const EnvPrefix = "LEARNSPHERE"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

// Environment variable names referenced outside struct tags (error messages,
// tests).
const (
	EnvAppEnv   = "LEARNSPHERE_APP_ENV"
	EnvPort     = "LEARNSPHERE_APP_PORT"
	EnvDBDSN    = "LEARNSPHERE_DB_DSN"
	EnvDBHost   = "LEARNSPHERE_DB_HOST"
	EnvDBUser   = "LEARNSPHERE_DB_USER"
	EnvDBName   = "LEARNSPHERE_DB_NAME"
	EnvRedisURL = "LEARNSPHERE_REDIS_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
