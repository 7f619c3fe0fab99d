package config

// EnvPrefix namespaces every variable read by Load.
const EnvPrefix = "MERCADITO"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Variable names used by tests and the DSN fallback.
const (
	EnvAppEnv       = "MERCADITO_APP_ENV"
	EnvPort         = "MERCADITO_APP_PORT"
	EnvDBDSN        = "MERCADITO_DB_DSN"
	EnvDBHost       = "MERCADITO_DB_HOST"
	EnvDBUser       = "MERCADITO_DB_USER"
	EnvDBName       = "MERCADITO_DB_NAME"
	EnvRedisURL     = "MERCADITO_REDIS_URL"
	EnvJWTSecret    = "MERCADITO_JWT_SECRET"
	EnvJWTIssuer    = "MERCADITO_JWT_ISSUER"
	EnvJWTExpMins   = "MERCADITO_JWT_EXPIRATION_MINUTES"
	EnvSMTPHost     = "MERCADITO_SMTP_HOST"
	EnvTelegramTok  = "MERCADITO_TELEGRAM_BOT_TOKEN"
	EnvDispatchWait = "MERCADITO_DISPATCH_WAIT_TIMEOUT"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
