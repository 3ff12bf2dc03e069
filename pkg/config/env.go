package config

const (
	// EnvPrefix is empty because every field tag carries the full variable name.
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "CAFEQUEUE_APP_ENV"
	EnvPort     = "CAFEQUEUE_APP_PORT"
	EnvDBDSN    = "CAFEQUEUE_DB_DSN"
	EnvDBHost   = "CAFEQUEUE_DB_HOST"
	EnvDBUser   = "CAFEQUEUE_DB_USER"
	EnvDBName   = "CAFEQUEUE_DB_NAME"
	EnvRedisURL = "CAFEQUEUE_REDIS_URL"

	EnvJWTSecret  = "CAFEQUEUE_JWT_SECRET"
	EnvJWTIssuer  = "CAFEQUEUE_JWT_ISSUER"
	EnvJWTExpMins = "CAFEQUEUE_JWT_EXPIRATION_MINUTES"

	EnvCheckoutTaxRateBps     = "CAFEQUEUE_CHECKOUT_TAX_RATE_BPS"
	EnvCheckoutPlatformFeeBps = "CAFEQUEUE_CHECKOUT_PLATFORM_FEE_BPS"
	EnvCheckoutReservationTTL = "CAFEQUEUE_CHECKOUT_RESERVATION_TTL"
	EnvNotifierPollInterval   = "CAFEQUEUE_NOTIFIER_POLL_INTERVAL"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
