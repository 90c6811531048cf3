package config

// EnvPrefix namespaces every variable read by Load.
const EnvPrefix = "COMMERCE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv      = "COMMERCE_APP_ENV"
	EnvPort        = "COMMERCE_APP_PORT"
	EnvLogLevel    = "COMMERCE_LOG_LEVEL"
	EnvDBDSN       = "COMMERCE_DB_DSN"
	EnvDBHost      = "COMMERCE_DB_HOST"
	EnvDBUser      = "COMMERCE_DB_USER"
	EnvDBName      = "COMMERCE_DB_NAME"
	EnvRedisURL    = "COMMERCE_REDIS_URL"
	EnvJWTSecret   = "COMMERCE_JWT_SECRET"
	EnvJWTIssuer   = "COMMERCE_JWT_ISSUER"
	EnvTaxRate     = "COMMERCE_TAX_RATE"
	EnvShippingFee = "COMMERCE_SHIPPING_FEE"
	EnvCartTTL     = "COMMERCE_CART_TTL"
	EnvRestock     = "COMMERCE_RESTOCK_ON_REFUND"
	EnvGCPProject  = "COMMERCE_GCP_PROJECT_ID"
	EnvOrdersTopic = "COMMERCE_PUBSUB_ORDERS_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
