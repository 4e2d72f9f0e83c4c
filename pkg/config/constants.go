package config

// EnvPrefix namespaces every environment variable the platform reads.
const EnvPrefix = "ROBOJUST"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "ROBOJUST_DB_DSN"
	EnvDBHost = "ROBOJUST_DB_HOST"
	EnvDBUser = "ROBOJUST_DB_USER"
	EnvDBName = "ROBOJUST_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
