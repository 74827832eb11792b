package config

const (
	// EnvPrefix is passed to envconfig; individual fields carry explicit
	// QMS_-prefixed names so the prefix stays empty here.
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "QMS_DB_DSN"
	EnvDBHost = "QMS_DB_HOST"
	EnvDBUser = "QMS_DB_USER"
	EnvDBName = "QMS_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
