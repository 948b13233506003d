package config

// EnvPrefix is empty because every field carries its fully qualified LABACCESS_ tag.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
	DefaultSQLiteDSN = "file:labaccess.db?cache=shared"

	SheetsBackendGoogle   = "google"
	SheetsBackendWorkbook = "xlsx"

	BadgeStoreDrive = "drive"
	BadgeStoreGCS   = "gcs"
	BadgeStoreDir   = "dir"

	PipelineLockLocal = "local"
	PipelineLockRedis = "redis"
)

const (
	EnvAppEnv   = "LABACCESS_APP_ENV"
	EnvPort     = "LABACCESS_APP_PORT"
	EnvTimeZone = "LABACCESS_TIMEZONE"

	EnvDBDSN    = "LABACCESS_DB_DSN"
	EnvDBDriver = "LABACCESS_DB_DRIVER"
	EnvDBHost   = "LABACCESS_DB_HOST"
	EnvDBUser   = "LABACCESS_DB_USER"
	EnvDBName   = "LABACCESS_DB_NAME"

	EnvRedisURL = "LABACCESS_REDIS_URL"

	EnvSpreadsheetID = "LABACCESS_GOOGLE_SPREADSHEET_ID"
	EnvSheetsBackend = "LABACCESS_SHEETS_BACKEND"
	EnvBadgesStore   = "LABACCESS_BADGES_STORE"
	EnvWebhookSecret = "LABACCESS_WEBHOOK_SECRET"
	EnvPubSubSub     = "LABACCESS_PUBSUB_SUBMISSION_SUBSCRIPTION"
	EnvPipelineLock  = "LABACCESS_PIPELINE_LOCK"
	EnvGCPProjectID  = "LABACCESS_GCP_PROJECT_ID"
	EnvGCSBucket     = "LABACCESS_GCS_BUCKET_NAME"
	EnvQRSize        = "LABACCESS_QR_SIZE"
	EnvUserFormID    = "LABACCESS_SHEETS_USER_FORM_ID"
	EnvBasketFormID  = "LABACCESS_SHEETS_BASKET_FORM_ID"
)

var dbEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
