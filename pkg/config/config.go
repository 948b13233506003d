package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	API      APIConfig
	Service  ServiceConfig
	DB       DBConfig
	Redis    RedisConfig
	Eventing EventingConfig
	GCP      GCPConfig
	Google   GoogleConfig
	Sheets   SheetsConfig
	Mail     MailConfig
	Calendar CalendarConfig
	QR       QRConfig
	Badges   BadgesConfig
	GCS      GCSConfig
	PubSub   PubSubConfig
	Webhook  WebhookConfig
	Pipeline PipelineConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if _, err := cfg.App.Location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LABACCESS_APP_ENV" required:"true"`
	Port         string `envconfig:"LABACCESS_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"LABACCESS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LABACCESS_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"LABACCESS_AUTO_MIGRATE" default:"false"`
	TimeZone     string `envconfig:"LABACCESS_TIMEZONE" default:"America/Chicago"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// Location resolves the configured time zone used for timestamps and activation dates.
func (a AppConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(a.TimeZone)
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("loading time zone %q: %w", name, err)
	}
	return loc, nil
}

// APIConfig controls the optional HTTP surfaces of cmd/api.
type APIConfig struct {
	AllowedOrigins []string `envconfig:"LABACCESS_API_ALLOWED_ORIGINS"`
	// OperatorToken is the bearer token for /api/v1/runs, or its argon2id hash.
	OperatorToken string `envconfig:"LABACCESS_API_OPERATOR_TOKEN"`
}

type ServiceConfig struct {
	Kind string `envconfig:"LABACCESS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"LABACCESS_DB_DSN"`
	Driver string `envconfig:"LABACCESS_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"LABACCESS_DB_HOST"`
	Port     int    `envconfig:"LABACCESS_DB_PORT" default:"5432"`
	User     string `envconfig:"LABACCESS_DB_USER"`
	Password string `envconfig:"LABACCESS_DB_PASSWORD"`
	Name     string `envconfig:"LABACCESS_DB_NAME"`
	SSLMode  string `envconfig:"LABACCESS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LABACCESS_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"LABACCESS_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"LABACCESS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LABACCESS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the audit database runs on the embedded sqlite driver.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"LABACCESS_REDIS_URL"`
	Address      string        `envconfig:"LABACCESS_REDIS_ADDR"`
	Password     string        `envconfig:"LABACCESS_REDIS_PASSWORD"`
	DB           int           `envconfig:"LABACCESS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LABACCESS_REDIS_POOL_SIZE" default:"5"`
	MinIdleConns int           `envconfig:"LABACCESS_REDIS_MIN_IDLE_CONNS" default:"1"`
	DialTimeout  time.Duration `envconfig:"LABACCESS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LABACCESS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LABACCESS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"LABACCESS_EVENTING_IDEMPOTENCY_TTL" default:"168h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"LABACCESS_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"LABACCESS_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"LABACCESS_GOOGLE_APPLICATION_CREDENTIALS"`
}

// GoogleConfig holds the Workspace identities the pipeline acts on behalf of.
type GoogleConfig struct {
	ImpersonateSubject string `envconfig:"LABACCESS_GOOGLE_IMPERSONATE_SUBJECT"`
	SpreadsheetID      string `envconfig:"LABACCESS_GOOGLE_SPREADSHEET_ID"`
	ScriptID           string `envconfig:"LABACCESS_GOOGLE_SCRIPT_ID"`
}

type SheetsConfig struct {
	Backend           string `envconfig:"LABACCESS_SHEETS_BACKEND" default:"google"`
	WorkbookPath      string `envconfig:"LABACCESS_SHEETS_WORKBOOK_PATH" default:"labaccess.xlsx"`
	UserSheet         string `envconfig:"LABACCESS_SHEETS_USER_SHEET" default:"New User Registration"`
	BasketSheet       string `envconfig:"LABACCESS_SHEETS_BASKET_SHEET" default:"Basket Assignment"`
	UserFormID        string `envconfig:"LABACCESS_SHEETS_USER_FORM_ID"`
	BasketFormID      string `envconfig:"LABACCESS_SHEETS_BASKET_FORM_ID"`
	DirectoryLinkBase string `envconfig:"LABACCESS_SHEETS_DIRECTORY_LINK_BASE" default:"https://utdirect.utexas.edu/webapps/eidlisting/eid_details?eid="`
}

// IsWorkbook reports whether sheets are served from a local xlsx workbook.
func (s SheetsConfig) IsWorkbook() bool {
	return strings.EqualFold(strings.TrimSpace(s.Backend), SheetsBackendWorkbook)
}

// FormID returns the form linked to the named sheet.
func (s SheetsConfig) FormID(sheet string) string {
	switch sheet {
	case s.UserSheet:
		return s.UserFormID
	case s.BasketSheet:
		return s.BasketFormID
	default:
		return ""
	}
}

type MailConfig struct {
	Sender     string `envconfig:"LABACCESS_MAIL_SENDER" default:"williamveith@utexas.edu"`
	SMSGateway string `envconfig:"LABACCESS_MAIL_SMS_GATEWAY" default:"9787980710@mms.att.net"`
	// OutboxDir receives .eml files when sheets are served from a workbook.
	OutboxDir string `envconfig:"LABACCESS_MAIL_OUTBOX_DIR" default:"outbox"`
}

type CalendarConfig struct {
	ID string `envconfig:"LABACCESS_CALENDAR_ID" default:"williamveith@utexas.edu"`
	// ICSPath receives events when sheets are served from a workbook.
	ICSPath string `envconfig:"LABACCESS_CALENDAR_ICS_PATH" default:"labaccess.ics"`
}

type QRConfig struct {
	BaseURL string        `envconfig:"LABACCESS_QR_BASE_URL" default:"https://api.qrserver.com/v1/create-qr-code/"`
	Size    int           `envconfig:"LABACCESS_QR_SIZE" default:"255"`
	Timeout time.Duration `envconfig:"LABACCESS_QR_TIMEOUT" default:"10s"`
}

type BadgesConfig struct {
	Store         string `envconfig:"LABACCESS_BADGES_STORE" default:"drive"`
	DriveFolderID string `envconfig:"LABACCESS_BADGES_DRIVE_FOLDER_ID"`
	GCSPrefix     string `envconfig:"LABACCESS_BADGES_GCS_PREFIX" default:"badges"`
	Dir           string `envconfig:"LABACCESS_BADGES_DIR" default:"badges"`
}

// UsesGCS reports whether badge PDFs are written to a bucket instead of Drive.
func (b BadgesConfig) UsesGCS() bool {
	return strings.EqualFold(strings.TrimSpace(b.Store), BadgeStoreGCS)
}

// UsesDir reports whether badge PDFs are written to a local directory.
func (b BadgesConfig) UsesDir() bool {
	return strings.EqualFold(strings.TrimSpace(b.Store), BadgeStoreDir)
}

type GCSConfig struct {
	BucketName string `envconfig:"LABACCESS_GCS_BUCKET_NAME"`
}

type PubSubConfig struct {
	SubmissionTopic        string `envconfig:"LABACCESS_PUBSUB_SUBMISSION_TOPIC" default:"labaccess-form-submissions"`
	SubmissionSubscription string `envconfig:"LABACCESS_PUBSUB_SUBMISSION_SUBSCRIPTION"`
}

type WebhookConfig struct {
	Secret string `envconfig:"LABACCESS_WEBHOOK_SECRET"`
}

type PipelineConfig struct {
	Lock        string        `envconfig:"LABACCESS_PIPELINE_LOCK" default:"local"`
	LockTTL     time.Duration `envconfig:"LABACCESS_PIPELINE_LOCK_TTL" default:"5m"`
	PollEnabled bool          `envconfig:"LABACCESS_PIPELINE_POLL_ENABLED" default:"false"`
	PollEvery   time.Duration `envconfig:"LABACCESS_PIPELINE_POLL_INTERVAL" default:"1m"`
}

// UsesRedisLock reports whether pipeline runs are serialized through redis.
func (p PipelineConfig) UsesRedisLock() bool {
	return strings.EqualFold(strings.TrimSpace(p.Lock), PipelineLockRedis)
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = DefaultSQLiteDSN
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range dbEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
