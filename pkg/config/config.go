package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	devJWTSecret    = "dev_secret"
	devUploadSecret = "dev_uploads_secret"
)

type Config struct {
	Env        string `mapstructure:"env"`
	Port       int    `mapstructure:"port"`
	APIPrefix  string `mapstructure:"api_prefix"`
	AppBaseURL string `mapstructure:"app_base_url"`

	Database  DatabaseConfig  `mapstructure:"db"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Log       LogConfig       `mapstructure:"log"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Table     TableConfig     `mapstructure:"table"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Uploads   UploadsConfig   `mapstructure:"uploads"`
	Import    ImportConfig    `mapstructure:"import"`
	Mail      MailConfig      `mapstructure:"mail"`
	Legacy    LegacyConfig    `mapstructure:"legacy"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"ssl_mode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret            string        `mapstructure:"secret"`
	Expiration        time.Duration `mapstructure:"expiration"`
	RefreshExpiration time.Duration `mapstructure:"refresh_expiration"`
	ResetExpiration   time.Duration `mapstructure:"reset_expiration"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CacheConfig toggles the Redis read-through cache.
type CacheConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// TableConfig tunes the server-side table view.
type TableConfig struct {
	FetchLimit int           `mapstructure:"fetch_limit"`
	PageSize   int           `mapstructure:"page_size"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
}

type DashboardConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// UploadsConfig controls where files land and which ones are accepted.
type UploadsConfig struct {
	StorageDir       string        `mapstructure:"storage_dir"`
	SignedURLSecret  string        `mapstructure:"signed_url_secret"`
	SignedURLTTL     time.Duration `mapstructure:"signed_url_ttl"`
	MaxFileSizeBytes int64         `mapstructure:"max_file_size"`
	AllowedMIMEs     []string      `mapstructure:"allowed_mimes"`
}

type ImportConfig struct {
	MaxRows int `mapstructure:"max_rows"`
}

// MailConfig configures outbound mail and the delivery queue.
type MailConfig struct {
	ResendAPIKey string `mapstructure:"resend_api_key"`
	From         string `mapstructure:"from"`
	Workers      int    `mapstructure:"workers"`
	Retries      int    `mapstructure:"retries"`
}

// LegacyConfig points the legacy-import command at the old content API.
type LegacyConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// setting binds one config key to its environment variable and default.
type setting struct {
	key string
	env string
	def interface{}
}

var settings = []setting{
	{"env", "ENV", EnvDevelopment},
	{"port", "PORT", 8080},
	{"api_prefix", "API_PREFIX", "/api/v1"},
	{"app_base_url", "APP_BASE_URL", "http://localhost:3000"},

	{"db.host", "DB_HOST", "localhost"},
	{"db.port", "DB_PORT", 5432},
	{"db.user", "DB_USER", "postgres"},
	{"db.password", "DB_PASSWORD", "postgres"},
	{"db.name", "DB_NAME", "edu_crm"},
	{"db.ssl_mode", "DB_SSL_MODE", "disable"},
	{"db.max_open_conns", "DB_MAX_OPEN_CONNS", 10},
	{"db.max_idle_conns", "DB_MAX_IDLE_CONNS", 5},

	{"redis.host", "REDIS_HOST", "localhost"},
	{"redis.port", "REDIS_PORT", 6379},
	{"redis.password", "REDIS_PASSWORD", ""},
	{"redis.db", "REDIS_DB", 0},

	{"jwt.secret", "JWT_SECRET", devJWTSecret},
	{"jwt.expiration", "JWT_EXPIRATION", "24h"},
	{"jwt.refresh_expiration", "REFRESH_TOKEN_EXPIRATION", "168h"},
	{"jwt.reset_expiration", "PASSWORD_RESET_TTL", "30m"},

	{"cors.allowed_origins", "ALLOWED_ORIGINS", ""},
	{"log.level", "LOG_LEVEL", "info"},
	{"log.format", "LOG_FORMAT", "json"},

	{"cache.enabled", "ENABLE_CACHE", false},
	{"table.fetch_limit", "TABLE_FETCH_LIMIT", 1000},
	{"table.page_size", "TABLE_PAGE_SIZE", 10},
	{"table.cache_ttl", "TABLE_CACHE_TTL", "1m"},
	{"dashboard.cache_ttl", "DASHBOARD_CACHE_TTL", "5m"},

	{"uploads.storage_dir", "UPLOADS_STORAGE_DIR", "./uploads"},
	{"uploads.signed_url_secret", "UPLOADS_SIGNED_URL_SECRET", devUploadSecret},
	{"uploads.signed_url_ttl", "UPLOADS_SIGNED_URL_TTL", "24h"},
	{"uploads.max_file_size", "UPLOADS_MAX_FILE_SIZE", 10 << 20},
	{"uploads.allowed_mimes", "UPLOADS_ALLOWED_MIME_TYPES", "application/pdf,image/jpeg,image/png," +
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document," +
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},

	{"import.max_rows", "IMPORT_MAX_ROWS", 5000},

	{"mail.resend_api_key", "RESEND_API_KEY", ""},
	{"mail.from", "MAIL_FROM", "EduCRM <no-reply@localhost>"},
	{"mail.workers", "MAIL_WORKERS", 1},
	{"mail.retries", "MAIL_RETRIES", 3},

	{"legacy.base_url", "LEGACY_API_URL", ""},
	{"legacy.token", "LEGACY_API_TOKEN", ""},
	{"legacy.timeout", "LEGACY_API_TIMEOUT", "30s"},
}

// Load reads an optional .env file into the environment, then decodes every
// known variable. Malformed durations or numbers fail the load.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for _, s := range settings {
		v.SetDefault(s.key, s.def)
		if err := v.BindEnv(s.key, s.env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", s.env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.AppBaseURL = strings.TrimRight(c.AppBaseURL, "/")
	c.Legacy.BaseURL = strings.TrimRight(c.Legacy.BaseURL, "/")
	c.CORS.AllowedOrigins = trimList(c.CORS.AllowedOrigins)
	c.Uploads.AllowedMIMEs = trimList(c.Uploads.AllowedMIMEs)

	atLeast(&c.Table.FetchLimit, 1000)
	atLeast(&c.Table.PageSize, 10)
	atLeast(&c.Import.MaxRows, 5000)
	atLeast(&c.Mail.Workers, 1)
	if c.Uploads.MaxFileSizeBytes <= 0 {
		c.Uploads.MaxFileSizeBytes = 10 << 20
	}
	if c.Mail.Retries < 0 {
		c.Mail.Retries = 0
	}
}

// validate refuses to run production on the development signing secrets.
func (c *Config) validate() error {
	if c.Env != EnvProduction {
		return nil
	}
	var errs []error
	if c.JWT.Secret == "" || c.JWT.Secret == devJWTSecret {
		errs = append(errs, errors.New("JWT_SECRET must be set in production"))
	}
	if c.Uploads.SignedURLSecret == "" || c.Uploads.SignedURLSecret == devUploadSecret {
		errs = append(errs, errors.New("UPLOADS_SIGNED_URL_SECRET must be set in production"))
	}
	return errors.Join(errs...)
}

func atLeast(v *int, fallback int) {
	if *v <= 0 {
		*v = fallback
	}
}

func trimList(in []string) []string {
	var out []string
	for _, item := range in {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
