package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server   ServerConfig
	App      AppConfig
	Backend  BackendConfig
	Cache    CacheConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Upload   UploadConfig
	Offline  OfflineConfig
	Auth     AuthConfig
	Feedback FeedbackConfig
	Mongo    MongoConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"90s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	AllowedOrigins  []string      `envconfig:"SERVER_ALLOWED_ORIGINS" default:"*"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"portal-api"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Debug       bool   `envconfig:"APP_DEBUG" default:"false"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
	PublicURL   string `envconfig:"APP_PUBLIC_URL" default:"http://localhost:8080"`
}

// BackendConfig selects the remote records backend.
type BackendConfig struct {
	Type string `envconfig:"BACKEND_TYPE" default:"sqlite"` // sqlite, postgres, or mysql
	Path string `envconfig:"BACKEND_SQLITE_PATH" default:"./data/portal.db"`

	Host     string `envconfig:"BACKEND_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"BACKEND_DB_PORT" default:"5432"`
	Name     string `envconfig:"BACKEND_DB_NAME" default:"portal"`
	User     string `envconfig:"BACKEND_DB_USER" default:"postgres"`
	Password string `envconfig:"BACKEND_DB_PASS" default:""`
	SSLMode  string `envconfig:"BACKEND_DB_SSLMODE" default:"require"`

	// Retry budget for reads against the backend.
	RetryAttempts  int           `envconfig:"BACKEND_RETRY_ATTEMPTS" default:"4"`
	RetryBaseDelay time.Duration `envconfig:"BACKEND_RETRY_BASE_DELAY" default:"1s"`
	RetryMaxDelay  time.Duration `envconfig:"BACKEND_RETRY_MAX_DELAY" default:"10s"`
}

// CacheConfig holds the per-entity TTLs of the read-through caches.
type CacheConfig struct {
	PublishedTTL time.Duration `envconfig:"CACHE_PUBLISHED_TTL" default:"2m"`
	PopularTTL   time.Duration `envconfig:"CACHE_POPULAR_TTL" default:"5m"`
	DetailTTL    time.Duration `envconfig:"CACHE_DETAIL_TTL" default:"10m"`
	RelatedTTL   time.Duration `envconfig:"CACHE_RELATED_TTL" default:"15m"`
}

// RedisConfig holds Redis connection settings. Redis is optional.
type RedisConfig struct {
	Enabled  bool   `envconfig:"REDIS_ENABLED" default:"false"`
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// StorageConfig selects the object store used for image uploads.
type StorageConfig struct {
	Type      string `envconfig:"STORAGE_TYPE" default:"disk"` // disk or http
	Bucket    string `envconfig:"STORAGE_BUCKET" default:"images"`
	BaseURL   string `envconfig:"STORAGE_BASE_URL" default:""`
	APIKey    string `envconfig:"STORAGE_API_KEY" default:""`
	DiskPath  string `envconfig:"STORAGE_DISK_PATH" default:"./data/media"`
	MediaPath string `envconfig:"STORAGE_MEDIA_PATH" default:"/media"`
}

// UploadConfig holds image ingestion limits.
type UploadConfig struct {
	MaxBytes       int64         `envconfig:"UPLOAD_MAX_BYTES" default:"5242880"`
	AllowedTypes   []string      `envconfig:"UPLOAD_ALLOWED_TYPES" default:"image/jpeg,image/png,image/gif,image/webp"`
	Timeout        time.Duration `envconfig:"UPLOAD_TIMEOUT" default:"30s"`
	VerifyTimeout  time.Duration `envconfig:"UPLOAD_VERIFY_TIMEOUT" default:"10s"`
	MaxWidth       int           `envconfig:"UPLOAD_MAX_WIDTH" default:"1200"`
	MaxHeight      int           `envconfig:"UPLOAD_MAX_HEIGHT" default:"1600"`
	Quality        int           `envconfig:"UPLOAD_QUALITY" default:"80"`
	MaxPixels      int64         `envconfig:"UPLOAD_MAX_PIXELS" default:"40000000"`
	MaxInlineBytes int           `envconfig:"UPLOAD_MAX_INLINE_BYTES" default:"1048576"`
}

// OfflineConfig configures the edge cache manager.
type OfflineConfig struct {
	Origin         string        `envconfig:"OFFLINE_ORIGIN" default:"http://localhost:8080"`
	ListenPort     int           `envconfig:"OFFLINE_PORT" default:"8081"`
	Version        string        `envconfig:"OFFLINE_CACHE_VERSION" default:"v1"`
	StorePath      string        `envconfig:"OFFLINE_STORE_PATH" default:"./data/offline.db"`
	Precache       []string      `envconfig:"OFFLINE_PRECACHE" default:"/,/static/app.css,/static/app.js,/static/logo.png"`
	StaticMax      int           `envconfig:"OFFLINE_STATIC_MAX" default:"60"`
	DynamicMax     int           `envconfig:"OFFLINE_DYNAMIC_MAX" default:"50"`
	RefreshTimeout time.Duration `envconfig:"OFFLINE_REFRESH_TIMEOUT" default:"15s"`
}

// AuthConfig holds admin identity settings.
type AuthConfig struct {
	LoginKey  string        `envconfig:"LOGIN_KEY" default:""` // Admin console login key
	JWTSecret string        `envconfig:"JWT_SECRET" default:""`
	Issuer    string        `envconfig:"JWT_ISSUER" default:"portal-api"`
	TokenTTL  time.Duration `envconfig:"JWT_TTL" default:"1h"`
}

// FeedbackConfig holds citizen-feedback intake settings.
type FeedbackConfig struct {
	FlushInterval     time.Duration `envconfig:"FEEDBACK_FLUSH_INTERVAL" default:"30s"`
	Retention         time.Duration `envconfig:"FEEDBACK_RETENTION" default:"2160h"`
	RetentionInterval time.Duration `envconfig:"FEEDBACK_RETENTION_INTERVAL" default:"24h"`
}

// MongoConfig holds the optional upload audit log settings.
type MongoConfig struct {
	URI        string `envconfig:"MONGODB_URI" default:""`
	Database   string `envconfig:"MONGODB_DATABASE" default:"portal"`
	Collection string `envconfig:"MONGODB_COLLECTION" default:"upload_logs"`
}

// PostgresDSN returns the PostgreSQL connection string.
func (b *BackendConfig) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		b.User, b.Password, b.Host, b.Port, b.Name, b.SSLMode)
}

// MySQLDSN returns the MySQL data source name.
func (b *BackendConfig) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		b.User, b.Password, b.Host, b.Port, b.Name)
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Address returns the Redis address in host:port format.
func (r *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Backend.Type) {
	case "sqlite", "postgres", "postgresql", "mysql":
	default:
		return fmt.Errorf("unsupported BACKEND_TYPE %q", c.Backend.Type)
	}
	switch c.Storage.Type {
	case "disk":
	case "http":
		if c.Storage.BaseURL == "" {
			return fmt.Errorf("STORAGE_BASE_URL is required when STORAGE_TYPE=http")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_TYPE %q", c.Storage.Type)
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be positive")
	}
	if c.Offline.DynamicMax <= 0 || c.Offline.StaticMax <= 0 {
		return fmt.Errorf("offline cache ceilings must be positive")
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
