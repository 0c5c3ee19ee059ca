package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// MB is one mebibyte, the unit upload ceilings are usually expressed in.
	MB int64 = 1 << 20
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
	AutoMigrate        bool
	// ConnectRetries is how many extra pings are attempted at startup.
	ConnectRetries     int
	ApplicationName    string
}

// StorageConfig selects the object storage backend.
type StorageConfig struct {
	// Driver is "minio" (default) or "s3".
	Driver string
	MinIO  MinIOConfig
	S3     S3Config
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// S3Config holds settings for AWS S3. Credentials fall back to the default
// AWS chain when AccessKey is empty.
type S3Config struct {
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	Endpoint  string
	PathStyle bool
}

// UploadConfig holds the per-endpoint upload ceilings in bytes.
type UploadConfig struct {
	MaxDocumentBytes       int64
	MaxNoteBytes           int64
	MaxClientDocumentBytes int64
}

// Largest returns the biggest configured ceiling. The HTTP body limit is derived from it.
func (u UploadConfig) Largest() int64 {
	m := u.MaxDocumentBytes
	if u.MaxNoteBytes > m {
		m = u.MaxNoteBytes
	}
	if u.MaxClientDocumentBytes > m {
		m = u.MaxClientDocumentBytes
	}
	return m
}

// AuthConfig configures bearer-token verification for tokens issued by the
// external identity provider.
type AuthConfig struct {
	Enabled       bool
	HMACSecret    string
	RSAPublicKey  string
	Issuer        string
	Audience      string
	ApproverRoles []string
}

// RateLimitConfig configures the Redis-backed fixed-window limiter.
// An empty RedisAddr disables rate limiting.
type RateLimitConfig struct {
	RedisAddr     string
	RedisPassword string
	Prefix        string
	Limit         int
	Window        time.Duration
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppEnv         string
	AppHost        string
	Port           string
	Timezone       string
	LogLevel       string
	RequestTimeout time.Duration
	SignedURLTTL   time.Duration
	CORSOrigins    string
	Database       DatabaseConfig
	Storage        StorageConfig
	Upload         UploadConfig
	Auth           AuthConfig
	RateLimit      RateLimitConfig
}

// IsDevelopment reports whether internal error details may be exposed.
func (c *AppConfig) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// Location resolves Timezone, falling back to UTC.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppEnv:         getEnv("APP_ENV", "production"),
		AppHost:        getEnv("APP_HOST", "localhost:8080"),
		Port:           getEnv("PORT", "8080"),
		Timezone:       getEnv("APP_TIMEZONE", "UTC"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		SignedURLTTL:   getEnvDuration("SIGNED_URL_TTL", time.Hour),
		CORSOrigins:    getEnv("CORS_ALLOWED_ORIGINS", "*"),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
			AutoMigrate:        getEnvBool("DB_AUTO_MIGRATE", true),
			ConnectRetries:     getEnvInt("DB_CONNECT_RETRIES", 5),
			ApplicationName:    getEnv("DB_APPLICATION_NAME", "casedocs"),
		},
		Storage: StorageConfig{
			Driver: strings.ToLower(getEnv("STORAGE_DRIVER", "minio")),
			MinIO: MinIOConfig{
				Endpoint:  getEnv("MINIO_ENDPOINT", ""),
				AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
				SecretKey: getEnv("MINIO_SECRET_KEY", ""),
				Bucket:    getEnv("MINIO_BUCKET", ""),
				UseSSL:    getEnvBool("MINIO_USE_SSL", false),
			},
			S3: S3Config{
				Region:    getEnv("S3_REGION", "us-east-1"),
				Bucket:    getEnv("S3_BUCKET", ""),
				AccessKey: getEnv("S3_ACCESS_KEY", ""),
				SecretKey: getEnv("S3_SECRET_KEY", ""),
				Endpoint:  getEnv("S3_ENDPOINT", ""),
				PathStyle: getEnvBool("S3_PATH_STYLE", false),
			},
		},
		Upload: UploadConfig{
			MaxDocumentBytes:       getEnvInt64("UPLOAD_MAX_DOCUMENT_BYTES", 100*MB),
			MaxNoteBytes:           getEnvInt64("UPLOAD_MAX_NOTE_BYTES", 50*MB),
			MaxClientDocumentBytes: getEnvInt64("UPLOAD_MAX_CLIENT_DOCUMENT_BYTES", 15*MB),
		},
		Auth: AuthConfig{
			Enabled:       getEnvBool("AUTH_ENABLED", false),
			HMACSecret:    getEnv("AUTH_HMAC_SECRET", ""),
			RSAPublicKey:  getEnv("AUTH_RSA_PUBLIC_KEY", ""),
			Issuer:        getEnv("AUTH_ISSUER", ""),
			Audience:      getEnv("AUTH_AUDIENCE", ""),
			ApproverRoles: getEnvList("AUTH_APPROVER_ROLES", []string{"admin", "supervisor"}),
		},
		RateLimit: RateLimitConfig{
			RedisAddr:     getEnv("RATE_LIMIT_REDIS_ADDR", ""),
			RedisPassword: getEnv("RATE_LIMIT_REDIS_PASSWORD", ""),
			Prefix:        getEnv("RATE_LIMIT_PREFIX", "casedocs:ratelimit"),
			Limit:         getEnvInt("RATE_LIMIT_REQUESTS", 100),
			Window:        getEnvDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err == nil && i > 0 {
			return i
		}
	}
	return def
}

// getEnvDuration accepts Go duration strings ("90s") or plain seconds ("90").
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if s, err := strconv.Atoi(v); err == nil && s > 0 {
		return time.Duration(s) * time.Second
	}
	return def
}

func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
