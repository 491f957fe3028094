package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	ProviderAzure = "azure"
	ProviderS3    = "s3"
	ProviderLocal = "local"
)

var (
	ErrSecretRequired = errors.New("SESSION_SECRET is required")
	ErrUsersRequired  = errors.New("AUTH_USERNAME_1/AUTH_PASSWORD_1 and AUTH_USERNAME_2/AUTH_PASSWORD_2 are required")
)

// Config is built once at startup and never mutated afterwards.
type Config struct {
	Port        string
	Environment string
	LogJSON     bool
	Auth        AuthConfig
	Blob        BlobConfig
	ListTimeout time.Duration
	AuditDBPath string
	// AuditRetention is how long login events are kept.
	AuditRetention time.Duration
}

type AuthConfig struct {
	Secret     string
	Users      [2]UserConfig
	SessionTTL time.Duration
	// SecureCookie is true only in production.
	SecureCookie bool
}

type UserConfig struct {
	Username string
	Password string
}

// BlobConfig selects and configures the image store. Missing values are not
// an error here; the store reports itself as unconfigured at request time.
type BlobConfig struct {
	Provider string

	AzureConnectionString string
	AzureContainer        string

	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3URLExpiry time.Duration

	MediaDir string
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	env := getEnv("APP_ENV", "development")

	logJSON := env != "development"
	if v := os.Getenv("LOG_JSON"); v != "" {
		logJSON = v == "true"
	}

	sessionTTL, err := getDuration("SESSION_TTL", 7*24*time.Hour)
	if err != nil {
		return nil, err
	}
	listTimeout, err := getDuration("LIST_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	urlExpiry, err := getDuration("S3_URL_EXPIRY", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	auditRetention, err := getDuration("AUDIT_RETENTION", 90*24*time.Hour)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: env,
		LogJSON:     logJSON,
		Auth: AuthConfig{
			Secret: os.Getenv("SESSION_SECRET"),
			Users: [2]UserConfig{
				{Username: os.Getenv("AUTH_USERNAME_1"), Password: os.Getenv("AUTH_PASSWORD_1")},
				{Username: os.Getenv("AUTH_USERNAME_2"), Password: os.Getenv("AUTH_PASSWORD_2")},
			},
			SessionTTL:   sessionTTL,
			SecureCookie: env == "production",
		},
		Blob: BlobConfig{
			Provider:              strings.ToLower(getEnv("BLOB_PROVIDER", ProviderAzure)),
			AzureConnectionString: os.Getenv("AZURE_STORAGE_CONNECTION_STRING"),
			AzureContainer:        os.Getenv("AZURE_STORAGE_CONTAINER_NAME"),
			S3Bucket:              os.Getenv("S3_BUCKET"),
			S3Region:              getEnv("S3_REGION", "us-east-1"),
			S3Endpoint:            os.Getenv("S3_ENDPOINT"),
			S3AccessKey:           os.Getenv("S3_ACCESS_KEY"),
			S3SecretKey:           os.Getenv("S3_SECRET_KEY"),
			S3URLExpiry:           urlExpiry,
			MediaDir:              getEnv("MEDIA_DIR", "./media"),
		},
		ListTimeout:    listTimeout,
		AuditDBPath:    getEnv("AUDIT_DB_PATH", "./data/audit.db"),
		AuditRetention: auditRetention,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.Blob.Provider == ProviderLocal && !filepath.IsAbs(cfg.Blob.MediaDir) {
		absPath, err := filepath.Abs(cfg.Blob.MediaDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve media directory path: %w", err)
		}
		cfg.Blob.MediaDir = absPath
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Auth.Secret == "" {
		return ErrSecretRequired
	}
	for _, u := range c.Auth.Users {
		if u.Username == "" || u.Password == "" {
			return ErrUsersRequired
		}
	}
	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid port: %s", c.Port)
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.ListTimeout <= 0 {
		return fmt.Errorf("LIST_TIMEOUT must be positive")
	}
	if c.AuditRetention <= 0 {
		return fmt.Errorf("AUDIT_RETENTION must be positive")
	}
	switch c.Blob.Provider {
	case ProviderAzure, ProviderS3, ProviderLocal:
	default:
		return fmt.Errorf("unknown BLOB_PROVIDER %q", c.Blob.Provider)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
