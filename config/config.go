package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	AWS          AWSConfig
	Email        EmailConfig
	Certificates CertificatesConfig
	Worker       WorkerConfig
	Admin        AdminConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string `env:"PORT" envDefault:"8080"`
	ReadTimeout        int    `env:"READ_TIMEOUT_SEC" envDefault:"30"`
	WriteTimeout       int    `env:"WRITE_TIMEOUT_SEC" envDefault:"30"`
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000,http://localhost:3001"`
	// SiteURL is the public portal, used in confirmation and certificate links.
	SiteURL  string `env:"SITE_URL" envDefault:"http://localhost:3000"`
	TimeZone string `env:"TIME_ZONE" envDefault:"America/Sao_Paulo"`
	// RunWorker also runs the outbox relay and email delivery inside the server process.
	RunWorker bool `env:"SERVER_RUN_WORKER" envDefault:"false"`
}

// Location loads TimeZone, falling back to UTC.
func (c ServerConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL             string        `env:"DATABASE_URL"`
	Host            string        `env:"DB_HOST" envDefault:"localhost"`
	Port            string        `env:"DB_PORT" envDefault:"5432"`
	User            string        `env:"DB_USER" envDefault:"postgres"`
	Password        string        `env:"DB_PASSWORD" envDefault:"postgres"`
	DBName          string        `env:"DB_NAME" envDefault:"eventportal"`
	SSLMode         string        `env:"DB_SSLMODE" envDefault:"disable"`
	MaxConns        int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	MinConns        int32         `env:"DB_MIN_CONNS" envDefault:"1"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"30m"`
}

// DSN returns DATABASE_URL when set, otherwise a URL built from the components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// JWTConfig holds operator token settings.
type JWTConfig struct {
	Secret      string `env:"JWT_SECRET" envDefault:"change-me-in-production"`
	ExpireHours int    `env:"JWT_EXPIRE_HOURS" envDefault:"12"`
}

// AWSConfig holds S3 settings. Endpoint targets S3-compatible stores such as MinIO.
type AWSConfig struct {
	Region               string `env:"AWS_REGION" envDefault:"us-east-1"`
	AccessKeyID          string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey      string `env:"AWS_SECRET_ACCESS_KEY"`
	Bucket               string `env:"AWS_S3_BUCKET" envDefault:"eventportal-media"`
	Endpoint             string `env:"AWS_S3_ENDPOINT"`
	PresignExpireMinutes int    `env:"AWS_PRESIGN_EXPIRE_MINUTES" envDefault:"15"`
}

// Enabled reports whether blob storage is configured.
func (c AWSConfig) Enabled() bool {
	return c.Bucket != "" && c.Region != ""
}

// EmailConfig holds SMTP settings. An empty host logs emails instead of sending them.
type EmailConfig struct {
	FromAddress string `env:"EMAIL_FROM_ADDRESS" envDefault:"noreply@example.com"`
	FromName    string `env:"EMAIL_FROM_NAME" envDefault:"Portal de Eventos"`
	SMTPHost    string `env:"SMTP_HOST"`
	SMTPPort    int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser    string `env:"SMTP_USER"`
	SMTPPass    string `env:"SMTP_PASS"`
}

// CertificatesConfig holds certificate rendering settings.
type CertificatesConfig struct {
	ConverterURL     string        `env:"CERTIFICATE_CONVERTER_URL" envDefault:"http://localhost:3000"`
	ConverterTimeout time.Duration `env:"CERTIFICATE_CONVERTER_TIMEOUT" envDefault:"60s"`
	PageWidth        float64       `env:"CERTIFICATE_PAGE_WIDTH_IN" envDefault:"8.27"`
	PageHeight       float64       `env:"CERTIFICATE_PAGE_HEIGHT_IN" envDefault:"11.69"`
	LockTTL          time.Duration `env:"CERTIFICATE_LOCK_TTL" envDefault:"2m"`
}

// WorkerConfig holds outbox relay settings.
type WorkerConfig struct {
	PollInterval time.Duration `env:"WORKER_POLL_INTERVAL" envDefault:"5s"`
	BatchSize    int           `env:"WORKER_BATCH_SIZE" envDefault:"50"`
	// VisibilityTimeout is how long a claimed email may stay queued before the relay claims it again.
	VisibilityTimeout time.Duration `env:"WORKER_VISIBILITY_TIMEOUT" envDefault:"15m"`
}

// AdminConfig is the operator created on first start when no user has that email.
type AdminConfig struct {
	Email    string `env:"BOOTSTRAP_ADMIN_EMAIL"`
	Password string `env:"BOOTSTRAP_ADMIN_PASSWORD"`
	FullName string `env:"BOOTSTRAP_ADMIN_NAME" envDefault:"Administrator"`
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}
