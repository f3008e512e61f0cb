package config

import (
	"os"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Daraja   DarajaConfig
	Audit    AuditConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
	Issuer        string
}

// DarajaConfig holds the non-secret gateway settings. The five credential
// values (consumer key/secret, short code, passkey, callback URL) are read
// from the environment per payment attempt, not at boot; see pkg/mpesa.
type DarajaConfig struct {
	BaseURL string
	Timeout time.Duration
}

type AuditConfig struct {
	Path string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getenv("PORT", "8080"),
			Env:          getenv("APP_ENV", "development"),
			ReadTimeout:  10 * time.Second,
			// Checkout holds the connection through two gateway calls, each
			// bounded by Daraja.Timeout, so the write timeout must cover both.
			WriteTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:             getenv("DATABASE_DSN", "duka:duka@tcp(localhost:3306)/duka?charset=utf8mb4&parseTime=True&loc=Local"),
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
		},
		JWT: JWTConfig{
			AccessSecret:  getenv("JWT_ACCESS_SECRET", "change-me-in-production"),
			RefreshSecret: getenv("JWT_REFRESH_SECRET", "change-me-refresh"),
			AccessExpiry:  15 * time.Minute,
			RefreshExpiry: 168 * time.Hour,
			Issuer:        "duka",
		},
		Daraja: DarajaConfig{
			BaseURL: getenv("MPESA_BASE_URL", "https://sandbox.safaricom.co.ke"),
			Timeout: 10 * time.Second,
		},
		Audit: AuditConfig{
			Path: getenv("AUDIT_LOG_PATH", "payments_audit.log"),
		},
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
