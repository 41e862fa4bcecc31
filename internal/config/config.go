package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	GinMode       string
	DatabaseURL   string
	SessionSecret string

	LogLevel  string
	LogFormat string // text or json

	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	RateLimitRPS   int
	RateLimitBurst int

	CacheSize int
	CacheTTL  time.Duration

	NotifyQueueSize int

	AdminEmail    string
	AdminPassword string
}

// Load reads .env (if present) and then the process environment.
// The returned bool reports whether a .env file was found.
func Load() (Config, bool) {
	found := godotenv.Load() == nil

	cfg := Config{
		Port:          getString("PORT", "8080"),
		GinMode:       getString("GIN_MODE", "release"),
		DatabaseURL:   getString("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=naftapp port=5432 sslmode=disable TimeZone=America/Argentina/Buenos_Aires"),
		SessionSecret: getString("SESSION_SECRET", "secret_key_change_me"),

		LogLevel:  getString("LOG_LEVEL", "info"),
		LogFormat: getString("LOG_FORMAT", "text"),

		SMTPHost: os.Getenv("SMTP_HOST"),
		SMTPPort: os.Getenv("SMTP_PORT"),
		SMTPUser: os.Getenv("SMTP_USER"),
		SMTPPass: os.Getenv("SMTP_PASS"),
		SMTPFrom: os.Getenv("SMTP_FROM"),

		RateLimitRPS:   getInt("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getInt("RATE_LIMIT_BURST", 10),

		CacheSize: getInt("CACHE_SIZE", 500),
		CacheTTL:  time.Duration(getInt("CACHE_TTL_SECONDS", 60)) * time.Second,

		NotifyQueueSize: getInt("NOTIFY_QUEUE_SIZE", 256),

		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
	}
	return cfg, found
}

// SMTPEnabled reports whether every SMTP setting is present.
func (c Config) SMTPEnabled() bool {
	return c.SMTPHost != "" && c.SMTPPort != "" && c.SMTPUser != "" && c.SMTPPass != "" && c.SMTPFrom != ""
}

func getString(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}
