// Package config loads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"livechat/backend/internal/models"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Realtime sources.
const (
	SourcePostgres = "postgres" // database triggers + LISTEN/NOTIFY
	SourceRedis    = "redis"    // the service publishes to a redis channel after each write
)

// Config holds every setting of the server and the operator CLI.
type Config struct {
	Env      string `env:"ENV" envDefault:"production"`
	HTTPPort string `env:"HTTP_PORT" envDefault:"8080"`

	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	RealtimeSource string `env:"REALTIME_SOURCE" envDefault:"postgres"`

	JWTSecret    string        `env:"JWT_SECRET,required,notEmpty"`
	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"720h"`
	AdminKeyHash string        `env:"ADMIN_KEY_HASH,required,notEmpty"`

	UploadDir     string `env:"UPLOAD_DIR" envDefault:"uploads"`
	UploadBucket  string `env:"UPLOAD_BUCKET" envDefault:"videos"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080/files"`
	MaxUploadMB   int64  `env:"MAX_UPLOAD_MB" envDefault:"200"`
	MaxMessageLen int    `env:"MAX_MESSAGE_LEN" envDefault:"4000"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`

	TelegramBotToken    string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramAdminChatID int64  `env:"TELEGRAM_ADMIN_CHAT_ID"`
	AdminLang           string `env:"ADMIN_LANG" envDefault:"it"`
}

// LoadConfig reads an optional .env file and then the environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the combinations env tags cannot express.
func (c *Config) Validate() error {
	var problems []string

	switch c.RealtimeSource {
	case SourcePostgres:
	case SourceRedis:
		if c.RedisAddr == "" {
			problems = append(problems, "REALTIME_SOURCE=redis requires REDIS_ADDR")
		}
	default:
		problems = append(problems, fmt.Sprintf("REALTIME_SOURCE must be %q or %q, got %q", SourcePostgres, SourceRedis, c.RealtimeSource))
	}
	if c.MaxUploadMB <= 0 {
		problems = append(problems, "MAX_UPLOAD_MB must be positive")
	}
	if c.MaxMessageLen <= 0 {
		problems = append(problems, "MAX_MESSAGE_LEN must be positive")
	}
	// Even plain ASCII content needs two bytes of quotes in the notification.
	if c.MaxMessageLen > models.MaxTextFieldBytes-2 {
		problems = append(problems, fmt.Sprintf("MAX_MESSAGE_LEN must not exceed %d", models.MaxTextFieldBytes-2))
	}
	if strings.TrimSpace(c.UploadBucket) == "" || strings.ContainsAny(c.UploadBucket, `/\`) {
		problems = append(problems, "UPLOAD_BUCKET must be a single path segment")
	}
	if (c.TelegramBotToken == "") != (c.TelegramAdminChatID == 0) {
		problems = append(problems, "TELEGRAM_BOT_TOKEN and TELEGRAM_ADMIN_CHAT_ID must be set together")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// IsDevelopment reports whether verbose logging should be used.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// MaxUploadBytes is the multipart body limit for uploads.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// TelegramEnabled reports whether admin notifications should be started.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramAdminChatID != 0
}

// DatabaseConfig is the subset used by the operator CLI.
type DatabaseConfig struct {
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
}

// LoadDatabaseConfig reads only DATABASE_URL.
func LoadDatabaseConfig() (*DatabaseConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: Error loading .env file: %v", err)
	}
	var cfg DatabaseConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return &cfg, nil
}
