// Package config loads process settings from the environment.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/Shivanand-hulikatti/gathering-registration/internal/model"
)

// Counter store backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// Config is every setting the bot reads at startup.
type Config struct {
	BotToken         string `env:"TELEGRAM_BOT_TOKEN,required=true" validate:"required"`
	APIURL           string `env:"TELEGRAM_API_URL,default=https://api.telegram.org" validate:"url"`
	WebhookSecret    string `env:"WEBHOOK_SECRET"`
	WebhookWorkers   int    `env:"WEBHOOK_WORKERS,default=8" validate:"min=1"`
	AdminPassword    string `env:"ADMIN_PASSWORD,required=true" validate:"required"`
	AllowedAdminIDs  string `env:"ALLOWED_ADMIN_IDS"`
	ChannelID        int64  `env:"CHANNEL_ID,required=true" validate:"required"`
	OrganizerContact string `env:"ORGANIZER_CONTACT,default=@organizer"`
	Port             int    `env:"PORT,default=8080" validate:"min=1,max=65535"`

	DBHost     string `env:"DB_HOST,default=localhost"`
	DBPort     string `env:"DB_PORT,default=5432"`
	DBUser     string `env:"DB_USER,default=postgres"`
	DBPassword string `env:"DB_PASSWORD,default=postgres"`
	DBName     string `env:"DB_NAME,default=gathering"`
	DBSSLMode  string `env:"DB_SSLMODE,default=disable"`

	CountersBackend string `env:"COUNTERS_BACKEND,default=file" validate:"oneof=file redis"`
	CountersFile    string `env:"COUNTERS_FILE,default=stats.json"`
	RedisAddr       string `env:"REDIS_ADDR,default=localhost:6379"`
	RedisPassword   string `env:"REDIS_PASSWORD"`
	RedisDB         int    `env:"REDIS_DB,default=0" validate:"min=0"`

	ContentFile string `env:"CONTENT_FILE"`

	LogLevel  string `env:"LOG_LEVEL,default=info" validate:"oneof=debug info warn error"`
	LogFormat string `env:"LOG_FORMAT,default=json" validate:"oneof=json console"`

	RetryAttempts   int           `env:"RETRY_ATTEMPTS,default=3" validate:"min=1"`
	RetryBaseDelay  time.Duration `env:"RETRY_BASE_DELAY,default=2s" validate:"min=0"`
	BroadcastPacing time.Duration `env:"BROADCAST_PACING,default=50ms" validate:"min=0"`
}

// Load reads an optional .env file and then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges and the admin allow-list.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if _, err := c.AdminIDs(); err != nil {
		return err
	}
	return nil
}

// AdminIDs parses ALLOWED_ADMIN_IDS, a comma separated list.
func (c Config) AdminIDs() ([]model.UserID, error) {
	var ids []model.UserID
	for _, part := range strings.Split(c.AllowedAdminIDs, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("config error: ALLOWED_ADMIN_IDS: %q is not a user id", part)
		}
		ids = append(ids, model.UserID(id))
	}
	return ids, nil
}
