package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const DefaultAPIURL = "http://localhost:8080/api"

type Config struct {
	App     AppConfig
	Widget  WidgetConfig
	Storage StorageConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	WidgetsFile        string
	OtelEnabled        bool
	ReadTimeoutSeconds int
}

// WidgetConfig is the bootstrap contract of an embedded widget.
type WidgetConfig struct {
	APIURL                   string
	WidgetID                 string
	Domain                   string
	EnableSessionPersistence bool
}

type StorageConfig struct {
	Driver    string // "memory" or "redis"
	RedisURL  string
	Namespace string
	// SnapshotFile seeds storage from a JSON export before the widget starts.
	SnapshotFile string
}

var (
	ErrMissingWidgetID = errors.New("config: widget id is required")
	ErrMissingDomain   = errors.New("config: domain is required")
	ErrUnknownDriver   = errors.New("config: unknown storage driver")
)

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	redisURL := getEnv("REDIS_URL", "")

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "8080"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "tms-widget.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           redisURL,
			WidgetsFile:        getEnv("WIDGETS_FILE", ""),
			OtelEnabled:        getEnvAsBool("OTEL_ENABLED", false),
			ReadTimeoutSeconds: getEnvAsInt("APP_READ_TIMEOUT_SECONDS", 10),
		},
		Widget: WidgetConfig{
			APIURL:                   getEnv("TMS_API_URL", DefaultAPIURL),
			WidgetID:                 getEnv("TMS_WIDGET_ID", ""),
			Domain:                   getEnv("TMS_DOMAIN", ""),
			EnableSessionPersistence: getEnvAsBool("TMS_ENABLE_SESSION_PERSISTENCE", true),
		},
		Storage: StorageConfig{
			Driver:       strings.ToLower(getEnv("TMS_STORAGE_DRIVER", "memory")),
			RedisURL:     redisURL,
			Namespace:    getEnv("TMS_STORAGE_NAMESPACE", "widget:"),
			SnapshotFile: getEnv("TMS_STORAGE_SNAPSHOT", ""),
		},
	}
}

// IsProduction reports whether GO_ENV selects production logging.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// Validate checks the widget bootstrap settings.
func (c *Config) Validate() error {
	if c.Widget.WidgetID == "" {
		return ErrMissingWidgetID
	}
	if c.Widget.Domain == "" {
		return ErrMissingDomain
	}
	switch c.Storage.Driver {
	case "memory", "redis":
	default:
		return ErrUnknownDriver
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}
