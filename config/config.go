package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// AppConfig holds environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided
// via env files or the environment.
type AppConfig struct {
	AppPort   string
	GinMode   string
	JWTSecret string

	// Redis backs the document store (posts, comments, change feed)
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string

	AllowedOrigins     []string
	RateLimitPerMinute int

	// Feed projector behaviour
	OptimisticTTLSeconds int

	// Logging configuration
	LogLevel      string
	LogPath       string
	AccessLogPath string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once during
// boot. Precedence: config/config.json -> defaults -> environment overrides.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	// .env is optional and only fills unset environment variables.
	_ = godotenv.Load()

	_ = loadJSONConfig(filepath.Join("config", "config.json"), &cfg)
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

func loadJSONConfig(path string, out *AppConfig) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var raw struct {
		AppPort              string   `json:"app_port"`
		GinMode              string   `json:"gin_mode"`
		JWTSecret            string   `json:"jwt_secret"`
		RedisHost            string   `json:"redis_host"`
		RedisPort            int      `json:"redis_port"`
		RedisDB              int      `json:"redis_db"`
		RedisPassword        string   `json:"redis_password"`
		AllowedOrigins       []string `json:"allowed_origins"`
		RateLimitPerMinute   int      `json:"rate_limit_per_minute"`
		OptimisticTTLSeconds int      `json:"optimistic_ttl_seconds"`
		LogLevel             string   `json:"log_level"`
		LogPath              string   `json:"log_path"`
		AccessLogPath        string   `json:"access_log_path"`
		LogMaxSizeMB         int      `json:"log_max_size_mb"`
		LogMaxBackups        int      `json:"log_max_backups"`
		LogMaxAgeDays        int      `json:"log_max_age_days"`
		LogCompress          bool     `json:"log_compress"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out.AppPort = raw.AppPort
	out.GinMode = raw.GinMode
	out.JWTSecret = raw.JWTSecret
	out.RedisHost = raw.RedisHost
	out.RedisPort = raw.RedisPort
	out.RedisDB = raw.RedisDB
	out.RedisPassword = raw.RedisPassword
	out.AllowedOrigins = raw.AllowedOrigins
	out.RateLimitPerMinute = raw.RateLimitPerMinute
	out.OptimisticTTLSeconds = raw.OptimisticTTLSeconds
	out.LogLevel = raw.LogLevel
	out.LogPath = raw.LogPath
	out.AccessLogPath = raw.AccessLogPath
	out.LogMaxSizeMB = raw.LogMaxSizeMB
	out.LogMaxBackups = raw.LogMaxBackups
	out.LogMaxAgeDays = raw.LogMaxAgeDays
	out.LogCompress = raw.LogCompress
	return nil
}

func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.RedisHost == "" {
		c.RedisHost = "127.0.0.1"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if c.OptimisticTTLSeconds == 0 {
		c.OptimisticTTLSeconds = 10
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func applyEnvOverrides(c *AppConfig) {
	setString(&c.AppPort, "APP_PORT")
	setString(&c.GinMode, "GIN_MODE")
	setString(&c.JWTSecret, "JWT_SECRET")
	setString(&c.RedisHost, "REDIS_HOST")
	setInt(&c.RedisPort, "REDIS_PORT")
	setInt(&c.RedisDB, "REDIS_DB")
	setString(&c.RedisPassword, "REDIS_PASSWORD")
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		parts := strings.Split(v, ",")
		origins := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				origins = append(origins, p)
			}
		}
		if len(origins) > 0 {
			c.AllowedOrigins = origins
		}
	}
	setInt(&c.RateLimitPerMinute, "RATE_LIMIT_PER_MINUTE")
	setInt(&c.OptimisticTTLSeconds, "OPTIMISTIC_TTL_SECONDS")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.LogPath, "LOG_PATH")
	setString(&c.AccessLogPath, "ACCESS_LOG_PATH")
	setInt(&c.LogMaxSizeMB, "LOG_MAX_SIZE_MB")
	setInt(&c.LogMaxBackups, "LOG_MAX_BACKUPS")
	setInt(&c.LogMaxAgeDays, "LOG_MAX_AGE_DAYS")
	if v := os.Getenv("LOG_COMPRESS"); v != "" {
		c.LogCompress = v == "1" || strings.EqualFold(v, "true")
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
