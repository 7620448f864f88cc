package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port           int
	DBPath         string
	UploadDir      string
	MasterSecret   string
	GinMode        string
	LogLevel       string
	TLSCertFile    string
	TLSKeyFile     string
	TokenExpiry    time.Duration
	WebhookTimeout time.Duration
	ReconnectDelay time.Duration
}

// AuthEnabled reports whether the management API requires bearer tokens.
// Running without MASTER_SECRET is supported for trusted networks.
func (c Config) AuthEnabled() bool {
	return c.MasterSecret != ""
}

type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

func LoadConfig() (Config, error) {
	return LoadConfigFromEnv(osEnv{})
}

func LoadConfigFromEnv(env Env) (Config, error) {
	cfg := Config{
		Port:           3000,
		DBPath:         "data/wamux.db",
		UploadDir:      "data/uploads",
		GinMode:        "release",
		LogLevel:       "info",
		TokenExpiry:    7 * 24 * time.Hour,
		WebhookTimeout: 10 * time.Second,
		ReconnectDelay: 2 * time.Second,
	}

	if raw := env.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("invalid PORT")
		}
		cfg.Port = port
	}

	if raw := env.Getenv("DB_PATH"); raw != "" {
		cfg.DBPath = raw
	}
	if raw := env.Getenv("UPLOAD_DIR"); raw != "" {
		cfg.UploadDir = raw
	}

	cfg.MasterSecret = env.Getenv("MASTER_SECRET")

	if raw := env.Getenv("GIN_MODE"); raw != "" {
		cfg.GinMode = raw
	}
	if raw := env.Getenv("LOG_LEVEL"); raw != "" {
		cfg.LogLevel = raw
	}

	cfg.TLSCertFile = env.Getenv("TLS_CERT_FILE")
	cfg.TLSKeyFile = env.Getenv("TLS_KEY_FILE")

	if raw := env.Getenv("TOKEN_EXPIRY_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return Config{}, fmt.Errorf("invalid TOKEN_EXPIRY_SECONDS")
		}
		cfg.TokenExpiry = time.Duration(seconds) * time.Second
	}

	if raw := env.Getenv("WEBHOOK_TIMEOUT_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return Config{}, fmt.Errorf("invalid WEBHOOK_TIMEOUT_SECONDS")
		}
		cfg.WebhookTimeout = time.Duration(seconds) * time.Second
	}

	if raw := env.Getenv("RECONNECT_DELAY_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return Config{}, fmt.Errorf("invalid RECONNECT_DELAY_SECONDS")
		}
		cfg.ReconnectDelay = time.Duration(seconds) * time.Second
	}

	return cfg, nil
}
