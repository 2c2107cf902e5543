package application

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines import pipeline configuration.
type Config struct {
	Workers             int    `yaml:"workers"`
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
	MaxUploadBytes      int64  `yaml:"max_upload_bytes"`
	WebhookURL          string `yaml:"webhook_url"`
}

// LoadConfig loads config from yaml or env. IMPORT_CONFIG names an
// optional yaml file; env vars fill whatever the file leaves unset.
func LoadConfig() (Config, error) {
	cfg := Config{
		Workers:             getenvIntDefault("IMPORT_WORKERS", 2),
		PollIntervalSeconds: getenvIntDefault("IMPORT_POLL_INTERVAL_SECONDS", 5),
		MaxUploadBytes:      getenvInt64Default("IMPORT_MAX_UPLOAD_BYTES", 10<<20),
		WebhookURL:          os.Getenv("IMPORT_WEBHOOK_URL"),
	}

	if path := os.Getenv("IMPORT_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.PollIntervalSeconds <= 0 {
		cfg.PollIntervalSeconds = 5
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	if cfg.WebhookURL == "" {
		cfg.WebhookURL = os.Getenv("IMPORT_WEBHOOK_URL")
	}
	return cfg, nil
}

// PollInterval returns the runner poll interval.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvInt64Default(key string, fallback int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
