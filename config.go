package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	perfapp "railwatch/internal/performance/application"
)

type config struct {
	DatabaseURL     string         `yaml:"database_url"`
	HTTPAddr        string         `yaml:"http_addr" validate:"required"`
	RTT             rttConfig      `yaml:"rtt"`
	Pipeline        pipelineConfig `yaml:"pipeline"`
	Schedule        scheduleConfig `yaml:"schedule"`
	Archive         archiveConfig  `yaml:"archive"`
	Report          reportConfig   `yaml:"report"`
	AlertWebhookURL string         `yaml:"alert_webhook_url" validate:"omitempty,url"`
	AlertTimeout    time.Duration  `yaml:"alert_timeout" validate:"gte=0"`
}

type rttConfig struct {
	BaseURL    string        `yaml:"base_url" validate:"required,url"`
	Username   string        `yaml:"username"`
	Password   string        `yaml:"password"`
	Timeout    time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxRetries int           `yaml:"max_retries" validate:"gte=0,lte=10"`
}

type pipelineConfig struct {
	Stations     []string `yaml:"stations" validate:"dive,len=3,alpha"`
	StationsFile string   `yaml:"stations_file"`
	DayOffset    int      `yaml:"day_offset" validate:"gte=-30,lte=0"`
}

type scheduleConfig struct {
	Ingest  string `yaml:"ingest"`
	Archive string `yaml:"archive"`
	Report  string `yaml:"report"`
}

type archiveConfig struct {
	RetentionDays int `yaml:"retention_days" validate:"gte=0"`
}

type reportConfig struct {
	Stations      []string `yaml:"stations" validate:"dive,len=3,alpha"`
	StorageRoot   string   `yaml:"storage_root" validate:"required"`
	PublicBaseURL string   `yaml:"public_base_url" validate:"omitempty,url"`
}

// loadConfig reads .env, the environment and an optional YAML overlay.
// path overrides RAILWATCH_CONFIG when set.
func loadConfig(path string) (config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return config{}, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := config{
		DatabaseURL: getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:    getenvDefault("HTTP_ADDR", ":8080"),
		RTT: rttConfig{
			BaseURL:    getenvDefault("RTT_BASE_URL", "https://api.rtt.io/api/v1"),
			Username:   getenvDefault("RTT_USERNAME", ""),
			Password:   getenvDefault("RTT_PASSWORD", ""),
			Timeout:    getenvDuration("RTT_TIMEOUT", 60*time.Second),
			MaxRetries: getenvIntDefault("RTT_MAX_RETRIES", 2),
		},
		Pipeline: pipelineConfig{
			Stations:     perfapp.SplitStations(getenvDefault("PIPELINE_STATIONS", "")),
			StationsFile: getenvDefault("PIPELINE_STATIONS_FILE", ""),
			DayOffset:    getenvIntDefault("PIPELINE_DAY_OFFSET", -1),
		},
		Schedule: scheduleConfig{
			Ingest:  getenvDefault("INGEST_SCHEDULE", "0 5 * * *"),
			Archive: getenvDefault("ARCHIVE_SCHEDULE", "30 3 * * *"),
			Report:  getenvDefault("REPORT_SCHEDULE", "0 7 * * 1"),
		},
		Archive: archiveConfig{
			RetentionDays: getenvIntDefault("ARCHIVE_RETENTION_DAYS", 30),
		},
		Report: reportConfig{
			Stations:      perfapp.SplitStations(getenvDefault("REPORT_STATIONS", "")),
			StorageRoot:   getenvDefault("REPORT_STORAGE_ROOT", filepath.FromSlash("var/reports")),
			PublicBaseURL: getenvDefault("REPORT_PUBLIC_BASE_URL", "http://localhost:8080"),
		},
		AlertWebhookURL: getenvDefault("ALERT_WEBHOOK_URL", ""),
		AlertTimeout:    getenvDuration("ALERT_TIMEOUT", 5*time.Second),
	}

	if path == "" {
		path = os.Getenv("RAILWATCH_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.Pipeline.Stations = perfapp.NormaliseStations(cfg.Pipeline.Stations)
	cfg.Report.Stations = perfapp.NormaliseStations(cfg.Report.Stations)

	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (c config) requireDatabase() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL or PG_DSN is required")
	}
	return nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
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

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
