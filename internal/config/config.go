package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

type AppConfig struct {
	ListenAddr string
	OpsAddr    string

	RedisURL    string
	DatabaseURL string

	GracePeriod  time.Duration
	ReapInterval time.Duration

	MsgDir         string
	AllowedOrigins []string
}

// fileConfig is the optional YAML file layout. Durations accept Go syntax ("15s").
type fileConfig struct {
	ListenAddr     string   `yaml:"listen_addr"`
	OpsAddr        string   `yaml:"ops_addr"`
	RedisURL       string   `yaml:"redis_url"`
	DatabaseURL    string   `yaml:"database_url"`
	GracePeriod    string   `yaml:"grace_period"`
	ReapInterval   string   `yaml:"reap_interval"`
	MsgDir         string   `yaml:"msg_dir"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Load builds the config from defaults, an optional CONFIG_FILE, then environment
// variables. Env always wins over the file.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:   ":8090",
		OpsAddr:      ":8091",
		GracePeriod:  15 * time.Second,
		ReapInterval: 10 * time.Minute,
	}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("OPS_ADDR")); v != "" {
		cfg.OpsAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		cfg.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("GRACE_PERIOD")); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("GRACE_PERIOD: %w", err)
		}
		cfg.GracePeriod = d
	}
	if v := strings.TrimSpace(os.Getenv("REAP_INTERVAL")); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("REAP_INTERVAL: %w", err)
		}
		cfg.ReapInterval = d
	}
	if v := strings.TrimSpace(os.Getenv("MSG_DIR")); v != "" {
		cfg.MsgDir = v
	}
	if v := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); v != "" {
		cfg.AllowedOrigins = splitCSV(v)
	}

	if cfg.GracePeriod <= 0 {
		return nil, fmt.Errorf("grace period must be positive, got %s", cfg.GracePeriod)
	}
	if cfg.ReapInterval <= 0 {
		return nil, fmt.Errorf("reap interval must be positive, got %s", cfg.ReapInterval)
	}
	return cfg, nil
}

func applyFile(cfg *AppConfig, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if v := strings.TrimSpace(fc.ListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := strings.TrimSpace(fc.OpsAddr); v != "" {
		cfg.OpsAddr = v
	}
	if v := strings.TrimSpace(fc.RedisURL); v != "" {
		cfg.RedisURL = v
	}
	if v := strings.TrimSpace(fc.DatabaseURL); v != "" {
		cfg.DatabaseURL = v
	}
	if v := strings.TrimSpace(fc.GracePeriod); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("grace_period: %w", err)
		}
		cfg.GracePeriod = d
	}
	if v := strings.TrimSpace(fc.ReapInterval); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("reap_interval: %w", err)
		}
		cfg.ReapInterval = d
	}
	if v := strings.TrimSpace(fc.MsgDir); v != "" {
		cfg.MsgDir = v
	}
	if len(fc.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = fc.AllowedOrigins
	}
	return nil
}

// parseDuration accepts Go duration syntax or a bare integer in seconds.
func parseDuration(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}

func splitCSV(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
