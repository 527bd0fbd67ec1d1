package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"sitetools/internal/sitetool"
)

// Config описывает основные параметры бота.
type Config struct {
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	API struct {
		BaseURL            string            `yaml:"base_url"`
		UserAgent          string            `yaml:"user_agent"`
		Headers            map[string]string `yaml:"headers"`
		TimeoutMS          int               `yaml:"timeout_ms"`
		InsecureSkipVerify bool              `yaml:"insecure_skip_verify"`
	} `yaml:"api"`
	Security struct {
		AuthAllowlist map[string][]string `yaml:"auth_allowlist"`
	} `yaml:"security"`
	Limits struct {
		RatePerWindow int `yaml:"rate_per_window"`
		WindowMS      int `yaml:"window_ms"`
	} `yaml:"limits"`
	Telegram struct {
		Enabled      bool   `yaml:"enabled"`
		Token        string `yaml:"token"`
		PollTimeoutS int    `yaml:"poll_timeout_s"`
	} `yaml:"telegram"`
	Web struct {
		Enabled          bool   `yaml:"enabled"`
		ListenAddr       string `yaml:"listen_addr"`
		RequestTimeoutMS int    `yaml:"request_timeout_ms"`
		ShutdownTimeoutS int    `yaml:"shutdown_timeout_s"`
		MaxBodyBytes     int64  `yaml:"max_body_bytes"`
	} `yaml:"web"`
}

// Default возвращает конфигурацию по умолчанию.
func Default() Config {
	var cfg Config
	cfg.Log.Level = "info"
	cfg.API.BaseURL = sitetool.DefaultBaseURL
	cfg.API.UserAgent = sitetool.DefaultUserAgent
	cfg.API.TimeoutMS = 15000
	cfg.Security.AuthAllowlist = map[string][]string{
		"telegram": {"*"},
		"console":  {"*"},
		"web":      {"*"},
	}
	cfg.Limits.RatePerWindow = 5
	cfg.Limits.WindowMS = 10000
	cfg.Telegram.PollTimeoutS = 60
	cfg.Web.ListenAddr = "127.0.0.1:8080"
	cfg.Web.RequestTimeoutMS = 20000
	cfg.Web.ShutdownTimeoutS = 5
	cfg.Web.MaxBodyBytes = 1 << 16
	return cfg
}

// Load читает конфиг из файла YAML, поверх значений по умолчанию.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}
	data, err := os.ReadFile(path) // #nosec G304 -- путь к конфигу задается доверенным оператором.
	if err != nil {
		return cfg, err
	}
	if len(data) == 0 {
		return cfg, errors.New("config file is empty")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate проверяет значения, без которых бот не запустится.
func (c Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base_url %q is not an absolute URL", c.API.BaseURL)
	}
	if c.Telegram.Enabled && c.Telegram.Token == "" {
		return errors.New("telegram.token is required when telegram is enabled")
	}
	return nil
}

// SiteTool строит конфигурацию клиента API.
func (c Config) SiteTool() sitetool.Config {
	headers := make(map[string]string, len(c.API.Headers)+1)
	for k, v := range c.API.Headers {
		headers[k] = v
	}
	if c.API.UserAgent != "" {
		headers["User-Agent"] = c.API.UserAgent
	}
	return sitetool.Config{BaseURL: c.API.BaseURL, Headers: headers}
}

// APITimeout — таймаут одного запроса к API.
func (c Config) APITimeout() time.Duration {
	return time.Duration(c.API.TimeoutMS) * time.Millisecond
}

// RateWindow — окно rate limiter.
func (c Config) RateWindow() time.Duration {
	return time.Duration(c.Limits.WindowMS) * time.Millisecond
}
