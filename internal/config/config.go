package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	Poll   PollConfig   `yaml:"poll"`
	Notify NotifyConfig `yaml:"notify"`
	Status StatusConfig `yaml:"status"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AuthToken      string   `yaml:"auth_token"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type PollConfig struct {
	// Interval between ticks of a poll session's timer.
	Interval time.Duration `yaml:"interval"`
	// MaxAttempts is the tick budget before a session gives up.
	MaxAttempts int `yaml:"max_attempts"`
	// FetchTimeout bounds a single job-status fetch.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

type NotifyConfig struct {
	// TitleRestoreAfter is how long a title flash stays up before the
	// original page title is restored.
	TitleRestoreAfter time.Duration `yaml:"title_restore_after"`
	// DoneMarker is prepended to the page title on delivery.
	DoneMarker string `yaml:"done_marker"`
}

type StatusConfig struct {
	// BaseURL of the external analysis job-status endpoint.
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "127.0.0.1",
		},
		Poll: PollConfig{
			Interval:     4 * time.Second,
			MaxAttempts:  120,
			FetchTimeout: 10 * time.Second,
		},
		Notify: NotifyConfig{
			TitleRestoreAfter: 8 * time.Second,
			DoneMarker:        "✅",
		},
		Status: StatusConfig{
			BaseURL: "http://127.0.0.1:9090",
		},
	}
}

// Load reads the YAML config at path over compiled-in defaults. A missing
// file is not an error: the defaults are returned as-is so the server can
// run without any config on disk.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll.interval must be positive: %s", c.Poll.Interval)
	}
	if c.Poll.MaxAttempts <= 0 {
		return fmt.Errorf("poll.max_attempts must be positive: %d", c.Poll.MaxAttempts)
	}
	if c.Poll.FetchTimeout <= 0 {
		return fmt.Errorf("poll.fetch_timeout must be positive: %s", c.Poll.FetchTimeout)
	}
	if c.Notify.TitleRestoreAfter <= 0 {
		return fmt.Errorf("notify.title_restore_after must be positive: %s", c.Notify.TitleRestoreAfter)
	}
	return nil
}
