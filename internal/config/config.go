package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/robfig/cron/v3"
)

// PathEnvVar overrides the config file location.
const PathEnvVar = "CONFIG_PATH"

var defaultPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/petitionwatch/config.yaml",
}

type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Source   SourceConfig   `koanf:"source"`
	Watch    WatchConfig    `koanf:"watch"`
	Server   ServerConfig   `koanf:"server"`
	Log      LogConfig      `koanf:"log"`
}

type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver       string `koanf:"driver"`
	URL          string `koanf:"url"`
	MaxOpenConns int    `koanf:"max_open_conns"`
}

type SourceConfig struct {
	PetitionsURL string        `koanf:"petitions_url"`
	MembersURL   string        `koanf:"members_url"`
	PageDelay    time.Duration `koanf:"page_delay"`
	Timeout      time.Duration `koanf:"timeout"`
	UserAgent    string        `koanf:"user_agent"`
}

type WatchConfig struct {
	Schedule      string `koanf:"schedule"`
	SnapshotLimit int    `koanf:"snapshot_limit"`
}

type ServerConfig struct {
	Port           string   `koanf:"port"`
	AllowedOrigins []string `koanf:"allowed_origins"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaultConfig() Config {
	return Config{
		Database: DatabaseConfig{
			Driver:       "postgres",
			MaxOpenConns: 5,
		},
		Source: SourceConfig{
			PetitionsURL: "https://petition.parliament.uk",
			MembersURL:   "https://data.parliament.uk/membersdataplatform/services/mnis/members/query/House=Commons%7CIsEligible=true/",
			PageDelay:    time.Second,
			Timeout:      30 * time.Second,
			UserAgent:    "petitionwatch/1.0",
		},
		Watch: WatchConfig{
			Schedule:      "@every 30m",
			SnapshotLimit: 48,
		},
		Server: ServerConfig{
			Port:           "8080",
			AllowedOrigins: []string{"*"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

var envKeys = map[string]string{
	"DATABASE_DRIVER":         "database.driver",
	"DATABASE_URL":            "database.url",
	"DATABASE_MAX_OPEN_CONNS": "database.max_open_conns",
	"PETITIONS_URL":           "source.petitions_url",
	"MEMBERS_URL":             "source.members_url",
	"PAGE_DELAY":              "source.page_delay",
	"HTTP_TIMEOUT":            "source.timeout",
	"USER_AGENT":              "source.user_agent",
	"WATCH_SCHEDULE":          "watch.schedule",
	"SNAPSHOT_LIMIT":          "watch.snapshot_limit",
	"PORT":                    "server.port",
	"ALLOWED_ORIGINS":         "server.allowed_origins",
	"LOG_LEVEL":               "log.level",
	"LOG_FORMAT":              "log.format",
}

func envKey(s string) string {
	return envKeys[s]
}

// Load layers struct defaults, an optional YAML file and environment variables.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// Unmapped variables transform to "" and are dropped by koanf.
	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if origins, ok := k.Get("server.allowed_origins").(string); ok {
		if err := k.Set("server.allowed_origins", splitList(origins)); err != nil {
			return nil, fmt.Errorf("set allowed origins: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver %q: must be postgres or sqlite", c.Database.Driver)
	}
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Source.PetitionsURL == "" || c.Source.MembersURL == "" {
		return fmt.Errorf("source.petitions_url and source.members_url are required")
	}
	if c.Source.PageDelay < 0 {
		return fmt.Errorf("source.page_delay must not be negative")
	}
	if _, err := cron.ParseStandard(c.Watch.Schedule); err != nil {
		return fmt.Errorf("watch.schedule %q: %w", c.Watch.Schedule, err)
	}
	if len(c.Server.AllowedOrigins) == 0 {
		return fmt.Errorf("server.allowed_origins must not be empty")
	}
	return nil
}

func findFile() string {
	if p := os.Getenv(PathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range defaultPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
