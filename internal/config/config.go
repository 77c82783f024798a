package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const (
	EnvPrefix         = "LABNOTES_"
	ConfigPathEnv     = EnvPrefix + "CONFIG"
	defaultConfigFile = "labnotes.toml"
	defaultDotEnvFile = ".env"
)

// Config holds every runtime setting of the notebook. Values are layered:
// defaults, then the TOML file, then .env, then the process environment.
type Config struct {
	Env               string `toml:"env" env:"ENV" validate:"oneof=development production test"`
	Addr              string `toml:"addr" env:"ADDR"`
	Port              string `toml:"port" env:"PORT"`
	DatabasePath      string `toml:"database" env:"DATABASE" validate:"required"`
	UploadDir         string `toml:"upload_dir" env:"UPLOAD_DIR" validate:"required"`
	SecretKey         string `toml:"secret_key" env:"SECRET_KEY"`
	AdminPassword     string `toml:"admin_password" env:"ADMIN_PASSWORD"`
	AdminPasswordHash string `toml:"admin_password_hash" env:"ADMIN_PASSWORD_HASH"`
	MaxUploadMB       int    `toml:"max_upload_mb" env:"MAX_UPLOAD_MB" validate:"min=1,max=4096"`
	SessionSecure     bool   `toml:"session_secure" env:"SESSION_SECURE"`
	TemplateDir       string `toml:"template_dir" env:"TEMPLATE_DIR" validate:"required"`
	StaticDir         string `toml:"static_dir" env:"STATIC_DIR" validate:"required"`
	LogFile           string `toml:"log_file" env:"LOG_FILE"`
	LogLevel          string `toml:"log_level" env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	Timezone          string `toml:"timezone" env:"TZ" validate:"required"`

	location *time.Location
}

func Default() Config {
	return Config{
		Env:           "production",
		Port:          "8080",
		DatabasePath:  filepath.Join("data", "labnotes.db"),
		UploadDir:     filepath.Join("data", "uploads"),
		MaxUploadMB:   64,
		SessionSecure: false,
		TemplateDir:   filepath.Join("internal", "templates"),
		StaticDir:     filepath.Join("web", "static"),
		LogLevel:      "info",
		Timezone:      "UTC",
	}
}

// Load builds the configuration. An empty configPath falls back to
// LABNOTES_CONFIG and then to ./labnotes.toml when present.
func Load(configPath string) (*Config, error) {
	cfg, err := load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadForMaintenance layers the configuration like Load but checks only
// what offline commands need. Server secrets may be absent.
func LoadForMaintenance(configPath string) (*Config, error) {
	cfg, err := load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateStorage(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func load(configPath string) (*Config, error) {
	cfg := Default()

	if err := loadDotEnv(defaultDotEnvFile); err != nil {
		return nil, err
	}

	resolvedPath, exists, err := resolveConfigPath(configPath)
	if err != nil {
		return nil, err
	}
	if exists {
		if err := decodeFile(resolvedPath, &cfg); err != nil {
			return nil, err
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.normalize()
	return &cfg, nil
}

func (c *Config) ListenAddress() string {
	return c.Addr + ":" + c.Port
}

func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// Location is the time zone used to display timestamps. It is resolved
// during validation and falls back to UTC.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.Addr = strings.TrimSpace(c.Addr)
	c.Port = strings.TrimSpace(c.Port)
	if c.Port == "" {
		c.Port = Default().Port
	}
	c.DatabasePath = strings.TrimSpace(c.DatabasePath)
	c.UploadDir = strings.TrimSpace(c.UploadDir)
	c.SecretKey = strings.TrimSpace(c.SecretKey)
	c.AdminPasswordHash = strings.TrimSpace(c.AdminPasswordHash)
	c.LogFile = strings.TrimSpace(c.LogFile)
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.Timezone = strings.TrimSpace(c.Timezone)
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = strings.TrimSpace(os.Getenv(ConfigPathEnv))
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", false, fmt.Errorf("config file %q does not exist", path)
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return path, true, nil
	}

	if info, err := os.Stat(defaultConfigFile); err == nil && !info.IsDir() {
		return defaultConfigFile, true, nil
	}
	return "", false, nil
}

func decodeFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := toml.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}
