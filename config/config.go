package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// RescuePIN is used when no PIN is configured at all.
const RescuePIN = "1234"

type ServerSection struct {
	Port string `yaml:"port"`
	// PublicURL is the address users open; setup links are built on it.
	PublicURL string `yaml:"public_url"`
}

type StorageSection struct {
	// Driver is one of file, memory, sqlite, mysql, postgres, mongo.
	Driver string `yaml:"driver"`
	// DSN is a file path for the file driver, a connection string otherwise.
	DSN string `yaml:"dsn"`
}

type RemoteSection struct {
	// DefaultURL is used until the admin saves an endpoint URL.
	DefaultURL string `yaml:"default_url"`
	// Timeout uses Go duration format: "10s", "1m".
	Timeout string `yaml:"timeout"`
	// AllowAnyHost lifts the script.google.com restriction on saved URLs.
	AllowAnyHost bool `yaml:"allow_any_host"`
}

type AdminSection struct {
	PIN       string `yaml:"pin"`
	RescuePIN string `yaml:"rescue_pin"`
}

type AISection struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type TelegramSection struct {
	Token       string `yaml:"token"`
	AdminChatID int64  `yaml:"admin_chat_id"`
}

type LogSection struct {
	Level string `yaml:"level"`
}

// Config is loaded once at startup.
type Config struct {
	// Version is the config file format version (currently 1).
	Version int `yaml:"version,omitempty"`

	Server   ServerSection   `yaml:"server"`
	Storage  StorageSection  `yaml:"storage"`
	Remote   RemoteSection   `yaml:"remote"`
	Admin    AdminSection    `yaml:"admin"`
	AI       AISection       `yaml:"ai"`
	Telegram TelegramSection `yaml:"telegram"`
	Log      LogSection      `yaml:"log"`
}

func Default() Config {
	return Config{
		Version: 1,
		Server:  ServerSection{Port: "8080", PublicURL: "http://localhost:8080"},
		Storage: StorageSection{Driver: "file", DSN: filepath.Join("data", "cryptocagua.json")},
		Remote:  RemoteSection{Timeout: "10s"},
		Admin:   AdminSection{RescuePIN: RescuePIN},
		Log:     LogSection{Level: "info"},
	}
}

// Load reads the optional YAML file at path, then .env, then the process
// environment, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to read .env file", "error", err)
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Server.Port, "PORT")
	set(&c.Server.PublicURL, "PUBLIC_URL")
	set(&c.Storage.Driver, "STORAGE_DRIVER")
	set(&c.Storage.DSN, "STORAGE_DSN")
	set(&c.Remote.DefaultURL, "CRYPTOCAGUA_SHEET_URL")
	set(&c.Remote.Timeout, "SHEET_TIMEOUT")
	set(&c.Admin.PIN, "ADMIN_PIN")
	set(&c.AI.APIKey, "GEMINI_API_KEY")
	set(&c.AI.Model, "GEMINI_MODEL")
	set(&c.Telegram.Token, "TELEGRAM_BOT_TOKEN")
	set(&c.Log.Level, "LOG_LEVEL")

	if v := getenv("SHEET_ALLOW_ANY_HOST"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SHEET_ALLOW_ANY_HOST: %w", err)
		}
		c.Remote.AllowAnyHost = b
	}
	if v := getenv("TELEGRAM_ADMIN_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("TELEGRAM_ADMIN_CHAT_ID: %w", err)
		}
		c.Telegram.AdminChatID = id
	}

	// MYSQL_* variables assemble a DSN when the mysql driver is selected
	// without an explicit one.
	if c.Storage.Driver == "mysql" && getenv("STORAGE_DSN") == "" && getenv("MYSQL_USER") != "" {
		host := getenv("MYSQL_HOST")
		if host == "" {
			host = "tcp(127.0.0.1:3306)"
		}
		dbName := getenv("MYSQL_DATABASE")
		if dbName == "" {
			dbName = "cryptocagua"
		}
		c.Storage.DSN = fmt.Sprintf("%s:%s@%s/%s?parseTime=true", getenv("MYSQL_USER"), getenv("MYSQL_PWD"), host, dbName)
	}
	return nil
}

// Validate fails fast on settings that would only break later.
func (c Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case "file", "memory":
	case "sqlite", "sqlite3", "mysql", "postgres", "mongo", "mongodb":
		if c.Storage.DSN == "" {
			errs = append(errs, fmt.Errorf("storage.dsn is required for driver %q", c.Storage.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}
	if _, err := c.RemoteTimeout(); err != nil {
		errs = append(errs, err)
	}
	if c.Telegram.Token != "" && c.Telegram.AdminChatID == 0 {
		errs = append(errs, errors.New("telegram.admin_chat_id is required when telegram.token is set"))
	}
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// RemoteTimeout parses remote.timeout; empty means the adapter default.
func (c Config) RemoteTimeout() (time.Duration, error) {
	if c.Remote.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Remote.Timeout)
	if err != nil {
		return 0, fmt.Errorf("remote.timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("remote.timeout must not be negative")
	}
	return d, nil
}

// EffectivePIN returns the configured PIN, or the rescue PIN and false when
// none is set.
func (c Config) EffectivePIN() (string, bool) {
	if c.Admin.PIN != "" {
		return c.Admin.PIN, true
	}
	if c.Admin.RescuePIN != "" {
		return c.Admin.RescuePIN, false
	}
	return RescuePIN, false
}

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log.level %q", s)
}

// NewLogger builds the process logger.
func (c Config) NewLogger() *slog.Logger {
	level, _ := ParseLevel(c.Log.Level)
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
