package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment overrides. A double underscore
// separates nesting levels: WRISTREMINDER_DB__DSN sets db.dsn.
const EnvPrefix = "WRISTREMINDER_"

type Config struct {
	Timezone string         `koanf:"timezone" validate:"required"`
	DB       DBConfig       `koanf:"db"`
	Log      LogConfig      `koanf:"log"`
	Alarm    AlarmConfig    `koanf:"alarm"`
	Sync     SyncConfig     `koanf:"sync"`
	Web      WebConfig      `koanf:"web"`
	Telegram TelegramConfig `koanf:"telegram"`
}

type DBConfig struct {
	Driver string `koanf:"driver" validate:"oneof=sqlite pgx"`
	DSN    string `koanf:"dsn" validate:"required"`
}

type LogConfig struct {
	Level      string `koanf:"level" validate:"oneof=debug info warn error"`
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb" validate:"min=1"`
	MaxBackups int    `koanf:"max_backups" validate:"min=0"`
	MaxAgeDays int    `koanf:"max_age_days" validate:"min=0"`
}

type AlarmConfig struct {
	Tick            time.Duration `koanf:"tick" validate:"gt=0"`
	ExactPermission bool          `koanf:"exact_permission"`
}

type SyncConfig struct {
	Cron     string         `koanf:"cron"`
	Timeout  time.Duration  `koanf:"timeout" validate:"gt=0"`
	Lookback time.Duration  `koanf:"lookback" validate:"gte=0"`
	Horizon  time.Duration  `koanf:"horizon" validate:"gte=0"`
	ReposDir string         `koanf:"repos_dir"`
	Sources  []SourceConfig `koanf:"sources" validate:"dive"`
}

// SourceConfig describes one remote calendar.
type SourceConfig struct {
	Name     string `koanf:"name" validate:"required"`
	Type     string `koanf:"type" validate:"oneof=ics git"`
	URL      string `koanf:"url" validate:"required"`
	Username string `koanf:"username"`
	Token    string `koanf:"token"`
	AuthURL  string `koanf:"auth_url"`
}

type WebConfig struct {
	Listen string `koanf:"listen"`
}

type TelegramConfig struct {
	Token  string `koanf:"token"`
	ChatID int64  `koanf:"chat_id" validate:"required_with=Token"`
}

// Defaults returns the built-in configuration as flat koanf keys.
func Defaults() map[string]any {
	return map[string]any{
		"timezone":               "Local",
		"db.driver":              "sqlite",
		"db.dsn":                 "wristreminder.db",
		"log.level":              "info",
		"log.file":               "",
		"log.max_size_mb":        10,
		"log.max_backups":        3,
		"log.max_age_days":       28,
		"alarm.tick":             "1s",
		"alarm.exact_permission": true,
		"sync.cron":              "*/15 * * * *",
		"sync.timeout":           "30s",
		"sync.lookback":          "8760h",
		"sync.horizon":           "17520h",
		"sync.repos_dir":         "repos",
		"sync.sources":           []any{},
		"web.listen":             ":8080",
		"telegram.token":         "",
		"telegram.chat_id":       0,
	}
}

// flagKeys maps command line flag names to config keys.
var flagKeys = map[string]string{
	"db-driver": "db.driver",
	"db":        "db.dsn",
	"listen":    "web.listen",
	"log-level": "log.level",
	"log-file":  "log.file",
	"timezone":  "timezone",
}

// RegisterFlags adds the flags that override config keys to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	defaults := Defaults()
	fs.String("db-driver", defaults["db.driver"].(string), "Database driver (sqlite or pgx)")
	fs.String("db", defaults["db.dsn"].(string), "Database path or DSN")
	fs.String("listen", defaults["web.listen"].(string), "Address for the HTTP API")
	fs.String("log-level", defaults["log.level"].(string), "Log level (debug, info, warn, error)")
	fs.String("log-file", "", "Also write logs to this file, rotated")
	fs.String("timezone", defaults["timezone"].(string), "IANA zone reminders are interpreted in")
}

// Load builds the configuration from defaults, the YAML file at path, the
// environment and finally fs, each layer overriding the previous one. A
// missing file is created with the defaults. path and fs may be empty/nil.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			if err := WriteDefault(path); err != nil {
				return nil, err
			}
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if fs != nil {
		if err := k.Load(posflag.ProviderWithFlag(fs, ".", k, flagKey(fs)), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ToLower(strings.ReplaceAll(s, "__", "."))
}

// flagKey renames known flags to their config keys and drops the rest.
func flagKey(fs *pflag.FlagSet) func(f *pflag.Flag) (string, any) {
	return func(f *pflag.Flag) (string, any) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return "", nil
		}
		return key, posflag.FlagVal(fs, f)
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and that the timezone is known.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// WriteDefault writes the default configuration to path as YAML. The file is
// written to a temporary name first and renamed into place with mode 0600.
func WriteDefault(path string) error {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return fmt.Errorf("failed to load defaults: %w", err)
	}
	data, err := yamlv3.Marshal(k.Raw())
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".wristreminder-config-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp config: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("failed to set config permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to move config into place: %w", err)
	}
	return nil
}
