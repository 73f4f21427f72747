package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	DefaultConfigFileName = "config.toml"
	DefaultDBName         = "tasks.db"
	DefaultLogName        = "tasks.log"
	DefaultDriver         = "sqlite"
	DefaultTimeout        = 10 * time.Second
)

// Environment overrides, usually supplied through a .env file next to the binary.
const (
	EnvDriver   = "TODO_DB_DRIVER"
	EnvDSN      = "TODO_DATABASE_URL"
	EnvLogLevel = "TODO_LOG_LEVEL"
	EnvConfig   = "TODO_CONFIG"
)

type Keymap struct {
	Quit      string `toml:"quit"`
	Add       string `toml:"add"`
	Up        string `toml:"up"`
	Down      string `toml:"down"`
	Toggle    string `toml:"toggle"`
	Delete    string `toml:"delete"`
	Filter    string `toml:"filter"`
	Category  string `toml:"category"`
	Refresh   string `toml:"refresh"`
	Confirm   string `toml:"confirm"`
	Cancel    string `toml:"cancel"`
	NextField string `toml:"next_field"`
}

type Config struct {
	// Driver is "sqlite" or "postgres".
	Driver string `toml:"driver"`
	// DSN is the postgres connection string. Ignored for sqlite.
	DSN           string   `toml:"dsn"`
	DBPath        string   `toml:"db_path"`
	LogPath       string   `toml:"log_path"`
	LogLevel      string   `toml:"log_level"`
	Timeout       Duration `toml:"timeout"`
	Categories    []string `toml:"categories"`
	DefaultFilter string   `toml:"default_filter"`
	Keys          Keymap   `toml:"keys"`
}

// Duration reads "10s"-style strings from TOML.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// ResolveConfigPath returns $TODO_CONFIG when set, otherwise config.toml in the
// user config dir, falling back to the working directory.
func ResolveConfigPath() string {
	if p := strings.TrimSpace(os.Getenv(EnvConfig)); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return DefaultConfigFileName
	}
	return filepath.Join(dir, "tasks", DefaultConfigFileName)
}

func LoadOrCreate(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig(filepath.Dir(path))
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := write(path, cfg); err != nil {
			return cfg, err
		}
		applyEnv(&cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	fillDefaults(&cfg, filepath.Dir(path))
	applyEnv(&cfg)
	return cfg, nil
}

func write(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvDriver)); v != "" {
		cfg.Driver = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDSN)); v != "" {
		cfg.DSN = v
		if os.Getenv(EnvDriver) == "" {
			cfg.Driver = "postgres"
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.LogLevel = v
	}
}

func fillDefaults(cfg *Config, dir string) {
	def := defaultConfig(dir)
	if cfg.Driver == "" {
		cfg.Driver = def.Driver
	}
	if cfg.DBPath == "" {
		cfg.DBPath = def.DBPath
	}
	if cfg.LogPath == "" {
		cfg.LogPath = def.LogPath
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	if cfg.Timeout.Duration <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.DefaultFilter == "" {
		cfg.DefaultFilter = def.DefaultFilter
	}
	fillKeys(&cfg.Keys, def.Keys)
}

func fillKeys(k *Keymap, def Keymap) {
	set := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	set(&k.Quit, def.Quit)
	set(&k.Add, def.Add)
	set(&k.Up, def.Up)
	set(&k.Down, def.Down)
	set(&k.Toggle, def.Toggle)
	set(&k.Delete, def.Delete)
	set(&k.Filter, def.Filter)
	set(&k.Category, def.Category)
	set(&k.Refresh, def.Refresh)
	set(&k.Confirm, def.Confirm)
	set(&k.Cancel, def.Cancel)
	set(&k.NextField, def.NextField)
}

func defaultConfig(dir string) Config {
	return Config{
		Driver:        DefaultDriver,
		DBPath:        filepath.Join(dir, DefaultDBName),
		LogPath:       filepath.Join(dir, DefaultLogName),
		LogLevel:      "info",
		Timeout:       Duration{DefaultTimeout},
		DefaultFilter: "All",
		Keys: Keymap{
			Quit:      "q",
			Add:       "a",
			Up:        "k",
			Down:      "j",
			Toggle:    " ",
			Delete:    "d",
			Filter:    "f",
			Category:  "c",
			Refresh:   "r",
			Confirm:   "enter",
			Cancel:    "esc",
			NextField: "tab",
		},
	}
}
