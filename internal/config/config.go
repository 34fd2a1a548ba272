package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Armin-kho/satoshi-converter/internal/sources"
	"github.com/Armin-kho/satoshi-converter/internal/utils"
)

type Config struct {
	BotToken    string `json:"bot_token" yaml:"bot_token"`
	DataDir     string `json:"data_dir" yaml:"data_dir"`
	ListenAddr  string `json:"listen_addr" yaml:"listen_addr"`
	PriceAPIURL string `json:"price_api_url,omitempty" yaml:"price_api_url,omitempty"`

	// Display options shared by the bot and the web page.
	Digits   string `json:"digits,omitempty" yaml:"digits,omitempty"`
	Calendar string `json:"calendar,omitempty" yaml:"calendar,omitempty"`

	// If true, debug messages are logged.
	Debug bool `json:"debug,omitempty" yaml:"debug,omitempty"`
}

const (
	DefaultListenAddr = ":8080"
	dbFileName        = "satsbot.db"
)

func DefaultDataDir() string {
	if v := os.Getenv("SATS_DATA_DIR"); v != "" {
		return v
	}
	return "/var/lib/satoshi-converter"
}

func DefaultConfigPath() string {
	if v := os.Getenv("SATS_CONFIG"); v != "" {
		return v
	}
	return "/etc/satoshi-converter/config.json"
}

// DBPath is where the subscription store lives.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, dbFileName)
}

// Load reads the config file (JSON, or YAML by extension), then a .env file
// in the working directory, then environment overrides. A missing file is
// not an error.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	// Keys absent from the file keep these values; an explicit empty
	// listen_addr disables the web view.
	cfg := Config{ListenAddr: DefaultListenAddr}

	// 1) File
	if b, err := os.ReadFile(path); err == nil {
		if err := decode(path, b, &cfg); err != nil {
			return Config{}, err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	// 2) .env does not override variables already set in the process.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read .env: %w", err)
	}

	// 3) Env override
	applyEnv(&cfg)

	// Defaults
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir()
	}
	cfg.DataDir = filepath.Clean(cfg.DataDir)
	if cfg.PriceAPIURL == "" {
		cfg.PriceAPIURL = sources.DefaultBaseURL
	}
	if cfg.Digits == "" {
		cfg.Digits = utils.DigitsEnglish
	}
	if cfg.Calendar == "" {
		cfg.Calendar = utils.CalendarGregorian
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%w (config %s)", err, path)
	}
	return cfg, nil
}

func decode(path string, b []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return fmt.Errorf("invalid config yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(b, cfg); err != nil {
			return fmt.Errorf("invalid config json: %w", err)
		}
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("BOT_TOKEN"); v != "" {
		cfg.BotToken = v
	}
	if v := os.Getenv("SATS_BOT_TOKEN"); v != "" {
		cfg.BotToken = v
	}
	if v := os.Getenv("SATS_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v, ok := os.LookupEnv("SATS_LISTEN"); ok {
		// Empty disables the web view.
		cfg.ListenAddr = strings.TrimSpace(v)
	}
	if v := os.Getenv("SATS_PRICE_API"); v != "" {
		cfg.PriceAPIURL = v
	}
	if v := os.Getenv("SATS_DIGITS"); v != "" {
		cfg.Digits = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("SATS_CALENDAR"); v != "" {
		cfg.Calendar = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("SATS_DEBUG"); v != "" {
		cfg.Debug = v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
	}
}

var (
	ErrNoFrontend = errors.New("config: neither bot_token nor listen_addr is set")
	ErrDigits     = errors.New("config: digits must be en or fa")
	ErrCalendar   = errors.New("config: calendar must be gregorian or jalali")
)

// Validate checks a loaded config. At least one presentation surface is
// required.
func (c Config) Validate() error {
	if c.BotToken == "" && c.ListenAddr == "" {
		return ErrNoFrontend
	}
	switch c.Digits {
	case utils.DigitsEnglish, utils.DigitsPersian:
	default:
		return ErrDigits
	}
	switch c.Calendar {
	case utils.CalendarGregorian, utils.CalendarJalali:
	default:
		return ErrCalendar
	}
	return nil
}
