// Package config loads langbuddy settings from defaults, an optional config
// file, LANGBUDDY_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "LANGBUDDY"

type Config struct {
	DBPath     string           `mapstructure:"db_path"`
	Listen     string           `mapstructure:"listen"`
	Debug      bool             `mapstructure:"debug"`
	Dictionary DictionaryConfig `mapstructure:"dictionary"`
	Ingest     IngestConfig     `mapstructure:"ingest"`
	WordBank   WordBankConfig   `mapstructure:"wordbank"`
	Quiz       QuizConfig       `mapstructure:"quiz"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Adapter    AdapterConfig    `mapstructure:"adapter"`
}

type DictionaryConfig struct {
	// Path is the local vocabulary JSON file.
	Path string `mapstructure:"path"`
	// URL is where Path is downloaded from when missing.
	URL       string `mapstructure:"url"`
	CacheSize int    `mapstructure:"cache_size"`
}

type IngestConfig struct {
	Workers   int `mapstructure:"workers"`
	BatchSize int `mapstructure:"batch_size"`
}

type WordBankConfig struct {
	DefaultLimit int `mapstructure:"default_limit"`
	MaxLimit     int `mapstructure:"max_limit"`
}

type QuizConfig struct {
	DistractorWindows  int `mapstructure:"distractor_windows"`
	DistractorPageSize int `mapstructure:"distractor_page_size"`
}

type HTTPConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
}

// AdapterConfig points at the external adaptation service. An empty URL
// keeps extracted text unchanged.
type AdapterConfig struct {
	URL string `mapstructure:"url"`
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"db":          "db_path",
	"listen":      "listen",
	"debug":       "debug",
	"dict":        "dictionary.path",
	"dict-url":    "dictionary.url",
	"workers":     "ingest.workers",
	"batch-size":  "ingest.batch_size",
	"adapter-url": "adapter.url",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db_path", "langbuddy.db")
	v.SetDefault("listen", ":8080")
	v.SetDefault("debug", false)
	v.SetDefault("dictionary.path", "data/topik_vocab.json")
	v.SetDefault("dictionary.url", "")
	v.SetDefault("dictionary.cache_size", 256)
	v.SetDefault("ingest.workers", 4)
	v.SetDefault("ingest.batch_size", 50)
	v.SetDefault("wordbank.default_limit", 40)
	v.SetDefault("wordbank.max_limit", 100)
	v.SetDefault("quiz.distractor_windows", 5)
	v.SetDefault("quiz.distractor_page_size", 50)
	v.SetDefault("http.timeout", 20*time.Second)
	v.SetDefault("http.max_body_bytes", 10<<20)
	v.SetDefault("adapter.url", "")
}

// Load reads the configuration. An explicit path must exist; without one,
// langbuddy.{yaml,json,toml} is looked up in the working directory and in
// $HOME/.config/langbuddy and skipped when absent. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("langbuddy")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/langbuddy")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the rest of the program cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.DBPath == "":
		return errors.New("config: db_path is empty")
	case c.Ingest.Workers < 1:
		return fmt.Errorf("config: ingest.workers must be positive, got %d", c.Ingest.Workers)
	case c.Ingest.BatchSize < 1:
		return fmt.Errorf("config: ingest.batch_size must be positive, got %d", c.Ingest.BatchSize)
	case c.WordBank.MaxLimit < 1 || c.WordBank.DefaultLimit < 1 || c.WordBank.DefaultLimit > c.WordBank.MaxLimit:
		return fmt.Errorf("config: wordbank limits %d/%d are inconsistent", c.WordBank.DefaultLimit, c.WordBank.MaxLimit)
	case c.Quiz.DistractorWindows < 1 || c.Quiz.DistractorPageSize < 1:
		return errors.New("config: quiz distractor windows and page size must be positive")
	case c.HTTP.Timeout <= 0:
		return errors.New("config: http.timeout must be positive")
	}
	return nil
}
