package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

type ExecConfig struct {
	Interpreter    string `mapstructure:"interpreter"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	RuntimesFile   string `mapstructure:"runtimes_file"`
}

type OCRConfig struct {
	Binary    string `mapstructure:"binary"`
	Languages string `mapstructure:"languages"`
}

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Exec    ExecConfig    `mapstructure:"exec"`
	OCR     OCRConfig     `mapstructure:"ocr"`
}

// Load reads runlab.yaml from the working directory or ~/.runlab, falling
// back to defaults when no config file exists.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("runlab")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.runlab")

	v.SetDefault("server.port", 8080)
	v.SetDefault("storage.db_path", filepath.Join(os.Getenv("HOME"), ".runlab", "runlab.db"))
	v.SetDefault("exec.interpreter", "python3")
	v.SetDefault("exec.timeout_seconds", 5)
	v.SetDefault("ocr.binary", "tesseract")
	v.SetDefault("ocr.languages", "eng")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return &cfg, nil
}

// ExecTimeout returns the one-shot execution budget.
func (c *Config) ExecTimeout() time.Duration {
	if c.Exec.TimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Exec.TimeoutSeconds) * time.Second
}
