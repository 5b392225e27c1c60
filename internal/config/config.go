package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application. Values are read
// by viper from a config file or environment variables.
type Config struct {
	// ListenAddr is the HTTP API bind address.
	ListenAddr string `mapstructure:"LISTEN_ADDR"`

	// BadgerDBPath is the on-disk location of the thumbnail library.
	BadgerDBPath string `mapstructure:"BADGERDB_PATH"`

	// ExportDir receives downloaded thumbnail images.
	ExportDir string `mapstructure:"EXPORT_DIR"`

	// TelegramBotToken enables the Telegram capture surface when set.
	TelegramBotToken string `mapstructure:"TELEGRAM_BOT_TOKEN"`

	// LogLevel is a logrus level name; defaults to info.
	LogLevel string `mapstructure:"LOG_LEVEL"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err = viper.ReadInConfig(); err != nil {
		// A missing file is fine; env vars may carry everything.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err = viper.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if config.ListenAddr == "" {
		config.ListenAddr = "127.0.0.1:8590"
	}
	if config.BadgerDBPath == "" {
		config.BadgerDBPath = "./badger_data"
	}
	if config.ExportDir == "" {
		config.ExportDir = "./exports"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}

	return config, nil
}
