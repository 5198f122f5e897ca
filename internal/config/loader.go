package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	configDirName  = ".commitlens"
	configFileName = "config"
	configFileType = "yaml"
	envPrefix      = "COMMITLENS"
)

// Load loads the configuration from file, environment variables, and defaults.
// Precedence, highest first:
// 1. Environment variables (COMMITLENS_ prefix, .env in the working directory included)
// 2. Configuration file (~/.commitlens/config.yaml)
// 3. Default values
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("failed to initialize viper: %w", err)
	}

	setDefaults()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	expandConfigPaths(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ConfigPath returns the location of the config file.
func ConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, configDirName, configFileName+"."+configFileType), nil
}

func initViper() error {
	configPath, err := ConfigPath()
	if err != nil {
		return err
	}

	viper.SetConfigFile(configPath)
	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) && !os.IsNotExist(err) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

func setDefaults() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "~"
	}
	base := filepath.Join(homeDir, configDirName)

	viper.SetDefault("api.base_url", "http://localhost:8000")
	viper.SetDefault("api.timeout", 60*time.Second)

	viper.SetDefault("oauth.provider", "github")
	viper.SetDefault("oauth.client_id", "")
	viper.SetDefault("oauth.redirect_url", "http://localhost:3000/callback")
	viper.SetDefault("oauth.listen_addr", "127.0.0.1:3000")
	viper.SetDefault("oauth.scopes", []string{})

	viper.SetDefault("storage.base_path", base)
	viper.SetDefault("storage.state_path", filepath.Join(base, "state.db"))

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.file_path", filepath.Join(base, "commitlens.log"))
	viper.SetDefault("logging.console", false)
}

// expandHomeDir expands ~ in a path to the user's home directory
func expandHomeDir(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return homeDir
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

func expandConfigPaths(cfg *Config) {
	cfg.Storage.BasePath = expandHomeDir(cfg.Storage.BasePath)
	cfg.Storage.StatePath = expandHomeDir(cfg.Storage.StatePath)
	cfg.Logging.FilePath = expandHomeDir(cfg.Logging.FilePath)
}
