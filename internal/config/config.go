package config

import "time"

// Config represents the root configuration structure for commitlens
type Config struct {
	API     APIConfig     `mapstructure:"api" yaml:"api"`
	OAuth   OAuthConfig   `mapstructure:"oauth" yaml:"oauth"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// APIConfig locates the analysis backend
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// OAuthConfig describes the authorization-code flow
type OAuthConfig struct {
	Provider    string   `mapstructure:"provider" yaml:"provider"`
	ClientID    string   `mapstructure:"client_id" yaml:"client_id"`
	RedirectURL string   `mapstructure:"redirect_url" yaml:"redirect_url"`
	ListenAddr  string   `mapstructure:"listen_addr" yaml:"listen_addr"`
	Scopes      []string `mapstructure:"scopes" yaml:"scopes"`
}

// StorageConfig contains storage-related configuration
type StorageConfig struct {
	BasePath  string `mapstructure:"base_path" yaml:"base_path"`
	StatePath string `mapstructure:"state_path" yaml:"state_path"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `mapstructure:"level" yaml:"level"`
	FilePath string `mapstructure:"file_path" yaml:"file_path"`
	Console  bool   `mapstructure:"console" yaml:"console"`
}
