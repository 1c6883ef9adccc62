package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound is returned when the config file does not exist.
// Callers can check for this with errors.Is(err, config.ErrConfigNotFound).
var ErrConfigNotFound = errors.New("config file not found")

type ConnectionConfig struct {
	Account       string `yaml:"account,omitempty"`
	User          string `yaml:"user,omitempty"`
	Warehouse     string `yaml:"warehouse,omitempty"`
	Database      string `yaml:"database,omitempty"`
	Schema        string `yaml:"schema,omitempty"`
	Role          string `yaml:"role,omitempty"`
	Host          string `yaml:"host,omitempty"`
	Port          int    `yaml:"port,omitempty"`
	Protocol      string `yaml:"protocol,omitempty"`
	TokenPath     string `yaml:"token_path,omitempty"`
	WatchToken    bool   `yaml:"watch_token,omitempty"`
	LoginTimeout  string `yaml:"login_timeout,omitempty"`
	Application   string `yaml:"application,omitempty"`
	OAuthProvider string `yaml:"oauth_provider,omitempty"`
	OAuthScope    string `yaml:"oauth_scope,omitempty"`
	AzureTenantID string `yaml:"azure_tenant_id,omitempty"`
	AzureClientID string `yaml:"azure_client_id,omitempty"`
}

type ServerConfig struct {
	Listen          string `yaml:"listen,omitempty"`
	QueryTimeout    string `yaml:"query_timeout,omitempty"`
	ShutdownTimeout string `yaml:"shutdown_timeout,omitempty"`
}

type QueryConfig struct {
	RetryBudget *int   `yaml:"retry_budget,omitempty"`
	RetryDelay  string `yaml:"retry_delay,omitempty"`
}

type LoggingConfig struct {
	File       string `yaml:"file,omitempty"`
	Format     string `yaml:"format,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty"`
	Compress   bool   `yaml:"compress,omitempty"`
}

type ProjectConfig struct {
	Connection ConnectionConfig  `yaml:"connection"`
	Server     ServerConfig      `yaml:"server,omitempty"`
	Query      QueryConfig       `yaml:"query,omitempty"`
	Logging    LoggingConfig     `yaml:"logging,omitempty"`
	Queries    map[string]string `yaml:"queries,omitempty"`
}

const ConfigFileName = "sfdash.yaml"

func Load(dir string) (*ProjectConfig, error) {
	configPath := filepath.Join(dir, ConfigFileName)
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", configPath, err)
	}
	return &cfg, nil
}

// Save writes cfg to dir/sfdash.yaml, replacing any existing file.
func Save(dir string, cfg *ProjectConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, ConfigFileName), data, 0644)
}
