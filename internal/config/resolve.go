package config

import (
	"fmt"
	"time"

	"github.com/vvka-141/sfdash/pkg/sfdash"
)

// DefaultShutdownTimeout bounds graceful HTTP shutdown.
const DefaultShutdownTimeout = 10 * time.Second

// ConnectionFlags represents connection parameters from CLI flags.
type ConnectionFlags struct {
	Account   string
	User      string
	Warehouse string
	Database  string
	Schema    string
	Role      string
	TokenPath string
}

// ResolveConnection merges connection settings with precedence
// flags > environment > sfdash.yaml > placeholder.
//
// Absent account, user, warehouse, database and schema fall back to
// placeholder values; each substitution is returned as a warning for the
// operator rather than an error.
func ResolveConnection(flags *ConnectionFlags, env *EnvVars, project *ProjectConfig) (*sfdash.ConnectionConfig, []string, error) {
	if flags == nil {
		flags = &ConnectionFlags{}
	}
	if env == nil {
		env = &EnvVars{}
	}
	file := ConnectionConfig{}
	if project != nil {
		file = project.Connection
	}

	var warnings []string
	withPlaceholder := func(envName, placeholder string, values ...string) string {
		if v := firstNonEmpty(values...); v != "" {
			return v
		}
		warnings = append(warnings, fmt.Sprintf("%s is not set; using placeholder %q", envName, placeholder))
		return placeholder
	}

	cfg := &sfdash.ConnectionConfig{
		Account:   withPlaceholder("SNOWFLAKE_ACCOUNT", sfdash.PlaceholderAccount, flags.Account, env.SNOWFLAKE_ACCOUNT, file.Account),
		User:      withPlaceholder("SNOWFLAKE_USER", sfdash.PlaceholderUser, flags.User, env.SNOWFLAKE_USER, file.User),
		Warehouse: withPlaceholder("SNOWFLAKE_WAREHOUSE", sfdash.PlaceholderWarehouse, flags.Warehouse, env.SNOWFLAKE_WAREHOUSE, file.Warehouse),
		Database:  withPlaceholder("SNOWFLAKE_DATABASE", sfdash.PlaceholderDatabase, flags.Database, env.SNOWFLAKE_DATABASE, file.Database),
		Schema:    withPlaceholder("SNOWFLAKE_SCHEMA", sfdash.PlaceholderSchema, flags.Schema, env.SNOWFLAKE_SCHEMA, file.Schema),
		Role:      firstNonEmpty(flags.Role, env.SNOWFLAKE_ROLE, file.Role),
		Host:      firstNonEmpty(env.SNOWFLAKE_HOST, file.Host),
		Port:      file.Port,
		Protocol:  file.Protocol,
		TokenPath: firstNonEmpty(flags.TokenPath, env.SFDASH_TOKEN_PATH, file.TokenPath, sfdash.DefaultTokenPath),

		OAuthProvider:     file.OAuthProvider,
		OAuthScope:        file.OAuthScope,
		AzureTenantID:     firstNonEmpty(env.AZURE_TENANT_ID, file.AzureTenantID),
		AzureClientID:     firstNonEmpty(env.AZURE_CLIENT_ID, file.AzureClientID),
		AzureClientSecret: env.AZURE_CLIENT_SECRET,

		Application: firstNonEmpty(file.Application, sfdash.DefaultApplication),
	}

	if file.LoginTimeout != "" {
		d, err := parseDuration("connection.login_timeout", file.LoginTimeout)
		if err != nil {
			return nil, nil, err
		}
		cfg.LoginTimeout = d
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, nil, fmt.Errorf("connection.port %d out of range: %w", cfg.Port, sfdash.ErrInvalidConfig)
	}

	return cfg, warnings, nil
}

// ServerSettings are the resolved HTTP server settings.
type ServerSettings struct {
	Listen          string
	QueryTimeout    time.Duration // zero means no per-request timeout
	ShutdownTimeout time.Duration
	WatchToken      bool
}

// ResolveServer applies flag > sfdash.yaml > default precedence to the server settings.
func ResolveServer(listenFlag string, project *ProjectConfig) (ServerSettings, error) {
	var file ServerConfig
	var watch bool
	if project != nil {
		file = project.Server
		watch = project.Connection.WatchToken
	}

	s := ServerSettings{
		Listen:          firstNonEmpty(listenFlag, file.Listen, sfdash.DefaultListenAddr),
		ShutdownTimeout: DefaultShutdownTimeout,
		WatchToken:      watch,
	}
	if file.QueryTimeout != "" {
		d, err := parseDuration("server.query_timeout", file.QueryTimeout)
		if err != nil {
			return ServerSettings{}, err
		}
		s.QueryTimeout = d
	}
	if file.ShutdownTimeout != "" {
		d, err := parseDuration("server.shutdown_timeout", file.ShutdownTimeout)
		if err != nil {
			return ServerSettings{}, err
		}
		s.ShutdownTimeout = d
	}
	return s, nil
}

// QuerySettings are the resolved query retry settings.
type QuerySettings struct {
	RetryBudget int
	RetryDelay  time.Duration
}

// ResolveQuery returns the retry settings from sfdash.yaml, defaulting to a
// single immediate retry.
func ResolveQuery(project *ProjectConfig) (QuerySettings, error) {
	s := QuerySettings{
		RetryBudget: sfdash.DefaultRetryBudget,
		RetryDelay:  sfdash.DefaultRetryDelay,
	}
	if project == nil {
		return s, nil
	}

	if b := project.Query.RetryBudget; b != nil {
		if *b < 0 {
			return QuerySettings{}, fmt.Errorf("query.retry_budget must not be negative: %w", sfdash.ErrInvalidConfig)
		}
		s.RetryBudget = *b
	}
	if project.Query.RetryDelay != "" {
		d, err := parseDuration("query.retry_delay", project.Query.RetryDelay)
		if err != nil {
			return QuerySettings{}, err
		}
		s.RetryDelay = d
	}
	return s, nil
}

func parseDuration(field, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q in %s: %w", field, value, ConfigFileName, sfdash.ErrInvalidConfig)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative in %s: %w", field, ConfigFileName, sfdash.ErrInvalidConfig)
	}
	return d, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
