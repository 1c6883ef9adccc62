package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/snowflakedb/gosnowflake"

	"github.com/vvka-141/sfdash/internal/retry"
	"github.com/vvka-141/sfdash/pkg/sfdash"
)

// Snowflake login error numbers that get dedicated guidance.
const (
	errCodeIncorrectCredentials = 390100
	errCodeInvalidOAuthToken    = 390303
	errCodeOAuthTokenExpired    = 390318
)

type poolSettings struct {
	maxOpen     int
	maxIdle     int
	maxIdleTime time.Duration
}

func configurePool(db *sql.DB, p poolSettings) {
	db.SetMaxOpenConns(p.maxOpen)
	db.SetMaxIdleConns(p.maxIdle)
	db.SetConnMaxIdleTime(p.maxIdleTime)
}

// openFunc opens a database handle for a driver configuration.
type openFunc func(cfg gosnowflake.Config) (*sql.DB, error)

func openSnowflake(cfg gosnowflake.Config) (*sql.DB, error) {
	return sql.OpenDB(gosnowflake.NewConnector(gosnowflake.SnowflakeDriver{}, cfg)), nil
}

// SnowflakeConnector implements sfdash.Connector for one credential variant.
// The driver configuration is fixed at construction; Connect opens a new
// pool and verifies it with a ping, which for the interactive variant runs
// the browser SSO login.
type SnowflakeConnector struct {
	mode          sfdash.AuthMode
	driverConfig  gosnowflake.Config
	pool          poolSettings
	retryExecutor *retry.Executor
	open          openFunc
	logger        sfdash.Logger
}

// NewConnector is a factory function that creates the Connector for the
// credential variant.
func NewConnector(config *sfdash.ConnectionConfig, credential sfdash.Credential, logger sfdash.Logger) (sfdash.Connector, error) {
	switch c := credential.(type) {
	case sfdash.InteractiveCredential:
		return NewInteractiveConnector(config, c, logger)
	case sfdash.DelegatedTokenCredential:
		return NewTokenConnector(config, c, logger)
	default:
		return nil, fmt.Errorf("unsupported credential %T: %w", credential, sfdash.ErrUnsupportedAuthMode)
	}
}

// NewInteractiveConnector creates a connector that authenticates through the
// external browser. The pool is limited to one connection so the login
// happens once per handle; connect attempts are never retried.
func NewInteractiveConnector(config *sfdash.ConnectionConfig, cred sfdash.InteractiveCredential, logger sfdash.Logger) (*SnowflakeConnector, error) {
	if cred.Account == "" || cred.User == "" {
		return nil, fmt.Errorf("interactive mode requires account and user: %w", sfdash.ErrInvalidConfig)
	}

	cfg := baseDriverConfig(config, cred.SessionDefaults)
	cfg.Account = cred.Account
	cfg.User = cred.User
	cfg.Authenticator = gosnowflake.AuthTypeExternalBrowser
	cfg.ClientStoreTemporaryCredential = gosnowflake.ConfigBoolTrue
	if config.LoginTimeout > 0 {
		cfg.ExternalBrowserTimeout = config.LoginTimeout
	}

	return &SnowflakeConnector{
		mode:         sfdash.AuthModeInteractive,
		driverConfig: cfg,
		pool: poolSettings{
			maxOpen:     1,
			maxIdle:     1,
			maxIdleTime: sfdash.DefaultConnMaxIdleTime,
		},
		open:   openSnowflake,
		logger: logger,
	}, nil
}

// NewTokenConnector creates a connector that authenticates with a bearer
// OAuth token. Transient network failures while connecting are retried with
// exponential backoff.
func NewTokenConnector(config *sfdash.ConnectionConfig, cred sfdash.DelegatedTokenCredential, logger sfdash.Logger) (*SnowflakeConnector, error) {
	if cred.Token == "" {
		return nil, fmt.Errorf("delegated-token mode requires a token: %w", sfdash.ErrInvalidConfig)
	}
	if cred.Account == "" {
		return nil, fmt.Errorf("delegated-token mode requires an account: %w", sfdash.ErrInvalidConfig)
	}

	cfg := baseDriverConfig(config, cred.SessionDefaults)
	cfg.Account = cred.Account
	cfg.Host = cred.Host
	cfg.Token = cred.Token
	cfg.Authenticator = gosnowflake.AuthTypeOAuth

	strategy := retry.NewExponentialBackoff(sfdash.DefaultConnectRetryAttempts,
		retry.WithInitialDelay(sfdash.DefaultConnectRetryInitialDelay),
		retry.WithMaxDelay(sfdash.DefaultConnectRetryMaxDelay),
	)
	executor := retry.NewExecutor(retry.NewNetworkErrorClassifier(), strategy).
		WithOnRetry(func(attempt int, err error, delay time.Duration) {
			logger.Info("Connect attempt %d failed, retrying in %v: %v", attempt+1, delay, err)
		})

	return &SnowflakeConnector{
		mode:         sfdash.AuthModeDelegatedToken,
		driverConfig: cfg,
		pool: poolSettings{
			maxOpen:     sfdash.DefaultMaxOpenConns,
			maxIdle:     sfdash.DefaultMaxIdleConns,
			maxIdleTime: sfdash.DefaultConnMaxIdleTime,
		},
		retryExecutor: executor,
		open:          openSnowflake,
		logger:        logger,
	}, nil
}

func baseDriverConfig(config *sfdash.ConnectionConfig, defaults sfdash.SessionDefaults) gosnowflake.Config {
	application := config.Application
	if application == "" {
		application = sfdash.DefaultApplication
	}
	cfg := gosnowflake.Config{
		Warehouse:   defaults.Warehouse,
		Database:    defaults.Database,
		Schema:      defaults.Schema,
		Role:        defaults.Role,
		Port:        config.Port,
		Protocol:    config.Protocol,
		Application: application,
	}
	if config.LoginTimeout > 0 {
		cfg.LoginTimeout = config.LoginTimeout
	}
	return cfg
}

// Mode reports the credential variant this connector authenticates with.
func (c *SnowflakeConnector) Mode() sfdash.AuthMode {
	return c.mode
}

// Connect opens a connection pool and verifies it.
func (c *SnowflakeConnector) Connect(ctx context.Context) (sfdash.Conn, error) {
	if c.retryExecutor == nil {
		return c.connectOnce(ctx)
	}

	var conn sfdash.Conn
	err := c.retryExecutor.Execute(ctx, func(ctx context.Context) error {
		var err error
		conn, err = c.connectOnce(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (c *SnowflakeConnector) connectOnce(ctx context.Context) (sfdash.Conn, error) {
	if c.mode == sfdash.AuthModeInteractive {
		c.logger.Info("Opening browser for Snowflake SSO login (account=%s, user=%s)", c.driverConfig.Account, c.driverConfig.User)
	}

	db, err := c.open(c.driverConfig)
	if err != nil {
		return nil, wrapConnectionError(err, c.driverConfig.Account, c.mode)
	}
	configurePool(db, c.pool)

	if err := db.PingContext(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			c.logger.Verbose("Closing failed pool: %v", closeErr)
		}
		return nil, wrapConnectionError(err, c.driverConfig.Account, c.mode)
	}
	return NewSQLConn(db), nil
}

// wrapConnectionError wraps raw driver connection errors with actionable
// guidance and chains sfdash.ErrConnectionFailed.
func wrapConnectionError(err error, account string, mode sfdash.AuthMode) error {
	return fmt.Errorf("%w: %w", sfdash.ErrConnectionFailed, explainConnectionError(err, account, mode))
}

func explainConnectionError(err error, account string, mode sfdash.AuthMode) error {
	var sfErr *gosnowflake.SnowflakeError
	if errors.As(err, &sfErr) {
		switch sfErr.Number {
		case errCodeIncorrectCredentials:
			return fmt.Errorf(`authentication failed for account "%s"

Possible causes:
  - Wrong user (check $SNOWFLAKE_USER)
  - User is not provisioned for SSO in this account

Original error: %w`, account, err)

		case errCodeInvalidOAuthToken, errCodeOAuthTokenExpired:
			return fmt.Errorf(`OAuth token rejected by account "%s"

Possible causes:
  - The platform has not rotated the session token yet
  - The token was issued for a different account or host (check $SNOWFLAKE_HOST)
  - The OAuth security integration does not map the token to a user

Original error: %w`, account, err)
		}
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "no such host") || strings.Contains(errStr, "no host"):
		return fmt.Errorf(`cannot resolve host for account "%s"

Possible causes:
  - Account identifier is misspelled (expected <orgname>-<account> or <locator>.<region>)
  - DNS is not configured or reachable
  - Network connection issue

Original error: %w`, account, err)

	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "timed out"):
		if mode == sfdash.AuthModeInteractive {
			return fmt.Errorf(`browser login did not complete for account "%s"

Possible causes:
  - The SSO page was closed or never opened (is a browser available?)
  - connection.login_timeout is shorter than the login takes

Original error: %w`, account, err)
		}
		return fmt.Errorf(`connection timed out to account "%s"

Possible causes:
  - Warehouse endpoint is unreachable from this network
  - Proxy or firewall silently dropping packets

Original error: %w`, account, err)

	case strings.Contains(errStr, "browser"):
		return fmt.Errorf(`browser-based SSO failed for account "%s"

Possible causes:
  - No browser available (running headless? mount a token file instead)
  - The identity provider rejected the login

Original error: %w`, account, err)

	default:
		return fmt.Errorf("failed to connect to Snowflake account %q: %w", account, err)
	}
}
