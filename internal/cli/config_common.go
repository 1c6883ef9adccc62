package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vvka-141/sfdash/internal/config"
	"github.com/vvka-141/sfdash/internal/db"
	"github.com/vvka-141/sfdash/internal/db/manager"
	"github.com/vvka-141/sfdash/internal/logging"
	"github.com/vvka-141/sfdash/internal/query"
	"github.com/vvka-141/sfdash/pkg/sfdash"
)

// addConnectionFlags registers the connection override flags on cmd.
func addConnectionFlags(cmd *cobra.Command, flags *config.ConnectionFlags) {
	cmd.Flags().StringVar(&flags.Account, "account", "", "Snowflake account identifier (env: SNOWFLAKE_ACCOUNT)")
	cmd.Flags().StringVarP(&flags.User, "user", "u", "", "Snowflake user (env: SNOWFLAKE_USER)")
	cmd.Flags().StringVarP(&flags.Warehouse, "warehouse", "w", "", "Warehouse (env: SNOWFLAKE_WAREHOUSE)")
	cmd.Flags().StringVarP(&flags.Database, "database", "d", "", "Database (env: SNOWFLAKE_DATABASE)")
	cmd.Flags().StringVarP(&flags.Schema, "schema", "s", "", "Schema (env: SNOWFLAKE_SCHEMA)")
	cmd.Flags().StringVarP(&flags.Role, "role", "r", "", "Role (env: SNOWFLAKE_ROLE)")
	cmd.Flags().StringVar(&flags.TokenPath, "token-path", "", "OAuth token file whose presence selects delegated-token mode (env: SFDASH_TOKEN_PATH)")
}

// loadProjectConfig loads .env files and sfdash.yaml from dir.
// Returns nil config if sfdash.yaml does not exist (not an error).
func loadProjectConfig(dir string) (*config.ProjectConfig, error) {
	loadDotEnv(dir)

	projectCfg, err := config.Load(dir)
	if err != nil {
		if errors.Is(err, config.ErrConfigNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load %s: %w", config.ConfigFileName, err)
	}
	return projectCfg, nil
}

// loadDotEnv loads dir/.env and ./.env if present. Existing environment
// variables are never overridden.
func loadDotEnv(dir string) {
	candidates := []string{filepath.Join(dir, ".env")}
	if abs, err := filepath.Abs(dir); err == nil {
		if cwd, err := os.Getwd(); err == nil && abs != cwd {
			candidates = append(candidates, ".env")
		}
	}
	for _, f := range candidates {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}
}

// newLogger builds the process logger from the verbose flag and the logging
// section of sfdash.yaml.
func newLogger(verbose bool, project *config.ProjectConfig) *logging.ZeroLogger {
	var lc config.LoggingConfig
	if project != nil {
		lc = project.Logging
	}
	return logging.New(logging.Options{
		Verbose:    verbose,
		JSON:       lc.Format == "json",
		File:       lc.File,
		MaxSizeMB:  lc.MaxSizeMB,
		MaxBackups: lc.MaxBackups,
		MaxAgeDays: lc.MaxAgeDays,
		Compress:   lc.Compress,
	})
}

// app bundles the long-lived components shared by serve and query.
type app struct {
	conn     *sfdash.ConnectionConfig
	resolver *db.CredentialResolver
	manager  *manager.Manager
	service  *query.Service
}

// buildApp resolves configuration and wires the credential resolver,
// connection manager and query service. No connection is made.
func buildApp(flags *config.ConnectionFlags, project *config.ProjectConfig, logger sfdash.Logger) (*app, error) {
	connCfg, warnings, err := config.ResolveConnection(flags, config.LoadFromEnvironment(), project)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		logger.Info("Configuration warning: %s", w)
	}

	resolver, err := db.NewCredentialResolver(connCfg, logger)
	if err != nil {
		return nil, err
	}

	mgr := manager.New(resolver, func(cred sfdash.Credential) (sfdash.Connector, error) {
		return db.NewConnector(connCfg, cred, logger)
	}, logger)

	qs, err := config.ResolveQuery(project)
	if err != nil {
		return nil, err
	}

	var queries map[string]string
	if project != nil {
		queries = project.Queries
	}
	catalog, err := query.NewCatalog(queries)
	if err != nil {
		return nil, err
	}
	if catalog.Len() == 0 {
		logger.Info("No queries configured; add a queries: section to %s", config.ConfigFileName)
	}

	svc := query.NewService(mgr, logger,
		query.WithCatalog(catalog),
		query.WithRetryBudget(qs.RetryBudget),
		query.WithRetryDelay(qs.RetryDelay),
	)

	return &app{conn: connCfg, resolver: resolver, manager: mgr, service: svc}, nil
}

// saveConnectionToConfig writes conn into dir/sfdash.yaml, keeping any other
// sections already present. Sample queries are added when none exist.
func saveConnectionToConfig(dir string, conn config.ConnectionConfig) (string, error) {
	cfg, err := config.Load(dir)
	if err != nil {
		if !errors.Is(err, config.ErrConfigNotFound) {
			return "", fmt.Errorf("failed to load existing %s: %w", config.ConfigFileName, err)
		}
		cfg = &config.ProjectConfig{}
	}

	cfg.Connection = conn
	if len(cfg.Queries) == 0 {
		cfg.Queries = sampleQueries()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	if err := config.Save(dir, cfg); err != nil {
		return "", err
	}
	return filepath.Join(dir, config.ConfigFileName), nil
}

// sampleQueries run against SNOWFLAKE_SAMPLE_DATA.TPCH_SF1, the placeholder
// database and schema.
func sampleQueries() map[string]string {
	return map[string]string{
		"select-one":      "SELECT 1 AS ONE",
		"current-context": "SELECT CURRENT_ACCOUNT() AS ACCOUNT, CURRENT_USER() AS USER_NAME, CURRENT_ROLE() AS ROLE_NAME, CURRENT_WAREHOUSE() AS WAREHOUSE, CURRENT_DATABASE() AS DATABASE_NAME",
		"top-customers":   "SELECT C_NAME, C_MKTSEGMENT, C_ACCTBAL FROM CUSTOMER ORDER BY C_ACCTBAL DESC LIMIT 10",
		"orders-by-status": "SELECT O_ORDERSTATUS, COUNT(*) AS ORDERS, SUM(O_TOTALPRICE) AS TOTAL " +
			"FROM ORDERS GROUP BY O_ORDERSTATUS ORDER BY O_ORDERSTATUS",
		"revenue-by-nation": "SELECT N_NAME, SUM(L_EXTENDEDPRICE * (1 - L_DISCOUNT)) AS REVENUE " +
			"FROM CUSTOMER JOIN ORDERS ON C_CUSTKEY = O_CUSTKEY " +
			"JOIN LINEITEM ON L_ORDERKEY = O_ORDERKEY " +
			"JOIN NATION ON C_NATIONKEY = N_NATIONKEY " +
			"WHERE O_ORDERDATE >= '1994-01-01' AND O_ORDERDATE < '1995-01-01' " +
			"GROUP BY N_NAME ORDER BY REVENUE DESC LIMIT 10",
	}
}
