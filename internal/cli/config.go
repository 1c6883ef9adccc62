package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vvka-141/sfdash/internal/config"
	"github.com/vvka-141/sfdash/internal/db"
	"github.com/vvka-141/sfdash/internal/query"
	"github.com/vvka-141/sfdash/pkg/sfdash"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the resolved configuration",
	Long: `Prints the configuration sfdash would run with after merging flags,
environment variables, .env and sfdash.yaml, and reports every setting that
falls back to a placeholder.

Secrets and token contents are never printed.

Examples:
  sfdash config
  sfdash config -C ./deploy --warehouse REPORTING_WH`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

var configFlags config.ConnectionFlags

func init() {
	rootCmd.AddCommand(configCmd)
	addConnectionFlags(configCmd, &configFlags)
}

// resolvedView is the printable form of the resolved settings.
type resolvedView struct {
	Mode       string         `yaml:"mode"`
	Connection connectionView `yaml:"connection"`
	Server     serverView     `yaml:"server"`
	Query      queryView      `yaml:"query"`
	Queries    []string       `yaml:"queries"`
}

type connectionView struct {
	Account       string `yaml:"account"`
	User          string `yaml:"user"`
	Warehouse     string `yaml:"warehouse"`
	Database      string `yaml:"database"`
	Schema        string `yaml:"schema"`
	Role          string `yaml:"role,omitempty"`
	Host          string `yaml:"host,omitempty"`
	TokenPath     string `yaml:"token_path"`
	OAuthProvider string `yaml:"oauth_provider,omitempty"`
	LoginTimeout  string `yaml:"login_timeout,omitempty"`
	ClientSecret  string `yaml:"azure_client_secret,omitempty"`
}

type serverView struct {
	Listen       string `yaml:"listen"`
	QueryTimeout string `yaml:"query_timeout"`
	WatchToken   bool   `yaml:"watch_token"`
}

type queryView struct {
	RetryBudget int    `yaml:"retry_budget"`
	RetryDelay  string `yaml:"retry_delay"`
}

func runConfig(cmd *cobra.Command, args []string) error {
	project, err := loadProjectConfig(getDirFlag(cmd))
	if err != nil {
		return err
	}

	conn, warnings, err := config.ResolveConnection(&configFlags, config.LoadFromEnvironment(), project)
	if err != nil {
		return err
	}
	server, err := config.ResolveServer("", project)
	if err != nil {
		return err
	}
	qs, err := config.ResolveQuery(project)
	if err != nil {
		return err
	}
	var queries map[string]string
	if project != nil {
		queries = project.Queries
	}
	catalog, err := query.NewCatalog(queries)
	if err != nil {
		return err
	}

	mode, err := describeMode(conn)
	if err != nil {
		return err
	}

	view := resolvedView{
		Mode: mode,
		Connection: connectionView{
			Account:       conn.Account,
			User:          conn.User,
			Warehouse:     conn.Warehouse,
			Database:      conn.Database,
			Schema:        conn.Schema,
			Role:          conn.Role,
			Host:          conn.Host,
			TokenPath:     conn.TokenPath,
			OAuthProvider: conn.OAuthProvider,
			LoginTimeout:  durationOrEmpty(conn.LoginTimeout),
		},
		Server: serverView{
			Listen:       server.Listen,
			QueryTimeout: durationOrNone(server.QueryTimeout),
			WatchToken:   server.WatchToken,
		},
		Query: queryView{
			RetryBudget: qs.RetryBudget,
			RetryDelay:  qs.RetryDelay.String(),
		},
		Queries: catalog.Names(),
	}
	if conn.AzureClientSecret != "" {
		view.Connection.ClientSecret = "(set)"
	}

	if project == nil {
		fmt.Fprintf(os.Stderr, "No %s found; showing environment and defaults\n", config.ConfigFileName)
	}
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(view); err != nil {
		return err
	}
	return enc.Close()
}

// describeMode reports which credential variant the next acquisition would
// use, without contacting Snowflake or an identity provider.
func describeMode(conn *sfdash.ConnectionConfig) (string, error) {
	_, present, err := db.NewFileTokenProvider(conn.TokenPath).Read()
	if err != nil {
		return "", err
	}
	switch {
	case present:
		return fmt.Sprintf("%s (token file present)", sfdash.AuthModeDelegatedToken), nil
	case conn.OAuthProvider != "":
		return fmt.Sprintf("%s (via %s)", sfdash.AuthModeDelegatedToken, conn.OAuthProvider), nil
	default:
		return fmt.Sprintf("%s (browser SSO)", sfdash.AuthModeInteractive), nil
	}
}

func durationOrEmpty(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}

func durationOrNone(d time.Duration) string {
	if d == 0 {
		return "none"
	}
	return d.String()
}
