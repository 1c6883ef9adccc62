package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vvka-141/sfdash/internal/config"
	"github.com/vvka-141/sfdash/internal/tui"
	"github.com/vvka-141/sfdash/internal/tui/wizards"
)

var initCmd = &cobra.Command{
	Use:   "init [target_path]",
	Short: "Create sfdash.yaml",
	Long: `Creates sfdash.yaml with connection settings and sample queries.

In an interactive terminal a wizard asks for the Snowflake account, user,
warehouse, database, schema and role, and can test the connection. Otherwise,
or with --no-wizard, the file is written from the SNOWFLAKE_* environment
variables, leaving unset values empty so placeholders apply at runtime.

The sample queries target SNOWFLAKE_SAMPLE_DATA.TPCH_SF1.

Examples:
  sfdash init
  sfdash init ./deploy --no-wizard
  SNOWFLAKE_ACCOUNT=myorg-dev sfdash init --no-wizard --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

var (
	initNoWizard bool
	initForce    bool
)

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVar(&initNoWizard, "no-wizard", false, "Write sfdash.yaml from the environment without prompting")
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing sfdash.yaml")
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := getDirFlag(cmd)
	if len(args) > 0 {
		targetDir = args[0]
	}
	loadDotEnv(targetDir)

	configPath := filepath.Join(targetDir, config.ConfigFileName)
	if _, err := os.Stat(configPath); err == nil && !initForce {
		if !tui.IsInteractive() {
			return fmt.Errorf("%s already exists\n\nUse --force to overwrite the connection section", configPath)
		}
		if !tui.PromptContinue(fmt.Sprintf("%s exists. Replace its connection settings?", configPath)) {
			fmt.Fprintln(os.Stderr, "Cancelled.")
			return nil
		}
	}

	conn := connectionFromEnvironment(config.LoadFromEnvironment())
	if !initNoWizard && tui.IsInteractive() {
		result, err := wizards.RunConnectionWizard()
		if err != nil {
			return fmt.Errorf("connection wizard failed: %w", err)
		}
		if result.Cancelled {
			fmt.Fprintln(os.Stderr, "Cancelled.")
			return nil
		}
		conn = result.Config
	}

	path, err := saveConnectionToConfig(targetDir, conn)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "\n%s Configuration saved to %s\n", tui.SymbolCheck, path)
	fmt.Fprintln(os.Stderr, "\nNext steps:")
	if targetDir != "." {
		fmt.Fprintf(os.Stderr, "  cd %s\n", targetDir)
	}
	fmt.Fprintln(os.Stderr, "  sfdash config          # review resolved settings")
	fmt.Fprintln(os.Stderr, "  sfdash query select-one")
	fmt.Fprintln(os.Stderr, "  sfdash serve")
	return nil
}

// connectionFromEnvironment seeds the connection section from SNOWFLAKE_*
// variables. Unset values stay empty.
func connectionFromEnvironment(env *config.EnvVars) config.ConnectionConfig {
	return config.ConnectionConfig{
		Account:       env.SNOWFLAKE_ACCOUNT,
		User:          env.SNOWFLAKE_USER,
		Warehouse:     env.SNOWFLAKE_WAREHOUSE,
		Database:      env.SNOWFLAKE_DATABASE,
		Schema:        env.SNOWFLAKE_SCHEMA,
		Role:          env.SNOWFLAKE_ROLE,
		TokenPath:     env.SFDASH_TOKEN_PATH,
		AzureTenantID: env.AZURE_TENANT_ID,
		AzureClientID: env.AZURE_CLIENT_ID,
	}
}
