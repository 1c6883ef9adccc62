package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const asciiLogo = `        __     _           _
  ___  / _| __| | __ _ ___| |__
 / __|| |_ / _' |/ _' / __| '_ \
 \__ \|  _| (_| | (_| \__ \ | | |
 |___/|_|  \__,_|\__,_|___/_| |_|`

var rootCmd = &cobra.Command{
	Use:   "sfdash",
	Short: "Snowflake dashboard backend",
	Long: asciiLogo + `

sfdash serves a fixed catalog of named Snowflake queries as JSON.

It authenticates one of two ways, decided on every query:
  - a platform-mounted OAuth token at /snowflake/session/token, when present
  - browser SSO for local development, otherwise

Sessions are rebuilt transparently when the token rotates or the warehouse
reports an expired session.

Exit Codes:
  0  - Success
  1  - General error
  2  - CLI usage error (invalid arguments or flags)
  3  - Panic or unexpected system error
  10 - Invalid configuration
  11 - Snowflake connection failed
  13 - Query failed
  14 - Named query not found`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		printVersionInfo()
		return nil
	}
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output for all commands")
	rootCmd.PersistentFlags().StringP("dir", "C", ".", "Directory containing sfdash.yaml and .env")
}

// getVerboseFlag safely retrieves the verbose flag value
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to get verbose flag: %v\n", err)
		return false
	}
	return verbose
}

func getDirFlag(cmd *cobra.Command) string {
	dir, err := cmd.Flags().GetString("dir")
	if err != nil || dir == "" {
		return "."
	}
	return dir
}
