package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vvka-141/sfdash/internal/config"
	"github.com/vvka-141/sfdash/internal/query"
	"github.com/vvka-141/sfdash/pkg/sfdash"
)

var queryCmd = &cobra.Command{
	Use:   "query [name]",
	Short: "Run a named query from sfdash.yaml and print JSON",
	Long: `Runs one catalog query and prints its records as JSON on stdout.

Only queries listed under queries: in sfdash.yaml can be run. Use --list to
see them.

Examples:
  sfdash query --list
  sfdash query top-customers
  sfdash query current-context --timeout 30s`,
	Args: cobra.MaximumNArgs(1),
	RunE: runQuery,
}

type queryFlagValues struct {
	list    bool
	timeout time.Duration
	compact bool
	conn    config.ConnectionFlags
}

var queryFlags queryFlagValues

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().BoolVar(&queryFlags.list, "list", false, "List catalog query names")
	queryCmd.Flags().DurationVar(&queryFlags.timeout, "timeout", 0, "Cancel the query after this long (0 = no limit)")
	queryCmd.Flags().BoolVar(&queryFlags.compact, "compact", false, "Print JSON without indentation")
	addConnectionFlags(queryCmd, &queryFlags.conn)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if !queryFlags.list && len(args) == 0 {
		return fmt.Errorf("requires at least a query name or --list\n\nUsage: sfdash query <name>\n\nUse 'sfdash query --list' to see available queries")
	}

	project, err := loadProjectConfig(getDirFlag(cmd))
	if err != nil {
		return err
	}
	logger := newLogger(getVerboseFlag(cmd), project)
	defer logger.Close()

	a, err := buildApp(&queryFlags.conn, project, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.manager.Close(); err != nil {
			logger.Error("Failed to close Snowflake session: %v", err)
		}
	}()

	if queryFlags.list {
		return printJSON(cmd.OutOrStdout(), a.service.Catalog().Names(), queryFlags.compact)
	}

	ctx := commandContext(cmd)
	if queryFlags.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, queryFlags.timeout)
		defer cancel()
	}

	records, err := runNamed(ctx, a.service, args[0])
	if err != nil {
		return err
	}
	if getVerboseFlag(cmd) {
		fmt.Fprintf(os.Stderr, "[VERBOSE] %d record(s)\n", len(records))
	}
	return printJSON(cmd.OutOrStdout(), records, queryFlags.compact)
}

// runNamed reports unknown names before any connection is attempted.
func runNamed(ctx context.Context, svc *query.Service, name string) ([]sfdash.Record, error) {
	if _, err := svc.Catalog().Lookup(name); err != nil {
		return nil, fmt.Errorf("%w\n\nUse 'sfdash query --list' to see available queries", err)
	}
	return svc.Run(ctx, name)
}

func printJSON(w io.Writer, v any, compact bool) error {
	enc := json.NewEncoder(w)
	if !compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
