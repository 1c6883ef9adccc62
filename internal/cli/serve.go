package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vvka-141/sfdash/internal/config"
	"github.com/vvka-141/sfdash/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the query catalog over HTTP",
	Long: `Starts the HTTP backend.

Routes:
  GET /healthz             connection state
  GET /api/queries         catalog names
  GET /api/queries/{name}  records of a named query

No Snowflake connection is made until the first query. With
connection.watch_token enabled, rotating the token file releases the current
session immediately instead of at the next query.

Examples:
  sfdash serve
  sfdash serve --listen 127.0.0.1:9000 -C ./deploy`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

type serveFlagValues struct {
	listen string
	conn   config.ConnectionFlags
}

var serveFlags serveFlagValues

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listen, "listen", "l", "", "HTTP listen address (default \":8080\")")
	addConnectionFlags(serveCmd, &serveFlags.conn)
}

func runServe(cmd *cobra.Command, args []string) error {
	project, err := loadProjectConfig(getDirFlag(cmd))
	if err != nil {
		return err
	}
	logger := newLogger(getVerboseFlag(cmd), project)
	defer logger.Close()

	settings, err := config.ResolveServer(serveFlags.listen, project)
	if err != nil {
		return err
	}

	a, err := buildApp(&serveFlags.conn, project, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.manager.Close(); err != nil {
			logger.Error("Failed to close Snowflake session: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if settings.WatchToken {
		watchDone, err := a.manager.WatchTokenFile(ctx, a.resolver.TokenPath())
		if err != nil {
			logger.Info("Token file watch disabled: %v", err)
		} else {
			defer func() {
				stop()
				<-watchDone
			}()
		}
	}

	logger.Info("Serving %d queries for account %s", a.service.Catalog().Len(), a.conn.Account)
	return web.NewServer(a.service, a.manager, logger, settings).Start(ctx)
}

// commandContext returns cmd's context, defaulting to Background.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
