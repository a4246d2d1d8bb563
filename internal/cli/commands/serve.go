package commands

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/smokescreen/internal/cli/ui"
	"github.com/conduit-lang/smokescreen/internal/orm/metadata"
	"github.com/conduit-lang/smokescreen/internal/orm/relationships"
	"github.com/conduit-lang/smokescreen/internal/web/api"
	"github.com/conduit-lang/smokescreen/internal/web/server"
	"github.com/conduit-lang/smokescreen/pkg/orm"
)

// NewServeCommand creates the serve command
func NewServeCommand(opts *globalOptions) *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve database tables as a read-only JSON API",
		Long: `Serve every table of the configured database as a read-only JSON API.

Routes:
  GET /               tables and their relations
  GET /{table}        one page of records (?page=&per_page=)
  GET /{table}/{id}   one record

Records are rendered through transformers built from the table columns.
On postgres, relations inferred from foreign key columns can be
included with ?include=.`,
		Example: `  # Serve a sqlite database
  SMOKESCREEN_DATABASE_URL=app.db smokescreen serve

  # Serve postgres on port 8080
  smokescreen serve --port 8080 --config ./smokescreen.yml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			logger, err := opts.logger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			db, dialect, err := openDatabase(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			tablesSource, columns, closeCache, err := columnSource(ctx, cfg, db, dialect, logger)
			if err != nil {
				return err
			}
			defer closeCache()

			tables, err := tablesSource.Tables(ctx)
			if err != nil {
				return err
			}
			registry, err := metadata.Discover(ctx, columns, tables)
			if err != nil {
				return err
			}

			// The batched relation queries need postgres arrays
			var loader orm.Loader
			if dialect == metadata.DialectPostgres {
				loader = relationships.NewLoader(db, registry, relationships.WithLogger(logger))
			}

			a, err := api.New(api.Options{
				Config:   cfg.ToSmokescreen(),
				Registry: registry,
				DB:       db,
				Dialect:  dialect,
				Loader:   loader,
				Logger:   logger,
			})
			if err != nil {
				return err
			}

			srv, err := server.New(server.DefaultConfig(cfg.Server.Addr()),
				server.NewRouter(server.Options{Logger: logger, Routes: a.Routes}), logger)
			if err != nil {
				return err
			}

			summary := ui.NewKeyValueTable(cmd.OutOrStdout(), opts.noColor)
			summary.AddRow("Listening", "http://"+cfg.Server.Addr())
			summary.AddRow("Database", cfg.Database.Driver)
			summary.AddRow("Tables", strconv.Itoa(len(tables)))
			summary.AddRow("Includes", fmt.Sprintf("%t", loader != nil))
			summary.Render()

			logger.Info("serving tables", zap.Strings("tables", tables), zap.String("addr", cfg.Server.Addr()))
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Host to listen on (default: server.host)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default: server.port)")
	return cmd
}
