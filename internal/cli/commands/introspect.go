package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/smokescreen/internal/cli/ui"
	"github.com/conduit-lang/smokescreen/internal/introspect"
)

// NewIntrospectCommand creates the introspect command
func NewIntrospectCommand(opts *globalOptions) *cobra.Command {
	var (
		format  string
		columns bool
	)

	cmd := &cobra.Command{
		Use:   "introspect <pattern> <Model>",
		Short: "Show the relations and properties of a model",
		Long: `Show the relations and properties of a model type.

Relations come from the methods the model declares. With --columns the
properties are read from the model's table in the configured database.`,
		Example: `  # Relations of Post
  smokescreen introspect ./models Post

  # Relations and columns of Post as JSON
  smokescreen introspect ./models Post --columns --format json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := introspectModel(cmd, opts, args[0], args[1], columns)
			if err != nil {
				return err
			}
			return writeIntrospection(cmd.OutOrStdout(), format, res, opts.noColor)
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format: json or table")
	cmd.Flags().BoolVar(&columns, "columns", false, "Read properties from the configured database")
	return cmd
}

// introspectModel loads pattern and introspects the named model. A name
// that matches no model is reported with suggestions on stderr.
func introspectModel(cmd *cobra.Command, opts *globalOptions, pattern, name string, withColumns bool) (*introspect.Result, error) {
	index, err := loadSource(pattern)
	if err != nil {
		return nil, err
	}

	var introspectOpts []introspect.Option
	if withColumns {
		cfg, err := opts.loadConfig()
		if err != nil {
			return nil, err
		}
		logger, err := opts.logger(cfg)
		if err != nil {
			return nil, err
		}
		defer logger.Sync()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		db, dialect, err := openDatabase(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		defer db.Close()

		_, source, closeCache, err := columnSource(ctx, cfg, db, dialect, logger)
		if err != nil {
			return nil, err
		}
		defer closeCache()

		introspectOpts = append(introspectOpts,
			introspect.WithColumnSource(source),
			introspect.WithLogger(logger.With(zap.String("model", name))))
	}

	res, err := introspect.New(introspectOpts...).IntrospectSource(cmd.Context(), index, name)
	if errors.Is(err, introspect.ErrModelNotFound) {
		fmt.Fprintln(cmd.ErrOrStderr(), ui.ModelNotFoundError(name, pattern, modelNames(index), opts.noColor))
	}
	return res, err
}

func modelNames(index *introspect.SourceIndex) []string {
	models := introspect.FindModels(index)
	names := make([]string, 0, len(models))
	for _, ts := range models {
		names = append(names, ts.Name)
	}
	return names
}

func writeIntrospection(w io.Writer, format string, res *introspect.Result, noColor bool) error {
	switch format {
	case "json":
		return writeJSON(w, res)
	case "table":
	default:
		return fmt.Errorf("unknown format %q (expected json or table)", format)
	}

	ui.Header(w, fmt.Sprintf("%s (%s)", res.Model, res.Table), noColor)

	if res.Relations.Len() == 0 {
		fmt.Fprintln(w, "No relations")
	} else {
		relations := ui.NewTable(w, noColor, "RELATION", "DEFINITION")
		for _, rel := range res.Relations.Entries() {
			relations.AddRow(rel.Name, rel.Definition())
		}
		relations.Render()
	}
	fmt.Fprintln(w)

	if len(res.Properties) == 0 {
		fmt.Fprintln(w, "No properties")
		return nil
	}
	properties := ui.NewTable(w, noColor, "PROPERTY", "KIND")
	for _, prop := range res.Properties {
		kind := prop.Kind.String()
		if kind == "" {
			kind = "-"
		}
		properties.AddRow(prop.Name, kind)
	}
	properties.Render()
	return nil
}
