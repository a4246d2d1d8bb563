package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/smokescreen/internal/cli/ui"
	"github.com/conduit-lang/smokescreen/internal/introspect"
)

// loadSource loads the Go packages matching pattern. Tests replace it
// with an index built from fixture files.
var loadSource = func(pattern string) (*introspect.SourceIndex, error) {
	return introspect.LoadPackages(".", pattern)
}

// modelSummary is one row of the models listing
type modelSummary struct {
	Model     string   `json:"model"`
	Table     string   `json:"table"`
	Package   string   `json:"package"`
	Relations []string `json:"relations"`
}

// NewModelsCommand creates the models command
func NewModelsCommand(opts *globalOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "models [pattern]",
		Short: "List model types in Go packages",
		Long: `List the model types declared in the Go packages matching pattern.

A model is an exported struct type declaring a TableName method. Each
model is listed with its table and the relations its methods declare.`,
		Example: `  # List models of every package in the module
  smokescreen models ./...

  # List models as JSON
  smokescreen models ./internal/models --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern := "./..."
			if len(args) > 0 {
				pattern = args[0]
			}

			index, err := loadSource(pattern)
			if err != nil {
				return err
			}

			summaries, err := summarizeModels(cmd, index)
			if err != nil {
				return err
			}
			return writeModels(cmd.OutOrStdout(), format, summaries, opts.noColor)
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format: json or table")
	return cmd
}

func summarizeModels(cmd *cobra.Command, index *introspect.SourceIndex) ([]modelSummary, error) {
	in := introspect.New()

	var summaries []modelSummary
	for _, ts := range introspect.FindModels(index) {
		res, err := in.IntrospectSource(cmd.Context(), index, ts.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to introspect %s: %w", ts.Name, err)
		}

		relations := make([]string, 0, res.Relations.Len())
		for _, rel := range res.Relations.Entries() {
			relations = append(relations, rel.Name)
		}
		summaries = append(summaries, modelSummary{
			Model:     res.Model,
			Table:     res.Table,
			Package:   ts.PkgPath,
			Relations: relations,
		})
	}
	return summaries, nil
}

func writeModels(w io.Writer, format string, summaries []modelSummary, noColor bool) error {
	switch format {
	case "json":
		if summaries == nil {
			summaries = []modelSummary{}
		}
		return writeJSON(w, summaries)
	case "table":
		if len(summaries) == 0 {
			fmt.Fprintln(w, "No models found")
			return nil
		}
		table := ui.NewTable(w, noColor, "MODEL", "TABLE", "RELATIONS", "PACKAGE")
		for _, s := range summaries {
			table.AddRow(s.Model, s.Table, strings.Join(s.Relations, ", "), s.Package)
		}
		table.Render()
		return nil
	default:
		return fmt.Errorf("unknown format %q (expected json or table)", format)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
