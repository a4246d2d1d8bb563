package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/smokescreen/internal/cli/ui"
	"github.com/conduit-lang/smokescreen/internal/codegen"
)

// askModel prompts for one of the given model names. Tests replace it.
var askModel = func(names []string) (string, error) {
	var name string
	prompt := &survey.Select{
		Message: "Model to transform:",
		Options: names,
	}
	if err := survey.AskOne(prompt, &name, survey.WithValidator(survey.Required)); err != nil {
		return "", err
	}
	return name, nil
}

// NewMakeCommand creates the make command group
func NewMakeCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "make",
		Short: "Scaffold source files",
	}
	cmd.AddCommand(newMakeTransformerCommand(opts))
	return cmd
}

type makeTransformerOptions struct {
	output      string
	pkg         string
	interactive bool
	columns     bool
	force       bool
}

func newMakeTransformerCommand(opts *globalOptions) *cobra.Command {
	mt := &makeTransformerOptions{}

	cmd := &cobra.Command{
		Use:   "transformer <pattern> [Model]",
		Short: "Generate a transformer for a model",
		Long: `Generate a starter transformer for a model type.

The transformer declares one include per relation of the model and,
with --columns, one property per column of its table. The type name
follows transformers.name_template and the file is written to the
output directory, which defaults to the transformers namespace.`,
		Example: `  # Generate transformers/post_transformer.go
  smokescreen make transformer ./models Post

  # Pick the model from a list
  smokescreen make transformer ./models -i`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMakeTransformer(cmd, opts, mt, args)
		},
	}

	cmd.Flags().StringVarP(&mt.output, "output", "o", "", "Output directory (default: the transformers namespace)")
	cmd.Flags().StringVar(&mt.pkg, "package", "", "Package name (default: the output directory name)")
	cmd.Flags().BoolVarP(&mt.interactive, "interactive", "i", false, "Choose the model interactively")
	cmd.Flags().BoolVar(&mt.columns, "columns", false, "Declare properties from the configured database")
	cmd.Flags().BoolVarP(&mt.force, "force", "f", false, "Overwrite an existing file")
	return cmd
}

func runMakeTransformer(cmd *cobra.Command, opts *globalOptions, mt *makeTransformerOptions, args []string) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	pattern := args[0]

	var name string
	if len(args) > 1 {
		name = args[1]
	} else if mt.interactive {
		index, err := loadSource(pattern)
		if err != nil {
			return err
		}
		names := modelNames(index)
		if len(names) == 0 {
			return fmt.Errorf("no models found in %s", pattern)
		}
		if name, err = askModel(names); err != nil {
			return err
		}
	} else {
		return fmt.Errorf("model name required\n\nUsage: smokescreen make transformer <pattern> <Model>")
	}

	res, err := introspectModel(cmd, opts, pattern, name, mt.columns)
	if err != nil {
		return err
	}

	naming := cfg.ToSmokescreen().Naming()
	output := mt.output
	if output == "" {
		output = filepath.FromSlash(strings.ReplaceAll(naming.Namespace, ".", "/"))
	}
	if output == "" {
		output = "."
	}
	pkg := mt.pkg
	if pkg == "" {
		abs, err := filepath.Abs(output)
		if err != nil {
			return err
		}
		pkg = strings.ToLower(filepath.Base(abs))
	}

	src, err := codegen.GenerateTransformer(codegen.SpecFrom(pkg, naming.TypeName(res.Model), res))
	if err != nil {
		return err
	}

	path := filepath.Join(output, codegen.FileName(res.Model))
	if _, err := os.Stat(path); err == nil && !mt.force {
		return fmt.Errorf("file %s already exists (use --force to overwrite)", path)
	}
	if err := os.MkdirAll(output, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", output, err)
	}
	if err := os.WriteFile(path, src, 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("Created %s", path), opts.noColor)
	return nil
}
