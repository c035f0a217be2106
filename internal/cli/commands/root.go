// Package commands implements the formschema command tree.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	formschema "github.com/goliatone/go-formschema"
	"github.com/goliatone/go-formschema/internal/cli/config"
	"github.com/goliatone/go-formschema/internal/cli/prompt"
	"github.com/goliatone/go-formschema/internal/cli/ui"
	"github.com/goliatone/go-formschema/pkg/engine"
	"github.com/goliatone/go-formschema/pkg/schema"
)

// Version information, set at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

const httpTimeout = 10 * time.Second

// app carries the state shared by every command after PersistentPreRunE.
type app struct {
	configPath string
	cfg        *config.Config
	logger     *zap.Logger
	engine     *engine.Engine
	printer    *ui.Printer
	driver     prompt.Driver
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{})
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "formschema",
		Short: "Resolve, inspect and fill declarative form schemas",
		Long: `formschema resolves JSON/YAML form schemas into component trees, lists
their fields, derives validation schemas, fills them interactively and
imports them from OpenAPI documents.

Settings come from formschema.yaml (or --config), FORMSCHEMA_* environment
variables and flags, in increasing precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default ./formschema.yaml)")
	flags.String("locale", "", "validation message locale")
	flags.Bool("debug", false, "collect debug diagnostics")
	flags.Bool("strict", false, "fail on unresolved expressions")
	flags.String("missing", "", "missing component policy: drop, placeholder or fail")
	flags.String("messages", "", "YAML catalog of validation messages")
	flags.String("visibility", "", "visibility evaluator: expr or cel")
	flags.Bool("verbose", false, "log to stderr")
	flags.Bool("no-color", false, "disable colored output")

	root.AddCommand(
		newResolveCommand(a),
		newFieldsCommand(a),
		newValidationCommand(a),
		newFillCommand(a),
		newWatchCommand(a),
		newImportCommand(a),
		newVersionCommand(),
	)
	return root
}

// Execute runs the root command against os.Args.
func Execute() error {
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		color.New(color.FgRed, color.Bold).Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath, cmd)
	if err != nil {
		return err
	}
	logger, err := cfg.Logger()
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	opts, err := cfg.EngineOptions(logger)
	if err != nil {
		return err
	}
	e := engine.New(opts...)
	if err := e.Err(); err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	a.engine = e
	a.printer = ui.NewPrinter(cmd.ErrOrStderr(), cfg.NoColor)
	return nil
}

// loadSchema reads a schema from a file path or an http(s) URL and checks
// its structure.
func loadSchema(ctx context.Context, location string) (*schema.Node, error) {
	var (
		root *schema.Node
		err  error
	)
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		root, err = formschema.LoadSchema(ctx, schema.SourceFromURL(location), schema.WithHTTPFallback(httpTimeout))
	} else {
		root, err = formschema.LoadSchemaFile(ctx, location)
	}
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(root); err != nil {
		return nil, err
	}
	return root, nil
}

// readValues decodes a JSON or YAML object. An empty path yields nil.
func readValues(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var values map[string]any
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if values == nil {
		values = map[string]any{}
	}
	return values, nil
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
