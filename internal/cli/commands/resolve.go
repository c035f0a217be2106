package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formschema/pkg/resolver"
)

func newResolveCommand(a *app) *cobra.Command {
	var (
		valuesPath   string
		externalPath string
		format       string
	)

	cmd := &cobra.Command{
		Use:   "resolve <schema>",
		Short: "Run one resolution pass and print the resolved tree",
		Long: `Resolve loads a schema (file path or URL), runs one resolution pass with
the given form values and external context, and prints the result.

Examples:
  formschema resolve profile.yaml --values values.json
  formschema resolve profile.yaml --format tree --debug`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := loadSchema(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			values, err := readValues(valuesPath)
			if err != nil {
				return err
			}
			external, err := readValues(externalPath)
			if err != nil {
				return err
			}

			opts := []resolver.Option{resolver.WithFormValues(values)}
			if external != nil {
				opts = append(opts, resolver.WithExternalContext(external))
			}
			result, err := a.engine.Resolve(cmd.Context(), root, opts...)
			if err != nil {
				return err
			}
			a.printer.Diagnostics(result.Diagnostics)

			switch format {
			case "json":
				return writeJSON(cmd.OutOrStdout(), result)
			case "tree":
				printTree(cmd.OutOrStdout(), result.Tree, 0)
				return nil
			}
			return fmt.Errorf("unknown format %q", format)
		},
	}

	cmd.Flags().StringVar(&valuesPath, "values", "", "JSON/YAML file with form values")
	cmd.Flags().StringVar(&externalPath, "external", "", "JSON/YAML file with the external context")
	cmd.Flags().StringVar(&format, "format", "json", "output format: json or tree")
	return cmd
}

// printTree writes one line per resolved node, indented by depth.
func printTree(w io.Writer, node *resolver.ResolvedNode, depth int) {
	if node == nil {
		return
	}
	name := node.Component
	if node.IsStructural() {
		name = "(group)"
	}
	key := node.Path
	if key == "" {
		key = "."
	}
	fmt.Fprintf(w, "%s%s %s\n", strings.Repeat("  ", depth), name, key)
	for _, child := range node.Children {
		printTree(w, child, depth+1)
	}
}
