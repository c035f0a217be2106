package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formschema/pkg/openapi"
)

func newImportCommand(a *app) *cobra.Command {
	var (
		operationID string
		list        bool
		validate    bool
		outputPath  string
	)

	cmd := &cobra.Command{
		Use:   "import <openapi-document>",
		Short: "Convert an OpenAPI operation request body into a form schema",
		Long: `Import reads an OpenAPI 3 document (JSON or YAML) and converts the request
body schema of one operation into a form schema.

Examples:
  formschema import petstore.yaml --list
  formschema import petstore.yaml --operation createPet -o pet.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			opts := []openapi.Option{openapi.WithValidation(validate), openapi.WithLogger(a.logger)}

			if list {
				doc, err := openapi.Load(cmd.Context(), data, opts...)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				for _, op := range openapi.Operations(doc) {
					body := ""
					if op.HasBody {
						body = "body"
					}
					fmt.Fprintf(tw, "%s\t%s %s\t%s\t%s\n", op.ID, op.Method, op.Path, body, op.Summary)
				}
				return tw.Flush()
			}

			if operationID == "" {
				return fmt.Errorf("--operation is required unless --list is set")
			}
			root, err := openapi.Import(cmd.Context(), data, operationID, opts...)
			if err != nil {
				return err
			}
			encoded, err := openapi.MarshalNode(root)
			if err != nil {
				return err
			}
			encoded = append(encoded, '\n')
			if outputPath == "" {
				_, err = cmd.OutOrStdout().Write(encoded)
				return err
			}
			if err := os.WriteFile(outputPath, encoded, 0o644); err != nil {
				return err
			}
			a.printer.Success("schema written to %s", outputPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&operationID, "operation", "", "operationId (or method:path) to import")
	cmd.Flags().BoolVar(&list, "list", false, "list the operations of the document")
	cmd.Flags().BoolVar(&validate, "validate", false, "validate the document first")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "write the schema to a file instead of stdout")
	return cmd
}
