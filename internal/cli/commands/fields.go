package commands

import (
	"github.com/spf13/cobra"
)

func newFieldsCommand(a *app) *cobra.Command {
	var valuesPath string

	cmd := &cobra.Command{
		Use:   "fields <schema>",
		Short: "List the input fields of a schema",
		Long: `Fields prints the input-bearing fields of a schema. Without --values
every field is listed; with --values only the fields visible for those values
are.`,
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
			descriptors, err := a.engine.Fields(root, values)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), descriptors)
		},
	}

	cmd.Flags().StringVar(&valuesPath, "values", "", "JSON/YAML file with form values")
	return cmd
}
