package commands

import (
	"github.com/spf13/cobra"
)

func newValidationCommand(a *app) *cobra.Command {
	var valuesPath string

	cmd := &cobra.Command{
		Use:   "validation <schema>",
		Short: "Derive the validation schema and initial values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := loadSchema(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			values, err := readValues(valuesPath)
			if err != nil {
				return err
			}
			result, err := a.engine.Validation(root, values)
			if err != nil {
				return err
			}
			a.printer.Issues(result.Issues)
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&valuesPath, "values", "", "only validate the fields visible for these values")
	return cmd
}
