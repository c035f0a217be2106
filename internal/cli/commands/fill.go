package commands

import (
	"errors"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formschema/internal/cli/prompt"
	"github.com/goliatone/go-formschema/pkg/engine"
	"github.com/goliatone/go-formschema/pkg/form"
)

func newFillCommand(a *app) *cobra.Command {
	var (
		valuesPath string
		outputPath string
	)

	cmd := &cobra.Command{
		Use:   "fill <schema>",
		Short: "Fill a form interactively",
		Long: `Fill prompts for every visible field of a schema. The schema is resolved
again after each answer, so fields revealed by visibility rules are asked for
too. The submitted values are printed as JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := loadSchema(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			initial, err := readValues(valuesPath)
			if err != nil {
				return err
			}
			session, err := a.engine.NewSession(root, form.NewMemory(initial), engine.WithFieldRegistration(true))
			if err != nil {
				return err
			}

			driver := a.driver
			if driver == nil {
				driver = prompt.NewSurveyDriver()
			}
			values, err := prompt.Fill(cmd.Context(), session, driver)
			if errors.Is(err, form.ErrInvalid) {
				errs := session.Form().Errors()
				names := make([]string, 0, len(errs))
				for name := range errs {
					names = append(names, name)
				}
				sort.Strings(names)
				a.printer.Errors(names, errs)
				return form.ErrInvalid
			}
			if err != nil {
				return err
			}

			if outputPath == "" {
				return writeJSON(cmd.OutOrStdout(), values)
			}
			file, err := os.Create(outputPath)
			if err != nil {
				return err
			}
			defer file.Close()
			if err := writeJSON(file, values); err != nil {
				return err
			}
			a.printer.Success("values written to %s", outputPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&valuesPath, "values", "", "JSON/YAML file with initial values")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "write the values to a file instead of stdout")
	return cmd
}
