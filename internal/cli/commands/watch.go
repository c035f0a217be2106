package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-formschema/internal/cli/watch"
	"github.com/goliatone/go-formschema/pkg/engine"
	"github.com/goliatone/go-formschema/pkg/form"
	"github.com/goliatone/go-formschema/pkg/runtime"
)

func newWatchCommand(a *app) *cobra.Command {
	var valuesPath string

	cmd := &cobra.Command{
		Use:   "watch <schema>",
		Short: "Re-resolve a schema whenever it or its values file changes",
		Long: `Watch keeps a session open on the schema file. Editing the schema swaps it
into the session; editing the values file resets the form to its content.
Every pass prints a summary line and its diagnostics. Stop with Ctrl+C.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schemaPath := args[0]
			root, err := loadSchema(cmd.Context(), schemaPath)
			if err != nil {
				return err
			}
			values, err := readValues(valuesPath)
			if err != nil {
				return err
			}
			session, err := a.engine.NewSession(root, form.NewMemory(values), engine.WithFieldRegistration(true))
			if err != nil {
				return err
			}
			w, err := watch.New([]string{schemaPath, valuesPath}, watch.WithLogger(a.logger))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, a, session, w, schemaPath, valuesPath)
		},
	}

	cmd.Flags().StringVar(&valuesPath, "values", "", "JSON/YAML file with form values, watched as well")
	return cmd
}

func runWatch(ctx context.Context, a *app, session *engine.Session, w *watch.Watcher, schemaPath, valuesPath string) error {
	absSchema, _ := filepath.Abs(schemaPath)
	absValues := ""
	if valuesPath != "" {
		absValues, _ = filepath.Abs(valuesPath)
	}
	out := a.printer

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return session.Run(ctx, func(r *engine.Render, err error) {
			if err != nil {
				a.logger.Warn("pass failed", zap.Error(err))
				out.Header("pass failed: %v", err)
				return
			}
			count := 0
			if el, ok := r.Element.(*runtime.Element); ok {
				count = el.Count()
			}
			out.Header("pass %s: %d components, %d hidden, %d missing",
				shortID(r.Result.PassID), count, r.Result.Stats.Hidden, r.Result.Stats.Missing)
			out.Diagnostics(r.Result.Diagnostics)
		})
	})
	g.Go(func() error {
		return w.Run(ctx, func(files []string) error {
			for _, file := range files {
				switch file {
				case absSchema:
					root, err := loadSchema(ctx, schemaPath)
					if err != nil {
						out.Header("schema not reloaded: %v", err)
						continue
					}
					if err := session.SetSchema(root); err != nil {
						out.Header("schema not reloaded: %v", err)
					}
				case absValues:
					values, err := readValues(valuesPath)
					if err != nil {
						return fmt.Errorf("values: %w", err)
					}
					session.Form().Reset(values)
				}
			}
			return nil
		})
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
