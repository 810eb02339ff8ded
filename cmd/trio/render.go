package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/trio/pkg/domain"
	"github.com/aretw0/trio/pkg/orchestrator"
	"github.com/aretw0/trio/pkg/validator"
	"github.com/aretw0/trio/pkg/worker"
	"github.com/spf13/cobra"
)

var renderCmd = &cobra.Command{
	Use:   "render [dir]",
	Short: "Render a trio to SVG",
	Long: `Renders the domain, substance and style programs to SVG.

The programs are read from [dir] (domain.dsl, substance.dsl, style.dsl), from a
bundled --example, or from the --domain, --substance and --style files.
Exit codes follow the worker: 3 for compile errors, 4 for optimize errors and
5 for faults and timeouts.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := loadTrio(cmd, args)
		if err != nil {
			return &exitError{code: worker.ExitUsage, err: err}
		}
		t, err = validator.Validate(t)
		if err != nil {
			return &exitError{code: worker.ExitUsage, err: err}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		inv, err := invoker(cfg)
		if err != nil {
			return err
		}
		orch := orchestrator.New(inv,
			orchestrator.WithTimeout(cfg.Render.Timeout),
			orchestrator.WithLogger(logger),
		)

		svg, err := orch.Render(ctx, t)
		if err != nil {
			return &exitError{code: worker.ExitCodeFor(domain.KindOf(err)), err: describe(err)}
		}

		out, _ := cmd.Flags().GetString("out")
		if out == "" || out == "-" {
			_, err = fmt.Fprintln(cmd.OutOrStdout(), svg)
			return err
		}
		if err := os.WriteFile(out, []byte(svg+"\n"), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", out, err)
		}
		logger.Info("Diagram written", "path", out, "bytes", len(svg))
		return nil
	},
}

// describe formats err for a terminal, including the source position when known.
func describe(err error) error {
	var de *domain.Error
	if !errors.As(err, &de) || de.Diagnostic == nil {
		return err
	}
	return fmt.Errorf("%s: %s", de.Kind, de.Diagnostic)
}

func init() {
	rootCmd.AddCommand(renderCmd)
	addTrioFlags(renderCmd)
	renderCmd.Flags().StringP("out", "o", "", "Write the SVG to a file instead of stdout")
}
