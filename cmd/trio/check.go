package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/trio/internal/presentation/graph"
	"github.com/aretw0/trio/internal/presentation/tui"
	"github.com/aretw0/trio/pkg/diagram"
	"github.com/aretw0/trio/pkg/domain"
	"github.com/aretw0/trio/pkg/worker"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var checkCmd = &cobra.Command{
	Use:   "check [dir]",
	Short: "Compile a trio and report what it declares",
	Long: `Compiles the programs without drawing them and prints a summary of the
objects, relations, shapes and constraints. With --optimize the layout is
solved as well and the solver statistics are included. With --mermaid only a
Mermaid flowchart of the substance is printed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := loadTrio(cmd, args)
		if err != nil {
			return &exitError{code: worker.ExitUsage, err: err}
		}
		optimize, _ := cmd.Flags().GetBool("optimize")
		mermaid, _ := cmd.Flags().GetBool("mermaid")

		ctx := cmd.Context()
		d, err := diagram.Compile(ctx, diagram.Source{
			Domain:    t.Domain,
			Substance: t.Substance,
			Style:     t.Style,
			Variation: t.Variation,
		})
		if err != nil {
			return &exitError{code: worker.ExitCompile, err: fmt.Errorf("%s: %w", domain.KindCompile, err)}
		}

		out := cmd.OutOrStdout()
		if mermaid {
			_, err := io.WriteString(out, graph.GenerateMermaid(d.Objects(), d.Relations()))
			return err
		}

		var optErr error
		if optimize {
			optErr = diagram.Optimize(ctx, d, optimizerOptions(cfg.Render))
		}

		styled, width := terminal(out)
		if styled {
			tui.PrintBanner(out)
		}
		rendered, err := tui.NewRenderer(styled, width)(report(t, d, optimize, optErr))
		if err != nil {
			return err
		}
		if _, err := io.WriteString(out, rendered); err != nil {
			return err
		}
		if optErr != nil {
			return &exitError{code: worker.ExitOptimize}
		}
		return nil
	},
}

// terminal reports whether w is an interactive terminal and its width.
func terminal(w io.Writer) (bool, int) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return false, 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return true, 0
	}
	return true, width
}

func report(t domain.Trio, d *diagram.Diagram, optimized bool, optErr error) string {
	var sb strings.Builder
	w, h := d.Canvas()
	stats := d.Stats()

	fmt.Fprintf(&sb, "# Trio check\n\n")
	fmt.Fprintf(&sb, "Canvas **%gx%g**, variation `%s`.\n\n", w, h, t.Variation)

	sb.WriteString("## Objects\n\n| Name | Type | Label |\n|---|---|---|\n")
	for _, o := range d.Objects() {
		fmt.Fprintf(&sb, "| %s | %s | %s |\n", o.Name, o.Type, o.Label)
	}

	if rels := d.Relations(); len(rels) > 0 {
		sb.WriteString("\n## Relations\n\n")
		for _, r := range rels {
			fmt.Fprintf(&sb, "- `%s(%s)`\n", r.Predicate, strings.Join(r.Args, ", "))
		}
	}

	fmt.Fprintf(&sb, "\n## Layout problem\n\n")
	fmt.Fprintf(&sb, "- %d shapes, %d variables\n", stats.Shapes, stats.Variables)
	fmt.Fprintf(&sb, "- %d constraints, %d objectives\n", stats.Constraints, stats.Objectives)

	if !optimized {
		return sb.String()
	}
	sb.WriteString("\n## Solver\n\n")
	fmt.Fprintf(&sb, "- %d rounds, %d steps\n", stats.Rounds, stats.Steps)
	fmt.Fprintf(&sb, "- largest violation %.3g, energy %.3g\n", stats.MaxViolation, stats.Energy)
	if optErr != nil {
		fmt.Fprintf(&sb, "\n**Layout failed:** %v\n", optErr)
	} else {
		sb.WriteString("\nAll constraints hold.\n")
	}
	return sb.String()
}

func init() {
	rootCmd.AddCommand(checkCmd)
	addTrioFlags(checkCmd)
	checkCmd.Flags().Bool("optimize", false, "Also solve the layout and report solver statistics")
	checkCmd.Flags().Bool("mermaid", false, "Print a Mermaid flowchart of the substance")
}
