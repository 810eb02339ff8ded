package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/trio/internal/logging"
	"github.com/aretw0/trio/pkg/diagram"
	"github.com/aretw0/trio/pkg/worker"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker <dir>",
	Short: "Render one trio directory and exit",
	Long: `Reads domain.dsl, substance.dsl and style.dsl from <dir>, renders them and
writes the SVG to stdout. Failures are reported as a JSON object on stderr with
exit code 2 (usage), 3 (compile), 4 (optimize) or 5 (fault). The variation is
read from ` + "TRIO_ARG_VARIATION" + `.

This is the entry point of the subprocess worker; it is not meant to be run by hand.`,
	Hidden: true,
	// The worker owns stderr for its report, so the root logger is not used.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		rounds, _ := cmd.Flags().GetInt("max-rounds")
		steps, _ := cmd.Flags().GetInt("max-steps")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		code := worker.Main(ctx, args, os.Getenv, cmd.OutOrStdout(), cmd.ErrOrStderr(),
			worker.WithOptimizer(diagram.Options{MaxRounds: rounds, MaxSteps: steps}),
			worker.WithLogger(logging.NewNop()),
		)
		if code != worker.ExitOK {
			return &exitError{code: code}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.Flags().Int("max-rounds", 0, "Penalty rounds (0 uses the default)")
	workerCmd.Flags().Int("max-steps", 0, "L-BFGS steps per round (0 uses the default)")
	workerCmd.Flags().SetInterspersed(false)
}
