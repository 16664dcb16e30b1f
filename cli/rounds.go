package cli

import "github.com/spf13/cobra"

func NewRoundsCmd() *cobra.Command {
	var (
		samples    uint64
		distribute bool
	)

	cmd := &cobra.Command{
		Use:   "rounds [run|history]",
		Short: "Training rounds",
		Long:  `Run a training round or list completed rounds.`,
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run round",
		Long: `Train every client, aggregate their models and optionally distribute the result.

Examples:
  flcoord-cli rounds run --samples 200 --distribute`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			r, err := fsdk.RunRound(samples, distribute)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, r)
		},
	}
	runCmd.Flags().Uint64Var(&samples, "samples", 0, "Samples per client (defaults to the coordinator's)")
	runCmd.Flags().BoolVar(&distribute, "distribute", false, "Distribute the updated global model afterwards")

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Round history",
		Long:  `List completed rounds.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			h, err := fsdk.History()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, h)
		},
	}

	cmd.AddCommand(runCmd, historyCmd)

	return cmd
}
