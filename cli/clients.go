package cli

import "github.com/spf13/cobra"

func NewClientsCmd() *cobra.Command {
	var samples uint64

	cmd := &cobra.Command{
		Use:   "clients [status|train|ack]",
		Short: "Federated clients",
		Long:  `View client deployment status, run local training and acknowledge deployments.`,
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Client status",
		Long:  `Show the deployment status of every client.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			table, err := fsdk.Status()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, table)
		},
	}

	trainCmd := &cobra.Command{
		Use:   "train <client_id>",
		Short: "Train client",
		Long:  `Run local training for one client.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			res, err := fsdk.TrainClient(args[0], samples)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, res)
		},
	}
	trainCmd.Flags().Uint64Var(&samples, "samples", 0, "Sample budget (defaults to the coordinator's)")

	ackCmd := &cobra.Command{
		Use:   "ack <client_id>",
		Short: "Acknowledge deployment",
		Long:  `Mark the client's deployed model as acknowledged.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			ack, err := fsdk.Acknowledge(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, ack)
		},
	}

	cmd.AddCommand(statusCmd, trainCmd, ackCmd)

	return cmd
}
