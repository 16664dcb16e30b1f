package cli

import (
	"os"

	"github.com/absmach/flcoord/pkg/sdk"
	"github.com/spf13/cobra"
)

var (
	DefTLSVerification = false
	DefCoordinatorURL  = "http://localhost:7071"
)

var fsdk sdk.SDK

func SetSDK(s sdk.SDK) {
	fsdk = s
}

func NewModelsCmd() *cobra.Command {
	var (
		modelName string
		clientIDs []string
		stream    bool
	)

	cmd := &cobra.Command{
		Use:   "models [init|aggregate|distribute|download|status]",
		Short: "Global models",
		Long:  `Initialise, aggregate, distribute and download global models.`,
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Initialise global model",
		Long:  `Write a freshly constructed initial global model.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			info, err := fsdk.InitGlobal()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, info)
		},
	}

	aggregateCmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate client models",
		Long:  `Average every client's local model into the updated global model.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			info, err := fsdk.Aggregate()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, info)
		},
	}

	distributeCmd := &cobra.Command{
		Use:   "distribute",
		Short: "Distribute a model",
		Long: `Copy a server model to clients.

Examples:
  # Distribute the updated global model to every client
  flcoord-cli models distribute

  # Distribute the initial model to clients 1 and 3 with live progress
  flcoord-cli models distribute --model global_model_init.cbor --clients 1,3 --stream`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			if !stream {
				outcomes, err := fsdk.Distribute(modelName, clientIDs)
				if err != nil {
					logErrorCmd(*cmd, err)

					return
				}
				logJSONCmd(*cmd, outcomes)

				return
			}

			err := fsdk.DistributeStream(modelName, clientIDs, func(ev sdk.Event) error {
				switch {
				case ev.Done():
					logOKCmd(*cmd)
				case ev.Error != "":
					logProgressCmd(*cmd, "client %s: error: %s", ev.Client, ev.Error)
				case ev.Finished:
					logProgressCmd(*cmd, "client %s: deployed", ev.Client)
				default:
					logProgressCmd(*cmd, "client %s: %3d%% (overall %3d%%)", ev.Client, ev.Progress, ev.Overall)
				}

				return nil
			})
			if err != nil {
				logErrorCmd(*cmd, err)
			}
		},
	}
	distributeCmd.Flags().StringVar(&modelName, "model", "", "Server model to distribute (defaults to the updated global model)")
	distributeCmd.Flags().StringSliceVar(&clientIDs, "clients", []string{}, "Target client ids (comma-separated, defaults to every client)")
	distributeCmd.Flags().BoolVar(&stream, "stream", false, "Show live progress")

	downloadCmd := &cobra.Command{
		Use:   "download <file>",
		Short: "Download updated global model",
		Long:  `Download the updated global model into a local file.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			f, err := os.Create(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			defer f.Close()

			if _, err := fsdk.Download(f); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logOKCmd(*cmd)
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Global model status",
		Long:  `Show which global models exist.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			st, err := fsdk.ModelStatus()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, st)
		},
	}

	cmd.AddCommand(initCmd, aggregateCmd, distributeCmd, downloadCmd, statusCmd)

	return cmd
}
