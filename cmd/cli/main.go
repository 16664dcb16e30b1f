package main

import (
	"log"

	"github.com/absmach/flcoord/cli"
	"github.com/absmach/flcoord/pkg/sdk"
	"github.com/spf13/cobra"
)

func main() {
	var (
		coordinatorURL  = cli.DefCoordinatorURL
		tlsVerification = cli.DefTLSVerification
	)

	rootCmd := &cobra.Command{
		Use:   "flcoord-cli",
		Short: "Federated round coordinator CLI",
		Long:  `flcoord-cli is a command line interface for driving the federated round coordinator.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			sdkConf := sdk.Config{
				CoordinatorURL:  coordinatorURL,
				TLSVerification: tlsVerification,
			}
			s := sdk.NewSDK(sdkConf)
			cli.SetSDK(s)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&coordinatorURL, "coordinator-url", "u", coordinatorURL, "Coordinator URL")
	rootCmd.PersistentFlags().BoolVar(&tlsVerification, "tls-verification", tlsVerification, "Verify TLS certificates")

	rootCmd.AddCommand(
		cli.NewModelsCmd(),
		cli.NewClientsCmd(),
		cli.NewRoundsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
