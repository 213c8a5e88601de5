package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ylxai/hafiportrait-monitor/cmd/cli/client"
)

var (
	serverURL string
	authToken string
	apiClient *client.Client
)

var rootCmd = &cobra.Command{
	Use:   "hafictl",
	Short: "HafiPortrait monitoring CLI",
	Long: `hafictl is the operator tool for a running hafimon instance.
It shows platform health, lists and resolves alerts, and can trigger
an on-demand monitoring cycle or a test notification.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if token := os.Getenv("HAFIMON_TOKEN"); authToken == "" && token != "" {
			authToken = token
		}
		apiClient = client.New(serverURL, authToken)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:8080", "hafimon server URL")
	rootCmd.PersistentFlags().StringVarP(&authToken, "token", "t", "", "Bearer token (or HAFIMON_TOKEN)")

	rootCmd.AddCommand(newStatusCommand())
	rootCmd.AddCommand(newAlertsCommand())
	rootCmd.AddCommand(newResolveCommand())
	rootCmd.AddCommand(newCheckCommand())
	rootCmd.AddCommand(newTestAlertCommand())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
