package main

import (
	"os"

	"github.com/spf13/cobra"

	"cardanogo/cmd/cli"
)

func main() {
	rootCmd := &cobra.Command{Use: "cardanogod", Short: "cardanogo node and chain inspection tools"}
	rootCmd.AddCommand(cli.SyncCmd)
	rootCmd.AddCommand(cli.StorageRoute)
	rootCmd.AddCommand(cli.PeerCmd)
	rootCmd.AddCommand(cli.VerifyChainCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
