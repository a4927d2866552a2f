package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/veil-vpn/veil/internal/interfaces/cli/migrate"
	"github.com/veil-vpn/veil/internal/interfaces/cli/server"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "veil",
		Short: "Veil - VPN device provisioning service",
		Long:  `Veil provisions VPN devices against a remote panel, balances them across egress nodes and enforces balance-based expiration.`,
	}

	rootCmd.AddCommand(
		server.NewCommand(),
		migrate.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
