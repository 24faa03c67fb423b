package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/owlwallet/stellarkit/internal/config"
	"github.com/owlwallet/stellarkit/internal/daemon"
)

func main() {
	var cfg config.Config

	rootCmd := &cobra.Command{
		Use:           "stellar-walletd",
		Short:         "Run the Stellar wallet sync daemon",
		SilenceErrors: true,
		SilenceUsage:  true,
		PreRunE: func(_ *cobra.Command, _ []string) error {
			return cfg.SetValues()
		},
		Run: func(_ *cobra.Command, _ []string) {
			daemon.MustNew(&cfg).Run()
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information and exit",
		Run: func(_ *cobra.Command, _ []string) {
			if config.CommitHash == "" {
				fmt.Printf("stellar-walletd dev\n")
			} else {
				fmt.Printf("stellar-walletd %s (%s) built at %s\n",
					config.Version, config.CommitHash, config.BuildTimestamp)
			}
		},
	}

	if err := cfg.AddFlags(rootCmd); err != nil {
		fmt.Fprintf(os.Stderr, "could not set up flags: %v\n", err)
		os.Exit(1)
	}
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
