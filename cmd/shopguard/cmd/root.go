package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "shopguard",
	Short: "shopguard is the security layer of the Meat & Eat storefront",
	Long: `Sessions, login rate limiting, two-factor authentication, audit trail and
security alerts for the Meat & Eat storefront, served over HTTP or used from
the command line.`,
	SilenceUsage: true,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
