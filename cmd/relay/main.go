package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dorcha-inc/relay/internal/core"
)

var (
	version = "dev"
	// build time date
	buildDate = "unknown"
)

func main() {
	var (
		configPath string
		prettyLog  bool
	)

	rootCmd := &cobra.Command{
		Use:   "relay",
		Short: "relay routing and distribution engine",
		Long: `relay routes captured items to external tools. Items are matched against
owner-authored rules and static targets, and delivered through connectors
speaking either the subprocess or the remote HTTP transport.`,
		Version:       fmt.Sprintf("%s (built: %s)", version, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return core.Init(prettyLog)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to relay.yaml config file")
	rootCmd.PersistentFlags().BoolVar(&prettyLog, "pretty", false, "Use pretty-printed logs instead of JSON")

	rootCmd.AddCommand(newRouteCmd(&configPath))
	rootCmd.AddCommand(newConnectorsCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
