package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "tickzen",
	Short: "Multi-profile WordPress auto-publishing",
	Long:  `TickZen generates stock articles and schedules them across WordPress sites, rotating authors and respecting per-site daily caps.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// .env is optional; real environment variables win.
		godotenv.Load()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file path (default: $TICKZEN_CONFIG, tickzen.toml beside the binary, config/tickzen.toml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
