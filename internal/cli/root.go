package cli

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "freshnote",
	Short: "Notes that expire unless you remember them",
	Long:  "Freshnote attaches a decaying freshness timer to every note. Revisit a note to keep it alive, answer recall questions to prove you still know it, and revive what you let slip.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ~/.freshnote/config.yaml)")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sweepCmd)
}
