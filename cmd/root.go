package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mikiest/github-dashboard/internal/config"
)

var (
	cfgFile string
	verbose bool
	asJSON  bool
)

var rootCmd = &cobra.Command{
	Use:   "ghdash",
	Short: "Live GitHub organization dashboard",
	Long: `ghdash answers "what is happening in this GitHub organization right now?"
It serves a JSON API for the dashboard frontend and exposes the same
aggregations (pull requests, reviewer stats, org stats, activity feed)
as commands for scripting. Nothing is stored; every call reads GitHub live.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose (development) logging")
}
