// Package cli implements the taskvault command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
	jsonOut bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "taskvault",
	Short: "Archive service for AI-agent task boards",
	Long: `taskvault stores and serves archived task lists and epics.

The daemon owns the authoritative store; the CLI talks to it through
an optimistic client with a local cache, so reads stay fast and writes
apply immediately.

Quick start:
  taskvault serve                     Start the daemon
  taskvault epics list                List archived epics
  taskvault epics restore EPIC-7      Restore an epic from the archive
  taskvault archives list             List archived task lists`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .taskvault/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output as JSON")
	rootCmd.PersistentFlags().StringP("project", "P", "default", "project ID")
	rootCmd.PersistentFlags().String("server", "", "daemon URL (overrides config)")

	// Add subcommands
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newEpicsCmd())
	rootCmd.AddCommand(newArchivesCmd())
	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in .taskvault directories
		viper.AddConfigPath(".taskvault")
		viper.AddConfigPath("$HOME/.taskvault")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("TASKVAULT")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}
