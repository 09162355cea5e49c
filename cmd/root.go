// Package cmd is for command line interactions with the tppd application
package cmd

import (
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tppd/config"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use: "tppd",
	Short: `Detect ligand-protein interactions in 2D thermal proteome profiling data.
Fits null and dose-response models per protein, bootstraps a null distribution
of F-statistics, and calls hits by empirical FDR`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("%v", err)
	}
}

func init() {
	config.SetDefaults()

	// an optional settings.yaml next to the binary can override defaults
	viper.SetConfigName("settings")
	viper.AddConfigPath(".")
	viper.ReadInConfig()
}
