// Package cmd implements the xente command line.
package cmd

import (
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "xente",
	Short: "Loan default probability for Xente customers",
	Long:  "xente serves a loan default predictor backed by a pre-trained classifier,\nits fitted scaler and the training column list.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.Version = version
}

func Execute() error {
	return rootCmd.Execute()
}
