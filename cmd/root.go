package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Yates-Labs/ragify/internal/config"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "ragify",
	Short: "Ragify - research assistant over your own documents",
	Long: `Ragify answers questions grounded in the documents you give it.

It extracts text from uploaded files, pasted text and web pages, embeds it into
a vector index, and streams persona-styled answers built from the most
relevant passages.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a YAML config file (default: ragify.yaml if present)")
}

// Execute runs the root command
func Execute() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file named by --config, falling back to ragify.yaml.
func loadConfig() (config.Config, error) {
	path := configFile
	if path == "" {
		path = "ragify.yaml"
	}
	return config.Load(path)
}
