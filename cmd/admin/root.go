package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tendant/simple-notes/pkg/simplenotes/config"
)

var (
	verbose    bool
	configFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "notes-admin",
	Short: "Maintenance commands for the notes service",
	Long: `notes-admin runs maintenance against the same database and blob store
as the server. Configuration comes from the environment (and .env), or from
a YAML file given with --config.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file, read before the environment")
}

// loadConfig reads the config file when given, then the environment
func loadConfig(opts ...config.Option) (*config.ServerConfig, error) {
	_ = godotenv.Load()

	var base []config.Option
	if configFile != "" {
		base = append(base, config.WithFile(configFile))
	} else {
		base = append(base, config.WithEnv())
	}
	return config.Load(append(base, opts...)...)
}
