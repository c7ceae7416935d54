package main

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/spf13/cobra"
	"github.com/tendant/simple-notes/pkg/simplenotes/config"
	"gopkg.in/yaml.v3"
)

var configShowEnv bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the resolved configuration",
	Long: `config prints the configuration the server would start with as YAML, in the
format --config accepts. Secrets are masked. With --env it lists the environment variables instead.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if configShowEnv {
			header := "Environment variables:"
			desc, err := cleanenv.GetDescription(&config.ServerConfig{}, &header)
			if err != nil {
				fatal("Error describing configuration", err)
			}
			fmt.Println(desc)
			return
		}

		cfg, err := loadConfig()
		if err != nil {
			fatal("Error loading configuration", err)
		}
		masked := *cfg
		masked.DatabaseURL = mask(masked.DatabaseURL)
		masked.Postgres.Password = mask(masked.Postgres.Password)
		masked.S3.SecretAccessKey = mask(masked.S3.SecretAccessKey)
		masked.MinIO.RootPassword = mask(masked.MinIO.RootPassword)
		masked.RedisURL = mask(masked.RedisURL)
		masked.APIKeySHA256 = mask(masked.APIKeySHA256)

		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(masked); err != nil {
			fatal("Error encoding configuration", err)
		}
		enc.Close()
	},
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}

func init() {
	configCmd.Flags().BoolVar(&configShowEnv, "env", false, "List supported environment variables")
	rootCmd.AddCommand(configCmd)
}
