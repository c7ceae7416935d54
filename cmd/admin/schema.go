package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Create the Postgres schema and tables if missing",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fatal("Error loading configuration", err)
		}
		if cfg.DatabaseType != "postgres" {
			fatal("Error creating schema", errors.New("DATABASE_TYPE must be postgres"))
		}

		ctx := context.Background()
		pool, err := cfg.NewPool(ctx)
		if err != nil {
			fatal("Error connecting to database", err)
		}
		defer pool.Close()

		if err := cfg.EnsureSchema(ctx, pool); err != nil {
			fatal("Error creating schema", err)
		}
		fmt.Printf("Schema %q is ready\n", cfg.DBSchema)
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
