package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wootbridge/wootbridge/internal/config"
	"github.com/wootbridge/wootbridge/internal/db"
	"github.com/wootbridge/wootbridge/internal/logger"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "wootbridge",
		Short: "Telegram to Chatwoot bridge",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return db.Migrate(logger.New(cfg.Log), cfg.Postgres)
		},
	}
}

func loadConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
