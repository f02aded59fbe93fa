package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"beacon/internal/app"
	"beacon/internal/common/config"
	"beacon/internal/common/logger"
	"beacon/internal/models"
)

var rootCmd = &cobra.Command{
	Use:           "beacon-admin",
	Short:         "Administer procurement opportunities and vendor notifications",
	Long:          "beacon-admin runs lifecycle transitions, scheduled notification sweeps and exports against the Beacon database.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default configs/config.yaml)")
	rootCmd.PersistentFlags().Int64("as", 0, "id of the user performing the action")
	rootCmd.PersistentFlags().Duration("timeout", 5*time.Minute, "overall deadline for the command")
}

// withApp loads configuration, wires the application and runs fn with it.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)
	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	a, err := app.Build(ctx, cfg, log, app.Options{Attempts: 3})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// actor resolves --as. Without it the caller is anonymous.
func actor(ctx context.Context, cmd *cobra.Command, a *app.App) (*models.User, error) {
	id, _ := cmd.Flags().GetInt64("as")
	if id == 0 {
		return models.Anonymous, nil
	}
	return a.Store.Users().Get(ctx, id)
}
