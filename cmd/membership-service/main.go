package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"membersync/internal/config"
	"membersync/internal/constants"
	"membersync/internal/logger"
	"membersync/pkg/logging"
)

var (
	configFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "membership-service",
		Short: "Rule-driven membership for product collections and customer segments",
		Long:  "Membership Service keeps automated collections and segments in step with their rule sets",
		RunE:  serveCmd().RunE,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (required)")

	rootCmd.AddCommand(serveCmd(), refreshCmd(), migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads config and builds the logger shared by every command.
func setup() (*config.Config, logger.Logger, error) {
	earlyLog := logging.NewEarlyLog()

	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
		if configFile == "" {
			earlyLog.Error("Config file is required. Use --config flag or CONFIG_FILE environment variable")
			return nil, nil, fmt.Errorf("config file is required")
		}
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		earlyLog.Error("Failed to load config: %v", err)
		return nil, nil, err
	}

	log, err := logger.NewWithOptions(logger.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		ServiceName: constants.ServiceName,
	})
	if err != nil {
		earlyLog.Error("Failed to init logger: %v", err)
		return nil, nil, err
	}
	return cfg, log, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API, scheduler and trigger consumer",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log.InfowCtx(ctx, "Starting Membership Service")

			app := NewApp(cfg, log)
			if err := app.Initialize(ctx); err != nil {
				log.Fatalf("Failed to initialize application: %v", err)
			}

			if err := app.Run(ctx); err != nil {
				log.ErrorwCtx(ctx, "Application error", "error", err)
				return err
			}
			return nil
		},
	}
}

func refreshCmd() *cobra.Command {
	var (
		storeID string
		kind    string
	)

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Refresh the automated containers of one store and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			app := NewApp(cfg, log)
			if err := app.Initialize(ctx); err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			defer func() {
				if err := app.Shutdown(context.Background()); err != nil {
					log.Errorw("Shutdown error", "error", err)
				}
			}()

			reports, err := app.RefreshStore(ctx, storeID, kind)
			for _, report := range reports {
				log.InfowCtx(ctx, "Refresh report",
					"store_id", report.StoreID,
					"kind", report.Kind,
					"refreshed", len(report.Results),
					"failed", len(report.Failures),
				)
				for _, failure := range report.Failures {
					log.WarnwCtx(ctx, "Container refresh failed", "container_id", failure.ContainerID, "error", failure.Error)
				}
			}
			return err
		},
	}

	cmd.Flags().StringVar(&storeID, "store", "", "Store to refresh (required)")
	cmd.Flags().StringVar(&kind, "kind", "", "Container kind: collection or segment (default: all)")
	_ = cmd.MarkFlagRequired("store")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply PostgreSQL migrations and MongoDB indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := context.WithTimeout(context.Background(), constants.InitTimeout)
			defer cancel()

			return runMigrations(ctx, cfg, log)
		},
	}
}
