package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/driftbyte/hookline/internal/api"
	"github.com/driftbyte/hookline/internal/config"
	"github.com/driftbyte/hookline/internal/delivery"
	"github.com/driftbyte/hookline/internal/health"
	"github.com/driftbyte/hookline/internal/registry"
	"github.com/driftbyte/hookline/internal/storage"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "hookline",
		Short: "hookline — outbound webhook delivery engine",
	}

	var configPath string
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(migrateCmd(&configPath))
	rootCmd.AddCommand(endpointsCmd(&configPath))
	rootCmd.AddCommand(statsCmd(&configPath))
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the hookline server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			log := setupLogger(cfg.Logging)

			store, err := setupStorage(cfg.Storage, log)
			if err != nil {
				return fmt.Errorf("failed to setup storage: %w", err)
			}
			defer store.Close()

			if err := store.Migrate(context.Background()); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info().Msg("database migrations completed")

			reg := registry.New(store, log)
			tracker := health.NewTracker(store, log)
			pool := delivery.NewPool(cfg.Delivery, store, tracker, log)
			dispatcher := delivery.NewDispatcher(reg, store, pool, log)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			pool.Start(ctx)

			server := api.NewServer(cfg.Server, store, reg, dispatcher, tracker, log)

			g, _ := errgroup.WithContext(ctx)
			g.Go(func() error {
				if err := server.Start(); err != nil && err != http.ErrServerClosed {
					return err
				}
				return nil
			})

			log.Info().
				Str("version", version).
				Int("port", cfg.Server.Port).
				Int("workers", cfg.Delivery.Workers).
				Str("storage", cfg.Storage.Driver).
				Msg("hookline is running")

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			log.Info().Msg("shutting down...")

			if err := server.Shutdown(10 * time.Second); err != nil {
				log.Error().Err(err).Msg("server shutdown error")
			}
			pool.Stop()
			cancel()

			if err := g.Wait(); err != nil {
				return err
			}
			log.Info().Msg("hookline stopped")
			return nil
		},
	}
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cleanup, err := storeFromConfig(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()
			fmt.Println("migrations completed successfully")
			return nil
		},
	}
}

func endpointsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "endpoints",
		Short: "Inspect registered endpoints",
	}

	listCmd := &cobra.Command{
		Use:   "list <org_id>",
		Short: "List an organization's endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				return fmt.Errorf("usage: hookline endpoints list <org_id>")
			}

			store, cleanup, err := storeFromConfig(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			eps, err := store.ListEndpoints(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("failed to list endpoints: %w", err)
			}

			if len(eps) == 0 {
				fmt.Println("No endpoints found.")
				return nil
			}

			for _, ep := range eps {
				state := "active"
				if !ep.Active {
					state = "inactive"
				}
				fmt.Printf("  %s  %s  %s  [%s]\n", ep.ID, ep.Name, ep.URL, state)
			}
			return nil
		},
	}

	cmd.AddCommand(listCmd)
	return cmd
}

func statsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <org_id>",
		Short: "Show delivery stats for an organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				return fmt.Errorf("usage: hookline stats <org_id>")
			}

			store, cleanup, err := storeFromConfig(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			stats, err := store.GetStats(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get stats: %w", err)
			}

			out, _ := json.MarshalIndent(stats, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("hookline v%s\n", version)
		},
	}
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func setupStorage(cfg config.StorageConfig, log zerolog.Logger) (storage.Storage, error) {
	switch cfg.Driver {
	case "sqlite":
		log.Info().Str("path", cfg.SQLite.Path).Msg("using SQLite storage")
		return storage.NewSQLite(cfg.SQLite.Path)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}

func storeFromConfig(configPath string) (storage.Storage, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg.Logging)
	store, err := setupStorage(cfg.Storage, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to setup storage: %w", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, func() { store.Close() }, nil
}
