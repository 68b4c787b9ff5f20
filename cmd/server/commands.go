package main

import (
	"context"
	"fmt"
	"log"

	"taskboard/internal/config"
	"taskboard/internal/database"
	"taskboard/internal/logger"
	"taskboard/internal/ordering"
	"taskboard/internal/repository"
	"taskboard/internal/server"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "taskboard",
		Short: "Taskboard API server",
		// Without a subcommand the server starts, as in the container entrypoint.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
		SilenceUsage: true,
	}
	root.AddCommand(newServeCommand(), newMigrateCommand(), newCheckOrderCommand())
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func newMigrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
		Long:  "Manage the PostgreSQL schema (up, down, version)",
	}

	for _, direction := range []string{"up", "down"} {
		direction := direction
		migrateCmd.AddCommand(&cobra.Command{
			Use:   direction,
			Short: "Run all " + direction + " migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				changed, err := database.Migrate(config.Load(), direction)
				if err != nil {
					return err
				}
				if !changed {
					fmt.Println("No migrations to run")
					return nil
				}
				fmt.Printf("Migration %s completed successfully\n", direction)
				return nil
			},
		})
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print current migration version",
		RunE: func(cmd *cobra.Command, args []string) error {
			version, dirty, err := database.MigrationVersion(config.Load())
			if err != nil {
				return err
			}
			fmt.Printf("Current migration version: %d\n", version)
			fmt.Printf("Dirty: %t\n", dirty)
			return nil
		},
	})

	return migrateCmd
}

// newCheckOrderCommand verifies that every stored column is numbered 0..n-1.
func newCheckOrderCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check-order",
		Short: "Verify task ordering of every column",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.Open(config.Load())
			if err != nil {
				return err
			}
			repo := repository.NewTaskRepository(db)
			engine := ordering.NewEngine(repo)
			ctx := context.Background()

			partitions, err := repo.Partitions(ctx)
			if err != nil {
				return err
			}
			broken := 0
			for _, p := range partitions {
				tasks, err := engine.Partition(ctx, p.OwnerID, p.Status)
				if err != nil {
					return err
				}
				if err := ordering.CheckDense(tasks); err != nil {
					broken++
					fmt.Printf("%s: %v\n", p.Key(), err)
				}
			}
			fmt.Printf("Checked %d columns, %d broken\n", len(partitions), broken)
			if broken > 0 {
				return fmt.Errorf("%d columns are not densely ordered", broken)
			}
			return nil
		},
	}
}

func runServer() error {
	cfg := config.Load()

	appLogger, err := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		log.Printf("Logger initialization failed: %v", err)
		return err
	}
	defer appLogger.Sync()

	if cfg.DBDriver == database.DriverPostgres {
		changed, err := database.Migrate(cfg, "up")
		if err != nil {
			appLogger.Error("Migration failed", zap.Error(err))
			return err
		}
		appLogger.Info("Schema ready", zap.Bool("migrated", changed))
	}

	s, err := server.Init(cfg, appLogger)
	if err != nil {
		appLogger.Error("Server initialization failed", zap.Error(err))
		return err
	}

	s.Run()
	return nil
}
