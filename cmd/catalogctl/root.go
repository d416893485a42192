package main

import (
	"context"
	"fmt"

	"jewelry-catalog/internal/config"
	"jewelry-catalog/internal/database"
	"jewelry-catalog/internal/logger"
	"jewelry-catalog/internal/repository"
	"jewelry-catalog/internal/service"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app carries the flags and lazily opened resources shared by all subcommands
type app struct {
	envFile string
	driver  string
	dbPath  string
	verbose bool

	cfg    *config.Config
	logger *zap.Logger
	db     database.Service
}

// newRootCmd builds the command tree; the caller closes a after Execute
func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "catalogctl",
		Short: "Operate the jewelry catalog database",
		Long: `catalogctl manages the local jewelry catalog without the HTTP API.

It migrates the schema, adds products from image files, lists and browses
categories, resets the store and issues admin tokens for the API.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}

	root.PersistentFlags().StringVar(&a.envFile, "env-file", "", "load environment variables from this file before reading config")
	root.PersistentFlags().StringVar(&a.driver, "driver", "", "database driver (sqlite or postgres), overrides DB_DRIVER")
	root.PersistentFlags().StringVar(&a.dbPath, "db-path", "", "sqlite database file, overrides DB_PATH")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable structured logging")

	root.AddCommand(
		newMigrateCmd(a),
		newAddCmd(a),
		newListCmd(a),
		newShowCmd(a),
		newBrowseCmd(a),
		newResetCmd(a),
		newTokenCmd(a),
	)
	return root
}

func (a *app) load() error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil {
			return fmt.Errorf("failed to load env file: %w", err)
		}
	}

	a.cfg = config.Load()
	if a.driver != "" {
		a.cfg.Database.Driver = a.driver
	}
	if a.dbPath != "" {
		a.cfg.Database.Path = a.dbPath
	}

	a.logger = zap.NewNop()
	if a.verbose {
		log, err := logger.New(a.cfg.Server.Env)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		a.logger = log
	}
	return nil
}

// database opens and migrates the catalog on first use
func (a *app) database(ctx context.Context) (database.Service, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := database.New(a.cfg.Database, a.logger)
	if err != nil {
		return nil, err
	}
	if err := db.Initialize(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	a.db = db
	return db, nil
}

func (a *app) catalog(ctx context.Context) (service.CatalogService, error) {
	db, err := a.database(ctx)
	if err != nil {
		return nil, err
	}
	return service.NewCatalogService(newStore(db), a.logger), nil
}

func newStore(db database.Service) repository.CatalogStore {
	return repository.NewCatalogStore(db.DB(), db.Dialect())
}

func (a *app) close() error {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}
