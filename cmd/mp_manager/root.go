package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/mp-manager/mp-manager/internal/abstractions"
	"github.com/mp-manager/mp-manager/internal/config"
	"github.com/mp-manager/mp-manager/internal/logging"
	"github.com/mp-manager/mp-manager/internal/storage"
	"github.com/spf13/cobra"
)

const envConfigDir = "MP_MANAGER_CONFIG_DIR"

type rootOptions struct {
	configDir string
	db        string
	logFile   string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	command := &cobra.Command{
		Use:           "mp_manager",
		Short:         "MP-manager is the mitochondrial protein's CSV file manager",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	command.PersistentFlags().StringVar(&opts.configDir, "configdir", "", "Directory to search for configuration files")
	command.PersistentFlags().StringVar(&opts.db, "db", "", "Database URL, overrides database.url")
	command.PersistentFlags().StringVar(&opts.logFile, "log-file", "", "Log file, overrides logging.file")

	command.AddCommand(
		newUpdateCommand(opts),
		newPickoutCommand(opts),
		newVersionCommand(),
	)
	return command
}

// app holds what every data command needs: the configuration, the logger
// and an open store.
type app struct {
	config      *config.Config
	logger      *slog.Logger
	store       abstractions.Storage
	logShutdown logging.ShutdownFunc
}

func newApp(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	configDir := opts.configDir
	if configDir == "" {
		configDir = os.Getenv(envConfigDir)
	}

	// only problems are reported until the configured logger exists
	bootstrap := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
	serviceConfig, err := config.LoadConfig(bootstrap, Version, Build, BuildDate, configDir, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, logShutdown, err := logging.NewLogger(serviceConfig.Logging)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewStorage(serviceConfig, logger)
	if err != nil {
		_ = logShutdown()
		return nil, err
	}

	return &app{
		config:      serviceConfig,
		logger:      logger,
		store:       store,
		logShutdown: logShutdown,
	}, nil
}

func (a *app) Close() error {
	var errs []error
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("Failed to close storage: %w", err))
	}
	if err := a.logShutdown(); err != nil {
		errs = append(errs, fmt.Errorf("Failed to close logger: %w", err))
	}
	return errors.Join(errs...)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "mp_manager %s (build %s, %s)\n", Version, Build, BuildDate)
			return err
		},
	}
}
