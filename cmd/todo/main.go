package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tasks/internal/config"
	"tasks/internal/logging"
	"tasks/internal/storage"
	"tasks/internal/ui"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}
}

// app carries state shared by the root command and its subcommands.
type app struct {
	configPath string
	driver     string
	dsn        string
	cfg        config.Config
	log        *logging.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "todo",
		Short:         "Manage a task list stored in a SQL table",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.log.Close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI(cmd.Context())
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", config.ResolveConfigPath(), "path to config.toml")
	flags.StringVar(&a.driver, "driver", "", "database driver (sqlite or postgres)")
	flags.StringVar(&a.dsn, "dsn", "", "database connection string")

	root.AddCommand(
		newListCommand(a),
		newAddCommand(a),
		newDoneCommand(a),
		newRemoveCommand(a),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.LoadOrCreate(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if a.driver != "" {
		cfg.Driver = a.driver
	}
	if a.dsn != "" {
		cfg.DSN = a.dsn
	}
	a.cfg = cfg

	logger, err := logging.Open(cfg.LogPath, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}
	a.log = logger
	return nil
}

func (a *app) openStore(ctx context.Context) (*storage.Store, error) {
	store, err := storage.Open(ctx, storage.Options{
		Driver:      a.cfg.Driver,
		DSN:         a.cfg.DSN,
		Path:        a.cfg.DBPath,
		PingTimeout: a.cfg.Timeout.Duration,
	})
	if err != nil {
		a.log.Error("open database", "driver", a.cfg.Driver, "err", err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a.log.Debug("database opened", "driver", store.Driver())
	return store, nil
}

func (a *app) runTUI(ctx context.Context) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := ui.Run(ctx, store, a.cfg, a.log.Logger); err != nil {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}
