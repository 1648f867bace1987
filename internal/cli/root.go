package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"bondwatch/internal/billing"
	"bondwatch/internal/config"
	"bondwatch/internal/logging"
	"bondwatch/internal/moex"
	"bondwatch/internal/notify"
	"bondwatch/internal/reconcile"
	"bondwatch/internal/store"
	"bondwatch/internal/track"
)

// Version information
const (
	Version = "0.1.0"
)

// App holds the application dependencies.
type App struct {
	Config     *config.Config
	Logger     zerolog.Logger
	Store      store.DataStore
	MOEX       *moex.Client
	Reconciler *reconcile.Reconciler
	Dispatcher *notify.Dispatcher
	Billing    *billing.Service
	Tracker    *track.Service
}

// NewApp wires the application dependencies.
func NewApp(cfg *config.Config, logger zerolog.Logger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath = config.DefaultDBPath()
	}
	dataStore, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, err
	}
	app.Store = dataStore
	logger.Debug().Str("path", dbPath).Msg("SQLite store initialized")

	app.MOEX = moex.NewClient(cfg.MOEX, logger)
	app.Reconciler = reconcile.NewReconciler(dataStore, app.MOEX, logger)
	app.Billing = billing.NewService(dataStore, cfg.Billing, logger)
	app.Tracker = track.NewService(dataStore, app.Billing, app.MOEX, app.Reconciler, logger)
	app.Dispatcher = notify.NewDispatcher(dataStore, app.buildMessenger(), logger)

	return app, nil
}

// buildMessenger picks the delivery channel. Without a bot token the
// app prints messages instead of sending them.
func (app *App) buildMessenger() notify.Messenger {
	if app.Config.Telegram.BotToken != "" {
		return notify.NewTelegramMessenger(app.Config.Telegram.BotToken)
	}
	app.Logger.Warn().Msg("No bot token configured, printing notifications to stdout")
	return notify.NewConsoleMessenger()
}

// Close releases application resources.
func (app *App) Close() error {
	if app.Store != nil {
		return app.Store.Close()
	}
	return nil
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) (*cobra.Command, error) {
	app, err := NewApp(cfg, logger)
	if err != nil {
		return nil, err
	}

	rootCmd := &cobra.Command{
		Use:   "bondwatch",
		Short: "Bondwatch - MOEX bond event notification service",
		Long: `Bondwatch tracks Russian bonds on the Moscow Exchange and notifies
users about upcoming coupons, amortizations, offers, and maturities.

Use 'bondwatch help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/bondwatch)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newRunCmd(app))
	rootCmd.AddCommand(newSyncCmd(app))
	rootCmd.AddCommand(newNotifyCmd(app))
	rootCmd.AddCommand(newTrackCmd(app))
	rootCmd.AddCommand(newBillingCmd(app))

	return rootCmd, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"version": Version})
			} else {
				output.Printf("Bondwatch v%s\n", Version)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			output.Bold("Scheduler")
			output.Printf("  Sync at:     %s\n", app.Config.Scheduler.SyncAt)
			output.Printf("  Notify at:   %s\n", app.Config.Scheduler.NotifyAt)
			output.Bold("MOEX")
			output.Printf("  Base URL:    %s\n", app.Config.MOEX.BaseURL)
			output.Printf("  Timeout:     %s\n", app.Config.MOEX.Timeout)
			output.Bold("Database")
			output.Printf("  Path:        %s\n", app.Config.Database.Path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("✓ Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}
