package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"shop-lifecycle/internal/application"
	"shop-lifecycle/internal/config"
	"shop-lifecycle/internal/confirmation"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version information (set by main package)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
	goVersion = "unknown"
)

// SetVersionInfo sets the version information from build flags
func SetVersionInfo(v, bt, gc, gv string) {
	version = v
	buildTime = bt
	gitCommit = gc
	goVersion = gv
}

// exitError carries a non-zero exit status for a failure that was already reported
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// cli holds the state shared by every command of one invocation
type cli struct {
	v       *viper.Viper
	cfgFile string
}

// Execute builds the command tree, runs it and exits with its status
func Execute() {
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		os.Exit(application.ExitFailure)
	}
}

// NewRootCommand returns the shop-lifecycle command tree with a fresh configuration
func NewRootCommand() *cobra.Command {
	c := &cli{v: viper.New()}
	config.SetDefaults(c.v)
	config.BindEnvironment(c.v)

	rootCmd := &cobra.Command{
		Use:   "shop-lifecycle",
		Short: "Backup, migrate and seed the online store database",
		Long: `shop-lifecycle keeps the online store's datastore healthy.

It takes rotating file snapshots of the embedded database, adds missing
columns to existing tables, and bulk-loads the product catalog and store
locations from JSON or YAML files in transactional batches.

Connection settings come from flags, SHOP_LIFECYCLE_* environment variables,
or a config file, in that order of precedence.

Examples:
  # Snapshot the sqlite database and keep the newest 10 copies
  shop-lifecycle backup --db-path ./data/shop.db

  # Add missing order columns on a PostgreSQL server
  SHOP_LIFECYCLE_DATABASE_DSN=postgres://shop@db/shop shop-lifecycle migrate --driver postgres

  # Replace the catalog without prompting
  shop-lifecycle import catalog products.json --auto-approve`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.initConfig()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&c.cfgFile, "config", "", "config file (default is $HOME/.shop-lifecycle.yaml or ./.shop-lifecycle.yaml)")

	flags.String("driver", "", "database driver: sqlite, postgres or mysql")
	flags.String("dsn", "", "connection string for postgres or mysql")
	flags.String("db-path", "", "sqlite database file")
	flags.String("tls-mode", "", "server certificate verification: verify or skip")

	flags.BoolP("verbose", "v", false, "enable verbose output")
	flags.BoolP("quiet", "q", false, "suppress non-error output")
	flags.Bool("debug", false, "enable debug logging")
	flags.String("log-file", "", "also write logs to this file")
	flags.String("log-format", "", "log format: text or json")
	flags.Bool("no-color", false, "disable color output")
	flags.Bool("auto-approve", false, "skip confirmation prompts")

	c.bindFlags(rootCmd, map[string]string{
		"database.driver":   "driver",
		"database.dsn":      "dsn",
		"database.path":     "db-path",
		"database.tls_mode": "tls-mode",
		"logging.verbose":   "verbose",
		"logging.quiet":     "quiet",
		"logging.debug":     "debug",
		"logging.file":      "log-file",
		"logging.format":    "log-format",
		"display.no_color":  "no-color",
		"auto_approve":      "auto-approve",
	}, true)

	rootCmd.AddCommand(
		c.newBackupCommand(),
		c.newMigrateCommand(),
		c.newImportCommand(),
		createConfigCommand(),
		createVersionCommand(),
	)

	return rootCmd
}

// bindFlags binds flags to config keys. Unchanged flags never override the
// file, environment or defaults.
func (c *cli) bindFlags(cmd *cobra.Command, keys map[string]string, persistent bool) {
	set := cmd.Flags()
	if persistent {
		set = cmd.PersistentFlags()
	}
	for key, name := range keys {
		if err := c.v.BindPFlag(key, set.Lookup(name)); err != nil {
			panic(fmt.Sprintf("binding flag --%s: %v", name, err))
		}
	}
}

// initConfig reads in the config file if one is given or found
func (c *cli) initConfig() error {
	if c.cfgFile != "" {
		c.v.SetConfigFile(c.cfgFile)
	} else {
		c.v.SetConfigName(config.FileName)
		c.v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			c.v.AddConfigPath(home)
		}
		c.v.AddConfigPath(".")
	}

	if err := c.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if c.cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// run loads the configuration and executes job through the application shell
func (c *cli) run(cmd *cobra.Command, operation string, job application.Job) error {
	cfg, err := config.Load(c.v)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		return &exitError{code: application.ExitFailure}
	}

	app, err := application.New(cfg, application.Options{
		Stdout:   cmd.OutOrStdout(),
		Stderr:   cmd.ErrOrStderr(),
		Prompter: prompterFor(cmd, cfg.AutoApprove),
	})
	if err != nil {
		return err
	}

	if code := app.Run(operation, job); code != application.ExitOK {
		return &exitError{code: code}
	}
	return nil
}

// prompterFor answers from stdin, or from the reader given to cmd.SetIn,
// which is always treated as interactive
func prompterFor(cmd *cobra.Command, autoApprove bool) *confirmation.Prompter {
	in := cmd.InOrStdin()
	if in == io.Reader(os.Stdin) {
		return confirmation.NewPrompter(autoApprove)
	}
	return confirmation.NewPrompterWithIO(in, cmd.ErrOrStderr(), true, autoApprove)
}

func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "shop-lifecycle version %s\n", version)
			fmt.Fprintf(out, "Built: %s\n", buildTime)
			fmt.Fprintf(out, "Commit: %s\n", gitCommit)
			fmt.Fprintf(out, "Go version: %s\n", goVersion)
		},
	}
}

func createConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print a sample configuration file",
		Long: `Print a sample configuration file with every default value.

Examples:
  shop-lifecycle config > .shop-lifecycle.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sample, err := config.SampleYAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(sample)
			return err
		},
	}
}
