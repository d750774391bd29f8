package commands

import (
	"github.com/spf13/cobra"

	"github.com/nxtgo/nxt-orm/cli/internal/config"
	"github.com/nxtgo/nxt-orm/internal/debug"
)

var (
	configFile string
	debugFlag  bool

	// cfg is loaded before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "nxt-orm",
	Short: "Keep a MySQL or PostgreSQL schema in line with the registered entities",
	Long: `nxt-orm compares the registered entities with the live database and
prints, or executes, the statements that bring the schema up to date.

Connection settings are read from .nxt-orm.yaml, NXT_ORM_* environment
variables, .env and .env.local. DATABASE_URL overrides them all.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadConfig(configFile)
		if err != nil {
			return err
		}
		cfg = loaded
		debug.Init(debugFlag || cfg.Debug)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default .nxt-orm.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "log every statement sent to the database")
}

// Execute is the main entry point for the CLI
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		reportError(err)
	}
	return err
}
