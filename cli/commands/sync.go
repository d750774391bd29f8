package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nxtgo/nxt-orm/cli/internal/config"
	"github.com/nxtgo/nxt-orm/cli/internal/ui"
	"github.com/nxtgo/nxt-orm/cli/internal/watch"
	"github.com/nxtgo/nxt-orm/dialect"
	"github.com/nxtgo/nxt-orm/entities"
	"github.com/nxtgo/nxt-orm/migrate"
)

var (
	syncExecute bool
	syncYes     bool
	syncEach    bool
	syncWatch   bool
	syncFormat  string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Print or execute the statements that synchronize the schema",
	Long: `Compare the registered entities with the live schema and print the
statements needed to bring it up to date. With --execute the statements are
sent to the database, as one multi-statement call unless --each is set.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVarP(&syncExecute, "execute", "e", false, "execute the statements")
	syncCmd.Flags().BoolVarP(&syncYes, "yes", "y", false, "do not ask for confirmation before executing")
	syncCmd.Flags().BoolVar(&syncEach, "each", false, "send statements one at a time")
	syncCmd.Flags().BoolVarP(&syncWatch, "watch", "w", false, "print the plan again whenever the configuration changes")
	syncCmd.Flags().StringVarP(&syncFormat, "format", "f", formatText, "output format: text, markdown or table")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	if syncWatch && syncExecute {
		return dialect.NewConfigError("sync", "--watch cannot be combined with --execute")
	}
	if err := checkFormat(syncFormat); err != nil {
		return err
	}
	if syncWatch {
		return watchPlan(cmd.Context(), cmd.OutOrStdout())
	}
	return syncOnce(cmd.Context(), cmd.OutOrStdout())
}

func syncOnce(ctx context.Context, out io.Writer) error {
	conn, err := openConnection(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := checkServer(ctx, conn); err != nil {
		return err
	}

	registry, err := entities.NewRegistry()
	if err != nil {
		return err
	}
	engine := migrate.NewEngine(conn, registry)

	plan, err := engine.Plan(ctx)
	if err != nil {
		return err
	}
	if plan.IsEmpty() {
		ui.PrintInfo("There is no queries to execute")
		return nil
	}
	if err := renderPlan(out, syncFormat, conn.Dialect(), plan); err != nil {
		return err
	}
	if !syncExecute {
		return nil
	}

	if !syncYes {
		ok, err := confirm(fmt.Sprintf("Execute %d queries on %s?", plan.Len(), conn.Dialect().Name))
		if err != nil {
			return err
		}
		if !ok {
			ui.PrintWarning("Aborted, nothing was executed")
			return nil
		}
	}

	spinner, _ := ui.PrintSpinner("Executing")
	n, err := engine.Apply(ctx, plan, !syncEach)
	if spinner != nil {
		spinner.Stop()
	}
	if err != nil {
		return err
	}
	ui.PrintSuccess("%d queries executed", n)
	return nil
}

// watchPlan prints the plan, then prints it again whenever the config file
// or an env file changes, until interrupted.
func watchPlan(ctx context.Context, out io.Writer) error {
	files := []string{".env", ".env.local"}
	if cfg.File != "" {
		files = append(files, cfg.File)
	}

	w, err := watch.NewWatcher(files, watch.DefaultDebounce, func() error {
		loaded, err := config.LoadConfig(configFile)
		if err != nil {
			return err
		}
		cfg = loaded
		return syncOnce(ctx, out)
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	ui.PrintInfo("Watching %s, press Ctrl+C to stop", strings.Join(files, ", "))
	<-ctx.Done()
	return nil
}
