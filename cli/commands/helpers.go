package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/AlecAivazis/survey/v2"
	"github.com/hashicorp/go-version"

	"github.com/nxtgo/nxt-orm/cli/internal/ui"
	"github.com/nxtgo/nxt-orm/dialect"
	"github.com/nxtgo/nxt-orm/internal/debug"
	"github.com/nxtgo/nxt-orm/migrate/sqlgen"
	"github.com/nxtgo/nxt-orm/runtime/client"
)

// Output formats of a plan.
const (
	formatText     = "text"
	formatMarkdown = "markdown"
	formatTable    = "table"
)

func checkFormat(format string) error {
	switch format {
	case formatText, formatMarkdown, formatTable:
		return nil
	}
	return dialect.NewConfigError("sync", fmt.Sprintf("unknown format %q, expected text, markdown or table", format))
}

// openConnection connects with the loaded configuration.
func openConnection(ctx context.Context) (*client.Client, error) {
	d, err := cfg.Dialect()
	if err != nil {
		return nil, err
	}
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}

	conn, err := client.Open(d, dsn)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", d.Name, err)
	}
	debug.Debug("Connected", "dialect", d.Name, "config", cfg.File)
	return conn, nil
}

// checkServer refuses servers older than the dialect supports.
func checkServer(ctx context.Context, conn client.Conn) (*version.Version, error) {
	server, err := client.CheckVersion(ctx, conn)
	if err != nil {
		return nil, err
	}
	debug.Debug("Server version", "dialect", conn.Dialect().Name, "version", server.String())
	return server, nil
}

// sqlLexers maps dialect names to chroma lexers.
var sqlLexers = map[string]string{
	dialect.MySQLName:    "mysql",
	dialect.PostgresName: "postgres",
}

// renderPlan prints the statement count followed by the statements in format.
func renderPlan(w io.Writer, format string, d *dialect.Dialect, plan *sqlgen.Plan) error {
	if err := checkFormat(format); err != nil {
		return err
	}

	statements := make([]string, 0, plan.Len())
	for _, st := range plan.Statements() {
		sql, err := st.ToSQL()
		if err != nil {
			return err
		}
		statements = append(statements, sql)
	}

	fmt.Fprintf(w, "%d queries:\n", len(statements))
	switch format {
	case formatMarkdown:
		out, err := ui.RenderMarkdown(ui.SQLMarkdown(statements))
		if err != nil {
			return err
		}
		fmt.Fprint(w, out)
	case formatTable:
		rows := make([][]string, 0, len(statements))
		for i, st := range plan.Statements() {
			kind, element := sqlgen.Describe(st)
			rows = append(rows, []string{strconv.Itoa(i + 1), kind, st.Table(), element})
		}
		out, err := ui.RenderTable([]string{"#", "kind", "table", "element"}, rows)
		if err != nil {
			return err
		}
		fmt.Fprint(w, out)
	default:
		for _, sql := range statements {
			fmt.Fprintln(w, ui.HighlightSQL(sql, sqlLexers[d.Name]))
		}
	}
	return nil
}

func confirm(message string) (bool, error) {
	ok := false
	if err := survey.AskOne(&survey.Confirm{Message: message}, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

// reportError prints err, with the failing statement for driver errors.
func reportError(err error) {
	var driverErr *dialect.DriverError
	if errors.As(err, &driverErr) {
		ui.PrintError("%s", driverErr.Error())
		if driverErr.SQL != "" {
			ui.PrintError("SQL: %s", driverErr.SQL)
		}
		return
	}
	ui.PrintError("%s", err.Error())
}
