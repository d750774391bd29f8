package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nxtgo/nxt-orm/cli/internal/ui"
	"github.com/nxtgo/nxt-orm/cli/internal/version"
)

var (
	versionFull   bool
	versionServer bool
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.Get()
		if versionFull {
			fmt.Fprintln(cmd.OutOrStdout(), info.FullString())
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), info.String())
		}
		if !versionServer {
			return nil
		}

		conn, err := openConnection(cmd.Context())
		if err != nil {
			return err
		}
		defer conn.Close()

		server, err := checkServer(cmd.Context(), conn)
		if err != nil {
			return err
		}
		ui.PrintInfo("%s server %s", conn.Dialect().Name, server)
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionFull, "full", false, "print build details")
	versionCmd.Flags().BoolVar(&versionServer, "server", false, "also connect and print the database server version")
	rootCmd.AddCommand(versionCmd)
}
