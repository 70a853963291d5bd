// Package cli implements the bankcore-admin operator commands.
package cli

import (
	"fmt"
	"io"
	"os"

	"bankcore/internal/bootstrap"
	"bankcore/internal/config"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "bankcore-admin",
	Short: "Operator tooling for the bankcore ledger",
	Long: `Operator tooling for the bankcore ledger. Commands read the same
environment (.env, DB_*, REDIS_*, JWT_SECRET) as the API server.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withContainer wires the services for one command and closes them after.
func withContainer(fn func(c *bootstrap.Container) error) error {
	config.LoadEnv()
	c, err := bootstrap.Build(config.Load())
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}

func out(cmd *cobra.Command) io.Writer { return cmd.OutOrStdout() }

func printf(cmd *cobra.Command, format string, args ...interface{}) {
	fmt.Fprintf(out(cmd), format, args...)
}
