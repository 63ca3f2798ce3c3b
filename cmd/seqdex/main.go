// Command seqdex runs the EQL search server and talks to a running one.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/seqdex/cmd/seqdex/cli"
	"github.com/kailas-cloud/seqdex/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "seqdex",
		Short:         "Event query language search over Redis",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cli.AddPersistentFlags(rootCmd)

	rootCmd.AddCommand(
		newServeCmd(),
		cli.NewQueryCommand(),
		cli.NewIngestCommand(),
		cli.NewIndexCommand(),
		cli.NewHealthCommand(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, _ []string) {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.String())
			},
		},
	)

	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
