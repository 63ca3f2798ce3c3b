// Package cli implements the seqdex client subcommands, which talk to a
// running server through pkg/sdk.
package cli

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/seqdex/pkg/sdk"
)

// requestTimeout bounds each HTTP call the CLI makes.
const requestTimeout = 5 * time.Minute

// AddPersistentFlags registers the connection and output flags the client
// commands read.
func AddPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("addr", "http://localhost:9200", "server address")
	cmd.PersistentFlags().String("token", "", "API key (or SEQDEX_TOKEN env)")
	cmd.PersistentFlags().StringP("output", "o", "table", "output format: table or json")
}

// clientFromCmd builds an API client from the persistent flags on cmd.
func clientFromCmd(cmd *cobra.Command) (*sdk.Client, error) {
	addr, _ := cmd.Flags().GetString("addr")
	token, _ := cmd.Flags().GetString("token")
	if token == "" {
		token = envToken()
	}
	return sdk.New(addr, sdk.WithToken(token), sdk.WithTimeout(requestTimeout))
}

// envToken reads the token from SEQDEX_TOKEN if set.
func envToken() string {
	return os.Getenv("SEQDEX_TOKEN")
}

// outputFormat returns "json" or "table" from the --output flag.
func outputFormat(cmd *cobra.Command) string {
	f, _ := cmd.Flags().GetString("output")
	return f
}
