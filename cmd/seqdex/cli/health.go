package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

// NewHealthCommand returns the "health" command.
func NewHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := clientFromCmd(cmd)
			if err != nil {
				return err
			}
			h, healthErr := client.Health(cmd.Context())
			if h.Status == "" {
				return healthErr
			}

			p := newPrinter(outputFormat(cmd), cmd.OutOrStdout())
			if p.isJSON() {
				if err := p.json(h); err != nil {
					return err
				}
			} else {
				pairs := [][2]string{{"Status", h.Status}, {"Indices", fmt.Sprint(h.Indices)}}
				names := make([]string, 0, len(h.Checks))
				for name := range h.Checks {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					pairs = append(pairs, [2]string{"Check " + name, h.Checks[name]})
				}
				p.kv(pairs)
			}
			if healthErr != nil {
				return fmt.Errorf("server unhealthy: %s", h.Status)
			}
			return nil
		},
	}
}
