package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/seqdex/pkg/sdk"
)

// NewIndexCommand returns the "index" command with its subcommands.
func NewIndexCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage indices",
	}
	cmd.AddCommand(
		newIndexListCmd(),
		newIndexGetCmd(),
		newIndexCreateCmd(),
		newIndexDeleteCmd(),
	)
	return cmd
}

func newIndexListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all indices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := clientFromCmd(cmd)
			if err != nil {
				return err
			}
			list, err := client.ListIndices(cmd.Context())
			if err != nil {
				return err
			}
			p := newPrinter(outputFormat(cmd), cmd.OutOrStdout())
			if p.isJSON() {
				return p.json(list)
			}
			rows := make([][]string, 0, len(list))
			for _, idx := range list {
				rows = append(rows, []string{idx.Name, fmt.Sprint(len(idx.Fields)), idx.CreatedAt.Format(time.RFC3339)})
			}
			p.table([]string{"NAME", "FIELDS", "CREATED"}, rows)
			return nil
		},
	}
}

func newIndexGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Show an index schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := clientFromCmd(cmd)
			if err != nil {
				return err
			}
			idx, err := client.GetIndex(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			p := newPrinter(outputFormat(cmd), cmd.OutOrStdout())
			if p.isJSON() {
				return p.json(idx)
			}
			p.kv([][2]string{
				{"Name", idx.Name},
				{"Created", idx.CreatedAt.Format(time.RFC3339)},
			})
			rows := make([][]string, 0, len(idx.Fields))
			for _, f := range idx.Fields {
				rows = append(rows, []string{f.Name, string(f.Type)})
			}
			p.table([]string{"FIELD", "TYPE"}, rows)
			return nil
		},
	}
}

func newIndexCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an index",
		Long: `Create an index. Fields are given as name:type pairs, type one of
keyword, numeric, date, boolean.

  seqdex index create logs --field @timestamp:date --field event.category:keyword`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			specs, _ := cmd.Flags().GetStringSlice("field")
			fields, err := parseFieldSpecs(specs)
			if err != nil {
				return err
			}
			client, err := clientFromCmd(cmd)
			if err != nil {
				return err
			}
			idx, err := client.CreateIndex(cmd.Context(), args[0], fields)
			if err != nil {
				return err
			}
			p := newPrinter(outputFormat(cmd), cmd.OutOrStdout())
			if p.isJSON() {
				return p.json(idx)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created index %s with %d fields\n", idx.Name, len(idx.Fields))
			return nil
		},
	}
	cmd.Flags().StringSlice("field", nil, "field as name:type (repeatable)")
	return cmd
}

func newIndexDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete an index and its events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := clientFromCmd(cmd)
			if err != nil {
				return err
			}
			if err := client.DeleteIndex(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted index %s\n", args[0])
			return nil
		},
	}
}

func parseFieldSpecs(specs []string) ([]sdk.Field, error) {
	fields := make([]sdk.Field, 0, len(specs))
	for _, spec := range specs {
		name, typ, ok := strings.Cut(spec, ":")
		if !ok || name == "" || typ == "" {
			return nil, fmt.Errorf("invalid field %q: want name:type", spec)
		}
		fields = append(fields, sdk.Field{Name: name, Type: sdk.FieldType(typ)})
	}
	return fields, nil
}
