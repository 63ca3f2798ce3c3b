package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/seqdex/pkg/sdk"
)

// NewQueryCommand returns the "query" command.
func NewQueryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <indices> <eql>",
		Short: "Run an EQL query",
		Long: `Run an EQL query over a comma-separated list of indices or patterns.

  seqdex query logs-* 'sequence by user.name [process where true] [network where true]'`,
		Args: cobra.ExactArgs(2),
		RunE: runQuery,
	}
	cmd.Flags().Int("size", 0, "maximum number of results (server default when 0)")
	cmd.Flags().Duration("timeout", 0, "server-side search timeout")
	cmd.Flags().String("filter", "", "query DSL pre-filter as JSON")
	cmd.Flags().Bool("case-sensitive", false, "case-sensitive string comparison")
	cmd.Flags().Bool("all", false, "follow search_after until results run out")
	return cmd
}

func runQuery(cmd *cobra.Command, args []string) error {
	client, err := clientFromCmd(cmd)
	if err != nil {
		return err
	}

	req := sdk.SearchRequest{Query: args[1]}
	req.Size, _ = cmd.Flags().GetInt("size")
	req.CaseSensitive, _ = cmd.Flags().GetBool("case-sensitive")
	if raw, _ := cmd.Flags().GetString("filter"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Filter); err != nil {
			return fmt.Errorf("parse --filter: %w", err)
		}
	}

	var opts []sdk.SearchOption
	if d, _ := cmd.Flags().GetDuration("timeout"); d > 0 {
		opts = append(opts, sdk.WithSearchTimeout(d))
	}

	indices := strings.Split(args[0], ",")
	follow, _ := cmd.Flags().GetBool("all")
	p := newPrinter(outputFormat(cmd), cmd.OutOrStdout())

	if !follow {
		resp, err := client.Search(cmd.Context(), indices, req, opts...)
		if err != nil {
			return err
		}
		return printSearch(p, resp)
	}
	return client.SearchAll(cmd.Context(), indices, req, func(resp *sdk.SearchResponse) bool {
		err = printSearch(p, resp)
		return err == nil
	}, opts...)
}

func printSearch(p *printer, resp *sdk.SearchResponse) error {
	if p.isJSON() {
		return p.json(resp)
	}

	switch {
	case resp.Hits.Total != nil:
		p.kv([][2]string{{"Count", strconv.FormatInt(resp.Hits.Total.Value, 10)}})
	case len(resp.Hits.Sequences) > 0:
		var rows [][]string
		for i, seq := range resp.Hits.Sequences {
			for _, ev := range seq.Events {
				rows = append(rows, []string{
					strconv.Itoa(i + 1), compact(seq.JoinKeys), ev.Index, ev.ID, sortTime(ev.Sort), compact(ev.Source),
				})
			}
		}
		p.table([]string{"SEQ", "JOIN KEYS", "INDEX", "ID", "TIME", "SOURCE"}, rows)
	default:
		rows := make([][]string, 0, len(resp.Hits.Events))
		for _, ev := range resp.Hits.Events {
			rows = append(rows, []string{ev.Index, ev.ID, sortTime(ev.Sort), compact(ev.Source)})
		}
		p.table([]string{"INDEX", "ID", "TIME", "SOURCE"}, rows)
	}
	return nil
}

// sortTime renders the leading sort value, the event time in epoch millis.
func sortTime(sort []any) string {
	if len(sort) == 0 {
		return ""
	}
	if ms, ok := sort[0].(float64); ok {
		return time.UnixMilli(int64(ms)).UTC().Format(time.RFC3339Nano)
	}
	return fmt.Sprint(sort[0])
}
