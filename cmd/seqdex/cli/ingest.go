package cli

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/seqdex/pkg/sdk"
)

const (
	defaultIngestBatch = 1000
	maxIngestLine      = 1 << 20
)

// NewIngestCommand returns the "ingest" command.
func NewIngestCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <index> [file...]",
		Short: "Bulk load NDJSON events",
		Long:  "Bulk load newline-delimited JSON events from files, or stdin when none are given. An \"_id\" key sets the event ID.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runIngest,
	}
	cmd.Flags().Int("batch-size", defaultIngestBatch, "events per bulk request")
	cmd.Flags().Int("parallel", 4, "concurrent bulk requests")
	return cmd
}

// ingestStats accumulates bulk outcomes across concurrent requests.
type ingestStats struct {
	mu        sync.Mutex
	succeeded int
	failed    int
	errors    []string
}

func (s *ingestStats) add(res sdk.BulkResult, lineOffset int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.succeeded += res.Succeeded
	s.failed += res.Failed
	for _, it := range res.Items {
		if it.Error != nil && len(s.errors) < 10 {
			s.errors = append(s.errors, fmt.Sprintf("line %d: %s", lineOffset+it.Line, it.Error.Message))
		}
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	client, err := clientFromCmd(cmd)
	if err != nil {
		return err
	}
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	parallel, _ := cmd.Flags().GetInt("parallel")
	if batchSize <= 0 {
		batchSize = defaultIngestBatch
	}

	index := args[0]
	var inputs []io.Reader
	if len(args) == 1 {
		inputs = append(inputs, cmd.InOrStdin())
	}
	for _, name := range args[1:] {
		f, err := os.Open(name) //nolint:gosec // user-supplied input file
		if err != nil {
			return fmt.Errorf("open %s: %w", name, err)
		}
		defer func() { _ = f.Close() }()
		inputs = append(inputs, f)
	}

	stats := &ingestStats{}
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(max(parallel, 1))

	line := 0
	send := func(batch []byte, offset int) {
		g.Go(func() error {
			res, err := client.BulkNDJSON(ctx, index, batch)
			if err != nil {
				return fmt.Errorf("bulk from line %d: %w", offset+1, err)
			}
			stats.add(res, offset)
			return nil
		})
	}

	var buf bytes.Buffer
	batchStart, inBatch := 0, 0
	scanner := bufio.NewScanner(io.MultiReader(inputs...))
	scanner.Buffer(make([]byte, 0, 64*1024), maxIngestLine)
	for scanner.Scan() {
		line++
		if len(bytes.TrimSpace(scanner.Bytes())) == 0 {
			// Keep line numbers aligned with the server's per-batch count.
			if inBatch > 0 {
				buf.WriteByte('\n')
			}
			continue
		}
		if inBatch == 0 {
			batchStart = line - 1
		}
		buf.Write(scanner.Bytes())
		buf.WriteByte('\n')
		inBatch++
		if inBatch == batchSize {
			send(bytes.Clone(buf.Bytes()), batchStart)
			buf.Reset()
			inBatch = 0
		}
		if ctx.Err() != nil {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		_ = g.Wait()
		return fmt.Errorf("read input: %w", err)
	}
	if inBatch > 0 {
		send(bytes.Clone(buf.Bytes()), batchStart)
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return printIngest(newPrinter(outputFormat(cmd), cmd.OutOrStdout()), stats)
}

func printIngest(p *printer, s *ingestStats) error {
	if p.isJSON() {
		return p.json(map[string]any{"succeeded": s.succeeded, "failed": s.failed, "errors": s.errors})
	}
	p.kv([][2]string{
		{"Succeeded", fmt.Sprint(s.succeeded)},
		{"Failed", fmt.Sprint(s.failed)},
	})
	for _, e := range s.errors {
		_, _ = fmt.Fprintln(p.w, "  "+e)
	}
	return nil
}
