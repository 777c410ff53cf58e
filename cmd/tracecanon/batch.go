package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/yousuf/tracecanon/internal/event"
	"github.com/yousuf/tracecanon/internal/tracekit"
	"github.com/yousuf/tracecanon/internal/wasmimages"
)

const maxRecordSize = 4 << 20

var batchCmd = &cobra.Command{
	Use:   "batch [flags] <records.jsonl|->",
	Short: "Normalize a file of error records into events",
	Long: `Batch reads one JSON error record per line, normalizes the records in parallel and writes
one event per record, in input order, as a JSON or msgpack stream`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().Int("jobs", 0, "max parallel workers (0=auto)")
	batchCmd.Flags().String("format", "", "output format (json|msgpack); defaults to the configured output format")
	batchCmd.Flags().StringP("out", "o", "-", "output file")
	batchCmd.Flags().StringArray("wasm", nil, "register a wasm module for frame patching, as <url>=<file>")
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return fmt.Errorf("failed to get jobs flag: %w", err)
	}
	formatFlag, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	if formatFlag == "" {
		formatFlag = cfg.Output.Format
	}
	format, err := event.ParseFormat(formatFlag)
	if err != nil {
		return err
	}
	outPath, err := cmd.Flags().GetString("out")
	if err != nil {
		return fmt.Errorf("failed to get out flag: %w", err)
	}
	modules, err := cmd.Flags().GetStringArray("wasm")
	if err != nil {
		return fmt.Errorf("failed to get wasm flag: %w", err)
	}

	reg := wasmimages.NewRegistry()
	for _, m := range modules {
		if err := registerModuleFile(cmd.Context(), reg, m); err != nil {
			return err
		}
	}

	in, err := openInput(args[0])
	if err != nil {
		return err
	}
	defer in.Close()

	var out io.Writer = os.Stdout
	if outPath != "-" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	w := bufio.NewWriter(out)
	n, err := normalizeBatch(cmd.Context(), in, w, format, jobs, reg)
	if err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "normalized %d records\n", n)
	return nil
}

func registerModuleFile(ctx context.Context, reg *wasmimages.Registry, value string) error {
	moduleURL, path, ok := strings.Cut(value, "=")
	if !ok || moduleURL == "" || path == "" {
		return fmt.Errorf("invalid --wasm value %q (want <url>=<file>)", value)
	}
	wasm, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read wasm module: %w", err)
	}
	info, err := wasmimages.ReadModuleInfo(ctx, wasm)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if _, err := reg.Register(moduleURL, info); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// normalizeBatch normalizes every JSON line of r and encodes the events to w in input order.
func normalizeBatch(ctx context.Context, r io.Reader, w io.Writer, format event.Format, jobs int, reg *wasmimages.Registry) (int, error) {
	type record struct {
		line int
		raw  []byte
	}
	var records []record
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordSize)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		records = append(records, record{line: lineNo, raw: bytes.Clone(line)})
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("failed to read records: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	events := make([]*event.Event, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(records)))

	for i, rec := range records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var ex tracekit.ErrorLike
			if err := json.Unmarshal(rec.raw, &ex); err != nil {
				return fmt.Errorf("line %d: %w", rec.line, err)
			}
			events[i] = wasmimages.Process(event.NewException(tracekit.ComputeStackTrace(ex)), reg)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	enc, err := event.NewEncoder(w, format)
	if err != nil {
		return 0, err
	}
	for _, ev := range events {
		if err := enc.Encode(ev); err != nil {
			return 0, fmt.Errorf("failed to encode event: %w", err)
		}
	}
	return len(events), nil
}
