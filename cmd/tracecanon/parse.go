package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/yousuf/tracecanon/internal/tracekit"
)

var parseCmd = &cobra.Command{
	Use:   "parse [flags] [file|-]",
	Short: "Normalize one error record",
	Long: `Parse reads one JSON error record ({"name", "message", "stack", ...}) from a file or stdin
and prints the canonical stack trace`,
	Args: cobra.MaximumNArgs(1),
	RunE: runParse,
}

func init() {
	parseCmd.Flags().Bool("pretty", false, "print a human readable trace instead of JSON")
}

func runParse(cmd *cobra.Command, args []string) error {
	path := "-"
	if len(args) == 1 {
		path = args[0]
	}

	pretty, err := cmd.Flags().GetBool("pretty")
	if err != nil {
		return fmt.Errorf("failed to get pretty flag: %w", err)
	}

	in, err := openInput(path)
	if err != nil {
		return err
	}
	defer in.Close()

	ex, err := decodeErrorLike(in)
	if err != nil {
		return err
	}
	st := tracekit.ComputeStackTrace(ex)

	if !pretty {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}

	colored, err := useColor(cmd, os.Stdout)
	if err != nil {
		return err
	}
	color.NoColor = !colored
	dialect, _ := tracekit.DetectDialect(ex.Stack)
	renderTrace(os.Stdout, st, dialect)
	return nil
}

func decodeErrorLike(r io.Reader) (tracekit.ErrorLike, error) {
	var ex tracekit.ErrorLike
	if err := json.NewDecoder(r).Decode(&ex); err != nil {
		return tracekit.ErrorLike{}, fmt.Errorf("failed to decode error record: %w", err)
	}
	return ex, nil
}
