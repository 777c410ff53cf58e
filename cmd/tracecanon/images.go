package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yousuf/tracecanon/internal/wasmimages"
)

var imagesCmd = &cobra.Command{
	Use:   "images [flags] <module.wasm>",
	Short: "Print the debug image record of a wasm module",
	Args:  cobra.ExactArgs(1),
	RunE:  runImages,
}

func init() {
	imagesCmd.Flags().String("url", "", "URL the module is served from (default: the file path)")
}

func runImages(cmd *cobra.Command, args []string) error {
	moduleURL, err := cmd.Flags().GetString("url")
	if err != nil {
		return fmt.Errorf("failed to get url flag: %w", err)
	}
	if moduleURL == "" {
		moduleURL = args[0]
	}

	reg := wasmimages.NewRegistry()
	if err := registerModuleFile(cmd.Context(), reg, moduleURL+"="+args[0]); err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(reg.Images()[0])
}
