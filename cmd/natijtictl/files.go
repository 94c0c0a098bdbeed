package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/natijti/internal/core"
)

// readTable opens path and parses it with the default file rules.
func readTable(path string, maxSize int64) (*core.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, withCode(exitUsage, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, withCode(exitUsage, err)
	}
	table, err := core.ReadTable(path, f, info.Size(), core.FileRules{MaxSize: maxSize})
	if err != nil {
		return nil, withCode(exitValidation, fmt.Errorf("%s: %w", path, err))
	}
	return table, nil
}

func newDetectCmd() *cobra.Command {
	var maxSize int64

	cmd := &cobra.Command{
		Use:   "detect FILE...",
		Short: "Print the layout detected for each file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, path := range args {
				table, err := readTable(path, maxSize)
				if err != nil {
					return err
				}
				layout := core.DetectLayout(table.Columns())
				fmt.Fprintf(out, "%s\t%s\t%d rows\t%s\n", path, layout, table.Len(), layout.Spec().Description)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&maxSize, "max-size", core.DefaultMaxFileSize, "Maximum file size in bytes")
	return cmd
}

func newPreviewCmd() *cobra.Command {
	var maxSize int64

	cmd := &cobra.Command{
		Use:   "preview FILE",
		Short: "Print the import preview of a file as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := readTable(args[0], maxSize)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), core.BuildPreview(table))
		},
	}
	cmd.Flags().Int64Var(&maxSize, "max-size", core.DefaultMaxFileSize, "Maximum file size in bytes")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
