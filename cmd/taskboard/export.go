package main

import (
	"fmt"
	"os"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"taskboard/domain"
	"taskboard/storage"
)

var (
	exportOut      string
	exportFormat   string
	exportPretty   bool
	exportBoard    string
	exportArchived bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the state as a transfer document",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "write to this file instead of stdout")
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "output format: json or yaml")
	exportCmd.Flags().BoolVar(&exportPretty, "pretty", false, "indent JSON output")
	exportCmd.Flags().StringVar(&exportBoard, "board", "", "export a single board, by id or name")
	exportCmd.Flags().BoolVar(&exportArchived, "include-archived", false, "include archived tasks")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportFormat != "json" && exportFormat != "yaml" {
		return fmt.Errorf("unknown format %q, want json or yaml", exportFormat)
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	st := store.Load(ctx, domain.DefaultState())
	opts := storage.ExportOptions{IncludeArchived: exportArchived, Pretty: exportPretty}
	if exportBoard != "" {
		board, ok := findBoard(st, exportBoard)
		if !ok {
			return fmt.Errorf("board %q not found", exportBoard)
		}
		opts.BoardID = board.ID
	}
	doc := store.ExportData(st, opts)

	var payload []byte
	switch {
	case exportFormat == "yaml":
		payload, err = yaml.Marshal(doc)
	case exportPretty:
		payload, err = sonic.ConfigStd.MarshalIndent(doc, "", "  ")
	default:
		payload, err = sonic.ConfigStd.Marshal(doc)
	}
	if err != nil {
		return fmt.Errorf("encode export: %w", err)
	}

	if exportOut == "" {
		fmt.Fprintln(cmd.OutOrStdout(), string(payload))
		return nil
	}
	if err := os.WriteFile(exportOut, payload, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "exported %d board(s), %d task(s) to %s\n",
		doc.Metadata.TotalBoards, doc.Metadata.TotalTasks, exportOut)
	return nil
}
