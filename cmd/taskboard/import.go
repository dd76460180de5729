package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"taskboard/storage"
)

var importDryRun bool

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the stored state with a transfer document",
	Long: `import validates the given document (current exports, bare state and the
recognized legacy shapes all work) and replaces the stored state with it.
With --dry-run the document is only validated.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "validate only, leave the stored state untouched")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	payload, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	st, err := storage.ValidateImport(payload)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	if importDryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "ok: %d board(s), %d task(s)\n", st.BoardCount(), st.TaskCount())
		return nil
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

	imported, ok := store.ImportData(ctx, payload)
	if !ok {
		return errors.New("import failed, stored state left untouched")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d board(s), %d task(s)\n", imported.BoardCount(), imported.TaskCount())
	return nil
}
