package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"taskboard/domain"
	"taskboard/index"
)

var (
	searchText   string
	searchStatus string
	searchDate   string
	searchBoard  string
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search tasks via the inverted index",
	Args:  cobra.NoArgs,
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchText, "text", "", "words the task text must contain (all of them)")
	searchCmd.Flags().StringVar(&searchStatus, "status", "", "column the task must be in: todo, doing or done")
	searchCmd.Flags().StringVar(&searchDate, "date", "", "creation date in YYYY-MM-DD form")
	searchCmd.Flags().StringVar(&searchBoard, "board", "", "board the task must belong to, by id or name")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchText == "" && searchStatus == "" && searchDate == "" && searchBoard == "" {
		return fmt.Errorf("at least one of --text, --status, --date or --board is required")
	}
	if searchStatus != "" && !domain.ValidStatus(domain.Status(searchStatus)) {
		return fmt.Errorf("unknown status %q", searchStatus)
	}
	if searchDate != "" && !domain.ValidDate(searchDate) {
		return fmt.Errorf("invalid date %q, want %s", searchDate, domain.DateLayout)
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
	criteria := index.Criteria{
		Status: domain.Status(searchStatus),
		Text:   searchText,
		Date:   searchDate,
	}
	if searchBoard != "" {
		board, ok := findBoard(st, searchBoard)
		if !ok {
			return fmt.Errorf("board %q not found", searchBoard)
		}
		criteria.BoardID = board.ID
	}

	idx := index.New(logger)
	idx.Build(st.ActiveTasks())
	results := idx.Search(criteria)

	w := table.NewWriter()
	w.SetOutputMirror(cmd.OutOrStdout())
	w.SetStyle(table.StyleLight)
	w.AppendHeader(table.Row{"ID", "Task", "Status", "Board", "Created"})
	for _, b := range st.Boards {
		for _, t := range b.Tasks {
			if results.Contains(t.ID) {
				w.AppendRow(table.Row{shortID(t.ID), t.Text, coloredStatus(t.Status), b.Name, t.CreatedDate})
			}
		}
	}
	w.Render()
	fmt.Fprintf(cmd.OutOrStdout(), "%d match(es)\n", len(results))
	return nil
}
