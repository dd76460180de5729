package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"taskboard/domain"
)

var (
	listBoard    string
	listStatus   string
	listArchived bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks from the stored state",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listBoard, "board", "", "limit to one board, by id or name")
	listCmd.Flags().StringVar(&listStatus, "status", "", "limit to one column: todo, doing or done")
	listCmd.Flags().BoolVar(&listArchived, "archived", false, "list archived tasks instead of active ones")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	if listStatus != "" && !domain.ValidStatus(domain.Status(listStatus)) {
		return fmt.Errorf("unknown status %q", listStatus)
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
	boards := st.Boards
	if listBoard != "" {
		board, ok := findBoard(st, listBoard)
		if !ok {
			return fmt.Errorf("board %q not found", listBoard)
		}
		boards = []domain.Board{board}
	}

	w := table.NewWriter()
	w.SetOutputMirror(cmd.OutOrStdout())
	w.SetStyle(table.StyleLight)
	w.AppendHeader(table.Row{"ID", "Task", "Status", "Board", "Created"})

	count := 0
	for _, b := range boards {
		tasks := b.Tasks
		if listArchived {
			tasks = b.ArchivedTasks
		}
		for _, t := range tasks {
			if listStatus != "" && t.Status != domain.Status(listStatus) {
				continue
			}
			w.AppendRow(table.Row{shortID(t.ID), t.Text, coloredStatus(t.Status), b.Name, t.CreatedDate})
			count++
		}
	}
	w.Render()
	fmt.Fprintf(cmd.OutOrStdout(), "%d task(s)\n", count)
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func coloredStatus(s domain.Status) string {
	switch s {
	case domain.StatusTodo:
		return text.FgHiYellow.Sprint(string(s))
	case domain.StatusDoing:
		return text.FgHiBlue.Sprint(string(s))
	case domain.StatusDone:
		return text.FgHiGreen.Sprint(string(s))
	}
	return string(s)
}
