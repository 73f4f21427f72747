package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tasks/internal/storage"
	"tasks/internal/tasks"
)

func newListCommand(a *app) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print tasks ordered by due date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			list, err := store.List(cmd.Context())
			if err != nil {
				a.log.Error("request failed", "op", "list", "err", err)
				return err
			}
			printEntries(cmd.OutOrStdout(), tasks.View(list, category, time.Now()))
			return nil
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", tasks.AllCategories, "only show this category")
	return cmd
}

func newAddCommand(a *app) *cobra.Command {
	var category, due string
	cmd := &cobra.Command{
		Use:   "add TEXT...",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if strings.TrimSpace(text) == "" {
				return nil
			}
			dueDate, err := storage.ParseDate(due)
			if err != nil {
				return err
			}
			if category == "" {
				category = tasks.DefaultCategory
			}

			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			created, err := store.Insert(cmd.Context(), storage.NewTask{Text: text, Category: &category, DueDate: dueDate})
			if err != nil {
				a.log.Error("request failed", "op", "insert", "err", err)
				return err
			}
			a.log.Info("task added", "id", created.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "Added task %d\n", created.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", tasks.DefaultCategory, "task category")
	cmd.Flags().StringVar(&due, "due", "", "due date (YYYY-MM-DD)")
	return cmd
}

func newDoneCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "done ID",
		Short: "Toggle a task's completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			list, err := store.List(cmd.Context())
			if err != nil {
				a.log.Error("request failed", "op", "list", "err", err)
				return err
			}
			current, ok := tasks.Find(list, id)
			if !ok {
				return &storage.UpdateError{ID: id, Err: storage.ErrNotFound}
			}
			done := !current.Done
			if err := store.Update(cmd.Context(), id, storage.Patch{Done: &done}); err != nil {
				a.log.Error("request failed", "op", "update", "id", id, "err", err)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task %d %s\n", id, humanDone(done))
			return nil
		},
	}
}

func newRemoveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm ID",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Delete(cmd.Context(), id); err != nil {
				a.log.Error("request failed", "op", "delete", "id", id, "err", err)
				return err
			}
			a.log.Info("task deleted", "id", id)
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %d\n", id)
			return nil
		},
	}
}

func printEntries(w io.Writer, entries []tasks.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No tasks yet")
		return
	}
	for _, e := range entries {
		checkbox := "[ ]"
		if e.Done {
			checkbox = "[x]"
		}
		due := e.DueString()
		if due == "" {
			due = "No due date"
		}
		mark := ""
		if e.Overdue {
			mark = " !"
		}
		fmt.Fprintf(w, "%4d %s %s (%s | %s)%s\n", e.ID, checkbox, e.Text, e.CategoryOr("No category"), due, mark)
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", s)
	}
	return id, nil
}

func humanDone(done bool) string {
	if done {
		return "done"
	}
	return "pending"
}
