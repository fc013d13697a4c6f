package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(notesCmd)
	notesCmd.AddCommand(notesAddCmd, notesListCmd)
	notesAddCmd.Flags().StringP("content", "m", "", "note body")
}

var notesCmd = &cobra.Command{
	Use:   "notes",
	Short: "Work with local notes",
}

var notesAddCmd = &cobra.Command{
	Use:   "add TITLE...",
	Short: "Create a note",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, _ := cmd.Flags().GetString("content")

		app, done, err := openApp()
		if err != nil {
			return err
		}
		defer done()

		n, err := app.Notes.Create(strings.Join(args, " "), content)
		if err != nil {
			return err
		}
		fmt.Fprintf(out(cmd), "Created %s\n", n.ID)
		return nil
	},
}

var notesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, done, err := openApp()
		if err != nil {
			return err
		}
		defer done()

		list, err := app.Notes.List()
		if err != nil {
			return err
		}
		w := out(cmd)
		if len(list) == 0 {
			fmt.Fprintln(w, "No notes.")
			return nil
		}
		for _, n := range list {
			fmt.Fprintf(w, "%s  %s  %s\n", shortID(n.ID), n.UpdatedAt.Format(time.DateTime), n.Title)
		}
		return nil
	},
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
