package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(notificationsCmd)
	notificationsCmd.AddCommand(notificationsListCmd, notificationsReadCmd, notificationsClearCmd)

	notificationsListCmd.Flags().Bool("unread", false, "only unread notifications")
	notificationsReadCmd.Flags().Bool("all", false, "mark every notification read")
}

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"notif"},
	Short:   "Manage the notification history",
}

var notificationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notifications, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		unreadOnly, _ := cmd.Flags().GetBool("unread")

		app, done, err := openApp()
		if err != nil {
			return err
		}
		defer done()

		w := out(cmd)
		shown := 0
		for _, n := range app.Notify.List() {
			if unreadOnly && n.Read {
				continue
			}
			mark := " "
			if !n.Read {
				mark = "*"
			}
			fmt.Fprintf(w, "%s %s [%s] %s: %s (%s)\n", mark, n.Timestamp.Format(time.DateTime), n.Type, n.Title, n.Message, n.ID)
			shown++
		}
		if shown == 0 {
			fmt.Fprintln(w, "No notifications.")
		}
		return nil
	},
}

var notificationsReadCmd = &cobra.Command{
	Use:   "read [ID]",
	Short: "Mark a notification (or all with --all) as read",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if !all && len(args) == 0 {
			return errors.New("give a notification ID or --all")
		}

		app, done, err := openApp()
		if err != nil {
			return err
		}
		defer done()

		if all {
			app.Notify.MarkAllAsRead()
			fmt.Fprintln(out(cmd), "All notifications marked read.")
			return nil
		}
		if err := app.Notify.MarkAsRead(args[0]); err != nil {
			return err
		}
		fmt.Fprintln(out(cmd), "Marked read.")
		return nil
	},
}

var notificationsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every notification",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, done, err := openApp()
		if err != nil {
			return err
		}
		defer done()

		app.Notify.ClearAll()
		fmt.Fprintln(out(cmd), "Notifications cleared.")
		return nil
	},
}
