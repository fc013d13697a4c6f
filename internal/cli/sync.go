package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/inkwell-notes/inkwell/internal/domain"
)

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.AddCommand(syncStatusCmd, syncNowCmd, syncModeCmd)
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile notes with the remote store",
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, done, err := openApp()
		if err != nil {
			return err
		}
		defer done()

		st := app.Sync.State()
		w := out(cmd)
		fmt.Fprintf(w, "Mode:    %s\n", st.SyncMode)
		fmt.Fprintf(w, "Pending: %d\n", st.PendingChangeCount)
		if st.LastSyncedAt != nil {
			fmt.Fprintf(w, "Last:    %s\n", st.LastSyncedAt.Format(time.DateTime))
		} else {
			fmt.Fprintln(w, "Last:    never")
		}
		return nil
	},
}

var syncNowCmd = &cobra.Command{
	Use:   "now",
	Short: "Push local changes and pull remote ones",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, done, err := openApp()
		if err != nil {
			return err
		}
		defer done()

		if err := app.Synchronize(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(out(cmd), "Synced.")
		return nil
	},
}

var syncModeCmd = &cobra.Command{
	Use:       "mode [manual|auto]",
	Short:     "Show or set the sync mode",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{string(domain.SyncManual), string(domain.SyncAuto)},
	RunE: func(cmd *cobra.Command, args []string) error {
		app, done, err := openApp()
		if err != nil {
			return err
		}
		defer done()

		if len(args) == 1 {
			if err := app.Sync.SetMode(domain.SyncMode(args[0])); err != nil {
				return err
			}
		}
		fmt.Fprintf(out(cmd), "Sync mode: %s\n", app.Sync.State().SyncMode)
		return nil
	},
}
