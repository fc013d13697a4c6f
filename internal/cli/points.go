package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/inkwell-notes/inkwell/internal/domain"
)

func init() {
	rootCmd.AddCommand(pointsCmd)
	pointsCmd.AddCommand(pointsShowCmd, pointsEarnCmd, pointsSpendCmd, pointsDailyCmd)

	for _, c := range []*cobra.Command{pointsEarnCmd, pointsSpendCmd} {
		c.Flags().StringP("category", "c", string(domain.CategoryEdit), "points category")
		c.Flags().StringP("desc", "d", "", "description")
	}
}

var pointsCmd = &cobra.Command{
	Use:   "points",
	Short: "Inspect and move points",
}

// ─── points show ────────────────────────────────────────────────────────────

var pointsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show balance, streak and recent transactions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, done, err := openApp()
		if err != nil {
			return err
		}
		defer done()

		w := out(cmd)
		streak, _ := app.Ledger.Streak()
		fmt.Fprintf(w, "Balance: %d\n", app.Ledger.Balance())
		fmt.Fprintf(w, "Streak:  %d day(s)\n", streak)
		if last, ok := app.Ledger.LastDailyReward(); ok {
			fmt.Fprintf(w, "Last daily reward: %s\n", last.Format(time.DateTime))
		}

		history := app.Ledger.History()
		if len(history) == 0 {
			fmt.Fprintln(w, "No transactions yet.")
			return nil
		}
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "WHEN\tAMOUNT\tCATEGORY\tDESCRIPTION")
		for _, tx := range history {
			sign := "+"
			if tx.Kind == domain.KindSpent {
				sign = "-"
			}
			fmt.Fprintf(tw, "%s\t%s%d\t%s\t%s\n", tx.Timestamp.Format(time.DateTime), sign, tx.Amount, tx.Category, tx.Description)
		}
		return tw.Flush()
	},
}

// ─── points earn / spend ────────────────────────────────────────────────────

func parseAmount(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	return n, nil
}

var pointsEarnCmd = &cobra.Command{
	Use:   "earn AMOUNT",
	Short: "Credit points",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := parseAmount(args[0])
		if err != nil {
			return err
		}
		category, _ := cmd.Flags().GetString("category")
		desc, _ := cmd.Flags().GetString("desc")

		if domain.Category(category) == domain.CategoryDaily {
			return domain.ErrReservedCategory
		}

		app, done, err := openApp()
		if err != nil {
			return err
		}
		defer done()

		if _, err := app.Ledger.Earn(amount, desc, domain.Category(category)); err != nil {
			return err
		}
		fmt.Fprintf(out(cmd), "Earned %d points. Balance: %d\n", amount, app.Ledger.Balance())
		return nil
	},
}

var pointsSpendCmd = &cobra.Command{
	Use:   "spend AMOUNT",
	Short: "Debit points if the balance allows",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := parseAmount(args[0])
		if err != nil {
			return err
		}
		category, _ := cmd.Flags().GetString("category")
		if _, err := domain.ParseCategory(category); err != nil {
			return err
		}
		desc, _ := cmd.Flags().GetString("desc")

		app, done, err := openApp()
		if err != nil {
			return err
		}
		defer done()

		if !app.Ledger.Spend(amount, desc, domain.Category(category)) {
			return fmt.Errorf("%w: need %d, have %d", domain.ErrInsufficientPoints, amount, app.Ledger.Balance())
		}
		fmt.Fprintf(out(cmd), "Spent %d points. Balance: %d\n", amount, app.Ledger.Balance())
		return nil
	},
}

// ─── points daily ───────────────────────────────────────────────────────────

var pointsDailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Claim today's login reward",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, done, err := openApp()
		if err != nil {
			return err
		}
		defer done()

		res := app.Ledger.CheckDailyReward()
		w := out(cmd)
		if !res.Granted {
			fmt.Fprintln(w, "Already claimed today.")
			return nil
		}
		fmt.Fprintf(w, "Daily reward: +%d (base %d, streak bonus %d, streak %d)\n", res.Total(), res.Base, res.Bonus, res.Streak)
		return nil
	},
}
