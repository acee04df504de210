package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/pmoura/fatura/internal/cli"
	"github.com/pmoura/fatura/internal/common"
)

func reportCmd() *cobra.Command {
	var (
		monthStr string
		allTime  bool
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show spending by category",
		Long: `Summarize expenses by category. Defaults to the current month; use
--month YYYY-MM for a specific month or --all for the full history.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			var start, end time.Time
			var label string

			switch {
			case allTime:
				start, err = store.GetEarliestTransactionDate(ctx)
				if err != nil {
					if errors.Is(err, common.ErrNotFound) {
						fmt.Println(cli.InfoStyle.Render("No transactions recorded yet."))
						return nil
					}
					return fmt.Errorf("failed to find earliest transaction: %w", err)
				}
				end = time.Now()
				label = "all time"
			case monthStr != "":
				start, err = time.ParseInLocation("2006-01", monthStr, time.Local)
				if err != nil {
					return fmt.Errorf("invalid month %q (expected YYYY-MM): %w", monthStr, err)
				}
				end = start.AddDate(0, 1, 0)
				label = start.Format("January 2006")
			default:
				now := time.Now()
				start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
				end = start.AddDate(0, 1, 0)
				label = start.Format("January 2006")
			}

			summary, err := store.GetCategorySummary(ctx, start, end)
			if err != nil {
				return fmt.Errorf("failed to build category summary: %w", err)
			}

			fmt.Println(cli.FormatTitle(fmt.Sprintf("Spending by category (%s)", label)))

			if len(summary) == 0 {
				fmt.Println(cli.InfoStyle.Render("No expenses in this period."))
				return nil
			}

			type row struct {
				name   string
				amount decimal.Decimal
				count  int
			}
			rows := make([]row, 0, len(summary))
			total := decimal.Zero
			for name, s := range summary {
				rows = append(rows, row{name, s.Amount, s.Count})
				total = total.Add(s.Amount)
			}
			sort.Slice(rows, func(i, j int) bool {
				return rows[i].amount.GreaterThan(rows[j].amount)
			})

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "%s\t%s\t%s\n",
				cli.TableHeaderStyle.Render("Category"),
				cli.TableHeaderStyle.Render("Amount"),
				cli.TableHeaderStyle.Render("Transactions"))
			for _, r := range rows {
				fmt.Fprintf(w, "%s\t%s\t%d\n", r.name, r.amount.StringFixed(2), r.count)
			}
			_ = w.Flush()

			fmt.Printf("\nTotal: %s\n", cli.FormatAmount(total))
			return nil
		},
	}

	cmd.Flags().StringVar(&monthStr, "month", "", "month to report on (YYYY-MM)")
	cmd.Flags().BoolVar(&allTime, "all", false, "report on the entire transaction history")

	return cmd
}
