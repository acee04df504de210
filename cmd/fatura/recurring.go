package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/pmoura/fatura/internal/cli"
	"github.com/pmoura/fatura/internal/model"
)

func recurringCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recurring",
		Short: "Manage recurring bills",
		Long:  `Recurring bills are monthly templates. 'apply' materializes this month's instances as transactions.`,
	}

	cmd.AddCommand(addRecurringCmd())
	cmd.AddCommand(listRecurringCmd())
	cmd.AddCommand(removeRecurringCmd())
	cmd.AddCommand(applyRecurringCmd())

	return cmd
}

func addRecurringCmd() *cobra.Command {
	var (
		amountStr    string
		dueDay       int
		cardRef      string
		categoryName string
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a recurring bill",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			amount, err := decimal.NewFromString(amountStr)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", amountStr, err)
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			bill := &model.RecurringBill{
				ID:      uuid.NewString(),
				OwnerID: currentOwner(),
				Name:    args[0],
				Amount:  amount,
				DueDay:  dueDay,
			}

			if cardRef != "" {
				card, err := findCard(ctx, store, cardRef)
				if err != nil {
					return err
				}
				bill.CardID = card.ID
			}
			if categoryName != "" {
				category, err := store.GetCategoryByName(ctx, categoryName)
				if err != nil {
					return fmt.Errorf("unknown category %q: %w", categoryName, err)
				}
				bill.CategoryID = category.ID
			}

			if err := store.CreateRecurringBill(ctx, bill); err != nil {
				return fmt.Errorf("failed to create recurring bill: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf(
				"Added recurring bill %q due on day %d", bill.Name, bill.DueDay)))
			return nil
		},
	}

	cmd.Flags().StringVar(&amountStr, "amount", "", "monthly amount, e.g. 49.90")
	cmd.Flags().IntVar(&dueDay, "due-day", 0, "day of month the bill is due (1-31)")
	cmd.Flags().StringVar(&cardRef, "card", "", "card name or id (omit for cash)")
	cmd.Flags().StringVar(&categoryName, "category", "", "category name")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("due-day")

	return cmd
}

func listRecurringCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recurring bills",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			bills, err := store.ListRecurringBills(ctx)
			if err != nil {
				return fmt.Errorf("failed to list recurring bills: %w", err)
			}

			if len(bills) == 0 {
				fmt.Println(cli.InfoStyle.Render("No recurring bills."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				cli.TableHeaderStyle.Render("ID"),
				cli.TableHeaderStyle.Render("Name"),
				cli.TableHeaderStyle.Render("Amount"),
				cli.TableHeaderStyle.Render("Due day"))

			for _, bill := range bills {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n",
					bill.ID[:8], bill.Name, bill.Amount.StringFixed(2), bill.DueDay)
			}
			return nil
		},
	}
}

func removeRecurringCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a recurring bill",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.DeleteRecurringBill(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to remove recurring bill: %w", err)
			}

			fmt.Println(cli.FormatSuccess("Removed recurring bill"))
			return nil
		},
	}
}

func applyRecurringCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply",
		Short: "Materialize this month's recurring bills as transactions",
		Long: `Create this month's transaction for every active recurring bill. Applying
twice in the same month is harmless; the content hash deduplicates.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			bills, err := store.ListRecurringBills(ctx)
			if err != nil {
				return fmt.Errorf("failed to list recurring bills: %w", err)
			}
			if len(bills) == 0 {
				fmt.Println(cli.InfoStyle.Render("No recurring bills to apply."))
				return nil
			}

			now := time.Now()
			transactions := make([]model.Transaction, 0, len(bills))
			for _, bill := range bills {
				txn := bill.Materialize(now)
				txn.ID = uuid.NewString()
				txn.Hash = txn.GenerateHash()
				transactions = append(transactions, txn)
			}

			if err := store.SaveTransactions(ctx, transactions); err != nil {
				return fmt.Errorf("failed to save recurring transactions: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf(
				"Applied %d recurring bills for %s", len(bills), now.Format("January 2006"))))
			return nil
		},
	}
}
