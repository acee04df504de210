package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/pmoura/fatura/internal/billing"
	"github.com/pmoura/fatura/internal/cli"
	"github.com/pmoura/fatura/internal/model"
	"github.com/pmoura/fatura/internal/service"
)

func txCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Manage transactions",
		Long:  `Add, list, and split transactions. Card expenses accumulate in the card's open billing cycle until the statement closes.`,
	}

	cmd.AddCommand(addTxCmd())
	cmd.AddCommand(listTxCmd())
	cmd.AddCommand(splitTxCmd())

	return cmd
}

func addTxCmd() *cobra.Command {
	var (
		amountStr    string
		kind         string
		cardRef      string
		categoryName string
		dateStr      string
		installments int
	)

	cmd := &cobra.Command{
		Use:   "add <establishment>",
		Short: "Add a transaction",
		Long: `Record a transaction. With --installments N the purchase is split into N
monthly installments on the card, each one billed in its own cycle.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			amount, err := decimal.NewFromString(amountStr)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", amountStr, err)
			}

			date := time.Now()
			if dateStr != "" {
				date, err = time.ParseInLocation("2006-01-02", dateStr, time.Local)
				if err != nil {
					return fmt.Errorf("invalid date %q: %w", dateStr, err)
				}
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			txn := model.Transaction{
				ID:            uuid.NewString(),
				OwnerID:       currentOwner(),
				Establishment: args[0],
				Kind:          model.TransactionKind(kind),
				Amount:        amount,
				Date:          date,
			}

			if cardRef != "" {
				card, err := findCard(ctx, store, cardRef)
				if err != nil {
					return err
				}
				txn.CardID = card.ID
			}

			if categoryName != "" {
				category, err := store.GetCategoryByName(ctx, categoryName)
				if err != nil {
					return fmt.Errorf("unknown category %q: %w", categoryName, err)
				}
				txn.CategoryID = category.ID
			}

			if installments > 1 {
				if txn.CardID == "" {
					return fmt.Errorf("installment purchases require --card")
				}
				plan, groupID, err := billing.BuildInstallmentPlan(txn, installments)
				if err != nil {
					return err
				}
				if err := store.SaveTransactions(ctx, plan); err != nil {
					return fmt.Errorf("failed to save installment plan: %w", err)
				}
				fmt.Println(cli.FormatSuccess(fmt.Sprintf(
					"Added %d installments of %s (group %s)",
					installments, cli.FormatAmount(plan[0].Amount), groupID[:8])))
				return nil
			}

			txn.Hash = txn.GenerateHash()
			if err := store.SaveTransactions(ctx, []model.Transaction{txn}); err != nil {
				return fmt.Errorf("failed to save transaction: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf(
				"Added %s %s at %q", kind, cli.FormatAmount(amount), args[0])))
			return nil
		},
	}

	cmd.Flags().StringVar(&amountStr, "amount", "", "transaction amount, e.g. 120.50")
	cmd.Flags().StringVar(&kind, "kind", string(model.KindExpense), "transaction kind (income, expense)")
	cmd.Flags().StringVar(&cardRef, "card", "", "card name or id (omit for cash)")
	cmd.Flags().StringVar(&categoryName, "category", "", "category name")
	cmd.Flags().StringVar(&dateStr, "date", "", "occurrence date (YYYY-MM-DD, default today)")
	cmd.Flags().IntVar(&installments, "installments", 1, "split the purchase into N monthly installments")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func listTxCmd() *cobra.Command {
	var (
		cardRef        string
		includeSettled bool
		limit          int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			filter := service.TransactionFilter{
				IncludeSettled: includeSettled,
				Limit:          limit,
			}
			if cardRef != "" {
				card, err := findCard(ctx, store, cardRef)
				if err != nil {
					return err
				}
				filter.CardID = card.ID
			}

			txns, err := store.GetTransactions(ctx, filter)
			if err != nil {
				return fmt.Errorf("failed to list transactions: %w", err)
			}

			if len(txns) == 0 {
				fmt.Println(cli.InfoStyle.Render("No transactions found."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				cli.TableHeaderStyle.Render("Date"),
				cli.TableHeaderStyle.Render("Establishment"),
				cli.TableHeaderStyle.Render("Kind"),
				cli.TableHeaderStyle.Render("Amount"),
				cli.TableHeaderStyle.Render("Status"))

			for _, txn := range txns {
				status := ""
				switch {
				case txn.IncludedInStatement:
					status = cli.SubtleStyle.Render("settled")
				case txn.SupersededByGroupID != "":
					status = cli.SubtleStyle.Render("superseded")
				case txn.IsInstallment:
					status = fmt.Sprintf("%d/%d", txn.InstallmentNumber, txn.TotalInstallments)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					txn.Date.Format("2006-01-02"),
					txn.Establishment,
					txn.Kind,
					txn.Amount.StringFixed(2),
					status)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&cardRef, "card", "", "restrict to one card")
	cmd.Flags().BoolVar(&includeSettled, "all", false, "include transactions already folded into statements")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of rows")

	return cmd
}

func splitTxCmd() *cobra.Command {
	var installments int

	cmd := &cobra.Command{
		Use:   "split <transaction-id>",
		Short: "Convert a purchase into an installment plan",
		Long: `Replace an existing card purchase with N monthly installments. The original
transaction stays in the ledger but is marked superseded by the new group, so
it never enters a billing cycle again.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			original, err := store.GetTransactionByID(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to load transaction: %w", err)
			}
			if original.CardID == "" {
				return fmt.Errorf("only card purchases can be split into installments")
			}
			if original.IncludedInStatement {
				return fmt.Errorf("transaction is already part of a closed statement")
			}

			plan, groupID, err := billing.BuildInstallmentPlan(*original, installments)
			if err != nil {
				return err
			}

			// The plan and the superseded marker must land together.
			tx, err := store.BeginTx(ctx)
			if err != nil {
				return fmt.Errorf("failed to begin transaction: %w", err)
			}
			committed := false
			defer func() {
				if !committed {
					_ = tx.Rollback()
				}
			}()

			if err := tx.SaveTransactions(ctx, plan); err != nil {
				return fmt.Errorf("failed to save installment plan: %w", err)
			}
			if err := tx.MarkTransactionSuperseded(ctx, original.ID, groupID); err != nil {
				return fmt.Errorf("failed to mark original superseded: %w", err)
			}
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("failed to commit split: %w", err)
			}
			committed = true

			fmt.Println(cli.FormatSuccess(fmt.Sprintf(
				"Split %s into %d installments", original.Establishment, installments)))
			return nil
		},
	}

	cmd.Flags().IntVar(&installments, "installments", 2, "number of monthly installments")

	return cmd
}
