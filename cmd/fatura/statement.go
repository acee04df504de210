package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pmoura/fatura/internal/billing"
	"github.com/pmoura/fatura/internal/cli"
	"github.com/pmoura/fatura/internal/common"
	"github.com/pmoura/fatura/internal/model"
	"github.com/pmoura/fatura/internal/service"
)

func statementCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "statement",
		Short: "Preview and close credit card statements",
		Long: `Work with billing cycles. 'preview' shows what the open cycle would
consolidate; 'close' folds those charges into a statement atomically.`,
	}

	cmd.AddCommand(previewStatementCmd())
	cmd.AddCommand(closeStatementCmd())
	cmd.AddCommand(listStatementsCmd())

	return cmd
}

func previewStatementCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preview <card>",
		Short: "Show the pending charges of a card's open cycle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			card, err := findCard(ctx, store, args[0])
			if err != nil {
				return err
			}

			preview, err := billing.NewCloser(store).Preview(ctx, card.ID, time.Now())
			if err != nil {
				return fmt.Errorf("failed to preview cycle: %w", err)
			}

			fmt.Println(cli.FormatTitle(fmt.Sprintf("Open cycle for %s", card.Name)))
			fmt.Printf("Cycle ends %s\n\n", preview.CycleEnd.Format("2006-01-02"))

			if preview.Count == 0 {
				fmt.Println(cli.InfoStyle.Render("No pending charges in this cycle."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			for _, txn := range preview.Transactions {
				note := ""
				if txn.IsInstallment {
					note = fmt.Sprintf("(%d/%d)", txn.InstallmentNumber, txn.TotalInstallments)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					txn.Date.Format("2006-01-02"),
					txn.Establishment,
					txn.Amount.StringFixed(2),
					note)
			}
			_ = w.Flush()

			fmt.Printf("\nTotal: %s across %d transactions\n",
				cli.FormatAmount(preview.Total), preview.Count)
			return nil
		},
	}
}

func closeStatementCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "close <card>",
		Short: "Close the card's open billing cycle",
		Long: `Fold every pending charge of the open cycle into a new statement and
insert one consolidated expense in their place. The close is atomic: either
the statement, the folded charges, and the consolidated entry all commit, or
nothing changes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			card, err := findCard(ctx, store, args[0])
			if err != nil {
				return err
			}

			closer := billing.NewCloser(store)
			opts := billing.CloseOptions{IdempotencyKey: uuid.NewString()}

			// The idempotency key makes the retry safe: if the first attempt
			// committed but its result was lost, the retry returns it.
			var statement *model.Statement
			err = common.WithRetry(ctx, func() error {
				var closeErr error
				statement, closeErr = closer.CloseStatement(ctx, card.ID, time.Now(), opts)
				return closeErr
			}, service.RetryOptions{MaxAttempts: 3})

			switch {
			case err == nil:
			case errors.Is(err, common.ErrNoPendingTransactions):
				fmt.Println(cli.FormatWarning(fmt.Sprintf("Nothing to close for %s.", card.Name)))
				return nil
			case errors.Is(err, common.ErrConcurrentClose):
				return common.NewUserError("another close is already running for this card", err)
			default:
				return fmt.Errorf("failed to close statement: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf(
				"Closed statement for %s: %s across %d transactions",
				card.Name,
				cli.FormatAmount(statement.TotalAmount),
				statement.TransactionCount)))
			return nil
		},
	}
}

func listStatementsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <card>",
		Short: "List a card's closed statements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			card, err := findCard(ctx, store, args[0])
			if err != nil {
				return err
			}

			statements, err := store.ListStatements(ctx, card.ID)
			if err != nil {
				return fmt.Errorf("failed to list statements: %w", err)
			}

			if len(statements) == 0 {
				fmt.Println(cli.InfoStyle.Render("No closed statements yet."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				cli.TableHeaderStyle.Render("Closed"),
				cli.TableHeaderStyle.Render("Cycle end"),
				cli.TableHeaderStyle.Render("Total"),
				cli.TableHeaderStyle.Render("Transactions"))

			for _, statement := range statements {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n",
					statement.ClosedAt.Format("2006-01-02"),
					statement.CycleEnd.Format("2006-01-02"),
					statement.TotalAmount.StringFixed(2),
					statement.TransactionCount)
			}
			return nil
		},
	}
}
