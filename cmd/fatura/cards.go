package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pmoura/fatura/internal/cli"
	"github.com/pmoura/fatura/internal/model"
)

func cardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "card",
		Short: "Manage credit cards",
		Long:  `Add, list, and remove credit cards. Each card's due day drives its billing cycle.`,
	}

	cmd.AddCommand(addCardCmd())
	cmd.AddCommand(listCardsCmd())
	cmd.AddCommand(removeCardCmd())

	return cmd
}

func addCardCmd() *cobra.Command {
	var (
		dueDay   int
		lastFour string
		brand    string
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a new credit card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			card := &model.Card{
				ID:       uuid.NewString(),
				OwnerID:  currentOwner(),
				Name:     args[0],
				LastFour: lastFour,
				Brand:    model.CardBrand(strings.ToLower(brand)),
				DueDay:   dueDay,
			}
			if err := store.CreateCard(ctx, card); err != nil {
				return fmt.Errorf("failed to create card: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Added card %q (due day %d)", card.Name, card.DueDay)))
			return nil
		},
	}

	cmd.Flags().IntVar(&dueDay, "due-day", 0, "day of month the statement is due (1-31)")
	cmd.Flags().StringVar(&lastFour, "last-four", "", "last four digits of the card number")
	cmd.Flags().StringVar(&brand, "brand", "other", "card brand (visa, mastercard, elo, amex, other)")
	_ = cmd.MarkFlagRequired("due-day")

	return cmd
}

func listCardsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all cards",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			cards, err := store.ListCards(ctx)
			if err != nil {
				return fmt.Errorf("failed to list cards: %w", err)
			}

			if len(cards) == 0 {
				fmt.Println(cli.InfoStyle.Render("No cards found. Use 'fatura card add' to create one."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				cli.TableHeaderStyle.Render("Name"),
				cli.TableHeaderStyle.Render("Brand"),
				cli.TableHeaderStyle.Render("Last four"),
				cli.TableHeaderStyle.Render("Due day"),
				cli.TableHeaderStyle.Render("Last closed"))

			for _, card := range cards {
				lastClosed := cli.SubtleStyle.Render("never")
				if card.LastClosedAt != nil {
					lastClosed = card.LastClosedAt.Format("2006-01-02")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
					card.Name, card.Brand, card.LastFour, card.DueDay, lastClosed)
			}
			return nil
		},
	}
}

func removeCardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <card>",
		Short: "Remove a card",
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

			if err := store.DeleteCard(ctx, card.ID); err != nil {
				return fmt.Errorf("failed to remove card: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Removed card %q", card.Name)))
			return nil
		},
	}
}
