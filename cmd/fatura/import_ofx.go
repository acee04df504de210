package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/pmoura/fatura/internal/cli"
	"github.com/pmoura/fatura/internal/model"
	"github.com/pmoura/fatura/internal/ofx"
)

func init() {
	importOFXCmd := &cobra.Command{
		Use:   "import-ofx [files...]",
		Short: "Import transactions from OFX/QFX files",
		Long: `Import transactions from OFX or QFX files exported from your bank.

With --card every imported charge is attributed to that card and will show up
in its open billing cycle. Re-importing the same file is safe: transactions
are deduplicated by content hash.

Examples:
  # Import a single download
  fatura import-ofx ~/Downloads/nubank_jan_2026.ofx --card nubank

  # Import everything at once
  fatura import-ofx ~/Downloads/*.qfx --card inter`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImportOFX,
	}

	importOFXCmd.Flags().String("card", "", "card to attribute imported charges to")
	importOFXCmd.Flags().BoolP("dry-run", "d", false, "preview import without saving")

	rootCmd.AddCommand(importOFXCmd)
}

func runImportOFX(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cardRef, _ := cmd.Flags().GetString("card")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	var allFiles []string
	for _, pattern := range args {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			if _, err := os.Stat(pattern); err == nil {
				allFiles = append(allFiles, pattern)
			} else {
				slog.Warn("No files found matching pattern", "pattern", pattern)
			}
		} else {
			allFiles = append(allFiles, matches...)
		}
	}
	if len(allFiles) == 0 {
		return fmt.Errorf("no files found to import")
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	cardID := ""
	if cardRef != "" {
		card, err := findCard(ctx, store, cardRef)
		if err != nil {
			return err
		}
		cardID = card.ID
	}
	owner := currentOwner()

	bar := progressbar.NewOptions(len(allFiles),
		progressbar.OptionSetDescription("Importing OFX files"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	parser := ofx.NewParser()
	seen := make(map[string]bool)
	var allTransactions []model.Transaction

	for _, filePath := range allFiles {
		f, err := os.Open(filePath)
		if err != nil {
			slog.Error("Failed to open file", "file", filePath, "error", err)
			_ = bar.Add(1)
			continue
		}

		transactions, err := parser.ParseFile(ctx, f)
		_ = f.Close()
		if err != nil {
			slog.Error("Failed to parse OFX file", "file", filePath, "error", err)
			_ = bar.Add(1)
			continue
		}

		added := 0
		for _, txn := range transactions {
			txn.CardID = cardID
			txn.OwnerID = owner
			// Attribution changes the hash, so recompute before deduping
			txn.Hash = txn.GenerateHash()
			if seen[txn.Hash] {
				continue
			}
			seen[txn.Hash] = true
			allTransactions = append(allTransactions, txn)
			added++
		}

		slog.Info("Processed file",
			"file", filepath.Base(filePath),
			"transactions_found", len(transactions),
			"added", added,
			"duplicates", len(transactions)-added)
		_ = bar.Add(1)
	}

	if len(allTransactions) == 0 {
		fmt.Println(cli.FormatWarning("No transactions found in any file."))
		return nil
	}

	if dryRun {
		fmt.Println(cli.InfoStyle.Render(fmt.Sprintf(
			"Dry run: would import %d transactions.", len(allTransactions))))
		return nil
	}

	if err := store.SaveTransactions(ctx, allTransactions); err != nil {
		return fmt.Errorf("failed to save imported transactions: %w", err)
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf(
		"Imported %d transactions from %d files", len(allTransactions), len(allFiles))))
	return nil
}
