package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/harrison/pdfpress/internal/display"
	"github.com/harrison/pdfpress/internal/history"
)

// NewHistoryCommand creates the history command
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent compression runs",
		Long: `List recent compression runs recorded in the history database,
newest first.

Use --items to also show the per-file results of each listed run.`,
		Args: cobra.NoArgs,
		RunE: historyCommand,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .pdfpress/config.yaml)")
	cmd.Flags().Int("limit", 10, "Maximum number of runs to list")
	cmd.Flags().Bool("items", false, "Show per-file results for each run")

	return cmd
}

// historyCommand implements the history command logic
func historyCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigFromFlags(cmd)
	if err != nil {
		return err
	}
	if !cfg.History.Enabled {
		return fmt.Errorf("history is disabled in configuration")
	}

	limit, _ := cmd.Flags().GetInt("limit")
	showItems, _ := cmd.Flags().GetBool("items")

	store, err := history.NewStore(cfg.History.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	runs, err := store.RecentRuns(ctx, limit)
	if err != nil {
		return err
	}

	printer := display.NewPrinter()
	if len(runs) == 0 {
		printer.Info("No runs recorded yet")
		return nil
	}

	for _, run := range runs {
		printer.Info("#%d  %s  %s  quality=%s", run.ID,
			run.StartedAt.Format("2006-01-02 15:04:05"), run.InputPath, run.Quality)
		printer.Info("    %d/%d succeeded, %d failed, %d skipped, %s -> %s in %s",
			run.Succeeded, run.TotalItems, run.Failed, run.Skipped,
			display.FormatBytes(run.OriginalBytes), display.FormatBytes(run.CompressedBytes),
			display.FormatDuration(run.Duration))
		if run.Fatal != "" {
			printer.Warn(run.Fatal)
		}

		if showItems {
			items, err := store.RunItems(ctx, run.ID)
			if err != nil {
				return err
			}
			for _, item := range items {
				status := "ok"
				if !item.Success {
					status = item.Reason
				}
				printer.Info("      %-30s %-8s %s", filepath.Base(item.InputPath),
					display.FormatDuration(item.Duration), status)
			}
		}
	}

	return nil
}
