package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/pdfpress/internal/display"
	"github.com/harrison/pdfpress/internal/engine"
)

// NewCheckCommand creates the check command
func NewCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify Ghostscript availability and configuration",
		Long: `Check that a usable Ghostscript binary is on PATH and that the
effective configuration is valid, without processing anything.

Exits non-zero when the environment cannot run a compression batch.`,
		Args: cobra.NoArgs,
		RunE: checkCommand,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .pdfpress/config.yaml)")

	return cmd
}

// checkCommand implements the check command logic
func checkCommand(cmd *cobra.Command, args []string) error {
	printer := display.NewPrinter()

	cfg, err := loadConfigFromFlags(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	settings := cfg.EngineSettings()
	printer.Info("Quality:  %s (%d dpi, JPEG %d, %s)",
		cfg.Quality, settings.DPI, settings.JPEGQuality, settings.PDFSettings)
	printer.Info("Paper:    %s (%dx%d pts)", cfg.Paper, settings.PaperWidthPts, settings.PaperHeightPts)

	eng, err := engine.Locate()
	if err != nil {
		return fmt.Errorf("ghostscript check failed: %w", err)
	}

	printer.Info("Engine:   Ghostscript %s", eng.Version)
	printer.Info("Binary:   %s", eng.Path)
	return nil
}
