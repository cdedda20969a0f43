package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for pdfpress
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pdfpress",
		Short: "Batch PDF compression via Ghostscript",
		Long: `pdfpress compresses PDF files by driving Ghostscript as an external
subprocess with grayscale conversion, image downsampling and structural
optimization.

Given a directory it processes every PDF sequentially into a sibling
output directory, with per-file timeouts scaled to input size, live
progress, and an aggregate summary at the end.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	// Add subcommands
	cmd.AddCommand(NewCompressCommand())
	cmd.AddCommand(NewCheckCommand())
	cmd.AddCommand(NewHistoryCommand())

	return cmd
}
