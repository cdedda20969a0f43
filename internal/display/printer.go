// Package display renders batch progress and the end-of-run summary to
// the terminal. Colors are applied only when stdout is a TTY.
package display

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/harrison/pdfpress/internal/stats"
)

// colorScheme defines consistent colors for run output.
// Green: success, Red: failure, Yellow: warnings/skips, Cyan: labels.
type colorScheme struct {
	success *color.Color
	fail    *color.Color
	warn    *color.Color
	label   *color.Color
}

func newColorScheme(enabled bool) *colorScheme {
	s := &colorScheme{
		success: color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		warn:    color.New(color.FgYellow),
		label:   color.New(color.FgCyan),
	}
	if !enabled {
		s.success.DisableColor()
		s.fail.DisableColor()
		s.warn.DisableColor()
		s.label.DisableColor()
	}
	return s
}

// Printer writes user-facing run output.
type Printer struct {
	out    io.Writer
	scheme *colorScheme
}

// NewPrinter creates a printer for stdout with TTY-based color detection.
func NewPrinter() *Printer {
	return NewPrinterTo(os.Stdout, isatty.IsTerminal(os.Stdout.Fd()))
}

// NewPrinterTo creates a printer for an explicit writer with colors
// forced on or off. Used by tests.
func NewPrinterTo(w io.Writer, colorEnabled bool) *Printer {
	return &Printer{out: w, scheme: newColorScheme(colorEnabled)}
}

// Header announces the batch before processing starts.
func (p *Printer) Header(total int, outputDir string) {
	fmt.Fprintf(p.out, "Compressing %d PDF file(s)\n", total)
	if outputDir != "" {
		fmt.Fprintf(p.out, "Output directory: %s\n", outputDir)
	}
	fmt.Fprintln(p.out)
}

// ItemStart announces one item: [N/Total] name (size).
func (p *Printer) ItemStart(index, total int, path string, size int64) {
	fmt.Fprintf(p.out, "%s %s (%s)\n",
		p.scheme.label.Sprintf("[%d/%d]", index, total),
		filepath.Base(path), FormatBytes(size))
}

// Progress shows a single engine progress line, indented under the item.
func (p *Printer) Progress(line string) {
	fmt.Fprintf(p.out, "    %s\n", line)
}

// ItemSuccess reports one compressed item with its savings.
func (p *Printer) ItemSuccess(originalBytes, compressedBytes int64, elapsed string) {
	fmt.Fprintf(p.out, "  %s %s -> %s, saved %s in %s\n",
		p.scheme.success.Sprint("✓"),
		FormatBytes(originalBytes), FormatBytes(compressedBytes),
		FormatSavings(originalBytes, compressedBytes), elapsed)
}

// ItemFailure reports one failed item with the classified reason.
func (p *Printer) ItemFailure(reason string) {
	fmt.Fprintf(p.out, "  %s %s\n", p.scheme.fail.Sprint("✗"), reason)
}

// Fatal reports a batch-fatal condition that halted the run.
func (p *Printer) Fatal(message string) {
	fmt.Fprintf(p.out, "\n%s %s\n", p.scheme.fail.Sprint("Error:"), message)
}

// Warn reports a non-fatal condition.
func (p *Printer) Warn(message string) {
	fmt.Fprintf(p.out, "%s %s\n", p.scheme.warn.Sprint("Warning:"), message)
}

// Info writes a plain informational line.
func (p *Printer) Info(format string, args ...interface{}) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Summary renders the aggregate report at the end of a run.
func (p *Printer) Summary(rep stats.Report) {
	fmt.Fprintln(p.out)
	fmt.Fprintf(p.out, "%s\n", p.scheme.label.Sprint("Summary"))
	fmt.Fprintf(p.out, "  Processed: %d/%d\n", rep.Attempted(), rep.TotalItems)
	fmt.Fprintf(p.out, "  Succeeded: %s\n", p.scheme.success.Sprintf("%d", rep.Succeeded))

	if len(rep.Failed) > 0 {
		fmt.Fprintf(p.out, "  Failed:    %s\n", p.scheme.fail.Sprintf("%d", len(rep.Failed)))
		for _, f := range rep.Failed {
			fmt.Fprintf(p.out, "    %s %s: %s\n",
				p.scheme.fail.Sprint("✗"), filepath.Base(f.Path), f.Reason)
		}
	}
	if len(rep.Skipped) > 0 {
		fmt.Fprintf(p.out, "  Skipped:   %s\n", p.scheme.warn.Sprintf("%d", len(rep.Skipped)))
	}

	if rep.Succeeded > 0 {
		fmt.Fprintf(p.out, "  Size:      %s -> %s, saved %s\n",
			FormatBytes(rep.OriginalBytes), FormatBytes(rep.CompressedBytes),
			FormatSavings(rep.OriginalBytes, rep.CompressedBytes))
	}
	fmt.Fprintf(p.out, "  Duration:  %s\n", FormatDuration(rep.Duration))
	if slowest, ok := rep.Slowest(); ok && rep.Attempted() > 1 {
		fmt.Fprintf(p.out, "  Slowest:   %s (%s)\n",
			filepath.Base(slowest.Path), FormatDuration(slowest.Duration))
	}

	if rep.Fatal != "" {
		p.Fatal(rep.Fatal)
	}
}
