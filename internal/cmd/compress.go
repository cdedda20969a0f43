package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/pdfpress/internal/batch"
	"github.com/harrison/pdfpress/internal/config"
	"github.com/harrison/pdfpress/internal/display"
	"github.com/harrison/pdfpress/internal/engine"
	"github.com/harrison/pdfpress/internal/filelock"
	"github.com/harrison/pdfpress/internal/history"
	"github.com/harrison/pdfpress/internal/logger"
	"github.com/harrison/pdfpress/internal/stats"
)

// printerEvents adapts the display printer to the orchestrator's event
// callbacks.
type printerEvents struct {
	printer *display.Printer
}

func (e printerEvents) BatchStarted(total int, outputDir string) {
	e.printer.Header(total, outputDir)
}

func (e printerEvents) ItemStarted(index, total int, path string, size int64) {
	e.printer.ItemStart(index, total, path, size)
}

func (e printerEvents) ItemProgress(line string) {
	e.printer.Progress(line)
}

func (e printerEvents) ItemFinished(outcome engine.Outcome) {
	if outcome.Kind == engine.OutcomeSuccess {
		e.printer.ItemSuccess(outcome.OriginalSize, outcome.CompressedSize,
			display.FormatDuration(outcome.Elapsed))
		return
	}
	e.printer.ItemFailure(outcome.Reason())
}

// NewCompressCommand creates the compress command
func NewCompressCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compress <pdf-file-or-directory>",
		Short: "Compress a PDF file or every PDF in a directory",
		Long: `Compress PDF files by running them through Ghostscript with grayscale
conversion and image downsampling.

A directory input processes every *.pdf inside it (smallest first) into
a sibling "<dir>_optimized_bw" directory. A single file is written next
to the input with the same suffix before the extension.

Configuration is loaded from .pdfpress/config.yaml if present.
CLI flags override configuration file settings.

Examples:
  pdfpress compress scans/
  pdfpress compress report.pdf
  pdfpress compress --quality compact scans/       # Smallest output
  pdfpress compress --dpi 300 --paper letter scans/
  pdfpress compress --timeout 10m scans/           # Flat per-file timeout
  pdfpress compress --timeout 0 scans/             # Disable timeouts
  pdfpress compress --report run.json scans/       # Export JSON report`,
		Args: cobra.ExactArgs(1),
		RunE: compressCommand,
	}

	// Add flags
	cmd.Flags().String("config", "", "Path to config file (default: .pdfpress/config.yaml)")
	cmd.Flags().String("quality", "", "Compression preset: "+joinNames(config.QualityNames()))
	cmd.Flags().Int("dpi", 0, "Image resolution override (72-600, 0 = preset default)")
	cmd.Flags().String("paper", "", "Output page size: "+joinNames(config.PaperNames()))
	cmd.Flags().String("timeout", "", "Flat per-file timeout (e.g. 5m); 0 disables timeouts")
	cmd.Flags().String("log-dir", "", "Directory for run log files")
	cmd.Flags().String("report", "", "Write a JSON run report to this path")
	cmd.Flags().Bool("verbose", false, "Log at debug level")
	cmd.Flags().Bool("no-history", false, "Do not record this run in the history database")

	return cmd
}

// compressCommand implements the compress command logic
func compressCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigFromFlags(cmd)
	if err != nil {
		return err
	}

	// Get flag values
	qualityFlag, _ := cmd.Flags().GetString("quality")
	dpiFlag, _ := cmd.Flags().GetInt("dpi")
	paperFlag, _ := cmd.Flags().GetString("paper")
	timeoutStr, _ := cmd.Flags().GetString("timeout")
	logDirFlag, _ := cmd.Flags().GetString("log-dir")
	reportPath, _ := cmd.Flags().GetString("report")
	verbose, _ := cmd.Flags().GetBool("verbose")
	noHistory, _ := cmd.Flags().GetBool("no-history")

	// Build flag pointers for merge (only changed values)
	var qualityPtr *string
	if cmd.Flags().Changed("quality") {
		qualityPtr = &qualityFlag
	}
	var dpiPtr *int
	if cmd.Flags().Changed("dpi") {
		dpiPtr = &dpiFlag
	}
	var paperPtr *string
	if cmd.Flags().Changed("paper") {
		paperPtr = &paperFlag
	}
	var timeoutPtr *time.Duration
	if cmd.Flags().Changed("timeout") {
		d, err := time.ParseDuration(timeoutStr)
		if err != nil {
			return fmt.Errorf("invalid timeout format %q: %w", timeoutStr, err)
		}
		timeoutPtr = &d
	}
	var logDirPtr *string
	if cmd.Flags().Changed("log-dir") {
		logDirPtr = &logDirFlag
	}

	cfg.MergeWithFlags(qualityPtr, dpiPtr, paperPtr, timeoutPtr, logDirPtr)
	if verbose {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	fileLog, err := logger.NewFileLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create run log: %w", err)
	}
	defer fileLog.Close()

	printer := display.NewPrinter()

	eng, err := engine.Locate()
	if err != nil {
		// A nil engine flows through the supervisor so the run reports
		// the condition as a batch-fatal outcome instead of crashing.
		fileLog.LogError(fmt.Sprintf("Engine lookup failed: %v", err))
	} else {
		fileLog.LogInfo(fmt.Sprintf("Using Ghostscript %s at %s", eng.Version, eng.Path))
	}

	supervisor := engine.NewSupervisor(eng, cfg.EngineSettings(), fileLog)
	orchestrator := batch.NewOrchestrator(supervisor, cfg.TimeoutPolicy(), cfg.TimeoutOverride,
		cfg.OutputSuffix, fileLog, printerEvents{printer})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startedAt := time.Now()
	rep, err := orchestrator.Process(ctx, args[0])
	if err != nil {
		return err
	}

	printer.Summary(rep)
	printer.Info("Run log: %s", fileLog.RunFile())

	if reportPath != "" {
		if err := writeReportJSON(reportPath, args[0], cfg.Quality, startedAt, rep); err != nil {
			printer.Warn(fmt.Sprintf("failed to write report: %v", err))
			fileLog.LogWarn(fmt.Sprintf("Failed to write report %s: %v", reportPath, err))
		}
	}

	if cfg.History.Enabled && !noHistory {
		recordHistory(cfg.History.DBPath, startedAt, args[0], cfg.Quality, rep, fileLog, printer)
	}

	if rep.Fatal != "" {
		return fmt.Errorf("%s", rep.Fatal)
	}
	if len(rep.Failed) > 0 {
		return fmt.Errorf("%d of %d file(s) failed", len(rep.Failed), rep.TotalItems)
	}
	return nil
}

// loadConfigFromFlags loads config from --config or the default
// location.
func loadConfigFromFlags(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath != "" {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
		return cfg, nil
	}
	cfg, err := config.LoadConfigFromDir(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// recordHistory persists the run best-effort: history problems never
// fail a run that already finished.
func recordHistory(dbPath string, startedAt time.Time, inputPath, quality string, rep stats.Report, fileLog *logger.FileLogger, printer *display.Printer) {
	store, err := history.NewStore(dbPath)
	if err != nil {
		printer.Warn(fmt.Sprintf("history disabled for this run: %v", err))
		fileLog.LogWarn(fmt.Sprintf("Cannot open history store: %v", err))
		return
	}
	defer store.Close()

	recordCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := store.RecordRun(recordCtx, startedAt, inputPath, quality, rep); err != nil {
		printer.Warn(fmt.Sprintf("history disabled for this run: %v", err))
		fileLog.LogWarn(fmt.Sprintf("Cannot record run: %v", err))
	}
}

// reportJSON is the exported shape of one run report.
type reportJSON struct {
	StartedAt       time.Time        `json:"started_at"`
	InputPath       string           `json:"input_path"`
	OutputDir       string           `json:"output_dir,omitempty"`
	Quality         string           `json:"quality"`
	TotalItems      int              `json:"total_items"`
	Succeeded       int              `json:"succeeded"`
	Failed          []failureJSON    `json:"failed,omitempty"`
	Skipped         []string         `json:"skipped,omitempty"`
	OriginalBytes   int64            `json:"original_bytes"`
	CompressedBytes int64            `json:"compressed_bytes"`
	DurationMs      int64            `json:"duration_ms"`
	Fatal           string           `json:"fatal,omitempty"`
	Items           []itemTimingJSON `json:"items,omitempty"`
}

type failureJSON struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

type itemTimingJSON struct {
	Path       string `json:"path"`
	DurationMs int64  `json:"duration_ms"`
	Success    bool   `json:"success"`
}

// writeReportJSON exports the run report atomically so a crash mid-write
// never leaves a truncated file.
func writeReportJSON(path, inputPath, quality string, startedAt time.Time, rep stats.Report) error {
	out := reportJSON{
		StartedAt:       startedAt,
		InputPath:       inputPath,
		OutputDir:       rep.OutputDir,
		Quality:         quality,
		TotalItems:      rep.TotalItems,
		Succeeded:       rep.Succeeded,
		Skipped:         rep.Skipped,
		OriginalBytes:   rep.OriginalBytes,
		CompressedBytes: rep.CompressedBytes,
		DurationMs:      rep.Duration.Milliseconds(),
		Fatal:           rep.Fatal,
	}
	for _, f := range rep.Failed {
		out.Failed = append(out.Failed, failureJSON{Path: f.Path, Reason: f.Reason})
	}
	for _, item := range rep.Items {
		out.Items = append(out.Items, itemTimingJSON{
			Path:       item.Path,
			DurationMs: item.Duration.Milliseconds(),
			Success:    item.Success,
		})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return filelock.AtomicWrite(path, data)
}

func joinNames(names []string) string {
	return strings.Join(names, ", ")
}
