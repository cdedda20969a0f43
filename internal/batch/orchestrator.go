// Package batch drives a compression run end to end: enumerate inputs,
// lock the output directory, process files sequentially through the
// engine, and classify every item into exactly one outcome.
package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/harrison/pdfpress/internal/engine"
	"github.com/harrison/pdfpress/internal/filelock"
	"github.com/harrison/pdfpress/internal/fileutil"
	"github.com/harrison/pdfpress/internal/stats"
	"github.com/harrison/pdfpress/internal/timeout"
)

// Supervisor runs one engine invocation. Satisfied by engine.Supervisor;
// tests substitute a stub.
type Supervisor interface {
	Run(ctx context.Context, item engine.WorkItem, budget timeout.Budget, sink engine.ProgressSink) engine.Outcome
}

// Logger is the narrow logging surface the orchestrator needs.
type Logger interface {
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
}

// Events receives user-facing progress notifications during a run. All
// callbacks fire from the goroutine driving the batch.
type Events interface {
	BatchStarted(total int, outputDir string)
	ItemStarted(index, total int, path string, size int64)
	ItemProgress(line string)
	ItemFinished(outcome engine.Outcome)
}

// NopEvents discards all notifications.
type NopEvents struct{}

func (NopEvents) BatchStarted(int, string)            {}
func (NopEvents) ItemStarted(int, int, string, int64) {}
func (NopEvents) ItemProgress(string)                 {}
func (NopEvents) ItemFinished(engine.Outcome)         {}

// Orchestrator coordinates one batch run.
type Orchestrator struct {
	supervisor Supervisor
	policy     timeout.Policy
	// override replaces the tiered policy for every item when non-nil
	override *time.Duration
	// suffix is appended to form output directory and file names
	suffix string
	log    Logger
	events Events
}

// NewOrchestrator creates an orchestrator. A nil events sink is
// replaced with NopEvents.
func NewOrchestrator(supervisor Supervisor, policy timeout.Policy, override *time.Duration, suffix string, log Logger, events Events) *Orchestrator {
	if events == nil {
		events = NopEvents{}
	}
	return &Orchestrator{
		supervisor: supervisor,
		policy:     policy,
		override:   override,
		suffix:     suffix,
		log:        log,
		events:     events,
	}
}

// workUnit pairs an enumerated input with its size and planned output.
type workUnit struct {
	inputPath  string
	size       int64
	outputPath string
}

// Process compresses the file or directory at inputPath and returns the
// aggregate report. Setup failures (missing input, held lock) return an
// error before any item is attempted; per-item failures are reported in
// the Report, not as errors.
func (o *Orchestrator) Process(ctx context.Context, inputPath string) (stats.Report, error) {
	tracker := stats.NewTracker()

	tracker.BeginPhase("scan")
	units, outputDir, err := o.enumerate(inputPath)
	if err != nil {
		return tracker.Report(), err
	}
	tracker.EndPhase()

	tracker.SetTotalItems(len(units))
	tracker.SetOutputDir(outputDir)

	if len(units) == 0 {
		o.log.LogInfo(fmt.Sprintf("No PDF files found in %s", inputPath))
		return tracker.Report(), nil
	}

	if outputDir != "" {
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return tracker.Report(), fmt.Errorf("failed to create output directory: %w", err)
		}

		lock := filelock.NewBatchLock(outputDir)
		acquired, err := lock.TryAcquire()
		if err != nil {
			return tracker.Report(), err
		}
		if !acquired {
			return tracker.Report(), fmt.Errorf("another run is already writing to %s", outputDir)
		}
		defer func() {
			if err := lock.Release(); err != nil {
				o.log.LogWarn(fmt.Sprintf("Failed to release batch lock: %v", err))
			}
		}()
	}

	// Smallest first: quick wins surface early and a pathological large
	// file cannot stall the whole batch at the start.
	sort.Slice(units, func(i, j int) bool {
		if units[i].size != units[j].size {
			return units[i].size < units[j].size
		}
		return units[i].inputPath < units[j].inputPath
	})

	o.events.BatchStarted(len(units), outputDir)
	o.log.LogInfo(fmt.Sprintf("Processing %d file(s) from %s", len(units), inputPath))

	var totalBytes int64
	for _, unit := range units {
		totalBytes += unit.size
	}

	tracker.BeginPhase("process")
	processStart := time.Now()
	var doneBytes int64
	for i, unit := range units {
		if ctx.Err() != nil {
			o.log.LogWarn(fmt.Sprintf("Run canceled, skipping %d remaining file(s)", len(units)-i))
			o.skipRemaining(tracker, units[i:])
			break
		}

		budget := o.policy.Resolve(unit.size, o.override)
		o.events.ItemStarted(i+1, len(units), unit.inputPath, unit.size)
		if eta, ok := estimateRemaining(processStart, doneBytes, totalBytes-doneBytes); ok {
			o.events.ItemProgress(fmt.Sprintf("elapsed %s, estimated remaining %s",
				time.Since(processStart).Round(time.Second), eta.Round(time.Second)))
		}
		o.log.LogInfo(fmt.Sprintf("Compressing %s (%d bytes, budget %s)", unit.inputPath, unit.size, budgetLabel(budget)))

		item := engine.WorkItem{
			InputPath:  unit.inputPath,
			Size:       unit.size,
			OutputPath: unit.outputPath,
		}
		outcome := o.supervisor.Run(ctx, item, budget, o.events.ItemProgress)
		o.events.ItemFinished(outcome)
		doneBytes += unit.size

		switch outcome.Kind {
		case engine.OutcomeSuccess:
			tracker.RecordSuccess(unit.inputPath, outcome.OriginalSize, outcome.CompressedSize, outcome.Elapsed)
			o.log.LogInfo(fmt.Sprintf("Compressed %s: %d -> %d bytes in %s",
				unit.inputPath, outcome.OriginalSize, outcome.CompressedSize, outcome.Elapsed.Round(time.Millisecond)))

		case engine.OutcomeEnvironmentMissing:
			// Without the engine no later item can succeed. Halt and
			// report the remainder as skipped, not failed.
			tracker.RecordFailure(unit.inputPath, outcome.Reason(), outcome.Elapsed)
			tracker.SetFatal(outcome.Reason())
			o.log.LogError(fmt.Sprintf("Halting batch: %s", outcome.Reason()))
			o.skipRemaining(tracker, units[i+1:])
			tracker.EndPhase()
			return tracker.Report(), nil

		default:
			tracker.RecordFailure(unit.inputPath, outcome.Reason(), outcome.Elapsed)
			o.log.LogWarn(fmt.Sprintf("Failed %s: %s", unit.inputPath, outcome.Reason()))
		}
	}
	tracker.EndPhase()

	return tracker.Report(), nil
}

// enumerate resolves inputPath into work units and the batch output
// directory. A single file gets its output alongside the input and no
// shared output directory.
func (o *Orchestrator) enumerate(inputPath string) ([]workUnit, string, error) {
	info, err := os.Stat(inputPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to access input path: %w", err)
	}

	if !info.IsDir() {
		if !strings.EqualFold(filepath.Ext(inputPath), ".pdf") {
			return nil, "", fmt.Errorf("not a PDF file: %s", inputPath)
		}
		abs, err := filepath.Abs(inputPath)
		if err != nil {
			return nil, "", fmt.Errorf("failed to resolve input path: %w", err)
		}
		unit := workUnit{
			inputPath:  abs,
			size:       info.Size(),
			outputPath: o.singleOutputPath(abs),
		}
		return []workUnit{unit}, "", nil
	}

	files, err := fileutil.ScanPDFs(inputPath)
	if err != nil {
		return nil, "", err
	}

	absDir, err := filepath.Abs(inputPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve input path: %w", err)
	}
	outputDir := absDir + o.suffix

	units := make([]workUnit, 0, len(files))
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			// Disappeared between scan and stat; leave it to the
			// supervisor's missing-input classification.
			o.log.LogWarn(fmt.Sprintf("Cannot stat %s: %v", file, err))
		}
		var size int64
		if info != nil {
			size = info.Size()
		}
		units = append(units, workUnit{
			inputPath:  file,
			size:       size,
			outputPath: filepath.Join(outputDir, o.outputName(filepath.Base(file))),
		})
	}
	return units, outputDir, nil
}

// outputName inserts the suffix before the extension: report.pdf
// becomes report_optimized_bw.pdf.
func (o *Orchestrator) outputName(name string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + o.suffix + ext
}

// singleOutputPath derives the output path for a standalone input file,
// placed in the same directory as the input.
func (o *Orchestrator) singleOutputPath(inputPath string) string {
	return filepath.Join(filepath.Dir(inputPath), o.outputName(filepath.Base(inputPath)))
}

func (o *Orchestrator) skipRemaining(tracker *stats.Tracker, units []workUnit) {
	for _, unit := range units {
		tracker.RecordSkipped(unit.inputPath)
	}
}

// estimateRemaining projects time left from bytes already processed.
// No estimate is possible before the first item finishes.
func estimateRemaining(start time.Time, doneBytes, remainingBytes int64) (time.Duration, bool) {
	if doneBytes <= 0 || remainingBytes <= 0 {
		return 0, false
	}
	elapsed := time.Since(start)
	if elapsed <= 0 {
		return 0, false
	}
	perByte := float64(elapsed) / float64(doneBytes)
	return time.Duration(perByte * float64(remainingBytes)), true
}

func budgetLabel(b timeout.Budget) string {
	if b.Unlimited() {
		return "unlimited"
	}
	return b.Duration().String()
}
