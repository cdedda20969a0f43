package engine

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/harrison/pdfpress/internal/tempfile"
	"github.com/harrison/pdfpress/internal/timeout"
)

// ProgressSink receives human-readable status updates during an
// invocation. It is called from the supervisor's goroutines and must
// not block.
type ProgressSink func(message string)

// Logger is the subset of the run logger the supervisor needs.
type Logger interface {
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
}

// heartbeatInterval paces "still running" updates while the engine is
// silent. Matches the historical 10s poll cadence.
const heartbeatInterval = 10 * time.Second

// diagnosticLimit caps captured engine output carried into reports.
const diagnosticLimit = 500

// pipeGrace bounds how long a killed invocation may hold up the batch
// when an orphaned grandchild still has the output pipe open.
const pipeGrace = 2 * time.Second

// progressPattern matches Ghostscript page-rendering notices on stdout.
// Progress is best effort: unmatched output is tolerated.
var progressPattern = regexp.MustCompile(`^(Page \d+|Processing pages \d+ through \d+)`)

// Supervisor runs one engine invocation at a time: it stages the temp
// artifact, launches Ghostscript, drains its output concurrently with
// waiting for exit, enforces the timeout budget, and classifies the
// result into an Outcome. Per-item failures never escape as errors.
type Supervisor struct {
	engine   *Engine
	settings Settings
	log      Logger
}

// NewSupervisor creates a Supervisor for a located engine. A nil engine
// is allowed and makes every Run return OutcomeEnvironmentMissing,
// letting the orchestrator surface the condition through the normal
// outcome flow.
func NewSupervisor(engine *Engine, settings Settings, log Logger) *Supervisor {
	return &Supervisor{engine: engine, settings: settings, log: log}
}

// Run supervises one invocation for the given work item. All exit paths
// release the temp artifact; the returned Outcome is the single source
// of truth about what happened.
func (s *Supervisor) Run(ctx context.Context, item WorkItem, budget timeout.Budget, sink ProgressSink) Outcome {
	start := time.Now()
	base := filepath.Base(item.InputPath)

	if s.engine == nil {
		s.log.LogError("Ghostscript not found; cannot process " + base)
		return Outcome{Kind: OutcomeEnvironmentMissing}
	}

	info, err := os.Stat(item.InputPath)
	if err != nil {
		s.log.LogError(fmt.Sprintf("Cannot read source %s: %v", item.InputPath, err))
		return Outcome{
			Kind:       OutcomeIoFailure,
			Diagnostic: fmt.Sprintf("cannot read source: %v", err),
			Elapsed:    time.Since(start),
		}
	}
	originalSize := info.Size()

	art, err := tempfile.Acquire(item.OutputPath, s.log)
	if err != nil {
		s.log.LogError(fmt.Sprintf("Cannot stage output for %s: %v", base, err))
		return Outcome{
			Kind:       OutcomeIoFailure,
			Diagnostic: fmt.Sprintf("cannot write destination: %v", err),
			Elapsed:    time.Since(start),
		}
	}
	defer art.Release()

	// The budget is enforced through the command context so the child is
	// killed the moment the deadline passes, exactly like an external
	// cancellation would.
	runCtx := ctx
	if !budget.Unlimited() {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, budget.Duration())
		defer cancel()
	}

	args := BuildArgs(s.settings, item.InputPath, art.Path())
	cmd := exec.CommandContext(runCtx, s.engine.Path, args...)

	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.log.LogError(fmt.Sprintf("Cannot open engine output for %s: %v", base, err))
		return Outcome{
			Kind:       OutcomeIoFailure,
			Diagnostic: fmt.Sprintf("cannot open engine output: %v", err),
			Elapsed:    time.Since(start),
		}
	}

	s.log.LogDebug(fmt.Sprintf("Engine command: %s %s", s.engine.Path, strings.Join(args, " ")))

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			s.log.LogError("Ghostscript disappeared between probe and launch")
			return Outcome{Kind: OutcomeEnvironmentMissing, Elapsed: time.Since(start)}
		}
		s.log.LogError(fmt.Sprintf("Failed to launch engine for %s: %v", base, err))
		return Outcome{
			Kind:       OutcomeIoFailure,
			Diagnostic: fmt.Sprintf("cannot launch engine: %v", err),
			Elapsed:    time.Since(start),
		}
	}

	s.log.LogInfo(fmt.Sprintf("Engine started for %s (budget: %s)", base, budgetLabel(budget)))

	stopHeartbeat := make(chan struct{})
	go s.heartbeat(start, sink, stopHeartbeat)
	defer close(stopHeartbeat)

	// Drain stdout concurrently with waiting for exit; reading only
	// after exit risks deadlock on a full pipe when output is verbose.
	tail := newTailBuffer(20)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		s.drainProgress(stdout, sink, tail)
	}()

	// Join the drain before reaping the child so no output is lost. If
	// the child was killed, an orphaned grandchild can keep the pipe
	// open; after a short grace we let Wait close the pipe, which
	// unblocks the drain.
	select {
	case <-drained:
	case <-runCtx.Done():
		select {
		case <-drained:
		case <-time.After(pipeGrace):
		}
	}
	waitErr := cmd.Wait()
	<-drained
	elapsed := time.Since(start)

	switch {
	// A run that exited cleanly before cancellation landed is still a
	// success, so both termination branches require a failed wait.
	case ctx.Err() != nil && waitErr != nil:
		// External cancellation: same termination and cleanup as the
		// timeout path, reported distinctly in the diagnostic.
		s.log.LogWarn(fmt.Sprintf("Canceled while processing %s after %s", base, elapsed.Round(time.Second)))
		return Outcome{Kind: OutcomeTimedOut, Elapsed: elapsed, Diagnostic: "canceled"}

	case runCtx.Err() == context.DeadlineExceeded && waitErr != nil:
		s.log.LogWarn(fmt.Sprintf("Timeout (%s) reached for %s, engine terminated", budgetLabel(budget), base))
		return Outcome{Kind: OutcomeTimedOut, Elapsed: elapsed}

	case waitErr != nil:
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		diag := diagnosticText(stderrBuf.String(), tail)
		s.log.LogError(fmt.Sprintf("Engine failed for %s (exit %d): %s", base, exitCode, diag))
		return Outcome{Kind: OutcomeEngineFailure, Elapsed: elapsed, ExitCode: exitCode, Diagnostic: diag}
	}

	outInfo, statErr := os.Stat(art.Path())
	if statErr != nil || outInfo.Size() == 0 {
		s.log.LogError(fmt.Sprintf("Engine produced no output for %s", base))
		return Outcome{
			Kind:       OutcomeEngineFailure,
			Elapsed:    elapsed,
			Diagnostic: "output file not created or empty",
		}
	}

	if err := art.Promote(item.OutputPath); err != nil {
		s.log.LogError(fmt.Sprintf("Cannot finalize output for %s: %v", base, err))
		return Outcome{
			Kind:       OutcomeIoFailure,
			Elapsed:    elapsed,
			Diagnostic: fmt.Sprintf("cannot finalize output: %v", err),
		}
	}

	// Report the size of what actually landed at the final path so the
	// stats never disagree with the on-disk artifact.
	finalInfo, err := os.Stat(item.OutputPath)
	if err != nil {
		s.log.LogError(fmt.Sprintf("Promoted output vanished for %s: %v", base, err))
		return Outcome{
			Kind:       OutcomeIoFailure,
			Elapsed:    elapsed,
			Diagnostic: fmt.Sprintf("cannot stat final output: %v", err),
		}
	}

	s.log.LogInfo(fmt.Sprintf("Compressed %s: %d -> %d bytes in %s",
		base, originalSize, finalInfo.Size(), elapsed.Round(time.Millisecond)))

	return Outcome{
		Kind:           OutcomeSuccess,
		OutputPath:     item.OutputPath,
		OriginalSize:   originalSize,
		CompressedSize: finalInfo.Size(),
		Elapsed:        elapsed,
	}
}

// drainProgress reads the engine's stdout line by line, forwarding
// recognized page notices to the sink and keeping a tail for
// diagnostics.
func (s *Supervisor) drainProgress(r io.Reader, sink ProgressSink, tail *tailBuffer) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		tail.add(line)
		if progressPattern.MatchString(line) && sink != nil {
			sink(line)
		}
	}
}

// heartbeat emits elapsed-time updates so an interactive caller sees
// life even when the engine prints nothing recognizable.
func (s *Supervisor) heartbeat(start time.Time, sink ProgressSink, stop <-chan struct{}) {
	if sink == nil {
		return
	}
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			elapsed := time.Since(start)
			sink(fmt.Sprintf("still running, %d:%02d elapsed",
				int(elapsed.Minutes()), int(elapsed.Seconds())%60))
		}
	}
}

// budgetLabel renders a budget for log lines.
func budgetLabel(b timeout.Budget) string {
	if b.Unlimited() {
		return "unlimited"
	}
	return b.Duration().String()
}

// diagnosticText picks the most useful engine output for a failure
// report: stderr when present, otherwise the stdout tail, truncated.
func diagnosticText(stderr string, tail *tailBuffer) string {
	diag := strings.TrimSpace(stderr)
	if diag == "" {
		diag = tail.join()
	}
	if len(diag) > diagnosticLimit {
		diag = diag[:diagnosticLimit] + "..."
	}
	return diag
}

// tailBuffer keeps the last n lines of engine output.
type tailBuffer struct {
	lines []string
	max   int
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) add(line string) {
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}

func (t *tailBuffer) join() string {
	return strings.Join(t.lines, "\n")
}
