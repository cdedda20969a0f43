// Package stats accumulates timing and outcome data for one batch run
// and renders an immutable report at the end. It is a pure in-memory
// accumulator: no operation can fail, and it is mutated only by the
// single goroutine driving the batch.
package stats

import "time"

// Failure records one item that was attempted and did not succeed.
type Failure struct {
	Path   string
	Reason string
}

// PhaseTiming is the measured duration of one coarse batch phase.
type PhaseTiming struct {
	Name     string
	Duration time.Duration
}

// ItemTiming is the wall time of one attempted item.
type ItemTiming struct {
	Path     string
	Duration time.Duration
	Success  bool
}

// Report is the aggregate, immutable result of one batch run. It is the
// sole contract front ends consume to render results.
type Report struct {
	TotalItems int
	Succeeded  int
	Failed     []Failure
	// Skipped lists items never attempted because a batch-fatal
	// condition halted the run. They are not failures.
	Skipped []string

	OriginalBytes   int64
	CompressedBytes int64
	OutputDir       string
	Duration        time.Duration
	Phases          []PhaseTiming
	Items           []ItemTiming

	// Fatal carries the batch-fatal message when the run was halted;
	// empty otherwise.
	Fatal string
}

// Attempted returns how many items actually ran.
func (r Report) Attempted() int {
	return r.Succeeded + len(r.Failed)
}

// Ratio returns compressed/original bytes across successful items, or
// zero when nothing succeeded.
func (r Report) Ratio() float64 {
	if r.OriginalBytes == 0 {
		return 0
	}
	return float64(r.CompressedBytes) / float64(r.OriginalBytes)
}

// Throughput returns original bytes processed per second across the
// whole run, or zero for an instant or empty run.
func (r Report) Throughput() float64 {
	if r.Duration <= 0 {
		return 0
	}
	return float64(r.OriginalBytes) / r.Duration.Seconds()
}

// Slowest returns the attempted item with the longest wall time, and
// false when nothing was attempted.
func (r Report) Slowest() (ItemTiming, bool) {
	if len(r.Items) == 0 {
		return ItemTiming{}, false
	}
	slowest := r.Items[0]
	for _, item := range r.Items[1:] {
		if item.Duration > slowest.Duration {
			slowest = item
		}
	}
	return slowest, true
}

// Fastest returns the attempted item with the shortest wall time, and
// false when nothing was attempted.
func (r Report) Fastest() (ItemTiming, bool) {
	if len(r.Items) == 0 {
		return ItemTiming{}, false
	}
	fastest := r.Items[0]
	for _, item := range r.Items[1:] {
		if item.Duration < fastest.Duration {
			fastest = item
		}
	}
	return fastest, true
}

// Tracker accumulates per-phase and per-item data across one batch run.
type Tracker struct {
	start time.Time

	phases       []PhaseTiming
	currentPhase string
	phaseStart   time.Time

	totalItems int
	succeeded  int
	failed     []Failure
	skipped    []string
	items      []ItemTiming

	originalBytes   int64
	compressedBytes int64
	outputDir       string
	fatal           string
}

// NewTracker starts tracking a batch run.
func NewTracker() *Tracker {
	return &Tracker{start: time.Now()}
}

// BeginPhase closes any open phase and starts a new one.
func (t *Tracker) BeginPhase(name string) {
	t.EndPhase()
	t.currentPhase = name
	t.phaseStart = time.Now()
}

// EndPhase closes the currently open phase, if any.
func (t *Tracker) EndPhase() {
	if t.currentPhase == "" {
		return
	}
	t.phases = append(t.phases, PhaseTiming{
		Name:     t.currentPhase,
		Duration: time.Since(t.phaseStart),
	})
	t.currentPhase = ""
}

// SetTotalItems records how many work items the batch enumerated.
func (t *Tracker) SetTotalItems(n int) {
	t.totalItems = n
}

// SetOutputDir records the batch output directory for the report.
func (t *Tracker) SetOutputDir(dir string) {
	t.outputDir = dir
}

// RecordSuccess records one successfully compressed item.
func (t *Tracker) RecordSuccess(path string, originalBytes, compressedBytes int64, elapsed time.Duration) {
	t.succeeded++
	t.originalBytes += originalBytes
	t.compressedBytes += compressedBytes
	t.items = append(t.items, ItemTiming{Path: path, Duration: elapsed, Success: true})
}

// RecordFailure records one attempted item that did not succeed.
func (t *Tracker) RecordFailure(path, reason string, elapsed time.Duration) {
	t.failed = append(t.failed, Failure{Path: path, Reason: reason})
	t.items = append(t.items, ItemTiming{Path: path, Duration: elapsed, Success: false})
}

// RecordSkipped records an item never attempted due to a batch-fatal
// halt.
func (t *Tracker) RecordSkipped(path string) {
	t.skipped = append(t.skipped, path)
}

// SetFatal records the batch-fatal condition that halted the run.
func (t *Tracker) SetFatal(message string) {
	t.fatal = message
}

// Report closes any open phase and returns an immutable snapshot.
func (t *Tracker) Report() Report {
	t.EndPhase()
	return Report{
		TotalItems:      t.totalItems,
		Succeeded:       t.succeeded,
		Failed:          append([]Failure(nil), t.failed...),
		Skipped:         append([]string(nil), t.skipped...),
		OriginalBytes:   t.originalBytes,
		CompressedBytes: t.compressedBytes,
		OutputDir:       t.outputDir,
		Duration:        time.Since(t.start),
		Phases:          append([]PhaseTiming(nil), t.phases...),
		Items:           append([]ItemTiming(nil), t.items...),
		Fatal:           t.fatal,
	}
}
