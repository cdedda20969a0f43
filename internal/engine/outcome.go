package engine

import (
	"fmt"
	"time"
)

// WorkItem is one input file scheduled for one supervised invocation.
// It is built by the orchestrator during enumeration and never mutated.
type WorkItem struct {
	InputPath  string
	Size       int64
	OutputPath string
}

// OutcomeKind classifies the terminal result of a supervised invocation.
type OutcomeKind int

const (
	// OutcomeSuccess: zero exit, valid output promoted to its final path.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeTimedOut: the child exceeded its budget and was killed.
	OutcomeTimedOut
	// OutcomeEngineFailure: non-zero exit or unusable output.
	OutcomeEngineFailure
	// OutcomeEnvironmentMissing: no usable Ghostscript binary. Fatal for
	// the whole batch, reported once.
	OutcomeEnvironmentMissing
	// OutcomeIoFailure: staging input or output failed before or after
	// the engine ran.
	OutcomeIoFailure
)

// String returns the outcome kind as a short label.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeTimedOut:
		return "timed out"
	case OutcomeEngineFailure:
		return "engine failure"
	case OutcomeEnvironmentMissing:
		return "environment missing"
	case OutcomeIoFailure:
		return "io failure"
	default:
		return "unknown"
	}
}

// Outcome is the tagged terminal result of one supervised invocation.
// Exactly one is produced per WorkItem; consumers switch on Kind and
// must handle every variant.
type Outcome struct {
	Kind OutcomeKind

	// Populated on success.
	OutputPath     string
	OriginalSize   int64
	CompressedSize int64

	// Wall time of the invocation, populated on every kind that got as
	// far as launching (or attempting to launch) the child.
	Elapsed time.Duration

	// Populated on engine failure.
	ExitCode   int
	Diagnostic string
}

// Reason renders a human-readable failure reason for reports. Empty for
// successful outcomes.
func (o Outcome) Reason() string {
	switch o.Kind {
	case OutcomeSuccess:
		return ""
	case OutcomeTimedOut:
		return fmt.Sprintf("timed out after %s", o.Elapsed.Round(time.Second))
	case OutcomeEngineFailure:
		if o.Diagnostic != "" {
			return fmt.Sprintf("engine error (exit %d): %s", o.ExitCode, o.Diagnostic)
		}
		return fmt.Sprintf("engine error (exit %d)", o.ExitCode)
	case OutcomeEnvironmentMissing:
		return "Ghostscript not found"
	case OutcomeIoFailure:
		return o.Diagnostic
	default:
		return "unknown failure"
	}
}
