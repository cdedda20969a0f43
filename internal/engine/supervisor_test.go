package engine

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/pdfpress/internal/logger"
	"github.com/harrison/pdfpress/internal/timeout"
)

// fakeEngineScript writes an executable shell script that mimics
// Ghostscript: it prints page notices, writes the -sOutputFile target,
// and exits with the given code. extra is inserted before the output
// write (e.g. a sleep).
func fakeEngineScript(t *testing.T, exitCode int, extra string) *Engine {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake engine requires a POSIX shell")
	}

	script := `#!/bin/sh
out=""
for a in "$@"; do
  case "$a" in
    -sOutputFile=*) out="${a#-sOutputFile=}" ;;
  esac
done
echo "Processing pages 1 through 2."
echo "Page 1"
echo "Page 2"
` + extra + `
if [ -n "$out" ]; then
  printf 'compressed-bytes' > "$out"
fi
exit ` + itoa(exitCode) + `
`
	path := filepath.Join(t.TempDir(), "fake-gs.sh")
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return &Engine{Path: path, Version: "fake"}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := ""
	for n > 0 {
		digits = string(rune('0'+n%10)) + digits
		n /= 10
	}
	return digits
}

// collectSink is a ProgressSink safe for concurrent use.
type collectSink struct {
	mu       sync.Mutex
	messages []string
}

func (c *collectSink) sink(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
}

func (c *collectSink) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.messages...)
}

func workItem(t *testing.T, content string) WorkItem {
	t.Helper()
	dir := t.TempDir()
	in := filepath.Join(dir, "scan.pdf")
	require.NoError(t, os.WriteFile(in, []byte(content), 0644))
	return WorkItem{
		InputPath:  in,
		Size:       int64(len(content)),
		OutputPath: filepath.Join(dir, "scan_optimized_bw.pdf"),
	}
}

// assertNoTempFiles fails if any temp placeholder is left in the item's
// output directory.
func assertNoTempFiles(t *testing.T, item WorkItem) {
	t.Helper()
	entries, err := os.ReadDir(filepath.Dir(item.OutputPath))
	require.NoError(t, err)
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp") {
			t.Errorf("temp artifact leaked: %s", e.Name())
		}
	}
}

func TestRunNilEngine(t *testing.T) {
	sup := NewSupervisor(nil, balancedSettings(), logger.Nop{})
	oc := sup.Run(context.Background(), workItem(t, "x"), timeout.NoLimit, nil)
	assert.Equal(t, OutcomeEnvironmentMissing, oc.Kind)
}

func TestRunMissingInput(t *testing.T) {
	eng := fakeEngineScript(t, 0, "")
	sup := NewSupervisor(eng, balancedSettings(), logger.Nop{})

	item := WorkItem{
		InputPath:  filepath.Join(t.TempDir(), "absent.pdf"),
		OutputPath: filepath.Join(t.TempDir(), "absent_optimized_bw.pdf"),
	}
	oc := sup.Run(context.Background(), item, timeout.NoLimit, nil)

	assert.Equal(t, OutcomeIoFailure, oc.Kind)
	assert.Contains(t, oc.Reason(), "cannot read source")
}

func TestRunSuccess(t *testing.T) {
	eng := fakeEngineScript(t, 0, "")
	sup := NewSupervisor(eng, balancedSettings(), logger.Nop{})
	item := workItem(t, "original pdf content larger than output")
	sink := &collectSink{}

	oc := sup.Run(context.Background(), item, timeout.NoLimit, sink.sink)

	require.Equal(t, OutcomeSuccess, oc.Kind, "reason: %s", oc.Reason())
	assert.Equal(t, item.OutputPath, oc.OutputPath)
	assert.Equal(t, int64(len("original pdf content larger than output")), oc.OriginalSize)

	info, err := os.Stat(item.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, info.Size(), oc.CompressedSize, "reported size must match on-disk artifact")

	msgs := sink.all()
	require.NotEmpty(t, msgs)
	assert.Contains(t, msgs, "Page 1")
	assert.Contains(t, msgs, "Page 2")

	assertNoTempFiles(t, item)
}

func TestRunEngineFailure(t *testing.T) {
	eng := fakeEngineScript(t, 3, `echo "Error: /undefined in operand stack" >&2`)
	sup := NewSupervisor(eng, balancedSettings(), logger.Nop{})
	item := workItem(t, "broken pdf")

	oc := sup.Run(context.Background(), item, timeout.NoLimit, nil)

	assert.Equal(t, OutcomeEngineFailure, oc.Kind)
	assert.Equal(t, 3, oc.ExitCode)
	assert.Contains(t, oc.Diagnostic, "undefined in operand stack")

	_, err := os.Stat(item.OutputPath)
	assert.True(t, os.IsNotExist(err), "failed run must not leave a final output")
	assertNoTempFiles(t, item)
}

// Zero exit with an empty output file is an engine failure, not a
// success: the output would be unusable.
func TestRunEmptyOutput(t *testing.T) {
	eng := fakeEngineScript(t, 0, `out=""`)
	sup := NewSupervisor(eng, balancedSettings(), logger.Nop{})
	item := workItem(t, "pdf")

	oc := sup.Run(context.Background(), item, timeout.NoLimit, nil)

	assert.Equal(t, OutcomeEngineFailure, oc.Kind)
	assert.Contains(t, oc.Diagnostic, "not created or empty")
	assertNoTempFiles(t, item)
}

func TestRunTimeout(t *testing.T) {
	eng := fakeEngineScript(t, 0, "sleep 10")
	sup := NewSupervisor(eng, balancedSettings(), logger.Nop{})
	item := workItem(t, "pdf")

	start := time.Now()
	oc := sup.Run(context.Background(), item, timeout.Budget(200*time.Millisecond), nil)

	assert.Equal(t, OutcomeTimedOut, oc.Kind)
	assert.Less(t, time.Since(start), 5*time.Second, "timeout must kill the child promptly")
	assertNoTempFiles(t, item)
}

// External cancellation takes the same teardown as timeout: child
// killed, temp artifact released.
func TestRunCanceled(t *testing.T) {
	eng := fakeEngineScript(t, 0, "sleep 10")
	sup := NewSupervisor(eng, balancedSettings(), logger.Nop{})
	item := workItem(t, "pdf")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	oc := sup.Run(ctx, item, timeout.NoLimit, nil)

	assert.Equal(t, OutcomeTimedOut, oc.Kind)
	assert.Equal(t, "canceled", oc.Diagnostic)
	assertNoTempFiles(t, item)
}

func TestProgressPattern(t *testing.T) {
	matches := []string{
		"Page 1",
		"Page 42",
		"Processing pages 1 through 10.",
	}
	for _, line := range matches {
		if !progressPattern.MatchString(line) {
			t.Errorf("progressPattern should match %q", line)
		}
	}

	nonMatches := []string{
		"GPL Ghostscript 10.02.1 (2023-11-01)",
		"Copyright (C) 2023 Artifex Software, Inc.",
		"Loading font Helvetica",
	}
	for _, line := range nonMatches {
		if progressPattern.MatchString(line) {
			t.Errorf("progressPattern should not match %q", line)
		}
	}
}

func TestTailBuffer(t *testing.T) {
	tb := newTailBuffer(3)
	for _, l := range []string{"a", "b", "c", "d", "e"} {
		tb.add(l)
	}
	assert.Equal(t, "c\nd\ne", tb.join())
}

func TestDiagnosticText(t *testing.T) {
	tail := newTailBuffer(5)
	tail.add("Page 1")
	tail.add("Error: something broke")

	assert.Equal(t, "stderr wins", diagnosticText("stderr wins", tail))
	assert.Equal(t, "Page 1\nError: something broke", diagnosticText("  ", tail))

	long := strings.Repeat("x", diagnosticLimit+100)
	got := diagnosticText(long, tail)
	assert.Len(t, got, diagnosticLimit+3)
	assert.True(t, strings.HasSuffix(got, "..."))
}
