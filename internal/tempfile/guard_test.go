package tempfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	warns  []string
	debugs []string
}

func (r *recordingLogger) LogDebug(msg string) { r.debugs = append(r.debugs, msg) }
func (r *recordingLogger) LogWarn(msg string)  { r.warns = append(r.warns, msg) }

func TestAcquireCreatesPlaceholder(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "scan_optimized_bw.pdf")

	art, err := Acquire(final, &recordingLogger{})
	require.NoError(t, err)
	defer art.Release()

	info, err := os.Stat(art.Path())
	require.NoError(t, err)
	assert.Zero(t, info.Size())
	assert.Equal(t, dir, filepath.Dir(art.Path()))
	assert.True(t, strings.HasSuffix(art.Path(), ".pdf"))
	assert.NotEqual(t, final, art.Path())
}

func TestAcquireUniqueNames(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "doc.pdf")
	log := &recordingLogger{}

	a, err := Acquire(final, log)
	require.NoError(t, err)
	defer a.Release()

	b, err := Acquire(final, log)
	require.NoError(t, err)
	defer b.Release()

	assert.NotEqual(t, a.Path(), b.Path())
}

func TestAcquireMissingDirectory(t *testing.T) {
	final := filepath.Join(t.TempDir(), "no-such-dir", "doc.pdf")

	_, err := Acquire(final, &recordingLogger{})
	assert.Error(t, err)
}

func TestReleaseDeletesFile(t *testing.T) {
	final := filepath.Join(t.TempDir(), "doc.pdf")
	art, err := Acquire(final, &recordingLogger{})
	require.NoError(t, err)

	art.Release()

	_, statErr := os.Stat(art.Path())
	assert.True(t, os.IsNotExist(statErr), "temp file should be gone after Release")
}

func TestReleaseIdempotent(t *testing.T) {
	final := filepath.Join(t.TempDir(), "doc.pdf")
	log := &recordingLogger{}
	art, err := Acquire(final, log)
	require.NoError(t, err)

	art.Release()
	art.Release()

	assert.Empty(t, log.warns)
}

func TestReleaseToleratesAlreadyDeleted(t *testing.T) {
	final := filepath.Join(t.TempDir(), "doc.pdf")
	log := &recordingLogger{}
	art, err := Acquire(final, log)
	require.NoError(t, err)

	require.NoError(t, os.Remove(art.Path()))

	art.Release()
	assert.Empty(t, log.warns, "missing file is not a deletion failure")
}

func TestPromoteReplacesFinal(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "doc_optimized_bw.pdf")
	require.NoError(t, os.WriteFile(final, []byte("stale output"), 0644))

	art, err := Acquire(final, &recordingLogger{})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(art.Path(), []byte("fresh output"), 0644))

	require.NoError(t, art.Promote(final))

	data, err := os.ReadFile(final)
	require.NoError(t, err)
	assert.Equal(t, "fresh output", string(data))

	_, statErr := os.Stat(art.Path())
	assert.True(t, os.IsNotExist(statErr), "temp path should be gone after Promote")

	// Promoted artifacts are disarmed; Release must not touch the final file.
	art.Release()
	_, err = os.Stat(final)
	assert.NoError(t, err)
}

func TestPromoteAfterReleaseFails(t *testing.T) {
	final := filepath.Join(t.TempDir(), "doc.pdf")
	art, err := Acquire(final, &recordingLogger{})
	require.NoError(t, err)

	art.Release()
	assert.Error(t, art.Promote(final))
}
