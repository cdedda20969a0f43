// Package engine drives Ghostscript as an external subprocess: locating
// the binary, composing its fixed argument contract, and supervising
// each invocation with timeout enforcement and progress extraction.
// Ghostscript is treated as an opaque black box; no PDF parsing happens
// here.
package engine

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Candidate binary names, checked in order. gswin64c/gswin32c cover
// Windows installs; gs covers everything else.
var binaryNames = []string{"gs", "gswin64c", "gswin32c"}

// ErrNotFound indicates no usable Ghostscript binary is on PATH.
var ErrNotFound = errors.New("ghostscript not found in PATH")

// Engine describes a located Ghostscript installation.
type Engine struct {
	// Path is the resolved binary path used for every invocation.
	Path string
	// Version is the version string reported by the binary.
	Version string
}

// Locate finds a Ghostscript binary on PATH and probes it with a cheap
// version call. Returns ErrNotFound (possibly wrapped) when no candidate
// responds.
func Locate() (*Engine, error) {
	return locateWith(exec.LookPath, probeVersion)
}

// locateWith is the injectable core of Locate, split out for tests.
func locateWith(lookPath func(string) (string, error), probe func(string) (string, error)) (*Engine, error) {
	for _, name := range binaryNames {
		path, err := lookPath(name)
		if err != nil {
			continue
		}
		version, err := probe(path)
		if err != nil {
			// Present but not responding to a version probe; keep looking.
			continue
		}
		return &Engine{Path: path, Version: version}, nil
	}
	return nil, ErrNotFound
}

// probeVersion runs `<gs> --version` and returns the first output line.
func probeVersion(path string) (string, error) {
	out, err := exec.Command(path, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("version probe failed: %w", err)
	}
	version := strings.TrimSpace(string(out))
	if idx := strings.IndexByte(version, '\n'); idx >= 0 {
		version = version[:idx]
	}
	if version == "" {
		return "", fmt.Errorf("version probe returned no output")
	}
	return version, nil
}
