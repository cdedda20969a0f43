// Package fileutil provides directory scanning for batch input
// enumeration.
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScanOptions configures directory scanning.
type ScanOptions struct {
	// Extensions is the list of file extensions to include (e.g. ".pdf").
	// Matching is case-insensitive.
	Extensions []string
	// Recursive enables walking into subdirectories. Hidden directories
	// are always skipped.
	Recursive bool
}

// ScanDirectory returns the absolute paths of files in dir matching the
// options, sorted lexically. Unreadable entries are skipped rather than
// failing the scan.
func ScanDirectory(dir string, opts ScanOptions) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to access directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir)
	}

	extMap := make(map[string]bool)
	for _, ext := range opts.Extensions {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		extMap[strings.ToLower(ext)] = true
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries, keep walking
		}
		if path == dir {
			return nil
		}

		if d.IsDir() {
			if !opts.Recursive || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if len(extMap) > 0 && !extMap[strings.ToLower(filepath.Ext(d.Name()))] {
			return nil
		}

		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil
		}
		files = append(files, absPath)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	sort.Strings(files)
	return files, nil
}

// ScanPDFs returns the PDF files directly inside dir, sorted lexically.
func ScanPDFs(dir string) ([]string, error) {
	return ScanDirectory(dir, ScanOptions{Extensions: []string{".pdf"}})
}
