// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package archive writes fetched structure files to disk and optionally logs
// each run's downloads to an SQLite manifest.
package archive

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/pdbsearch/pkg/types"
)

// Extension is appended to the identifier to name each structure file.
const Extension = ".pdb"

// ErrInvalidIdentifier is returned for identifiers that cannot be used as a
// file name.
var ErrInvalidIdentifier = errors.New("invalid identifier")

// Writer stores records as <Dir>/<ID>.pdb, replacing existing files.
type Writer struct {
	Dir string
}

// Path returns the file path a record with the given identifier is written to.
func (w Writer) Path(id string) (string, error) {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) || strings.ContainsRune(id, 0) {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
	}
	dir := w.Dir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, id+Extension), nil
}

// Write stores rec and returns the path written. The file is written to a
// temporary name first and renamed into place, so a reader never sees a
// partial structure file.
func (w Writer) Write(rec types.Record) (string, error) {
	path, err := w.Path(rec.ID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating directory %s: %w", filepath.Dir(path), err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".pdbsearch-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, writeErr := tmpFile.Write(rec.Data)
	closeErr := tmpFile.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("writing %s: %w", rec.ID, writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("renaming temp file: %w", err)
	}
	return path, nil
}

// Summary counts the outcome of WriteAll.
type Summary struct {
	Written int
	Failed  int
	Bytes   int64
}

// WriteAll drains records into w. A record that cannot be written is reported
// on errw and skipped. When m is non-nil each outcome is logged under runID.
func (w Writer) WriteAll(records iter.Seq[types.Record], m *Manifest, runID string, errw io.Writer) Summary {
	var s Summary
	for rec := range records {
		path, err := w.Write(rec)
		if err != nil {
			fmt.Fprintf(errw, "Failed writing %s: %v\n", rec.ID, err)
			s.Failed++
			if m != nil {
				if mErr := m.RecordFailure(runID, rec.ID, err); mErr != nil {
					fmt.Fprintf(errw, "warning: manifest: %v\n", mErr)
				}
			}
			continue
		}
		s.Written++
		s.Bytes += int64(rec.Size())
		if m != nil {
			if mErr := m.RecordDownload(runID, rec, path); mErr != nil {
				fmt.Fprintf(errw, "warning: manifest: %v\n", mErr)
			}
		}
	}
	return s
}
