// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package archive

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/pdbsearch/pkg/types"
)

// Download outcome values stored in the manifest.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Manifest is an SQLite log of search runs and the files each run wrote.
// It is bookkeeping only: nothing reads it back to skip a search or a
// download.
type Manifest struct {
	db  *sql.DB
	now func() time.Time
}

// Run summarizes one logged search run.
type Run struct {
	ID         string
	Query      string
	StartedAt  time.Time
	FinishedAt time.Time
	Found      int
	Downloaded int
	Failed     int
}

// Download is one logged record outcome.
type Download struct {
	RunID       string
	StructureID string
	Status      string
	Path        string
	Bytes       int
	SHA256      string
	Error       string
	At          time.Time
}

// OpenManifest opens or creates the manifest database at path.
func OpenManifest(path string) (*Manifest, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating manifest directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening manifest: %w", err)
	}
	m := &Manifest{db: db, now: time.Now}
	if err := m.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating manifest schema: %w", err)
	}
	return m, nil
}

// Close releases the database connection.
func (m *Manifest) Close() error {
	return m.db.Close()
}

func (m *Manifest) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			query TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			found INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS downloads (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id),
			structure_id TEXT NOT NULL,
			status TEXT NOT NULL,
			path TEXT,
			bytes INTEGER,
			sha256 TEXT,
			error TEXT,
			at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_downloads_run_id ON downloads(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_downloads_structure_id ON downloads(structure_id)`,
	}
	for _, stmt := range statements {
		if _, err := m.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

func (m *Manifest) timestamp() string {
	return m.now().UTC().Format(time.RFC3339Nano)
}

// BeginRun logs the start of a run for the rendered query and returns its ID.
func (m *Manifest) BeginRun(query string) (string, error) {
	id := uuid.NewString()
	if _, err := m.db.Exec(
		`INSERT INTO runs (id, query, started_at) VALUES (?, ?, ?)`,
		id, query, m.timestamp(),
	); err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}
	return id, nil
}

// SetFound records how many identifiers the run's search returned.
func (m *Manifest) SetFound(runID string, found int) error {
	if _, err := m.db.Exec(`UPDATE runs SET found = ? WHERE id = ?`, found, runID); err != nil {
		return fmt.Errorf("updating run %s: %w", runID, err)
	}
	return nil
}

// FinishRun stamps the run's completion time.
func (m *Manifest) FinishRun(runID string) error {
	if _, err := m.db.Exec(`UPDATE runs SET finished_at = ? WHERE id = ?`, m.timestamp(), runID); err != nil {
		return fmt.Errorf("finishing run %s: %w", runID, err)
	}
	return nil
}

// RecordDownload logs a record written to path.
func (m *Manifest) RecordDownload(runID string, rec types.Record, path string) error {
	sum := sha256.Sum256(rec.Data)
	if _, err := m.db.Exec(
		`INSERT INTO downloads (run_id, structure_id, status, path, bytes, sha256, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, rec.ID, StatusOK, path, rec.Size(), hex.EncodeToString(sum[:]), m.timestamp(),
	); err != nil {
		return fmt.Errorf("logging download of %s: %w", rec.ID, err)
	}
	return nil
}

// RecordFailure logs an identifier that could not be fetched or written.
func (m *Manifest) RecordFailure(runID, structureID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if _, err := m.db.Exec(
		`INSERT INTO downloads (run_id, structure_id, status, error, at) VALUES (?, ?, ?, ?, ?)`,
		runID, structureID, StatusFailed, msg, m.timestamp(),
	); err != nil {
		return fmt.Errorf("logging failure of %s: %w", structureID, err)
	}
	return nil
}

// Runs returns every logged run, oldest first, with download counts.
func (m *Manifest) Runs() ([]Run, error) {
	rows, err := m.db.Query(`
		SELECT r.id, r.query, r.started_at, COALESCE(r.finished_at, ''), r.found,
		       COALESCE(SUM(CASE WHEN d.status = ? THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN d.status = ? THEN 1 ELSE 0 END), 0)
		FROM runs r
		LEFT JOIN downloads d ON d.run_id = r.id
		GROUP BY r.id
		ORDER BY r.started_at, r.rowid`, StatusOK, StatusFailed)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished string
		if err := rows.Scan(&r.ID, &r.Query, &started, &finished, &r.Found, &r.Downloaded, &r.Failed); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		if finished != "" {
			r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Downloads returns the outcomes logged for runID in the order they happened.
func (m *Manifest) Downloads(runID string) ([]Download, error) {
	rows, err := m.db.Query(`
		SELECT run_id, structure_id, status, COALESCE(path, ''), COALESCE(bytes, 0),
		       COALESCE(sha256, ''), COALESCE(error, ''), at
		FROM downloads WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying downloads: %w", err)
	}
	defer rows.Close()

	var out []Download
	for rows.Next() {
		var d Download
		var at string
		if err := rows.Scan(&d.RunID, &d.StructureID, &d.Status, &d.Path, &d.Bytes, &d.SHA256, &d.Error, &at); err != nil {
			return nil, fmt.Errorf("scanning download: %w", err)
		}
		d.At, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, d)
	}
	return out, rows.Err()
}
