/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	applog "godialoguewriter/internal/log"
	"godialoguewriter/internal/script"
	"godialoguewriter/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// IndexDirName stores all per-project ephemeral/index data under the project root.
	IndexDirName  = ".gdw"
	IndexFileName = "index.sqlite"

	// schemaVersion tracks the local SQLite schema for the embedded index.
	// Bump this when you perform breaking schema changes and add migrations.
	schemaVersion = 2
)

// IndexPath returns the full path to the project's embedded index database file.
func IndexPath(projectRoot string) string {
	return filepath.Join(projectRoot, IndexDirName, IndexFileName)
}

// InitOrOpenIndex ensures that the per-project SQLite index exists at
// .gdw/index.sqlite, opens the database, enables WAL mode, and ensures the
// meta/version tables exist. The returned *sql.DB is ready for use.
func InitOrOpenIndex(projectRoot string) (*sql.DB, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "index_init").With(
		slog.String("root", projectRoot),
	)
	if strings.TrimSpace(projectRoot) == "" {
		return nil, errors.New("project root is required")
	}
	if err := os.MkdirAll(filepath.Join(projectRoot, IndexDirName), 0o755); err != nil {
		l.Error("create .gdw dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create .gdw dir: %w", err)
	}

	path := IndexPath(projectRoot)
	// Use a URI with shared cache and a busy timeout. Forward slashes for the SQLite URI.
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		l.Warn("enable foreign_keys failed", slog.Any("err", err))
	}

	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureIndexSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure index schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}

	l.Info("index ready", slog.String("path", path))
	return db, nil
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var curSchema int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&curSchema)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		// Update app and timestamp only; keep existing schema for migrations
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if cur > schemaVersion {
		// Never downgrade
		return nil
	}
	for cur < schemaVersion {
		next := cur + 1
		switch next {
		case 2:
			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				return fmt.Errorf("begin migration %d: %w", next, err)
			}
			stmts := []string{
				`CREATE INDEX IF NOT EXISTS idx_markers_name ON markers(name);`,
				`CREATE INDEX IF NOT EXISTS idx_lines_speaker ON lines(speaker);`,
			}
			for _, q := range stmts {
				if _, err := tx.ExecContext(ctx, q); err != nil {
					_ = tx.Rollback()
					return fmt.Errorf("migration %d stmt failed: %w", next, err)
				}
			}
			if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d update version: %w", next, err)
			}
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("migration %d commit: %w", next, err)
			}
			// Best-effort FTS optimize (outside the tx)
			if _, err := db.ExecContext(ctx, `INSERT INTO fts_lines(fts_lines) VALUES('optimize')`); err != nil {
				// ignore
			}
		default:
			// Unknown future step
		}
		cur = next
	}
	return nil
}

// ensureIndexSchema creates the core index tables and FTS structures if they
// do not exist.
func ensureIndexSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		// One row per command line across all scripts of the project.
		`CREATE TABLE IF NOT EXISTS lines (
			line_id INTEGER PRIMARY KEY,
			file    TEXT    NOT NULL,
			ord     INTEGER NOT NULL,
			depth   INTEGER NOT NULL,
			command TEXT    NOT NULL,
			speaker TEXT,
			text    TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_lines_file ON lines(file);`,

		// Contentless FTS5 index fed from lines via triggers.
		`CREATE VIRTUAL TABLE IF NOT EXISTS fts_lines USING fts5(
			text,
			content='',
			tokenize = 'unicode61'
		);`,

		// Marker positions for jump target lookup.
		`CREATE TABLE IF NOT EXISTS markers (
			file TEXT    NOT NULL,
			name TEXT    NOT NULL,
			ord  INTEGER NOT NULL,
			PRIMARY KEY(file, name)
		);`,

		// Script snapshots (history of script text for change tracking)
		`CREATE TABLE IF NOT EXISTS script_snapshots (
			id    INTEGER PRIMARY KEY,
			file  TEXT    NOT NULL,
			ts    TEXT    NOT NULL,
			text  TEXT    NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_script_snapshots_ts ON script_snapshots(file, ts);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure index schema: %w", err)
		}
	}
	// Triggers for contentless FTS synchronization with lines.text
	triggers := []string{
		`CREATE TRIGGER IF NOT EXISTS lines_ai AFTER INSERT ON lines BEGIN
			INSERT INTO fts_lines(rowid, text) VALUES (new.line_id, new.text);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS lines_ad AFTER DELETE ON lines BEGIN
			INSERT INTO fts_lines(fts_lines, rowid, text) VALUES ('delete', old.line_id, old.text);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS lines_au AFTER UPDATE OF text ON lines BEGIN
			INSERT INTO fts_lines(fts_lines, rowid, text) VALUES ('delete', old.line_id, old.text);
			INSERT INTO fts_lines(rowid, text) VALUES (new.line_id, new.text);
		END;`,
	}
	for _, q := range triggers {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure fts triggers: %w", err)
		}
	}
	return nil
}

// DetectAndRebuildIndex checks for corruption or missing schema and rebuilds
// the index if needed. It returns true when a rebuild was performed.
func DetectAndRebuildIndex(ctx context.Context, ph *ProjectHandle) (bool, error) {
	path := IndexPath(ph.Root)
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		backupIndexFile(path)
		_ = os.Remove(path)
		if rbErr := RebuildIndex(ctx, ph); rbErr != nil {
			return false, fmt.Errorf("rebuild after open failure: %w (open err: %v)", rbErr, err)
		}
		return true, nil
	}
	defer db.Close()
	needs := false
	var chk string
	if err := db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil || !strings.Contains(strings.ToLower(chk), "ok") {
		needs = true
	}
	if !needs {
		if _, err := db.ExecContext(ctx, `SELECT 1 FROM lines LIMIT 1;`); err != nil {
			needs = true
		}
	}
	if !needs {
		return false, nil
	}
	backupIndexFile(path)
	_ = os.Remove(path)
	if err := RebuildIndex(ctx, ph); err != nil {
		return false, err
	}
	return true, nil
}

// backupIndexFile copies the current index file into a timestamped backup in
// .gdw/backups.
func backupIndexFile(indexPath string) {
	bdir := filepath.Join(filepath.Dir(indexPath), "backups")
	_ = os.MkdirAll(bdir, 0o755)
	stamp := time.Now().Format("20060102-150405")
	bak := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(indexPath), stamp))
	if data, err := os.ReadFile(indexPath); err == nil {
		_ = os.WriteFile(bak, data, 0o644)
	}
}

// BuildIndexIfEmpty ensures the DB exists and, if the lines table is empty,
// populates it from the manifest's script files.
func BuildIndexIfEmpty(ctx context.Context, ph *ProjectHandle) error {
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return err
	}
	defer db.Close()
	var cnt int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM lines;").Scan(&cnt); err != nil {
		return fmt.Errorf("check lines count: %w", err)
	}
	if cnt > 0 {
		return nil // already built
	}
	return rebuildLinesFromProject(ctx, db, ph)
}

// UpdateIndex replaces the indexed line and marker content from the
// project's script files.
func UpdateIndex(ctx context.Context, ph *ProjectHandle) error {
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return err
	}
	defer db.Close()
	return rebuildLinesFromProject(ctx, db, ph)
}

// RebuildIndex drops and recreates the core index tables and rebuilds the
// content from the script files. meta/version are preserved; the index is
// derived data.
func RebuildIndex(ctx context.Context, ph *ProjectHandle) error {
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return err
	}
	defer db.Close()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	drops := []string{
		"DROP TABLE IF EXISTS markers;",
		"DROP TRIGGER IF EXISTS lines_ai;",
		"DROP TRIGGER IF EXISTS lines_ad;",
		"DROP TRIGGER IF EXISTS lines_au;",
		"DROP TABLE IF EXISTS lines;",
		"DROP TABLE IF EXISTS fts_lines;",
	}
	for _, q := range drops {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("drop schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("drop commit: %w", err)
	}
	if err := ensureIndexSchema(ctx, db); err != nil {
		return err
	}
	return rebuildLinesFromProject(ctx, db, ph)
}

// indexedLine is one row destined for the lines table.
type indexedLine struct {
	file    string
	ord     int
	depth   int
	command string
	speaker sql.NullString
	text    sql.NullString
}

type indexedMarker struct {
	file string
	name string
	ord  int
}

// rebuildLinesFromProject replaces the lines and markers content from the
// manifest's script files. Files that fail to parse are skipped; the index
// is best effort and the checker reports such scripts separately.
func rebuildLinesFromProject(ctx context.Context, db *sql.DB, ph *ProjectHandle) error {
	var lines []indexedLine
	var marks []indexedMarker
	for _, ref := range ph.Story.Scripts {
		text, err := ph.ReadScript(ref.File)
		if err != nil {
			continue
		}
		s, err := script.Parse(text)
		if err != nil {
			applog.WithComponent("storage").Warn("skipping unparsable script",
				slog.String("file", ref.File), slog.Any("err", err))
			continue
		}
		ord := 0
		collectScriptRows(s.Elements, ref.File, 0, &ord, &lines, &marks)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM lines;"); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear lines: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM markers;"); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear markers: %w", err)
	}
	ins, err := tx.PrepareContext(ctx, "INSERT INTO lines(file, ord, depth, command, speaker, text) VALUES(?,?,?,?,?,?);")
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer ins.Close()
	for _, r := range lines {
		if _, err := ins.ExecContext(ctx, r.file, r.ord, r.depth, r.command, r.speaker, r.text); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert line: %w", err)
		}
	}
	insm, err := tx.PrepareContext(ctx, "INSERT OR REPLACE INTO markers(file, name, ord) VALUES(?,?,?);")
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare marker insert: %w", err)
	}
	defer insm.Close()
	for _, m := range marks {
		if _, err := insm.ExecContext(ctx, m.file, m.name, m.ord); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert marker: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func collectScriptRows(els []script.Element, file string, depth int, ord *int, lines *[]indexedLine, marks *[]indexedMarker) {
	for _, el := range els {
		switch e := el.(type) {
		case script.Command:
			*ord++
			row := indexedLine{file: file, ord: *ord, depth: depth, command: e.Name}
			if e.Prefix != "" {
				row.speaker = sql.NullString{String: e.Prefix, Valid: true}
			}
			if e.Suffix != "" {
				row.text = sql.NullString{String: strings.Trim(e.Suffix, `"`), Valid: true}
			}
			*lines = append(*lines, row)
		case script.Marker:
			*ord++
			*marks = append(*marks, indexedMarker{file: file, name: e.Name, ord: *ord})
		case *script.Block:
			collectScriptRows(e.Elements, file, depth+1, ord, lines, marks)
		}
	}
}
