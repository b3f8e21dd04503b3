/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// SearchQuery describes the in-app line search request.
// Text uses SQLite FTS5 syntax (simple terms, phrases in quotes, AND/OR/NOT).
// Filters are optional: Speaker matches the command prefix, File restricts
// to one script, Commands restricts to command names (SAY, CHOICE, GOTO...).
// Limit/Offset implement pagination; reasonable defaults applied if zero.
type SearchQuery struct {
	Text     string
	Speaker  string
	File     string
	Commands []string
	Limit    int
	Offset   int
}

// SearchResult represents a single matched line. Snippet is a highlighted
// excerpt using [ ] markers when FTS text is used.
type SearchResult struct {
	LineID  int64
	File    string
	Ord     int
	Command string
	Speaker string
	Snippet string
}

// MarkerPos is a marker location inside a script file.
type MarkerPos struct {
	File string
	Name string
	Ord  int
}

// Search performs full-text search with optional filters over the embedded
// index. When q.Text is empty it falls back to a plain scan with the filters
// applied.
func Search(ctx context.Context, ph *ProjectHandle, q SearchQuery) ([]SearchResult, error) {
	if ph == nil {
		return nil, errors.New("nil ProjectHandle")
	}
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return searchDB(ctx, db, q)
}

func searchDB(ctx context.Context, db *sql.DB, q SearchQuery) ([]SearchResult, error) {
	var args []any
	var sb strings.Builder
	useFTS := strings.TrimSpace(q.Text) != ""
	if useFTS {
		sb.WriteString("SELECT l.line_id, l.file, l.ord, l.command, COALESCE(l.speaker,''), snippet(fts_lines, 0, '[', ']', '...', 10)\n")
		sb.WriteString("FROM fts_lines JOIN lines l ON fts_lines.rowid = l.line_id\n")
		sb.WriteString("WHERE fts_lines MATCH ?\n")
		args = append(args, q.Text)
	} else {
		sb.WriteString("SELECT l.line_id, l.file, l.ord, l.command, COALESCE(l.speaker,''), COALESCE(l.text,'')\n")
		sb.WriteString("FROM lines l\nWHERE 1=1\n")
	}
	if s := strings.TrimSpace(q.Speaker); s != "" {
		sb.WriteString(" AND l.speaker IS NOT NULL AND lower(l.speaker)=?\n")
		args = append(args, strings.ToLower(s))
	}
	if s := strings.TrimSpace(q.File); s != "" {
		sb.WriteString(" AND l.file=?\n")
		args = append(args, s)
	}
	if len(q.Commands) > 0 {
		sb.WriteString(" AND l.command IN (" + placeholders(len(q.Commands)) + ")\n")
		for _, c := range q.Commands {
			args = append(args, strings.ToUpper(strings.TrimSpace(c)))
		}
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	sb.WriteString("ORDER BY l.file, l.ord\n")
	sb.WriteString("LIMIT ? OFFSET ?")
	args = append(args, limit, q.Offset)

	rows, err := db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.LineID, &r.File, &r.Ord, &r.Command, &r.Speaker, &r.Snippet); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Markers lists the indexed marker positions, optionally restricted to one
// script file.
func Markers(ctx context.Context, ph *ProjectHandle, file string) ([]MarkerPos, error) {
	if ph == nil {
		return nil, errors.New("nil ProjectHandle")
	}
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	q := `SELECT file, name, ord FROM markers`
	var args []any
	if strings.TrimSpace(file) != "" {
		q += ` WHERE file=?`
		args = append(args, file)
	}
	q += ` ORDER BY file, ord`
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("markers query: %w", err)
	}
	defer rows.Close()
	var out []MarkerPos
	for rows.Next() {
		var m MarkerPos
		if err := rows.Scan(&m.File, &m.Name, &m.Ord); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := strings.Builder{}
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("?")
	}
	return b.String()
}
