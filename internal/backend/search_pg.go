/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */
package backend

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"godialoguewriter/internal/storage"
)

// SearchPG executes a search over the Postgres script_lines table using
// tsvector and filters and returns results mapped to storage.SearchResult to
// ease parity checks against the local SQLite index.
func SearchPG(ctx context.Context, db *sql.DB, storyID int64, q storage.SearchQuery) ([]storage.SearchResult, error) {
	var (
		args []any
		b    strings.Builder
	)
	useFTS := strings.TrimSpace(q.Text) != ""
	if useFTS {
		b.WriteString("SELECT l.id, l.file, l.ord, l.command, COALESCE(l.speaker,''), ")
		b.WriteString("COALESCE(ts_headline('simple', COALESCE(l.text,''), plainto_tsquery('simple', $1), 'StartSel=[, StopSel=], MaxFragments=1, MaxWords=12'), '') AS snippet ")
		b.WriteString("FROM script_lines l WHERE l.story_id = $2 AND l.search_vector @@ plainto_tsquery('simple', $1) ")
		args = append(args, q.Text, storyID)
	} else {
		b.WriteString("SELECT l.id, l.file, l.ord, l.command, COALESCE(l.speaker,''), COALESCE(l.text,'') ")
		b.WriteString("FROM script_lines l WHERE l.story_id = $1 ")
		args = append(args, storyID)
	}

	// Helper to add parameter and return placeholder like $n
	place := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if s := strings.TrimSpace(q.Speaker); s != "" {
		b.WriteString(" AND l.speaker IS NOT NULL AND lower(l.speaker) = " + place(strings.ToLower(s)) + " ")
	}
	if s := strings.TrimSpace(q.File); s != "" {
		b.WriteString(" AND l.file = " + place(s) + " ")
	}
	if len(q.Commands) > 0 {
		cmds := make([]string, 0, len(q.Commands))
		for _, c := range q.Commands {
			cmds = append(cmds, strings.ToUpper(strings.TrimSpace(c)))
		}
		b.WriteString(" AND l.command = ANY (" + place(cmds) + ") ")
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	b.WriteString(" ORDER BY l.file, l.ord ")
	b.WriteString(" LIMIT " + place(limit) + " OFFSET " + place(offset))

	rows, err := db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search pg query: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []storage.SearchResult
	for rows.Next() {
		var r storage.SearchResult
		if err := rows.Scan(&r.LineID, &r.File, &r.Ord, &r.Command, &r.Speaker, &r.Snippet); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
