/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"godialoguewriter/internal/backend"
	"godialoguewriter/internal/config"
	"godialoguewriter/internal/crash"
	"godialoguewriter/internal/export"
	applog "godialoguewriter/internal/log"
	"godialoguewriter/internal/player"
	"godialoguewriter/internal/script"
	"godialoguewriter/internal/storage"
	"godialoguewriter/internal/syntax"
	"godialoguewriter/internal/ui"
	"godialoguewriter/internal/version"
)

func usage() {
	fmt.Println("Go Dialogue Writer")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  godialoguewriter version|-v|--version       Show version")
	fmt.Println("  godialoguewriter init <dir> <name>          Create a new story project at <dir>")
	fmt.Println("  godialoguewriter open <dir>                 Open a project, print a summary, refresh the index")
	fmt.Println("  godialoguewriter check <file>               Validate a script file")
	fmt.Println("  godialoguewriter fmt <file>                 Print the canonical form of a script file")
	fmt.Println("  godialoguewriter structure <file>           Print the parse structure of a script file")
	fmt.Println("  godialoguewriter run <file>                 Play a script interactively in the terminal")
	fmt.Println("  godialoguewriter snapshot <dir> <file>      Store a revision of a project script")
	fmt.Println("  godialoguewriter export-pdf <dir> <file> <out.pdf>  Render a project script to PDF")
	fmt.Println("  godialoguewriter serve                      Run the story sync server (needs Postgres)")
	fmt.Println("  godialoguewriter ui [<dir>]                 Launch desktop UI (build with -tags fyne)")
}

func main() {
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("cli")
	var ph *storage.ProjectHandle
	defer func() { crash.Recover(ph) }()

	args := os.Args
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) < 2 {
		usage()
		return
	}

	switch args[1] {
	case "version", "--version", "-v":
		fmt.Println("Go Dialogue Writer")
		fmt.Println(version.String())

	case "init":
		if len(args) < 4 {
			fmt.Println("init requires <dir> and <name>")
			usage()
			os.Exit(2)
		}
		abs, _ := filepath.Abs(args[2])
		l.Info("init project", slog.String("root", abs), slog.String("name", args[3]))
		h, err := storage.InitProject(abs, storage.NewStory(args[3]))
		if err != nil {
			fail(l, "init failed", err)
		}
		ph = h
		fmt.Println("Created story project at", abs)

	case "open":
		if len(args) < 3 {
			fmt.Println("open requires <dir>")
			usage()
			os.Exit(2)
		}
		abs, _ := filepath.Abs(args[2])
		l.Info("open project", slog.String("root", abs))
		h, err := storage.Open(abs)
		if err != nil {
			fail(l, "open failed", err)
		}
		ph = h
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if rebuilt, err := storage.DetectAndRebuildIndex(ctx, ph); err != nil {
			l.Warn("index check failed", slog.Any("err", err))
		} else if rebuilt {
			fmt.Println("Search index was rebuilt.")
		}
		if err := storage.BuildIndexIfEmpty(ctx, ph); err != nil {
			l.Warn("index build failed", slog.Any("err", err))
		}
		fmt.Printf("Opened story: %s\n", h.Story.Name)
		fmt.Printf("Scripts: %d\n", len(h.Story.Scripts))
		fmt.Println("Root:", h.Root)

	case "check":
		if len(args) < 3 {
			fmt.Println("check requires <file>")
			usage()
			os.Exit(2)
		}
		s := parseFile(l, args[2])
		if err := syntax.CheckWithOptions(s, checkOptions()); err != nil {
			fail(l, "check failed", err)
		}
		fmt.Println("OK")

	case "fmt":
		if len(args) < 3 {
			fmt.Println("fmt requires <file>")
			usage()
			os.Exit(2)
		}
		s := parseFile(l, args[2])
		fmt.Print(s.String())

	case "structure":
		if len(args) < 3 {
			fmt.Println("structure requires <file>")
			usage()
			os.Exit(2)
		}
		s := parseFile(l, args[2])
		fmt.Print(s.Structure())

	case "run":
		if len(args) < 3 {
			fmt.Println("run requires <file>")
			usage()
			os.Exit(2)
		}
		s := parseFile(l, args[2])
		if err := syntax.CheckWithOptions(s, checkOptions()); err != nil {
			fail(l, "check failed", err)
		}
		p, err := player.New(s, os.Stdin, os.Stdout)
		if err != nil {
			fail(l, "load failed", err)
		}
		if err := p.Run(); err != nil {
			fail(l, "run failed", err)
		}

	case "snapshot":
		if len(args) < 4 {
			fmt.Println("snapshot requires <dir> and <file>")
			usage()
			os.Exit(2)
		}
		abs, _ := filepath.Abs(args[2])
		h, err := storage.Open(abs)
		if err != nil {
			fail(l, "open failed", err)
		}
		ph = h
		file := args[3]
		text, err := ph.ReadScript(file)
		if err != nil {
			fail(l, "read script failed", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := storage.SaveScriptSnapshot(ctx, ph, file, text, time.Now()); err != nil {
			fail(l, "snapshot failed", err)
		}
		if err := storage.UpdateIndex(ctx, ph); err != nil {
			l.Warn("index update failed", slog.Any("err", err))
		}
		fmt.Printf("Stored a snapshot of %s\n", file)

	case "export-pdf":
		if len(args) < 5 {
			fmt.Println("export-pdf requires <dir>, <file> and <out.pdf>")
			usage()
			os.Exit(2)
		}
		abs, _ := filepath.Abs(args[2])
		h, err := storage.Open(abs)
		if err != nil {
			fail(l, "open failed", err)
		}
		ph = h
		if err := export.ExportScriptPDF(ph, args[3], args[4], export.PDFOptions{Markers: true}); err != nil {
			fail(l, "export failed", err)
		}
		fmt.Println("Wrote", args[4])

	case "serve":
		l.Info("starting sync server")
		if err := backend.Start(); err != nil {
			fail(l, "server failed", err)
		}

	case "ui":
		var dir string
		if len(args) >= 3 {
			dir = args[2]
		}
		if err := ui.Run(dir); err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}

	default:
		usage()
	}
}

// parseFile loads and parses a script file or exits with the parse error.
func parseFile(l *slog.Logger, path string) *script.Script {
	b, err := os.ReadFile(path)
	if err != nil {
		fail(l, "read failed", err)
	}
	s, err := script.Parse(string(b))
	if err != nil {
		fail(l, "parse failed", err)
	}
	return s
}

// checkOptions resolves checker severities from the user config, falling back
// to the defaults when no config exists.
func checkOptions() syntax.Options {
	cfg, _, err := config.Load()
	if err != nil {
		return syntax.DefaultOptions()
	}
	return cfg.Check.CheckOptions()
}

func fail(l *slog.Logger, msg string, err error) {
	l.Error(msg, slog.Any("err", err))
	fmt.Println("Error:", err)
	os.Exit(1)
}
