//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"fmt"
	"log/slog"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"godialoguewriter/internal/crash"
	applog "godialoguewriter/internal/log"
	"godialoguewriter/internal/script"
	"godialoguewriter/internal/storage"
	"godialoguewriter/internal/version"
)

// Run starts the Fyne-based script player. projectDir may name a story
// project to open immediately.
func Run(projectDir string) error {
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("ui")
	l.Info("starting UI")

	var ph *storage.ProjectHandle
	defer func() { crash.Recover(ph) }()

	fyneApp := app.NewWithID("godialoguewriter")
	w := fyneApp.NewWindow("Go Dialogue Writer " + version.String())
	prefs := fyneApp.Preferences()
	winW := prefs.IntWithFallback("window.width", 900)
	winH := prefs.IntWithFallback("window.height", 700)
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	status := widget.NewLabel("Open a story project to begin")
	transcript := widget.NewLabel("")
	transcript.Wrapping = fyne.TextWrapWord
	scroll := container.NewVScroll(transcript)

	choices := container.NewVBox()
	var sess *Session

	refresh := func() {
		if sess == nil {
			return
		}
		transcript.SetText(strings.Join(sess.Transcript(), "\n"))
		scroll.ScrollToBottom()
		choices.Objects = nil
		for i, label := range sess.Options() {
			idx := i
			choices.Add(widget.NewButton(label, func() {
				if err := sess.Choose(idx); err != nil {
					dialog.ShowError(err, w)
					return
				}
				refreshUI(w)
			}))
		}
		if sess.Done() {
			status.SetText("The end. Restart to play again.")
		} else if len(sess.Options()) > 0 {
			status.SetText("Choose an option")
		} else {
			status.SetText("Playing")
		}
		choices.Refresh()
	}
	// refreshUI lets button closures re-run refresh after it is defined.
	setRefresh(refresh)

	openScript := func(file string) {
		text, err := ph.ReadScript(file)
		if err != nil {
			dialog.ShowError(err, w)
			return
		}
		s, err := script.Parse(text)
		if err != nil {
			dialog.ShowError(err, w)
			return
		}
		sess, err = NewSession(s)
		if err != nil {
			dialog.ShowError(err, w)
			return
		}
		w.SetTitle(fmt.Sprintf("Go Dialogue Writer - %s - %s", ph.Story.Name, file))
		refresh()
	}

	openProject := func(dir string) {
		h, err := storage.Open(dir)
		if err != nil {
			dialog.ShowError(err, w)
			return
		}
		ph = h
		l.Info("project opened", slog.String("root", dir), slog.Int("scripts", len(ph.Story.Scripts)))
		if len(ph.Story.Scripts) == 0 {
			status.SetText("Project has no scripts")
			return
		}
		names := make([]string, len(ph.Story.Scripts))
		for i, ref := range ph.Story.Scripts {
			names[i] = ref.File
		}
		if len(names) == 1 {
			openScript(names[0])
			return
		}
		sel := widget.NewSelect(names, openScript)
		dialog.ShowCustom("Choose a script", "Close", sel, w)
	}

	restart := widget.NewButton("Restart", func() {
		if sess == nil {
			return
		}
		if err := sess.Restart(); err != nil {
			dialog.ShowError(err, w)
			return
		}
		refresh()
	})
	open := widget.NewButton("Open project...", func() {
		dialog.ShowFolderOpen(func(uri fyne.ListableURI, err error) {
			if err != nil || uri == nil {
				return
			}
			openProject(uri.Path())
		}, w)
	})

	top := container.NewHBox(open, restart)
	w.SetContent(container.NewBorder(top, container.NewVBox(choices, status), nil, nil, scroll))

	w.SetOnClosed(func() {
		sz := w.Canvas().Size()
		prefs.SetInt("window.width", int(sz.Width))
		prefs.SetInt("window.height", int(sz.Height))
	})

	if projectDir != "" {
		openProject(projectDir)
	}
	w.ShowAndRun()
	return nil
}

// uiRefresh is rebound per window so choice button closures can trigger a
// redraw without capturing the closure before it exists.
var uiRefresh func()

func setRefresh(f func()) { uiRefresh = f }

func refreshUI(_ fyne.Window) {
	if uiRefresh != nil {
		uiRefresh()
	}
}
