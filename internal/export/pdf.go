/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders script printouts for table reads and review.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"godialoguewriter/internal/script"
	"godialoguewriter/internal/storage"
)

// PDFOptions controls the script printout.
// Units are points (pt). Vector text only; we rely on built-in Helvetica for
// portability, so no font embedding is needed.
type PDFOptions struct {
	Title      string  // header line; defaults to the script file name
	FontSize   float64 // body size in pt, default 11
	LineHeight float64 // multiplier on FontSize, default 1.45
	Markers    bool    // print %MARKER% lines
	Comments   bool    // print // comment lines
}

// Page geometry for the printout, A4 in points.
const (
	pdfPageW      = 595.28
	pdfPageH      = 841.89
	pdfMargin     = 56.0
	pdfSpeakerCol = 110.0 // width reserved for the speaker column
	pdfIndentStep = 18.0  // horizontal shift per block level
)

// ExportScriptPDF renders one script of the project to a multi-page PDF at
// outPath. Relative outPath is placed under the project's exports folder.
func ExportScriptPDF(ph *storage.ProjectHandle, file, outPath string, opt PDFOptions) error {
	if ph == nil {
		return fmt.Errorf("project handle is nil")
	}
	text, err := ph.ReadScript(file)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	s, err := script.Parse(text)
	if err != nil {
		return fmt.Errorf("parse script: %w", err)
	}

	if opt.Title == "" {
		opt.Title = file
	}
	if opt.FontSize <= 0 {
		opt.FontSize = 11
	}
	if opt.LineHeight <= 0 {
		opt.LineHeight = 1.45
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: pdfPageW, Ht: pdfPageH},
		OrientationStr: "",
	})
	pdf.SetTitle(fmt.Sprintf("%s — %s", ph.Story.Name, opt.Title), true)
	pdf.SetAuthor(ph.Story.Author, true)
	pdf.SetFont("Helvetica", "", opt.FontSize)

	w := &pdfWriter{pdf: pdf, opt: opt}
	w.newPage()
	w.writeElements(s.Elements, 0)

	if !filepath.IsAbs(outPath) {
		outPath = filepath.Join(ph.Root, storage.ExportsDirName, outPath)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

type pdfWriter struct {
	pdf *gofpdf.Fpdf
	opt PDFOptions
	y   float64
}

func (w *pdfWriter) newPage() {
	w.pdf.AddPageFormat("", gofpdf.SizeType{Wd: pdfPageW, Ht: pdfPageH})
	w.pdf.SetFont("Helvetica", "B", w.opt.FontSize+2)
	w.pdf.Text(pdfMargin, pdfMargin, w.opt.Title)
	w.pdf.SetFont("Helvetica", "", w.opt.FontSize)
	w.y = pdfMargin + (w.opt.FontSize+2)*2
}

func (w *pdfWriter) advance() {
	w.y += w.opt.FontSize * w.opt.LineHeight
	if w.y > pdfPageH-pdfMargin {
		w.newPage()
	}
}

func (w *pdfWriter) writeElements(els []script.Element, level int) {
	for _, el := range els {
		switch e := el.(type) {
		case script.Command:
			w.writeCommand(e, level)
		case script.Marker:
			if w.opt.Markers {
				w.pdf.SetFont("Helvetica", "B", w.opt.FontSize)
				w.pdf.Text(pdfMargin, w.y, "%"+e.Name+"%")
				w.pdf.SetFont("Helvetica", "", w.opt.FontSize)
				w.advance()
			}
		case script.Comment:
			if w.opt.Comments {
				w.pdf.SetFont("Helvetica", "I", w.opt.FontSize)
				w.pdf.Text(pdfMargin+indent(level), w.y, "// "+e.Text)
				w.pdf.SetFont("Helvetica", "", w.opt.FontSize)
				w.advance()
			}
		case *script.Block:
			w.writeElements(e.Elements, level+1)
		}
	}
}

// writeCommand lays a command out as a screenplay-style line: the speaker in
// its own column, the text beside it, choices and jumps rendered with their
// command name so branch structure stays visible on paper.
func (w *pdfWriter) writeCommand(c script.Command, level int) {
	x := pdfMargin + indent(level)
	switch c.Name {
	case script.CmdSay:
		if c.Prefix != "" {
			w.pdf.SetFont("Helvetica", "B", w.opt.FontSize)
			w.pdf.Text(x, w.y, c.Prefix+":")
			w.pdf.SetFont("Helvetica", "", w.opt.FontSize)
		}
		w.pdf.Text(pdfMargin+pdfSpeakerCol+indent(level), w.y, unquote(c.Suffix))
	case script.CmdChoice:
		w.pdf.SetFont("Helvetica", "I", w.opt.FontSize)
		w.pdf.Text(x, w.y, "* "+unquote(c.Suffix))
		w.pdf.SetFont("Helvetica", "", w.opt.FontSize)
	case script.CmdGoto:
		w.pdf.SetFont("Helvetica", "I", w.opt.FontSize)
		w.pdf.Text(x, w.y, "-> "+c.Suffix)
		w.pdf.SetFont("Helvetica", "", w.opt.FontSize)
	default:
		w.pdf.Text(x, w.y, strings.TrimSpace(c.String()))
	}
	w.advance()
}

func indent(level int) float64 {
	return float64(level) * pdfIndentStep
}

func unquote(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1]
	}
	return s
}
