/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

const sampleScript = `%START%
DAISY |SAY| "Hello!"
%END%
`

func TestInitProjectScaffolding(t *testing.T) {
	root := filepath.Join(t.TempDir(), "mystory")
	ph, err := InitProject(root, NewStory("My Story"))
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	for _, d := range []string{ScriptsDirName, ExportsDirName, BackupsDirName} {
		if st, err := os.Stat(filepath.Join(root, d)); err != nil || !st.IsDir() {
			t.Fatalf("missing subdir %s: %v", d, err)
		}
	}
	if _, err := os.Stat(ph.ManifestPath); err != nil {
		t.Fatalf("missing manifest: %v", err)
	}
}

func TestSaveOpenRoundTrip(t *testing.T) {
	root := t.TempDir()
	ph, err := InitProject(root, NewStory("Round Trip"))
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	ph.Story.Author = "Someone"
	ph.Story.Scripts = append(ph.Story.Scripts, ScriptRef{File: "main.dialogue", Title: "Main"})
	if err := Save(ph); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := Open(root)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if got.Story.Name != "Round Trip" || got.Story.Author != "Someone" {
		t.Fatalf("story mismatch: %+v", got.Story)
	}
	if len(got.Story.Scripts) != 1 || got.Story.Scripts[0].File != "main.dialogue" {
		t.Fatalf("scripts mismatch: %+v", got.Story.Scripts)
	}
}

func TestSaveCreatesBackupAndOpenRecoversFromIt(t *testing.T) {
	root := t.TempDir()
	ph, err := InitProject(root, NewStory("Backup Me"))
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	// Second save backs up the first manifest.
	ph.Story.Description = "v2"
	if err := Save(ph); err != nil {
		t.Fatalf("save: %v", err)
	}
	ents, err := os.ReadDir(filepath.Join(root, BackupsDirName))
	if err != nil || len(ents) == 0 {
		t.Fatalf("no backups written: %v", err)
	}

	// Corrupt the manifest; Open must fall back to the backup.
	if err := os.WriteFile(ph.ManifestPath, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("corrupt manifest: %v", err)
	}
	got, err := Open(root)
	if err != nil {
		t.Fatalf("open with corrupt manifest: %v", err)
	}
	if got.Story.Name != "Backup Me" {
		t.Fatalf("recovered story mismatch: %+v", got.Story)
	}
}

func TestScriptReadWrite(t *testing.T) {
	root := t.TempDir()
	ph, err := InitProject(root, NewStory("Scripted"))
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := ph.WriteScript("intro.dialogue", sampleScript); err != nil {
		t.Fatalf("write script: %v", err)
	}
	got, err := ph.ReadScript("intro.dialogue")
	if err != nil {
		t.Fatalf("read script: %v", err)
	}
	if got != sampleScript {
		t.Fatalf("script mismatch: %q", got)
	}
	// Writing registers the script in the manifest exactly once.
	if err := ph.WriteScript("intro.dialogue", sampleScript); err != nil {
		t.Fatalf("rewrite script: %v", err)
	}
	if len(ph.Story.Scripts) != 1 {
		t.Fatalf("manifest scripts: %+v", ph.Story.Scripts)
	}
	reopened, err := Open(root)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !reopened.Story.HasScript("intro.dialogue") {
		t.Fatalf("script not persisted in manifest: %+v", reopened.Story)
	}
}

func TestAutosaveCrashSnapshotWritesFile(t *testing.T) {
	ph, err := InitProject(t.TempDir(), NewStory("Crash Snapshot"))
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	path, err := AutosaveCrashSnapshot(ph)
	if err != nil {
		t.Fatalf("autosave: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	var got Story
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if got.Name != "Crash Snapshot" {
		t.Fatalf("snapshot story mismatch: %+v", got)
	}
}

func TestSaveAs(t *testing.T) {
	ph, err := InitProject(t.TempDir(), NewStory("Mover"))
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	newRoot := filepath.Join(t.TempDir(), "copy")
	if err := SaveAs(ph, newRoot); err != nil {
		t.Fatalf("save as: %v", err)
	}
	if ph.Root != newRoot {
		t.Fatalf("handle root not updated: %q", ph.Root)
	}
	if _, err := os.Stat(filepath.Join(newRoot, ManifestFileName)); err != nil {
		t.Fatalf("manifest missing at new root: %v", err)
	}
}
