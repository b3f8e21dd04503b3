/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

// Story is the canonical manifest persisted as story.json in the project
// root. The script sources themselves live as plain text files under
// scripts/; the manifest only references them.
type Story struct {
	ManifestVersion int         `json:"manifest_version"`
	Name            string      `json:"name"`
	Author          string      `json:"author,omitempty"`
	Description     string      `json:"description,omitempty"`
	Scripts         []ScriptRef `json:"scripts"`
}

// ScriptRef points at one script file relative to the scripts/ directory.
type ScriptRef struct {
	File  string `json:"file"`
	Title string `json:"title,omitempty"`
}

// NewStory returns a manifest with the current version set.
func NewStory(name string) Story {
	return Story{ManifestVersion: 1, Name: name}
}

// HasScript reports whether file is referenced by the manifest.
func (s Story) HasScript(file string) bool {
	for _, ref := range s.Scripts {
		if ref.File == file {
			return true
		}
	}
	return false
}
