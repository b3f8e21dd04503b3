/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal HTTP client for the story sync API.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

// NewClient creates a new backend client. baseURL may include a trailing slash; it will be normalized.
func NewClient(baseURL string, token string) *Client {
	b := strings.TrimRight(baseURL, "/")
	return &Client{
		BaseURL: b,
		Token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body io.Reader, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("server %s %s: %s", method, u.Path, resp.Status)
	}
	if dest == nil {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	return dec.Decode(dest)
}

// ListStories returns the stories known to the server.
func (c *Client) ListStories(ctx context.Context) ([]StoryInfo, error) {
	var list []StoryInfo
	if err := c.doJSON(ctx, http.MethodGet, "/api/stories", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// GetScript fetches the latest stored revision of a script file.
func (c *Client) GetScript(ctx context.Context, storyID int64, file string) (*ScriptRevision, error) {
	var rev ScriptRevision
	path := fmt.Sprintf("/api/stories/%d/scripts/%s", storyID, url.PathEscape(file))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &rev); err != nil {
		return nil, err
	}
	return &rev, nil
}

// PushScript uploads script text as the next revision of a file. The server
// rejects text that does not parse.
func (c *Client) PushScript(ctx context.Context, storyID int64, file, text string) (int64, error) {
	var res struct {
		Version int64 `json:"version"`
	}
	path := fmt.Sprintf("/api/stories/%d/scripts/%s", storyID, url.PathEscape(file))
	if err := c.doJSON(ctx, http.MethodPut, path, strings.NewReader(text), &res); err != nil {
		return 0, err
	}
	return res.Version, nil
}
