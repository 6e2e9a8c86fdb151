// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
)

type sourceLink struct {
	Title string  `json:"title"`
	URL   *string `json:"url,omitempty"`
}

type queryResponse struct {
	Answer      string       `json:"answer"`
	Sources     []string     `json:"sources"`
	SourceLinks []sourceLink `json:"source_links"`
	SessionID   string       `json:"session_id"`
}

type courseStats struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
}

type apiError struct {
	Error string `json:"error"`
}

func apiBaseURL() string {
	if u := os.Getenv("COURSE_RAG_API_URL"); u != "" {
		return u
	}
	return "http://localhost:8000"
}

func newClient() *resty.Client {
	c := resty.New().
		SetBaseURL(apiBaseURL()).
		SetTimeout(90 * time.Second).
		SetHeader("Content-Type", "application/json")
	if token := os.Getenv("COURSE_RAG_TOKEN"); token != "" {
		c.SetAuthToken(token)
	}
	return c
}

func postQuery(text, sessionID string) (*queryResponse, error) {
	body := map[string]string{"query": text}
	if sessionID != "" {
		body["session_id"] = sessionID
	}
	var out queryResponse
	var apiErr apiError
	resp, err := newClient().R().
		SetBody(body).
		SetResult(&out).
		SetError(&apiErr).
		Post("/api/query")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, statusError("POST /api/query", resp.StatusCode(), apiErr, resp.String())
	}
	return &out, nil
}

func listCourses() (*courseStats, error) {
	var out courseStats
	var apiErr apiError
	resp, err := newClient().R().
		SetResult(&out).
		SetError(&apiErr).
		Get("/api/courses")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, statusError("GET /api/courses", resp.StatusCode(), apiErr, resp.String())
	}
	return &out, nil
}

func deleteSession(id string) error {
	var apiErr apiError
	resp, err := newClient().R().
		SetError(&apiErr).
		Delete("/api/session/" + id)
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK {
		return statusError("DELETE /api/session/"+id, resp.StatusCode(), apiErr, resp.String())
	}
	return nil
}

func checkHealth() (map[string]interface{}, error) {
	var out map[string]interface{}
	resp, err := newClient().R().
		SetResult(&out).
		Get("/api/health")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET /api/health: %d %s", resp.StatusCode(), resp.String())
	}
	return out, nil
}

func statusError(op string, code int, apiErr apiError, raw string) error {
	if apiErr.Error != "" {
		return fmt.Errorf("%s: %d %s", op, code, apiErr.Error)
	}
	return fmt.Errorf("%s: %d %s", op, code, raw)
}
