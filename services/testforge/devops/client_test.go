// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package devops

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL, "Billing", "secret-pat")
	if err != nil {
		t.Fatalf("NewClient() = %v", err)
	}
	return client, srv
}

func TestGetPullRequest(t *testing.T) {
	var gotAuth, gotPath string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		if r.URL.Query().Get("api-version") != apiVersion {
			t.Errorf("api-version = %q", r.URL.Query().Get("api-version"))
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"pullRequestId": 42,
			"title":         "Add discount logic",
			"status":        "active",
			"sourceRefName": "refs/heads/feature/discounts",
			"targetRefName": "refs/heads/main",
		})
	}))

	pr, err := client.GetPullRequest(context.Background(), "repo-1", 42)
	if err != nil {
		t.Fatalf("GetPullRequest() = %v", err)
	}
	if pr.ID != 42 || pr.Title != "Add discount logic" {
		t.Errorf("pr = %+v", pr)
	}
	if pr.SourceBranchName() != "feature/discounts" || pr.TargetBranchName() != "main" {
		t.Errorf("branches = %q, %q", pr.SourceBranchName(), pr.TargetBranchName())
	}
	if !strings.HasPrefix(gotAuth, "Basic ") {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if !strings.Contains(gotPath, "/Billing/_apis/git/repositories/repo-1/pullrequests/42") {
		t.Errorf("path = %q", gotPath)
	}
}

func TestGetChangedPaths(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/iterations") {
			w.Write([]byte(`{"value":[{"id":1},{"id":3}]}`))
			return
		}
		if !strings.Contains(r.URL.Path, "/iterations/3/changes") {
			t.Errorf("changes not requested for latest iteration: %s", r.URL.Path)
		}
		w.Write([]byte(`{"changeEntries":[
			{"changeType":"add","item":{"path":"/src/Billing.Domain/Order.cs"}},
			{"changeType":"edit","item":{"path":"/src/Billing.Domain/PricingPolicy.cs"}}
		]}`))
	}))

	paths, err := client.GetChangedPaths(context.Background(), "repo-1", 42)
	if err != nil {
		t.Fatalf("GetChangedPaths() = %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("paths = %d, want 2", len(paths))
	}
	if paths[0].Path != "src/Billing.Domain/Order.cs" || paths[0].ChangeType != "add" {
		t.Errorf("paths[0] = %+v", paths[0])
	}
}

func TestPostComment(t *testing.T) {
	var gotPayload map[string]interface{}
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/threads") {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Fatal(err)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	}))

	if err := client.PostComment(context.Background(), "repo-1", 42, "## Summary"); err != nil {
		t.Fatalf("PostComment() = %v", err)
	}
	comments, ok := gotPayload["comments"].([]interface{})
	if !ok || len(comments) != 1 {
		t.Fatalf("payload = %v", gotPayload)
	}
	first := comments[0].(map[string]interface{})
	if first["content"] != "## Summary" {
		t.Errorf("content = %v", first["content"])
	}
}

func TestAPIErrorSurfaced(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("TF401027: access denied"))
	}))

	_, err := client.GetPullRequest(context.Background(), "repo-1", 42)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode = %d", apiErr.StatusCode)
	}
}

func TestNotFound(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	_, err := client.GetPullRequest(context.Background(), "repo-1", 99)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestBuildSummaryComment(t *testing.T) {
	comment := BuildSummaryComment(SummaryInput{
		TestsAdded:   3,
		TestsUpdated: 1,
		TestsDeleted: 2,
		RunTotal:     40,
		RunPassed:    40,
		FinalState:   "tests_passed",
	})
	for _, want := range []string{
		"| Tests Added | 3 |",
		"| Tests Updated | 1 |",
		"| Tests Deleted | 2 |",
		"| Total Tests | 40 |",
		"✅",
		"`tests_passed`",
	} {
		if !strings.Contains(comment, want) {
			t.Errorf("comment missing %q:\n%s", want, comment)
		}
	}

	red := BuildSummaryComment(SummaryInput{RunTotal: 5, RunPassed: 4, RunFailed: 1})
	if !strings.Contains(red, "❌") {
		t.Error("failing run not flagged red")
	}
}

func TestBuildSummaryCommentUnmappedChanges(t *testing.T) {
	comment := BuildSummaryComment(SummaryInput{
		TestsAdded: 1,
		Unmapped: []UnmappedEntry{
			{Path: "src/Orphan/Widget.cs", Reason: "no test project found for Orphan"},
		},
		FinalState: "tests_passed",
	})
	for _, want := range []string{
		"### Unmapped Changes",
		"| `src/Orphan/Widget.cs` | no test project found for Orphan |",
	} {
		if !strings.Contains(comment, want) {
			t.Errorf("comment missing %q:\n%s", want, comment)
		}
	}

	// The section only appears when something went unmapped.
	plain := BuildSummaryComment(SummaryInput{TestsAdded: 1})
	if strings.Contains(plain, "Unmapped") {
		t.Error("unmapped section rendered with nothing to report")
	}
}
