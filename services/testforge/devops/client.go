// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package devops

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("testforge.devops")

const apiVersion = "7.1"

// PullRequest is the metadata a workflow run needs.
type PullRequest struct {
	ID           int    `json:"pullRequestId"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Status       string `json:"status"`
	SourceBranch string `json:"sourceRefName"`
	TargetBranch string `json:"targetRefName"`
	RepositoryID string `json:"-"`
}

// SourceBranchName strips the refs/heads/ prefix.
func (p *PullRequest) SourceBranchName() string {
	return strings.TrimPrefix(p.SourceBranch, "refs/heads/")
}

// TargetBranchName strips the refs/heads/ prefix.
func (p *PullRequest) TargetBranchName() string {
	return strings.TrimPrefix(p.TargetBranch, "refs/heads/")
}

// Client talks to one Azure DevOps project.
//
// # Thread Safety
//
// Safe for concurrent use.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	organization string
	project      string
	authHeader   string
	logger       *slog.Logger
}

// NewClient creates a client for organizationURL/project, e.g.
// https://dev.azure.com/contoso with project "Billing".
func NewClient(organizationURL, project, personalAccessToken string) (*Client, error) {
	if organizationURL == "" || project == "" {
		return nil, fmt.Errorf("%w: organization URL and project must not be empty", ErrInvalidInput)
	}
	if personalAccessToken == "" {
		return nil, fmt.Errorf("%w: personal access token must not be empty", ErrInvalidInput)
	}

	auth := base64.StdEncoding.EncodeToString([]byte(":" + personalAccessToken))
	return &Client{
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		baseURL:      strings.TrimSuffix(organizationURL, "/"),
		organization: organizationURL,
		project:      project,
		authHeader:   "Basic " + auth,
		logger:       slog.Default().With("component", "devops.Client"),
	}, nil
}

// gitURL builds a git-area API URL with the version query attached.
func (c *Client) gitURL(path string, query url.Values) string {
	if query == nil {
		query = url.Values{}
	}
	query.Set("api-version", apiVersion)
	return fmt.Sprintf("%s/%s/_apis/git/%s?%s",
		c.baseURL, url.PathEscape(c.project), path, query.Encode())
}

func (c *Client) doJSON(ctx context.Context, method, rawURL string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("azure devops request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, rawURL)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// GetPullRequest fetches PR metadata.
func (c *Client) GetPullRequest(ctx context.Context, repositoryID string, pullRequestID int) (*PullRequest, error) {
	ctx, span := tracer.Start(ctx, "devops.GetPullRequest")
	defer span.End()
	span.SetAttributes(attribute.Int("devops.pr_id", pullRequestID))

	var pr PullRequest
	u := c.gitURL(fmt.Sprintf("repositories/%s/pullrequests/%d", repositoryID, pullRequestID), nil)
	if err := c.doJSON(ctx, http.MethodGet, u, nil, &pr); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	pr.RepositoryID = repositoryID
	return &pr, nil
}

type iterationList struct {
	Value []struct {
		ID int `json:"id"`
	} `json:"value"`
}

type changeList struct {
	ChangeEntries []struct {
		ChangeType string `json:"changeType"`
		Item       struct {
			Path string `json:"path"`
		} `json:"item"`
	} `json:"changeEntries"`
}

// ChangedPath is one file touched by a PR.
type ChangedPath struct {
	Path       string
	ChangeType string
}

// GetChangedPaths lists the files of the PR's latest iteration.
func (c *Client) GetChangedPaths(ctx context.Context, repositoryID string, pullRequestID int) ([]ChangedPath, error) {
	ctx, span := tracer.Start(ctx, "devops.GetChangedPaths")
	defer span.End()

	var iterations iterationList
	u := c.gitURL(fmt.Sprintf("repositories/%s/pullrequests/%d/iterations", repositoryID, pullRequestID), nil)
	if err := c.doJSON(ctx, http.MethodGet, u, nil, &iterations); err != nil {
		span.RecordError(err)
		return nil, err
	}
	iterationID := 1
	if n := len(iterations.Value); n > 0 {
		iterationID = iterations.Value[n-1].ID
	}

	var changes changeList
	u = c.gitURL(fmt.Sprintf("repositories/%s/pullrequests/%d/iterations/%d/changes",
		repositoryID, pullRequestID, iterationID), nil)
	if err := c.doJSON(ctx, http.MethodGet, u, nil, &changes); err != nil {
		span.RecordError(err)
		return nil, err
	}

	paths := make([]ChangedPath, 0, len(changes.ChangeEntries))
	for _, e := range changes.ChangeEntries {
		paths = append(paths, ChangedPath{
			Path:       strings.TrimPrefix(e.Item.Path, "/"),
			ChangeType: e.ChangeType,
		})
	}
	return paths, nil
}

// PostComment opens a new active thread on the PR with one markdown
// comment.
func (c *Client) PostComment(ctx context.Context, repositoryID string, pullRequestID int, content string) error {
	if content == "" {
		return fmt.Errorf("%w: comment content must not be empty", ErrInvalidInput)
	}
	ctx, span := tracer.Start(ctx, "devops.PostComment")
	defer span.End()
	span.SetAttributes(attribute.Int("devops.pr_id", pullRequestID))

	payload := map[string]interface{}{
		"comments": []map[string]interface{}{
			{"content": content, "commentType": 1},
		},
		"status": 1,
	}
	u := c.gitURL(fmt.Sprintf("repositories/%s/pullrequests/%d/threads", repositoryID, pullRequestID), nil)
	if err := c.doJSON(ctx, http.MethodPost, u, payload, nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	c.logger.Info("posted PR comment", "pr_id", pullRequestID, "bytes", len(content))
	return nil
}
