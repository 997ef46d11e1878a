// Package jira is a thin client over the issue tracker's REST API,
// covering the handful of operations the actioner uses.
package jira

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ignite/alertops/internal/pkg/httpretry"
)

// Client talks to one Jira site with basic email/token auth.
type Client struct {
	baseURL string
	auth    string
	http    httpretry.HTTPDoer
}

// NewClient builds a tracker client. doer may be nil, in which case a
// retrying HTTP client with sane defaults is used.
func NewClient(baseURL, email, apiToken string, doer httpretry.HTTPDoer) *Client {
	if doer == nil {
		doer = httpretry.NewRetryClient(&http.Client{Timeout: 30 * time.Second}, 3)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		auth:    base64.StdEncoding.EncodeToString([]byte(email + ":" + apiToken)),
		http:    doer,
	}
}

// CreateIssue opens a ticket and returns its key.
func (c *Client) CreateIssue(ctx context.Context, project, summary, description, issueType, priority string) (string, error) {
	payload := map[string]any{
		"fields": map[string]any{
			"project":     map[string]string{"key": project},
			"summary":     summary,
			"description": description,
			"issuetype":   map[string]string{"name": issueType},
			"priority":    map[string]string{"name": priority},
		},
	}

	var out struct {
		Key string `json:"key"`
	}
	if err := c.do(ctx, http.MethodPost, "/rest/api/2/issue", payload, &out); err != nil {
		return "", fmt.Errorf("create issue: %w", err)
	}
	return out.Key, nil
}

// IssueStatus returns the current status name of a ticket.
func (c *Client) IssueStatus(ctx context.Context, key string) (string, error) {
	var out struct {
		Fields struct {
			Status struct {
				Name string `json:"name"`
			} `json:"status"`
		} `json:"fields"`
	}
	if err := c.do(ctx, http.MethodGet, "/rest/api/2/issue/"+url.PathEscape(key)+"?fields=status", nil, &out); err != nil {
		return "", fmt.Errorf("get issue %s: %w", key, err)
	}
	return out.Fields.Status.Name, nil
}

// UpdateFields patches arbitrary issue fields, e.g. the team custom field
// or the assignee.
func (c *Client) UpdateFields(ctx context.Context, key string, fields map[string]any) error {
	payload := map[string]any{"fields": fields}
	if err := c.do(ctx, http.MethodPut, "/rest/api/2/issue/"+url.PathEscape(key), payload, nil); err != nil {
		return fmt.Errorf("update issue %s: %w", key, err)
	}
	return nil
}

// SearchUser finds the account for a mailbox address. Returns empty values
// when no account matches.
func (c *Client) SearchUser(ctx context.Context, email string) (accountID, displayName string, err error) {
	var out []struct {
		AccountID   string `json:"accountId"`
		DisplayName string `json:"displayName"`
	}
	path := "/rest/api/2/user/search?maxResults=1&query=" + url.QueryEscape(email)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return "", "", fmt.Errorf("search user: %w", err)
	}
	if len(out) == 0 {
		return "", "", nil
	}
	return out[0].AccountID, out[0].DisplayName, nil
}

// AddAttachment uploads a file to a ticket.
func (c *Client) AddAttachment(ctx context.Context, key, filename string, content io.Reader) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("attachment form: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return fmt.Errorf("attachment copy: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("attachment finalize: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/rest/api/2/issue/"+url.PathEscape(key)+"/attachments", &body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Basic "+c.auth)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Atlassian-Token", "no-check")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("add attachment: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("add attachment: status %d: %s", resp.StatusCode, msg)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Basic "+c.auth)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("status %d: %s", resp.StatusCode, msg)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
