package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

var (
	// ErrNotFound is returned when the registry does not know the
	// prompt identifier.
	ErrNotFound = errors.New("prompt not found in registry")
	// ErrAuth is returned when the registry rejects the credentials.
	ErrAuth = errors.New("registry rejected credentials")
)

const listPageSize = 100

// Client talks to the hosted prompt registry over its REST surface.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    httpClient,
	}
}

type repoStub struct {
	FullName string `json:"full_name"`
}

type listReposResponse struct {
	Repos []repoStub `json:"repos"`
	Total int        `json:"total"`
}

// ListPrompts enumerates the private prompt names, paging through the
// registry in fixed-size chunks.
func (c *Client) ListPrompts(ctx context.Context) ([]string, error) {
	names := make([]string, 0, listPageSize)
	for offset := 0; ; offset += listPageSize {
		q := url.Values{}
		q.Set("limit", fmt.Sprintf("%d", listPageSize))
		q.Set("offset", fmt.Sprintf("%d", offset))
		q.Set("is_public", "false")

		var page listReposResponse
		if err := c.getJSON(ctx, "/repos/?"+q.Encode(), &page); err != nil {
			return nil, err
		}
		if len(page.Repos) == 0 {
			break
		}
		for _, repo := range page.Repos {
			names = append(names, repo.FullName)
		}
	}
	return names, nil
}

type pullResponse struct {
	Manifest Template `json:"manifest"`
}

// Pull resolves a prompt identifier to its latest template.
func (c *Client) Pull(ctx context.Context, promptID string) (*Template, error) {
	var resp pullResponse
	if err := c.getJSON(ctx, "/commits/"+url.PathEscape(promptID)+"/latest", &resp); err != nil {
		return nil, err
	}
	tmpl := resp.Manifest
	if tmpl.Name == "" {
		tmpl.Name = promptID
	}
	return &tmpl, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create registry request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("registry request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read registry response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w (HTTP %d)", ErrAuth, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w (HTTP %d)", ErrNotFound, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("registry request failed (HTTP %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse registry response: %w", err)
	}
	return nil
}
