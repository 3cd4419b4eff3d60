package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
)

const (
	DefaultGitHubURL    = "https://api.github.com"
	DefaultGistFilename = "obsidian.ics"
)

// GistClient replaces one file of an existing gist with the calendar.
type GistClient struct {
	BaseURL  string
	GistID   string
	Filename string
	HTTP     *http.Client
}

// NewGistClient returns a client that authenticates with a personal access
// token. The token is attached by an oauth2 transport.
func NewGistClient(ctx context.Context, token, gistID, filename string) *GistClient {
	if filename == "" {
		filename = DefaultGistFilename
	}
	var hc *http.Client
	if token != "" {
		hc = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}
	return &GistClient{
		BaseURL:  DefaultGitHubURL,
		GistID:   gistID,
		Filename: filename,
		HTTP:     hc,
	}
}

func (g *GistClient) Name() string { return "gist" }

type gistFile struct {
	Content string `json:"content"`
}

type gistUpdate struct {
	Files map[string]gistFile `json:"files"`
}

func (g *GistClient) Publish(ctx context.Context, calendar string) error {
	if g.GistID == "" || g.HTTP == nil {
		return fmt.Errorf("gist id and token: %w", ErrNotConfigured)
	}
	body, err := json.Marshal(gistUpdate{Files: map[string]gistFile{g.Filename: {Content: calendar}}})
	if err != nil {
		return fmt.Errorf("failed to marshal gist update: %w", err)
	}

	endpoint := g.BaseURL + "/gists/" + url.PathEscape(g.GistID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("gist update failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	return nil
}
