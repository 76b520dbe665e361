package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperjump/titlenorm/internal/models"
)

// Client talks to a running titlenorm server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 2 * time.Minute},
	}
}

// Match resolves queries on the server.
func (c *Client) Match(ctx context.Context, req *models.MatchRequest) (*models.MatchResponse, error) {
	var out models.MatchResponse
	if err := c.postJSON(ctx, "/api/v1/match", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MatchFile uploads a document and resolves the queries extracted from it.
func (c *Client) MatchFile(ctx context.Context, path string, record bool) (*models.MatchResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, err
	}
	if record {
		if err := mw.WriteField("record", "true"); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/match/file", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	var out models.MatchResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Standardize returns "<title> - <classification>" per query.
func (c *Client) Standardize(ctx context.Context, queries []string) ([]string, error) {
	var out models.StandardizeResponse
	if err := c.postJSON(ctx, "/api/v1/standardize", models.MatchRequest{Queries: queries}, &out); err != nil {
		return nil, err
	}
	return out.Values, nil
}

// Lookup returns the classification of a title.
func (c *Client) Lookup(ctx context.Context, title string) (*models.LookupResponse, error) {
	var out models.LookupResponse
	if err := c.get(ctx, "/api/v1/lookup?title="+url.QueryEscape(title), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Reload asks the server to re-read its catalog. With force the index is rebuilt even if
// the cached one is current.
func (c *Client) Reload(ctx context.Context, force bool) (*models.IndexStatus, error) {
	path := "/api/v1/index/reload"
	if force {
		path += "?force=true"
	}
	var out models.IndexStatus
	if err := c.postJSON(ctx, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status returns the server's index status.
func (c *Client) Status(ctx context.Context) (*models.IndexStatus, error) {
	var out models.IndexStatus
	if err := c.get(ctx, "/api/v1/status", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Runs lists recorded runs, newest first.
func (c *Client) Runs(ctx context.Context, offset, limit int) (*models.RunList, error) {
	var out models.RunList
	if err := c.get(ctx, fmt.Sprintf("/api/v1/runs?offset=%d&limit=%d", offset, limit), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Run returns one recorded run with its results.
func (c *Client) Run(ctx context.Context, id string) (*models.MatchRun, error) {
	var out models.MatchRun
	if err := c.get(ctx, "/api/v1/runs/"+url.PathEscape(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, in, out interface{}) error {
	var body io.Reader = http.NoBody
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
