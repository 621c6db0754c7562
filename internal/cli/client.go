package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/notecanvas/internal/models"
)

// Client calls a running notecanvas server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(b, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(b))
		}
		return &APIError{StatusCode: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Related posts a related-notes query.
func (c *Client) Related(ctx context.Context, query *models.RelatedQuery) (*models.RelatedResponse, error) {
	var out models.RelatedResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/related", query, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// NoteRelated returns notes related to the stored note id.
func (c *Client) NoteRelated(ctx context.Context, id string, k int) (*models.RelatedResponse, error) {
	path := "/api/v1/notes/" + url.PathEscape(id) + "/related"
	if k > 0 {
		path += "?k=" + strconv.Itoa(k)
	}
	var out models.RelatedResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddNote stores a note.
func (c *Client) AddNote(ctx context.Context, input *models.NoteInput) (*models.ContentItem, error) {
	var out models.ContentItem
	if err := c.do(ctx, http.MethodPost, "/api/v1/notes", input, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListNotes returns a page of notes, newest first.
func (c *Client) ListNotes(ctx context.Context, offset, limit int) (*models.NoteList, error) {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	var out models.NoteList
	if err := c.do(ctx, http.MethodGet, "/api/v1/notes?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchNotes runs a keyword search over stored notes.
func (c *Client) SearchNotes(ctx context.Context, query string, limit int, fuzzy bool) (*models.NoteList, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(limit))
	if fuzzy {
		q.Set("fuzzy", "true")
	}
	var out models.NoteList
	if err := c.do(ctx, http.MethodGet, "/api/v1/notes/search?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteNote removes a stored note.
func (c *Client) DeleteNote(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/notes/"+url.PathEscape(id), nil, nil)
}

// Status returns server status.
func (c *Client) Status(ctx context.Context) (*models.StatusResponse, error) {
	var out models.StatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
