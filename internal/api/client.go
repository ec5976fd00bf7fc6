// Package api is the client for the campus REST API that owns locations,
// events, bookmarks, posts and accounts.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"chizu/campus-client/internal/model"
)

// maxErrorBody caps how much of a failed response is read for its message.
const maxErrorBody = 64 * 1024

// Observer is notified after every request with the endpoint label, the
// response status (zero on transport failure) and the elapsed time.
type Observer func(endpoint string, status int, elapsed time.Duration)

// Client talks to the campus API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	observe    Observer
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) {
		client.logger = logger
	}
}

// WithObserver installs a per-request callback.
func WithObserver(fn Observer) ClientOption {
	return func(client *Client) {
		client.observe = fn
	}
}

// NewClient creates a client rooted at baseURL, e.g.
// https://fivec-maps.onrender.com/api/v1.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Locations lists every point of interest.
func (c *Client) Locations(ctx context.Context) ([]model.Location, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "list_locations", http.MethodGet, "/locations", nil, &raw); err != nil {
		return nil, err
	}
	var locs []model.Location
	if err := decodeList(raw, "locations", &locs); err != nil {
		return nil, &Error{Op: "list_locations", Message: err.Error(), Err: err}
	}
	return locs, nil
}

// LocationDetail fetches a location with its discussion posts.
func (c *Client) LocationDetail(ctx context.Context, id int64) (model.LocationDetail, error) {
	var detail model.LocationDetail
	err := c.do(ctx, "get_location", http.MethodGet, "/locations/"+itoa(id), nil, &detail)
	return detail, err
}

// CreatePost attaches a post to a location.
func (c *Client) CreatePost(ctx context.Context, locationID int64, content string, postType model.PostType) (model.Post, error) {
	body := map[string]any{
		"location_id": locationID,
		"content":     content,
		"post_type":   postType,
	}
	var post model.Post
	err := c.do(ctx, "create_post", http.MethodPost, "/locations/"+itoa(locationID)+"/posts", body, &post)
	return post, err
}

// Events lists all events regardless of status.
func (c *Client) Events(ctx context.Context) ([]model.Event, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "list_events", http.MethodGet, "/events", nil, &raw); err != nil {
		return nil, err
	}
	var events []model.Event
	if err := decodeList(raw, "events", &events); err != nil {
		return nil, &Error{Op: "list_events", Message: err.Error(), Err: err}
	}
	return events, nil
}

// CreateEvent submits a new event.
func (c *Client) CreateEvent(ctx context.Context, draft model.EventDraft) (model.Event, error) {
	var ev model.Event
	err := c.do(ctx, "create_event", http.MethodPost, "/events", draft, &ev)
	return ev, err
}

// SetEventStatus moves an event through the approval workflow.
func (c *Client) SetEventStatus(ctx context.Context, id int64, status model.Status) error {
	body := map[string]model.Status{"status": status}
	return c.do(ctx, "patch_event", http.MethodPatch, "/events/"+itoa(id), body, nil)
}

// DeleteEvent removes an event, which is how a pending event is rejected.
func (c *Client) DeleteEvent(ctx context.Context, id int64) error {
	return c.do(ctx, "delete_event", http.MethodDelete, "/events/"+itoa(id), nil, nil)
}

// Starred lists a user's bookmarks.
func (c *Client) Starred(ctx context.Context, userID int64) ([]model.StarredItem, error) {
	q := url.Values{"user_id": {itoa(userID)}}
	var raw json.RawMessage
	if err := c.do(ctx, "list_starred", http.MethodGet, "/starred?"+q.Encode(), nil, &raw); err != nil {
		return nil, err
	}
	var items []model.StarredItem
	if err := decodeList(raw, "starred", &items); err != nil {
		return nil, &Error{Op: "list_starred", Message: err.Error(), Err: err}
	}
	return items, nil
}

// Star bookmarks an event or location for a user.
func (c *Client) Star(ctx context.Context, userID int64, itemType model.ItemType, itemID int64) (model.StarredItem, error) {
	body := map[string]any{
		"user_id":   userID,
		"item_type": itemType,
		"item_id":   itemID,
	}
	var item model.StarredItem
	err := c.do(ctx, "create_starred", http.MethodPost, "/starred", body, &item)
	return item, err
}

// Unstar removes a bookmark by its own id.
func (c *Client) Unstar(ctx context.Context, id int64) error {
	return c.do(ctx, "delete_starred", http.MethodDelete, "/starred/"+itoa(id), nil, nil)
}

// PendingPosts lists posts awaiting moderation.
func (c *Client) PendingPosts(ctx context.Context) ([]model.Post, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "list_pending_posts", http.MethodGet, "/posts/pending", nil, &raw); err != nil {
		return nil, err
	}
	var posts []model.Post
	if err := decodeList(raw, "posts", &posts); err != nil {
		return nil, &Error{Op: "list_pending_posts", Message: err.Error(), Err: err}
	}
	return posts, nil
}

// ApprovePost publishes a pending post.
func (c *Client) ApprovePost(ctx context.Context, id int64) error {
	return c.do(ctx, "approve_post", http.MethodPatch, "/posts/"+itoa(id)+"/approve", nil, nil)
}

// RejectPost deletes a post.
func (c *Client) RejectPost(ctx context.Context, id int64) error {
	return c.do(ctx, "delete_post", http.MethodDelete, "/posts/"+itoa(id), nil, nil)
}

// Colleges lists the consortium's institutions.
func (c *Client) Colleges(ctx context.Context) ([]model.College, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "list_colleges", http.MethodGet, "/colleges", nil, &raw); err != nil {
		return nil, err
	}
	var colleges []model.College
	if err := decodeList(raw, "colleges", &colleges); err != nil {
		return nil, &Error{Op: "list_colleges", Message: err.Error(), Err: err}
	}
	return colleges, nil
}

func (c *Client) do(ctx context.Context, endpoint, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", endpoint, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", endpoint, err)
	}

	requestID := uuid.New().String()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	startedAt := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.notify(endpoint, 0, startedAt)
		c.logger.Debug("api request failed", "endpoint", endpoint, "request_id", requestID, "error", err)
		return &Error{Op: endpoint, Message: err.Error(), RequestID: requestID, Err: err}
	}
	defer resp.Body.Close()
	c.notify(endpoint, resp.StatusCode, startedAt)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{
			Op:        endpoint,
			Status:    resp.StatusCode,
			Message:   errorMessage(resp),
			RequestID: requestID,
		}
		c.logger.Debug("api request rejected",
			"endpoint", endpoint,
			"request_id", requestID,
			"status", resp.StatusCode,
			"message", apiErr.Message)
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Op: endpoint, Status: resp.StatusCode, Message: "decode response: " + err.Error(), RequestID: requestID, Err: err}
	}
	return nil
}

func (c *Client) notify(endpoint string, status int, startedAt time.Time) {
	if c.observe != nil {
		c.observe(endpoint, status, time.Since(startedAt))
	}
}

func errorMessage(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	if text := strings.TrimSpace(string(data)); text != "" && len(text) < 200 {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

// decodeList accepts either a bare JSON array or an object carrying the
// array under key.
func decodeList(raw json.RawMessage, key string, out any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] == '[' {
		return json.Unmarshal(raw, out)
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	inner, ok := wrapper[key]
	if !ok {
		return fmt.Errorf("decode %s: response has no %q field", key, key)
	}
	return json.Unmarshal(inner, out)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
