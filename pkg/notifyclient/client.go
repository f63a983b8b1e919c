package notifyclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"kickspot/internal/model"
)

var ErrUnauthorized = errors.New("notifyclient: unauthorized")

// APIError is a non-2xx response. The message comes from the {"error": ...} body.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("notifyclient: status %d: %s", e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// ListResponse mirrors GET /api/v1/notifications.
type ListResponse struct {
	Notifications []*model.Notification `json:"notifications"`
	Page          int                   `json:"page"`
	PageSize      int                   `json:"page_size"`
	Total         int                   `json:"total"`
	UnreadCount   int                   `json:"unread_count"`
	LatestID      int64                 `json:"latest_id"`
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithBackoff sets the reconnect delay bounds.
func WithBackoff(lo, hi time.Duration) Option {
	return func(c *Client) {
		if lo > 0 {
			c.minBackoff = lo
		}
		if hi >= c.minBackoff {
			c.maxBackoff = hi
		}
	}
}

// WithPageSize sets how many notifications a reconcile fetches.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// Client talks to the notification service on behalf of one authenticated principal.
type Client struct {
	baseURL    string
	token      string
	http       *http.Client
	dialer     *websocket.Dialer
	pageSize   int
	minBackoff time.Duration
	maxBackoff time.Duration
	logger     *zap.Logger
}

func New(baseURL, token string, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		http:       &http.Client{Timeout: 30 * time.Second},
		dialer:     &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		pageSize:   model.DefaultPageSize,
		minBackoff: 500 * time.Millisecond,
		maxBackoff: 30 * time.Second,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) List(ctx context.Context, p model.Page) (*ListResponse, error) {
	p = p.Normalize()
	q := url.Values{}
	q.Set("page", strconv.Itoa(p.Page))
	q.Set("page_size", strconv.Itoa(p.PageSize))
	if p.UnreadOnly {
		q.Set("unread_only", "true")
	}

	var out ListResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/notifications?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var out struct {
		UnreadCount int `json:"unread_count"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/notifications/unread-count", nil, &out); err != nil {
		return 0, err
	}
	return out.UnreadCount, nil
}

func (c *Client) MarkRead(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodPatch, fmt.Sprintf("/api/v1/notifications/%d/read", id), nil, nil)
}

func (c *Client) MarkAllRead(ctx context.Context) (int64, error) {
	var out struct {
		Updated int64 `json:"updated"`
	}
	if err := c.doJSON(ctx, http.MethodPatch, "/api/v1/notifications/mark-all-read", nil, &out); err != nil {
		return 0, err
	}
	return out.Updated, nil
}

func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/api/v1/notifications/%d", id), nil, nil)
}

// Subscribe keeps inbox in sync until ctx ends. Every (re)connect waits for the
// joined frame, then reconciles over REST while pushes are buffered. Dropped
// connections are retried with exponential backoff; an auth failure is returned.
func (c *Client) Subscribe(ctx context.Context, inbox *Inbox) error {
	attempt := 0
	for {
		reconciled, err := c.session(ctx, inbox)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrUnauthorized) {
			return err
		}
		if reconciled {
			attempt = 0
		}

		delay := c.backoff(attempt)
		attempt++
		c.logger.Warn("Notification stream lost, reconnecting",
			zap.Duration("delay", delay),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

type wireFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (c *Client) session(ctx context.Context, inbox *Inbox) (bool, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.token)

	ws, resp, err := c.dialer.DialContext(ctx, c.streamURL(), header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return false, ErrUnauthorized
		}
		return false, fmt.Errorf("dialing notification stream: %w", err)
	}
	defer ws.Close()
	stop := context.AfterFunc(ctx, func() { ws.Close() })
	defer stop()

	var first wireFrame
	if err := ws.ReadJSON(&first); err != nil {
		return false, fmt.Errorf("waiting for joined frame: %w", err)
	}
	if first.Event != "joined" {
		return false, fmt.Errorf("unexpected first frame %q", first.Event)
	}

	inbox.Invalidate()
	readErr := make(chan error, 1)
	go func() { readErr <- c.readFrames(ws, inbox) }()

	page, err := c.List(ctx, model.Page{Page: 1, PageSize: c.pageSize})
	if err != nil {
		ws.Close()
		<-readErr
		return false, fmt.Errorf("reconciling: %w", err)
	}
	inbox.Reconcile(page.Notifications, page.UnreadCount, page.LatestID)

	return true, <-readErr
}

func (c *Client) readFrames(ws *websocket.Conn, inbox *Inbox) error {
	for {
		var f wireFrame
		if err := ws.ReadJSON(&f); err != nil {
			return err
		}
		if f.Event != "notification" {
			continue
		}
		var n model.Notification
		if err := json.Unmarshal(f.Data, &n); err != nil {
			c.logger.Warn("Skipping malformed notification frame", zap.Error(err))
			continue
		}
		inbox.Push(&n)
	}
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.minBackoff
	for i := 0; i < attempt && d < c.maxBackoff; i++ {
		d *= 2
	}
	return min(d, c.maxBackoff)
}

func (c *Client) streamURL() string {
	u := c.baseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/api/v1/notifications/ws"
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(raw, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(raw))
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
