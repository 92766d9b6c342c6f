// Package client talks to a chat backend over HTTP. It provides the
// Transport and SessionService used by session.Controller.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/papercomputeco/agentconsole/pkg/chat/session"
	"github.com/papercomputeco/agentconsole/pkg/logger"
	"github.com/papercomputeco/agentconsole/pkg/storage"
	"github.com/papercomputeco/agentconsole/pkg/utils"
)

const (
	// DefaultChatPath is the streaming chat endpoint.
	DefaultChatPath = "/v1/chat"

	sessionsPath = "/v1/sessions"

	// maxErrorBody bounds how much of a failed response is kept in StatusError.
	maxErrorBody = 512
)

// ErrNoBody is returned when a successful response carries no body.
var ErrNoBody = errors.New("response has no body")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend returned status %d", e.Code)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Code, e.Body)
}

// Config holds configuration for the HTTP client.
type Config struct {
	// BaseURL is the backend URL (e.g., "http://localhost:8081").
	BaseURL string

	// ChatPath is the streaming endpoint. Defaults to DefaultChatPath.
	ChatPath string

	// HTTPClient defaults to a client without a timeout; streams are bounded
	// by the request context instead.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Client implements session.Transport and session.SessionService.
type Client struct {
	baseURL    string
	chatPath   string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, errors.New("client: base URL is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("client: parsing base URL: %w", err)
	}

	c := &Client{
		baseURL:    base,
		chatPath:   cfg.ChatPath,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
	}
	if c.chatPath == "" {
		c.chatPath = DefaultChatPath
	}
	if !strings.HasPrefix(c.chatPath, "/") {
		c.chatPath = "/" + c.chatPath
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.logger == nil {
		c.logger = logger.Nop()
	}

	return c, nil
}

// Open POSTs req to the chat endpoint and returns the event-stream body.
func (c *Client) Open(ctx context.Context, req session.Request) (io.ReadCloser, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	c.logger.Debug("sending chat request",
		"url", c.baseURL+c.chatPath,
		"agent_id", req.VirtualAgentID,
		"session_id", req.SessionID,
	)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.chatPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}

	return resp.Body, nil
}

// CreateSession asks the backend for a new session id.
func (c *Client) CreateSession(ctx context.Context, agentID string) (string, error) {
	var created struct {
		ID string `json:"id"`
	}
	payload := map[string]string{"virtualAgentId": agentID}
	if err := c.doJSON(ctx, http.MethodPost, sessionsPath, payload, &created); err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}
	if created.ID == "" {
		return "", errors.New("creating session: backend returned no id")
	}
	return created.ID, nil
}

// GetSession fetches a session and its messages.
func (c *Client) GetSession(ctx context.Context, id string) (*session.History, error) {
	var history session.History
	if err := c.doJSON(ctx, http.MethodGet, sessionsPath+"/"+url.PathEscape(id), nil, &history); err != nil {
		return nil, err
	}
	return &history, nil
}

// ListSessions lists the sessions of agentID, most recently updated first.
func (c *Client) ListSessions(ctx context.Context, agentID string) ([]storage.SessionSummary, error) {
	path := sessionsPath
	if agentID != "" {
		path += "?" + url.Values{"agent": {agentID}}.Encode()
	}

	var list []storage.SessionSummary
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// do sends req and turns non-2xx responses and missing bodies into errors.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody+1))
		return nil, &StatusError{
			Code: resp.StatusCode,
			Body: utils.Truncate(strings.TrimSpace(string(data)), maxErrorBody),
		}
	}

	if resp.Body == nil || resp.Body == http.NoBody {
		if resp.Body != nil {
			resp.Body.Close()
		}
		return nil, ErrNoBody
	}

	return resp, nil
}

var (
	_ session.Transport      = (*Client)(nil)
	_ session.SessionService = (*Client)(nil)
)
