// Package mcpclient implements a JSON-RPC-2.0-over-HTTP client for MCP
// (Model Context Protocol) servers whose responses arrive framed as a single
// Server-Sent-Event. It performs the initialize handshake, tools/list, and
// tools/call, with capped exponential-backoff retries.
package mcpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taipm/evalrouter/internal/apierrors"
	"github.com/taipm/evalrouter/internal/logging"
	"github.com/taipm/evalrouter/internal/ratelimit"
	"github.com/taipm/evalrouter/internal/sse"
)

// ToolResponse is the MCPToolResponse from the data model: an ordered list of
// content parts plus an error flag.
type ToolResponse struct {
	Content []map[string]interface{}
	IsError bool
}

// Client is a single MCP server connection. Session id and the initialized
// flag are its only mutable state, written exclusively from
// InitializeSession and Close, per the spec's shared-resource policy.
type Client struct {
	serverURL  string
	httpClient *http.Client
	maxRetries int
	limiter    *ratelimit.Limiter
	logger     logging.Logger
	redis      *redis.Client // optional session-state mirror

	mu          sync.Mutex
	sessionID   string
	initialized bool
}

// Option configures optional Client behavior.
type Option func(*Client)

// WithRateLimiter attaches an outbound throttle keyed by server URL.
func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithLogger attaches a structured logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithRedis attaches a go-redis client used to mirror session state
// (session id, initialized flag) keyed by server URL, so a restarted process
// can skip re-initializing a session the remote server still considers live.
// A cache miss or Redis outage is not fatal: initialize_session is idempotent
// and simply re-runs the handshake.
func WithRedis(r *redis.Client) Option {
	return func(c *Client) { c.redis = r }
}

// New constructs a Client for the given server URL.
func New(serverURL string, timeout time.Duration, maxRetries int, opts ...Option) *Client {
	c := &Client{
		serverURL:  strings.TrimSuffix(serverURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		logger:     logging.Noop{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) endpoint() string {
	return c.serverURL + endpointPath
}

func (c *Client) redisKey() string {
	return "mcpclient:session:" + c.serverURL
}

func (c *Client) throttle(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx, c.serverURL)
}

// InitializeSession performs the MCP handshake: POST initialize, capture the
// session id, then POST the initialized notification. Idempotent — a second
// call while already initialized is a no-op.
func (c *Client) InitializeSession(ctx context.Context) error {
	c.mu.Lock()
	already := c.initialized
	c.mu.Unlock()
	if already {
		return nil
	}

	if c.redis != nil {
		if sid, err := c.redis.Get(ctx, c.redisKey()).Result(); err == nil && sid != "" {
			c.mu.Lock()
			c.sessionID = sid
			c.initialized = true
			c.mu.Unlock()
			return nil
		}
	}

	if err := c.throttle(ctx); err != nil {
		return err
	}

	initReq := map[string]interface{}{
		"jsonrpc": jsonrpcVersion,
		"id":      defaultRequestID,
		"method":  methodInitialize,
		"params": map[string]interface{}{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]interface{}{},
			"clientInfo": map[string]interface{}{
				"name":    clientName,
				"version": clientVersion,
			},
		},
	}

	resp, body, err := c.post(ctx, initReq, nil)
	if err != nil {
		return apierrors.MCPConnection(c.serverURL, err.Error(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return apierrors.MCPProtocol(methodInitialize,
			fmt.Sprintf("failed to initialize MCP session: %d", resp.StatusCode),
			map[string]interface{}{"status": resp.StatusCode})
	}

	sessionID := resp.Header.Get(headerSessionID)

	success, result, errMsg := sse.ParseMCPResult(string(body))
	if !success {
		resultMap, _ := result.(map[string]interface{})
		return apierrors.MCPProtocol(methodInitialize, "MCP initialization error: "+errMsg, resultMap)
	}

	c.mu.Lock()
	if sessionID != "" {
		c.sessionID = sessionID
	}
	c.mu.Unlock()

	if err := c.sendInitializedNotification(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	c.initialized = true
	sid := c.sessionID
	c.mu.Unlock()

	if c.redis != nil && sid != "" {
		c.redis.Set(ctx, c.redisKey(), sid, time.Hour)
	}

	c.logger.Info(ctx, "mcp session initialized", logging.F("server_url", c.serverURL), logging.F("session_id", sid))
	return nil
}

func (c *Client) sendInitializedNotification(ctx context.Context) error {
	notification := map[string]interface{}{
		"jsonrpc": jsonrpcVersion,
		"method":  methodInitialized,
	}

	resp, _, err := c.post(ctx, notification, c.sessionHeaders())
	if err != nil {
		return apierrors.MCPConnection(c.serverURL, err.Error(), err)
	}
	defer resp.Body.Close()

	if !notificationSuccessCodes[resp.StatusCode] {
		return apierrors.MCPProtocol(methodInitialized,
			fmt.Sprintf("failed to send initialized notification: %d", resp.StatusCode),
			map[string]interface{}{"status": resp.StatusCode})
	}
	return nil
}

func (c *Client) sessionHeaders() map[string]string {
	c.mu.Lock()
	sid := c.sessionID
	c.mu.Unlock()

	headers := map[string]string{headerAccept: acceptSSE}
	if sid != "" {
		headers[headerSessionID] = sid
	}
	return headers
}

func (c *Client) post(ctx context.Context, payload map[string]interface{}, headers map[string]string) (*http.Response, []byte, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(buf))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerAccept, acceptSSE)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return resp, nil, err
	}
	// Re-wrap body so callers that defer resp.Body.Close() stay valid.
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, body, nil
}

// HealthCheck reports whether the server is reachable. A GET that the server
// legitimately refuses (400/405/406) still counts as healthy — it proves the
// process is alive and answering.
func (c *Client) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(), nil)
	if err != nil {
		return false
	}
	req.Header.Set(headerAccept, acceptEventStream)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn(ctx, "mcp health check failed", logging.F("error", err.Error()))
		return false
	}
	defer resp.Body.Close()
	return healthyStatusCodes[resp.StatusCode]
}

// ListTools returns the tools advertised by the server, retrying transient
// failures with capped exponential backoff. Exhausting retries returns an
// empty list rather than an error.
func (c *Client) ListTools(ctx context.Context) []map[string]interface{} {
	if err := c.InitializeSession(ctx); err != nil {
		c.logger.Warn(ctx, "list_tools: initialize failed", logging.F("error", err.Error()))
		return nil
	}

	request := map[string]interface{}{
		"jsonrpc": jsonrpcVersion,
		"id":      defaultRequestID,
		"method":  methodListTools,
		"params":  map[string]interface{}{},
	}

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.throttle(ctx); err != nil {
			return nil
		}

		resp, body, err := c.post(ctx, request, c.sessionHeaders())
		if err == nil {
			defer resp.Body.Close()
			if resp.StatusCode == 200 {
				success, result, errMsg := sse.ParseMCPResult(string(body))
				if success {
					if resultMap, ok := result.(map[string]interface{}); ok {
						if tools, ok := resultMap["tools"].([]interface{}); ok {
							out := make([]map[string]interface{}, 0, len(tools))
							for _, t := range tools {
								if tm, ok := t.(map[string]interface{}); ok {
									out = append(out, tm)
								}
							}
							return out
						}
					}
					return nil
				}
				c.logger.Error(ctx, "mcp error listing tools", logging.F("error", errMsg))
				return nil
			}
		}

		if attempt < c.maxRetries {
			backoffSleep(ctx, attempt)
		}
	}
	return nil
}

// CallTool invokes a tool and returns its response, retrying transient
// failures with capped exponential backoff. After exhausting retries it
// returns a response with IsError set rather than an error, per the spec's
// local-recovery rule for the MCP client.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]interface{}) (*ToolResponse, error) {
	if err := c.InitializeSession(ctx); err != nil {
		return nil, err
	}

	request := map[string]interface{}{
		"jsonrpc": jsonrpcVersion,
		"id":      defaultRequestID,
		"method":  methodCallTool,
		"params": map[string]interface{}{
			"name":      name,
			"arguments": arguments,
		},
	}

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.throttle(ctx); err != nil {
			return nil, err
		}

		result, ok := c.tryCallTool(ctx, name, request)
		if ok {
			return result, nil
		}

		if attempt < c.maxRetries {
			backoffSleep(ctx, attempt)
		}
	}

	return &ToolResponse{
		IsError: true,
		Content: []map[string]interface{}{
			{"type": "text", "text": fmt.Sprintf("Error: failed to call tool %q after %d attempts", name, c.maxRetries)},
		},
	}, nil
}

func (c *Client) tryCallTool(ctx context.Context, name string, request map[string]interface{}) (*ToolResponse, bool) {
	resp, body, err := c.post(ctx, request, c.sessionHeaders())
	if err != nil {
		c.logger.Warn(ctx, "mcp tool call transport error", logging.F("tool", name), logging.F("error", err.Error()))
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		c.logger.Warn(ctx, "mcp tool call http error", logging.F("tool", name), logging.F("status", resp.StatusCode))
		return nil, false
	}

	success, result, errMsg := sse.ParseMCPResult(string(body))
	if success {
		content := []map[string]interface{}{}
		if resultMap, ok := result.(map[string]interface{}); ok {
			if rawContent, ok := resultMap["content"].([]interface{}); ok {
				for _, part := range rawContent {
					if pm, ok := part.(map[string]interface{}); ok {
						content = append(content, pm)
					}
				}
			}
		}
		return &ToolResponse{Content: content, IsError: false}, true
	}

	c.logger.Error(ctx, "mcp tool call error", logging.F("tool", name), logging.F("error", errMsg))
	return &ToolResponse{
		IsError: true,
		Content: []map[string]interface{}{{"type": "text", "text": "Error: " + errMsg}},
	}, true
}

// backoffSleep waits min(2^(attempt-1), 60) seconds, matching the capped
// exponential backoff formula from spec §5.
func backoffSleep(ctx context.Context, attempt int) {
	seconds := math.Min(math.Pow(2, float64(attempt-1)), 60)
	delay := time.Duration(seconds * float64(time.Second))
	select {
	case <-time.After(delay):
	case <-ctx.Done():
	}
}

// Close marks the client as uninitialized. Safe to call multiple times.
func (c *Client) Close(ctx context.Context) {
	c.mu.Lock()
	c.initialized = false
	c.sessionID = ""
	c.mu.Unlock()
	if c.redis != nil {
		c.redis.Del(ctx, c.redisKey())
	}
}
