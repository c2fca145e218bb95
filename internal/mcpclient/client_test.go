package mcpclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseFrame(t *testing.T, payload map[string]interface{}) string {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	return "event: message\ndata: " + string(b) + "\n\n"
}

func TestInitializeSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req map[string]interface{}
		json.Unmarshal(body, &req)

		switch req["method"] {
		case "initialize":
			w.Header().Set("mcp-session-id", "sess-123")
			w.WriteHeader(200)
			w.Write([]byte(sseFrame(t, map[string]interface{}{"result": map[string]interface{}{"ok": true}})))
		case "notifications/initialized":
			w.WriteHeader(202)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second, 3)
	err := c.InitializeSession(context.Background())
	require.NoError(t, err)

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.True(t, c.initialized)
	assert.Equal(t, "sess-123", c.sessionID)
}

func TestHealthCheckAcceptsRefusalStatuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(405)
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second, 3)
	assert.True(t, c.HealthCheck(context.Background()))
}

func TestHealthCheckFailsOnUnreachable(t *testing.T) {
	c := New("http://127.0.0.1:1", 1*time.Second, 1)
	assert.False(t, c.HealthCheck(context.Background()))
}

func TestCallToolSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req map[string]interface{}
		json.Unmarshal(body, &req)

		switch req["method"] {
		case "initialize":
			w.WriteHeader(200)
			w.Write([]byte(sseFrame(t, map[string]interface{}{"result": map[string]interface{}{}})))
		case "notifications/initialized":
			w.WriteHeader(200)
		case "tools/call":
			w.WriteHeader(200)
			w.Write([]byte(sseFrame(t, map[string]interface{}{
				"result": map[string]interface{}{
					"content": []interface{}{map[string]interface{}{"type": "text", "text": "hello"}},
				},
			})))
		}
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second, 3)
	resp, err := c.CallTool(context.Background(), "get_person_profile", map[string]interface{}{"username": "alice"})
	require.NoError(t, err)
	assert.False(t, resp.IsError)
	require.Len(t, resp.Content, 1)
	assert.Equal(t, "hello", resp.Content[0]["text"])
}

func TestCallToolExhaustsRetriesWithoutError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req map[string]interface{}
		json.Unmarshal(body, &req)

		switch req["method"] {
		case "initialize":
			w.WriteHeader(200)
			w.Write([]byte(sseFrame(t, map[string]interface{}{"result": map[string]interface{}{}})))
		case "notifications/initialized":
			w.WriteHeader(200)
		case "tools/call":
			w.WriteHeader(500)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second, 2)
	resp, err := c.CallTool(context.Background(), "get_person_profile", nil)
	require.NoError(t, err)
	assert.True(t, resp.IsError)
	assert.Contains(t, resp.Content[0]["text"], "failed to call tool")
}

func TestListToolsReturnsEmptyOnMCPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req map[string]interface{}
		json.Unmarshal(body, &req)

		switch req["method"] {
		case "initialize":
			w.WriteHeader(200)
			w.Write([]byte(sseFrame(t, map[string]interface{}{"result": map[string]interface{}{}})))
		case "notifications/initialized":
			w.WriteHeader(200)
		case "tools/list":
			w.WriteHeader(200)
			w.Write([]byte(sseFrame(t, map[string]interface{}{"error": map[string]interface{}{"message": "boom"}})))
		}
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second, 1)
	tools := c.ListTools(context.Background())
	assert.Empty(t, tools)
}
