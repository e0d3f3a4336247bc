package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) (string, <-chan string) {
	t.Helper()
	received := make(chan string, 16)

	router := NewRouter()
	router.Register("test/ping", Notification(func(p *ping) {
		received <- p.Value
	}))

	srv := httptest.NewServer(NewServer(router))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http"), received
}

func waitValue(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for notification")
		return ""
	}
}

func TestClientNotify(t *testing.T) {
	url, received := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Dial(ctx, url)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Notify(ctx, "test/ping", ping{Value: "one"}))
	require.NoError(t, client.Notify(ctx, "test/ping", ping{Value: "two"}))

	// Messages on one connection are handled in order
	assert.Equal(t, "one", waitValue(t, received))
	assert.Equal(t, "two", waitValue(t, received))
}

// lockedBuffer collects log output written from server goroutines
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) lines() []map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []map[string]interface{}
	for _, line := range bytes.Split(bytes.TrimSpace(b.buf.Bytes()), []byte("\n")) {
		var entry map[string]interface{}
		if json.Unmarshal(line, &entry) == nil {
			out = append(out, entry)
		}
	}
	return out
}

func TestServerLogsInvalidJSON(t *testing.T) {
	logs := &lockedBuffer{}
	saved := log.Logger
	log.Logger = zerolog.New(logs)
	defer func() { log.Logger = saved }()

	url, _ := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("{not json")))
	var resp Response
	require.NoError(t, wsjson.Read(ctx, conn, &resp))
	require.NotNil(t, resp.Error)

	var found map[string]interface{}
	for _, entry := range logs.lines() {
		if entry["message"] == "Received invalid JSON from broker" {
			found = entry
		}
	}
	require.NotNil(t, found, "no invalid JSON log line")
	assert.Equal(t, "warn", found["level"])
	assert.Equal(t, "rpc", found["component"])
	assert.NotEmpty(t, found["remote"])
	assert.Equal(t, float64(len("{not json")), found["size"])
}

func TestServerReplies(t *testing.T) {
	url, received := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	t.Run("parse error keeps the connection open", func(t *testing.T) {
		require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("{not json")))

		var resp Response
		require.NoError(t, wsjson.Read(ctx, conn, &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, CodeParseError, resp.Error.Code)
	})

	t.Run("request with id", func(t *testing.T) {
		require.NoError(t, conn.Write(ctx, websocket.MessageText,
			[]byte(`{"jsonrpc":"2.0","id":7,"method":"test/ping","params":{"value":"req"}}`)))

		var resp Response
		require.NoError(t, wsjson.Read(ctx, conn, &resp))
		assert.Nil(t, resp.Error)
		assert.JSONEq(t, `7`, string(resp.ID))
		assert.Equal(t, "req", waitValue(t, received))
	})

	t.Run("batch", func(t *testing.T) {
		require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`[
			{"jsonrpc":"2.0","method":"test/ping","params":{"value":"b1"}},
			{"jsonrpc":"2.0","id":8,"method":"test/missing"}
		]`)))

		var resp []Response
		require.NoError(t, wsjson.Read(ctx, conn, &resp))
		require.Len(t, resp, 1)
		require.NotNil(t, resp[0].Error)
		assert.Equal(t, CodeMethodNotFound, resp[0].Error.Code)
		assert.Equal(t, "b1", waitValue(t, received))
	})

	t.Run("empty batch", func(t *testing.T) {
		require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`[]`)))

		var resp Response
		require.NoError(t, wsjson.Read(ctx, conn, &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, CodeInvalidRequest, resp.Error.Code)
	})
}

func TestServerReadLimit(t *testing.T) {
	received := make(chan string, 1)
	router := NewRouter()
	router.Register("test/ping", Notification(func(p *ping) { received <- p.Value }))

	server := NewServer(router)
	server.SetReadLimit(64)
	srv := httptest.NewServer(server)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"))
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Notify(ctx, "test/ping", ping{Value: strings.Repeat("x", 256)}))

	select {
	case <-received:
		t.Fatal("oversized message was dispatched")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestDialFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := Dial(ctx, "ws://127.0.0.1:1/brokers")
	assert.Error(t, err)
}
