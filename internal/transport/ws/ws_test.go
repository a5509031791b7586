package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celerix-dev/celerix-lock/internal/logger"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestInboundFramesReachHandler(t *testing.T) {
	got := make(chan string, 1)
	b := New(func(p []byte) { got <- string(p) }, logger.NewTestLogger())
	srv := httptest.NewServer(b)
	defer srv.Close()

	conn := dial(t, srv)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"status":"ip_ack"}`)))

	select {
	case p := <-got:
		assert.Equal(t, `{"status":"ip_ack"}`, p)
	case <-time.After(2 * time.Second):
		t.Fatal("handler not called")
	}
}

func TestNotifyRetainedForLatePeer(t *testing.T) {
	b := New(nil, logger.NewTestLogger())
	srv := httptest.NewServer(b)
	defer srv.Close()

	require.NoError(t, b.Notify(map[string]string{"status": "received"}))

	conn := dial(t, srv)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"received"}`, string(data))
}

func TestCloseRefusesPeers(t *testing.T) {
	b := New(nil, logger.NewTestLogger())
	srv := httptest.NewServer(b)
	defer srv.Close()

	b.Close()
	assert.ErrorIs(t, b.Notify(map[string]string{"status": "x"}), ErrClosed)

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusGone, resp.StatusCode)
}
