package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celerix-dev/celerix-lock/internal/logger"
)

func TestFCMPostsTopicMessage(t *testing.T) {
	got := make(chan Message, 1)
	var auth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		var m Message
		_ = json.NewDecoder(r.Body).Decode(&m)
		got <- m
	}))
	defer srv.Close()

	f := NewFCM(srv.URL, "secret", time.Second, func() string { return "u1" }, logger.NewTestLogger())
	f.Notify("Lock Status", "Unlocked by Manual")
	f.Wait()

	require.Len(t, got, 1)
	m := <-got
	assert.Equal(t, "/topics/u1/all", m.To)
	assert.Equal(t, "high", m.Priority)
	assert.Equal(t, Payload{Title: "Lock Status", Body: "Unlocked by Manual"}, m.Notification)
	assert.Equal(t, "key=secret", auth.Load())
}

func TestFCMWithoutUserSendsNothing(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	f := NewFCM(srv.URL, "k", time.Second, func() string { return "" }, logger.NewTestLogger())
	f.Notify("t", "b")
	f.Wait()
	assert.Zero(t, hits.Load())
}

func TestFCMServerErrorIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewFCM(srv.URL, "k", time.Second, func() string { return "u" }, logger.NewTestLogger())
	f.Notify("t", "b")
	f.Wait()
	assert.Error(t, f.send(Message{To: Topic("u")}))
}
