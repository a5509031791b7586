package uart

import (
	"bufio"
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celerix-dev/celerix-lock/internal/logger"
	"github.com/celerix-dev/celerix-lock/pkg/schema"
)

func TestRunDecodesStatusLines(t *testing.T) {
	local, remote := net.Pipe()
	link := New(local, logger.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan schema.VisionStatus, 4)
	done := make(chan error, 1)
	go func() { done <- link.Run(ctx, out) }()

	go func() {
		_, _ = remote.Write([]byte("{\"status\":\"awake\"}\nnot json\n{\"name\":\"x\"}\n{\"status\":\"match\",\"name\":\"Alice\"}\n"))
		_ = remote.Close()
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the peer closed")
	}
	close(out)

	var got []schema.VisionStatus
	for st := range out {
		got = append(got, st)
	}
	assert.Equal(t, []schema.VisionStatus{
		{Status: schema.VisionAwake},
		{Status: schema.VisionMatch, Name: "Alice"},
	}, got)
}

func TestSendWritesOneLine(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	link := New(local, logger.NewTestLogger())
	defer link.Close()

	go func() {
		_ = link.Send(schema.VisionCommand{Cmd: schema.VisionCmdOn, FaceTimeout: true})
	}()

	line, err := bufio.NewReader(remote).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "{\"cmd\":\"on\",\"face_timeout\":true}\n", line)
}

func TestRunStopsOnCancel(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	link := New(local, logger.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- link.Run(ctx, make(chan schema.VisionStatus)) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run ignored cancellation")
	}
}

func TestOpenTCPBridge(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	link, err := Open("tcp://"+ln.Addr().String(), DefaultBaud, logger.NewTestLogger())
	require.NoError(t, err)
	defer link.Close()

	conn := <-accepted
	defer conn.Close()
	require.NoError(t, link.Send(schema.VisionCommand{Cmd: schema.VisionCmdOn}))
	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "{\"cmd\":\"on\"}\n", line)
}

func TestOpenMissingSerialDevice(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "ttyNONE"), DefaultBaud, logger.NewTestLogger())
	assert.Error(t, err)
}
