package mqtt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/celerix-dev/celerix-lock/internal/logger"
)

func TestConnectUnreachableBroker(t *testing.T) {
	c := New(Config{Broker: "tcp://127.0.0.1:1", ClientID: "test", UniqueClientID: true}, logger.NewTestLogger())
	assert.False(t, c.Connected())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.Error(t, c.Connect(ctx))
	assert.False(t, c.Connected())
	c.Disconnect()
}

// stalledToken never completes.
type stalledToken struct{}

func (stalledToken) Wait() bool                       { select {} }
func (stalledToken) WaitTimeout(d time.Duration) bool { time.Sleep(d); return false }
func (stalledToken) Done() <-chan struct{}            { return make(chan struct{}) }
func (stalledToken) Error() error                     { return nil }

func TestWaitForBoundsStalledOperation(t *testing.T) {
	start := time.Now()
	err := waitFor(stalledToken{}, 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrOpTimeout)
	assert.Less(t, time.Since(start), time.Second)
}
