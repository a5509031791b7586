// Package nats adapts nats.go to the remote session transport. MQTT
// style topics are mapped onto NATS subjects.
package nats

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

type Config struct {
	URL      string
	Name     string
	Username string
	Password string
}

// Client is a remote.Transport over NATS core pub/sub.
type Client struct {
	cfg Config
	log zerolog.Logger

	mu   sync.Mutex
	conn *nats.Conn
	subs []*nats.Subscription
}

func New(cfg Config, log zerolog.Logger) *Client {
	return &Client{cfg: cfg, log: log}
}

// Subject converts a slash separated topic into a NATS subject.
func Subject(topic string) string {
	return strings.ReplaceAll(strings.Trim(topic, "/"), "/", ".")
}

func (c *Client) Connect(ctx context.Context) error {
	timeout := 5 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		timeout = time.Until(dl)
	}
	if timeout <= 0 {
		return context.DeadlineExceeded
	}
	opts := []nats.Option{
		nats.Name(c.cfg.Name),
		nats.Timeout(timeout),
		nats.NoReconnect(),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				c.log.Warn().Err(err).Msg("nats disconnected")
			}
		}),
	}
	if c.cfg.Username != "" {
		opts = append(opts, nats.UserInfo(c.cfg.Username, c.cfg.Password))
	}
	conn, err := nats.Connect(c.cfg.URL, opts...)
	if err != nil {
		return fmt.Errorf("connect %s: %w", c.cfg.URL, err)
	}
	c.mu.Lock()
	c.conn = conn
	c.subs = nil
	c.mu.Unlock()
	return nil
}

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && c.conn.IsConnected()
}

func (c *Client) Subscribe(topic string, fn func(payload []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nats.ErrConnectionClosed
	}
	sub, err := c.conn.Subscribe(Subject(topic), func(msg *nats.Msg) {
		fn(msg.Data)
	})
	if err != nil {
		return err
	}
	c.subs = append(c.subs, sub)
	return nil
}

func (c *Client) Publish(topic string, payload []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nats.ErrConnectionClosed
	}
	return conn.Publish(Subject(topic), payload)
}

func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return
	}
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.conn.Close()
	c.conn = nil
	c.subs = nil
}
