// Package mqtt adapts paho.mqtt.golang to the remote session transport.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrConnectTimeout = errors.New("mqtt connect timed out")
	ErrOpTimeout      = errors.New("mqtt operation timed out")
)

// Commands and telemetry are sent at most once.
const qos byte = 0

// opTimeout bounds subscribe and publish so a stalled broker cannot hold
// the caller.
const opTimeout = 2 * time.Second

type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	// UniqueClientID appends a random suffix so several simulated locks
	// can share one broker.
	UniqueClientID bool
}

// Client is a remote.Transport over MQTT. Auto-reconnect is disabled;
// the session manager decides when to reconnect.
type Client struct {
	cfg    Config
	log    zerolog.Logger
	client paho.Client
}

func New(cfg Config, log zerolog.Logger) *Client {
	clientID := cfg.ClientID
	if cfg.UniqueClientID {
		clientID = fmt.Sprintf("%s-%s", cfg.ClientID, uuid.New().String()[:8])
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(false)
	opts.SetCleanSession(true)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOrderMatters(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	c := &Client{cfg: cfg, log: log}
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		c.log.Warn().Err(err).Msg("mqtt connection lost")
	})
	c.client = paho.NewClient(opts)
	return c
}

func (c *Client) Connect(ctx context.Context) error {
	tok := c.client.Connect()
	if err := wait(ctx, tok); err != nil {
		return fmt.Errorf("connect %s: %w", c.cfg.Broker, err)
	}
	return nil
}

func (c *Client) Connected() bool { return c.client.IsConnectionOpen() }

func (c *Client) Subscribe(topic string, fn func(payload []byte)) error {
	tok := c.client.Subscribe(topic, qos, func(_ paho.Client, msg paho.Message) {
		fn(msg.Payload())
	})
	return waitFor(tok, opTimeout)
}

func (c *Client) Publish(topic string, payload []byte) error {
	tok := c.client.Publish(topic, qos, false, payload)
	return waitFor(tok, opTimeout)
}

func (c *Client) Disconnect() {
	if c.client.IsConnected() {
		c.client.Disconnect(250)
	}
}

func wait(ctx context.Context, tok paho.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ErrConnectTimeout
	}
}

// waitFor bounds a subscribe or publish round trip.
func waitFor(tok paho.Token, timeout time.Duration) error {
	if !tok.WaitTimeout(timeout) {
		return ErrOpTimeout
	}
	return tok.Error()
}
