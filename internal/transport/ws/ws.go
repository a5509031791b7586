// Package ws bridges the pairing channel onto a single websocket peer.
// Inbound text frames play the role of characteristic writes; Notify
// sends one outbound frame.
package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var ErrClosed = errors.New("pairing bridge closed")

const writeWait = 5 * time.Second

// Bridge serves one peer at a time. A new connection replaces the
// previous one.
type Bridge struct {
	// Handler receives every inbound text frame.
	Handler func(payload []byte)
	// OnPeer is told when a peer connects or goes away.
	OnPeer func(connected bool)

	upgrader websocket.Upgrader
	log      zerolog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	last   []byte
	closed bool
}

func New(handler func([]byte), log zerolog.Logger) *Bridge {
	return &Bridge{
		Handler: handler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: log,
	}
}

func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		http.Error(w, ErrClosed.Error(), http.StatusGone)
		return
	}

	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Error().Err(err).Str("remote_addr", r.RemoteAddr).Msg("pairing upgrade failed")
		return
	}

	b.mu.Lock()
	if b.conn != nil {
		_ = b.conn.Close()
	}
	b.conn = conn
	last := b.last
	if last != nil {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, last); err != nil {
			b.log.Warn().Err(err).Msg("replay to pairing peer failed")
		}
	}
	b.mu.Unlock()

	b.log.Info().Str("remote_addr", r.RemoteAddr).Msg("pairing peer connected")
	if b.OnPeer != nil {
		b.OnPeer(true)
	}
	b.readLoop(conn)
}

func (b *Bridge) readLoop(conn *websocket.Conn) {
	defer func() {
		b.mu.Lock()
		current := b.conn == conn
		if current {
			b.conn = nil
		}
		b.mu.Unlock()
		_ = conn.Close()
		if current && b.OnPeer != nil {
			b.OnPeer(false)
		}
		b.log.Info().Msg("pairing peer disconnected")
	}()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				b.log.Warn().Err(err).Msg("pairing read failed")
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		if b.Handler != nil {
			b.Handler(data)
		}
	}
}

// Notify marshals v and sends it to the peer. The value is retained and
// replayed to a peer that connects later.
func (b *Bridge) Notify(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	b.last = data
	if b.conn == nil {
		b.log.Debug().RawJSON("payload", data).Msg("no pairing peer, notification retained")
		return nil
	}
	_ = b.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return b.conn.WriteMessage(websocket.TextMessage, data)
}

// Close disconnects the peer and refuses new ones.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	if b.conn != nil {
		_ = b.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "commissioning finished"),
			time.Now().Add(writeWait))
		_ = b.conn.Close()
	}
	b.log.Info().Msg("pairing disabled")
}
