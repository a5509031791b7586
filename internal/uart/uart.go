// Package uart carries the line-delimited JSON link to the vision
// co-processor.
package uart

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.bug.st/serial"

	"github.com/celerix-dev/celerix-lock/pkg/schema"
)

const maxLine = 4096

// Link is one co-processor connection. Send is safe for concurrent use
// with Run.
type Link struct {
	rw  io.ReadWriteCloser
	log zerolog.Logger
	mu  sync.Mutex
}

func New(rw io.ReadWriteCloser, log zerolog.Logger) *Link {
	return &Link{rw: rw, log: log}
}

// DefaultBaud is the co-processor's UART rate.
const DefaultBaud = 115200

// Open connects to port: "tcp://host:port" for a serial bridge, anything
// else is opened as a serial device at baud, 8N1.
func Open(port string, baud int, log zerolog.Logger) (*Link, error) {
	if addr, ok := strings.CutPrefix(port, "tcp://"); ok {
		conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
		if err != nil {
			return nil, fmt.Errorf("dial co-processor: %w", err)
		}
		return New(conn, log), nil
	}
	if baud <= 0 {
		baud = DefaultBaud
	}
	p, err := serial.Open(port, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open co-processor %s: %w", port, err)
	}
	log.Info().Str("port", port).Int("baud", baud).Msg("co-processor port open")
	return New(p, log), nil
}

// Send writes cmd as one JSON line.
func (l *Link) Send(cmd schema.VisionCommand) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err = fmt.Fprintln(l.rw, string(data))
	return err
}

// Run decodes status lines into out until ctx is done or the link
// closes. Malformed lines are dropped.
func (l *Link) Run(ctx context.Context, out chan<- schema.VisionStatus) error {
	stop := context.AfterFunc(ctx, func() { _ = l.rw.Close() })
	defer stop()

	reader := bufio.NewReaderSize(l.rw, maxLine)
	for {
		line, err := reader.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			var st schema.VisionStatus
			if jerr := json.Unmarshal([]byte(line), &st); jerr != nil || st.Status == "" {
				l.log.Debug().Str("line", line).Msg("dropping malformed co-processor line")
			} else {
				select {
				case out <- st:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read co-processor: %w", err)
		}
	}
}

func (l *Link) Close() error { return l.rw.Close() }

// Discard is a CommandSink used when no co-processor is attached.
type Discard struct {
	Log zerolog.Logger
}

func (d Discard) Send(cmd schema.VisionCommand) error {
	d.Log.Debug().Str("cmd", cmd.Cmd).Msg("no co-processor attached, command dropped")
	return nil
}
