// Package fakedaemon is an in-process stand-in for the radio daemon. It
// accepts one client connection at a time on a unix socket, records every
// request it reads and can answer them automatically through a Responder.
package fakedaemon

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/rilctl/internal/protocol"
	"github.com/danmuck/rilctl/internal/protocol/frame"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotConnected = errors.New("fakedaemon: no client connected")
	ErrTimeout      = errors.New("fakedaemon: timeout")
)

// Reply is what a Responder wants sent back for one request.
type Reply struct {
	Status protocol.Status
	Body   []byte
}

// Responder answers a request; ok=false leaves it unanswered.
type Responder func(req protocol.Request) (reply Reply, ok bool)

type Daemon struct {
	ln      net.Listener
	path    string
	limits  frame.Limits
	respond Responder
	log     zerolog.Logger

	mu       sync.Mutex
	conn     net.Conn
	conns    int
	connCh   chan struct{}
	requests chan protocol.Request
	closed   chan struct{}
	wg       sync.WaitGroup
}

type Option func(*Daemon)

func WithResponder(r Responder) Option {
	return func(d *Daemon) { d.respond = r }
}

// Listen binds a unix socket at path and starts accepting.
func Listen(path string, opts ...Option) (*Daemon, error) {
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	d := &Daemon{
		ln:       ln,
		path:     path,
		limits:   frame.DefaultLimits(),
		log:      log.With().Str("component", "fakedaemon").Logger(),
		connCh:   make(chan struct{}, 16),
		requests: make(chan protocol.Request, 256),
		closed:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.wg.Add(1)
	go d.acceptLoop()
	return d, nil
}

// Start listens on a fresh short socket path and closes the daemon when t ends.
func Start(t testing.TB, opts ...Option) *Daemon {
	t.Helper()
	// unix socket paths are length limited, t.TempDir can exceed it
	dir, err := os.MkdirTemp("", "ril")
	if err != nil {
		t.Fatalf("fakedaemon temp dir: %v", err)
	}
	d, err := Listen(filepath.Join(dir, "rild"), opts...)
	if err != nil {
		_ = os.RemoveAll(dir)
		t.Fatalf("fakedaemon listen: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
		_ = os.RemoveAll(dir)
	})
	return d
}

func (d *Daemon) Path() string {
	return d.path
}

// Connections reports how many clients have connected so far.
func (d *Daemon) Connections() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns
}

func (d *Daemon) acceptLoop() {
	defer d.wg.Done()
	for {
		conn, err := d.ln.Accept()
		if err != nil {
			return
		}
		d.mu.Lock()
		if d.conn != nil {
			_ = d.conn.Close()
		}
		d.conn = conn
		d.conns++
		d.mu.Unlock()
		d.log.Debug().Msg("client connected")
		select {
		case d.connCh <- struct{}{}:
		default:
		}
		d.wg.Add(1)
		go d.readLoop(conn)
	}
}

func (d *Daemon) readLoop(conn net.Conn) {
	defer d.wg.Done()
	for {
		payload, err := frame.ReadFrame(conn, d.limits)
		if err != nil {
			d.mu.Lock()
			if d.conn == conn {
				d.conn = nil
			}
			d.mu.Unlock()
			_ = conn.Close()
			return
		}
		req, err := protocol.ParseRequest(payload)
		if err != nil {
			d.log.Warn().Err(err).Msg("malformed request")
			continue
		}
		select {
		case d.requests <- req:
		default:
			d.log.Warn().Int32("serial", req.Serial).Msg("request log full, dropping")
		}
		if d.respond == nil {
			continue
		}
		if reply, ok := d.respond(req); ok {
			if err := d.write(conn, protocol.EncodeSolicited(req.Serial, reply.Status, reply.Body)); err != nil {
				d.log.Warn().Err(err).Msg("reply failed")
			}
		}
	}
}

// WaitConnected blocks until a new client connection is accepted.
func (d *Daemon) WaitConnected(timeout time.Duration) error {
	select {
	case <-d.connCh:
		return nil
	case <-time.After(timeout):
		return ErrTimeout
	}
}

// NextRequest returns the next request read from the client.
func (d *Daemon) NextRequest(timeout time.Duration) (protocol.Request, error) {
	select {
	case req := <-d.requests:
		return req, nil
	case <-time.After(timeout):
		return protocol.Request{}, ErrTimeout
	}
}

func (d *Daemon) SendSolicited(serial int32, status protocol.Status, body []byte) error {
	return d.SendPayload(protocol.EncodeSolicited(serial, status, body))
}

func (d *Daemon) SendUnsolicited(code int32, body []byte) error {
	return d.SendPayload(protocol.EncodeUnsolicited(code, body))
}

// SendPayload frames payload and writes it to the current client.
func (d *Daemon) SendPayload(payload []byte) error {
	conn := d.current()
	if conn == nil {
		return ErrNotConnected
	}
	return d.write(conn, payload)
}

// SendRaw writes b to the current client without framing.
func (d *Daemon) SendRaw(b []byte) error {
	conn := d.current()
	if conn == nil {
		return ErrNotConnected
	}
	_, err := conn.Write(b)
	return err
}

// DropConnection closes the current client connection.
func (d *Daemon) DropConnection() {
	d.mu.Lock()
	conn := d.conn
	d.conn = nil
	d.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func (d *Daemon) Close() {
	select {
	case <-d.closed:
		return
	default:
		close(d.closed)
	}
	_ = d.ln.Close()
	d.DropConnection()
	d.wg.Wait()
	_ = os.Remove(d.path)
}

func (d *Daemon) current() net.Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn
}

func (d *Daemon) write(conn net.Conn, payload []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return frame.WriteFrame(conn, payload, d.limits)
}
