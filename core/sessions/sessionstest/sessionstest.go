// Package sessionstest provides in-memory sockets for exercising sessions
// without a network.
package sessionstest

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/koscakluka/ema-speechbot/core/sessions"
)

var ErrRefused = errors.New("connection refused")

type message struct {
	messageType int
	data        []byte
}

// Conn is a sessions.Conn that records writes and serves reads pushed with
// Deliver.
type Conn struct {
	mu       sync.Mutex
	texts    []string
	binaries [][]byte

	inbound   chan message
	done      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	// HoldReadAfterClose keeps ReadMessage blocked after Close until the
	// channel is closed. Set it before the connection is dialed.
	HoldReadAfterClose chan struct{}
}

func NewConn() *Conn {
	return &Conn{inbound: make(chan message, 64), done: make(chan struct{})}
}

func (c *Conn) WriteMessage(messageType int, data []byte) error {
	if c.closed.Load() {
		return errors.New("use of closed connection")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	copied := append([]byte(nil), data...)
	if messageType == sessions.TextMessage {
		c.texts = append(c.texts, string(copied))
	} else {
		c.binaries = append(c.binaries, copied)
	}
	return nil
}

func (c *Conn) ReadMessage() (int, []byte, error) {
	select {
	case m := <-c.inbound:
		return m.messageType, m.data, nil
	case <-c.done:
		if c.HoldReadAfterClose != nil {
			<-c.HoldReadAfterClose
		}
		return 0, nil, errors.New("connection closed")
	}
}

func (c *Conn) Close() error {
	c.closed.Store(true)
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

// DropRemote ends the read loop as if the peer went away.
func (c *Conn) DropRemote() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Conn) IsClosed() bool {
	return c.closed.Load()
}

func (c *Conn) DeliverText(text string) {
	c.inbound <- message{messageType: sessions.TextMessage, data: []byte(text)}
}

func (c *Conn) DeliverBinary(data []byte) {
	c.inbound <- message{messageType: sessions.BinaryMessage, data: data}
}

func (c *Conn) Texts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.texts...)
}

func (c *Conn) Binaries() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.binaries...)
}

// Dialer hands out queued connections in order and refuses once they run out.
type Dialer struct {
	mu      sync.Mutex
	conns   []*Conn
	urls    []string
	headers []http.Header
	dials   atomic.Int32

	// Block, when set, delays every dial until it is closed.
	Block chan struct{}
}

func NewDialer(conns ...*Conn) *Dialer {
	return &Dialer{conns: conns}
}

// Queue adds connections for later dials.
func (d *Dialer) Queue(conns ...*Conn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conns = append(d.conns, conns...)
}

func (d *Dialer) DialContext(ctx context.Context, url string, header http.Header) (sessions.Conn, error) {
	d.dials.Add(1)
	if d.Block != nil {
		select {
		case <-d.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, url)
	d.headers = append(d.headers, header)
	if len(d.conns) == 0 {
		return nil, ErrRefused
	}
	conn := d.conns[0]
	d.conns = d.conns[1:]
	return conn, nil
}

func (d *Dialer) Dials() int {
	return int(d.dials.Load())
}

func (d *Dialer) LastHeader() http.Header {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.headers) == 0 {
		return nil
	}
	return d.headers[len(d.headers)-1]
}

func (d *Dialer) LastURL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.urls) == 0 {
		return ""
	}
	return d.urls[len(d.urls)-1]
}

// WaitFor polls condition until it holds or timeout passes.
func WaitFor(t testing.TB, timeout time.Duration, description string, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}

	t.Fatalf("timed out waiting for %s", description)
}
