// Package transport provides concrete Transport implementations (TCP,
// serial, and a discard/null transport for tests) for asebalink.Session.
package transport

import (
	"net"
	"sync/atomic"
	"time"

	"github.com/go-aseba/asebalink"
)

// DefaultTCPAddr is the address the Aseba TCP switch listens on by default,
// matching the original's Connection.tcp default host/port.
const DefaultTCPAddr = "127.0.0.1:33333"

// tcpReadDeadline bounds each Read call so the reader goroutine can observe
// shutdown promptly between frames, per asebalink's documented reader
// tolerance (see its Transport doc comment).
const tcpReadDeadline = 200 * time.Millisecond

type tcpTransport struct {
	conn   net.Conn
	closed atomic.Bool
}

// TCP dials addr ("host:port") and returns a Transport backed by the
// resulting connection. Pass "" for addr to use DefaultTCPAddr.
func TCP(addr string) (asebalink.Transport, error) {
	if addr == "" {
		addr = DefaultTCPAddr
	}
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &tcpTransport{conn: conn}, nil
}

func (t *tcpTransport) Read(buf []byte) (int, error) {
	t.conn.SetReadDeadline(time.Now().Add(tcpReadDeadline))
	n, err := t.conn.Read(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return n, asebalink.ErrTransportTimeout
		}
	}
	return n, err
}

func (t *tcpTransport) Write(buf []byte) (int, error) {
	return t.conn.Write(buf)
}

func (t *tcpTransport) Close() error {
	t.closed.Store(true)
	return t.conn.Close()
}

func (t *tcpTransport) Closed() bool { return t.closed.Load() }
