package transport

import (
	"sync"
	"sync/atomic"

	"github.com/go-aseba/asebalink"
)

// nullTransport discards every write and blocks every read until Close,
// matching the original's Connection.null() used to run the session engine
// without hardware attached.
type nullTransport struct {
	closed atomic.Bool
	done   chan struct{}
	once   sync.Once
}

// Null returns a Transport with no backing device: Write is a no-op, Read
// blocks until Close.
func Null() asebalink.Transport {
	return &nullTransport{done: make(chan struct{})}
}

func (t *nullTransport) Read(buf []byte) (int, error) {
	<-t.done
	return 0, asebalink.ErrTransportClosed
}

func (t *nullTransport) Write(buf []byte) (int, error) { return len(buf), nil }

func (t *nullTransport) Close() error {
	t.closed.Store(true)
	t.once.Do(func() { close(t.done) })
	return nil
}

func (t *nullTransport) Closed() bool { return t.closed.Load() }
