package asebalink

import (
	"errors"
	"io"
)

// Transport is the byte-stream interface the session engine depends on. It
// is deliberately narrow: concrete transports (serial port, TCP socket) are
// external collaborators, not part of the protocol-engine core — see the
// transport subpackage for the serial/TCP/null implementations.
type Transport interface {
	// Read fills buf with up to len(buf) bytes. Like a POSIX read(2), it may
	// return fewer bytes than requested ("short read"); callers must loop.
	// A Read that times out before any byte arrives returns
	// (0, ErrTransportTimeout); any other error is terminal.
	Read(buf []byte) (int, error)
	// Write writes the entirety of buf or returns an error; it never
	// short-writes.
	Write(buf []byte) (int, error)
	// Close releases the underlying resource. Close is idempotent.
	Close() error
	// Closed reports whether Close has been called.
	Closed() bool
}

// ErrTransportTimeout is returned by Transport.Read when no byte arrived
// before the transport's read deadline. The reader goroutine swallows this
// and retries; see readFull below.
var ErrTransportTimeout = errors.New("asebalink: transport read timeout")

// ErrTransportClosed is returned by Transport.Read/Write once Close has run,
// and is also reported via OnCommError for a write failure.
var ErrTransportClosed = errors.New("asebalink: transport closed")

// errStopped is returned internally by readFull when stop fires before any
// byte of the requested buffer has been read; the reader loop can therefore
// observe it between frames or between a frame's header and its payload.
var errStopped = errors.New("asebalink: reader stopped")

// readFull reads exactly len(buf) bytes from t, looping over short reads and
// swallowing timeouts. It returns a non-nil error only for a terminal
// transport failure (anything other than ErrTransportTimeout), or errStopped
// if stop fires while no byte of this read has yet landed.
func readFull(t Transport, buf []byte, stop <-chan struct{}) error {
	for off := 0; off < len(buf); {
		if off == 0 {
			select {
			case <-stop:
				return errStopped
			default:
			}
		}
		n, err := t.Read(buf[off:])
		off += n
		if err != nil {
			if errors.Is(err, ErrTransportTimeout) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return ErrTransportClosed
			}
			return err
		}
	}
	return nil
}
