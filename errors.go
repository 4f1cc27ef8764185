package asebalink

import "errors"

// Sentinel errors returned by the session engine. Wrap with
// fmt.Errorf("%w: ...") when additional context is useful to the caller.
var (
	// ErrInvalidConfig is returned by Config.Validate for a nonsensical
	// combination of options.
	ErrInvalidConfig = errors.New("asebalink: invalid configuration")

	// ErrUnknownNode is returned by operations addressed to a node id that
	// is not currently tracked (never seen, or REMOVED after a liveness
	// timeout).
	ErrUnknownNode = errors.New("asebalink: unknown node")

	// ErrHandshakeTimeout is returned by WaitForHandshake when a node does
	// not complete its handshake within the configured wait window.
	ErrHandshakeTimeout = errors.New("asebalink: handshake timeout")

	// ErrNotActive reports that a node hasn't reached ACTIVE. No Session
	// operation returns it: SetBytecode, Run and the other outbound
	// operations send regardless of handshake state.
	ErrNotActive = errors.New("asebalink: node handshake not complete")

	// ErrSessionClosed is returned by any outbound operation attempted
	// after Close has run.
	ErrSessionClosed = errors.New("asebalink: session closed")

	// ErrBytecodeTooLarge is returned by SetBytecode when the program
	// exceeds the node's declared bytecode_size.
	ErrBytecodeTooLarge = errors.New("asebalink: bytecode exceeds node capacity")

	// ErrNoSerialPort is returned by transport.Serial when no candidate
	// device is found on the host.
	ErrNoSerialPort = errors.New("asebalink: no serial device for Thymio found")
)
