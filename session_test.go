package asebalink

import (
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"
)

// pipeTransport adapts a net.Conn (from net.Pipe) to the Transport
// interface for tests: no real timeouts, EOF on close.
type pipeTransport struct {
	conn   net.Conn
	closed atomic.Bool
}

func newPipeTransports() (*pipeTransport, *pipeTransport) {
	a, b := net.Pipe()
	return &pipeTransport{conn: a}, &pipeTransport{conn: b}
}

func (p *pipeTransport) Read(buf []byte) (int, error) {
	n, err := p.conn.Read(buf)
	if err != nil && err != io.EOF {
		return n, err
	}
	if err == io.EOF {
		return n, ErrTransportClosed
	}
	return n, nil
}

func (p *pipeTransport) Write(buf []byte) (int, error) { return p.conn.Write(buf) }
func (p *pipeTransport) Close() error {
	p.closed.Store(true)
	return p.conn.Close()
}
func (p *pipeTransport) Closed() bool { return p.closed.Load() }

// readRobotFrame reads one full frame off the robot side of the pipe.
func readRobotFrame(t *testing.T, robot *pipeTransport) (id, source uint16, payload []byte) {
	t.Helper()
	hdr := make([]byte, frameHeaderSize)
	if err := readFull(robot, hdr, nil); err != nil {
		t.Fatalf("robot read header: %v", err)
	}
	payloadLen := int(hdr[0]) | int(hdr[1])<<8
	source = uint16(hdr[2]) | uint16(hdr[3])<<8
	id = uint16(hdr[4]) | uint16(hdr[5])<<8
	payload = make([]byte, payloadLen)
	if payloadLen > 0 {
		if err := readFull(robot, payload, nil); err != nil {
			t.Fatalf("robot read payload: %v", err)
		}
	}
	return id, source, payload
}

func sendRobotFrame(t *testing.T, robot *pipeTransport, id, source uint16, words []int16) {
	t.Helper()
	if _, err := robot.Write(encodeFrame(id, source, wordsToBytes(words))); err != nil {
		t.Fatalf("robot write: %v", err)
	}
}

func TestSessionHandshakeAndVariables(t *testing.T) {
	host, robot := newPipeTransports()
	session, err := NewSession(host, WithHostNodeID(1), WithTimeout(2*time.Second))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer session.Close()

	connected := make(chan uint16, 1)
	session.SetCallbacks(Callbacks{
		OnConnectionChanged: func(nodeID uint16, active bool) {
			if active {
				connected <- nodeID
			}
		},
	})

	const nodeID = 7
	go func() {
		id, _, _ := readRobotFrame(t, robot)
		if id != idListNodes {
			t.Errorf("got id %#x, want LIST_NODES", id)
			return
		}

		sendRobotFrame(t, robot, idNodePresent, nodeID, []int16{5})

		id, _, _ = readRobotFrame(t, robot)
		if id != idGetNodeDescription {
			t.Errorf("got id %#x, want GET_NODE_DESCRIPTION", id)
			return
		}

		descPayload := append([]byte{4}, []byte("thym")...)
		descPayload = append(descPayload, wordsToBytesU([]uint16{5, 200, 16, 32, 1, 0, 1})...)
		robot.Write(encodeFrame(idDescription, nodeID, descPayload))

		varPayload := wordsToBytesU([]uint16{1})
		varPayload = append(varPayload, byte(1), 'x')
		robot.Write(encodeFrame(idNamedVariableDescription, nodeID, varPayload))

		nfPayload := []byte{byte(len("leds")), 'l', 'e', 'd', 's'}
		nfPayload = append(nfPayload, byte(0))
		nfPayload = append(nfPayload, wordsToBytesU([]uint16{0})...)
		robot.Write(encodeFrame(idNativeFunctionDescription, nodeID, nfPayload))
	}()

	session.Handshake()

	select {
	case got := <-connected:
		if got != nodeID {
			t.Fatalf("connected node = %d, want %d", got, nodeID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handshake did not complete in time")
	}

	node, err := session.node(nodeID)
	if err != nil {
		t.Fatalf("node: %v", err)
	}
	if len(node.NamedVariables) != 1 || node.NamedVariables[0] != "x" {
		t.Fatalf("NamedVariables = %v, want [x]", node.NamedVariables)
	}
}

func TestSessionUserEventDispatch(t *testing.T) {
	host, robot := newPipeTransports()
	session, err := NewSession(host, WithDiscoverRate(time.Hour))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer session.Close()

	events := make(chan []int16, 1)
	session.SetCallbacks(Callbacks{
		OnUserEvent: func(nodeID uint16, eventID uint16, args []int16) {
			events <- args
		},
	})

	go sendRobotFrame(t, robot, 0x1234, 3, []int16{11, 22})

	select {
	case args := <-events:
		if len(args) != 2 || args[0] != 11 || args[1] != 22 {
			t.Fatalf("args = %v, want [11 22]", args)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("user event not dispatched in time")
	}
}

func TestSessionSetBytecodeChunking(t *testing.T) {
	host, robot := newPipeTransports()
	session, err := NewSession(host, WithDiscoverRate(time.Hour))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer session.Close()

	const nodeID = 4
	session.inputMu.Lock()
	node := NewRemoteNode(nodeID, 5)
	node.BytecodeSize = 1000
	session.remoteNodes[nodeID] = node
	session.inputMu.Unlock()

	bytecode := make([]int16, 600)
	for i := range bytecode {
		bytecode[i] = int16(i)
	}

	done := make(chan struct{})
	var chunks [][]byte
	go func() {
		defer close(done)
		for len(chunks) < 3 {
			_, _, payload := readRobotFrame(t, robot)
			chunks = append(chunks, payload)
		}
	}()

	if err := session.SetBytecode(nodeID, bytecode, 0); err != nil {
		t.Fatalf("SetBytecode: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("robot did not receive all chunks in time")
	}

	if len(chunks[0]) != 4+2*256 || len(chunks[1]) != 4+2*256 || len(chunks[2]) != 4+2*88 {
		t.Fatalf("chunk sizes = %d, %d, %d", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}
}
