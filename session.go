package asebalink

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session manages a connection to one or more Aseba-speaking robots over a
// single Transport. It owns a reader goroutine that decodes frames, a
// dispatch goroutine that applies every inbound message to node state, and a
// set of periodic background tasks (discovery, per-node refresh, liveness
// sweep). Outbound operations such as SetScalar, SetArray and GetVariables
// also update node state, from the caller's goroutine, under inputMu.
//
// Lock order: inputMu -> outputMu (never reverse). inputMu guards
// remoteNodes and everything reachable from a *RemoteNode; outputMu
// serializes writes to the transport. Callbacks are always invoked with
// neither lock held.
type Session struct {
	cfg       *Config
	transport Transport
	callbacks Callbacks

	inputMu     sync.Mutex
	remoteNodes map[uint16]*RemoteNode
	active      map[uint16]struct{}

	outputMu sync.Mutex

	autoHandshake bool

	dispatchCh chan *message
	stop       chan struct{}
	wg         sync.WaitGroup

	closeOnce sync.Once
}

// NewSession starts a session over t. The reader, dispatch, discovery, and
// liveness goroutines are started immediately; discovery calls Handshake
// (enabling auto-handshake and broadcasting LIST_NODES) on every tick of
// cfg.discoverRate, starting one period after NewSession returns.
func NewSession(t Transport, opts ...Option) (*Session, error) {
	cfg := applyConfig(opts)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Session{
		cfg:         cfg,
		transport:   t,
		remoteNodes: make(map[uint16]*RemoteNode),
		active:      make(map[uint16]struct{}),
		dispatchCh:  make(chan *message, 64),
		stop:        make(chan struct{}),
	}

	s.wg.Add(2)
	go s.readLoop()
	go s.dispatchLoop()

	s.wg.Add(1)
	go s.livenessLoop()

	if cfg.discoverRate > 0 {
		s.wg.Add(1)
		go s.discoverLoop()
	}

	go func() {
		<-cfg.ctx.Done()
		s.Close()
	}()

	return s, nil
}

// SetCallbacks installs the session's event hooks. Not safe to call
// concurrently with dispatch; call it once, right after NewSession.
func (s *Session) SetCallbacks(cb Callbacks) { s.callbacks = cb }

// readLoop owns the transport and turns the byte stream into decoded
// messages, handing each to the dispatch goroutine. It never touches node
// state directly, matching the original InputThread's separation from
// handle_message.
func (s *Session) readLoop() {
	defer s.wg.Done()
	for {
		hdr := make([]byte, frameHeaderSize)
		if err := readFull(s.transport, hdr, s.stop); err != nil {
			if err != errStopped && err != ErrTransportClosed {
				s.reportCommError(err)
			}
			close(s.dispatchCh)
			return
		}
		payloadLen := int(hdr[0]) | int(hdr[1])<<8
		source := uint16(hdr[2]) | uint16(hdr[3])<<8
		id := uint16(hdr[4]) | uint16(hdr[5])<<8

		payload := make([]byte, payloadLen)
		if payloadLen > 0 {
			if err := readFull(s.transport, payload, s.stop); err != nil {
				if err != errStopped && err != ErrTransportClosed {
					s.reportCommError(err)
				}
				close(s.dispatchCh)
				return
			}
		}

		msg, err := decodeMessage(id, source, payload)
		if err != nil {
			s.reportCommError(fmt.Errorf("asebalink: decode message %#x from node %d: %w", id, source, err))
			continue
		}
		if s.cfg.metrics != nil {
			s.cfg.metrics.IncrementMessagesReceived()
			s.cfg.metrics.IncrementBytesReceived(int64(frameHeaderSize + payloadLen))
		}
		s.cfg.logger.Debug().Uint16("id", id).Uint16("source", source).Msg("<")

		select {
		case s.dispatchCh <- msg:
		case <-s.stop:
			close(s.dispatchCh)
			return
		}
	}
}

func (s *Session) reportCommError(err error) {
	if s.cfg.metrics != nil {
		s.cfg.metrics.IncrementCommErrors()
	}
	s.cfg.logger.Warn().Err(err).Msg("comm error")
	if s.callbacks.OnCommError != nil {
		s.callbacks.OnCommError(err)
	}
}

// dispatchLoop is the single consumer of dispatchCh and the only goroutine
// that applies inbound messages to RemoteNode state. It exits when the
// channel is closed by readLoop on shutdown or after a read failure.
func (s *Session) dispatchLoop() {
	defer s.wg.Done()
	for msg := range s.dispatchCh {
		s.handleMessage(msg)
	}
}

// handleMessage applies one decoded message to node state, then invokes
// whatever user callback the message implies, outside the input lock.
func (s *Session) handleMessage(msg *message) {
	source := msg.source

	switch {
	case msg.id == idNodePresent:
		var doHandshake bool
		s.inputMu.Lock()
		if _, known := s.remoteNodes[source]; !known {
			s.remoteNodes[source] = NewRemoteNode(source, msg.version)
			doHandshake = s.autoHandshake
		}
		s.inputMu.Unlock()
		if doHandshake {
			if msg.version >= 6 {
				s.GetDeviceInfoAll(source)
			}
			s.GetNodeDescription(source)
		}

	case msg.id == idDeviceInfo:
		s.inputMu.Lock()
		node := s.remoteNodes[source]
		if node != nil {
			switch msg.deviceInfoKind {
			case DeviceInfoName:
				node.DeviceName = msg.deviceName
			case DeviceInfoUUID:
				node.DeviceUUID = msg.deviceUUID
				node.HasUUID = true
			case DeviceInfoRF:
				node.RFNetworkID = msg.rfNetworkID
				node.RFNodeID = msg.rfNodeID
				node.RFChannel = msg.rfChannel
				node.HasRF = true
			}
		}
		s.inputMu.Unlock()

	case msg.id == idDescription:
		s.inputMu.Lock()
		if node := s.remoteNodes[source]; node != nil {
			node.DeviceName = msg.nodeName
			node.BytecodeSize = msg.bytecodeSize
			node.StackSize = msg.stackSize
			node.MaxVarSize = msg.maxVarSize
			node.NumNamedVar = msg.numNamedVar
			node.NumLocalEvt = msg.numLocalEvents
			node.NumNativeFun = msg.numNativeFun
		}
		s.inputMu.Unlock()

	case msg.id == idNamedVariableDescription:
		var startRefresh bool
		s.inputMu.Lock()
		node := s.remoteNodes[source]
		if node != nil {
			_ = node.AddVariable(msg.varName, int(msg.varSize))
			if node.catalogComplete() {
				node.ResetVarData()
				startRefresh = true
			}
		}
		s.inputMu.Unlock()
		if startRefresh {
			s.wg.Add(1)
			go s.refreshLoop(source)
		}

	case msg.id == idVariables || msg.id == idChangedVariables:
		var fire bool
		s.inputMu.Lock()
		if node := s.remoteNodes[source]; node != nil {
			node.setVarData(int(msg.varOffset), msg.varData)
			fire = node.varReceived
		}
		s.inputMu.Unlock()
		if fire && s.callbacks.OnVariablesReceived != nil {
			s.callbacks.OnVariablesReceived(source)
		}

	case msg.id == idNativeFunctionDescription:
		var justActivated bool
		s.inputMu.Lock()
		node := s.remoteNodes[source]
		if node != nil {
			node.NativeFunctions = append(node.NativeFunctions, msg.eventName)
			node.nativeFunArgSizes[msg.eventName] = int16sToInts(msg.paramSizes)
			if len(node.NativeFunctions) >= int(node.NumNativeFun) {
				node.HandshakeDone = true
				if _, already := s.active[source]; !already {
					s.active[source] = struct{}{}
					justActivated = true
				}
			}
		}
		s.inputMu.Unlock()
		if justActivated {
			if s.cfg.metrics != nil {
				s.cfg.metrics.IncrementHandshakesCompleted()
			}
			s.cfg.logger.Info().Uint16("node", source).Msg("handshake complete")
			if s.callbacks.OnConnectionChanged != nil {
				s.callbacks.OnConnectionChanged(source, true)
			}
		}

	case msg.id == idLocalEventDescription:
		s.inputMu.Lock()
		if node := s.remoteNodes[source]; node != nil {
			node.LocalEvents = append(node.LocalEvents, msg.eventName)
		}
		s.inputMu.Unlock()

	case msg.id == idExecutionStateChanged:
		if s.callbacks.OnExecutionStateChanged != nil {
			s.callbacks.OnExecutionStateChanged(source, msg.pc, decodeExecutionState(msg.flags))
		}

	case msg.id < idFirstAseba:
		if s.callbacks.OnUserEvent != nil {
			s.callbacks.OnUserEvent(source, msg.id, msg.userEventArgs)
		}
	}

	s.inputMu.Lock()
	if node := s.remoteNodes[source]; node != nil {
		node.lastMsgTime = time.Now()
	}
	s.inputMu.Unlock()
}

func int16sToInts(ws []uint16) []int {
	out := make([]int, len(ws))
	for i, w := range ws {
		out[i] = int(w)
	}
	return out
}

// send serializes and writes one message, updating metrics and reporting a
// comm error through both the metrics interface and OnCommError.
func (s *Session) send(id uint16, payload []int16) error {
	return s.sendBytes(id, wordsToBytes(payload))
}

func (s *Session) sendBytes(id uint16, payload []byte) error {
	if s.transport.Closed() {
		return ErrSessionClosed
	}
	frame := encodeFrame(id, s.cfg.hostNodeID, payload)
	s.outputMu.Lock()
	s.cfg.logger.Debug().Uint16("id", id).Msg(">")
	_, err := s.transport.Write(frame)
	s.outputMu.Unlock()
	if err != nil {
		err = fmt.Errorf("asebalink: write message %#x: %w", id, err)
		s.reportCommError(err)
		return err
	}
	if s.cfg.metrics != nil {
		s.cfg.metrics.IncrementMessagesSent()
		s.cfg.metrics.IncrementBytesSent(int64(len(frame)))
	}
	return nil
}

// discoverLoop broadcasts LIST_NODES at cfg.discoverRate while the session
// is alive, matching the original's discover() coroutine.
func (s *Session) discoverLoop() {
	defer s.wg.Done()
	t := time.NewTicker(s.cfg.discoverRate)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			s.Handshake()
		case <-s.stop:
			return
		}
	}
}

// refreshLoop is created once per node as soon as its variable catalog is
// known, and issues GET_VARIABLES every cfg.refreshingRate for either the
// whole mirror or the coverage span, matching do_refresh in the original.
func (s *Session) refreshLoop(nodeID uint16) {
	defer s.wg.Done()
	t := time.NewTicker(s.cfg.refreshingRate)
	defer t.Stop()

	var span struct {
		offset, length int
		computed       bool
	}

	for {
		select {
		case <-t.C:
			s.inputMu.Lock()
			node := s.remoteNodes[nodeID]
			s.inputMu.Unlock()
			if node == nil {
				return
			}
			if s.cfg.refreshingCoverage == nil {
				_ = s.GetVariables(nodeID, 0, node.VarTotalSize())
				continue
			}
			if !span.computed {
				s.inputMu.Lock()
				off, length, err := node.dataSpanForVariables(s.cfg.refreshingCoverage)
				s.inputMu.Unlock()
				if err == nil {
					span.offset, span.length, span.computed = off, length, true
				}
			}
			if span.computed && span.length > 0 {
				_ = s.GetVariables(nodeID, span.offset, span.length)
			}
		case <-s.stop:
			return
		}
	}
}

// livenessLoop periodically sweeps every tracked node and drops any that
// have been silent for longer than cfg.timeout, firing OnConnectionChanged
// exactly once per drop.
func (s *Session) livenessLoop() {
	defer s.wg.Done()
	interval := s.cfg.timeout / 3
	if interval <= 0 {
		interval = time.Millisecond
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			s.sweepLiveness()
		case <-s.stop:
			return
		}
	}
}

func (s *Session) sweepLiveness() {
	now := time.Now()
	var dropped []uint16

	s.inputMu.Lock()
	for id, node := range s.remoteNodes {
		if node.lastMsgTime.IsZero() {
			continue
		}
		if now.Sub(node.lastMsgTime) > s.cfg.timeout {
			dropped = append(dropped, id)
		}
	}
	for _, id := range dropped {
		delete(s.remoteNodes, id)
		delete(s.active, id)
	}
	s.inputMu.Unlock()

	for _, id := range dropped {
		s.cfg.logger.Info().Uint16("node", id).Msg("node removed, liveness timeout")
		if s.callbacks.OnConnectionChanged != nil {
			s.callbacks.OnConnectionChanged(id, false)
		}
	}
}

// Handshake enables auto-handshake (future NODE_PRESENT messages trigger a
// GET_NODE_DESCRIPTION automatically) and immediately broadcasts LIST_NODES.
func (s *Session) Handshake() {
	s.inputMu.Lock()
	s.autoHandshake = true
	s.inputMu.Unlock()
	s.ListNodes()
}

// WaitForHandshake blocks until at least n nodes have completed their
// handshake, or returns ErrHandshakeTimeout after the configured wait
// window. It triggers Handshake itself if auto-handshake isn't already on.
func (s *Session) WaitForHandshake(n int, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = s.cfg.handshakeWaitTime
	}

	s.inputMu.Lock()
	already := s.autoHandshake
	count := len(s.active)
	s.inputMu.Unlock()
	if count >= n {
		return nil
	}
	if !already {
		s.Handshake()
	}

	deadline := time.Now().Add(timeout)
	poll := newAdaptivePoll(s.cfg.handshakePollFast, s.cfg.refreshingRate)
	for {
		s.inputMu.Lock()
		count = len(s.active)
		s.inputMu.Unlock()
		if count >= n {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrHandshakeTimeout
		}
		poll.Sleep()
	}
}

// OneRemoteNodeID returns the node id of an arbitrary active node.
func (s *Session) OneRemoteNodeID() (uint16, bool) {
	s.inputMu.Lock()
	defer s.inputMu.Unlock()
	for id := range s.active {
		return id, true
	}
	return 0, false
}

// NodeIDForUUID looks up the transient wire node id of a robot by its
// persistent device UUID. Supplemental helper carried from the original's
// uuid_to_node_id; see SPEC_FULL.md §4.3.
func (s *Session) NodeIDForUUID(id uuid.UUID) (uint16, bool) {
	s.inputMu.Lock()
	defer s.inputMu.Unlock()
	for _, node := range s.remoteNodes {
		if node.HasUUID && node.DeviceUUID == id {
			return node.NodeID, true
		}
	}
	return 0, false
}

// node looks up a tracked node under the input lock, for use by ops.go's
// accessor wrappers.
func (s *Session) node(nodeID uint16) (*RemoteNode, error) {
	s.inputMu.Lock()
	defer s.inputMu.Unlock()
	node, ok := s.remoteNodes[nodeID]
	if !ok {
		return nil, fmt.Errorf("%w: node %d", ErrUnknownNode, nodeID)
	}
	return node, nil
}

// Close stops all background goroutines and closes the transport. Close is
// idempotent.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stop)
		s.cfg.cancel()
		err = s.transport.Close()
		s.wg.Wait()
	})
	return err
}
