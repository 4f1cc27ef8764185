package asebalink

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// Aseba message ids. Values below idFirstAseba are user events emitted by
// robot code via "emit"; everything above is a fixed protocol message.
const (
	idFirstAseba = 0x8000

	idDescription                = 0x9000
	idNamedVariableDescription   = 0x9001
	idLocalEventDescription      = 0x9002
	idNativeFunctionDescription  = 0x9003
	idVariables                  = 0x9005
	idExecutionStateChanged      = 0x900a
	idNodePresent                = 0x900c
	idDeviceInfo                 = 0x900d
	idChangedVariables           = 0x900e
	idSetBytecode                = 0xa001
	idReset                      = 0xa002
	idRun                        = 0xa003
	idPause                      = 0xa004
	idStep                       = 0xa005
	idStop                       = 0xa006
	idGetExecutionState          = 0xa007
	idBreakpointSet              = 0xa008
	idBreakpointClear            = 0xa009
	idBreakpointClearAll         = 0xa00a
	idGetVariables               = 0xa00b
	idSetVariables               = 0xa00c
	idGetNodeDescription         = 0xa010
	idListNodes                  = 0xa011
	idGetDeviceInfo              = 0xa012
	idSetDeviceInfo              = 0xa013
	idGetChangedVariables        = 0xa014
	idGetNodeDescriptionFragment = 0xa015
)

// Device info sub-kinds carried by DEVICE_INFO/GET_DEVICE_INFO.
const (
	DeviceInfoUUID = 1
	DeviceInfoName = 2
	DeviceInfoRF   = 3
)

// ProtocolVersion is the version the host declares in LIST_NODES and
// GET_NODE_DESCRIPTION. GET_DEVICE_INFO (v6+) is used opportunistically
// when a node advertises a higher version; see the NODE_PRESENT case of
// Session.handleMessage.
const ProtocolVersion = 5

// DefaultHostNodeID is the source node id the host uses unless overridden
// with WithHostNodeID.
const DefaultHostNodeID = 1

// frameHeaderSize is the fixed 6-byte header: length, source node, message id.
const frameHeaderSize = 6

// message is one decoded Aseba wire frame. The typed fields below are
// populated by decode based on id; only the fields relevant to id are valid.
type message struct {
	id     uint16
	source uint16
	raw    []byte // raw payload, as received/about to be sent

	// DESCRIPTION
	nodeName       string
	protoVersion   uint16
	bytecodeSize   uint16
	stackSize      uint16
	maxVarSize     uint16
	numNamedVar    uint16
	numLocalEvents uint16
	numNativeFun   uint16

	// NAMED_VARIABLE_DESCRIPTION
	varSize uint16
	varName string

	// LOCAL_EVENT_DESCRIPTION / NATIVE_FUNCTION_DESCRIPTION
	eventName   string
	description string
	paramNames  []string
	paramSizes  []uint16

	// VARIABLES / CHANGED_VARIABLES
	varOffset uint16
	varData   []int16

	// EXECUTION_STATE_CHANGED
	pc    uint16
	flags uint16

	// NODE_PRESENT / LIST_NODES
	version uint16

	// DEVICE_INFO
	deviceInfoKind byte
	deviceName     string
	deviceUUID     uuid.UUID
	rfNetworkID    uint16
	rfNodeID       uint16
	rfChannel      uint16

	// user event (id < idFirstAseba)
	userEventArgs []int16
}

// payloadReader is an advancing cursor over a message payload, providing
// the primitives §4.1 of the protocol needs: uint8, uint16 (both LE), and
// length-prefixed UTF-8 strings.
type payloadReader struct {
	buf []byte
	off int
}

func newPayloadReader(buf []byte) *payloadReader {
	return &payloadReader{buf: buf}
}

func (r *payloadReader) uint8() (byte, error) {
	if r.off+1 > len(r.buf) {
		return 0, fmt.Errorf("payload truncated reading uint8 at offset %d", r.off)
	}
	v := r.buf[r.off]
	r.off++
	return v, nil
}

func (r *payloadReader) uint16() (uint16, error) {
	if r.off+2 > len(r.buf) {
		return 0, fmt.Errorf("payload truncated reading uint16 at offset %d", r.off)
	}
	v := binary.LittleEndian.Uint16(r.buf[r.off : r.off+2])
	r.off += 2
	return v, nil
}

func (r *payloadReader) int16() (int16, error) {
	v, err := r.uint16()
	return int16(v), err
}

func (r *payloadReader) string() (string, error) {
	n, err := r.uint8()
	if err != nil {
		return "", err
	}
	if r.off+int(n) > len(r.buf) {
		return "", fmt.Errorf("payload truncated reading string at offset %d", r.off)
	}
	s := string(r.buf[r.off : r.off+int(n)])
	r.off += int(n)
	return s, nil
}

func (r *payloadReader) remaining() int {
	return len(r.buf) - r.off
}

// decodeMessage parses a message's typed fields from (id, payload). It is a
// pure function: it never touches node state, only materializes values.
func decodeMessage(id, source uint16, payload []byte) (*message, error) {
	m := &message{id: id, source: source, raw: payload}
	r := newPayloadReader(payload)

	var err error
	switch {
	case id == idDescription:
		if m.nodeName, err = r.string(); err != nil {
			return nil, err
		}
		if m.protoVersion, err = r.uint16(); err != nil {
			return nil, err
		}
		if m.bytecodeSize, err = r.uint16(); err != nil {
			return nil, err
		}
		if m.stackSize, err = r.uint16(); err != nil {
			return nil, err
		}
		if m.maxVarSize, err = r.uint16(); err != nil {
			return nil, err
		}
		if m.numNamedVar, err = r.uint16(); err != nil {
			return nil, err
		}
		if m.numLocalEvents, err = r.uint16(); err != nil {
			return nil, err
		}
		if m.numNativeFun, err = r.uint16(); err != nil {
			return nil, err
		}

	case id == idNamedVariableDescription:
		if m.varSize, err = r.uint16(); err != nil {
			return nil, err
		}
		if m.varName, err = r.string(); err != nil {
			return nil, err
		}

	case id == idLocalEventDescription:
		if m.eventName, err = r.string(); err != nil {
			return nil, err
		}
		if m.description, err = r.string(); err != nil {
			return nil, err
		}

	case id == idNativeFunctionDescription:
		if m.eventName, err = r.string(); err != nil {
			return nil, err
		}
		if m.description, err = r.string(); err != nil {
			return nil, err
		}
		numParams, err := r.uint16()
		if err != nil {
			return nil, err
		}
		m.paramNames = make([]string, 0, numParams)
		m.paramSizes = make([]uint16, 0, numParams)
		for i := uint16(0); i < numParams; i++ {
			size, err := r.uint16()
			if err != nil {
				return nil, err
			}
			name, err := r.string()
			if err != nil {
				return nil, err
			}
			m.paramSizes = append(m.paramSizes, size)
			m.paramNames = append(m.paramNames, name)
		}

	case id == idVariables || id == idChangedVariables:
		if m.varOffset, err = r.uint16(); err != nil {
			return nil, err
		}
		for r.remaining() >= 2 {
			w, err := r.int16()
			if err != nil {
				return nil, err
			}
			m.varData = append(m.varData, w)
		}

	case id == idExecutionStateChanged:
		if m.pc, err = r.uint16(); err != nil {
			return nil, err
		}
		if m.flags, err = r.uint16(); err != nil {
			return nil, err
		}

	case id == idNodePresent || id == idListNodes:
		if m.version, err = r.uint16(); err != nil {
			return nil, err
		}

	case id == idDeviceInfo:
		if m.deviceInfoKind, err = r.uint8(); err != nil {
			return nil, err
		}
		switch m.deviceInfoKind {
		case DeviceInfoName:
			if m.deviceName, err = r.string(); err != nil {
				return nil, err
			}
		case DeviceInfoUUID:
			n, err := r.uint8()
			if err != nil {
				return nil, err
			}
			if r.remaining() < int(n) {
				return nil, fmt.Errorf("payload truncated reading device uuid")
			}
			raw := r.buf[r.off : r.off+int(n)]
			r.off += int(n)
			if len(raw) == 16 {
				m.deviceUUID, _ = uuid.FromBytes(raw)
			}
		case DeviceInfoRF:
			n, err := r.uint8()
			if err != nil {
				return nil, err
			}
			if n == 6 {
				if m.rfNetworkID, err = r.uint16(); err != nil {
					return nil, err
				}
				if m.rfNodeID, err = r.uint16(); err != nil {
					return nil, err
				}
				if m.rfChannel, err = r.uint16(); err != nil {
					return nil, err
				}
			}
		}

	case id < idFirstAseba:
		for r.remaining() >= 2 {
			w, err := r.int16()
			if err != nil {
				return nil, err
			}
			m.userEventArgs = append(m.userEventArgs, w)
		}
	}

	return m, nil
}

// encodeFrame serializes a full wire frame: [len_lo,len_hi,src_lo,src_hi,id_lo,id_hi,payload...].
func encodeFrame(id, source uint16, payload []byte) []byte {
	buf := make([]byte, frameHeaderSize+len(payload))
	binary.LittleEndian.PutUint16(buf[0:2], uint16(len(payload)))
	binary.LittleEndian.PutUint16(buf[2:4], source)
	binary.LittleEndian.PutUint16(buf[4:6], id)
	copy(buf[frameHeaderSize:], payload)
	return buf
}

// wordsToBytes converts a sequence of 16-bit words (signed or unsigned,
// masked to 16 bits on emission as the wire treats them as unsigned) to
// little-endian bytes.
func wordsToBytes(words []int16) []byte {
	buf := make([]byte, 2*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint16(buf[2*i:2*i+2], uint16(w)&0xffff)
	}
	return buf
}

func wordsToBytesU(words []uint16) []byte {
	buf := make([]byte, 2*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint16(buf[2*i:2*i+2], w)
	}
	return buf
}
