package asebalink

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrUnknownName is returned by the mirror's keyed lookups when a variable
// name is not present in the node's catalog.
var ErrUnknownName = fmt.Errorf("asebalink: unknown variable name")

// VariableDescriptor describes one named variable's position in the mirror.
// Supplemental helper carried from thymiodirect.Connection.variable_description.
type VariableDescriptor struct {
	Name   string
	Offset int
	Size   int
}

// RemoteNode is the host-side mirror of one discovered robot: its identity,
// declared capabilities, variable/event/native-function catalogs, and a
// live copy of its variable memory. Within a Session, inbound messages are
// applied on the dispatch goroutine, and SetScalar/SetArray/GetVariables
// update it from the caller's goroutine; all of these hold the session's
// input mutex. See session.go.
type RemoteNode struct {
	NodeID         uint16
	FirmwareVer    uint16
	DeviceName     string
	DeviceUUID     uuid.UUID
	HasUUID        bool
	RFNetworkID    uint16
	RFNodeID       uint16
	RFChannel      uint16
	HasRF          bool

	BytecodeSize uint16
	StackSize    uint16
	MaxVarSize   uint16
	NumNamedVar  uint16
	NumLocalEvt  uint16
	NumNativeFun uint16

	NamedVariables []string
	varOffset      map[string]int
	varSize        map[string]int
	varTotalSize   int

	varData []int16

	expectedVarEnd int
	varReceived    bool

	LocalEvents        []string
	NativeFunctions    []string
	nativeFunArgSizes  map[string][]int

	lastMsgTime   time.Time
	HandshakeDone bool
}

// NewRemoteNode creates a mirror for a node, normally as a side effect of
// seeing its NODE_PRESENT; exported so tests and tooling can construct a
// synthetic node without a live handshake.
func NewRemoteNode(nodeID, version uint16) *RemoteNode {
	return &RemoteNode{
		NodeID:            nodeID,
		FirmwareVer:       version,
		varOffset:         make(map[string]int),
		varSize:           make(map[string]int),
		nativeFunArgSizes: make(map[string][]int),
	}
}

// AddVariable appends a variable to the catalog. Exported so tests and
// tooling can build a synthetic node without a live handshake, matching the
// original RemoteNode.add_var's public surface.
func (n *RemoteNode) AddVariable(name string, size int) error {
	if len(n.NamedVariables) >= int(n.NumNamedVar) && n.NumNamedVar > 0 {
		return fmt.Errorf("asebalink: variable catalog already complete, cannot add %q", name)
	}
	n.NamedVariables = append(n.NamedVariables, name)
	n.varOffset[name] = n.varTotalSize
	n.varSize[name] = size
	n.varTotalSize += size
	return nil
}

// catalogComplete reports whether every NAMED_VARIABLE_DESCRIPTION has
// arrived.
func (n *RemoteNode) catalogComplete() bool {
	return len(n.NamedVariables) >= int(n.NumNamedVar)
}

// ResetVarData allocates the zero-filled mirror. Called automatically once
// the catalog completes during a handshake; exported so synthetic nodes
// built with AddVariable can be made ready for GetScalar/SetScalar.
func (n *RemoteNode) ResetVarData() {
	n.varData = make([]int16, n.varTotalSize)
}

// VarOffset returns the word offset of a named variable.
func (n *RemoteNode) VarOffset(name string) (int, error) {
	off, ok := n.varOffset[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownName, name)
	}
	return off, nil
}

// VarSize returns the word length of a named variable.
func (n *RemoteNode) VarSize(name string) (int, error) {
	size, ok := n.varSize[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownName, name)
	}
	return size, nil
}

// VarTotalSize returns the sum of all declared variable sizes.
func (n *RemoteNode) VarTotalSize() int { return n.varTotalSize }

// GetScalar reads one word at var_offset[name]+index from the mirror.
func (n *RemoteNode) GetScalar(name string, index int) (int16, error) {
	off, err := n.VarOffset(name)
	if err != nil {
		return 0, err
	}
	return n.varData[off+index], nil
}

// GetArray reads the full span of a named variable from the mirror.
func (n *RemoteNode) GetArray(name string) ([]int16, error) {
	off, ok := n.varOffset[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownName, name)
	}
	size := n.varSize[name]
	out := make([]int16, size)
	copy(out, n.varData[off:off+size])
	return out, nil
}

// SetScalar writes one word into the mirror and returns the (offset, values)
// pair the caller must also ship to the robot via SetVariables.
func (n *RemoteNode) SetScalar(name string, val int16, index int) (offset int, values []int16, err error) {
	off, err := n.VarOffset(name)
	if err != nil {
		return 0, nil, err
	}
	n.varData[off+index] = val
	return off + index, []int16{val}, nil
}

// SetArray writes a whole array variable into the mirror and returns the
// (offset, values) pair the caller must also ship to the robot.
func (n *RemoteNode) SetArray(name string, values []int16) (offset int, out []int16, err error) {
	off, err := n.VarOffset(name)
	if err != nil {
		return 0, nil, err
	}
	copy(n.varData[off:off+len(values)], values)
	return off, values, nil
}

// setVarData applies an inbound VARIABLES window to the mirror and updates
// varReceived: true iff this window reaches expectedVarEnd.
func (n *RemoteNode) setVarData(offset int, data []int16) {
	end := offset + len(data)
	if end > len(n.varData) {
		end = len(n.varData)
		data = data[:end-offset]
	}
	copy(n.varData[offset:end], data)
	n.varReceived = end >= n.expectedVarEnd
}

// dataSpanForVariables computes the smallest contiguous window covering
// every named variable in names. This fixes the reference implementation's
// bug (documented in spec.md §9, Open Question 1) where length is lost when
// a later-added variable has a lower offset: lo = min(offset),
// hi = max(offset+size), span = (lo, hi-lo).
func (n *RemoteNode) dataSpanForVariables(names map[string]struct{}) (offset, length int, err error) {
	lo, hi := -1, -1
	for name := range names {
		off, ok := n.varOffset[name]
		if !ok {
			return 0, 0, fmt.Errorf("%w: %q", ErrUnknownName, name)
		}
		size := n.varSize[name]
		if lo == -1 || off < lo {
			lo = off
		}
		if off+size > hi {
			hi = off + size
		}
	}
	if lo == -1 {
		return 0, 0, nil
	}
	return lo, hi - lo, nil
}

// VariableDescriptions returns {name, offset, size} for every catalog entry
// in declaration order. Supplemental introspection helper; see SPEC_FULL.md §4.2.
func (n *RemoteNode) VariableDescriptions() []VariableDescriptor {
	out := make([]VariableDescriptor, 0, len(n.NamedVariables))
	for _, name := range n.NamedVariables {
		out = append(out, VariableDescriptor{
			Name:   name,
			Offset: n.varOffset[name],
			Size:   n.varSize[name],
		})
	}
	return out
}
