package asebalink

import "fmt"

// ListNodes broadcasts a LIST_NODES request declaring the host's protocol
// version. Nodes respond with NODE_PRESENT.
func (s *Session) ListNodes() error {
	return s.send(idListNodes, []int16{ProtocolVersion})
}

// GetNodeDescription requests a node's DESCRIPTION, NAMED_VARIABLE_DESCRIPTION
// ×N, LOCAL_EVENT_DESCRIPTION×N and NATIVE_FUNCTION_DESCRIPTION×N burst.
func (s *Session) GetNodeDescription(nodeID uint16) error {
	return s.send(idGetNodeDescription, []int16{int16(nodeID), ProtocolVersion})
}

// GetNodeDescriptionFragment requests one fragment of a node description
// (v8+ protocol extension). See SPEC_FULL.md §4.3.
func (s *Session) GetNodeDescriptionFragment(nodeID uint16, fragment uint16) error {
	return s.send(idGetNodeDescriptionFragment, []int16{int16(nodeID), ProtocolVersion, int16(fragment)})
}

// GetDeviceInfo requests one DEVICE_INFO sub-kind (DeviceInfoName,
// DeviceInfoUUID, or DeviceInfoRF).
func (s *Session) GetDeviceInfo(nodeID uint16, kind byte) error {
	return s.send(idGetDeviceInfo, []int16{int16(nodeID), int16(kind)})
}

// GetDeviceInfoAll requests every DEVICE_INFO sub-kind, matching the
// original's get_device_info(target_node_id) with info=None.
func (s *Session) GetDeviceInfoAll(nodeID uint16) error {
	for _, kind := range [...]byte{DeviceInfoName, DeviceInfoRF, DeviceInfoUUID} {
		if err := s.GetDeviceInfo(nodeID, kind); err != nil {
			return err
		}
	}
	return nil
}

// SetDeviceInfo pushes a DEVICE_INFO sub-kind to the node (v6+ protocol
// extension; supplemental, see SPEC_FULL.md §4.3).
func (s *Session) SetDeviceInfo(nodeID uint16, kind byte, data []int16) error {
	payload := append([]int16{int16(nodeID), int16(kind)}, data...)
	return s.send(idSetDeviceInfo, payload)
}

// GetVariables requests a GET_VARIABLES window [offset, offset+length) from
// a node's memory, recording the expected window end so the dispatch loop
// knows when a reply completes the refresh.
func (s *Session) GetVariables(nodeID uint16, offset, length int) error {
	s.inputMu.Lock()
	node, ok := s.remoteNodes[nodeID]
	if ok {
		node.expectedVarEnd = offset + length
	}
	s.inputMu.Unlock()
	if !ok {
		return fmt.Errorf("%w: node %d", ErrUnknownNode, nodeID)
	}
	return s.send(idGetVariables, []int16{int16(nodeID), int16(offset), int16(length)})
}

// GetVariablesAll requests the whole variable mirror.
func (s *Session) GetVariablesAll(nodeID uint16) error {
	node, err := s.node(nodeID)
	if err != nil {
		return err
	}
	return s.GetVariables(nodeID, 0, node.VarTotalSize())
}

// GetChangedVariables requests only the variables that changed since the
// last refresh (v7+ protocol extension; supplemental, see SPEC_FULL.md §4.3).
func (s *Session) GetChangedVariables(nodeID uint16) error {
	return s.send(idGetChangedVariables, []int16{int16(nodeID)})
}

// SetVariables writes a contiguous chunk of words into a node's memory
// starting at offset.
func (s *Session) SetVariables(nodeID uint16, offset int, chunk []int16) error {
	payload := append([]int16{int16(nodeID), int16(offset)}, chunk...)
	return s.send(idSetVariables, payload)
}

// GetScalar reads one word of a named variable from the local mirror.
func (s *Session) GetScalar(nodeID uint16, name string, index int) (int16, error) {
	node, err := s.node(nodeID)
	if err != nil {
		return 0, err
	}
	s.inputMu.Lock()
	defer s.inputMu.Unlock()
	return node.GetScalar(name, index)
}

// GetArray reads a whole named array variable from the local mirror.
func (s *Session) GetArray(nodeID uint16, name string) ([]int16, error) {
	node, err := s.node(nodeID)
	if err != nil {
		return nil, err
	}
	s.inputMu.Lock()
	defer s.inputMu.Unlock()
	return node.GetArray(name)
}

// SetScalar writes one word of a named variable into the local mirror and
// ships it to the node with SET_VARIABLES.
func (s *Session) SetScalar(nodeID uint16, name string, val int16, index int) error {
	node, err := s.node(nodeID)
	if err != nil {
		return err
	}
	s.inputMu.Lock()
	offset, values, err := node.SetScalar(name, val, index)
	s.inputMu.Unlock()
	if err != nil {
		return err
	}
	return s.SetVariables(nodeID, offset, values)
}

// SetArray writes a whole named array variable into the local mirror and
// ships it to the node with SET_VARIABLES.
func (s *Session) SetArray(nodeID uint16, name string, values []int16) error {
	node, err := s.node(nodeID)
	if err != nil {
		return err
	}
	s.inputMu.Lock()
	offset, out, err := node.SetArray(name, values)
	s.inputMu.Unlock()
	if err != nil {
		return err
	}
	return s.SetVariables(nodeID, offset, out)
}

// VariableDescriptions returns the variable catalog of a node.
func (s *Session) VariableDescriptions(nodeID uint16) ([]VariableDescriptor, error) {
	node, err := s.node(nodeID)
	if err != nil {
		return nil, err
	}
	s.inputMu.Lock()
	defer s.inputMu.Unlock()
	return node.VariableDescriptions(), nil
}

const bytecodeChunkWords = 256

// SetBytecode ships a compiled program to a node's bytecode memory,
// splitting it into SET_BYTECODE messages of at most 256 words each, per
// the original's chunking in set_bytecode.
func (s *Session) SetBytecode(nodeID uint16, bytecode []int16, address int) error {
	node, err := s.node(nodeID)
	if err != nil {
		return err
	}
	if address+len(bytecode) > int(node.BytecodeSize) {
		return ErrBytecodeTooLarge
	}
	for i := 0; i < len(bytecode); i += bytecodeChunkWords {
		end := i + bytecodeChunkWords
		if end > len(bytecode) {
			end = len(bytecode)
		}
		chunk := bytecode[i:end]
		payload := append([]int16{int16(nodeID), int16(address + i)}, chunk...)
		if err := s.send(idSetBytecode, payload); err != nil {
			return err
		}
	}
	return nil
}

// Reset resets the VM state on a node.
func (s *Session) Reset(nodeID uint16) error {
	return s.send(idReset, []int16{int16(nodeID)})
}

// Run starts executing the currently loaded bytecode on a node.
func (s *Session) Run(nodeID uint16) error {
	return s.send(idRun, []int16{int16(nodeID)})
}

// Pause suspends execution on a node without resetting VM state.
func (s *Session) Pause(nodeID uint16) error {
	return s.send(idPause, []int16{int16(nodeID)})
}

// Step advances a paused node by one VM instruction.
func (s *Session) Step(nodeID uint16) error {
	return s.send(idStep, []int16{int16(nodeID)})
}

// Stop halts execution on a node.
func (s *Session) Stop(nodeID uint16) error {
	return s.send(idStop, []int16{int16(nodeID)})
}

// GetExecutionState requests an EXECUTION_STATE_CHANGED report for a node.
func (s *Session) GetExecutionState(nodeID uint16) error {
	return s.send(idGetExecutionState, []int16{int16(nodeID)})
}

// BreakpointSet installs a breakpoint at pc on a node.
func (s *Session) BreakpointSet(nodeID uint16, pc uint16) error {
	return s.send(idBreakpointSet, []int16{int16(nodeID), int16(pc)})
}

// BreakpointClear removes the breakpoint at pc on a node.
func (s *Session) BreakpointClear(nodeID uint16, pc uint16) error {
	return s.send(idBreakpointClear, []int16{int16(nodeID), int16(pc)})
}

// BreakpointClearAll removes every breakpoint on a node.
func (s *Session) BreakpointClearAll(nodeID uint16) error {
	return s.send(idBreakpointClearAll, []int16{int16(nodeID)})
}
