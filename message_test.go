package asebalink

import (
	"testing"

	"github.com/google/uuid"
)

func TestEncodeFrameRoundTrip(t *testing.T) {
	payload := wordsToBytesU([]uint16{1, 2, 3})
	frame := encodeFrame(idListNodes, DefaultHostNodeID, payload)

	if len(frame) != frameHeaderSize+len(payload) {
		t.Fatalf("frame length = %d, want %d", len(frame), frameHeaderSize+len(payload))
	}

	gotLen := int(frame[0]) | int(frame[1])<<8
	gotSource := int(frame[2]) | int(frame[3])<<8
	gotID := int(frame[4]) | int(frame[5])<<8
	if gotLen != len(payload) || gotSource != DefaultHostNodeID || gotID != idListNodes {
		t.Fatalf("header = (%d,%d,%d), want (%d,%d,%d)", gotLen, gotSource, gotID, len(payload), DefaultHostNodeID, idListNodes)
	}

	msg, err := decodeMessage(idListNodes, DefaultHostNodeID, frame[frameHeaderSize:])
	if err != nil {
		t.Fatalf("decodeMessage: %v", err)
	}
	if msg.version != 1 {
		t.Fatalf("version = %d, want 1", msg.version)
	}
}

func TestDecodeDescription(t *testing.T) {
	payload := append(
		append([]byte{4}, []byte("node")...),
		wordsToBytesU([]uint16{5, 100, 32, 64, 2, 1, 3})...,
	)
	msg, err := decodeMessage(idDescription, 7, payload)
	if err != nil {
		t.Fatalf("decodeMessage: %v", err)
	}
	if msg.nodeName != "node" || msg.protoVersion != 5 || msg.bytecodeSize != 100 ||
		msg.stackSize != 32 || msg.maxVarSize != 64 || msg.numNamedVar != 2 ||
		msg.numLocalEvents != 1 || msg.numNativeFun != 3 {
		t.Fatalf("decoded description mismatch: %+v", msg)
	}
}

func TestDecodeDeviceInfoUUID(t *testing.T) {
	id := uuid.New()
	raw := make([]byte, 0, 18)
	raw = append(raw, DeviceInfoUUID, 16)
	raw = append(raw, id[:]...)

	msg, err := decodeMessage(idDeviceInfo, 3, raw)
	if err != nil {
		t.Fatalf("decodeMessage: %v", err)
	}
	if msg.deviceInfoKind != DeviceInfoUUID || msg.deviceUUID != id {
		t.Fatalf("decoded uuid mismatch: got %v want %v", msg.deviceUUID, id)
	}
}

func TestDecodeVariablesWindow(t *testing.T) {
	payload := append(wordsToBytesU([]uint16{10}), wordsToBytes([]int16{1, -2, 3})...)
	msg, err := decodeMessage(idVariables, 2, payload)
	if err != nil {
		t.Fatalf("decodeMessage: %v", err)
	}
	if msg.varOffset != 10 {
		t.Fatalf("varOffset = %d, want 10", msg.varOffset)
	}
	want := []int16{1, -2, 3}
	if len(msg.varData) != len(want) {
		t.Fatalf("varData = %v, want %v", msg.varData, want)
	}
	for i := range want {
		if msg.varData[i] != want[i] {
			t.Fatalf("varData[%d] = %d, want %d", i, msg.varData[i], want[i])
		}
	}
}

func TestDecodeUserEvent(t *testing.T) {
	payload := wordsToBytes([]int16{42, -1})
	msg, err := decodeMessage(0x1234, 9, payload)
	if err != nil {
		t.Fatalf("decodeMessage: %v", err)
	}
	if len(msg.userEventArgs) != 2 || msg.userEventArgs[0] != 42 || msg.userEventArgs[1] != -1 {
		t.Fatalf("userEventArgs = %v", msg.userEventArgs)
	}
}

func TestDecodeTruncatedPayload(t *testing.T) {
	if _, err := decodeMessage(idDescription, 1, []byte{1, 'x'}); err == nil {
		t.Fatalf("expected truncation error")
	}
}
