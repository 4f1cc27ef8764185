package asm

import (
	"errors"
	"strconv"
	"testing"

	"github.com/go-aseba/asebalink"
)

func TestAssemblePcRelativeJump(t *testing.T) {
	src := "dc end\nl: push.s 1\njump l\nend:\n"
	bc, err := Assemble(nil, src)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	want := []int16{3, u16(0x1001), u16(0x9fff)}
	if len(bc) != len(want) {
		t.Fatalf("bytecode = %#x, want %#x", bc, want)
	}
	for i := range want {
		if bc[i] != want[i] {
			t.Fatalf("bc[%d] = %#x, want %#x", i, bc[i], want[i])
		}
	}
}

func TestAssembleEquBindsLiteralNotAddress(t *testing.T) {
	src := "e: equ 7\npush e\n"
	bc, err := Assemble(nil, src)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	want := []int16{u16(0x2000), 7}
	if len(bc) != len(want) || bc[0] != want[0] || bc[1] != want[1] {
		t.Fatalf("bytecode = %#x, want %#x", bc, want)
	}
}

// TestAssembleAgainstLiveNode exercises symbol resolution seeded from a
// real variable catalog, including the _ev.init builtin.
func TestAssembleAgainstLiveNode(t *testing.T) {
	node := asebalink.NewRemoteNode(1, 5)
	if err := node.AddVariable("_pad", 269); err != nil {
		t.Fatal(err)
	}
	if err := node.AddVariable("x", 1); err != nil {
		t.Fatal(err)
	}
	node.ResetVarData()

	src := "dc end_toc\ndc _ev.init, init\nend_toc:\ninit: push.s 0\nstore x\nstop\n"
	bc, err := Assemble(node, src)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	want := []int16{3, u16(0xffff), 3, u16(0x1000), u16(0x410d), 0}
	if len(bc) != len(want) {
		t.Fatalf("bytecode = %#x, want %#x", bc, want)
	}
	for i := range want {
		if bc[i] != want[i] {
			t.Fatalf("bc[%d] = %#x, want %#x", i, bc[i], want[i])
		}
	}
}

func TestAssemblePushSBoundaries(t *testing.T) {
	cases := []struct {
		n    int
		want int16
	}{
		{0, u16(0x1000)},
		{1, u16(0x1001)},
		{0xfff, u16(0x1fff)},
		{-1, u16(0x1fff)},
		{-0x1000, u16(0x1000)},
	}
	for _, c := range cases {
		src := "push.s " + strconv.Itoa(c.n) + "\n"
		bc, err := Assemble(nil, src)
		if err != nil {
			t.Fatalf("push.s %d: %v", c.n, err)
		}
		if len(bc) != 1 || bc[0] != c.want {
			t.Fatalf("push.s %d = %#x, want %#x", c.n, bc, c.want)
		}
	}
}

func TestAssemblePushSOverflow(t *testing.T) {
	for _, n := range []string{"0x1000", "-0x1001"} {
		src := "push.s " + n + "\n"
		_, err := Assemble(nil, src)
		var asmErr *Error
		if !errors.As(err, &asmErr) || asmErr.Kind != SmallIntOverflow {
			t.Fatalf("push.s %s: err = %v, want SmallIntOverflow", n, err)
		}
	}
}

func TestAssembleUnknownInstruction(t *testing.T) {
	_, err := Assemble(nil, "frobnicate\n")
	var asmErr *Error
	if !errors.As(err, &asmErr) || asmErr.Kind != AsmUnknownSymbol {
		t.Fatalf("err = %v, want AsmUnknownSymbol", err)
	}
}

func TestAssembleUnknownSymbol(t *testing.T) {
	_, err := Assemble(nil, "push nosuchsymbol\n")
	var asmErr *Error
	if !errors.As(err, &asmErr) || asmErr.Kind != AsmUnknownSymbol || asmErr.Symbol != "nosuchsymbol" {
		t.Fatalf("err = %v, want AsmUnknownSymbol(nosuchsymbol)", err)
	}
}

func TestAssembleJumpIfNotRequiresComparisonOp(t *testing.T) {
	src := "l: stop\njump.if.not push, l\n"
	_, err := Assemble(nil, src)
	var asmErr *Error
	if !errors.As(err, &asmErr) || asmErr.Kind != AsmUnknownSymbol {
		t.Fatalf("err = %v, want AsmUnknownSymbol for non-comparison test op", err)
	}
}

func TestAssembleJumpIfNotEncoding(t *testing.T) {
	src := "eq\njump.if.not eq, target\ntarget: stop\n"
	bc, err := Assemble(nil, src)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	// eq (1 word) + jump.if.not (2 words) + stop (1 word) = 4 words.
	if len(bc) != 4 {
		t.Fatalf("bytecode = %#x, want 4 words", bc)
	}
	if bc[1] != u16(0xa000|0x0a) {
		t.Fatalf("jump.if.not opcode word = %#x, want %#x", bc[1], u16(0xa000|0x0a))
	}
}

