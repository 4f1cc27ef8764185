// Package asm implements the two-pass assembler that turns the Aseba VM's
// textual instruction language into bytecode words, resolving symbols
// against a live node's variable, event, and native-function catalogs.
package asm

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/go-aseba/asebalink"
)

// ErrorKind classifies why assembly failed.
type ErrorKind int

const (
	AsmSyntax ErrorKind = iota
	AsmUnknownSymbol
	AddrRange
	SmallIntOverflow
	EventIdRange
	NativeIdRange
	AsmNotImplemented
)

func (k ErrorKind) String() string {
	switch k {
	case AsmSyntax:
		return "syntax error"
	case AsmUnknownSymbol:
		return "unknown symbol"
	case AddrRange:
		return "address out of range"
	case SmallIntOverflow:
		return "small integer overflow"
	case EventIdRange:
		return "event id out of range"
	case NativeIdRange:
		return "native call id out of range"
	case AsmNotImplemented:
		return "not implemented in the VM"
	default:
		return "assembler error"
	}
}

// Error is returned by Assemble for any failure, carrying enough context to
// point back at the offending source line.
type Error struct {
	Kind   ErrorKind
	Line   int
	Symbol string
}

func (e *Error) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("asm: %s %q (line %d)", e.Kind, e.Symbol, e.Line)
	}
	return fmt.Sprintf("asm: %s (line %d)", e.Kind, e.Line)
}

// nodeDefinitions seeds the symbol table from a live node's catalogs:
// variable offsets, _userdata/_topdata, _ev.init/_ev.<name>, _nf.<name>.
func nodeDefinitions(node *asebalink.RemoteNode) map[string]int {
	defs := make(map[string]int)
	if node == nil {
		return defs
	}
	for _, v := range node.VariableDescriptions() {
		defs[v.Name] = v.Offset
	}
	defs["_userdata"] = node.VarTotalSize()
	defs["_topdata"] = int(node.MaxVarSize)

	defs["_ev.init"] = 0xffff
	for i, name := range node.LocalEvents {
		defs["_ev."+name] = 0xfffe - i
	}
	for i, name := range node.NativeFunctions {
		defs["_nf."+name] = i
	}
	return defs
}

// arg is one parsed instruction operand: either a literal integer or a
// symbolic term sequence to resolve against defs (e.g. "foo+1", "-bar").
type arg struct {
	isNumber bool
	number   int
	term     string
}

var (
	reBlank  = regexp.MustCompile(`^\s*(;.*)?$`)
	reLabel  = regexp.MustCompile(`^\s*([\w.]+):\s*(;.*)?$`)
	reInstr  = regexp.MustCompile(`^\s*(?:([\w.]+):)?\s*([a-z0-9.]+)([-a-zA-Z0-9\s._,+=]*)(?:;.*)?$`)
	reNumber = regexp.MustCompile(`^(-?[0-9]+|0x[0-9a-fA-F]+)$`)
	reTerm   = regexp.MustCompile(`(\+|-|[._a-zA-Z0-9]+)`)
)

// resolveSymbol evaluates a sum-of-terms operand against defs. On pass 0
// (required=false) unknown symbols resolve to 0, which stabilizes
// instruction lengths; pass 1 (required=true) demands every symbol be
// known and errors otherwise.
func resolveSymbol(a arg, defs map[string]int, required bool, line int) (int, error) {
	if a.isNumber {
		return a.number, nil
	}
	s := a.term
	val := 0
	minus := false
	offset := 0
	for offset < len(s) {
		m := reTerm.FindStringIndex(s[offset:])
		if m == nil || m[0] != 0 {
			return 0, &Error{Kind: AsmSyntax, Line: line}
		}
		tok := s[offset : offset+m[1]]
		switch tok {
		case "+":
			minus = false
		case "-":
			minus = true
		default:
			d, err := resolveDef(tok, defs, required, line)
			if err != nil {
				return 0, err
			}
			if minus {
				val -= d
			} else {
				val += d
			}
		}
		offset += len(tok)
	}
	return val, nil
}

func resolveDef(name string, defs map[string]int, required bool, line int) (int, error) {
	if !required {
		return 0, nil
	}
	if reNumber.MatchString(name) {
		v, err := strconv.ParseInt(name, 0, 64)
		return int(v), err
	}
	v, ok := defs[name]
	if !ok {
		return 0, &Error{Kind: AsmUnknownSymbol, Line: line, Symbol: name}
	}
	return v, nil
}
