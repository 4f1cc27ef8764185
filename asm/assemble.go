package asm

import (
	"strconv"
	"strings"

	"github.com/go-aseba/asebalink"
)

// Assemble compiles src to Aseba VM bytecode, seeding the symbol table from
// node's live variable, event, and native-function catalogs. It runs the
// textbook two-pass algorithm: pass 0 resolves every forward reference to 0
// so instruction lengths (and therefore label addresses) stabilize; pass 1
// re-resolves with every symbol now known and errors on anything still
// unresolved.
func Assemble(node *asebalink.RemoteNode, src string) ([]int16, error) {
	defs := nodeDefinitions(node)
	lines := strings.Split(src, "\n")

	var bytecode []int16
	for phase := 0; phase <= 1; phase++ {
		bc, err := assemblePass(lines, defs, phase)
		if err != nil {
			return nil, err
		}
		bytecode = bc
	}
	return bytecode, nil
}

func assemblePass(lines []string, defs map[string]int, phase int) ([]int16, error) {
	var bytecode []int16
	label := ""

	for i, line := range lines {
		lineNo := i + 1
		if reBlank.MatchString(line) {
			continue
		}
		if m := reLabel.FindStringSubmatch(line); m != nil {
			label = strings.TrimSuffix(m[1], ":")
			defs[label] = len(bytecode)
			continue
		}

		m := reInstr.FindStringSubmatch(line)
		if m == nil {
			return nil, &Error{Kind: AsmSyntax, Line: lineNo}
		}
		if m[1] != "" {
			label = m[1]
			defs[label] = len(bytecode)
		}
		name := m[2]
		rawArgs := strings.TrimSpace(m[3])

		spec, ok := instrTable[name]
		if !ok {
			return nil, &Error{Kind: AsmUnknownSymbol, Line: lineNo, Symbol: name}
		}

		args := parseArgs(rawArgs)

		switch {
		case spec.code != nil:
			bytecode = append(bytecode, spec.code...)
		case spec.encode != nil:
			words, err := spec.encode(len(bytecode), args, label, defs, phase, lineNo)
			if err != nil {
				return nil, err
			}
			bytecode = append(bytecode, words...)
		}

		if label != "" && defs[label] != len(bytecode) {
			label = ""
		}
	}
	return bytecode, nil
}

// parseArgs splits a raw operand string on commas and whitespace, then
// classifies each token as a numeric literal or a symbolic term.
func parseArgs(raw string) []arg {
	if raw == "" {
		return nil
	}
	var tokens []string
	for _, part := range strings.Split(raw, ",") {
		for _, tok := range strings.Fields(part) {
			tokens = append(tokens, tok)
		}
	}
	args := make([]arg, 0, len(tokens))
	for _, tok := range tokens {
		if reNumber.MatchString(tok) {
			v, err := strconv.ParseInt(tok, 0, 64)
			if err == nil {
				args = append(args, arg{isNumber: true, number: int(v)})
				continue
			}
		}
		args = append(args, arg{term: tok})
	}
	return args
}
