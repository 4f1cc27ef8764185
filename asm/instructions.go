package asm

// instrSpec is one entry of the mnemonic dispatch table: either a fixed
// zero-argument opcode, or an encoder closure that resolves its operands
// against the current pass's symbol table and returns the resulting words.
// This mirrors assembler.py's self.instr dict of {"code": ...} /
// {"to_code": ...} records.
type instrSpec struct {
	numArgs int // -1 means variadic (dc)
	code    []int16
	encode  func(pc int, args []arg, label string, defs map[string]int, phase int, line int) ([]int16, error)
}

// testOpcode returns the fixed comparison-opcode word for mnemonic name, or
// ok=false if name isn't a single-word 0x8xxx comparison op. Used by
// jump.if.not/do.jump.when.not/dont.jump.when.not to validate their first
// operand.
func testOpcode(name string) (code int16, ok bool) {
	spec, known := instrTable[name]
	if !known || spec.code == nil || len(spec.code) != 1 {
		return 0, false
	}
	if uint16(spec.code[0])&0xf000 != 0x8000 {
		return 0, false
	}
	return spec.code[0], true
}

var instrTable map[string]instrSpec

func init() {
	instrTable = map[string]instrSpec{
		"dc":  {numArgs: -1, encode: encodeDC},
		"equ": {numArgs: 1, encode: encodeEqu},

		"stop": {numArgs: 0, code: []int16{0x0000}},

		"push.s": {numArgs: 1, encode: encodePushS},
		"push":   {numArgs: 1, encode: encodePush},
		"load":   {numArgs: 1, encode: encodeLoad},
		"store":  {numArgs: 1, encode: encodeStore},

		"load.ind":  {numArgs: 2, encode: encodeLoadInd},
		"store.ind": {numArgs: 2, encode: encodeStoreInd},

		"neg":    {numArgs: 0, code: []int16{0x7000}},
		"abs":    {numArgs: 0, code: []int16{0x7001}},
		"bitnot": {numArgs: 0, code: []int16{0x7002}},
		"not":    {numArgs: 0, encode: encodeNot},

		"sl":     {numArgs: 0, code: []int16{-0x8000}}, // 0x8000 as int16
		"asr":    {numArgs: 0, code: []int16{-0x7fff}}, // 0x8001
		"add":    {numArgs: 0, code: []int16{-0x7ffe}}, // 0x8002
		"sub":    {numArgs: 0, code: []int16{-0x7ffd}}, // 0x8003
		"mult":   {numArgs: 0, code: []int16{-0x7ffc}}, // 0x8004
		"div":    {numArgs: 0, code: []int16{-0x7ffb}}, // 0x8005
		"mod":    {numArgs: 0, code: []int16{-0x7ffa}}, // 0x8006
		"bitor":  {numArgs: 0, code: []int16{-0x7ff9}}, // 0x8007
		"bitxor": {numArgs: 0, code: []int16{-0x7ff8}}, // 0x8008
		"bitand": {numArgs: 0, code: []int16{-0x7ff7}}, // 0x8009
		"eq":     {numArgs: 0, code: []int16{-0x7ff6}}, // 0x800a
		"ne":     {numArgs: 0, code: []int16{-0x7ff5}}, // 0x800b
		"gt":     {numArgs: 0, code: []int16{-0x7ff4}}, // 0x800c
		"ge":     {numArgs: 0, code: []int16{-0x7ff3}}, // 0x800d
		"lt":     {numArgs: 0, code: []int16{-0x7ff2}}, // 0x800e
		"le":     {numArgs: 0, code: []int16{-0x7ff1}}, // 0x800f
		"or":     {numArgs: 0, code: []int16{-0x7ff0}}, // 0x8010
		"and":    {numArgs: 0, code: []int16{-0x7fef}}, // 0x8011

		"jump":                {numArgs: 1, encode: encodeJump},
		"jump.if.not":         {numArgs: 2, encode: encodeJumpIfNot(-0x6000)}, // 0xa000
		"do.jump.when.not":    {numArgs: 2, encode: encodeJumpIfNot(-0x5f00)}, // 0xa100
		"dont.jump.when.not":  {numArgs: 2, encode: encodeJumpIfNot(-0x5d00)}, // 0xa300

		"emit":    {numArgs: 3, encode: encodeEmit},
		"callnat": {numArgs: 1, encode: encodeCallnat},
		"callsub": {numArgs: 1, encode: encodeCallsub},
		"ret":     {numArgs: 0, code: []int16{-0x2000}}, // 0xe000
	}
}

func u16(v int) int16 { return int16(uint16(v)) }

func encodeDC(pc int, args []arg, label string, defs map[string]int, phase int, line int) ([]int16, error) {
	out := make([]int16, 0, len(args))
	for _, a := range args {
		v, err := resolveSymbol(a, defs, phase == 1, line)
		if err != nil {
			return nil, err
		}
		out = append(out, u16(v))
	}
	return out, nil
}

func encodeEqu(pc int, args []arg, label string, defs map[string]int, phase int, line int) ([]int16, error) {
	if label == "" {
		return nil, &Error{Kind: AsmSyntax, Line: line, Symbol: "equ"}
	}
	v, err := resolveSymbol(args[0], defs, phase == 1, line)
	if err != nil {
		return nil, err
	}
	defs[label] = v
	return nil, nil
}

func encodePushS(pc int, args []arg, label string, defs map[string]int, phase int, line int) ([]int16, error) {
	v, err := resolveSymbol(args[0], defs, phase == 1, line)
	if err != nil {
		return nil, err
	}
	if v >= 0x1000 || -v > 0x1000 {
		return nil, &Error{Kind: SmallIntOverflow, Line: line}
	}
	return []int16{u16(0x1000 | (v & 0xfff))}, nil
}

func encodePush(pc int, args []arg, label string, defs map[string]int, phase int, line int) ([]int16, error) {
	v, err := resolveSymbol(args[0], defs, phase == 1, line)
	if err != nil {
		return nil, err
	}
	return []int16{u16(0x2000), u16(v)}, nil
}

func encodeLoad(pc int, args []arg, label string, defs map[string]int, phase int, line int) ([]int16, error) {
	v, err := resolveSymbol(args[0], defs, phase == 1, line)
	if err != nil {
		return nil, err
	}
	if v < 0 || v >= 0x1000 {
		return nil, &Error{Kind: AddrRange, Line: line}
	}
	return []int16{u16(0x3000 | (v & 0xfff))}, nil
}

func encodeStore(pc int, args []arg, label string, defs map[string]int, phase int, line int) ([]int16, error) {
	v, err := resolveSymbol(args[0], defs, phase == 1, line)
	if err != nil {
		return nil, err
	}
	if v < 0 || v >= 0x1000 {
		return nil, &Error{Kind: AddrRange, Line: line}
	}
	return []int16{u16(0x4000 | (v & 0xfff))}, nil
}

func encodeLoadInd(pc int, args []arg, label string, defs map[string]int, phase int, line int) ([]int16, error) {
	v, err := resolveSymbol(args[0], defs, phase == 1, line)
	if err != nil {
		return nil, err
	}
	if v < 0 || v >= 0x1000 {
		return nil, &Error{Kind: AddrRange, Line: line}
	}
	size, err := resolveSymbol(args[1], defs, phase == 1, line)
	if err != nil {
		return nil, err
	}
	return []int16{u16(0x5000 | (v & 0xfff)), u16(size)}, nil
}

func encodeStoreInd(pc int, args []arg, label string, defs map[string]int, phase int, line int) ([]int16, error) {
	v, err := resolveSymbol(args[0], defs, phase == 1, line)
	if err != nil {
		return nil, err
	}
	if v < 0 || v >= 0x1000 {
		return nil, &Error{Kind: AddrRange, Line: line}
	}
	size, err := resolveSymbol(args[1], defs, phase == 1, line)
	if err != nil {
		return nil, err
	}
	return []int16{u16(0x6000 | (v & 0xfff)), u16(size)}, nil
}

func encodeNot(pc int, args []arg, label string, defs map[string]int, phase int, line int) ([]int16, error) {
	return nil, &Error{Kind: AsmNotImplemented, Line: line, Symbol: "not"}
}

func encodeJump(pc int, args []arg, label string, defs map[string]int, phase int, line int) ([]int16, error) {
	v, err := resolveSymbol(args[0], defs, phase == 1, line)
	if err != nil {
		return nil, err
	}
	return []int16{u16(0x9000 | ((v - pc) & 0xfff))}, nil
}

// encodeJumpIfNot returns an encoder parameterized by the base opcode word
// (0xa000 for jump.if.not, 0xa100 for do.jump.when.not, 0xa300 for
// dont.jump.when.not); all three share the same operand shape: a
// comparison-op mnemonic plus a PC-relative target.
func encodeJumpIfNot(base int16) func(pc int, args []arg, label string, defs map[string]int, phase int, line int) ([]int16, error) {
	return func(pc int, args []arg, label string, defs map[string]int, phase int, line int) ([]int16, error) {
		if args[0].isNumber {
			return nil, &Error{Kind: AsmSyntax, Line: line}
		}
		code, ok := testOpcode(args[0].term)
		if !ok {
			return nil, &Error{Kind: AsmUnknownSymbol, Line: line, Symbol: args[0].term}
		}
		target, err := resolveSymbol(args[1], defs, phase == 1, line)
		if err != nil {
			return nil, err
		}
		return []int16{u16(int(uint16(base)) | int(code)&0xff), u16(target - pc)}, nil
	}
}

func encodeEmit(pc int, args []arg, label string, defs map[string]int, phase int, line int) ([]int16, error) {
	id, err := resolveSymbol(args[0], defs, phase == 1, line)
	if err != nil {
		return nil, err
	}
	if id < 0 || id >= 0x1000 {
		return nil, &Error{Kind: EventIdRange, Line: line}
	}
	addr, err := resolveSymbol(args[1], defs, phase == 1, line)
	if err != nil {
		return nil, err
	}
	size, err := resolveSymbol(args[2], defs, phase == 1, line)
	if err != nil {
		return nil, err
	}
	return []int16{u16(0xb000 | (id & 0xfff)), u16(addr), u16(size)}, nil
}

func encodeCallnat(pc int, args []arg, label string, defs map[string]int, phase int, line int) ([]int16, error) {
	v, err := resolveSymbol(args[0], defs, phase == 1, line)
	if err != nil {
		return nil, err
	}
	if v < 0 || v >= 0x1000 {
		return nil, &Error{Kind: NativeIdRange, Line: line}
	}
	return []int16{u16(0xc000 | (v & 0xfff))}, nil
}

func encodeCallsub(pc int, args []arg, label string, defs map[string]int, phase int, line int) ([]int16, error) {
	v, err := resolveSymbol(args[0], defs, phase == 1, line)
	if err != nil {
		return nil, err
	}
	if v < 0 || v >= 0x1000 {
		return nil, &Error{Kind: AddrRange, Line: line}
	}
	return []int16{u16(0xd000 | (v & 0xfff))}, nil
}
