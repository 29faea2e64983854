package core

// Minimal WebAssembly binary walker. It understands just enough of the
// MVP module format to feed the admission analyzer: the import, function,
// export and code sections, and the operator stream of each function body
// with mnemonics and local indices. Everything else is skipped by section
// size.

import (
	"encoding/binary"
	"fmt"
)

const (
	wasmMagic   = 0x6d736100 // "\0asm"
	wasmVersion = 1
)

const (
	sectionType     = 1
	sectionImport   = 2
	sectionFunction = 3
	sectionExport   = 7
	sectionCode     = 10
)

const (
	externalKindFunc   = 0
	externalKindTable  = 1
	externalKindMemory = 2
	externalKindGlobal = 3
)

// wasmOp is one decoded operator. localIndex is only meaningful for the
// local.* operators.
type wasmOp struct {
	name       string
	localIndex uint32
}

type wasmImport struct {
	module string
	name   string
	kind   byte
}

type wasmExport struct {
	name  string
	kind  byte
	index uint32
}

type wasmModule struct {
	imports     []wasmImport
	funcTypeIdx []uint32
	exports     []wasmExport
	codes       [][]wasmOp
}

// numImportedFuncs counts the function entries of the import section; they
// precede module-local functions in the index space.
func (m *wasmModule) numImportedFuncs() int {
	n := 0
	for _, imp := range m.imports {
		if imp.kind == externalKindFunc {
			n++
		}
	}
	return n
}

type wasmReader struct {
	b   []byte
	pos int
}

func (r *wasmReader) remaining() int { return len(r.b) - r.pos }

func (r *wasmReader) byte() (byte, error) {
	if r.pos >= len(r.b) {
		return 0, fmt.Errorf("%w: truncated module", ErrParser)
	}
	v := r.b[r.pos]
	r.pos++
	return v, nil
}

func (r *wasmReader) bytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.b) {
		return nil, fmt.Errorf("%w: truncated module", ErrParser)
	}
	v := r.b[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

// uleb reads an unsigned LEB128 value of at most 64 bits.
func (r *wasmReader) uleb() (uint64, error) {
	var result uint64
	var shift uint
	for {
		b, err := r.byte()
		if err != nil {
			return 0, err
		}
		if shift >= 64 {
			return 0, fmt.Errorf("%w: leb128 overflow", ErrParser)
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
}

// sleb reads a signed LEB128 value; the bit width only bounds the loop.
func (r *wasmReader) sleb(bits uint) (int64, error) {
	var result int64
	var shift uint
	for {
		b, err := r.byte()
		if err != nil {
			return 0, err
		}
		if shift >= bits+7 {
			return 0, fmt.Errorf("%w: leb128 overflow", ErrParser)
		}
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < 64 && b&0x40 != 0 {
				result |= -1 << shift
			}
			return result, nil
		}
	}
}

func (r *wasmReader) name() (string, error) {
	n, err := r.uleb()
	if err != nil {
		return "", err
	}
	raw, err := r.bytes(int(n))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (r *wasmReader) limits() error {
	flags, err := r.byte()
	if err != nil {
		return err
	}
	if _, err := r.uleb(); err != nil {
		return err
	}
	if flags&1 != 0 {
		if _, err := r.uleb(); err != nil {
			return err
		}
	}
	return nil
}

// scanModule walks the container and collects the sections the analyzer
// needs.
func scanModule(bytecode []byte) (*wasmModule, error) {
	if len(bytecode) < 8 ||
		binary.LittleEndian.Uint32(bytecode[0:4]) != wasmMagic ||
		binary.LittleEndian.Uint32(bytecode[4:8]) != wasmVersion {
		return nil, fmt.Errorf("%w: not a wasm module", ErrParser)
	}

	r := &wasmReader{b: bytecode, pos: 8}
	mod := &wasmModule{}

	for r.remaining() > 0 {
		id, err := r.byte()
		if err != nil {
			return nil, err
		}
		size, err := r.uleb()
		if err != nil {
			return nil, err
		}
		payload, err := r.bytes(int(size))
		if err != nil {
			return nil, err
		}
		sec := &wasmReader{b: payload}

		switch id {
		case sectionImport:
			if err := scanImports(sec, mod); err != nil {
				return nil, err
			}
		case sectionFunction:
			count, err := sec.uleb()
			if err != nil {
				return nil, err
			}
			for n := uint64(0); n < count; n++ {
				idx, err := sec.uleb()
				if err != nil {
					return nil, err
				}
				mod.funcTypeIdx = append(mod.funcTypeIdx, uint32(idx))
			}
		case sectionExport:
			count, err := sec.uleb()
			if err != nil {
				return nil, err
			}
			for n := uint64(0); n < count; n++ {
				name, err := sec.name()
				if err != nil {
					return nil, err
				}
				kind, err := sec.byte()
				if err != nil {
					return nil, err
				}
				idx, err := sec.uleb()
				if err != nil {
					return nil, err
				}
				mod.exports = append(mod.exports, wasmExport{name: name, kind: kind, index: uint32(idx)})
			}
		case sectionCode:
			if err := scanCode(sec, mod); err != nil {
				return nil, err
			}
		}
	}
	return mod, nil
}

func scanImports(r *wasmReader, mod *wasmModule) error {
	count, err := r.uleb()
	if err != nil {
		return err
	}
	for n := uint64(0); n < count; n++ {
		module, err := r.name()
		if err != nil {
			return err
		}
		name, err := r.name()
		if err != nil {
			return err
		}
		kind, err := r.byte()
		if err != nil {
			return err
		}
		switch kind {
		case externalKindFunc:
			if _, err := r.uleb(); err != nil {
				return err
			}
		case externalKindTable:
			if _, err := r.byte(); err != nil {
				return err
			}
			if err := r.limits(); err != nil {
				return err
			}
		case externalKindMemory:
			if err := r.limits(); err != nil {
				return err
			}
		case externalKindGlobal:
			if _, err := r.bytes(2); err != nil { // valtype + mutability
				return err
			}
		default:
			return fmt.Errorf("%w: unknown import kind %d", ErrParser, kind)
		}
		mod.imports = append(mod.imports, wasmImport{module: module, name: name, kind: kind})
	}
	return nil
}

func scanCode(r *wasmReader, mod *wasmModule) error {
	count, err := r.uleb()
	if err != nil {
		return err
	}
	for n := uint64(0); n < count; n++ {
		bodySize, err := r.uleb()
		if err != nil {
			return err
		}
		body, err := r.bytes(int(bodySize))
		if err != nil {
			return err
		}
		ops, err := scanFunctionBody(&wasmReader{b: body})
		if err != nil {
			return err
		}
		mod.codes = append(mod.codes, ops)
	}
	return nil
}

func scanFunctionBody(r *wasmReader) ([]wasmOp, error) {
	declCount, err := r.uleb()
	if err != nil {
		return nil, err
	}
	for n := uint64(0); n < declCount; n++ {
		if _, err := r.uleb(); err != nil { // local run length
			return nil, err
		}
		if _, err := r.byte(); err != nil { // value type
			return nil, err
		}
	}

	var ops []wasmOp
	for r.remaining() > 0 {
		op, err := scanOperator(r)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// scanOperator decodes one operator and its immediates.
func scanOperator(r *wasmReader) (wasmOp, error) {
	opcode, err := r.byte()
	if err != nil {
		return wasmOp{}, err
	}

	if opcode == 0xfc {
		return scanMiscOperator(r)
	}

	name, ok := opcodeNames[opcode]
	if !ok {
		return wasmOp{}, fmt.Errorf("%w: unknown opcode 0x%02x", ErrParser, opcode)
	}

	switch opcode {
	case 0x02, 0x03, 0x04: // block, loop, if
		if _, err := r.sleb(33); err != nil {
			return wasmOp{}, err
		}
	case 0x0c, 0x0d, 0x10: // br, br_if, call
		if _, err := r.uleb(); err != nil {
			return wasmOp{}, err
		}
	case 0x0e: // br_table
		count, err := r.uleb()
		if err != nil {
			return wasmOp{}, err
		}
		for n := uint64(0); n <= count; n++ { // targets plus default
			if _, err := r.uleb(); err != nil {
				return wasmOp{}, err
			}
		}
	case 0x11: // call_indirect: type index + table index
		if _, err := r.uleb(); err != nil {
			return wasmOp{}, err
		}
		if _, err := r.byte(); err != nil {
			return wasmOp{}, err
		}
	case 0x20, 0x21, 0x22: // local.get / local.set / local.tee
		idx, err := r.uleb()
		if err != nil {
			return wasmOp{}, err
		}
		return wasmOp{name: name, localIndex: uint32(idx)}, nil
	case 0x23, 0x24: // global.get / global.set
		if _, err := r.uleb(); err != nil {
			return wasmOp{}, err
		}
	case 0x3f, 0x40: // memory.size / memory.grow
		if _, err := r.byte(); err != nil {
			return wasmOp{}, err
		}
	case 0x41: // i32.const
		if _, err := r.sleb(32); err != nil {
			return wasmOp{}, err
		}
	case 0x42: // i64.const
		if _, err := r.sleb(64); err != nil {
			return wasmOp{}, err
		}
	case 0x43: // f32.const
		if _, err := r.bytes(4); err != nil {
			return wasmOp{}, err
		}
	case 0x44: // f64.const
		if _, err := r.bytes(8); err != nil {
			return wasmOp{}, err
		}
	default:
		if opcode >= 0x28 && opcode <= 0x3e { // loads and stores: memarg
			if _, err := r.uleb(); err != nil {
				return wasmOp{}, err
			}
			if _, err := r.uleb(); err != nil {
				return wasmOp{}, err
			}
		}
	}
	return wasmOp{name: name}, nil
}

// scanMiscOperator decodes the 0xfc-prefixed family: saturating
// truncations and the bulk-memory operators.
func scanMiscOperator(r *wasmReader) (wasmOp, error) {
	subop, err := r.uleb()
	if err != nil {
		return wasmOp{}, err
	}
	switch {
	case subop <= 7: // i32/i64.trunc_sat_f32/f64_s/u
		return wasmOp{name: "trunc_sat"}, nil
	case subop == 8: // memory.init: data index + memory byte
		if _, err := r.uleb(); err != nil {
			return wasmOp{}, err
		}
		if _, err := r.byte(); err != nil {
			return wasmOp{}, err
		}
		return wasmOp{name: "memory.init"}, nil
	case subop == 9: // data.drop: data index
		if _, err := r.uleb(); err != nil {
			return wasmOp{}, err
		}
		return wasmOp{name: "data.drop"}, nil
	case subop == 10: // memory.copy: two memory bytes
		if _, err := r.bytes(2); err != nil {
			return wasmOp{}, err
		}
		return wasmOp{name: "memory.copy"}, nil
	case subop == 11: // memory.fill: memory byte
		if _, err := r.byte(); err != nil {
			return wasmOp{}, err
		}
		return wasmOp{name: "memory.fill"}, nil
	}
	return wasmOp{}, fmt.Errorf("%w: unknown misc opcode %d", ErrParser, subop)
}

// opcodeNames maps MVP opcodes to their mnemonics.
var opcodeNames = map[byte]string{
	0x00: "unreachable",
	0x01: "nop",
	0x02: "block",
	0x03: "loop",
	0x04: "if",
	0x05: "else",
	0x0b: "end",
	0x0c: "br",
	0x0d: "br_if",
	0x0e: "br_table",
	0x0f: "return",
	0x10: "call",
	0x11: "call_indirect",
	0x1a: "drop",
	0x1b: "select",
	0x20: "local.get",
	0x21: "local.set",
	0x22: "local.tee",
	0x23: "global.get",
	0x24: "global.set",
	0x28: "i32.load",
	0x29: "i64.load",
	0x2a: "f32.load",
	0x2b: "f64.load",
	0x2c: "i32.load8_s",
	0x2d: "i32.load8_u",
	0x2e: "i32.load16_s",
	0x2f: "i32.load16_u",
	0x30: "i64.load8_s",
	0x31: "i64.load8_u",
	0x32: "i64.load16_s",
	0x33: "i64.load16_u",
	0x34: "i64.load32_s",
	0x35: "i64.load32_u",
	0x36: "i32.store",
	0x37: "i64.store",
	0x38: "f32.store",
	0x39: "f64.store",
	0x3a: "i32.store8",
	0x3b: "i32.store16",
	0x3c: "i64.store8",
	0x3d: "i64.store16",
	0x3e: "i64.store32",
	0x3f: "memory.size",
	0x40: "memory.grow",
	0x41: "i32.const",
	0x42: "i64.const",
	0x43: "f32.const",
	0x44: "f64.const",
	0x45: "i32.eqz",
	0x46: "i32.eq",
	0x47: "i32.ne",
	0x48: "i32.lt_s",
	0x49: "i32.lt_u",
	0x4a: "i32.gt_s",
	0x4b: "i32.gt_u",
	0x4c: "i32.le_s",
	0x4d: "i32.le_u",
	0x4e: "i32.ge_s",
	0x4f: "i32.ge_u",
	0x50: "i64.eqz",
	0x51: "i64.eq",
	0x52: "i64.ne",
	0x53: "i64.lt_s",
	0x54: "i64.lt_u",
	0x55: "i64.gt_s",
	0x56: "i64.gt_u",
	0x57: "i64.le_s",
	0x58: "i64.le_u",
	0x59: "i64.ge_s",
	0x5a: "i64.ge_u",
	0x5b: "f32.eq",
	0x5c: "f32.ne",
	0x5d: "f32.lt",
	0x5e: "f32.gt",
	0x5f: "f32.le",
	0x60: "f32.ge",
	0x61: "f64.eq",
	0x62: "f64.ne",
	0x63: "f64.lt",
	0x64: "f64.gt",
	0x65: "f64.le",
	0x66: "f64.ge",
	0x67: "i32.clz",
	0x68: "i32.ctz",
	0x69: "i32.popcnt",
	0x6a: "i32.add",
	0x6b: "i32.sub",
	0x6c: "i32.mul",
	0x6d: "i32.div_s",
	0x6e: "i32.div_u",
	0x6f: "i32.rem_s",
	0x70: "i32.rem_u",
	0x71: "i32.and",
	0x72: "i32.or",
	0x73: "i32.xor",
	0x74: "i32.shl",
	0x75: "i32.shr_s",
	0x76: "i32.shr_u",
	0x77: "i32.rotl",
	0x78: "i32.rotr",
	0x79: "i64.clz",
	0x7a: "i64.ctz",
	0x7b: "i64.popcnt",
	0x7c: "i64.add",
	0x7d: "i64.sub",
	0x7e: "i64.mul",
	0x7f: "i64.div_s",
	0x80: "i64.div_u",
	0x81: "i64.rem_s",
	0x82: "i64.rem_u",
	0x83: "i64.and",
	0x84: "i64.or",
	0x85: "i64.xor",
	0x86: "i64.shl",
	0x87: "i64.shr_s",
	0x88: "i64.shr_u",
	0x89: "i64.rotl",
	0x8a: "i64.rotr",
	0x8b: "f32.abs",
	0x8c: "f32.neg",
	0x8d: "f32.ceil",
	0x8e: "f32.floor",
	0x8f: "f32.trunc",
	0x90: "f32.nearest",
	0x91: "f32.sqrt",
	0x92: "f32.add",
	0x93: "f32.sub",
	0x94: "f32.mul",
	0x95: "f32.div",
	0x96: "f32.min",
	0x97: "f32.max",
	0x98: "f32.copysign",
	0x99: "f64.abs",
	0x9a: "f64.neg",
	0x9b: "f64.ceil",
	0x9c: "f64.floor",
	0x9d: "f64.trunc",
	0x9e: "f64.nearest",
	0x9f: "f64.sqrt",
	0xa0: "f64.add",
	0xa1: "f64.sub",
	0xa2: "f64.mul",
	0xa3: "f64.div",
	0xa4: "f64.min",
	0xa5: "f64.max",
	0xa6: "f64.copysign",
	0xa7: "i32.wrap_i64",
	0xa8: "i32.trunc_f32_s",
	0xa9: "i32.trunc_f32_u",
	0xaa: "i32.trunc_f64_s",
	0xab: "i32.trunc_f64_u",
	0xac: "i64.extend_i32_s",
	0xad: "i64.extend_i32_u",
	0xae: "i64.trunc_f32_s",
	0xaf: "i64.trunc_f32_u",
	0xb0: "i64.trunc_f64_s",
	0xb1: "i64.trunc_f64_u",
	0xb2: "f32.convert_i32_s",
	0xb3: "f32.convert_i32_u",
	0xb4: "f32.convert_i64_s",
	0xb5: "f32.convert_i64_u",
	0xb6: "f32.demote_f64",
	0xb7: "f64.convert_i32_s",
	0xb8: "f64.convert_i32_u",
	0xb9: "f64.convert_i64_s",
	0xba: "f64.convert_i64_u",
	0xbb: "f64.promote_f32",
	0xbc: "i32.reinterpret_f32",
	0xbd: "i64.reinterpret_f64",
	0xbe: "f32.reinterpret_i32",
	0xbf: "f64.reinterpret_i64",
}
