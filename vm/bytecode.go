package vm

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode represents a single bytecode instruction.
type Opcode byte

// Stack Operations
const (
	OpNOP   Opcode = 0x00 // no operation
	OpPOP   Opcode = 0x01 // discard top of stack
	OpDUP   Opcode = 0x02 // duplicate top of stack
	OpDUP2  Opcode = 0x03 // duplicate top two entries
	OpXCHG  Opcode = 0x04 // swap top two entries
	OpXCHG2 Opcode = 0x05 // rotate top three: [a b c] -> [c a b]
)

// Push Constants
const (
	OpPushNil   Opcode = 0x10 // push nil
	OpPushZero  Opcode = 0x11 // push 0
	OpPushOne   Opcode = 0x12 // push 1
	OpPushConst Opcode = 0x13 // push constant (16-bit index); code constants become closures
)

// Arithmetic and comparison
const (
	OpPlus  Opcode = 0x20
	OpMinus Opcode = 0x21
	OpMul   Opcode = 0x22
	OpDiv   Opcode = 0x23
	OpNeg   Opcode = 0x24
	OpCat   Opcode = 0x25
	OpNot   Opcode = 0x26
	OpLT    Opcode = 0x27
	OpLTE   Opcode = 0x28
	OpGT    Opcode = 0x29
	OpGTE   Opcode = 0x2A
	OpEQ    Opcode = 0x2B
	OpNEQ   Opcode = 0x2C
)

// Control Flow
const (
	OpJmp       Opcode = 0x30 // unconditional jump (16-bit offset)
	OpJmpLoop   Opcode = 0x31 // backward jump; GC safe point
	OpJifTrue   Opcode = 0x32 // jump if top is true, no pop
	OpJifNot    Opcode = 0x33 // jump if top is false, no pop
	OpJifNotPop Opcode = 0x34 // pop, jump if false
	OpJifEnd    Opcode = 0x35 // if top is the end marker: pop, jump
	OpEach      Opcode = 0x36 // [vec idx] -> push next element or end marker
	OpIndex     Opcode = 0x37 // [vec idx] -> push next index or end marker
	OpMark      Opcode = 0x38 // record operand depth for break/continue
	OpUnmark    Opcode = 0x39 // drop the innermost mark
	OpBreak     Opcode = 0x3A // reset operand depth to the innermost mark
)

// Calls
const (
	OpFCall  Opcode = 0x40 // [fn args...] call (16-bit argc)
	OpMCall  Opcode = 0x41 // [obj fn args...] method call (16-bit argc)
	OpFCallH Opcode = 0x42 // [fn hash] named-argument call
	OpMCallH Opcode = 0x43 // [obj fn hash] named-argument method call
	OpReturn Opcode = 0x44 // return top of stack
)

// Containers and symbols
const (
	OpNewVec    Opcode = 0x50 // build vector from top n entries (16-bit)
	OpNewHash   Opcode = 0x51 // build hash from top n key/value pairs (16-bit)
	OpLocal     Opcode = 0x52 // push symbol lookup (16-bit constant)
	OpSetLocal  Opcode = 0x53 // store into locals (16-bit constant), keep value
	OpSetSym    Opcode = 0x54 // store through the scope chain (16-bit constant), keep value
	OpMember    Opcode = 0x55 // [obj] -> obj.sym (16-bit constant)
	OpSetMember Opcode = 0x56 // [obj val] -> val, obj.sym = val
	OpExtract   Opcode = 0x57 // [box key] -> box[key]
	OpInsert    Opcode = 0x58 // [box key val] -> val, box[key] = val
	OpSlice     Opcode = 0x59 // [src res idx] -> [src res], append src[idx]
	OpSlice2    Opcode = 0x5A // [src res a b] -> [src res], append src[a..b]
	OpUnpack    Opcode = 0x5B // [vec] -> elements (16-bit count)
)

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// OpcodeInfo is the disassembler's view of an opcode.
type OpcodeInfo struct {
	Name         string // human-readable name
	OperandBytes int    // number of operand bytes
}

var opcodeTable = map[Opcode]OpcodeInfo{
	OpNOP:   {"NOP", 0},
	OpPOP:   {"POP", 0},
	OpDUP:   {"DUP", 0},
	OpDUP2:  {"DUP2", 0},
	OpXCHG:  {"XCHG", 0},
	OpXCHG2: {"XCHG2", 0},

	OpPushNil:   {"PUSH_NIL", 0},
	OpPushZero:  {"PUSH_ZERO", 0},
	OpPushOne:   {"PUSH_ONE", 0},
	OpPushConst: {"PUSH_CONST", 2},

	OpPlus:  {"PLUS", 0},
	OpMinus: {"MINUS", 0},
	OpMul:   {"MUL", 0},
	OpDiv:   {"DIV", 0},
	OpNeg:   {"NEG", 0},
	OpCat:   {"CAT", 0},
	OpNot:   {"NOT", 0},
	OpLT:    {"LT", 0},
	OpLTE:   {"LTE", 0},
	OpGT:    {"GT", 0},
	OpGTE:   {"GTE", 0},
	OpEQ:    {"EQ", 0},
	OpNEQ:   {"NEQ", 0},

	OpJmp:       {"JMP", 2},
	OpJmpLoop:   {"JMP_LOOP", 2},
	OpJifTrue:   {"JIF_TRUE", 2},
	OpJifNot:    {"JIF_NOT", 2},
	OpJifNotPop: {"JIF_NOT_POP", 2},
	OpJifEnd:    {"JIF_END", 2},
	OpEach:      {"EACH", 0},
	OpIndex:     {"INDEX", 0},
	OpMark:      {"MARK", 0},
	OpUnmark:    {"UNMARK", 0},
	OpBreak:     {"BREAK", 0},

	OpFCall:  {"FCALL", 2},
	OpMCall:  {"MCALL", 2},
	OpFCallH: {"FCALLH", 0},
	OpMCallH: {"MCALLH", 0},
	OpReturn: {"RETURN", 0},

	OpNewVec:    {"NEW_VEC", 2},
	OpNewHash:   {"NEW_HASH", 2},
	OpLocal:     {"LOCAL", 2},
	OpSetLocal:  {"SET_LOCAL", 2},
	OpSetSym:    {"SET_SYM", 2},
	OpMember:    {"MEMBER", 2},
	OpSetMember: {"SET_MEMBER", 2},
	OpExtract:   {"EXTRACT", 0},
	OpInsert:    {"INSERT", 0},
	OpSlice:     {"SLICE", 0},
	OpSlice2:    {"SLICE2", 0},
	OpUnpack:    {"UNPACK", 2},
}

// Info returns metadata for the opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// String implements the Stringer interface.
func (op Opcode) String() string {
	return op.Info().Name
}

func (op Opcode) isJump() bool {
	return op >= OpJmp && op <= OpJifEnd
}

// ---------------------------------------------------------------------------
// Builder
// ---------------------------------------------------------------------------

// BytecodeBuilder helps construct bytecode sequences.
type BytecodeBuilder struct {
	bytes []byte
}

// NewBytecodeBuilder creates a new bytecode builder.
func NewBytecodeBuilder() *BytecodeBuilder {
	return &BytecodeBuilder{
		bytes: make([]byte, 0, 64),
	}
}

// Bytes returns the constructed bytecode.
func (b *BytecodeBuilder) Bytes() []byte {
	return b.bytes
}

// Len is the number of bytes emitted so far.
func (b *BytecodeBuilder) Len() int {
	return len(b.bytes)
}

// Emit appends an opcode with no operands.
func (b *BytecodeBuilder) Emit(op Opcode) {
	b.bytes = append(b.bytes, byte(op))
}

// EmitUint16 appends an opcode with a 16-bit operand (little-endian).
func (b *BytecodeBuilder) EmitUint16(op Opcode, operand uint16) {
	b.bytes = append(b.bytes, byte(op), byte(operand), byte(operand>>8))
}

// ---------------------------------------------------------------------------
// Labels
// ---------------------------------------------------------------------------

// Label represents a jump target that may not be known yet.
type Label struct {
	resolved bool
	position int   // target once resolved
	refs     []int // operand positions waiting for the target
}

// NewLabel creates an unresolved label.
func (b *BytecodeBuilder) NewLabel() *Label {
	return &Label{refs: make([]int, 0, 2)}
}

// Mark resolves a label to the current position and patches every
// forward reference to it.
func (b *BytecodeBuilder) Mark(label *Label) {
	if label.resolved {
		panic("label already resolved")
	}
	label.resolved = true
	label.position = len(b.bytes)

	for _, ref := range label.refs {
		offset := label.position - (ref + 2) // offset from after the operand
		b.bytes[ref] = byte(offset)
		b.bytes[ref+1] = byte(offset >> 8)
	}
	label.refs = nil
}

// Resolved reports whether the label has been marked.
func (l *Label) Resolved() bool { return l.resolved }

// EmitJump emits a jump instruction with a label.
func (b *BytecodeBuilder) EmitJump(op Opcode, label *Label) {
	b.bytes = append(b.bytes, byte(op))
	if label.resolved {
		offset := label.position - (len(b.bytes) + 2)
		b.bytes = append(b.bytes, byte(offset), byte(offset>>8))
	} else {
		label.refs = append(label.refs, len(b.bytes))
		b.bytes = append(b.bytes, 0, 0) // placeholder
	}
}

// ---------------------------------------------------------------------------
// Reader and disassembler
// ---------------------------------------------------------------------------

// BytecodeReader reads bytecode for disassembly.
type BytecodeReader struct {
	bytes []byte
	pos   int
}

// NewBytecodeReader creates a reader for bytecode.
func NewBytecodeReader(bc []byte) *BytecodeReader {
	return &BytecodeReader{bytes: bc}
}

// Position returns the current read position.
func (r *BytecodeReader) Position() int {
	return r.pos
}

// HasMore reports whether unread bytes remain.
func (r *BytecodeReader) HasMore() bool {
	return r.pos < len(r.bytes)
}

// ReadOpcode reads and returns the next opcode.
func (r *BytecodeReader) ReadOpcode() Opcode {
	if r.pos >= len(r.bytes) {
		panic("bytecode underflow")
	}
	op := Opcode(r.bytes[r.pos])
	r.pos++
	return op
}

// ReadUint16 reads a 16-bit operand (little-endian).
func (r *BytecodeReader) ReadUint16() uint16 {
	if r.pos+2 > len(r.bytes) {
		panic("bytecode underflow")
	}
	v := binary.LittleEndian.Uint16(r.bytes[r.pos:])
	r.pos += 2
	return v
}

// ---------------------------------------------------------------------------
// Disassembly
// ---------------------------------------------------------------------------

// DisassembleInstruction disassembles a single instruction at the reader's
// position and advances the reader.
func DisassembleInstruction(r *BytecodeReader) string {
	pos := r.Position()
	op := r.ReadOpcode()
	info := op.Info()

	switch {
	case info.OperandBytes == 0:
		return fmt.Sprintf("%04d  %s", pos, info.Name)
	case op.isJump():
		offset := int16(r.ReadUint16())
		target := r.Position() + int(offset)
		return fmt.Sprintf("%04d  %s %d (-> %04d)", pos, info.Name, offset, target)
	default:
		return fmt.Sprintf("%04d  %s %d", pos, info.Name, r.ReadUint16())
	}
}

// Disassemble returns a full disassembly of bytecode.
func Disassemble(bc []byte) string {
	r := NewBytecodeReader(bc)
	var sb strings.Builder
	for r.HasMore() {
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(DisassembleInstruction(r))
	}
	return sb.String()
}
