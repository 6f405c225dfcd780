package classfile

import (
	"encoding/binary"
	"fmt"
)

// Opcodes referenced by the weaver
const (
	OpAconstNull    byte = 0x01
	OpIconst0       byte = 0x03
	OpLconst0       byte = 0x09
	OpFconst0       byte = 0x0b
	OpDconst0       byte = 0x0e
	OpAload0        byte = 0x2a
	OpTableswitch   byte = 0xaa
	OpLookupswitch  byte = 0xab
	OpReturn        byte = 0xb1
	OpPutfield      byte = 0xb5
	OpInvokespecial byte = 0xb7
	OpNew           byte = 0xbb
	OpWide          byte = 0xc4
	OpIinc          byte = 0x84
)

// Code is a decoded Code attribute. The exception table and nested
// attributes are kept verbatim; rewrites that preserve instruction lengths
// leave them valid.
type Code struct {
	MaxStack       uint16
	MaxLocals      uint16
	Bytecode       []byte
	ExceptionTable []byte // exception_table_length entries of 8 bytes
	Attributes     []Attribute
}

// ParseCode decodes the info of a Code attribute
func ParseCode(info []byte) (*Code, error) {
	r := &reader{buf: info}
	c := &Code{
		MaxStack:  r.u2(),
		MaxLocals: r.u2(),
	}
	length := int(r.u4())
	c.Bytecode = r.bytes(length)
	entries := int(r.u2())
	c.ExceptionTable = r.bytes(entries * 8)
	c.Attributes = readAttributes(r)
	if r.err != nil {
		return nil, fmt.Errorf("code attribute: %w", r.err)
	}
	if r.pos != len(info) {
		return nil, fmt.Errorf("code attribute: %d trailing bytes", len(info)-r.pos)
	}
	return c, nil
}

// Bytes encodes the Code attribute info
func (c *Code) Bytes() ([]byte, error) {
	if len(c.ExceptionTable)%8 != 0 {
		return nil, fmt.Errorf("code attribute: exception table is %d bytes", len(c.ExceptionTable))
	}
	w := &writer{}
	w.u2(c.MaxStack)
	w.u2(c.MaxLocals)
	w.u4(uint32(len(c.Bytecode)))
	w.raw(c.Bytecode)
	if err := w.count(len(c.ExceptionTable)/8, "exception handlers"); err != nil {
		return nil, err
	}
	w.raw(c.ExceptionTable)
	if err := writeAttributes(w, c.Attributes); err != nil {
		return nil, err
	}
	return w.buf, nil
}

// Instruction is one decoded instruction position
type Instruction struct {
	Offset int
	Opcode byte
	Length int
}

// Operand16 returns the u2 operand that immediately follows the opcode
func (in Instruction) Operand16(code []byte) uint16 {
	return binary.BigEndian.Uint16(code[in.Offset+1:])
}

// SetOperand16 overwrites the u2 operand that immediately follows the opcode
func (in Instruction) SetOperand16(code []byte, v uint16) {
	binary.BigEndian.PutUint16(code[in.Offset+1:], v)
}

// fixedLengths holds instruction lengths for opcodes 0x00..0xc9; zero marks
// variable-length or invalid opcodes.
var fixedLengths = [0xca]int8{
	// 0x00 nop .. 0x0f dconst_1
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
	// 0x10 bipush, sipush, ldc, ldc_w, ldc2_w, iload..aload (0x15-0x19), iload_0..
	2, 3, 2, 3, 3, 2, 2, 2, 2, 2, 1, 1, 1, 1, 1, 1,
	// 0x20 .. 0x2f loads
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
	// 0x30 .. 0x35 array loads, 0x36-0x3a stores, 0x3b.. store_n
	1, 1, 1, 1, 1, 1, 2, 2, 2, 2, 2, 1, 1, 1, 1, 1,
	// 0x40 .. 0x4f
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
	// 0x50 .. 0x5f array stores, stack ops
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
	// 0x60 .. 0x6f arithmetic
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
	// 0x70 .. 0x7f arithmetic
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
	// 0x80 .. 0x8f, 0x84 iinc
	1, 1, 1, 1, 3, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
	// 0x90 .. 0x98 conversions and compares, 0x99.. branches
	1, 1, 1, 1, 1, 1, 1, 1, 1, 3, 3, 3, 3, 3, 3, 3,
	// 0xa0 .. 0xa8 branches, 0xa9 ret, 0xaa/0xab switches, 0xac.. returns
	3, 3, 3, 3, 3, 3, 3, 3, 3, 2, 0, 0, 1, 1, 1, 1,
	// 0xb0 areturn, return, getstatic..invokestatic, invokeinterface,
	// invokedynamic, new, newarray, anewarray, arraylength, athrow
	1, 1, 3, 3, 3, 3, 3, 3, 3, 5, 5, 3, 2, 3, 1, 1,
	// 0xc0 checkcast, instanceof, monitorenter, monitorexit, wide,
	// multianewarray, ifnull, ifnonnull, goto_w, jsr_w
	3, 3, 1, 1, 0, 4, 3, 3, 5, 5,
}

// instructionLength returns the length of the instruction at pc
func instructionLength(code []byte, pc int) (int, error) {
	op := code[pc]
	if int(op) >= len(fixedLengths) {
		return 0, fmt.Errorf("invalid opcode 0x%02x at %d", op, pc)
	}
	if n := fixedLengths[op]; n > 0 {
		return int(n), nil
	}

	pad := (4 - (pc+1)%4) % 4
	base := pc + 1 + pad
	switch op {
	case OpTableswitch:
		if base+12 > len(code) {
			return 0, fmt.Errorf("truncated tableswitch at %d", pc)
		}
		low := int32(binary.BigEndian.Uint32(code[base+4:]))
		high := int32(binary.BigEndian.Uint32(code[base+8:]))
		if high < low {
			return 0, fmt.Errorf("tableswitch at %d has high < low", pc)
		}
		return 1 + pad + 12 + int(int64(high)-int64(low)+1)*4, nil
	case OpLookupswitch:
		if base+8 > len(code) {
			return 0, fmt.Errorf("truncated lookupswitch at %d", pc)
		}
		npairs := int32(binary.BigEndian.Uint32(code[base+4:]))
		if npairs < 0 {
			return 0, fmt.Errorf("lookupswitch at %d has negative npairs", pc)
		}
		return 1 + pad + 8 + int(npairs)*8, nil
	case OpWide:
		if pc+1 >= len(code) {
			return 0, fmt.Errorf("truncated wide at %d", pc)
		}
		if code[pc+1] == OpIinc {
			return 6, nil
		}
		return 4, nil
	}
	return 0, fmt.Errorf("invalid opcode 0x%02x at %d", op, pc)
}

// Instructions decodes the instruction boundaries of a method body
func Instructions(code []byte) ([]Instruction, error) {
	var out []Instruction
	for pc := 0; pc < len(code); {
		n, err := instructionLength(code, pc)
		if err != nil {
			return nil, err
		}
		if pc+n > len(code) {
			return nil, fmt.Errorf("instruction 0x%02x at %d runs past end of code", code[pc], pc)
		}
		out = append(out, Instruction{Offset: pc, Opcode: code[pc], Length: n})
		pc += n
	}
	return out, nil
}
