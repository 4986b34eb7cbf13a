// Package bytecode defines moha's instruction set and the encoder/decoder
// for the flat, byte-oriented instruction stream the compiler emits and the
// vm interprets.
//
// The wire shape (a Definition table keyed by Opcode, big-endian fixed-width
// operands, Make/Lookup/ReadOperands/Instructions.String()) follows the
// teacher's code/code.go. The opcode set itself does not: moha has no
// lexical closures, so there is no OpClosure/OpGetFree/OpCurrentClosure, and
// objects are built with BUILD_MAP+STORE_MAP rather than a single hash
// literal opcode.
package bytecode

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/mohalang/moha/symtab"
)

// Instructions is a flat, encoded instruction stream.
type Instructions []byte

// Opcode identifies a single bytecode instruction.
type Opcode byte

//nolint:revive
const (
	OpPop Opcode = iota
	OpNoop
	OpExit
	OpAbort

	OpLoadConst
	OpLoadVar
	OpStoreVar
	OpLoadGlobal

	OpBuildMap
	OpBuildArray
	OpStoreMap
	OpMapGetItem
	OpMapSetItem
	OpMapDelItem
	OpMapHasItem

	OpCallFunc
	OpReturnValue

	OpJmp
	OpJmpTrue
	OpJumpIfFalseOrPop
	OpJumpIfTrueOrPop

	OpBinaryAdd
	OpBinarySub
	OpBinaryMul
	OpBinaryDiv
	OpBinaryMod
	OpBinaryLShift
	OpBinaryRShift
	OpBinaryAnd
	OpBinaryOr
	OpBinaryXor
	OpBinaryEqual
	OpBinaryNe
	OpBinaryLt
	OpBinaryLe
	OpBinaryGt
	OpBinaryGe

	OpUnaryNegative
	OpUnaryPositive
	OpUnaryNot
	OpUnaryInvert

	OpNot

	OpImportModule
	OpImportMember
)

// Definition describes an opcode's mnemonic and the width, in bytes, of
// each of its operands.
type Definition struct {
	Name          string
	OperandWidths []int
}

var definitions = map[Opcode]*Definition{
	OpPop:   {"POP", nil},
	OpNoop:  {"NOOP", nil},
	OpExit:  {"EXIT", nil},
	OpAbort: {"ABORT", nil},

	OpLoadConst:  {"LOAD_CONST", []int{2}},
	OpLoadVar:    {"LOAD_VAR", []int{2}},
	OpStoreVar:   {"STORE_VAR", []int{2}},
	OpLoadGlobal: {"LOAD_GLOBAL", []int{2}},

	OpBuildMap:   {"BUILD_MAP", []int{2}},
	OpBuildArray: {"BUILD_ARRAY", []int{2}},
	OpStoreMap:   {"STORE_MAP", nil},
	OpMapGetItem: {"MAP_GETITEM", nil},
	OpMapSetItem: {"MAP_SETITEM", nil},
	OpMapDelItem: {"MAP_DELITEM", nil},
	OpMapHasItem: {"MAP_HASITEM", nil},

	OpCallFunc:    {"CALL_FUNC", []int{2}},
	OpReturnValue: {"RETURN_VALUE", nil},

	OpJmp:              {"JMP", []int{2}},
	OpJmpTrue:          {"JMP_TRUE", []int{2}},
	OpJumpIfFalseOrPop: {"JUMP_IF_FALSE_OR_POP", []int{2}},
	OpJumpIfTrueOrPop:  {"JUMP_IF_TRUE_OR_POP", []int{2}},

	OpBinaryAdd:    {"BINARY_ADD", nil},
	OpBinarySub:    {"BINARY_SUB", nil},
	OpBinaryMul:    {"BINARY_MUL", nil},
	OpBinaryDiv:    {"BINARY_DIV", nil},
	OpBinaryMod:    {"BINARY_MOD", nil},
	OpBinaryLShift: {"BINARY_LSHIFT", nil},
	OpBinaryRShift: {"BINARY_RSHIFT", nil},
	OpBinaryAnd:    {"BINARY_AND", nil},
	OpBinaryOr:     {"BINARY_OR", nil},
	OpBinaryXor:    {"BINARY_XOR", nil},
	OpBinaryEqual:  {"BINARY_EQUAL", nil},
	OpBinaryNe:     {"BINARY_NE", nil},
	OpBinaryLt:     {"BINARY_LT", nil},
	OpBinaryLe:     {"BINARY_LE", nil},
	OpBinaryGt:     {"BINARY_GT", nil},
	OpBinaryGe:     {"BINARY_GE", nil},

	OpUnaryNegative: {"UNARY_NEGATIVE", nil},
	OpUnaryPositive: {"UNARY_POSITIVE", nil},
	OpUnaryNot:      {"UNARY_NOT", nil},
	OpUnaryInvert:   {"UNARY_INVERT", nil},

	OpNot: {"NOT", nil},

	OpImportModule: {"IMPORT_MODULE", nil},
	OpImportMember: {"IMPORT_MEMBER", []int{2}},
}

// Lookup returns the Definition for op, or an error if op is unknown.
func Lookup(op Opcode) (*Definition, error) {
	def, ok := definitions[op]
	if !ok {
		return nil, fmt.Errorf("opcode %d undefined", op)
	}
	return def, nil
}

// Make encodes op and its operands into a single instruction.
func Make(op Opcode, operands ...int) Instructions {
	def, ok := definitions[op]
	if !ok {
		return Instructions{}
	}

	instructionLen := 1
	for _, w := range def.OperandWidths {
		instructionLen += w
	}

	instruction := make(Instructions, instructionLen)
	instruction[0] = byte(op)

	offset := 1
	for i, o := range operands {
		width := def.OperandWidths[i]
		switch width {
		case 2:
			binary.BigEndian.PutUint16(instruction[offset:], uint16(o))
		}
		offset += width
	}

	return instruction
}

// ReadOperands decodes the operands of a single instruction starting at
// ins[0], returning the decoded values and the number of bytes consumed.
func ReadOperands(def *Definition, ins Instructions) ([]int, int) {
	operands := make([]int, len(def.OperandWidths))
	offset := 0

	for i, width := range def.OperandWidths {
		switch width {
		case 2:
			operands[i] = int(ReadUint16(ins[offset:]))
		}
		offset += width
	}

	return operands, offset
}

// ReadUint16 decodes a big-endian uint16 from the start of ins.
func ReadUint16(ins Instructions) uint16 {
	return binary.BigEndian.Uint16(ins)
}

// String disassembles the instruction stream for debugging.
func (ins Instructions) String() string {
	var out strings.Builder

	i := 0
	for i < len(ins) {
		def, err := Lookup(Opcode(ins[i]))
		if err != nil {
			fmt.Fprintf(&out, "ERROR: %s\n", err)
			i++
			continue
		}

		operands, read := ReadOperands(def, ins[i+1:])

		fmt.Fprintf(&out, "%04d %s\n", i, fmtInstruction(def, operands))

		i += 1 + read
	}

	return out.String()
}

func fmtInstruction(def *Definition, operands []int) string {
	operandCount := len(def.OperandWidths)

	switch operandCount {
	case 0:
		return def.Name
	case 1:
		return fmt.Sprintf("%s %d", def.Name, operands[0])
	}

	return fmt.Sprintf("ERROR: unhandled operandCount for %s", def.Name)
}

// Bytecode is the output of compiling a program or a single function body:
// the instruction stream, the constant pool referenced by LOAD_CONST, the
// local-variable symbol table vars (backing LOAD_VAR/STORE_VAR), and the
// names table of globals referenced but not locally assigned (backing
// LOAD_GLOBAL).
type Bytecode struct {
	Instructions Instructions
	Constants    []Constant
	Vars         *symtab.Table
	Names        *symtab.Table
}

// Constant is the minimal contract a compile-time constant value must
// satisfy. object.Value implements it structurally, without bytecode
// needing to import the object package (which itself holds a *Bytecode
// for compiled functions — importing object here would cycle).
type Constant interface {
	String() string
}
