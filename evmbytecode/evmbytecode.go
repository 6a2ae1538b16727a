// Package evmbytecode disassembles raw EVM bytecode just far enough to know
// where every instruction starts. The program counters reported in execution
// traces are byte offsets, so once PUSH instructions appear the instruction
// index and the PC diverge by the size of every prior push payload.
package evmbytecode

import (
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
)

// ErrMalformed reports bytecode that is not valid hex after stripping the
// optional 0x prefix.
var ErrMalformed = errors.New("malformed bytecode")

// pushBase is PUSH0; PUSH1 through PUSH32 carry 1..32 immediate bytes,
// determined by opcode - pushBase.
const (
	pushBase  = 0x5f
	pushCount = 32
)

// Instruction is one decoded bytecode instruction. PC is the byte offset the
// instruction starts at; OperandLength is the number of immediate bytes that
// follow the opcode (nonzero only for PUSH1..PUSH32).
type Instruction struct {
	Index         int
	PC            int
	Opcode        byte
	OperandLength int
}

// operandSize returns the immediate byte count for op, which is zero for
// everything outside PUSH1..PUSH32.
func operandSize(op byte) int {
	if op > pushBase && op <= pushBase+pushCount {
		return int(op) - pushBase
	}
	return 0
}

// Scan walks the bytecode once and returns one Instruction per opcode, in PC
// order. The 0x prefix is optional. A final PUSH whose declared operand runs
// past the end of the buffer is recorded with the operand truncated to the
// bytes actually present; that is a property of the bytecode, not an input
// error.
func Scan(bytecodeHex string) ([]Instruction, error) {
	code, err := hex.DecodeString(strings.TrimPrefix(bytecodeHex, "0x"))
	if err != nil {
		return nil, errors.Wrapf(ErrMalformed, "%v", err)
	}

	var instructions []Instruction
	for pc := 0; pc < len(code); {
		operand := operandSize(code[pc])
		if pc+1+operand > len(code) {
			operand = len(code) - pc - 1
		}
		instructions = append(instructions, Instruction{
			Index:         len(instructions),
			PC:            pc,
			Opcode:        code[pc],
			OperandLength: operand,
		})
		pc += 1 + operand
	}
	return instructions, nil
}

// PCToIndex maps each instruction-start PC to its instruction index. PCs that
// fall inside a push operand are absent.
func PCToIndex(instructions []Instruction) map[int]int {
	pcToIndex := make(map[int]int, len(instructions))
	for _, instruction := range instructions {
		pcToIndex[instruction.PC] = instruction.Index
	}
	return pcToIndex
}

// The solc metadata trailer is a CBOR blob whose hash covers the whole
// compilation context, so two builds of identical source can differ only
// there. Documented at https://docs.soliditylang.org/en/latest/metadata.html
const metadataPrefix = "a264697066735822"

// TrimMetadata cuts the metadata trailer off a hex bytecode string, when one
// is present and its declared length checks out. Used to compare on-chain
// bytecode against locally compiled bytecode.
func TrimMetadata(bytecode string) string {
	stripped := strings.TrimPrefix(bytecode, "0x")
	if len(stripped) < 4 {
		return bytecode
	}

	// The final two bytes encode the trailer length in bytes, excluding
	// themselves.
	trailerHex := stripped[len(stripped)-4:]
	declared, err := hex.DecodeString(trailerHex)
	if err != nil {
		return bytecode
	}
	trailerLen := (int(declared[0])<<8 | int(declared[1])) * 2
	if trailerLen <= 0 || trailerLen+4 > len(stripped) {
		return bytecode
	}

	trailer := stripped[len(stripped)-4-trailerLen : len(stripped)-4]
	if !strings.HasPrefix(trailer, metadataPrefix) {
		return bytecode
	}
	return bytecode[:len(bytecode)-4-trailerLen]
}
