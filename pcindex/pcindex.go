// Package pcindex joins a decoded source map with scanned bytecode into a
// table keyed by program counter, which is what execution traces report.
package pcindex

import (
	"sort"

	"github.com/reserve-protocol/soltrace/evmbytecode"
	"github.com/reserve-protocol/soltrace/srcmap"
)

// Entry describes the source mapping of the instruction starting at PC.
type Entry struct {
	PC               int
	InstructionIndex int
	Opcode           byte
	OperandLength    int
	Start            int
	Length           int
	FileIndex        int
	Jump             srcmap.JumpType
}

// Summary describes an index at a glance: how many PCs are mapped, the mapped
// PC range, and how many instructions carry each jump type.
type Summary struct {
	Entries    int
	MinPC      int
	MaxPC      int
	JumpCounts map[string]int
}

// Build merges the two sequences on instruction index and keys the result by
// PC. Only instruction-start PCs appear; PCs inside push operands are absent
// (see Expand for the dense view). The sequences need not have equal length:
// bytecode past the end of the source map is compiler-generated tail with no
// mapping, and a source map past the end of the bytecode has nothing to
// attach to. Either way the join stops at the shorter sequence.
func Build(mapped []srcmap.Instruction, scanned []evmbytecode.Instruction) map[int]Entry {
	n := len(mapped)
	if len(scanned) < n {
		n = len(scanned)
	}

	index := make(map[int]Entry, n)
	for i := 0; i < n; i++ {
		index[scanned[i].PC] = Entry{
			PC:               scanned[i].PC,
			InstructionIndex: i,
			Opcode:           scanned[i].Opcode,
			OperandLength:    scanned[i].OperandLength,
			Start:            mapped[i].Start,
			Length:           mapped[i].Length,
			FileIndex:        mapped[i].FileIndex,
			Jump:             mapped[i].Jump,
		}
	}
	return index
}

// Expand produces the dense view of an index: every PC covered by an
// instruction, including the bytes of its push operand, maps to that
// instruction's entry. Tracers only ever report instruction-start PCs, but
// the expansion makes a lookup of any in-range PC well-defined.
func Expand(index map[int]Entry) map[int]Entry {
	dense := make(map[int]Entry, len(index))
	for pc, entry := range index {
		for offset := 0; offset <= entry.OperandLength; offset++ {
			dense[pc+offset] = entry
		}
	}
	return dense
}

// Summarize computes summary statistics for an index. An empty index yields a
// zero Summary with a non-nil (empty) jump-count map.
func Summarize(index map[int]Entry) Summary {
	summary := Summary{JumpCounts: make(map[string]int)}
	first := true
	for pc, entry := range index {
		if first || pc < summary.MinPC {
			summary.MinPC = pc
		}
		if first || pc > summary.MaxPC {
			summary.MaxPC = pc
		}
		first = false
		summary.Entries++
		summary.JumpCounts[entry.Jump.Description()]++
	}
	return summary
}

// SortedPCs returns the index's keys in increasing order, for deterministic
// serialization.
func SortedPCs(index map[int]Entry) []int {
	pcs := make([]int, 0, len(index))
	for pc := range index {
		pcs = append(pcs, pc)
	}
	sort.Ints(pcs)
	return pcs
}
